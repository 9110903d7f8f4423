package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

func cmdBackup() *cli.Command {
	return &cli.Command{
		Name:      "backup",
		Usage:     "Store a stream as a named backup",
		ArgsUsage: "NAME [FILE]",
		Description: `Reads FILE (or stdin when FILE is omitted or "-"), splits it into
content-defined chunks and stores only the chunks the repository has
never seen. Examples:

   $ tar c /home | vaults --repo /backups backup home-$(date +%F)
   $ vaults --repo /backups backup vm-image disk.img`,
		Flags: storageFlags(),
		Action: func(c *cli.Context) error {
			setup(c)
			if c.NArg() < 1 {
				return fmt.Errorf("backup name is required")
			}
			name := c.Args().Get(0)

			var stream io.Reader = os.Stdin
			if file := c.Args().Get(1); file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				stream = f
			}

			r, err := openRepo(c)
			if err != nil {
				return err
			}
			defer r.Close()
			_, err = r.Backup(c.Context, name, stream)
			return err
		},
	}
}
