package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

func cmdRestore() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Reproduce a stored backup byte for byte",
		ArgsUsage: "NAME [FILE]",
		Description: `Writes the named backup to FILE (or stdout when FILE is omitted or
"-"). Example:

   $ vaults --repo /backups restore home-2026-08-29 | tar x`,
		Flags: storageFlags(),
		Action: func(c *cli.Context) error {
			setup(c)
			if c.NArg() < 1 {
				return fmt.Errorf("backup name is required")
			}
			name := c.Args().Get(0)

			var out io.Writer = os.Stdout
			if file := c.Args().Get(1); file != "" && file != "-" {
				f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			r, err := openRepo(c)
			if err != nil {
				return err
			}
			defer r.Close()
			return r.Restore(c.Context, name, out)
		},
	}
}
