package cmd

import (
	"github.com/urfave/cli/v2"
)

func cmdGC() *cli.Command {
	return &cli.Command{
		Name:      "gc",
		Usage:     "Reclaim bundles no backup references",
		ArgsUsage: " ",
		Description: `Forget a backup by deleting its file under backups/, then run gc to
reclaim the space its chunks held. A bundle is reclaimed only when no
remaining backup references any chunk in it.`,
		Flags: storageFlags(),
		Action: func(c *cli.Context) error {
			setup(c)
			r, err := openRepo(c)
			if err != nil {
				return err
			}
			defer r.Close()
			_, err = r.GarbageCollect(c.Context)
			return err
		},
	}
}
