package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/VaultS/vault"
)

func exchangeFlags() []cli.Flag {
	return append(storageFlags(), &cli.StringFlag{
		Name:  "scope",
		Value: "all",
		Usage: "areas to move: comma-separated backups/bundles/index, or all",
	})
}

func cmdExport() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Copy repository areas into another repository",
		ArgsUsage: "DEST_DIR",
		Description: `The destination must be an initialized repository. Files already
present there are skipped, so repeated exports are incremental.`,
		Flags: exchangeFlags(),
		Action: func(c *cli.Context) error {
			setup(c)
			if c.NArg() < 1 {
				return fmt.Errorf("destination directory is required")
			}
			scope, err := vault.ParseExchangeScope(c.String("scope"))
			if err != nil {
				return err
			}
			r, err := openRepo(c)
			if err != nil {
				return err
			}
			defer r.Close()
			_, err = r.Export(c.Context, c.Args().Get(0), scope)
			return err
		},
	}
}

func cmdImport() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Copy repository areas from another repository",
		ArgsUsage: "SRC_DIR",
		Flags:     exchangeFlags(),
		Action: func(c *cli.Context) error {
			setup(c)
			if c.NArg() < 1 {
				return fmt.Errorf("source directory is required")
			}
			scope, err := vault.ParseExchangeScope(c.String("scope"))
			if err != nil {
				return err
			}
			r, err := openRepo(c)
			if err != nil {
				return err
			}
			defer r.Close()
			_, err = r.Import(c.Context, c.Args().Get(0), scope)
			return err
		},
	}
}
