package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/VaultS/internal"
)

func cmdInfo() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "Show repository statistics and stored backups",
		ArgsUsage: " ",
		Flags:     storageFlags(),
		Action: func(c *cli.Context) error {
			setup(c)
			r, err := openRepo(c)
			if err != nil {
				return err
			}
			defer r.Close()
			info, err := r.Info()
			if err != nil {
				return err
			}

			fmt.Printf("repository:   %s\n", r.Root())
			fmt.Printf("uuid:         %s\n", info.UUID)
			fmt.Printf("compression:  %s\n", r.Format().Compression)
			fmt.Printf("encryption:   %s\n", r.Format().Encryption)
			fmt.Printf("fingerprints: %d\n", info.IndexedFPs)
			fmt.Printf("bundles:      %d (%s)\n", info.BundleCount, internal.FormatBytes(info.StoredBytes))
			fmt.Printf("backups:      %d\n", len(info.Backups))
			var logical uint64
			for _, b := range info.Backups {
				fmt.Printf("  %-40s %12s  %8d chunks  %s\n",
					b.Name, internal.FormatBytes(b.StreamSize), b.ChunkCount,
					b.CreatedAt.Local().Format("2006-01-02 15:04:05"))
				logical += b.StreamSize
			}
			if logical > 0 && info.StoredBytes > 0 {
				fmt.Printf("dedup ratio:  %.2f\n", float64(logical)/float64(info.StoredBytes))
			}
			return nil
		},
	}
}
