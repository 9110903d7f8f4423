package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/VaultS/internal"
	"github.com/zhengshuai-xiao/VaultS/vault"
)

func cmdInit() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Create an empty repository",
		ArgsUsage: " ",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "chunk-max-size",
				Value: "64K",
				Usage: "upper bound on chunk size",
			},
			&cli.StringFlag{
				Name:  "bundle-max-payload-size",
				Value: "2M",
				Usage: "upper bound on a bundle's raw payload",
			},
			&cli.StringFlag{
				Name:  "compression",
				Value: "zstd",
				Usage: "compression method: none/zlib/snappy/zstd",
			},
			&cli.StringFlag{
				Name:  "encryption",
				Value: "none",
				Usage: "encryption method: none/aes256-gcm",
			},
			&cli.StringFlag{
				Name:  "keyfile",
				Usage: "file holding the encryption passphrase",
			},
		},
		Action: func(c *cli.Context) error {
			setup(c)
			conf := vault.DefaultConfig()
			var err error
			if conf.ChunkMaxSize, err = internal.ParseBytes(c.String("chunk-max-size")); err != nil {
				return fmt.Errorf("bad chunk-max-size: %w", err)
			}
			if conf.BundleMaxPayloadSize, err = internal.ParseBytes(c.String("bundle-max-payload-size")); err != nil {
				return fmt.Errorf("bad bundle-max-payload-size: %w", err)
			}
			conf.Compression = c.String("compression")
			conf.Encryption = c.String("encryption")
			conf.KeyFile = c.String("keyfile")
			return vault.Init(c.String("repo"), conf)
		},
	}
}
