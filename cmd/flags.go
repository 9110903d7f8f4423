package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/zhengshuai-xiao/VaultS/internal"
	"github.com/zhengshuai-xiao/VaultS/vault"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "repo",
			Aliases: []string{"r"},
			Value:   ".",
			Usage:   "path of the repository root",
		},
		&cli.StringFlag{
			Name:  "loglevel",
			Value: "info",
			Usage: "log level: trace/debug/info/warn/error",
		},
		&cli.StringFlag{
			Name:  "logdir",
			Usage: "write logs under this directory instead of stderr",
		},
		&cli.BoolFlag{
			Name:  "no-color",
			Usage: "disable colors in log output",
		},
	}
}

// storageFlags are shared by every command that opens the repository.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "keyfile",
			Usage: "file holding the encryption passphrase",
		},
		&cli.IntFlag{
			Name:  "threads",
			Value: vault.DefaultConfig().Threads,
			Usage: "worker threads for fingerprinting and compression",
		},
		&cli.StringFlag{
			Name:  "cache-size",
			Value: "40M",
			Usage: "memory budget for decompressed bundles during restore",
		},
		&cli.StringFlag{
			Name:  "meta",
			Value: "local",
			Usage: "index backend: local/redis",
		},
		&cli.StringFlag{
			Name:  "meta-addr",
			Usage: "redis address for the index, e.g. 127.0.0.1:6379/1",
		},
		&cli.StringFlag{
			Name:  "backend",
			Value: "posix",
			Usage: "bundle backend: posix/s3",
		},
		&cli.StringFlag{
			Name:  "backend-addr",
			Usage: "endpoint of the s3 backend",
		},
		&cli.StringFlag{
			Name:  "backend-bucket",
			Usage: "bucket of the s3 backend",
		},
		&cli.StringFlag{
			Name:    "access-key",
			Usage:   "access key for the s3 backend",
			EnvVars: []string{"VAULTS_ACCESS_KEY"},
		},
		&cli.StringFlag{
			Name:    "secret-key",
			Usage:   "secret key for the s3 backend",
			EnvVars: []string{"VAULTS_SECRET_KEY"},
		},
	}
}

func setup(c *cli.Context) {
	switch c.String("loglevel") {
	case "trace":
		internal.SetLogLevel(logrus.TraceLevel)
	case "debug":
		internal.SetLogLevel(logrus.DebugLevel)
	case "info":
		internal.SetLogLevel(logrus.InfoLevel)
	case "warn":
		internal.SetLogLevel(logrus.WarnLevel)
	case "error":
		internal.SetLogLevel(logrus.ErrorLevel)
	default:
		logger.Warnf("unknown log level %q, using info", c.String("loglevel"))
		internal.SetLogLevel(logrus.InfoLevel)
	}
	if c.Bool("no-color") {
		internal.DisableLogColor()
	}
	if dir := c.String("logdir"); dir != "" {
		internal.SetOutFile(dir + "/vaults.log")
	}
}

// buildConfig assembles a runtime configuration from command flags. The
// storable settings get overwritten from format.json at Open.
func buildConfig(c *cli.Context) (*vault.Config, error) {
	conf := vault.DefaultConfig()
	conf.KeyFile = c.String("keyfile")
	if c.IsSet("threads") {
		conf.Threads = c.Int("threads")
	}
	if s := c.String("cache-size"); s != "" {
		size, err := internal.ParseBytes(s)
		if err != nil {
			return nil, fmt.Errorf("bad cache-size: %w", err)
		}
		conf.CacheSize = size
	}
	conf.MetaDriver = c.String("meta")
	conf.MetaAddr = c.String("meta-addr")
	conf.Backend = c.String("backend")
	conf.BackendAddr = c.String("backend-addr")
	conf.BackendBucket = c.String("backend-bucket")
	conf.AccessKey = c.String("access-key")
	conf.SecretKey = c.String("secret-key")
	return conf, nil
}

func openRepo(c *cli.Context) (*vault.Repository, error) {
	conf, err := buildConfig(c)
	if err != nil {
		return nil, err
	}
	return vault.Open(c.String("repo"), conf)
}
