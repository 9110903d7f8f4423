package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"
)

func TestIsFlag(t *testing.T) {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "repo", Aliases: []string{"r"}},
		&cli.BoolFlag{Name: "no-color"},
	}

	ok, hasValue := isFlag(flags, "--repo")
	assert.True(t, ok)
	assert.True(t, hasValue)

	ok, hasValue = isFlag(flags, "--repo=/backups")
	assert.True(t, ok)
	assert.False(t, hasValue)

	ok, hasValue = isFlag(flags, "--no-color")
	assert.True(t, ok)
	assert.False(t, hasValue)

	ok, _ = isFlag(flags, "backup")
	assert.False(t, ok)
	ok, _ = isFlag(flags, "--unknown")
	assert.False(t, ok)
}

func TestReorderOptions(t *testing.T) {
	app := &cli.App{
		Flags: globalFlags(),
		Commands: []*cli.Command{
			cmdBackup(),
		},
	}
	args := []string{"vaults", "backup", "--repo", "/backups", "nightly", "--threads", "8"}
	got := reorderOptions(app, args)
	assert.Equal(t, []string{"vaults", "--repo", "/backups", "backup", "--threads", "8", "nightly"}, got)
}
