package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		c := DefaultConfig()
		return c
	}
	assert.NoError(t, valid().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"chunk too small", func(c *Config) { c.ChunkMaxSize = 512 }},
		{"bundle smaller than chunk", func(c *Config) { c.BundleMaxPayloadSize = c.ChunkMaxSize - 1 }},
		{"zero threads", func(c *Config) { c.Threads = 0 }},
		{"negative threads", func(c *Config) { c.Threads = -4 }},
		{"unknown compression", func(c *Config) { c.Compression = "lzma" }},
		{"unknown encryption", func(c *Config) { c.Encryption = "rot13" }},
		{"encryption without key file", func(c *Config) { c.Encryption = "aes256-gcm" }},
		{"redis without address", func(c *Config) { c.MetaDriver = "redis" }},
		{"unknown meta driver", func(c *Config) { c.MetaDriver = "etcd" }},
		{"s3 without endpoint", func(c *Config) { c.Backend = "s3" }},
		{"unknown backend", func(c *Config) { c.Backend = "tape" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestChunkSizeDerivation(t *testing.T) {
	c := DefaultConfig()
	c.ChunkMaxSize = 64 << 10
	assert.Equal(t, uint64(4<<10), c.ChunkMinSize())
	assert.Equal(t, uint64(16<<10), c.ChunkAvgSize())
}

func TestValidBackupName(t *testing.T) {
	assert.NoError(t, ValidBackupName("nightly-2026-08-29"))
	assert.NoError(t, ValidBackupName("host.example.com_root"))
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "x.tmp"} {
		assert.Error(t, ValidBackupName(name), name)
	}
}
