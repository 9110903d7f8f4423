package vault

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/zhengshuai-xiao/VaultS/internal/compression"
	"github.com/zhengshuai-xiao/VaultS/internal/encryption"
)

// Config carries both the storable settings fixed at Init (chunking,
// bundle sizing, codecs) and the runtime knobs each command may vary
// (threads, cache, index and bundle backends).
type Config struct {
	// Storable settings. After Init these live in format.json and the
	// values there win on Open.
	ChunkMaxSize         uint64
	BundleMaxPayloadSize uint64
	Compression          string
	Encryption           string

	// KeyFile holds the passphrase when Encryption is not "none".
	KeyFile string

	// Runtime settings.
	Threads   int
	CacheSize uint64

	// MetaDriver selects the index backend: "local" or "redis".
	MetaDriver string
	MetaAddr   string

	// Backend selects where bundles live: "posix" or "s3".
	Backend       string
	BackendAddr   string
	BackendBucket string
	AccessKey     string
	SecretKey     string
}

const (
	// Floor on ChunkMaxSize so the derived minimum chunk size stays at
	// or above the rolling window.
	chunkMaxSizeFloor = 1024
)

func DefaultConfig() *Config {
	return &Config{
		ChunkMaxSize:         64 << 10,
		BundleMaxPayloadSize: 2 << 20,
		Compression:          "zstd",
		Encryption:           "none",
		Threads:              runtime.NumCPU(),
		CacheSize:            40 << 20,
		MetaDriver:           "local",
		Backend:              "posix",
	}
}

// ChunkMinSize and ChunkAvgSize derive the chunker's bounds from the
// configured maximum, keeping the three in a fixed ratio.
func (c *Config) ChunkMinSize() uint64 {
	return c.ChunkMaxSize / 16
}

func (c *Config) ChunkAvgSize() uint64 {
	return c.ChunkMaxSize / 4
}

// Validate rejects any configuration that could wedge the engine at
// runtime, before a repository is created or opened with it.
func (c *Config) Validate() error {
	if c.ChunkMaxSize < chunkMaxSizeFloor {
		return fmt.Errorf("invalid config: chunk max size %d is below the minimum %d", c.ChunkMaxSize, chunkMaxSizeFloor)
	}
	if c.BundleMaxPayloadSize < c.ChunkMaxSize {
		return fmt.Errorf("invalid config: bundle max payload size %d is smaller than chunk max size %d",
			c.BundleMaxPayloadSize, c.ChunkMaxSize)
	}
	if c.Threads < 1 {
		return fmt.Errorf("invalid config: threads must be at least 1, got %d", c.Threads)
	}
	if _, ok := compression.CompressionMethods[c.Compression]; !ok {
		return fmt.Errorf("invalid config: unknown compression method %q", c.Compression)
	}
	if _, ok := encryption.EncryptionMethods[c.Encryption]; !ok {
		return fmt.Errorf("invalid config: unknown encryption method %q", c.Encryption)
	}
	if c.Encryption != "none" && c.KeyFile == "" {
		return fmt.Errorf("invalid config: encryption %q requires a key file", c.Encryption)
	}
	switch c.MetaDriver {
	case "local":
	case "redis":
		if c.MetaAddr == "" {
			return fmt.Errorf("invalid config: meta driver redis requires an address")
		}
	default:
		return fmt.Errorf("invalid config: unknown meta driver %q", c.MetaDriver)
	}
	switch c.Backend {
	case "posix":
	case "s3":
		if c.BackendAddr == "" || c.BackendBucket == "" {
			return fmt.Errorf("invalid config: s3 backend requires an endpoint and a bucket")
		}
	default:
		return fmt.Errorf("invalid config: unknown backend %q", c.Backend)
	}
	return nil
}

// ValidBackupName rejects names that could escape the backups directory
// or collide with temp files.
func ValidBackupName(name string) error {
	if name == "" {
		return fmt.Errorf("backup name must not be empty")
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("invalid backup name %q", name)
	}
	if strings.HasSuffix(name, ".tmp") {
		return fmt.Errorf("invalid backup name %q", name)
	}
	return nil
}
