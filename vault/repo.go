package vault

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhengshuai-xiao/VaultS/internal"
	"github.com/zhengshuai-xiao/VaultS/internal/compression"
	"github.com/zhengshuai-xiao/VaultS/internal/encryption"
)

// Format is the storable identity of a repository, written to format.json
// at Init and immutable afterwards.
type Format struct {
	UUID                 string    `json:"uuid"`
	Version              int       `json:"version"`
	ChunkMaxSize         uint64    `json:"chunk_max_size"`
	BundleMaxPayloadSize uint64    `json:"bundle_max_payload_size"`
	Compression          string    `json:"compression"`
	Encryption           string    `json:"encryption"`
	SaltHex              string    `json:"salt,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

const formatVersion = 1

// Repository is an open backup repository: layout on disk, the dedup
// index, the configured codecs and the bundle backend.
type Repository struct {
	root       string
	conf       *Config
	format     *Format
	idx        Index
	compressor compression.Compressor
	cipher     encryption.Cipher
	backend    BundleBackend
}

func (r *Repository) backupsDir() string { return filepath.Join(r.root, BackupDir) }
func (r *Repository) bundlesDir() string { return filepath.Join(r.root, BundleDir) }
func (r *Repository) indexDir() string   { return filepath.Join(r.root, IndexDir) }

func (r *Repository) Root() string    { return r.root }
func (r *Repository) Format() *Format { return r.format }
func (r *Repository) Index() Index    { return r.idx }

// Init creates a new repository at root. The directory must be empty or
// absent; Init never adopts existing data.
func Init(root string, conf *Config) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	if internal.Exists(filepath.Join(root, FormatFile)) {
		return fmt.Errorf("repository already initialized at %s", root)
	}
	if dents, err := os.ReadDir(root); err == nil && len(dents) > 0 {
		return fmt.Errorf("directory %s is not empty", root)
	}
	for _, dir := range []string{root, filepath.Join(root, BackupDir), filepath.Join(root, BundleDir), filepath.Join(root, IndexDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	format := &Format{
		UUID:                 uuid.New().String(),
		Version:              formatVersion,
		ChunkMaxSize:         conf.ChunkMaxSize,
		BundleMaxPayloadSize: conf.BundleMaxPayloadSize,
		Compression:          conf.Compression,
		Encryption:           conf.Encryption,
		CreatedAt:            time.Now().UTC(),
	}
	if conf.Encryption != "none" {
		salt, err := encryption.NewSalt()
		if err != nil {
			return err
		}
		format.SaltHex = hex.EncodeToString(salt)
		// Fail now if the key file is unreadable, not at first backup.
		if _, err := readKeyFile(conf.KeyFile); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(format, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicWriteFile(filepath.Join(root, FormatFile), data); err != nil {
		return err
	}
	logger.Infof("initialized repository %s at %s (chunk<=%s, bundle<=%s, compression=%s, encryption=%s)",
		format.UUID, root, internal.FormatBytes(format.ChunkMaxSize),
		internal.FormatBytes(format.BundleMaxPayloadSize), format.Compression, format.Encryption)
	return nil
}

func readKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read key file: %w", err)
	}
	pass := strings.TrimRight(string(data), "\r\n")
	if pass == "" {
		return "", fmt.Errorf("key file %s is empty", path)
	}
	return pass, nil
}

func readFormat(root string) (*Format, error) {
	data, err := os.ReadFile(filepath.Join(root, FormatFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no repository at %s", root)
		}
		return nil, err
	}
	format := &Format{}
	if err := json.Unmarshal(data, format); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FormatFile, err)
	}
	if format.Version != formatVersion {
		return nil, fmt.Errorf("unsupported repository version %d", format.Version)
	}
	return format, nil
}

// Open loads the repository at root. Storable settings come from
// format.json and override whatever conf carries; runtime settings
// (threads, cache, backends) stay with conf.
func Open(root string, conf *Config) (*Repository, error) {
	format, err := readFormat(root)
	if err != nil {
		return nil, err
	}
	conf.ChunkMaxSize = format.ChunkMaxSize
	conf.BundleMaxPayloadSize = format.BundleMaxPayloadSize
	conf.Compression = format.Compression
	conf.Encryption = format.Encryption
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	compressor, err := compression.GetCompressorViaString(format.Compression)
	if err != nil {
		return nil, err
	}
	var key []byte
	if format.Encryption != "none" {
		pass, err := readKeyFile(conf.KeyFile)
		if err != nil {
			return nil, err
		}
		salt, err := hex.DecodeString(format.SaltHex)
		if err != nil {
			return nil, fmt.Errorf("bad salt in %s: %w", FormatFile, err)
		}
		key = encryption.DeriveKey(pass, salt)
	}
	cipher, err := encryption.GetCipherViaString(format.Encryption, key)
	if err != nil {
		return nil, err
	}

	r := &Repository{root: root, conf: conf, format: format, compressor: compressor, cipher: cipher}

	local, err := NewLocalIndex(r.indexDir())
	if err != nil {
		return nil, err
	}
	switch conf.MetaDriver {
	case "redis":
		r.idx, err = NewRedisIndex(conf.MetaAddr, format.UUID, local)
		if err != nil {
			return nil, err
		}
	default:
		r.idx = local
	}

	switch conf.Backend {
	case "s3":
		r.backend, err = NewS3Backend(conf.BackendAddr, conf.AccessKey, conf.SecretKey,
			conf.BackendBucket, format.UUID, r.bundlesDir())
		if err != nil {
			r.idx.Close()
			return nil, err
		}
	default:
		r.backend = NewPosixBackend(r.bundlesDir())
	}

	if err := r.checkIntegrity(); err != nil {
		r.idx.Close()
		return nil, err
	}
	return r, nil
}

// checkIntegrity reconciles the bundles directory with the index. A bundle
// file with no index entry is a leftover from an interrupted run that died
// before registration; nothing can reference it, so it is removed rather
// than stranded forever.
func (r *Repository) checkIntegrity() error {
	known := internal.NewUInt64Set()
	r.idx.Range(func(fp string, loc Location) bool {
		known.Add(loc.BundleID)
		return true
	})
	ids, err := r.listBundleFiles()
	if err != nil {
		return err
	}
	for _, id := range ids {
		if known.Contains(id) {
			continue
		}
		logger.Warnf("removing unregistered bundle %d left by an interrupted run", id)
		path := filepath.Join(r.bundlesDir(), filepath.FromSlash(GetBundleKey(id)))
		if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}

// listBundleFiles scans the bundles directory and returns the ids of the
// bundle files present, in no particular order.
func (r *Repository) listBundleFiles() ([]uint64, error) {
	var ids []uint64
	shards, err := os.ReadDir(r.bundlesDir())
	if err != nil {
		return nil, err
	}
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		dents, err := os.ReadDir(filepath.Join(r.bundlesDir(), shard.Name()))
		if err != nil {
			return nil, err
		}
		for _, d := range dents {
			name := d.Name()
			if d.IsDir() || !strings.HasSuffix(name, ".vbd") {
				continue
			}
			id, err := strconv.ParseUint(strings.TrimSuffix(name, ".vbd"), 16, 64)
			if err != nil {
				logger.Warnf("ignoring unrecognized file %s in bundles directory", name)
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *Repository) Close() error {
	return r.idx.Close()
}

// BackupInfo summarizes one stored backup for the info command.
type BackupInfo struct {
	Name       string
	CreatedAt  time.Time
	StreamSize uint64
	ChunkCount int
}

// RepoInfo aggregates repository-wide statistics.
type RepoInfo struct {
	UUID        string
	Backups     []BackupInfo
	IndexedFPs  int
	BundleCount int
	StoredBytes uint64
}

// ListBackups returns the descriptors present, without their entry lists.
func (r *Repository) ListBackups() ([]BackupInfo, error) {
	names, err := listDescriptors(r.backupsDir())
	if err != nil {
		return nil, err
	}
	infos := make([]BackupInfo, 0, len(names))
	for _, name := range names {
		d, err := readDescriptorFile(r.backupsDir(), name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, BackupInfo{
			Name:       d.Name,
			CreatedAt:  d.CreatedAt,
			StreamSize: d.StreamSize,
			ChunkCount: len(d.Entries),
		})
	}
	return infos, nil
}

// Info collects repository statistics: stored backups, index size and the
// physical footprint of the bundle files.
func (r *Repository) Info() (*RepoInfo, error) {
	backups, err := r.ListBackups()
	if err != nil {
		return nil, err
	}
	info := &RepoInfo{
		UUID:       r.format.UUID,
		Backups:    backups,
		IndexedFPs: r.idx.Count(),
	}
	ids, err := r.listBundleFiles()
	if err != nil {
		return nil, err
	}
	info.BundleCount = len(ids)
	for _, id := range ids {
		st, err := os.Stat(filepath.Join(r.bundlesDir(), filepath.FromSlash(GetBundleKey(id))))
		if err != nil {
			return nil, err
		}
		info.StoredBytes += uint64(st.Size())
	}
	return info, nil
}
