package vault

import (
	"errors"
	"fmt"

	"github.com/zhengshuai-xiao/VaultS/internal"
)

var logger = internal.GetLogger("vaults")

const (
	// Repository layout, relative to the repository root.
	BackupDir  = "backups"
	BundleDir  = "bundles"
	IndexDir   = "index"
	FormatFile = "format.json"

	// Bundle files are spread over subdirectories so that no single
	// directory collects an unbounded number of entries.
	bundleDirShard = 1024
)

var (
	BundleMagic  = [4]byte{'V', 'B', 'd', 'l'}
	IdxMagic     = [4]byte{'V', 'I', 'd', 'x'}
	BakMagic     = [4]byte{'V', 'B', 'a', 'k'}
	BundleVersion uint32 = 1
	IdxVersion    uint32 = 1
	BakVersion    uint32 = 1
)

var (
	// ErrFingerprintNotFound is a repository-integrity error: a descriptor
	// or caller referenced a chunk the index does not know.
	ErrFingerprintNotFound = errors.New("fingerprint not found in index")
	// ErrCorruptIndexSegment is reported when an index segment fails to
	// parse or its checksum does not match; it aborts the repository open.
	ErrCorruptIndexSegment = errors.New("corrupt index segment")
	// ErrCorruptBundle is reported for a truncated bundle, a bad magic
	// number or a chunk checksum mismatch.
	ErrCorruptBundle = errors.New("corrupt bundle")
	// ErrUnsupportedBundle is reported when a bundle header carries a
	// codec tag this build does not know.
	ErrUnsupportedBundle = errors.New("unsupported bundle format")
	// ErrBundleFull signals the writer that the current bundle cannot take
	// another chunk without breaching the payload limit.
	ErrBundleFull = errors.New("bundle payload limit reached")

	ErrBackupExists   = errors.New("backup already exists")
	ErrBackupNotFound = errors.New("backup not found")
)

// Location is the physical address of a chunk: which bundle holds it and
// where it sits inside that bundle's decompressed payload.
type Location struct {
	BundleID uint64
	Offset   uint64
	Length   uint32
}

// Chunk is a unit of deduplication flowing through the storage pipeline.
// Seq is its position in the source stream; the pipeline may process chunks
// out of order but reassembles them by Seq.
type Chunk struct {
	Seq     uint64
	FP      string
	Data    []byte
	Len     uint32
	Deduped bool
}

// IndexEntry pairs a fingerprint with its location, as stored in index
// segments.
type IndexEntry struct {
	FP  string
	Loc Location
}

// GetBundleName returns the file name of a bundle by id.
func GetBundleName(id uint64) string {
	return fmt.Sprintf("%016x.vbd", id)
}

// GetBundleKey returns the path of a bundle relative to the bundles
// directory, including the shard subdirectory.
func GetBundleKey(id uint64) string {
	return fmt.Sprintf("%d/%s", id/bundleDirShard, GetBundleName(id))
}

// GetSegmentName returns the index segment file name for a bundle id.
func GetSegmentName(id uint64) string {
	return fmt.Sprintf("%016x.idx", id)
}
