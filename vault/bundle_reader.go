package vault

import (
	"bytes"
	"fmt"
	"os"

	"github.com/zhengshuai-xiao/VaultS/internal"
	"github.com/zhengshuai-xiao/VaultS/internal/compression"
	"github.com/zhengshuai-xiao/VaultS/internal/encryption"
)

// BundleReader holds one bundle's decompressed payload and its directory.
// Opening a bundle pays the decrypt+inflate cost once; every chunk read
// after that is a slice copy plus a CRC check.
type BundleReader struct {
	id      uint64
	payload []byte
	dir     map[string]BlockHeader
}

// OpenBundle reads, authenticates and inflates the bundle at path. The
// cipher must match the one the repository was initialized with; the
// header's encryption tag is cross-checked against it.
func OpenBundle(path string, id uint64, cipher encryption.Cipher) (*BundleReader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseBundle(data, id, cipher)
}

func parseBundle(data []byte, id uint64, cipher encryption.Cipher) (*BundleReader, error) {
	if len(data) < bundleHeaderSize+bundleTrailerSize {
		return nil, fmt.Errorf("%w: bundle %d truncated (%d bytes)", ErrCorruptBundle, id, len(data))
	}
	if !bytes.Equal(data[:4], BundleMagic[:]) {
		return nil, fmt.Errorf("%w: bundle %d has bad magic", ErrCorruptBundle, id)
	}
	version := getUInt32(data[4:8])
	if version != BundleVersion {
		return nil, fmt.Errorf("%w: bundle %d version %d", ErrUnsupportedBundle, id, version)
	}
	compTag := compression.CompressionType(data[8])
	encTag := encryption.EncryptionType(data[9])
	compressor, err := compression.GetCompressorViaType(compTag)
	if err != nil {
		return nil, fmt.Errorf("%w: bundle %d compression tag %d", ErrUnsupportedBundle, id, compTag)
	}
	if encTag != cipher.Type() {
		return nil, fmt.Errorf("%w: bundle %d encryption tag %d does not match repository cipher %s",
			ErrUnsupportedBundle, id, encTag, cipher.TypeString())
	}
	payloadBlockLen := getUInt64(data[10:18])
	rawSize := getUInt64(data[18:26])
	footerOffset := getUInt64(data[len(data)-bundleTrailerSize:])
	if footerOffset != bundleHeaderSize+payloadBlockLen || footerOffset >= uint64(len(data)-bundleTrailerSize) {
		return nil, fmt.Errorf("%w: bundle %d has inconsistent framing", ErrCorruptBundle, id)
	}

	payload, err := decodeBlock(data[bundleHeaderSize:footerOffset], compressor, cipher)
	if err != nil {
		return nil, fmt.Errorf("bundle %d payload: %w", id, err)
	}
	if uint64(len(payload)) != rawSize {
		return nil, fmt.Errorf("%w: bundle %d payload inflated to %d bytes, header says %d",
			ErrCorruptBundle, id, len(payload), rawSize)
	}
	footer, err := decodeBlock(data[footerOffset:len(data)-bundleTrailerSize], compressor, cipher)
	if err != nil {
		return nil, fmt.Errorf("bundle %d directory: %w", id, err)
	}
	var blocks []BlockHeader
	if err := internal.DeserializeFromString(string(footer), &blocks); err != nil {
		return nil, fmt.Errorf("%w: bundle %d directory: %v", ErrCorruptBundle, id, err)
	}

	dir := make(map[string]BlockHeader, len(blocks))
	for _, b := range blocks {
		if uint64(b.Offset)+uint64(b.Len) > uint64(len(payload)) {
			return nil, fmt.Errorf("%w: bundle %d block for fp %s out of range",
				ErrCorruptBundle, id, internal.StringToHex(string(b.FP[:])))
		}
		dir[string(b.FP[:])] = b
	}
	return &BundleReader{id: id, payload: payload, dir: dir}, nil
}

func decodeBlock(block []byte, compressor compression.Compressor, cipher encryption.Cipher) ([]byte, error) {
	plain, err := cipher.Decrypt(block)
	if err != nil {
		return nil, err
	}
	return compressor.Decompress(plain)
}

func (r *BundleReader) ID() uint64 {
	return r.id
}

// Size is the decompressed payload size, which is what the restore cache
// budgets against.
func (r *BundleReader) Size() uint64 {
	return uint64(len(r.payload))
}

func (r *BundleReader) Count() int {
	return len(r.dir)
}

// ReadChunk returns a copy of the chunk body for fp, verifying its CRC.
func (r *BundleReader) ReadChunk(fp string) ([]byte, error) {
	b, ok := r.dir[fp]
	if !ok {
		return nil, fmt.Errorf("%w: fp %s not in bundle %d", ErrFingerprintNotFound, internal.StringToHex(fp), r.id)
	}
	body := r.payload[b.Offset : uint64(b.Offset)+uint64(b.Len)]
	if !internal.VerifyCRC32(body, b.CRC) {
		return nil, fmt.Errorf("%w: chunk %s in bundle %d failed checksum", ErrCorruptBundle, internal.StringToHex(fp), r.id)
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}
