package vault

import (
	"bytes"
	"fmt"

	"github.com/zhengshuai-xiao/VaultS/internal"
	"github.com/zhengshuai-xiao/VaultS/internal/compression"
	"github.com/zhengshuai-xiao/VaultS/internal/encryption"
)

// Bundle layout:
//
//	header  : magic(4) version(4) compression(1) encryption(1)
//	          payload block length(8) raw payload size(8)
//	payload : all chunk bodies concatenated, compressed as one stream,
//	          then encrypted
//	footer  : gob-encoded []BlockHeader, compressed then encrypted
//	trailer : footer offset(8)
//
// Chunk offsets in BlockHeader address the decompressed payload, so a
// reader inflates the payload once and serves any number of chunks from it.
const bundleHeaderSize = 4 + 4 + 1 + 1 + 8 + 8

const bundleTrailerSize = 8

// BlockHeader describes one chunk inside a bundle's payload.
type BlockHeader struct {
	FP     [FPSize]byte
	Offset uint64
	Len    uint32
	CRC    uint32
}

// BundleWriter accumulates first-instance chunks for one bundle. It is not
// safe for concurrent use; the pipeline's assembler owns it exclusively.
type BundleWriter struct {
	id         uint64
	maxPayload uint64
	compressor compression.Compressor
	cipher     encryption.Cipher
	payload    bytes.Buffer
	blocks     []BlockHeader
	entries    []IndexEntry
}

func NewBundleWriter(id uint64, maxPayload uint64, compressor compression.Compressor, cipher encryption.Cipher) *BundleWriter {
	return &BundleWriter{
		id:         id,
		maxPayload: maxPayload,
		compressor: compressor,
		cipher:     cipher,
	}
}

func (w *BundleWriter) ID() uint64 {
	return w.id
}

func (w *BundleWriter) Empty() bool {
	return len(w.blocks) == 0
}

func (w *BundleWriter) Count() int {
	return len(w.blocks)
}

// PayloadSize is the raw (uncompressed) payload accumulated so far.
func (w *BundleWriter) PayloadSize() uint64 {
	return uint64(w.payload.Len())
}

// Fits reports whether a chunk of n bytes can still go into this bundle
// without breaching the payload limit. An empty bundle accepts any chunk
// the configuration allows, so a single chunk can never be unstorable.
func (w *BundleWriter) Fits(n int) bool {
	if w.Empty() {
		return true
	}
	return w.PayloadSize()+uint64(n) <= w.maxPayload
}

// Add appends a chunk and returns the location it will have once the
// bundle is sealed. Callers must check Fits first; Add refuses to breach
// the payload limit.
func (w *BundleWriter) Add(fp string, data []byte) (Location, error) {
	if len(fp) != FPSize {
		return Location{}, fmt.Errorf("bad fingerprint length %d", len(fp))
	}
	if !w.Fits(len(data)) {
		return Location{}, ErrBundleFull
	}
	loc := Location{
		BundleID: w.id,
		Offset:   w.PayloadSize(),
		Length:   uint32(len(data)),
	}
	var block BlockHeader
	copy(block.FP[:], fp)
	block.Offset = loc.Offset
	block.Len = loc.Length
	block.CRC = internal.CalculateCRC32(data)
	w.payload.Write(data)
	w.blocks = append(w.blocks, block)
	w.entries = append(w.entries, IndexEntry{FP: fp, Loc: loc})
	return loc, nil
}

// Entries returns the index entries for the chunks added so far. The
// writer persists them as this bundle's segment after the file lands.
func (w *BundleWriter) Entries() []IndexEntry {
	return w.entries
}

// Seal compresses and encrypts the payload and the directory footer and
// returns the complete bundle image ready to be written out.
func (w *BundleWriter) Seal() ([]byte, error) {
	if w.Empty() {
		return nil, fmt.Errorf("refusing to seal empty bundle %d", w.id)
	}
	rawSize := w.PayloadSize()
	payloadBlock, err := w.encode(w.payload.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload of bundle %d: %w", w.id, err)
	}
	footer, err := internal.SerializeToString(w.blocks)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize directory of bundle %d: %w", w.id, err)
	}
	footerBlock, err := w.encode([]byte(footer))
	if err != nil {
		return nil, fmt.Errorf("failed to encode directory of bundle %d: %w", w.id, err)
	}

	var buf bytes.Buffer
	buf.Grow(bundleHeaderSize + len(payloadBlock) + len(footerBlock) + bundleTrailerSize)
	buf.Write(BundleMagic[:])
	putUInt32(&buf, BundleVersion)
	buf.WriteByte(byte(w.compressor.Type()))
	buf.WriteByte(byte(w.cipher.Type()))
	putUInt64(&buf, uint64(len(payloadBlock)))
	putUInt64(&buf, rawSize)
	buf.Write(payloadBlock)
	footerOffset := uint64(buf.Len())
	buf.Write(footerBlock)
	putUInt64(&buf, footerOffset)
	return buf.Bytes(), nil
}

func (w *BundleWriter) encode(data []byte) ([]byte, error) {
	compressed, err := w.compressor.Compress(data)
	if err != nil {
		return nil, err
	}
	return w.cipher.Encrypt(compressed)
}
