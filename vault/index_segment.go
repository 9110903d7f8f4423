package vault

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zhengshuai-xiao/VaultS/internal"
)

const (
	idxHeaderSize  = 4 + 4 + 8          // magic, version, entry count
	idxRecordSize  = FPSize + 8 + 8 + 4 // fp, bundle id, offset, length
	idxTrailerSize = 4                  // crc32 over header+records
)

func putUInt32(buf *bytes.Buffer, v uint32) {
	b := internal.UInt32ToBytesLittleEndian(v)
	buf.Write(b[:])
}

func putUInt64(buf *bytes.Buffer, v uint64) {
	b := internal.UInt64ToBytesLittleEndian(v)
	buf.Write(b[:])
}

func getUInt32(b []byte) uint32 {
	return internal.BytesToUInt32LittleEndian([4]byte(b))
}

func getUInt64(b []byte) uint64 {
	return internal.BytesToUInt64LittleEndian([8]byte(b))
}

// atomicWriteFile writes data to a temp file next to path, then renames it
// into place so readers never observe a half-written file.
func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file[%s]: %w", tmp, err)
	}
	if _, err = internal.WriteAll(file, data); err != nil {
		file.Close()
		os.Remove(tmp)
		return err
	}
	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync file[%s]: %w", tmp, err)
	}
	if err = file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close file[%s]: %w", tmp, err)
	}
	if err = os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename file[%s]: %w", tmp, err)
	}
	return nil
}

// encodeSegment serializes index entries into the on-disk segment format:
// a fixed header, fixed-width little-endian records and a CRC32 trailer.
func encodeSegment(entries []IndexEntry) []byte {
	var buf bytes.Buffer
	buf.Grow(idxHeaderSize + len(entries)*idxRecordSize + idxTrailerSize)
	buf.Write(IdxMagic[:])
	putUInt32(&buf, IdxVersion)
	putUInt64(&buf, uint64(len(entries)))
	for _, e := range entries {
		buf.WriteString(e.FP)
		putUInt64(&buf, e.Loc.BundleID)
		putUInt64(&buf, e.Loc.Offset)
		putUInt32(&buf, e.Loc.Length)
	}
	crc := internal.CalculateCRC32(buf.Bytes())
	putUInt32(&buf, crc)
	return buf.Bytes()
}

// decodeSegment parses a segment, verifying magic, version, record count
// and checksum. Any mismatch yields ErrCorruptIndexSegment.
func decodeSegment(data []byte) ([]IndexEntry, error) {
	if len(data) < idxHeaderSize+idxTrailerSize {
		return nil, fmt.Errorf("%w: truncated (%d bytes)", ErrCorruptIndexSegment, len(data))
	}
	if !bytes.Equal(data[:4], IdxMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptIndexSegment)
	}
	version := getUInt32(data[4:8])
	if version != IdxVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndexSegment, version)
	}
	count := getUInt64(data[8:16])
	want := uint64(idxHeaderSize) + count*idxRecordSize + idxTrailerSize
	if uint64(len(data)) != want {
		return nil, fmt.Errorf("%w: size %d does not match %d records", ErrCorruptIndexSegment, len(data), count)
	}
	body := data[:len(data)-idxTrailerSize]
	crc := getUInt32(data[len(data)-idxTrailerSize:])
	if !internal.VerifyCRC32(body, crc) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptIndexSegment)
	}
	entries := make([]IndexEntry, 0, count)
	off := idxHeaderSize
	for i := uint64(0); i < count; i++ {
		rec := data[off : off+idxRecordSize]
		entries = append(entries, IndexEntry{
			FP: string(rec[:FPSize]),
			Loc: Location{
				BundleID: getUInt64(rec[FPSize : FPSize+8]),
				Offset:   getUInt64(rec[FPSize+8 : FPSize+16]),
				Length:   getUInt32(rec[FPSize+16 : FPSize+20]),
			},
		})
		off += idxRecordSize
	}
	return entries, nil
}

// writeSegmentFile persists a segment durably next to the other segments.
func writeSegmentFile(path string, entries []IndexEntry) error {
	return atomicWriteFile(path, encodeSegment(entries))
}

// loadSegmentDir reads every *.idx file under dir in name order and returns
// the merged entries plus the number of segment files read. A segment that
// fails to parse aborts the load.
func loadSegmentDir(dir string) ([]IndexEntry, int, error) {
	dents, err := os.ReadDir(dir)
	if err != nil {
		return nil, 0, err
	}
	names := make([]string, 0, len(dents))
	for _, d := range dents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".idx") {
			continue
		}
		names = append(names, d.Name())
	}
	sort.Strings(names)
	var all []IndexEntry
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, 0, err
		}
		entries, err := decodeSegment(data)
		if err != nil {
			return nil, 0, fmt.Errorf("segment %s: %w", name, err)
		}
		all = append(all, entries...)
	}
	return all, len(names), nil
}
