package vault

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zhengshuai-xiao/VaultS/internal"
)

// DescriptorEntry records one chunk reference in stream order. Length is
// carried redundantly with the index so restore can size its writes and
// cross-check the chunk it gets back.
type DescriptorEntry struct {
	FP  [FPSize]byte
	Len uint32
}

// Descriptor is the recipe for one backup: the ordered fingerprints whose
// concatenation reproduces the original stream.
type Descriptor struct {
	Name       string
	CreatedAt  time.Time
	StreamSize uint64
	Entries    []DescriptorEntry
}

const bakHeaderSize = 4 + 4

// encodeDescriptor frames the gob-encoded descriptor with magic and
// version so a foreign or damaged file is rejected before decoding.
func encodeDescriptor(d *Descriptor) ([]byte, error) {
	body, err := internal.SerializeToString(d)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize descriptor %s: %w", d.Name, err)
	}
	var buf bytes.Buffer
	buf.Grow(bakHeaderSize + len(body))
	buf.Write(BakMagic[:])
	putUInt32(&buf, BakVersion)
	buf.WriteString(body)
	return buf.Bytes(), nil
}

func decodeDescriptor(data []byte) (*Descriptor, error) {
	if len(data) < bakHeaderSize {
		return nil, fmt.Errorf("descriptor truncated (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:4], BakMagic[:]) {
		return nil, fmt.Errorf("not a backup descriptor: bad magic")
	}
	version := getUInt32(data[4:8])
	if version != BakVersion {
		return nil, fmt.Errorf("unsupported descriptor version %d", version)
	}
	d := &Descriptor{}
	if err := internal.DeserializeFromString(string(data[bakHeaderSize:]), d); err != nil {
		return nil, err
	}
	return d, nil
}

func writeDescriptorFile(dir string, d *Descriptor) error {
	data, err := encodeDescriptor(d)
	if err != nil {
		return err
	}
	return atomicWriteFile(filepath.Join(dir, d.Name), data)
}

func readDescriptorFile(dir, name string) (*Descriptor, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, name)
		}
		return nil, err
	}
	d, err := decodeDescriptor(data)
	if err != nil {
		return nil, fmt.Errorf("descriptor %s: %w", name, err)
	}
	return d, nil
}

// listDescriptors returns the backup names present in dir, sorted.
func listDescriptors(dir string) ([]string, error) {
	dents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, d := range dents {
		if d.IsDir() || filepath.Ext(d.Name()) == ".tmp" {
			continue
		}
		names = append(names, d.Name())
	}
	sort.Strings(names)
	return names, nil
}
