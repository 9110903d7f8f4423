package vault

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/zhengshuai-xiao/VaultS/internal"
)

// Restore streams the named backup into w, byte-identical to what Backup
// consumed. It resolves every fingerprint through the index before
// touching any bundle, so a damaged repository fails fast instead of
// emitting a partial stream.
func (r *Repository) Restore(ctx context.Context, name string, w io.Writer) error {
	if err := ValidBackupName(name); err != nil {
		return err
	}
	d, err := readDescriptorFile(r.backupsDir(), name)
	if err != nil {
		return err
	}
	start := time.Now()

	locs := make([]Location, len(d.Entries))
	for i, e := range d.Entries {
		fp := string(e.FP[:])
		loc, ok := r.idx.Lookup(fp)
		if !ok {
			return fmt.Errorf("%w: backup %s chunk %d (fp %s)",
				ErrFingerprintNotFound, name, i, internal.StringToHex(fp))
		}
		if loc.Length != e.Len {
			return fmt.Errorf("%w: backup %s chunk %d length %d, index says %d",
				ErrCorruptIndexSegment, name, i, e.Len, loc.Length)
		}
		locs[i] = loc
	}

	cache := NewBundleCache(r.conf.CacheSize)
	var written uint64
	for i, e := range d.Entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		loc := locs[i]
		br, ok := cache.Get(loc.BundleID)
		if !ok {
			path, err := r.backend.Fetch(ctx, GetBundleKey(loc.BundleID))
			if err != nil {
				return err
			}
			br, err = OpenBundle(path, loc.BundleID, r.cipher)
			if err != nil {
				return err
			}
			cache.Put(br)
		}
		data, err := br.ReadChunk(string(e.FP[:]))
		if err != nil {
			return err
		}
		if uint32(len(data)) != e.Len {
			return fmt.Errorf("%w: chunk %d of backup %s came back %d bytes, descriptor says %d",
				ErrCorruptBundle, i, name, len(data), e.Len)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write stream: %w", err)
		}
		written += uint64(len(data))
	}
	if written != d.StreamSize {
		return fmt.Errorf("%w: backup %s restored %d bytes, descriptor says %d",
			ErrCorruptBundle, name, written, d.StreamSize)
	}
	logger.Infof("restore %s: %s in %d chunks, %d bundles cached at peak, took %v",
		name, internal.FormatBytes(written), len(d.Entries), cache.Len(), time.Since(start))
	return nil
}
