package vault

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/zhengshuai-xiao/VaultS/internal"
)

// GCStats reports what one garbage collection pass reclaimed.
type GCStats struct {
	BundlesScanned int
	BundlesDeleted int
	ChunksDropped  int
	BytesReclaimed uint64
}

// GarbageCollect removes bundles no descriptor references anymore. The
// unit of reclamation is the whole bundle: a bundle survives as long as
// any live backup references at least one of its chunks. Dead bundles
// lose their index entries first, then their files, so a crash between
// the two leaves an unregistered file, never a dangling index entry.
func (r *Repository) GarbageCollect(ctx context.Context) (*GCStats, error) {
	start := time.Now()
	names, err := listDescriptors(r.backupsDir())
	if err != nil {
		return nil, err
	}
	live := make(map[string]struct{})
	for _, name := range names {
		d, err := readDescriptorFile(r.backupsDir(), name)
		if err != nil {
			return nil, err
		}
		for _, e := range d.Entries {
			live[string(e.FP[:])] = struct{}{}
		}
	}

	liveBundles := internal.NewUInt64Set()
	for fp := range live {
		loc, ok := r.idx.Lookup(fp)
		if !ok {
			return nil, ErrFingerprintNotFound
		}
		liveBundles.Add(loc.BundleID)
	}

	stats := &GCStats{}
	dead := internal.NewUInt64Set()
	r.idx.Range(func(fp string, loc Location) bool {
		if !liveBundles.Contains(loc.BundleID) {
			dead.Add(loc.BundleID)
			stats.ChunksDropped++
		}
		return true
	})
	ids, err := r.listBundleFiles()
	if err != nil {
		return nil, err
	}
	stats.BundlesScanned = len(ids)
	if dead.Len() == 0 {
		logger.Infof("gc: nothing to reclaim (%d bundles, %d live fingerprints)", len(ids), len(live))
		return stats, nil
	}

	if err := r.idx.RemoveBundles(dead); err != nil {
		return nil, err
	}
	for _, id := range dead.Elements() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		key := GetBundleKey(id)
		path := filepath.Join(r.bundlesDir(), filepath.FromSlash(key))
		if st, err := os.Stat(path); err == nil {
			stats.BytesReclaimed += uint64(st.Size())
		}
		if err := r.backend.Delete(ctx, key); err != nil {
			return nil, err
		}
		stats.BundlesDeleted++
	}
	logger.Infof("gc: deleted %d of %d bundles, dropped %d index entries, reclaimed %s, took %v",
		stats.BundlesDeleted, stats.BundlesScanned, stats.ChunksDropped,
		internal.FormatBytes(stats.BytesReclaimed), time.Since(start))
	return stats, nil
}
