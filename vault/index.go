package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/zhengshuai-xiao/VaultS/internal"
)

// Index maps chunk fingerprints to their physical locations. Lookup and
// InsertIfAbsent are safe for concurrent use; InsertIfAbsent is the only
// way to claim a fingerprint, so concurrent writers racing on the same
// chunk see exactly one winner.
type Index interface {
	Lookup(fp string) (Location, bool)
	// InsertIfAbsent records fp at loc unless fp is already known.
	// It returns true if this call inserted the entry, false if another
	// writer holds the fingerprint. A non-nil error means the outcome is
	// unknown and the caller must not treat the chunk as stored.
	InsertIfAbsent(fp string, loc Location) (bool, error)
	// WriteSegment durably records the entries a finished bundle
	// introduced.
	WriteSegment(bundleID uint64, entries []IndexEntry) error
	// NextBundleID allocates a bundle id never handed out before.
	NextBundleID() (uint64, error)
	// Range calls f for every entry until f returns false. Entries
	// inserted concurrently may or may not be visited.
	Range(f func(fp string, loc Location) bool)
	// RemoveBundles drops every entry pointing into one of the given
	// bundles and rewrites the durable segments accordingly.
	RemoveBundles(dead *internal.UInt64Set) error
	Count() int
	Close() error
}

const indexShards = 256

type indexShard struct {
	sync.RWMutex
	m map[string]Location
}

// LocalIndex is the default index backend: a sharded in-memory map backed
// by append-only segment files under the repository's index directory.
type LocalIndex struct {
	dir    string
	shards [indexShards]indexShard
	nextID atomic.Uint64
}

// NewLocalIndex loads every segment under dir. A corrupt segment aborts
// the load; the repository cannot be trusted without a complete index.
func NewLocalIndex(dir string) (*LocalIndex, error) {
	idx := &LocalIndex{dir: dir}
	for i := range idx.shards {
		idx.shards[i].m = make(map[string]Location)
	}
	entries, segments, err := loadSegmentDir(dir)
	if err != nil {
		return nil, err
	}
	var maxID uint64
	for _, e := range entries {
		idx.InsertIfAbsent(e.FP, e.Loc)
		if e.Loc.BundleID > maxID {
			maxID = e.Loc.BundleID
		}
	}
	idx.nextID.Store(maxID)
	logger.Infof("loaded index: %d entries, %d segments scanned", idx.Count(), segments)
	return idx, nil
}

func (idx *LocalIndex) shard(fp string) *indexShard {
	return &idx.shards[fp[0]]
}

func (idx *LocalIndex) Lookup(fp string) (Location, bool) {
	s := idx.shard(fp)
	s.RLock()
	loc, ok := s.m[fp]
	s.RUnlock()
	return loc, ok
}

func (idx *LocalIndex) InsertIfAbsent(fp string, loc Location) (bool, error) {
	s := idx.shard(fp)
	s.Lock()
	defer s.Unlock()
	if _, ok := s.m[fp]; ok {
		return false, nil
	}
	s.m[fp] = loc
	return true, nil
}

func (idx *LocalIndex) WriteSegment(bundleID uint64, entries []IndexEntry) error {
	return writeSegmentFile(filepath.Join(idx.dir, GetSegmentName(bundleID)), entries)
}

func (idx *LocalIndex) NextBundleID() (uint64, error) {
	return idx.nextID.Add(1), nil
}

func (idx *LocalIndex) Range(f func(fp string, loc Location) bool) {
	for i := range idx.shards {
		s := &idx.shards[i]
		s.RLock()
		for fp, loc := range s.m {
			if !f(fp, loc) {
				s.RUnlock()
				return
			}
		}
		s.RUnlock()
	}
}

// RemoveBundles filters the in-memory map, writes one consolidated segment
// holding the survivors, then deletes the superseded segment files. The
// consolidated segment lands before the old ones go away, so a crash in
// between leaves duplicates, never losses.
func (idx *LocalIndex) RemoveBundles(dead *internal.UInt64Set) error {
	var kept []IndexEntry
	for i := range idx.shards {
		s := &idx.shards[i]
		s.Lock()
		for fp, loc := range s.m {
			if dead.Contains(loc.BundleID) {
				delete(s.m, fp)
			} else {
				kept = append(kept, IndexEntry{FP: fp, Loc: loc})
			}
		}
		s.Unlock()
	}
	dents, err := os.ReadDir(idx.dir)
	if err != nil {
		return err
	}
	consolidated := fmt.Sprintf("%s.idx", uuid.New().String())
	if err := writeSegmentFile(filepath.Join(idx.dir, consolidated), kept); err != nil {
		return err
	}
	for _, d := range dents {
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".idx") {
			continue
		}
		if err := os.Remove(filepath.Join(idx.dir, d.Name())); err != nil {
			return fmt.Errorf("failed to remove segment %s: %w", d.Name(), err)
		}
	}
	logger.Infof("consolidated index into %s: %d entries kept", consolidated, len(kept))
	return nil
}

func (idx *LocalIndex) Count() int {
	n := 0
	for i := range idx.shards {
		s := &idx.shards[i]
		s.RLock()
		n += len(s.m)
		s.RUnlock()
	}
	return n
}

func (idx *LocalIndex) Close() error {
	return nil
}
