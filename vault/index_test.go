package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengshuai-xiao/VaultS/internal"
)

func testFP(i int) string {
	return CalcFP([]byte(fmt.Sprintf("chunk-%d", i)))
}

func TestLocalIndexInsertLookup(t *testing.T) {
	idx, err := NewLocalIndex(t.TempDir())
	require.NoError(t, err)

	fp := testFP(1)
	loc := Location{BundleID: 7, Offset: 1024, Length: 512}

	_, ok := idx.Lookup(fp)
	assert.False(t, ok)
	won, err := idx.InsertIfAbsent(fp, loc)
	require.NoError(t, err)
	assert.True(t, won)
	won, err = idx.InsertIfAbsent(fp, Location{BundleID: 8})
	require.NoError(t, err)
	assert.False(t, won)

	got, ok := idx.Lookup(fp)
	require.True(t, ok)
	assert.Equal(t, loc, got)
	assert.Equal(t, 1, idx.Count())
}

func TestLocalIndexInsertIfAbsentRace(t *testing.T) {
	idx, err := NewLocalIndex(t.TempDir())
	require.NoError(t, err)

	const workers = 16
	fp := testFP(42)
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			<-start
			if won, _ := idx.InsertIfAbsent(fp, Location{BundleID: uint64(id)}); won {
				wins.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, 1, idx.Count())
}

func TestSegmentRoundTrip(t *testing.T) {
	entries := []IndexEntry{
		{FP: testFP(1), Loc: Location{BundleID: 1, Offset: 0, Length: 100}},
		{FP: testFP(2), Loc: Location{BundleID: 1, Offset: 100, Length: 200}},
		{FP: testFP(3), Loc: Location{BundleID: 2, Offset: 0, Length: 50}},
	}
	got, err := decodeSegment(encodeSegment(entries))
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	empty, err := decodeSegment(encodeSegment(nil))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSegmentCorruption(t *testing.T) {
	entries := []IndexEntry{{FP: testFP(1), Loc: Location{BundleID: 1, Length: 10}}}
	data := encodeSegment(entries)

	cases := map[string][]byte{
		"truncated":    data[:len(data)-5],
		"bad magic":    append([]byte("XXXX"), data[4:]...),
		"flipped byte": flipByte(data, idxHeaderSize+3),
		"short":        {0x01, 0x02},
	}
	for name, corrupt := range cases {
		_, err := decodeSegment(corrupt)
		assert.ErrorIs(t, err, ErrCorruptIndexSegment, name)
	}
}

func flipByte(data []byte, i int) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	out[i] ^= 0xff
	return out
}

func TestLocalIndexPersistence(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewLocalIndex(dir)
	require.NoError(t, err)

	entries := []IndexEntry{
		{FP: testFP(1), Loc: Location{BundleID: 3, Offset: 0, Length: 10}},
		{FP: testFP(2), Loc: Location{BundleID: 3, Offset: 10, Length: 20}},
	}
	require.NoError(t, idx.WriteSegment(3, entries))

	reloaded, err := NewLocalIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Count())
	loc, ok := reloaded.Lookup(testFP(2))
	require.True(t, ok)
	assert.Equal(t, Location{BundleID: 3, Offset: 10, Length: 20}, loc)

	// Bundle ids handed out after reload must not collide with stored ones.
	id, err := reloaded.NextBundleID()
	require.NoError(t, err)
	assert.Greater(t, id, uint64(3))
}

func TestLocalIndexCorruptSegmentAbortsOpen(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewLocalIndex(dir)
	require.NoError(t, err)
	require.NoError(t, idx.WriteSegment(1, []IndexEntry{{FP: testFP(1), Loc: Location{BundleID: 1, Length: 5}}}))

	path := filepath.Join(dir, GetSegmentName(1))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0644))

	_, err = NewLocalIndex(dir)
	assert.ErrorIs(t, err, ErrCorruptIndexSegment)
}

func TestLocalIndexRemoveBundles(t *testing.T) {
	dir := t.TempDir()
	idx, err := NewLocalIndex(dir)
	require.NoError(t, err)

	keep := []IndexEntry{{FP: testFP(1), Loc: Location{BundleID: 1, Length: 10}}}
	drop := []IndexEntry{
		{FP: testFP(2), Loc: Location{BundleID: 2, Length: 20}},
		{FP: testFP(3), Loc: Location{BundleID: 2, Offset: 20, Length: 30}},
	}
	for _, e := range append(keep, drop...) {
		won, err := idx.InsertIfAbsent(e.FP, e.Loc)
		require.NoError(t, err)
		require.True(t, won)
	}
	require.NoError(t, idx.WriteSegment(1, keep))
	require.NoError(t, idx.WriteSegment(2, drop))

	dead := internal.NewUInt64Set()
	dead.Add(2)
	require.NoError(t, idx.RemoveBundles(dead))

	assert.Equal(t, 1, idx.Count())
	_, ok := idx.Lookup(testFP(2))
	assert.False(t, ok)

	// The survivors must come back from the consolidated segment alone.
	reloaded, err := NewLocalIndex(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Count())
	_, ok = reloaded.Lookup(testFP(1))
	assert.True(t, ok)
}

func TestLocalIndexNextBundleIDMonotonic(t *testing.T) {
	idx, err := NewLocalIndex(t.TempDir())
	require.NoError(t, err)
	a, err := idx.NextBundleID()
	require.NoError(t, err)
	b, err := idx.NextBundleID()
	require.NoError(t, err)
	assert.Greater(t, b, a)
}
