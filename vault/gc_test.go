package vault

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGarbageCollectNothingToDo(t *testing.T) {
	_, r := initTestRepo(t, testConfig())
	ctx := context.Background()
	_, err := r.Backup(ctx, "only", bytes.NewReader(randomStream(20, 256<<10)))
	require.NoError(t, err)

	stats, err := r.GarbageCollect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.BundlesDeleted)

	var out bytes.Buffer
	require.NoError(t, r.Restore(ctx, "only", &out))
}

func TestGarbageCollectReclaimsDeadBundles(t *testing.T) {
	root, r := initTestRepo(t, testConfig())
	ctx := context.Background()

	keepStream := randomStream(21, 256<<10)
	_, err := r.Backup(ctx, "keep", bytes.NewReader(keepStream))
	require.NoError(t, err)
	dropStats, err := r.Backup(ctx, "drop", bytes.NewReader(randomStream(22, 256<<10)))
	require.NoError(t, err)
	require.Greater(t, dropStats.BundleCount, 0)

	// Deleting the descriptor is how a backup is forgotten; its chunks
	// become garbage for the next collection.
	require.NoError(t, os.Remove(filepath.Join(root, BackupDir, "drop")))

	stats, err := r.GarbageCollect(ctx)
	require.NoError(t, err)
	assert.Equal(t, dropStats.BundleCount, stats.BundlesDeleted)
	assert.Equal(t, dropStats.NewChunkCount, stats.ChunksDropped)
	assert.Greater(t, stats.BytesReclaimed, uint64(0))

	var out bytes.Buffer
	require.NoError(t, r.Restore(ctx, "keep", &out))
	assert.True(t, bytes.Equal(keepStream, out.Bytes()))

	// The repository must stay openable: no bundle file without index
	// entries, no index entry without its bundle.
	r.Close()
	r2, err := Open(root, testConfig())
	require.NoError(t, err)
	defer r2.Close()
	out.Reset()
	require.NoError(t, r2.Restore(context.Background(), "keep", &out))
	assert.True(t, bytes.Equal(keepStream, out.Bytes()))
}

func TestGarbageCollectKeepsSharedBundles(t *testing.T) {
	root, r := initTestRepo(t, testConfig())
	ctx := context.Background()

	// Both backups reference the same chunks, so forgetting one must
	// not reclaim anything.
	stream := randomStream(23, 256<<10)
	_, err := r.Backup(ctx, "a", bytes.NewReader(stream))
	require.NoError(t, err)
	_, err = r.Backup(ctx, "b", bytes.NewReader(stream))
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, BackupDir, "a")))
	stats, err := r.GarbageCollect(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.BundlesDeleted)

	var out bytes.Buffer
	require.NoError(t, r.Restore(ctx, "b", &out))
	assert.True(t, bytes.Equal(stream, out.Bytes()))
}
