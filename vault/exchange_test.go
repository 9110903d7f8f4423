package vault

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExchangeScope(t *testing.T) {
	scope, err := ParseExchangeScope("backups,index")
	require.NoError(t, err)
	assert.Equal(t, ExchangeBackups|ExchangeIndex, scope)
	assert.Equal(t, "backups,index", scope.String())

	scope, err = ParseExchangeScope("all")
	require.NoError(t, err)
	assert.Equal(t, ExchangeAll, scope)

	_, err = ParseExchangeScope("")
	assert.Error(t, err)
	_, err = ParseExchangeScope("backups,frobnicate")
	assert.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, src := initTestRepo(t, testConfig())
	dstRoot := t.TempDir()
	require.NoError(t, Init(dstRoot, testConfig()))

	stream := randomStream(30, 400<<10)
	_, err := src.Backup(ctx, "payload", bytes.NewReader(stream))
	require.NoError(t, err)

	stats, err := src.Export(ctx, dstRoot, ExchangeAll)
	require.NoError(t, err)
	assert.Greater(t, stats.Copied, 0)
	assert.Equal(t, 0, stats.Skipped)

	// A second export finds everything already in place.
	stats, err = src.Export(ctx, dstRoot, ExchangeAll)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Copied)
	assert.Greater(t, stats.Skipped, 0)

	dst, err := Open(dstRoot, testConfig())
	require.NoError(t, err)
	defer dst.Close()
	var out bytes.Buffer
	require.NoError(t, dst.Restore(ctx, "payload", &out))
	assert.True(t, bytes.Equal(stream, out.Bytes()))
}

func TestExportRequiresInitializedDestination(t *testing.T) {
	_, src := initTestRepo(t, testConfig())
	_, err := src.Export(context.Background(), t.TempDir(), ExchangeAll)
	assert.Error(t, err)
}

func TestImportMergesIndex(t *testing.T) {
	ctx := context.Background()
	_, src := initTestRepo(t, testConfig())
	_, dst := initTestRepo(t, testConfig())

	stream := randomStream(31, 300<<10)
	_, err := src.Backup(ctx, "from-src", bytes.NewReader(stream))
	require.NoError(t, err)

	_, err = dst.Import(ctx, src.Root(), ExchangeAll)
	require.NoError(t, err)

	// Without reopening, the imported backup restores and its chunks
	// dedup against the merged index.
	var out bytes.Buffer
	require.NoError(t, dst.Restore(ctx, "from-src", &out))
	assert.True(t, bytes.Equal(stream, out.Bytes()))

	stats, err := dst.Backup(ctx, "again", bytes.NewReader(stream))
	require.NoError(t, err)
	assert.Equal(t, 0, stats.NewChunkCount)
}

func TestExportScopedToBackups(t *testing.T) {
	ctx := context.Background()
	_, src := initTestRepo(t, testConfig())
	dstRoot := t.TempDir()
	require.NoError(t, Init(dstRoot, testConfig()))

	_, err := src.Backup(ctx, "only-meta", bytes.NewReader(randomStream(32, 100<<10)))
	require.NoError(t, err)

	_, err = src.Export(ctx, dstRoot, ExchangeBackups)
	require.NoError(t, err)

	// Descriptors came across but bundles and index did not; restoring
	// such a backup must abort on the first unresolvable fingerprint.
	dst, err := Open(dstRoot, testConfig())
	require.NoError(t, err)
	defer dst.Close()
	err = dst.Restore(ctx, "only-meta", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrFingerprintNotFound)
}
