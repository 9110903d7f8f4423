package vault

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/zhengshuai-xiao/VaultS/internal"
	"github.com/zhengshuai-xiao/VaultS/pkg/cdc"
)

// Backup consumes the stream, deduplicates it and stores a descriptor
// under name. The descriptor is written last, so an interrupted backup
// leaves no visible entry, only reusable chunks.
func (r *Repository) Backup(ctx context.Context, name string, stream io.Reader) (*PipelineStats, error) {
	if err := ValidBackupName(name); err != nil {
		return nil, err
	}
	if internal.Exists(filepath.Join(r.backupsDir(), name)) {
		return nil, fmt.Errorf("%w: %s", ErrBackupExists, name)
	}
	start := time.Now()

	chunker, err := cdc.NewChunker(stream, cdc.Options{
		MinSize:     int(r.conf.ChunkMinSize()),
		AverageSize: int(r.conf.ChunkAvgSize()),
		MaxSize:     int(r.conf.ChunkMaxSize),
	})
	if err != nil {
		return nil, err
	}

	p := newPipeline(ctx, r)
	p.start()
	var seq uint64
	for {
		chunk, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.fail(fmt.Errorf("failed to read stream: %w", err))
			break
		}
		// The chunker reuses its buffer; the pipeline owns a copy.
		data := make([]byte, chunk.Length)
		copy(data, chunk.Data)
		c := &Chunk{Seq: seq, Data: data, Len: uint32(chunk.Length)}
		seq++
		if err := p.submit(c); err != nil {
			break
		}
	}
	stats, entries, err := p.wait()
	if err != nil {
		return nil, err
	}

	d := &Descriptor{
		Name:       name,
		CreatedAt:  time.Now().UTC(),
		StreamSize: stats.StreamSize,
		Entries:    entries,
	}
	if err := writeDescriptorFile(r.backupsDir(), d); err != nil {
		return nil, fmt.Errorf("failed to write descriptor %s: %w", name, err)
	}

	elapsed := time.Since(start)
	logger.Infof("backup %s: %s in %d chunks, %d new (%s), %s deduplicated, %d bundles, %s stored, took %v",
		name, internal.FormatBytes(stats.StreamSize), stats.ChunkCount,
		stats.NewChunkCount, internal.FormatBytes(stats.NewBytes),
		internal.FormatBytes(stats.DedupBytes), stats.BundleCount,
		internal.FormatBytes(stats.StoredBytes), elapsed)
	return stats, nil
}
