package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zhengshuai-xiao/VaultS/internal"
)

// The storage pipeline turns an ordered chunk stream into bundle files
// and index segments:
//
//	chunker -> fingerprint workers -> assembler -> compressors -> writer
//
// Fingerprinting and compression fan out across Threads goroutines; the
// assembler and the writer are single goroutines that restore stream
// order with sequence numbers. All channels are bounded, so a slow stage
// backpressures the chunker instead of buffering the whole stream.
type pipeline struct {
	repo    *Repository
	threads int

	ctx    context.Context
	cancel context.CancelFunc

	chunkCh  chan *Chunk
	fpCh     chan *Chunk
	bundleCh chan *bundleJob
	readyCh  chan *sealedBundle

	fpWG   sync.WaitGroup
	compWG sync.WaitGroup
	asmWG  sync.WaitGroup
	wrWG   sync.WaitGroup

	failOnce sync.Once
	failErr  error

	// Owned by the assembler.
	entries []DescriptorEntry

	statsMu sync.Mutex
	stats   PipelineStats
}

// PipelineStats accumulates what one backup run did.
type PipelineStats struct {
	StreamSize    uint64
	NewBytes      uint64
	DedupBytes    uint64
	StoredBytes   uint64
	ChunkCount    int
	NewChunkCount int
	BundleCount   int
}

type bundleJob struct {
	seq uint64
	w   *BundleWriter
}

type sealedBundle struct {
	seq     uint64
	id      uint64
	data    []byte
	entries []IndexEntry
}

func newPipeline(ctx context.Context, r *Repository) *pipeline {
	pctx, cancel := context.WithCancel(ctx)
	threads := r.conf.Threads
	return &pipeline{
		repo:     r,
		threads:  threads,
		ctx:      pctx,
		cancel:   cancel,
		chunkCh:  make(chan *Chunk, threads*4),
		fpCh:     make(chan *Chunk, threads*4),
		bundleCh: make(chan *bundleJob, threads),
		readyCh:  make(chan *sealedBundle, threads),
	}
}

// fail records the first error and cancels every stage. Later calls keep
// the original cause.
func (p *pipeline) fail(err error) {
	p.failOnce.Do(func() {
		p.failErr = err
		p.cancel()
	})
}

func (p *pipeline) start() {
	for i := 0; i < p.threads; i++ {
		p.fpWG.Add(1)
		go p.fpWorker()
	}
	go func() {
		p.fpWG.Wait()
		close(p.fpCh)
	}()
	p.asmWG.Add(1)
	go p.assembler()
	for i := 0; i < p.threads; i++ {
		p.compWG.Add(1)
		go p.compressor()
	}
	go func() {
		p.compWG.Wait()
		close(p.readyCh)
	}()
	p.wrWG.Add(1)
	go p.writer()
}

// submit hands one chunk from the chunker to the pipeline.
func (p *pipeline) submit(c *Chunk) error {
	select {
	case p.chunkCh <- c:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// wait closes the input and blocks until every stage drained. It returns
// the first error any stage hit, or the context's if the caller bailed.
func (p *pipeline) wait() (*PipelineStats, []DescriptorEntry, error) {
	close(p.chunkCh)
	p.wrWG.Wait()
	err := p.failErr
	if err == nil {
		err = p.ctx.Err()
	}
	p.cancel()
	if err != nil {
		return nil, nil, err
	}
	return &p.stats, p.entries, nil
}

// fpWorker computes fingerprints and probes the index so that known
// chunks drop their payload before they reach the assembler. The probe
// is advisory: the winner of a concurrent race is decided by the writer
// when it registers the finished bundle.
func (p *pipeline) fpWorker() {
	defer p.fpWG.Done()
	for {
		var c *Chunk
		var ok bool
		select {
		case c, ok = <-p.chunkCh:
			if !ok {
				return
			}
		case <-p.ctx.Done():
			return
		}
		c.FP = CalcFP(c.Data)
		if _, found := p.repo.idx.Lookup(c.FP); found {
			c.Deduped = true
			c.Data = nil
		}
		select {
		case p.fpCh <- c:
		case <-p.ctx.Done():
			return
		}
	}
}

// assembler is the single stage that sees chunks in stream order again.
// It owns the current bundle and rolls to a new one when the payload
// limit would be breached. The index is never touched here: fingerprints
// enter it only after their bundle is durable, so a failed or interrupted
// run cannot leave entries pointing at data that was never written. The
// inflight set catches repeats of a chunk whose bundle is still in
// flight through the compressors.
func (p *pipeline) assembler() {
	defer p.asmWG.Done()
	defer close(p.bundleCh)

	var cur *BundleWriter
	var bundleSeq uint64
	pending := make(map[uint64]*Chunk)
	var nextSeq uint64
	inflight := make(map[string]struct{})

	sealCurrent := func() bool {
		job := &bundleJob{seq: bundleSeq, w: cur}
		bundleSeq++
		cur = nil
		select {
		case p.bundleCh <- job:
			return true
		case <-p.ctx.Done():
			return false
		}
	}

	process := func(c *Chunk) bool {
		p.entries = append(p.entries, descriptorEntry(c))
		p.statsMu.Lock()
		p.stats.ChunkCount++
		p.stats.StreamSize += uint64(c.Len)
		p.statsMu.Unlock()
		if c.Deduped {
			p.addDedupBytes(uint64(c.Len))
			return true
		}
		if _, ok := inflight[c.FP]; ok {
			// Repeat of a chunk already placed in an unfinished bundle.
			p.addDedupBytes(uint64(c.Len))
			return true
		}
		if _, found := p.repo.idx.Lookup(c.FP); found {
			// Registered after the fingerprint worker's probe.
			p.addDedupBytes(uint64(c.Len))
			return true
		}
		if cur != nil && !cur.Fits(len(c.Data)) {
			if !sealCurrent() {
				return false
			}
		}
		if cur == nil {
			id, err := p.repo.idx.NextBundleID()
			if err != nil {
				p.fail(err)
				return false
			}
			cur = NewBundleWriter(id, p.repo.conf.BundleMaxPayloadSize, p.repo.compressor, p.repo.cipher)
		}
		inflight[c.FP] = struct{}{}
		if _, err := cur.Add(c.FP, c.Data); err != nil {
			p.fail(err)
			return false
		}
		p.statsMu.Lock()
		p.stats.NewChunkCount++
		p.stats.NewBytes += uint64(c.Len)
		p.statsMu.Unlock()
		return true
	}

	for {
		var c *Chunk
		var ok bool
		select {
		case c, ok = <-p.fpCh:
		case <-p.ctx.Done():
			return
		}
		if !ok {
			break
		}
		pending[c.Seq] = c
		for {
			next, ready := pending[nextSeq]
			if !ready {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if !process(next) {
				return
			}
		}
	}
	if len(pending) > 0 {
		p.fail(fmt.Errorf("stream ended with %d chunks unaccounted for", len(pending)))
		return
	}
	if cur != nil && !cur.Empty() {
		sealCurrent()
	}
}

func (p *pipeline) addDedupBytes(n uint64) {
	p.statsMu.Lock()
	p.stats.DedupBytes += n
	p.statsMu.Unlock()
}

func descriptorEntry(c *Chunk) DescriptorEntry {
	var e DescriptorEntry
	copy(e.FP[:], c.FP)
	e.Len = c.Len
	return e
}

// compressor seals bundles (compress, encrypt, frame) in parallel.
func (p *pipeline) compressor() {
	defer p.compWG.Done()
	for {
		var job *bundleJob
		var ok bool
		select {
		case job, ok = <-p.bundleCh:
			if !ok {
				return
			}
		case <-p.ctx.Done():
			return
		}
		data, err := job.w.Seal()
		if err != nil {
			p.fail(err)
			return
		}
		sb := &sealedBundle{seq: job.seq, id: job.w.ID(), data: data, entries: job.w.Entries()}
		select {
		case p.readyCh <- sb:
		case <-p.ctx.Done():
			return
		}
	}
}

// writer lands sealed bundles one at a time, in bundle order: temp file,
// rename, publish through the backend, and only then register the
// fingerprints and write the bundle's index segment. Registration after
// the durable write means a failed bundle leaves the index untouched, so
// a retried backup stores the chunks again instead of deduplicating
// against data that never landed. A crash can leave an unregistered
// bundle file but never an index entry without data.
func (p *pipeline) writer() {
	defer p.wrWG.Done()
	pending := make(map[uint64]*sealedBundle)
	var nextSeq uint64
	for sb := range p.readyCh {
		if p.ctx.Err() != nil {
			continue
		}
		pending[sb.seq] = sb
		for {
			next, ready := pending[nextSeq]
			if !ready {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := p.writeBundle(next); err != nil {
				p.fail(err)
				break
			}
		}
	}
}

func (p *pipeline) writeBundle(sb *sealedBundle) error {
	key := GetBundleKey(sb.id)
	path := filepath.Join(p.repo.bundlesDir(), filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := atomicWriteFile(path, sb.data); err != nil {
		return err
	}
	if err := p.repo.backend.Put(p.ctx, key, path); err != nil {
		os.Remove(path)
		return err
	}
	// The bundle is durable; claim its fingerprints. Entries lost to a
	// concurrent writer are left out of the segment so the index keeps a
	// single location per fingerprint.
	winners := make([]IndexEntry, 0, len(sb.entries))
	for _, e := range sb.entries {
		won, err := p.repo.idx.InsertIfAbsent(e.FP, e.Loc)
		if err != nil {
			return err
		}
		if won {
			winners = append(winners, e)
		}
	}
	if len(winners) == 0 {
		// Every chunk was registered elsewhere in the meantime; the
		// whole bundle is redundant.
		return p.repo.backend.Delete(context.Background(), key)
	}
	if err := p.repo.idx.WriteSegment(sb.id, winners); err != nil {
		return err
	}
	p.statsMu.Lock()
	p.stats.StoredBytes += uint64(len(sb.data))
	p.stats.BundleCount++
	p.statsMu.Unlock()
	logger.Debugf("wrote bundle %d: %d chunks, %s on disk",
		sb.id, len(winners), internal.FormatBytes(uint64(len(sb.data))))
	return nil
}
