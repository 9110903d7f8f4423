// Package cdc implements content-defined chunking with a rolling checksum.
//
// A chunk boundary is declared wherever the low bits of a rolling checksum
// over a small sliding window are all ones, so boundaries depend only on
// nearby content. Inserting or deleting bytes in a stream perturbs chunk
// boundaries only around the edit; everything else re-chunks identically,
// which is what makes downstream deduplication effective across similar
// streams.
package cdc

import (
	"errors"
	"io"
	"math/bits"
)

const (
	windowBits = 6
	windowSize = 1 << windowBits
	charOffset = 31

	// Sanity bounds for chunk sizes.
	absoluteMinSize = 64
	absoluteMaxSize = 1 << 30
)

// Options control chunk sizing. AverageSize selects the boundary mask and
// must lie between MinSize and MaxSize; MinSize suppresses degenerate tiny
// chunks and MaxSize forces a boundary when no natural one appears.
type Options struct {
	AverageSize int
	MinSize     int
	MaxSize     int
	// BufSize overrides the internal read buffer size. It must be at least
	// MaxSize; the default is twice MaxSize.
	BufSize int
}

// Chunk is one piece of the input stream. Data is a view into the chunker's
// internal buffer and is only valid until the next call to Next.
type Chunk struct {
	Data   []byte
	Offset int
	Length int
}

// Chunker splits a reader into content-defined chunks.
type Chunker struct {
	r    io.Reader
	opts Options
	mask uint32

	buf    []byte
	start  int // beginning of the unconsumed region
	filled int // end of valid data in buf
	eof    bool

	offset int // stream offset of buf[start]

	// rolling state, reset at every chunk boundary
	s1, s2 uint32
	window [windowSize]byte
	wofs   int
}

func (o *Options) validate() error {
	if o.AverageSize == 0 {
		return errors.New("cdc: AverageSize must be set")
	}
	if o.MinSize < absoluteMinSize {
		return errors.New("cdc: MinSize is too small")
	}
	if o.MaxSize > absoluteMaxSize {
		return errors.New("cdc: MaxSize is too large")
	}
	if o.MinSize >= o.MaxSize {
		return errors.New("cdc: MinSize must be smaller than MaxSize")
	}
	if o.AverageSize < o.MinSize || o.AverageSize > o.MaxSize {
		return errors.New("cdc: AverageSize must lie between MinSize and MaxSize")
	}
	if o.BufSize != 0 && o.BufSize < o.MaxSize {
		return errors.New("cdc: BufSize must be at least MaxSize")
	}
	return nil
}

// NewChunker creates a chunker reading from r. The same input with the same
// options always produces the same chunk boundaries.
func NewChunker(r io.Reader, opts Options) (*Chunker, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.BufSize == 0 {
		opts.BufSize = 2 * opts.MaxSize
	}
	splitBits := bits.Len(uint(opts.AverageSize)) - 1
	c := &Chunker{
		r:    r,
		opts: opts,
		mask: (1 << uint(splitBits)) - 1,
		buf:  make([]byte, opts.BufSize),
	}
	c.resetWindow()
	return c, nil
}

func (c *Chunker) resetWindow() {
	c.s1 = windowSize * charOffset
	c.s2 = windowSize * (windowSize - 1) * charOffset
	c.wofs = 0
	for i := range c.window {
		c.window[i] = 0
	}
}

func (c *Chunker) roll(b byte) {
	drop := c.window[c.wofs]
	c.s1 += uint32(b) - uint32(drop)
	c.s2 += c.s1 - windowSize*uint32(drop+charOffset)
	c.window[c.wofs] = b
	c.wofs = (c.wofs + 1) & (windowSize - 1)
}

func (c *Chunker) atBoundary() bool {
	digest := (c.s1 << 16) | (c.s2 & 0xffff)
	return digest&c.mask == c.mask
}

// fill slides the unconsumed region to the front of the buffer and reads
// until the buffer is full or the stream ends.
func (c *Chunker) fill() error {
	if c.start > 0 {
		copy(c.buf, c.buf[c.start:c.filled])
		c.filled -= c.start
		c.start = 0
	}
	for !c.eof && c.filled < len(c.buf) {
		n, err := c.r.Read(c.buf[c.filled:])
		c.filled += n
		if err == io.EOF {
			c.eof = true
		} else if err != nil {
			return err
		}
	}
	return nil
}

// Next returns the next chunk, or io.EOF once the stream is exhausted.
// The returned Data slice is only valid until the following call.
func (c *Chunker) Next() (Chunk, error) {
	if c.filled-c.start < c.opts.MaxSize && !c.eof {
		if err := c.fill(); err != nil {
			return Chunk{}, err
		}
	}
	avail := c.filled - c.start
	if avail == 0 {
		return Chunk{}, io.EOF
	}

	// The window state never crosses a chunk boundary, including a forced
	// one at MaxSize; this keeps re-chunking of identical content
	// position-independent.
	c.resetWindow()

	end := avail
	if end > c.opts.MaxSize {
		end = c.opts.MaxSize
	}
	cut := end
	for i := 0; i < end; i++ {
		c.roll(c.buf[c.start+i])
		if i+1 >= c.opts.MinSize && c.atBoundary() {
			cut = i + 1
			break
		}
	}

	chunk := Chunk{
		Data:   c.buf[c.start : c.start+cut],
		Offset: c.offset,
		Length: cut,
	}
	c.start += cut
	c.offset += cut
	return chunk, nil
}
