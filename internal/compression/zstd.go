package compression

import (
	"github.com/klauspost/compress/zstd"
)

// ZstdCompressor implements the Compressor interface using Zstandard.
type ZstdCompressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstd returns a new ZstdCompressor.
func NewZstd() *ZstdCompressor {
	// Errors are only possible with bad options, none are passed here.
	enc, _ := zstd.NewWriter(nil)
	dec, _ := zstd.NewReader(nil)
	return &ZstdCompressor{enc: enc, dec: dec}
}

// Type returns the compression type.
func (c *ZstdCompressor) Type() CompressionType {
	return Compress_zstd
}

// TypeString returns the compression type string.
func (c *ZstdCompressor) TypeString() string {
	return "zstd"
}

// Compress compresses data using Zstandard.
func (c *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, nil), nil
}

// Decompress decompresses data using Zstandard.
func (c *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	decompressed, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, err
	}
	if decompressed == nil {
		return []byte{}, nil
	}
	return decompressed, nil
}
