package compression

// NoneCompressor implements the Compressor interface as a plain store.
// It exists so that the bundle codec does not need a special case for
// uncompressed payloads.
type NoneCompressor struct{}

// NewNone returns a new NoneCompressor.
func NewNone() *NoneCompressor {
	return &NoneCompressor{}
}

// Type returns the compression type.
func (c *NoneCompressor) Type() CompressionType {
	return Compress_none
}

// TypeString returns the compression type string.
func (c *NoneCompressor) TypeString() string {
	return "none"
}

// Compress returns the data unchanged.
func (c *NoneCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns the data unchanged.
func (c *NoneCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}
