package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetCompressor(t *testing.T) {
	t.Run("GetCompressorViaString", func(t *testing.T) {
		// Test valid types
		c, err := GetCompressorViaString("zlib")
		assert.NoError(t, err)
		assert.IsType(t, &ZlibCompressor{}, c)

		c, err = GetCompressorViaString("snappy")
		assert.NoError(t, err)
		assert.IsType(t, &SnappyCompressor{}, c)

		c, err = GetCompressorViaString("zstd")
		assert.NoError(t, err)
		assert.IsType(t, &ZstdCompressor{}, c)

		c, err = GetCompressorViaString("none")
		assert.NoError(t, err)
		assert.IsType(t, &NoneCompressor{}, c)

		// Test invalid type
		c, err = GetCompressorViaString("invalid")
		assert.Error(t, err)
		assert.Equal(t, ErrInvalidCompressionType, err)
		assert.Nil(t, c)
	})

	t.Run("GetCompressorViaType", func(t *testing.T) {
		c, err := GetCompressorViaType(Compress_zlib)
		assert.NoError(t, err)
		assert.IsType(t, &ZlibCompressor{}, c)

		c, err = GetCompressorViaType(Compress_snappy)
		assert.NoError(t, err)
		assert.IsType(t, &SnappyCompressor{}, c)

		c, err = GetCompressorViaType(Compress_none)
		assert.NoError(t, err)
		assert.IsType(t, &NoneCompressor{}, c)

		// Test invalid type
		c, err = GetCompressorViaType(99)
		assert.Error(t, err)
		assert.Equal(t, ErrInvalidCompressionType, err)
		assert.Nil(t, c)
	})
}

// Every registered method must round-trip arbitrary binary data.
func TestRoundTripAllMethods(t *testing.T) {
	payload := bytes.Repeat([]byte("deduplication works best on repeated data. "), 256)
	payload = append(payload, 0x00, 0xFF, 0x42)

	for name := range CompressionMethods {
		t.Run(name, func(t *testing.T) {
			c, err := GetCompressorViaString(name)
			assert.NoError(t, err)
			assert.Equal(t, name, c.TypeString())

			compressed, err := c.Compress(payload)
			assert.NoError(t, err)

			decompressed, err := c.Decompress(compressed)
			assert.NoError(t, err)
			assert.Equal(t, payload, decompressed)
		})
	}
}
