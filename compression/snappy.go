package compression

import (
	"fmt"

	"github.com/klauspost/compress/snappy"
)

type snappyCompressor struct {
	minReductionPercent uint8
}

// NewSnappyCompressor creates a Snappy-backed Compressor.
func NewSnappyCompressor(minReductionPercent uint8) Compressor {
	return &snappyCompressor{minReductionPercent: minReductionPercent}
}

func (c *snappyCompressor) Compress(dst, src []byte) ([]byte, bool, error) {
	compressed := snappy.Encode(dst, src)

	if c.minReductionPercent > 0 {
		reductionPercent := (len(src) - len(compressed)) * 100 / len(src)
		if reductionPercent < int(c.minReductionPercent) {
			return append(dst[:0], src...), false, nil
		}
	}
	return compressed, true, nil
}

func (c *snappyCompressor) Decompress(dst, src []byte) ([]byte, error) {
	decompressed, err := snappy.Decode(dst, src)
	if err != nil {
		return nil, fmt.Errorf("snappy decompression failed: %w", err)
	}
	return decompressed, nil
}

func (c *snappyCompressor) Type() Type { return Snappy }

// DecompressSnappy decompresses Snappy-compressed data directly.
func DecompressSnappy(dst, src []byte) ([]byte, error) {
	decompressed, err := snappy.Decode(dst, src)
	if err != nil {
		return nil, fmt.Errorf("snappy decompression failed: %w", err)
	}
	return decompressed, nil
}
