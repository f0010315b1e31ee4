package compression

import (
	"fmt"

	"github.com/klauspost/compress/s2"
)

type s2Compressor struct {
	minReductionPercent uint8
}

// NewS2Compressor creates an S2-backed Compressor.
func NewS2Compressor(minReductionPercent uint8) Compressor {
	return &s2Compressor{minReductionPercent: minReductionPercent}
}

func (c *s2Compressor) Compress(dst, src []byte) ([]byte, bool, error) {
	compressed := s2.Encode(dst, src)

	if c.minReductionPercent > 0 {
		reductionPercent := (len(src) - len(compressed)) * 100 / len(src)
		if reductionPercent < int(c.minReductionPercent) {
			return append(dst[:0], src...), false, nil
		}
	}
	return compressed, true, nil
}

func (c *s2Compressor) Decompress(dst, src []byte) ([]byte, error) {
	decompressed, err := s2.Decode(dst, src)
	if err != nil {
		return nil, fmt.Errorf("s2 decompression failed: %w", err)
	}
	return decompressed, nil
}

func (c *s2Compressor) Type() Type { return S2 }

// DecompressS2 decompresses S2-compressed data directly, for callers that
// already know the block tag and want to skip building a Compressor.
func DecompressS2(dst, src []byte) ([]byte, error) {
	decompressed, err := s2.Decode(dst, src)
	if err != nil {
		return nil, fmt.Errorf("s2 decompression failed: %w", err)
	}
	return decompressed, nil
}
