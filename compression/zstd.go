package compression

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ZstdLevel selects a speed/ratio tradeoff for NewZstdCompressor.
type ZstdLevel int

const (
	ZstdFastest ZstdLevel = 1
	ZstdDefault ZstdLevel = 3
	ZstdBetter  ZstdLevel = 6
	ZstdBest    ZstdLevel = 9
)

type zstdCompressor struct {
	minReductionPercent uint8
	encoderPool         sync.Pool
	decoderPool         sync.Pool
}

// NewZstdCompressor creates a Zstd-backed Compressor at the given level,
// pooling encoders and decoders since they're expensive to construct.
func NewZstdCompressor(minReductionPercent uint8, level ZstdLevel) Compressor {
	var encoderLevel zstd.EncoderLevel
	switch level {
	case ZstdFastest:
		encoderLevel = zstd.SpeedFastest
	case ZstdBetter:
		encoderLevel = zstd.SpeedBetterCompression
	case ZstdBest:
		encoderLevel = zstd.SpeedBestCompression
	default:
		encoderLevel = zstd.SpeedDefault
	}

	c := &zstdCompressor{minReductionPercent: minReductionPercent}
	c.encoderPool.New = func() any {
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(encoderLevel),
			zstd.WithLowerEncoderMem(true),
			zstd.WithWindowSize(1<<20),
		)
		if err != nil {
			panic(fmt.Sprintf("compression: constructing zstd encoder: %v", err))
		}
		return enc
	}
	c.decoderPool.New = func() any {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			panic(fmt.Sprintf("compression: constructing zstd decoder: %v", err))
		}
		return dec
	}
	return c
}

func (c *zstdCompressor) Compress(dst, src []byte) ([]byte, bool, error) {
	encoder := c.encoderPool.Get().(*zstd.Encoder)
	defer c.encoderPool.Put(encoder)

	compressed := encoder.EncodeAll(src, dst[:0])

	if c.minReductionPercent > 0 {
		reductionPercent := (len(src) - len(compressed)) * 100 / len(src)
		if reductionPercent < int(c.minReductionPercent) {
			return append(dst[:0], src...), false, nil
		}
	}
	return compressed, true, nil
}

func (c *zstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	decoder := c.decoderPool.Get().(*zstd.Decoder)
	defer c.decoderPool.Put(decoder)

	decompressed, err := decoder.DecodeAll(src, dst[:0])
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return decompressed, nil
}

func (c *zstdCompressor) Type() Type { return Zstd }

// DecompressZstd decompresses Zstd-compressed data directly.
func DecompressZstd(dst, src []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer decoder.Close()

	decompressed, err := decoder.DecodeAll(src, dst[:0])
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return decompressed, nil
}
