// Package compression provides pluggable block compression for SST data
// blocks. Every algorithm is backed by klauspost/compress, so swapping
// Type never changes the module's dependency surface.
package compression

import "fmt"

// Type identifies a compression algorithm. It is not written to disk
// itself: CompressBlock maps it to one of the Block* tags below, and that
// tag is the byte stored ahead of every data block.
type Type uint8

const (
	// None stores blocks without compression.
	None Type = iota
	// Snappy trades compression ratio for speed.
	Snappy
	// Zstd gives the best ratio, at more CPU per block.
	Zstd
	// S2 is Snappy-compatible but faster, with a better ratio.
	S2
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	case Zstd:
		return "zstd"
	case S2:
		return "s2"
	default:
		return "unknown"
	}
}

// Compressor compresses and decompresses data blocks for one algorithm.
type Compressor interface {
	// Compress compresses src into dst and reports whether the result was
	// worth keeping over the raw bytes.
	Compress(dst, src []byte) ([]byte, bool, error)
	// Decompress decompresses src into dst.
	Decompress(dst, src []byte) ([]byte, error)
	Type() Type
}

// Config selects an algorithm and the minimum reduction a block must show
// to be stored compressed.
type Config struct {
	Type Type
	// MinReductionPercent: blocks that don't shrink by at least this much
	// are stored uncompressed, to avoid paying decode cost for nothing.
	MinReductionPercent uint8
	// ZstdLevel only applies when Type is Zstd.
	ZstdLevel ZstdLevel
}

// DefaultConfig compresses with S2: fast enough to run on every flush and
// compaction without becoming the bottleneck.
func DefaultConfig() Config {
	return Config{Type: S2, MinReductionPercent: 12}
}

// NoCompressionConfig disables block compression entirely.
func NoCompressionConfig() Config {
	return Config{Type: None}
}

// NewCompressor builds the Compressor named by cfg.Type.
func NewCompressor(cfg Config) (Compressor, error) {
	switch cfg.Type {
	case None:
		return &noneCompressor{}, nil
	case Snappy:
		return NewSnappyCompressor(cfg.MinReductionPercent), nil
	case Zstd:
		return NewZstdCompressor(cfg.MinReductionPercent, cfg.ZstdLevel), nil
	case S2:
		return NewS2Compressor(cfg.MinReductionPercent), nil
	default:
		return nil, fmt.Errorf("compression: unknown type %d", cfg.Type)
	}
}

type noneCompressor struct{}

func (c *noneCompressor) Compress(dst, src []byte) ([]byte, bool, error) {
	return append(dst[:0], src...), false, nil
}

func (c *noneCompressor) Decompress(dst, src []byte) ([]byte, error) {
	return append(dst[:0], src...), nil
}

func (c *noneCompressor) Type() Type { return None }

// Block-header compression-type tags, stored as the single byte ahead of
// every data block on disk. These are independent of Type's values so the
// on-disk format never shifts if Type gains a member.
const (
	BlockNone   uint8 = 0
	BlockSnappy uint8 = 1
	BlockZstd   uint8 = 2
	BlockS2     uint8 = 3
)

// CompressBlock compresses src with compressor and returns the bytes to
// write to disk along with the tag for the block header. Blocks under 1KiB
// are left uncompressed: the encoder's own overhead would eat the saving.
func CompressBlock(compressor Compressor, dst, src []byte) ([]byte, uint8, error) {
	const minCompressionSize = 1024
	if len(src) < minCompressionSize {
		return append(dst[:0], src...), BlockNone, nil
	}

	compressed, ok, err := compressor.Compress(dst, src)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return compressed, BlockNone, nil
	}

	switch compressor.Type() {
	case Snappy:
		return compressed, BlockSnappy, nil
	case Zstd:
		return compressed, BlockZstd, nil
	case S2:
		return compressed, BlockS2, nil
	default:
		return compressed, BlockNone, nil
	}
}

// DecompressBlock reverses CompressBlock given the tag stored in the block
// header.
func DecompressBlock(dst, src []byte, tag uint8) ([]byte, error) {
	switch tag {
	case BlockNone:
		return append(dst[:0], src...), nil
	case BlockSnappy:
		return DecompressSnappy(dst, src)
	case BlockZstd:
		return DecompressZstd(dst, src)
	case BlockS2:
		return DecompressS2(dst, src)
	default:
		return nil, fmt.Errorf("compression: unknown block tag %d", tag)
	}
}
