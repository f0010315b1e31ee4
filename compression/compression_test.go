package compression

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeString(t *testing.T) {
	cases := []struct {
		typ  Type
		want string
	}{
		{None, "none"},
		{Snappy, "snappy"},
		{Zstd, "zstd"},
		{S2, "s2"},
		{Type(99), "unknown"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, c.typ.String())
	}
}

func TestNoneCompressorRoundTrip(t *testing.T) {
	c, err := NewCompressor(NoCompressionConfig())
	require.NoError(t, err)
	require.Equal(t, None, c.Type())

	src := []byte("hello world")
	compressed, wasCompressed, err := c.Compress(nil, src)
	require.NoError(t, err)
	require.False(t, wasCompressed)
	require.Equal(t, src, compressed)

	decompressed, err := c.Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, src, decompressed)
}

func repeatingPayload() []byte {
	return []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 200))
}

func TestS2CompressorRoundTrip(t *testing.T) {
	c, err := NewCompressor(Config{Type: S2})
	require.NoError(t, err)

	src := repeatingPayload()
	compressed, ok, err := c.Compress(nil, src)
	require.NoError(t, err)
	require.True(t, ok)
	require.Less(t, len(compressed), len(src))

	decompressed, err := c.Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, src, decompressed)
}

func TestSnappyCompressorRoundTrip(t *testing.T) {
	c, err := NewCompressor(Config{Type: Snappy})
	require.NoError(t, err)

	src := repeatingPayload()
	compressed, ok, err := c.Compress(nil, src)
	require.NoError(t, err)
	require.True(t, ok)

	decompressed, err := c.Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, src, decompressed)
}

func TestZstdCompressorRoundTrip(t *testing.T) {
	c := NewZstdCompressor(0, ZstdDefault)
	require.Equal(t, Zstd, c.Type())

	src := repeatingPayload()
	compressed, ok, err := c.Compress(nil, src)
	require.NoError(t, err)
	require.True(t, ok)
	require.Less(t, len(compressed), len(src))

	decompressed, err := c.Decompress(nil, compressed)
	require.NoError(t, err)
	require.Equal(t, src, decompressed)
}

func TestMinReductionPercentFallsBackToRawBytes(t *testing.T) {
	c, err := NewCompressor(Config{Type: S2, MinReductionPercent: 99})
	require.NoError(t, err)

	src := []byte("short")
	compressed, ok, err := c.Compress(nil, src)
	require.NoError(t, err)
	require.False(t, ok, "a 99%% reduction threshold should reject nearly any real compressor output")
	require.Equal(t, src, compressed)
}

func TestCompressBlockSkipsSmallBlocks(t *testing.T) {
	c, err := NewCompressor(Config{Type: S2})
	require.NoError(t, err)

	src := []byte("tiny block under the 1KiB floor")
	out, tag, err := CompressBlock(c, nil, src)
	require.NoError(t, err)
	require.Equal(t, BlockNone, tag)
	require.Equal(t, src, out)
}

func TestCompressBlockAndDecompressBlockRoundTrip(t *testing.T) {
	c, err := NewCompressor(Config{Type: S2})
	require.NoError(t, err)

	src := repeatingPayload()
	out, tag, err := CompressBlock(c, nil, src)
	require.NoError(t, err)
	require.Equal(t, BlockS2, tag)

	decoded, err := DecompressBlock(nil, out, tag)
	require.NoError(t, err)
	require.Equal(t, src, decoded)
}

func TestNewCompressorRejectsUnknownType(t *testing.T) {
	_, err := NewCompressor(Config{Type: Type(99)})
	require.Error(t, err)
}
