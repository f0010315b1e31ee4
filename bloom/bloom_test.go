package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMightContainNoFalseNegatives(t *testing.T) {
	f := NewFilter(1000, 0.01)

	keys := make([][]byte, 1000)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("key-%d", i))
		f.Put(keys[i])
	}

	for _, k := range keys {
		require.True(t, f.MightContain(k), "false negative for %q", k)
	}
}

func TestMightContainFalsePositiveRateIsBounded(t *testing.T) {
	const n = 10000
	const p = 0.01

	f := NewFilter(n, p)
	for i := 0; i < n; i++ {
		f.Put([]byte(fmt.Sprintf("present-%d", i)))
	}

	falsePositives := 0
	trials := 10000
	for i := 0; i < trials; i++ {
		if f.MightContain([]byte(fmt.Sprintf("absent-%d", i))) {
			falsePositives++
		}
	}

	rate := float64(falsePositives) / float64(trials)
	require.Less(t, rate, p*5, "empirical FPP %v exceeds 5x target %v", rate, p)
}

func TestWriteToReadFilterRoundTrip(t *testing.T) {
	f := NewFilter(500, 0.01)
	for i := 0; i < 500; i++ {
		f.Put([]byte(fmt.Sprintf("k%d", i)))
	}

	encoded := f.WriteTo(nil)
	require.Len(t, encoded, f.EncodedSize())

	decoded, n, err := ReadFilter(encoded)
	require.NoError(t, err)
	require.Equal(t, len(encoded), n)
	require.Equal(t, f.NumHashes(), decoded.NumHashes())
	require.Equal(t, f.BitSetSize(), decoded.BitSetSize())

	for i := 0; i < 500; i++ {
		require.True(t, decoded.MightContain([]byte(fmt.Sprintf("k%d", i))))
	}
}

func TestReadFilterTruncated(t *testing.T) {
	_, _, err := ReadFilter([]byte{1, 2, 3})
	require.Error(t, err)

	f := NewFilter(10, 0.01)
	encoded := f.WriteTo(nil)
	_, _, err = ReadFilter(encoded[:len(encoded)-1])
	require.Error(t, err)
}

func TestSum32Deterministic(t *testing.T) {
	a := Sum32([]byte("hello world"), 0)
	b := Sum32([]byte("hello world"), 0)
	require.Equal(t, a, b)

	c := Sum32([]byte("hello world"), 1)
	require.NotEqual(t, a, c)
}
