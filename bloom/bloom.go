// Package bloom implements a serializable Bloom filter with zero false
// negatives, sized from an expected insertion count and a target false
// positive probability, and a Murmur3-backed double-hashing scheme for
// picking the k bit positions per key.
package bloom

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Filter is a bit-array membership filter. It supports Put and MightContain
// only — Bloom filters have no delete.
type Filter struct {
	numHashes  uint32
	bitSetSize uint32 // number of bits, m
	bits       []byte
}

// NewFilter sizes a filter for n expected insertions at false-positive
// probability p, per the standard optimal-m/optimal-k formulas:
//
//	m = ceil(-n*ln(p) / (ln 2)^2)
//	k = max(1, round((m/n) * ln 2))
func NewFilter(n int, p float64) *Filter {
	if n < 1 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}

	m := int64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	if m < 1 {
		m = 1
	}

	k := int(math.Round((float64(m) / float64(n)) * math.Ln2))
	if k < 1 {
		k = 1
	}

	return &Filter{
		numHashes:  uint32(k),
		bitSetSize: uint32(m),
		bits:       make([]byte, (m+7)/8),
	}
}

// bitPositions returns the k bit indexes for key, derived by double-hashing:
// h1 = murmur3(key, 0), h2 = murmur3(key, h1), and the i-th position is
// |h1 + i*h2| mod m, with the sign-extended 32-bit hashes combined in 64-bit
// arithmetic so the addition can't itself overflow before the complement.
func (f *Filter) bitPositions(key []byte) []uint32 {
	h1u := Sum32(key, 0)
	h2u := Sum32(key, h1u)
	h1 := int64(int32(h1u))
	h2 := int64(int32(h2u))

	m := int64(f.bitSetSize)
	positions := make([]uint32, f.numHashes)
	for i := uint32(0); i < f.numHashes; i++ {
		combined := h1 + int64(i)*h2
		if combined < 0 {
			combined = ^combined
		}
		positions[i] = uint32(combined % m)
	}
	return positions
}

func (f *Filter) setBit(pos uint32) {
	f.bits[pos/8] |= 1 << (pos % 8)
}

func (f *Filter) testBit(pos uint32) bool {
	return f.bits[pos/8]&(1<<(pos%8)) != 0
}

// Put sets the k bits for key.
func (f *Filter) Put(key []byte) {
	for _, pos := range f.bitPositions(key) {
		f.setBit(pos)
	}
}

// MightContain returns false only if key was definitely never Put: the
// false-negative rate is exactly zero. It returns true for keys that were
// inserted and, with probability bounded by the configured p, for some keys
// that were not.
func (f *Filter) MightContain(key []byte) bool {
	for _, pos := range f.bitPositions(key) {
		if !f.testBit(pos) {
			return false
		}
	}
	return true
}

// NumHashes returns k, the number of hash functions (bit positions per key).
func (f *Filter) NumHashes() uint32 { return f.numHashes }

// BitSetSize returns m, the number of bits in the filter.
func (f *Filter) BitSetSize() uint32 { return f.bitSetSize }

// EncodedSize returns the exact number of bytes WriteTo will emit.
func (f *Filter) EncodedSize() int {
	return 4 + 4 + 4 + len(f.bits)
}

// WriteTo appends the filter's wire encoding to dst and returns the result:
// numHashes (u32), bitSetSize (u32), byte length of the bit array (u32),
// then the raw bits.
func (f *Filter) WriteTo(dst []byte) []byte {
	var hdr [12]byte
	binary.BigEndian.PutUint32(hdr[0:4], f.numHashes)
	binary.BigEndian.PutUint32(hdr[4:8], f.bitSetSize)
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(f.bits)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, f.bits...)
	return dst
}

// ReadFilter decodes a filter previously written by WriteTo from the head of
// data, returning the filter and the number of bytes consumed.
func ReadFilter(data []byte) (*Filter, int, error) {
	if len(data) < 12 {
		return nil, 0, fmt.Errorf("bloom: truncated header (have %d bytes)", len(data))
	}
	numHashes := binary.BigEndian.Uint32(data[0:4])
	bitSetSize := binary.BigEndian.Uint32(data[4:8])
	byteLen := binary.BigEndian.Uint32(data[8:12])

	end := 12 + int(byteLen)
	if len(data) < end {
		return nil, 0, fmt.Errorf("bloom: truncated bit array (want %d bytes, have %d)", byteLen, len(data)-12)
	}

	bits := make([]byte, byteLen)
	copy(bits, data[12:end])

	return &Filter{
		numHashes:  numHashes,
		bitSetSize: bitSetSize,
		bits:       bits,
	}, end, nil
}
