package sstable

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/kanjiru/lsmkv/bloom"
	"github.com/kanjiru/lsmkv/bufferpool"
	"github.com/kanjiru/lsmkv/compression"
)

// ErrCorrupt is wrapped into every error a Reader returns on a malformed
// file: footer magic mismatch, truncated index, or a length prefix that
// overruns the data available.
var ErrCorrupt = errors.New("sstable: corrupt file")

// Reader is a read-only view over one SST file. Readers never hold a
// persistent file handle across calls — Get opens a fresh handle per
// lookup, matching the concurrency contract that multiple callers reading
// the same Reader concurrently must be independent and safe.
type Reader struct {
	path string
	size int64
	empty bool

	indexOffset uint64
	bloomOffset uint64
	index       []indexEntry
	filter      *bloom.Filter

	firstKey string
	lastKey  string

	cache *BlockCache
}

// Open constructs a Reader over path. A file shorter than FooterSize is
// treated as empty: no bloom filter, no index, no first/last key.
func Open(path string, cache *BlockCache) (*Reader, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("sstable: stat %s: %w", path, err)
	}

	r := &Reader{path: path, size: fi.Size(), cache: cache}
	if r.size < FooterSize {
		r.empty = true
		return r, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sstable: opening %s: %w", path, err)
	}
	defer f.Close()

	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, r.size-FooterSize); err != nil {
		return nil, fmt.Errorf("sstable: reading footer of %s: %w", path, err)
	}
	r.indexOffset = binary.BigEndian.Uint64(footer[0:8])
	r.bloomOffset = binary.BigEndian.Uint64(footer[8:16])
	magic := binary.BigEndian.Uint64(footer[16:24])
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic in %s", ErrCorrupt, path)
	}

	bloomLen := r.size - FooterSize - int64(r.bloomOffset)
	if bloomLen < 0 {
		return nil, fmt.Errorf("%w: bloom offset overruns %s", ErrCorrupt, path)
	}
	bloomBytes := make([]byte, bloomLen)
	if _, err := f.ReadAt(bloomBytes, int64(r.bloomOffset)); err != nil {
		return nil, fmt.Errorf("sstable: reading bloom filter of %s: %w", path, err)
	}
	filter, _, err := bloom.ReadFilter(bloomBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: bloom filter of %s: %v", ErrCorrupt, path, err)
	}
	r.filter = filter

	indexLen := int64(r.bloomOffset) - int64(r.indexOffset)
	if indexLen < 0 {
		return nil, fmt.Errorf("%w: index offset overruns %s", ErrCorrupt, path)
	}
	indexBytes := make([]byte, indexLen)
	if _, err := f.ReadAt(indexBytes, int64(r.indexOffset)); err != nil {
		return nil, fmt.Errorf("sstable: reading index of %s: %w", path, err)
	}
	entries, err := decodeIndex(indexBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.index = entries
	r.lastKey = entries[len(entries)-1].lastKey

	firstBlock, err := r.loadBlock(r.index[0])
	if err != nil {
		return nil, fmt.Errorf("sstable: reading first block of %s: %w", path, err)
	}
	if len(firstBlock) < 4 {
		return nil, fmt.Errorf("%w: truncated first block of %s", ErrCorrupt, path)
	}
	keyLen := binary.BigEndian.Uint32(firstBlock[0:4])
	if uint32(len(firstBlock)) < 4+keyLen {
		return nil, fmt.Errorf("%w: truncated first key of %s", ErrCorrupt, path)
	}
	r.firstKey = string(firstBlock[4 : 4+keyLen])

	return r, nil
}

// Path returns the file path this Reader was opened from.
func (r *Reader) Path() string { return r.path }

// Empty reports whether the file has no entries.
func (r *Reader) Empty() bool { return r.empty }

// FirstKey and LastKey bound the key range held in this file. Only valid
// when Empty() is false.
func (r *Reader) FirstKey() string { return r.firstKey }
func (r *Reader) LastKey() string  { return r.lastKey }

// ApproxEntryCount estimates the number of live entries in this file from
// the total data-block bytes recorded in the index, assuming a lower-bound
// entry width of 8 bytes (the two length prefixes with empty key and
// value). It is used only to size a compaction output's bloom filter —
// overestimating there just grows the filter a little, never breaks
// correctness.
func (r *Reader) ApproxEntryCount() int {
	if r.empty {
		return 0
	}
	var totalBytes int64
	for _, e := range r.index {
		totalBytes += int64(e.blockSize)
	}
	return int(totalBytes/8) + 1
}

// InRange reports whether k falls within [FirstKey(), LastKey()].
func (r *Reader) InRange(k string) bool {
	if r.empty {
		return false
	}
	return k >= r.firstKey && k <= r.lastKey
}

// Get performs a point lookup: bloom filter, then binary search over the
// sparse index, then a fetch of the candidate block (through the shared
// block cache), then a linear scan within the block.
func (r *Reader) Get(k string) (value string, found bool, err error) {
	if r.empty {
		return "", false, nil
	}
	if !r.filter.MightContain([]byte(k)) {
		return "", false, nil
	}

	i := sort.Search(len(r.index), func(i int) bool { return r.index[i].lastKey >= k })
	if i == len(r.index) {
		return "", false, nil
	}
	entry := r.index[i]

	block, err := r.loadBlock(entry)
	if err != nil {
		return "", false, err
	}

	return scanBlock(block, k)
}

func (r *Reader) loadBlock(entry indexEntry) ([]byte, error) {
	load := func() ([]byte, error) {
		f, err := os.Open(r.path)
		if err != nil {
			return nil, fmt.Errorf("sstable: opening %s: %w", r.path, err)
		}
		defer f.Close()

		raw := make([]byte, entry.blockSize)
		if _, err := f.ReadAt(raw, int64(entry.blockOffset)); err != nil {
			return nil, fmt.Errorf("sstable: reading block at %d in %s: %w", entry.blockOffset, r.path, err)
		}
		return decodeBlock(raw)
	}

	if r.cache == nil {
		return load()
	}
	return r.cache.GetOrLoad(r.path, entry.blockOffset, load)
}

// decodeBlock strips raw's BlockHeaderSize header and decompresses the
// payload per the tag stored there. raw is a freshly read, exclusively
// owned buffer, so the BlockNone case returns a slice of it directly; the
// compressed cases decompress into a scratch buffer from the shared
// bufferpool, whose lifetime then follows whatever loadBlock's caller (a
// single scan, or the block cache) does with the result.
func decodeBlock(raw []byte) ([]byte, error) {
	if len(raw) < BlockHeaderSize {
		return nil, fmt.Errorf("%w: truncated block header", ErrCorrupt)
	}
	tag := raw[0]
	uncompressedLen := binary.BigEndian.Uint32(raw[1:BlockHeaderSize])
	payload := raw[BlockHeaderSize:]

	if tag == compression.BlockNone {
		return payload, nil
	}

	dst := bufferpool.GetBuffer(int(uncompressedLen))
	decoded, err := compression.DecompressBlock(dst, payload, tag)
	if err != nil {
		return nil, fmt.Errorf("%w: decompressing block: %v", ErrCorrupt, err)
	}
	return decoded, nil
}

// scanBlock linearly parses (keyLen, key, valLen, value) tuples from block,
// returning the value for k if present. A truncated trailing record — which
// should never occur on a well-formed file — simply ends the scan.
func scanBlock(block []byte, k string) (value string, found bool, err error) {
	pos := 0
	for pos+4 <= len(block) {
		keyLen := int(binary.BigEndian.Uint32(block[pos : pos+4]))
		pos += 4
		if pos+keyLen+4 > len(block) {
			break
		}
		key := string(block[pos : pos+keyLen])
		pos += keyLen

		valLen := int(binary.BigEndian.Uint32(block[pos : pos+4]))
		pos += 4
		if pos+valLen > len(block) {
			break
		}
		val := string(block[pos : pos+valLen])
		pos += valLen

		if key == k {
			return val, true, nil
		}
	}
	return "", false, nil
}

// Close is a no-op: a Reader never holds a persistent file handle between
// calls, so there is nothing to release. It exists so callers — namely the
// SST manager during compaction — can follow a uniform
// remove-close-invalidate-delete sequence regardless of what a given
// backing implementation needs to release.
func (r *Reader) Close() error { return nil }

// InvalidateCache removes every block belonging to this file from the
// shared block cache. Callers must invoke this right before deleting the
// underlying file.
func (r *Reader) InvalidateCache() {
	if r.cache != nil {
		r.cache.Invalidate(r.path)
	}
}

func decodeIndex(data []byte) ([]indexEntry, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: truncated index", ErrCorrupt)
	}
	count := binary.BigEndian.Uint32(data[0:4])
	pos := 4

	entries := make([]indexEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("%w: truncated index entry", ErrCorrupt)
		}
		keyLen := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		pos += 4
		if pos+keyLen+12 > len(data) {
			return nil, fmt.Errorf("%w: truncated index entry", ErrCorrupt)
		}
		key := string(data[pos : pos+keyLen])
		pos += keyLen
		offset := binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
		size := binary.BigEndian.Uint32(data[pos : pos+4])
		pos += 4

		entries = append(entries, indexEntry{lastKey: key, blockOffset: offset, blockSize: size})
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: empty index", ErrCorrupt)
	}
	return entries, nil
}
