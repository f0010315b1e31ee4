package sstable

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Iterator walks a single SST file's data blocks in ascending key order
// through its own private file handle, independent of any Reader or block
// cache — a full sequential scan has no business evicting hot entries from
// the shared cache. It is used only by compaction's streaming merge.
type Iterator struct {
	f     *os.File
	index []indexEntry

	blockIdx int
	block    []byte
	pos      int

	key, value string
	valid      bool
}

// NewIterator opens a fresh handle on r's file and positions the iterator
// at the first entry, if any.
func (r *Reader) NewIterator() (*Iterator, error) {
	if r.empty {
		return &Iterator{valid: false}, nil
	}

	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("sstable: opening %s for iteration: %w", r.path, err)
	}

	it := &Iterator{f: f, index: r.index}
	if err := it.loadBlock(0); err != nil {
		f.Close()
		return nil, err
	}
	it.advance()
	return it, nil
}

// loadBlock reads and decompresses the block at index idx into it.block,
// positioned at offset 0. idx at or past the end of the index leaves
// it.block nil, which advance treats as exhaustion.
func (it *Iterator) loadBlock(idx int) error {
	if idx >= len(it.index) {
		it.block = nil
		it.blockIdx = idx
		return nil
	}

	entry := it.index[idx]
	raw := make([]byte, entry.blockSize)
	if _, err := it.f.ReadAt(raw, int64(entry.blockOffset)); err != nil {
		return fmt.Errorf("sstable: iterator reading block %d: %w", idx, err)
	}
	block, err := decodeBlock(raw)
	if err != nil {
		return err
	}

	it.block = block
	it.blockIdx = idx
	it.pos = 0
	return nil
}

// advance positions the iterator on the next entry after it.pos, rolling
// over to subsequent blocks as each one is exhausted. A truncated trailing
// record within a block — which should never occur on a well-formed file —
// is treated the same as that block's exhaustion.
func (it *Iterator) advance() {
	for {
		if it.block == nil {
			it.valid = false
			return
		}
		if it.pos+4 > len(it.block) {
			if err := it.loadBlock(it.blockIdx + 1); err != nil {
				it.valid = false
				return
			}
			continue
		}

		keyLen := int(binary.BigEndian.Uint32(it.block[it.pos : it.pos+4]))
		p := it.pos + 4
		if p+keyLen+4 > len(it.block) {
			if err := it.loadBlock(it.blockIdx + 1); err != nil {
				it.valid = false
				return
			}
			continue
		}
		key := string(it.block[p : p+keyLen])
		p += keyLen

		valLen := int(binary.BigEndian.Uint32(it.block[p : p+4]))
		p += 4
		if p+valLen > len(it.block) {
			if err := it.loadBlock(it.blockIdx + 1); err != nil {
				it.valid = false
				return
			}
			continue
		}
		value := string(it.block[p : p+valLen])
		p += valLen

		it.key, it.value = key, value
		it.pos = p
		it.valid = true
		return
	}
}

// Valid reports whether the iterator is positioned on a real entry.
func (it *Iterator) Valid() bool { return it.valid }

// Next advances to the next entry.
func (it *Iterator) Next() { it.advance() }

// Key returns the current entry's key. Valid must be true.
func (it *Iterator) Key() string { return it.key }

// Value returns the current entry's value. Valid must be true.
func (it *Iterator) Value() string { return it.value }

// Close releases the iterator's private file handle.
func (it *Iterator) Close() error {
	if it.f == nil {
		return nil
	}
	return it.f.Close()
}
