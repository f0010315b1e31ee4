package sstable

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/kanjiru/lsmkv/bloom"
	"github.com/kanjiru/lsmkv/bufferpool"
	"github.com/kanjiru/lsmkv/compression"
)

// EntryIterator is the minimal shape WriteSorted drains: ascending-key
// entries, one at a time. A skiplist.Iterator satisfies this directly; so
// does the compaction merge iterator.
type EntryIterator interface {
	Valid() bool
	Next()
	Key() string
	Value() string
}

type indexEntry struct {
	lastKey     string
	blockOffset uint64
	blockSize   uint32
}

// WriteSorted streams it's entries, which must already be in ascending key
// order, into a new SST file at path: data blocks targeting BlockTargetSize,
// a sparse index, a bloom filter sized for numKeysHint at p=0.01, and the
// 24-byte footer. Each data block is run through compressor before being
// written; pass nil for no compression. It returns the number of entries
// written. If it is empty, no file is created and (0, nil) is returned —
// callers must not publish a zero-entry SST.
func WriteSorted(path string, it EntryIterator, numKeysHint int, compressor compression.Compressor) (int, error) {
	if numKeysHint < 1 {
		numKeysHint = 1
	}
	filter := bloom.NewFilter(numKeysHint, 0.01)

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("sstable: creating %s: %w", path, err)
	}

	bw := bufio.NewWriter(f)
	var index []indexEntry
	var block bytes.Buffer
	var blockLastKey string
	var offset uint64
	entriesWritten := 0

	flushBlock := func() error {
		if block.Len() == 0 {
			return nil
		}
		uncompressed := block.Bytes()
		uncompressedLen := uint32(len(uncompressed))

		var payload []byte
		tag := byte(0)
		if compressor == nil {
			payload = uncompressed
		} else {
			scratch := bufferpool.GetBuffer(len(uncompressed))
			compressed, t, err := compression.CompressBlock(compressor, scratch, uncompressed)
			if err != nil {
				bufferpool.PutBuffer(scratch)
				return fmt.Errorf("sstable: compressing block: %w", err)
			}
			payload = compressed
			tag = t
		}

		var header [BlockHeaderSize]byte
		header[0] = tag
		binary.BigEndian.PutUint32(header[1:5], uncompressedLen)
		if _, err := bw.Write(header[:]); err != nil {
			return err
		}
		if _, err := bw.Write(payload); err != nil {
			return err
		}
		if compressor != nil {
			bufferpool.PutBuffer(payload)
		}

		size := uint32(BlockHeaderSize) + uint32(len(payload))
		index = append(index, indexEntry{lastKey: blockLastKey, blockOffset: offset, blockSize: size})
		offset += uint64(size)
		block.Reset()
		return nil
	}

	fail := func(err error) (int, error) {
		f.Close()
		os.Remove(path)
		return 0, err
	}

	for it.Valid() {
		key, value := it.Key(), it.Value()
		entry := encodeEntry(key, value)

		// The first entry in a block is admitted unconditionally, so no
		// block is ever emitted empty.
		if block.Len() > 0 && block.Len()+len(entry) > BlockTargetSize {
			if err := flushBlock(); err != nil {
				return fail(fmt.Errorf("sstable: flushing block: %w", err))
			}
		}
		block.Write(entry)
		blockLastKey = key
		filter.Put([]byte(key))
		entriesWritten++
		it.Next()
	}
	if err := flushBlock(); err != nil {
		return fail(fmt.Errorf("sstable: flushing final block: %w", err))
	}

	if entriesWritten == 0 {
		f.Close()
		os.Remove(path)
		return 0, nil
	}

	indexOffset := offset
	indexBytes := encodeIndex(index)
	if _, err := bw.Write(indexBytes); err != nil {
		return fail(fmt.Errorf("sstable: writing index: %w", err))
	}

	bloomOffset := indexOffset + uint64(len(indexBytes))
	if _, err := bw.Write(filter.WriteTo(nil)); err != nil {
		return fail(fmt.Errorf("sstable: writing bloom filter: %w", err))
	}

	var footer [FooterSize]byte
	binary.BigEndian.PutUint64(footer[0:8], indexOffset)
	binary.BigEndian.PutUint64(footer[8:16], bloomOffset)
	binary.BigEndian.PutUint64(footer[16:24], Magic)
	if _, err := bw.Write(footer[:]); err != nil {
		return fail(fmt.Errorf("sstable: writing footer: %w", err))
	}

	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("sstable: flush: %w", err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("sstable: fsync: %w", err))
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("sstable: close: %w", err)
	}

	return entriesWritten, nil
}

// encodeEntry renders a single data-block entry: u32 keyLen; key; u32
// valLen; val.
func encodeEntry(key, value string) []byte {
	buf := make([]byte, 4+len(key)+4+len(value))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(key)))
	copy(buf[4:4+len(key)], key)
	off := 4 + len(key)
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(value)))
	copy(buf[off+4:], value)
	return buf
}

// encodeIndex renders the index block: u32 count; (u32 keyLen; key; u64
// blockOffset; u32 blockSize)^count.
func encodeIndex(entries []indexEntry) []byte {
	var buf bytes.Buffer
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(entries)))
	buf.Write(countBuf[:])

	for _, e := range entries {
		var head [4]byte
		binary.BigEndian.PutUint32(head[:], uint32(len(e.lastKey)))
		buf.Write(head[:])
		buf.WriteString(e.lastKey)

		var rest [12]byte
		binary.BigEndian.PutUint64(rest[0:8], e.blockOffset)
		binary.BigEndian.PutUint32(rest[8:12], e.blockSize)
		buf.Write(rest[:])
	}
	return buf.Bytes()
}
