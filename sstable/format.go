// Package sstable implements the on-disk sorted-string-table format: data
// blocks, a sparse index, a bloom filter, and a fixed-size footer. It
// provides both the writer that streams a frozen memtable (or a compaction
// merge) into a file, and the reader/iterator pair that consumes one.
package sstable

// Magic identifies a well-formed SST file. It sits in the last 8 bytes of
// the footer; any other value there means the file is corrupt or foreign.
const Magic uint64 = 0x123456789ABCDEF0

// FooterSize is the exact, fixed size of the trailing footer: two u64
// offsets plus the u64 magic.
const FooterSize = 24

// BlockTargetSize is the running-byte-count threshold the writer rolls a
// new data block at. It is a target, not a hard cap: the entry that would
// cross it is still admitted to the block that's already open if that
// block is otherwise empty, so no block is ever emitted with zero entries.
// It bounds the uncompressed payload; the on-disk block (after BlockHeaderSize
// and whatever compression.CompressBlock does to it) is usually smaller.
const BlockTargetSize = 4096

// BlockHeaderSize is the fixed header every on-disk data block carries
// ahead of its (possibly compressed) payload: a 1-byte compression block
// tag (compression.BlockNone, BlockSnappy, ...) and a 4-byte uncompressed length, used to size the decompression
// destination buffer before the payload is even read.
const BlockHeaderSize = 5

// TombstoneValue is the sentinel stored for a deleted key. The skip list,
// the SST writer, and the store all treat this exact value as "no value
// here", never as real user data.
const TombstoneValue = "!!__TOMBSTONE__!!"
