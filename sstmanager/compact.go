package sstmanager

import (
	"container/heap"
	"fmt"
	"path/filepath"

	"github.com/kanjiru/lsmkv/sstable"
)

// L0CompactionThreshold reports the configured trigger: compaction runs
// once |levels[0]| reaches this count.
func (m *Manager) L0CompactionThreshold() int { return m.l0CompactionThreshold }

type fileRef struct {
	id     int64
	name   string
	reader *sstable.Reader
}

// heapItem is one source file's current front entry in the k-way merge.
type heapItem struct {
	key, value string
	fileID     int64
	it         *sstable.Iterator
}

// mergeHeap orders ascending by key, and for equal keys descending by
// fileID — so a newer file's version of a key is always popped before an
// older file's version of the same key.
type mergeHeap []*heapItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].fileID > h[j].fileID
}
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(*heapItem)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// mergeIterator drains a mergeHeap into a single ascending, deduplicated,
// tombstone-free stream: it satisfies sstable.EntryIterator directly, so
// the output can be written with the same WriteSorted used for a memtable
// flush.
type mergeIterator struct {
	h              mergeHeap
	lastEmitted    string
	haveLastEmit   bool
	key, value     string
	valid          bool
}

func newMergeIterator(files []fileRef) (*mergeIterator, error) {
	mi := &mergeIterator{}
	for _, f := range files {
		it, err := f.reader.NewIterator()
		if err != nil {
			mi.closeHeap()
			return nil, fmt.Errorf("sstmanager: opening iterator over %s: %w", f.name, err)
		}
		if it.Valid() {
			mi.h = append(mi.h, &heapItem{key: it.Key(), value: it.Value(), fileID: f.id, it: it})
		} else {
			it.Close()
		}
	}
	heap.Init(&mi.h)
	mi.advance()
	return mi, nil
}

func (mi *mergeIterator) advance() {
	for mi.h.Len() > 0 {
		top := heap.Pop(&mi.h).(*heapItem)
		key, value, fileID := top.key, top.value, top.fileID

		top.it.Next()
		if top.it.Valid() {
			heap.Push(&mi.h, &heapItem{key: top.it.Key(), value: top.it.Value(), fileID: fileID, it: top.it})
		} else {
			top.it.Close()
		}

		if mi.haveLastEmit && key == mi.lastEmitted {
			// An older version of a key already emitted by a newer file.
			continue
		}
		mi.lastEmitted = key
		mi.haveLastEmit = true

		if value == sstable.TombstoneValue {
			// L0→L1 is the final level here, so a tombstone can be dropped
			// outright instead of carried forward.
			continue
		}

		mi.key, mi.value = key, value
		mi.valid = true
		return
	}
	mi.valid = false
}

func (mi *mergeIterator) closeHeap() {
	for mi.h.Len() > 0 {
		item := heap.Pop(&mi.h).(*heapItem)
		item.it.Close()
	}
}

func (mi *mergeIterator) Valid() bool   { return mi.valid }
func (mi *mergeIterator) Next()         { mi.advance() }
func (mi *mergeIterator) Key() string   { return mi.key }
func (mi *mergeIterator) Value() string { return mi.value }

// Compact runs one L0→L1 compaction pass under the exclusive metadata
// lock, so a concurrent Get always sees either the pre- or post-compaction
// file set, never a mix. It is a no-op below the configured L0 threshold.
func (m *Manager) Compact() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l0 := m.levels[0]
	if len(l0) < m.l0CompactionThreshold {
		return nil
	}

	var l0Files []fileRef
	for name, r := range l0 {
		_, id, err := parseFilename(name)
		if err != nil {
			continue
		}
		l0Files = append(l0Files, fileRef{id: id, name: name, reader: r})
	}

	var minKey, maxKey string
	haveRange := false
	for _, f := range l0Files {
		if f.reader.Empty() {
			continue
		}
		if !haveRange || f.reader.FirstKey() < minKey {
			minKey = f.reader.FirstKey()
		}
		if !haveRange || f.reader.LastKey() > maxKey {
			maxKey = f.reader.LastKey()
		}
		haveRange = true
	}

	var l1Files []fileRef
	if haveRange {
		for name, r := range m.levels[1] {
			if r.Empty() {
				continue
			}
			// Overlap test: neither strictly left nor strictly right of
			// [minKey, maxKey].
			if r.LastKey() < minKey || r.FirstKey() > maxKey {
				continue
			}
			_, id, err := parseFilename(name)
			if err != nil {
				continue
			}
			l1Files = append(l1Files, fileRef{id: id, name: name, reader: r})
		}
	}

	all := append(append([]fileRef{}, l0Files...), l1Files...)

	merge, err := newMergeIterator(all)
	if err != nil {
		return err
	}

	numKeysHint := 0
	for _, f := range all {
		numKeysHint += f.reader.ApproxEntryCount()
	}

	newID := m.nextID.Add(1)
	newName := fmt.Sprintf("1-%d.sst", newID)
	newPath := filepath.Join(m.dir, newName)

	n, err := sstable.WriteSorted(newPath, merge, numKeysHint, m.compressor)
	merge.closeHeap() // defensive: no-op unless WriteSorted returned early
	if err != nil {
		return fmt.Errorf("sstmanager: compacting into %s: %w", newPath, err)
	}
	if n == 0 {
		// Every input entry was a duplicate or a tombstone: nothing to
		// publish. WriteSorted already removed the empty output file.
		// The input files still get retired below — they're pure
		// tombstones/duplicates and carry no live data forward.
	} else {
		newReader, err := sstable.Open(newPath, m.cache)
		if err != nil {
			return fmt.Errorf("sstmanager: opening compacted %s: %w", newPath, err)
		}
		if m.levels[1] == nil {
			m.levels[1] = make(map[string]*sstable.Reader)
		}
		m.levels[1][newName] = newReader
	}

	for _, f := range l0Files {
		delete(m.levels[0], f.name)
		f.reader.InvalidateCache()
		f.reader.Close()
		_ = removeFile(m.dir, f.name)
	}
	for _, f := range l1Files {
		delete(m.levels[1], f.name)
		f.reader.InvalidateCache()
		f.reader.Close()
		_ = removeFile(m.dir, f.name)
	}

	m.logger.Info("sstmanager: compaction complete",
		"l0_inputs", len(l0Files), "l1_inputs", len(l1Files), "output_entries", n)
	return nil
}
