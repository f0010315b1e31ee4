// Package sstmanager owns the on-disk level map of SST files: discovering
// them at startup, serving point lookups across levels, publishing newly
// flushed memtables to L0, and driving L0→L1 compaction.
package sstmanager

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kanjiru/lsmkv/compression"
	"github.com/kanjiru/lsmkv/sstable"
)

// Manager is the SST level map: level → filename → reader. Its metadata
// lock is held shared for get, and exclusive for publishing a flush or a
// compaction result, so readers outside a write critical section always
// see a self-consistent file set.
type Manager struct {
	dir   string // the sst/ directory
	cache *sstable.BlockCache

	compressor compression.Compressor

	l0CompactionThreshold int
	logger                *slog.Logger

	mu     sync.RWMutex
	levels map[int]map[string]*sstable.Reader

	nextID atomic.Int64
}

// New opens dir (creating it if necessary), loads every existing *.sst file
// into the level map, and advances the ID counter past the highest ID
// found so newly allocated IDs never collide with a recovered file.
// compressor compresses every data block written by a flush or a
// compaction; pass nil to disable block compression entirely. Readers never
// need it back — each block's compression tag is self-describing.
func New(dir string, cache *sstable.BlockCache, l0CompactionThreshold int, logger *slog.Logger, compressor compression.Compressor) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sstmanager: creating %s: %w", dir, err)
	}

	m := &Manager{
		dir:                   dir,
		cache:                 cache,
		compressor:            compressor,
		l0CompactionThreshold: l0CompactionThreshold,
		logger:                logger,
		levels:                make(map[int]map[string]*sstable.Reader),
	}
	if err := m.loadSSTables(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) loadSSTables() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("sstmanager: reading %s: %w", m.dir, err)
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sst") {
			continue
		}

		level, id, err := parseFilename(e.Name())
		if err != nil {
			m.logger.Warn("sstmanager: skipping unparseable filename", "file", e.Name(), "error", err)
			continue
		}

		path := filepath.Join(m.dir, e.Name())
		reader, err := sstable.Open(path, m.cache)
		if err != nil {
			// CORRUPT_SST at startup: log and skip the file, per the error
			// handling design — it never aborts the whole load.
			m.logger.Warn("sstmanager: skipping corrupt sst", "file", e.Name(), "error", err)
			continue
		}

		if m.levels[level] == nil {
			m.levels[level] = make(map[string]*sstable.Reader)
		}
		m.levels[level][e.Name()] = reader

		if id >= m.nextID.Load() {
			m.nextID.Store(id + 1)
		}
	}
	return nil
}

// Get looks up k across every level: L0 newest-filename-first, then each
// level ≥ 1 in key order, skipping any file whose [firstKey, lastKey] range
// excludes k. It returns the raw stored value — including TombstoneValue —
// leaving the tombstone-to-not-found translation to the caller.
func (m *Manager) Get(k string) (value string, found bool, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if l0, ok := m.levels[0]; ok {
		for _, name := range sortedByIDDescending(l0) {
			v, found, err := l0[name].Get(k)
			if err != nil {
				return "", false, fmt.Errorf("sstmanager: get %q in %s: %w", k, name, err)
			}
			if found {
				return v, true, nil
			}
		}
	}

	for _, level := range m.sortedLevelsAbove(0) {
		files := m.levels[level]
		for _, name := range sortedByFirstKey(files) {
			r := files[name]
			if !r.InRange(k) {
				continue
			}
			v, found, err := r.Get(k)
			if err != nil {
				return "", false, fmt.Errorf("sstmanager: get %q in %s: %w", k, name, err)
			}
			if found {
				return v, true, nil
			}
		}
	}

	return "", false, nil
}

// FlushMemTableToSSTable writes it — a frozen memtable's entries in
// ascending order — to a new L0 file and publishes it. If it is already
// exhausted, this is a no-op, matching the "if empty, skip" rule.
func (m *Manager) FlushMemTableToSSTable(it sstable.EntryIterator, numKeysHint int) error {
	if !it.Valid() {
		return nil
	}

	id := m.nextID.Add(1)
	name := fmt.Sprintf("0-%d.sst", id)
	path := filepath.Join(m.dir, name)

	n, err := sstable.WriteSorted(path, it, numKeysHint, m.compressor)
	if err != nil {
		return fmt.Errorf("sstmanager: flushing memtable to %s: %w", path, err)
	}
	if n == 0 {
		return nil
	}

	reader, err := sstable.Open(path, m.cache)
	if err != nil {
		return fmt.Errorf("sstmanager: opening freshly flushed %s: %w", path, err)
	}

	m.mu.Lock()
	if m.levels[0] == nil {
		m.levels[0] = make(map[string]*sstable.Reader)
	}
	m.levels[0][name] = reader
	m.mu.Unlock()

	m.logger.Info("sstmanager: flushed memtable to L0", "file", name, "entries", n)
	return nil
}

// L0FileCount and L1FileCount report the current file count at each level,
// for the compaction trigger and for metrics.
func (m *Manager) L0FileCount() int { return m.levelFileCount(0) }
func (m *Manager) L1FileCount() int { return m.levelFileCount(1) }

func (m *Manager) levelFileCount(level int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.levels[level])
}

// Close closes every reader held across every level.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, files := range m.levels {
		for _, r := range files {
			r.Close()
		}
	}
	return nil
}

func (m *Manager) sortedLevelsAbove(level int) []int {
	var out []int
	for l := range m.levels {
		if l > level {
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

func parseFilename(name string) (level int, id int64, err error) {
	base := strings.TrimSuffix(name, ".sst")
	parts := strings.SplitN(base, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("sstmanager: malformed filename %q", name)
	}
	level, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("sstmanager: malformed level in %q: %w", name, err)
	}
	id, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("sstmanager: malformed id in %q: %w", name, err)
	}
	return level, id, nil
}

func sortedByIDDescending(files map[string]*sstable.Reader) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		_, idI, _ := parseFilename(names[i])
		_, idJ, _ := parseFilename(names[j])
		return idI > idJ
	})
	return names
}

func removeFile(dir, name string) error {
	return os.Remove(filepath.Join(dir, name))
}

func sortedByFirstKey(files map[string]*sstable.Reader) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return files[names[i]].FirstKey() < files[names[j]].FirstKey()
	})
	return names
}
