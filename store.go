// Package lsmkv is an embedded, single-node, ordered key-value store built
// on a log-structured merge tree: an in-memory skip-list memtable absorbs
// writes behind a write-ahead log, frozen memtables are flushed to L0
// sorted-string tables, and a background thread compacts L0 into L1.
package lsmkv

import (
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kanjiru/lsmkv/compression"
	"github.com/kanjiru/lsmkv/skiplist"
	"github.com/kanjiru/lsmkv/sstable"
	"github.com/kanjiru/lsmkv/sstmanager"
	"github.com/kanjiru/lsmkv/wal"
)

// immutableEntry pairs a frozen memtable with the archived WAL segment
// that backed it, if any, so the flush loop can recompress that archive
// once the memtable is safely on disk as an SST.
type immutableEntry struct {
	memtable    *skiplist.List
	archivedWAL string
}

// Store is the public embedded key-value store.
type Store struct {
	opts Options

	switchMu sync.RWMutex
	active   *skiplist.List

	immutableMu sync.Mutex
	immutable   []immutableEntry

	wal    *wal.Manager
	sstMgr *sstmanager.Manager
	cache  *sstable.BlockCache
	lock   *fileLocker

	closing atomic.Bool

	flushExited   chan struct{}
	compactStopCh chan struct{}
	compactExited chan struct{}
}

// Open creates or reopens a store rooted at opts.DataDir, replaying its
// write-ahead log into a fresh active memtable before starting the
// background flush and compaction threads.
func Open(opts Options) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, ioError(err)
	}

	lock, err := acquireDirLock(opts.DataDir)
	if err != nil {
		return nil, err
	}

	cache := sstable.NewBlockCache(opts.BlockCacheCapacity)

	compressor, err := compression.NewCompressor(opts.Compression)
	if err != nil {
		lock.release()
		return nil, ioError(err)
	}
	if opts.Compression.Type == compression.None {
		compressor = nil
	}

	sstMgr, err := sstmanager.New(opts.SSTDir(), cache, opts.L0CompactionThreshold, opts.Logger, compressor)
	if err != nil {
		lock.release()
		return nil, ioError(err)
	}

	walMgr, err := wal.Open(opts.DataDir)
	if err != nil {
		lock.release()
		return nil, ioError(err)
	}

	active := skiplist.New()
	if err := wal.Recover(opts.DataDir, active, opts.Logger); err != nil {
		lock.release()
		return nil, ioError(err)
	}

	s := &Store{
		opts:          opts,
		active:        active,
		wal:           walMgr,
		sstMgr:        sstMgr,
		cache:         cache,
		lock:          lock,
		flushExited:   make(chan struct{}),
		compactStopCh: make(chan struct{}),
		compactExited: make(chan struct{}),
	}

	go s.flushLoop()
	go s.compactLoop()

	return s, nil
}

// Put stores value under key, durably, before returning.
func (s *Store) Put(key, value string) error {
	if s.closing.Load() {
		return shuttingDownError()
	}
	if key == "" || value == "" {
		return argNullError()
	}
	return s.applyMutation(key, value, true)
}

// Delete logically removes key: subsequent Gets return not-found until the
// next Put on the same key.
func (s *Store) Delete(key string) error {
	if s.closing.Load() {
		return shuttingDownError()
	}
	if key == "" {
		return argNullError()
	}
	return s.applyMutation(key, sstable.TombstoneValue, false)
}

func (s *Store) applyMutation(key, value string, isPut bool) error {
	s.switchMu.RLock()
	if err := s.wal.LogPut(key, value); err != nil {
		s.switchMu.RUnlock()
		return ioError(err)
	}
	s.active.Insert(key, value)
	size := s.active.ApproximateSize()
	s.switchMu.RUnlock()

	if s.opts.Metrics != nil {
		if isPut {
			s.opts.Metrics.IncPuts()
		} else {
			s.opts.Metrics.IncDeletes()
		}
	}

	if size >= int64(s.opts.MemtableThreshold) {
		s.maybeSwitchMemTable()
	}
	return nil
}

func (s *Store) maybeSwitchMemTable() {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	if s.active.ApproximateSize() < int64(s.opts.MemtableThreshold) {
		// Another writer already switched between our read unlock and
		// this write lock.
		return
	}
	s.switchMemTableLocked()
}

// switchMemTableLocked enqueues the current active memtable onto the
// immutable queue, installs a fresh empty one, and rotates the WAL.
// Callers must hold switchMu exclusively.
func (s *Store) switchMemTableLocked() {
	old := s.active
	s.active = skiplist.New()

	archivedWAL, err := s.wal.RotateLog()
	if err != nil {
		// The in-memory switch already happened; a failed rotation just
		// means this memtable's WAL segment never gets the cold-storage
		// compression pass. Recovery still works off whatever wal.log
		// ends up holding.
		s.opts.Logger.Warn("lsmkv: wal rotation failed during memtable switch", "error", err)
	}

	s.immutableMu.Lock()
	s.immutable = append(s.immutable, immutableEntry{memtable: old, archivedWAL: archivedWAL})
	s.immutableMu.Unlock()
}

// Get returns the value stored for key, or ok=false if key has no live
// value — because it was never written, or because it was deleted.
func (s *Store) Get(key string) (value string, ok bool, err error) {
	if key == "" {
		return "", false, argNullError()
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.IncGets()
	}

	s.switchMu.RLock()
	if v, found := s.active.Get(key); found {
		s.switchMu.RUnlock()
		return s.reportFound(v, found)
	}

	s.immutableMu.Lock()
	queue := make([]immutableEntry, len(s.immutable))
	copy(queue, s.immutable)
	s.immutableMu.Unlock()
	s.switchMu.RUnlock()

	// Duplicates between the active and frozen memtables cannot exist —
	// the active memtable was empty right after rotation — so iteration
	// order within the frozen queue doesn't affect correctness.
	for _, entry := range queue {
		if v, found := entry.memtable.Get(key); found {
			return s.reportFound(v, found)
		}
	}

	v, found, err := s.sstMgr.Get(key)
	if err != nil {
		return "", false, ioError(err)
	}
	return s.reportFound(v, found)
}

func (s *Store) reportFound(value string, found bool) (string, bool, error) {
	if !found || value == sstable.TombstoneValue {
		if s.opts.Metrics != nil {
			s.opts.Metrics.IncGetNotFound()
		}
		return "", false, nil
	}
	return value, true, nil
}

// flushLoop is the single-thread executor draining the immutable queue
// head-first. It exits only once shutdown has been signaled and the queue
// is empty.
func (s *Store) flushLoop() {
	defer close(s.flushExited)

	pollInterval := time.Duration(s.opts.FlushPollIntervalMS) * time.Millisecond

	for {
		s.immutableMu.Lock()
		if len(s.immutable) == 0 {
			shuttingDown := s.closing.Load()
			s.immutableMu.Unlock()
			if shuttingDown {
				return
			}
			time.Sleep(pollInterval)
			continue
		}
		entry := s.immutable[0]
		s.immutableMu.Unlock()

		it := entry.memtable.NewIterator()
		it.SeekToFirst()
		if err := s.sstMgr.FlushMemTableToSSTable(it, int(entry.memtable.Len())); err != nil {
			s.opts.Logger.Warn("lsmkv: flush failed, will retry", "error", err)
			time.Sleep(pollInterval)
			continue
		}

		s.immutableMu.Lock()
		s.immutable = s.immutable[1:]
		s.immutableMu.Unlock()

		if entry.archivedWAL != "" {
			if _, err := wal.CompressArchive(entry.archivedWAL); err != nil {
				s.opts.Logger.Warn("lsmkv: archived wal compression failed", "path", entry.archivedWAL, "error", err)
			}
		}

		if s.opts.Metrics != nil {
			s.opts.Metrics.IncFlushes()
			s.opts.Metrics.PublishLevelFileCounts(s.sstMgr.L0FileCount(), s.sstMgr.L1FileCount())
		}
	}
}

// compactLoop is the dedicated background compactor: sleeps between
// checks, runs one final pass on shutdown.
func (s *Store) compactLoop() {
	defer close(s.compactExited)

	ticker := time.NewTicker(time.Duration(s.opts.CompactionPollInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.compactStopCh:
			s.runCompactionOnce()
			return
		case <-ticker.C:
			s.runCompactionOnce()
		}
	}
}

func (s *Store) runCompactionOnce() {
	start := time.Now()
	l0Before := s.sstMgr.L0FileCount()

	if err := s.sstMgr.Compact(); err != nil {
		// Exceptions are logged and swallowed; a failed compaction leaves
		// the input files intact and the thread keeps running.
		s.opts.Logger.Warn("lsmkv: compaction failed", "error", err)
		return
	}

	if s.opts.Metrics != nil {
		if s.sstMgr.L0FileCount() < l0Before {
			s.opts.Metrics.IncCompactions()
			s.opts.Metrics.ObserveCompactionSeconds(time.Since(start).Seconds())
		}
		s.opts.Metrics.PublishLevelFileCounts(s.sstMgr.L0FileCount(), s.sstMgr.L1FileCount())
	}
}

// CompactNow forces one compaction pass and waits for it to finish.
func (s *Store) CompactNow() error {
	return s.sstMgr.Compact()
}

// Close shuts the store down: it stops the compactor, drains any
// outstanding memtable through the flush executor, then closes the WAL
// and SST manager.
func (s *Store) Close() error {
	if !s.closing.CompareAndSwap(false, true) {
		return nil
	}

	close(s.compactStopCh)
	<-s.compactExited

	s.switchMu.Lock()
	if s.active.Len() > 0 {
		s.immutableMu.Lock()
		s.immutable = append(s.immutable, immutableEntry{memtable: s.active})
		s.immutableMu.Unlock()
	}
	s.active = skiplist.New() // never written to again
	s.switchMu.Unlock()

	select {
	case <-s.flushExited:
	case <-time.After(time.Duration(s.opts.CloseTimeoutSeconds) * time.Second):
		s.opts.Logger.Warn("lsmkv: flush executor did not drain before close timeout; unflushed data remains recoverable from the wal")
	}

	if err := s.wal.Close(); err != nil {
		return ioError(err)
	}
	if err := s.sstMgr.Close(); err != nil {
		return ioError(err)
	}
	if err := s.lock.release(); err != nil {
		return ioError(err)
	}
	return nil
}

// Stats is a snapshot of the store's current state, for diagnostics.
type Stats struct {
	L0Files             int
	L1Files             int
	ActiveMemtableBytes int64
	ImmutableMemtables  int
}

// Stats returns a snapshot of the store's current state.
func (s *Store) Stats() Stats {
	s.switchMu.RLock()
	activeBytes := s.active.ApproximateSize()
	s.switchMu.RUnlock()

	s.immutableMu.Lock()
	immCount := len(s.immutable)
	s.immutableMu.Unlock()

	return Stats{
		L0Files:             s.sstMgr.L0FileCount(),
		L1Files:             s.sstMgr.L1FileCount(),
		ActiveMemtableBytes: activeBytes,
		ImmutableMemtables:  immCount,
	}
}

// MetricsHandler returns an http.Handler exposing this store's metrics, or
// nil if Options.Metrics was never set. The store never starts its own
// HTTP server; an embedder mounts this on whatever it already runs.
func (s *Store) MetricsHandler() http.Handler {
	if s.opts.Metrics == nil {
		return nil
	}
	return s.opts.Metrics.Handler()
}
