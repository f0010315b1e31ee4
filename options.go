package lsmkv

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/kanjiru/lsmkv/compression"
	"github.com/kanjiru/lsmkv/metrics"
)

const (
	KiB = 1024
	MiB = KiB * 1024
)

// Default tuning values, matching the embedded store's defaults.
var (
	DefaultMemtableThreshold      = 4 * MiB
	DefaultL0CompactionThreshold  = 4
	DefaultBlockCacheCapacity     = 1_000_000
	DefaultCompactionPollInterval = 5
	DefaultFlushPollIntervalMS    = 100
	DefaultCloseTimeoutSeconds    = 10
)

// Options configures a Store. Zero-valued fields are filled with defaults
// by Validate, except DataDir, which callers must set.
type Options struct {
	// DataDir is the root directory the store owns: wal.log, its archives,
	// and the sst/ subdirectory all live under it.
	DataDir string

	// MemtableThreshold is the approximate byte size (per the skip list's
	// ApproximateSize) at which the active memtable is rotated.
	MemtableThreshold int

	// L0CompactionThreshold is the number of L0 files that triggers a
	// compaction pass.
	L0CompactionThreshold int

	// BlockCacheCapacity is the block cache's maximum entry count.
	BlockCacheCapacity int

	// CompactionPollInterval is, in seconds, how long the background
	// compaction thread sleeps between checks.
	CompactionPollInterval int

	// FlushPollIntervalMS is, in milliseconds, how long the flush
	// executor sleeps when it finds the immutable queue empty.
	FlushPollIntervalMS int

	// CloseTimeoutSeconds bounds how long Close waits for the flush
	// executor to drain before giving up.
	CloseTimeoutSeconds int

	// Logger receives structured warnings and background-thread activity.
	// Defaults to slog.NewTextHandler(os.Stderr) at LevelWarn.
	Logger *slog.Logger

	// Metrics, if non-nil, is published to on every put/get/delete/flush/
	// compaction.
	Metrics *metrics.Metrics

	// Compression selects the data-block compression algorithm new SST
	// files are written with. The zero value is compression.None — callers
	// that want compression must opt in, e.g. compression.DefaultConfig().
	Compression compression.Config
}

// SSTDir returns the directory SST files are stored under.
func (o *Options) SSTDir() string {
	return filepath.Join(o.DataDir, "sst")
}

// Validate fills in defaults for zero-valued fields and rejects
// nonsensical configuration.
func (o *Options) Validate() error {
	if o.DataDir == "" {
		return withKind(KindArgNull, errors.New("lsmkv: DataDir must be set"))
	}
	if o.MemtableThreshold == 0 {
		o.MemtableThreshold = DefaultMemtableThreshold
	}
	if o.MemtableThreshold < 0 {
		return withKind(KindArgNull, errors.New("lsmkv: MemtableThreshold must be positive"))
	}
	if o.L0CompactionThreshold == 0 {
		o.L0CompactionThreshold = DefaultL0CompactionThreshold
	}
	if o.L0CompactionThreshold < 1 {
		return withKind(KindArgNull, errors.New("lsmkv: L0CompactionThreshold must be at least 1"))
	}
	if o.BlockCacheCapacity == 0 {
		o.BlockCacheCapacity = DefaultBlockCacheCapacity
	}
	if o.CompactionPollInterval == 0 {
		o.CompactionPollInterval = DefaultCompactionPollInterval
	}
	if o.FlushPollIntervalMS == 0 {
		o.FlushPollIntervalMS = DefaultFlushPollIntervalMS
	}
	if o.CloseTimeoutSeconds == 0 {
		o.CloseTimeoutSeconds = DefaultCloseTimeoutSeconds
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return nil
}
