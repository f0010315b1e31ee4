package lsmkv

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	s, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBasicCRUD(t *testing.T) {
	s := openTestStore(t, Options{DataDir: t.TempDir()})

	require.NoError(t, s.Put("k1", "v1"))
	v, ok, err := s.Get("k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", v)

	require.NoError(t, s.Put("k1", "v1u"))
	v, ok, err = s.Get("k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1u", v)

	require.NoError(t, s.Delete("k1"))
	_, ok, err = s.Get("k1")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = s.Get("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPutRejectsEmptyKeyOrValue(t *testing.T) {
	s := openTestStore(t, Options{DataDir: t.TempDir()})

	err := s.Put("", "v")
	require.Equal(t, KindArgNull, KindOf(err))

	err = s.Put("k", "")
	require.Equal(t, KindArgNull, KindOf(err))
}

func TestPutAfterCloseFailsWithShuttingDown(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(Options{DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Put("a", "1")
	require.Equal(t, KindShuttingDown, KindOf(err))
}

func TestPersistenceAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(Options{DataDir: dir})
	require.NoError(t, err)
	require.NoError(t, s1.Put("a", "1"))
	require.NoError(t, s1.Put("b", "2"))
	require.NoError(t, s1.Close())

	s2, err := Open(Options{DataDir: dir})
	require.NoError(t, err)
	defer s2.Close()

	v, ok, err := s2.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	v, ok, err = s2.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", v)
}

func TestFlushProducesL0FileAndStaysReadable(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, Options{
		DataDir:           dir,
		MemtableThreshold: 16 * 1024, // small threshold to force rotation quickly
	})

	bigValue := strings.Repeat("x", 5*1024)
	for i := 0; i < 1000; i++ {
		require.NoError(t, s.Put(fmt.Sprintf("flush_key_%d", i), fmt.Sprintf("value_%d", i)+bigValue))
	}

	// Give the flush executor a chance to drain the immutable queue.
	require.Eventually(t, func() bool {
		return s.sstMgr.L0FileCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	v, ok, err := s.Get("flush_key_500")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "value_500"+bigValue, v)
}

func TestCompactionRunsAndPreservesData(t *testing.T) {
	dir := t.TempDir()
	s := openTestStore(t, Options{
		DataDir:                dir,
		MemtableThreshold:      4 * 1024,
		L0CompactionThreshold:  2,
		CompactionPollInterval: 1,
	})

	bigValue := strings.Repeat("y", 2*1024)
	for i := 0; i < 200; i++ {
		require.NoError(t, s.Put(fmt.Sprintf("ck_%04d", i), bigValue))
	}
	require.NoError(t, s.Delete("ck_0005"))

	require.Eventually(t, func() bool {
		return s.sstMgr.L1FileCount() >= 1
	}, 5*time.Second, 20*time.Millisecond)

	v, ok, err := s.Get("ck_0100")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bigValue, v)

	_, ok, err = s.Get("ck_0005")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSSTDirLayout(t *testing.T) {
	dir := t.TempDir()
	opts := Options{DataDir: dir}
	require.Equal(t, filepath.Join(dir, "sst"), opts.SSTDir())
}
