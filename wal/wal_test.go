package wal

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeInserter struct {
	keys   []string
	values []string
}

func (f *fakeInserter) Insert(key, value string) bool {
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
	return false
}

func TestLogPutAndRecoverRoundTrip(t *testing.T) {
	dir := t.TempDir()

	m, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, m.LogPut("a", "1"))
	require.NoError(t, m.LogPut("b", "2"))
	require.NoError(t, m.LogPut("c", "3"))
	require.NoError(t, m.Close())

	dst := &fakeInserter{}
	require.NoError(t, Recover(dir, dst, nil))
	require.Equal(t, []string{"a", "b", "c"}, dst.keys)
	require.Equal(t, []string{"1", "2", "3"}, dst.values)
}

func TestRecoverOnMissingFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	dst := &fakeInserter{}
	require.NoError(t, Recover(dir, dst, nil))
	require.Empty(t, dst.keys)
}

func TestLogPutEscapesCommasAndNewlines(t *testing.T) {
	dir := t.TempDir()

	m, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, m.LogPut("k,with,commas", "v\nwith\nnewlines"))
	require.NoError(t, m.Close())

	dst := &fakeInserter{}
	require.NoError(t, Recover(dir, dst, nil))
	require.Equal(t, []string{"k,with,commas"}, dst.keys)
	require.Equal(t, []string{"v\nwith\nnewlines"}, dst.values)
}

func TestRotateLogArchivesAndResumesAppending(t *testing.T) {
	dir := t.TempDir()

	m, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, m.LogPut("a", "1"))

	archived, err := m.RotateLog()
	require.NoError(t, err)
	require.FileExists(t, archived)
	require.NotEqual(t, archived, m.Path())

	require.NoError(t, m.LogPut("b", "2"))
	require.NoError(t, m.Close())

	archivedBytes, err := os.ReadFile(archived)
	require.NoError(t, err)
	require.Equal(t, "PUT,a,1\n", string(archivedBytes))

	activeBytes, err := os.ReadFile(m.Path())
	require.NoError(t, err)
	require.Equal(t, "PUT,b,2\n", string(activeBytes))
}

func TestRecoverStopsAtTruncatedTrailingRecordAndLogs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, activeFileName)
	require.NoError(t, os.WriteFile(path, []byte("PUT,a,1\nPUT,b,2\nPUT,c,"), 0o644))

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	dst := &fakeInserter{}
	require.NoError(t, Recover(dir, dst, logger))
	require.Equal(t, []string{"a", "b"}, dst.keys)
	require.Contains(t, logBuf.String(), "truncated trailing record")
}

func TestRecoverRejectsMalformedInteriorRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, activeFileName)
	require.NoError(t, os.WriteFile(path, []byte("PUT,a,1\nNOT_A_RECORD\nPUT,c,3\n"), 0o644))

	dst := &fakeInserter{}
	err := Recover(dir, dst, nil)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestRecoverIgnoresArchivedWALs(t *testing.T) {
	dir := t.TempDir()

	m, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, m.LogPut("archived-key", "archived-value"))
	_, err = m.RotateLog()
	require.NoError(t, err)
	require.NoError(t, m.LogPut("active-key", "active-value"))
	require.NoError(t, m.Close())

	dst := &fakeInserter{}
	require.NoError(t, Recover(dir, dst, nil))
	require.Equal(t, []string{"active-key"}, dst.keys)
}
