package sstable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIteratorWalksAllEntriesInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0-1.sst")

	want := map[string]string{"c": "3", "a": "1", "b": "2", "d": "4"}
	_, err := WriteSorted(path, newSliceIterator(want), len(want), nil)
	require.NoError(t, err)

	r, err := Open(path, nil)
	require.NoError(t, err)

	it, err := r.NewIterator()
	require.NoError(t, err)
	defer it.Close()

	var gotKeys []string
	for it.Valid() {
		gotKeys = append(gotKeys, it.Key())
		it.Next()
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, gotKeys)
}

func TestIteratorOnEmptyFileIsImmediatelyInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0-1.sst")
	_, err := WriteSorted(path, &sliceIterator{}, 0, nil)
	require.NoError(t, err)
	require.NoFileExists(t, path)

	// WriteSorted leaves nothing behind, so put a zero-length file in its
	// place: Open treats any file shorter than FooterSize as empty.
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	r, err := Open(path, nil)
	require.NoError(t, err)
	require.True(t, r.Empty())

	it, err := r.NewIterator()
	require.NoError(t, err)
	require.False(t, it.Valid())
}
