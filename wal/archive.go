package wal

import (
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/s2"
)

// CompressArchive recompresses an archived (already-rotated) WAL file in
// place to path+".s2" and removes the uncompressed original. It must only
// be called once the memtable the archive backed has been durably flushed
// to an L0 SST — recover() never reads archived WALs, so this is purely a
// disk-space optimization on cold data, never on the critical recovery
// path.
func CompressArchive(path string) (compressedPath string, err error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("wal: opening archive %s: %w", path, err)
	}
	defer src.Close()

	compressedPath = path + ".s2"
	dst, err := os.Create(compressedPath)
	if err != nil {
		return "", fmt.Errorf("wal: creating %s: %w", compressedPath, err)
	}

	w := s2.NewWriter(dst)
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		dst.Close()
		os.Remove(compressedPath)
		return "", fmt.Errorf("wal: compressing %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		dst.Close()
		os.Remove(compressedPath)
		return "", fmt.Errorf("wal: finishing s2 stream for %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("wal: closing %s: %w", compressedPath, err)
	}

	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("wal: removing uncompressed archive %s: %w", path, err)
	}

	return compressedPath, nil
}
