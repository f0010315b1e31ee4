//go:build !windows

package lsmkv

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/cockroachdb/errors"
)

// ErrDBAlreadyOpen is returned by Open when another process already holds
// the data directory's lock file.
var ErrDBAlreadyOpen = errors.New("lsmkv: data directory is locked by another process")

// fileLocker guards a data directory against concurrent Open calls from
// more than one process, using an exclusive, non-blocking flock on a
// sentinel LOCK file.
type fileLocker struct {
	file *os.File
}

// acquireDirLock opens (creating if necessary) dir/LOCK and takes a
// non-blocking exclusive lock on it.
func acquireDirLock(dir string) (*fileLocker, error) {
	lockPath := filepath.Join(dir, "LOCK")

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "lsmkv: opening lock file %s", lockPath)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, withKind(KindIOError, ErrDBAlreadyOpen)
		}
		return nil, errors.Wrap(err, "lsmkv: acquiring directory lock")
	}

	return &fileLocker{file: file}, nil
}

// release drops the lock and closes the underlying file.
func (l *fileLocker) release() error {
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		l.file.Close()
		return errors.Wrap(err, "lsmkv: releasing directory lock")
	}
	return l.file.Close()
}
