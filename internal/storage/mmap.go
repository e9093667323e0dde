// Package storage provides the persistent-memory pool for the VOS engine.
package storage

import (
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/juju/fslock"
	"github.com/pkg/errors"
)

// mapping is a read-write shared mapping of a pool file, held under an
// exclusive lock on a sibling lock file for as long as it is open.
type mapping struct {
	file *os.File
	lock *fslock.Lock
	mm   mmap.MMap
}

// lockPath returns the path of the lock file guarding a pool file.
func lockPath(path string) string {
	return path + ".lock"
}

// mapFile locks path, extends it to size bytes when create is set, and maps
// the whole file read-write.
func mapFile(path string, size int64, create bool) (*mapping, error) {
	lock := fslock.New(lockPath(path))
	if err := lock.TryLock(); err != nil {
		if err == fslock.ErrLocked {
			return nil, errors.Wrap(ErrPoolLocked, path)
		}
		return nil, errors.Wrapf(ErrIO, "lock %s: %v", path, err)
	}

	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE | os.O_EXCL
	}

	file, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		lock.Unlock()
		if os.IsExist(err) {
			return nil, errors.Wrap(ErrExists, path)
		}
		if os.IsNotExist(err) {
			return nil, errors.Wrap(ErrNotFound, path)
		}
		return nil, errors.Wrapf(ErrIO, "open %s: %v", path, err)
	}

	if create {
		if err := file.Truncate(size); err != nil {
			file.Close()
			os.Remove(path)
			lock.Unlock()
			return nil, errors.Wrapf(ErrIO, "truncate %s: %v", path, err)
		}
	} else {
		info, err := file.Stat()
		if err != nil {
			file.Close()
			lock.Unlock()
			return nil, errors.Wrapf(ErrIO, "stat %s: %v", path, err)
		}
		if info.Size() < MinPoolSize {
			file.Close()
			lock.Unlock()
			return nil, errors.Wrap(ErrPoolTooSmall, path)
		}
	}

	mm, err := mmap.Map(file, mmap.RDWR, 0)
	if err != nil {
		file.Close()
		lock.Unlock()
		return nil, errors.Wrapf(ErrIO, "mmap %s: %v", path, err)
	}

	return &mapping{file: file, lock: lock, mm: mm}, nil
}

// flush writes dirty pages of the mapping back to the file.
func (m *mapping) flush() error {
	if err := m.mm.Flush(); err != nil {
		return errors.Wrapf(ErrIO, "flush: %v", err)
	}
	return nil
}

// close flushes and unmaps the file and releases the lock.
func (m *mapping) close() error {
	var firstErr error

	if err := m.mm.Flush(); err != nil {
		firstErr = errors.Wrapf(ErrIO, "flush: %v", err)
	}
	if err := m.mm.Unmap(); err != nil && firstErr == nil {
		firstErr = errors.Wrapf(ErrIO, "unmap: %v", err)
	}
	if err := m.file.Close(); err != nil && firstErr == nil {
		firstErr = errors.Wrapf(ErrIO, "close: %v", err)
	}
	if err := m.lock.Unlock(); err != nil && firstErr == nil {
		firstErr = errors.Wrapf(ErrIO, "unlock: %v", err)
	}

	return firstErr
}
