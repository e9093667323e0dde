// Package storage provides the persistent-memory pool for the VOS engine.
package storage

import (
	"github.com/pkg/errors"
)

// Error kinds returned by the pool and by every layer built on it. Callers
// test for a kind with errors.Is; context is attached with errors.Wrap.
var (
	// ErrInvalidArgument reports a malformed handle, a nil descriptor or a
	// record type that does not match what the tree engine expects.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState reports an operation on an uninitialized or closed
	// object, or a descriptor whose validity tag does not match.
	ErrInvalidState = errors.New("invalid state")

	// ErrOutOfMemory reports an allocation failure in the pool heap or in
	// the undo log region.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrIO reports a failure of the backing file or mapping.
	ErrIO = errors.New("I/O error")

	// ErrNotFound reports a missing key or a cursor past its end.
	ErrNotFound = errors.New("not found")

	// ErrExists reports an insert of a key that is already present.
	ErrExists = errors.New("already exists")

	// ErrTxAborted reports use of a transaction that has already been
	// aborted.
	ErrTxAborted = errors.New("transaction aborted")
)

// Pool errors.
var (
	ErrPoolClosed     = errors.Wrap(ErrInvalidState, "pool is closed")
	ErrPoolLocked     = errors.Wrap(ErrInvalidState, "pool is in use by another process")
	ErrInvalidMagic   = errors.Wrap(ErrInvalidArgument, "not a VOS pool file")
	ErrBadVersion     = errors.Wrap(ErrInvalidArgument, "unsupported pool format version")
	ErrPoolTooSmall   = errors.Wrap(ErrInvalidArgument, "pool size is too small")
	ErrOutOfRange     = errors.Wrap(ErrInvalidArgument, "offset out of pool range")
	ErrUndoLogFull    = errors.Wrap(ErrOutOfMemory, "undo log is full")
	ErrHeapExhausted  = errors.Wrap(ErrOutOfMemory, "pool heap is exhausted")
	ErrAllocTooLarge  = errors.Wrap(ErrInvalidArgument, "allocation exceeds largest size class")
	ErrBadFree        = errors.Wrap(ErrInvalidArgument, "free of an offset that is not an allocated block")
	ErrTxEnded        = errors.Wrap(ErrInvalidState, "transaction has already ended")
	ErrUndoCorrupted  = errors.Wrap(ErrIO, "undo log record is corrupted")
	ErrHeaderChecksum = errors.Wrap(ErrIO, "pool header checksum mismatch")
)

// IsNotFound reports whether err is of kind ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
