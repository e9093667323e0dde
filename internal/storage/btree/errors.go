// Package btree provides the keyed B+ tree engine of the VOS pool.
package btree

import (
	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// Tree errors. Each wraps one of the storage error kinds.
var (
	ErrUnknownClass    = errors.Wrap(storage.ErrInvalidArgument, "tree class is not registered")
	ErrClassRegistered = errors.Wrap(storage.ErrExists, "tree class is already registered")
	ErrNotTreeRoot     = errors.Wrap(storage.ErrInvalidArgument, "offset is not a tree root")
	ErrClassMismatch   = errors.Wrap(storage.ErrInvalidArgument, "tree root belongs to another class")
	ErrBadOrder        = errors.Wrap(storage.ErrInvalidArgument, "invalid tree order")
	ErrBadKeySize      = errors.Wrap(storage.ErrInvalidArgument, "key size does not match tree class")
	ErrBadProbe        = errors.Wrap(storage.ErrInvalidArgument, "probe operation not supported here")
	ErrTreeClosed      = errors.Wrap(storage.ErrInvalidState, "tree is closed")
	ErrKeyNotFound     = errors.Wrap(storage.ErrNotFound, "key not found")
	ErrKeyExists       = errors.Wrap(storage.ErrExists, "key already exists")
	ErrIterNotReady    = errors.Wrap(storage.ErrInvalidState, "iterator is not prepared")
	ErrIterFinished    = errors.Wrap(storage.ErrInvalidState, "iterator is finished")
	ErrIterExhausted   = errors.Wrap(storage.ErrNotFound, "iterator has no current entry")
	ErrCorruptNode     = errors.Wrap(storage.ErrIO, "tree node is corrupted")
)
