// Package storage provides the persistent-memory pool for the VOS engine.
package storage

import (
	"github.com/KilimcininKorOglu/vos/internal/logging"
)

// Default pool geometry.
const (
	// DefaultPoolSize is the size of a newly created pool file.
	DefaultPoolSize = 64 << 20

	// DefaultUndoLogSize is the size of the undo log region.
	DefaultUndoLogSize = 1 << 20

	// MinPoolSize is the smallest pool that can hold a header, an undo
	// region and a usable heap.
	MinPoolSize = 1 << 20
)

// Options configures a pool.
type Options struct {
	// Size is the total size of the pool file in bytes. It is only used
	// when the pool is created.
	// Default: 64MB.
	Size int64

	// UndoLogSize is the size of the undo log region in bytes. It bounds
	// the amount of data a single transaction can overwrite.
	// Default: 1MB.
	UndoLogSize int64

	// SyncOnCommit flushes the mapping to stable storage when undo records
	// are appended and when a transaction commits. Without it the pool
	// survives a process crash but not a power loss.
	// Default: true.
	SyncOnCommit bool

	// Logger receives pool events. Default: no-op logger.
	Logger logging.Logger
}

// DefaultOptions returns the default pool options.
func DefaultOptions() Options {
	return Options{
		Size:         DefaultPoolSize,
		UndoLogSize:  DefaultUndoLogSize,
		SyncOnCommit: true,
		Logger:       logging.NewNop(),
	}
}

// Validate fills in defaults and returns an error if the options cannot
// describe a usable pool.
func (o *Options) Validate() error {
	if o.Size <= 0 {
		o.Size = DefaultPoolSize
	}
	if o.UndoLogSize <= 0 {
		o.UndoLogSize = DefaultUndoLogSize
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}

	o.Size = alignUp(o.Size, HeaderSize)
	o.UndoLogSize = alignUp(o.UndoLogSize, HeaderSize)

	if o.Size < MinPoolSize || o.Size <= HeaderSize+o.UndoLogSize+HeaderSize {
		return ErrPoolTooSmall
	}
	return nil
}

// WithSize sets the pool size.
func (o Options) WithSize(size int64) Options {
	o.Size = size
	return o
}

// WithUndoLogSize sets the undo log size.
func (o Options) WithUndoLogSize(size int64) Options {
	o.UndoLogSize = size
	return o
}

// WithSyncOnCommit enables or disables flushing on commit.
func (o Options) WithSyncOnCommit(sync bool) Options {
	o.SyncOnCommit = sync
	return o
}

// WithLogger sets the logger.
func (o Options) WithLogger(l logging.Logger) Options {
	o.Logger = l
	return o
}

// alignUp rounds size up to a multiple of align.
func alignUp(size, align int64) int64 {
	if size%align == 0 {
		return size
	}
	return (size/align + 1) * align
}
