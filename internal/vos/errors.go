// Package vos provides containers of versioned objects over a VOS pool.
package vos

import (
	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// VOS errors. Each wraps one of the storage error kinds.
var (
	// ErrPoolClosed is returned by operations on a closed pool.
	ErrPoolClosed = errors.Wrap(storage.ErrInvalidState, "vos: pool is closed")
	// ErrContainerExists is returned when creating a container that exists.
	ErrContainerExists = errors.Wrap(storage.ErrExists, "vos: container already exists")
	// ErrContainerNotFound is returned when a container does not exist.
	ErrContainerNotFound = errors.Wrap(storage.ErrNotFound, "vos: container not found")
	// ErrContainerBusy is returned when destroying a container that is open.
	ErrContainerBusy = errors.Wrap(storage.ErrInvalidState, "vos: container is open")
	// ErrInvalidContainer is returned for a nil or closed container handle.
	ErrInvalidContainer = errors.Wrap(storage.ErrInvalidArgument, "vos: invalid container handle")
	// ErrObjectNotFound is returned when an object has no record.
	ErrObjectNotFound = errors.Wrap(storage.ErrNotFound, "vos: object not found")
	// ErrBadRecord is returned when a persistent record has the wrong size.
	ErrBadRecord = errors.Wrap(storage.ErrIO, "vos: malformed record")
)
