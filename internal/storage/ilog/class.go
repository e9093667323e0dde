// Package ilog implements the incarnation log of the VOS pool.
package ilog

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/storage"
	"github.com/KilimcininKorOglu/vos/internal/storage/btree"
)

// ilogOps stores log events in a tree. Keys are compared by epoch, then by
// DTX offset. The value lives in the record slot itself, so records need no
// allocation of their own.
type ilogOps struct{}

func (ilogOps) HashKeySize() int {
	return keySize
}

func (ilogOps) HashKeyGen(key []byte, hkey []byte) error {
	if len(key) != keySize {
		return errors.Wrapf(btree.ErrBadKeySize, "log key of %d bytes", len(key))
	}
	copy(hkey, key)
	return nil
}

func (ilogOps) HashKeyCompare(a, b []byte) int {
	ea, da := decodeKey(a)
	eb, db := decodeKey(b)
	switch {
	case ea < eb:
		return -1
	case ea > eb:
		return 1
	case da < db:
		return -1
	case da > db:
		return 1
	}
	return 0
}

func (ilogOps) RecordAlloc(_ *storage.Tx, _, _, val []byte) (uint64, error) {
	if len(val) != valueSize {
		return 0, errors.Wrapf(storage.ErrInvalidArgument, "log value of %d bytes", len(val))
	}
	return slotValue(val), nil
}

func (ilogOps) RecordFree(_ *storage.Tx, _ uint64) error {
	return nil
}

func (ilogOps) RecordFetch(_ *storage.Pool, hkey []byte, slot uint64) ([]byte, []byte, error) {
	return append([]byte(nil), hkey...), valueSlot(slot), nil
}

// RecordUpdate promotes a create to a punch. Any other collision leaves the
// stored event, including its map version, as it was.
func (ilogOps) RecordUpdate(_ *storage.Tx, _ []byte, slot uint64, val []byte) (uint64, error) {
	if len(val) != valueSize {
		return 0, errors.Wrapf(storage.ErrInvalidArgument, "log value of %d bytes", len(val))
	}
	oldPunch, version := decodeValue(valueSlot(slot))
	newPunch, _ := decodeValue(val)
	if oldPunch || !newPunch {
		return slot, nil
	}
	return slotValue(encodeValue(true, version)), nil
}

var (
	initOnce sync.Once
	initErr  error
)

// Init registers the log tree class with the tree engine. It is safe to
// call more than once; Create and Open call it as well.
func Init() error {
	initOnce.Do(func() {
		initErr = btree.Register(btree.ClassILog, ilogOps{})
	})
	return initErr
}
