// Package btree provides the keyed B+ tree engine of the VOS pool.
package btree

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// uvOps is the built-in class keyed by a UUID with a variable-size value
// stored out of line as [length u32][reserved u32][bytes].
type uvOps struct{}

const uvValueHeader = 8

func init() {
	if err := Register(ClassUV, uvOps{}); err != nil {
		panic(err)
	}
}

// UUIDKey returns the tree key for id in a ClassUV tree.
func UUIDKey(id uuid.UUID) []byte {
	return id[:]
}

func (uvOps) HashKeySize() int {
	return 16
}

func (uvOps) HashKeyGen(key []byte, hkey []byte) error {
	if len(key) != 16 {
		return errors.Wrapf(ErrBadKeySize, "uuid key of %d bytes", len(key))
	}
	copy(hkey, key)
	return nil
}

func (uvOps) HashKeyCompare(a, b []byte) int {
	return bytes.Compare(a, b)
}

func (uvOps) RecordAlloc(tx *storage.Tx, hkey, key, val []byte) (uint64, error) {
	off, err := tx.Alloc(uvValueHeader + len(val))
	if err != nil {
		return 0, err
	}
	if err := writeUV(tx, off, val); err != nil {
		return 0, err
	}
	return uint64(off), nil
}

func (uvOps) RecordFree(tx *storage.Tx, slot uint64) error {
	return tx.Free(storage.Offset(slot))
}

func (uvOps) RecordFetch(pool *storage.Pool, hkey []byte, slot uint64) ([]byte, []byte, error) {
	off := storage.Offset(slot)
	hdr, err := pool.Resolve(off, uvValueHeader)
	if err != nil {
		return nil, nil, err
	}
	data, err := pool.Resolve(off+uvValueHeader, int(binary.LittleEndian.Uint32(hdr)))
	if err != nil {
		return nil, nil, err
	}
	return append([]byte(nil), hkey...), append([]byte(nil), data...), nil
}

func (o uvOps) RecordUpdate(tx *storage.Tx, hkey []byte, slot uint64, val []byte) (uint64, error) {
	off := storage.Offset(slot)
	size, err := tx.Pool().BlockSize(off)
	if err != nil {
		return 0, err
	}
	if uvValueHeader+len(val) <= size {
		return slot, writeUV(tx, off, val)
	}

	newSlot, err := o.RecordAlloc(tx, hkey, nil, val)
	if err != nil {
		return 0, err
	}
	if err := tx.Free(off); err != nil {
		return 0, err
	}
	return newSlot, nil
}

func writeUV(tx *storage.Tx, off storage.Offset, val []byte) error {
	buf := make([]byte, uvValueHeader+len(val))
	binary.LittleEndian.PutUint32(buf, uint32(len(val)))
	copy(buf[uvValueHeader:], val)
	return tx.Write(off, buf)
}
