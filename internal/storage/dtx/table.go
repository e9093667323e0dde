// Package dtx provides distributed transaction IDs and the active transaction table.
package dtx

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/storage"
	"github.com/KilimcininKorOglu/vos/internal/storage/btree"
)

// DefaultTreeOrder is the order of an active transaction table tree.
const DefaultTreeOrder = 16

// activeOps keys records by encoded ID. The value slot holds the offset of
// the entry block, which the table allocates; that offset is the
// transaction reference stamped into incarnation log events.
type activeOps struct{}

func (activeOps) HashKeySize() int {
	return IDSize
}

func (activeOps) HashKeyGen(key []byte, hkey []byte) error {
	if len(key) != IDSize {
		return errors.Wrapf(btree.ErrBadKeySize, "dtx key of %d bytes", len(key))
	}
	copy(hkey, key)
	return nil
}

func (activeOps) HashKeyCompare(a, b []byte) int {
	return bytes.Compare(a, b)
}

func (activeOps) RecordAlloc(_ *storage.Tx, _, _, val []byte) (uint64, error) {
	if len(val) != 8 {
		return 0, errors.Wrapf(storage.ErrInvalidArgument, "dtx record value of %d bytes", len(val))
	}
	return binary.LittleEndian.Uint64(val), nil
}

func (activeOps) RecordFree(tx *storage.Tx, slot uint64) error {
	return tx.Free(storage.Offset(slot))
}

func (activeOps) RecordFetch(pool *storage.Pool, hkey []byte, slot uint64) ([]byte, []byte, error) {
	b, err := pool.Resolve(storage.Offset(slot), EntrySize)
	if err != nil {
		return nil, nil, err
	}
	return append([]byte(nil), hkey...), append([]byte(nil), b...), nil
}

func (o activeOps) RecordUpdate(tx *storage.Tx, _ []byte, slot uint64, val []byte) (uint64, error) {
	newSlot, err := o.RecordAlloc(tx, nil, nil, val)
	if err != nil || newSlot == slot {
		return slot, err
	}
	if err := tx.Free(storage.Offset(slot)); err != nil {
		return 0, err
	}
	return newSlot, nil
}

var (
	initOnce sync.Once
	initErr  error
)

// Init registers the active transaction class with the tree engine. It is
// safe to call more than once.
func Init() error {
	initOnce.Do(func() {
		initErr = btree.Register(btree.ClassActiveDTX, activeOps{})
	})
	return initErr
}

// Table errors.
var (
	ErrActive   = errors.Wrap(storage.ErrExists, "transaction is already active")
	ErrInactive = errors.Wrap(storage.ErrNotFound, "transaction is not active")
)

// Table is the active transaction table of a container.
type Table struct {
	tree *btree.Tree
}

// CreateTable allocates an empty table inside tx.
func CreateTable(tx *storage.Tx, order int) (*Table, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	if order == 0 {
		order = DefaultTreeOrder
	}
	tree, err := btree.Create(tx, btree.ClassActiveDTX, order)
	if err != nil {
		return nil, err
	}
	return &Table{tree: tree}, nil
}

// OpenTable opens the table whose tree root is at root.
func OpenTable(pool *storage.Pool, root storage.Offset) (*Table, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	tree, err := btree.OpenClass(pool, root, btree.ClassActiveDTX)
	if err != nil {
		return nil, err
	}
	return &Table{tree: tree}, nil
}

// Root returns the offset of the table's tree root.
func (t *Table) Root() storage.Offset {
	return t.tree.Root()
}

// Tree returns the tree holding the table.
func (t *Table) Tree() *btree.Tree {
	return t.tree
}

// Close releases the table handle.
func (t *Table) Close() error {
	return t.tree.Close()
}

// Add records e as active and returns the offset of its entry, the
// transaction reference. It fails with ErrActive if e.XID is already in
// the table.
func (t *Table) Add(tx *storage.Tx, e Entry) (storage.Offset, error) {
	if _, err := t.tree.LookupSlot(e.XID.Bytes()); err == nil {
		return storage.NullOffset, errors.Wrap(ErrActive, e.XID.String())
	} else if !storage.IsNotFound(err) {
		return storage.NullOffset, err
	}

	off, err := tx.Alloc(EntrySize)
	if err != nil {
		return storage.NullOffset, err
	}
	if err := tx.Write(off, e.Encode()); err != nil {
		return storage.NullOffset, err
	}

	var slot [8]byte
	binary.LittleEndian.PutUint64(slot[:], uint64(off))
	if err := t.tree.Insert(tx, e.XID.Bytes(), slot[:]); err != nil {
		return storage.NullOffset, err
	}
	return off, nil
}

// Lookup returns the entry of an active transaction and its reference.
func (t *Table) Lookup(xid ID) (Entry, storage.Offset, error) {
	slot, err := t.tree.LookupSlot(xid.Bytes())
	if err != nil {
		if storage.IsNotFound(err) {
			return Entry{}, storage.NullOffset, errors.Wrap(ErrInactive, xid.String())
		}
		return Entry{}, storage.NullOffset, err
	}
	val, err := t.tree.Lookup(xid.Bytes())
	if err != nil {
		return Entry{}, storage.NullOffset, err
	}
	e, err := Decode(val)
	if err != nil {
		return Entry{}, storage.NullOffset, err
	}
	return e, storage.Offset(slot), nil
}

// Remove deletes an active transaction and frees its entry.
func (t *Table) Remove(tx *storage.Tx, xid ID) error {
	err := t.tree.Delete(tx, xid.Bytes())
	if storage.IsNotFound(err) {
		return errors.Wrap(ErrInactive, xid.String())
	}
	return err
}

// Count returns the number of active transactions.
func (t *Table) Count() (uint64, error) {
	return t.tree.Count()
}

// Destroy frees the table and every entry in it.
func (t *Table) Destroy(tx *storage.Tx) error {
	return t.tree.Destroy(tx)
}
