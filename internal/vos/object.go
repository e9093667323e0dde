// Package vos provides containers of versioned objects over a VOS pool.
package vos

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/storage"
	"github.com/KilimcininKorOglu/vos/internal/storage/btree"
	"github.com/KilimcininKorOglu/vos/internal/storage/dtx"
	"github.com/KilimcininKorOglu/vos/internal/storage/ilog"
)

// Object record layout. The record is allocated by the object index class
// and its offset is the tree value slot.
//   - Bytes 0-15:  Object ID
//   - Bytes 16-47: Incarnation log root
const (
	objRecordSize = 16 + ilog.RootSize
	objLogOffset  = 16
)

// objectOps keys the object index by encoded object ID. Each record embeds
// the root of the object's incarnation log, which is created together with
// the record and destroyed before it is freed.
type objectOps struct{}

func (objectOps) HashKeySize() int {
	return 16
}

func (objectOps) HashKeyGen(key []byte, hkey []byte) error {
	if len(key) != 16 {
		return errors.Wrapf(btree.ErrBadKeySize, "object key of %d bytes", len(key))
	}
	copy(hkey, key)
	return nil
}

func (objectOps) HashKeyCompare(a, b []byte) int {
	return bytes.Compare(a, b)
}

func (objectOps) RecordAlloc(tx *storage.Tx, hkey, _, _ []byte) (uint64, error) {
	off, err := tx.Alloc(objRecordSize)
	if err != nil {
		return 0, err
	}
	if err := tx.Write(off, hkey); err != nil {
		return 0, err
	}
	h, err := ilog.CreateTx(tx, off+objLogOffset)
	if err != nil {
		return 0, err
	}
	h.Close()
	return uint64(off), nil
}

func (objectOps) RecordFree(tx *storage.Tx, slot uint64) error {
	off := storage.Offset(slot)
	h, err := ilog.Open(tx.Pool(), off+objLogOffset)
	switch {
	case err == nil:
		err = h.DestroyTx(tx)
		h.Close()
		if err != nil {
			return err
		}
	case !errors.Is(err, ilog.ErrNotCreated):
		return err
	}
	return tx.Free(off)
}

func (objectOps) RecordFetch(pool *storage.Pool, hkey []byte, slot uint64) ([]byte, []byte, error) {
	b, err := pool.Resolve(storage.Offset(slot)+objLogOffset, ilog.RootSize)
	if err != nil {
		return nil, nil, err
	}
	return append([]byte(nil), hkey...), append([]byte(nil), b...), nil
}

// RecordUpdate leaves the record alone: the embedded log is only changed
// through its own operations.
func (objectOps) RecordUpdate(_ *storage.Tx, _ []byte, slot uint64, _ []byte) (uint64, error) {
	return slot, nil
}

var (
	objectOnce sync.Once
	objectErr  error
)

func registerObjectClass() error {
	objectOnce.Do(func() {
		objectErr = btree.Register(btree.ClassObject, objectOps{})
	})
	return objectErr
}

// logOptions returns the options for handles on object logs.
func (c *Container) logOptions() []ilog.Option {
	return []ilog.Option{
		ilog.WithTreeOrder(c.pool.trees.ILogOrder),
		ilog.WithLogger(c.logger),
	}
}

// objectLog opens the log of an existing object.
func (c *Container) objectLog(oid dtx.ObjectID) (*ilog.Handle, error) {
	slot, err := c.objects.LookupSlot(oid.Bytes())
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, errors.Wrap(ErrObjectNotFound, oid.String())
		}
		return nil, err
	}
	return ilog.Open(c.pool.store, storage.Offset(slot)+objLogOffset, c.logOptions()...)
}

// UpdateObject records a create, or a punch when punch is set, of object
// oid at epoch by the transaction whose reference is dtxRef. The object
// record and its log are created on first use. Either the whole update is
// applied or nothing is.
func (c *Container) UpdateObject(oid dtx.ObjectID, mapVersion uint32, epoch uint64, dtxRef storage.Offset, punch bool) error {
	if !c.valid() {
		return ErrInvalidContainer
	}

	tx, err := c.pool.store.Begin()
	if err != nil {
		return err
	}
	return tx.End(c.updateObject(tx, oid, mapVersion, epoch, dtxRef, punch))
}

func (c *Container) updateObject(tx *storage.Tx, oid dtx.ObjectID, mapVersion uint32, epoch uint64, dtxRef storage.Offset, punch bool) error {
	h, err := c.objectLog(oid)
	if errors.Is(err, ErrObjectNotFound) {
		if err := c.objects.Insert(tx, oid.Bytes(), nil); err != nil {
			return err
		}
		h, err = c.objectLog(oid)
	}
	if err != nil {
		return err
	}
	defer h.Close()

	return h.UpsertTx(tx, mapVersion, epoch, dtxRef, punch)
}

// ObjectLog returns the events recorded for an object in key order.
func (c *Container) ObjectLog(oid dtx.ObjectID) ([]ilog.Entry, error) {
	if !c.valid() {
		return nil, ErrInvalidContainer
	}
	h, err := c.objectLog(oid)
	if err != nil {
		return nil, err
	}
	defer h.Close()
	return h.Entries()
}

// ObjectVisible reports whether an object exists at epoch. An object that
// was never updated does not.
func (c *Container) ObjectVisible(oid dtx.ObjectID, epoch uint64) (bool, error) {
	if !c.valid() {
		return false, ErrInvalidContainer
	}
	h, err := c.objectLog(oid)
	if errors.Is(err, ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer h.Close()
	return h.Visible(epoch)
}

// DestroyObject destroys an object's log and removes its record.
func (c *Container) DestroyObject(oid dtx.ObjectID) error {
	if !c.valid() {
		return ErrInvalidContainer
	}
	tx, err := c.pool.store.Begin()
	if err != nil {
		return err
	}
	err = c.objects.Delete(tx, oid.Bytes())
	if storage.IsNotFound(err) {
		err = errors.Wrap(ErrObjectNotFound, oid.String())
	}
	return tx.End(err)
}

// Objects returns the IDs of all objects in the container in key order.
func (c *Container) Objects() ([]dtx.ObjectID, error) {
	if !c.valid() {
		return nil, ErrInvalidContainer
	}
	it, err := c.objects.IterPrepare()
	if err != nil {
		return nil, err
	}
	defer it.Finish()

	var oids []dtx.ObjectID
	err = it.Probe(btree.ProbeFirst, nil, nil)
	for err == nil {
		var key []byte
		if key, _, _, err = it.Fetch(); err != nil {
			break
		}
		oid, perr := dtx.ObjectIDFromBytes(key)
		if perr != nil {
			return nil, perr
		}
		oids = append(oids, oid)
		err = it.Next()
	}
	if !storage.IsNotFound(err) {
		return nil, err
	}
	return oids, nil
}
