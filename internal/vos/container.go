// Package vos provides containers of versioned objects over a VOS pool.
package vos

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/logging"
	"github.com/KilimcininKorOglu/vos/internal/storage"
	"github.com/KilimcininKorOglu/vos/internal/storage/btree"
	"github.com/KilimcininKorOglu/vos/internal/storage/dtx"
)

// Container record layout, stored as the value of the container index:
//   - Bytes 0-7:  Active transaction table root
//   - Bytes 8-15: Object index root
const contRecordSize = 16

// Container is an open container. Handles are shared: opening a container
// that is already open returns the same handle with one more reference.
// Reference counts are not atomic; a Container must not be closed
// concurrently with other calls on it.
type Container struct {
	pool    *Pool
	id      uuid.UUID
	refs    int
	active  *dtx.Table
	objects *btree.Tree
	logger  logging.Logger
}

// CreateContainer creates an empty container with the given UUID.
func (p *Pool) CreateContainer(id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	if _, err := p.index.Lookup(btree.UUIDKey(id)); err == nil {
		return errors.Wrap(ErrContainerExists, id.String())
	} else if !storage.IsNotFound(err) {
		return err
	}

	tx, err := p.store.Begin()
	if err != nil {
		return err
	}
	if err := tx.End(p.createContainer(tx, id)); err != nil {
		return errors.Wrapf(err, "vos: create container %s", id)
	}

	p.logger.Info("container created", "container", id.String())
	return nil
}

func (p *Pool) createContainer(tx *storage.Tx, id uuid.UUID) error {
	active, err := dtx.CreateTable(tx, p.trees.DTXOrder)
	if err != nil {
		return err
	}
	objects, err := btree.Create(tx, btree.ClassObject, p.trees.ObjectOrder)
	if err != nil {
		return err
	}

	rec := make([]byte, contRecordSize)
	binary.LittleEndian.PutUint64(rec[0:], uint64(active.Root()))
	binary.LittleEndian.PutUint64(rec[8:], uint64(objects.Root()))
	return p.index.Insert(tx, btree.UUIDKey(id), rec)
}

// OpenContainer returns a handle on an existing container.
func (p *Pool) OpenContainer(id uuid.UUID) (*Container, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}

	if c, ok := p.conts[id]; ok {
		c.addRef()
		return c, nil
	}

	activeRoot, objectRoot, err := p.lookupContainer(id)
	if err != nil {
		return nil, err
	}
	active, err := dtx.OpenTable(p.store, activeRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "vos: container %s", id)
	}
	objects, err := btree.OpenClass(p.store, objectRoot, btree.ClassObject)
	if err != nil {
		active.Close()
		return nil, errors.Wrapf(err, "vos: container %s", id)
	}

	c := &Container{
		pool:    p,
		id:      id,
		refs:    1,
		active:  active,
		objects: objects,
		logger:  p.logger.WithFields("container", id.String()),
	}
	p.conts[id] = c
	c.logger.Debug("container opened")
	return c, nil
}

func (p *Pool) lookupContainer(id uuid.UUID) (storage.Offset, storage.Offset, error) {
	rec, err := p.index.Lookup(btree.UUIDKey(id))
	if err != nil {
		if storage.IsNotFound(err) {
			return 0, 0, errors.Wrap(ErrContainerNotFound, id.String())
		}
		return 0, 0, err
	}
	if len(rec) != contRecordSize {
		return 0, 0, errors.Wrapf(ErrBadRecord, "container record of %d bytes", len(rec))
	}
	return storage.Offset(binary.LittleEndian.Uint64(rec[0:])),
		storage.Offset(binary.LittleEndian.Uint64(rec[8:])), nil
}

// DestroyContainer frees a container, its objects with their logs and its
// active transaction table. The container must not be open.
func (p *Pool) DestroyContainer(id uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	if _, ok := p.conts[id]; ok {
		return errors.Wrap(ErrContainerBusy, id.String())
	}

	activeRoot, objectRoot, err := p.lookupContainer(id)
	if err != nil {
		return err
	}
	active, err := dtx.OpenTable(p.store, activeRoot)
	if err != nil {
		return err
	}
	objects, err := btree.OpenClass(p.store, objectRoot, btree.ClassObject)
	if err != nil {
		return err
	}

	tx, err := p.store.Begin()
	if err != nil {
		return err
	}
	err = objects.Destroy(tx)
	if err == nil {
		err = active.Destroy(tx)
	}
	if err == nil {
		err = p.index.Delete(tx, btree.UUIDKey(id))
	}
	if err := tx.End(err); err != nil {
		return errors.Wrapf(err, "vos: destroy container %s", id)
	}

	p.logger.Info("container destroyed", "container", id.String())
	return nil
}

// ID returns the container UUID.
func (c *Container) ID() uuid.UUID {
	return c.id
}

// Pool returns the pool holding the container.
func (c *Container) Pool() *Pool {
	return c.pool
}

// Close drops a reference. The handle becomes invalid when the last one is
// dropped.
func (c *Container) Close() error {
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	if c.refs <= 0 {
		return ErrInvalidContainer
	}
	c.decRef()
	return nil
}

func (c *Container) valid() bool {
	return c != nil && c.refs > 0
}

// addRef takes a reference for an iterator or a second opener. Callers
// hold pool.mu, except iterators which rely on the handle being open.
func (c *Container) addRef() {
	c.refs++
}

func (c *Container) decRef() {
	if c.refs <= 0 {
		return
	}
	c.refs--
	if c.refs == 0 {
		c.release()
		delete(c.pool.conts, c.id)
	}
}

func (c *Container) release() {
	c.refs = 0
	c.active.Close()
	c.objects.Close()
	c.logger.Debug("container closed")
}

// Refs returns the number of references held on the handle.
func (c *Container) Refs() int {
	return c.refs
}

// BeginDTX records e as an active transaction of the container and returns
// its transaction reference, the value stamped into incarnation log events
// the transaction produces.
func (c *Container) BeginDTX(e dtx.Entry) (storage.Offset, error) {
	if !c.valid() {
		return storage.NullOffset, ErrInvalidContainer
	}
	tx, err := c.pool.store.Begin()
	if err != nil {
		return storage.NullOffset, err
	}
	ref, err := c.active.Add(tx, e)
	if err := tx.End(err); err != nil {
		return storage.NullOffset, err
	}
	c.logger.Debug("dtx started", "xid", e.XID.String(), "ref", ref)
	return ref, nil
}

// CommitDTX removes a transaction from the active table. Its reference
// must not be used for new events afterwards.
func (c *Container) CommitDTX(xid dtx.ID) error {
	if !c.valid() {
		return ErrInvalidContainer
	}
	tx, err := c.pool.store.Begin()
	if err != nil {
		return err
	}
	if err := tx.End(c.active.Remove(tx, xid)); err != nil {
		return err
	}
	c.logger.Debug("dtx committed", "xid", xid.String())
	return nil
}

// LookupDTX returns an active transaction and its reference.
func (c *Container) LookupDTX(xid dtx.ID) (dtx.Entry, storage.Offset, error) {
	if !c.valid() {
		return dtx.Entry{}, storage.NullOffset, ErrInvalidContainer
	}
	return c.active.Lookup(xid)
}

// ActiveDTXCount returns the number of active transactions.
func (c *Container) ActiveDTXCount() (uint64, error) {
	if !c.valid() {
		return 0, ErrInvalidContainer
	}
	return c.active.Count()
}
