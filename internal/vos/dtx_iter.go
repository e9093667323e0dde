// Package vos provides containers of versioned objects over a VOS pool.
package vos

import (
	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/storage"
	"github.com/KilimcininKorOglu/vos/internal/storage/btree"
	"github.com/KilimcininKorOglu/vos/internal/storage/dtx"
)

// DTXIterator walks the active transaction table of a container in ID
// order. It is used by recovery to find and discard transactions left
// behind by a failed leader:
//
//	it, err := vos.PrepareDTXIter(cont)
//	if err != nil {
//	    return err
//	}
//	defer it.Finish()
//
//	for err = it.Probe(nil); err == nil; err = it.Next() {
//	    entry, anchor, err := it.Fetch()
//	    ...
//	}
//
// The iterator holds a reference on its container until Finish.
type DTXIterator struct {
	cont     *Container
	iter     *btree.Iterator
	finished bool
}

// PrepareDTXIter returns an iterator over the active transactions of c.
// It fails with an error of kind storage.ErrInvalidArgument when c is nil
// or closed.
func PrepareDTXIter(c *Container) (*DTXIterator, error) {
	if c == nil || c.pool == nil {
		return nil, ErrInvalidContainer
	}
	c.pool.mu.Lock()
	defer c.pool.mu.Unlock()
	if !c.valid() {
		return nil, ErrInvalidContainer
	}

	iter, err := c.active.Tree().IterPrepare()
	if err != nil {
		c.logger.Error("failed to prepare dtx iteration", "error", err)
		return nil, err
	}
	c.addRef()
	return &DTXIterator{cont: c, iter: iter}, nil
}

// Probe positions the iterator at the first active transaction, or at the
// first one at or after anchor when anchor is set. It returns an error of
// kind storage.ErrNotFound when there is none.
func (it *DTXIterator) Probe(anchor *btree.Anchor) error {
	if it.finished {
		return btree.ErrIterFinished
	}
	return it.iter.Probe(btree.ProbeFirst, nil, anchor)
}

// Next moves to the following transaction. Past the last one it returns
// an error of kind storage.ErrNotFound, as does every later Fetch.
func (it *DTXIterator) Next() error {
	if it.finished {
		return btree.ErrIterFinished
	}
	return it.iter.Next()
}

// Fetch decodes the current transaction. The anchor resumes iteration at
// this transaction when passed to Probe on a later iterator.
func (it *DTXIterator) Fetch() (dtx.Entry, btree.Anchor, error) {
	if it.finished {
		return dtx.Entry{}, btree.Anchor{}, btree.ErrIterFinished
	}
	_, val, anchor, err := it.iter.Fetch()
	if err != nil {
		return dtx.Entry{}, btree.Anchor{}, err
	}
	if len(val) != dtx.EntrySize {
		return dtx.Entry{}, btree.Anchor{}, errors.Wrapf(ErrBadRecord, "dtx entry of %d bytes", len(val))
	}
	e, err := dtx.Decode(val)
	if err != nil {
		return dtx.Entry{}, btree.Anchor{}, err
	}
	it.cont.logger.Debug("dtx iterator fetched entry", "xid", e.XID.String())
	return e, anchor, nil
}

// Delete removes the current transaction from the table in a transaction
// of its own. After a failure the position is undefined and the iterator
// should be probed again.
func (it *DTXIterator) Delete() error {
	if it.finished {
		return btree.ErrIterFinished
	}
	tx, err := it.cont.pool.store.Begin()
	if err != nil {
		return err
	}
	if err := tx.End(it.iter.Delete(tx)); err != nil {
		it.cont.logger.Error("failed to delete dtx entry", "error", err)
		return err
	}
	return nil
}

// Finish releases the iterator and its container reference. It is safe to
// call more than once.
func (it *DTXIterator) Finish() {
	if it.finished {
		return
	}
	it.finished = true
	it.iter.Finish()

	it.cont.pool.mu.Lock()
	it.cont.decRef()
	it.cont.pool.mu.Unlock()
}

// PurgeDTX deletes every active transaction of c and returns how many were
// removed.
func PurgeDTX(c *Container) (int, error) {
	it, err := PrepareDTXIter(c)
	if err != nil {
		return 0, err
	}
	defer it.Finish()

	n := 0
	for err = it.Probe(nil); err == nil; err = it.Next() {
		if err = it.Delete(); err != nil {
			return n, err
		}
		n++
	}
	if !storage.IsNotFound(err) {
		return n, err
	}
	return n, nil
}
