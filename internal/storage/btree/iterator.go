// Package btree provides the keyed B+ tree engine of the VOS pool.
package btree

import (
	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// Probe selects where Iterator.Probe positions the cursor, and how Upsert
// matches an existing record.
type Probe int

const (
	// ProbeFirst positions at the smallest key.
	ProbeFirst Probe = iota
	// ProbeLast positions at the largest key.
	ProbeLast
	// ProbeEQ positions at the given key. For Upsert it means update the
	// record with that key, or insert it.
	ProbeEQ
	// ProbeGE positions at the smallest key >= the given key.
	ProbeGE
	// ProbeGT positions at the smallest key > the given key.
	ProbeGT
	// ProbeLE positions at the largest key <= the given key.
	ProbeLE
	// ProbeLT positions at the largest key < the given key.
	ProbeLT
)

// String returns the name of the probe operation.
func (p Probe) String() string {
	switch p {
	case ProbeFirst:
		return "first"
	case ProbeLast:
		return "last"
	case ProbeEQ:
		return "eq"
	case ProbeGE:
		return "ge"
	case ProbeGT:
		return "gt"
	case ProbeLE:
		return "le"
	case ProbeLT:
		return "lt"
	default:
		return "unknown"
	}
}

// Anchor is an opaque resume point returned by Iterator.Fetch. Probing a
// fresh iterator with it continues from the fetched record.
type Anchor struct {
	hkey []byte
}

// AnchorFromBytes rebuilds an anchor saved with Bytes.
func AnchorFromBytes(b []byte) Anchor {
	return Anchor{hkey: append([]byte(nil), b...)}
}

// Bytes returns the serialized anchor.
func (a Anchor) Bytes() []byte {
	return append([]byte(nil), a.hkey...)
}

// IsZero reports whether the anchor is unset.
func (a Anchor) IsZero() bool {
	return len(a.hkey) == 0
}

type iterState int

const (
	iterPrepared iterState = iota
	iterPositioned
	iterExhausted
	iterFinished
)

// Iterator is a cursor over a tree in key order.
//
// The cursor remembers the hashed key of its current record. When the tree
// changes under it, including through Iterator.Delete, the next call finds
// its place again by that key, so a Next after a Delete yields the record
// that followed the deleted one.
type Iterator struct {
	tree    *Tree
	state   iterState
	leaf    *node
	idx     int
	hkey    []byte
	gen     uint64
	deleted bool
}

// IterPrepare returns an unpositioned cursor over the tree.
func (t *Tree) IterPrepare() (*Iterator, error) {
	if t.closed {
		return nil, ErrTreeClosed
	}
	return &Iterator{tree: t, state: iterPrepared}, nil
}

// Probe positions the cursor. When anchor is set it replaces key, and
// ProbeFirst and ProbeLast act as ProbeGE and ProbeLE on the anchor.
// Probe returns an error of kind storage.ErrNotFound when no record
// matches; the iterator is then exhausted.
func (it *Iterator) Probe(opc Probe, key []byte, anchor *Anchor) error {
	if err := it.check(); err != nil {
		return err
	}

	var hkey []byte
	switch {
	case anchor != nil && !anchor.IsZero():
		if len(anchor.hkey) != it.tree.hkeySize {
			return errors.Wrap(storage.ErrInvalidArgument, "anchor does not belong to this tree")
		}
		hkey = anchor.hkey
		switch opc {
		case ProbeFirst:
			opc = ProbeGE
		case ProbeLast:
			opc = ProbeLE
		}
	case opc != ProbeFirst && opc != ProbeLast:
		h, err := it.tree.hashKey(key)
		if err != nil {
			return err
		}
		hkey = h
	}

	return it.seek(opc, hkey)
}

// Next moves to the following record. At the end it returns an error of
// kind storage.ErrNotFound and the iterator is exhausted.
func (it *Iterator) Next() error {
	if err := it.checkMoving(); err != nil {
		return err
	}
	if stale, err := it.stale(); err != nil {
		return err
	} else if stale {
		return it.seek(ProbeGT, it.hkey)
	}

	it.idx++
	return it.forward()
}

// Prev moves to the preceding record.
func (it *Iterator) Prev() error {
	if err := it.checkMoving(); err != nil {
		return err
	}
	if stale, err := it.stale(); err != nil {
		return err
	} else if stale {
		return it.seek(ProbeLT, it.hkey)
	}

	it.idx--
	return it.backward()
}

// Fetch returns the key and value of the current record and an anchor that
// resumes iteration at it. After the current record was deleted Fetch
// fails with an error of kind storage.ErrNotFound until the cursor moves.
func (it *Iterator) Fetch() (key, val []byte, anchor Anchor, err error) {
	if err := it.checkMoving(); err != nil {
		return nil, nil, Anchor{}, err
	}
	if err := it.reposition(); err != nil {
		return nil, nil, Anchor{}, err
	}

	key, val, err = it.tree.ops.RecordFetch(it.tree.pool, it.hkey, it.leaf.values[it.idx])
	if err != nil {
		return nil, nil, Anchor{}, err
	}
	return key, val, Anchor{hkey: append([]byte(nil), it.hkey...)}, nil
}

// Delete removes the current record inside tx. The cursor stays usable:
// Next and Prev continue from the deleted record's position.
func (it *Iterator) Delete(tx *storage.Tx) error {
	if err := it.checkMoving(); err != nil {
		return err
	}
	if err := it.reposition(); err != nil {
		return err
	}
	if err := it.tree.deleteHKey(tx, it.hkey); err != nil {
		return err
	}
	it.deleted = true
	return nil
}

// Finish releases the cursor. It is safe to call more than once.
func (it *Iterator) Finish() {
	it.state = iterFinished
	it.leaf = nil
	it.hkey = nil
}

func (it *Iterator) check() error {
	if it.state == iterFinished {
		return ErrIterFinished
	}
	if it.tree.closed {
		return ErrTreeClosed
	}
	return nil
}

func (it *Iterator) checkMoving() error {
	if err := it.check(); err != nil {
		return err
	}
	switch it.state {
	case iterPrepared:
		return ErrIterNotReady
	case iterExhausted:
		return ErrIterExhausted
	}
	return nil
}

// stale reports whether the tree changed since the cursor was positioned.
func (it *Iterator) stale() (bool, error) {
	if it.deleted {
		return true, nil
	}
	gen, err := it.tree.generation()
	if err != nil {
		return false, err
	}
	return gen != it.gen, nil
}

// reposition reloads the current record after the tree changed. It fails
// without moving the cursor if the record is gone.
func (it *Iterator) reposition() error {
	stale, err := it.stale()
	if err != nil || !stale {
		return err
	}
	if it.deleted {
		return ErrIterExhausted
	}

	path, err := it.tree.findLeafWithPath(it.hkey)
	if err != nil {
		return err
	}
	if path == nil {
		return ErrIterExhausted
	}
	leaf := path[len(path)-1]
	idx, found := it.tree.findKeyIndex(leaf, it.hkey)
	if !found {
		return ErrIterExhausted
	}
	return it.settle(leaf, idx)
}

// seek positions the cursor for opc relative to hkey.
func (it *Iterator) seek(opc Probe, hkey []byte) error {
	t := it.tree
	it.deleted = false

	switch opc {
	case ProbeFirst, ProbeLast:
		leaf, err := t.edgeLeaf(opc == ProbeLast)
		if err != nil {
			return err
		}
		if leaf == nil || len(leaf.keys) == 0 {
			return it.exhaust()
		}
		it.leaf = leaf
		if opc == ProbeFirst {
			it.idx = 0
		} else {
			it.idx = len(leaf.keys) - 1
		}
		return it.settle(it.leaf, it.idx)
	}

	path, err := t.findLeafWithPath(hkey)
	if err != nil {
		return err
	}
	if path == nil {
		return it.exhaust()
	}
	it.leaf = path[len(path)-1]
	idx, found := t.findKeyIndex(it.leaf, hkey)

	switch opc {
	case ProbeEQ:
		if !found {
			return it.exhaust()
		}
		it.idx = idx
		return it.settle(it.leaf, it.idx)
	case ProbeGE:
		it.idx = idx
		return it.forward()
	case ProbeGT:
		if found {
			idx++
		}
		it.idx = idx
		return it.forward()
	case ProbeLE:
		if !found {
			idx--
		}
		it.idx = idx
		return it.backward()
	case ProbeLT:
		it.idx = idx - 1
		return it.backward()
	}
	return ErrBadProbe
}

// forward settles on it.idx, stepping into following leaves when the
// index is past the end of the current one.
func (it *Iterator) forward() error {
	for it.idx >= len(it.leaf.keys) {
		if it.leaf.next.IsNull() {
			return it.exhaust()
		}
		next, err := it.tree.readNode(it.leaf.next)
		if err != nil {
			return err
		}
		it.leaf = next
		it.idx = 0
	}
	return it.settle(it.leaf, it.idx)
}

// backward settles on it.idx, stepping into preceding leaves when the
// index is before the start of the current one.
func (it *Iterator) backward() error {
	for it.idx < 0 {
		if it.leaf.prev.IsNull() {
			return it.exhaust()
		}
		prev, err := it.tree.readNode(it.leaf.prev)
		if err != nil {
			return err
		}
		it.leaf = prev
		it.idx = len(prev.keys) - 1
	}
	return it.settle(it.leaf, it.idx)
}

func (it *Iterator) settle(leaf *node, idx int) error {
	gen, err := it.tree.generation()
	if err != nil {
		return err
	}
	it.leaf = leaf
	it.idx = idx
	it.hkey = append(it.hkey[:0], leaf.keys[idx]...)
	it.gen = gen
	it.deleted = false
	it.state = iterPositioned
	return nil
}

func (it *Iterator) exhaust() error {
	it.state = iterExhausted
	it.leaf = nil
	return ErrIterExhausted
}
