// Package btree provides the keyed B+ tree engine of the VOS pool.
package btree

import (
	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// Upsert stores val under key. With ProbeEQ, the only probe it accepts, an
// existing record is merged through the class RecordUpdate and a missing
// one is inserted.
func (t *Tree) Upsert(tx *storage.Tx, probe Probe, key, val []byte) error {
	if probe != ProbeEQ {
		return ErrBadProbe
	}
	return t.put(tx, key, val, true, true)
}

// Insert adds a record and fails with ErrKeyExists if key is present.
func (t *Tree) Insert(tx *storage.Tx, key, val []byte) error {
	return t.put(tx, key, val, true, false)
}

// Update merges val into the record stored under key and fails with
// ErrKeyNotFound if there is none.
func (t *Tree) Update(tx *storage.Tx, key, val []byte) error {
	return t.put(tx, key, val, false, true)
}

// put implements Upsert, Insert and Update.
//
// Algorithm:
// 1. Find the leaf that covers the key
// 2. Merge into an existing record, or insert in sorted order
// 3. If the leaf overflows, split it and propagate the split upwards
// 4. If the root splits, grow the tree by one level
func (t *Tree) put(tx *storage.Tx, key, val []byte, insert, update bool) error {
	if t.closed {
		return ErrTreeClosed
	}
	hkey, err := t.hashKey(key)
	if err != nil {
		return err
	}

	path, err := t.findLeafWithPath(hkey)
	if err != nil {
		return err
	}

	if path == nil {
		if !insert {
			return ErrKeyNotFound
		}
		return t.insertFirst(tx, hkey, key, val)
	}

	leaf := path[len(path)-1]
	idx, found := t.findKeyIndex(leaf, hkey)
	if found {
		if !update {
			return ErrKeyExists
		}
		slot, err := t.ops.RecordUpdate(tx, hkey, leaf.values[idx], val)
		if err != nil {
			return err
		}
		if slot != leaf.values[idx] {
			leaf.values[idx] = slot
			if err := t.writeNode(tx, leaf); err != nil {
				return err
			}
		}
		return t.touch(tx, 0)
	}
	if !insert {
		return ErrKeyNotFound
	}

	slot, err := t.ops.RecordAlloc(tx, hkey, key, val)
	if err != nil {
		return err
	}
	leaf.keys = insertKeyAt(leaf.keys, idx, hkey)
	leaf.values = insertValueAt(leaf.values, idx, slot)

	if t.isFull(leaf) {
		err = t.splitLeafAndPropagate(tx, path)
	} else {
		err = t.writeNode(tx, leaf)
	}
	if err != nil {
		return err
	}
	return t.touch(tx, 1)
}

// insertFirst creates the root leaf of an empty tree.
func (t *Tree) insertFirst(tx *storage.Tx, hkey, key, val []byte) error {
	leaf, err := t.allocNode(tx, true)
	if err != nil {
		return err
	}
	slot, err := t.ops.RecordAlloc(tx, hkey, key, val)
	if err != nil {
		return err
	}
	leaf.keys = append(leaf.keys, hkey)
	leaf.values = append(leaf.values, slot)

	if err := t.writeNode(tx, leaf); err != nil {
		return err
	}
	if err := t.setRootNode(tx, leaf.off, 1); err != nil {
		return err
	}
	return t.touch(tx, 1)
}

// splitLeafAndPropagate splits an overfull leaf and inserts the new right
// leaf into the parent.
func (t *Tree) splitLeafAndPropagate(tx *storage.Tx, path []*node) error {
	leaf := path[len(path)-1]

	right, err := t.allocNode(tx, true)
	if err != nil {
		return err
	}

	split := (len(leaf.keys) + 1) / 2
	right.keys = append(right.keys, leaf.keys[split:]...)
	right.values = append(right.values, leaf.values[split:]...)
	leaf.keys = leaf.keys[:split]
	leaf.values = leaf.values[:split]

	right.prev = leaf.off
	right.next = leaf.next
	leaf.next = right.off
	if !right.next.IsNull() {
		next, err := t.readNode(right.next)
		if err != nil {
			return err
		}
		next.prev = right.off
		if err := t.writeNode(tx, next); err != nil {
			return err
		}
	}

	if err := t.writeNode(tx, leaf); err != nil {
		return err
	}
	if err := t.writeNode(tx, right); err != nil {
		return err
	}

	return t.insertIntoParent(tx, path[:len(path)-1], leaf.off, right.keys[0], right.off)
}

// insertIntoParent adds the separator key and right child next to left in
// the last node of path, splitting upwards as needed.
func (t *Tree) insertIntoParent(tx *storage.Tx, path []*node, left storage.Offset, key []byte, right storage.Offset) error {
	if len(path) == 0 {
		return t.createNewRoot(tx, left, key, right)
	}

	parent := path[len(path)-1]
	idx := -1
	for i, c := range parent.children {
		if c == left {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrCorruptNode
	}

	sep := make([]byte, len(key))
	copy(sep, key)
	parent.keys = insertKeyAt(parent.keys, idx, sep)
	parent.children = insertChildAt(parent.children, idx+1, right)

	if !t.isFull(parent) {
		return t.writeNode(tx, parent)
	}

	return t.splitInternalAndPropagate(tx, path)
}

// splitInternalAndPropagate splits an overfull internal node. The middle
// key moves up to the parent.
func (t *Tree) splitInternalAndPropagate(tx *storage.Tx, path []*node) error {
	internal := path[len(path)-1]

	right, err := t.allocNode(tx, false)
	if err != nil {
		return err
	}

	mid := len(internal.keys) / 2
	promoted := internal.keys[mid]
	right.keys = append(right.keys, internal.keys[mid+1:]...)
	right.children = append(right.children, internal.children[mid+1:]...)
	internal.keys = internal.keys[:mid]
	internal.children = internal.children[:mid+1]

	if err := t.writeNode(tx, internal); err != nil {
		return err
	}
	if err := t.writeNode(tx, right); err != nil {
		return err
	}

	return t.insertIntoParent(tx, path[:len(path)-1], internal.off, promoted, right.off)
}

// createNewRoot grows the tree by one level.
func (t *Tree) createNewRoot(tx *storage.Tx, left storage.Offset, key []byte, right storage.Offset) error {
	root, err := t.allocNode(tx, false)
	if err != nil {
		return err
	}
	root.keys = append(root.keys, key)
	root.children = append(root.children, left, right)
	if err := t.writeNode(tx, root); err != nil {
		return err
	}

	depth, err := t.Depth()
	if err != nil {
		return err
	}
	return t.setRootNode(tx, root.off, depth+1)
}

// LookupSlot returns the raw value slot of the record stored under key. It
// is meant for classes whose slot is the offset of a block they own.
func (t *Tree) LookupSlot(key []byte) (uint64, error) {
	if t.closed {
		return 0, ErrTreeClosed
	}
	hkey, err := t.hashKey(key)
	if err != nil {
		return 0, err
	}

	path, err := t.findLeafWithPath(hkey)
	if err != nil {
		return 0, err
	}
	if path == nil {
		return 0, ErrKeyNotFound
	}
	leaf := path[len(path)-1]
	idx, found := t.findKeyIndex(leaf, hkey)
	if !found {
		return 0, ErrKeyNotFound
	}
	return leaf.values[idx], nil
}

// Lookup returns the value stored under key.
func (t *Tree) Lookup(key []byte) ([]byte, error) {
	if t.closed {
		return nil, ErrTreeClosed
	}
	hkey, err := t.hashKey(key)
	if err != nil {
		return nil, err
	}

	path, err := t.findLeafWithPath(hkey)
	if err != nil {
		return nil, err
	}
	if path == nil {
		return nil, ErrKeyNotFound
	}

	leaf := path[len(path)-1]
	idx, found := t.findKeyIndex(leaf, hkey)
	if !found {
		return nil, ErrKeyNotFound
	}

	_, val, err := t.ops.RecordFetch(t.pool, leaf.keys[idx], leaf.values[idx])
	return val, err
}
