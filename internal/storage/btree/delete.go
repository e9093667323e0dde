// Package btree provides the keyed B+ tree engine of the VOS pool.
package btree

import (
	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// Delete removes the record stored under key and frees it through the class
// RecordFree. It returns ErrKeyNotFound if the key is absent.
//
// Algorithm:
// 1. Find the leaf containing the key and remove the record
// 2. If the leaf becomes empty, unlink it from its siblings and remove it
//    from its parent, repeating upwards for parents left without children
// 3. While the root is an internal node with a single child, make that
//    child the root
//
// Nodes that merely become sparse are kept as they are.
func (t *Tree) Delete(tx *storage.Tx, key []byte) error {
	if t.closed {
		return ErrTreeClosed
	}
	hkey, err := t.hashKey(key)
	if err != nil {
		return err
	}
	return t.deleteHKey(tx, hkey)
}

func (t *Tree) deleteHKey(tx *storage.Tx, hkey []byte) error {
	path, err := t.findLeafWithPath(hkey)
	if err != nil {
		return err
	}
	if path == nil {
		return ErrKeyNotFound
	}

	leaf := path[len(path)-1]
	idx, found := t.findKeyIndex(leaf, hkey)
	if !found {
		return ErrKeyNotFound
	}

	if err := t.ops.RecordFree(tx, leaf.values[idx]); err != nil {
		return err
	}
	leaf.keys = append(leaf.keys[:idx], leaf.keys[idx+1:]...)
	leaf.values = append(leaf.values[:idx], leaf.values[idx+1:]...)

	if len(leaf.keys) > 0 {
		err = t.writeNode(tx, leaf)
	} else {
		err = t.removeNode(tx, path)
	}
	if err != nil {
		return err
	}

	if err := t.collapseRoot(tx); err != nil {
		return err
	}
	return t.touch(tx, -1)
}

// removeNode frees the last node of path, which has become empty, and
// detaches it from its parent.
func (t *Tree) removeNode(tx *storage.Tx, path []*node) error {
	n := path[len(path)-1]

	if n.leaf {
		if err := t.unlinkLeaf(tx, n); err != nil {
			return err
		}
	}
	if err := tx.Free(n.off); err != nil {
		return err
	}

	if len(path) == 1 {
		return t.setRootNode(tx, storage.NullOffset, 0)
	}

	parent := path[len(path)-2]
	idx := -1
	for i, c := range parent.children {
		if c == n.off {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrCorruptNode
	}

	if idx == 0 {
		parent.children = parent.children[1:]
		if len(parent.keys) > 0 {
			parent.keys = parent.keys[1:]
		}
	} else {
		parent.keys = append(parent.keys[:idx-1], parent.keys[idx:]...)
		parent.children = append(parent.children[:idx], parent.children[idx+1:]...)
	}

	if len(parent.children) == 0 {
		return t.removeNode(tx, path[:len(path)-1])
	}
	return t.writeNode(tx, parent)
}

// unlinkLeaf removes a leaf from the sibling chain.
func (t *Tree) unlinkLeaf(tx *storage.Tx, n *node) error {
	if !n.prev.IsNull() {
		prev, err := t.readNode(n.prev)
		if err != nil {
			return err
		}
		prev.next = n.next
		if err := t.writeNode(tx, prev); err != nil {
			return err
		}
	}
	if !n.next.IsNull() {
		next, err := t.readNode(n.next)
		if err != nil {
			return err
		}
		next.prev = n.prev
		if err := t.writeNode(tx, next); err != nil {
			return err
		}
	}
	return nil
}

// collapseRoot shrinks the tree while its root has a single child.
func (t *Tree) collapseRoot(tx *storage.Tx) error {
	for {
		off, err := t.rootNode()
		if err != nil || off.IsNull() {
			return err
		}
		root, err := t.readNode(off)
		if err != nil {
			return err
		}
		if root.leaf || len(root.children) != 1 {
			return nil
		}

		depth, err := t.Depth()
		if err != nil {
			return err
		}
		if err := tx.Free(root.off); err != nil {
			return err
		}
		if err := t.setRootNode(tx, root.children[0], depth-1); err != nil {
			return err
		}
	}
}
