// Package btree provides the keyed B+ tree engine of the VOS pool.
package btree

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// Tree root record layout:
//   - Bytes 0-3:   Magic
//   - Bytes 4-7:   Class
//   - Bytes 8-9:   Order
//   - Bytes 10-11: Depth (0 for an empty tree, 1 for a single leaf)
//   - Bytes 12-15: Hashed key size
//   - Bytes 16-23: Root node offset
//   - Bytes 24-31: Record count
//   - Bytes 32-39: Generation, bumped by every mutation
const (
	RootSize = 40

	rootMagic uint32 = 0xb7ee0001

	rootOffMagic = 0
	rootOffClass = 4
	rootOffOrder = 8
	rootOffDepth = 10
	rootOffHKey  = 12
	rootOffNode  = 16
	rootOffCount = 24
	rootOffGen   = 32
)

// Tree is an open handle on a tree stored in a pool. Handles are cheap and
// carry no state besides the tree geometry; several handles may be open on
// the same tree. A Tree is not safe for concurrent use.
type Tree struct {
	pool     *storage.Pool
	root     storage.Offset
	class    Class
	ops      Ops
	order    int
	hkeySize int
	closed   bool
}

// Create allocates an empty tree of the given class and order inside tx. An
// order of 0 selects DefaultOrder.
func Create(tx *storage.Tx, class Class, order int) (*Tree, error) {
	ops, err := lookupClass(class)
	if err != nil {
		return nil, err
	}
	if order == 0 {
		order = DefaultOrder
	}
	if order < MinOrder || order > MaxOrder ||
		nodeSize(order, ops.HashKeySize()) > storage.MaxAllocSize {
		return nil, errors.Wrapf(ErrBadOrder, "order %d", order)
	}

	off, err := tx.Alloc(RootSize)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, RootSize)
	binary.LittleEndian.PutUint32(buf[rootOffMagic:], rootMagic)
	binary.LittleEndian.PutUint32(buf[rootOffClass:], uint32(class))
	binary.LittleEndian.PutUint16(buf[rootOffOrder:], uint16(order))
	binary.LittleEndian.PutUint32(buf[rootOffHKey:], uint32(ops.HashKeySize()))
	if err := tx.Write(off, buf); err != nil {
		return nil, err
	}

	return &Tree{
		pool:     tx.Pool(),
		root:     off,
		class:    class,
		ops:      ops,
		order:    order,
		hkeySize: ops.HashKeySize(),
	}, nil
}

// Open opens the tree whose root record is at root.
func Open(pool *storage.Pool, root storage.Offset) (*Tree, error) {
	buf, err := pool.Resolve(root, RootSize)
	if err != nil {
		return nil, errors.Wrap(ErrNotTreeRoot, err.Error())
	}
	if binary.LittleEndian.Uint32(buf[rootOffMagic:]) != rootMagic {
		return nil, errors.Wrapf(ErrNotTreeRoot, "offset %s", root)
	}

	class := Class(binary.LittleEndian.Uint32(buf[rootOffClass:]))
	ops, err := lookupClass(class)
	if err != nil {
		return nil, errors.Wrapf(err, "class %d", class)
	}
	hkeySize := int(binary.LittleEndian.Uint32(buf[rootOffHKey:]))
	if hkeySize != ops.HashKeySize() {
		return nil, errors.Wrapf(ErrClassMismatch, "class %d hashed key size %d", class, hkeySize)
	}

	return &Tree{
		pool:     pool,
		root:     root,
		class:    class,
		ops:      ops,
		order:    int(binary.LittleEndian.Uint16(buf[rootOffOrder:])),
		hkeySize: hkeySize,
	}, nil
}

// OpenClass opens the tree at root and checks that it has the given class.
func OpenClass(pool *storage.Pool, root storage.Offset, class Class) (*Tree, error) {
	t, err := Open(pool, root)
	if err != nil {
		return nil, err
	}
	if t.class != class {
		return nil, errors.Wrapf(ErrClassMismatch, "want class %d, found %d", class, t.class)
	}
	return t, nil
}

// Close releases the handle. The tree itself is untouched.
func (t *Tree) Close() error {
	if t.closed {
		return ErrTreeClosed
	}
	t.closed = true
	return nil
}

// Root returns the offset of the tree root record.
func (t *Tree) Root() storage.Offset {
	return t.root
}

// Class returns the record class of the tree.
func (t *Tree) Class() Class {
	return t.class
}

// Order returns the maximum number of keys per node.
func (t *Tree) Order() int {
	return t.order
}

// Count returns the number of records in the tree.
func (t *Tree) Count() (uint64, error) {
	if t.closed {
		return 0, ErrTreeClosed
	}
	return t.rootU64(rootOffCount)
}

// Depth returns the number of node levels, 0 for an empty tree.
func (t *Tree) Depth() (int, error) {
	if t.closed {
		return 0, ErrTreeClosed
	}
	buf, err := t.pool.Resolve(t.root, RootSize)
	if err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint16(buf[rootOffDepth:])), nil
}

// IsEmpty reports whether the tree holds no records.
func (t *Tree) IsEmpty() (bool, error) {
	n, err := t.Count()
	return n == 0, err
}

// Destroy frees every record, every node and the root record, then closes
// the handle.
func (t *Tree) Destroy(tx *storage.Tx) error {
	if t.closed {
		return ErrTreeClosed
	}

	rootNode, err := t.rootNode()
	if err != nil {
		return err
	}
	if !rootNode.IsNull() {
		if err := t.destroyNode(tx, rootNode); err != nil {
			return err
		}
	}
	if err := tx.Free(t.root); err != nil {
		return err
	}

	t.closed = true
	return nil
}

func (t *Tree) destroyNode(tx *storage.Tx, off storage.Offset) error {
	n, err := t.readNode(off)
	if err != nil {
		return err
	}

	if n.leaf {
		for _, slot := range n.values {
			if err := t.ops.RecordFree(tx, slot); err != nil {
				return err
			}
		}
	} else {
		for _, c := range n.children {
			if err := t.destroyNode(tx, c); err != nil {
				return err
			}
		}
	}

	return tx.Free(off)
}

// hashKey validates key and returns its hashed form.
func (t *Tree) hashKey(key []byte) ([]byte, error) {
	hkey := make([]byte, t.hkeySize)
	if err := t.ops.HashKeyGen(key, hkey); err != nil {
		return nil, err
	}
	return hkey, nil
}

func (t *Tree) rootU64(field int) (uint64, error) {
	buf, err := t.pool.Resolve(t.root, RootSize)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[field:]), nil
}

func (t *Tree) rootNode() (storage.Offset, error) {
	v, err := t.rootU64(rootOffNode)
	return storage.Offset(v), err
}

func (t *Tree) generation() (uint64, error) {
	return t.rootU64(rootOffGen)
}

// setRootNode points the tree at a new top node and records the new depth.
func (t *Tree) setRootNode(tx *storage.Tx, off storage.Offset, depth int) error {
	if err := tx.WriteU64(t.root+rootOffNode, uint64(off)); err != nil {
		return err
	}
	var d [2]byte
	binary.LittleEndian.PutUint16(d[:], uint16(depth))
	return tx.Write(t.root+rootOffDepth, d[:])
}

// touch adds delta to the record count and bumps the generation so that
// open cursors notice the change.
func (t *Tree) touch(tx *storage.Tx, delta int) error {
	count, err := t.rootU64(rootOffCount)
	if err != nil {
		return err
	}
	gen, err := t.rootU64(rootOffGen)
	if err != nil {
		return err
	}
	if delta != 0 {
		if err := tx.WriteU64(t.root+rootOffCount, uint64(int64(count)+int64(delta))); err != nil {
			return err
		}
	}
	return tx.WriteU64(t.root+rootOffGen, gen+1)
}

// findLeafWithPath returns the nodes from the root down to the leaf that
// covers hkey. It returns a nil path for an empty tree.
func (t *Tree) findLeafWithPath(hkey []byte) ([]*node, error) {
	off, err := t.rootNode()
	if err != nil || off.IsNull() {
		return nil, err
	}

	var path []*node
	for {
		n, err := t.readNode(off)
		if err != nil {
			return nil, err
		}
		path = append(path, n)
		if n.leaf {
			return path, nil
		}
		off = n.children[t.childIndex(n, hkey)]
	}
}

// edgeLeaf returns the leftmost or rightmost leaf, or nil for an empty tree.
func (t *Tree) edgeLeaf(last bool) (*node, error) {
	off, err := t.rootNode()
	if err != nil || off.IsNull() {
		return nil, err
	}

	for {
		n, err := t.readNode(off)
		if err != nil {
			return nil, err
		}
		if n.leaf {
			return n, nil
		}
		if last {
			off = n.children[len(n.children)-1]
		} else {
			off = n.children[0]
		}
	}
}
