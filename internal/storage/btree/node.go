// Package btree provides the keyed B+ tree engine of the VOS pool.
package btree

import (
	"encoding/binary"

	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// Tree geometry.
const (
	// DefaultOrder is the number of records a node holds when Create is
	// given order 0.
	DefaultOrder = 16

	// MinOrder is the smallest order a tree can have.
	MinOrder = 3

	// MaxOrder is the largest order a tree can have.
	MaxOrder = 1024

	// nodeHeaderSize covers flags, key count and the leaf sibling links.
	//   - Bytes 0-1:   Flags (nodeLeaf)
	//   - Bytes 2-3:   Key count
	//   - Bytes 4-7:   Reserved
	//   - Bytes 8-15:  Previous leaf
	//   - Bytes 16-23: Next leaf
	nodeHeaderSize = 24

	nodeLeaf uint16 = 1 << 0
)

// node is the in-memory form of a tree node. Nodes are read from the pool,
// modified and written back as a whole through the transaction.
//
// A node of a tree of order m holds up to m keys. Keys are followed by m+1
// value words: record slots in a leaf (Values[i] belongs to Keys[i]) and
// child offsets in an internal node (Keys[i] separates Children[i] from
// Children[i+1]; keys equal to a separator live on its right).
type node struct {
	off      storage.Offset
	leaf     bool
	keys     [][]byte
	values   []uint64
	children []storage.Offset
	prev     storage.Offset
	next     storage.Offset
}

// nodeSize returns the block size of a node for the given geometry.
func nodeSize(order, hkeySize int) int {
	return nodeHeaderSize + order*hkeySize + (order+1)*8
}

func (t *Tree) newNode(leaf bool) *node {
	n := &node{leaf: leaf}
	if leaf {
		n.keys = make([][]byte, 0, t.order+1)
		n.values = make([]uint64, 0, t.order+1)
	} else {
		n.keys = make([][]byte, 0, t.order+1)
		n.children = make([]storage.Offset, 0, t.order+2)
	}
	return n
}

// allocNode allocates pool space for a new node.
func (t *Tree) allocNode(tx *storage.Tx, leaf bool) (*node, error) {
	off, err := tx.Alloc(nodeSize(t.order, t.hkeySize))
	if err != nil {
		return nil, err
	}
	n := t.newNode(leaf)
	n.off = off
	return n, nil
}

// readNode decodes the node at off. Keys are copied out of the pool.
func (t *Tree) readNode(off storage.Offset) (*node, error) {
	if off.IsNull() {
		return nil, ErrCorruptNode
	}
	buf, err := t.pool.Resolve(off, nodeSize(t.order, t.hkeySize))
	if err != nil {
		return nil, err
	}

	flags := binary.LittleEndian.Uint16(buf[0:])
	count := int(binary.LittleEndian.Uint16(buf[2:]))
	if count > t.order {
		return nil, ErrCorruptNode
	}

	n := t.newNode(flags&nodeLeaf != 0)
	n.off = off
	n.prev = storage.Offset(binary.LittleEndian.Uint64(buf[8:]))
	n.next = storage.Offset(binary.LittleEndian.Uint64(buf[16:]))

	pos := nodeHeaderSize
	for i := 0; i < count; i++ {
		key := make([]byte, t.hkeySize)
		copy(key, buf[pos:pos+t.hkeySize])
		n.keys = append(n.keys, key)
		pos += t.hkeySize
	}

	pos = nodeHeaderSize + t.order*t.hkeySize
	if n.leaf {
		for i := 0; i < count; i++ {
			n.values = append(n.values, binary.LittleEndian.Uint64(buf[pos+i*8:]))
		}
	} else {
		for i := 0; i <= count; i++ {
			n.children = append(n.children, storage.Offset(binary.LittleEndian.Uint64(buf[pos+i*8:])))
		}
	}

	return n, nil
}

// writeNode encodes n and writes it through tx.
func (t *Tree) writeNode(tx *storage.Tx, n *node) error {
	if len(n.keys) > t.order {
		return ErrCorruptNode
	}

	buf := make([]byte, nodeSize(t.order, t.hkeySize))
	var flags uint16
	if n.leaf {
		flags |= nodeLeaf
	}
	binary.LittleEndian.PutUint16(buf[0:], flags)
	binary.LittleEndian.PutUint16(buf[2:], uint16(len(n.keys)))
	binary.LittleEndian.PutUint64(buf[8:], uint64(n.prev))
	binary.LittleEndian.PutUint64(buf[16:], uint64(n.next))

	pos := nodeHeaderSize
	for _, k := range n.keys {
		copy(buf[pos:], k)
		pos += t.hkeySize
	}

	pos = nodeHeaderSize + t.order*t.hkeySize
	if n.leaf {
		for i, v := range n.values {
			binary.LittleEndian.PutUint64(buf[pos+i*8:], v)
		}
	} else {
		for i, c := range n.children {
			binary.LittleEndian.PutUint64(buf[pos+i*8:], uint64(c))
		}
	}

	return tx.Write(n.off, buf)
}

// isFull reports whether n has more keys than a node may hold and must be
// split before it is written.
func (t *Tree) isFull(n *node) bool {
	return len(n.keys) > t.order
}

// findKeyIndex returns the first index whose key is >= hkey, and whether
// that key equals hkey.
func (t *Tree) findKeyIndex(n *node, hkey []byte) (int, bool) {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.ops.HashKeyCompare(n.keys[mid], hkey) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < len(n.keys) && t.ops.HashKeyCompare(n.keys[lo], hkey) == 0
}

// childIndex returns the index of the child of internal node n that covers
// hkey.
func (t *Tree) childIndex(n *node, hkey []byte) int {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.ops.HashKeyCompare(n.keys[mid], hkey) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func insertKeyAt(keys [][]byte, idx int, key []byte) [][]byte {
	keys = append(keys, nil)
	copy(keys[idx+1:], keys[idx:])
	keys[idx] = key
	return keys
}

func insertValueAt(vals []uint64, idx int, v uint64) []uint64 {
	vals = append(vals, 0)
	copy(vals[idx+1:], vals[idx:])
	vals[idx] = v
	return vals
}

func insertChildAt(children []storage.Offset, idx int, c storage.Offset) []storage.Offset {
	children = append(children, 0)
	copy(children[idx+1:], children[idx:])
	children[idx] = c
	return children
}
