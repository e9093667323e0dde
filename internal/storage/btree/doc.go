// Package btree provides the keyed B+ tree engine of the VOS pool.
//
// # Overview
//
// A tree lives entirely inside a storage.Pool: a 40-byte root record holds
// its class, order, depth, record count and the offset of its top node.
// Every mutation takes the storage.Tx it runs in, so a failed operation is
// rolled back together with the rest of the caller's transaction.
//
// # Classes
//
// What a record looks like is decided by its class. A class implements Ops
// and is registered under a Class id:
//
//	btree.Register(btree.ClassILog, ilogOps{})
//
// Nodes store a fixed-size hashed key and an 8-byte value slot per record.
// A class may keep its whole value in the slot or allocate a block and keep
// its offset there. ClassUV, keyed by UUID with out-of-line values, is
// registered by this package.
//
// # Usage
//
//	tree, err := btree.Create(tx, btree.ClassUV, 0)
//	err = tree.Upsert(tx, btree.ProbeEQ, btree.UUIDKey(id), value)
//	val, err := tree.Lookup(btree.UUIDKey(id))
//
//	it, err := tree.IterPrepare()
//	defer it.Finish()
//	for err = it.Probe(btree.ProbeFirst, nil, nil); err == nil; err = it.Next() {
//	    key, val, anchor, err := it.Fetch()
//	    ...
//	}
//
// Iteration ends with an error of kind storage.ErrNotFound.
package btree
