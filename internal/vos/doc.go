// Package vos ties the pool, the keyed trees, the incarnation log and the
// active transaction table together into containers of versioned objects.
//
// # Layout
//
// The pool root object points at the container index, a tree keyed by
// container UUID. Each container record holds the roots of two trees:
//
//   - the active transaction table, keyed by DTX ID, whose entries are the
//     transaction references stamped into log events
//   - the object index, keyed by object ID, whose records embed the root of
//     the object's incarnation log
//
// # Usage
//
//	pool, err := vos.CreatePool(cfg, logger)
//	...
//	err = pool.CreateContainer(id)
//	cont, err := pool.OpenContainer(id)
//	defer cont.Close()
//
//	ref, err := cont.BeginDTX(dtx.Entry{XID: xid, OID: oid, Intent: dtx.IntentUpdate})
//	err = cont.UpdateObject(oid, mapVersion, epoch, ref, false)
//	err = cont.CommitDTX(xid)
//
//	visible, err := cont.ObjectVisible(oid, epoch)
//
// Every mutating call runs in one pool transaction; callers serialize
// mutations of the same object.
package vos
