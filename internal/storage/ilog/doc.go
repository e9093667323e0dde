// Package ilog implements the incarnation log: the per-key history of
// create and punch events, each tagged with an epoch and with the DTX that
// produced it, from which readers decide whether the key exists at a given
// epoch.
//
// # Representation
//
// A log is rooted in a 32-byte descriptor embedded in its owner's record.
// Most keys only ever see one event, so the first event is stored in the
// descriptor itself. The log moves to a tree of class btree.ClassILog only
// when a second event with a different epoch carries new information: an
// event at a later epoch with the same punch flag as the inline one is
// dropped.
//
//	empty --upsert--> inline --upsert(other epoch)--> tree
//
// # Transactions
//
// Every mutation runs in a storage.Tx. Upsert and Destroy start their own;
// UpsertTx and DestroyTx join the caller's, and a failure aborts the whole
// transaction so that the descriptor is never seen half-migrated.
package ilog
