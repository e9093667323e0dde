// Package storage provides the persistent-memory pool for the VOS engine.
//
// # Overview
//
// A pool is a fixed-size file mapped into memory. Persistent structures
// inside it refer to each other by Offset, a position relative to the start
// of the file, and are read through Pool.Resolve. The file is laid out as:
//
//	+----------------+------------------+---------------------------------+
//	| header (4KB)   | undo log region  | heap                            |
//	+----------------+------------------+---------------------------------+
//
// # Transactions
//
// Every mutation runs inside a Tx. Before a range of existing bytes is
// overwritten its pre-image is appended to the undo log; committing empties
// the log, aborting replays it newest first. A pool opened with a non-empty
// undo log was interrupted mid-transaction and is rolled back by Open.
//
//	tx, err := pool.Begin()
//	if err != nil {
//	    return err
//	}
//	off, err := tx.Alloc(64)
//	if err == nil {
//	    err = tx.Write(off, payload)
//	}
//	return tx.End(err)
//
// Transactions nest: Tx.Begin joins the enclosing scope, and aborting an
// inner scope aborts the whole transaction.
//
// # Allocation
//
// Tx.Alloc hands out zeroed blocks in power-of-two size classes from 24 to
// 65528 usable bytes. Tx.Free pushes a block on its class free list. Both
// are undone with the transaction.
//
// # Errors
//
// Errors are tested by kind with errors.Is against ErrInvalidArgument,
// ErrInvalidState, ErrOutOfMemory, ErrIO, ErrNotFound, ErrExists and
// ErrTxAborted. Every more specific error wraps one of them.
package storage
