// Package storage provides the persistent-memory pool for the VOS engine.
package storage

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

type txState int

const (
	txActive txState = iota
	txCommitted
	txAborted
)

type txRange struct {
	off Offset
	n   int
}

// Tx is a transaction scope over a pool. Every overwrite of existing pool
// bytes made through it is preceded by an undo record, so Abort and crash
// recovery restore the bytes as they were at Begin.
//
// A Tx may be nested with Begin: the inner scope joins the outer one, its
// Commit is a no-op and its Abort aborts the whole transaction. The pool is
// released when the outermost scope ends.
//
// Typical use:
//
//	tx, err := pool.Begin()
//	if err != nil {
//	    return err
//	}
//	err = doWork(tx)
//	return tx.End(err)
type Tx struct {
	pool   *Pool
	depth  int
	state  txState
	cause  error
	ranges map[txRange]struct{}

	// fresh is the heap bump cursor at Begin. Bytes at or past it were
	// never allocated before this transaction and need no pre-image.
	fresh uint64
}

// Begin starts a transaction. It blocks while another transaction runs.
func (p *Pool) Begin() (*Tx, error) {
	p.txMu.Lock()

	if p.isClosed() {
		p.txMu.Unlock()
		return nil, ErrPoolClosed
	}
	if err := p.inject("tx.begin"); err != nil {
		p.txMu.Unlock()
		return nil, errors.Wrap(err, "begin transaction")
	}

	return &Tx{
		pool:   p,
		depth:  1,
		state:  txActive,
		ranges: make(map[txRange]struct{}),
		fresh:  p.u64(hdrBump),
	}, nil
}

// Begin opens a nested scope that joins tx.
func (tx *Tx) Begin() (*Tx, error) {
	if err := tx.check(); err != nil {
		return nil, err
	}
	tx.depth++
	return tx, nil
}

// Pool returns the pool the transaction runs on.
func (tx *Tx) Pool() *Pool {
	return tx.pool
}

// Active reports whether the transaction can still be used.
func (tx *Tx) Active() bool {
	return tx.depth > 0 && tx.state == txActive
}

func (tx *Tx) check() error {
	if tx.depth == 0 {
		return ErrTxEnded
	}
	if tx.state == txAborted {
		return errors.Wrap(ErrTxAborted, causeString(tx.cause))
	}
	return nil
}

func causeString(err error) string {
	if err == nil {
		return "aborted"
	}
	return err.Error()
}

// AddRange saves the current contents of [off, off+n) in the undo log.
// It must be called before the range is modified. Ranges already saved in
// this transaction and freshly allocated heap are skipped.
func (tx *Tx) AddRange(off Offset, n int) error {
	if err := tx.check(); err != nil {
		return err
	}
	p := tx.pool
	if n <= 0 || uint64(off) < hdrImmutableEnd || uint64(off)+uint64(n) > p.hdr.Size ||
		(uint64(off) < p.hdr.HeapStart && uint64(off)+uint64(n) > HeaderSize) {
		return errors.Wrapf(ErrOutOfRange, "range %s+%d", off, n)
	}

	r := txRange{off: off, n: n}
	if _, ok := tx.ranges[r]; ok {
		return nil
	}
	if uint64(off) >= tx.fresh {
		return nil
	}

	if err := p.inject("tx.add"); err != nil {
		return err
	}
	if err := p.appendUndo(uint64(off), n); err != nil {
		return err
	}
	tx.ranges[r] = struct{}{}
	return nil
}

// Write saves the pre-image of the target range and copies b into the pool
// at off.
func (tx *Tx) Write(off Offset, b []byte) error {
	if err := tx.AddRange(off, len(b)); err != nil {
		return err
	}
	copy(tx.pool.data[off:], b)
	return nil
}

// WriteU64 writes a little-endian word at off.
func (tx *Tx) WriteU64(off Offset, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return tx.Write(off, buf[:])
}

// Commit ends the scope. For the outermost scope it makes all writes
// durable and discards the undo log. Committing an aborted transaction
// returns ErrTxAborted.
func (tx *Tx) Commit() error {
	if tx.depth == 0 {
		return ErrTxEnded
	}
	if tx.state == txAborted {
		tx.leave()
		return errors.Wrap(ErrTxAborted, causeString(tx.cause))
	}

	if tx.depth > 1 {
		tx.depth--
		return nil
	}

	p := tx.pool
	if err := p.inject("tx.commit"); err != nil {
		tx.abort(err)
		tx.leave()
		return errors.Wrap(err, "commit transaction")
	}
	if err := p.truncateUndo(); err != nil {
		tx.abort(err)
		tx.leave()
		return errors.Wrap(err, "commit transaction")
	}

	tx.state = txCommitted
	tx.leave()
	return nil
}

// Abort rolls back every write made in the transaction, including writes of
// enclosing scopes, and ends this scope. It returns cause, or ErrTxAborted
// when cause is nil.
func (tx *Tx) Abort(cause error) error {
	if tx.depth == 0 {
		return ErrTxEnded
	}
	if cause == nil {
		cause = ErrTxAborted
	}
	if tx.state == txActive {
		tx.abort(cause)
	}
	tx.leave()
	return cause
}

// End commits the scope when err is nil and aborts it otherwise. It returns
// the resulting error.
func (tx *Tx) End(err error) error {
	if err != nil {
		return tx.Abort(err)
	}
	return tx.Commit()
}

// Discard aborts the transaction unless it has already ended, and releases
// the pool. It is meant for defer on the outermost scope.
func (tx *Tx) Discard() {
	if tx.depth == 0 {
		return
	}
	if tx.state == txActive {
		tx.abort(ErrTxAborted)
	}
	tx.depth = 1
	tx.leave()
}

func (tx *Tx) abort(cause error) {
	tx.state = txAborted
	tx.cause = cause

	n, err := tx.pool.rollback()
	if err != nil {
		tx.pool.logger.Error("transaction rollback failed", "cause", cause, "error", err)
		return
	}
	tx.pool.logger.Debug("transaction aborted", "cause", cause, "undo_records", n)
}

func (tx *Tx) leave() {
	tx.depth--
	if tx.depth == 0 {
		tx.pool.txMu.Unlock()
	}
}
