// Package storage provides the persistent-memory pool for the VOS engine.
package storage

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/logging"
)

// Pool is an open pool file. All persistent structures of the engine live in
// its heap and refer to each other by Offset.
//
// Reads go through Resolve; every mutation goes through a Tx so that it can
// be rolled back on abort or after a crash. Only one transaction runs at a
// time: Begin blocks while another goroutine holds one.
type Pool struct {
	path   string
	opts   Options
	logger logging.Logger

	m    *mapping
	data []byte
	hdr  *Header

	// txMu serializes transactions.
	txMu sync.Mutex

	// mu guards closed and the fault injector.
	mu     sync.Mutex
	closed bool
	fault  func(op string) error
}

// PoolStats describes the space usage of a pool.
type PoolStats struct {
	UUID        uuid.UUID
	Size        uint64
	UndoLogSize uint64
	HeapSize    uint64
	HeapUsed    uint64
	FreeBlocks  [NumSizeClasses]int
}

// Create creates a new pool file at path, formats it and returns it open.
// It fails with ErrExists if the file already exists.
func Create(path string, opts Options) (*Pool, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	m, err := mapFile(path, opts.Size, true)
	if err != nil {
		return nil, err
	}

	hdr := NewHeader(opts.Size, opts.UndoLogSize)
	if err := hdr.SerializeTo(m.mm); err != nil {
		m.close()
		return nil, err
	}

	p := newPool(path, opts, m, hdr)
	p.putU64(hdrBump, hdr.HeapStart)
	if err := m.flush(); err != nil {
		m.close()
		return nil, err
	}

	p.logger.Info("pool created",
		"path", path,
		"uuid", hdr.UUID.String(),
		"size", hdr.Size,
		"undo_size", hdr.UndoSize,
	)
	return p, nil
}

// Open opens an existing pool file. An interrupted transaction found in the
// undo log is rolled back before Open returns.
func Open(path string, opts Options) (*Pool, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	m, err := mapFile(path, 0, false)
	if err != nil {
		return nil, err
	}

	hdr, err := DeserializeHeader(m.mm)
	if err != nil {
		m.close()
		return nil, errors.Wrap(err, path)
	}
	if hdr.Size != uint64(len(m.mm)) || hdr.HeapStart >= hdr.HeapEnd ||
		hdr.HeapEnd > hdr.Size || hdr.UndoStart+hdr.UndoSize > hdr.HeapStart {
		m.close()
		return nil, errors.Wrapf(ErrInvalidArgument, "%s: inconsistent pool geometry", path)
	}

	p := newPool(path, opts, m, hdr)
	if err := p.recover(); err != nil {
		m.close()
		return nil, err
	}

	p.logger.Debug("pool opened", "path", path, "uuid", hdr.UUID.String())
	return p, nil
}

func newPool(path string, opts Options, m *mapping, hdr *Header) *Pool {
	return &Pool{
		path:   path,
		opts:   opts,
		logger: opts.Logger.WithFields("pool", hdr.UUID.String()),
		m:      m,
		data:   m.mm,
		hdr:    hdr,
	}
}

// Close waits for the running transaction, if any, flushes the pool and
// releases the file.
func (p *Pool) Close() error {
	p.txMu.Lock()
	defer p.txMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	p.closed = true
	p.data = nil

	return p.m.close()
}

// Path returns the pool file path.
func (p *Pool) Path() string {
	return p.path
}

// UUID returns the pool UUID assigned at creation.
func (p *Pool) UUID() uuid.UUID {
	return p.hdr.UUID
}

// Logger returns the pool logger.
func (p *Pool) Logger() logging.Logger {
	return p.logger
}

// SetFaultInjector installs fn, which is called at each fault point with
// the name of the operation ("tx.begin", "tx.add", "alloc", "free",
// "tx.commit"). A non-nil return makes that operation fail with the
// returned error. Pass nil to remove the injector.
func (p *Pool) SetFaultInjector(fn func(op string) error) {
	p.mu.Lock()
	p.fault = fn
	p.mu.Unlock()
}

func (p *Pool) inject(op string) error {
	p.mu.Lock()
	fn := p.fault
	p.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(op)
}

// Root returns the pool root object, allocating it zeroed on first use.
// Asking for a larger root than the one already allocated fails.
func (p *Pool) Root(size int) (Offset, error) {
	if size <= 0 {
		return NullOffset, ErrInvalidArgument
	}

	tx, err := p.Begin()
	if err != nil {
		return NullOffset, err
	}

	off, err := p.rootTx(tx, size)
	if err := tx.End(err); err != nil {
		return NullOffset, err
	}
	return off, nil
}

func (p *Pool) rootTx(tx *Tx, size int) (Offset, error) {
	if off := Offset(p.u64(hdrRootOff)); !off.IsNull() {
		if p.u64(hdrRootSize) < uint64(size) {
			return NullOffset, errors.Wrapf(ErrInvalidArgument,
				"root object is %d bytes, %d requested", p.u64(hdrRootSize), size)
		}
		return off, nil
	}

	off, err := tx.Alloc(size)
	if err != nil {
		return NullOffset, err
	}
	if err := tx.WriteU64(Offset(hdrRootOff), uint64(off)); err != nil {
		return NullOffset, err
	}
	if err := tx.WriteU64(Offset(hdrRootSize), uint64(size)); err != nil {
		return NullOffset, err
	}
	return off, nil
}

// Stats returns the space usage of the pool.
func (p *Pool) Stats() (PoolStats, error) {
	p.txMu.Lock()
	defer p.txMu.Unlock()

	if p.isClosed() {
		return PoolStats{}, ErrPoolClosed
	}

	st := PoolStats{
		UUID:        p.hdr.UUID,
		Size:        p.hdr.Size,
		UndoLogSize: p.hdr.UndoSize,
		HeapSize:    p.hdr.HeapEnd - p.hdr.HeapStart,
		HeapUsed:    p.u64(hdrBump) - p.hdr.HeapStart,
	}
	for c := 0; c < NumSizeClasses; c++ {
		for b := p.freeHead(c); b != 0; b = p.u64(b + blockHeaderSize) {
			st.FreeBlocks[c]++
		}
	}
	return st, nil
}

func (p *Pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// u64 reads a little-endian word at off. off must be in range.
func (p *Pool) u64(off uint64) uint64 {
	return binary.LittleEndian.Uint64(p.data[off:])
}

// putU64 writes a word at off without undo logging. Used only for the
// header fields that implement the undo log itself and for fresh heap.
func (p *Pool) putU64(off, v uint64) {
	binary.LittleEndian.PutUint64(p.data[off:], v)
}
