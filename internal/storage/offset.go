// Package storage provides the persistent-memory pool for the VOS engine.
package storage

import (
	"fmt"
	"unsafe"
)

// Offset is a position inside a pool, relative to the start of the mapped
// file. Persistent structures store offsets, never addresses.
type Offset uint64

// NullOffset is the zero offset. The pool header lives there, so no
// allocation can ever be returned at offset 0.
const NullOffset Offset = 0

// IsNull returns true if the offset is NullOffset.
func (o Offset) IsNull() bool {
	return o == NullOffset
}

// String returns the offset in hexadecimal.
func (o Offset) String() string {
	return fmt.Sprintf("0x%x", uint64(o))
}

// Resolve returns the n bytes of the pool starting at off. The slice aliases
// the mapping: writes through it bypass the undo log, so callers must only
// read from it and must not keep it past the current transaction.
func (p *Pool) Resolve(off Offset, n int) ([]byte, error) {
	data, err := p.mapped()
	if err != nil {
		return nil, err
	}
	if off.IsNull() || n < 0 || uint64(off)+uint64(n) > uint64(len(data)) {
		return nil, ErrOutOfRange
	}
	return data[off : uint64(off)+uint64(n)], nil
}

// OffsetOf converts a slice previously obtained from Resolve back to its
// pool offset.
func (p *Pool) OffsetOf(b []byte) (Offset, error) {
	data, err := p.mapped()
	if err != nil {
		return NullOffset, err
	}
	if len(b) == 0 || len(data) == 0 {
		return NullOffset, ErrOutOfRange
	}
	base := uintptr(unsafe.Pointer(&data[0]))
	addr := uintptr(unsafe.Pointer(&b[0]))
	if addr < base || addr+uintptr(len(b)) > base+uintptr(len(data)) {
		return NullOffset, ErrOutOfRange
	}
	return Offset(addr - base), nil
}

// mapped returns the mapping of an open pool.
func (p *Pool) mapped() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	return p.data, nil
}
