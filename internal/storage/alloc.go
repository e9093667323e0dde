// Package storage provides the persistent-memory pool for the VOS engine.
package storage

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Allocator geometry. Blocks come in power-of-two size classes from
// MinBlockSize to MaxBlockSize. Each block starts with an 8-byte header
// (class u32, state u32); the caller gets the bytes after it. Freed blocks
// are pushed on a per-class free list whose heads live in the pool header;
// the first payload word of a free block links to the next one.
const (
	NumSizeClasses  = 12
	MinBlockSize    = 32
	MaxBlockSize    = MinBlockSize << (NumSizeClasses - 1)
	blockHeaderSize = 8

	// MaxAllocSize is the largest size Alloc accepts.
	MaxAllocSize = MaxBlockSize - blockHeaderSize
)

const (
	blockAllocated uint32 = 0xa110c8ed
	blockFree      uint32 = 0xf4ee0b1c
)

// sizeClass returns the smallest class whose payload holds n bytes.
func sizeClass(n int) (int, bool) {
	for c := 0; c < NumSizeClasses; c++ {
		if n <= (MinBlockSize<<c)-blockHeaderSize {
			return c, true
		}
	}
	return 0, false
}

func classSize(c int) uint64 {
	return uint64(MinBlockSize) << c
}

func (p *Pool) freeHead(c int) uint64 {
	return p.u64(hdrFreeHeads + uint64(c)*8)
}

// Alloc allocates a zeroed block of at least n bytes and returns the offset
// of its payload. The allocation is undone if the transaction aborts.
func (tx *Tx) Alloc(n int) (Offset, error) {
	if err := tx.check(); err != nil {
		return NullOffset, err
	}
	if n <= 0 {
		return NullOffset, errors.Wrapf(ErrInvalidArgument, "alloc of %d bytes", n)
	}
	c, ok := sizeClass(n)
	if !ok {
		return NullOffset, errors.Wrapf(ErrAllocTooLarge, "%d bytes", n)
	}

	p := tx.pool
	if err := p.inject("alloc"); err != nil {
		return NullOffset, err
	}

	size := classSize(c)
	block := p.freeHead(c)
	if block != 0 {
		next := p.u64(block + blockHeaderSize)
		if err := tx.WriteU64(Offset(hdrFreeHeads+uint64(c)*8), next); err != nil {
			return NullOffset, err
		}
	} else {
		bump := p.u64(hdrBump)
		if bump+size > p.hdr.HeapEnd {
			return NullOffset, errors.Wrapf(ErrHeapExhausted, "%d bytes requested", n)
		}
		if err := tx.WriteU64(Offset(hdrBump), bump+size); err != nil {
			return NullOffset, err
		}
		block = bump
	}

	var hdr [blockHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(c))
	binary.LittleEndian.PutUint32(hdr[4:], blockAllocated)
	if err := tx.Write(Offset(block), hdr[:]); err != nil {
		return NullOffset, err
	}
	if err := tx.Write(Offset(block+blockHeaderSize), make([]byte, size-blockHeaderSize)); err != nil {
		return NullOffset, err
	}

	return Offset(block + blockHeaderSize), nil
}

// Free returns the block whose payload starts at off to its free list. A
// later Alloc in the same transaction may hand it out again; an abort undoes
// both.
func (tx *Tx) Free(off Offset) error {
	if err := tx.check(); err != nil {
		return err
	}

	p := tx.pool
	c, err := p.blockClass(off)
	if err != nil {
		return err
	}
	if err := p.inject("free"); err != nil {
		return err
	}

	block := uint64(off) - blockHeaderSize
	var state [4]byte
	binary.LittleEndian.PutUint32(state[:], blockFree)
	if err := tx.Write(Offset(block+4), state[:]); err != nil {
		return err
	}
	if err := tx.WriteU64(off, p.freeHead(c)); err != nil {
		return err
	}
	return tx.WriteU64(Offset(hdrFreeHeads+uint64(c)*8), block)
}

// BlockSize returns the usable size of the allocated block at off.
func (p *Pool) BlockSize(off Offset) (int, error) {
	if p.isClosed() {
		return 0, ErrPoolClosed
	}
	c, err := p.blockClass(off)
	if err != nil {
		return 0, err
	}
	return int(classSize(c) - blockHeaderSize), nil
}

func (p *Pool) blockClass(off Offset) (int, error) {
	o := uint64(off)
	if o < p.hdr.HeapStart+blockHeaderSize || o >= p.u64(hdrBump) || o%8 != 0 {
		return 0, errors.Wrapf(ErrBadFree, "offset %s", off)
	}
	block := o - blockHeaderSize
	c := int(binary.LittleEndian.Uint32(p.data[block:]))
	state := binary.LittleEndian.Uint32(p.data[block+4:])
	if state != blockAllocated || c >= NumSizeClasses || block+classSize(c) > p.u64(hdrBump) {
		return 0, errors.Wrapf(ErrBadFree, "offset %s", off)
	}
	return c, nil
}
