// Package storage provides the persistent-memory pool for the VOS engine.
package storage

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/google/uuid"
)

// Pool file constants.
const (
	// HeaderSize is the size of the pool header region at offset 0.
	HeaderSize = 4096

	// CurrentVersion is the current pool format version.
	CurrentVersion uint32 = 1
)

// Magic identifies a VOS pool file.
var Magic = [8]byte{'V', 'O', 'S', 'P', 'O', 'O', 'L', 0}

// Header field offsets. The first hdrImmutableEnd bytes are written once at
// pool creation and covered by the header checksum; the rest are updated by
// transactions through the undo log.
//
// Layout:
//   - Bytes 0-7:     Magic ("VOSPOOL\x00")
//   - Bytes 8-11:    Version (uint32)
//   - Bytes 12-15:   Checksum (uint32, CRC32 of bytes 0-71 with this field zeroed)
//   - Bytes 16-23:   Size (uint64)
//   - Bytes 24-31:   UndoStart (uint64)
//   - Bytes 32-39:   UndoSize (uint64)
//   - Bytes 40-47:   HeapStart (uint64)
//   - Bytes 48-55:   HeapEnd (uint64)
//   - Bytes 56-71:   Pool UUID
//   - Bytes 72-79:   UndoTail (uint64, bytes of undo log in use)
//   - Bytes 80-87:   Bump (uint64, first never-allocated heap byte)
//   - Bytes 88-95:   RootOff (uint64)
//   - Bytes 96-103:  RootSize (uint64)
//   - Bytes 104-199: Free list heads, one per size class
const (
	hdrMagic        = 0
	hdrVersion      = 8
	hdrChecksum     = 12
	hdrSize         = 16
	hdrUndoStart    = 24
	hdrUndoSize     = 32
	hdrHeapStart    = 40
	hdrHeapEnd      = 48
	hdrUUID         = 56
	hdrImmutableEnd = 72
	hdrUndoTail     = 72
	hdrBump         = 80
	hdrRootOff      = 88
	hdrRootSize     = 96
	hdrFreeHeads    = 104
)

// Header is the decoded immutable part of the pool header.
type Header struct {
	Magic     [8]byte
	Version   uint32
	Size      uint64
	UndoStart uint64
	UndoSize  uint64
	HeapStart uint64
	HeapEnd   uint64
	UUID      uuid.UUID
}

// NewHeader lays out a pool of the given size with an undo region of
// undoSize bytes directly after the header.
func NewHeader(size, undoSize int64) *Header {
	return &Header{
		Magic:     Magic,
		Version:   CurrentVersion,
		Size:      uint64(size),
		UndoStart: HeaderSize,
		UndoSize:  uint64(undoSize),
		HeapStart: uint64(HeaderSize + undoSize),
		HeapEnd:   uint64(size),
		UUID:      uuid.New(),
	}
}

// SerializeTo writes the immutable header fields and their checksum to buf,
// which must be at least HeaderSize bytes.
func (h *Header) SerializeTo(buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrOutOfRange
	}

	copy(buf[hdrMagic:hdrMagic+8], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[hdrVersion:], h.Version)
	binary.LittleEndian.PutUint32(buf[hdrChecksum:], 0)
	binary.LittleEndian.PutUint64(buf[hdrSize:], h.Size)
	binary.LittleEndian.PutUint64(buf[hdrUndoStart:], h.UndoStart)
	binary.LittleEndian.PutUint64(buf[hdrUndoSize:], h.UndoSize)
	binary.LittleEndian.PutUint64(buf[hdrHeapStart:], h.HeapStart)
	binary.LittleEndian.PutUint64(buf[hdrHeapEnd:], h.HeapEnd)
	copy(buf[hdrUUID:hdrUUID+16], h.UUID[:])

	binary.LittleEndian.PutUint32(buf[hdrChecksum:], headerChecksum(buf))
	return nil
}

// DeserializeHeader decodes and validates the immutable header fields.
func DeserializeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, ErrOutOfRange
	}

	h := &Header{}
	copy(h.Magic[:], buf[hdrMagic:hdrMagic+8])
	if h.Magic != Magic {
		return nil, ErrInvalidMagic
	}

	h.Version = binary.LittleEndian.Uint32(buf[hdrVersion:])
	if h.Version != CurrentVersion {
		return nil, ErrBadVersion
	}

	stored := binary.LittleEndian.Uint32(buf[hdrChecksum:])
	if stored != headerChecksum(buf) {
		return nil, ErrHeaderChecksum
	}

	h.Size = binary.LittleEndian.Uint64(buf[hdrSize:])
	h.UndoStart = binary.LittleEndian.Uint64(buf[hdrUndoStart:])
	h.UndoSize = binary.LittleEndian.Uint64(buf[hdrUndoSize:])
	h.HeapStart = binary.LittleEndian.Uint64(buf[hdrHeapStart:])
	h.HeapEnd = binary.LittleEndian.Uint64(buf[hdrHeapEnd:])
	copy(h.UUID[:], buf[hdrUUID:hdrUUID+16])

	return h, nil
}

// headerChecksum computes the CRC32 of the immutable header bytes with the
// checksum field treated as zero.
func headerChecksum(buf []byte) uint32 {
	var zero [4]byte
	c := crc32.NewIEEE()
	c.Write(buf[:hdrChecksum])
	c.Write(zero[:])
	c.Write(buf[hdrChecksum+4 : hdrImmutableEnd])
	return c.Sum32()
}
