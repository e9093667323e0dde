// Package ilog implements the incarnation log of the VOS pool.
package ilog

import (
	"encoding/binary"
	"fmt"

	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// Magic is the validity tag of a created log root. It is part of the
// persistent format.
const Magic uint64 = 0xdeadbaadbeeff00d

// RootSize is the size of a log root descriptor embedded in its owner's
// record.
//
// Layout:
//   - Bytes 0-7:   Timestamp (epoch of the inline event, 0 if none)
//   - Byte 8:      Punch flag of the inline event
//   - Bytes 9-11:  Reserved
//   - Bytes 12-15: Map version of the inline event
//   - Bytes 16-23: DTX offset of the inline event, or tree root offset
//   - Bytes 24-31: Magic
const RootSize = 32

const (
	rootOffTimestamp = 0
	rootOffPunch     = 8
	rootOffVersion   = 12
	rootOffRef       = 16
	rootOffMagic     = 24
)

// State is the representation a log is currently in.
type State int

const (
	// StateEmpty means the log holds no event.
	StateEmpty State = iota
	// StateInline means the single event lives in the root.
	StateInline
	// StateTree means the events live in a tree the root points at.
	StateTree
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateInline:
		return "inline"
	case StateTree:
		return "tree"
	default:
		return "unknown"
	}
}

// Root is a decoded log root descriptor. EntryRef is the DTX offset of the
// inline event when Timestamp is non-zero and the tree root otherwise.
type Root struct {
	Timestamp  uint64
	Punch      bool
	MapVersion uint32
	EntryRef   storage.Offset
	Magic      uint64
}

// DecodeRoot decodes a descriptor from the first RootSize bytes of b.
func DecodeRoot(b []byte) Root {
	return Root{
		Timestamp:  binary.LittleEndian.Uint64(b[rootOffTimestamp:]),
		Punch:      b[rootOffPunch] != 0,
		MapVersion: binary.LittleEndian.Uint32(b[rootOffVersion:]),
		EntryRef:   storage.Offset(binary.LittleEndian.Uint64(b[rootOffRef:])),
		Magic:      binary.LittleEndian.Uint64(b[rootOffMagic:]),
	}
}

// Encode returns the RootSize-byte encoding of r.
func (r Root) Encode() []byte {
	b := make([]byte, RootSize)
	binary.LittleEndian.PutUint64(b[rootOffTimestamp:], r.Timestamp)
	if r.Punch {
		b[rootOffPunch] = 1
	}
	binary.LittleEndian.PutUint32(b[rootOffVersion:], r.MapVersion)
	binary.LittleEndian.PutUint64(b[rootOffRef:], uint64(r.EntryRef))
	binary.LittleEndian.PutUint64(b[rootOffMagic:], r.Magic)
	return b
}

// Valid reports whether the descriptor carries the validity tag.
func (r Root) Valid() bool {
	return r.Magic == Magic
}

// State returns the representation selected by the timestamp and the
// entry reference.
func (r Root) State() State {
	switch {
	case r.Timestamp != 0:
		return StateInline
	case !r.EntryRef.IsNull():
		return StateTree
	default:
		return StateEmpty
	}
}

// Inline returns the inline event. It is only meaningful in StateInline.
func (r Root) Inline() Entry {
	return Entry{
		Epoch:      r.Timestamp,
		DTX:        r.EntryRef,
		Punch:      r.Punch,
		MapVersion: r.MapVersion,
	}
}

func (r Root) String() string {
	switch r.State() {
	case StateInline:
		return fmt.Sprintf("inline{%s}", r.Inline())
	case StateTree:
		return fmt.Sprintf("tree{%s}", r.EntryRef)
	default:
		return "empty"
	}
}

// emptyRoot is a created log with no events.
func emptyRoot() Root {
	return Root{Magic: Magic}
}
