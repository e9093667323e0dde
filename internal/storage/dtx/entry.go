// Package dtx provides distributed transaction IDs and the active transaction table.
package dtx

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// Intent is the kind of access a transaction made.
type Intent uint32

const (
	IntentDefault Intent = iota
	IntentRead
	IntentUpdate
	IntentPunch
	IntentPurge
)

// String returns the name of the intent.
func (i Intent) String() string {
	switch i {
	case IntentDefault:
		return "default"
	case IntentRead:
		return "read"
	case IntentUpdate:
		return "update"
	case IntentPunch:
		return "punch"
	case IntentPurge:
		return "purge"
	default:
		return "unknown"
	}
}

// ParseIntent parses the name returned by String.
func ParseIntent(s string) (Intent, error) {
	for i := IntentDefault; i <= IntentPurge; i++ {
		if i.String() == s {
			return i, nil
		}
	}
	return 0, errors.Wrapf(storage.ErrInvalidArgument, "intent %q", s)
}

// EntrySize is the size of an active transaction entry in the pool.
//
// Layout:
//   - Bytes 0-23:  Transaction ID
//   - Bytes 24-31: Object ID high word
//   - Bytes 32-39: Object ID low word
//   - Bytes 40-47: Security context
//   - Bytes 48-51: Intent
//   - Bytes 52-55: Reserved
//   - Bytes 56-63: Dkey hash
const EntrySize = 64

// Entry describes an active, uncommitted transaction: enough to tell which
// object and dkey it touched without reading its full record.
type Entry struct {
	XID      ID
	OID      ObjectID
	Security uint64
	Intent   Intent
	DKeyHash uint64
}

// Encode returns the EntrySize-byte encoding of e.
func (e Entry) Encode() []byte {
	b := make([]byte, EntrySize)
	copy(b[0:], e.XID.Bytes())
	binary.LittleEndian.PutUint64(b[24:], e.OID.Hi)
	binary.LittleEndian.PutUint64(b[32:], e.OID.Lo)
	binary.LittleEndian.PutUint64(b[40:], e.Security)
	binary.LittleEndian.PutUint32(b[48:], uint32(e.Intent))
	binary.LittleEndian.PutUint64(b[56:], e.DKeyHash)
	return b
}

// Decode decodes an entry written by Encode.
func Decode(b []byte) (Entry, error) {
	if len(b) < EntrySize {
		return Entry{}, errors.Wrapf(storage.ErrInvalidArgument, "dtx entry of %d bytes", len(b))
	}
	xid, err := IDFromBytes(b[0:IDSize])
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		XID: xid,
		OID: ObjectID{
			Hi: binary.LittleEndian.Uint64(b[24:]),
			Lo: binary.LittleEndian.Uint64(b[32:]),
		},
		Security: binary.LittleEndian.Uint64(b[40:]),
		Intent:   Intent(binary.LittleEndian.Uint32(b[48:])),
		DKeyHash: binary.LittleEndian.Uint64(b[56:]),
	}, nil
}
