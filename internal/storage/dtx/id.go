// Package dtx provides distributed transaction IDs and the active transaction table.
package dtx

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// IDSize is the encoded size of an ID.
const IDSize = 24

// ID identifies a distributed transaction: a UUID chosen by its leader and
// the hybrid logical clock stamp at which it started.
type ID struct {
	UUID uuid.UUID
	HLC  uint64
}

// NewID returns a fresh ID stamped with hlc.
func NewID(hlc uint64) ID {
	return ID{UUID: uuid.New(), HLC: hlc}
}

// Bytes encodes the ID so that byte order matches ID order: the UUID bytes,
// then the stamp big-endian.
func (id ID) Bytes() []byte {
	b := make([]byte, IDSize)
	copy(b, id.UUID[:])
	binary.BigEndian.PutUint64(b[16:], id.HLC)
	return b
}

// IDFromBytes decodes an ID written by Bytes.
func IDFromBytes(b []byte) (ID, error) {
	if len(b) != IDSize {
		return ID{}, errors.Wrapf(storage.ErrInvalidArgument, "dtx id of %d bytes", len(b))
	}
	var id ID
	copy(id.UUID[:], b[:16])
	id.HLC = binary.BigEndian.Uint64(b[16:])
	return id, nil
}

// String formats the ID as "<uuid>.<hlc>".
func (id ID) String() string {
	return fmt.Sprintf("%s.%d", id.UUID, id.HLC)
}

// ParseID parses the format produced by String.
func ParseID(s string) (ID, error) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return ID{}, errors.Wrapf(storage.ErrInvalidArgument, "dtx id %q", s)
	}
	u, err := uuid.Parse(s[:i])
	if err != nil {
		return ID{}, errors.Wrapf(storage.ErrInvalidArgument, "dtx id %q: %v", s, err)
	}
	hlc, err := strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil {
		return ID{}, errors.Wrapf(storage.ErrInvalidArgument, "dtx id %q: %v", s, err)
	}
	return ID{UUID: u, HLC: hlc}, nil
}

// ObjectID identifies an object within a container.
type ObjectID struct {
	Hi uint64
	Lo uint64
}

// Bytes encodes the object ID big-endian, high word first.
func (o ObjectID) Bytes() []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[0:], o.Hi)
	binary.BigEndian.PutUint64(b[8:], o.Lo)
	return b
}

// ObjectIDFromBytes decodes an object ID written by Bytes.
func ObjectIDFromBytes(b []byte) (ObjectID, error) {
	if len(b) != 16 {
		return ObjectID{}, errors.Wrapf(storage.ErrInvalidArgument, "object id of %d bytes", len(b))
	}
	return ObjectID{Hi: binary.BigEndian.Uint64(b[0:]), Lo: binary.BigEndian.Uint64(b[8:])}, nil
}

// String formats the object ID as "<hi>.<lo>".
func (o ObjectID) String() string {
	return fmt.Sprintf("%d.%d", o.Hi, o.Lo)
}

// ParseObjectID parses "<hi>.<lo>", or a single number taken as the low
// word.
func ParseObjectID(s string) (ObjectID, error) {
	hi, lo := "0", s
	if i := strings.IndexByte(s, '.'); i >= 0 {
		hi, lo = s[:i], s[i+1:]
	}
	h, err := strconv.ParseUint(hi, 10, 64)
	if err != nil {
		return ObjectID{}, errors.Wrapf(storage.ErrInvalidArgument, "object id %q", s)
	}
	l, err := strconv.ParseUint(lo, 10, 64)
	if err != nil {
		return ObjectID{}, errors.Wrapf(storage.ErrInvalidArgument, "object id %q", s)
	}
	return ObjectID{Hi: h, Lo: l}, nil
}
