// Package ilog implements the incarnation log of the VOS pool.
package ilog

import (
	"encoding/binary"
	"fmt"

	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// Entry is one create or punch event of a log.
type Entry struct {
	Epoch      uint64
	DTX        storage.Offset
	Punch      bool
	MapVersion uint32
}

func (e Entry) String() string {
	kind := "create"
	if e.Punch {
		kind = "punch"
	}
	return fmt.Sprintf("%s@%d dtx=%s ver=%d", kind, e.Epoch, e.DTX, e.MapVersion)
}

// Tree record encodings. A key is (epoch u64, dtx u64); a value is
// (punch u8, reserved [3]u8, map version u32) and fits the 8-byte value
// slot of a tree record exactly.
const (
	keySize   = 16
	valueSize = 8
)

func encodeKey(epoch uint64, dtx storage.Offset) []byte {
	b := make([]byte, keySize)
	binary.LittleEndian.PutUint64(b[0:], epoch)
	binary.LittleEndian.PutUint64(b[8:], uint64(dtx))
	return b
}

func decodeKey(b []byte) (uint64, storage.Offset) {
	return binary.LittleEndian.Uint64(b[0:]), storage.Offset(binary.LittleEndian.Uint64(b[8:]))
}

func encodeValue(punch bool, version uint32) []byte {
	b := make([]byte, valueSize)
	if punch {
		b[0] = 1
	}
	binary.LittleEndian.PutUint32(b[4:], version)
	return b
}

func decodeValue(b []byte) (bool, uint32) {
	return b[0] != 0, binary.LittleEndian.Uint32(b[4:])
}

// slotValue packs an encoded value into a record slot and back.
func slotValue(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func valueSlot(slot uint64) []byte {
	b := make([]byte, valueSize)
	binary.LittleEndian.PutUint64(b, slot)
	return b
}

func entryFromRecord(key, val []byte) Entry {
	epoch, dtx := decodeKey(key)
	punch, version := decodeValue(val)
	return Entry{Epoch: epoch, DTX: dtx, Punch: punch, MapVersion: version}
}
