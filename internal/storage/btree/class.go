// Package btree provides the keyed B+ tree engine of the VOS pool.
package btree

import (
	"sync"

	"github.com/KilimcininKorOglu/vos/internal/storage"
)

// Class identifies a record class. The class of a tree is stored in its root
// and selects the Ops used for every record of that tree.
type Class uint32

// Record classes known to the engine. Packages that define a class register
// it with Register before creating or opening trees of that class.
const (
	ClassUV        Class = 1
	ClassILog      Class = 10
	ClassActiveDTX Class = 20
	ClassObject    Class = 30
)

// Ops defines how a tree class hashes keys and stores records.
//
// Every record in a node is a fixed-size hashed key followed by an 8-byte
// value slot. A class either stores its value directly in the slot or stores
// the offset of a block it allocates itself.
type Ops interface {
	// HashKeySize returns the size of the hashed key in bytes.
	HashKeySize() int

	// HashKeyGen fills hkey, which is HashKeySize bytes long, from key.
	HashKeyGen(key []byte, hkey []byte) error

	// HashKeyCompare orders two hashed keys.
	HashKeyCompare(a, b []byte) int

	// RecordAlloc stores a new record and returns its value slot.
	RecordAlloc(tx *storage.Tx, hkey, key, val []byte) (uint64, error)

	// RecordFree releases whatever RecordAlloc stored for slot.
	RecordFree(tx *storage.Tx, slot uint64) error

	// RecordFetch returns the key and value of a record.
	RecordFetch(pool *storage.Pool, hkey []byte, slot uint64) (key, val []byte, err error)

	// RecordUpdate merges val into an existing record and returns the
	// possibly changed value slot.
	RecordUpdate(tx *storage.Tx, hkey []byte, slot uint64, val []byte) (uint64, error)
}

var (
	classMu sync.RWMutex
	classes = make(map[Class]Ops)
)

// Register makes ops available for trees of class c. Registering a class
// twice fails with ErrClassRegistered.
func Register(c Class, ops Ops) error {
	if ops == nil || ops.HashKeySize() <= 0 || ops.HashKeySize()%8 != 0 {
		return ErrUnknownClass
	}

	classMu.Lock()
	defer classMu.Unlock()

	if _, ok := classes[c]; ok {
		return ErrClassRegistered
	}
	classes[c] = ops
	return nil
}

// Registered reports whether class c has been registered.
func Registered(c Class) bool {
	_, err := lookupClass(c)
	return err == nil
}

func lookupClass(c Class) (Ops, error) {
	classMu.RLock()
	defer classMu.RUnlock()

	ops, ok := classes[c]
	if !ok {
		return nil, ErrUnknownClass
	}
	return ops, nil
}
