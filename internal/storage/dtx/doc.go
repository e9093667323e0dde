// Package dtx defines distributed transaction identifiers and the table of
// active, uncommitted transactions kept per container.
//
// Each active transaction has a 64-byte Entry allocated in the pool. The
// offset of that entry is the transaction reference recorded with every
// incarnation log event the transaction produces; it stays valid until the
// transaction leaves the table.
package dtx
