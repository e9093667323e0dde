// Package ilog implements the incarnation log of the VOS pool.
package ilog

import (
	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/vos/internal/logging"
	"github.com/KilimcininKorOglu/vos/internal/storage"
	"github.com/KilimcininKorOglu/vos/internal/storage/btree"
)

// DefaultTreeOrder is the order of the tree a log is promoted to.
const DefaultTreeOrder = 11

// Log errors.
var (
	ErrNotCreated  = errors.Wrap(storage.ErrInvalidState, "incarnation log root was never created")
	ErrStaleHandle = errors.Wrap(storage.ErrInvalidState, "incarnation log handle is closed")
	ErrZeroEpoch   = errors.Wrap(storage.ErrInvalidArgument, "epoch 0 cannot be recorded")
)

// Option configures a Handle.
type Option func(*Handle)

// WithTreeOrder sets the order of the tree the log is promoted to.
func WithTreeOrder(order int) Option {
	return func(h *Handle) {
		if order > 0 {
			h.order = order
		}
	}
}

// WithLogger sets the logger for promotions and compactions.
func WithLogger(l logging.Logger) Option {
	return func(h *Handle) {
		if l != nil {
			h.logger = l
		}
	}
}

// Handle is an open incarnation log. It refers to a root descriptor that is
// embedded in its owner's record and owned by it; the handle itself holds
// no persistent state. Handles are reference counted and not safe for
// concurrent use.
type Handle struct {
	pool   *storage.Pool
	root   storage.Offset
	refs   int
	order  int
	logger logging.Logger
}

func newHandle(pool *storage.Pool, root storage.Offset, opts []Option) *Handle {
	h := &Handle{
		pool:   pool,
		root:   root,
		refs:   1,
		order:  DefaultTreeOrder,
		logger: logging.NewNop(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Create initializes the descriptor at root as an empty log in its own
// transaction and returns a handle on it. A descriptor that already holds a
// log is reset, and a tree it pointed at is freed.
func Create(pool *storage.Pool, root storage.Offset, opts ...Option) (*Handle, error) {
	if pool == nil {
		return nil, storage.ErrInvalidArgument
	}
	tx, err := pool.Begin()
	if err != nil {
		return nil, err
	}
	h, err := CreateTx(tx, root, opts...)
	if err := tx.End(err); err != nil {
		return nil, err
	}
	return h, nil
}

// CreateTx is Create inside the caller's transaction.
func CreateTx(tx *storage.Tx, root storage.Offset, opts ...Option) (*Handle, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	if root.IsNull() {
		return nil, storage.ErrInvalidArgument
	}

	h := newHandle(tx.Pool(), root, opts)
	if err := h.reset(tx); err != nil {
		return nil, err
	}
	return h, nil
}

// Open returns a handle on a log created earlier. It fails with
// ErrNotCreated if the descriptor does not carry the validity tag.
func Open(pool *storage.Pool, root storage.Offset, opts ...Option) (*Handle, error) {
	if err := Init(); err != nil {
		return nil, err
	}
	if pool == nil || root.IsNull() {
		return nil, storage.ErrInvalidArgument
	}

	h := newHandle(pool, root, opts)
	if _, err := h.load(); err != nil {
		return nil, err
	}
	return h, nil
}

// Ref takes another reference on the handle.
func (h *Handle) Ref() *Handle {
	h.refs++
	return h
}

// Close drops a reference. The handle becomes unusable when the last one
// is dropped. The log itself is not affected.
func (h *Handle) Close() error {
	if h.refs <= 0 {
		return ErrStaleHandle
	}
	h.refs--
	return nil
}

// RootOffset returns the offset of the descriptor.
func (h *Handle) RootOffset() storage.Offset {
	return h.root
}

// Root returns the current descriptor.
func (h *Handle) Root() (Root, error) {
	return h.load()
}

// load reads and validates the descriptor.
func (h *Handle) load() (Root, error) {
	if h.refs <= 0 {
		return Root{}, ErrStaleHandle
	}
	b, err := h.pool.Resolve(h.root, RootSize)
	if err != nil {
		return Root{}, err
	}
	r := DecodeRoot(b)
	if !r.Valid() {
		return Root{}, errors.Wrapf(ErrNotCreated, "root %s", h.root)
	}
	return r, nil
}

func (h *Handle) store(tx *storage.Tx, r Root) error {
	return tx.Write(h.root, r.Encode())
}

// reset frees a tree the descriptor points at, if it holds a created log,
// and writes an empty log.
func (h *Handle) reset(tx *storage.Tx) error {
	b, err := h.pool.Resolve(h.root, RootSize)
	if err != nil {
		return err
	}
	if r := DecodeRoot(b); r.Valid() && r.State() == StateTree {
		if err := h.destroyTree(tx, r.EntryRef); err != nil {
			return err
		}
	}
	return h.store(tx, emptyRoot())
}

func (h *Handle) destroyTree(tx *storage.Tx, off storage.Offset) error {
	tree, err := btree.OpenClass(h.pool, off, btree.ClassILog)
	if err != nil {
		return err
	}
	return tree.Destroy(tx)
}

// Upsert records an event in its own transaction. See UpsertTx.
func (h *Handle) Upsert(mapVersion uint32, epoch uint64, dtx storage.Offset, punch bool) error {
	tx, err := h.pool.Begin()
	if err != nil {
		return err
	}
	return tx.End(h.UpsertTx(tx, mapVersion, epoch, dtx, punch))
}

// UpsertTx records a create or punch event at epoch for the transaction
// whose record is at dtx. The cases, in order:
//
//  1. Empty log: the event is stored inline.
//  2. Inline event at the same epoch: a create is promoted to a punch; a
//     punch is never demoted. The stored DTX is not compared.
//  3. Inline event at another epoch: if the new epoch is later and the
//     punch flags agree, the event adds nothing and is dropped. Otherwise
//     both events move to a new tree.
//  4. Tree-backed log: the event is upserted into the tree; a collision
//     with an existing (epoch, dtx) key promotes create to punch.
//
// A failure aborts tx, which leaves the log as it was.
func (h *Handle) UpsertTx(tx *storage.Tx, mapVersion uint32, epoch uint64, dtx storage.Offset, punch bool) error {
	inner, err := tx.Begin()
	if err != nil {
		return err
	}
	return inner.End(h.upsert(inner, mapVersion, epoch, dtx, punch))
}

func (h *Handle) upsert(tx *storage.Tx, mapVersion uint32, epoch uint64, dtx storage.Offset, punch bool) error {
	if epoch == 0 {
		return ErrZeroEpoch
	}
	r, err := h.load()
	if err != nil {
		return err
	}

	switch r.State() {
	case StateEmpty:
		return h.store(tx, Root{
			Timestamp:  epoch,
			Punch:      punch,
			MapVersion: mapVersion,
			EntryRef:   dtx,
			Magic:      Magic,
		})

	case StateInline:
		if r.Timestamp == epoch {
			if !punch || r.Punch {
				return nil
			}
			return tx.Write(h.root+rootOffPunch, []byte{1})
		}
		if epoch > r.Timestamp && punch == r.Punch {
			h.logger.Debug("incarnation log event compacted",
				"root", h.root.String(),
				"epoch", epoch,
				"inline_epoch", r.Timestamp,
			)
			return nil
		}
		return h.promote(tx, r, Entry{Epoch: epoch, DTX: dtx, Punch: punch, MapVersion: mapVersion})

	default:
		tree, err := btree.OpenClass(h.pool, r.EntryRef, btree.ClassILog)
		if err != nil {
			return err
		}
		defer tree.Close()
		return tree.Upsert(tx, btree.ProbeEQ, encodeKey(epoch, dtx), encodeValue(punch, mapVersion))
	}
}

// promote moves the inline event and e into a new tree.
func (h *Handle) promote(tx *storage.Tx, r Root, e Entry) error {
	tree, err := btree.Create(tx, btree.ClassILog, h.order)
	if err != nil {
		return err
	}
	defer tree.Close()

	old := r.Inline()
	for _, ev := range []Entry{old, e} {
		err := tree.Upsert(tx, btree.ProbeEQ, encodeKey(ev.Epoch, ev.DTX), encodeValue(ev.Punch, ev.MapVersion))
		if err != nil {
			return err
		}
	}

	if err := h.store(tx, Root{EntryRef: tree.Root(), Magic: Magic}); err != nil {
		return err
	}

	h.logger.Debug("incarnation log promoted to tree",
		"root", h.root.String(),
		"tree", tree.Root().String(),
		"epochs", []uint64{old.Epoch, e.Epoch},
	)
	return nil
}

// Destroy frees the tree backing the log, if any, and leaves an empty log,
// in its own transaction. The owner calls it before removing the record
// that embeds the descriptor.
func (h *Handle) Destroy() error {
	tx, err := h.pool.Begin()
	if err != nil {
		return err
	}
	return tx.End(h.DestroyTx(tx))
}

// DestroyTx is Destroy inside the caller's transaction.
func (h *Handle) DestroyTx(tx *storage.Tx) error {
	r, err := h.load()
	if err != nil {
		return err
	}
	if r.State() == StateTree {
		if err := h.destroyTree(tx, r.EntryRef); err != nil {
			return err
		}
	}
	return h.store(tx, emptyRoot())
}
