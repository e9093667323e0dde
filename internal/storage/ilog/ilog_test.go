package ilog

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/vos/internal/storage"
	"github.com/KilimcininKorOglu/vos/internal/storage/btree"
)

const (
	dtxA storage.Offset = 0x1000
	dtxB storage.Offset = 0x2000
	dtxC storage.Offset = 0x3000
)

func newTestPool(t testing.TB) *storage.Pool {
	t.Helper()
	opts := storage.DefaultOptions().
		WithSize(8 << 20).
		WithUndoLogSize(256 << 10).
		WithSyncOnCommit(false)
	p, err := storage.Create(filepath.Join(t.TempDir(), "ilog.vos"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

// newDescriptor allocates a zeroed owner record slot for a log root.
func newDescriptor(t testing.TB, p *storage.Pool) storage.Offset {
	t.Helper()
	tx, err := p.Begin()
	require.NoError(t, err)
	off, err := tx.Alloc(RootSize)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return off
}

func newLog(t testing.TB, p *storage.Pool) *Handle {
	t.Helper()
	h, err := Create(p, newDescriptor(t, p))
	require.NoError(t, err)
	return h
}

func rootOf(t *testing.T, h *Handle) Root {
	t.Helper()
	r, err := h.Root()
	require.NoError(t, err)
	return r
}

func entriesOf(t *testing.T, h *Handle) []Entry {
	t.Helper()
	entries, err := h.Entries()
	require.NoError(t, err)
	return entries
}

func TestRootEncoding(t *testing.T) {
	r := Root{Timestamp: 7, Punch: true, MapVersion: 3, EntryRef: 0x4040, Magic: Magic}
	b := r.Encode()
	require.Len(t, b, RootSize)
	assert.Equal(t, byte(1), b[8])
	assert.Equal(t, []byte{0x0d, 0xf0, 0xef, 0xbe, 0xad, 0xba, 0xad, 0xde}, b[24:32])
	assert.Equal(t, r, DecodeRoot(b))

	assert.Equal(t, StateInline, r.State())
	assert.Equal(t, StateTree, Root{EntryRef: 0x10, Magic: Magic}.State())
	assert.Equal(t, StateEmpty, emptyRoot().State())
	assert.False(t, Root{}.Valid())
	assert.Equal(t, "empty", emptyRoot().String())
	assert.Equal(t, "tree", StateTree.String())
}

func TestKeyOrdering(t *testing.T) {
	ops := ilogOps{}
	assert.Negative(t, ops.HashKeyCompare(encodeKey(1, 0x900), encodeKey(2, 0x100)))
	assert.Negative(t, ops.HashKeyCompare(encodeKey(2, 0x100), encodeKey(2, 0x900)))
	assert.Positive(t, ops.HashKeyCompare(encodeKey(3, 0x100), encodeKey(2, 0x900)))
	assert.Zero(t, ops.HashKeyCompare(encodeKey(5, 0x500), encodeKey(5, 0x500)))
}

func TestRecordUpdatePromotesOnly(t *testing.T) {
	ops := ilogOps{}
	create := slotValue(encodeValue(false, 4))
	punch := slotValue(encodeValue(true, 4))

	tests := []struct {
		name string
		old  uint64
		val  []byte
		want uint64
	}{
		{"create over create", create, encodeValue(false, 9), create},
		{"punch over create", create, encodeValue(true, 9), punch},
		{"create over punch", punch, encodeValue(false, 9), punch},
		{"punch over punch", punch, encodeValue(true, 9), punch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ops.RecordUpdate(nil, nil, tt.old, tt.val)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateOpenClose(t *testing.T) {
	p := newTestPool(t)
	desc := newDescriptor(t, p)

	_, err := Open(p, desc)
	assert.ErrorIs(t, err, ErrNotCreated)
	assert.ErrorIs(t, err, storage.ErrInvalidState)

	h, err := Create(p, desc)
	require.NoError(t, err)
	assert.Equal(t, desc, h.RootOffset())
	assert.Equal(t, emptyRoot(), rootOf(t, h))

	other, err := Open(p, desc)
	require.NoError(t, err)
	require.NoError(t, other.Upsert(1, 5, dtxA, false))
	assert.Equal(t, StateInline, rootOf(t, h).State())

	h.Ref()
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.ErrorIs(t, h.Close(), ErrStaleHandle)
	_, err = h.Entries()
	assert.ErrorIs(t, err, ErrStaleHandle)
	assert.ErrorIs(t, h.Upsert(1, 6, dtxA, false), ErrStaleHandle)

	_, err = Create(p, storage.NullOffset)
	assert.ErrorIs(t, err, storage.ErrInvalidArgument)
}

func TestConcreteScenario(t *testing.T) {
	p := newTestPool(t)
	h := newLog(t, p)

	require.NoError(t, h.Upsert(1, 1, dtxA, false))
	assert.Equal(t, Root{Timestamp: 1, MapVersion: 1, EntryRef: dtxA, Magic: Magic}, rootOf(t, h))

	require.NoError(t, h.Upsert(1, 1, dtxA, true))
	assert.Equal(t, Root{Timestamp: 1, Punch: true, MapVersion: 1, EntryRef: dtxA, Magic: Magic}, rootOf(t, h))

	require.NoError(t, h.Upsert(1, 1, dtxB, true))
	assert.Equal(t, Root{Timestamp: 1, Punch: true, MapVersion: 1, EntryRef: dtxA, Magic: Magic}, rootOf(t, h))

	require.NoError(t, h.Upsert(2, 2, dtxC, false))
	r := rootOf(t, h)
	assert.Equal(t, StateTree, r.State())
	assert.Zero(t, r.Timestamp)
	assert.Equal(t, []Entry{
		{Epoch: 1, DTX: dtxA, Punch: true, MapVersion: 1},
		{Epoch: 2, DTX: dtxC, Punch: false, MapVersion: 2},
	}, entriesOf(t, h))
}

func TestMonotonicPunchInline(t *testing.T) {
	p := newTestPool(t)
	h := newLog(t, p)

	require.NoError(t, h.Upsert(1, 4, dtxA, true))
	for i := 0; i < 3; i++ {
		require.NoError(t, h.Upsert(1, 4, dtxA, false))
		assert.True(t, rootOf(t, h).Punch)
	}
	assert.Equal(t, StateInline, rootOf(t, h).State())
}

func TestMonotonicPunchInTree(t *testing.T) {
	p := newTestPool(t)
	h := newLog(t, p)

	require.NoError(t, h.Upsert(1, 1, dtxA, false))
	require.NoError(t, h.Upsert(1, 2, dtxB, true))
	require.Equal(t, StateTree, rootOf(t, h).State())

	require.NoError(t, h.Upsert(7, 2, dtxB, false))
	require.NoError(t, h.Upsert(7, 1, dtxA, true))
	require.NoError(t, h.Upsert(9, 1, dtxA, false))

	assert.Equal(t, []Entry{
		{Epoch: 1, DTX: dtxA, Punch: true, MapVersion: 1},
		{Epoch: 2, DTX: dtxB, Punch: true, MapVersion: 1},
	}, entriesOf(t, h))
}

func TestCompaction(t *testing.T) {
	p := newTestPool(t)

	for _, punch := range []bool{false, true} {
		h := newLog(t, p)
		require.NoError(t, h.Upsert(1, 3, dtxA, punch))
		before := rootOf(t, h)

		require.NoError(t, h.Upsert(2, 8, dtxB, punch))
		assert.Equal(t, before, rootOf(t, h), "punch=%v", punch)
	}
}

func TestPromotionOrder(t *testing.T) {
	p := newTestPool(t)

	t.Run("earlier epoch with same flag promotes", func(t *testing.T) {
		h := newLog(t, p)
		require.NoError(t, h.Upsert(1, 8, dtxA, false))
		require.NoError(t, h.Upsert(1, 3, dtxB, false))

		assert.Equal(t, StateTree, rootOf(t, h).State())
		assert.Equal(t, []Entry{
			{Epoch: 3, DTX: dtxB, MapVersion: 1},
			{Epoch: 8, DTX: dtxA, MapVersion: 1},
		}, entriesOf(t, h))
	})

	t.Run("equal epochs order by dtx", func(t *testing.T) {
		h := newLog(t, p)
		require.NoError(t, h.Upsert(1, 1, dtxA, false))
		require.NoError(t, h.Upsert(1, 5, dtxC, true))
		require.NoError(t, h.Upsert(1, 5, dtxA, false))
		require.NoError(t, h.Upsert(1, 5, dtxB, true))

		assert.Equal(t, []Entry{
			{Epoch: 1, DTX: dtxA, MapVersion: 1},
			{Epoch: 5, DTX: dtxA, MapVersion: 1},
			{Epoch: 5, DTX: dtxB, Punch: true, MapVersion: 1},
			{Epoch: 5, DTX: dtxC, Punch: true, MapVersion: 1},
		}, entriesOf(t, h))
	})
}

func TestIdempotentCreate(t *testing.T) {
	p := newTestPool(t)
	desc := newDescriptor(t, p)

	h, err := Create(p, desc)
	require.NoError(t, err)
	require.NoError(t, h.Upsert(1, 1, dtxA, false))
	require.NoError(t, h.Upsert(1, 2, dtxB, true))
	require.Equal(t, StateTree, rootOf(t, h).State())
	st, err := p.Stats()
	require.NoError(t, err)
	used := st.HeapUsed

	again, err := Create(p, desc)
	require.NoError(t, err)
	assert.Equal(t, emptyRoot(), rootOf(t, again))
	assert.Empty(t, entriesOf(t, again))

	// The old tree went back to the free lists and is reused.
	require.NoError(t, again.Upsert(1, 1, dtxA, false))
	require.NoError(t, again.Upsert(1, 2, dtxB, true))
	st, err = p.Stats()
	require.NoError(t, err)
	assert.Equal(t, used, st.HeapUsed)

	_, err = Create(p, desc)
	require.NoError(t, err)
	assert.Empty(t, entriesOf(t, h))
}

func TestMigrationAtomicity(t *testing.T) {
	p := newTestPool(t)
	h := newLog(t, p)
	require.NoError(t, h.Upsert(1, 1, dtxA, false))

	before := rootOf(t, h)
	stBefore, err := p.Stats()
	require.NoError(t, err)

	injected := errors.New("injected allocation failure")
	allocs := 0
	p.SetFaultInjector(func(op string) error {
		if op != "alloc" {
			return nil
		}
		allocs++
		if allocs == 2 {
			return injected
		}
		return nil
	})

	err = h.Upsert(1, 2, dtxB, true)
	assert.ErrorIs(t, err, injected)
	p.SetFaultInjector(nil)

	assert.Equal(t, before, rootOf(t, h))
	stAfter, err := p.Stats()
	require.NoError(t, err)
	assert.Equal(t, stBefore, stAfter)

	require.NoError(t, h.Upsert(1, 2, dtxB, true))
	assert.Len(t, entriesOf(t, h), 2)
}

func TestTreeUpsertAtomicity(t *testing.T) {
	p := newTestPool(t)
	h, err := Create(p, newDescriptor(t, p), WithTreeOrder(3))
	require.NoError(t, err)

	// Three events fill the single leaf of an order-3 tree.
	require.NoError(t, h.Upsert(1, 1, dtxA, false))
	require.NoError(t, h.Upsert(1, 2, dtxB, true))
	require.NoError(t, h.Upsert(1, 3, dtxA, false))
	require.Equal(t, StateTree, rootOf(t, h).State())

	before := entriesOf(t, h)
	require.Len(t, before, 3)
	stBefore, err := p.Stats()
	require.NoError(t, err)

	injected := errors.New("injected split failure")
	p.SetFaultInjector(func(op string) error {
		if op == "alloc" {
			return injected
		}
		return nil
	})
	err = h.Upsert(1, 4, dtxB, true)
	p.SetFaultInjector(nil)
	assert.ErrorIs(t, err, injected)

	assert.Equal(t, before, entriesOf(t, h))
	stAfter, err := p.Stats()
	require.NoError(t, err)
	assert.Equal(t, stBefore, stAfter)

	require.NoError(t, h.Upsert(1, 4, dtxB, true))
	assert.Len(t, entriesOf(t, h), 4)
}

func TestUpsertTxJoinsCallerTransaction(t *testing.T) {
	p := newTestPool(t)
	desc := newDescriptor(t, p)

	tx, err := p.Begin()
	require.NoError(t, err)
	h, err := CreateTx(tx, desc)
	require.NoError(t, err)
	require.NoError(t, h.UpsertTx(tx, 1, 1, dtxA, false))
	require.NoError(t, h.UpsertTx(tx, 1, 2, dtxB, true))
	require.ErrorIs(t, tx.Abort(nil), storage.ErrTxAborted)

	_, err = Open(p, desc)
	assert.ErrorIs(t, err, ErrNotCreated)

	tx, err = p.Begin()
	require.NoError(t, err)
	h, err = CreateTx(tx, desc)
	require.NoError(t, err)
	require.NoError(t, h.UpsertTx(tx, 1, 1, dtxA, false))
	err = h.UpsertTx(tx, 1, 0, dtxB, true)
	assert.ErrorIs(t, err, ErrZeroEpoch)
	assert.False(t, tx.Active())
	assert.ErrorIs(t, tx.Commit(), storage.ErrTxAborted)

	_, err = Open(p, desc)
	assert.ErrorIs(t, err, ErrNotCreated)
}

func TestManyEvents(t *testing.T) {
	p := newTestPool(t)
	h := newLog(t, p)

	require.NoError(t, h.Upsert(1, 1, 1, false))
	require.NoError(t, h.Upsert(1, 1, 1, true))
	require.NoError(t, h.Upsert(1, 1, 2, true))
	require.NoError(t, h.Upsert(1, 2, 2, false))
	require.NoError(t, h.Upsert(1, 2, 2, true))

	punch := false
	for epoch := uint64(3); epoch < 1003; epoch++ {
		require.NoError(t, h.Upsert(1, epoch, storage.Offset(epoch), punch))
		punch = !punch
	}

	entries := entriesOf(t, h)
	require.Len(t, entries, 1002)
	assert.Equal(t, Entry{Epoch: 1, DTX: 1, Punch: true, MapVersion: 1}, entries[0])
	assert.Equal(t, Entry{Epoch: 2, DTX: 2, Punch: true, MapVersion: 1}, entries[1])
	for i, e := range entries[2:] {
		assert.Equal(t, uint64(i+3), e.Epoch)
		assert.Equal(t, i%2 == 1, e.Punch)
	}

	r := rootOf(t, h)
	tree, err := btree.Open(p, r.EntryRef)
	require.NoError(t, err)
	assert.Equal(t, DefaultTreeOrder, tree.Order())
	count, err := tree.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(1002), count)
}

func TestLatestAndVisible(t *testing.T) {
	p := newTestPool(t)
	h := newLog(t, p)

	visible, err := h.Visible(10)
	require.NoError(t, err)
	assert.False(t, visible)

	require.NoError(t, h.Upsert(1, 5, dtxA, false))
	for epoch, want := range map[uint64]bool{4: false, 5: true, 100: true} {
		visible, err := h.Visible(epoch)
		require.NoError(t, err)
		assert.Equal(t, want, visible, "inline, epoch %d", epoch)
	}

	require.NoError(t, h.Upsert(1, 10, dtxB, true))
	require.NoError(t, h.Upsert(1, 20, dtxA, false))
	require.NoError(t, h.Upsert(1, 20, dtxC, true))
	require.NoError(t, h.Upsert(1, 30, dtxC, false))

	tests := []struct {
		epoch   uint64
		found   bool
		want    Entry
		visible bool
	}{
		{4, false, Entry{}, false},
		{5, true, Entry{Epoch: 5, DTX: dtxA, MapVersion: 1}, true},
		{9, true, Entry{Epoch: 5, DTX: dtxA, MapVersion: 1}, true},
		{10, true, Entry{Epoch: 10, DTX: dtxB, Punch: true, MapVersion: 1}, false},
		{25, true, Entry{Epoch: 20, DTX: dtxC, Punch: true, MapVersion: 1}, false},
		{31, true, Entry{Epoch: 30, DTX: dtxC, MapVersion: 1}, true},
	}
	for _, tt := range tests {
		e, ok, err := h.Latest(tt.epoch)
		require.NoError(t, err)
		assert.Equal(t, tt.found, ok, "epoch %d", tt.epoch)
		assert.Equal(t, tt.want, e, "epoch %d", tt.epoch)

		visible, err := h.Visible(tt.epoch)
		require.NoError(t, err)
		assert.Equal(t, tt.visible, visible, "epoch %d", tt.epoch)
	}
}

func TestDestroy(t *testing.T) {
	p := newTestPool(t)
	h := newLog(t, p)
	require.NoError(t, h.Upsert(1, 1, dtxA, false))
	require.NoError(t, h.Upsert(1, 2, dtxB, true))
	tree := rootOf(t, h).EntryRef

	require.NoError(t, h.Destroy())
	assert.Equal(t, emptyRoot(), rootOf(t, h))
	_, err := btree.Open(p, tree)
	assert.ErrorIs(t, err, btree.ErrNotTreeRoot)

	require.NoError(t, h.Upsert(1, 3, dtxC, false))
	assert.Equal(t, []Entry{{Epoch: 3, DTX: dtxC, MapVersion: 1}}, entriesOf(t, h))
}

func TestInitIdempotent(t *testing.T) {
	require.NoError(t, Init())
	require.NoError(t, Init())
	assert.True(t, btree.Registered(btree.ClassILog))
}
