package storage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		n     int
		class int
		ok    bool
	}{
		{1, 0, true},
		{24, 0, true},
		{25, 1, true},
		{56, 1, true},
		{57, 2, true},
		{MaxAllocSize, NumSizeClasses - 1, true},
		{MaxAllocSize + 1, 0, false},
	}

	for _, tt := range tests {
		c, ok := sizeClass(tt.n)
		assert.Equal(t, tt.ok, ok, "n=%d", tt.n)
		if tt.ok {
			assert.Equal(t, tt.class, c, "n=%d", tt.n)
		}
	}
}

func TestAllocZeroedAndSized(t *testing.T) {
	p := newTestPool(t)

	tx, err := p.Begin()
	require.NoError(t, err)
	off, err := tx.Alloc(100)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	size, err := p.BlockSize(off)
	require.NoError(t, err)
	assert.Equal(t, 120, size)

	b, err := p.Resolve(off, size)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, size), b)
}

func TestAllocReuseAfterFree(t *testing.T) {
	p := newTestPool(t)
	off := allocCommitted(t, p, bytes.Repeat([]byte{0xab}, 200))

	tx, err := p.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Free(off))
	require.NoError(t, tx.Commit())

	st, err := p.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.FreeBlocks[3])
	used := st.HeapUsed

	tx, err = p.Begin()
	require.NoError(t, err)
	again, err := tx.Alloc(150)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, off, again)

	b, err := p.Resolve(again, 150)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 150), b)

	st, err = p.Stats()
	require.NoError(t, err)
	assert.Equal(t, used, st.HeapUsed)
	assert.Zero(t, st.FreeBlocks[3])
}

func TestFreeAbortKeepsBlockContents(t *testing.T) {
	p := newTestPool(t)
	off := allocCommitted(t, p, []byte("still here"))

	tx, err := p.Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Free(off))
	reused, err := tx.Alloc(10)
	require.NoError(t, err)
	assert.Equal(t, off, reused)
	require.NoError(t, tx.Write(reused, []byte("overwrite!")))
	tx.Discard()

	assert.Equal(t, "still here", readBytes(t, p, off, 10))
	size, err := p.BlockSize(off)
	require.NoError(t, err)
	assert.Equal(t, 24, size)
}

func TestFreeErrors(t *testing.T) {
	p := newTestPool(t)
	off := allocCommitted(t, p, []byte("x"))

	tx, err := p.Begin()
	require.NoError(t, err)
	defer tx.Discard()

	assert.ErrorIs(t, tx.Free(Offset(HeaderSize)), ErrBadFree)
	assert.ErrorIs(t, tx.Free(off+8), ErrBadFree)
	require.NoError(t, tx.Free(off))
	assert.ErrorIs(t, tx.Free(off), ErrBadFree)
}

func TestAllocErrors(t *testing.T) {
	p := newTestPool(t)

	tx, err := p.Begin()
	require.NoError(t, err)
	defer tx.Discard()

	_, err = tx.Alloc(0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = tx.Alloc(MaxAllocSize + 1)
	assert.ErrorIs(t, err, ErrAllocTooLarge)
}

func TestHeapExhausted(t *testing.T) {
	p := newTestPool(t)

	tx, err := p.Begin()
	require.NoError(t, err)
	defer tx.Discard()

	for {
		_, err = tx.Alloc(MaxAllocSize)
		if err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, ErrHeapExhausted)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}
