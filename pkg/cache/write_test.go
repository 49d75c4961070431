package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertDirty_movesEntryToWriteList(t *testing.T) {
	c := newTestCache(t, 64)
	data := make([]byte, BlockSize)
	ref := c.InsertDirty("s1", 0, 0, BlockSize, data)
	c.Release(ref)

	c.mu.Lock()
	e := c.entries[Key{StorageID: "s1", Piece: 0}].Value.(*pieceEntry)
	list := e.list
	c.mu.Unlock()

	assert.Equal(t, listWrite, list)
}

func TestInsertDirty_advancesHashOffsetContiguously(t *testing.T) {
	c := newTestCache(t, 64)
	pieceSize := int64(2 * BlockSize)

	b0 := make([]byte, BlockSize)
	for i := range b0 {
		b0[i] = byte(i)
	}
	ref0 := c.InsertDirty("s1", 0, 0, pieceSize, b0)
	c.Release(ref0)
	assert.Equal(t, int64(BlockSize), c.HashOffset("s1", 0))

	b1 := make([]byte, BlockSize)
	for i := range b1 {
		b1[i] = byte(255 - i)
	}
	ref1 := c.InsertDirty("s1", 0, 1, pieceSize, b1)
	c.Release(ref1)
	assert.Equal(t, pieceSize, c.HashOffset("s1", 0))

	digest, done := c.FinishedHash("s1", 0)
	require.True(t, done)
	assert.NotEqual(t, [20]byte{}, digest)
}

func TestInsertDirty_gapLeavesHashOffsetAtBoundary(t *testing.T) {
	c := newTestCache(t, 64)
	pieceSize := int64(3 * BlockSize)

	b1 := make([]byte, BlockSize)
	ref1 := c.InsertDirty("s1", 0, 1, pieceSize, b1)
	c.Release(ref1)

	// Block 0 hasn't arrived yet, so hash_offset cannot advance into block 1.
	assert.Equal(t, int64(0), c.HashOffset("s1", 0))

	_, done := c.FinishedHash("s1", 0)
	assert.False(t, done)
}

func TestClearPiece_rollsBackHashOffset(t *testing.T) {
	c := newTestCache(t, 64)
	data := make([]byte, BlockSize)
	ref := c.InsertDirty("s1", 0, 0, BlockSize, data)
	c.Release(ref)
	require.Equal(t, int64(BlockSize), c.HashOffset("s1", 0))

	c.ClearPiece("s1", 0)
	assert.Equal(t, int64(0), c.HashOffset("s1", 0))
}
