package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrentstore/diskcore/pkg/storage"
)

func TestTryEvict_neverEvictsPinnedBlock(t *testing.T) {
	c := newTestCache(t, 64)
	data := make([]byte, BlockSize)
	ref := c.InsertRead("s1", 0, 0, BlockSize, data)
	defer c.Release(ref)

	assert.Equal(t, 0, c.TryEvict(1))
}

func TestTryEvict_neverEvictsDirtyBlock(t *testing.T) {
	c := newTestCache(t, 64)
	data := make([]byte, BlockSize)
	ref := c.InsertDirty("s1", 0, 0, BlockSize, data)
	c.Release(ref)

	assert.Equal(t, 0, c.TryEvict(1))
}

// S3: a partial hash survives eviction of the blocks it already absorbed.
func TestTryEvict_partialHashSurvivesBlockEviction(t *testing.T) {
	c := newTestCache(t, 64)
	pieceSize := int64(2 * BlockSize)

	b0 := make([]byte, BlockSize)
	ref0 := c.InsertDirty("s1", 0, 0, pieceSize, b0)
	c.Release(ref0)
	require.Equal(t, int64(BlockSize), c.HashOffset("s1", 0))

	// Flush block 0 clean so it becomes evictable.
	backing := &fakeBacking{}
	require.NoError(t, c.FlushPiece("s1", 0, backing, FlushNormal))

	evicted := c.TryEvict(1)
	assert.Equal(t, 1, evicted)

	// hash_offset must not roll back: only ClearPiece may do that.
	assert.Equal(t, int64(BlockSize), c.HashOffset("s1", 0))
	assert.False(t, c.NeedsReadback("s1", 0))
}

// fakeBacking is a minimal Backing that just records/serves bytes in
// memory, standing in for a real *storage.Storage in cache-only tests.
type fakeBacking struct {
	data map[int64][]byte
}

func (f *fakeBacking) Readv(bufs []storage.IoVec, piece int, offset int64) (int64, error) {
	var n int64
	for _, b := range bufs {
		chunk := f.data[offset]
		copy(b.Buf, chunk)
		n += int64(len(b.Buf))
		offset += int64(len(b.Buf))
	}
	return n, nil
}

func (f *fakeBacking) Writev(bufs []storage.IoVec, piece int, offset int64) (int64, error) {
	if f.data == nil {
		f.data = make(map[int64][]byte)
	}
	var n int64
	for _, b := range bufs {
		cp := make([]byte, len(b.Buf))
		copy(cp, b.Buf)
		f.data[offset] = cp
		n += int64(len(b.Buf))
		offset += int64(len(b.Buf))
	}
	return n, nil
}
