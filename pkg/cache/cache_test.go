package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torrentstore/diskcore/pkg/bufpool"
)

// S6: a caller blocked on allocate_disk_buffer's observer fires exactly
// once, when usage drops to the low-water mark, not on every free.
func TestAllocateDiskBuffer_backpressureObserverFiresOnceAtLowWatermark(t *testing.T) {
	c := newTestCache(t, 4)
	c.cfg.LowWatermark = 2

	var blocks []*bufpool.Block
	for i := 0; i < 4; i++ {
		b, err := c.AllocateDiskBuffer(CategoryPeerRequest, nil)
		require.NoError(t, err)
		blocks = append(blocks, b)
	}

	fired := 0
	_, err := c.AllocateDiskBuffer(CategoryPeerRequest, func() { fired++ })
	assert.ErrorIs(t, err, ErrExceeded)
	assert.Equal(t, 0, fired)

	// Freeing one block only brings usage to 3; still above LowWatermark=2.
	c.FreeDiskBuffer(blocks[0])
	assert.Equal(t, 0, fired)

	// Freeing a second drops usage to 2, at the low-water mark: observer fires.
	c.FreeDiskBuffer(blocks[1])
	assert.Equal(t, 1, fired)

	// Further frees must not refire the same observer.
	c.FreeDiskBuffer(blocks[2])
	assert.Equal(t, 1, fired)
}

func TestAllocateDiskBuffer_rejectsAfterClose(t *testing.T) {
	c := newTestCache(t, 4)
	c.Close()
	_, err := c.AllocateDiskBuffer(CategoryPeerRequest, nil)
	assert.True(t, errors.Is(err, ErrCacheClosed))
}

func TestReclaimer_flushReleasesAllQueuedRefs(t *testing.T) {
	c := newTestCache(t, 4)
	data := make([]byte, BlockSize)
	ref := c.InsertRead("s1", 0, 0, BlockSize, data)

	r := NewReclaimer(c)
	r.Add(ref)
	assert.Equal(t, 0, c.TryEvict(1))

	r.Flush()
	assert.Equal(t, 1, c.TryEvict(1))
}
