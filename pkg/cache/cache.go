package cache

import "github.com/torrentstore/diskcore/pkg/bufpool"

// Category names the caller-side purpose of an allocated buffer. The
// allocator treats every category identically; it exists so metrics and
// logs can distinguish a peer-request receive buffer from a piece-hash
// scratch buffer without the cache needing to know about either.
type Category string

const (
	CategoryPeerRequest Category = "peer_request"
	CategoryPieceHash   Category = "piece_hash"
)

// AllocateDiskBuffer implements spec §4.H allocate_disk_buffer: hands out
// one pool block charged against the same high-water mark as cache-
// resident blocks. If the cache is at or over MaxBlocks, it returns
// ErrExceeded and, if onRetry is non-nil, queues it to fire once usage
// drops to LowWatermark.
func (c *Cache) AllocateDiskBuffer(category Category, onRetry func()) (*bufpool.Block, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrCacheClosed
	}
	if c.usedBlocks >= c.cfg.MaxBlocks {
		if onRetry != nil {
			c.pending = append(c.pending, observer{fn: onRetry})
		}
		c.mu.Unlock()
		return nil, ErrExceeded
	}
	c.usedBlocks++
	c.mu.Unlock()

	b, err := c.cfg.Pool.Alloc(string(category))
	if err != nil {
		c.mu.Lock()
		c.usedBlocks--
		c.mu.Unlock()
		return nil, err
	}
	return b, nil
}

// FreeDiskBuffer implements spec §4.H free_disk_buffer: returns a single
// buffer immediately and, if usage has dropped to LowWatermark, fires any
// observers queued by a prior exceeded AllocateDiskBuffer call.
func (c *Cache) FreeDiskBuffer(b *bufpool.Block) {
	c.cfg.Pool.Free(b)
	c.mu.Lock()
	if c.usedBlocks > 0 {
		c.usedBlocks--
	}
	c.mu.Unlock()
	c.fireObserversIfBelowWatermark()
}

// Reclaimer batches outstanding cache Refs on the caller side and releases
// them to the cache in one coalesced call, per spec §4.H reclaim_block —
// a peer connection finishing a batch of block reads accumulates Refs
// here instead of calling Release once per block.
type Reclaimer struct {
	cache *Cache
	refs  []Ref
}

// NewReclaimer returns a Reclaimer bound to c.
func NewReclaimer(c *Cache) *Reclaimer {
	return &Reclaimer{cache: c}
}

// Add queues ref for release on the next Flush.
func (r *Reclaimer) Add(ref Ref) {
	r.refs = append(r.refs, ref)
}

// Flush releases every queued ref and checks backpressure observers once,
// rather than once per ref.
func (r *Reclaimer) Flush() {
	if len(r.refs) == 0 {
		return
	}
	for _, ref := range r.refs {
		r.cache.Release(ref)
	}
	r.refs = r.refs[:0]
	r.cache.fireObserversIfBelowWatermark()
}
