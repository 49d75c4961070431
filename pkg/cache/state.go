package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/torrentstore/diskcore/internal/logger"
	"github.com/torrentstore/diskcore/pkg/bufpool"
	"github.com/torrentstore/diskcore/pkg/storage"
)

// Backing is the subset of a storage backend the cache needs to flush dirty
// blocks and to re-read blocks evicted before the hasher consumed them.
// *storage.Storage satisfies this.
type Backing interface {
	Readv(bufs []storage.IoVec, piece int, offset int64) (int64, error)
	Writev(bufs []storage.IoVec, piece int, offset int64) (int64, error)
}

// Metrics receives cache event counters; nil is valid and means "don't
// record" (pkg/metrics wires a Prometheus-backed implementation).
type Metrics interface {
	ObserveHit()
	ObserveMiss()
	ObserveEviction(n int)
	ObserveFlush(bytes int64)
}

// Config configures a Cache.
type Config struct {
	// MaxBlocks is the high-water mark for total cached blocks
	// (spec §6 cache_size_blocks).
	MaxBlocks int64

	// LowWatermark is the level at which queued backpressure observers
	// are refired (spec §6 cache_low_watermark).
	LowWatermark int64

	Pool    *bufpool.Pool
	Metrics Metrics
}

// observer is a queued backpressure callback (spec §4.E allocate_pending,
// §4.H allocate_disk_buffer).
type observer struct {
	fn func()
}

// Cache is the ARC-partitioned block cache. One Cache instance is shared by
// every storage in a session; entries are looked up by (storage, piece).
type Cache struct {
	cfg Config

	mu sync.Mutex

	entries map[Key]*list.Element // value *pieceEntry, across MRU/MFU/write/volatile
	ghosts  map[Key]*list.Element // value *Key, across MRU-ghost/MFU-ghost

	mru      *list.List
	mfu      *list.List
	mruGhost *list.List
	mfuGhost *list.List
	write    *list.List
	volatile *list.List

	usedBlocks   int64
	pinnedBlocks int64
	p            int64 // ARC target size for MRU, in blocks

	clock uint64 // logical clock for lastUse timestamps

	pending []observer

	hits, misses, evictions atomic.Uint64

	closed bool
}

// New constructs a Cache. cfg.Pool must be non-nil; its BlockSize should
// equal BlockSize.
func New(cfg Config) *Cache {
	if cfg.LowWatermark <= 0 || cfg.LowWatermark > cfg.MaxBlocks {
		cfg.LowWatermark = cfg.MaxBlocks / 2
	}
	return &Cache{
		cfg:      cfg,
		entries:  make(map[Key]*list.Element),
		ghosts:   make(map[Key]*list.Element),
		mru:      list.New(),
		mfu:      list.New(),
		mruGhost: list.New(),
		mfuGhost: list.New(),
		write:    list.New(),
		volatile: list.New(),
	}
}

// Close releases every block back to the pool. Outstanding refs must have
// been released first.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, el := range c.entries {
		e := el.Value.(*pieceEntry)
		for i := range e.blocks {
			c.freeSlotLocked(&e.blocks[i])
		}
	}
}

func (c *Cache) freeSlotLocked(b *blockSlot) {
	if b.state != blockEmpty {
		c.usedBlocks--
	}
	if b.data != nil {
		c.cfg.Pool.Free(&bufpool.Block{Data: b.data})
		b.data = nil
	}
	b.state = blockEmpty
}

func (c *Cache) tick() uint64 {
	c.clock++
	return c.clock
}

// Stats returns a point-in-time snapshot of cache occupancy.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		MRUBlocks:      c.listBlocksLocked(c.mru),
		MFUBlocks:      c.listBlocksLocked(c.mfu),
		WriteBlocks:    c.listBlocksLocked(c.write),
		VolatileBlocks: c.listBlocksLocked(c.volatile),
		PinnedBlocks:   int(c.pinnedBlocks),
		MRUGhostPieces: c.mruGhost.Len(),
		MFUGhostPieces: c.mfuGhost.Len(),
		P:              c.p,
		MaxBlocks:      c.cfg.MaxBlocks,
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Evictions:      c.evictions.Load(),
	}
}

func (c *Cache) listBlocksLocked(l *list.List) int {
	n := 0
	for el := l.Front(); el != nil; el = el.Next() {
		e := el.Value.(*pieceEntry)
		n += residentBlocks(e)
	}
	return n
}

func residentBlocks(e *pieceEntry) int {
	n := 0
	for _, b := range e.blocks {
		if b.state != blockEmpty {
			n++
		}
	}
	return n
}

func hasDirtyBlocks(e *pieceEntry) bool {
	for _, b := range e.blocks {
		if b.state == blockDirty {
			return true
		}
	}
	return false
}

// listFor returns the list.List backing a listKind (ghost lists excluded).
func (c *Cache) listFor(k listKind) *list.List {
	switch k {
	case listMRU:
		return c.mru
	case listMFU:
		return c.mfu
	case listWrite:
		return c.write
	case listVolatile:
		return c.volatile
	default:
		return nil
	}
}

// moveToListLocked removes e from its current list (if any) and pushes it to
// the front of dst, updating e.list and the c.entries index so lookups
// always resolve to the element's current list.
func (c *Cache) moveToListLocked(e *pieceEntry, dst listKind, el *list.Element) *list.Element {
	if el != nil {
		if src := c.listFor(e.list); src != nil {
			src.Remove(el)
		}
	}
	e.list = dst
	e.lastUse = c.tick()
	l := c.listFor(dst)
	newEl := l.PushFront(e)
	c.entries[e.key] = newEl
	return newEl
}

// getOrCreateEntryLocked returns the entry for key, creating one (and
// consulting ghost lists to seed ARC adaptation) if absent.
func (c *Cache) getOrCreateEntryLocked(key Key, pieceSize int64) (*pieceEntry, bool) {
	if el, ok := c.entries[key]; ok {
		return el.Value.(*pieceEntry), false
	}

	wasGhost := listNone
	if _, ok := c.ghosts[key]; ok {
		if l, found := c.findGhostList(key); found {
			wasGhost = l
		}
		c.removeGhostLocked(key)
	}

	e := &pieceEntry{key: key, pieceSize: pieceSize, blocks: make([]blockSlot, numBlocks(pieceSize)), accesses: 1}

	c.adaptOnGhostHitLocked(wasGhost)

	el := c.mru.PushFront(e)
	e.list = listMRU
	e.lastUse = c.tick()
	c.entries[key] = el
	return e, true
}

func (c *Cache) findGhostList(key Key) (listKind, bool) {
	if _, ok := c.ghostElement(c.mruGhost, key); ok {
		return listMRUGhost, true
	}
	if _, ok := c.ghostElement(c.mfuGhost, key); ok {
		return listMFUGhost, true
	}
	return listNone, false
}

func (c *Cache) ghostElement(l *list.List, key Key) (*list.Element, bool) {
	for el := l.Front(); el != nil; el = el.Next() {
		if *(el.Value.(*Key)) == key {
			return el, true
		}
	}
	return nil, false
}

func (c *Cache) removeGhostLocked(key Key) {
	el, ok := c.ghosts[key]
	if !ok {
		return
	}
	k := el.Value.(*Key)
	if l, found := c.findGhostList(*k); found {
		c.listFor2(l).Remove(el)
	}
	delete(c.ghosts, key)
}

func (c *Cache) listFor2(k listKind) *list.List {
	switch k {
	case listMRUGhost:
		return c.mruGhost
	case listMFUGhost:
		return c.mfuGhost
	default:
		return nil
	}
}

// adaptOnGhostHitLocked implements ARC's p adaptation: a hit in the MRU
// ghost list grows the MRU target, a hit in the MFU ghost list shrinks it.
func (c *Cache) adaptOnGhostHitLocked(wasGhost listKind) {
	if c.cfg.MaxBlocks == 0 {
		return
	}
	switch wasGhost {
	case listMRUGhost:
		delta := int64(1)
		if c.mfuGhost.Len() > c.mruGhost.Len() {
			delta = int64(c.mfuGhost.Len() / max1(c.mruGhost.Len()))
		}
		c.p = minI64(c.p+delta, c.cfg.MaxBlocks)
	case listMFUGhost:
		delta := int64(1)
		if c.mruGhost.Len() > c.mfuGhost.Len() {
			delta = int64(c.mruGhost.Len() / max1(c.mfuGhost.Len()))
		}
		c.p = maxI64(c.p-delta, 0)
	}
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// queueObserver appends an observer to fire once usage drops to the
// low-water mark (spec §4.E allocate_pending, §4.H).
func (c *Cache) queueObserver(fn func()) {
	c.mu.Lock()
	c.pending = append(c.pending, observer{fn: fn})
	c.mu.Unlock()
}

// fireObserversIfBelowWatermark drains and invokes every queued observer, in
// registration order, if usedBlocks has dropped to/under LowWatermark.
// Callers must not hold c.mu.
func (c *Cache) fireObserversIfBelowWatermark() {
	c.mu.Lock()
	if len(c.pending) == 0 || c.usedBlocks > c.cfg.LowWatermark {
		c.mu.Unlock()
		return
	}
	fired := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, o := range fired {
		o.fn()
	}
	logger.Debug("cache: fired backpressure observers", "count", len(fired))
}
