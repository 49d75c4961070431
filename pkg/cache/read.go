package cache

import "container/list"

// Ref is an outside reference to one cached block, returned by Get and
// InsertRead/InsertDirty. The refcount keeps the block pinned (ineligible
// for eviction) until Release is called exactly once per Ref.
type Ref struct {
	Key   Key
	Block int
	Data  []byte
	Dirty bool

	entry *pieceEntry
}

// Get looks up (storage, piece, block). On a hit it increments the block's
// refcount and moves the piece toward MFU per ARC promotion rules; a miss
// leaves the cache unchanged and returns ok=false.
func (c *Cache) Get(storageID string, piece, block int) (Ref, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key{StorageID: storageID, Piece: piece}
	el, ok := c.entries[key]
	if !ok {
		c.recordMissLocked()
		return Ref{}, false
	}
	e := el.Value.(*pieceEntry)
	if block < 0 || block >= len(e.blocks) || e.blocks[block].state == blockEmpty {
		c.recordMissLocked()
		return Ref{}, false
	}

	c.promoteLocked(e, el)

	b := &e.blocks[block]
	b.refcount++
	c.pinnedBlocks++
	c.hits.Add(1)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ObserveHit()
	}

	return Ref{Key: key, Block: block, Data: b.data, Dirty: b.state == blockDirty, entry: e}, true
}

func (c *Cache) recordMissLocked() {
	c.misses.Add(1)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ObserveMiss()
	}
}

// promoteLocked implements the ARC MRU->MFU promotion: the first access
// leaves a piece in MRU; a second (or later) access moves it to MFU. el is
// the entry's current position in whichever non-ghost list it occupies.
func (c *Cache) promoteLocked(e *pieceEntry, el *list.Element) {
	e.accesses++
	if e.list == listMRU && e.accesses >= 2 {
		c.moveToListLocked(e, listMFU, el)
		return
	}
	if l := c.listFor(e.list); l != nil {
		l.MoveToFront(el)
		e.lastUse = c.tick()
	}
}

// Release decrements a Ref's refcount, potentially making the block
// evictable again.
func (c *Cache) Release(r Ref) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.entry == nil || r.Block < 0 || r.Block >= len(r.entry.blocks) {
		return
	}
	b := &r.entry.blocks[r.Block]
	if b.refcount > 0 {
		b.refcount--
		c.pinnedBlocks--
	}
}

// InsertRead populates a cache miss with data freshly read from disk. It
// does not touch the piece's incremental hash (reads do not advance
// hash_offset).
func (c *Cache) InsertRead(storageID string, piece, block int, pieceSize int64, data []byte) Ref {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key{StorageID: storageID, Piece: piece}
	e, _ := c.getOrCreateEntryLocked(key, pieceSize)

	b := &e.blocks[block]
	if b.state == blockDirty {
		// Inserting clean while dirty exists is a no-op (spec §4.E).
		b.refcount++
		c.pinnedBlocks++
		return Ref{Key: key, Block: block, Data: b.data, Dirty: true, entry: e}
	}
	if b.state == blockEmpty {
		c.usedBlocks++
	}
	b.state = blockClean
	b.data = data
	b.refcount++
	c.pinnedBlocks++
	return Ref{Key: key, Block: block, Data: data, entry: e}
}
