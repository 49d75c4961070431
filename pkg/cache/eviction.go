package cache

import "container/list"

// TryEvict evicts up to n blocks total from the ARC lists, respecting:
//   - never evict a block with refcount > 0
//   - never evict a dirty block (it must be flushed first)
//   - within a piece, evict from the highest block index down; a piece with
//     a live partial hash keeps its hash record, and evicting a block at or
//     beyond hash_offset (not yet absorbed by the hasher) sets need_readback
//     so the hasher re-reads it from disk.
//
// Each round walks one list back-to-front: MRU when it holds more blocks
// than the adaptive target p, otherwise MFU, falling back to the other list
// when the first yields nothing.
func (c *Cache) TryEvict(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tryEvictLocked(n)
}

func (c *Cache) tryEvictLocked(n int) int {
	evicted := 0
	for evicted < n {
		first := c.mru
		second := c.mfu
		if c.mruOverTargetLocked() {
			first, second = c.mru, c.mfu
		} else {
			first, second = c.mfu, c.mru
		}

		got := c.evictFromListLocked(first, n-evicted)
		evicted += got
		if got == 0 {
			got = c.evictFromListLocked(second, n-evicted)
			evicted += got
			if got == 0 {
				break
			}
		}
	}
	if evicted > 0 {
		c.evictions.Add(uint64(evicted))
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.ObserveEviction(evicted)
		}
	}
	return evicted
}

func (c *Cache) mruOverTargetLocked() bool {
	return int64(c.listBlocksLocked(c.mru)) > c.p
}

// evictFromListLocked walks l from the back (least recently used) forward,
// evicting eligible blocks from each piece entry until budget blocks have
// been freed or the list is exhausted.
func (c *Cache) evictFromListLocked(l *list.List, budget int) int {
	freed := 0
	var next *list.Element
	for el := l.Back(); el != nil && freed < budget; el = next {
		next = el.Prev()
		e := el.Value.(*pieceEntry)

		n := c.evictPieceLocked(e, budget-freed)
		freed += n

		if residentBlocks(e) == 0 && e.hash == nil {
			// Fully drained and no partial hash to remember: demote to
			// a ghost entry (metadata only).
			l.Remove(el)
			delete(c.entries, e.key)
			c.pushGhostLocked(e.list, e.key)
		}
	}
	return freed
}

// evictPieceLocked evicts up to budget eligible blocks from one piece entry,
// honoring the partial-hash retention rule.
func (c *Cache) evictPieceLocked(e *pieceEntry, budget int) int {
	freed := 0
	hashOffset := int64(0)
	hasHash := e.hash != nil
	if hasHash {
		hashOffset = e.hash.hashOffset
	}

	// Evict from the tail of the piece (highest block index) first so an
	// in-progress hasher's prefix is the last thing touched.
	for i := len(e.blocks) - 1; i >= 0 && freed < budget; i-- {
		b := &e.blocks[i]
		if b.state == blockEmpty || b.state == blockDirty || b.refcount > 0 {
			continue
		}

		blockStart := int64(i) * BlockSize
		if hasHash && blockStart >= hashOffset {
			// This block has not yet been absorbed by the hasher.
			// Evicting it means a later hash job must re-read it from
			// disk once the hasher reaches this offset.
			e.hash.needReadback = true
		}

		c.freeSlotLocked(b)
		freed++
	}
	return freed
}

func (c *Cache) pushGhostLocked(from listKind, key Key) {
	dst := listMRUGhost
	if from == listMFU {
		dst = listMFUGhost
	}
	l := c.listFor2(dst)
	el := l.PushFront(&key)
	c.ghosts[key] = el
	c.trimGhostLocked(l)
}

// trimGhostLocked bounds each ghost list to roughly MaxBlocks entries so
// ghost metadata does not grow without bound.
func (c *Cache) trimGhostLocked(l *list.List) {
	limit := c.cfg.MaxBlocks
	if limit <= 0 {
		limit = 1024
	}
	for int64(l.Len()) > limit {
		back := l.Back()
		if back == nil {
			return
		}
		k := back.Value.(*Key)
		l.Remove(back)
		delete(c.ghosts, *k)
	}
}
