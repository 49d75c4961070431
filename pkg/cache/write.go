package cache

import "time"

// InsertDirty populates (or overwrites) a block with unflushed data. A
// clean copy can never coalesce over a dirty one: inserting dirty always
// wins, inserting clean while dirty exists is InsertRead's no-op path.
//
// If the write lands at exactly the piece's current hash_offset, it is fed
// through the incremental SHA-1 hasher immediately and hash_offset advances
// as far as contiguously resident clean-or-dirty bytes extend. Otherwise the
// bytes are recorded but the hash is left for a later hash job to absorb,
// re-reading from disk if an intervening block was evicted.
func (c *Cache) InsertDirty(storageID string, piece, block int, pieceSize int64, data []byte) Ref {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key{StorageID: storageID, Piece: piece}
	e, _ := c.getOrCreateEntryLocked(key, pieceSize)

	if e.list != listWrite {
		if el, ok := c.entries[key]; ok {
			c.moveToListLocked(e, listWrite, el)
		}
	}

	b := &e.blocks[block]
	if b.state == blockEmpty {
		c.usedBlocks++
	}
	b.state = blockDirty
	b.data = data
	b.dirtySince = time.Now()

	if e.hash == nil && block == 0 {
		hs := newHashState()
		e.hash = &partialHash{hasher: hs}
	}
	if e.hash != nil {
		c.advanceHashLocked(e)
	}

	b.refcount++
	c.pinnedBlocks++
	return Ref{Key: key, Block: block, Data: data, Dirty: true, entry: e}
}

// advanceHashLocked feeds contiguous resident bytes starting at the piece's
// current hash_offset through its incremental hasher, stopping at the first
// gap (empty block) or at the end of the piece.
func (c *Cache) advanceHashLocked(e *pieceEntry) {
	h := e.hash
	for {
		block := int(h.hashOffset / BlockSize)
		if block >= len(e.blocks) {
			break
		}
		b := &e.blocks[block]
		if b.state == blockEmpty {
			break
		}
		within := h.hashOffset - int64(block)*BlockSize
		avail := int64(len(b.data)) - within
		if avail <= 0 {
			break
		}
		h.hasher.write(b.data[within:])
		h.hashOffset += avail
		if within == 0 {
			b.hashed = true
		}
		if h.hashOffset >= e.pieceSize {
			break
		}
	}
}

// HashOffset returns how many contiguous bytes from block 0 of piece have
// been absorbed by the incremental hasher (0 if no partial hash exists yet).
func (c *Cache) HashOffset(storageID string, piece int) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entryLocked(storageID, piece)
	if !ok || e.hash == nil {
		return 0
	}
	return e.hash.hashOffset
}

// NeedsReadback reports whether a block at or beyond hash_offset was
// evicted before the hasher consumed it, meaning a hash job must re-read it
// from disk before finalizing.
func (c *Cache) NeedsReadback(storageID string, piece int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entryLocked(storageID, piece)
	if !ok || e.hash == nil {
		return false
	}
	return e.hash.needReadback
}

// FinishedHash returns the completed SHA-1 digest and true when
// hash_offset == pieceSize; otherwise ok is false.
func (c *Cache) FinishedHash(storageID string, piece int) ([20]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entryLocked(storageID, piece)
	if !ok || e.hash == nil || e.hash.hashOffset < e.pieceSize {
		return [20]byte{}, false
	}
	return e.hash.sum(), true
}

// AbsorbReadback feeds bytes re-read from disk (because NeedsReadback was
// true) into the hasher at exactly hash_offset, advancing it and clearing
// the flag. Used by a hash job that first re-reads the gap, then calls this
// instead of re-running InsertDirty.
func (c *Cache) AbsorbReadback(storageID string, piece int, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entryLocked(storageID, piece)
	if !ok || e.hash == nil {
		return
	}
	e.hash.hasher.write(data)
	e.hash.hashOffset += int64(len(data))
	e.hash.needReadback = false
}

// ClearPiece discards a piece's cached blocks and partial hash entirely
// (spec invariant 4: only clear_piece may roll back hash_offset).
func (c *Cache) ClearPiece(storageID string, piece int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := Key{StorageID: storageID, Piece: piece}
	el, ok := c.entries[key]
	if !ok {
		return
	}
	e := el.Value.(*pieceEntry)
	for i := range e.blocks {
		c.freeSlotLocked(&e.blocks[i])
	}
	if l := c.listFor(e.list); l != nil {
		l.Remove(el)
	}
	delete(c.entries, key)
}

func (c *Cache) entryLocked(storageID string, piece int) (*pieceEntry, bool) {
	el, ok := c.entries[Key{StorageID: storageID, Piece: piece}]
	if !ok {
		return nil, false
	}
	return el.Value.(*pieceEntry), true
}
