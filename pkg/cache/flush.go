package cache

import (
	"time"

	"github.com/torrentstore/diskcore/pkg/storage"
)

// FlushFlags modifies FlushPiece behavior.
type FlushFlags int

const (
	FlushNormal FlushFlags = 0
)

// FlushPiece writes every dirty block of piece back to backing as one
// writev per contiguous run, marking each written block clean on success
// and feeding the hasher if it can now make progress. A short write is not
// an error: the unwritten tail of a run stays dirty for a later flush.
func (c *Cache) FlushPiece(storageID string, piece int, backing Backing, _ FlushFlags) error {
	for {
		run, done := c.nextDirtyRunLocked(storageID, piece)
		if done {
			return nil
		}
		progressed, err := c.flushRun(storageID, piece, run, backing)
		if err != nil {
			return err
		}
		if !progressed {
			// Writev made no progress; leave remaining blocks dirty for a
			// later flush rather than spin.
			return nil
		}
	}
}

type dirtyRun struct {
	startBlock int
	bufs       [][]byte
}

// nextDirtyRunLocked finds the next contiguous run of dirty blocks in
// piece, without mutating state (flushing must not hold the cache mutex
// while doing I/O).
func (c *Cache) nextDirtyRunLocked(storageID string, piece int) (dirtyRun, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entryLocked(storageID, piece)
	if !ok {
		return dirtyRun{}, true
	}

	start := -1
	var bufs [][]byte
	for i, b := range e.blocks {
		if b.state == blockDirty {
			if start == -1 {
				start = i
			}
			bufs = append(bufs, b.data)
			continue
		}
		if start != -1 {
			break
		}
	}
	if start == -1 {
		return dirtyRun{}, true
	}
	return dirtyRun{startBlock: start, bufs: bufs}, false
}

// flushRun issues one writev for run and marks fully-written blocks clean.
// It reports progressed=false when zero bytes were written, so callers can
// stop retrying instead of spinning on a backing that can't make headway.
func (c *Cache) flushRun(storageID string, piece int, run dirtyRun, backing Backing) (bool, error) {
	vecs := make([]storage.IoVec, len(run.bufs))
	for i, b := range run.bufs {
		vecs[i] = storage.IoVec{Buf: b}
	}

	offset := int64(run.startBlock) * BlockSize
	n, err := backing.Writev(vecs, piece, offset)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	e, ok := c.entryLocked(storageID, piece)
	if ok {
		written := n
		for i := run.startBlock; i < run.startBlock+len(run.bufs) && written > 0; i++ {
			b := &e.blocks[i]
			take := int64(len(b.data))
			if take > written {
				// A short write leaves this and later blocks dirty.
				break
			}
			b.state = blockClean
			written -= take
		}
		if e.hash != nil {
			c.advanceHashLocked(e)
		}
		if e.list == listWrite && !hasDirtyBlocks(e) {
			// Every block is clean: this piece is no longer exclusive to
			// the write partition and becomes reclaimable by TryEvict
			// again, same ARC list a pure-read piece would land in.
			dst := listMRU
			if e.accesses >= 2 {
				dst = listMFU
			}
			if el, ok := c.entries[e.key]; ok {
				c.moveToListLocked(e, dst, el)
			}
		}
	}
	c.mu.Unlock()

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ObserveFlush(n)
	}
	return n > 0, nil
}

// FlushExpiredWriteBlocks scans the write partition for pieces whose oldest
// dirty block exceeds maxAge and flushes them.
func (c *Cache) FlushExpiredWriteBlocks(maxAge time.Duration, backing Backing) error {
	stale := c.collectStalePieces(maxAge)
	for _, key := range stale {
		if err := c.FlushPiece(key.StorageID, key.Piece, backing, FlushNormal); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) collectStalePieces(maxAge time.Duration) []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var out []Key
	for el := c.write.Front(); el != nil; el = el.Next() {
		e := el.Value.(*pieceEntry)
		for _, b := range e.blocks {
			if b.state == blockDirty && !b.dirtySince.IsZero() && b.dirtySince.Before(cutoff) {
				out = append(out, e.key)
				break
			}
		}
	}
	return out
}

// TryFlushHashed flushes up to k contiguous already-hashed blocks of piece —
// the cheapest blocks to evict next, since the hasher has already consumed
// them.
func (c *Cache) TryFlushHashed(storageID string, piece, k int, backing Backing) (int, error) {
	flushed := 0
	for flushed < k {
		run, ok := c.nextHashedDirtyRunLocked(storageID, piece, k-flushed)
		if !ok {
			break
		}
		progressed, err := c.flushRun(storageID, piece, run, backing)
		if err != nil {
			return flushed, err
		}
		if !progressed {
			break
		}
		flushed += len(run.bufs)
	}
	return flushed, nil
}

func (c *Cache) nextHashedDirtyRunLocked(storageID string, piece, limit int) (dirtyRun, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entryLocked(storageID, piece)
	if !ok {
		return dirtyRun{}, false
	}

	start := -1
	var bufs [][]byte
	for i, b := range e.blocks {
		if b.state == blockDirty && b.hashed {
			if start == -1 {
				start = i
			}
			bufs = append(bufs, b.data)
			if len(bufs) >= limit {
				break
			}
			continue
		}
		if start != -1 {
			break
		}
	}
	if start == -1 {
		return dirtyRun{}, false
	}
	return dirtyRun{startBlock: start, bufs: bufs}, true
}
