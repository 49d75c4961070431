// Package bufpool supplies fixed-size, page-aligned blocks for zero-copy
// disk I/O. It backs the block cache (pkg/cache) and the storage backend's
// unbuffered/aligned I/O fallback path.
//
// Blocks are all one configured size (default 16 KiB, matching the engine's
// cache block size) and are aligned to the OS page boundary so platforms
// that require alignment for unbuffered ("direct") I/O can use them
// directly, without a bounce-buffer copy.
//
// A debug guard-page mode surrounds every allocation with PROT_NONE pages to
// trap buffer overruns during development; it is off by default because it
// multiplies the address-space and mmap-call cost per block.
package bufpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/torrentstore/diskcore/internal/logger"
)

// DefaultBlockSize matches the engine's default cache block granularity.
const DefaultBlockSize = 16 * 1024

// ErrClosed is returned by Alloc once the pool has been Closed.
var ErrClosed = errors.New("bufpool: pool is closed")

// Block is a single page-aligned, fixed-size buffer on loan from a Pool.
// Callers must call Pool.Free exactly once when done; a Block must never be
// retained past Free.
type Block struct {
	// Data is the usable buffer, always len(Data) == Pool.BlockSize().
	Data []byte

	// Tag identifies the caller/purpose for accounting (e.g. "cache-read",
	// "cache-dirty", "bounce-buffer").
	Tag string

	region *region // nil for slab-backed blocks
}

// region is one guard-paged allocation: [guard page][data][guard page].
type region struct {
	raw []byte // the full mmap'd region, including guard pages
}

// Config configures a Pool.
type Config struct {
	// BlockSize is the fixed size of every block. Must be a multiple of
	// the OS page size. Zero selects DefaultBlockSize.
	BlockSize int

	// GuardPages surrounds every block with PROT_NONE pages so overruns
	// fault instead of corrupting adjacent memory. Implies one mmap
	// syscall per allocation instead of slab reuse; for debug builds
	// only.
	GuardPages bool
}

// Pool allocates and recycles page-aligned blocks of one fixed size.
//
// In slab mode (the default), freed blocks are returned to a sync.Pool-
// backed slab and reused without a fresh mmap. In guard-page mode, every
// Alloc performs a fresh mmap and every Free unmaps it; the two modes are
// never mixed within one Pool.
type Pool struct {
	blockSize  int
	guardPages bool

	mu     sync.Mutex
	closed bool

	slab sync.Pool

	allocated int64
	freed     int64
}

// NewPool creates a Pool. If cfg is nil, defaults apply.
func NewPool(cfg *Config) (*Pool, error) {
	size := DefaultBlockSize
	guard := false
	if cfg != nil {
		if cfg.BlockSize > 0 {
			size = cfg.BlockSize
		}
		guard = cfg.GuardPages
	}

	pageSize := pageSize()
	if size%pageSize != 0 {
		return nil, fmt.Errorf("bufpool: block size %d is not a multiple of page size %d", size, pageSize)
	}

	p := &Pool{blockSize: size, guardPages: guard}
	if !guard {
		p.slab = sync.Pool{
			New: func() any {
				buf, err := allocAligned(p.blockSize)
				if err != nil {
					// sync.Pool.New cannot return an error; surface it on
					// first use via a nil slab entry, which Alloc detects.
					logger.Error("bufpool: aligned allocation failed", "error", err)
					return nil
				}
				return buf
			},
		}
	}
	return p, nil
}

// BlockSize returns the pool's fixed block size.
func (p *Pool) BlockSize() int { return p.blockSize }

// Alloc returns a zeroed block tagged for accounting. The returned Block is
// owned by the caller until passed to Free.
func (p *Pool) Alloc(tag string) (*Block, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.allocated++
	p.mu.Unlock()

	if p.guardPages {
		return p.allocGuarded(tag)
	}

	v := p.slab.Get()
	buf, _ := v.([]byte)
	if buf == nil {
		var err error
		buf, err = allocAligned(p.blockSize)
		if err != nil {
			return nil, err
		}
	}
	clear(buf)
	return &Block{Data: buf, Tag: tag}, nil
}

// Free returns a block to the pool (slab mode) or releases its mapping
// (guard-page mode). b must not be used after Free returns.
func (p *Pool) Free(b *Block) {
	if b == nil {
		return
	}
	p.mu.Lock()
	p.freed++
	p.mu.Unlock()

	if b.region != nil {
		if err := freeGuarded(b.region); err != nil {
			logger.Warn("bufpool: failed to release guard-paged region", "error", err)
		}
		b.Data = nil
		b.region = nil
		return
	}
	p.slab.Put(b.Data)
	b.Data = nil
}

// Close marks the pool closed; subsequent Alloc calls fail. Outstanding
// blocks remain valid until individually Freed.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Outstanding returns the number of blocks allocated but not yet freed.
func (p *Pool) Outstanding() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated - p.freed
}

// =============================================================================
// Global pool
// =============================================================================

var globalPool, _ = NewPool(nil)

// Get allocates a block from the process-wide default pool.
func Get(tag string) (*Block, error) { return globalPool.Alloc(tag) }

// Put returns a block to the process-wide default pool.
func Put(b *Block) { globalPool.Free(b) }
