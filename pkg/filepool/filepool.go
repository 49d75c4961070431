// Package filepool maintains a bounded LRU of open *os.File handles shared
// across a storage backend's readv/writev calls, so the number of file
// descriptors held open does not grow with the number of files touched.
package filepool

import (
	"container/list"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Mode selects the capabilities a handle is opened with.
type Mode int

const (
	// ReadOnly opens O_RDONLY.
	ReadOnly Mode = iota
	// ReadWrite opens O_RDWR|O_CREATE, upgrading a cached read-only
	// handle transparently.
	ReadWrite
)

// Key identifies one physical file within one storage.
type Key struct {
	StorageID string
	FileIndex int
}

func (k Key) String() string { return fmt.Sprintf("%s/%d", k.StorageID, k.FileIndex) }

func boolFlag(b bool, flag int) int {
	if b {
		return flag
	}
	return 0
}

// Handle is a reference-counted wrapper around an open *os.File. Callers
// must call Release when done; the underlying file stays open until the
// last reference is released AND the pool evicts it.
type Handle struct {
	File *os.File
	Mode Mode

	pool *Pool
	key  Key

	mu       sync.Mutex
	refcount int
	element  *list.Element // position in the pool's LRU list, nil if evicted
}

// Release decrements the handle's refcount. It never closes the file
// directly; eviction (and the resulting close) is the pool's job, so an
// in-flight I/O that outlives an LRU eviction keeps the fd valid until it
// also releases.
func (h *Handle) Release() {
	h.pool.release(h)
}

type entry struct {
	key     Key
	handle  *Handle
	path    string // absolute path, used to detect "open in write mode" upgrades
	closing bool
}

// Pool is a bounded, reference-counted cache of open file handles keyed by
// (storage, file index). Opening the same key concurrently from multiple
// goroutines is deduplicated via singleflight so exactly one os.OpenFile
// call happens per miss.
type Pool struct {
	maxHandles int
	lock       bool // advisory exclusive lock per file, opt-in per storage
	noAtime    bool // suppress access-time updates on reads, opt-in per storage

	mu    sync.Mutex
	lru   *list.List // most-recently-used at the front
	byKey map[Key]*list.Element
	group singleflight.Group
}

// New creates a Pool that keeps at most maxHandles open file descriptors. If
// lockFiles is true, every opened file is advisory-locked exclusively.
func New(maxHandles int, lockFiles bool) *Pool {
	return NewWithOptions(maxHandles, lockFiles, false)
}

// NewWithOptions is New plus noAtime, which requests the platform's
// access-time-suppression open flag (spec §6 "no_atime_storage") on every
// opened file where the kernel supports one.
func NewWithOptions(maxHandles int, lockFiles, noAtime bool) *Pool {
	if maxHandles <= 0 {
		maxHandles = 1
	}
	return &Pool{
		maxHandles: maxHandles,
		lock:       lockFiles,
		noAtime:    noAtime,
		lru:        list.New(),
		byKey:      make(map[Key]*list.Element),
	}
}

// Open returns a handle for key at absPath with at least the requested
// mode's capabilities, reference-counted and moved to the front of the LRU.
// A handle cached read-only is transparently reopened in read-write mode
// when a writer requests it.
func (p *Pool) Open(key Key, absPath string, mode Mode) (*Handle, error) {
	for {
		p.mu.Lock()
		if el, ok := p.byKey[key]; ok {
			e := el.Value.(*entry)
			if mode == ReadWrite && e.handle.Mode == ReadOnly {
				// Upgrade: release this entry's pool slot and reopen.
				p.evictLocked(el)
				p.mu.Unlock()
				continue
			}
			p.lru.MoveToFront(el)
			e.handle.mu.Lock()
			e.handle.refcount++
			e.handle.mu.Unlock()
			p.mu.Unlock()
			return e.handle, nil
		}
		p.mu.Unlock()
		break
	}

	v, err, _ := p.group.Do(key.String(), func() (any, error) {
		return p.openFresh(key, absPath, mode)
	})
	if err != nil {
		return nil, err
	}
	h := v.(*Handle)
	h.mu.Lock()
	h.refcount++
	h.mu.Unlock()
	return h, nil
}

func (p *Pool) openFresh(key Key, absPath string, mode Mode) (*Handle, error) {
	// Another goroutine may have inserted this key while we were
	// computing the singleflight key; re-check under the lock.
	p.mu.Lock()
	if el, ok := p.byKey[key]; ok {
		e := el.Value.(*entry)
		if mode != ReadWrite || e.handle.Mode == ReadWrite {
			p.lru.MoveToFront(el)
			p.mu.Unlock()
			return e.handle, nil
		}
	}
	p.mu.Unlock()

	flags := os.O_RDONLY
	if mode == ReadWrite {
		flags = os.O_RDWR | os.O_CREATE
	}
	f, err := os.OpenFile(absPath, flags|boolFlag(p.noAtime, noAtimeFlag()), 0o644)
	if err != nil && p.noAtime {
		// O_NOATIME can be rejected with EPERM for files this process
		// doesn't own; no_atime_storage is a best-effort hint, so retry
		// without it rather than fail the whole open.
		f, err = os.OpenFile(absPath, flags, 0o644)
	}
	if err != nil {
		// On open error, do not cache anything.
		return nil, fmt.Errorf("filepool: open %s: %w", absPath, err)
	}
	if p.lock {
		if err := lockExclusive(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("filepool: lock %s: %w", absPath, err)
		}
	}

	h := &Handle{File: f, Mode: mode, pool: p, key: key}

	p.mu.Lock()
	defer p.mu.Unlock()
	el := p.lru.PushFront(&entry{key: key, handle: h, path: absPath})
	h.element = el
	p.byKey[key] = el
	p.evictOverflowLocked()
	return h, nil
}

// release decrements refcount; the file is only actually closed once its
// entry has been evicted from the LRU and its refcount has dropped to zero.
func (p *Pool) release(h *Handle) {
	h.mu.Lock()
	h.refcount--
	evicted := h.element == nil
	rc := h.refcount
	h.mu.Unlock()

	if evicted && rc <= 0 {
		h.File.Close()
	}
}

// evictOverflowLocked closes least-recently-used handles until the pool is
// at or under its quota. Must be called with p.mu held.
func (p *Pool) evictOverflowLocked() {
	for p.lru.Len() > p.maxHandles {
		back := p.lru.Back()
		if back == nil {
			return
		}
		p.evictLocked(back)
	}
}

// evictLocked removes el from the LRU and map; the handle's fd is closed
// immediately if nothing is still referencing it, otherwise the last
// Release() call closes it.
func (p *Pool) evictLocked(el *list.Element) {
	e := el.Value.(*entry)
	p.lru.Remove(el)
	delete(p.byKey, e.key)

	e.handle.mu.Lock()
	e.handle.element = nil
	rc := e.handle.refcount
	e.handle.mu.Unlock()

	if rc <= 0 {
		e.handle.File.Close()
	}
}

// ReleaseStorage evicts every cached handle belonging to storageID. A handle
// with no outstanding references is closed immediately; one still in use is
// closed by its last Release. Used before delete and move_storage. Safe to
// call even if no handle is cached for the storage.
func (p *Pool) ReleaseStorage(storageID string) {
	p.mu.Lock()
	var toEvict []*list.Element
	for el := p.lru.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		if e.key.StorageID == storageID {
			toEvict = append(toEvict, el)
		}
	}
	for _, el := range toEvict {
		p.evictLocked(el)
	}
	p.mu.Unlock()
}

// ReleaseFile forces closure of the handle for exactly one (storage, file)
// key, if cached.
func (p *Pool) ReleaseFile(key Key) {
	p.mu.Lock()
	if el, ok := p.byKey[key]; ok {
		p.evictLocked(el)
	}
	p.mu.Unlock()
}

// Len returns the number of currently cached handles.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lru.Len()
}
