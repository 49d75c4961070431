//go:build !linux && !darwin

package bufpool

import (
	"fmt"
	"unsafe"
)

// pageSize is a conservative default for platforms without a cheap syscall
// to query it (matches the common x86/ARM page size).
func pageSize() int { return 4096 }

// allocAligned over-allocates and slices to the next page boundary; without
// mmap there is no syscall-backed alignment guarantee on these platforms.
func allocAligned(size int) ([]byte, error) {
	ps := pageSize()
	buf := make([]byte, size+ps)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	rem := int(addr % uintptr(ps))
	start := 0
	if rem != 0 {
		start = ps - rem
	}
	return buf[start : start+size : start+size], nil
}

// allocGuarded has no guard-page support without mmap/mprotect; it falls
// back to a plain aligned allocation. Matches spec's "failures swallowed"
// treatment of platform-unavailable advisory features.
func (p *Pool) allocGuarded(tag string) (*Block, error) {
	buf, err := allocAligned(p.blockSize)
	if err != nil {
		return nil, fmt.Errorf("bufpool: guarded allocation fallback: %w", err)
	}
	return &Block{Data: buf, Tag: tag}, nil
}

func freeGuarded(r *region) error { return nil }
