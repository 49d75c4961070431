//go:build linux || darwin

package bufpool

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func pageSize() int {
	return unix.Getpagesize()
}

// allocAligned returns a zeroed, page-aligned buffer of exactly size bytes
// via an anonymous mmap, which is always page-aligned by construction.
func allocAligned(size int) ([]byte, error) {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("bufpool: mmap %d bytes: %w", size, err)
	}
	return buf, nil
}

// allocGuarded maps [guard][data][guard] with the outer pages PROT_NONE, so
// any read/write past the block's bounds faults immediately.
func (p *Pool) allocGuarded(tag string) (*Block, error) {
	ps := pageSize()
	total := ps + p.blockSize + ps

	raw, err := unix.Mmap(-1, 0, total, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("bufpool: guard-page mmap: %w", err)
	}
	if err := unix.Mprotect(raw[:ps], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(raw)
		return nil, fmt.Errorf("bufpool: mprotect leading guard page: %w", err)
	}
	if err := unix.Mprotect(raw[ps+p.blockSize:], unix.PROT_NONE); err != nil {
		_ = unix.Munmap(raw)
		return nil, fmt.Errorf("bufpool: mprotect trailing guard page: %w", err)
	}

	data := raw[ps : ps+p.blockSize : ps+p.blockSize]
	return &Block{Data: data, Tag: tag, region: &region{raw: raw}}, nil
}

func freeGuarded(r *region) error {
	return unix.Munmap(r.raw)
}
