//go:build linux

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

func pageSizeHint() int { return unix.Getpagesize() }

// adviseWillNeed issues a best-effort madvise(MADV_WILLNEED)-equivalent
// prefetch hint; failures are swallowed per spec (§4.D hint_read).
func adviseWillNeed(f *os.File, offset, length int64) {
	_ = unix.Fadvise(int(f.Fd()), offset, length, unix.FADV_WILLNEED)
}
