//go:build !linux

package storage

import "os"

func pageSizeHint() int { return 4096 }

// adviseWillNeed is a no-op where the platform has no wired fadvise
// equivalent; spec requires failures (including "unsupported") to be
// swallowed.
func adviseWillNeed(f *os.File, offset, length int64) {}
