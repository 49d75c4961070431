//go:build !linux

package filepool

// noAtimeFlag is a no-op on platforms without O_NOATIME; no_atime_storage
// becomes a request the kernel silently can't honor, matching spec
// "failures swallowed" elsewhere in this package.
func noAtimeFlag() int { return 0 }
