//go:build linux

package filepool

import "golang.org/x/sys/unix"

// noAtimeFlag returns the open(2) flag that suppresses access-time updates
// on reads (spec §6 "no_atime_storage"), where the kernel supports it.
func noAtimeFlag() int { return unix.O_NOATIME }
