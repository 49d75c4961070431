package storage

import (
	"unsafe"

	"github.com/torrentstore/diskcore/pkg/diskerr"
	"github.com/torrentstore/diskcore/pkg/filepool"
)

// alignment is the byte alignment required of offsets and buffer addresses
// for files opened unbuffered (disable_os_cache / ModeDirect).
func alignment() int64 { return int64(pageSizeHint()) }

// alignedPtr returns buf's address modulo the required alignment; zero means
// already aligned.
func alignedPtr(buf []byte) int64 {
	if len(buf) == 0 {
		return 0
	}
	return int64(uintptr(unsafe.Pointer(&buf[0])) % uintptr(alignment()))
}

// alignedFallback performs the read-modify-write bounce-buffer path used
// when ModeDirect is configured and either the file offset or the buffer
// pointer violates the platform's required alignment (spec §4.D.3.f).
//
// For writes that extend the file past its declared size under alignment
// constraints, the file is truncated back to the manifest's declared size
// afterward to avoid observable size drift (spec §9).
func (s *Storage) alignedFallback(h *filepool.Handle, fileIndex int, fileOffset int64, buf []byte, op string) (int64, error) {
	align := alignment()
	winStart := (fileOffset / align) * align
	winEnd := ((fileOffset + int64(len(buf)) + align - 1) / align) * align
	window := make([]byte, winEnd-winStart)

	if n, err := h.File.ReadAt(window, winStart); err != nil && n == 0 && op == "write" {
		// A fresh/short file legitimately has nothing to read yet; the
		// zero-filled window is the correct read-modify-write base.
	} else if err != nil && n < len(window) {
		// Partial read of the surrounding window is fine for a write
		// (the tail may not exist yet); for a read it is the answer.
		if op == "read" {
			copy(buf, window[fileOffset-winStart:])
			return int64(n) - (fileOffset - winStart), nil
		}
	}

	switch op {
	case "read":
		copy(buf, window[fileOffset-winStart:fileOffset-winStart+int64(len(buf))])
		return int64(len(buf)), nil

	case "write":
		copy(window[fileOffset-winStart:], buf)
		n, err := h.File.WriteAt(window, winStart)
		if err != nil {
			return 0, diskerr.NewFile(diskerr.IOError, fileIndex, op, err)
		}
		if st, statErr := h.File.Stat(); statErr == nil {
			declared := s.manifest.Base().File(fileIndex).Size
			if winStart+int64(n) > declared && st.Size() > declared {
				_ = h.File.Truncate(declared)
			}
		}
		return int64(len(buf)), nil

	default:
		return 0, diskerr.NewFile(diskerr.IOError, fileIndex, op, nil)
	}
}
