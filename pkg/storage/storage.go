// Package storage translates piece-addressed vectored read/write requests
// into file I/O against a manifest's file tree, honoring pad files and
// per-file base offsets, and implements the allocation/move/rename/delete/
// resume-verification operations of the storage backend (spec §4.D).
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/torrentstore/diskcore/internal/logger"
	"github.com/torrentstore/diskcore/pkg/alert"
	"github.com/torrentstore/diskcore/pkg/diskerr"
	"github.com/torrentstore/diskcore/pkg/filepool"
	"github.com/torrentstore/diskcore/pkg/manifest"
)

// IOMode selects how files are opened for data transfer.
type IOMode int

const (
	// ModeCached uses the OS page cache (buffered I/O).
	ModeCached IOMode = iota
	// ModeDirect requests unbuffered I/O; reads/writes that are not
	// aligned to the platform's required alignment fall back to a
	// bounce-buffered read-modify-write.
	ModeDirect
)

// MoveMode selects collision handling for MoveStorage.
type MoveMode int

const (
	AlwaysReplace MoveMode = iota
	FailIfExist
	DontReplace
)

// MoveResult reports the outcome of MoveStorage.
type MoveResult int

const (
	MoveNoError MoveResult = iota
	MoveNeedFullCheck
	MoveFileExist
	MoveFatalDiskError
)

// IoVec is one (buffer) entry of a vectored read/write request.
type IoVec struct {
	Buf []byte
}

func totalLen(bufs []IoVec) int64 {
	var n int64
	for _, b := range bufs {
		n += int64(len(b.Buf))
	}
	return n
}

// Storage is a mutable, per-torrent storage object: a save-path root, a
// manifest with renames/priorities layered on top, and the bookkeeping
// (file_created bitset) needed to lazily allocate files on first write.
type Storage struct {
	ID       string
	SavePath string

	manifest *manifest.Mutable
	pool     *filepool.Pool
	alerts   alert.Dispatcher
	ioMode   IOMode

	fileCreated []bool
	readOnly    bool // set by a fatal_disk_error, per spec §7

	// coalesceReads/coalesceWrites gate whether a multi-buffer Readv/Writev
	// call is flattened into one contiguous buffer before being split
	// across the manifest's file/pad slices (spec §6 "coalesce_reads" /
	// "coalesce_writes"). Default true (coalesced): matches this package's
	// original unconditional flatten-then-split behavior.
	coalesceReads  bool
	coalesceWrites bool
}

// New constructs a Storage over base at savePath, backed by pool for file
// handles. alerts may be nil (DiscardDispatcher is used).
func New(id string, base *manifest.Manifest, savePath string, pool *filepool.Pool, alerts alert.Dispatcher, ioMode IOMode) *Storage {
	if alerts == nil {
		alerts = alert.DiscardDispatcher{}
	}
	return &Storage{
		ID:             id,
		SavePath:       savePath,
		manifest:       manifest.NewMutable(base),
		pool:           pool,
		alerts:         alerts,
		ioMode:         ioMode,
		fileCreated:    make([]bool, base.NumFiles()),
		coalesceReads:  true,
		coalesceWrites: true,
	}
}

// SetCoalescing configures whether Readv/Writev flatten a multi-buffer
// request into one contiguous buffer before splitting it across the
// manifest's file/pad slices, or instead transfer each caller-supplied
// buffer independently (spec §6 "coalesce_reads"/"coalesce_writes").
func (s *Storage) SetCoalescing(reads, writes bool) {
	s.coalesceReads = reads
	s.coalesceWrites = writes
}

// Manifest exposes the mutable manifest overlay (renames, priorities).
func (s *Storage) Manifest() *manifest.Mutable { return s.manifest }

func (s *Storage) absPath(fileIndex int) string {
	return filepath.Join(s.SavePath, s.manifest.Path(fileIndex))
}

func (s *Storage) postFileError(path, op string, code diskerr.Kind) {
	s.alerts.Post(alert.FileErrorAlert(s.ID, path, op, code.String()))
}

// Initialize creates parent directories for every file with priority>0 and
// size>0, and — if allocateFiles is true — truncates/extends each to its
// exact declared size up front. Otherwise allocation is deferred to first
// write.
func (s *Storage) Initialize(allocateFiles bool) error {
	base := s.manifest.Base()
	for i := 0; i < base.NumFiles(); i++ {
		f := base.File(i)
		if f.PadFile || f.Size <= 0 {
			continue
		}
		if s.manifest.Priority(i) <= 0 {
			continue
		}

		path := s.absPath(i)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return diskerr.NewFile(diskerr.IOError, i, "initialize", err)
		}

		if allocateFiles {
			fh, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
			if err != nil {
				s.postFileError(path, "initialize", diskerr.IOError)
				return diskerr.NewFile(diskerr.IOError, i, "initialize", err)
			}
			if err := fh.Truncate(f.Size); err != nil {
				fh.Close()
				return diskerr.NewFile(diskerr.DiskFull, i, "initialize", err)
			}
			fh.Close()
			s.fileCreated[i] = true
		}
	}
	return nil
}

// HasAnyFile reports whether any non-pad file of positive size already
// exists on disk for this storage.
func (s *Storage) HasAnyFile() bool {
	base := s.manifest.Base()
	for i := 0; i < base.NumFiles(); i++ {
		f := base.File(i)
		if f.PadFile || f.Size <= 0 {
			continue
		}
		if st, err := os.Stat(s.absPath(i)); err == nil && st.Size() > 0 {
			return true
		}
	}
	return false
}

// HintRead is a best-effort read-ahead advisory; failures are swallowed.
func (s *Storage) HintRead(piece int, offset, length int64) {
	slices, err := s.manifest.Base().MapBlock(piece, offset, length)
	if err != nil {
		return
	}
	for _, sl := range slices {
		if sl.PadFile {
			continue
		}
		path := s.absPath(sl.FileIndex)
		key := filepool.Key{StorageID: s.ID, FileIndex: sl.FileIndex}
		h, err := s.pool.Open(key, path, filepool.ReadOnly)
		if err != nil {
			continue
		}
		adviseWillNeed(h.File, sl.FileOffset, sl.Length)
		h.Release()
	}
}

// Readv reads piece-relative [offset, offset+len(totalLen(bufs))) into bufs,
// returning the number of bytes transferred. A short result is success of
// exactly that many bytes, not an error.
func (s *Storage) Readv(bufs []IoVec, piece int, offset int64) (int64, error) {
	return s.transfer(bufs, piece, offset, "read")
}

// Writev writes piece-relative bufs at [offset, ...). See Readv for partial
// transfer semantics.
func (s *Storage) Writev(bufs []IoVec, piece int, offset int64) (int64, error) {
	if s.readOnly {
		return 0, diskerr.New(diskerr.FatalDiskError, "write", fmt.Errorf("storage %s is read-only after a fatal disk error", s.ID))
	}
	return s.transfer(bufs, piece, offset, "write")
}

func (s *Storage) transfer(bufs []IoVec, piece int, offset int64, op string) (int64, error) {
	m := s.manifest.Base()
	pieceSize := m.PieceSize(piece)
	length := totalLen(bufs)
	if offset < 0 || offset > pieceSize {
		return 0, diskerr.New(diskerr.IOError, op, fmt.Errorf("offset %d out of range for piece %d (size %d)", offset, piece, pieceSize))
	}
	if offset+length > pieceSize {
		length = pieceSize - offset
	}

	coalesce := s.coalesceReads
	if op == "write" {
		coalesce = s.coalesceWrites
	}
	if coalesce || len(bufs) <= 1 {
		return s.transferFlat(flattenIovecs(bufs, length), piece, offset, op)
	}

	// Uncoalesced: transfer each caller buffer independently against its
	// own slice of the piece, advancing the piece offset between calls
	// instead of flattening every buffer into one contiguous copy first.
	var transferred int64
	cursor := offset
	remaining := length
	for _, b := range bufs {
		if remaining <= 0 {
			break
		}
		n := int64(len(b.Buf))
		if n > remaining {
			n = remaining
		}
		got, err := s.transferFlat(b.Buf[:n], piece, cursor, op)
		transferred += got
		if err != nil {
			return transferred, err
		}
		if got < n {
			return transferred, nil
		}
		cursor += n
		remaining -= n
	}
	return transferred, nil
}

// transferFlat runs one already-contiguous buffer through the manifest's
// file/pad slicing for piece at offset.
func (s *Storage) transferFlat(flat []byte, piece int, offset int64, op string) (int64, error) {
	m := s.manifest.Base()
	slices, err := m.MapBlock(piece, offset, int64(len(flat)))
	if err != nil {
		return 0, diskerr.New(diskerr.IOError, op, err)
	}

	var transferred int64
	cursor := flat

	for _, sl := range slices {
		chunk := cursor[:sl.Length]
		cursor = cursor[sl.Length:]

		if sl.PadFile {
			if op == "read" {
				for i := range chunk {
					chunk[i] = 0
				}
			}
			// Writes to pad files are silently discarded.
			transferred += sl.Length
			continue
		}

		n, err := s.transferFile(sl.FileIndex, sl.FileOffset, chunk, op)
		transferred += n
		if err != nil {
			return transferred, err
		}
		if n < sl.Length {
			// Short transfer: stop here, let the caller reissue for
			// the remainder (spec §9 "Partial I/O").
			return transferred, nil
		}
	}

	return transferred, nil
}

func (s *Storage) transferFile(fileIndex int, fileOffset int64, buf []byte, op string) (int64, error) {
	path := s.absPath(fileIndex)
	mode := filepool.ReadOnly
	if op == "write" {
		mode = filepool.ReadWrite
	}

	key := filepool.Key{StorageID: s.ID, FileIndex: fileIndex}
	h, err := s.pool.Open(key, path, mode)
	if err != nil {
		if op == "write" && os.IsNotExist(pathErrCause(err)) {
			if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr == nil {
				h, err = s.pool.Open(key, path, mode)
			}
		}
		if err != nil {
			s.postFileError(path, op, diskerr.NoSuchFile)
			return 0, diskerr.NewFile(diskerr.NoSuchFile, fileIndex, op, err)
		}
	}
	defer h.Release()

	if op == "write" {
		s.maybeAllocateOnFirstWrite(fileIndex, h)
	}

	if s.ioMode == ModeDirect && (fileOffset%alignment() != 0 || alignedPtr(buf) != 0) {
		n, err := s.alignedFallback(h, fileIndex, fileOffset, buf, op)
		return n, err
	}

	var n int
	if op == "write" {
		n, err = h.File.WriteAt(buf, fileOffset)
	} else {
		n, err = h.File.ReadAt(buf, fileOffset)
		if err == io.EOF && n > 0 {
			err = nil
		}
	}
	if err != nil && err != io.EOF {
		s.postFileError(path, op, diskerr.IOError)
		return int64(n), diskerr.NewFile(diskerr.IOError, fileIndex, op, err)
	}
	return int64(n), nil
}

// maybeAllocateOnFirstWrite performs the lazy set_size(full_size) the first
// time a prioritized file is written, when eager allocation was skipped at
// Initialize time.
func (s *Storage) maybeAllocateOnFirstWrite(fileIndex int, h *filepool.Handle) {
	if s.fileCreated[fileIndex] {
		return
	}
	if s.manifest.Priority(fileIndex) <= 0 {
		return
	}
	f := s.manifest.Base().File(fileIndex)
	if st, err := h.File.Stat(); err == nil && st.Size() < f.Size {
		_ = h.File.Truncate(f.Size)
	}
	s.fileCreated[fileIndex] = true
}

func flattenIovecs(bufs []IoVec, limit int64) []byte {
	out := make([]byte, 0, limit)
	for _, b := range bufs {
		take := b.Buf
		if int64(len(out)+len(take)) > limit {
			take = take[:limit-int64(len(out))]
		}
		out = append(out, take...)
		if int64(len(out)) >= limit {
			break
		}
	}
	return out
}

func pathErrCause(err error) error {
	if pe, ok := err.(interface{ Unwrap() error }); ok {
		return pe.Unwrap()
	}
	return err
}

// Rename releases any cached handle for file i, creates the destination's
// parent directory, and renames on disk. A missing source file is not an
// error: Rename only updates the manifest mapping.
func (s *Storage) Rename(i int, newPath string) error {
	s.pool.ReleaseFile(filepool.Key{StorageID: s.ID, FileIndex: i})

	oldAbs := s.absPath(i)
	newAbs := filepath.Join(s.SavePath, newPath)

	if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
		return diskerr.NewFile(diskerr.IOError, i, "rename", err)
	}
	if err := os.Rename(oldAbs, newAbs); err != nil {
		if !os.IsNotExist(err) {
			return diskerr.NewFile(diskerr.IOError, i, "rename", err)
		}
	}
	return s.manifest.RenameFile(i, newPath)
}

// DeleteOptions configures DeleteFiles.
type DeleteOptions struct {
	// DeleteDirectories also removes now-empty containing directories,
	// deepest first.
	DeleteDirectories bool
}

// DeleteFiles closes all handles, deletes files in manifest order, then
// (optionally) removes their containing directories in reverse-sorted
// order. Missing-file errors are ignored (idempotent).
func (s *Storage) DeleteFiles(opts DeleteOptions) error {
	s.pool.ReleaseStorage(s.ID)
	base := s.manifest.Base()

	var dirs []string
	for i := 0; i < base.NumFiles(); i++ {
		f := base.File(i)
		if f.PadFile {
			continue
		}
		path := s.absPath(i)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return diskerr.NewFile(diskerr.IOError, i, "delete", err)
		}
		dirs = append(dirs, filepath.Dir(path))
	}

	if opts.DeleteDirectories {
		sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
		seen := make(map[string]bool)
		for _, d := range dirs {
			if seen[d] {
				continue
			}
			seen[d] = true
			_ = os.Remove(d) // ignore "not empty" / "not exist"
		}
	}

	s.alerts.Post(alert.TorrentDeletedAlert(s.ID))
	return nil
}

// MoveStorage relocates every top-level name in the manifest to newRoot.
// Files with absolute paths are skipped. Cross-device rename failures fall
// back to recursive copy-then-delete.
func (s *Storage) MoveStorage(newRoot string, mode MoveMode) MoveResult {
	s.pool.ReleaseStorage(s.ID)

	if mode == FailIfExist || mode == DontReplace {
		if _, err := os.Stat(newRoot); err == nil {
			if mode == FailIfExist {
				return MoveFileExist
			}
			// DontReplace: proceed, but never overwrite individual
			// destination files below.
		}
	}
	if err := os.MkdirAll(newRoot, 0o755); err != nil {
		return MoveFatalDiskError
	}

	topLevel := topLevelNames(s.manifest.Base())
	for _, name := range topLevel {
		if filepath.IsAbs(name) {
			continue
		}
		src := filepath.Join(s.SavePath, name)
		dst := filepath.Join(newRoot, name)

		if _, err := os.Stat(src); err != nil {
			continue // nothing to move for this top-level name
		}
		if mode == DontReplace {
			if _, err := os.Stat(dst); err == nil {
				continue
			}
		}

		if err := os.Rename(src, dst); err != nil {
			if copyErr := copyRecursive(src, dst); copyErr != nil {
				logger.Warn("storage: move fallback copy failed", "storage", s.ID, "src", src, "dst", dst, "error", copyErr)
				return MoveFatalDiskError
			}
			_ = os.RemoveAll(src)
		}
	}

	oldRoot := s.SavePath
	s.SavePath = newRoot
	s.alerts.Post(alert.StorageMovedAlert(s.ID, oldRoot, newRoot))
	return MoveNoError
}

func topLevelNames(m *manifest.Manifest) []string {
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < m.NumFiles(); i++ {
		f := m.File(i)
		top := strings.SplitN(filepath.ToSlash(f.Path), "/", 2)[0]
		if !seen[top] {
			seen[top] = true
			out = append(out, top)
		}
	}
	return out
}

func copyRecursive(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if info.IsDir() {
		if err := os.MkdirAll(dst, info.Mode()); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := copyRecursive(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
				return err
			}
		}
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// MarkFatal puts the storage into the read-only state a fatal_disk_error
// demotes it to (spec §7) and posts a file-error alert: Writev fails until
// Reset. Readv and the other operations do not check this state and keep
// running.
func (s *Storage) MarkFatal() {
	s.readOnly = true
	s.alerts.Post(alert.FileErrorAlert(s.ID, s.SavePath, "fatal", diskerr.FatalDiskError.String()))
}

// Reset clears the fatal read-only state.
func (s *Storage) Reset() { s.readOnly = false }

// StatFile stats file i on disk, returning (size, mtime, exists).
func (s *Storage) StatFile(i int) (int64, time.Time, bool) {
	st, err := os.Stat(s.absPath(i))
	if err != nil {
		return 0, time.Time{}, false
	}
	return st.Size(), st.ModTime(), true
}
