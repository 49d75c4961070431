// Package manifest implements the piece-addressed file-storage model: the
// immutable description of how a torrent's logical piece space maps onto a
// tree of on-disk files, including pad-file and file-base offset semantics.
package manifest

import (
	"fmt"
	"sort"
)

// Attributes captures the optional per-file metadata the manifest carries
// alongside size and offset (executable bit, hidden flag, symlink target).
type Attributes struct {
	Executable bool
	Hidden     bool
	SymlinkTo  string
}

// FileRecord describes one file (real or pad) within the logical torrent.
type FileRecord struct {
	// Path is the file's path relative to a storage's save-path root.
	Path string

	// Size is the file's length in bytes. May be zero.
	Size int64

	// Offset is this file's byte offset within the logical torrent.
	Offset int64

	// PadFile marks a synthetic all-zero alignment file. Pad files are
	// never materialized on disk: reads synthesize zeros, writes are
	// discarded.
	PadFile bool

	// FileBase is the offset within the *physical* file at which this
	// record's bytes begin, allowing more than one manifest entry to
	// share one underlying file.
	FileBase int64

	Attrs Attributes
}

// Manifest is the immutable description of a torrent's piece layout. It is
// constructed once (from a parsed torrent file) and shared by every goroutine
// that touches the torrent; nothing here is mutated after New returns.
type Manifest struct {
	files       []FileRecord
	pieceLength int64
	totalSize   int64
	numPieces   int
}

// New validates and builds a Manifest from an ordered list of file records.
//
// Files must appear in non-decreasing Offset order and be contiguous: each
// record's Offset must equal the running sum of the sizes that precede it.
// pieceLength must be positive.
func New(files []FileRecord, pieceLength int64) (*Manifest, error) {
	if pieceLength <= 0 {
		return nil, fmt.Errorf("manifest: piece length must be positive, got %d", pieceLength)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("manifest: at least one file is required")
	}

	var running int64
	for i, f := range files {
		if f.Size < 0 {
			return nil, fmt.Errorf("manifest: file %d %q has negative size", i, f.Path)
		}
		if f.Offset != running {
			return nil, fmt.Errorf("manifest: file %d %q offset %d does not follow previous files (expected %d)", i, f.Path, f.Offset, running)
		}
		running += f.Size
	}

	numPieces := int((running + pieceLength - 1) / pieceLength)
	if running == 0 {
		numPieces = 0
	}

	out := make([]FileRecord, len(files))
	copy(out, files)

	return &Manifest{
		files:       out,
		pieceLength: pieceLength,
		totalSize:   running,
		numPieces:   numPieces,
	}, nil
}

// PieceLength returns the configured piece length P.
func (m *Manifest) PieceLength() int64 { return m.pieceLength }

// TotalSize returns T, the sum of all file sizes including pad files.
func (m *Manifest) TotalSize() int64 { return m.totalSize }

// NumPieces returns N = ceil(T/P).
func (m *Manifest) NumPieces() int { return m.numPieces }

// NumFiles returns the number of file records, including pad files.
func (m *Manifest) NumFiles() int { return len(m.files) }

// File returns a copy of the file record at index i.
func (m *Manifest) File(i int) FileRecord { return m.files[i] }

// Files returns a copy of the full file-record slice.
func (m *Manifest) Files() []FileRecord {
	out := make([]FileRecord, len(m.files))
	copy(out, m.files)
	return out
}

// PieceSize returns min(P, T - i*P), the (possibly short) size of piece i.
func (m *Manifest) PieceSize(piece int) int64 {
	if piece < 0 || piece >= m.numPieces {
		return 0
	}
	start := int64(piece) * m.pieceLength
	remaining := m.totalSize - start
	if remaining > m.pieceLength {
		return m.pieceLength
	}
	return remaining
}

// FileIndexAt returns the index of the file record covering byteOffset via
// binary search over file start offsets.
func (m *Manifest) FileIndexAt(byteOffset int64) (int, error) {
	if byteOffset < 0 || byteOffset >= m.totalSize {
		return -1, fmt.Errorf("manifest: byte offset %d out of range [0,%d)", byteOffset, m.totalSize)
	}
	idx := sort.Search(len(m.files), func(i int) bool {
		return m.files[i].Offset+m.files[i].Size > byteOffset
	})
	if idx == len(m.files) {
		return -1, fmt.Errorf("manifest: byte offset %d not covered by any file", byteOffset)
	}
	return idx, nil
}

// Slice is one contiguous run of a mapped request that lands inside a single
// file record.
type Slice struct {
	FileIndex  int
	FileOffset int64 // offset within the physical file (already includes FileBase)
	Length     int64
	PadFile    bool
}

// MapBlock maps the byte range [offset, offset+length) of piece, expressed in
// piece-relative coordinates, onto an ordered list of file slices, splitting
// at file boundaries and emitting pad-file slices as their own entries.
func (m *Manifest) MapBlock(piece int, offset, length int64) ([]Slice, error) {
	pieceSize := m.PieceSize(piece)
	if offset < 0 || length < 0 || offset+length > pieceSize {
		return nil, fmt.Errorf("manifest: range [%d,%d) exceeds piece %d size %d", offset, offset+length, piece, pieceSize)
	}
	if length == 0 {
		return nil, nil
	}

	absStart := int64(piece)*m.pieceLength + offset
	fileIdx, err := m.FileIndexAt(absStart)
	if err != nil {
		return nil, err
	}

	var slices []Slice
	remaining := length
	cur := absStart

	for remaining > 0 {
		f := m.files[fileIdx]
		withinFile := cur - f.Offset
		avail := f.Size - withinFile
		if avail <= 0 {
			fileIdx++
			if fileIdx >= len(m.files) {
				return nil, fmt.Errorf("manifest: ran out of files mapping piece %d offset %d length %d", piece, offset, length)
			}
			continue
		}

		take := remaining
		if take > avail {
			take = avail
		}

		slices = append(slices, Slice{
			FileIndex:  fileIdx,
			FileOffset: f.FileBase + withinFile,
			Length:     take,
			PadFile:    f.PadFile,
		})

		cur += take
		remaining -= take
		if take == avail {
			fileIdx++
		}
	}

	return slices, nil
}

// Mutable is an editable overlay on top of an immutable Manifest: renames
// and priorities are layered here so the original manifest used for resume
// compatibility checks is never touched.
type Mutable struct {
	base     *Manifest
	renames  map[int]string
	priority map[int]int
}

// NewMutable wraps base in a Mutable overlay with no renames or priority
// overrides applied yet.
func NewMutable(base *Manifest) *Mutable {
	return &Mutable{
		base:     base,
		renames:  make(map[int]string),
		priority: make(map[int]int),
	}
}

// Base returns the original, never-mutated Manifest.
func (mm *Mutable) Base() *Manifest { return mm.base }

// RenameFile records a relative-path override for file i. The original
// manifest is untouched; callers resolving an on-disk path must call Path.
func (mm *Mutable) RenameFile(i int, newRelativePath string) error {
	if i < 0 || i >= mm.base.NumFiles() {
		return fmt.Errorf("manifest: file index %d out of range", i)
	}
	mm.renames[i] = newRelativePath
	return nil
}

// Path returns the effective relative path for file i, honoring any rename.
func (mm *Mutable) Path(i int) string {
	if p, ok := mm.renames[i]; ok && p != "" {
		return p
	}
	return mm.base.files[i].Path
}

// SetPriority sets file i's download priority (0 disables preallocation).
func (mm *Mutable) SetPriority(i, priority int) error {
	if i < 0 || i >= mm.base.NumFiles() {
		return fmt.Errorf("manifest: file index %d out of range", i)
	}
	mm.priority[i] = priority
	return nil
}

// Priority returns file i's priority, defaulting to 4 (normal) when unset.
func (mm *Mutable) Priority(i int) int {
	if p, ok := mm.priority[i]; ok {
		return p
	}
	return 4
}

// RenamedIndices returns the set of file indices with an active rename, for
// resume-data serialization.
func (mm *Mutable) RenamedIndices() map[int]string {
	out := make(map[int]string, len(mm.renames))
	for k, v := range mm.renames {
		out[k] = v
	}
	return out
}
