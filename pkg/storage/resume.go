package storage

import (
	"time"

	"github.com/torrentstore/diskcore/pkg/diskerr"
)

// FileSizeEntry is one [size, mtime] pair from a resume record's
// "file sizes" list.
type FileSizeEntry struct {
	Size  int64
	Mtime int64 // unix seconds
}

// ResumeInput is the storage-relevant subset of a parsed resume record
// (spec §6 "Resume record"); pkg/piecemgr decodes the bencoded dictionary
// into this shape before calling VerifyResume.
type ResumeInput struct {
	// Compact is true when "allocation" == "compact"; anything else
	// (including absent) is non-compact/modern semantics.
	Compact bool

	// Seed is true when the resume record claims the torrent is fully
	// downloaded; in that case every non-pad file size must match the
	// manifest exactly.
	Seed bool

	FileSizes    []FileSizeEntry
	MappedFiles  []string // index-aligned; "" leaves the name unchanged
	FilePriority []int    // index-aligned, 0..7

	// Slots is the legacy compact-mode remapping table. Per spec §9's
	// open question, a record combining Compact with a non-empty Slots
	// is refused outright (see DESIGN.md).
	Slots []int

	// SkipDiskProbe implements the no_recheck_incomplete_resume config
	// option (spec §6): trust the recorded file sizes/mtimes without
	// stat-ing disk. Seed-claim validation still runs, since that check
	// is against the manifest, not the filesystem.
	SkipDiskProbe bool
}

const (
	mtimeToleranceBehind = 1 * time.Second
	mtimeToleranceAhead  = 5 * time.Minute
	compactMtimeTol      = 1 * time.Second
)

// VerifyResume validates resume against the current on-disk state and
// layers any renames/priorities from resume onto the storage's manifest
// overlay. It returns (true, nil) when the resume data is trustworthy;
// otherwise it returns false with an error whose kind names the first
// mismatch found (file count, file size, timestamp, missing file, ...),
// and the caller demotes the torrent to a full recheck.
func (s *Storage) VerifyResume(r ResumeInput) (bool, error) {
	base := s.manifest.Base()

	if r.Compact && len(r.Slots) > 0 {
		// Legacy compact+slots combination: refuse rather than attempt
		// to preserve the remapping (spec §9 Open Question, resolved in
		// DESIGN.md).
		return false, diskerr.New(diskerr.MissingPieces, "check_fastresume", nil)
	}

	if len(r.FileSizes) != base.NumFiles() {
		return false, diskerr.New(diskerr.MismatchingNumberOfFiles, "check_fastresume", nil)
	}

	for i, name := range r.MappedFiles {
		if name == "" {
			continue
		}
		if err := s.manifest.RenameFile(i, name); err != nil {
			return false, diskerr.NewFile(diskerr.IOError, i, "check_fastresume", err)
		}
	}
	for i, p := range r.FilePriority {
		if err := s.manifest.SetPriority(i, p); err != nil {
			return false, diskerr.NewFile(diskerr.IOError, i, "check_fastresume", err)
		}
	}

	for i := 0; i < base.NumFiles(); i++ {
		f := base.File(i)
		if f.PadFile {
			continue
		}

		recorded := r.FileSizes[i]

		if r.Seed && recorded.Size != f.Size {
			return false, diskerr.NewFile(diskerr.MismatchingFileSize, i, "check_fastresume", nil)
		}

		if r.SkipDiskProbe {
			continue
		}

		ok, kind := s.matchFileSize(i, recorded, r.Compact)
		if !ok {
			return false, diskerr.NewFile(kind, i, "check_fastresume", nil)
		}
	}

	return true, nil
}

func (s *Storage) matchFileSize(i int, recorded FileSizeEntry, compact bool) (bool, diskerr.Kind) {
	diskSize, diskMtime, exists := s.StatFile(i)
	if !exists {
		return false, diskerr.NoSuchFile
	}

	recordedMtime := time.Unix(recorded.Mtime, 0)

	if compact {
		if diskSize != recorded.Size {
			return false, diskerr.MismatchingFileSize
		}
		delta := diskMtime.Sub(recordedMtime)
		if delta < -compactMtimeTol || delta > compactMtimeTol {
			return false, diskerr.MismatchingFileTimestamp
		}
		return true, diskerr.OK
	}

	if diskSize < recorded.Size {
		return false, diskerr.MismatchingFileSize
	}
	if diskMtime.Before(recordedMtime.Add(-mtimeToleranceBehind)) || diskMtime.After(recordedMtime.Add(mtimeToleranceAhead)) {
		return false, diskerr.MismatchingFileTimestamp
	}
	return true, diskerr.OK
}
