package piecemgr

import (
	"github.com/anacrolix/torrent/bencode"

	"github.com/torrentstore/diskcore/pkg/alert"
	"github.com/torrentstore/diskcore/pkg/diskerr"
	"github.com/torrentstore/diskcore/pkg/storage"
)

const defaultFilePriority = 4

// fileSizeEntry is one [size, mtime] pair from a resume record's
// "file sizes" list (spec §6). It bencodes as a plain two-element list
// rather than a dictionary.
type fileSizeEntry [2]int64

func (e fileSizeEntry) MarshalBencode() ([]byte, error) {
	return bencode.Marshal([2]int64{e[0], e[1]})
}

func (e *fileSizeEntry) UnmarshalBencode(b []byte) error {
	var pair [2]int64
	if err := bencode.Unmarshal(b, &pair); err != nil {
		return err
	}
	*e = fileSizeEntry(pair)
	return nil
}

// resumeRecord is the bencoded dictionary shape of a resume record
// (spec §6 "Resume record").
type resumeRecord struct {
	FileSizes      []fileSizeEntry `bencode:"file sizes"`
	MappedFiles    []string        `bencode:"mapped_files,omitempty"`
	FilePriority   []int           `bencode:"file_priority,omitempty"`
	Pieces         []byte          `bencode:"pieces,omitempty"`
	Slots          []int           `bencode:"slots,omitempty"`
	Allocation     string          `bencode:"allocation,omitempty"`
	BlocksPerPiece int             `bencode:"blocks per piece,omitempty"`
}

// CheckFastresume implements spec §4.G's fast-resume validation. raw is the
// bencoded resume record as received from the network layer; an empty or
// malformed raw demotes the manager to need_full_check rather than erroring.
func (m *Manager) CheckFastresume(raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.decodeResumeRecord(raw)
	if !ok {
		m.state = StateNone
		m.requestFullCheckLocked()
		return nil
	}

	wantBlocksPerPiece := int(m.storage.Manifest().Base().PieceLength() / int64(m.cfg.BlockSize))
	if rec.BlocksPerPiece != 0 && rec.BlocksPerPiece != wantBlocksPerPiece {
		m.demoteLocked(diskerr.New(diskerr.InvalidBlocksPerPiece, "check_fastresume", nil))
		return nil
	}

	input := storage.ResumeInput{
		Compact:       rec.Allocation == "compact",
		FileSizes:     toFileSizes(rec.FileSizes),
		MappedFiles:   rec.MappedFiles,
		FilePriority:  rec.FilePriority,
		Slots:         rec.Slots,
		SkipDiskProbe: m.cfg.NoRecheckIncompleteResume,
	}

	numPieces := m.storage.Manifest().Base().NumPieces()
	bitmap, bitmapOK := parsePieceBitfield(rec, numPieces)
	if bitmapOK {
		input.Seed = bitmap.Complete()
	}

	ok2, err := m.storage.VerifyResume(input)
	if err != nil || !ok2 {
		m.demoteLocked(err)
		return nil
	}

	if !bitmapOK {
		m.demoteLocked(diskerr.New(diskerr.MissingPieces, "check_fastresume", nil))
		return nil
	}

	m.bitmap = bitmap
	m.cursor = 0
	if bitmap.Complete() {
		m.state = StateFinished
	} else {
		m.requestFullCheckLocked()
	}
	return nil
}

func (m *Manager) decodeResumeRecord(raw []byte) (resumeRecord, bool) {
	if len(raw) == 0 {
		return resumeRecord{}, false
	}
	var rec resumeRecord
	if err := bencode.Unmarshal(raw, &rec); err != nil {
		return resumeRecord{}, false
	}
	if len(rec.FileSizes) == 0 {
		return resumeRecord{}, false
	}
	return rec, true
}

// demoteLocked falls the state machine back to need_full_check and posts a
// fastresume_rejected alert, per spec §4.G "On any mismatch, fall back to
// need_full_check".
func (m *Manager) demoteLocked(err error) {
	reason := "invalid resume record"
	if err != nil {
		reason = err.Error()
	}
	m.cfg.Alerts.Post(alert.FastresumeRejectedAlert(m.torrentID, reason))
	m.requestFullCheckLocked()
}

func (m *Manager) requestFullCheckLocked() {
	m.state = StateNeedFullCheck
	m.cursor = 0
	base := m.storage.Manifest().Base()
	m.bitmap = NewBitmap(base.NumPieces())
}

func toFileSizes(entries []fileSizeEntry) []storage.FileSizeEntry {
	out := make([]storage.FileSizeEntry, len(entries))
	for i, e := range entries {
		out[i] = storage.FileSizeEntry{Size: e[0], Mtime: e[1]}
	}
	return out
}

// parsePieceBitfield parses resume's "pieces" bitfield string, falling back
// to reconstructing a bitmap from the legacy "slots" list when pieces is
// absent (compact-mode resume records recorded completion via slots rather
// than a bitfield — a slot present at its natural index means "have").
func parsePieceBitfield(rec resumeRecord, numPieces int) (*Bitmap, bool) {
	if len(rec.Pieces) > 0 {
		return BitmapFromBytes(rec.Pieces, numPieces)
	}
	if len(rec.Slots) > 0 {
		b := NewBitmap(numPieces)
		for piece, slot := range rec.Slots {
			if slot == piece {
				b.Set(piece, true)
			}
		}
		return b, true
	}
	return nil, false
}

// WriteResume implements spec §4.G "Writing resume data": it emits a fresh
// bencoded resume record from the manager's current state, stat-ing every
// file on disk rather than trusting cached sizes/mtimes.
func (m *Manager) WriteResume() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := m.storage.Manifest().Base()
	n := base.NumFiles()

	rec := resumeRecord{
		BlocksPerPiece: int(base.PieceLength() / int64(m.cfg.BlockSize)),
		Pieces:         m.bitmap.Bytes(),
		FileSizes:      make([]fileSizeEntry, n),
	}

	for i := 0; i < n; i++ {
		size, mtime, exists := m.storage.StatFile(i)
		if !exists {
			f := base.File(i)
			size = f.Size
		}
		rec.FileSizes[i] = fileSizeEntry{size, mtime.Unix()}
	}

	if renamed := m.storage.Manifest().RenamedIndices(); len(renamed) > 0 {
		rec.MappedFiles = make([]string, n)
		for i, path := range renamed {
			rec.MappedFiles[i] = path
		}
	}

	priorities := make([]int, n)
	nonDefault := false
	for i := 0; i < n; i++ {
		priorities[i] = m.storage.Manifest().Priority(i)
		if priorities[i] != defaultFilePriority {
			nonDefault = true
		}
	}
	if nonDefault {
		rec.FilePriority = priorities
	}

	return bencode.Marshal(rec)
}
