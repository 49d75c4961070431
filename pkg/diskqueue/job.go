// Package diskqueue implements the disk job queue and worker pool (spec
// §4.F): a shared FIFO of disk jobs consumed by a configurable number of
// worker goroutines, with per-storage fences serializing mutating
// operations and batched completion delivery to an external dispatcher.
package diskqueue

import "time"

// Kind is one of the closed set of disk job actions.
type Kind int

const (
	KindRead Kind = iota
	KindWrite
	KindHash
	KindMoveStorage
	KindReleaseFiles
	KindDeleteFiles
	KindCheckFastresume
	KindSaveResumeData
	KindRenameFile
	KindStopTorrent
	KindFlushPiece
	KindFlushHashed
	KindFlushStorage
	KindTrimCache
	KindFilePriority
	KindLoadTorrent
	KindTickTorrent
	KindClearPiece
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindHash:
		return "hash"
	case KindMoveStorage:
		return "move_storage"
	case KindReleaseFiles:
		return "release_files"
	case KindDeleteFiles:
		return "delete_files"
	case KindCheckFastresume:
		return "check_fastresume"
	case KindSaveResumeData:
		return "save_resume_data"
	case KindRenameFile:
		return "rename_file"
	case KindStopTorrent:
		return "stop_torrent"
	case KindFlushPiece:
		return "flush_piece"
	case KindFlushHashed:
		return "flush_hashed"
	case KindFlushStorage:
		return "flush_storage"
	case KindTrimCache:
		return "trim_cache"
	case KindFilePriority:
		return "file_priority"
	case KindLoadTorrent:
		return "load_torrent"
	case KindTickTorrent:
		return "tick_torrent"
	case KindClearPiece:
		return "clear_piece"
	default:
		return "unknown"
	}
}

// RequiresFence reports whether jobs of this kind must run exclusively
// against other jobs for the same storage (spec §4.F "Fences required
// for").
func (k Kind) RequiresFence() bool {
	switch k {
	case KindMoveStorage, KindDeleteFiles, KindRenameFile, KindReleaseFiles,
		KindClearPiece, KindStopTorrent, KindCheckFastresume:
		return true
	default:
		return false
	}
}

// Job is one unit of disk work. Exec performs the actual I/O (built by the
// caller from pkg/storage/pkg/cache/pkg/piecemgr primitives) and Handler
// is invoked exactly once with the result, synchronously on the goroutine
// that finishes the job: the worker that ran Exec or, for a job aborted by
// stop_torrent, the goroutine that submitted the stop_torrent job. Handler
// is not invoked on the dispatcher thread; the dispatcher receives the same
// Result through DrainCompletions.
type Job struct {
	Kind      Kind
	StorageID string
	Piece     int

	// Bytes is the payload size of a KindWrite job, counted against
	// Config.MaxQueuedBytes for write back-pressure (spec §6
	// "max_queued_disk_bytes"). Unused for other kinds.
	Bytes int64

	Exec    func() (int64, error)
	Handler func(Result)

	submittedAt time.Time
	retries     int
}

// Result is the outcome of a completed (or aborted) job, delivered to the
// dispatcher in FIFO completion-batch order.
type Result struct {
	Job      *Job
	N        int64
	Err      error
	Duration time.Duration
}
