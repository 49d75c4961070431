// Package diskerr defines the closed set of error kinds shared by the
// storage backend, block cache, disk job queue, and piece manager (spec §7),
// plus the JobError wrapper that carries an error kind alongside the
// offending file index and operation name.
package diskerr

import (
	"errors"
	"fmt"
)

// Kind is one of the closed set of error kinds the core reports.
type Kind int

const (
	OK Kind = iota
	NoSuchFile
	PermissionDenied
	DiskFull
	IOError
	MismatchingFileSize
	MismatchingFileTimestamp
	MismatchingNumberOfFiles
	MissingFileSizes
	MissingPieces
	NotADictionary
	InvalidBlocksPerPiece
	FileExist
	OperationAborted
	FatalDiskError
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case NoSuchFile:
		return "no_such_file"
	case PermissionDenied:
		return "permission_denied"
	case DiskFull:
		return "disk_full"
	case IOError:
		return "io_error"
	case MismatchingFileSize:
		return "mismatching_file_size"
	case MismatchingFileTimestamp:
		return "mismatching_file_timestamp"
	case MismatchingNumberOfFiles:
		return "mismatching_number_of_files"
	case MissingFileSizes:
		return "missing_file_sizes"
	case MissingPieces:
		return "missing_pieces"
	case NotADictionary:
		return "not_a_dictionary"
	case InvalidBlocksPerPiece:
		return "invalid_blocks_per_piece"
	case FileExist:
		return "file_exist"
	case OperationAborted:
		return "operation_aborted"
	case FatalDiskError:
		return "fatal_disk_error"
	default:
		return "unknown"
	}
}

// JobError is the error shape attached to a disk job: a kind plus the
// offending file index (-1 when not file-scoped) and the operation name
// ("read"|"write"|...), with an optional wrapped OS error.
type JobError struct {
	Kind      Kind
	FileIndex int
	Op        string
	Err       error
}

func (e *JobError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.FileIndex >= 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s: file %d: %s: %v", e.Kind, e.FileIndex, e.Op, e.Err)
		}
		return fmt.Sprintf("%s: file %d: %s", e.Kind, e.FileIndex, e.Op)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

func (e *JobError) Unwrap() error { return e.Err }

// New builds a JobError not scoped to any particular file.
func New(kind Kind, op string, err error) *JobError {
	return &JobError{Kind: kind, FileIndex: -1, Op: op, Err: err}
}

// NewFile builds a JobError annotated with the offending file index.
func NewFile(kind Kind, fileIndex int, op string, err error) *JobError {
	return &JobError{Kind: kind, FileIndex: fileIndex, Op: op, Err: err}
}

// Is allows errors.Is(err, SomeKind) style checks against a bare Kind by
// comparing JobError.Kind.
func Is(err error, kind Kind) bool {
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind == kind
	}
	return false
}
