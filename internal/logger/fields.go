package logger

import (
	"log/slog"
)

// Standard field keys for structured logging across the disk I/O core.
// Use these keys consistently so log lines from the job queue, the cache,
// and the storage backend aggregate cleanly.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for job correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for job correlation

	// ========================================================================
	// Job identity
	// ========================================================================
	KeyJobKind   = "job_kind"   // disk job action: read, write, hash, move_storage, ...
	KeyJobID     = "job_id"     // job instance id (uuid)
	KeyStorageID = "storage_id" // owning storage's id
	KeyPiece     = "piece"      // piece index
	KeyBlock     = "block"      // block index within a piece
	KeyWorker    = "worker"     // worker goroutine index

	// ========================================================================
	// File system operations
	// ========================================================================
	KeyPath       = "path"        // full file/directory path
	KeyFileIndex  = "file_index"  // index of a file within the manifest
	KeyOldPath    = "old_path"    // source path for rename/move operations
	KeyNewPath    = "new_path"    // destination path for rename/move operations
	KeySize       = "size"        // file size in bytes

	// ========================================================================
	// I/O operations
	// ========================================================================
	KeyOffset       = "offset"        // byte offset for read/write operations
	KeyLength       = "length"        // byte count requested
	KeyBytesRead    = "bytes_read"    // actual bytes read
	KeyBytesWritten = "bytes_written" // actual bytes written

	// ========================================================================
	// Errors & outcomes
	// ========================================================================
	KeyError     = "error"      // error message
	KeyErrorKind = "error_kind" // one of the closed error-kind set (§7)
	KeyOperation = "operation"  // operation name attached to a propagated error

	// ========================================================================
	// Cache
	// ========================================================================
	KeyCacheList   = "cache_list"   // ARC list a piece entry belongs to
	KeyRefcount    = "refcount"     // block refcount at time of log
	KeyHashOffset  = "hash_offset"  // bytes absorbed by the incremental hasher
	KeyEvicted     = "evicted"      // number of blocks evicted

	// ========================================================================
	// Duration & counters
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyCount      = "count"
	KeyQueueDepth = "queue_depth"
)

// ----------------------------------------------------------------------------
// Distributed tracing
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ----------------------------------------------------------------------------
// Job identity
// ----------------------------------------------------------------------------

// JobKind returns a slog.Attr for the disk job action.
func JobKind(kind string) slog.Attr {
	return slog.String(KeyJobKind, kind)
}

// JobID returns a slog.Attr for a job instance id.
func JobID(id string) slog.Attr {
	return slog.String(KeyJobID, id)
}

// StorageID returns a slog.Attr for a storage id.
func StorageID(id string) slog.Attr {
	return slog.String(KeyStorageID, id)
}

// Piece returns a slog.Attr for a piece index.
func Piece(index int) slog.Attr {
	return slog.Int(KeyPiece, index)
}

// Block returns a slog.Attr for a block index.
func Block(index int) slog.Attr {
	return slog.Int(KeyBlock, index)
}

// Worker returns a slog.Attr for a worker goroutine index.
func Worker(id int) slog.Attr {
	return slog.Int(KeyWorker, id)
}

// ----------------------------------------------------------------------------
// File system operations
// ----------------------------------------------------------------------------

// Path returns a slog.Attr for a filesystem path.
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// FileIndex returns a slog.Attr for a manifest file index.
func FileIndex(i int) slog.Attr {
	return slog.Int(KeyFileIndex, i)
}

// Size returns a slog.Attr for a size in bytes.
func Size(n int64) slog.Attr {
	return slog.Int64(KeySize, n)
}

// ----------------------------------------------------------------------------
// I/O operations
// ----------------------------------------------------------------------------

// Offset returns a slog.Attr for a byte offset.
func Offset(off int64) slog.Attr {
	return slog.Int64(KeyOffset, off)
}

// Length returns a slog.Attr for a byte length.
func Length(n int) slog.Attr {
	return slog.Int(KeyLength, n)
}

// BytesRead returns a slog.Attr for actual bytes read.
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// BytesWritten returns a slog.Attr for actual bytes written.
func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

// ----------------------------------------------------------------------------
// Errors & outcomes
// ----------------------------------------------------------------------------

// Err returns a slog.Attr for an error value. A nil error yields an empty
// Attr, which handlers omit.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorKind returns a slog.Attr for one of the closed error-kind values.
func ErrorKind(kind string) slog.Attr {
	return slog.String(KeyErrorKind, kind)
}

// Operation returns a slog.Attr for an operation name ("read"|"write"|...).
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// ----------------------------------------------------------------------------
// Cache
// ----------------------------------------------------------------------------

// CacheList returns a slog.Attr for the ARC list a piece entry belongs to.
func CacheList(name string) slog.Attr {
	return slog.String(KeyCacheList, name)
}

// Refcount returns a slog.Attr for a block's refcount.
func Refcount(n int32) slog.Attr {
	return slog.Int64(KeyRefcount, int64(n))
}

// HashOffset returns a slog.Attr for the incremental hasher's progress.
func HashOffset(n int64) slog.Attr {
	return slog.Int64(KeyHashOffset, n)
}

// Evicted returns a slog.Attr for a count of evicted blocks.
func Evicted(n int) slog.Attr {
	return slog.Int(KeyEvicted, n)
}

// ----------------------------------------------------------------------------
// Duration & counters
// ----------------------------------------------------------------------------

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Count returns a slog.Attr for a generic count.
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// QueueDepth returns a slog.Attr for the ready-queue depth.
func QueueDepth(n int) slog.Attr {
	return slog.Int(KeyQueueDepth, n)
}
