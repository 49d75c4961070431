package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for disk job and storage operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Job identity attributes
	// ========================================================================
	AttrJobKind   = "job.kind"   // disk job action: read, write, hash, move_storage, ...
	AttrJobID     = "job.id"     // job instance id
	AttrStorageID = "storage.id" // owning storage's id
	AttrPiece     = "piece.index"
	AttrBlock     = "block.index"
	AttrWorker    = "worker.id"

	// ========================================================================
	// File system attributes
	// ========================================================================
	AttrPath      = "fs.path"
	AttrFileIndex = "fs.file_index"
	AttrOldPath   = "fs.old_path"
	AttrNewPath   = "fs.new_path"
	AttrSize      = "fs.size"

	// ========================================================================
	// I/O attributes
	// ========================================================================
	AttrOffset       = "io.offset"
	AttrLength       = "io.length"
	AttrBytesRead    = "io.bytes_read"
	AttrBytesWritten = "io.bytes_written"

	// ========================================================================
	// Cache attributes
	// ========================================================================
	AttrCacheHit   = "cache.hit"
	AttrCacheList  = "cache.list" // ARC list a piece entry belongs to
	AttrCacheState = "cache.state"
	AttrRefcount   = "cache.refcount"
	AttrHashOffset = "cache.hash_offset"
	AttrEvicted    = "cache.evicted"

	// ========================================================================
	// Outcome attributes
	// ========================================================================
	AttrStatus    = "op.status"
	AttrErrorKind = "op.error_kind"
)

// Span names for internal storage and disk I/O operations.
const (
	SpanJobRead          = "job.read"
	SpanJobWrite         = "job.write"
	SpanJobHash          = "job.hash"
	SpanJobMoveStorage   = "job.move_storage"
	SpanJobRenameFile    = "job.rename_file"
	SpanJobDeleteFiles   = "job.delete_files"
	SpanJobCheckResume   = "job.check_fastresume"
	SpanJobReleaseFiles  = "job.release_files"

	SpanCacheLookup = "cache.lookup"
	SpanCacheWrite  = "cache.write"
	SpanCacheFlush  = "cache.flush"
	SpanCacheEvict  = "cache.evict"

	SpanStorageReadV  = "storage.readv"
	SpanStorageWriteV = "storage.writev"
	SpanStorageVerify = "storage.verify_resume"
)

// JobKind returns an attribute for the disk job action.
func JobKind(kind string) attribute.KeyValue {
	return attribute.String(AttrJobKind, kind)
}

// JobID returns an attribute for a job instance id.
func JobID(id string) attribute.KeyValue {
	return attribute.String(AttrJobID, id)
}

// StorageID returns an attribute for a storage id.
func StorageID(id string) attribute.KeyValue {
	return attribute.String(AttrStorageID, id)
}

// Piece returns an attribute for a piece index.
func Piece(index int32) attribute.KeyValue {
	return attribute.Int64(AttrPiece, int64(index))
}

// Block returns an attribute for a block index.
func Block(index int) attribute.KeyValue {
	return attribute.Int(AttrBlock, index)
}

// Worker returns an attribute for a worker goroutine index.
func Worker(id int) attribute.KeyValue {
	return attribute.Int(AttrWorker, id)
}

// Path returns an attribute for a filesystem path.
func Path(path string) attribute.KeyValue {
	return attribute.String(AttrPath, path)
}

// FileIndex returns an attribute for a manifest file index.
func FileIndex(i int) attribute.KeyValue {
	return attribute.Int(AttrFileIndex, i)
}

// OldPath returns an attribute for a rename/move source path.
func OldPath(path string) attribute.KeyValue {
	return attribute.String(AttrOldPath, path)
}

// NewPath returns an attribute for a rename/move destination path.
func NewPath(path string) attribute.KeyValue {
	return attribute.String(AttrNewPath, path)
}

// Size returns an attribute for a size in bytes.
func Size(n int64) attribute.KeyValue {
	return attribute.Int64(AttrSize, n)
}

// Offset returns an attribute for a byte offset.
func Offset(off int64) attribute.KeyValue {
	return attribute.Int64(AttrOffset, off)
}

// Length returns an attribute for a byte length.
func Length(n int) attribute.KeyValue {
	return attribute.Int(AttrLength, n)
}

// BytesRead returns an attribute for actual bytes read.
func BytesRead(n int) attribute.KeyValue {
	return attribute.Int(AttrBytesRead, n)
}

// BytesWritten returns an attribute for actual bytes written.
func BytesWritten(n int) attribute.KeyValue {
	return attribute.Int(AttrBytesWritten, n)
}

// CacheHit returns an attribute for a cache hit indicator.
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheList returns an attribute for the ARC list a piece entry belongs to.
func CacheList(name string) attribute.KeyValue {
	return attribute.String(AttrCacheList, name)
}

// CacheState returns an attribute for a block's cache state.
func CacheState(state string) attribute.KeyValue {
	return attribute.String(AttrCacheState, state)
}

// Refcount returns an attribute for a block's refcount.
func Refcount(n int32) attribute.KeyValue {
	return attribute.Int64(AttrRefcount, int64(n))
}

// HashOffset returns an attribute for the incremental hasher's progress.
func HashOffset(n int64) attribute.KeyValue {
	return attribute.Int64(AttrHashOffset, n)
}

// Evicted returns an attribute for a count of evicted blocks.
func Evicted(n int) attribute.KeyValue {
	return attribute.Int(AttrEvicted, n)
}

// Status returns an attribute for an operation status.
func Status(status string) attribute.KeyValue {
	return attribute.String(AttrStatus, status)
}

// ErrorKind returns an attribute for one of the closed error-kind values.
func ErrorKind(kind string) attribute.KeyValue {
	return attribute.String(AttrErrorKind, kind)
}

// StartJobSpan starts a span for a disk job.
// This is a convenience function that sets common job identity attributes.
func StartJobSpan(ctx context.Context, spanName, jobKind, storageID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		JobKind(jobKind),
		StorageID(storageID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartCacheSpan starts a span for a cache operation.
func StartCacheSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}

// StartStorageSpan starts a span for a storage backend operation.
func StartStorageSpan(ctx context.Context, operation, storageID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		StorageID(storageID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "storage."+operation, trace.WithAttributes(allAttrs...))
}
