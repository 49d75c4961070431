package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "diskcore", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// Should be able to call shutdown without error
	err = shutdown(ctx)
	assert.NoError(t, err)

	// Should not be enabled
	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	// Reset state
	tracer = nil
	enabled = false

	// Without initialization, should return no-op tracer
	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	// Even without initialization, StartSpan should work (no-op)
	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)

	// Should be able to end the span
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	// Should return a span even without active span
	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	// Should not panic with no active span
	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	// Should not panic with nil error
	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	// Should not panic with error
	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	// Should not panic
	require.NotPanics(t, func() {
		SetAttributes(ctx, StorageID("abc123"))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	// Without active span, should return empty string
	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("JobKind", func(t *testing.T) {
		attr := JobKind("write")
		assert.Equal(t, AttrJobKind, string(attr.Key))
		assert.Equal(t, "write", attr.Value.AsString())
	})

	t.Run("JobID", func(t *testing.T) {
		attr := JobID("job-1")
		assert.Equal(t, AttrJobID, string(attr.Key))
		assert.Equal(t, "job-1", attr.Value.AsString())
	})

	t.Run("StorageID", func(t *testing.T) {
		attr := StorageID("torrent-abc")
		assert.Equal(t, AttrStorageID, string(attr.Key))
		assert.Equal(t, "torrent-abc", attr.Value.AsString())
	})

	t.Run("Piece", func(t *testing.T) {
		attr := Piece(42)
		assert.Equal(t, AttrPiece, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("Block", func(t *testing.T) {
		attr := Block(3)
		assert.Equal(t, AttrBlock, string(attr.Key))
		assert.Equal(t, int64(3), attr.Value.AsInt64())
	})

	t.Run("Worker", func(t *testing.T) {
		attr := Worker(2)
		assert.Equal(t, AttrWorker, string(attr.Key))
		assert.Equal(t, int64(2), attr.Value.AsInt64())
	})

	t.Run("Path", func(t *testing.T) {
		attr := Path("/data/file.bin")
		assert.Equal(t, AttrPath, string(attr.Key))
		assert.Equal(t, "/data/file.bin", attr.Value.AsString())
	})

	t.Run("FileIndex", func(t *testing.T) {
		attr := FileIndex(1)
		assert.Equal(t, AttrFileIndex, string(attr.Key))
		assert.Equal(t, int64(1), attr.Value.AsInt64())
	})

	t.Run("OldPath", func(t *testing.T) {
		attr := OldPath("/data/old.bin")
		assert.Equal(t, AttrOldPath, string(attr.Key))
		assert.Equal(t, "/data/old.bin", attr.Value.AsString())
	})

	t.Run("NewPath", func(t *testing.T) {
		attr := NewPath("/data/new.bin")
		assert.Equal(t, AttrNewPath, string(attr.Key))
		assert.Equal(t, "/data/new.bin", attr.Value.AsString())
	})

	t.Run("Size", func(t *testing.T) {
		attr := Size(1048576)
		assert.Equal(t, AttrSize, string(attr.Key))
		assert.Equal(t, int64(1048576), attr.Value.AsInt64())
	})

	t.Run("Offset", func(t *testing.T) {
		attr := Offset(1024)
		assert.Equal(t, AttrOffset, string(attr.Key))
		assert.Equal(t, int64(1024), attr.Value.AsInt64())
	})

	t.Run("Length", func(t *testing.T) {
		attr := Length(4096)
		assert.Equal(t, AttrLength, string(attr.Key))
		assert.Equal(t, int64(4096), attr.Value.AsInt64())
	})

	t.Run("BytesRead", func(t *testing.T) {
		attr := BytesRead(4096)
		assert.Equal(t, AttrBytesRead, string(attr.Key))
		assert.Equal(t, int64(4096), attr.Value.AsInt64())
	})

	t.Run("BytesWritten", func(t *testing.T) {
		attr := BytesWritten(2048)
		assert.Equal(t, AttrBytesWritten, string(attr.Key))
		assert.Equal(t, int64(2048), attr.Value.AsInt64())
	})

	t.Run("CacheHit", func(t *testing.T) {
		attr := CacheHit(true)
		assert.Equal(t, AttrCacheHit, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("CacheList", func(t *testing.T) {
		attr := CacheList("t1")
		assert.Equal(t, AttrCacheList, string(attr.Key))
		assert.Equal(t, "t1", attr.Value.AsString())
	})

	t.Run("CacheState", func(t *testing.T) {
		attr := CacheState("dirty")
		assert.Equal(t, AttrCacheState, string(attr.Key))
		assert.Equal(t, "dirty", attr.Value.AsString())
	})

	t.Run("Refcount", func(t *testing.T) {
		attr := Refcount(2)
		assert.Equal(t, AttrRefcount, string(attr.Key))
		assert.Equal(t, int64(2), attr.Value.AsInt64())
	})

	t.Run("HashOffset", func(t *testing.T) {
		attr := HashOffset(65536)
		assert.Equal(t, AttrHashOffset, string(attr.Key))
		assert.Equal(t, int64(65536), attr.Value.AsInt64())
	})

	t.Run("Evicted", func(t *testing.T) {
		attr := Evicted(5)
		assert.Equal(t, AttrEvicted, string(attr.Key))
		assert.Equal(t, int64(5), attr.Value.AsInt64())
	})

	t.Run("Status", func(t *testing.T) {
		attr := Status("ok")
		assert.Equal(t, AttrStatus, string(attr.Key))
		assert.Equal(t, "ok", attr.Value.AsString())
	})

	t.Run("ErrorKind", func(t *testing.T) {
		attr := ErrorKind("io_error")
		assert.Equal(t, AttrErrorKind, string(attr.Key))
		assert.Equal(t, "io_error", attr.Value.AsString())
	})
}

func TestStartJobSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartJobSpan(ctx, SpanJobRead, "read", "torrent-abc")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartJobSpan(ctx, SpanJobWrite, "write", "torrent-abc", Piece(1), Block(0))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartStorageSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartStorageSpan(ctx, "readv", "torrent-abc")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartStorageSpan(ctx, "writev", "torrent-abc", Offset(0), Length(4096))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}

func TestStartCacheSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartCacheSpan(ctx, "lookup")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()

	// With additional attributes
	newCtx2, span2 := StartCacheSpan(ctx, "write", CacheHit(false))
	require.NotNil(t, newCtx2)
	require.NotNil(t, span2)
	span2.End()
}
