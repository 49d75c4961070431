package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds job-scoped logging context for a single disk job.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	JobKind   string    // disk job action (read, write, hash, move_storage, ...)
	StorageID string    // owning storage's id
	Piece     int32     // piece index, -1 when the job is not piece-scoped
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a storage.
func NewLogContext(storageID string) *LogContext {
	return &LogContext{
		StorageID: storageID,
		Piece:     -1,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		JobKind:   lc.JobKind,
		StorageID: lc.StorageID,
		Piece:     lc.Piece,
		StartTime: lc.StartTime,
	}
}

// WithJobKind returns a copy with the job kind set
func (lc *LogContext) WithJobKind(kind string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.JobKind = kind
	}
	return clone
}

// WithPiece returns a copy with the piece index set
func (lc *LogContext) WithPiece(piece int32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Piece = piece
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
