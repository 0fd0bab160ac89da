package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds per-operation logging fields for a mapping run.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Operation string    // translate, diff, prepare, resolve
	Resource  string    // External resource key
	AnyType   string    // USER, GROUP or an any-object type name
	OwnerKey  string    // Key of the entity being mapped
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext starts a LogContext for the named operation.
func NewLogContext(operation string) *LogContext {
	return &LogContext{
		Operation: operation,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithResource returns a copy with the resource key set.
func (lc *LogContext) WithResource(resource string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Resource = resource
	}
	return clone
}

// WithOwner returns a copy with the owner identity set.
func (lc *LogContext) WithOwner(anyType, key string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.AnyType = anyType
		clone.OwnerKey = key
	}
	return clone
}

// WithTrace returns a copy with trace info set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
