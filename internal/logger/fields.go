package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently so mapping runs can be correlated across components.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Operation
	// ========================================================================
	KeyOperation  = "operation"   // translate, diff, prepare, resolve
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyCount      = "count"       // Generic item count
	KeyComponent  = "component"   // Emitting subsystem

	// ========================================================================
	// Identity
	// ========================================================================
	KeyAnyType  = "any_type"  // USER, GROUP or any-object type name
	KeyOwner    = "owner"     // Entity key
	KeyRealm    = "realm"     // Realm path
	KeyUsername = "username"  // Username of a user entity
	KeySchema   = "schema"    // Internal schema name
	KeyKind     = "kind"      // Mapping kind
	KeyType     = "type"      // Declared schema type

	// ========================================================================
	// Connector
	// ========================================================================
	KeyResource    = "resource"     // External resource key
	KeyObjectClass = "object_class" // Connector object class
	KeyAccountID   = "account_id"   // Connector object identifier
	KeyExtAttr     = "ext_attr"     // External attribute name
	KeyAttrCount   = "attr_count"   // Number of connector attributes

	// ========================================================================
	// Virtual Attribute Cache
	// ========================================================================
	KeyCacheHit   = "cache_hit"
	KeyCacheState = "cache_state" // absent, populated, expired, force_expired
	KeyCacheSize  = "cache_size"
	KeyExpiresAt  = "expires_at"
)

// ============================================================================
// Field constructors
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Operation returns a slog.Attr for the operation name
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// DurationMs returns a slog.Attr for a duration in milliseconds
func DurationMs(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMs, float64(d.Microseconds())/1000.0)
}

// Err returns a slog.Attr for an error; nil errors yield an empty attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// AnyType returns a slog.Attr for the any type
func AnyType(t string) slog.Attr {
	return slog.String(KeyAnyType, t)
}

// Owner returns a slog.Attr for the entity key
func Owner(key string) slog.Attr {
	return slog.String(KeyOwner, key)
}

// Schema returns a slog.Attr for a schema name
func Schema(name string) slog.Attr {
	return slog.String(KeySchema, name)
}

// Resource returns a slog.Attr for a resource key
func Resource(key string) slog.Attr {
	return slog.String(KeyResource, key)
}

// AccountID returns a slog.Attr for a connector object identifier
func AccountID(id string) slog.Attr {
	return slog.String(KeyAccountID, id)
}

// ExtAttr returns a slog.Attr for an external attribute name
func ExtAttr(name string) slog.Attr {
	return slog.String(KeyExtAttr, name)
}

// CacheHit returns a slog.Attr for a cache hit indicator
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// CacheState returns a slog.Attr for a cache entry state
func CacheState(state string) slog.Attr {
	return slog.String(KeyCacheState, state)
}
