package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for mapping engine spans.
const (
	// ========================================================================
	// Identity attributes
	// ========================================================================
	AttrAnyType  = "identity.any_type"
	AttrOwnerKey = "identity.owner_key"
	AttrRealm    = "identity.realm"
	AttrSchema   = "identity.schema"

	// ========================================================================
	// Connector attributes
	// ========================================================================
	AttrResource    = "connector.resource"
	AttrObjectClass = "connector.object_class"
	AttrAccountID   = "connector.account_id"
	AttrAttrCount   = "connector.attr_count"
	AttrFound       = "connector.found"

	// ========================================================================
	// Cache attributes
	// ========================================================================
	AttrCacheHit   = "cache.hit"
	AttrCacheState = "cache.state"
	AttrCacheSize  = "cache.size"

	// ========================================================================
	// Mapping attributes
	// ========================================================================
	AttrItemCount = "mapping.item_count"
	AttrWarnings  = "mapping.warnings"
)

// Span names. Format: <component>.<operation>
const (
	SpanConnectorFetch = "connector.fetch"
	SpanConnectorPush  = "connector.push"

	SpanVirAttrResolve  = "virattr.resolve"
	SpanVirAttrRetrieve = "virattr.retrieve"

	SpanInboundTranslate = "inbound.translate"
	SpanInboundDiff      = "inbound.diff"

	SpanOutboundPrepare = "outbound.prepare"

	SpanPolicyGenerate = "policy.generate"
)

// AnyType returns an attribute for the entity any type
func AnyType(t string) attribute.KeyValue {
	return attribute.String(AttrAnyType, t)
}

// OwnerKey returns an attribute for the entity key
func OwnerKey(key string) attribute.KeyValue {
	return attribute.String(AttrOwnerKey, key)
}

// Schema returns an attribute for a schema name
func Schema(name string) attribute.KeyValue {
	return attribute.String(AttrSchema, name)
}

// Resource returns an attribute for a resource key
func Resource(key string) attribute.KeyValue {
	return attribute.String(AttrResource, key)
}

// ObjectClass returns an attribute for a connector object class
func ObjectClass(oc string) attribute.KeyValue {
	return attribute.String(AttrObjectClass, oc)
}

// AccountID returns an attribute for a connector account identifier
func AccountID(id string) attribute.KeyValue {
	return attribute.String(AttrAccountID, id)
}

// AttrCountOf returns an attribute for the number of connector attributes
func AttrCountOf(n int) attribute.KeyValue {
	return attribute.Int(AttrAttrCount, n)
}

// Found returns an attribute indicating whether a connector object exists
func Found(found bool) attribute.KeyValue {
	return attribute.Bool(AttrFound, found)
}

// CacheHit returns an attribute for cache hit
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheState returns an attribute for a cache entry state
func CacheState(state string) attribute.KeyValue {
	return attribute.String(AttrCacheState, state)
}

// ItemCount returns an attribute for the number of mapping items processed
func ItemCount(n int) attribute.KeyValue {
	return attribute.Int(AttrItemCount, n)
}

// Warnings returns an attribute for the number of warnings raised
func Warnings(n int) attribute.KeyValue {
	return attribute.Int(AttrWarnings, n)
}
