package tracing

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for resource fetch operations.
const (
	AttrResourceKind   = "smp.resource.kind"
	AttrResourceStatus = "smp.resource.status"
	AttrResourceURL    = "smp.resource.url"
	AttrResourceSource = "smp.resource.source"

	// Rate limiting attributes
	AttrRateLimitHost   = "smp.ratelimit.host"
	AttrRateLimitWaitMs = "smp.ratelimit.wait_ms"

	// Cache attributes
	AttrCacheType = "smp.cache.type"
	AttrCacheHit  = "smp.cache.hit"
	AttrCacheKey  = "smp.cache.key"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Status values for AttrResourceStatus.
const (
	StatusFetched = "fetched"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// ResourceAttributes returns attributes for a single tile/glyph/sprite
// fetch attempt.
func ResourceAttributes(kind, status, url, sourceID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrResourceKind, kind),
		attribute.String(AttrResourceStatus, status),
		attribute.String(AttrResourceURL, url),
		attribute.String(AttrResourceSource, sourceID),
	}
}

// CacheAttributes returns attributes for a smpcache lookup.
func CacheAttributes(cacheType string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}

// ErrorAttributes returns attributes describing a failed operation.
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, "error"),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
