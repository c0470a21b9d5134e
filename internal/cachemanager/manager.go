// Package cachemanager provides the typed in-process caches used by the
// registry's resolve path.
package cachemanager

import (
	"context"
	"time"
)

// Manager is a typed cache keyed by string.
type Manager[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
	Flush(ctx context.Context)
	Stats() Stats
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits   uint64
	Misses uint64
	Items  int
}
