package cachemanager

import (
	"context"
	"sync"
	"time"
)

// Loader fetches the value for key from the source of truth.
type Loader[V any] func(ctx context.Context, key string) (V, error)

// ReadThrough serves values from a Manager and falls back to a Loader on
// miss. Only successful loads are cached, and a load that overlaps an
// Invalidate of its key is returned but not cached.
type ReadThrough[V any] struct {
	cache Manager[V]
	load  Loader[V]
	ttl   time.Duration
	skip  bool

	mu          sync.Mutex
	generations map[string]uint64
}

// NewReadThrough wraps cache with load. When skip is true every Get goes to
// the loader and nothing is cached.
func NewReadThrough[V any](cache Manager[V], load Loader[V], ttl time.Duration, skip bool) *ReadThrough[V] {
	return &ReadThrough[V]{
		cache: cache,
		load:  load,
		ttl:   ttl,
		skip:  skip,

		generations: make(map[string]uint64),
	}
}

// Get returns the value for key.
func (r *ReadThrough[V]) Get(ctx context.Context, key string) (V, error) {
	if r.skip {
		return r.load(ctx, key)
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	gen := r.generation(key)
	value, err := r.load(ctx, key)
	if err != nil {
		return value, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generations[key] == gen {
		r.cache.Set(ctx, key, value, r.ttl)
	}
	return value, nil
}

// Invalidate drops keys so the next Get reloads them. Loads of these keys
// already in flight will not populate the cache.
func (r *ReadThrough[V]) Invalidate(ctx context.Context, keys ...string) {
	if r.skip {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range keys {
		r.generations[key]++
	}
	r.cache.Delete(ctx, keys...)
}

func (r *ReadThrough[V]) generation(key string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generations[key]
}

// Stats returns the underlying cache counters.
func (r *ReadThrough[V]) Stats() Stats {
	return r.cache.Stats()
}
