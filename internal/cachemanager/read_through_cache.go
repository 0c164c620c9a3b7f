package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache loads missing entries with fn and caches the result.
// Errors are returned uncached.
type ReadThroughCache[K comparable, V any] struct {
	cache CacheManager[K, V]
	fn    func(ctx context.Context, key K) (V, error)
	ttl   time.Duration
}

// NewReadThroughCache wraps cache with loader fn.
func NewReadThroughCache[K comparable, V any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, key K) (V, error),
	ttl time.Duration,
) *ReadThroughCache[K, V] {
	return &ReadThroughCache[K, V]{cache: cache, fn: fn, ttl: ttl}
}

// Get returns the cached value or loads it.
func (r *ReadThroughCache[K, V]) Get(ctx context.Context, key K) (V, error) {
	if v, ok := r.cache.Get(ctx, key); ok {
		return v, nil
	}
	v, err := r.fn(ctx, key)
	if err != nil {
		return v, err
	}
	r.cache.Set(ctx, key, v, r.ttl)
	return v, nil
}

// Invalidate evicts keys so the next Get reloads them.
func (r *ReadThroughCache[K, V]) Invalidate(ctx context.Context, keys ...K) {
	_ = r.cache.Delete(ctx, keys...)
}

// Flush evicts every entry.
func (r *ReadThroughCache[K, V]) Flush(ctx context.Context) {
	_ = r.cache.Flush(ctx)
}
