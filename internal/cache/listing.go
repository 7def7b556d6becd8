package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/storefront/catalog-service/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ComputeTimeout bounds a shared computation. It runs detached from the
// request that started it, so one caller going away does not fail the others.
const ComputeTimeout = 30 * time.Second

// Listing fronts a Store with JSON encoding, metrics and miss collapsing.
// Store failures are logged and treated as misses.
type Listing struct {
	store   Store
	group   singleflight.Group
	timeout time.Duration
	metrics *metrics.AppMetrics
	logger  *zap.Logger
}

// NewListing creates a listing cache over store.
func NewListing(store Store, m *metrics.AppMetrics, logger *zap.Logger) *Listing {
	return &Listing{store: store, timeout: ComputeTimeout, metrics: m, logger: logger}
}

// ComputeFunc produces a listing. A false cacheable result is returned to the
// caller but not stored.
type ComputeFunc[T any] func(ctx context.Context) (value T, cacheable bool, err error)

// Fetch returns the cached value for key or computes it. Concurrent misses on
// one key share a single computation; each caller stops waiting when its own
// ctx is done. A compute error is returned and leaves
// any previous entry untouched.
func Fetch[T any](ctx context.Context, l *Listing, key Key, compute ComputeFunc[T]) (T, error) {
	k := key.String()

	if v, ok := lookup[T](ctx, l, k); ok {
		l.metrics.RecordCacheLookup(ctx, key.Intent, true)
		return v, nil
	}
	l.metrics.RecordCacheLookup(ctx, key.Intent, false)

	ch := l.group.DoChan(k, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		v, cacheable, err := compute(shared)
		if err != nil {
			return nil, err
		}
		if cacheable {
			l.put(shared, k, v)
		}
		return v, nil
	})

	var zero T
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, res.Err
	}
	v, ok := res.Val.(T)
	if !ok {
		return zero, fmt.Errorf("cache: unexpected %T for %s", res.Val, k)
	}
	return v, nil
}

func lookup[T any](ctx context.Context, l *Listing, key string) (T, bool) {
	var v T
	data, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.logger.Warn("listing cache read failed", zap.String("key", key), zap.Error(err))
		return v, false
	}
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		l.logger.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return v, false
	}
	return v, true
}

func (l *Listing) put(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l.logger.Warn("listing not cacheable", zap.String("key", key), zap.Error(err))
		return
	}
	if err := l.store.Set(ctx, key, data); err != nil {
		l.logger.Warn("listing cache write failed", zap.String("key", key), zap.Error(err))
	}
}
