package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storefront/catalog-service/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type payload struct {
	IDs   []int64 `json:"ids"`
	Price float64 `json:"price"`
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("read failed")
}
func (brokenStore) Set(context.Context, string, []byte) error { return errors.New("write failed") }
func (brokenStore) Close() error                              { return nil }

func newListing(t *testing.T, store Store) *Listing {
	return NewListing(store, metrics.Noop("test"), zaptest.NewLogger(t))
}

func TestFetchHitReturnsStoredComputation(t *testing.T) {
	store := NewMemoryStore(time.Minute, 0)
	defer store.Close()
	l := newListing(t, store)
	ctx := context.Background()
	key := Key{Intent: "flash-deals"}

	calls := 0
	compute := func(context.Context) (payload, bool, error) {
		calls++
		return payload{IDs: []int64{3, 1}, Price: 19.99}, true, nil
	}

	first, err := Fetch(ctx, l, key, compute)
	require.NoError(t, err)
	stored, ok, _ := store.Get(ctx, key.String())
	require.True(t, ok)

	second, err := Fetch(ctx, l, key, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	again, _, _ := store.Get(ctx, key.String())
	assert.Equal(t, stored, again)
}

func TestFetchRecomputesAfterExpiry(t *testing.T) {
	store := NewMemoryStore(time.Minute, 0)
	defer store.Close()
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	l := newListing(t, store)

	calls := 0
	compute := func(context.Context) (payload, bool, error) {
		calls++
		return payload{IDs: []int64{1}}, true, nil
	}

	_, err := Fetch(context.Background(), l, Key{Intent: "all"}, compute)
	require.NoError(t, err)
	now = now.Add(time.Minute)
	_, err = Fetch(context.Background(), l, Key{Intent: "all"}, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFetchErrorKeepsPreviousEntry(t *testing.T) {
	store := NewMemoryStore(time.Minute, 0)
	defer store.Close()
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	l := newListing(t, store)
	ctx := context.Background()
	key := Key{Intent: "best-sellers"}

	require.NoError(t, store.Set(ctx, key.String(), []byte(`{"ids":[9]}`)))
	now = now.Add(2 * time.Minute)

	boom := errors.New("db down")
	_, err := Fetch(ctx, l, key, func(context.Context) (payload, bool, error) {
		return payload{}, false, boom
	})
	assert.ErrorIs(t, err, boom)

	store.mu.RLock()
	prior, ok := store.items[key.String()]
	store.mu.RUnlock()
	assert.True(t, ok)
	assert.Equal(t, []byte(`{"ids":[9]}`), prior.value)
}

func TestFetchSkipsUncacheable(t *testing.T) {
	store := NewMemoryStore(time.Minute, 0)
	defer store.Close()
	l := newListing(t, store)

	got, err := Fetch(context.Background(), l, Key{Intent: "all"},
		func(context.Context) (payload, bool, error) { return payload{IDs: []int64{4}}, false, nil })
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, got.IDs)
	assert.Zero(t, store.Len())
}

func TestFetchToleratesBrokenStore(t *testing.T) {
	l := newListing(t, brokenStore{})

	got, err := Fetch(context.Background(), l, Key{Intent: "all"},
		func(context.Context) (payload, bool, error) { return payload{IDs: []int64{2}}, true, nil })
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, got.IDs)
}

func TestFetchDiscardsUndecodableEntry(t *testing.T) {
	store := NewMemoryStore(time.Minute, 0)
	defer store.Close()
	l := newListing(t, store)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "catalog:all", []byte("not json")))

	got, err := Fetch(ctx, l, Key{Intent: "all"},
		func(context.Context) (payload, bool, error) { return payload{IDs: []int64{5}}, true, nil })
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, got.IDs)
}

func TestFetchCollapsesConcurrentMisses(t *testing.T) {
	store := NewMemoryStore(time.Minute, 0)
	defer store.Close()
	l := newListing(t, store)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (payload, bool, error) {
		calls.Add(1)
		<-release
		return payload{IDs: []int64{1}}, true, nil
	}

	const callers = 8
	var started, wg sync.WaitGroup
	started.Add(callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			started.Done()
			_, err := Fetch(context.Background(), l, Key{Intent: "new-arrivals"}, compute)
			assert.NoError(t, err)
		}()
	}
	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchFollowerSurvivesLeaderCancel(t *testing.T) {
	store := NewMemoryStore(time.Minute, 0)
	defer store.Close()
	l := newListing(t, store)
	key := Key{Intent: "best-sellers"}

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var computeErr error
	compute := func(ctx context.Context) (payload, bool, error) {
		once.Do(func() { close(started) })
		<-release
		computeErr = ctx.Err()
		return payload{IDs: []int64{7}}, true, nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, err := Fetch(leaderCtx, l, key, compute)
		leaderDone <- err
	}()
	<-started

	type result struct {
		v   payload
		err error
	}
	followerDone := make(chan result, 1)
	go func() {
		v, err := Fetch(context.Background(), l, key, compute)
		followerDone <- result{v, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderDone, context.Canceled)

	close(release)
	got := <-followerDone
	require.NoError(t, got.err)
	assert.Equal(t, []int64{7}, got.v.IDs)
	assert.NoError(t, computeErr)

	_, ok, _ := store.Get(context.Background(), key.String())
	assert.True(t, ok)
}
