package cache

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(300*time.Second, 0)
	defer s.Close()

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v1")))

	now = now.Add(299 * time.Second)
	got, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	now = now.Add(time.Second)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry must be gone exactly one TTL after insertion")
}

func TestMemoryStoreOverwriteResetsTTL(t *testing.T) {
	s := NewMemoryStore(time.Minute, 0)
	defer s.Close()

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("old")))
	now = now.Add(50 * time.Second)
	require.NoError(t, s.Set(ctx, "k", []byte("new")))
	now = now.Add(50 * time.Second)

	got, ok, _ := s.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("new"), got)
}

func TestMemoryStoreSweep(t *testing.T) {
	s := NewMemoryStore(time.Minute, 0)
	defer s.Close()

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	now = now.Add(30 * time.Second)
	require.NoError(t, s.Set(ctx, "b", []byte("2")))
	now = now.Add(40 * time.Second)

	s.sweep()
	assert.Equal(t, 1, s.Len())
	_, ok, _ := s.Get(ctx, "b")
	assert.True(t, ok)
}

func TestMemoryStoreCloseIsIdempotent(t *testing.T) {
	s := NewMemoryStore(time.Minute, time.Millisecond)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "catalog:new-arrivals", Key{Intent: "new-arrivals"}.String())

	a := Key{Intent: "all", Params: url.Values{"includeImages": {"true"}, "category": {"3"}}}
	b := Key{Intent: "all", Params: url.Values{"category": {"3"}, "includeImages": {"true"}}}
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, "catalog:all?category=3&includeImages=true", a.String())

	assert.NotEqual(t, a.String(), Key{Intent: "all", Params: url.Values{"category": {"4"}}}.String())
}
