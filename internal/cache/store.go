// Package cache holds computed listing payloads for a fixed time-to-live.
// Entries are never invalidated by catalog writes; readers accept up to one
// TTL of staleness.
package cache

import (
	"context"
	"net/url"
)

// Store is a byte-oriented key/value store with per-entry expiry fixed at
// construction.
type Store interface {
	// Get returns the stored value and whether a live entry existed.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set upserts key; the entry expires one TTL after this call.
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Key identifies a listing computation.
type Key struct {
	Intent string
	Params url.Values
}

// String renders the key with parameters in sorted order, so equal filters
// map to the same entry regardless of how the request spelled them.
func (k Key) String() string {
	if len(k.Params) == 0 {
		return "catalog:" + k.Intent
	}
	return "catalog:" + k.Intent + "?" + k.Params.Encode()
}
