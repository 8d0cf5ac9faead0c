// Package physical defines the pluggable cache backend used by the Local
// Discovery Aggregator to avoid re-querying the remote discovery proxy
// within a lookup's cacheMaxAgeMs window. The cache is never
// authoritative: a miss or a backend error always falls through to the
// remote proxy.
package physical

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates no cache entry exists for the requested key.
	ErrNotFound = errors.New("discoverystore: entry not found")

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("discoverystore: backend closed")
)

// Entry is the unit of cache storage: a raw (unannotated) lookup result
// for a domain/interface pair together with the time it was cached.
type Entry struct {
	Key        string // domain + "\x00" + interfaceName
	Entries    [][]byte // caller-serialized DiscoveryEntry values
	CachedAtMs int64
}

// Backend is the cache storage interface. All implementations must be
// thread-safe.
type Backend interface {
	// Put stores entry, overwriting any existing value for entry.Key.
	Put(ctx context.Context, entry *Entry) error

	// Get returns the cached entry for key, or ErrNotFound if absent.
	Get(ctx context.Context, key string) (*Entry, error)

	// Invalidate removes any cached entry for key. A no-op if absent.
	Invalidate(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}
