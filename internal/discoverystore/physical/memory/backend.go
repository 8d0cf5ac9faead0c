// Package memory provides an in-process map-backed discovery cache.
// Suitable for tests and single-process deployments; state does not
// survive a restart.
package memory

import (
	"context"
	"sync"

	"github.com/gezibash/arc-node/internal/discoverystore/physical"
)

func init() {
	physical.Register("memory", NewFactory, Defaults)
}

// Defaults returns the default configuration for the memory backend (none).
func Defaults() map[string]string {
	return map[string]string{}
}

// NewFactory creates a new memory backend. Config is ignored.
func NewFactory(_ context.Context, _ map[string]string) (physical.Backend, error) {
	return New(), nil
}

// Backend is an in-memory physical.Backend implementation.
type Backend struct {
	mu      sync.RWMutex
	entries map[string]*physical.Entry
	closed  bool
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{entries: make(map[string]*physical.Entry)}
}

func (b *Backend) Put(_ context.Context, entry *physical.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return physical.ErrClosed
	}

	stored := *entry
	stored.Entries = append([][]byte(nil), entry.Entries...)
	b.entries[entry.Key] = &stored
	return nil
}

func (b *Backend) Get(_ context.Context, key string) (*physical.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, physical.ErrClosed
	}

	entry, ok := b.entries[key]
	if !ok {
		return nil, physical.ErrNotFound
	}
	out := *entry
	out.Entries = append([][]byte(nil), entry.Entries...)
	return &out, nil
}

func (b *Backend) Invalidate(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return physical.ErrClosed
	}
	delete(b.entries, key)
	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.entries = nil
	return nil
}
