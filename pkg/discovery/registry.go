package discovery

import (
	"context"
	"sync"
)

// Registry is a concrete, in-process Proxy implementation: the discovery
// service itself, as opposed to a client of it. A real deployment
// replaces it with a network-backed client without changing Aggregator
// or anything upstream of Proxy. cmd/arc-discoveryd hosts one of these
// directly.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]DiscoveryEntry
}

// NewRegistry creates an empty discovery registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]DiscoveryEntry)}
}

func (r *Registry) Add(_ context.Context, entry DiscoveryEntry) Status {
	if entry.ParticipantID == "" {
		return Err("participantId must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ParticipantID] = entry
	return OK()
}

func (r *Registry) LookupByInterface(_ context.Context, domain, interfaceName string, _ DiscoveryQos) ([]DiscoveryEntry, Status) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []DiscoveryEntry
	for _, e := range r.entries {
		if e.Domain == domain && e.InterfaceName == interfaceName {
			out = append(out, e)
		}
	}
	return out, OK()
}

func (r *Registry) LookupByParticipant(_ context.Context, participantID string) (DiscoveryEntry, Status) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[participantID]
	if !ok {
		return DiscoveryEntry{}, Err("no entry for participantId " + participantID)
	}
	return e, OK()
}

func (r *Registry) Remove(_ context.Context, participantID string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[participantID]; !ok {
		return Err("no entry for participantId " + participantID)
	}
	delete(r.entries, participantID)
	return OK()
}

// Count returns the number of registered entries. Used by
// cmd/arc-discoveryd's health/metrics surface.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
