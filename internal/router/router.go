// Package router provides a concrete, in-process implementation of the
// MessageRouter and RequestCallerDirectory contracts consumed by
// pkg/proxybuilder. It is a reference implementation: a real deployment
// replaces it with a network-aware router without changing the builder.
package router

import (
	"sync"
)

// Hop is the routing record installed by AddNextHop for a single
// participant id.
type Hop struct {
	Address           string
	IsGloballyVisible bool
	ExpiryMs          int64
	IsSticky          bool
}

// Router tracks which participant ids are known locally and how to reach
// each one. AddNextHop re-registration for the same participant id is
// last-write-wins: there is no defined merge semantics for two
// registrations of the same id, so the newer one simply replaces the
// older.
type Router struct {
	mu    sync.RWMutex
	known map[string]bool
	hops  map[string]Hop
}

// New creates an empty router.
func New() *Router {
	return &Router{
		known: make(map[string]bool),
		hops:  make(map[string]Hop),
	}
}

// SetToKnown marks participantId as locally resolvable, e.g. because it
// belongs to a provider hosted in this process.
func (r *Router) SetToKnown(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.known[participantID] = true
}

// IsKnown reports whether participantId was previously marked known.
func (r *Router) IsKnown(participantID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.known[participantID]
}

// AddNextHop records how to reach participantId. onSuccess/onError are
// invoked on a separate goroutine; cancelling the caller does not abort
// a call already in flight.
func (r *Router) AddNextHop(participantID, address string, isGloballyVisible bool, expiryMs int64, isSticky bool, onSuccess func(), onError func(error)) {
	go func() {
		if participantID == "" {
			if onError != nil {
				onError(errEmptyParticipantID)
			}
			return
		}

		r.mu.Lock()
		r.hops[participantID] = Hop{
			Address:           address,
			IsGloballyVisible: isGloballyVisible,
			ExpiryMs:          expiryMs,
			IsSticky:          isSticky,
		}
		r.mu.Unlock()

		if onSuccess != nil {
			onSuccess()
		}
	}()
}

// NextHop returns the routing record for participantId, if any.
func (r *Router) NextHop(participantID string) (Hop, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hop, ok := r.hops[participantID]
	return hop, ok
}

// ContainsRequestCaller implements RequestCallerDirectory: a participant
// id is a local request caller exactly when it has been marked known,
// i.e. it is a provider or proxy hosted in this process.
func (r *Router) ContainsRequestCaller(participantID string) bool {
	return r.IsKnown(participantID)
}

// Count returns the number of installed hops. Used by cmd/arc-discoveryd's
// health surface.
func (r *Router) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hops)
}
