package proxybuilder

import (
	"sync"
	"sync/atomic"

	"github.com/gezibash/arc-node/pkg/runtime"
)

// WeakRuntimeRef is a non-owning handle to a *runtime.Runtime: the
// pointer paired with a destroyed flag flipped by the runtime's own
// Close via OnClose. Callbacks upgrade the handle on every entry and
// abort once the runtime starts shutting down.
type WeakRuntimeRef struct {
	mu        sync.Mutex
	rt        *runtime.Runtime
	destroyed atomic.Bool
}

// NewWeakRuntimeRef wraps rt and registers a close hook that marks the
// reference destroyed.
func NewWeakRuntimeRef(rt *runtime.Runtime) *WeakRuntimeRef {
	w := &WeakRuntimeRef{rt: rt}
	rt.OnClose(func() error {
		w.destroyed.Store(true)
		return nil
	})
	return w
}

// Upgrade returns the runtime and true if it has not been destroyed yet.
func (w *WeakRuntimeRef) Upgrade() (*runtime.Runtime, bool) {
	if w.destroyed.Load() {
		return nil, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.destroyed.Load() {
		return nil, false
	}
	return w.rt, true
}
