package proxybuilder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gezibash/arc-node/internal/observability"
	"github.com/gezibash/arc-node/pkg/arbitration"
	"github.com/gezibash/arc-node/pkg/discovery"
	"github.com/gezibash/arc-node/pkg/logging"
	"github.com/gezibash/arc-node/pkg/runtime"
)

const defaultMessagingMaximumTtlMs int64 = 2_592_000_000 // 30 days

// ArbitratorFactory constructs an Arbitrator for one build attempt,
// scoped to a single (domain, interfaceName, version) triple.
type ArbitratorFactory func(domain, interfaceName string, version discovery.Version, discoveryProxy arbitration.DiscoveryLookup, qos discovery.DiscoveryQos) (arbitration.Arbitrator, error)

// Builder orchestrates arbitration, proxy creation, and router
// registration for a single typed proxy T. One Builder produces
// independent proxies across multiple BuildAsync calls; all share the
// builder's configured messaging/discovery QoS and are tracked together
// for Stop.
type Builder[T Proxy] struct {
	domain        string
	interfaceName string
	version       discovery.Version

	weakRuntime       *WeakRuntimeRef
	discoveryProxy    arbitration.DiscoveryLookup
	arbitratorFactory ArbitratorFactory
	proxyFactory      Factory[T]
	router            MessageRouter
	dispatcherAddress string

	maxTtlMs                  int64
	defaultDiscoveryTimeoutMs int64
	defaultRetryIntervalMs    int64

	metrics *observability.Metrics
	log     *logging.Logger

	mu           sync.Mutex
	messagingQos discovery.MessagingQos
	discoveryQos discovery.DiscoveryQos
	arbitrators  map[arbitration.Arbitrator]struct{}

	state atomic.Int32
}

// Config groups the collaborators a Builder needs. version/interfaceName
// are supplied explicitly rather than derived from T, since no instance
// of T exists until after arbitration succeeds.
type Config[T Proxy] struct {
	Domain            string
	InterfaceName     string
	Version           discovery.Version
	Runtime           *runtime.Runtime
	DiscoveryProxy    arbitration.DiscoveryLookup
	ArbitratorFactory ArbitratorFactory
	ProxyFactory      Factory[T]
	Router            MessageRouter
	DispatcherAddress string
	MaxTtlMs          int64
	Metrics           *observability.Metrics
	Log               *logging.Logger
}

// NewBuilder creates an Idle builder from cfg. Until Set* is called,
// MessagingQos is its zero value and DiscoveryQos is the zero value with
// DiscoveryTimeoutMs and RetryIntervalMs set to NoValue (runtime defaults).
func NewBuilder[T Proxy](cfg Config[T]) *Builder[T] {
	log := cfg.Log
	if log == nil {
		log = logging.New(nil)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	maxTtl := cfg.MaxTtlMs
	if maxTtl <= 0 {
		maxTtl = defaultMessagingMaximumTtlMs
	}
	b := &Builder[T]{
		domain:                    cfg.Domain,
		interfaceName:             cfg.InterfaceName,
		version:                   cfg.Version,
		weakRuntime:               NewWeakRuntimeRef(cfg.Runtime),
		discoveryProxy:            cfg.DiscoveryProxy,
		arbitratorFactory:         cfg.ArbitratorFactory,
		proxyFactory:              cfg.ProxyFactory,
		router:                    cfg.Router,
		dispatcherAddress:         cfg.DispatcherAddress,
		maxTtlMs:                  maxTtl,
		defaultDiscoveryTimeoutMs: 30000,
		defaultRetryIntervalMs:    1000,
		metrics:                   metrics,
		log:                       log,
		arbitrators:               make(map[arbitration.Arbitrator]struct{}),
		discoveryQos:              discovery.DiscoveryQos{DiscoveryTimeoutMs: discovery.NoValue, RetryIntervalMs: discovery.NoValue},
	}
	return b
}

// SetMessagingQos stores q, clamping TtlMs to the builder's configured
// maximum.
func (b *Builder[T]) SetMessagingQos(q discovery.MessagingQos) *Builder[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messagingQos = q.Clamp(b.maxTtlMs)
	return b
}

// SetDiscoveryQos stores q, replacing any NoValue field with the
// builder's defaults.
func (b *Builder[T]) SetDiscoveryQos(q discovery.DiscoveryQos) *Builder[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.discoveryQos = q.ApplyDefaults(b.defaultDiscoveryTimeoutMs, b.defaultRetryIntervalMs)
	return b
}

func (b *Builder[T]) snapshotQos() (discovery.MessagingQos, discovery.DiscoveryQos) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messagingQos, b.discoveryQos
}

// transition moves the builder to s unless it is already ShuttingDown:
// state transitions are monotonic and ShuttingDown is a sink.
func (b *Builder[T]) transition(s State) {
	for {
		cur := b.state.Load()
		if State(cur) == StateShuttingDown {
			return
		}
		if b.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (b *Builder[T]) trackArbitrator(a arbitration.Arbitrator) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if State(b.state.Load()) == StateShuttingDown {
		return false
	}
	b.arbitrators[a] = struct{}{}
	return true
}

func (b *Builder[T]) untrackArbitrator(a arbitration.Arbitrator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.arbitrators, a)
}

// BuildAsync starts one arbitration attempt. Exactly one of onSuccess or
// onError is invoked. Failures detected before arbitration starts (runtime
// destroyed, builder stopped, arbitrator creation error) call onError
// synchronously on the caller's goroutine; later outcomes are delivered on
// the arbitrator's or the router's callback goroutine. BuildAsync itself
// never blocks and never panics on caller input.
func (b *Builder[T]) BuildAsync(onSuccess func(T), onError func(error)) {
	op, _ := observability.StartOperation(context.Background(), b.metrics, "proxybuilder.build",
		attribute.String("domain", b.domain), attribute.String("interface", b.interfaceName))

	succeed := func(p T) {
		b.log.Info("proxy build succeeded", "domain", b.domain, "interface", b.interfaceName, "participantId", p.ProxyParticipantID())
		onSuccess(p)
	}
	fail := func(err error) {
		b.log.Warn("proxy build failed", "domain", b.domain, "interface", b.interfaceName, "error", err.Error())
		onError(err)
	}

	rt, ok := b.weakRuntime.Upgrade()
	if !ok || State(b.state.Load()) == StateShuttingDown {
		err := newDiscoveryException(ErrRuntimeAlreadyDestroyed)
		op.End(err)
		fail(err)
		return
	}

	b.transition(StateBuilding)
	messagingQos, discoveryQos := b.snapshotQos()

	arb, err := b.arbitratorFactory(b.domain, b.interfaceName, b.version, b.discoveryProxy, discoveryQos)
	if err != nil {
		wrapped := newDiscoveryException(fmt.Sprintf("could not create arbitrator: %s", err))
		b.transition(StateFailed)
		op.End(wrapped)
		fail(wrapped)
		return
	}

	if !b.trackArbitrator(arb) {
		err := newDiscoveryException(ErrRuntimeAlreadyDestroyed)
		b.transition(StateFailed)
		op.End(err)
		fail(err)
		return
	}

	arb.StartArbitration(
		func(entry discovery.DiscoveryEntryWithMetaInfo) {
			b.untrackArbitrator(arb)
			b.onArbitrationSucceeded(rt, entry, messagingQos, op, succeed, fail)
		},
		func(arbErr error) {
			b.untrackArbitrator(arb)
			b.transition(StateFailed)
			wrapped := newDiscoveryException(arbErr.Error())
			op.End(wrapped)
			fail(wrapped)
		},
	)
}

func (b *Builder[T]) onArbitrationSucceeded(rt *runtime.Runtime, entry discovery.DiscoveryEntryWithMetaInfo, messagingQos discovery.MessagingQos, op *observability.Operation, onSuccess func(T), onError func(error)) {
	// An arbitration success racing Stop must not reach the proxy
	// factory or the router.
	if State(b.state.Load()) == StateShuttingDown {
		err := newDiscoveryException("proxy build cancelled: builder stopped")
		op.End(err)
		onError(err)
		return
	}

	if entry.ParticipantID == "" {
		err := newDiscoveryException("arbitration reported success with empty participantId")
		b.transition(StateFailed)
		op.End(err)
		onError(err)
		return
	}

	if _, ok := b.weakRuntime.Upgrade(); !ok {
		err := newDiscoveryException(ErrRuntimeAlreadyDestroyed)
		b.transition(StateFailed)
		op.End(err)
		onError(err)
		return
	}

	proxy, err := b.proxyFactory(rt, b.domain, messagingQos)
	if err != nil {
		wrapped := newDiscoveryException(fmt.Sprintf("could not create proxy: %s", err))
		b.transition(StateFailed)
		op.End(wrapped)
		onError(wrapped)
		return
	}
	proxy.HandleArbitrationFinished(entry)

	b.router.SetToKnown(entry.ParticipantID)
	b.router.AddNextHop(
		proxy.ProxyParticipantID(),
		b.dispatcherAddress,
		!entry.IsLocal,
		MaxInt64ExpiryMs,
		false,
		func() {
			b.transition(StateSucceeded)
			op.End(nil)
			onSuccess(proxy)
		},
		func(routeErr error) {
			wrapped := newDiscoveryException(fmt.Sprintf("proxy could not be added to parent router: %s", routeErr))
			b.transition(StateFailed)
			op.End(wrapped)
			onError(wrapped)
		},
	)
}

// Build is the synchronous wrapper around BuildAsync: it blocks until
// the attempt resolves and returns the proxy or the terminal error.
func (b *Builder[T]) Build() (T, error) {
	type result struct {
		proxy T
		err   error
	}
	done := make(chan result, 1)
	b.BuildAsync(
		func(p T) { done <- result{proxy: p} },
		func(err error) { done <- result{err: err} },
	)
	r := <-done
	return r.proxy, r.err
}

// Stop transitions the builder to ShuttingDown, stops every currently
// registered arbitrator, and clears the tracked list. Idempotent.
func (b *Builder[T]) Stop() {
	b.mu.Lock()
	b.state.Store(int32(StateShuttingDown))
	arbitrators := make([]arbitration.Arbitrator, 0, len(b.arbitrators))
	for a := range b.arbitrators {
		arbitrators = append(arbitrators, a)
	}
	b.arbitrators = make(map[arbitration.Arbitrator]struct{})
	b.mu.Unlock()

	for _, a := range arbitrators {
		a.StopArbitration()
	}
}

// State returns the builder's current lifecycle state.
func (b *Builder[T]) State() State {
	return State(b.state.Load())
}
