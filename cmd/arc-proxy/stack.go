package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-node/internal/config"
	"github.com/gezibash/arc-node/internal/discoverystore/physical"
	_ "github.com/gezibash/arc-node/internal/discoverystore/physical/badger"
	_ "github.com/gezibash/arc-node/internal/discoverystore/physical/memory"
	_ "github.com/gezibash/arc-node/internal/discoverystore/physical/redis"
	_ "github.com/gezibash/arc-node/internal/discoverystore/physical/sqlite"
	"github.com/gezibash/arc-node/internal/keyring"
	"github.com/gezibash/arc-node/internal/observability"
	"github.com/gezibash/arc-node/internal/router"
	"github.com/gezibash/arc-node/pkg/arbitration"
	"github.com/gezibash/arc-node/pkg/discovery"
	"github.com/gezibash/arc-node/pkg/logging"
	"github.com/gezibash/arc-node/pkg/proxybuilder"
	"github.com/gezibash/arc-node/pkg/runtime"
)

// stack is the in-process provider fleet the CLI binds proxies against:
// a discovery registry fronted by the local aggregator, an in-process
// router, and a runtime carrying the CLI's identity.
type stack struct {
	Runtime  *runtime.Runtime
	Registry *discovery.Registry
	Router   *router.Router
	Agg      *discovery.Aggregator
	Metrics  *observability.Metrics
}

func newStack(ctx context.Context, v *viper.Viper, cacheBackend string) (*stack, error) {
	dataDir := v.GetString("data_dir")
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}

	rt, err := runtime.New("arc-proxy").
		DataDir(dataDir).
		Logging(v.GetString("observability.log_level"), "text").
		IdentityProvider(keyring.New(dataDir).Provider("proxy")).
		Build()
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()

	cache, err := physical.New(ctx, cacheBackend, cacheConfig(cacheBackend, rt), metrics)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	rtr := router.New()
	registry := discovery.NewRegistry()

	agg := discovery.NewAggregator(nil, nil, rtr, cache, logging.New(nil), func() int64 {
		return time.Now().UnixMilli()
	})
	agg.SetMetrics(metrics)
	agg.SetDiscoveryProxy(registry)
	rt.OnClose(agg.Close)

	return &stack{
		Runtime:  rt,
		Registry: registry,
		Router:   rtr,
		Agg:      agg,
		Metrics:  metrics,
	}, nil
}

func cacheConfig(backend string, rt *runtime.Runtime) map[string]string {
	switch backend {
	case "badger":
		return map[string]string{"path": rt.DataPath("proxy", "cache")}
	case "sqlite":
		return map[string]string{"path": rt.DataPath("proxy", "cache.db")}
	default:
		return nil
	}
}

func (s *stack) Close() error {
	return s.Runtime.Close()
}

// SeedProviders registers n providers for domain/interfaceName with
// spread priorities and last-seen times. Every third provider is marked
// known to the router, so its entries surface the in-process connection.
func (s *stack) SeedProviders(ctx context.Context, domain, interfaceName string, n int) []string {
	ids := make([]string, 0, n)
	now := time.Now().UnixMilli()

	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("%s.provider-%d", domain, i)
		entry := discovery.DiscoveryEntry{
			Version:       discovery.Version{Major: 1, Minor: 0},
			Domain:        domain,
			InterfaceName: interfaceName,
			ParticipantID: id,
			ProviderQos: discovery.ProviderQos{
				Priority:                      int64(i),
				Scope:                         discovery.ProviderScopeLocal,
				SupportsOnChangeSubscriptions: i%2 == 0,
			},
			LastSeenMs:  now - int64(n-i)*1000,
			ExpiryMs:    -1,
			Connections: []discovery.Connection{discovery.ConnectionLocalBus, discovery.ConnectionGlobalBus},
		}
		s.Registry.Add(ctx, entry)
		if i%3 == 0 {
			s.Router.SetToKnown(id)
		}
		ids = append(ids, id)
	}
	return ids
}

// demoProxy is the typed proxy the CLI binds: it records the arbitrated
// provider and routes nothing, since the CLI only demonstrates binding.
type demoProxy struct {
	participantID string
	interfaceName string
	entry         discovery.DiscoveryEntryWithMetaInfo
}

func (p *demoProxy) InterfaceName() string { return p.interfaceName }
func (p *demoProxy) MajorVersion() uint32  { return 1 }
func (p *demoProxy) MinorVersion() uint32  { return 0 }
func (p *demoProxy) HandleArbitrationFinished(entry discovery.DiscoveryEntryWithMetaInfo) {
	p.entry = entry
}
func (p *demoProxy) ProxyParticipantID() string { return p.participantID }

// NewBuilder assembles a proxy builder over this stack for
// domain/interfaceName.
func (s *stack) NewBuilder(domain, interfaceName string) *proxybuilder.Builder[*demoProxy] {
	return proxybuilder.NewBuilder(proxybuilder.Config[*demoProxy]{
		Domain:         domain,
		InterfaceName:  interfaceName,
		Version:        discovery.Version{Major: 1, Minor: 0},
		Runtime:        s.Runtime,
		DiscoveryProxy: s.Agg,
		ArbitratorFactory: func(domain, interfaceName string, _ discovery.Version, lookup arbitration.DiscoveryLookup, qos discovery.DiscoveryQos) (arbitration.Arbitrator, error) {
			return arbitration.New(lookup, domain, interfaceName, qos)
		},
		ProxyFactory: func(_ *runtime.Runtime, _ string, _ discovery.MessagingQos) (*demoProxy, error) {
			return &demoProxy{
				participantID: uuid.NewString(),
				interfaceName: interfaceName,
			}, nil
		},
		Router:            s.Router,
		DispatcherAddress: "in-process://arc-proxy",
		Metrics:           s.Metrics,
		Log:               logging.New(nil),
	})
}

// parseStrategy maps a CLI strategy name onto the arbitration strategy
// enum. Empty input selects the last-seen default.
func parseStrategy(name string) (discovery.ArbitrationStrategy, error) {
	switch name {
	case "", "lastseen":
		return discovery.StrategyLastSeen, nil
	case "fixed":
		return discovery.StrategyFixedParticipant, nil
	case "priority":
		return discovery.StrategyHighestPriority, nil
	case "keyword":
		return discovery.StrategyKeyword, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q (lastseen, fixed, priority, keyword)", name)
	}
}
