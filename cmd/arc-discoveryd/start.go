package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

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
	"github.com/gezibash/arc-node/pkg/identity"
	"github.com/gezibash/arc-node/pkg/logging"
	"github.com/gezibash/arc-node/pkg/proxybuilder"
	"github.com/gezibash/arc-node/pkg/runtime"
)

func newStartCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the discovery daemon",
		Long: `Start the discovery daemon.

The daemon hosts the discovery registry, seeds provisioned entries for
the discovery and routing system services, and fronts the registry with
the local discovery aggregator and its cache backend.

Examples:
  arc-discoveryd start                          # default settings
  arc-discoveryd start --cache-backend memory   # no durable cache
  arc-discoveryd start --log-level debug        # debug logging`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(v, configFile)
			if err != nil {
				return err
			}
			return start(cmd.Context(), cfg)
		},
	}

	bindStartFlags(cmd, v)
	return cmd
}

func start(ctx context.Context, cfg Config) error {
	obs, err := observability.New(ctx, observability.ObsConfig{
		LogLevel:       cfg.Observability.LogLevel,
		LogFormat:      cfg.Observability.LogFormat,
		OTLPEndpoint:   cfg.Observability.OTLPEndpoint,
		OTLPProtocol:   cfg.Observability.OTLPProtocol,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
	}, os.Stdout)
	if err != nil {
		return err
	}

	dataDir := cfg.ResolvedDataDir()
	rt, err := runtime.New("arc-discoveryd").
		DataDir(dataDir).
		Logging(cfg.Observability.LogLevel, cfg.Observability.LogFormat).
		IdentityProvider(identityProvider(cfg, dataDir)).
		Build()
	if err != nil {
		return err
	}
	defer rt.Close()

	log := rt.Log().WithComponent("discoveryd")

	cache, err := physical.New(ctx, cfg.Cache.Backend, cacheConfig(cfg, rt), obs.Metrics)
	if err != nil {
		return err
	}

	rtr := router.New()
	registry := discovery.NewRegistry()

	seeds := systemSeeds(cfg)
	agg := discovery.NewAggregator(nil, discovery.NewProvisionedEntries(seeds...), rtr, cache, logging.New(nil), nowMs)
	agg.SetMetrics(obs.Metrics)
	agg.SetDiscoveryProxy(registry)
	rt.OnClose(agg.Close)

	// The system services live in this process: mark them known so
	// lookups against them carry the in-process connection, and register
	// them so interface lookups (and arbitration) can find them.
	for _, s := range seeds {
		rtr.SetToKnown(s.ParticipantID)
		registry.Add(ctx, discovery.DiscoveryEntry{
			Version:       s.Version,
			Domain:        s.Domain,
			InterfaceName: s.InterfaceName,
			ParticipantID: s.ParticipantID,
			ProviderQos:   s.ProviderQos,
			LastSeenMs:    nowMs(),
			ExpiryMs:      -1,
		})
	}

	if err := selfCheck(rt, cfg, agg, rtr); err != nil {
		return err
	}

	obs.ServeMetrics(ctx, cfg.Observability.MetricsAddr)

	log.Info("discovery daemon started",
		"domain", cfg.Discovery.Domain,
		"cache_backend", cfg.Cache.Backend,
		"metrics_addr", cfg.Observability.MetricsAddr,
	)

	go reportLoop(rt, registry, rtr, log)

	rt.Wait()
	return obs.Close(context.Background())
}

func identityProvider(cfg Config, dataDir string) identity.Provider {
	if cfg.KeyPath != "" {
		return identity.ProviderFunc(func(context.Context) (identity.Signer, error) {
			key, err := keyring.LoadFile(cfg.KeyPath)
			if err != nil {
				return nil, err
			}
			return key.Keypair, nil
		})
	}
	return keyring.New(dataDir).Provider(cfg.KeyName)
}

// cacheConfig routes embedded backends at the daemon's data directory
// unless an explicit path was configured.
func cacheConfig(cfg Config, rt *runtime.Runtime) map[string]string {
	out := make(map[string]string, len(cfg.Cache.Config)+1)
	for k, val := range cfg.Cache.Config {
		out[k] = val
	}
	if out["path"] == "" {
		switch cfg.Cache.Backend {
		case "badger":
			out["path"] = rt.DataPath("discoveryd", "cache")
		case "sqlite":
			out["path"] = rt.DataPath("discoveryd", "cache.db")
		}
	}
	return out
}

func systemSeeds(cfg Config) []discovery.Seed {
	qos := discovery.ProviderQos{
		Priority:                      1,
		Scope:                         discovery.ProviderScopeLocal,
		SupportsOnChangeSubscriptions: true,
	}
	return []discovery.Seed{
		{
			ParticipantID: cfg.Discovery.DiscoveryParticipantID,
			Domain:        cfg.Discovery.Domain,
			InterfaceName: cfg.Discovery.DiscoveryInterface,
			Version:       discovery.Version{Major: 1, Minor: 0},
			ProviderQos:   qos,
		},
		{
			ParticipantID: cfg.Discovery.RoutingParticipantID,
			Domain:        cfg.Discovery.Domain,
			InterfaceName: cfg.Discovery.RoutingInterface,
			Version:       discovery.Version{Major: 1, Minor: 0},
			ProviderQos:   qos,
		},
	}
}

// systemProxy is the proxy type the daemon binds to its own discovery
// provider during the startup self-check.
type systemProxy struct {
	participantID string
	entry         discovery.DiscoveryEntryWithMetaInfo
}

func (p *systemProxy) InterfaceName() string { return "system/Discovery" }
func (p *systemProxy) MajorVersion() uint32  { return 1 }
func (p *systemProxy) MinorVersion() uint32  { return 0 }
func (p *systemProxy) HandleArbitrationFinished(entry discovery.DiscoveryEntryWithMetaInfo) {
	p.entry = entry
}
func (p *systemProxy) ProxyParticipantID() string { return p.participantID }

// selfCheck builds a proxy against the daemon's own discovery provider.
// If the pipeline cannot resolve the provisioned discovery service the
// daemon is misconfigured and refuses to start.
func selfCheck(rt *runtime.Runtime, cfg Config, agg *discovery.Aggregator, rtr *router.Router) error {
	builder := proxybuilder.NewBuilder(proxybuilder.Config[*systemProxy]{
		Domain:         cfg.Discovery.Domain,
		InterfaceName:  cfg.Discovery.DiscoveryInterface,
		Version:        discovery.Version{Major: 1, Minor: 0},
		Runtime:        rt,
		DiscoveryProxy: agg,
		ArbitratorFactory: func(domain, interfaceName string, _ discovery.Version, lookup arbitration.DiscoveryLookup, qos discovery.DiscoveryQos) (arbitration.Arbitrator, error) {
			return arbitration.New(lookup, domain, interfaceName, qos)
		},
		ProxyFactory: func(_ *runtime.Runtime, _ string, _ discovery.MessagingQos) (*systemProxy, error) {
			return &systemProxy{participantID: uuid.NewString()}, nil
		},
		Router:            rtr,
		DispatcherAddress: "in-process://discoveryd",
		MaxTtlMs:          cfg.Discovery.MessagingMaximumTtlMs,
	})
	defer builder.Stop()

	builder.SetMessagingQos(discovery.MessagingQos{TtlMs: 5000})
	builder.SetDiscoveryQos(discovery.DiscoveryQos{
		DiscoveryTimeoutMs:  cfg.Discovery.DiscoveryTimeoutMs,
		RetryIntervalMs:     cfg.Discovery.RetryIntervalMs,
		ArbitrationStrategy: discovery.StrategyFixedParticipant,
		CustomParams: map[string]string{
			"fixedParticipantId": cfg.Discovery.DiscoveryParticipantID,
		},
	})

	proxy, err := builder.Build()
	if err != nil {
		return err
	}

	rt.Log().Info("self-check proxy bound",
		"provider", proxy.entry.ParticipantID,
		"isLocal", proxy.entry.IsLocal,
	)
	return nil
}

func reportLoop(rt *runtime.Runtime, registry *discovery.Registry, rtr *router.Router, log *logging.Logger) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-rt.Context().Done():
			return
		case <-ticker.C:
			log.Debug("directory state", "entries", registry.Count(), "hops", rtr.Count())
		}
	}
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
