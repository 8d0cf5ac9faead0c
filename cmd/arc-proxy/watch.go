package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-node/pkg/discovery"
	"github.com/gezibash/arc-node/pkg/multicast"
	"github.com/gezibash/arc-node/pkg/subscription"
)

func newWatchCmd(v *viper.Viper) *cobra.Command {
	var (
		providers   int
		cacheFlavor string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the binding pipeline live",
		Long: `Watch the binding pipeline live.

Seeds a provider fleet, then continuously re-arbitrates with rotating
strategies while providers churn and multicast receivers come and go.
Renders builder outcomes, routing table growth, and the multicast
receiver directory as they change.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newStack(cmd.Context(), v, cacheFlavor)
			if err != nil {
				return err
			}
			defer st.Close()

			st.SeedProviders(cmd.Context(), watchDomain, watchInterface, providers)

			sim := newSimulator(st, providers)
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sim.Start(ctx)

			p := tea.NewProgram(newWatchModel(st, sim), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}

	f := cmd.Flags()
	f.IntVar(&providers, "providers", 5, "number of providers to seed")
	f.StringVar(&cacheFlavor, "cache-backend", "memory", "discovery cache backend")

	return cmd
}

const (
	watchDomain    = "demo"
	watchInterface = "demo/Echo"
)

var multicastGroups = []string{
	"telemetry/positions",
	"telemetry/health",
	"events/alerts",
}

// buildRecord is one completed builder attempt shown in the TUI.
type buildRecord struct {
	Strategy   string
	Provider   string
	Connection string
	Err        error
	At         time.Time
}

// simulator drives background churn against the stack: provider
// last-seen refreshes, multicast receiver registration cycles, and
// builder attempts with rotating strategies.
type simulator struct {
	stack     *stack
	directory *multicast.Directory
	providers int

	mu     sync.Mutex
	builds []buildRecord
}

func newSimulator(st *stack, providers int) *simulator {
	return &simulator{
		stack:     st,
		directory: multicast.NewDirectory(),
		providers: providers,
	}
}

func (s *simulator) Start(ctx context.Context) {
	go s.providerLoop(ctx)
	go s.receiverLoop(ctx)
	go s.buildLoop(ctx)
}

// providerLoop refreshes one provider's last-seen time per tick, so
// last-seen arbitration visibly rotates across the fleet.
func (s *simulator) providerLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i = i%s.providers + 1
			id := fmt.Sprintf("%s.provider-%d", watchDomain, i)
			if entry, status := s.stack.Registry.LookupByParticipant(ctx, id); status.Code == discovery.StatusOK {
				entry.LastSeenMs = time.Now().UnixMilli()
				s.stack.Registry.Add(ctx, entry)
			}
		}
	}
}

// receiverLoop cycles receivers through the multicast groups:
// registration runs ahead of unregistration, so group sizes breathe.
func (s *simulator) receiverLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			group := multicastGroups[n%len(multicastGroups)]
			receiver := fmt.Sprintf("receiver-%d", n%7)
			if n%5 == 4 {
				s.directory.Unregister(group, receiver)
			} else {
				s.directory.Register(group, receiver)
			}
			n++
		}
	}
}

// buildLoop runs one builder attempt per tick, rotating strategies.
func (s *simulator) buildLoop(ctx context.Context) {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	strategies := []discovery.ArbitrationStrategy{
		discovery.StrategyLastSeen,
		discovery.StrategyHighestPriority,
		discovery.StrategyKeyword,
	}

	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			strat := strategies[n%len(strategies)]
			n++

			builder := s.stack.NewBuilder(watchDomain, watchInterface)
			builder.SetMessagingQos(discovery.MessagingQos{TtlMs: 5000})
			builder.SetDiscoveryQos(discovery.DiscoveryQos{
				DiscoveryTimeoutMs:  2000,
				RetryIntervalMs:     200,
				ArbitrationStrategy: strat,
				CustomParams:        map[string]string{"expression": "priority >= 2"},
			})

			record := buildRecord{Strategy: strat.String(), At: time.Now()}
			proxy, err := builder.Build()
			if err != nil {
				record.Err = err
			} else {
				record.Provider = proxy.entry.ParticipantID
				if len(proxy.entry.Connections) > 0 {
					record.Connection = string(proxy.entry.Connections[0])
				}
			}
			builder.Stop()

			s.mu.Lock()
			s.builds = append(s.builds, record)
			if len(s.builds) > 6 {
				s.builds = s.builds[len(s.builds)-6:]
			}
			s.mu.Unlock()
		}
	}
}

// Builds returns a snapshot of the most recent builder attempts, newest
// last.
func (s *simulator) Builds() []buildRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]buildRecord, len(s.builds))
	copy(out, s.builds)
	return out
}

// qosRows is the static classification panel: one row per subscription
// QoS variant, classified the way the publication scheduler would.
func qosRows() []qosRow {
	variants := []struct {
		name string
		qos  subscription.Qos
	}{
		{"OnChange", subscription.OnChangeSubscriptionQos{MinIntervalMs: 100}},
		{"OnChangeWithKeepAlive", subscription.OnChangeWithKeepAliveSubscriptionQos{
			MinIntervalMs: 100, MaxIntervalMs: 1000, AlertAfterIntervalMs: 2000,
		}},
		{"Periodic", subscription.PeriodicSubscriptionQos{PeriodMs: 500, AlertAfterIntervalMs: 1500}},
	}

	rows := make([]qosRow, 0, len(variants))
	for _, v := range variants {
		c := subscription.Classify(v.qos)
		rows = append(rows, qosRow{Name: v.name, Classification: c})
	}
	return rows
}

type qosRow struct {
	Name           string
	Classification subscription.Classification
}
