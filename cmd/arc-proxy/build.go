package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-node/pkg/discovery"
)

type buildResult struct {
	Proxy      string `json:"proxy"`
	Provider   string `json:"provider"`
	Domain     string `json:"domain"`
	Interface  string `json:"interface"`
	Strategy   string `json:"strategy"`
	IsLocal    bool   `json:"is_local"`
	Connection string `json:"connection,omitempty"`
}

func newBuildCmd(v *viper.Viper) *cobra.Command {
	var (
		domain      string
		iface       string
		strategy    string
		fixedID     string
		expression  string
		timeoutMs   int64
		retryMs     int64
		ttlMs       int64
		providers   int
		cacheFlavor string
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a proxy and print the binding",
		Long: `Build a proxy against an in-process provider fleet.

Seeds providers into the discovery registry, runs arbitration with the
chosen strategy, and prints the provider the proxy ends up bound to.

Examples:
  arc-proxy build                                   # last-seen arbitration
  arc-proxy build --strategy priority               # highest priority wins
  arc-proxy build --strategy fixed --fixed-participant demo.provider-2
  arc-proxy build --strategy keyword --expression 'priority > 3 && onChange'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			strat, err := parseStrategy(strategy)
			if err != nil {
				return err
			}

			st, err := newStack(cmd.Context(), v, cacheFlavor)
			if err != nil {
				return err
			}
			defer st.Close()

			st.SeedProviders(cmd.Context(), domain, iface, providers)

			builder := st.NewBuilder(domain, iface)
			defer builder.Stop()

			params := map[string]string{}
			if fixedID != "" {
				params["fixedParticipantId"] = fixedID
			}
			if expression != "" {
				params["expression"] = expression
			}

			builder.SetMessagingQos(discovery.MessagingQos{TtlMs: ttlMs})
			builder.SetDiscoveryQos(discovery.DiscoveryQos{
				DiscoveryTimeoutMs:  timeoutMs,
				RetryIntervalMs:     retryMs,
				ArbitrationStrategy: strat,
				CustomParams:        params,
			})

			proxy, err := builder.Build()
			if err != nil {
				return err
			}

			result := buildResult{
				Proxy:     proxy.ProxyParticipantID(),
				Provider:  proxy.entry.ParticipantID,
				Domain:    domain,
				Interface: iface,
				Strategy:  strat.String(),
				IsLocal:   proxy.entry.IsLocal,
			}
			if len(proxy.entry.Connections) > 0 {
				result.Connection = string(proxy.entry.Connections[0])
			}

			return printResult(cmd, v, result)
		},
	}

	f := cmd.Flags()
	f.StringVar(&domain, "domain", "demo", "provider domain")
	f.StringVar(&iface, "interface", "demo/Echo", "provider interface name")
	f.StringVar(&strategy, "strategy", "lastseen", "arbitration strategy (lastseen, fixed, priority, keyword)")
	f.StringVar(&fixedID, "fixed-participant", "", "participant id for the fixed strategy")
	f.StringVar(&expression, "expression", "", "CEL expression for the keyword strategy")
	f.Int64Var(&timeoutMs, "timeout-ms", 5000, "discovery timeout in milliseconds")
	f.Int64Var(&retryMs, "retry-ms", 200, "arbitration retry interval in milliseconds")
	f.Int64Var(&ttlMs, "ttl-ms", 5000, "messaging time-to-live in milliseconds")
	f.IntVar(&providers, "providers", 5, "number of providers to seed")
	f.StringVar(&cacheFlavor, "cache-backend", "memory", "discovery cache backend")

	return cmd
}

func printResult(cmd *cobra.Command, v *viper.Viper, result buildResult) error {
	if v.GetString("output") == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	bold, dim, reset := "", "", ""
	if isatty.IsTerminal(os.Stdout.Fd()) {
		bold, dim, reset = "\033[1m", "\033[90m", "\033[0m"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%sproxy%s      %s\n", dim, reset, result.Proxy)
	fmt.Fprintf(out, "%sprovider%s   %s%s%s\n", dim, reset, bold, result.Provider, reset)
	fmt.Fprintf(out, "%starget%s     %s %s v1.0\n", dim, reset, result.Domain, result.Interface)
	fmt.Fprintf(out, "%sstrategy%s   %s\n", dim, reset, result.Strategy)
	fmt.Fprintf(out, "%slocal%s      %v\n", dim, reset, result.IsLocal)
	if result.Connection != "" {
		fmt.Fprintf(out, "%sconnection%s %s\n", dim, reset, result.Connection)
	}
	return nil
}
