package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-node/pkg/subscription"
)

func newClassifyCmd(v *viper.Viper) *cobra.Command {
	var (
		variant string
		minMs   int64
		maxMs   int64
		period  int64
		alertMs int64
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a subscription QoS value",
		Long: `Classify a subscription QoS value the way the publication
scheduler does: extract the on-change minimum interval, the periodic
publication interval, and the alert-after interval.

Examples:
  arc-proxy classify --variant onchange --min-interval-ms 100
  arc-proxy classify --variant keepalive --min-interval-ms 100 --max-interval-ms 1000 --alert-after-ms 2000
  arc-proxy classify --variant periodic --period-ms 500 --alert-after-ms 1500`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var qos subscription.Qos
			switch variant {
			case "onchange":
				qos = subscription.OnChangeSubscriptionQos{MinIntervalMs: minMs}
			case "keepalive":
				qos = subscription.OnChangeWithKeepAliveSubscriptionQos{
					MinIntervalMs:        minMs,
					MaxIntervalMs:        maxMs,
					AlertAfterIntervalMs: alertMs,
				}
			case "periodic":
				qos = subscription.PeriodicSubscriptionQos{
					PeriodMs:             period,
					AlertAfterIntervalMs: alertMs,
				}
			default:
				return fmt.Errorf("unknown variant %q (onchange, keepalive, periodic)", variant)
			}

			c := subscription.Classify(qos)

			if v.GetString("output") == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"variant":                          variant,
					"is_on_change":                     c.IsOnChange,
					"min_interval_ms":                  c.MinIntervalMs,
					"periodic_publication_interval_ms": c.PeriodicPublicationIntervalMs,
					"alert_after_interval_ms":          c.AlertAfterIntervalMs,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "variant                %s\n", variant)
			fmt.Fprintf(out, "on-change              %v\n", c.IsOnChange)
			fmt.Fprintf(out, "min interval           %d ms\n", c.MinIntervalMs)
			fmt.Fprintf(out, "periodic interval      %d ms\n", c.PeriodicPublicationIntervalMs)
			fmt.Fprintf(out, "alert after interval   %d ms\n", c.AlertAfterIntervalMs)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&variant, "variant", "onchange", "QoS variant (onchange, keepalive, periodic)")
	f.Int64Var(&minMs, "min-interval-ms", 0, "minimum interval between on-change publications")
	f.Int64Var(&maxMs, "max-interval-ms", 0, "keep-alive maximum interval")
	f.Int64Var(&period, "period-ms", 0, "periodic publication period")
	f.Int64Var(&alertMs, "alert-after-ms", 0, "alert-after interval")

	return cmd
}
