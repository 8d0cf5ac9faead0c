package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "arc-proxy",
		Short: "Arc proxy - build typed proxies against discovered providers",
		Long: `Arc proxy client commands.

Builds proxies bound to arbitrated providers through the local
discovery aggregator, against an in-process provider fleet.

Commands:
  arc-proxy build      Build a proxy and print the binding
  arc-proxy classify   Classify a subscription QoS value
  arc-proxy watch      Watch the binding pipeline live`,
	}

	rootCmd.PersistentFlags().String("data-dir", "", "data directory (default ~/.arc)")
	_ = v.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))

	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("observability.log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().StringP("output", "o", "text", "output format (text, json)")
	_ = v.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))

	rootCmd.AddCommand(
		newBuildCmd(v),
		newClassifyCmd(v),
		newWatchCmd(v),
	)

	return rootCmd.Execute()
}
