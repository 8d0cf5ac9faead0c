package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	rootCmd := &cobra.Command{
		Use:   "arc-discoveryd",
		Short: "Arc discovery daemon - local capabilities directory",
		Long: `Arc discovery daemon.

Hosts the discovery registry and the local discovery aggregator that
proxy builders resolve providers through. Provisioned entries for the
discovery and routing system services are seeded at startup and are
always resolvable without a remote round trip.

Commands:
  arc-discoveryd start      Start the daemon
  arc-discoveryd backends   List available discovery cache backends`,
	}

	rootCmd.AddCommand(
		newStartCmd(),
		newBackendsCmd(),
	)

	return rootCmd.Execute()
}
