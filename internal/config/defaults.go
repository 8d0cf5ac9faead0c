// Package config provides shared configuration patterns and defaults for arc components.
package config

import (
	"os"
	"path/filepath"
)

// Common contains default values shared across arc components.
var Common = struct {
	LogLevel  string
	LogFormat string
	DataDir   string
}{
	LogLevel:  "info",
	LogFormat: "text",
	DataDir:   DefaultDataDir(),
}

// DefaultDataDir returns the default data directory (~/.arc).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arc"
	}
	return filepath.Join(home, ".arc")
}

// DiscoveryDefaults contains default values for the discovery pipeline:
// the well-known domain/interface names of the provisioned system
// services and the runtime defaults applied to unset DiscoveryQos and
// MessagingQos fields.
var DiscoveryDefaults = struct {
	Domain                 string
	DiscoveryInterface     string
	RoutingInterface       string
	DiscoveryParticipantID string
	RoutingParticipantID   string
	DiscoveryTimeoutMs     int64
	RetryIntervalMs        int64
	MessagingMaximumTtlMs  int64
}{
	Domain:                 "io.arc.system",
	DiscoveryInterface:     "system/Discovery",
	RoutingInterface:       "system/Routing",
	DiscoveryParticipantID: "arc.system.discovery",
	RoutingParticipantID:   "arc.system.routing",
	DiscoveryTimeoutMs:     30000,
	RetryIntervalMs:        1000,
	MessagingMaximumTtlMs:  2_592_000_000, // 30 days
}

// DiscoverydDefaults contains default values for the discovery daemon.
var DiscoverydDefaults = struct {
	MetricsAddr  string
	KeyName      string
	CacheBackend string
}{
	MetricsAddr:  ":9090",
	KeyName:      "discoveryd",
	CacheBackend: "badger",
}
