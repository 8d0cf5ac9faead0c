package config

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// SetCommonDefaults configures standard defaults on a Viper instance.
func SetCommonDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", Common.DataDir)
	v.SetDefault("observability.log_level", Common.LogLevel)
	v.SetDefault("observability.log_format", Common.LogFormat)
}

// SetDiscoveryDefaults configures discovery-pipeline defaults on a Viper
// instance.
func SetDiscoveryDefaults(v *viper.Viper) {
	v.SetDefault("discovery.domain", DiscoveryDefaults.Domain)
	v.SetDefault("discovery.discovery_interface", DiscoveryDefaults.DiscoveryInterface)
	v.SetDefault("discovery.routing_interface", DiscoveryDefaults.RoutingInterface)
	v.SetDefault("discovery.discovery_participant_id", DiscoveryDefaults.DiscoveryParticipantID)
	v.SetDefault("discovery.routing_participant_id", DiscoveryDefaults.RoutingParticipantID)
	v.SetDefault("discovery.discovery_timeout_ms", DiscoveryDefaults.DiscoveryTimeoutMs)
	v.SetDefault("discovery.retry_interval_ms", DiscoveryDefaults.RetryIntervalMs)
	v.SetDefault("discovery.messaging_maximum_ttl_ms", DiscoveryDefaults.MessagingMaximumTtlMs)
}

// BindCommonFlags binds standard CLI flags to Viper.
func BindCommonFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()

	f.String("data-dir", "", "data directory (default ~/.arc)")
	f.String("key", "", "key name to use")
	f.String("key-path", "", "path to key file (overrides --key)")
	f.String("log-level", "", "log level (debug, info, warn, error)")
	f.String("log-format", "", "log format (json, text)")

	_ = v.BindPFlag("data_dir", f.Lookup("data-dir"))
	_ = v.BindPFlag("key_name", f.Lookup("key"))
	_ = v.BindPFlag("key_path", f.Lookup("key-path"))
	_ = v.BindPFlag("observability.log_level", f.Lookup("log-level"))
	_ = v.BindPFlag("observability.log_format", f.Lookup("log-format"))
}

// BindServerFlags binds daemon-specific flags (config file, metrics,
// cache backend, tracing).
func BindServerFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.Flags()

	f.String("config", "", "config file path")
	f.String("metrics-addr", "", "metrics HTTP listen address")
	f.String("cache-backend", "", "discovery cache backend (memory, badger, redis, sqlite)")
	f.String("otlp-endpoint", "", "OTLP trace collector endpoint")

	_ = v.BindPFlag("observability.metrics_addr", f.Lookup("metrics-addr"))
	_ = v.BindPFlag("cache.backend", f.Lookup("cache-backend"))
	_ = v.BindPFlag("observability.otlp_endpoint", f.Lookup("otlp-endpoint"))
}

// Load reads config from flags, env, and file.
// The envPrefix is used for environment variable lookups (e.g., "ARC_DISCOVERYD").
// The configPaths are directories to search for config files.
func Load(v *viper.Viper, envPrefix string, configFile string, configPaths ...string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("hcl")
		v.AddConfigPath(".")
		for _, p := range configPaths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) && configFile != "" {
			return err
		}
		// Config file not found is OK if not explicitly specified
	}

	return nil
}

// LoadInto applies common defaults, loads config from flags/env/file, and
// unmarshals into the provided struct. Use with command configs that
// embed BaseConfig.
func LoadInto(v *viper.Viper, envPrefix, configFile string, cfg any, paths ...string) error {
	SetCommonDefaults(v)
	if err := Load(v, envPrefix, configFile, paths...); err != nil {
		return err
	}
	return v.Unmarshal(cfg)
}
