package main

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gezibash/arc-node/internal/config"
	"github.com/gezibash/arc-node/internal/discoverystore/physical"
)

// Config holds discovery daemon configuration.
type Config struct {
	config.BaseConfig `mapstructure:",squash"`

	Discovery config.DiscoveryConfig `mapstructure:"discovery"`
	Cache     config.BackendConfig   `mapstructure:"cache"`
}

func setDefaults(v *viper.Viper) {
	config.SetCommonDefaults(v)
	config.SetDiscoveryDefaults(v)

	v.SetDefault("key_name", config.DiscoverydDefaults.KeyName)
	v.SetDefault("key_path", "")
	v.SetDefault("observability.metrics_addr", config.DiscoverydDefaults.MetricsAddr)
	v.SetDefault("observability.service_name", "arc-discoveryd")
	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.otlp_protocol", "http")
	v.SetDefault("cache.backend", config.DiscoverydDefaults.CacheBackend)
}

func bindStartFlags(cmd *cobra.Command, v *viper.Viper) {
	config.BindCommonFlags(cmd, v)
	config.BindServerFlags(cmd, v)

	f := cmd.Flags()
	f.String("domain", "", "system service domain")
	_ = v.BindPFlag("discovery.domain", f.Lookup("domain"))
}

func loadConfig(v *viper.Viper, configFile string) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("ARC_DISCOVERYD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("hcl")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(config.Common.DataDir, "discoveryd"))
		v.AddConfigPath("/etc/arc/discoveryd")
	}

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) && configFile != "" {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Cache.Backend != "" && !physical.IsRegistered(cfg.Cache.Backend) {
		return Config{}, errors.New("unknown cache backend " + cfg.Cache.Backend)
	}
	return cfg, nil
}
