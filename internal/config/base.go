package config

// BaseConfig contains configuration fields shared across all arc
// commands. Command configs embed this struct with mapstructure:",squash"
// to get standard fields (data_dir, key_name, key_path, observability)
// without redefinition.
type BaseConfig struct {
	DataDir       string              `mapstructure:"data_dir"`
	KeyName       string              `mapstructure:"key_name"`
	KeyPath       string              `mapstructure:"key_path"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ObservabilityConfig holds logging, metrics, and tracing settings.
type ObservabilityConfig struct {
	LogLevel       string `mapstructure:"log_level"`
	LogFormat      string `mapstructure:"log_format"`
	MetricsAddr    string `mapstructure:"metrics_addr"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPProtocol   string `mapstructure:"otlp_protocol"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// BackendConfig selects a storage backend and its backend-specific
// configuration map.
type BackendConfig struct {
	Backend string            `mapstructure:"backend"`
	Config  map[string]string `mapstructure:"config"`
}

// DiscoveryConfig holds the discovery-pipeline settings shared by the
// daemon and the proxy CLI: the provisioned system-service identifiers
// and the runtime defaults the proxy builder falls back to when a
// DiscoveryQos field is unset.
type DiscoveryConfig struct {
	Domain                 string `mapstructure:"domain"`
	DiscoveryInterface     string `mapstructure:"discovery_interface"`
	RoutingInterface       string `mapstructure:"routing_interface"`
	DiscoveryParticipantID string `mapstructure:"discovery_participant_id"`
	RoutingParticipantID   string `mapstructure:"routing_participant_id"`
	DiscoveryTimeoutMs     int64  `mapstructure:"discovery_timeout_ms"`
	RetryIntervalMs        int64  `mapstructure:"retry_interval_ms"`
	MessagingMaximumTtlMs  int64  `mapstructure:"messaging_maximum_ttl_ms"`
}

// ResolvedDataDir returns the data directory from config, or the default (~/.arc).
func (c BaseConfig) ResolvedDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DefaultDataDir()
}
