package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// rawConfig mirrors RuntimeConfig with durations as strings, since YAML has
// no native duration type. Absent fields keep their marker values and fall
// back to Default() during conversion.
type rawConfig struct {
	HTTPServerHost           string     `yaml:"http_server_host"`
	HTTPServerPort           *int       `yaml:"http_server_port"`
	LogLevel                 string     `yaml:"log_level"`
	LogFormatJSON            bool       `yaml:"log_format_json"`
	Port                     *int       `yaml:"port"`
	TCPTransportEnable       bool       `yaml:"tcp_transport_enable"`
	ConnectionIdleTimeout    string     `yaml:"connection_idle_timeout"`
	AutoNATThrottleGlobalMax *int       `yaml:"autonat_throttle_clients_global_max"`
	AutoNATThrottlePeerMax   *int       `yaml:"autonat_throttle_clients_peer_max"`
	AutoNATThrottlePeriod    string     `yaml:"autonat_throttle_clients_period"`
	AutoNATOnlyGlobalIPs     *bool      `yaml:"autonat_only_global_ips"`
	KadQueryTimeout          string     `yaml:"kad_query_timeout"`
	KadBucketSize            int        `yaml:"kad_bucket_size"`
	KadMaxRecordAge          string     `yaml:"kad_max_record_age"`
	BootstrapPeriod          string     `yaml:"bootstrap_period"`
	BootstrapPeers           []string   `yaml:"bootstrap_peers"`
	MetricsInterval          string     `yaml:"metrics_interval"`
	SecretKey                *SecretKey `yaml:"secret_key"`
	BlockedPeers             []string   `yaml:"blocked_peers"`
	Origin                   string     `yaml:"origin"`
	GenesisHash              string     `yaml:"genesis_hash"`
}

// Load reads the runtime configuration from a YAML file. A missing file is
// not an error: the node runs on defaults, which is the common case for
// development deployments.
func Load(path string) (RuntimeConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML from %s: %w", path, err)
	}

	if raw.HTTPServerHost != "" {
		cfg.HTTPServerHost = raw.HTTPServerHost
	}
	if raw.HTTPServerPort != nil {
		cfg.HTTPServerPort = *raw.HTTPServerPort
	}
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
	cfg.LogFormatJSON = raw.LogFormatJSON
	if raw.Port != nil {
		cfg.Port = *raw.Port
	}
	cfg.TCPTransportEnable = raw.TCPTransportEnable
	if raw.AutoNATThrottleGlobalMax != nil {
		cfg.AutoNATThrottleGlobalMax = *raw.AutoNATThrottleGlobalMax
	}
	if raw.AutoNATThrottlePeerMax != nil {
		cfg.AutoNATThrottlePeerMax = *raw.AutoNATThrottlePeerMax
	}
	if raw.AutoNATOnlyGlobalIPs != nil {
		cfg.AutoNATOnlyGlobalIPs = *raw.AutoNATOnlyGlobalIPs
	}
	cfg.KadBucketSize = raw.KadBucketSize
	cfg.BootstrapPeers = raw.BootstrapPeers
	if raw.SecretKey != nil {
		cfg.SecretKey = raw.SecretKey
	}
	cfg.BlockedPeers = raw.BlockedPeers
	if raw.Origin != "" {
		cfg.Origin = raw.Origin
	}
	if raw.GenesisHash != "" {
		cfg.GenesisHash = raw.GenesisHash
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"connection_idle_timeout", raw.ConnectionIdleTimeout, &cfg.ConnectionIdleTimeout},
		{"autonat_throttle_clients_period", raw.AutoNATThrottlePeriod, &cfg.AutoNATThrottlePeriod},
		{"kad_query_timeout", raw.KadQueryTimeout, &cfg.KadQueryTimeout},
		{"kad_max_record_age", raw.KadMaxRecordAge, &cfg.KadMaxRecordAge},
		{"bootstrap_period", raw.BootstrapPeriod, &cfg.BootstrapPeriod},
		{"metrics_interval", raw.MetricsInterval, &cfg.MetricsInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return cfg, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}
	return cfg, nil
}
