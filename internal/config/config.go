package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	// IdentifyProtocolBase is the identify protocol identifier shared by all
	// peermesh deployments. The genesis-hash suffix appended by
	// ProtocolVersion splits incompatible networks into disjoint DHTs.
	IdentifyProtocolBase = "/peermesh_kad/id/1.0.0"

	// AgentBase and AgentClientType make up the identify agent-version
	// string together with the Kademlia mode (always "server" for a
	// bootstrap node).
	AgentBase       = "peermesh-bootnode"
	AgentClientType = "go-client"

	// MinimumSupportedAgent is the oldest peer agent version this node
	// considers current. Older agents are still served, only logged.
	MinimumSupportedAgent = "1.9.2"
)

// SecretKey selects how the node identity keypair is derived. Exactly one
// of Seed or Key may be set; both empty means a fresh random identity.
type SecretKey struct {
	// Seed is hashed into deterministic ed25519 key material. Identical
	// seeds always produce identical peer IDs, which is how well-known
	// bootstrap identities stay stable across deployments.
	Seed string `yaml:"seed,omitempty"`
	// Key is a raw ed25519 secret key as exactly 64 hex characters.
	Key string `yaml:"key,omitempty"`
}

// RuntimeConfig is the full YAML configuration surface of the bootnode
// daemon. Zero values are replaced by Default() before validation.
type RuntimeConfig struct {
	// HTTPServerHost and HTTPServerPort locate the health/metrics endpoint.
	HTTPServerHost string `yaml:"http_server_host"`
	HTTPServerPort int    `yaml:"http_server_port"`

	// LogLevel is one of debug, info, warn, error (case-insensitive).
	LogLevel string `yaml:"log_level"`
	// LogFormatJSON switches structured logs from text to JSON.
	LogFormatJSON bool `yaml:"log_format_json"`

	// Port is the P2P listen port (UDP for QUIC, and TCP when enabled).
	Port int `yaml:"port"`
	// TCPTransportEnable adds a TCP carrier next to the mandatory QUIC one.
	TCPTransportEnable bool `yaml:"tcp_transport_enable"`

	// ConnectionIdleTimeout is how long idle connections are kept alive.
	ConnectionIdleTimeout time.Duration `yaml:"connection_idle_timeout"`

	// AutoNAT dial-back server throttling and policy.
	AutoNATThrottleGlobalMax int           `yaml:"autonat_throttle_clients_global_max"`
	AutoNATThrottlePeerMax   int           `yaml:"autonat_throttle_clients_peer_max"`
	AutoNATThrottlePeriod    time.Duration `yaml:"autonat_throttle_clients_period"`
	AutoNATOnlyGlobalIPs     bool          `yaml:"autonat_only_global_ips"`

	// KadQueryTimeout bounds a single Kademlia query.
	KadQueryTimeout time.Duration `yaml:"kad_query_timeout"`
	// KadBucketSize overrides the routing-table bucket size when non-zero.
	KadBucketSize int `yaml:"kad_bucket_size"`
	// KadMaxRecordAge overrides record TTL for data-bearing deployments.
	// Zero keeps the DHT default; bootstrap nodes normally run pure
	// routing/server mode and never store records.
	KadMaxRecordAge time.Duration `yaml:"kad_max_record_age"`

	// BootstrapPeriod is the interval between periodic routing-table
	// re-bootstraps, and also the delay before the first periodic one.
	BootstrapPeriod time.Duration `yaml:"bootstrap_period"`
	// BootstrapPeers optionally seeds the routing table with known peers
	// (full multiaddrs carrying a /p2p/ suffix).
	BootstrapPeers []string `yaml:"bootstrap_peers,omitempty"`

	// MetricsInterval is the telemetry observer poll period.
	MetricsInterval time.Duration `yaml:"metrics_interval"`

	// SecretKey derives the node identity; nil means random.
	SecretKey *SecretKey `yaml:"secret_key,omitempty"`

	// BlockedPeers is a static deny-set of peer IDs refused at the
	// connection layer.
	BlockedPeers []string `yaml:"blocked_peers,omitempty"`

	// Origin labels telemetry observations (e.g. "external", "internal").
	Origin string `yaml:"origin"`
	// GenesisHash identifies the logical network. A value beginning with
	// "DEV" joins any development network.
	GenesisHash string `yaml:"genesis_hash"`
}

// Default returns the configuration used when fields are absent from the
// YAML file (or when no file exists at all).
func Default() RuntimeConfig {
	return RuntimeConfig{
		HTTPServerHost:           "127.0.0.1",
		HTTPServerPort:           7700,
		LogLevel:                 "info",
		Port:                     39000,
		ConnectionIdleTimeout:    30 * time.Second,
		AutoNATThrottleGlobalMax: 120,
		AutoNATThrottlePeerMax:   4,
		AutoNATThrottlePeriod:    time.Second,
		AutoNATOnlyGlobalIPs:     true,
		KadQueryTimeout:          60 * time.Second,
		BootstrapPeriod:          5 * time.Minute,
		MetricsInterval:          15 * time.Second,
		SecretKey:                &SecretKey{Seed: "1"},
		Origin:                   "external",
		GenesisHash:              "DEV",
	}
}

// Validate rejects configurations that cannot produce a working node.
func (c *RuntimeConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid p2p port %d", c.Port)
	}
	if c.HTTPServerPort <= 0 || c.HTTPServerPort > 65535 {
		return fmt.Errorf("invalid http server port %d", c.HTTPServerPort)
	}
	if c.BootstrapPeriod <= 0 {
		return fmt.Errorf("bootstrap_period must be positive, got %s", c.BootstrapPeriod)
	}
	if c.MetricsInterval <= 0 {
		return fmt.Errorf("metrics_interval must be positive, got %s", c.MetricsInterval)
	}
	if c.GenesisHash == "" {
		return fmt.Errorf("genesis_hash must not be empty")
	}
	if sk := c.SecretKey; sk != nil && sk.Seed != "" && sk.Key != "" {
		return fmt.Errorf("secret_key must set either seed or key, not both")
	}
	return nil
}

// ProtocolVersion returns the identify protocol-version string. The same
// string is reused verbatim as the Kademlia wire protocol name, so nodes on
// different logical networks never share a routing table.
func (c *RuntimeConfig) ProtocolVersion() string {
	return fmt.Sprintf("%s-%s", IdentifyProtocolBase, GenesisShort(c.GenesisHash))
}

// AgentVersion returns the identify agent-version string. Bootstrap nodes
// always run the DHT in server mode.
func (c *RuntimeConfig) AgentVersion() string {
	return fmt.Sprintf("%s/%s/server", AgentBase, AgentClientType)
}

// GenesisShort truncates a genesis hash to its first six hex characters,
// dropping a leading "0x" if present.
func GenesisShort(genesisHash string) string {
	short := strings.TrimPrefix(genesisHash, "0x")
	if len(short) > 6 {
		short = short[:6]
	}
	return short
}

// NetworkName maps a genesis hash to a human-readable network label used in
// logs and telemetry attributes.
func NetworkName(genesisHash string) string {
	var network string
	switch {
	case genesisHash == "9d5ea6a5d7631e13028b684a1a0078e3970caa78bd677eaecaf2160304f174fb":
		network = "hex"
	case genesisHash == "d3d2f3a3495dc597434a99d7d449ebad6616db45e4e4f178f31cc6fa14378b70":
		network = "turing"
	case strings.HasPrefix(genesisHash, "DEV"):
		network = "local"
	default:
		network = "other"
	}
	return fmt.Sprintf("%s:%s", network, GenesisShort(genesisHash))
}
