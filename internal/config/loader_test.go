package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Default()
	if cfg.Port != want.Port || cfg.HTTPServerPort != want.HTTPServerPort {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
	if cfg.SecretKey == nil || cfg.SecretKey.Seed != "1" {
		t.Errorf("default secret key = %+v, want seed \"1\"", cfg.SecretKey)
	}
}

func TestLoad_OverridesAndDurations(t *testing.T) {
	path := writeConfig(t, `
port: 40000
log_level: debug
log_format_json: true
tcp_transport_enable: true
connection_idle_timeout: 45s
kad_query_timeout: 2m
bootstrap_period: 10m
metrics_interval: 5s
autonat_only_global_ips: false
genesis_hash: "9d5ea6a5d7631e13028b684a1a0078e3970caa78bd677eaecaf2160304f174fb"
secret_key:
  seed: "bootstrap-2"
bootstrap_peers:
  - /ip4/198.51.100.1/udp/39000/quic-v1/p2p/12D3KooWStAKPADXqJ7cngPYXd2mSANpdgh1xQ34aouufHA2xShz
blocked_peers:
  - 12D3KooWStAKPADXqJ7cngPYXd2mSANpdgh1xQ34aouufHA2xShz
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 40000 {
		t.Errorf("Port = %d, want 40000", cfg.Port)
	}
	if cfg.LogLevel != "debug" || !cfg.LogFormatJSON {
		t.Errorf("log config = %q/%v, want debug/json", cfg.LogLevel, cfg.LogFormatJSON)
	}
	if !cfg.TCPTransportEnable {
		t.Error("TCPTransportEnable = false, want true")
	}
	if cfg.ConnectionIdleTimeout != 45*time.Second {
		t.Errorf("ConnectionIdleTimeout = %s, want 45s", cfg.ConnectionIdleTimeout)
	}
	if cfg.KadQueryTimeout != 2*time.Minute {
		t.Errorf("KadQueryTimeout = %s, want 2m", cfg.KadQueryTimeout)
	}
	if cfg.BootstrapPeriod != 10*time.Minute {
		t.Errorf("BootstrapPeriod = %s, want 10m", cfg.BootstrapPeriod)
	}
	if cfg.AutoNATOnlyGlobalIPs {
		t.Error("AutoNATOnlyGlobalIPs = true, want false")
	}
	if cfg.SecretKey == nil || cfg.SecretKey.Seed != "bootstrap-2" {
		t.Errorf("SecretKey = %+v, want seed bootstrap-2", cfg.SecretKey)
	}
	if len(cfg.BootstrapPeers) != 1 || len(cfg.BlockedPeers) != 1 {
		t.Errorf("peer lists = %v / %v, want one entry each", cfg.BootstrapPeers, cfg.BlockedPeers)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "port: 41000\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 41000 {
		t.Errorf("Port = %d, want 41000", cfg.Port)
	}
	if cfg.BootstrapPeriod != 5*time.Minute {
		t.Errorf("BootstrapPeriod = %s, want default 5m", cfg.BootstrapPeriod)
	}
	if cfg.AutoNATOnlyGlobalIPs != true {
		t.Error("AutoNATOnlyGlobalIPs lost its default")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "port: [not a port\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() succeeded on malformed YAML")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	path := writeConfig(t, "bootstrap_period: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load() succeeded on unparseable duration")
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "port: -1\n")
	_, err := Load(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
}
