package main

import (
	"log/slog"
	"testing"

	"github.com/peermesh/bootnode/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"Error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := parseLogLevel(tt.in)
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
		if (err != nil) != tt.wantErr {
			t.Errorf("parseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestListenAddrs(t *testing.T) {
	cfg := config.Default()

	addrs, err := listenAddrs(cfg)
	if err != nil {
		t.Fatalf("listenAddrs() error = %v", err)
	}
	if len(addrs) != 1 || addrs[0].String() != "/ip4/0.0.0.0/udp/39000/quic-v1" {
		t.Errorf("listenAddrs() = %v, want single quic address", addrs)
	}

	cfg.TCPTransportEnable = true
	addrs, err = listenAddrs(cfg)
	if err != nil {
		t.Fatalf("listenAddrs() error = %v", err)
	}
	if len(addrs) != 2 || addrs[1].String() != "/ip4/0.0.0.0/tcp/39000" {
		t.Errorf("listenAddrs() = %v, want quic plus tcp carrier", addrs)
	}
}
