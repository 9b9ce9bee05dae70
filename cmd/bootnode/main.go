package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/peermesh/bootnode/internal/config"
	"github.com/peermesh/bootnode/pkg/p2pnet"
)

// Set via -ldflags at build time:
//
//	go build -ldflags "-X main.version=0.1.0 -X main.commit=$(git rev-parse --short HEAD) -X main.buildDate=$(date -u +%Y-%m-%dT%H:%M:%SZ)" -o bootnode ./cmd/bootnode
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		cfgPath     string
		showVersion bool
	)
	flag.StringVar(&cfgPath, "config", "config.yaml", "yaml configuration file")
	flag.StringVar(&cfgPath, "C", "config.yaml", "yaml configuration file (shorthand)")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("bootnode %s (%s) built %s\n", version, commit, buildDate)
		fmt.Printf("Go %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return
	}

	if err := run(cfgPath); err != nil {
		slog.Error("bootnode failed", "error", err)
		os.Exit(1)
	}
}

// parseLogLevel maps a config log level onto slog. Unknown values fall back
// to info; the parse error is reported after the logger is installed.
func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// setupLogger installs the process-wide slog default exactly once, before
// any background goroutine starts. A bad level is not fatal; the node runs
// at the default level and says so.
func setupLogger(cfg config.RuntimeConfig) {
	level, levelErr := parseLogLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	if levelErr != nil {
		slog.Warn("using default log level", "error", levelErr)
	}
}

// listenAddrs builds the P2P listen addresses: the unspecified IPv4 address
// with the configured UDP port and QUIC-v1 marker, plus a TCP carrier on
// the same port when enabled.
func listenAddrs(cfg config.RuntimeConfig) ([]ma.Multiaddr, error) {
	quic, err := ma.NewMultiaddr(fmt.Sprintf("/ip4/0.0.0.0/udp/%d/quic-v1", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("invalid listen address: %w", err)
	}
	addrs := []ma.Multiaddr{quic}

	if cfg.TCPTransportEnable {
		tcp, err := ma.NewMultiaddr(fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", cfg.Port))
		if err != nil {
			return nil, fmt.Errorf("invalid tcp listen address: %w", err)
		}
		addrs = append(addrs, tcp)
	}
	return addrs, nil
}

// seedBootstrapPeers registers configured known peers with the routing
// table before the startup bootstrap runs.
func seedBootstrapPeers(ctx context.Context, client *p2pnet.Client, raw []string) error {
	for _, s := range raw {
		addr, err := ma.NewMultiaddr(s)
		if err != nil {
			return fmt.Errorf("invalid bootstrap peer address %q: %w", s, err)
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			return fmt.Errorf("bootstrap peer address %q has no /p2p component: %w", s, err)
		}
		if err := client.AddAddress(ctx, info.ID, addr); err != nil {
			return fmt.Errorf("failed to register bootstrap peer %s: %w", info.ID, err)
		}
		slog.Info("registered bootstrap peer", "peer", info.ID, "addr", addr)
	}
	return nil
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", cfgPath, err)
	}
	setupLogger(cfg)

	priv, peerID, err := p2pnet.Keypair(cfg.SecretKey)
	if err != nil {
		return fmt.Errorf("failed to provision identity: %w", err)
	}

	client, loop, err := p2pnet.Init(cfg, priv)
	if err != nil {
		return fmt.Errorf("failed to initialize p2p network service: %w", err)
	}
	defer client.Close()

	network := config.NetworkName(cfg.GenesisHash)
	metrics := p2pnet.NewMetrics(version, network, peerID.String(), cfg.Origin)
	loop.SetMetrics(metrics)

	go loop.Run()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addrs, err := listenAddrs(cfg)
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		if err := client.StartListening(ctx, addr); err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
	}

	if err := seedBootstrapPeers(ctx, client, cfg.BootstrapPeers); err != nil {
		return err
	}

	// A cold-started node blocks inside Bootstrap until some peer finds
	// it, so the startup bootstrap runs in the background.
	go func() {
		if err := client.Bootstrap(ctx); err != nil {
			slog.Warn("startup bootstrap failed", "error", err)
			return
		}
		slog.Info("startup bootstrap complete")
	}()

	observer := p2pnet.NewObserver(client, metrics, cfg.MetricsInterval)
	go observer.Run(ctx)

	httpServer := startHTTPServer(cfg, metrics)

	slog.Info("bootstrap node started",
		"peer_id", peerID,
		"network", network,
		"p2p_port", cfg.Port,
		"version", version)

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown failed", "error", err)
	}
	return nil
}
