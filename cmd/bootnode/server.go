package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peermesh/bootnode/internal/config"
	"github.com/peermesh/bootnode/pkg/p2pnet"
)

// startHTTPServer serves the health check and Prometheus metrics on the
// configured host/port. The health route carries no state from the core.
func startHTTPServer(cfg config.RuntimeConfig, metrics *p2pnet.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := fmt.Sprintf("%s:%d", cfg.HTTPServerHost, cfg.HTTPServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("http server started", "addr", "http://"+addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	return server
}
