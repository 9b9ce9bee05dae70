package p2pnet

import (
	"context"
	"errors"
	"log/slog"
	"time"

	ma "github.com/multiformats/go-multiaddr"
)

// Observer periodically reads a small summary from the client handle (peer
// count, external address) and publishes it to the metrics registry. Export
// failures are logged, never fatal.
type Observer struct {
	client   *Client
	metrics  *Metrics
	interval time.Duration
	log      *slog.Logger
}

// NewObserver creates a telemetry observer polling client every interval.
func NewObserver(client *Client, metrics *Metrics, interval time.Duration) *Observer {
	return &Observer{
		client:   client,
		metrics:  metrics,
		interval: interval,
		log:      slog.Default(),
	}
}

// Run polls until ctx is canceled or the network service goes away.
func (o *Observer) Run(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			switch err := o.observe(ctx); {
			case err == nil:
			case errors.Is(err, ErrUnavailable):
				return
			case errors.Is(err, context.Canceled):
				return
			default:
				o.log.Warn("telemetry observation failed", "error", err)
			}
		}
	}
}

func (o *Observer) observe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.interval)
	defer cancel()

	count, err := o.client.CountDHTPeers(ctx)
	if err != nil {
		return err
	}
	o.metrics.PeerCount.Set(float64(count))

	addr, err := o.client.ExternalMultiaddress(ctx)
	if err != nil {
		return err
	}
	if addr != nil {
		o.metrics.SetExternalAddr(addr.String(), extractIP(addr))
	}
	return nil
}

// extractIP pulls the first IPv4 or IPv6 component out of a multiaddress.
func extractIP(addr ma.Multiaddr) string {
	if ip, err := addr.ValueForProtocol(ma.P_IP4); err == nil {
		return ip
	}
	if ip, err := addr.ValueForProtocol(ma.P_IP6); err == nil {
		return ip
	}
	return ""
}
