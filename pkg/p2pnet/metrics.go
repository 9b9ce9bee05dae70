package p2pnet

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all bootnode Prometheus collectors on an isolated registry,
// so they never collide with the global default registry and each test can
// own its own instance.
type Metrics struct {
	Registry *prometheus.Registry

	// PeerCount is the routing-table size, refreshed by the telemetry
	// observer.
	PeerCount prometheus.Gauge

	// BootstrapsTotal counts completed bootstrap queries by result.
	BootstrapsTotal *prometheus.CounterVec

	// EvictionsTotal counts routing-table evictions caused by fatal
	// connection errors.
	EvictionsTotal prometheus.Counter

	// ExternalAddrInfo is a constant-1 gauge whose labels carry the last
	// externally-observed multiaddress and IP.
	ExternalAddrInfo *prometheus.GaugeVec

	// BuildInfo is a constant-1 gauge labeled with version, role, network
	// and peer ID.
	BuildInfo *prometheus.GaugeVec
}

// NewMetrics creates a Metrics instance with all collectors registered on a
// fresh registry.
func NewMetrics(version, network, peerID, origin string) *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		PeerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bootnode_dht_peers",
			Help: "Number of peers currently in the Kademlia routing table.",
		}),
		BootstrapsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bootnode_bootstraps_total",
				Help: "Total completed bootstrap queries by result.",
			},
			[]string{"result"},
		),
		EvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bootnode_evictions_total",
			Help: "Total routing-table evictions due to fatal connection errors.",
		}),
		ExternalAddrInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bootnode_external_address_info",
				Help: "Last externally-observed address (constant 1; labels carry the value).",
			},
			[]string{"multiaddress", "ip"},
		),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bootnode_info",
				Help: "Build and identity information (constant 1).",
			},
			[]string{"version", "role", "network", "peer_id", "origin"},
		),
	}

	reg.MustRegister(
		m.PeerCount,
		m.BootstrapsTotal,
		m.EvictionsTotal,
		m.ExternalAddrInfo,
		m.BuildInfo,
	)

	m.BuildInfo.WithLabelValues(version, "bootstrap", network, peerID, origin).Set(1)
	return m
}

// SetExternalAddr replaces the external-address info labels with the given
// values. Called by the telemetry observer whenever the address changes.
func (m *Metrics) SetExternalAddr(multiaddress, ip string) {
	m.ExternalAddrInfo.Reset()
	m.ExternalAddrInfo.WithLabelValues(multiaddress, ip).Set(1)
}
