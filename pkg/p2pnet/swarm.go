package p2pnet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	libp2pquic "github.com/libp2p/go-libp2p/p2p/transport/quic"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"

	"github.com/peermesh/bootnode/internal/config"
)

// commandBufferSize bounds the client command channel. Generous, so
// producers only block under extreme backlog.
const commandBufferSize = 1000

// eventBufferSize bounds the swarm event channel feeding the loop.
const eventBufferSize = 256

// Swarm is the production swarmDriver: a libp2p host with the composed
// behaviour set (Kademlia server, identify, AutoNAT service, ping, optional
// block-list gater) plus the adapters that translate libp2p notifications
// into the loop's event union.
type Swarm struct {
	host   host.Host
	dht    *dht.IpfsDHT
	events chan swarmEvent

	queryID atomic.Uint64
	sub     event.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	log     *slog.Logger
}

// Init derives the swarm from configuration and identity and returns the
// client handle plus the event loop, ready to be run on its own goroutine.
func Init(cfg config.RuntimeConfig, priv crypto.PrivKey) (*Client, *EventLoop, error) {
	log := slog.Default()

	s, err := newSwarm(cfg, priv, log)
	if err != nil {
		return nil, nil, err
	}

	commands := make(chan command, commandBufferSize)
	closing := make(chan struct{})
	done := make(chan struct{})

	loop := &EventLoop{
		driver:            s,
		events:            s.events,
		commands:          commands,
		closing:           closing,
		done:              done,
		protocolVersion:   cfg.ProtocolVersion(),
		bootstrapInterval: cfg.BootstrapPeriod,
		pendingBootstrap:  make(map[uint64]chan error),
		pendingRouting:    make(map[peer.ID][]chan error),
		log:               log,
	}
	client := &Client{
		commands: commands,
		closing:  closing,
		done:     done,
		once:     &sync.Once{},
	}
	return client, loop, nil
}

// SetMetrics attaches engine-side counters. Must be called before Run.
func (e *EventLoop) SetMetrics(m *Metrics) {
	e.metrics = m
}

func newSwarm(cfg config.RuntimeConfig, priv crypto.PrivKey, log *slog.Logger) (*Swarm, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// Idle connections survive for the configured timeout before the
	// connection manager may trim them.
	cm, err := connmgr.NewConnManager(100, 400, connmgr.WithGracePeriod(cfg.ConnectionIdleTimeout))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create connection manager: %w", err)
	}

	// QUIC is the mandatory carrier; TCP (with negotiated security and
	// muxing) is additive. Listening starts later, via StartListening.
	hostOpts := []libp2p.Option{
		libp2p.Identity(priv),
		libp2p.NoListenAddrs,
		libp2p.Transport(libp2pquic.NewTransport),
		libp2p.ProtocolVersion(cfg.ProtocolVersion()),
		libp2p.UserAgent(cfg.AgentVersion()),
		libp2p.EnableNATService(),
		libp2p.AutoNATServiceRateLimit(
			cfg.AutoNATThrottleGlobalMax,
			cfg.AutoNATThrottlePeerMax,
			cfg.AutoNATThrottlePeriod,
		),
		libp2p.Ping(true),
		libp2p.ConnectionManager(cm),
	}
	if cfg.TCPTransportEnable {
		hostOpts = append(hostOpts, libp2p.Transport(tcp.NewTCPTransport))
	}

	if len(cfg.BlockedPeers) > 0 {
		blocked, err := parsePeerIDs(cfg.BlockedPeers)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("invalid blocked_peers entry: %w", err)
		}
		hostOpts = append(hostOpts, libp2p.ConnectionGater(NewBlockList(blocked)))
	}

	h, err := libp2p.New(hostOpts...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}

	// The identify protocol-version string doubles as the Kademlia wire
	// protocol, so incompatible deployments partition into disjoint DHTs.
	// Auto-refresh stays off: the event loop owns bootstrap cadence.
	dhtOpts := []dht.Option{
		dht.Mode(dht.ModeServer),
		dht.V1ProtocolOverride(protocol.ID(cfg.ProtocolVersion())),
		dht.DisableAutoRefresh(),
		dht.RoutingTableRefreshQueryTimeout(cfg.KadQueryTimeout),
	}
	if cfg.KadBucketSize > 0 {
		dhtOpts = append(dhtOpts, dht.BucketSize(cfg.KadBucketSize))
	}
	if cfg.KadMaxRecordAge > 0 {
		dhtOpts = append(dhtOpts, dht.MaxRecordAge(cfg.KadMaxRecordAge))
	}

	d, err := dht.New(ctx, h, dhtOpts...)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("failed to create DHT: %w", err)
	}

	s := &Swarm{
		host:   h,
		dht:    d,
		events: make(chan swarmEvent, eventBufferSize),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}

	log.Info("local peer identity",
		"peer_id", h.ID(),
		"protocol_version", cfg.ProtocolVersion(),
		"agent_version", cfg.AgentVersion())
	logAutoNATPolicy(log, cfg.AutoNATOnlyGlobalIPs)

	if err := s.watchBus(ctx); err != nil {
		s.Close()
		return nil, err
	}
	s.watchNetwork()

	return s, nil
}

// logAutoNATPolicy records the configured dial-back address policy at
// startup. go-libp2p's AutoNAT service always refuses private candidate
// addresses and exposes no toggle for it, so a relaxed only-global-ips
// policy cannot take effect and is called out.
func logAutoNATPolicy(log *slog.Logger, onlyGlobalIPs bool) {
	if onlyGlobalIPs {
		log.Debug("autonat dial-back limited to global addresses")
		return
	}
	log.Warn("autonat_only_global_ips is disabled but dial-back remains limited to global addresses")
}

// watchBus translates host event-bus deliveries into loop events.
func (s *Swarm) watchBus(ctx context.Context) error {
	sub, err := s.host.EventBus().Subscribe([]interface{}{
		new(event.EvtPeerIdentificationCompleted),
		new(event.EvtLocalAddressesUpdated),
		new(event.EvtLocalReachabilityChanged),
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to host events: %w", err)
	}
	s.sub = sub

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-sub.Out():
				if !ok {
					return
				}
				switch evt := raw.(type) {
				case event.EvtPeerIdentificationCompleted:
					s.push(identifyReceivedEvent{
						Peer:            evt.Peer,
						ProtocolVersion: evt.ProtocolVersion,
						AgentVersion:    evt.AgentVersion,
						ListenAddrs:     evt.ListenAddrs,
					})
				case event.EvtLocalAddressesUpdated:
					for _, updated := range evt.Current {
						if manet.IsPublicAddr(updated.Address) {
							s.push(externalAddrEvent{Addr: updated.Address})
							break
						}
					}
				case event.EvtLocalReachabilityChanged:
					s.push(reachabilityEvent{Status: evt.Reachability})
				}
			}
		}
	}()
	return nil
}

// watchNetwork forwards connection lifecycle notifications. go-libp2p does
// not surface a close cause on disconnect, so those events carry
// CauseUnknown and never evict on their own; evictions come from events
// whose cause is known.
func (s *Swarm) watchNetwork() {
	s.host.Network().Notify(&network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			s.push(connectionEstablishedEvent{
				Peer:    c.RemotePeer(),
				Inbound: c.Stat().Direction == network.DirInbound,
			})
		},
		DisconnectedF: func(_ network.Network, c network.Conn) {
			s.push(connectionClosedEvent{Peer: c.RemotePeer(), Cause: CauseUnknown})
		},
		ListenF: func(_ network.Network, addr ma.Multiaddr) {
			s.push(listenAddrEvent{Addr: addr})
		},
	})
}

// push delivers an event to the loop, preserving per-source ordering. The
// send blocks the producing goroutine under backlog rather than spilling to
// ad-hoc goroutines, which could reorder events; the channel buffer absorbs
// normal bursts and shutdown releases any blocked producer.
func (s *Swarm) push(evt swarmEvent) {
	select {
	case s.events <- evt:
	case <-s.ctx.Done():
	}
}

func (s *Swarm) Listen(addr ma.Multiaddr) error {
	return s.host.Network().Listen(addr)
}

// dialTimeout bounds the reachability dial issued for explicitly registered
// peers.
const dialTimeout = 30 * time.Second

// Dial asynchronously verifies that a registered peer is reachable at its
// known addresses. A failed attempt surfaces as an outgoing-connection
// error, which evicts the peer again; a successful one arrives through the
// normal connection notifications.
func (s *Swarm) Dial(p peer.ID) {
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, dialTimeout)
		defer cancel()
		if err := s.host.Connect(ctx, peer.AddrInfo{ID: p}); err != nil {
			s.push(dialFailedEvent{Peer: p, Err: err})
		}
	}()
}

func (s *Swarm) AddAddress(p peer.ID, addr ma.Multiaddr) {
	s.host.Peerstore().AddAddr(p, addr, peerstore.PermanentAddrTTL)
	if _, err := s.dht.RoutingTable().TryAddPeer(p, true, true); err != nil {
		// Bucket full or peer filtered; the address stays in the
		// peerstore and the entry remains acknowledgeable.
		s.log.Debug("routing table did not accept peer", "peer", p, "error", err)
	}
	s.push(routingUpdatedEvent{Peer: p})
}

func (s *Swarm) RemovePeer(p peer.ID) {
	s.dht.RoutingTable().RemovePeer(p)
}

func (s *Swarm) PeerCount() int {
	return s.dht.RoutingTable().Size()
}

func (s *Swarm) Entries() []RoutingEntry {
	peers := s.dht.RoutingTable().ListPeers()
	entries := make([]RoutingEntry, 0, len(peers))
	for _, p := range peers {
		entries = append(entries, RoutingEntry{
			Peer:  p,
			Addrs: s.host.Peerstore().Addrs(p),
		})
	}
	return entries
}

// StartBootstrap begins a routing-table refresh walk and forwards its
// completion into the event stream under a fresh query ID.
func (s *Swarm) StartBootstrap() (uint64, error) {
	id := s.queryID.Add(1)
	result := s.dht.RefreshRoutingTable()
	go func() {
		var err error
		select {
		case err = <-result:
		case <-s.ctx.Done():
			return
		}
		select {
		case s.events <- bootstrapResultEvent{ID: id, Err: err}:
		case <-s.ctx.Done():
		}
	}()
	return id, nil
}

func (s *Swarm) LocalID() peer.ID {
	return s.host.ID()
}

func (s *Swarm) Close() error {
	s.cancel()
	if s.sub != nil {
		s.sub.Close()
	}
	if err := s.dht.Close(); err != nil {
		s.log.Warn("DHT close failed", "error", err)
	}
	return s.host.Close()
}

// parsePeerIDs decodes a list of textual peer IDs from configuration.
func parsePeerIDs(ids []string) ([]peer.ID, error) {
	out := make([]peer.ID, 0, len(ids))
	for _, raw := range ids {
		p, err := peer.Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", raw, err)
		}
		out = append(out, p)
	}
	return out, nil
}
