package p2pnet

import (
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/peermesh/bootnode/internal/config"
)

// swarmDriver is the narrow surface the event loop drives. The production
// implementation wraps the libp2p host and Kademlia DHT; tests substitute
// a fake.
type swarmDriver interface {
	// Listen starts listening on addr. Bind failures propagate unretried.
	Listen(addr ma.Multiaddr) error
	// AddAddress registers addr for p in the routing table and emits a
	// routing-updated event, whether or not p was already known.
	AddAddress(p peer.ID, addr ma.Multiaddr)
	// Dial asynchronously verifies reachability of a registered peer; a
	// failed attempt surfaces later as a dialFailedEvent.
	Dial(p peer.ID)
	// RemovePeer evicts p from the routing table.
	RemovePeer(p peer.ID)
	// PeerCount returns the routing-table size.
	PeerCount() int
	// Entries snapshots the routing table.
	Entries() []RoutingEntry
	// StartBootstrap begins a bootstrap query and returns its ID; the
	// result arrives later as a bootstrapResultEvent with the same ID.
	StartBootstrap() (uint64, error)
	// LocalID is this node's own identifier.
	LocalID() peer.ID
	Close() error
}

// bootstrapState tracks everything bootstrap related: the one-way startup
// latch and the periodic re-bootstrap timer.
type bootstrapState struct {
	// startupDone flips false to true exactly once, when the first full
	// bootstrap query completes successfully. Periodic timer ticks are
	// no-ops until then.
	startupDone bool
	ticker      *time.Ticker
}

// EventLoop owns the swarm exclusively. It multiplexes swarm events, client
// commands, and the periodic bootstrap timer on a single goroutine, so no
// routing or pending-command state ever needs a lock.
type EventLoop struct {
	driver   swarmDriver
	events   <-chan swarmEvent
	commands <-chan command
	// closing is the termination signal: closed when every client handle
	// has been closed.
	closing <-chan struct{}
	// done is closed by the loop on exit; clients treat it as
	// service-unavailable.
	done chan struct{}

	protocolVersion   string
	bootstrapInterval time.Duration

	// pendingBootstrap correlates in-flight bootstrap queries to their
	// callers. pendingRouting holds add-address acks awaiting a
	// routing-updated event; a slice per peer so concurrent registrations
	// of the same peer each get signaled exactly once. pendingIncoming
	// holds "wait for first inbound connection" waiters.
	pendingBootstrap map[uint64]chan error
	pendingRouting   map[peer.ID][]chan error
	pendingIncoming  []chan struct{}

	bootstrap    bootstrapState
	externalAddr ma.Multiaddr

	metrics *Metrics // nil when telemetry disabled
	log     *slog.Logger
}

// Run drives the loop until every client handle is closed. It processes one
// ready source at a time; state mutations from any one event or command are
// atomic with respect to all others. Protocol-level errors never stop the
// loop.
func (e *EventLoop) Run() {
	e.bootstrap.ticker = time.NewTicker(e.bootstrapInterval)
	defer e.bootstrap.ticker.Stop()
	defer e.shutdown()

	for {
		select {
		case evt := <-e.events:
			e.handleEvent(evt)
		case cmd := <-e.commands:
			e.handleCommand(cmd)
		case <-e.closing:
			return
		case <-e.bootstrap.ticker.C:
			e.handlePeriodicBootstrap()
		}
	}
}

// shutdown completes every outstanding pending entry with a terminal answer
// before releasing the swarm, so no caller is left waiting forever.
func (e *EventLoop) shutdown() {
	for id, ch := range e.pendingBootstrap {
		respond(ch, ErrUnavailable)
		delete(e.pendingBootstrap, id)
	}
	for p, chs := range e.pendingRouting {
		for _, ch := range chs {
			respond(ch, ErrUnavailable)
		}
		delete(e.pendingRouting, p)
	}
	// Incoming-connection waiters hold struct{} channels that carry no
	// error slot; closing done below resolves their wait as unavailable.
	e.pendingIncoming = nil

	close(e.done)
	if err := e.driver.Close(); err != nil {
		e.log.Warn("swarm close failed", "error", err)
	}
	e.log.Info("network event loop stopped")
}

func (e *EventLoop) handleEvent(evt swarmEvent) {
	switch evt := evt.(type) {
	case routingUpdatedEvent:
		e.log.Debug("routing updated", "peer", evt.Peer)
		if chs, ok := e.pendingRouting[evt.Peer]; ok {
			delete(e.pendingRouting, evt.Peer)
			for _, ch := range chs {
				respond(ch, nil)
			}
		}

	case identifyReceivedEvent:
		e.handleIdentify(evt)

	case bootstrapResultEvent:
		e.handleBootstrapResult(evt)

	case connectionEstablishedEvent:
		if evt.Inbound && len(e.pendingIncoming) > 0 {
			e.log.Debug("first inbound connection established", "peer", evt.Peer)
			for _, ch := range e.pendingIncoming {
				respond(ch, struct{}{})
			}
			e.pendingIncoming = nil
		}

	case connectionClosedEvent:
		e.log.Debug("connection closed", "peer", evt.Peer, "cause", evt.Cause)
		if evt.Cause.evicts() {
			e.evict(evt.Peer)
		}

	case dialFailedEvent:
		// Every currently-recognized outbound failure warrants removal
		// from further dialing.
		e.log.Debug("outgoing connection failed", "peer", evt.Peer, "error", evt.Err)
		e.evict(evt.Peer)

	case listenAddrEvent:
		full := evt.Addr.Encapsulate(ma.StringCast("/p2p/" + e.driver.LocalID().String()))
		e.log.Info("listening for p2p connections", "addr", full)

	case externalAddrEvent:
		e.externalAddr = evt.Addr
		e.log.Debug("external address updated", "addr", evt.Addr)

	case reachabilityEvent:
		e.log.Info("reachability status changed", "status", evt.Status)
	}
}

// handleIdentify registers a peer's advertised listen addresses, but only
// when the peer speaks our exact protocol version. Nodes running an
// incompatible protocol family must never enter the routing table; that is
// what keeps separate networks on disjoint DHTs.
func (e *EventLoop) handleIdentify(evt identifyReceivedEvent) {
	e.log.Debug("identify received",
		"peer", evt.Peer,
		"protocol_version", evt.ProtocolVersion,
		"agent_version", evt.AgentVersion,
		"listen_addrs", len(evt.ListenAddrs))

	if evt.ProtocolVersion != e.protocolVersion {
		e.log.Debug("ignoring peer with incompatible protocol version",
			"peer", evt.Peer, "protocol_version", evt.ProtocolVersion)
		return
	}

	if agentOlderThan(evt.AgentVersion, config.MinimumSupportedAgent) {
		e.log.Warn("peer runs an outdated agent version",
			"peer", evt.Peer,
			"agent_version", evt.AgentVersion,
			"minimum_supported", config.MinimumSupportedAgent)
	}

	for _, addr := range evt.ListenAddrs {
		// Only addresses carrying the peer's own /p2p/ suffix are dialable
		// as-is; anything else is ambiguous and skipped.
		id, err := addr.ValueForProtocol(ma.P_P2P)
		if err != nil || id != evt.Peer.String() {
			continue
		}
		e.driver.AddAddress(evt.Peer, addr)
	}
}

func (e *EventLoop) handleBootstrapResult(evt bootstrapResultEvent) {
	ch, ok := e.pendingBootstrap[evt.ID]
	if !ok {
		// Periodic fire-and-forget bootstrap; nobody is waiting.
		if evt.Err != nil {
			e.log.Warn("periodic bootstrap failed", "error", evt.Err)
		} else {
			e.log.Debug("periodic bootstrap complete")
		}
		return
	}
	delete(e.pendingBootstrap, evt.ID)

	if evt.Err != nil {
		e.log.Warn("bootstrap failed", "error", evt.Err)
		if e.metrics != nil {
			e.metrics.BootstrapsTotal.WithLabelValues("failure").Inc()
		}
		respond(ch, evt.Err)
		return
	}

	e.log.Info("bootstrap complete", "peers", e.driver.PeerCount())
	if e.metrics != nil {
		e.metrics.BootstrapsTotal.WithLabelValues("success").Inc()
	}
	respond(ch, nil)
	// The initial bootstrap at startup is done; periodic re-bootstraps may
	// begin. One-way latch.
	e.bootstrap.startupDone = true
}

func (e *EventLoop) handleCommand(cmd command) {
	switch cmd := cmd.(type) {
	case startListeningCmd:
		respond(cmd.Resp, e.driver.Listen(cmd.Addr))

	case addAddressCmd:
		e.driver.AddAddress(cmd.Peer, cmd.Addr)
		// Explicit registrations (seed peers) get a reachability dial; an
		// unreachable peer is evicted again by the resulting dial failure.
		e.driver.Dial(cmd.Peer)
		e.pendingRouting[cmd.Peer] = append(e.pendingRouting[cmd.Peer], cmd.Resp)

	case bootstrapCmd:
		if e.driver.PeerCount() == 0 {
			respond(cmd.Resp, ErrNoKnownPeers)
			return
		}
		id, err := e.driver.StartBootstrap()
		if err != nil {
			respond(cmd.Resp, err)
			return
		}
		e.pendingBootstrap[id] = cmd.Resp

	case waitIncomingCmd:
		e.pendingIncoming = append(e.pendingIncoming, cmd.Resp)

	case countPeersCmd:
		respond(cmd.Resp, e.driver.PeerCount())

	case entriesCmd:
		respond(cmd.Resp, e.driver.Entries())

	case multiaddressCmd:
		respond(cmd.Resp, e.externalAddr)
	}
}

// handlePeriodicBootstrap re-issues a bootstrap query on every timer tick,
// fire and forget, but only after the startup bootstrap has succeeded once.
func (e *EventLoop) handlePeriodicBootstrap() {
	if !e.bootstrap.startupDone {
		return
	}
	if _, err := e.driver.StartBootstrap(); err != nil {
		e.log.Warn("failed to start periodic bootstrap", "error", err)
	}
}

// agentOlderThan reports whether an identify agent-version string advertises
// a release version numerically below minimum. Agent strings are
// slash-separated; the first x.y.z segment is the release version. Agents
// without one (development builds, foreign software) are never flagged.
func agentOlderThan(agent, minimum string) bool {
	version := ""
	for _, part := range strings.Split(agent, "/") {
		if isReleaseVersion(part) {
			version = part
			break
		}
	}
	if version == "" {
		return false
	}

	have := strings.Split(version, ".")
	want := strings.Split(minimum, ".")
	for i := 0; i < len(have) && i < len(want); i++ {
		h, _ := strconv.Atoi(have[i])
		w, _ := strconv.Atoi(want[i])
		if h != w {
			return h < w
		}
	}
	return len(have) < len(want)
}

func isReleaseVersion(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			return false
		}
	}
	return true
}

func (e *EventLoop) evict(p peer.ID) {
	e.driver.RemovePeer(p)
	if e.metrics != nil {
		e.metrics.EvictionsTotal.Inc()
	}
	e.log.Debug("peer evicted from routing table", "peer", p)
}
