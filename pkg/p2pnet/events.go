package p2pnet

import (
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// swarmEvent is the closed union of protocol sub-events and connection
// lifecycle events delivered to the event loop. The handler switches over
// it exhaustively; the variant set is fixed at compile time.
type swarmEvent interface {
	isSwarmEvent()
}

// routingUpdatedEvent reports that the routing table registered or
// refreshed an entry for a peer.
type routingUpdatedEvent struct {
	Peer peer.ID
}

// identifyReceivedEvent carries the remote side of an identify handshake.
type identifyReceivedEvent struct {
	Peer            peer.ID
	ProtocolVersion string
	AgentVersion    string
	ListenAddrs     []ma.Multiaddr
}

// bootstrapResultEvent reports completion of a bootstrap query previously
// started with swarmDriver.StartBootstrap. A nil Err means the query walked
// the table to zero remaining peers.
type bootstrapResultEvent struct {
	ID  uint64
	Err error
}

// connectionEstablishedEvent fires for every new connection, in either
// direction.
type connectionEstablishedEvent struct {
	Peer    peer.ID
	Inbound bool
}

// connectionClosedEvent fires when a connection goes away, with the best
// cause classification the transport surfaced.
type connectionClosedEvent struct {
	Peer  peer.ID
	Cause DisconnectCause
}

// dialFailedEvent reports an outgoing connection attempt that never
// completed. All recognized outbound failures are fatal enough to evict.
type dialFailedEvent struct {
	Peer peer.ID
	Err  error
}

// listenAddrEvent announces a new local listen address.
type listenAddrEvent struct {
	Addr ma.Multiaddr
}

// externalAddrEvent carries the latest externally-observed public address.
type externalAddrEvent struct {
	Addr ma.Multiaddr
}

// reachabilityEvent reports AutoNAT reachability transitions. Consumed for
// observability only.
type reachabilityEvent struct {
	Status network.Reachability
}

func (routingUpdatedEvent) isSwarmEvent()        {}
func (identifyReceivedEvent) isSwarmEvent()      {}
func (bootstrapResultEvent) isSwarmEvent()       {}
func (connectionEstablishedEvent) isSwarmEvent() {}
func (connectionClosedEvent) isSwarmEvent()      {}
func (dialFailedEvent) isSwarmEvent()            {}
func (listenAddrEvent) isSwarmEvent()            {}
func (externalAddrEvent) isSwarmEvent()          {}
func (reachabilityEvent) isSwarmEvent()          {}

// DisconnectCause classifies why a connection closed. The split decides
// routing-table eviction: I/O and protocol-handler failures evict, idle
// keepalive expiry and unknown causes leave the peer eligible for redial.
type DisconnectCause int

const (
	CauseUnknown DisconnectCause = iota
	CauseIdleTimeout
	CauseIOError
	CauseProtocolError
)

// evicts reports whether a close cause removes the peer from the routing
// table.
func (c DisconnectCause) evicts() bool {
	return c == CauseIOError || c == CauseProtocolError
}

func (c DisconnectCause) String() string {
	switch c {
	case CauseIdleTimeout:
		return "idle-timeout"
	case CauseIOError:
		return "io-error"
	case CauseProtocolError:
		return "protocol-error"
	default:
		return "unknown"
	}
}
