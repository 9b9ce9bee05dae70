package p2pnet

import (
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// RoutingEntry is one routing-table row: a peer and every address known
// for it.
type RoutingEntry struct {
	Peer  peer.ID
	Addrs []ma.Multiaddr
}

// command is the closed union of requests a Client can send to the event
// loop. Every variant that produces a result carries its own one-shot
// response channel (buffered, capacity 1) signaled exactly once.
type command interface {
	isCommand()
}

type startListeningCmd struct {
	Addr ma.Multiaddr
	Resp chan error
}

type addAddressCmd struct {
	Peer peer.ID
	Addr ma.Multiaddr
	// Resp is completed later, by the routing-updated event for Peer.
	Resp chan error
}

type bootstrapCmd struct {
	Resp chan error
}

type waitIncomingCmd struct {
	// Resp receives once, when the first inbound connection lands.
	Resp chan struct{}
}

type countPeersCmd struct {
	Resp chan int
}

type entriesCmd struct {
	Resp chan []RoutingEntry
}

type multiaddressCmd struct {
	// Resp receives the last externally-observed address, or nil when the
	// node has not learned one yet.
	Resp chan ma.Multiaddr
}

func (startListeningCmd) isCommand() {}
func (addAddressCmd) isCommand()     {}
func (bootstrapCmd) isCommand()      {}
func (waitIncomingCmd) isCommand()   {}
func (countPeersCmd) isCommand()     {}
func (entriesCmd) isCommand()        {}
func (multiaddressCmd) isCommand()   {}

// respond delivers a response without ever blocking the event loop. The
// response channels are buffered with capacity 1, so the only way the send
// can be skipped is a duplicate signal, which the pending-map bookkeeping
// already rules out. A caller that stopped waiting simply never reads the
// buffered value.
func respond[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}
