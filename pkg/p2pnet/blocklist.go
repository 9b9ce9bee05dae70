package p2pnet

import (
	"log/slog"
	"sync"

	"github.com/libp2p/go-libp2p/core/connmgr"
	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// BlockList implements the ConnectionGater interface as a deny-set of peer
// identifiers. Blocked peers are refused at the connection layer, in both
// directions, before any protocol traffic flows.
type BlockList struct {
	blocked map[peer.ID]struct{}
	mu      sync.RWMutex
}

var _ connmgr.ConnectionGater = (*BlockList)(nil)

// NewBlockList creates a gater denying the given peers.
func NewBlockList(peers []peer.ID) *BlockList {
	blocked := make(map[peer.ID]struct{}, len(peers))
	for _, p := range peers {
		blocked[p] = struct{}{}
	}
	return &BlockList{blocked: blocked}
}

// Block adds a peer to the deny-set at runtime.
func (b *BlockList) Block(p peer.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[p] = struct{}{}
}

// Unblock removes a peer from the deny-set.
func (b *BlockList) Unblock(p peer.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blocked, p)
}

func (b *BlockList) isBlocked(p peer.ID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.blocked[p]
	return ok
}

// InterceptPeerDial refuses outbound dials to blocked peers.
func (b *BlockList) InterceptPeerDial(p peer.ID) bool {
	return !b.isBlocked(p)
}

// InterceptAddrDial is a no-op; the peer-level check already ran.
func (b *BlockList) InterceptAddrDial(p peer.ID, _ multiaddr.Multiaddr) bool {
	return !b.isBlocked(p)
}

// InterceptAccept allows all connections at this stage; the peer identity
// is only known after the crypto handshake.
func (b *BlockList) InterceptAccept(network.ConnMultiaddrs) bool {
	return true
}

// InterceptSecured refuses blocked peers once the handshake has verified
// their identity.
func (b *BlockList) InterceptSecured(_ network.Direction, p peer.ID, _ network.ConnMultiaddrs) bool {
	if b.isBlocked(p) {
		slog.Debug("refusing connection from blocked peer", "peer", p)
		return false
	}
	return true
}

// InterceptUpgraded allows every connection that made it past the secured
// check.
func (b *BlockList) InterceptUpgraded(network.Conn) (bool, control.DisconnectReason) {
	return true, 0
}
