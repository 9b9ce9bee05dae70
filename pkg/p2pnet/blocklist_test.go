package p2pnet

import (
	"testing"

	"github.com/libp2p/go-libp2p/core/network"
)

func TestBlockList(t *testing.T) {
	blocked := testPeer(t, "blocked-peer")
	allowed := testPeer(t, "allowed-peer")

	bl := NewBlockList(nil)
	bl.Block(blocked)

	if bl.InterceptPeerDial(blocked) {
		t.Error("InterceptPeerDial allowed a blocked peer")
	}
	if !bl.InterceptPeerDial(allowed) {
		t.Error("InterceptPeerDial refused an unblocked peer")
	}
	if bl.InterceptSecured(network.DirInbound, blocked, nil) {
		t.Error("InterceptSecured allowed a blocked peer")
	}
	if !bl.InterceptSecured(network.DirInbound, allowed, nil) {
		t.Error("InterceptSecured refused an unblocked peer")
	}
	if !bl.InterceptAccept(nil) {
		t.Error("InterceptAccept must allow pre-handshake connections")
	}

	bl.Unblock(blocked)
	if !bl.InterceptPeerDial(blocked) {
		t.Error("InterceptPeerDial refused an unblocked peer after Unblock")
	}
}
