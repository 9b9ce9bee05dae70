package p2pnet

import (
	"context"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// Client is the handle every other part of the process uses for network
// effects. It holds only channel endpoints, never a reference into the
// event loop's state, so it is safe to copy and share across goroutines.
// Each method builds a fresh one-shot response channel, sends a command,
// and awaits the answer; once the event loop has terminated every method
// returns ErrUnavailable.
type Client struct {
	commands chan<- command
	closing  chan struct{}
	done     <-chan struct{}
	once     *sync.Once
}

// Close signals the event loop that this process is done with the network.
// Idempotent and shared across all copies of the handle; after the first
// call the loop drains and stops.
func (c *Client) Close() {
	c.once.Do(func() { close(c.closing) })
}

// send enqueues a command, blocking only under extreme command backlog.
func (c *Client) send(ctx context.Context, cmd command) error {
	select {
	case c.commands <- cmd:
		return nil
	case <-c.closing:
		return ErrUnavailable
	case <-c.done:
		return ErrUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await parks until the event loop answers on resp. When the loop shuts
// down concurrently with a response, the buffered response wins: the final
// non-blocking read picks up an answer that raced the done signal.
func await[T any](ctx context.Context, c *Client, resp chan T) (T, error) {
	select {
	case v := <-resp:
		return v, nil
	case <-c.done:
		select {
		case v := <-resp:
			return v, nil
		default:
			var zero T
			return zero, ErrUnavailable
		}
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// call is the send-then-await round trip shared by every method.
func call[T any](ctx context.Context, c *Client, cmd command, resp chan T) (T, error) {
	if err := c.send(ctx, cmd); err != nil {
		var zero T
		return zero, err
	}
	return await(ctx, c, resp)
}

// StartListening begins listening on addr. The error of the listen attempt
// itself is propagated, not retried.
func (c *Client) StartListening(ctx context.Context, addr ma.Multiaddr) error {
	resp := make(chan error, 1)
	res, err := call(ctx, c, startListeningCmd{Addr: addr, Resp: resp}, resp)
	if err != nil {
		return err
	}
	return res
}

// AddAddress registers addr for p in the routing table and waits for the
// asynchronous routing-update acknowledgement.
func (c *Client) AddAddress(ctx context.Context, p peer.ID, addr ma.Multiaddr) error {
	resp := make(chan error, 1)
	res, err := call(ctx, c, addAddressCmd{Peer: p, Addr: addr, Resp: resp}, resp)
	if err != nil {
		return err
	}
	return res
}

// CountDHTPeers returns the current routing-table size.
func (c *Client) CountDHTPeers(ctx context.Context) (int, error) {
	resp := make(chan int, 1)
	return call(ctx, c, countPeersCmd{Resp: resp}, resp)
}

// DHTEntries snapshots the routing table: every known peer with its
// addresses.
func (c *Client) DHTEntries(ctx context.Context) ([]RoutingEntry, error) {
	resp := make(chan []RoutingEntry, 1)
	return call(ctx, c, entriesCmd{Resp: resp}, resp)
}

// ExternalMultiaddress returns the last externally-observed public address,
// or nil when the node has not learned one yet.
func (c *Client) ExternalMultiaddress(ctx context.Context) (ma.Multiaddr, error) {
	resp := make(chan ma.Multiaddr, 1)
	return call(ctx, c, multiaddressCmd{Resp: resp}, resp)
}

// WaitIncomingConnection blocks until at least one peer establishes an
// inbound connection to this node.
func (c *Client) WaitIncomingConnection(ctx context.Context) error {
	resp := make(chan struct{}, 1)
	_, err := call(ctx, c, waitIncomingCmd{Resp: resp}, resp)
	return err
}

// Bootstrap populates the routing table via a full bootstrap query.
//
// Bootstrapping is impossible on an empty table, so a cold-started node
// (no seed list) first waits until some peer discovers it, then issues the
// query. This sequencing is what makes a fresh bootstrap node usable
// without any known peers.
func (c *Client) Bootstrap(ctx context.Context) error {
	count, err := c.CountDHTPeers(ctx)
	if err != nil {
		return err
	}
	if count < 1 {
		if err := c.WaitIncomingConnection(ctx); err != nil {
			return err
		}
	}

	resp := make(chan error, 1)
	res, err := call(ctx, c, bootstrapCmd{Resp: resp}, resp)
	if err != nil {
		return err
	}
	return res
}
