package p2pnet

import "errors"

var (
	// ErrUnavailable is returned by every Client method once the network
	// event loop has terminated (all handles closed or process shutting
	// down). Callers must treat it as final; nothing is retried.
	ErrUnavailable = errors.New("network service unavailable")

	// ErrNoKnownPeers is returned by a Bootstrap command issued against an
	// empty routing table. A bootstrap query needs at least one known peer
	// to walk from.
	ErrNoKnownPeers = errors.New("no known peers to bootstrap from")
)
