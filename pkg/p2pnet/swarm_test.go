package p2pnet

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestPush_PreservesOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	s := &Swarm{events: make(chan swarmEvent, 1), ctx: ctx}

	first := testPeer(t, "push-first")
	second := testPeer(t, "push-second")
	third := testPeer(t, "push-third")

	// Fill the buffer, then push two more from a single producer while the
	// consumer drains; delivery must match submission order.
	s.push(routingUpdatedEvent{Peer: first})
	pushed := make(chan struct{})
	go func() {
		s.push(routingUpdatedEvent{Peer: second})
		s.push(routingUpdatedEvent{Peer: third})
		close(pushed)
	}()

	want := []string{first.String(), second.String(), third.String()}
	for i, w := range want {
		select {
		case evt := <-s.events:
			got := evt.(routingUpdatedEvent).Peer.String()
			if got != w {
				t.Fatalf("event %d = peer %s, want %s", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d never delivered", i)
		}
	}
	<-pushed
}

func TestPush_ShutdownReleasesProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Swarm{events: make(chan swarmEvent, 1), ctx: ctx}

	s.push(routingUpdatedEvent{Peer: testPeer(t, "push-fill")})

	released := make(chan struct{})
	go func() {
		s.push(routingUpdatedEvent{Peer: testPeer(t, "push-blocked")})
		close(released)
	}()

	cancel()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("blocked producer not released on shutdown")
	}
}

func TestLogAutoNATPolicy(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	logAutoNATPolicy(log, true)
	if out := buf.String(); !strings.Contains(out, "global addresses") {
		t.Errorf("restricted policy log = %q, want dial-back note", out)
	}

	buf.Reset()
	logAutoNATPolicy(log, false)
	out := buf.String()
	if !strings.Contains(out, "level=WARN") {
		t.Errorf("relaxed policy log = %q, want a warning", out)
	}
	if !strings.Contains(out, "autonat_only_global_ips") {
		t.Errorf("relaxed policy log = %q, want the config key named", out)
	}
}

func TestParsePeerIDs(t *testing.T) {
	valid := testPeer(t, "parse-valid").String()

	ids, err := parsePeerIDs([]string{valid})
	if err != nil {
		t.Fatalf("parsePeerIDs() error = %v", err)
	}
	if len(ids) != 1 || ids[0].String() != valid {
		t.Errorf("parsePeerIDs() = %v, want [%s]", ids, valid)
	}

	if _, err := parsePeerIDs([]string{"not-a-peer-id"}); err == nil {
		t.Error("parsePeerIDs() accepted a malformed ID")
	}
}
