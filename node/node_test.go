package node

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"

	"xdao.co/overlay/address"
	"xdao.co/overlay/rpc"
	"xdao.co/overlay/storage/localfs"
)

func newHandler(t *testing.T) (*Handler, *localfs.Store, *bytes.Buffer) {
	t.Helper()
	s, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatalf("localfs.New: %v", err)
	}
	var buf bytes.Buffer
	return New(address.FromHash([]byte("self")), s, log.New(&buf, "", 0)), s, &buf
}

func builder() *rpc.Builder {
	return rpc.NewBuilder().SetSourceIP("10.0.0.7").SetSourcePort(4000).SetDestination(address.FullAddress())
}

func TestHandlePutStoresValue(t *testing.T) {
	h, s, _ := newHandler(t)
	value := []byte("payload")
	put, err := builder().SetValue(value).BuildPut()
	if err != nil {
		t.Fatalf("BuildPut: %v", err)
	}

	ev, err := h.HandleRPC(context.Background(), put)
	if err != nil {
		t.Fatalf("HandleRPC: %v", err)
	}
	// Destination and value are independent; the value is stored under its own hash.
	if ev.Stored != address.FromHash(value) {
		t.Fatalf("stored under %s", ev.Stored)
	}
	if ev.Destination != address.FullAddress() {
		t.Fatalf("destination changed")
	}
	got, err := s.Get(ev.Stored)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("stored bytes differ")
	}
}

func TestHandleLookupReportsHeld(t *testing.T) {
	h, s, logs := newHandler(t)
	a, err := s.Put([]byte("held"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	lookup, err := builder().SetDestination(a).BuildLookup()
	if err != nil {
		t.Fatalf("BuildLookup: %v", err)
	}
	ev, err := h.HandleRPC(context.Background(), lookup)
	if err != nil {
		t.Fatalf("HandleRPC: %v", err)
	}
	if !ev.Held || ev.Kind != rpc.KindLookup {
		t.Fatalf("unexpected event %+v", ev)
	}

	lookup, err = builder().BuildLookup()
	if err != nil {
		t.Fatalf("BuildLookup: %v", err)
	}
	ev, err = h.HandleRPC(context.Background(), lookup)
	if err != nil {
		t.Fatalf("HandleRPC: %v", err)
	}
	if ev.Held {
		t.Fatalf("full address should not be held")
	}
	if !strings.Contains(logs.String(), "lookup from 10.0.0.7:4000") {
		t.Fatalf("missing log line: %q", logs.String())
	}
}

func TestHandlePingTracksPeer(t *testing.T) {
	h, _, _ := newHandler(t)
	ping, err := builder().BuildPing()
	if err != nil {
		t.Fatalf("BuildPing: %v", err)
	}
	if _, err := h.HandleRPC(context.Background(), ping); err != nil {
		t.Fatalf("HandleRPC: %v", err)
	}
	peers := h.Peers()
	if len(peers) != 1 || peers[ping.Source] != rpc.KindPing {
		t.Fatalf("unexpected peers %v", peers)
	}
}

func TestPeersEvictLeastRecent(t *testing.T) {
	h, _, _ := newHandler(t)
	h.MaxPeers = 3
	ctx := context.Background()
	send := func(port int) rpc.Ping {
		t.Helper()
		p, err := builder().SetSourcePort(port).BuildPing()
		if err != nil {
			t.Fatalf("BuildPing: %v", err)
		}
		if _, err := h.HandleRPC(ctx, p); err != nil {
			t.Fatalf("HandleRPC: %v", err)
		}
		return p
	}
	first := send(5001)
	second := send(5002)
	send(5003)
	send(5001) // refresh first so second is now oldest
	for port := 6000; port < 6100; port++ {
		send(port)
		if n := len(h.Peers()); n > 3 {
			t.Fatalf("tracked %d peers, cap is 3", n)
		}
	}
	peers := h.Peers()
	if _, ok := peers[first.Source]; ok {
		t.Fatalf("old peer still tracked after 100 newer peers")
	}
	if _, ok := peers[second.Source]; ok {
		t.Fatalf("evicted peer still tracked")
	}
	last, err := builder().SetSourcePort(6099).BuildPing()
	if err != nil {
		t.Fatalf("BuildPing: %v", err)
	}
	if peers[last.Source] != rpc.KindPing {
		t.Fatalf("latest peer missing: %v", peers)
	}
}

func TestPeersRefreshKeepsRecent(t *testing.T) {
	h, _, _ := newHandler(t)
	h.MaxPeers = 2
	ctx := context.Background()
	a, _ := builder().SetSourcePort(7001).BuildPing()
	b, _ := builder().SetSourcePort(7002).BuildLookup()
	c, _ := builder().SetSourcePort(7003).BuildPing()
	for _, m := range []rpc.Message{a, b, a, c} {
		if _, err := h.HandleRPC(ctx, m); err != nil {
			t.Fatalf("HandleRPC: %v", err)
		}
	}
	peers := h.Peers()
	if len(peers) != 2 {
		t.Fatalf("unexpected peers %v", peers)
	}
	if peers[a.Source] != rpc.KindPing || peers[c.Source] != rpc.KindPing {
		t.Fatalf("refreshed peer evicted: %v", peers)
	}
	if _, ok := peers[b.Source]; ok {
		t.Fatalf("least recent peer kept: %v", peers)
	}
}

func TestHandleCanceled(t *testing.T) {
	h, _, _ := newHandler(t)
	ping, err := builder().BuildPing()
	if err != nil {
		t.Fatalf("BuildPing: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.HandleRPC(ctx, ping); err == nil {
		t.Fatalf("expected context error")
	}
}
