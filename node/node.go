// Package node dispatches decoded RPC messages to local state.
//
// It has no routing table: a Lookup only reports whether the destination is
// held locally, and a Put stores the value in the local store.
package node

import (
	"container/list"
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"xdao.co/overlay/address"
	"xdao.co/overlay/rpc"
	"xdao.co/overlay/storage"
)

// Event is what the handler recorded for one message.
type Event struct {
	Kind        rpc.Kind
	Source      address.Locator
	Destination address.Address
	// Stored is the address a Put value was stored under.
	Stored address.Address
	// Held reports whether a Lookup destination is in the local store.
	Held bool
}

// DefaultMaxPeers bounds the peers a Handler remembers when MaxPeers is unset.
const DefaultMaxPeers = 1024

// Handler applies incoming messages to a store.
type Handler struct {
	Self  address.Address
	Store storage.Store
	Log   *log.Logger
	// MaxPeers caps Peers; the least recently heard peer is evicted first.
	MaxPeers int

	mu       sync.Mutex
	lastSeen map[address.Locator]*list.Element
	order    *list.List // of peerEntry, most recent at front
}

type peerEntry struct {
	src  address.Locator
	kind rpc.Kind
}

func New(self address.Address, store storage.Store, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Handler{Self: self, Store: store, Log: logger, MaxPeers: DefaultMaxPeers}
}

// HandleRPC matches on the message variant. Errors from the store are
// returned unchanged.
func (h *Handler) HandleRPC(ctx context.Context, m rpc.Message) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	head := m.Head()
	ev := Event{Kind: m.Kind(), Source: head.Source, Destination: head.Destination}
	h.touch(head.Source, m.Kind())

	switch msg := m.(type) {
	case rpc.Ping:
		h.Log.Printf("ping from %s to %s", head.Source, head.Destination)
	case rpc.Lookup:
		ev.Held = h.Store.Has(head.Destination)
		h.Log.Printf("lookup from %s for %s held=%t", head.Source, head.Destination, ev.Held)
	case rpc.Put:
		a, err := h.Store.Put(msg.Value)
		if err != nil {
			return Event{}, fmt.Errorf("node: put from %s: %w", head.Source, err)
		}
		ev.Stored = a
		h.Log.Printf("put from %s to %s stored %s (%d bytes)", head.Source, head.Destination, a, len(msg.Value))
	default:
		return Event{}, fmt.Errorf("node: unsupported message %T", m)
	}
	return ev, nil
}

func (h *Handler) touch(src address.Locator, kind rpc.Kind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastSeen == nil {
		h.lastSeen = map[address.Locator]*list.Element{}
		h.order = list.New()
	}
	if e, ok := h.lastSeen[src]; ok {
		e.Value = peerEntry{src: src, kind: kind}
		h.order.MoveToFront(e)
		return
	}
	h.lastSeen[src] = h.order.PushFront(peerEntry{src: src, kind: kind})
	limit := h.MaxPeers
	if limit <= 0 {
		limit = DefaultMaxPeers
	}
	for h.order.Len() > limit {
		old := h.order.Remove(h.order.Back()).(peerEntry)
		delete(h.lastSeen, old.src)
	}
}

// Peers returns the most recently heard locators, at most MaxPeers, and the
// kind of each one's latest message.
func (h *Handler) Peers() map[address.Locator]rpc.Kind {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[address.Locator]rpc.Kind, len(h.lastSeen))
	for k, e := range h.lastSeen {
		out[k] = e.Value.(peerEntry).kind
	}
	return out
}
