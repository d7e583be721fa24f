package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/TruongSon421/storefront-checkout/internal/cartstate"
	"github.com/TruongSon421/storefront-checkout/internal/checkout"
	"github.com/TruongSon421/storefront-checkout/internal/reconcile"
)

// Bundle holds the per-session pieces of the storefront: the reactive cart
// view plus the services bound to it.
type Bundle struct {
	State      *cartstate.State
	Reconciler *reconcile.Service
	Checkout   *checkout.Orchestrator
}

// Factory wires a fresh bundle around a new cart state.
type Factory func(state *cartstate.State) (*Bundle, error)

type entry struct {
	bundle   *Bundle
	lastSeen time.Time
}

// Hub tracks one bundle per browser session. Bundles are a cache: an evicted
// session gets a fresh bundle on its next request and the cart is refetched
// from the cart service.
type Hub struct {
	factory Factory
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewHub builds an empty hub.
func NewHub(factory Factory) (*Hub, error) {
	if factory == nil {
		return nil, fmt.Errorf("bundle factory required")
	}
	return &Hub{factory: factory, now: time.Now, entries: map[string]*entry{}}, nil
}

// Get returns the session's bundle, creating it on first touch.
func (h *Hub) Get(sessionID string) (*Bundle, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if ent, ok := h.entries[sessionID]; ok {
		ent.lastSeen = h.now()
		return ent.bundle, nil
	}
	bundle, err := h.factory(cartstate.New())
	if err != nil {
		return nil, err
	}
	h.entries[sessionID] = &entry{bundle: bundle, lastSeen: h.now()}
	return bundle, nil
}

// Drop removes a session's bundle, typically on logout.
func (h *Hub) Drop(sessionID string) {
	h.mu.Lock()
	delete(h.entries, sessionID)
	h.mu.Unlock()
}

// PruneIdle evicts every session untouched for at least idleFor and reports
// how many were dropped. Session ids come from clients, so the hub must not
// grow without bound.
func (h *Hub) PruneIdle(idleFor time.Duration) int {
	cutoff := h.now().Add(-idleFor)
	h.mu.Lock()
	defer h.mu.Unlock()
	pruned := 0
	for sessionID, ent := range h.entries {
		if !ent.lastSeen.After(cutoff) {
			delete(h.entries, sessionID)
			pruned++
		}
	}
	return pruned
}

// Len reports the number of live sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
