package payment

import (
	"sync"
	"time"

	"github.com/TruongSon421/storefront-checkout/pkg/config"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
)

const defaultRedirectCooldown = 30 * time.Second

// RedirectGate stops accidental double navigation to the external payment
// page. A redirect needs an explicit confirmation first, and once taken the
// gate stays closed for a cooldown window.
type RedirectGate struct {
	cooldown time.Duration
	now      func() time.Time

	mu           sync.Mutex
	confirmed    bool
	lastRedirect time.Time
}

// NewRedirectGate builds a gate with the configured cooldown. A nil clock
// falls back to the wall clock.
func NewRedirectGate(cfg config.RedirectConfig, now func() time.Time) *RedirectGate {
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = defaultRedirectCooldown
	}
	if now == nil {
		now = time.Now
	}
	return &RedirectGate{cooldown: cooldown, now: now}
}

// Confirm records the shopper's explicit intent to pay.
func (g *RedirectGate) Confirm() {
	g.mu.Lock()
	g.confirmed = true
	g.mu.Unlock()
}

// TryRedirect opens the gate once per cooldown window. Without a prior
// confirmation, or inside the window, the redirect is refused.
func (g *RedirectGate) TryRedirect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.confirmed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "redirect requires payment confirmation")
	}
	current := g.now()
	if !g.lastRedirect.IsZero() && current.Sub(g.lastRedirect) < g.cooldown {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "redirect already in progress")
	}
	g.lastRedirect = current
	return nil
}

// Reset closes the gate, typically after the transaction settles.
func (g *RedirectGate) Reset() {
	g.mu.Lock()
	g.confirmed = false
	g.lastRedirect = time.Time{}
	g.mu.Unlock()
}
