package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/TruongSon421/storefront-checkout/pkg/redis"
)

// MergeGuard marks a guest cart merge as in flight using redis SETNX so the
// merge call is issued at most once, even when two login handlers race.
// Keys follow the `storefront:merge:<guest_id>` pattern.
type MergeGuard struct {
	store redis.MergeGuardStore
	ttl   time.Duration
}

// NewMergeGuard builds a guard whose mark expires after the given TTL.
func NewMergeGuard(store redis.MergeGuardStore, ttl time.Duration) (*MergeGuard, error) {
	if store == nil {
		return nil, errors.New("merge guard store is required")
	}
	if ttl <= 0 {
		return nil, errors.New("ttl must be positive")
	}
	return &MergeGuard{store: store, ttl: ttl}, nil
}

// Acquire returns true when this caller owns the merge attempt for the guest
// cart. A false return means another attempt is already in flight.
func (g *MergeGuard) Acquire(ctx context.Context, guestID string) (bool, error) {
	if guestID == "" {
		return false, errors.New("guest id is required")
	}
	return g.store.SetNX(ctx, g.store.MergeKey(guestID), "1", g.ttl)
}

// Release clears the mark so a later login can retry after a failed merge.
func (g *MergeGuard) Release(ctx context.Context, guestID string) error {
	if guestID == "" {
		return errors.New("guest id is required")
	}
	return g.store.Del(ctx, g.store.MergeKey(guestID))
}
