package reconcile

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/TruongSon421/storefront-checkout/internal/cartstate"
	"github.com/TruongSon421/storefront-checkout/internal/identity"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
	"github.com/TruongSon421/storefront-checkout/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMerger struct {
	mergeCalls  int
	mergeResult []types.CartItem
	mergeErr    error
	fetchCalls  int
	fetchResult []types.CartItem
	fetchErr    error
}

func (s *stubMerger) MergeGuestCart(_ context.Context, _, _ string) ([]types.CartItem, error) {
	s.mergeCalls++
	if s.mergeErr != nil {
		return nil, s.mergeErr
	}
	return s.mergeResult, nil
}

func (s *stubMerger) FetchUserCart(_ context.Context, _ string) ([]types.CartItem, error) {
	s.fetchCalls++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.fetchResult, nil
}

type stubGuestCreator struct {
	next int
}

func (s *stubGuestCreator) CreateGuestCart(context.Context) (string, error) {
	s.next++
	return fmt.Sprintf("guest-%d", s.next), nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newIdentityStore(t *testing.T) (*identity.Store, *stubGuestCreator) {
	t.Helper()
	creator := &stubGuestCreator{}
	store, err := identity.NewStore(identity.NewMemoryTokenStore(), creator, testLogger())
	require.NoError(t, err)
	return store, creator
}

func newService(t *testing.T, identities identityStore, carts cartMerger, state *cartstate.State) *Service {
	t.Helper()
	svc, err := NewService(identities, carts, state, nil, nil, testLogger())
	require.NoError(t, err)
	return svc
}

func TestMergeAdoptsServerCartAndRetiresGuest(t *testing.T) {
	t.Parallel()

	identities, creator := newIdentityStore(t)
	_, err := identities.EnsureGuest(context.Background(), "sess-1")
	require.NoError(t, err)

	merger := &stubMerger{
		mergeResult: []types.CartItem{{ProductID: "P1", Color: "red", Quantity: 2}},
	}
	state := cartstate.New()
	svc := newService(t, identities, merger, state)

	require.NoError(t, svc.MergeOnAuthentication(context.Background(), "sess-1", "u-1"))

	items := state.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 1, merger.mergeCalls)

	// Guest identity is retired; a new EnsureGuest provisions a fresh token.
	_, err = identities.Peek(context.Background(), "sess-1")
	assert.ErrorIs(t, err, identity.ErrNoGuestIdentity)
	next, err := identities.EnsureGuest(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "guest-2", next)
	assert.Equal(t, 2, creator.next)
}

func TestMergeWithoutGuestIdentityIsNoop(t *testing.T) {
	t.Parallel()

	identities, _ := newIdentityStore(t)
	merger := &stubMerger{}
	state := cartstate.New()
	svc := newService(t, identities, merger, state)

	require.NoError(t, svc.MergeOnAuthentication(context.Background(), "sess-1", "u-1"))
	require.NoError(t, svc.MergeOnAuthentication(context.Background(), "sess-1", "u-1"))

	assert.Equal(t, 0, merger.mergeCalls, "no guest cart means no merge call")
	assert.Equal(t, 0, merger.fetchCalls)
}

func TestMergeFailureKeepsGuestAndFallsBackToUserCart(t *testing.T) {
	t.Parallel()

	identities, _ := newIdentityStore(t)
	guestID, err := identities.EnsureGuest(context.Background(), "sess-1")
	require.NoError(t, err)

	merger := &stubMerger{
		mergeErr:    fmt.Errorf("503 from cart service"),
		fetchResult: []types.CartItem{{ProductID: "P9", Quantity: 1}},
	}
	state := cartstate.New()
	svc := newService(t, identities, merger, state)

	err = svc.MergeOnAuthentication(context.Background(), "sess-1", "u-1")
	require.Error(t, err)

	// Guest token survives so the next login can retry.
	kept, peekErr := identities.Peek(context.Background(), "sess-1")
	require.NoError(t, peekErr)
	assert.Equal(t, guestID, kept)

	// UI falls back to the pre-merge user cart.
	require.Len(t, state.Items(), 1)
	assert.Equal(t, "P9", state.Items()[0].ProductID)
	assert.Equal(t, 1, merger.fetchCalls)
}

func TestMergeFailureWithFailedFallbackReportsBoth(t *testing.T) {
	t.Parallel()

	identities, _ := newIdentityStore(t)
	_, err := identities.EnsureGuest(context.Background(), "sess-1")
	require.NoError(t, err)

	merger := &stubMerger{
		mergeErr: fmt.Errorf("merge refused"),
		fetchErr: fmt.Errorf("fetch refused"),
	}
	state := cartstate.New()
	svc := newService(t, identities, merger, state)

	err = svc.MergeOnAuthentication(context.Background(), "sess-1", "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "merge refused")
	assert.Contains(t, err.Error(), "fetch refused")
	assert.Empty(t, state.Items(), "failed fallback must not corrupt local state")
}

type fakeGuard struct {
	acquired bool
	releases int
}

func (f *fakeGuard) Acquire(context.Context, string) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeGuard) Release(context.Context, string) error {
	f.acquired = false
	f.releases++
	return nil
}

func TestGuardPreventsSecondConcurrentMerge(t *testing.T) {
	t.Parallel()

	identities, _ := newIdentityStore(t)
	_, err := identities.EnsureGuest(context.Background(), "sess-1")
	require.NoError(t, err)

	merger := &stubMerger{
		mergeResult: []types.CartItem{{ProductID: "P1", Quantity: 1}},
	}
	guard := &fakeGuard{acquired: true} // simulate another login holding the guard
	state := cartstate.New()
	svc, err := NewService(identities, merger, state, guard, nil, testLogger())
	require.NoError(t, err)

	require.NoError(t, svc.MergeOnAuthentication(context.Background(), "sess-1", "u-1"))
	assert.Equal(t, 0, merger.mergeCalls, "guarded call must not merge again")
	assert.Equal(t, 1, merger.fetchCalls, "guarded call adopts the server cart instead")
}

func TestGuardReleasedAfterMergeFailure(t *testing.T) {
	t.Parallel()

	identities, _ := newIdentityStore(t)
	_, err := identities.EnsureGuest(context.Background(), "sess-1")
	require.NoError(t, err)

	merger := &stubMerger{mergeErr: fmt.Errorf("boom")}
	guard := &fakeGuard{}
	state := cartstate.New()
	svc, err := NewService(identities, merger, state, guard, nil, testLogger())
	require.NoError(t, err)

	require.Error(t, svc.MergeOnAuthentication(context.Background(), "sess-1", "u-1"))
	assert.Equal(t, 1, guard.releases, "failed merge must release the guard for retry")
	assert.False(t, guard.acquired)
}
