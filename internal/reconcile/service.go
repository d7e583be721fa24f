package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/TruongSon421/storefront-checkout/internal/cartstate"
	"github.com/TruongSon421/storefront-checkout/internal/identity"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
	"github.com/TruongSon421/storefront-checkout/pkg/metrics"
	"github.com/TruongSon421/storefront-checkout/pkg/types"
	"go.uber.org/multierr"
)

type cartMerger interface {
	MergeGuestCart(ctx context.Context, userID, guestID string) ([]types.CartItem, error)
	FetchUserCart(ctx context.Context, userID string) ([]types.CartItem, error)
}

type identityStore interface {
	Peek(ctx context.Context, sessionID string) (string, error)
	Retire(ctx context.Context, sessionID string) error
}

type mergeGuard interface {
	Acquire(ctx context.Context, guestID string) (bool, error)
	Release(ctx context.Context, guestID string) error
}

// Service folds a guest cart into the authenticated user's cart exactly once
// at the authentication boundary. Safe to call unconditionally on every
// login or registration.
type Service struct {
	identities identityStore
	carts      cartMerger
	state      *cartstate.State
	guard      mergeGuard
	metrics    *metrics.PaymentMetrics
	logg       *logger.Logger
}

// NewService builds a reconciliation service. The guard is optional; without
// it only the guest-token lifecycle protects against duplicate merges.
func NewService(identities identityStore, carts cartMerger, state *cartstate.State, guard mergeGuard, m *metrics.PaymentMetrics, logg *logger.Logger) (*Service, error) {
	if identities == nil {
		return nil, fmt.Errorf("identity store required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart gateway required")
	}
	if state == nil {
		return nil, fmt.Errorf("cart state required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		identities: identities,
		carts:      carts,
		state:      state,
		guard:      guard,
		metrics:    m,
		logg:       logg,
	}, nil
}

// MergeOnAuthentication merges the session's guest cart into the user's
// server-side cart. Without a guest identity it is a no-op. The merge call
// itself is issued at most once: on failure the guest token is kept so a
// future login retries, and the user's pre-merge cart is fetched best-effort
// so the local view is not left empty.
func (s *Service) MergeOnAuthentication(ctx context.Context, sessionID, userID string) error {
	if userID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	guestID, err := s.identities.Peek(ctx, sessionID)
	if err != nil {
		if errors.Is(err, identity.ErrNoGuestIdentity) {
			s.metrics.IncMerge("noop")
			return nil
		}
		return err
	}

	ctx = s.logg.WithGuestID(s.logg.WithUserID(ctx, userID), guestID)

	if s.guard != nil {
		acquired, guardErr := s.guard.Acquire(ctx, guestID)
		if guardErr != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, guardErr, "acquire merge guard")
		}
		if !acquired {
			// Another login is merging this guest cart right now. Adopt
			// whatever the server has instead of issuing a second merge.
			s.logg.Warn(ctx, "merge already in flight, skipping")
			s.metrics.IncMerge("noop")
			return s.adoptUserCart(ctx, userID)
		}
	}

	merged, err := s.carts.MergeGuestCart(ctx, userID, guestID)
	if err != nil {
		s.metrics.IncMerge("failed")
		s.logg.Error(ctx, "guest cart merge failed", err)
		if s.guard != nil {
			if relErr := s.guard.Release(ctx, guestID); relErr != nil {
				s.logg.Error(ctx, "failed to release merge guard", relErr)
			}
		}
		if fetchErr := s.adoptUserCart(ctx, userID); fetchErr != nil {
			err = multierr.Append(err, fetchErr)
		}
		return err
	}

	// Local state is replaced only after the merge call has resolved; the
	// server's post-merge item set is authoritative.
	s.state.SetItems(merged)

	if err := s.identities.Retire(ctx, sessionID); err != nil {
		s.logg.Error(ctx, "failed to retire guest identity after merge", err)
		return err
	}

	s.metrics.IncMerge("merged")
	s.logg.Info(ctx, "guest cart merged")
	return nil
}

func (s *Service) adoptUserCart(ctx context.Context, userID string) error {
	items, err := s.carts.FetchUserCart(ctx, userID)
	if err != nil {
		return err
	}
	s.state.SetItems(items)
	return nil
}
