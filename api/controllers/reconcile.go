package controllers

import (
	"net/http"

	"github.com/TruongSon421/storefront-checkout/api/middleware"
	"github.com/TruongSon421/storefront-checkout/api/responses"
	"github.com/TruongSon421/storefront-checkout/internal/session"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
)

// MergeCart folds the session's guest cart into the freshly authenticated
// user's cart. The client calls this once right after login.
func MergeCart(hub *session.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := middleware.UserIDFromContext(ctx)
		if userID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "merge requires an authenticated user"))
			return
		}
		sessionID := middleware.SessionIDFromContext(ctx)

		bundle, err := hub.Get(sessionID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := bundle.Reconciler.MergeOnAuthentication(ctx, sessionID, userID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, viewOf(bundle.State))
	}
}
