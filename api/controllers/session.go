package controllers

import (
	"net/http"

	"github.com/TruongSon421/storefront-checkout/api/middleware"
	"github.com/TruongSon421/storefront-checkout/api/responses"
	"github.com/TruongSon421/storefront-checkout/internal/session"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
)

// EndSession drops the server-side session bundle and expires the cookie.
// The client calls this on logout; an idle session is pruned by the hub
// sweeper instead.
func EndSession(hub *session.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sessionID := middleware.SessionIDFromContext(ctx)
		hub.Drop(sessionID)

		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		if logg != nil {
			logg.Info(ctx, "session ended")
		}
		responses.WriteSuccess(w, map[string]string{"status": "ended"})
	}
}
