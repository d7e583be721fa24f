package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/TruongSon421/storefront-checkout/pkg/logger"
)

const (
	// SessionCookieName carries the browser session id between requests.
	SessionCookieName = "storefront_session"

	sessionHeaderName = "X-Session-Id"

	sessionCookieMaxAge = 30 * 24 * 60 * 60
)

// Session pins a browser session identifier to every request. The id comes
// from the session cookie or the X-Session-Id header; a first visit gets a
// fresh one and the cookie set.
func Session(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				sessionID = cookie.Value
			}
			if sessionID == "" {
				sessionID = r.Header.Get(sessionHeaderName)
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   sessionCookieMaxAge,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
