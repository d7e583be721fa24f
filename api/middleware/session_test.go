package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionEcho() (http.Handler, *string) {
	var captured string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	return handler, &captured
}

func TestSessionReusesCookie(t *testing.T) {
	t.Parallel()

	handler, captured := sessionEcho()
	wrapped := Session(nil)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "storefront_session", Value: "sess-1"})
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, "sess-1", *captured)
	assert.Empty(t, rec.Result().Cookies(), "existing session must not reset the cookie")
}

func TestSessionFallsBackToHeader(t *testing.T) {
	t.Parallel()

	handler, captured := sessionEcho()
	wrapped := Session(nil)(handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Session-Id", "sess-h")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, "sess-h", *captured)
}

func TestSessionMintsAndSetsCookieOnFirstVisit(t *testing.T) {
	t.Parallel()

	handler, captured := sessionEcho()
	wrapped := Session(nil)(handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, *captured)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "storefront_session", cookies[0].Name)
	assert.Equal(t, *captured, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}
