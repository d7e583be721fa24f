package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TruongSon421/storefront-checkout/internal/cartstate"
	"github.com/TruongSon421/storefront-checkout/internal/checkout"
	"github.com/TruongSon421/storefront-checkout/internal/identity"
	"github.com/TruongSon421/storefront-checkout/internal/payment"
	"github.com/TruongSon421/storefront-checkout/internal/reconcile"
	"github.com/TruongSon421/storefront-checkout/internal/session"
	"github.com/TruongSon421/storefront-checkout/pkg/config"
	"github.com/TruongSon421/storefront-checkout/pkg/gateway"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(backend.Close)

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	cartClient, err := gateway.NewCartClient(backend.URL)
	require.NoError(t, err)
	paymentClient, err := gateway.NewPaymentClient(backend.URL)
	require.NoError(t, err)

	identities, err := identity.NewStore(identity.NewMemoryTokenStore(), cartClient, logg)
	require.NoError(t, err)

	watches, err := payment.NewManager(payment.ManagerParams{
		Prober: paymentClient,
		Logger: logg,
	})
	require.NoError(t, err)

	hub, err := session.NewHub(func(state *cartstate.State) (*session.Bundle, error) {
		reconciler, err := reconcile.NewService(identities, cartClient, state, nil, nil, logg)
		if err != nil {
			return nil, err
		}
		orchestrator, err := checkout.NewOrchestrator(cartClient, state, nil, logg)
		if err != nil {
			return nil, err
		}
		return &session.Bundle{State: state, Reconciler: reconciler, Checkout: orchestrator}, nil
	})
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Issuer = "storefront"

	return NewRouter(cfg, logg, Deps{
		Hub:        hub,
		Identities: identities,
		Carts:      cartClient,
		Watches:    watches,
	})
}

func TestHealthLive(t *testing.T) {
	router := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Data["status"])
}

func TestFreshSessionSeesEmptyCart(t *testing.T) {
	router := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Items    []any  `json:"items"`
			Selected []any  `json:"selected"`
			Total    string `json:"totalPrice"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Data.Items)
	assert.Equal(t, "0", body.Data.Total)

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies, "first visit mints a session cookie")
	assert.Equal(t, "storefront_session", cookies[0].Name)
}

func TestCheckoutRequiresAuth(t *testing.T) {
	router := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPaymentStatusRequiresAuth(t *testing.T) {
	router := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/txn-1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsExposed(t *testing.T) {
	router := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEndSessionExpiresCookie(t *testing.T) {
	router := testRouter(t)

	// Establish a session so there is a bundle to drop.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	sessionCookie := cookies[0]

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/session", nil)
	req.AddCookie(sessionCookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ended", body.Data["status"])

	expired := rec.Result().Cookies()
	require.NotEmpty(t, expired)
	assert.Equal(t, "storefront_session", expired[0].Name)
	assert.Negative(t, expired[0].MaxAge)
}

func TestVNPayReturnRejectsMissingParams(t *testing.T) {
	router := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/vnpay-return", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
