package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/TruongSon421/storefront-checkout/internal/payment"
	"github.com/TruongSon421/storefront-checkout/internal/txlog"
	"github.com/TruongSon421/storefront-checkout/pkg/config"
	"github.com/TruongSon421/storefront-checkout/pkg/enums"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/gateway"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
)

// waitingProber mimics a gateway that has not materialized the transaction
// record yet.
type waitingProber struct{}

func (waitingProber) Status(context.Context, string) (*gateway.StatusProbe, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFoundYet, "transaction record not found")
}

func (waitingProber) PaymentURL(context.Context, string) (string, error) {
	return "", pkgerrors.New(pkgerrors.CodeNotFoundYet, "transaction record not found")
}

type urlOpener struct{ url string }

func (o urlOpener) Process(context.Context, gateway.ProcessParams) (string, error) {
	return o.url, nil
}

func newTestJournal(t *testing.T) *txlog.Service {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	repo, err := txlog.NewRepository(conn)
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	svc, err := txlog.NewService(repo, logger.New(logger.Options{ServiceName: "test", Output: io.Discard}))
	require.NoError(t, err)
	return svc
}

func newPaymentRouter(t *testing.T, watches *payment.Manager, journal *txlog.Service) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	ctrl := NewPaymentController(watches, journal, logg)

	r := chi.NewRouter()
	r.Route("/payments", func(r chi.Router) {
		r.Get("/vnpay-return", ctrl.VNPayReturn)
		r.Get("/{transactionId}", ctrl.Status)
		r.Post("/{transactionId}/confirm", ctrl.Confirm)
		r.Post("/{transactionId}/cancel", ctrl.Cancel)
	})
	return r
}

func quietManager(t *testing.T, params payment.ManagerParams) *payment.Manager {
	t.Helper()
	if params.Logger == nil {
		params.Logger = logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	}
	params.Poller = config.PollerConfig{Interval: time.Hour, Budget: time.Hour}
	watches, err := payment.NewManager(params)
	require.NoError(t, err)
	return watches
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data
}

func TestConfirmRetriesWhileURLMissing(t *testing.T) {
	t.Parallel()

	watches := quietManager(t, payment.ManagerParams{Prober: waitingProber{}})
	router := newPaymentRouter(t, watches, nil)

	_, err := watches.Begin(context.Background(), payment.BeginParams{
		TransactionID: "txn-1",
		Method:        enums.PaymentMethodCreditCard,
	})
	require.NoError(t, err)

	// The gateway has no URL yet, so the first confirm misses.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/txn-1/confirm", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	// An immediate retry must hit the same miss, not a cooldown refusal.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/txn-1/confirm", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConfirmCooldownStartsWithFirstRedirect(t *testing.T) {
	t.Parallel()

	watches := quietManager(t, payment.ManagerParams{
		Prober: waitingProber{},
		Opener: urlOpener{url: "https://pay.example/redirect"},
	})
	router := newPaymentRouter(t, watches, nil)

	_, err := watches.Begin(context.Background(), payment.BeginParams{
		TransactionID: "txn-1",
		OrderID:       "ord-1",
		UserID:        "u-1",
		Amount:        99.9,
		Method:        enums.PaymentMethodCreditCard,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/txn-1/confirm", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://pay.example/redirect", decodeData(t, rec)["paymentUrl"])

	// The handed-out redirect armed the cooldown.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/payments/txn-1/confirm", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestVNPayReturnServesStoredOutcome(t *testing.T) {
	t.Parallel()

	journal := newTestJournal(t)
	ctx := context.Background()
	require.NoError(t, journal.Open(ctx, txlog.OpenParams{
		TransactionID: "txn-1",
		OrderID:       "ord-1",
		UserID:        "u-1",
		PaymentMethod: enums.PaymentMethodCreditCard,
		Amount:        50,
	}))
	require.NoError(t, journal.Transition(ctx, "txn-1", enums.PaymentStateUnknown, ""))
	require.NoError(t, journal.Transition(ctx, "txn-1", enums.PaymentStateSuccess, ""))

	watches := quietManager(t, payment.ManagerParams{Prober: waitingProber{}})
	router := newPaymentRouter(t, watches, journal)

	// A late cancel redirect arrives after the transaction already settled.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/payments/vnpay-return?vnp_TxnRef=txn-1&vnp_ResponseCode=24", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "SUCCESS", data["status"])
	assert.Equal(t, "Payment successful", data["message"])
}

func TestVNPayReturnFirstOutcomeWins(t *testing.T) {
	t.Parallel()

	journal := newTestJournal(t)
	ctx := context.Background()
	require.NoError(t, journal.Open(ctx, txlog.OpenParams{
		TransactionID: "txn-1",
		UserID:        "u-1",
		PaymentMethod: enums.PaymentMethodCreditCard,
	}))

	watches := quietManager(t, payment.ManagerParams{
		Prober:  waitingProber{},
		Journal: journal,
	})
	router := newPaymentRouter(t, watches, journal)

	_, err := watches.Begin(ctx, payment.BeginParams{
		TransactionID: "txn-1",
		Method:        enums.PaymentMethodCreditCard,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/payments/vnpay-return?vnp_TxnRef=txn-1&vnp_ResponseCode=24", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "FAILED", decodeData(t, rec)["status"])

	// A duplicate arrival claiming success does not flip the outcome.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/payments/vnpay-return?vnp_TxnRef=txn-1&vnp_ResponseCode=00", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "FAILED", data["status"])
	assert.Equal(t, "Payment cancelled by user", data["message"])
}
