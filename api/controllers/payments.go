package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TruongSon421/storefront-checkout/api/middleware"
	"github.com/TruongSon421/storefront-checkout/api/responses"
	"github.com/TruongSon421/storefront-checkout/internal/payment"
	"github.com/TruongSon421/storefront-checkout/internal/txlog"
	"github.com/TruongSon421/storefront-checkout/pkg/enums"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
)

// PaymentController exposes the confirmation watch and the VNPay return leg.
type PaymentController struct {
	watches *payment.Manager
	journal *txlog.Service
	logg    *logger.Logger
}

// NewPaymentController wires the payment endpoints.
func NewPaymentController(watches *payment.Manager, journal *txlog.Service, logg *logger.Logger) *PaymentController {
	return &PaymentController{watches: watches, journal: journal, logg: logg}
}

// Status reports the live confirmation snapshot, falling back to the journal
// for transactions that are no longer watched.
func (p *PaymentController) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txnID := chi.URLParam(r, "transactionId")

	if watch, err := p.watches.Find(txnID); err == nil {
		responses.WriteSuccess(w, watch.Poller.Snapshot())
		return
	}

	if p.journal == nil {
		responses.WriteError(ctx, p.logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no watch for transaction"))
		return
	}
	record, err := p.journal.Get(ctx, txnID)
	if err != nil {
		responses.WriteError(ctx, p.logg, w, err)
		return
	}
	snap := payment.Snapshot{
		TransactionID: record.TransactionID,
		OrderID:       record.OrderID,
		Status:        record.Status,
	}
	if record.FailureReason != nil {
		snap.Message = *record.FailureReason
	}
	responses.WriteSuccess(w, snap)
}

// Confirm records the shopper's intent to pay and hands out the redirect URL
// once per cooldown window.
func (p *PaymentController) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txnID := chi.URLParam(r, "transactionId")

	watch, err := p.watches.Find(txnID)
	if err != nil {
		responses.WriteError(ctx, p.logg, w, err)
		return
	}

	watch.Gate.Confirm()

	// Only a redirect that actually hands out a URL consumes the cooldown.
	snap := watch.Poller.Snapshot()
	if snap.PaymentURL == "" {
		responses.WriteError(ctx, p.logg, w, pkgerrors.New(pkgerrors.CodeNotFoundYet, "payment url not available yet"))
		return
	}
	if err := watch.Gate.TryRedirect(); err != nil {
		responses.WriteError(ctx, p.logg, w, err)
		return
	}
	responses.WriteSuccess(w, map[string]string{"paymentUrl": snap.PaymentURL})
}

// Cancel abandons the confirmation wait.
func (p *PaymentController) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txnID := chi.URLParam(r, "transactionId")

	if err := p.watches.Cancel(ctx, txnID); err != nil {
		responses.WriteError(ctx, p.logg, w, err)
		return
	}
	watch, err := p.watches.Find(txnID)
	if err != nil {
		responses.WriteError(ctx, p.logg, w, err)
		return
	}
	responses.WriteSuccess(w, watch.Poller.Snapshot())
}

// VNPayReturn lands the shopper coming back from the payment page. The
// outcome in the query parameters settles the watch; the first recorded
// outcome wins, and the response always reflects the stored one.
func (p *PaymentController) VNPayReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := payment.ParseVNPayReturn(r.URL.Query())
	if err != nil {
		responses.WriteError(ctx, p.logg, w, err)
		return
	}

	if err := p.watches.Resolve(ctx, result.TransactionID, result.Status, result.Message); err != nil {
		if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
			responses.WriteError(ctx, p.logg, w, err)
			return
		}
		// No live watch, e.g. after a restart. Settle the journal directly.
		if p.journal != nil {
			if jErr := p.journal.Transition(ctx, result.TransactionID, result.Status, result.Message); jErr != nil && !pkgerrors.HasCode(jErr, pkgerrors.CodeStateConflict) {
				responses.WriteError(ctx, p.logg, w, jErr)
				return
			}
		}
	}

	status, message := p.settledOutcome(ctx, result)
	responses.WriteSuccess(w, map[string]string{
		"transactionId": result.TransactionID,
		"status":        string(status),
		"message":       message,
	})
}

// settledOutcome reads back the authoritative outcome for a transaction. If
// the poller or an earlier return settled first, that result stands over the
// one carried in the current query string.
func (p *PaymentController) settledOutcome(ctx context.Context, result *payment.VNPayReturn) (enums.PaymentState, string) {
	if watch, err := p.watches.Find(result.TransactionID); err == nil {
		snap := watch.Poller.Snapshot()
		if snap.Status.IsTerminal() {
			return snap.Status, snap.Message
		}
	}
	if p.journal != nil {
		if record, err := p.journal.Get(ctx, result.TransactionID); err == nil && record.Status.IsTerminal() {
			message := ""
			if record.FailureReason != nil {
				message = *record.FailureReason
			} else if record.Status == enums.PaymentStateSuccess {
				message = "Payment successful"
			}
			return record.Status, message
		}
	}
	return result.Status, result.Message
}

// History lists the authenticated user's journaled transactions.
func (p *PaymentController) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		responses.WriteError(ctx, p.logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "history requires an authenticated user"))
		return
	}
	if p.journal == nil {
		responses.WriteSuccess(w, []txlog.Record{})
		return
	}
	records, err := p.journal.History(ctx, userID, 50)
	if err != nil {
		responses.WriteError(ctx, p.logg, w, err)
		return
	}
	responses.WriteSuccess(w, records)
}
