package controllers

import (
	"net/http"

	"github.com/TruongSon421/storefront-checkout/api/middleware"
	"github.com/TruongSon421/storefront-checkout/api/responses"
	"github.com/TruongSon421/storefront-checkout/api/validators"
	"github.com/TruongSon421/storefront-checkout/internal/checkout"
	"github.com/TruongSon421/storefront-checkout/internal/payment"
	"github.com/TruongSon421/storefront-checkout/internal/session"
	"github.com/TruongSon421/storefront-checkout/pkg/enums"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
	"github.com/TruongSon421/storefront-checkout/pkg/types"
)

type checkoutRequest struct {
	ShippingAddress types.ShippingInfo `json:"shippingAddress" validate:"required"`
	PaymentMethod   string             `json:"paymentMethod" validate:"required"`
}

type checkoutResponse struct {
	TransactionID string             `json:"transactionId"`
	OrderID       string             `json:"orderId,omitempty"`
	Amount        float64            `json:"amount"`
	Status        enums.PaymentState `json:"status"`
}

// SubmitCheckout submits the current selection for payment and starts
// watching the resulting transaction.
func SubmitCheckout(hub *session.Hub, watches *payment.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := middleware.UserIDFromContext(ctx)
		if userID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "checkout requires an authenticated user"))
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown payment method"))
			return
		}

		bundle, err := hub.Get(middleware.SessionIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := bundle.Checkout.Submit(ctx, checkout.SubmitParams{
			UserID:        userID,
			Shipping:      req.ShippingAddress,
			PaymentMethod: method,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		watch, err := watches.Begin(ctx, payment.BeginParams{
			TransactionID: result.TransactionID,
			OrderID:       result.OrderID,
			UserID:        userID,
			Amount:        result.Amount,
			Method:        method,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		snap := watch.Poller.Snapshot()
		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			TransactionID: result.TransactionID,
			OrderID:       result.OrderID,
			Amount:        result.Amount,
			Status:        snap.Status,
		})
	}
}
