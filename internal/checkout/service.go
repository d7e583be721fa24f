package checkout

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/TruongSon421/storefront-checkout/internal/cartstate"
	"github.com/TruongSon421/storefront-checkout/internal/txlog"
	"github.com/TruongSon421/storefront-checkout/pkg/enums"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/gateway"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
	"github.com/TruongSon421/storefront-checkout/pkg/types"
	"github.com/go-playground/validator/v10"
)

type checkoutGateway interface {
	Checkout(ctx context.Context, req gateway.CheckoutRequest) (*gateway.CheckoutResult, error)
}

type journal interface {
	Open(ctx context.Context, params txlog.OpenParams) error
}

// Orchestrator drives a checkout submission: validate locally, submit the
// selected lines, then prune them from the cart and journal the transaction.
type Orchestrator struct {
	carts    checkoutGateway
	state    *cartstate.State
	journal  journal
	validate *validator.Validate
	logg     *logger.Logger
}

// NewOrchestrator builds a checkout orchestrator. The journal is optional.
func NewOrchestrator(carts checkoutGateway, state *cartstate.State, jrnl journal, logg *logger.Logger) (*Orchestrator, error) {
	if carts == nil {
		return nil, fmt.Errorf("cart gateway required")
	}
	if state == nil {
		return nil, fmt.Errorf("cart state required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Orchestrator{
		carts:    carts,
		state:    state,
		journal:  jrnl,
		validate: newValidator(),
		logg:     logg,
	}, nil
}

// SubmitParams carries everything the shopper provides at checkout time. The
// selection itself is read from the cart state.
type SubmitParams struct {
	UserID        string
	Shipping      types.ShippingInfo
	PaymentMethod enums.PaymentMethod
}

// Result is the transaction handle a successful submission yields.
type Result struct {
	TransactionID string  `json:"transactionId"`
	OrderID       string  `json:"orderId,omitempty"`
	Amount        float64 `json:"amount"`
}

// Submit validates and submits the current selection for payment. Every
// precondition failure is reported before any network call is made. On
// success the submitted lines leave the cart and the rest stay selected-out.
func (o *Orchestrator) Submit(ctx context.Context, params SubmitParams) (*Result, error) {
	if params.UserID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "checkout requires an authenticated user")
	}
	if !params.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if err := o.validate.Struct(params.Shipping); err != nil {
		return nil, shippingValidationError(err)
	}

	selected := o.state.SelectedKeys()
	if len(selected) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no items selected for checkout")
	}
	for _, key := range selected {
		if !o.state.Contains(key) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "selection references an item no longer in the cart").
				WithDetails(map[string]string{"productId": key.ProductID, "color": key.Color})
		}
	}

	amount, _ := o.state.SelectedTotal().Float64()

	result, err := o.carts.Checkout(ctx, gateway.CheckoutRequest{
		UserID:          params.UserID,
		ShippingAddress: params.Shipping,
		PaymentMethod:   string(params.PaymentMethod),
		SelectedItems:   selected,
		TotalAmount:     amount,
	})
	if err != nil {
		return nil, err
	}

	ctx = o.logg.WithTransactionID(o.logg.WithUserID(ctx, params.UserID), result.TransactionID)

	// The server accepted the submission; the purchased lines leave the cart.
	o.state.RemoveItems(selected)

	if o.journal != nil {
		journalErr := o.journal.Open(ctx, txlog.OpenParams{
			TransactionID: result.TransactionID,
			OrderID:       result.OrderID,
			UserID:        params.UserID,
			PaymentMethod: params.PaymentMethod,
			Amount:        amount,
		})
		if journalErr != nil {
			// The remote submission already succeeded; a journal miss must
			// not fail the checkout.
			o.logg.Error(ctx, "failed to journal checkout", journalErr)
		}
	}

	o.logg.Info(ctx, "checkout submitted")
	return &Result{
		TransactionID: result.TransactionID,
		OrderID:       result.OrderID,
		Amount:        amount,
	}, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	// Registration only fails for an empty tag name.
	_ = v.RegisterValidation("shipping_phone", func(fl validator.FieldLevel) bool {
		return types.ValidShippingPhone(fl.Field().String())
	})
	return v
}

func shippingValidationError(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = shippingFieldMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping information").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping information")
}

func shippingFieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "shipping_phone":
		return "must be 9 to 11 digits"
	}
	return "is invalid"
}
