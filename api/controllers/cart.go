package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/TruongSon421/storefront-checkout/api/middleware"
	"github.com/TruongSon421/storefront-checkout/api/responses"
	"github.com/TruongSon421/storefront-checkout/api/validators"
	"github.com/TruongSon421/storefront-checkout/internal/cartstate"
	"github.com/TruongSon421/storefront-checkout/internal/identity"
	"github.com/TruongSon421/storefront-checkout/internal/session"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/gateway"
	"github.com/TruongSon421/storefront-checkout/pkg/logger"
	"github.com/TruongSon421/storefront-checkout/pkg/types"
)

// CartController serves the storefront cart surface. Reads come from the
// session's local view; writes go to the cart service first and fold back
// into the view on success.
type CartController struct {
	hub        *session.Hub
	identities *identity.Store
	carts      *gateway.CartClient
	logg       *logger.Logger
}

// NewCartController wires the cart endpoints.
func NewCartController(hub *session.Hub, identities *identity.Store, carts *gateway.CartClient, logg *logger.Logger) *CartController {
	return &CartController{hub: hub, identities: identities, carts: carts, logg: logg}
}

// cartView is the response shape for every cart endpoint.
type cartView struct {
	Items         []types.CartItem `json:"items"`
	Selected      []types.ItemKey  `json:"selected"`
	TotalPrice    string           `json:"totalPrice"`
	SelectedTotal string           `json:"selectedTotal"`
}

func viewOf(state *cartstate.State) cartView {
	return cartView{
		Items:         state.Items(),
		Selected:      state.SelectedKeys(),
		TotalPrice:    state.TotalPrice().String(),
		SelectedTotal: state.SelectedTotal().String(),
	}
}

// actor resolves who owns the remote cart. An authenticated user wins; a
// guest gets an identity provisioned on first write.
func (c *CartController) actor(ctx context.Context, provision bool) (userID, guestID string, err error) {
	if userID = middleware.UserIDFromContext(ctx); userID != "" {
		return userID, "", nil
	}
	sessionID := middleware.SessionIDFromContext(ctx)
	if provision {
		guestID, err = c.identities.EnsureGuest(ctx, sessionID)
		return "", guestID, err
	}
	guestID, err = c.identities.Peek(ctx, sessionID)
	if errors.Is(err, identity.ErrNoGuestIdentity) {
		return "", "", nil
	}
	return "", guestID, err
}

func (c *CartController) bundle(ctx context.Context) (*session.Bundle, error) {
	return c.hub.Get(middleware.SessionIDFromContext(ctx))
}

// Get returns the session's cart, refreshed from the cart service.
func (c *CartController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bundle, err := c.bundle(ctx)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	userID, guestID, err := c.actor(ctx, false)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	switch {
	case userID != "":
		items, err := c.carts.FetchUserCart(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		bundle.State.SetItems(items)
	case guestID != "":
		items, err := c.carts.FetchGuestCart(ctx, guestID)
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		bundle.State.SetItems(items)
	default:
		// A first visit has no remote cart and nothing to fetch.
	}

	responses.WriteSuccess(w, viewOf(bundle.State))
}

type addItemRequest struct {
	ProductID   string  `json:"productId" validate:"required"`
	Color       string  `json:"color"`
	Quantity    int     `json:"quantity" validate:"required,min=1"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price" validate:"min=0"`
}

// AddItem puts a line in the cart, provisioning a guest cart when needed.
func (c *CartController) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req addItemRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	bundle, err := c.bundle(ctx)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	userID, guestID, err := c.actor(ctx, true)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	item := types.CartItem{
		ProductID:   req.ProductID,
		Color:       req.Color,
		Quantity:    req.Quantity,
		ProductName: req.ProductName,
		Price:       req.Price,
	}
	if err := c.carts.AddItem(ctx, userID, guestID, item); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	if err := bundle.State.AddItem(item); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	responses.WriteSuccessStatus(w, http.StatusCreated, viewOf(bundle.State))
}

type updateItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity" validate:"required"`
}

// UpdateItem changes a line's quantity. A quantity below one is refused
// before any network call.
func (c *CartController) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updateItemRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	if req.Quantity < 1 {
		responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1"))
		return
	}

	bundle, err := c.bundle(ctx)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	userID, guestID, err := c.actor(ctx, true)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	key := types.ItemKey{ProductID: req.ProductID, Color: req.Color}
	if err := c.carts.UpdateItem(ctx, userID, guestID, key, req.Quantity); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	if err := bundle.State.UpdateItem(key, req.Quantity); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	responses.WriteSuccess(w, viewOf(bundle.State))
}

// RemoveItem deletes one line, identified by query parameters.
func (c *CartController) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID := r.URL.Query().Get("productId")
	if productID == "" {
		responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "productId query parameter is required"))
		return
	}
	key := types.ItemKey{ProductID: productID, Color: r.URL.Query().Get("color")}

	bundle, err := c.bundle(ctx)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	userID, guestID, err := c.actor(ctx, true)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	if err := c.carts.RemoveItem(ctx, userID, guestID, key); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	bundle.State.RemoveItem(key)
	responses.WriteSuccess(w, viewOf(bundle.State))
}

// Clear empties the cart.
func (c *CartController) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bundle, err := c.bundle(ctx)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	userID, guestID, err := c.actor(ctx, true)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}

	if err := c.carts.ClearCart(ctx, userID, guestID); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	bundle.State.ClearCart()
	responses.WriteSuccess(w, viewOf(bundle.State))
}

type selectionRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Color     string `json:"color"`
}

// ToggleSelection flips one line's checkout selection. Selection is a local
// concern and never touches the cart service.
func (c *CartController) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req selectionRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	bundle, err := c.bundle(ctx)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	key := types.ItemKey{ProductID: req.ProductID, Color: req.Color}
	if !bundle.State.Contains(key) {
		responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart"))
		return
	}
	bundle.State.ToggleSelect(key)
	responses.WriteSuccess(w, viewOf(bundle.State))
}

// SelectAll marks every line for checkout.
func (c *CartController) SelectAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bundle, err := c.bundle(ctx)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	bundle.State.SelectAll()
	responses.WriteSuccess(w, viewOf(bundle.State))
}

// UnselectAll clears the checkout selection.
func (c *CartController) UnselectAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	bundle, err := c.bundle(ctx)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	bundle.State.UnselectAll()
	responses.WriteSuccess(w, viewOf(bundle.State))
}
