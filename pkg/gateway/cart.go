package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
	"github.com/TruongSon421/storefront-checkout/pkg/types"
)

const (
	userIDHeader          = "X-User-Id"
	responseBodyReadLimit = int64(1024)
	defaultClientTimeout  = 10 * time.Second
)

var errCartBaseURLRequired = errors.New("cart service base url is required")

// CartClient talks to the remote cart service. Authenticated requests carry
// the user id in a header; guest requests address the guest cart by token.
type CartClient struct {
	httpClient *http.Client
	baseURL    string
}

// CartOption configures optional client behavior.
type CartOption func(*CartClient)

// WithCartHTTPClient overrides the default HTTP client.
func WithCartHTTPClient(client *http.Client) CartOption {
	return func(c *CartClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewCartClient builds a cart service client for the given base URL.
func NewCartClient(baseURL string, opts ...CartOption) (*CartClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errCartBaseURLRequired
	}

	client := &CartClient{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

type wireCartItem struct {
	ProductID   string  `json:"productId"`
	Color       string  `json:"color"`
	Quantity    int     `json:"quantity"`
	ProductName string  `json:"productName,omitempty"`
	Price       float64 `json:"price,omitempty"`
	Type        string  `json:"type,omitempty"`
}

type wireCart struct {
	Items []wireCartItem `json:"items"`
}

// CreateGuestCart provisions a new guest cart and returns its identity token.
func (c *CartClient) CreateGuestCart(ctx context.Context) (string, error) {
	var resp struct {
		GuestID string `json:"guestId"`
	}
	if err := c.do(ctx, http.MethodPost, "guest-carts", "", nil, &resp); err != nil {
		return "", err
	}
	if resp.GuestID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "cart service returned empty guest id")
	}
	return resp.GuestID, nil
}

// FetchGuestCart returns the items of the guest cart.
func (c *CartClient) FetchGuestCart(ctx context.Context, guestID string) ([]types.CartItem, error) {
	if strings.TrimSpace(guestID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest id is required")
	}
	var resp wireCart
	if err := c.do(ctx, http.MethodGet, "guest-carts/"+url.PathEscape(guestID), "", nil, &resp); err != nil {
		return nil, err
	}
	return fromWireItems(resp.Items), nil
}

// FetchUserCart returns the items of the authenticated user's cart.
func (c *CartClient) FetchUserCart(ctx context.Context, userID string) ([]types.CartItem, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	var resp wireCart
	if err := c.do(ctx, http.MethodGet, "carts", userID, nil, &resp); err != nil {
		return nil, err
	}
	return fromWireItems(resp.Items), nil
}

// AddItem adds (or server-side merges) one item into a cart.
func (c *CartClient) AddItem(ctx context.Context, userID, guestID string, item types.CartItem) error {
	path, err := cartPath(userID, guestID, "items")
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, userID, toWireItem(item), nil)
}

// UpdateItem replaces the quantity of an existing cart line.
func (c *CartClient) UpdateItem(ctx context.Context, userID, guestID string, key types.ItemKey, quantity int) error {
	path, err := cartPath(userID, guestID, itemPath(key))
	if err != nil {
		return err
	}
	body := map[string]any{"quantity": quantity}
	return c.do(ctx, http.MethodPut, path, userID, body, nil)
}

// RemoveItem deletes one cart line.
func (c *CartClient) RemoveItem(ctx context.Context, userID, guestID string, key types.ItemKey) error {
	path, err := cartPath(userID, guestID, itemPath(key))
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path, userID, nil, nil)
}

// ClearCart removes every line of the cart.
func (c *CartClient) ClearCart(ctx context.Context, userID, guestID string) error {
	path, err := cartPath(userID, guestID, "")
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, path, userID, nil, nil)
}

// MergeGuestCart folds the guest cart into the user's cart server-side and
// returns the authoritative post-merge item set. The caller owns at-most-once
// semantics; this method never retries.
func (c *CartClient) MergeGuestCart(ctx context.Context, userID, guestID string) ([]types.CartItem, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if strings.TrimSpace(guestID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "guest id is required")
	}
	var resp wireCart
	path := "carts/merge-guest?guestId=" + url.QueryEscape(guestID)
	if err := c.do(ctx, http.MethodPost, path, userID, nil, &resp); err != nil {
		return nil, err
	}
	return fromWireItems(resp.Items), nil
}

// CheckoutRequest is the submission payload for the cart service's checkout
// endpoint. Selected items carry identity keys only; quantity truth stays on
// the server.
type CheckoutRequest struct {
	UserID          string
	ShippingAddress types.ShippingInfo
	PaymentMethod   string
	SelectedItems   []types.ItemKey
	TotalAmount     float64
}

// CheckoutResult carries the transaction handle returned by the cart service.
type CheckoutResult struct {
	TransactionID string `json:"transactionId"`
	OrderID       string `json:"orderId,omitempty"`
}

// Checkout submits the selected items for payment.
func (c *CartClient) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	keys := make([]types.ItemKey, 0, len(req.SelectedItems))
	for _, key := range req.SelectedItems {
		keys = append(keys, types.ItemKey{ProductID: key.ProductID, Color: ToWireColor(key.Color)})
	}
	body := map[string]any{
		"checkoutRequest": map[string]any{
			"userId":          req.UserID,
			"shippingAddress": req.ShippingAddress,
			"paymentMethod":   req.PaymentMethod,
			"totalAmount":     req.TotalAmount,
		},
		"selectedItems": keys,
	}
	var result CheckoutResult
	if err := c.do(ctx, http.MethodPost, "carts/checkout", req.UserID, body, &result); err != nil {
		return nil, err
	}
	if result.TransactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart service returned empty transaction id")
	}
	return &result, nil
}

func cartPath(userID, guestID, suffix string) (string, error) {
	var base string
	switch {
	case strings.TrimSpace(userID) != "":
		base = "carts"
	case strings.TrimSpace(guestID) != "":
		base = "guest-carts/" + url.PathEscape(guestID)
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, "cart owner is required")
	}
	if suffix == "" {
		return base, nil
	}
	return base + "/" + suffix, nil
}

func itemPath(key types.ItemKey) string {
	return fmt.Sprintf("items/%s/%s", url.PathEscape(key.ProductID), url.PathEscape(ToWireColor(key.Color)))
}

func (c *CartClient) do(ctx context.Context, method, path, userID string, body, dest any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "cart client not configured")
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal cart request")
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build cart request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(userID) != "" {
		req.Header.Set(userIDHeader, userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute cart request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return cartError(resp, path)
	}

	if dest == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode cart response")
	}
	return nil
}

func cartError(resp *http.Response, path string) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))

	code := pkgerrors.CodeDependency
	switch {
	case resp.StatusCode == http.StatusConflict && strings.Contains(path, "merge-guest"):
		code = pkgerrors.CodeMergeConflict
	case resp.StatusCode == http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case resp.StatusCode == http.StatusBadRequest:
		code = pkgerrors.CodeValidation
	}
	return pkgerrors.Wrap(code, cause, "cart request failed")
}

func toWireItem(item types.CartItem) wireCartItem {
	return wireCartItem{
		ProductID:   item.ProductID,
		Color:       ToWireColor(item.Color),
		Quantity:    item.Quantity,
		ProductName: item.ProductName,
		Price:       item.Price,
		Type:        item.Type,
	}
}

func fromWireItems(items []wireCartItem) []types.CartItem {
	out := make([]types.CartItem, 0, len(items))
	for _, item := range items {
		out = append(out, types.CartItem{
			ProductID:   item.ProductID,
			Color:       FromWireColor(item.Color),
			Quantity:    item.Quantity,
			ProductName: item.ProductName,
			Price:       item.Price,
			Type:        item.Type,
		})
	}
	return out
}
