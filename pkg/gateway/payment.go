package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/TruongSon421/storefront-checkout/pkg/enums"
	pkgerrors "github.com/TruongSon421/storefront-checkout/pkg/errors"
)

var errPaymentBaseURLRequired = errors.New("payment service base url is required")

// PaymentClient talks to the payment gateway's process/url/status endpoints.
type PaymentClient struct {
	httpClient *http.Client
	baseURL    string
}

// PaymentOption configures optional client behavior.
type PaymentOption func(*PaymentClient)

// WithPaymentHTTPClient overrides the default HTTP client.
func WithPaymentHTTPClient(client *http.Client) PaymentOption {
	return func(c *PaymentClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewPaymentClient builds a payment service client for the given base URL.
func NewPaymentClient(baseURL string, opts ...PaymentOption) (*PaymentClient, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errPaymentBaseURLRequired
	}

	client := &PaymentClient{
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

// ProcessParams identify the order a payment session is opened for.
type ProcessParams struct {
	OrderID       string
	UserID        string
	PaymentMethod enums.PaymentMethod
	TotalAmount   float64
}

// Process opens a payment session and returns the external payment page URL.
func (c *PaymentClient) Process(ctx context.Context, params ProcessParams) (string, error) {
	if strings.TrimSpace(params.OrderID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	query := url.Values{}
	query.Set("orderId", params.OrderID)
	query.Set("userId", params.UserID)
	query.Set("paymentMethod", params.PaymentMethod.String())
	query.Set("totalAmount", strconv.FormatFloat(params.TotalAmount, 'f', -1, 64))

	var resp struct {
		PaymentURL string `json:"paymentUrl"`
	}
	if err := c.do(ctx, http.MethodPost, "payments/process?"+query.Encode(), &resp); err != nil {
		return "", err
	}
	return resp.PaymentURL, nil
}

// PaymentURL fetches the redirect URL for an existing transaction. The
// gateway may not expose one until the transaction record exists.
func (c *PaymentClient) PaymentURL(ctx context.Context, transactionID string) (string, error) {
	if strings.TrimSpace(transactionID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	var resp struct {
		PaymentURL string `json:"paymentUrl"`
	}
	if err := c.do(ctx, http.MethodPost, "payments/url/"+url.PathEscape(transactionID), &resp); err != nil {
		return "", err
	}
	if resp.PaymentURL == "" {
		return "", pkgerrors.New(pkgerrors.CodeNotFoundYet, "payment url not available yet")
	}
	return resp.PaymentURL, nil
}

// StatusProbe is one observation of a transaction's server-side state.
type StatusProbe struct {
	Status  enums.PaymentState
	OrderID string
	Message string
}

// Status probes the transaction. A probe before the transaction record
// materializes returns a NOT_FOUND_YET error, which callers treat as
// "keep polling", not as a failure.
func (c *PaymentClient) Status(ctx context.Context, transactionID string) (*StatusProbe, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	var resp struct {
		Exists  bool   `json:"exists"`
		Status  string `json:"status"`
		Message string `json:"message"`
		OrderID string `json:"orderId"`
	}
	if err := c.do(ctx, http.MethodGet, "payments/status/"+url.PathEscape(transactionID), &resp); err != nil {
		return nil, err
	}

	if !resp.Exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFoundYet, "transaction not created yet")
	}

	state, err := enums.ParsePaymentState(strings.ToUpper(strings.TrimSpace(resp.Status)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unrecognized payment status")
	}
	return &StatusProbe{
		Status:  state,
		OrderID: resp.OrderID,
		Message: resp.Message,
	}, nil
}

func (c *PaymentClient) do(ctx context.Context, method, path string, dest any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "payment client not configured")
	}

	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build payment request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute payment request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		code := pkgerrors.CodeDependency
		if resp.StatusCode == http.StatusNotFound {
			code = pkgerrors.CodeNotFoundYet
		}
		return pkgerrors.Wrap(code, cause, "payment request failed")
	}

	if dest == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment response")
	}
	return nil
}
