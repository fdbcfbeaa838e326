// Package ucpclient is the Shopper's HTTP client for the Merchant's UCP
// checkout-session surface, grounded on the go-sdk client's doRequest
// pattern: functional options, a single request/decode helper, and a
// typed Error for non-2xx responses.
package ucpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ucp-ap2-commerce/internal/ap2"
)

// DefaultTimeout is the default per-request deadline, §5.
const DefaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides the request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Client speaks the Merchant's checkout-session REST surface.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// New builds a Client against the Merchant's base URL (normally the
// endpoint the discovery.Consumer resolves).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Error represents a non-2xx response from the Merchant.
type Error struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("merchant returned %d [%s]: %s", e.StatusCode, e.Kind, e.Message)
}

// LineItem mirrors the Merchant's wire shape for one cart line.
type LineItem struct {
	SKU       string  `json:"sku"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// CreateSessionRequest is the POST /ucp/v1/checkout-sessions body.
type CreateSessionRequest struct {
	LineItems  []LineItem `json:"line_items"`
	BuyerEmail string     `json:"buyer_email"`
	Currency   string     `json:"currency"`
}

// UpdateSessionRequest is the PUT /ucp/v1/checkout-sessions/:id body.
type UpdateSessionRequest struct {
	PaymentMandateContents ap2.PaymentMandateContents `json:"payment_mandate_contents"`
	UserAuthorization      string                     `json:"user_authorization"`
}

// Totals mirrors the Merchant's session totals.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// OTPChallenge mirrors the Merchant's step-up envelope.
type OTPChallenge struct {
	PaymentMandateID string `json:"payment_mandate_id"`
	Message          string `json:"message"`
}

// Receipt mirrors the Merchant's PaymentReceipt wire shape.
type Receipt struct {
	MandateID              string                    `json:"payment_mandate_id"`
	PaymentID              string                    `json:"payment_id"`
	Amount                 ap2.PaymentCurrencyAmount `json:"amount"`
	StatusCode             string                    `json:"status_code"`
	StatusMessage          string                    `json:"status_message,omitempty"`
	MerchantConfirmationID string                    `json:"merchant_confirmation_id"`
	IssuedAt               time.Time                 `json:"issued_at"`
	MerchantSignature      string                    `json:"merchant_signature,omitempty"`
	OTPChallenge           *OTPChallenge             `json:"otp_challenge,omitempty"`
}

// Session mirrors the Merchant's SessionResponse wire shape.
type Session struct {
	ID                string     `json:"id"`
	LineItems         []LineItem `json:"line_items"`
	BuyerEmail        string     `json:"buyer_email"`
	Currency          string     `json:"currency"`
	Totals            Totals     `json:"totals"`
	Status            string     `json:"status"`
	UserAuthorization string     `json:"user_authorization,omitempty"`
	Receipt           *Receipt   `json:"receipt,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CreateSession opens a new checkout session on the Merchant.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	var resp Session
	if err := c.doRequest(ctx, http.MethodPost, "/ucp/v1/checkout-sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSession fetches a checkout session by id.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	var resp Session
	path := "/ucp/v1/checkout-sessions/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateSession attaches a signed mandate to a session.
func (c *Client) UpdateSession(ctx context.Context, id string, req UpdateSessionRequest) (*Session, error) {
	var resp Session
	path := "/ucp/v1/checkout-sessions/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodPut, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CompleteSession finalizes a session, optionally submitting an OTP code.
func (c *Client) CompleteSession(ctx context.Context, id, otpCode string) (*Session, error) {
	var resp Session
	path := "/ucp/v1/checkout-sessions/" + url.PathEscape(id) + "/complete"
	if otpCode != "" {
		path += "?otp_code=" + url.QueryEscape(otpCode)
	}
	if err := c.doRequest(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegisterDeviceKeyRequest is the body of the Merchant's internal
// device-key hand-off endpoint.
type RegisterDeviceKeyRequest struct {
	PayerEmail string `json:"payer_email"`
	PublicKey  string `json:"public_key"`
}

// RegisterDeviceKey pushes an enrolled device's public key to the
// Merchant so it can later verify this payer's mandate signatures.
func (c *Client) RegisterDeviceKey(ctx context.Context, req RegisterDeviceKeyRequest) error {
	return c.doRequest(ctx, http.MethodPost, "/internal/device-keys", req, nil)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var wire struct {
			ErrorKind string `json:"error_kind"`
			Message   string `json:"message"`
		}
		if json.Unmarshal(respBody, &wire) == nil {
			apiErr.Kind = wire.ErrorKind
			if wire.Message != "" {
				apiErr.Message = wire.Message
			}
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response body: %w", err)
		}
	}
	return nil
}
