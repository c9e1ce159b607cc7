package mercadopago

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

	"github.com/shopspring/decimal"

	pkgerrors "github.com/packrescue/packrescue-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://api.mercadopago.com"
	requestBodyReadLimit int64 = 1024
)

var errAccessTokenRequired = errors.New("mercadopago access token is required")

// Client wraps the MercadoPago REST endpoints used for checkout and
// webhook reconciliation.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds the MercadoPago client given an access token.
func NewClient(accessToken string, opts ...Option) (*Client, error) {
	trimmedToken := strings.TrimSpace(accessToken)
	if trimmedToken == "" {
		return nil, errAccessTokenRequired
	}

	client := &Client{
		accessToken: trimmedToken,
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}

	return client, nil
}

// PreferenceItem is one purchasable line inside a checkout preference.
type PreferenceItem struct {
	Title      string          `json:"title"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	CurrencyID string          `json:"currency_id,omitempty"`
}

// PreferenceRequest describes the payload sent to the preference API.
type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	BackURLs          *BackURLs        `json:"back_urls,omitempty"`
	AutoReturn        string           `json:"auto_return,omitempty"`
}

// BackURLs are the redirect targets after a hosted checkout.
type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

// Preference is the provider-side checkout session.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// PaymentResource is the canonical payment record fetched back from the API.
type PaymentResource struct {
	ID                int64          `json:"id"`
	Status            string         `json:"status"`
	StatusDetail      string         `json:"status_detail"`
	ExternalReference string         `json:"external_reference"`
	Raw               map[string]any `json:"-"`
}

// MerchantOrderResource groups the payments attached to one order topic.
type MerchantOrderResource struct {
	ID                int64          `json:"id"`
	ExternalReference string         `json:"external_reference"`
	Payments          []OrderPayment `json:"payments"`
	Raw               map[string]any `json:"-"`
}

// OrderPayment is one payment entry inside a merchant order.
type OrderPayment struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

// CreatePreference registers a checkout preference for an order.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mercadopago client not configured")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preference requires at least one item")
	}
	if strings.TrimSpace(req.ExternalReference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "preference external reference is required")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal preference request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL("checkout/preferences"), bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build preference request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute preference request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "preference request failed")
	}

	var preference Preference
	if err := json.NewDecoder(resp.Body).Decode(&preference); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode preference response")
	}
	return &preference, nil
}

// GetPayment fetches the canonical payment by provider id.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*PaymentResource, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mercadopago client not configured")
	}
	trimmed := strings.TrimSpace(paymentID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment ID is required")
	}

	raw, err := c.getJSON(ctx, fmt.Sprintf("v1/payments/%s", url.PathEscape(trimmed)))
	if err != nil {
		return nil, err
	}

	var resource PaymentResource
	if err := remarshal(raw, &resource); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment response")
	}
	resource.Raw = raw
	return &resource, nil
}

// GetMerchantOrder fetches a merchant order by provider id.
func (c *Client) GetMerchantOrder(ctx context.Context, orderID string) (*MerchantOrderResource, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mercadopago client not configured")
	}
	trimmed := strings.TrimSpace(orderID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "merchant order ID is required")
	}

	raw, err := c.getJSON(ctx, fmt.Sprintf("merchant_orders/%s", url.PathEscape(trimmed)))
	if err != nil {
		return nil, err
	}

	var resource MerchantOrderResource
	if err := remarshal(raw, &resource); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode merchant order response")
	}
	resource.Raw = raw
	return &resource, nil
}

func (c *Client) getJSON(ctx context.Context, path string) (map[string]any, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(path), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "request failed")
	}

	raw := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode response")
	}
	return raw, nil
}

func remarshal(raw map[string]any, out any) error {
	buf, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, out)
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
