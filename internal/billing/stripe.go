package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// stripeAPIBase is the default API endpoint. Overridable for tests.
const stripeAPIBase = "https://api.stripe.com"

// Client timeouts for outbound provider calls.
const (
	clientTimeout         = 30 * time.Second
	dialTimeout           = 10 * time.Second
	tlsHandshakeTimeout   = 10 * time.Second
	responseHeaderTimeout = 15 * time.Second
)

// StripeClient implements Provider against the Stripe HTTP API.
// Requests are form-encoded per the API convention; responses are JSON.
type StripeClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ Provider = (*StripeClient)(nil)

// StripeOption configures a StripeClient.
type StripeOption func(*StripeClient)

// WithBaseURL points the client at a different API endpoint (tests).
func WithBaseURL(baseURL string) StripeOption {
	return func(c *StripeClient) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) StripeOption {
	return func(c *StripeClient) {
		c.httpClient = client
	}
}

// NewStripeClient creates a Stripe-backed billing provider.
func NewStripeClient(apiKey string, opts ...StripeOption) *StripeClient {
	c := &StripeClient{
		apiKey:  apiKey,
		baseURL: stripeAPIBase,
		httpClient: &http.Client{
			Timeout: clientTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   dialTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   tlsHandshakeTimeout,
				ResponseHeaderTimeout: responseHeaderTimeout,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CreateCustomer registers a payer and returns the customer reference.
func (c *StripeClient) CreateCustomer(ctx context.Context, email string) (string, error) {
	form := url.Values{}
	form.Set("email", email)

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/customers", form, &resp); err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}

	return resp.ID, nil
}

// CustomerEmail fetches the billing email for a customer reference.
func (c *StripeClient) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	var resp struct {
		Email string `json:"email"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/customers/"+url.PathEscape(customerID), nil, &resp); err != nil {
		return "", fmt.Errorf("retrieve customer: %w", err)
	}

	return resp.Email, nil
}

// CreateCheckoutSession starts a hosted subscription checkout.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("metadata[plan]", params.Plan)

	// A known customer reference takes precedence; otherwise the email
	// pre-fills guest checkout.
	if params.CustomerID != "" {
		form.Set("customer", params.CustomerID)
	} else if params.CustomerEmail != "" {
		form.Set("customer_email", params.CustomerEmail)
	}

	var resp struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &resp); err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &CheckoutSession{ID: resp.ID, URL: resp.URL}, nil
}

// CreatePortalSession opens a hosted billing portal for a customer.
func (c *StripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	form.Set("return_url", returnURL)

	var resp struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/billing_portal/sessions", form, &resp); err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}

	return resp.URL, nil
}

// apiError is the provider's error envelope.
type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do executes one API call and decodes the JSON response into out.
func (c *StripeClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("provider returned %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return fmt.Errorf("provider returned %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
