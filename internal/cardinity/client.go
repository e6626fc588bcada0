package cardinity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client is a minimal REST client for the Cardinity payments API. Requests
// are signed with two-legged OAuth 1.0 using the merchant consumer key pair.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Options tune client construction.
type Options struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient builds a signing client for the given consumer credentials.
func NewClient(consumerKey, consumerSecret string, opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.cardinity.com"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   timeout,
	}
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	config := oauth1.NewConfig(consumerKey, consumerSecret)
	httpClient := config.Client(ctx, oauth1.NewToken("", ""))
	httpClient.Timeout = timeout
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// CreatePayment submits a charge and returns the gateway's payment object.
func (c *Client) CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	return c.do(ctx, http.MethodPost, "/v1/payments", req)
}

// FinalizePayment completes a pending payment with the payer authentication
// response received from the ACS.
func (c *Client) FinalizePayment(ctx context.Context, paymentID, authorizeData string) (*Payment, error) {
	path := fmt.Sprintf("/v1/payments/%s", paymentID)
	return c.do(ctx, http.MethodPatch, path, finalizeRequest{AuthorizeData: authorizeData})
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*Payment, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &RuntimeError{Err: fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &RuntimeError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RuntimeError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &RuntimeError{Status: resp.StatusCode, Err: err}
	}
	return classifyResponse(resp.StatusCode, raw)
}

func classifyResponse(status int, raw []byte) (*Payment, error) {
	switch {
	case status >= 200 && status < 300:
		var payment Payment
		if err := json.Unmarshal(raw, &payment); err != nil {
			return nil, &RuntimeError{Status: status, Err: fmt.Errorf("decode payment: %w", err)}
		}
		return &payment, nil
	case status == http.StatusPaymentRequired:
		// The gateway returns the declined payment object in the error body.
		var payment Payment
		if err := json.Unmarshal(raw, &payment); err != nil || payment.ID == "" {
			return nil, &DeclinedError{}
		}
		return nil, &DeclinedError{Payment: &payment}
	case status >= 400 && status < 500:
		var detail struct {
			Title  string       `json:"title"`
			Detail string       `json:"detail"`
			Errors []FieldError `json:"errors"`
		}
		_ = json.Unmarshal(raw, &detail)
		return nil, &RequestError{Status: status, Title: detail.Title, Detail: detail.Detail, Errors: detail.Errors}
	default:
		return nil, &RuntimeError{Status: status}
	}
}
