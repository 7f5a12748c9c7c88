package gateway

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

	"github.com/sebuszqo/PlanCheckout/internal/payment/api"
	payErrors "github.com/sebuszqo/PlanCheckout/internal/payment/errors"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultBaseURL  = "http://localhost:8080/api"
	maxResponseSize = 1 << 20
)

// Client talks to the payment backend. Every call is bounded by the caller's context
// and by HTTPClient.Timeout.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Initialize asks the backend to start a charge and returns the issued tx_ref.
func (c *Client) Initialize(ctx context.Context, req api.InitializeRequest) (*api.InitializeResponse, error) {
	var resp api.InitializeResponse
	status, err := c.doJSON(ctx, http.MethodPost, api.InitializePath, req, &resp)
	if err != nil {
		return nil, payErrors.NewTransientError("initialize", err)
	}
	if status >= http.StatusMultipleChoices || resp.Status != api.StatusSuccess {
		return nil, payErrors.NewGatewayError("initialize", messageOr(resp.Message, status), status)
	}
	return &resp, nil
}

// Verify fetches the settlement status for txRef. Any parseable body is returned as-is,
// including status "error"; classification belongs to the verification session.
func (c *Client) Verify(ctx context.Context, txRef string) (*api.VerifyResponse, error) {
	var resp api.VerifyResponse
	if _, err := c.doJSON(ctx, http.MethodGet, api.VerifyPathPrefix+url.PathEscape(txRef), nil, &resp); err != nil {
		return nil, payErrors.NewTransientError("verify", err)
	}
	return &resp, nil
}

// VerifyRegistration asks the backend to create the account bound to a settled txRef.
func (c *Client) VerifyRegistration(ctx context.Context, req api.RegistrationRequest) (*api.RegistrationResponse, error) {
	var resp api.RegistrationResponse
	status, err := c.doJSON(ctx, http.MethodPost, api.VerifyRegistrationPath, req, &resp)
	if err != nil {
		return nil, payErrors.NewTransientError("verify-registration", err)
	}
	if status >= http.StatusMultipleChoices || resp.Status != api.StatusSuccess {
		return nil, payErrors.NewGatewayError("verify-registration", messageOr(resp.Message, status), status)
	}
	return &resp, nil
}

// Plans lists the plan catalogue published by the backend.
func (c *Client) Plans(ctx context.Context) ([]api.Plan, error) {
	var resp struct {
		Status string     `json:"status"`
		Plans  []api.Plan `json:"plans"`
	}
	status, err := c.doJSON(ctx, http.MethodGet, api.PlansPath, nil, &resp)
	if err != nil {
		return nil, payErrors.NewTransientError("plans", err)
	}
	if status != http.StatusOK {
		return nil, payErrors.NewGatewayError("plans", http.StatusText(status), status)
	}
	return resp.Plans, nil
}

// Login exchanges account credentials for a fresh access token.
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	var resp api.LoginResponse
	status, err := c.doJSON(ctx, http.MethodPost, api.LoginPath, req, &resp)
	if err != nil {
		return nil, payErrors.NewTransientError("login", err)
	}
	if status >= http.StatusMultipleChoices || resp.Status != api.StatusSuccess {
		return nil, payErrors.NewGatewayError("login", messageOr(resp.Message, status), status)
	}
	return &resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient == nil {
		return http.DefaultClient
	}
	return c.HTTPClient
}

func messageOr(msg string, status int) string {
	if msg != "" {
		return msg
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unexpected response"
}
