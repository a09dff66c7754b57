package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kbsmaine/boilerparts/checkout"
	"github.com/kbsmaine/boilerparts/money"
	"github.com/kbsmaine/boilerparts/provider"
)

// DefaultTimeout bounds each request when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// Retry defaults. Every attempt of one call carries the same Request-Id so the server can
// replay a response the client never received.
const (
	DefaultAttempts       = 3
	DefaultRetryBaseDelay = 200 * time.Millisecond
)

// Config configures the orders API client
type Config struct {
	// BaseURL is the orders API root, e.g. http://localhost:8088
	BaseURL string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s)
	Timeout time.Duration

	// Attempts per call, including the first (optional, defaults to 3)
	Attempts int

	// RetryBaseDelay doubles after every failed attempt (optional, defaults to 200ms)
	RetryBaseDelay time.Duration

	Logger *zap.Logger
}

// Client implements provider.Backend against an orders API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	attempts   int
	retryDelay time.Duration
	logger     *zap.Logger
}

var _ provider.Backend = (*Client)(nil)

// NewClient creates a new orders API client
func NewClient(config *Config) *Client {
	if config == nil {
		config = &Config{}
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	attempts := config.Attempts
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	retryDelay := config.RetryBaseDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryBaseDelay
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		attempts:   attempts,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

func (c *Client) CreateOrder(ctx context.Context, req checkout.OrderRequest) (provider.Order, error) {
	currency := req.Currency
	if currency == "" {
		currency = checkout.DefaultCurrency
	}
	body := CreateOrderRequest{
		Intent: IntentCapture,
		PurchaseUnits: []PurchaseUnit{{
			Amount:      Money{CurrencyCode: currency, Value: req.Value()},
			Description: req.Description,
		}},
	}

	var resp OrderResponse
	if err := c.post(ctx, OrdersPath, body, &resp); err != nil {
		return provider.Order{}, err
	}

	order := provider.Order{
		ID:          resp.ID,
		Status:      resp.Status,
		Amount:      req.Amount,
		Currency:    currency,
		Description: req.Description,
	}
	c.logger.Debug("order created", zap.String("order_id", order.ID), zap.String("status", order.Status))
	return order, nil
}

func (c *Client) CaptureOrder(ctx context.Context, orderID string) (checkout.Capture, error) {
	var resp OrderResponse
	path := fmt.Sprintf("%s/%s/%s", OrdersPath, orderID, CaptureVerb)
	if err := c.post(ctx, path, nil, &resp); err != nil {
		return checkout.Capture{}, err
	}

	capture := checkout.Capture{
		OrderID: resp.ID,
		Status:  resp.Status,
	}
	if resp.Payer != nil {
		capture.PayerName = resp.Payer.Name.GivenName
	}
	if len(resp.PurchaseUnits) > 0 {
		unit := resp.PurchaseUnits[0]
		capture.Currency = unit.Amount.CurrencyCode
		amount, err := money.Parse(unit.Amount.Value)
		if err != nil {
			return checkout.Capture{}, fmt.Errorf("failed to decode capture amount: %w", err)
		}
		capture.Amount = amount
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			capture.CaptureID = unit.Payments.Captures[0].ID
		}
	}
	c.logger.Debug("order captured", zap.String("order_id", capture.OrderID), zap.String("capture_id", capture.CaptureID))
	return capture, nil
}

// post sends body to path, retrying transport failures, 429 and 5xx responses with the
// same Request-Id.
func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	requestID := uuid.NewString()
	var lastErr error
	for attempt := range c.attempts {
		retry, err := c.send(ctx, path, data, requestID, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || attempt == c.attempts-1 {
			return err
		}

		delay := c.retryDelay * time.Duration(1<<uint(attempt))
		c.logger.Debug("retrying orders request",
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

// send makes one attempt and reports whether a failure is worth retrying.
func (c *Client) send(ctx context.Context, path string, data []byte, requestID string, out interface{}) (bool, error) {
	var reader io.Reader
	if data != nil {
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("orders request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		var apiErr ErrorResponse
		if err := json.Unmarshal(responseBody, &apiErr); err != nil || apiErr.Name == "" {
			return retry, fmt.Errorf("orders request failed (%d): %s", resp.StatusCode, string(responseBody))
		}
		return retry, provider.NewAPIError(apiErr.Name, apiErr.Message)
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}
