package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbsmaine/boilerparts/checkout"
	"github.com/kbsmaine/boilerparts/money"
	"github.com/kbsmaine/boilerparts/provider"
)

func TestClient_createOrderRequest(t *testing.T) {
	var got CreateOrderRequest
	var requestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, OrdersPath, r.URL.Path)
		requestID = r.Header.Get(RequestIDHeader)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(OrderResponse{ID: "order-1", Status: "CREATED"})
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL + "/"})
	order, err := c.CreateOrder(context.Background(), checkout.OrderRequest{Amount: 1998, Description: "parts"})
	require.NoError(t, err)

	assert.Equal(t, "order-1", order.ID)
	assert.Equal(t, money.Amount(1998), order.Amount)
	assert.NotEmpty(t, requestID)
	assert.Equal(t, IntentCapture, got.Intent)
	require.Len(t, got.PurchaseUnits, 1)
	assert.Equal(t, Money{CurrencyCode: "USD", Value: "19.98"}, got.PurchaseUnits[0].Amount)
	assert.Equal(t, "parts", got.PurchaseUnits[0].Description)
}

func TestClient_captureDecodesPayerAndCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, OrdersPath+"/order-1/capture", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": "order-1",
			"status": "COMPLETED",
			"payer": {"name": {"given_name": "Ada"}},
			"purchase_units": [{
				"amount": {"currency_code": "USD", "value": "5.00"},
				"payments": {"captures": [{"id": "cap-9", "status": "COMPLETED", "amount": {"currency_code": "USD", "value": "5.00"}}]}
			}]
		}`))
	}))
	defer srv.Close()

	capture, err := NewClient(&Config{BaseURL: srv.URL}).CaptureOrder(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, checkout.Capture{
		OrderID:   "order-1",
		CaptureID: "cap-9",
		Status:    "COMPLETED",
		Amount:    500,
		Currency:  "USD",
		PayerName: "Ada",
	}, capture)
}

func TestClient_errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		apiName string
	}{
		{"api error", http.StatusUnprocessableEntity, `{"name":"ORDER_ALREADY_CAPTURED","message":"done"}`, provider.ErrNameAlreadyCaptured},
		{"plain error", http.StatusBadGateway, `upstream down`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(&Config{BaseURL: srv.URL, RetryBaseDelay: time.Millisecond}).CaptureOrder(context.Background(), "x")
			require.Error(t, err)
			if tt.apiName != "" {
				assert.True(t, provider.IsAPIError(err, tt.apiName))
			} else {
				assert.Contains(t, err.Error(), "502")
			}
		})
	}
}

func TestNewClient_defaults(t *testing.T) {
	c := NewClient(nil)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.Equal(t, "", c.baseURL)
	assert.Equal(t, DefaultAttempts, c.attempts)
	assert.Equal(t, DefaultRetryBaseDelay, c.retryDelay)
}

func TestClient_retriesWithSameRequestID(t *testing.T) {
	var mu sync.Mutex
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		ids = append(ids, r.Header.Get(RequestIDHeader))
		n := len(ids)
		mu.Unlock()

		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(OrderResponse{ID: "order-1", Status: "CREATED"})
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL, RetryBaseDelay: time.Millisecond})
	order, err := c.CreateOrder(context.Background(), checkout.OrderRequest{Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, "order-1", order.ID)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, ids, 3)
	assert.NotEmpty(t, ids[0])
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
}

func TestClient_doesNotRetryRejections(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"name":"INVALID_AMOUNT","message":"no"}`))
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL, RetryBaseDelay: time.Millisecond})
	_, err := c.CreateOrder(context.Background(), checkout.OrderRequest{Amount: 100})
	assert.True(t, provider.IsAPIError(err, provider.ErrNameInvalidAmount))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_givesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL, Attempts: 2, RetryBaseDelay: time.Millisecond})
	_, err := c.CaptureOrder(context.Background(), "order-1")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
