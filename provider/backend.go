package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kbsmaine/boilerparts/checkout"
	"github.com/kbsmaine/boilerparts/money"
)

// Order statuses
const (
	StatusCreated   = "CREATED"
	StatusCompleted = "COMPLETED"
)

// API error names
const (
	ErrNameNotFound        = "RESOURCE_NOT_FOUND"
	ErrNameAlreadyCaptured = "ORDER_ALREADY_CAPTURED"
	ErrNameInvalidAmount   = "INVALID_AMOUNT"
	ErrNameUnprocessable   = "UNPROCESSABLE_ENTITY"
)

// APIError is an orders API rejection.
type APIError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// NewAPIError creates a new API error
func NewAPIError(name, message string) *APIError {
	return &APIError{Name: name, Message: message}
}

// IsAPIError reports whether err carries an APIError with the given name.
func IsAPIError(err error, name string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Name == name
}

// Order is a created order.
type Order struct {
	ID          string
	Status      string
	Amount      money.Amount
	Currency    string
	Description string
	CaptureID   string
}

// Backend creates and captures orders.
type Backend interface {
	CreateOrder(ctx context.Context, req checkout.OrderRequest) (Order, error)
	CaptureOrder(ctx context.Context, orderID string) (checkout.Capture, error)
}

// MemoryBackend is an in-process orders API.
type MemoryBackend struct {
	mu          sync.Mutex
	orders      map[string]*Order
	payer       string
	failCreate  error
	failCapture error
	creates     int
	captures    int
	logger      *zap.Logger
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithPayerName sets the given name reported with every capture.
func WithPayerName(name string) MemoryOption {
	return func(m *MemoryBackend) {
		m.payer = name
	}
}

func WithMemoryLogger(logger *zap.Logger) MemoryOption {
	return func(m *MemoryBackend) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	m := &MemoryBackend{
		orders: make(map[string]*Order),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FailCreate makes every CreateOrder fail with err until reset with nil.
func (m *MemoryBackend) FailCreate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCreate = err
}

// FailCapture makes every CaptureOrder fail with err until reset with nil.
func (m *MemoryBackend) FailCapture(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCapture = err
}

// Calls reports how many create and capture calls were received.
func (m *MemoryBackend) Calls() (creates, captures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates, m.captures
}

// Order returns a copy of the order with id.
func (m *MemoryBackend) Order(id string) (Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

func (m *MemoryBackend) CreateOrder(ctx context.Context, req checkout.OrderRequest) (Order, error) {
	if err := ctx.Err(); err != nil {
		return Order{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.creates++
	if m.failCreate != nil {
		return Order{}, m.failCreate
	}
	if !req.Amount.IsPositive() {
		return Order{}, NewAPIError(ErrNameInvalidAmount, "order amount must be greater than zero")
	}

	currency := req.Currency
	if currency == "" {
		currency = checkout.DefaultCurrency
	}
	o := &Order{
		ID:          uuid.NewString(),
		Status:      StatusCreated,
		Amount:      req.Amount,
		Currency:    currency,
		Description: req.Description,
	}
	m.orders[o.ID] = o

	m.logger.Info("order created",
		zap.String("order_id", o.ID),
		zap.Stringer("amount", o.Amount),
		zap.String("currency", o.Currency))
	return *o, nil
}

func (m *MemoryBackend) CaptureOrder(ctx context.Context, orderID string) (checkout.Capture, error) {
	if err := ctx.Err(); err != nil {
		return checkout.Capture{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.captures++
	if m.failCapture != nil {
		return checkout.Capture{}, m.failCapture
	}
	o, ok := m.orders[orderID]
	if !ok {
		return checkout.Capture{}, NewAPIError(ErrNameNotFound, fmt.Sprintf("order %s not found", orderID))
	}
	if o.Status == StatusCompleted {
		return checkout.Capture{}, NewAPIError(ErrNameAlreadyCaptured, fmt.Sprintf("order %s already captured", orderID))
	}

	o.Status = StatusCompleted
	o.CaptureID = uuid.NewString()

	m.logger.Info("order captured",
		zap.String("order_id", o.ID),
		zap.String("capture_id", o.CaptureID))
	return checkout.Capture{
		OrderID:   o.ID,
		CaptureID: o.CaptureID,
		Status:    o.Status,
		Amount:    o.Amount,
		Currency:  o.Currency,
		PayerName: m.payer,
	}, nil
}
