// Package rest talks to an orders API over HTTP. Client implements provider.Backend;
// the wire types are shared with the sandbox server.
package rest

// Routes
const (
	OrdersPath  = "/v2/checkout/orders"
	CaptureVerb = "capture"

	// RequestIDHeader makes a POST idempotent: the server replays the first response for a
	// repeated id.
	RequestIDHeader = "Request-Id"

	IntentCapture = "CAPTURE"
)

// Money is an amount on the wire, e.g. {"currency_code":"USD","value":"19.98"}.
type Money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type PurchaseUnit struct {
	Amount      Money     `json:"amount"`
	Description string    `json:"description,omitempty"`
	Payments    *Payments `json:"payments,omitempty"`
}

type Payments struct {
	Captures []CaptureRecord `json:"captures"`
}

type CaptureRecord struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount Money  `json:"amount"`
}

// CreateOrderRequest is the body of POST /v2/checkout/orders.
type CreateOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units"`
}

type PayerName struct {
	GivenName string `json:"given_name,omitempty"`
}

type Payer struct {
	Name PayerName `json:"name"`
}

// OrderResponse is returned by both the create and capture routes.
type OrderResponse struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units,omitempty"`
	Payer         *Payer         `json:"payer,omitempty"`
}

// ErrorResponse is the body of any non-2xx response.
type ErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}
