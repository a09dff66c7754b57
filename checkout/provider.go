// Package checkout keeps the payment buttons in the cart modal consistent with the cart.
//
// The Coordinator listens to the cart lifecycle notifications, waits for the payment
// provider to become ready, and renders one button widget per funding source for the
// current total. Superseded render attempts are discarded through a generation counter, and
// a completed payment clears the cart.
package checkout

import (
	"context"

	"github.com/kbsmaine/boilerparts/money"
	"github.com/kbsmaine/boilerparts/ui"
)

// FundingSource names a payment method offered as its own button.
type FundingSource string

const (
	FundingPayPal   FundingSource = "paypal"
	FundingPayLater FundingSource = "paylater"
	FundingCard     FundingSource = "card"
)

// DefaultFundingSources are rendered in this order.
var DefaultFundingSources = []FundingSource{FundingPayPal, FundingPayLater, FundingCard}

// Style carries presentation hints passed through to the provider.
type Style struct {
	Layout  string
	Color   string
	Shape   string
	Label   string
	Tagline bool
}

// DefaultStyle matches the storefront's gold vertical buttons.
var DefaultStyle = Style{Layout: "vertical", Color: "gold", Shape: "rect", Label: "paypal"}

// OrderRequest describes the order to create for a click.
type OrderRequest struct {
	Amount      money.Amount
	Currency    string
	Description string
}

// Value is the amount formatted with two decimals, as order APIs expect.
func (o OrderRequest) Value() string { return o.Amount.String() }

// Capture is the provider's report of a completed payment.
type Capture struct {
	OrderID   string
	CaptureID string
	Status    string
	Amount    money.Amount
	Currency  string
	PayerName string
}

// ButtonConfig binds a button widget to the cart.
type ButtonConfig struct {
	FundingSource FundingSource
	Style         Style

	// OnCreateOrder is called when the button is clicked. Returning an error refuses the
	// order; the provider must not contact its backend in that case.
	OnCreateOrder func(ctx context.Context) (OrderRequest, error)
	// OnApprove receives the capture once the payment has completed.
	OnApprove func(ctx context.Context, capture Capture) error
	// OnError receives any failure after the click.
	OnError func(err error)
}

// Provider is the external payment button service.
type Provider interface {
	IsReady() bool
	CreateButtonWidget(cfg ButtonConfig) (WidgetHandle, error)
}

// WidgetHandle is one rendered (or renderable) provider button.
type WidgetHandle interface {
	RenderInto(ctx context.Context, container *ui.Element) error
	Destroy()
}
