// Package provider is an in-process payment button provider. Buttons render into a
// ui container and, when clicked, run the create, capture and approve round trip against
// a Backend.
package provider

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kbsmaine/boilerparts/checkout"
	"github.com/kbsmaine/boilerparts/ui"
)

// ClassButton marks rendered provider buttons.
const ClassButton = "checkout-button"

// ErrDestroyed is returned when a destroyed button is rendered or paid with.
var ErrDestroyed = errors.New("button widget destroyed")

var labels = map[checkout.FundingSource]string{
	checkout.FundingPayPal:   "PayPal",
	checkout.FundingPayLater: "Pay Later",
	checkout.FundingCard:     "Debit or Credit Card",
}

// Stats counts provider activity.
type Stats struct {
	Polls     int
	Created   int
	Rendered  int
	Destroyed int
}

// Provider implements checkout.Provider.
type Provider struct {
	backend Backend
	logger  *zap.Logger

	mu         sync.Mutex
	ready      bool
	readyAfter int
	ineligible map[checkout.FundingSource]bool
	renderErr  map[checkout.FundingSource]error
	stats      Stats
}

// Option configures a Provider.
type Option func(*Provider)

// WithReadyAfter makes the provider report ready from the n-th IsReady poll on.
func WithReadyAfter(n int) Option {
	return func(p *Provider) {
		p.readyAfter = n
	}
}

// WithIneligible makes CreateButtonWidget refuse the given funding sources.
func WithIneligible(sources ...checkout.FundingSource) Option {
	return func(p *Provider) {
		for _, s := range sources {
			p.ineligible[s] = true
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a provider that is not ready until SetReady or WithReadyAfter says so.
func New(backend Backend, opts ...Option) *Provider {
	p := &Provider{
		backend:    backend,
		logger:     zap.NewNop(),
		ineligible: make(map[checkout.FundingSource]bool),
		renderErr:  make(map[checkout.FundingSource]error),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetReady flips readiness, as the script load completing would.
func (p *Provider) SetReady(ready bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = ready
}

// FailRender makes RenderInto fail for source; a nil err clears it.
func (p *Provider) FailRender(source checkout.FundingSource, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.renderErr, source)
		return
	}
	p.renderErr[source] = err
}

// Stats returns a copy of the activity counters.
func (p *Provider) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Provider) IsReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Polls++
	if !p.ready && p.readyAfter > 0 && p.stats.Polls >= p.readyAfter {
		p.ready = true
		p.logger.Debug("payment provider ready", zap.Int("polls", p.stats.Polls))
	}
	return p.ready
}

func (p *Provider) CreateButtonWidget(cfg checkout.ButtonConfig) (checkout.WidgetHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return nil, checkout.NewPaymentError(checkout.ErrCodeProviderUnavailable, "payment provider not loaded", nil)
	}
	if p.ineligible[cfg.FundingSource] {
		return nil, checkout.NewPaymentError(checkout.ErrCodeFundingIneligible, "funding source not eligible", map[string]interface{}{
			"funding_source": string(cfg.FundingSource),
		})
	}
	if cfg.OnCreateOrder == nil || cfg.OnApprove == nil {
		return nil, checkout.NewPaymentError(checkout.ErrCodeRenderFailed, "button requires create and approve callbacks", nil)
	}

	p.stats.Created++
	return &Button{provider: p, cfg: cfg}, nil
}

// Button is a rendered funding-source button.
type Button struct {
	provider *Provider
	cfg      checkout.ButtonConfig

	mu        sync.Mutex
	el        *ui.Element
	destroyed bool
}

// Element returns the rendered button element, or nil before RenderInto.
func (b *Button) Element() *ui.Element {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.el
}

func (b *Button) RenderInto(ctx context.Context, container *ui.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := b.provider

	p.mu.Lock()
	renderErr := p.renderErr[b.cfg.FundingSource]
	if renderErr == nil {
		p.stats.Rendered++
	}
	p.mu.Unlock()
	if renderErr != nil {
		return checkout.NewPaymentError(checkout.ErrCodeRenderFailed, renderErr.Error(), map[string]interface{}{
			"funding_source": string(b.cfg.FundingSource),
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrDestroyed
	}

	label := labels[b.cfg.FundingSource]
	if label == "" {
		label = string(b.cfg.FundingSource)
	}
	doc := container.Document()
	b.el = doc.Create("button", "").
		SetAttr("class", ClassButton).
		SetAttr("data-funding", string(b.cfg.FundingSource)).
		SetAttr("data-color", b.cfg.Style.Color).
		SetText(label)
	b.el.On("click", func() { _ = b.Pay(context.Background()) })
	container.Append(b.el)
	return nil
}

func (b *Button) Destroy() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return
	}
	b.destroyed = true
	if b.el != nil {
		b.el.Remove()
	}

	p := b.provider
	p.mu.Lock()
	p.stats.Destroyed++
	p.mu.Unlock()
}

// Pay runs the click round trip: create the order from OnCreateOrder, capture it, and
// report the capture to OnApprove. Any failure is reported to OnError and returned. A
// refused order never reaches the backend. Pay blocks and must not be called on the
// widget thread.
func (b *Button) Pay(ctx context.Context) error {
	b.mu.Lock()
	destroyed := b.destroyed
	b.mu.Unlock()
	if destroyed {
		return ErrDestroyed
	}

	err := b.pay(ctx)
	if err != nil && b.cfg.OnError != nil {
		b.cfg.OnError(err)
	}
	return err
}

func (b *Button) pay(ctx context.Context) error {
	logger := b.provider.logger.With(zap.String("funding_source", string(b.cfg.FundingSource)))

	req, err := b.cfg.OnCreateOrder(ctx)
	if err != nil {
		logger.Info("order refused", zap.Error(err))
		return err
	}

	order, err := b.provider.backend.CreateOrder(ctx, req)
	if err != nil {
		logger.Warn("order creation failed", zap.Error(err))
		return wrap(checkout.ErrCodeOrderCreateFailed, err)
	}

	capture, err := b.provider.backend.CaptureOrder(ctx, order.ID)
	if err != nil {
		logger.Warn("capture failed", zap.String("order_id", order.ID), zap.Error(err))
		return wrap(checkout.ErrCodeCaptureFailed, err)
	}

	logger.Info("order approved", zap.String("order_id", order.ID), zap.String("capture_id", capture.CaptureID))
	return b.cfg.OnApprove(ctx, capture)
}

func wrap(code string, err error) error {
	if checkout.ErrorCode(err) != "" {
		return err
	}
	return &codedError{PaymentError: checkout.NewPaymentError(code, err.Error(), nil), cause: err}
}

// codedError keeps the backend error reachable through errors.As.
type codedError struct {
	*checkout.PaymentError
	cause error
}

func (e *codedError) Unwrap() []error { return []error{e.PaymentError, e.cause} }
