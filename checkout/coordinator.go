package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kbsmaine/boilerparts/events"
	"github.com/kbsmaine/boilerparts/money"
	"github.com/kbsmaine/boilerparts/ui"
)

// UnavailableMessage replaces the buttons when checkout cannot be offered.
const UnavailableMessage = "Payment unavailable"

// Acknowledgments shown to the user.
const (
	MsgPaymentFailed  = "Payment failed. Please try again."
	MsgZeroTotal      = "Your cart is empty. Add an item before checking out."
	MsgCartChanged    = "Your cart changed during payment. Please review it before paying again."
	DefaultPayerName  = "customer"
	DefaultCurrency   = "USD"
	DefaultOrderNotes = "Boiler Parts & Surplus - Web Order"
)

// ContainerID is the id of the fresh container a funding source renders into.
func ContainerID(source FundingSource) string { return "checkout-btn-" + string(source) }

// State is the coordinator's checkout state.
type State int

const (
	StateIdle State = iota
	StateAwaitingProvider
	StateRendered
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingProvider:
		return "awaiting-provider"
	case StateRendered:
		return "rendered"
	case StateUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TotalSource reads the live cart total.
type TotalSource interface {
	Total() money.Amount
}

// CartClearer empties the cart after a completed payment.
type CartClearer interface {
	Clear() error
}

// Visibility reports whether the cart modal is shown.
type Visibility interface {
	IsOpen() bool
}

// Status is a snapshot of the coordinator.
type Status struct {
	State      State
	Total      money.Amount
	Generation uint64
	InstanceID string
}

// instance is the rendered widget set for one generation.
type instance struct {
	id         string
	generation uint64
	total      money.Amount
	sources    []FundingSource
	containers []*ui.Element
	handles    []WidgetHandle
	cancel     context.CancelFunc
}

func (in *instance) destroy() {
	in.cancel()
	for _, h := range in.handles {
		if h != nil {
			h.Destroy()
		}
	}
}

// Coordinator is the checkout state machine. Its fields are owned by the widget thread:
// notification handlers and every asynchronous continuation run inside bus.Do.
type Coordinator struct {
	bus      *events.Bus
	doc      *ui.Document
	provider Provider
	totals   TotalSource
	clearer  CartClearer

	visibility  Visibility
	sources     []FundingSource
	style       Style
	currency    string
	description string
	retry       RetryPolicy
	logger      *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup

	open       bool
	state      State
	total      money.Amount
	generation uint64
	current    *instance
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFundingSources sets the buttons rendered, in order.
func WithFundingSources(sources ...FundingSource) Option {
	return func(c *Coordinator) {
		if len(sources) > 0 {
			c.sources = append([]FundingSource(nil), sources...)
		}
	}
}

func WithStyle(s Style) Option {
	return func(c *Coordinator) {
		c.style = s
	}
}

func WithCurrency(currency string) Option {
	return func(c *Coordinator) {
		if currency != "" {
			c.currency = currency
		}
	}
}

func WithDescription(description string) Option {
	return func(c *Coordinator) {
		if description != "" {
			c.description = description
		}
	}
}

// WithRetryPolicy bounds the provider readiness wait.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Coordinator) {
		c.retry = p
	}
}

// WithVisibility adds the modal's own state as a gate on top of the open/close
// notifications.
func WithVisibility(v Visibility) Option {
	return func(c *Coordinator) {
		c.visibility = v
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates a coordinator and subscribes it to the cart lifecycle on bus.
func NewCoordinator(bus *events.Bus, doc *ui.Document, provider Provider, totals TotalSource, clearer CartClearer, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		bus:         bus,
		doc:         doc,
		provider:    provider,
		totals:      totals,
		clearer:     clearer,
		sources:     append([]FundingSource(nil), DefaultFundingSources...),
		style:       DefaultStyle,
		currency:    DefaultCurrency,
		description: DefaultOrderNotes,
		retry:       DefaultRetryPolicy,
		logger:      zap.NewNop(),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(c)
	}

	bus.On(events.CartOpen, c.onOpen).
		On(events.CartUpdate, c.onUpdate).
		On(events.CartClose, c.onClose)
	return c
}

// Status returns a snapshot. It must not be called on the widget thread.
func (c *Coordinator) Status() Status {
	var s Status
	c.bus.Do(func() {
		s = Status{State: c.state, Total: c.total, Generation: c.generation}
		if c.current != nil {
			s.InstanceID = c.current.id
		}
	})
	return s
}

// Wait blocks until no readiness wait or render is in flight.
func (c *Coordinator) Wait() {
	c.pending.Wait()
}

// Close abandons in-flight work and waits for it to finish.
func (c *Coordinator) Close() error {
	c.cancel()
	c.pending.Wait()
	return nil
}

func (c *Coordinator) isOpen() bool {
	if !c.open {
		return false
	}
	return c.visibility == nil || c.visibility.IsOpen()
}

func (c *Coordinator) onOpen(events.Event) {
	c.open = true
	c.generation++
	c.teardown()
	c.state = StateIdle
	c.total = 0
	c.logger.Debug("checkout reset on open", zap.Uint64("generation", c.generation))

	c.handleTotal(c.totals.Total())
}

func (c *Coordinator) onUpdate(e events.Event) {
	if !c.isOpen() {
		c.logger.Debug("ignoring cart update while closed", zap.Stringer("total", e.Total))
		return
	}
	c.handleTotal(e.Total)
}

func (c *Coordinator) onClose(events.Event) {
	c.open = false
	c.generation++
	c.teardown()
	c.state = StateIdle
	c.total = 0
	c.logger.Debug("checkout torn down on close", zap.Uint64("generation", c.generation))
}

func (c *Coordinator) handleTotal(total money.Amount) {
	if !total.IsPositive() {
		if c.state == StateUnavailable && c.current == nil && !c.total.IsPositive() {
			return
		}
		c.generation++
		c.teardown()
		c.showUnavailable()
		c.state = StateUnavailable
		c.total = total
		c.logger.Debug("checkout unavailable for empty cart", zap.Uint64("generation", c.generation))
		return
	}

	if (c.state == StateRendered || c.state == StateAwaitingProvider) && c.total == total {
		c.logger.Debug("checkout already current",
			zap.Stringer("state", c.state),
			zap.Stringer("total", total))
		return
	}

	c.generation++
	c.teardown()
	c.state = StateAwaitingProvider
	c.total = total
	gen := c.generation
	c.logger.Debug("awaiting payment provider",
		zap.Uint64("generation", gen),
		zap.Stringer("total", total))

	c.pending.Add(1)
	go c.awaitProvider(gen, total)
}

func (c *Coordinator) awaitProvider(gen uint64, total money.Amount) {
	defer c.pending.Done()

	err := WaitReady(c.ctx, c.provider, c.retry)
	if c.ctx.Err() != nil {
		return
	}

	c.bus.Do(func() {
		if gen != c.generation || c.state != StateAwaitingProvider || !c.isOpen() {
			c.logger.Debug("discarding stale render attempt",
				zap.Uint64("generation", gen),
				zap.Uint64("current", c.generation))
			return
		}
		if err != nil {
			c.logger.Warn("payment provider unavailable", zap.Error(err))
			c.showUnavailable()
			c.state = StateUnavailable
			return
		}
		c.render(gen, total)
	})
}

// render builds fresh containers and binds one button per funding source. Runs on the
// widget thread.
func (c *Coordinator) render(gen uint64, total money.Amount) {
	mount := c.doc.ByID(ui.MountID)
	if mount == nil {
		c.logger.Warn("checkout mount missing, not rendering")
		c.state = StateIdle
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	inst := &instance{
		id:         uuid.NewString(),
		generation: gen,
		total:      total,
		cancel:     cancel,
	}

	var failed error
	for _, src := range c.sources {
		container := c.doc.Create("div", ContainerID(src))
		handle, err := c.provider.CreateButtonWidget(c.buttonConfig(src))
		if err != nil {
			failed = multierr.Append(failed, fmt.Errorf("%s: %w", src, err))
			container.SetText(UnavailableMessage)
			handle = nil
		}
		inst.sources = append(inst.sources, src)
		inst.containers = append(inst.containers, container)
		inst.handles = append(inst.handles, handle)
	}
	mount.Replace(inst.containers...)

	c.current = inst
	c.state = StateRendered
	c.logger.Info("rendering checkout buttons",
		zap.String("instance_id", inst.id),
		zap.Uint64("generation", gen),
		zap.Stringer("total", total),
		zap.Int("sources", len(c.sources)))

	if failed != nil {
		c.logger.Warn("funding sources unavailable", zap.Error(failed))
	}
	if c.liveHandles(inst) == 0 {
		c.markUnavailable(inst)
		return
	}

	c.pending.Add(1)
	go c.renderInto(ctx, inst)
}

func (c *Coordinator) renderInto(ctx context.Context, inst *instance) {
	defer c.pending.Done()

	errs := make([]error, len(inst.handles))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range inst.handles {
		if h == nil {
			continue
		}
		i, h := i, h
		g.Go(func() error {
			if err := h.RenderInto(gctx, inst.containers[i]); err != nil {
				errs[i] = fmt.Errorf("%s: %w", inst.sources[i], err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}
	if multierr.Combine(errs...) == nil {
		return
	}

	c.bus.Do(func() {
		if c.current != inst {
			return
		}
		for i, err := range errs {
			if err == nil {
				continue
			}
			c.logger.Warn("funding source failed to render", zap.String("source", string(inst.sources[i])), zap.Error(err))
			inst.handles[i].Destroy()
			inst.handles[i] = nil
			inst.containers[i].Replace(c.doc.Create("div", "").SetText(UnavailableMessage))
		}
		if c.liveHandles(inst) == 0 {
			c.markUnavailable(inst)
		}
	})
}

func (c *Coordinator) liveHandles(inst *instance) int {
	n := 0
	for _, h := range inst.handles {
		if h != nil {
			n++
		}
	}
	return n
}

func (c *Coordinator) markUnavailable(inst *instance) {
	c.logger.Warn("no funding source could be rendered", zap.String("instance_id", inst.id))
	inst.destroy()
	c.current = nil
	c.showUnavailable()
	c.state = StateUnavailable
}

// teardown destroys the current instance and empties the mount.
func (c *Coordinator) teardown() {
	if c.current != nil {
		c.logger.Debug("destroying checkout buttons", zap.String("instance_id", c.current.id))
		c.current.destroy()
		c.current = nil
	}
	if mount := c.doc.ByID(ui.MountID); mount != nil {
		mount.Clear()
	}
}

func (c *Coordinator) showUnavailable() {
	mount := c.doc.ByID(ui.MountID)
	if mount == nil {
		return
	}
	mount.Replace(c.doc.Create("div", "").SetAttr("class", "checkout-unavailable").SetText(UnavailableMessage))
}

func (c *Coordinator) buttonConfig(src FundingSource) ButtonConfig {
	return ButtonConfig{
		FundingSource: src,
		Style:         c.style,
		OnCreateOrder: c.createOrder,
		OnApprove:     c.approve,
		OnError:       c.fail,
	}
}

// createOrder re-reads the live total at click time. Called by the provider off the
// widget thread.
func (c *Coordinator) createOrder(ctx context.Context) (OrderRequest, error) {
	var total money.Amount
	c.bus.Do(func() { total = c.totals.Total() })

	if !total.IsPositive() {
		c.logger.Info("refusing order for empty cart", zap.Stringer("total", total))
		return OrderRequest{}, NewPaymentError(ErrCodeZeroTotal, "cart total must be greater than zero", map[string]interface{}{
			"total": total.String(),
		})
	}
	return OrderRequest{Amount: total, Currency: c.currency, Description: c.description}, nil
}

func (c *Coordinator) approve(ctx context.Context, capture Capture) error {
	var err error
	c.bus.Do(func() { err = c.completePayment(capture) })
	return err
}

func (c *Coordinator) fail(err error) {
	c.bus.Do(func() {
		c.logger.Warn("payment failed", zap.String("code", ErrorCode(err)), zap.Error(err))
		if ErrorCode(err) == ErrCodeZeroTotal {
			c.doc.Alert(MsgZeroTotal)
			return
		}
		c.doc.Alert(MsgPaymentFailed)
	})
}

// completePayment clears the cart, settles the checkout state for the now empty cart,
// then acknowledges the payer. When the live total no longer matches the captured amount
// the cart is kept and the user is told it changed.
func (c *Coordinator) completePayment(capture Capture) error {
	c.logger.Info("payment completed",
		zap.String("order_id", capture.OrderID),
		zap.String("capture_id", capture.CaptureID),
		zap.Stringer("amount", capture.Amount))

	payer := capture.PayerName
	if payer == "" {
		payer = DefaultPayerName
	}

	// The cart may have been edited while the order round trip was in flight.
	if live := c.totals.Total(); capture.Amount.IsPositive() && capture.Amount != live {
		c.logger.Warn("cart changed during payment, keeping cart",
			zap.String("order_id", capture.OrderID),
			zap.Stringer("paid", capture.Amount),
			zap.Stringer("total", live))
		c.doc.Alert("Payment completed by " + payer)
		c.doc.Alert(MsgCartChanged)
		return nil
	}

	if err := c.clearer.Clear(); err != nil {
		c.logger.Error("failed to clear cart after payment", zap.String("order_id", capture.OrderID), zap.Error(err))
		return err
	}
	if c.isOpen() {
		c.handleTotal(c.totals.Total())
	}

	c.doc.Alert("Payment completed by " + payer)
	return nil
}
