// Package widget assembles the cart widget: storage, the cart store and controller, the
// modal, the notification bus and the checkout coordinator, behind one facade.
package widget

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kbsmaine/boilerparts/cart"
	"github.com/kbsmaine/boilerparts/checkout"
	"github.com/kbsmaine/boilerparts/config"
	"github.com/kbsmaine/boilerparts/events"
	"github.com/kbsmaine/boilerparts/modal"
	"github.com/kbsmaine/boilerparts/money"
	"github.com/kbsmaine/boilerparts/provider"
	"github.com/kbsmaine/boilerparts/provider/rest"
	"github.com/kbsmaine/boilerparts/storage"
	"github.com/kbsmaine/boilerparts/ui"
)

// Widget is the page-level cart. Its methods block on the widget thread and must not be
// called from inside a notification handler.
type Widget struct {
	doc         *ui.Document
	bus         *events.Bus
	store       *cart.Store
	controller  *cart.Controller
	modal       *modal.Manager
	coordinator *checkout.Coordinator
	logger      *zap.Logger
}

type options struct {
	kv       storage.KV
	provider checkout.Provider
	doc      *ui.Document
	logger   *zap.Logger
}

// Option overrides a collaborator that New would otherwise build from config.
type Option func(*options)

func WithKV(kv storage.KV) Option {
	return func(o *options) { o.kv = kv }
}

func WithProvider(p checkout.Provider) Option {
	return func(o *options) { o.provider = p }
}

func WithDocument(doc *ui.Document) Option {
	return func(o *options) { o.doc = doc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New builds a widget from cfg. Storage is a directory of files when storage.dir is set,
// memory otherwise. The provider talks to provider.url when set and to an in-process
// backend otherwise.
func New(cfg *config.Config, opts ...Option) (*Widget, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.doc == nil {
		o.doc = ui.NewDocument()
	}
	if o.kv == nil {
		kv, err := newKV(cfg.Storage)
		if err != nil {
			return nil, err
		}
		o.kv = kv
	}
	if o.provider == nil {
		o.provider = newProvider(cfg.Provider, o.logger)
	}

	w := &Widget{
		doc:    o.doc,
		bus:    events.NewBus(o.logger.Named("bus")),
		logger: o.logger,
	}

	ui.EnsureHeader(w.doc)
	badge := ui.NewBadge(w.doc)
	store, err := cart.NewStore(o.kv,
		cart.WithStorageKey(cfg.Storage.Key),
		cart.WithCountDisplay(badge),
		cart.WithStoreLogger(o.logger.Named("store")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart store: %w", err)
	}
	badge.ShowCount(store.Count())
	w.store = store

	w.controller = cart.NewController(store, w.bus,
		cart.WithView(ui.NewCartView(w.doc)),
		cart.WithControllerLogger(o.logger.Named("cart")),
	)
	w.modal = modal.NewManager(w.doc, w.controller, w.bus, o.logger.Named("modal"))
	w.coordinator = checkout.NewCoordinator(w.bus, w.doc, o.provider, store, w.controller,
		checkout.WithFundingSources(cfg.Checkout.Sources()...),
		checkout.WithCurrency(cfg.Checkout.Currency),
		checkout.WithDescription(cfg.Checkout.Description),
		checkout.WithRetryPolicy(cfg.Checkout.RetryPolicy()),
		checkout.WithVisibility(w.modal),
		checkout.WithLogger(o.logger.Named("checkout")),
	)

	if btn := w.doc.ByID(ui.OpenID); btn != nil {
		btn.On("click", w.Open)
	}
	return w, nil
}

func newKV(cfg config.StorageConfig) (storage.KV, error) {
	if cfg.Dir == "" {
		return storage.NewMemory(), nil
	}
	kv, err := storage.NewFile(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open cart storage: %w", err)
	}
	return kv, nil
}

func newProvider(cfg config.ProviderConfig, logger *zap.Logger) *provider.Provider {
	var backend provider.Backend
	if cfg.URL != "" {
		backend = rest.NewClient(&rest.Config{
			BaseURL: cfg.URL,
			Timeout:        cfg.Timeout,
			Attempts:       cfg.Attempts,
			RetryBaseDelay: cfg.RetryBaseDelay,
			Logger:         logger.Named("rest"),
		})
	} else {
		backend = provider.NewMemoryBackend(
			provider.WithPayerName(cfg.Payer),
			provider.WithMemoryLogger(logger.Named("backend")),
		)
	}
	p := provider.New(backend, provider.WithLogger(logger.Named("provider")))
	p.SetReady(true)
	return p
}

func (w *Widget) Document() *ui.Document { return w.doc }

func (w *Widget) Bus() *events.Bus { return w.bus }

// Open shows the cart and starts checkout rendering.
func (w *Widget) Open() {
	w.bus.Do(w.modal.Open)
}

func (w *Widget) Close() {
	w.bus.Do(w.modal.Close)
}

func (w *Widget) IsOpen() bool {
	var open bool
	w.bus.Do(func() { open = w.modal.IsOpen() })
	return open
}

func (w *Widget) Total() money.Amount {
	var total money.Amount
	w.bus.Do(func() { total = w.store.Total() })
	return total
}

func (w *Widget) Count() int {
	var n int
	w.bus.Do(func() { n = w.store.Count() })
	return n
}

// Items returns a copy of the persisted line items in insertion order.
func (w *Widget) Items() cart.Cart {
	var items cart.Cart
	w.bus.Do(func() { items = w.store.Load() })
	return items
}

func (w *Widget) AddItem(id, name string, price money.Amount, qty int) error {
	var err error
	w.bus.Do(func() { err = w.controller.AddItem(id, name, price, qty) })
	return err
}

// AddProduct lists a product on the page. Clicking its button adds one unit to the cart.
func (w *Widget) AddProduct(id, name string, price money.Amount) *ui.Element {
	add, created := ui.EnsureProduct(w.doc, id, name, price)
	if created {
		add.On("click", func() {
			if err := w.AddItem(id, name, price, 1); err != nil {
				w.logger.Warn("add to cart failed", zap.String("id", id), zap.Error(err))
			}
		})
	}
	return add
}

func (w *Widget) ChangeQuantity(index, delta int) error {
	var err error
	w.bus.Do(func() { err = w.controller.ChangeQuantity(index, delta) })
	return err
}

func (w *Widget) RemoveItem(index int) error {
	var err error
	w.bus.Do(func() { err = w.controller.RemoveItem(index) })
	return err
}

func (w *Widget) Clear() error {
	var err error
	w.bus.Do(func() { err = w.controller.Clear() })
	return err
}

// Emit delivers a lifecycle notification to the subscribers.
func (w *Widget) Emit(evt events.Event) {
	w.bus.Emit(evt)
}

// Checkout returns a snapshot of the coordinator.
func (w *Widget) Checkout() checkout.Status {
	return w.coordinator.Status()
}

// Wait blocks until background checkout work has settled.
func (w *Widget) Wait() {
	w.coordinator.Wait()
}

// Alerts returns the user-facing messages shown so far.
func (w *Widget) Alerts() []string {
	return w.doc.Alerts()
}

// Pay clicks the rendered button for source. The click runs the provider round trip on
// the calling goroutine; its outcome is reported through Alerts.
func (w *Widget) Pay(ctx context.Context, source checkout.FundingSource) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.Wait()
	btn := w.button(source)
	if btn == nil {
		return fmt.Errorf("no %s button rendered", source)
	}
	btn.Click()
	w.Wait()
	return nil
}

func (w *Widget) button(source checkout.FundingSource) *ui.Element {
	container := w.doc.ByID(checkout.ContainerID(source))
	if container == nil {
		return nil
	}
	for _, b := range container.ByClass(provider.ClassButton) {
		if b.Attr("data-funding") == string(source) {
			return b
		}
	}
	return nil
}

// Shutdown abandons in-flight checkout work.
func (w *Widget) Shutdown() error {
	w.logger.Debug("shutting down widget")
	return w.coordinator.Close()
}
