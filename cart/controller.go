package cart

import (
	"math"

	"go.uber.org/zap"

	"github.com/kbsmaine/boilerparts/events"
	"github.com/kbsmaine/boilerparts/money"
)

// View renders the cart contents. Rendering must replace, not extend, any previously
// rendered rows and bind the row controls to actions.
type View interface {
	RenderCart(items Cart, total money.Amount, actions RowActions)
}

// RowActions are the per-row controls a View binds. Each runs on the widget thread.
type RowActions struct {
	Increment func(index int)
	Decrement func(index int)
	Remove    func(index int)
}

// Visibility reports whether the cart modal is shown.
type Visibility interface {
	IsOpen() bool
}

// Controller mutates the cart in response to user actions. Every method must run on the
// widget thread (inside events.Bus.Do).
type Controller struct {
	store      *Store
	bus        *events.Bus
	view       View
	visibility Visibility
	logger     *zap.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithView sets the view rendered after each mutation.
func WithView(v View) ControllerOption {
	return func(c *Controller) {
		c.view = v
	}
}

// WithVisibility sets the modal visibility gate for notifications.
func WithVisibility(v Visibility) ControllerOption {
	return func(c *Controller) {
		c.visibility = v
	}
}

// WithControllerLogger sets the logger.
func WithControllerLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewController creates a controller over store publishing on bus.
func NewController(store *Store, bus *events.Bus, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:  store,
		bus:    bus,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetVisibility wires the visibility gate after construction; the modal itself needs
// the controller to render, so one side has to be attached late.
func (c *Controller) SetVisibility(v Visibility) {
	c.visibility = v
}

// Store returns the underlying store.
func (c *Controller) Store() *Store { return c.store }

// AddItem adds qty units of a product. An existing entry with the same id has its
// quantity increased; otherwise a new entry is appended.
func (c *Controller) AddItem(id, name string, price money.Amount, qty int) error {
	if id == "" {
		return NewInvalidArgument(ErrMsgProductIDRequired)
	}
	if qty < 1 {
		return NewInvalidArgument(ErrMsgQuantityPositive)
	}
	if price < 0 {
		return NewInvalidArgument(ErrMsgPriceNegative)
	}
	if name == "" {
		name = "Item"
	}

	items := c.store.Load()
	if i := items.Index(id); i >= 0 {
		if qty > math.MaxInt-items[i].Quantity {
			return NewInvalidArgument(ErrMsgQuantityTooLarge)
		}
		items[i].Quantity += qty
	} else {
		items = append(items, LineItem{ID: id, Name: name, UnitPrice: price, Quantity: qty})
	}

	c.logger.Info("adding item",
		zap.String("product_id", id),
		zap.Int("quantity", qty),
		zap.Stringer("unit_price", price))
	return c.commit(items)
}

// ChangeQuantity adds delta to the quantity at index, never going below 1 and saturating
// at math.MaxInt.
// An out-of-range index is a no-op.
func (c *Controller) ChangeQuantity(index, delta int) error {
	items := c.store.Load()
	if index < 0 || index >= len(items) {
		c.logger.Debug("quantity change ignored, index out of range", zap.Int("index", index), zap.Int("items", len(items)))
		return nil
	}

	current := items[index].Quantity
	var qty int
	switch {
	case delta > 0 && delta > math.MaxInt-current:
		qty = math.MaxInt
	case current+delta < 1:
		qty = 1
	default:
		qty = current + delta
	}
	if qty == items[index].Quantity {
		return nil
	}
	items[index].Quantity = qty

	c.logger.Info("updating quantity",
		zap.String("product_id", items[index].ID),
		zap.Int("new_quantity", qty))
	return c.commit(items)
}

// RemoveItem deletes the entry at index. An out-of-range index is a no-op.
func (c *Controller) RemoveItem(index int) error {
	items := c.store.Load()
	if index < 0 || index >= len(items) {
		c.logger.Debug("remove ignored, index out of range", zap.Int("index", index), zap.Int("items", len(items)))
		return nil
	}

	c.logger.Info("removing item", zap.String("product_id", items[index].ID))
	items = append(items[:index:index], items[index+1:]...)
	return c.commit(items)
}

// Clear empties the cart.
func (c *Controller) Clear() error {
	c.logger.Info("clearing cart")
	return c.commit(Cart{})
}

// Render redraws the cart view from the persisted cart. Calling it repeatedly with
// unchanged data yields the same rows.
func (c *Controller) Render() {
	if c.view == nil {
		return
	}
	items := c.store.Load()
	c.view.RenderCart(items, items.Total(), c.rowActions())
}

// commit persists, re-renders, then notifies if the modal is open.
func (c *Controller) commit(items Cart) error {
	if err := c.store.Save(items); err != nil {
		c.logger.Error("failed to save cart", zap.Error(err))
		return NewFailedPrecondition(ErrMsgStorageUnwritable, err)
	}
	c.Render()
	if c.visibility != nil && c.visibility.IsOpen() {
		c.bus.Publish(events.Updated(items.Total()))
	}
	return nil
}

func (c *Controller) rowActions() RowActions {
	run := func(op func(int) error) func(int) {
		return func(index int) {
			c.bus.Do(func() {
				if err := op(index); err != nil {
					c.logger.Warn("cart action failed", zap.Int("index", index), zap.Error(err))
				}
			})
		}
	}
	return RowActions{
		Increment: run(func(i int) error { return c.ChangeQuantity(i, 1) }),
		Decrement: run(func(i int) error { return c.ChangeQuantity(i, -1) }),
		Remove:    run(c.RemoveItem),
	}
}
