// Package events provides the cart lifecycle notification bus.
//
// Bus is both the publish/subscribe channel and the single logical thread the widget runs
// on: every state change happens inside Do, and notifications published while a Do is in
// progress are queued and delivered in emission order once the current work returns.
// Asynchronous continuations (provider readiness, payment round trips) re-enter through Do
// from their own goroutines.
package events

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kbsmaine/boilerparts/money"
)

// Kind identifies a lifecycle notification.
type Kind string

const (
	// CartOpen is emitted once per closed -> open transition of the modal.
	CartOpen Kind = "cart:open"
	// CartUpdate carries the cart total after a mutation visible while the modal is open.
	CartUpdate Kind = "cart:update"
	// CartClose is emitted once per open -> closed transition of the modal.
	CartClose Kind = "cart:close"
)

// DefaultMaxDrain bounds how many notifications a single Do may deliver.
const DefaultMaxDrain = 1024

// Event is a lifecycle notification. Total is only meaningful for CartUpdate.
type Event struct {
	Kind  Kind
	Total money.Amount
}

func (e Event) String() string {
	if e.Kind == CartUpdate {
		return fmt.Sprintf("%s{total=%s}", e.Kind, e.Total)
	}
	return string(e.Kind)
}

// Opened builds a CartOpen notification.
func Opened() Event { return Event{Kind: CartOpen} }

// Updated builds a CartUpdate notification.
func Updated(total money.Amount) Event { return Event{Kind: CartUpdate, Total: total} }

// Closed builds a CartClose notification.
func Closed() Event { return Event{Kind: CartClose} }

// Handler reacts to a notification. Handlers run inside Do and may Publish further events.
type Handler func(Event)

// Bus serializes widget work and delivers queued notifications.
//
// Do must not be called from inside a handler or from inside another Do on the same
// goroutine; handlers publish instead.
type Bus struct {
	run sync.Mutex

	mu       sync.Mutex
	queue    []Event
	handlers map[Kind][]Handler

	maxDrain int
	logger   *zap.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithMaxDrain overrides DefaultMaxDrain.
func WithMaxDrain(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.maxDrain = n
		}
	}
}

// NewBus creates a bus. A nil logger disables logging.
func NewBus(logger *zap.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		handlers: make(map[Kind][]Handler),
		maxDrain: DefaultMaxDrain,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On subscribes a handler to a notification kind. Handlers for a kind run in
// registration order.
func (b *Bus) On(kind Kind, h Handler) *Bus {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[kind] = append(b.handlers[kind], h)
	return b
}

// Publish queues a notification. It is delivered when the enclosing Do drains, or by the
// next Do if called outside one.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue = append(b.queue, evt)
}

// Emit publishes a notification from outside the widget thread and delivers it.
func (b *Bus) Emit(evt Event) {
	b.Do(func() { b.Publish(evt) })
}

// Do runs fn on the widget thread, then delivers every queued notification in FIFO
// order, including those published by the handlers themselves.
func (b *Bus) Do(fn func()) {
	b.run.Lock()
	defer b.run.Unlock()

	b.safely("task", fn)
	b.drain()
}

func (b *Bus) drain() {
	delivered := 0
	for {
		evt, handlers, ok := b.next()
		if !ok {
			return
		}
		if delivered >= b.maxDrain {
			dropped := b.reset() + 1
			b.logger.Error("notification loop exceeded drain limit, dropping queue",
				zap.Int("limit", b.maxDrain),
				zap.Int("dropped", dropped),
				zap.Stringer("event", evt))
			return
		}
		delivered++

		b.logger.Debug("delivering notification", zap.Stringer("event", evt), zap.Int("handlers", len(handlers)))
		for _, h := range handlers {
			b.safely(string(evt.Kind), func() { h(evt) })
		}
	}
}

func (b *Bus) next() (Event, []Handler, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		return Event{}, nil, false
	}
	evt := b.queue[0]
	b.queue = b.queue[1:]
	hs := make([]Handler, len(b.handlers[evt.Kind]))
	copy(hs, b.handlers[evt.Kind])
	return evt, hs, true
}

func (b *Bus) reset() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.queue)
	b.queue = nil
	return n
}

// safely keeps a panicking handler from unwinding through the bus and leaving the
// widget thread locked.
func (b *Bus) safely(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked", zap.String("handler", name), zap.Any("panic", r))
		}
	}()
	fn()
}
