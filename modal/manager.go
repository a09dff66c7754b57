// Package modal tracks whether the cart surface is shown and emits the open/close
// lifecycle notifications that drive checkout rendering.
package modal

import (
	"go.uber.org/zap"

	"github.com/kbsmaine/boilerparts/cart"
	"github.com/kbsmaine/boilerparts/events"
	"github.com/kbsmaine/boilerparts/ui"
)

// Manager is the closed/open visibility state of the cart modal. Open, Close and IsOpen
// must run on the widget thread.
type Manager struct {
	doc        *ui.Document
	controller *cart.Controller
	bus        *events.Bus
	logger     *zap.Logger

	open bool
}

// NewManager creates a manager in the closed state and registers itself as the
// controller's visibility gate.
func NewManager(doc *ui.Document, controller *cart.Controller, bus *events.Bus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		doc:        doc,
		controller: controller,
		bus:        bus,
		logger:     logger,
	}
	controller.SetVisibility(m)
	return m
}

// Open shows the modal. Opening an open modal does nothing. On the closed to open
// transition the surface is created if needed, the cart rendered, and cart:open then
// cart:update{total} are published.
func (m *Manager) Open() {
	if m.open {
		return
	}
	m.ensureSurface()
	m.controller.Render()
	ui.ShowModal(m.doc, true)
	m.open = true

	total := m.controller.Store().Total()
	m.logger.Info("cart opened", zap.Stringer("total", total))
	m.bus.Publish(events.Opened())
	m.bus.Publish(events.Updated(total))
}

// Close hides the modal. Closing a closed modal does nothing.
func (m *Manager) Close() {
	if !m.open {
		return
	}
	ui.ShowModal(m.doc, false)
	m.open = false

	m.logger.Info("cart closed")
	m.bus.Publish(events.Closed())
}

// IsOpen implements cart.Visibility.
func (m *Manager) IsOpen() bool { return m.open }

func (m *Manager) ensureSurface() {
	modal, created := ui.EnsureModal(m.doc)
	if !created {
		return
	}
	closeFn := func() { m.bus.Do(m.Close) }
	if btn := modal.Find(ui.CloseID); btn != nil {
		btn.On("click", closeFn)
	}
	// backdrop
	modal.On("click", closeFn)
	m.logger.Debug("modal surface created")
}
