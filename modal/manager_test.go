package modal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbsmaine/boilerparts/cart"
	"github.com/kbsmaine/boilerparts/events"
	"github.com/kbsmaine/boilerparts/storage"
	"github.com/kbsmaine/boilerparts/ui"
)

type fixture struct {
	doc  *ui.Document
	bus  *events.Bus
	ctrl *cart.Controller
	m    *Manager
	seen []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{doc: ui.NewDocument(), bus: events.NewBus(nil)}
	store, err := cart.NewStore(storage.NewMemory())
	require.NoError(t, err)
	f.ctrl = cart.NewController(store, f.bus, cart.WithView(ui.NewCartView(f.doc)))
	f.m = NewManager(f.doc, f.ctrl, f.bus, nil)

	record := func(e events.Event) { f.seen = append(f.seen, e.String()) }
	f.bus.On(events.CartOpen, record).On(events.CartUpdate, record).On(events.CartClose, record)
	return f
}

func TestManager_openEmitsOpenThenUpdate(t *testing.T) {
	f := newFixture(t)
	f.bus.Do(func() {
		require.NoError(t, f.ctrl.AddItem("p1", "Widget", 999, 2))
	})
	assert.Empty(t, f.seen, "closed modal must not notify")

	f.bus.Do(f.m.Open)

	assert.True(t, f.m.IsOpen())
	assert.True(t, ui.ModalVisible(f.doc))
	assert.Equal(t, []string{"cart:open", "cart:update{total=19.98}"}, f.seen)
	assert.Equal(t, "Total: $19.98", f.doc.ByID(ui.TotalID).Text())
	assert.Len(t, f.doc.ByID(ui.ListID).ByClass(ui.ClassRow), 1)
}

func TestManager_openIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.bus.Do(f.m.Open)
	f.bus.Do(f.m.Open)

	assert.Equal(t, []string{"cart:open", "cart:update{total=0.00}"}, f.seen)
}

func TestManager_closeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.bus.Do(f.m.Close)
	assert.Empty(t, f.seen)

	f.bus.Do(f.m.Open)
	f.bus.Do(f.m.Close)
	f.bus.Do(f.m.Close)

	assert.False(t, f.m.IsOpen())
	assert.False(t, ui.ModalVisible(f.doc))
	assert.Equal(t, []string{"cart:open", "cart:update{total=0.00}", "cart:close"}, f.seen)
}

func TestManager_surfaceCreatedOnceAcrossReopen(t *testing.T) {
	f := newFixture(t)
	f.bus.Do(f.m.Open)
	first := f.doc.ByID(ui.ModalID)
	f.bus.Do(f.m.Close)
	f.bus.Do(f.m.Open)

	assert.Same(t, first, f.doc.ByID(ui.ModalID))
	assert.Equal(t, 1, f.doc.ByID(ui.CloseID).HandlerCount("click"))
}

func TestManager_closeButton(t *testing.T) {
	f := newFixture(t)
	f.bus.Do(f.m.Open)

	require.True(t, f.doc.ByID(ui.CloseID).Click())
	assert.False(t, f.m.IsOpen())
	assert.Equal(t, "cart:close", f.seen[len(f.seen)-1])
}

func TestManager_gatesControllerNotifications(t *testing.T) {
	f := newFixture(t)
	f.bus.Do(f.m.Open)
	f.seen = nil

	f.bus.Do(func() { require.NoError(t, f.ctrl.AddItem("p1", "Widget", 500, 1)) })
	assert.Equal(t, []string{"cart:update{total=5.00}"}, f.seen)

	f.bus.Do(f.m.Close)
	f.seen = nil
	f.bus.Do(func() { require.NoError(t, f.ctrl.AddItem("p1", "Widget", 500, 1)) })
	assert.Empty(t, f.seen)
}
