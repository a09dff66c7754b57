package widget

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbsmaine/boilerparts/checkout"
	"github.com/kbsmaine/boilerparts/config"
	"github.com/kbsmaine/boilerparts/money"
	"github.com/kbsmaine/boilerparts/provider"
	"github.com/kbsmaine/boilerparts/storage"
	"github.com/kbsmaine/boilerparts/ui"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Checkout.ReadyInterval = 5 * time.Millisecond
	cfg.Checkout.ReadyAttempts = 10
	cfg.Provider.Payer = "Ada"
	return cfg
}

func newWidget(t *testing.T, cfg *config.Config, opts ...Option) *Widget {
	t.Helper()
	w, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Shutdown() })
	return w
}

func TestWidget_cartOperations(t *testing.T) {
	w := newWidget(t, testConfig(t))

	require.NoError(t, w.AddItem("p1", "Pump", 999, 2))
	require.NoError(t, w.AddItem("p2", "Valve", 500, 1))
	require.NoError(t, w.ChangeQuantity(1, 2))
	require.NoError(t, w.RemoveItem(0))

	items := w.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p2", items[0].ID)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, money.Amount(1500), w.Total())
	assert.Equal(t, 3, w.Count())
	assert.Equal(t, "3", w.Document().ByID(ui.BadgeID).Text())

	require.NoError(t, w.Clear())
	assert.Empty(t, w.Items())
	assert.Equal(t, "0", w.Document().ByID(ui.BadgeID).Text())
}

func TestWidget_productButtonAddsToCart(t *testing.T) {
	w := newWidget(t, testConfig(t))

	add := w.AddProduct("p1", "Pump", 999)
	require.Same(t, add, w.AddProduct("p1", "Pump", 999))
	assert.Equal(t, 1, add.HandlerCount("click"))

	require.True(t, add.Click())
	require.True(t, add.Click())

	items := w.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "Pump", items[0].Name)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, money.Amount(1998), w.Total())
	assert.Equal(t, "2", w.Document().ByID(ui.BadgeID).Text())
}

func TestWidget_productButtonWhileOpenRendersNewTotal(t *testing.T) {
	w := newWidget(t, testConfig(t))
	w.Open()
	w.Wait()

	w.AddProduct("p1", "Pump", 999).Click()
	w.Wait()

	status := w.Checkout()
	assert.Equal(t, money.Amount(999), status.Total)
	require.NoError(t, w.Pay(context.Background(), checkout.FundingPayPal))
	assert.Empty(t, w.Items())
}

func TestWidget_fileStorageSurvivesRestart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Dir = t.TempDir()

	first := newWidget(t, cfg)
	require.NoError(t, first.AddItem("p1", "Pump", 250, 4))

	second := newWidget(t, cfg)
	assert.Equal(t, money.Amount(1000), second.Total())
	assert.Equal(t, "4", second.Document().ByID(ui.BadgeID).Text())
}

func TestWidget_openRendersButtonsAndPays(t *testing.T) {
	cfg := testConfig(t)
	w := newWidget(t, cfg)
	require.NoError(t, w.AddItem("p1", "Pump", 999, 2))

	w.Open()
	w.Wait()
	assert.True(t, w.IsOpen())
	assert.Equal(t, checkout.StateRendered, w.Checkout().State)
	for _, src := range checkout.DefaultFundingSources {
		assert.NotNil(t, w.button(src), "button for %s", src)
	}

	require.NoError(t, w.Pay(context.Background(), checkout.FundingCard))
	assert.Empty(t, w.Items())
	assert.Equal(t, money.Amount(0), w.Total())
	assert.Contains(t, w.Alerts(), "Payment completed by Ada")
	assert.Equal(t, checkout.StateUnavailable, w.Checkout().State)
}

func TestWidget_payWithoutButton(t *testing.T) {
	w := newWidget(t, testConfig(t))
	assert.Error(t, w.Pay(context.Background(), checkout.FundingPayPal))
}

func TestWidget_openButtonAndClose(t *testing.T) {
	w := newWidget(t, testConfig(t))

	require.True(t, w.Document().ByID(ui.OpenID).Click())
	w.Wait()
	assert.True(t, w.IsOpen())
	assert.True(t, ui.ModalVisible(w.Document()))

	w.Close()
	w.Wait()
	assert.False(t, w.IsOpen())
	assert.Equal(t, checkout.StateIdle, w.Checkout().State)
}

func TestWidget_overrides(t *testing.T) {
	kv := storage.NewMemory()
	p := provider.New(provider.NewMemoryBackend())
	cfg := testConfig(t)
	cfg.Checkout.FundingSources = []string{"paypal"}

	w := newWidget(t, cfg, WithKV(kv), WithProvider(p))
	require.NoError(t, w.AddItem("p1", "Pump", 100, 1))

	_, ok, err := kv.Get(cfg.Storage.Key)
	require.NoError(t, err)
	assert.True(t, ok)

	w.Open()
	w.Wait()
	assert.Equal(t, checkout.StateUnavailable, w.Checkout().State)
	assert.GreaterOrEqual(t, p.Stats().Polls, cfg.Checkout.ReadyAttempts)
}
