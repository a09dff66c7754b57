package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cucumber/godog"

	"github.com/kbsmaine/boilerparts/checkout"
	"github.com/kbsmaine/boilerparts/config"
	"github.com/kbsmaine/boilerparts/events"
	"github.com/kbsmaine/boilerparts/money"
	"github.com/kbsmaine/boilerparts/provider"
	"github.com/kbsmaine/boilerparts/storage"
	"github.com/kbsmaine/boilerparts/ui"
	"github.com/kbsmaine/boilerparts/widget"
)

// ShopContext holds one page: its storage, provider and lazily built widget. Settings
// steps must run before the first step that touches the widget.
type ShopContext struct {
	cfg      *config.Config
	kv       *storage.Memory
	backend  *provider.MemoryBackend
	provider *provider.Provider
	page     *widget.Widget
	lastErr  error
}

func newShopContext() *ShopContext {
	return &ShopContext{}
}

func (sc *ShopContext) reset() error {
	sc.shutdown()

	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	cfg.Checkout.FundingSources = []string{string(checkout.FundingPayPal)}
	cfg.Checkout.ReadyAttempts = 500
	cfg.Checkout.ReadyInterval = 2 * time.Millisecond

	sc.cfg = cfg
	sc.kv = storage.NewMemory()
	sc.backend = provider.NewMemoryBackend(provider.WithPayerName("Ada"))
	sc.provider = provider.New(sc.backend)
	sc.page = nil
	sc.lastErr = nil
	return nil
}

func (sc *ShopContext) shutdown() {
	if sc.page != nil {
		_ = sc.page.Shutdown()
		sc.page = nil
	}
}

func (sc *ShopContext) widget() (*widget.Widget, error) {
	if sc.page != nil {
		return sc.page, nil
	}
	w, err := widget.New(sc.cfg, widget.WithKV(sc.kv), widget.WithProvider(sc.provider))
	if err != nil {
		return nil, err
	}
	sc.page = w
	return w, nil
}

// InitShopSteps registers the cart and checkout step definitions.
func InitShopSteps(ctx *godog.ScenarioContext) {
	sc := newShopContext()

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, sc.reset()
	})
	ctx.After(func(ctx context.Context, _ *godog.Scenario, _ error) (context.Context, error) {
		sc.shutdown()
		return ctx, nil
	})

	// Given
	ctx.Step(`^an empty cart$`, sc.anEmptyCart)
	ctx.Step(`^the cart contains "([^"]*)" priced (\d+\.\d+) with quantity (\d+)$`, sc.theCartContains)
	ctx.Step(`^the payment provider is ready$`, sc.providerReady)
	ctx.Step(`^the payment provider is not ready$`, sc.providerNotReady)
	ctx.Step(`^the readiness budget is (\d+) attempts?$`, sc.readinessBudget)
	ctx.Step(`^the capture will fail$`, sc.captureWillFail)

	// When
	ctx.Step(`^I add "([^"]*)" named "([^"]*)" priced (\d+\.\d+)$`, sc.iAdd)
	ctx.Step(`^I try to add "([^"]*)" named "([^"]*)" priced (\d+\.\d+)$`, sc.iTryToAdd)
	ctx.Step(`^the page lists "([^"]*)" named "([^"]*)" priced (\d+\.\d+)$`, sc.pageListsProduct)
	ctx.Step(`^I click add to cart on "([^"]*)"$`, sc.iClickAddToCart)
	ctx.Step(`^I change the quantity of line (-?\d+) by (-?\d+)$`, sc.iChangeQuantity)
	ctx.Step(`^I remove line (-?\d+)$`, sc.iRemoveLine)
	ctx.Step(`^I open the cart$`, sc.iOpenTheCart)
	ctx.Step(`^I close the cart$`, sc.iCloseTheCart)
	ctx.Step(`^a cart update for total (\d+\.\d+) is emitted$`, sc.aCartUpdateIsEmitted)
	ctx.Step(`^the payment provider becomes ready$`, sc.providerBecomesReady)
	ctx.Step(`^I pay with "([^"]*)"$`, sc.iPayWith)
	ctx.Step(`^the stored cart is emptied elsewhere$`, sc.storedCartEmptiedElsewhere)
	ctx.Step(`^the page is reloaded$`, sc.pageReloaded)

	// Then
	ctx.Step(`^the cart total is (\d+\.\d+)$`, sc.theCartTotalIs)
	ctx.Step(`^the cart count is (\d+)$`, sc.theCartCountIs)
	ctx.Step(`^the cart has (\d+) distinct entr(?:y|ies)$`, sc.theCartHasEntries)
	ctx.Step(`^the cart is empty$`, sc.theCartIsEmpty)
	ctx.Step(`^line (\d+) has quantity (\d+)$`, sc.lineHasQuantity)
	ctx.Step(`^the badge shows (\d+)$`, sc.theBadgeShows)
	ctx.Step(`^the last operation fails$`, sc.theLastOperationFails)
	ctx.Step(`^no checkout button is rendered$`, sc.noCheckoutButton)
	ctx.Step(`^(\d+) checkout buttons? (?:is|are) rendered$`, sc.checkoutButtonsRendered)
	ctx.Step(`^the provider rendered (\d+) times?$`, sc.providerRendered)
	ctx.Step(`^the checkout state is "([^"]*)"$`, sc.checkoutStateIs)
	ctx.Step(`^the checkout is rendered for total (\d+\.\d+)$`, sc.checkoutRenderedFor)
	ctx.Step(`^the checkout shows "([^"]*)"$`, sc.checkoutShows)
	ctx.Step(`^the alert "([^"]*)" is shown$`, sc.alertShown)
	ctx.Step(`^the order backend received (\d+) create calls?$`, sc.backendCreateCalls)
}

// Given steps

func (sc *ShopContext) anEmptyCart() error {
	return sc.theCartIsEmpty()
}

func (sc *ShopContext) theCartContains(id, price string, qty int) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	amount, err := money.Parse(price)
	if err != nil {
		return err
	}
	return w.AddItem(id, id, amount, qty)
}

func (sc *ShopContext) providerReady() error {
	sc.provider.SetReady(true)
	return nil
}

func (sc *ShopContext) providerNotReady() error {
	sc.provider.SetReady(false)
	return nil
}

func (sc *ShopContext) readinessBudget(attempts int) error {
	if sc.page != nil {
		return fmt.Errorf("readiness budget must be set before the page is built")
	}
	sc.cfg.Checkout.ReadyAttempts = attempts
	return nil
}

func (sc *ShopContext) captureWillFail() error {
	sc.backend.FailCapture(provider.NewAPIError(provider.ErrNameUnprocessable, "card declined"))
	return nil
}

// When steps

func (sc *ShopContext) iAdd(id, name, price string) error {
	if err := sc.iTryToAdd(id, name, price); err != nil {
		return err
	}
	return sc.lastErr
}

func (sc *ShopContext) pageListsProduct(id, name, price string) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	amount, err := money.Parse(price)
	if err != nil {
		return err
	}
	w.AddProduct(id, name, amount)
	return nil
}

func (sc *ShopContext) iClickAddToCart(id string) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	card := w.Document().ByID(ui.ProductID(id))
	if card == nil {
		return fmt.Errorf("product %q is not listed", id)
	}
	btns := card.ByClass(ui.ClassAddToCart)
	if len(btns) == 0 || !btns[0].Click() {
		return fmt.Errorf("product %q has no add button", id)
	}
	return nil
}

func (sc *ShopContext) iTryToAdd(id, name, price string) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	amount, err := money.Parse(price)
	if err != nil {
		return err
	}
	sc.lastErr = w.AddItem(id, name, amount, 1)
	w.Wait()
	return nil
}

func (sc *ShopContext) iChangeQuantity(index, delta int) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	if err := w.ChangeQuantity(index, delta); err != nil {
		return err
	}
	w.Wait()
	return nil
}

func (sc *ShopContext) iRemoveLine(index int) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	if err := w.RemoveItem(index); err != nil {
		return err
	}
	w.Wait()
	return nil
}

func (sc *ShopContext) iOpenTheCart() error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	w.Open()
	w.Wait()
	return nil
}

func (sc *ShopContext) iCloseTheCart() error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	w.Close()
	w.Wait()
	return nil
}

func (sc *ShopContext) aCartUpdateIsEmitted(total string) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	amount, err := money.Parse(total)
	if err != nil {
		return err
	}
	w.Emit(events.Updated(amount))
	w.Wait()
	return nil
}

func (sc *ShopContext) providerBecomesReady() error {
	sc.provider.SetReady(true)
	if sc.page != nil {
		sc.page.Wait()
	}
	return nil
}

func (sc *ShopContext) iPayWith(source string) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	return w.Pay(context.Background(), checkout.FundingSource(source))
}

func (sc *ShopContext) storedCartEmptiedElsewhere() error {
	return sc.kv.Set(sc.cfg.Storage.Key, []byte("[]"))
}

func (sc *ShopContext) pageReloaded() error {
	sc.shutdown()
	_, err := sc.widget()
	return err
}

// Then steps

func (sc *ShopContext) theCartTotalIs(total string) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	want, err := money.Parse(total)
	if err != nil {
		return err
	}
	if got := w.Total(); got != want {
		return fmt.Errorf("expected total %s, got %s", want, got)
	}
	return nil
}

func (sc *ShopContext) theCartCountIs(n int) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	if got := w.Count(); got != n {
		return fmt.Errorf("expected count %d, got %d", n, got)
	}
	return nil
}

func (sc *ShopContext) theCartHasEntries(n int) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	if got := len(w.Items()); got != n {
		return fmt.Errorf("expected %d entries, got %d", n, got)
	}
	return nil
}

func (sc *ShopContext) theCartIsEmpty() error {
	return sc.theCartHasEntries(0)
}

func (sc *ShopContext) lineHasQuantity(index, qty int) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	items := w.Items()
	if index >= len(items) {
		return fmt.Errorf("no line %d in a cart of %d", index, len(items))
	}
	if got := items[index].Quantity; got != qty {
		return fmt.Errorf("expected line %d quantity %d, got %d", index, qty, got)
	}
	return nil
}

func (sc *ShopContext) theBadgeShows(n int) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	badge := w.Document().ByID(ui.BadgeID)
	if badge == nil {
		return errors.New("badge not found")
	}
	if got, want := badge.Text(), fmt.Sprint(n); got != want {
		return fmt.Errorf("expected badge %s, got %s", want, got)
	}
	return nil
}

func (sc *ShopContext) theLastOperationFails() error {
	if sc.lastErr == nil {
		return errors.New("expected the last operation to fail")
	}
	return nil
}

func (sc *ShopContext) buttons() ([]*ui.Element, error) {
	w, err := sc.widget()
	if err != nil {
		return nil, err
	}
	mount := w.Document().ByID(ui.MountID)
	if mount == nil {
		return nil, nil
	}
	return mount.ByClass(provider.ClassButton), nil
}

func (sc *ShopContext) noCheckoutButton() error {
	return sc.checkoutButtonsRendered(0)
}

func (sc *ShopContext) checkoutButtonsRendered(n int) error {
	buttons, err := sc.buttons()
	if err != nil {
		return err
	}
	if len(buttons) != n {
		return fmt.Errorf("expected %d checkout buttons, got %d", n, len(buttons))
	}
	return nil
}

func (sc *ShopContext) providerRendered(n int) error {
	if got := sc.provider.Stats().Rendered; got != n {
		return fmt.Errorf("expected %d provider renders, got %d", n, got)
	}
	return nil
}

func (sc *ShopContext) checkoutStateIs(state string) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	if got := w.Checkout().State.String(); got != state {
		return fmt.Errorf("expected checkout state %q, got %q", state, got)
	}
	return nil
}

func (sc *ShopContext) checkoutRenderedFor(total string) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	want, err := money.Parse(total)
	if err != nil {
		return err
	}
	status := w.Checkout()
	if status.State != checkout.StateRendered || status.Total != want {
		return fmt.Errorf("expected checkout rendered for %s, got %s for %s", want, status.State, status.Total)
	}
	return nil
}

func (sc *ShopContext) checkoutShows(text string) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	mount := w.Document().ByID(ui.MountID)
	if mount == nil {
		return errors.New("checkout mount not found")
	}
	if got := mount.TextContent(); got != text {
		return fmt.Errorf("expected checkout to show %q, got %q", text, got)
	}
	return nil
}

func (sc *ShopContext) alertShown(text string) error {
	w, err := sc.widget()
	if err != nil {
		return err
	}
	for _, a := range w.Alerts() {
		if a == text {
			return nil
		}
	}
	return fmt.Errorf("alert %q not shown, got %q", text, w.Alerts())
}

func (sc *ShopContext) backendCreateCalls(n int) error {
	creates, _ := sc.backend.Calls()
	if creates != n {
		return fmt.Errorf("expected %d create calls, got %d", n, creates)
	}
	return nil
}
