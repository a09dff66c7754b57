package ui

import (
	"fmt"
	"strconv"

	"github.com/kbsmaine/boilerparts/cart"
	"github.com/kbsmaine/boilerparts/money"
)

// Element ids of the cart surface.
const (
	ModalID  = "cartModal"
	InnerID  = "cartInner"
	CloseID  = "cartCloseBtn"
	ListID   = "cartList"
	TotalID  = "cartTotalRow"
	MountID  = "checkout-mount"
	BadgeID  = "cartCount"
	OpenID   = "openCartBtn"
	EmptyMsg = "Your cart is empty."
)

// Row control classes.
const (
	ClassRow    = "cart-row"
	ClassQtyDec = "qty-dec"
	ClassQtyInc = "qty-inc"
	ClassRemove = "rm"
)

// Product listing ids and classes.
const (
	ProductsID     = "products"
	ClassProduct   = "product"
	ClassAddToCart = "add-to-cart"
)

// ProductID is the element id of the product card for id.
func ProductID(id string) string { return "product-" + id }

// EnsureModal returns the modal surface, creating it on first use. The surface is
// created hidden; later calls reuse the existing element.
func EnsureModal(doc *Document) (modal *Element, created bool) {
	if m := doc.ByID(ModalID); m != nil {
		return m, false
	}

	modal = doc.Create("div", ModalID).SetAttr("display", "none")
	inner := doc.Create("div", InnerID).Append(
		doc.Create("button", CloseID).SetAttr("aria-label", "Close").SetText("✕"),
		doc.Create("h2", "").SetText("Your Cart"),
		doc.Create("div", ListID),
		doc.Create("div", TotalID).SetText(totalLine(money.Zero)),
		doc.Create("div", MountID),
	)
	modal.Append(inner)
	doc.Body().Append(modal)
	return modal, true
}

// ShowModal toggles the modal surface's display.
func ShowModal(doc *Document, visible bool) {
	m := doc.ByID(ModalID)
	if m == nil {
		return
	}
	if visible {
		m.SetAttr("display", "flex")
	} else {
		m.SetAttr("display", "none")
	}
}

// ModalVisible reports whether the modal surface is displayed.
func ModalVisible(doc *Document) bool {
	m := doc.ByID(ModalID)
	return m != nil && m.Attr("display") == "flex"
}

// EnsureHeader creates the page header with the open button and count badge.
func EnsureHeader(doc *Document) {
	if doc.ByID(BadgeID) != nil {
		return
	}
	doc.Body().Append(doc.Create("header", "").Append(
		doc.Create("button", OpenID).SetText("Cart"),
		doc.Create("span", BadgeID).SetText("0"),
	))
}

// EnsureProduct returns the add-to-cart button of the product card for id, creating the
// card under the product listing on first use.
func EnsureProduct(doc *Document, id, name string, price money.Amount) (add *Element, created bool) {
	if card := doc.ByID(ProductID(id)); card != nil {
		if btns := card.ByClass(ClassAddToCart); len(btns) > 0 {
			return btns[0], false
		}
	}

	list := doc.ByID(ProductsID)
	if list == nil {
		list = doc.Create("section", ProductsID)
		doc.Body().Append(list)
	}
	add = doc.Create("button", "").
		SetAttr("class", ClassAddToCart).
		SetAttr("data-id", id).
		SetAttr("data-name", name).
		SetAttr("data-price", price.String()).
		SetText("Add to cart")
	list.Append(doc.Create("div", ProductID(id)).SetAttr("class", ClassProduct).Append(
		doc.Create("div", "").SetText(name),
		doc.Create("div", "").SetText(price.Dollars()),
		add,
	))
	return add, true
}

// Badge shows the cart item count in the page header.
type Badge struct {
	doc *Document
}

func NewBadge(doc *Document) *Badge { return &Badge{doc: doc} }

// ShowCount implements cart.CountDisplay.
func (b *Badge) ShowCount(n int) {
	if el := b.doc.ByID(BadgeID); el != nil {
		el.SetText(strconv.Itoa(n))
	}
}

// CartView renders the cart rows into the modal list.
type CartView struct {
	doc *Document
}

func NewCartView(doc *Document) *CartView { return &CartView{doc: doc} }

// RenderCart implements cart.View. The previous rows, and with them their bound controls,
// are discarded before the new rows are attached. The checkout mount is left alone.
func (v *CartView) RenderCart(items cart.Cart, total money.Amount, actions cart.RowActions) {
	list := v.doc.ByID(ListID)
	totalRow := v.doc.ByID(TotalID)
	if list == nil || totalRow == nil {
		return
	}

	if len(items) == 0 {
		list.Replace(v.doc.Create("div", "").SetText(EmptyMsg))
	} else {
		rows := make([]*Element, 0, len(items))
		for i, li := range items {
			rows = append(rows, v.row(i, li, actions))
		}
		list.Replace(rows...)
	}
	totalRow.SetText(totalLine(total))
}

func (v *CartView) row(i int, li cart.LineItem, actions cart.RowActions) *Element {
	d := v.doc
	idx := strconv.Itoa(i)

	dec := d.Create("button", "").SetAttr("class", ClassQtyDec).SetAttr("data-i", idx).SetText("−")
	inc := d.Create("button", "").SetAttr("class", ClassQtyInc).SetAttr("data-i", idx).SetText("+")
	rm := d.Create("button", "").SetAttr("class", ClassRemove).SetAttr("data-i", idx).SetAttr("aria-label", "Remove").SetText("✕")
	bind(dec, actions.Decrement, i)
	bind(inc, actions.Increment, i)
	bind(rm, actions.Remove, i)

	return d.Create("div", "").SetAttr("class", ClassRow).SetAttr("data-id", li.ID).Append(
		d.Create("div", "").Append(
			d.Create("div", "").SetText(li.Name),
			d.Create("div", "").SetText(li.UnitPrice.Dollars()),
		),
		d.Create("div", "").Append(
			dec,
			d.Create("span", "").SetText(strconv.Itoa(li.Quantity)),
			inc,
		),
		rm,
	)
}

func bind(el *Element, action func(int), i int) {
	if action == nil {
		return
	}
	el.On("click", func() { action(i) })
}

func totalLine(total money.Amount) string {
	return fmt.Sprintf("Total: %s", total.Dollars())
}
