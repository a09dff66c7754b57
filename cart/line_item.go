package cart

import (
	"math"

	"github.com/kbsmaine/boilerparts/money"
)

// LineItem is one product entry in the cart.
type LineItem struct {
	ID        string
	Name      string
	UnitPrice money.Amount
	Quantity  int
}

// Subtotal is UnitPrice × Quantity.
func (li LineItem) Subtotal() money.Amount {
	return li.UnitPrice.Times(li.Quantity)
}

// Cart is the ordered list of line items; order is insertion order.
type Cart []LineItem

// Total is the sum of UnitPrice × Quantity over all items.
func (c Cart) Total() money.Amount {
	var total money.Amount
	for _, li := range c {
		total += li.Subtotal()
	}
	return total
}

// Count is the sum of quantities over all items.
func (c Cart) Count() int {
	n := 0
	for _, li := range c {
		n += li.Quantity
	}
	return n
}

// Index returns the position of the item with the given id, or -1.
func (c Cart) Index(id string) int {
	for i, li := range c {
		if li.ID == id {
			return i
		}
	}
	return -1
}

// Clone returns an independent copy.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// persistedItem is the storage wire shape: {"id","name","price","qty"}.
type persistedItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Qty   int     `json:"qty,omitempty"`
}

func toPersisted(c Cart) []persistedItem {
	out := make([]persistedItem, len(c))
	for i, li := range c {
		out[i] = persistedItem{
			ID:    li.ID,
			Name:  li.Name,
			Price: li.UnitPrice.Float64(),
			Qty:   li.Quantity,
		}
	}
	return out
}

// fromPersisted restores the one-entry-per-id invariant: a missing qty counts as 1 and
// duplicate ids are merged into the first occurrence, saturating at math.MaxInt.
func fromPersisted(items []persistedItem) Cart {
	out := make(Cart, 0, len(items))
	for _, p := range items {
		qty := p.Qty
		if qty < 1 {
			qty = 1
		}
		if i := out.Index(p.ID); i >= 0 {
			if qty > math.MaxInt-out[i].Quantity {
				out[i].Quantity = math.MaxInt
			} else {
				out[i].Quantity += qty
			}
			continue
		}
		out = append(out, LineItem{
			ID:        p.ID,
			Name:      p.Name,
			UnitPrice: money.FromFloat(p.Price),
			Quantity:  qty,
		})
	}
	return out
}
