package domain

import (
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// MaxItemQuantity caps the quantity of a single cart line.
const MaxItemQuantity = 99

var (
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 99")
	ErrItemNotInCart   = errors.New("product is not in the cart")
)

// LineItem is one product, quantity and unit price record. Carts and orders
// share the type so an order's items are a literal copy of the cart's.
type LineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// LineTotal returns UnitPrice × Quantity.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is a user's mutable selection of products. TotalAmount always equals
// the sum of the line totals; every mutator recomputes it.
type Cart struct {
	UserID      string          `json:"userId"`
	Items       []LineItem      `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// CartSnapshot is a point-in-time copy of a cart's contents.
type CartSnapshot struct {
	Items       []LineItem
	TotalAmount decimal.Decimal
}

// NewCart returns an empty cart owned by userID.
func NewCart(userID string) *Cart {
	return &Cart{
		UserID:      userID,
		Items:       []LineItem{},
		TotalAmount: decimal.Zero,
		UpdatedAt:   time.Now().UTC(),
	}
}

// AddItem adds qty units of p at its current effective price. Adding a
// product already in the cart merges into its line and re-prices it.
func (c *Cart) AddItem(p *Product, qty int) error {
	if qty < 1 || qty > MaxItemQuantity {
		return ErrInvalidQuantity
	}

	if i := c.findItem(p.ID); i >= 0 {
		merged := c.Items[i].Quantity + qty
		if merged > MaxItemQuantity {
			return ErrInvalidQuantity
		}
		c.Items[i].Quantity = merged
		c.Items[i].UnitPrice = p.EffectivePrice()
		c.Items[i].Name = p.Name
	} else {
		c.Items = append(c.Items, LineItem{
			ProductID: p.ID,
			Name:      p.Name,
			Quantity:  qty,
			UnitPrice: p.EffectivePrice(),
		})
	}

	c.touch()
	return nil
}

// RemoveItem drops the line for productID.
func (c *Cart) RemoveItem(productID string) error {
	i := c.findItem(productID)
	if i < 0 {
		return ErrItemNotInCart
	}
	c.Items = slices.Delete(c.Items, i, i+1)
	c.touch()
	return nil
}

// Snapshot copies the current items and total without mutating the cart.
func (c *Cart) Snapshot() CartSnapshot {
	return CartSnapshot{
		Items:       slices.Clone(c.Items),
		TotalAmount: c.TotalAmount,
	}
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.Items = []LineItem{}
	c.touch()
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) findItem(productID string) int {
	return slices.IndexFunc(c.Items, func(it LineItem) bool { return it.ProductID == productID })
}

func (c *Cart) touch() {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	c.TotalAmount = total
	c.UpdatedAt = time.Now().UTC()
}
