package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func product(id, name, price string) *Product {
	return &Product{ID: id, Name: name, Price: decimal.RequireFromString(price)}
}

func TestCart_AddItem_RecomputesTotal(t *testing.T) {
	c := NewCart("user-1")

	require.NoError(t, c.AddItem(product("p1", "Mug", "12.50"), 2))
	require.NoError(t, c.AddItem(product("p2", "Lamp", "25.00"), 1))

	require.Len(t, c.Items, 2)
	assert.True(t, c.TotalAmount.Equal(decimal.RequireFromString("50.00")), "total = %s", c.TotalAmount)
}

func TestCart_AddItem_MergesSameProduct(t *testing.T) {
	c := NewCart("user-1")
	require.NoError(t, c.AddItem(product("p1", "Mug", "10"), 1))
	require.NoError(t, c.AddItem(product("p1", "Mug", "8"), 2))

	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.True(t, c.Items[0].UnitPrice.Equal(decimal.NewFromInt(8)))
	assert.True(t, c.TotalAmount.Equal(decimal.NewFromInt(24)))
}

func TestCart_AddItem_UsesSalePrice(t *testing.T) {
	p := product("p1", "Mug", "10")
	p.SalePrice = decimal.NewNullDecimal(decimal.RequireFromString("7.25"))

	c := NewCart("user-1")
	require.NoError(t, c.AddItem(p, 2))

	assert.True(t, c.TotalAmount.Equal(decimal.RequireFromString("14.50")))
}

func TestCart_AddItem_InvalidQuantity(t *testing.T) {
	c := NewCart("user-1")

	assert.ErrorIs(t, c.AddItem(product("p1", "Mug", "1"), 0), ErrInvalidQuantity)
	assert.ErrorIs(t, c.AddItem(product("p1", "Mug", "1"), MaxItemQuantity+1), ErrInvalidQuantity)

	require.NoError(t, c.AddItem(product("p1", "Mug", "1"), MaxItemQuantity))
	assert.ErrorIs(t, c.AddItem(product("p1", "Mug", "1"), 1), ErrInvalidQuantity)
	assert.Equal(t, MaxItemQuantity, c.Items[0].Quantity)
}

func TestCart_RemoveItem(t *testing.T) {
	c := NewCart("user-1")
	require.NoError(t, c.AddItem(product("p1", "Mug", "10"), 1))
	require.NoError(t, c.AddItem(product("p2", "Lamp", "5"), 1))

	require.NoError(t, c.RemoveItem("p1"))
	assert.Len(t, c.Items, 1)
	assert.True(t, c.TotalAmount.Equal(decimal.NewFromInt(5)))

	assert.ErrorIs(t, c.RemoveItem("missing"), ErrItemNotInCart)
}

func TestCart_SnapshotIsIndependentCopy(t *testing.T) {
	c := NewCart("user-1")
	require.NoError(t, c.AddItem(product("p1", "Mug", "10"), 1))

	snap := c.Snapshot()
	c.Items[0].Quantity = 5
	c.Clear()

	require.Len(t, snap.Items, 1)
	assert.Equal(t, 1, snap.Items[0].Quantity)
	assert.True(t, snap.TotalAmount.Equal(decimal.NewFromInt(10)))
}

func TestCart_Clear(t *testing.T) {
	c := NewCart("user-1")
	require.NoError(t, c.AddItem(product("p1", "Mug", "10"), 3))

	c.Clear()

	assert.True(t, c.IsEmpty())
	assert.NotNil(t, c.Items)
	assert.True(t, c.TotalAmount.IsZero())
}

func TestNewOrder_CopiesSnapshot(t *testing.T) {
	c := NewCart("user-1")
	require.NoError(t, c.AddItem(product("p1", "Mug", "12.50"), 2))
	require.NoError(t, c.AddItem(product("p2", "Lamp", "25"), 1))
	snap := c.Snapshot()

	o, err := NewOrder("order-1", "user-1", "221B Baker St", snap)
	require.NoError(t, err)

	c.Clear()

	assert.Equal(t, OrderStatusPending, o.Status)
	assert.Empty(t, cmp.Diff(snap.Items, o.Items, decimalEqual))
	assert.True(t, o.TotalAmount.Equal(snap.TotalAmount))
	assert.Equal(t, "221B Baker St", o.ShippingAddress)
}

func TestNewOrder_EmptySnapshot(t *testing.T) {
	_, err := NewOrder("order-1", "user-1", "addr", CartSnapshot{})
	assert.ErrorIs(t, err, ErrEmptyOrder)
}
