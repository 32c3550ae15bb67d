package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestSubtotal(t *testing.T) {
	c := &Cart{
		Items: []Item{
			{MenuItemID: "a", UnitPrice: decimal.RequireFromString("12.50"), Quantity: 2},
			{MenuItemID: "b", UnitPrice: decimal.RequireFromString("3.33"), Quantity: 3},
		},
	}

	// 25.00 + 9.99
	assert.True(t, decimal.RequireFromString("34.99").Equal(c.Subtotal()))
}

func TestSubtotalEmptyCart(t *testing.T) {
	c := &Cart{}
	assert.True(t, c.Subtotal().IsZero())
}

func TestSubtotalRoundsToCents(t *testing.T) {
	c := &Cart{
		Items: []Item{
			{MenuItemID: "a", UnitPrice: decimal.RequireFromString("0.333"), Quantity: 3},
		},
	}
	assert.Equal(t, "1.00", c.Subtotal().StringFixed(2))
}
