package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/freshcart/internal/domain/product"
)

// ErrZeroQuantity is returned when a cart mutation carries a zero delta.
var ErrZeroQuantity = errors.New("quantity must not be zero")

// Line is one product entry in the cart.
type Line struct {
	Product  product.Product
	Quantity int
}

// Cart is the authoritative cart snapshot as computed by the backend.
// TotalPrice and TotalItems are server aggregates and are never recomputed
// by the client.
type Cart struct {
	Items      []Line
	TotalPrice decimal.Decimal
	TotalItems int
}

// Line returns the line for the given product, if any.
func (c *Cart) Line(productID int64) (Line, bool) {
	if c == nil {
		return Line{}, false
	}
	for _, l := range c.Items {
		if l.Product.ID == productID {
			return l, true
		}
	}
	return Line{}, false
}

// QuantityOf returns the quantity of the given product, or 0 when absent.
func (c *Cart) QuantityOf(productID int64) int {
	l, ok := c.Line(productID)
	if !ok {
		return 0
	}
	return l.Quantity
}

// Totals builds a Cart from lines, computing the aggregates. It is used by
// the backend stores; clients never recompute totals.
func Totals(lines []Line) *Cart {
	c := &Cart{Items: lines, TotalPrice: decimal.Zero}
	if c.Items == nil {
		c.Items = []Line{}
	}
	for _, l := range lines {
		c.TotalPrice = c.TotalPrice.Add(l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		c.TotalItems += l.Quantity
	}
	return c
}

// Repository defines persistence operations for the server-side cart.
type Repository interface {
	Get(ctx context.Context) (*Cart, error)
	// Adjust applies a relative quantity delta to the product's line and
	// returns the updated cart. Lines dropping to zero or below are removed.
	Adjust(ctx context.Context, productID int64, delta int) (*Cart, error)
}
