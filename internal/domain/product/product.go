package product

import (
	"context"
	"math"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. It is immutable
// once fetched; per-product cart quantities are derived from the cart snapshot.
type Product struct {
	ID       int64
	Name     string
	ImageURL string
	Price    decimal.Decimal
	Category string
}

// Page is one backend response unit: a bounded slice of products plus the
// continuation flag. HasMore == false terminates the page sequence.
type Page struct {
	Products []Product
	HasMore  bool
	Total    int
}

// Filters is the set of active catalog filters. Empty fields mean "no filter".
// Filters are comparable, so two epochs are the same iff their filters are ==.
type Filters struct {
	Query    string
	Category string
}

// IsZero reports whether no filter is active.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Query describes one page request against a product Repository.
type Query struct {
	Filters Filters
	Page    int
	Limit   int
}

// Offset returns the index of the first product on the page. It saturates
// at math.MaxInt instead of overflowing and treats negative values as zero.
func (q Query) Offset() int {
	if q.Page <= 0 || q.Limit <= 0 {
		return 0
	}
	if q.Page > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return q.Page * q.Limit
}

// Repository defines read operations for the product catalog.
type Repository interface {
	Search(ctx context.Context, q Query) (*Page, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
}
