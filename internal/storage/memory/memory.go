// Package memory implements the catalog and cart repositories in memory.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/xenking/freshcart/internal/domain/cart"
	"github.com/xenking/freshcart/internal/domain/product"
)

var (
	_ product.Repository = (*Store)(nil)
	_ cart.Repository    = (*Store)(nil)
)

// Store holds a fixed catalog and a single cart.
type Store struct {
	products []product.Product
	byID     map[int64]product.Product

	mu    sync.Mutex
	lines []cart.Line
}

// New returns a Store serving products in the given order.
func New(products []product.Product) *Store {
	s := &Store{
		products: slices.Clone(products),
		byID:     make(map[int64]product.Product, len(products)),
	}
	for _, p := range products {
		s.byID[p.ID] = p
	}
	return s
}

// Search returns one page of products matching q. The query matches names
// case-insensitively by substring; the category must match exactly.
func (s *Store) Search(_ context.Context, q product.Query) (*product.Page, error) {
	needle := strings.ToLower(q.Filters.Query)
	var matched []product.Product
	for _, p := range s.products {
		if q.Filters.Category != "" && p.Category != q.Filters.Category {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		matched = append(matched, p)
	}

	start := min(q.Offset(), len(matched))
	end := start + min(max(q.Limit, 0), len(matched)-start)
	return &product.Page{
		Products: slices.Clone(matched[start:end]),
		HasMore:  end < len(matched),
		Total:    len(matched),
	}, nil
}

// GetByID returns a single product.
func (s *Store) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := s.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// Get returns the cart.
func (s *Store) Get(context.Context) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshotLocked(), nil
}

// Adjust applies delta to the product's line. Lines are kept in the order
// products were first added.
func (s *Store) Adjust(_ context.Context, productID int64, delta int) (*cart.Cart, error) {
	if delta == 0 {
		return nil, cart.ErrZeroQuantity
	}
	p, ok := s.byID[productID]
	if !ok {
		return nil, product.ErrNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.lines, func(l cart.Line) bool { return l.Product.ID == productID })
	switch {
	case i < 0 && delta > 0:
		s.lines = append(s.lines, cart.Line{Product: p, Quantity: delta})
	case i < 0:
		// Removing a product that is not in the cart leaves it unchanged.
	case s.lines[i].Quantity+delta <= 0:
		s.lines = slices.Delete(s.lines, i, i+1)
	default:
		s.lines[i].Quantity += delta
	}
	return s.snapshotLocked(), nil
}

func (s *Store) snapshotLocked() *cart.Cart {
	return cart.Totals(slices.Clone(s.lines))
}
