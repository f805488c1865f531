// Package pagekey derives the request key of each catalog page.
package pagekey

import (
	"net/url"
	"strconv"

	"github.com/xenking/freshcart/internal/domain/product"
)

// DefaultPageSize is the number of products requested per page.
const DefaultPageSize = 10

// Key identifies one page request. Two keys built from the same filters,
// page size and index are equal and have the same Path.
type Key struct {
	Filters product.Filters
	Page    int
	Limit   int
}

// Path returns the request path, e.g. "/products?category=Fruit&limit=10&page=0".
// Parameters are sorted by name; empty query and category are omitted.
func (k Key) Path() string {
	v := url.Values{}
	if k.Filters.Query != "" {
		v.Set("q", k.Filters.Query)
	}
	if k.Filters.Category != "" {
		v.Set("category", k.Filters.Category)
	}
	v.Set("limit", strconv.Itoa(k.Limit))
	v.Set("page", strconv.Itoa(k.Page))
	return "/products?" + v.Encode()
}

func (k Key) String() string { return k.Path() }

// Sequencer produces page keys for a fixed page size.
type Sequencer struct {
	PageSize int
}

// New returns a Sequencer. A non-positive size selects DefaultPageSize.
func New(pageSize int) Sequencer {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Sequencer{PageSize: pageSize}
}

// KeyFor returns the key of page pageIndex given the previous page (nil for
// the first page). It returns false once prev reports no more pages.
func (s Sequencer) KeyFor(pageIndex int, prev *product.Page, f product.Filters) (Key, bool) {
	if prev != nil && !prev.HasMore {
		return Key{}, false
	}
	limit := s.PageSize
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return Key{Filters: f, Page: pageIndex, Limit: limit}, true
}
