// Package storefront composes the catalog loader, the cart synchronizer and
// the viewport advancer into one session a UI host can drive.
package storefront

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/freshcart/internal/cartsync"
	"github.com/xenking/freshcart/internal/catalog"
	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/notify"
	"github.com/xenking/freshcart/internal/viewport"
)

// Categories lists the catalog categories offered for filtering.
var Categories = []string{
	"Fruit",
	"Vegetables",
	"Dairy",
	"Bakery",
	"Meat",
	"Seafood",
	"Snacks",
	"Beverages",
}

// Deps are the collaborators of a Session.
type Deps struct {
	Pages    catalog.PageFetcher
	Cart     cartsync.CartClient
	Notifier notify.Notifier
	Logger   *zap.Logger
	// PageSize is the number of products per page; 0 selects the default.
	PageSize int
	// Margin is the sentinel lookahead; nil selects viewport.DefaultMargin.
	Margin *viewport.Margin
}

// Item is a catalog product decorated with its cart state.
type Item struct {
	product.Product
	Quantity int
	// Pending is set while a cart mutation for the product is in flight.
	Pending bool
}

// CartSummary is the cart badge content.
type CartSummary struct {
	TotalPrice decimal.Decimal
	TotalItems int
	State      cartsync.State
}

// Session is the storefront state of one user.
type Session struct {
	catalog  *catalog.Loader
	cart     *cartsync.Synchronizer
	advancer *viewport.Advancer
	lg       *zap.Logger
}

// New builds a Session. All components share deps.Notifier.
func New(deps Deps) *Session {
	lg := deps.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	n := deps.Notifier
	if n == nil {
		n = notify.Nop()
	}

	loader := catalog.NewLoader(deps.Pages, n, lg.Named("catalog"), catalog.WithPageSize(deps.PageSize))

	advOpts := []viewport.Option{viewport.WithLogger(lg.Named("viewport"))}
	if deps.Margin != nil {
		advOpts = append(advOpts, viewport.WithMargin(*deps.Margin))
	}

	return &Session{
		catalog:  loader,
		cart:     cartsync.NewSynchronizer(deps.Cart, n, lg.Named("cart")),
		advancer: viewport.NewAdvancer(loader, advOpts...),
		lg:       lg,
	}
}

// Start loads the first catalog page with no filters and fetches the cart.
// The catalog page is fetched in the background; the cart fetch is waited
// for and its error returned after it has been reported to the notifier.
func (s *Session) Start(ctx context.Context) error {
	s.catalog.SetFilters(ctx, product.Filters{})
	return s.cart.Fetch(ctx)
}

// Search filters the catalog by a name substring, keeping the category.
func (s *Session) Search(ctx context.Context, query string) {
	f := s.catalog.Filters()
	f.Query = query
	s.catalog.SetFilters(ctx, f)
}

// SelectCategory filters the catalog by category. Selecting the active
// category clears the category filter.
func (s *Session) SelectCategory(ctx context.Context, category string) {
	f := s.catalog.Filters()
	if f.Category == category {
		f.Category = ""
	} else {
		f.Category = category
	}
	s.catalog.SetFilters(ctx, f)
}

// Filters returns the active filters.
func (s *Session) Filters() product.Filters {
	return s.catalog.Filters()
}

// Products returns the accumulated catalog with cart quantities.
func (s *Session) Products() []Item {
	return s.decorate(s.catalog.Flatten())
}

func (s *Session) decorate(products []product.Product) []Item {
	items := make([]Item, len(products))
	for i, p := range products {
		items[i] = Item{
			Product:  p,
			Quantity: s.cart.QuantityOf(p.ID),
			Pending:  s.cart.Pending(p.ID),
		}
	}
	return items
}

// BindSentinel observes el, conventionally the last rendered product, when
// more pages exist and the catalog has not failed. Otherwise observation
// stops. It reports whether el is observed.
func (s *Session) BindSentinel(el viewport.Element) bool {
	if !s.catalog.HasMore() || s.catalog.State().Err() != nil {
		s.advancer.Unobserve()
		return false
	}
	s.advancer.Observe(el)
	return true
}

// Scroll reports a new viewport to the advancer, which may request the next
// page. It reports whether the next page was requested.
func (s *Session) Scroll(ctx context.Context, vp viewport.Rect) bool {
	return s.advancer.Check(ctx, vp)
}

// Add puts one more unit of the product into the cart. Failures are
// reported through the notifier.
func (s *Session) Add(ctx context.Context, productID int64) {
	s.cart.Mutate(ctx, productID, 1)
}

// Remove takes one unit of the product out of the cart.
func (s *Session) Remove(ctx context.Context, productID int64) {
	s.cart.Mutate(ctx, productID, -1)
}

// CartSummary returns the server totals of the cart.
func (s *Session) CartSummary() CartSummary {
	price, items := s.cart.Totals()
	return CartSummary{
		TotalPrice: price,
		TotalItems: items,
		State:      s.cart.State(),
	}
}

// RefreshCart refetches the cart.
func (s *Session) RefreshCart(ctx context.Context) error {
	return s.cart.Fetch(ctx)
}

// Revalidate refetches every loaded catalog page.
func (s *Session) Revalidate(ctx context.Context) bool {
	return s.catalog.Revalidate(ctx)
}

// Changes returns a channel closed on the next catalog transition.
func (s *Session) Changes() <-chan struct{} {
	return s.catalog.Changes()
}

// Wait blocks until the catalog settles.
func (s *Session) Wait(ctx context.Context) error {
	return s.catalog.Wait(ctx)
}
