package storefront

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/freshcart/internal/cartsync"
	"github.com/xenking/freshcart/internal/catalog"
	"github.com/xenking/freshcart/internal/domain/cart"
	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/loading"
	"github.com/xenking/freshcart/internal/notify"
	"github.com/xenking/freshcart/internal/pagekey"
	"github.com/xenking/freshcart/internal/viewport"
)

// --- Mock implementations ---

// fakeBackend answers page and cart requests from memory.
type fakeBackend struct {
	mu       sync.Mutex
	products []product.Product
	lines    map[int64]int
	failPage bool
	failPost bool
	keys     []pagekey.Key
}

func newFakeBackend(n int) *fakeBackend {
	b := &fakeBackend{lines: make(map[int64]int)}
	for i := range n {
		category := "Fruit"
		if i%2 == 1 {
			category = "Dairy"
		}
		b.products = append(b.products, product.Product{
			ID:       int64(i + 1),
			Name:     "Product " + string(rune('A'+i%26)),
			Price:    decimal.NewFromInt(int64(i + 1)),
			Category: category,
		})
	}
	return b
}

func (b *fakeBackend) FetchPage(_ context.Context, key pagekey.Key) (*product.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	if b.failPage {
		return nil, errors.New("backend down")
	}

	var matched []product.Product
	for _, p := range b.products {
		if key.Filters.Category != "" && p.Category != key.Filters.Category {
			continue
		}
		if key.Filters.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(key.Filters.Query)) {
			continue
		}
		matched = append(matched, p)
	}
	start := min(key.Page*key.Limit, len(matched))
	end := min(start+key.Limit, len(matched))
	return &product.Page{
		Products: matched[start:end],
		HasMore:  end < len(matched),
		Total:    len(matched),
	}, nil
}

func (b *fakeBackend) GetCart(context.Context) (*cart.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cartLocked(), nil
}

func (b *fakeBackend) PostCart(_ context.Context, productID int64, quantity int) (*cart.Cart, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPost {
		return nil, errors.New("internal error")
	}
	b.lines[productID] += quantity
	if b.lines[productID] <= 0 {
		delete(b.lines, productID)
	}
	return b.cartLocked(), nil
}

func (b *fakeBackend) cartLocked() *cart.Cart {
	c := &cart.Cart{TotalPrice: decimal.Zero}
	for _, p := range b.products {
		qty, ok := b.lines[p.ID]
		if !ok {
			continue
		}
		c.Items = append(c.Items, cart.Line{Product: p, Quantity: qty})
		c.TotalPrice = c.TotalPrice.Add(p.Price.Mul(decimal.NewFromInt(int64(qty))))
		c.TotalItems += qty
	}
	return c
}

func (b *fakeBackend) requested() []pagekey.Key {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]pagekey.Key(nil), b.keys...)
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingNotifier) Notify(_ notify.Severity, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *recordingNotifier) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

type sentinel struct{ rect viewport.Rect }

func (s sentinel) Bounds() (viewport.Rect, bool) { return s.rect, true }

// --- Helpers ---

var screen = viewport.Rect{Width: 400, Height: 800}

// visible is a sentinel inside the screen.
var visible = sentinel{rect: viewport.Rect{Y: 700, Width: 100, Height: 10}}

func newTestSession(t *testing.T, b *fakeBackend) (*Session, *recordingNotifier) {
	n := &recordingNotifier{}
	s := New(Deps{
		Pages:    b,
		Cart:     b,
		Notifier: n,
		Logger:   zaptest.NewLogger(t),
	})
	return s, n
}

func settle(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

// --- Tests ---

func TestSession_ScrollThroughCatalog(t *testing.T) {
	b := newFakeBackend(25)
	s, _ := newTestSession(t, b)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	settle(t, s)
	require.Len(t, s.Products(), 10)

	for _, want := range []int{20, 25} {
		require.True(t, s.BindSentinel(visible))
		require.True(t, s.Scroll(ctx, screen))
		settle(t, s)
		require.Len(t, s.Products(), want)
	}

	// Last page reached: the sentinel is no longer observed.
	assert.False(t, s.BindSentinel(visible))
	assert.False(t, s.Scroll(ctx, screen))
	assert.Len(t, b.requested(), 3)

	v := s.View()
	assert.Equal(t, ViewList, v.Kind)
	assert.Len(t, v.Items, 25)
	assert.False(t, v.LoadingMore)
}

func TestSession_SearchAndCategory(t *testing.T) {
	b := newFakeBackend(25)
	s, _ := newTestSession(t, b)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	settle(t, s)

	s.SelectCategory(ctx, "Dairy")
	settle(t, s)
	assert.Equal(t, product.Filters{Category: "Dairy"}, s.Filters())
	for _, it := range s.Products() {
		assert.Equal(t, "Dairy", it.Category)
	}

	s.Search(ctx, "product b")
	settle(t, s)
	assert.Equal(t, product.Filters{Query: "product b", Category: "Dairy"}, s.Filters())

	// Selecting the active category clears it and keeps the query.
	s.SelectCategory(ctx, "Dairy")
	settle(t, s)
	assert.Equal(t, product.Filters{Query: "product b"}, s.Filters())

	keys := b.requested()
	last := keys[len(keys)-1]
	assert.Equal(t, "/products?limit=10&page=0&q=product+b", last.Path())
}

func TestSession_EmptyView(t *testing.T) {
	b := newFakeBackend(5)
	s, _ := newTestSession(t, b)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	settle(t, s)
	s.Search(ctx, "no such product")
	settle(t, s)

	v := s.View()
	assert.Equal(t, ViewEmpty, v.Kind)
	assert.Equal(t, notify.Info, v.Severity)
	assert.Equal(t, EmptyMessage, v.Message)
	assert.False(t, s.BindSentinel(visible))
}

func TestSession_FailedView(t *testing.T) {
	b := newFakeBackend(5)
	b.failPage = true
	s, n := newTestSession(t, b)

	require.NoError(t, s.Start(context.Background()))
	settle(t, s)

	v := s.View()
	assert.Equal(t, ViewFailed, v.Kind)
	assert.Equal(t, notify.Warning, v.Severity)
	assert.Equal(t, catalog.FailureMessage, v.Message)
	assert.Equal(t, []string{catalog.FailureMessage}, n.all())
	assert.False(t, s.BindSentinel(visible))
}

func TestSession_ViewBeforeStart(t *testing.T) {
	s, _ := newTestSession(t, newFakeBackend(1))
	assert.Equal(t, ViewLoading, s.View().Kind)
	assert.Empty(t, s.Products())
}

func TestSession_CartQuantities(t *testing.T) {
	b := newFakeBackend(25)
	s, n := newTestSession(t, b)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	settle(t, s)

	s.Add(ctx, 7)
	s.Add(ctx, 7)
	s.Add(ctx, 3)
	s.Remove(ctx, 7)

	quantities := make(map[int64]int)
	for _, it := range s.Products() {
		quantities[it.ID] = it.Quantity
		assert.False(t, it.Pending)
	}
	assert.Equal(t, 1, quantities[7])
	assert.Equal(t, 1, quantities[3])
	assert.Equal(t, 0, quantities[1])

	sum := s.CartSummary()
	assert.Equal(t, 2, sum.TotalItems)
	assert.True(t, decimal.NewFromInt(10).Equal(sum.TotalPrice))
	assert.Equal(t, loading.StatusSuccess, sum.State.Status())
	assert.Empty(t, n.all())
}

func TestSession_CartMutationFailure(t *testing.T) {
	b := newFakeBackend(25)
	s, n := newTestSession(t, b)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	settle(t, s)
	s.Add(ctx, 7)

	b.mu.Lock()
	b.failPost = true
	b.mu.Unlock()
	s.Remove(ctx, 7)

	assert.Equal(t, 1, s.CartSummary().TotalItems)
	assert.Equal(t, []string{cartsync.MutationFailureMessage}, n.all())
}

func TestCategories(t *testing.T) {
	assert.Equal(t, []string{
		"Fruit", "Vegetables", "Dairy", "Bakery",
		"Meat", "Seafood", "Snacks", "Beverages",
	}, Categories)
}
