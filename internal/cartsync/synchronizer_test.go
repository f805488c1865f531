package cartsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/freshcart/internal/domain/cart"
	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/loading"
	"github.com/xenking/freshcart/internal/notify"
)

// --- Mock implementations ---

type cartResult struct {
	cart *cart.Cart
	err  error
}

type postCall struct {
	productID int64
	quantity  int
	resp      chan cartResult
}

// fakeClient blocks every call until the test answers it.
type fakeClient struct {
	gets  chan chan cartResult
	posts chan *postCall
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		gets:  make(chan chan cartResult, 16),
		posts: make(chan *postCall, 16),
	}
}

func (f *fakeClient) GetCart(ctx context.Context) (*cart.Cart, error) {
	resp := make(chan cartResult, 1)
	f.gets <- resp
	select {
	case r := <-resp:
		return r.cart, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeClient) PostCart(ctx context.Context, productID int64, quantity int) (*cart.Cart, error) {
	c := &postCall{productID: productID, quantity: quantity, resp: make(chan cartResult, 1)}
	f.posts <- c
	select {
	case r := <-c.resp:
		return r.cart, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeClient) nextGet(t *testing.T) chan cartResult {
	t.Helper()
	select {
	case c := <-f.gets:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a cart GET")
		return nil
	}
}

func (f *fakeClient) nextPost(t *testing.T) *postCall {
	t.Helper()
	select {
	case c := <-f.posts:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a cart POST")
		return nil
	}
}

type notification struct {
	severity notify.Severity
	message  string
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notification
}

func (r *recordingNotifier) Notify(severity notify.Severity, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, notification{severity: severity, message: message})
}

func (r *recordingNotifier) all() []notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification(nil), r.got...)
}

// --- Helpers ---

func cartWith(lines map[int64]int) *cart.Cart {
	c := &cart.Cart{TotalPrice: decimal.Zero}
	for id, qty := range lines {
		price := decimal.NewFromInt(id)
		c.Items = append(c.Items, cart.Line{
			Product:  product.Product{ID: id, Name: "Product", Price: price},
			Quantity: qty,
		})
		c.TotalPrice = c.TotalPrice.Add(price.Mul(decimal.NewFromInt(int64(qty))))
		c.TotalItems += qty
	}
	return c
}

func newTestSynchronizer(t *testing.T) (*Synchronizer, *fakeClient, *recordingNotifier) {
	c := newFakeClient()
	n := &recordingNotifier{}
	return NewSynchronizer(c, n, zaptest.NewLogger(t)), c, n
}

// async runs fn on a goroutine and returns a channel closed when it returns.
func async(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}

func await(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return")
	}
}

// --- Tests ---

func TestSynchronizer_FetchStates(t *testing.T) {
	s, c, _ := newTestSynchronizer(t)
	ctx := context.Background()

	assert.Equal(t, loading.StatusIdle, s.State().Status())

	done := async(func() { assert.NoError(t, s.Fetch(ctx)) })
	get := c.nextGet(t)
	assert.Equal(t, loading.StatusLoading, s.State().Status())
	get <- cartResult{cart: cartWith(map[int64]int{1: 2})}
	await(t, done)

	st := s.State()
	require.Equal(t, loading.StatusSuccess, st.Status())
	data, ok := st.Data()
	require.True(t, ok)
	assert.Equal(t, 2, data.TotalItems)

	done = async(func() { assert.NoError(t, s.Fetch(ctx)) })
	get = c.nextGet(t)
	st = s.State()
	require.Equal(t, loading.StatusRevalidating, st.Status())
	data, ok = st.Data()
	require.True(t, ok)
	assert.Equal(t, 2, data.TotalItems)
	get <- cartResult{cart: cartWith(map[int64]int{1: 3})}
	await(t, done)

	assert.Equal(t, 3, s.QuantityOf(1))
}

func TestSynchronizer_FetchFailureKeepsSnapshot(t *testing.T) {
	s, c, n := newTestSynchronizer(t)
	ctx := context.Background()

	done := async(func() { _ = s.Fetch(ctx) })
	c.nextGet(t) <- cartResult{cart: cartWith(map[int64]int{5: 1})}
	await(t, done)

	done = async(func() {
		assert.Error(t, s.Fetch(ctx))
	})
	c.nextGet(t) <- cartResult{err: errors.New("connection reset")}
	await(t, done)

	assert.Equal(t, loading.StatusFailed, s.State().Status())
	snap, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 1, snap.QuantityOf(5))
	assert.Equal(t, []notification{{severity: notify.Warning, message: FetchFailureMessage}}, n.all())
}

func TestSynchronizer_MutateReplacesSnapshot(t *testing.T) {
	s, c, n := newTestSynchronizer(t)
	ctx := context.Background()

	assert.Zero(t, s.QuantityOf(7))

	done := async(func() { s.Mutate(ctx, 7, 1) })
	post := c.nextPost(t)
	assert.Equal(t, int64(7), post.productID)
	assert.Equal(t, 1, post.quantity)
	assert.True(t, s.Pending(7))
	assert.False(t, s.Pending(8))

	post.resp <- cartResult{cart: cartWith(map[int64]int{7: 1})}
	await(t, done)

	assert.False(t, s.Pending(7))
	assert.Equal(t, 1, s.QuantityOf(7))
	assert.Equal(t, loading.StatusSuccess, s.State().Status())
	price, items := s.Totals()
	assert.True(t, decimal.NewFromInt(7).Equal(price))
	assert.Equal(t, 1, items)
	assert.Empty(t, n.all())
}

func TestSynchronizer_MutateFailureLeavesSnapshot(t *testing.T) {
	s, c, n := newTestSynchronizer(t)
	ctx := context.Background()

	done := async(func() { s.Mutate(ctx, 7, 1) })
	c.nextPost(t).resp <- cartResult{cart: cartWith(map[int64]int{7: 1})}
	await(t, done)
	before := s.State()

	done = async(func() { s.Mutate(ctx, 7, -1) })
	c.nextPost(t).resp <- cartResult{err: errors.New("internal error")}
	await(t, done)

	assert.Equal(t, 1, s.QuantityOf(7))
	assert.Equal(t, before.Status(), s.State().Status())
	assert.False(t, s.Pending(7))
	assert.Equal(t, []notification{{severity: notify.Error, message: MutationFailureMessage}}, n.all())
}

func TestSynchronizer_MutateFailureBeforeFetch(t *testing.T) {
	s, c, n := newTestSynchronizer(t)

	done := async(func() { s.Mutate(context.Background(), 3, 1) })
	c.nextPost(t).resp <- cartResult{err: errors.New("boom")}
	await(t, done)

	assert.Equal(t, loading.StatusIdle, s.State().Status())
	_, ok := s.Snapshot()
	assert.False(t, ok)
	assert.Len(t, n.all(), 1)
}

func TestSynchronizer_ZeroDeltaIgnored(t *testing.T) {
	s, c, _ := newTestSynchronizer(t)

	s.Mutate(context.Background(), 7, 0)

	select {
	case <-c.posts:
		t.Fatal("unexpected POST for zero delta")
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, s.Pending(7))
}

func TestSynchronizer_StaleFetchDiscardedAfterMutation(t *testing.T) {
	s, c, _ := newTestSynchronizer(t)
	ctx := context.Background()

	fetchDone := async(func() { assert.NoError(t, s.Fetch(ctx)) })
	get := c.nextGet(t)

	mutDone := async(func() { s.Mutate(ctx, 7, 2) })
	c.nextPost(t).resp <- cartResult{cart: cartWith(map[int64]int{7: 2})}
	await(t, mutDone)

	// The mutation response is authoritative even though a GET is pending.
	assert.Equal(t, loading.StatusSuccess, s.State().Status())

	// The GET was answered by the server before the POST landed.
	get <- cartResult{cart: cartWith(map[int64]int{})}
	await(t, fetchDone)

	assert.Equal(t, 2, s.QuantityOf(7))
	assert.Equal(t, loading.StatusSuccess, s.State().Status())
}

func TestSynchronizer_StaleFetchErrorDiscarded(t *testing.T) {
	s, c, n := newTestSynchronizer(t)
	ctx := context.Background()

	fetchDone := async(func() { _ = s.Fetch(ctx) })
	get := c.nextGet(t)

	mutDone := async(func() { s.Mutate(ctx, 1, 1) })
	c.nextPost(t).resp <- cartResult{cart: cartWith(map[int64]int{1: 1})}
	await(t, mutDone)

	get <- cartResult{err: errors.New("timeout")}
	await(t, fetchDone)

	assert.Equal(t, loading.StatusSuccess, s.State().Status())
	assert.Empty(t, n.all())
}

func TestSynchronizer_FetchAfterMutationApplies(t *testing.T) {
	s, c, _ := newTestSynchronizer(t)
	ctx := context.Background()

	mutDone := async(func() { s.Mutate(ctx, 1, 1) })
	c.nextPost(t).resp <- cartResult{cart: cartWith(map[int64]int{1: 1})}
	await(t, mutDone)

	fetchDone := async(func() { assert.NoError(t, s.Fetch(ctx)) })
	c.nextGet(t) <- cartResult{cart: cartWith(map[int64]int{1: 4})}
	await(t, fetchDone)

	assert.Equal(t, 4, s.QuantityOf(1))
}

func TestSynchronizer_LastResponseWins(t *testing.T) {
	s, c, _ := newTestSynchronizer(t)
	ctx := context.Background()

	first := async(func() { s.Mutate(ctx, 7, 1) })
	p1 := c.nextPost(t)
	second := async(func() { s.Mutate(ctx, 7, 1) })
	p2 := c.nextPost(t)

	p2.resp <- cartResult{cart: cartWith(map[int64]int{7: 2})}
	await(t, second)
	assert.True(t, s.Pending(7))

	p1.resp <- cartResult{cart: cartWith(map[int64]int{7: 1})}
	await(t, first)

	assert.False(t, s.Pending(7))
	assert.Equal(t, 1, s.QuantityOf(7))
}

func TestSynchronizer_Changes(t *testing.T) {
	s, c, _ := newTestSynchronizer(t)

	ch := s.Changes()
	done := async(func() { _ = s.Fetch(context.Background()) })

	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change notification")
	}
	c.nextGet(t) <- cartResult{cart: cartWith(nil)}
	await(t, done)
}
