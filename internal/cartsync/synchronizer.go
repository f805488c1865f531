// Package cartsync keeps a local copy of the server cart in sync.
//
// Mutations are never applied optimistically: the local snapshot only ever
// holds what the backend returned.
package cartsync

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/freshcart/internal/domain/cart"
	"github.com/xenking/freshcart/internal/loading"
	"github.com/xenking/freshcart/internal/notify"
)

// Messages sent to the notifier.
const (
	FetchFailureMessage    = "Something went wrong. Please try again later."
	MutationFailureMessage = "An error occurred, please try again later."
)

// CartClient is the backend cart API.
type CartClient interface {
	GetCart(ctx context.Context) (*cart.Cart, error)
	// PostCart applies quantity as a relative delta to the product's line.
	PostCart(ctx context.Context, productID int64, quantity int) (*cart.Cart, error)
}

// State is the loading state of the cart.
type State = loading.State[cart.Cart]

// Synchronizer owns the cart snapshot. It is safe for concurrent use.
type Synchronizer struct {
	client   CartClient
	notifier notify.Notifier
	lg       *zap.Logger

	mu       sync.Mutex
	snapshot *cart.Cart
	err      error
	// mutations counts successful mutations. GETs are tagged with its value
	// at dispatch; fetching counts in-flight GETs per tag.
	mutations uint64
	fetching  map[uint64]int
	pending   map[int64]int
	changed   chan struct{}
}

// NewSynchronizer creates a Synchronizer with no snapshot.
func NewSynchronizer(client CartClient, notifier notify.Notifier, lg *zap.Logger) *Synchronizer {
	if notifier == nil {
		notifier = notify.Nop()
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Synchronizer{
		client:   client,
		notifier: notifier,
		lg:       lg,
		fetching: make(map[uint64]int),
		pending:  make(map[int64]int),
		changed:  make(chan struct{}),
	}
}

// Fetch loads the cart from the backend. The state is Loading while no
// snapshot exists and Revalidating otherwise. A failure moves the state to
// Failed, keeps the snapshot and notifies the user.
//
// A response is dropped when a mutation completed after the request was
// sent, since the mutation response is newer.
func (s *Synchronizer) Fetch(ctx context.Context) error {
	s.mu.Lock()
	tag := s.mutations
	s.fetching[tag]++
	s.broadcastLocked()
	s.mu.Unlock()

	c, err := s.client.GetCart(ctx)

	s.mu.Lock()
	if s.fetching[tag]--; s.fetching[tag] == 0 {
		delete(s.fetching, tag)
	}
	if tag != s.mutations {
		s.broadcastLocked()
		s.mu.Unlock()
		s.lg.Debug("Discarding cart superseded by mutation")
		return nil
	}
	if err != nil {
		s.err = errors.Wrap(err, "fetch cart")
		err = s.err
	} else {
		s.snapshot = c
		s.err = nil
	}
	s.broadcastLocked()
	s.mu.Unlock()

	if err != nil {
		s.lg.Warn("Cart fetch failed", zap.Error(err))
		s.notifier.Notify(notify.Warning, FetchFailureMessage)
		return err
	}
	return nil
}

// Mutate changes the quantity of a product by delta and, on success,
// replaces the snapshot with the backend response. On failure the snapshot
// and state stay as they were and the user is notified once; the error is
// not returned.
//
// Concurrent mutations of the same product are not serialized: the last
// response to arrive wins.
func (s *Synchronizer) Mutate(ctx context.Context, productID int64, delta int) {
	if delta == 0 {
		return
	}

	s.mu.Lock()
	s.pending[productID]++
	s.broadcastLocked()
	s.mu.Unlock()

	lg := s.lg.With(zap.Int64("product_id", productID), zap.Int("delta", delta))
	lg.Debug("Mutating cart")
	c, err := s.client.PostCart(ctx, productID, delta)

	s.mu.Lock()
	if s.pending[productID]--; s.pending[productID] == 0 {
		delete(s.pending, productID)
	}
	if err == nil {
		s.snapshot = c
		s.err = nil
		s.mutations++
	}
	s.broadcastLocked()
	s.mu.Unlock()

	if err != nil {
		lg.Warn("Cart mutation failed", zap.Error(err))
		s.notifier.Notify(notify.Error, MutationFailureMessage)
	}
}

func (s *Synchronizer) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// State returns the current loading state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.fetching[s.mutations] > 0
	return loading.Reduce(loading.Signal[cart.Cart]{
		IsFetching:     active && s.snapshot == nil,
		IsRevalidating: active,
		Data:           s.snapshot,
		Err:            s.err,
	})
}

// Snapshot returns the last cart received from the backend.
func (s *Synchronizer) Snapshot() (cart.Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot == nil {
		return cart.Cart{}, false
	}
	return *s.snapshot, true
}

// QuantityOf returns the snapshot quantity of the product; 0 when the cart
// was never fetched or has no such line.
func (s *Synchronizer) QuantityOf(productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot.QuantityOf(productID)
}

// Pending reports whether a mutation for the product is in flight.
func (s *Synchronizer) Pending(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending[productID] > 0
}

// Totals returns the server-computed total price and item count.
func (s *Synchronizer) Totals() (decimal.Decimal, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot == nil {
		return decimal.Zero, 0
	}
	return s.snapshot.TotalPrice, s.snapshot.TotalItems
}

// Changes returns a channel closed on the next state transition.
func (s *Synchronizer) Changes() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.changed
}
