// Package catalog accumulates paged product listings into one ordered list.
//
// Pages are stored in an arena indexed by page number, so the flattened list
// follows page order no matter in which order the network resolves requests.
// Every request is tagged with the filter epoch it was dispatched under and
// results from an older epoch are dropped on arrival.
package catalog

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/freshcart/internal/domain/product"
	"github.com/xenking/freshcart/internal/loading"
	"github.com/xenking/freshcart/internal/notify"
	"github.com/xenking/freshcart/internal/pagekey"
)

// FailureMessage is sent to the notifier when a page fetch fails.
const FailureMessage = "Something went wrong. Please try again later."

// PageFetcher fetches one catalog page.
type PageFetcher interface {
	FetchPage(ctx context.Context, key pagekey.Key) (*product.Page, error)
}

// State is the loading state of the catalog: the resolved pages in order.
type State = loading.State[[]product.Page]

// Option configures a Loader.
type Option func(*Loader)

// WithPageSize sets the number of products per page.
func WithPageSize(n int) Option {
	return func(l *Loader) { l.seq = pagekey.New(n) }
}

// Loader is the infinite catalog loader. It is safe for concurrent use.
type Loader struct {
	fetcher  PageFetcher
	notifier notify.Notifier
	lg       *zap.Logger
	seq      pagekey.Sequencer

	mu      sync.Mutex
	started bool
	filters product.Filters
	// epoch changes with every filter change; gen additionally changes with
	// every revalidation round.
	epoch uint64
	gen   uint64
	size  int
	// pages is the arena; a nil slot is not resolved yet (pending or failed).
	pages        []*product.Page
	inflight     map[int]struct{}
	revalidating bool
	// notifying counts failures whose notification has not been sent yet.
	notifying int
	err       error
	// settled is the data of the last Success in this epoch.
	settled    []product.Page
	hasSettled bool
	changed    chan struct{}
}

// NewLoader creates a Loader. Nothing is fetched until SetFilters is called.
func NewLoader(fetcher PageFetcher, notifier notify.Notifier, lg *zap.Logger, opts ...Option) *Loader {
	if notifier == nil {
		notifier = notify.Nop()
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	l := &Loader{
		fetcher:  fetcher,
		notifier: notifier,
		lg:       lg,
		seq:      pagekey.New(pagekey.DefaultPageSize),
		inflight: make(map[int]struct{}),
		changed:  make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// SetFilters starts a new epoch: accumulated pages are dropped, the page count
// is reset to one and page 0 is fetched under f. Results of requests from the
// previous epoch are ignored when they arrive.
//
// Setting the current filters again is a no-op unless the first page failed,
// in which case it is retried.
func (l *Loader) SetFilters(ctx context.Context, f product.Filters) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.started && f == l.filters && (l.busyLocked() || l.pages[0] != nil) {
		return
	}

	l.started = true
	l.filters = f
	l.epoch++
	l.gen++
	l.size = 1
	l.pages = make([]*product.Page, 1)
	l.inflight = make(map[int]struct{})
	l.revalidating = false
	l.err = nil
	l.settled = nil
	l.hasSettled = false

	key, _ := l.seq.KeyFor(0, nil, f)
	l.lg.Debug("Starting catalog epoch",
		zap.Uint64("epoch", l.epoch),
		zap.String("query", f.Query),
		zap.String("category", f.Category),
	)
	l.dispatchLocked(ctx, 0, key)
}

// RequestMore asks for the next page. It returns false without doing anything
// when the last page has been reached, a fetch for the next page is already
// in flight, or SetFilters was never called. If the last requested page
// failed, it is requested again instead of advancing.
func (l *Loader) RequestMore(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started || l.revalidating {
		return false
	}

	last := l.size - 1
	if _, ok := l.inflight[last]; ok {
		return false
	}

	prevPage := l.pages[last]
	if prevPage == nil {
		// Retry of a failed page.
		var prev *product.Page
		if last > 0 {
			prev = l.pages[last-1]
		}
		key, ok := l.seq.KeyFor(last, prev, l.filters)
		if !ok {
			return false
		}
		l.dispatchLocked(ctx, last, key)
		return true
	}

	key, ok := l.seq.KeyFor(l.size, prevPage, l.filters)
	if !ok {
		return false
	}
	l.size++
	l.pages = append(l.pages, nil)
	l.dispatchLocked(ctx, l.size-1, key)
	return true
}

// Revalidate refetches every resolved page concurrently while serving the
// previous list. The new pages replace the old ones only once all of them
// resolved; a page that now reports no more pages truncates the ones after
// it. It returns false when there is nothing to revalidate or a fetch is
// already in flight.
func (l *Loader) Revalidate(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started || l.busyLocked() {
		return false
	}
	resolved := l.prefixLocked()
	if len(resolved) == 0 {
		return false
	}

	keys := make([]pagekey.Key, len(resolved))
	for i := range resolved {
		var prev *product.Page
		if i > 0 {
			prev = &resolved[i-1]
		}
		keys[i], _ = l.seq.KeyFor(i, prev, l.filters)
	}

	l.gen++
	l.revalidating = true
	l.broadcastLocked()

	go l.revalidate(ctx, l.epoch, l.gen, keys)
	return true
}

func (l *Loader) revalidate(ctx context.Context, epoch, gen uint64, keys []pagekey.Key) {
	fresh := make([]*product.Page, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		g.Go(func() error {
			p, err := l.fetcher.FetchPage(gctx, key)
			if err != nil {
				return errors.Wrapf(err, "revalidate page %d", i)
			}
			fresh[i] = p
			return nil
		})
	}
	err := g.Wait()

	l.mu.Lock()
	if l.epoch != epoch || l.gen != gen {
		l.mu.Unlock()
		l.lg.Debug("Discarding stale revalidation", zap.Uint64("epoch", epoch))
		return
	}
	l.revalidating = false
	if err != nil {
		l.err = err
		l.notifying++
	} else {
		for i, p := range fresh {
			if !p.HasMore {
				fresh = fresh[:i+1]
				break
			}
		}
		l.pages = fresh
		l.size = len(fresh)
		l.err = nil
	}
	l.settleLocked()
	l.broadcastLocked()
	l.mu.Unlock()

	if err != nil {
		l.fail(err)
	}
}

func (l *Loader) dispatchLocked(ctx context.Context, index int, key pagekey.Key) {
	l.inflight[index] = struct{}{}
	l.broadcastLocked()
	go l.fetch(ctx, l.epoch, index, key)
}

func (l *Loader) fetch(ctx context.Context, epoch uint64, index int, key pagekey.Key) {
	l.lg.Debug("Fetching page", zap.Stringer("key", key))
	p, err := l.fetcher.FetchPage(ctx, key)

	l.mu.Lock()
	if l.epoch != epoch {
		l.mu.Unlock()
		l.lg.Debug("Discarding stale page", zap.Stringer("key", key), zap.Uint64("epoch", epoch))
		return
	}
	delete(l.inflight, index)
	if err != nil {
		l.err = errors.Wrapf(err, "fetch page %d", index)
		l.notifying++
		err = l.err
	} else {
		l.pages[index] = p
		l.err = nil
	}
	l.settleLocked()
	l.broadcastLocked()
	l.mu.Unlock()

	if err != nil {
		l.fail(err)
	}
}

// fail reports err to the notifier outside the lock, then releases waiters.
func (l *Loader) fail(err error) {
	l.lg.Warn("Catalog fetch failed", zap.Error(err))
	l.notifier.Notify(notify.Warning, FailureMessage)

	l.mu.Lock()
	l.notifying--
	l.broadcastLocked()
	l.mu.Unlock()
}

// settleLocked snapshots the resolved pages when the loader just settled
// successfully; that snapshot is what Loading and Revalidating carry.
func (l *Loader) settleLocked() {
	if l.busyLocked() || l.err != nil || l.pages[0] == nil {
		return
	}
	l.settled = l.prefixLocked()
	l.hasSettled = true
}

func (l *Loader) broadcastLocked() {
	close(l.changed)
	l.changed = make(chan struct{})
}

func (l *Loader) busyLocked() bool {
	return len(l.inflight) > 0 || l.revalidating
}

// prefixLocked returns the contiguous run of resolved pages starting at 0.
func (l *Loader) prefixLocked() []product.Page {
	out := make([]product.Page, 0, len(l.pages))
	for _, p := range l.pages {
		if p == nil {
			break
		}
		out = append(out, *p)
	}
	return out
}

func (l *Loader) stateLocked() State {
	busy := l.busyLocked()
	sig := loading.Signal[[]product.Page]{
		IsFetching:     busy && !l.hasSettled,
		IsRevalidating: busy,
		Err:            l.err,
	}
	switch {
	case busy && l.hasSettled:
		data := l.settled
		sig.Data = &data
	case !busy && l.started && l.pages[0] != nil:
		data := l.prefixLocked()
		sig.Data = &data
	}
	return loading.Reduce(sig)
}

// State returns the current loading state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.stateLocked()
}

// Flatten returns the products of all resolved pages in page order. While a
// fetch is in flight it returns the list as of the last successful settle.
func (l *Loader) Flatten() []product.Product {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return nil
	}
	pages := l.settled
	if !l.busyLocked() {
		pages = l.prefixLocked()
	}

	n := 0
	for _, p := range pages {
		n += len(p.Products)
	}
	out := make([]product.Product, 0, n)
	for _, p := range pages {
		out = append(out, p.Products...)
	}
	return out
}

// IsEmpty reports whether the first page of the current epoch resolved and
// the backend reported no products at all.
func (l *Loader) IsEmpty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.started && l.pages[0] != nil && l.pages[0].Total == 0
}

// IsLoadingMore reports whether the last requested page is being fetched.
func (l *Loader) IsLoadingMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return false
	}
	_, ok := l.inflight[l.size-1]
	return ok
}

// HasMore reports whether the last requested page resolved and announced
// more pages.
func (l *Loader) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.started {
		return false
	}
	last := l.pages[l.size-1]
	return last != nil && last.HasMore
}

// Size returns the number of requested pages.
func (l *Loader) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.size
}

// Filters returns the filters of the current epoch.
func (l *Loader) Filters() product.Filters {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.filters
}

// Changes returns a channel closed on the next state transition.
func (l *Loader) Changes() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.changed
}

// Wait blocks until no fetch is in flight and every failure has been
// reported, or ctx is done.
func (l *Loader) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		busy := l.busyLocked() || l.notifying > 0
		ch := l.changed
		l.mu.Unlock()

		if !busy {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
