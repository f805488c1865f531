// Package viewport triggers pagination when a sentinel element scrolls near
// the visible area.
package viewport

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Element is a handle to a rendered element supplied by the host UI.
type Element interface {
	// Bounds returns the element rectangle in viewport coordinates, or false
	// when the element is no longer attached.
	Bounds() (Rect, bool)
}

// MoreRequester is the pagination capability driven by the Advancer.
type MoreRequester interface {
	RequestMore(ctx context.Context) bool
}

// Option configures an Advancer.
type Option func(*Advancer)

// WithMargin overrides DefaultMargin.
func WithMargin(m Margin) Option {
	return func(a *Advancer) { a.margin = m }
}

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(a *Advancer) { a.lg = lg }
}

// Advancer watches one sentinel element and asks for more data exactly once
// per crossing into the expanded viewport. After firing it stops observing;
// the host re-arms it with Observe on the new last element once the next page
// has been rendered.
type Advancer struct {
	more   MoreRequester
	margin Margin
	lg     *zap.Logger

	mu       sync.Mutex
	sentinel Element
}

// NewAdvancer creates an Advancer that is not observing anything.
func NewAdvancer(more MoreRequester, opts ...Option) *Advancer {
	a := &Advancer{
		more:   more,
		margin: DefaultMargin,
		lg:     zap.NewNop(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Observe binds el as the sentinel, replacing any previous handle.
func (a *Advancer) Observe(el Element) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sentinel = el
}

// Unobserve detaches the sentinel.
func (a *Advancer) Unobserve() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sentinel = nil
}

// Observing reports whether a sentinel is bound.
func (a *Advancer) Observing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.sentinel != nil
}

// Check evaluates the sentinel against viewport. When the attached sentinel
// intersects the viewport expanded by the margin, the Advancer unobserves it
// and then requests more data. It reports whether it fired.
func (a *Advancer) Check(ctx context.Context, viewport Rect) bool {
	a.mu.Lock()
	el := a.sentinel
	if el == nil {
		a.mu.Unlock()
		return false
	}
	bounds, attached := el.Bounds()
	if !attached || !viewport.Expand(a.margin).Intersects(bounds) {
		a.mu.Unlock()
		return false
	}
	// Stop observing before requesting so that repeated checks while the
	// element sits inside the margin cannot fire twice.
	a.sentinel = nil
	a.mu.Unlock()

	requested := a.more.RequestMore(ctx)
	a.lg.Debug("Sentinel entered viewport", zap.Bool("requested", requested))
	return true
}
