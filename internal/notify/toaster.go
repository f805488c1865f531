package notify

import (
	"sync"
	"time"
)

// DefaultAutoHide is how long a toast stays visible unless closed.
const DefaultAutoHide = 6 * time.Second

// CloseReason tells why a toast is being closed.
type CloseReason string

const (
	// ReasonClickaway is a click outside the toast. It never closes it.
	ReasonClickaway CloseReason = "clickaway"
	// ReasonTimeout is the auto-hide timer firing.
	ReasonTimeout CloseReason = "timeout"
	// ReasonClose is an explicit dismissal.
	ReasonClose CloseReason = "close"
)

// Toast is the single visible notification.
type Toast struct {
	Severity Severity
	Message  string
	Shown    time.Time
}

// Toaster keeps at most one visible toast. A new notification replaces the
// current one and restarts the auto-hide timer.
type Toaster struct {
	autoHide time.Duration
	now      func() time.Time
	onChange func(t *Toast)

	mu    sync.Mutex
	cur   *Toast
	timer *time.Timer
	seq   uint64
}

var _ Notifier = (*Toaster)(nil)

// ToasterOption configures a Toaster.
type ToasterOption func(*Toaster)

// WithAutoHide overrides DefaultAutoHide. Zero disables auto-hide.
func WithAutoHide(d time.Duration) ToasterOption {
	return func(t *Toaster) { t.autoHide = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ToasterOption {
	return func(t *Toaster) { t.now = now }
}

// OnChange registers a callback invoked with the visible toast (nil when
// hidden) after every change. It is called without internal locks held.
func OnChange(fn func(t *Toast)) ToasterOption {
	return func(t *Toaster) { t.onChange = fn }
}

// NewToaster returns a Toaster with no visible toast.
func NewToaster(opts ...ToasterOption) *Toaster {
	t := &Toaster{
		autoHide: DefaultAutoHide,
		now:      time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Notify shows a toast.
func (t *Toaster) Notify(severity Severity, message string) {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.seq++
	seq := t.seq
	toast := &Toast{Severity: severity, Message: message, Shown: t.now()}
	t.cur = toast
	if t.autoHide > 0 {
		t.timer = time.AfterFunc(t.autoHide, func() { t.expire(seq) })
	}
	t.mu.Unlock()

	t.changed(toast)
}

// Current returns the visible toast.
func (t *Toaster) Current() (Toast, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cur == nil {
		return Toast{}, false
	}
	return *t.cur, true
}

// Close hides the visible toast unless reason is ReasonClickaway.
// It reports whether a toast was hidden.
func (t *Toaster) Close(reason CloseReason) bool {
	if reason == ReasonClickaway {
		return false
	}

	t.mu.Lock()
	if t.cur == nil {
		t.mu.Unlock()
		return false
	}
	t.hideLocked()
	t.mu.Unlock()

	t.changed(nil)
	return true
}

// expire hides the toast shown as seq, if it is still the visible one.
func (t *Toaster) expire(seq uint64) {
	t.mu.Lock()
	if t.seq != seq || t.cur == nil {
		t.mu.Unlock()
		return
	}
	t.hideLocked()
	t.mu.Unlock()

	t.changed(nil)
}

func (t *Toaster) hideLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.cur = nil
}

func (t *Toaster) changed(toast *Toast) {
	if t.onChange != nil {
		t.onChange(toast)
	}
}
