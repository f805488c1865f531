// Package loading models the lifecycle of a remote request as a tagged
// variant with exactly five states.
//
// A State is built only through its constructors and inspected through
// Match, so callers never branch on loose boolean combinations.
package loading

// Status identifies the active variant of a State.
type Status uint8

const (
	// StatusIdle means no request has been issued yet.
	StatusIdle Status = iota
	// StatusLoading means the first fetch is in flight.
	StatusLoading
	// StatusRevalidating means a refetch is in flight and previous data is retained.
	StatusRevalidating
	// StatusSuccess means the last request settled with data.
	StatusSuccess
	// StatusFailed means the last request settled with an error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusRevalidating:
		return "revalidating"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the loading state of a request producing D.
//
// Loading and Revalidating may carry the previous successful data; Success
// always carries data; Failed always carries an error.
type State[D any] struct {
	status  Status
	data    D
	hasData bool
	err     error
}

// Idle returns the Idle state.
func Idle[D any]() State[D] {
	return State[D]{status: StatusIdle}
}

// Loading returns the Loading state. prev is the previous successful data,
// nil when there is none.
func Loading[D any](prev *D) State[D] {
	s := State[D]{status: StatusLoading}
	if prev != nil {
		s.data, s.hasData = *prev, true
	}
	return s
}

// Revalidating returns the Revalidating state. prev is the previous
// successful data, nil when there is none.
func Revalidating[D any](prev *D) State[D] {
	s := State[D]{status: StatusRevalidating}
	if prev != nil {
		s.data, s.hasData = *prev, true
	}
	return s
}

// Success returns the Success state holding data.
func Success[D any](data D) State[D] {
	return State[D]{status: StatusSuccess, data: data, hasData: true}
}

// Failed returns the Failed state holding err.
func Failed[D any](err error) State[D] {
	return State[D]{status: StatusFailed, err: err}
}

// Status returns the active variant.
func (s State[D]) Status() Status { return s.status }

// Data returns the carried data, if any.
func (s State[D]) Data() (D, bool) { return s.data, s.hasData }

// Err returns the error of a Failed state, nil otherwise.
func (s State[D]) Err() error { return s.err }

// InFlight reports whether a request is pending (Loading or Revalidating).
func (s State[D]) InFlight() bool {
	return s.status == StatusLoading || s.status == StatusRevalidating
}

func (s State[D]) String() string { return s.status.String() }

// Cases holds one callback per variant. All callbacks must be set.
type Cases[D, R any] struct {
	Idle         func() R
	Loading      func(prev *D) R
	Revalidating func(prev *D) R
	Success      func(data D) R
	Failed       func(err error) R
}

// Match dispatches s to the callback of its variant.
func Match[D, R any](s State[D], c Cases[D, R]) R {
	var prev *D
	if s.hasData {
		d := s.data
		prev = &d
	}
	switch s.status {
	case StatusLoading:
		return c.Loading(prev)
	case StatusRevalidating:
		return c.Revalidating(prev)
	case StatusSuccess:
		return c.Success(s.data)
	case StatusFailed:
		return c.Failed(s.err)
	default:
		return c.Idle()
	}
}
