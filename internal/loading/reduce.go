package loading

// Signal is the low-level fetch signal of a request: two activity flags plus
// the data and error observed so far.
type Signal[D any] struct {
	// IsFetching is set while the first fetch (no data yet) is in flight.
	IsFetching bool
	// IsRevalidating is set while any fetch is in flight.
	IsRevalidating bool
	Data           *D
	Err            error
}

// Reduce converts a Signal into a State. Rules apply in priority order:
//
//  1. fetching and revalidating: Loading
//  2. revalidating only: Revalidating
//  3. settled with an error: Failed
//  4. settled with data: Success
//  5. anything else: Idle
//
// An in-flight request always wins over a previous error or success, since
// the final outcome is not known yet.
func Reduce[D any](sig Signal[D]) State[D] {
	switch {
	case sig.IsFetching && sig.IsRevalidating:
		return Loading(sig.Data)
	case !sig.IsFetching && sig.IsRevalidating:
		return Revalidating(sig.Data)
	case !sig.IsFetching && sig.Err != nil:
		return Failed[D](sig.Err)
	case !sig.IsFetching && sig.Data != nil:
		return Success(*sig.Data)
	default:
		return Idle[D]()
	}
}
