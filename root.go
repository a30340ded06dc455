package creact

import "github.com/creact-labs/creact/internal/reactive"

// CreateRoot creates a top-level owner, runs fn with a dispose callback that
// tears down every computation, effect and child owner created inside fn,
// and returns fn's result. Disposing the root unsubscribes it from every
// signal it read; a disposed root's computations never re-run.
func CreateRoot[T any](fn func(dispose func()) T) T {
	owner := reactive.GetRuntime().NewOwner()

	var result T
	owner.Run(func() {
		result = fn(owner.Dispose)
	})

	return result
}

// ResetRuntime drops the reactive graph bound to the calling goroutine, so
// the next signal/effect/root created on it starts from a clean graph.
func ResetRuntime() {
	reactive.ResetRuntime()
}
