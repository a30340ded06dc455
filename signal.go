package creact

import "github.com/creact-labs/creact/internal/reactive"

func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

// CreateSignal creates a reactive cell and returns its read/write pair. A
// write whose value equals the current one (by == or the optional equals
// function) never schedules dependents — this is what lets a converge loop
// reach a fixed point instead of oscillating forever.
func CreateSignal[T any](initial T, equals ...func(a, b T) bool) (read func() T, write func(T)) {
	var eq func(a, b any) bool
	if len(equals) > 0 && equals[0] != nil {
		userEq := equals[0]
		eq = func(a, b any) bool { return userEq(a.(T), b.(T)) }
	}

	s := reactive.GetRuntime().NewSignal(initial, eq)

	read = func() T { return as[T](s.Read()) }
	write = func(v T) { s.Write(v) }
	return read, write
}

// CreateMemo derives a value from other signals and exposes it as a read-only
// signal with structural identity: dependents only see a new value when the
// computed result actually changes.
func CreateMemo[T any](compute func() T) func() T {
	c := reactive.GetRuntime().NewComputed(func(*reactive.Computed) any {
		return compute()
	})

	return func() T { return as[T](c.Signal.Read()) }
}
