package creact

import "github.com/creact-labs/creact/internal/reactive"

// CreateEffect schedules fn to run once immediately and again after every
// flush in which one of its tracked dependencies changed. Cleanup for the
// previous run is registered from inside fn itself via OnCleanup, not
// returned.
func CreateEffect(fn func()) {
	reactive.GetRuntime().NewEffect(reactive.EffectUser, fn)
}

// CreateRenderEffect is like CreateEffect, but drains in the render phase —
// before user effects — of each flush. The renderer uses this for the
// per-fiber computation that re-renders a component when its signal reads
// change.
func CreateRenderEffect(fn func()) {
	reactive.GetRuntime().NewEffect(reactive.EffectRender, fn)
}

// OnCleanup registers fn to run once, the next time the current owner is
// reset (about to re-run) or disposed.
func OnCleanup(fn func()) {
	reactive.GetRuntime().OnCleanup(fn)
}

// OnSettled registers fn to run once a flush has reached a fixed point:
// every chained round of effects it took to settle, not just the first.
func OnSettled(fn func()) {
	reactive.GetRuntime().OnSettled(fn)
}

// OnUserSettled registers fn to run once the current round's user-effect
// phase finishes, without waiting for any further round a user effect's own
// writes chain into.
func OnUserSettled(fn func()) {
	reactive.GetRuntime().OnUserSettled(fn)
}

// OnRenderSettled registers fn to run once the current round's render-effect
// phase finishes, before that round's user effects run.
func OnRenderSettled(fn func()) {
	reactive.GetRuntime().OnRenderSettled(fn)
}

// Batch defers the flush that writes inside fn would otherwise trigger
// until fn returns, so multiple writes settle in a single round.
func Batch(fn func()) {
	reactive.GetRuntime().NewBatch(fn)
}

// Untrack runs fn without registering any signal it reads as a dependency
// of the current computation.
func Untrack[T any](fn func() T) T {
	var result T
	reactive.GetRuntime().Untrack(func() { result = fn() })
	return result
}
