package creact

import (
	"github.com/creact-labs/creact/element"
	"github.com/creact-labs/creact/internal/reactive"
)

// Show renders children while when() is true, else the optional fallback
// (or an empty fragment with neither). It is an ordinary function
// component, so it gets its own fiber and re-renders only when when()'s
// dependencies change, leaving the rest of the tree untouched.
func Show(when func() bool, children element.Element, fallback ...element.Element) element.Element {
	return element.CreateElement(func(element.Props) element.Element {
		if when() {
			return children
		}
		if len(fallback) > 0 {
			return fallback[0]
		}
		return element.CreateElement(element.Fragment, nil)
	}, element.Props{})
}

// For renders one element per item, keyed by key(item) so InstanceNode ids
// stay stable across runs even if items are reordered (spec §4.5). Each
// re-render rebuilds every item's fiber from scratch — per spec §4.2's
// lifecycle summary, fibers are recreated on every render pass regardless
// — but instance.Registry hydration still carries a matching reconcileKey's
// outputs forward, so a loop body's resources keep their identity even
// though its Go-level closures do not.
func For[T any](items func() []T, key func(T) string, render func(T) element.Element) element.Element {
	return element.CreateElement(func(element.Props) element.Element {
		list := items()
		children := make([]element.Element, len(list))
		for i, item := range list {
			el := render(item)
			el.Key = key(item)
			children[i] = el
		}
		return element.CreateElement(element.Fragment, element.Props{}, children...)
	}, element.Props{})
}

// matchBranch is the sentinel Type a Match element carries so Switch can
// recognize and unwrap it without ever handing it to the renderer: Match's
// children are plain data (a predicate plus an element) until Switch picks
// one, never a fiber of their own.
type matchBranch struct{}

var matchMarker = matchBranch{}

// Match builds one Switch branch: when Switch is asked to pick a child,
// this branch is eligible if when() is true. The returned Element is only
// ever consumed by Switch — rendering it directly is undefined.
func Match(when func() bool, children element.Element) element.Element {
	return element.Element{
		Type:  matchMarker,
		Props: element.Props{"when": when, "children": children},
	}
}

// Switch renders the first child built by Match whose predicate is true,
// or an empty fragment if none match. Non-Match children are ignored.
func Switch(children ...element.Element) element.Element {
	return element.CreateElement(func(element.Props) element.Element {
		for _, c := range children {
			if c.Type != matchMarker {
				continue
			}
			when, _ := c.Props["when"].(func() bool)
			if when == nil || !when() {
				continue
			}
			kid, _ := c.Props["children"].(element.Element)
			return kid
		}
		return element.CreateElement(element.Fragment, nil)
	}, element.Props{})
}

// ErrorBoundary catches a panic raised while rendering children — whether
// from a component body or an effect — and renders fallback in its place,
// with a reset that clears the captured error and re-renders children.
//
// errSig is created here, in ErrorBoundary's own call — which runs once, as
// part of whatever ancestor is currently rendering — rather than inside the
// returned component closure, which the renderer re-invokes every time its
// own dependencies change. That is what lets the error signal survive the
// very re-render that setErr(err) triggers.
func ErrorBoundary(children element.Element, fallback func(err any, reset func()) element.Element) element.Element {
	errSig, setErr := CreateSignal[any](nil)
	reset := func() { setErr(nil) }
	registered := false

	return element.CreateElement(func(element.Props) element.Element {
		if !registered {
			registered = true
			if owner := reactive.GetRuntime().CurrentOwner(); owner != nil {
				owner.OnError(func(err any) { setErr(err) })
			}
		}

		if err := errSig(); err != nil {
			return fallback(err, reset)
		}
		return children
	}, element.Props{})
}
