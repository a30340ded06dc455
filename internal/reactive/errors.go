package reactive

import "fmt"

// StructuralError marks a fatal, pre-apply failure: one that can never be
// caught by an ErrorBoundary because it indicates the tree itself is
// malformed rather than that a component misbehaved at runtime. Cyclic
// signal dependencies are detected here in the reactive graph; duplicate
// siblings and duplicate ids are raised the same way from the render
// package. No package checks for missing required props.
type StructuralError struct {
	msg string
}

func NewStructuralError(format string, args ...any) *StructuralError {
	return &StructuralError{msg: fmt.Sprintf(format, args...)}
}

func (e *StructuralError) Error() string { return e.msg }

// propagatePanic hands a recovered panic to the nearest ancestor (starting
// at owner itself) that has a registered OnError catcher — an
// ErrorBoundary. A StructuralError always re-panics unconditionally: it
// marks the tree itself as malformed, not a component misbehaving, so no
// catcher may suppress it. With no catcher anywhere in the chain it
// re-panics past the root.
func propagatePanic(owner *Owner, rec any) {
	if _, ok := rec.(*StructuralError); ok {
		panic(rec)
	}

	for o := owner; o != nil; o = o.parent {
		if len(o.catchers) == 0 {
			continue
		}
		for _, catcher := range o.catchers {
			catcher(rec)
		}
		return
	}

	panic(rec)
}
