package reactive

import "iter"

type nodeFlags int

const (
	flagNone   nodeFlags = 0
	flagInHeap nodeFlags = 1 << 0
)

// Signal is a reactive cell: a value plus the set of Computeds that read it.
// A write schedules every current subscriber for recomputation; reads made
// while a Computed is the tracked subscriber register a DependencyLink.
type Signal struct {
	value        any
	pendingValue *any // nil if no pending value

	height int
	flags  nodeFlags

	equals func(a, b any) bool

	subsHead *DependencyLink
}

func (r *Runtime) NewSignal(initial any, equals func(a, b any) bool) *Signal {
	if equals == nil {
		equals = defaultEquals
	}
	return &Signal{
		value:  initial,
		equals: equals,
	}
}

// Read returns the current value, tracking the calling computation as a
// subscriber if one is active.
func (s *Signal) Read() any {
	r := GetRuntime()

	r.tracker.Track(s)

	return s.Value()
}

// Write schedules every subscriber for recomputation, unless the new value
// is equal to the current one (the "equal-value writes never enqueue"
// invariant, which prevents livelock in the convergence loop).
func (s *Signal) Write(v any) {
	r := GetRuntime()

	if s.equals(s.Value(), v) {
		return
	}

	s.pendingValue = &v
	r.nodeQueue.Enqueue(s)

	r.scheduleSubs(s.Subs())
	r.Schedule()
}

func (s *Signal) Value() any {
	if s.pendingValue != nil {
		return *s.pendingValue
	}

	return s.value
}

// Commit applies the pending value to the signal. Called once per flush,
// after every dirtied computation has re-run against the pending value, and
// before render/user effects observe the settled value.
func (s *Signal) Commit() {
	if s.pendingValue != nil {
		s.value = *s.pendingValue
		s.pendingValue = nil
	}
}

// Subs returns an iterator over all subscribers
func (s *Signal) Subs() iter.Seq[*Computed] {
	return func(yield func(*Computed) bool) {
		link := s.subsHead
		for link != nil {
			next := link.nextSub
			if !yield(link.sub) {
				return
			}

			link = next
		}
	}
}

func (s *Signal) addSubLink(link *DependencyLink) {
	if s.subsHead == nil {
		s.subsHead = link
		link.prevSub = link // loop to self
		link.nextSub = nil
	} else {
		tail := s.subsHead.prevSub
		tail.nextSub = link
		link.prevSub = tail
		link.nextSub = nil
		s.subsHead.prevSub = link
	}
}

func (s *Signal) removeSubLink(link *DependencyLink) {
	// single node
	if link.prevSub == link {
		s.subsHead = nil
		link.prevSub = nil
		link.nextSub = nil
		return
	}

	// multiple nodes
	if link == s.subsHead {
		s.subsHead = link.nextSub
	} else {
		link.prevSub.nextSub = link.nextSub
	}

	if link.nextSub != nil {
		link.nextSub.prevSub = link.prevSub
	} else {
		s.subsHead.prevSub = link.prevSub
	}

	link.prevSub = nil
	link.nextSub = nil
}

func (s *Signal) HasFlag(f nodeFlags) bool { return s.flags&f != 0 }
func (s *Signal) AddFlag(f nodeFlags)      { s.flags |= f }
func (s *Signal) RemoveFlag(f nodeFlags)   { s.flags &^= f }
func (s *Signal) SetFlags(flags nodeFlags) { s.flags = flags }
func (s *Signal) GetHeight() int           { return s.height }

func defaultEquals(a, b any) bool { return a == b }
