package reactive

// DependencyLink is a bidirectional edge between a Signal (dependency) and a
// Computed (subscriber). Signals keep a doubly-linked, circular list of the
// links where they are the dependency; Computeds keep the same structure for
// the links where they are the subscriber, so both insertion and removal are
// O(1) without allocating a slice per node.
type DependencyLink struct {
	dep *Signal
	sub *Computed

	prevDep *DependencyLink
	nextDep *DependencyLink

	prevSub *DependencyLink
	nextSub *DependencyLink
}
