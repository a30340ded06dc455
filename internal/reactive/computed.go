package reactive

import "iter"

// Computed is both a Signal (it exposes its result to readers) and an Owner
// (its body may create child signals/effects/cleanups that must be disposed
// before each re-run). It backs memos, effects, and the per-fiber render
// computation in the render package.
type Computed struct {
	*Owner
	*Signal

	// fn is what the runtime invokes when this node is dirty.
	fn func()

	depsHead *DependencyLink

	compute func(*Computed) any

	// isEffect routes this node's dirtying through the effect queue instead
	// of the height-ordered heap; see Runtime.scheduleSubs.
	isEffect   bool
	effectType EffectType
}

func (r *Runtime) NewComputed(compute func(*Computed) any) *Computed {
	c := &Computed{
		Owner:   r.NewOwner(),
		Signal:  r.NewSignal(nil, defaultEquals),
		compute: compute,
	}
	c.fn = c.run

	c.OnDispose(func() {
		r.heap.Remove(c)
		c.ClearDeps()
		c.SetFlags(flagNone)
	})

	r.recompute(c)

	return c
}

func (c *Computed) run() {
	value := c.compute(c)
	c.pendingValue = &value
}

// Link registers dep as a dependency of sub, updating sub's height so the
// heap drains parents before children ("a parent computation runs before
// its descendants").
func (dep *Signal) Link(sub *Computed) {
	// dont link if already present as the most recent dependency
	if sub.depsHead != nil {
		tail := sub.depsHead.prevDep
		if tail.dep == dep {
			return
		}
	}

	link := &DependencyLink{dep: dep, sub: sub}

	sub.addDepLink(link)
	dep.addSubLink(link)

	if dep.height >= sub.height {
		sub.height = dep.height + 1
	}
}

// Deps returns an iterator over all dependencies
func (c *Computed) Deps() iter.Seq[*Signal] {
	return func(yield func(*Signal) bool) {
		link := c.depsHead
		for link != nil {
			next := link.nextDep
			if !yield(link.dep) {
				return
			}

			link = next
		}
	}
}

// ClearDeps removes all dependencies; called before every re-run so the
// dependency set is rebuilt from scratch ("a set of signal dependencies,
// rebuilt on each run").
func (c *Computed) ClearDeps() {
	for link := c.depsHead; link != nil; {
		next := link.nextDep
		link.dep.removeSubLink(link)
		link = next
	}

	c.depsHead = nil
}

// MaxDepHeight returns one more than the maximum height of the node's
// dependencies (0 if it has none): the lowest height above all of them.
func (c *Computed) MaxDepHeight() int {
	maxHeight := 0
	for dep := range c.Deps() {
		if dep.height >= maxHeight {
			maxHeight = dep.height + 1
		}
	}

	return maxHeight
}

func (c *Computed) addDepLink(link *DependencyLink) {
	if c.depsHead == nil {
		c.depsHead = link
		link.prevDep = link // loop to self
		link.nextDep = nil
	} else {
		tail := c.depsHead.prevDep
		tail.nextDep = link
		link.prevDep = tail
		link.nextDep = nil
		c.depsHead.prevDep = link
	}
}
