package reactive

import (
	"iter"
	"sync"

	"github.com/petermattis/goid"
)

var runtimes sync.Map

// GetRuntime returns the Runtime confined to the calling goroutine,
// creating one on first use. The graph is single-writer per run: a signal
// read or write always operates against the runtime of the goroutine that
// issued it, never another goroutine's in-flight graph.
func GetRuntime() *Runtime {
	gid := goid.Get()

	if r, ok := runtimes.Load(gid); ok {
		return r.(*Runtime)
	}

	r := NewRuntime()
	runtimes.Store(gid, r)
	return r
}

// ResetRuntime drops the runtime bound to the calling goroutine, so the
// next GetRuntime call starts from a clean graph. Used between independent
// convergence runs and in tests.
func ResetRuntime() {
	runtimes.Delete(goid.Get())
}

func getGID() int64 {
	return goid.Get()
}

// Runtime is the root of one goroutine's reactive graph: the height-ordered
// heap of dirty Computeds, the tracker slot that records which Computed is
// currently running, the batcher that defers flushing, the scheduler that
// drives rounds to a fixed point, and the two queues (pending signal
// commits, dirty effects) a single flush round drains in order.
type Runtime struct {
	heap        *PriorityHeap
	tracker     *Tracker
	batcher     *Batcher
	scheduler   *Scheduler
	nodeQueue   *NodeQueue
	effectQueue *EffectQueue

	// one-shot hooks fired as the corresponding phase settles; see
	// OnSettled/OnUserSettled/OnRenderSettled.
	renderSettled []func()
	userSettled   []func()
	settled       []func()
}

func NewRuntime() *Runtime {
	return &Runtime{
		heap:        NewHeap(),
		tracker:     NewTracker(),
		batcher:     NewBatcher(),
		scheduler:   NewScheduler(),
		nodeQueue:   NewNodeQueue(),
		effectQueue: NewEffectQueue(),
	}
}

// OnRenderSettled registers a one-shot callback fired immediately after the
// next round's render-effect phase finishes, before that round's user
// effects run.
func (r *Runtime) OnRenderSettled(fn func()) {
	r.renderSettled = append(r.renderSettled, fn)
}

// OnUserSettled registers a one-shot callback fired immediately after the
// next round's user-effect phase finishes, without waiting for any further
// round a user effect's own writes might chain into.
func (r *Runtime) OnUserSettled(fn func()) {
	r.userSettled = append(r.userSettled, fn)
}

// OnSettled registers a one-shot callback fired once the whole flush — every
// chained round it took to reach a fixed point — has finished.
func (r *Runtime) OnSettled(fn func()) {
	r.settled = append(r.settled, fn)
}

func drainCallbacks(hooks *[]func()) {
	pending := *hooks
	*hooks = nil

	for _, fn := range pending {
		fn()
	}
}

// Schedule marks a flush as pending and runs it immediately unless a Batch
// is currently open, in which case the flush happens once the outermost
// Batch call returns.
func (r *Runtime) Schedule() {
	r.scheduler.Schedule()

	if !r.batcher.IsBatching() {
		r.Flush()
	}
}

// Flush drains pending rounds to a fixed point: each round walks the heap
// parent-before-child, commits the settled signal values, then runs render
// effects before user effects so user effects always observe committed
// state rather than a mid-round pending value.
func (r *Runtime) Flush() {
	r.scheduler.Run(func() {
		r.heap.Drain(r.recompute)

		r.nodeQueue.Commit()

		r.effectQueue.RunEffects(r, EffectRender)
		drainCallbacks(&r.renderSettled)

		r.effectQueue.RunEffects(r, EffectUser)
		drainCallbacks(&r.userSettled)
	})

	if !r.scheduler.IsRunning() {
		drainCallbacks(&r.settled)
	}
}

func (r *Runtime) CurrentOwner() *Owner {
	return r.tracker.CurrentOwner()
}

func (r *Runtime) CurrentComputation() *Computed {
	return r.tracker.CurrentComputation()
}

// Untrack runs fn with tracking suspended: signal reads inside fn do not
// register the current computation as a subscriber.
func (r *Runtime) Untrack(fn func()) {
	r.tracker.RunUntracked(fn)
}

func (r *Runtime) OnCleanup(fn func()) {
	owner := r.CurrentOwner()
	if owner != nil {
		owner.OnCleanup(fn)
	}
}

// recompute resets node's owner (disposing whatever it created last run and
// running its run-scoped cleanups), clears its old dependency set, and
// re-runs its body under tracking. A settled value equal to the previous
// one (per the node's equals) stops propagation here, same as a Signal
// write of an equal value — this is what keeps the convergence loop from
// spinning once every downstream signal has stabilized.
func (r *Runtime) recompute(node *Computed) {
	if node.fn == nil || node.disposed {
		return
	}

	node.Owner.Reset()
	node.ClearDeps()

	r.tracker.RunWithComputation(node, node.fn)

	if node.pendingValue == nil {
		return
	}

	if node.equals(node.value, *node.pendingValue) {
		node.pendingValue = nil
		return
	}

	r.nodeQueue.Enqueue(node.Signal)
	r.scheduleSubs(node.Subs())
}

// scheduleSubs routes each subscriber to the structure that will drain it:
// the height-ordered heap for plain Computeds, the effect queue for
// Effects, keyed by their phase.
func (r *Runtime) scheduleSubs(subs iter.Seq[*Computed]) {
	for sub := range subs {
		if sub.isEffect {
			r.effectQueue.MarkDirty(sub.effectType, sub)
		} else {
			r.heap.Insert(sub)
		}
	}
}
