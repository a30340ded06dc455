// Package instance holds the canonical set of live InstanceNodes for one
// render pass: stable identity, output signals, and the hydration handshake
// that carries a node's outputs forward across runs.
package instance

import (
	"sort"

	"github.com/creact-labs/creact/internal/reactive"
)

// undefinedType is the sentinel a prop or output holds when its value is not
// known yet — distinct from Go's nil so a component can legitimately pass a
// nil prop without it being mistaken for "not ready".
type undefinedType struct{}

// Undefined marks a prop whose value depends on an output that has not been
// applied yet, or an output that has never been set.
var Undefined any = undefinedType{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefinedType)
	return ok
}

// HasUndefinedProp reports whether any value in props is Undefined —
// render.UseInstance checks this before registering a node.
func HasUndefinedProp(props map[string]any) bool {
	for _, v := range props {
		if IsUndefined(v) {
			return true
		}
	}
	return false
}

// Accessors is what a component gets back from useInstance: a way to read a
// node's outputs by name without caring whether the node is real yet.
type Accessors interface {
	Output(name string) any
}

type placeholderAccessors struct{}

func (placeholderAccessors) Output(string) any { return Undefined }

// Placeholder is returned in place of a Node when the instance could not be
// materialized this pass (one of its props is still Undefined).
var Placeholder Accessors = placeholderAccessors{}

// Node is a resource declaration: a construct type, a prop bag, and the
// output signals a provider populates via SetOutputs.
type Node struct {
	ID            string
	Path          []string
	ConstructType string
	Props         map[string]any
	ReconcileKey  string

	outputSignals map[string]*reactive.Signal
	hydrated      bool
	// state is internal, provider-opaque bookkeeping carried across runs
	// for a hydrated node (e.g. the echo provider's fixed deterministic
	// output seed).
	state map[string]any
}

func NewNode(id string, path []string, constructType string, props map[string]any, reconcileKey string) *Node {
	return &Node{
		ID:            id,
		Path:          append([]string(nil), path...),
		ConstructType: constructType,
		Props:         props,
		ReconcileKey:  reconcileKey,
		outputSignals: make(map[string]*reactive.Signal),
		state:         make(map[string]any),
	}
}

func (n *Node) outputSignal(name string) *reactive.Signal {
	if s, ok := n.outputSignals[name]; ok {
		return s
	}
	s := reactive.GetRuntime().NewSignal(Undefined, nil)
	n.outputSignals[name] = s
	return s
}

// Output reads output name, tracking the calling computation as a
// subscriber. Undefined until SetOutputs has set it.
func (n *Node) Output(name string) any {
	return n.outputSignal(name).Read()
}

// Outputs returns every currently-set output as a plain map (untracked),
// used for persistence and diffing.
func (n *Node) Outputs() map[string]any {
	out := make(map[string]any, len(n.outputSignals))
	for name, s := range n.outputSignals {
		if v := s.Value(); !IsUndefined(v) {
			out[name] = v
		}
	}
	return out
}

// SetOutputs replaces every output in a single batch, so a node's
// subscribers observe one notification per apply regardless of how many
// output keys changed. Per spec §9, this is a full replacement: any
// previously-set output absent from values reverts to Undefined rather than
// lingering as stale state.
func (n *Node) SetOutputs(values map[string]any) {
	reactive.GetRuntime().NewBatch(func() {
		seen := make(map[string]bool, len(values))
		for name, v := range values {
			seen[name] = true
			n.outputSignal(name).Write(v)
		}
		for name := range n.outputSignals {
			if !seen[name] {
				n.outputSignal(name).Write(Undefined)
			}
		}
	})
}

// State returns the node's carry-over bookkeeping map: provider- or
// registry-internal state that should survive hydration across runs (not
// part of the reconciled prop/output surface).
func (n *Node) State() map[string]any { return n.state }

// hydrateFrom copies a previous run's outputs and internal state onto n,
// without notifying subscribers — called before the node is ever read, so
// there is nothing to notify yet.
func (n *Node) hydrateFrom(prev *Node) {
	for name, s := range prev.outputSignals {
		n.outputSignal(name).Write(s.Value())
		n.outputSignals[name].Commit()
	}
	for k, v := range prev.state {
		n.state[k] = v
	}
	n.hydrated = true
}

// Registry holds the nodes produced by the current render pass, keyed by
// id, plus the previous run's nodes keyed by reconcileKey for hydration.
type Registry struct {
	current  map[string]*Node
	previous map[string]*Node
	hydrated map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		current:  make(map[string]*Node),
		previous: make(map[string]*Node),
		hydrated: make(map[string]bool),
	}
}

// Hydrate primes the registry with a previous run's nodes so the next pass's
// Register calls can carry outputs/state forward by reconcileKey.
func (r *Registry) Hydrate(previous []*Node) {
	r.previous = make(map[string]*Node, len(previous))
	r.hydrated = make(map[string]bool, len(previous))
	for _, n := range previous {
		r.previous[n.ReconcileKey] = n
	}
}

// Reset clears the current pass's nodes and the record of which previous
// nodes they hydrated from, keeping the hydration source itself, so the next
// pass hydrates from it afresh (called between render passes within one
// convergence run, not between independent runs).
func (r *Registry) Reset() {
	r.current = make(map[string]*Node)
	r.hydrated = make(map[string]bool)
}

// Register creates the node for id this pass, hydrating it from the
// previous run's matching reconcileKey the first time that key is seen this
// pass. Registering an id already registered this pass returns a
// DuplicateIDError.
func (r *Registry) Register(id string, path []string, constructType string, props map[string]any, reconcileKey string) (*Node, error) {
	if existing, ok := r.current[id]; ok {
		return nil, &DuplicateIDError{ID: existing.ID}
	}

	n := NewNode(id, path, constructType, props, reconcileKey)

	if prev, ok := r.previous[reconcileKey]; ok && !r.hydrated[reconcileKey] {
		n.hydrateFrom(prev)
		r.hydrated[reconcileKey] = true
	}

	r.current[id] = n
	return n, nil
}

// List returns every node registered this pass, ordered by id for
// determinism.
func (r *Registry) List() []*Node {
	out := make([]*Node, 0, len(r.current))
	for _, n := range r.current {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DuplicateIDError marks a render pass that produced the same instance id
// twice — always a structural error (spec §4.5, §7), never an
// ErrorBoundary-catchable one.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return "duplicate instance id: " + e.ID
}
