// Package reconcile diffs a previous run's instance nodes against the
// current pass and orders the result into dependency-correct apply batches
// (spec §4.6).
package reconcile

import (
	"reflect"
	"sort"

	"github.com/creact-labs/creact/instance"
	"github.com/creact-labs/creact/internal/reactive"
)

// ChangeSet is the result of diffing a previous node list against a current
// one: what to create, update, leave alone, and delete, plus the
// dependency-ordered sequence the driver applies creates/updates/noops in.
type ChangeSet struct {
	Creates []*instance.Node
	Updates []*instance.Node
	Noops   []*instance.Node
	Deletes []*instance.Node

	// DeploymentOrder is a topological ordering (parents before their
	// descendants) of Creates+Updates+Noops.
	DeploymentOrder []*instance.Node

	// ParallelBatches partitions DeploymentOrder by depth: batch k holds
	// every node whose longest dependency chain has length k. Batches are
	// applied strictly in sequence; nodes within a batch have no ordering
	// promise between them.
	ParallelBatches [][]*instance.Node
}

// Diff matches current nodes against previous ones by ReconcileKey,
// classifies each as a create/update/noop, and computes the dependency
// order for applying them. Previous nodes with no current match become
// deletes (unordered here — see OrderDeletes, which needs the last
// successful deployment order to reverse against).
func Diff(previous, current []*instance.Node) (*ChangeSet, error) {
	prevByKey := make(map[string]*instance.Node, len(previous))
	for _, p := range previous {
		prevByKey[p.ReconcileKey] = p
	}

	cs := &ChangeSet{}
	matched := make(map[string]bool, len(previous))

	for _, n := range current {
		prev, ok := prevByKey[n.ReconcileKey]
		if !ok {
			cs.Creates = append(cs.Creates, n)
			continue
		}
		matched[prev.ReconcileKey] = true
		if nodesEqual(prev, n) {
			cs.Noops = append(cs.Noops, n)
		} else {
			cs.Updates = append(cs.Updates, n)
		}
	}

	for _, p := range previous {
		if !matched[p.ReconcileKey] {
			cs.Deletes = append(cs.Deletes, p)
		}
	}

	applied := make([]*instance.Node, 0, len(cs.Creates)+len(cs.Updates)+len(cs.Noops))
	applied = append(applied, cs.Creates...)
	applied = append(applied, cs.Updates...)
	applied = append(applied, cs.Noops...)

	g := buildGraph(applied)
	order, err := topoSort(applied, g)
	if err != nil {
		return nil, err
	}

	depth := computeDepths(order, g)
	cs.DeploymentOrder = order
	cs.ParallelBatches = batchesByDepth(order, depth)

	return cs, nil
}

// OrderDeletes sorts deletes into the reverse of lastDeploymentOrder — the
// persisted deployment order from the run that created them — so children
// are destroyed before their parents (spec §4.6). Nodes absent from
// lastDeploymentOrder (never successfully applied) sort after every node
// that was, in id order.
func OrderDeletes(deletes []*instance.Node, lastDeploymentOrder []string) []*instance.Node {
	pos := make(map[string]int, len(lastDeploymentOrder))
	for i, id := range lastDeploymentOrder {
		pos[id] = i
	}

	out := append([]*instance.Node(nil), deletes...)
	sort.SliceStable(out, func(i, j int) bool {
		pi, oki := pos[out[i].ID]
		pj, okj := pos[out[j].ID]
		switch {
		case oki && okj:
			return pi > pj
		case oki != okj:
			return oki
		default:
			return out[i].ID < out[j].ID
		}
	})
	return out
}

// DeleteOrder topologically sorts deletes by the ancestry implicit in their
// own Path fields and reverses it, so a child is destroyed before the
// parent it depended on. Unlike OrderDeletes, it needs no persisted
// deployment order: every delete's ancestors are either also in deletes (so
// the graph is self-contained) or already gone, which path-prefix ancestry
// recovers without a render pass (spec §4.6, used by the convergence loop
// when no backend-persisted order is available).
func DeleteOrder(deletes []*instance.Node) ([]*instance.Node, error) {
	g := buildGraph(deletes)
	order, err := topoSort(deletes, g)
	if err != nil {
		return nil, err
	}

	reversed := make([]*instance.Node, len(order))
	for i, n := range order {
		reversed[len(order)-1-i] = n
	}
	return reversed, nil
}

// nodesEqual is the spec's "deeply-equal relevant props" check: constructType,
// path and props, ignoring outputs/outputSignals (which Node doesn't even
// expose a comparable field for).
func nodesEqual(a, b *instance.Node) bool {
	if a.ConstructType != b.ConstructType {
		return false
	}
	if len(a.Path) != len(b.Path) {
		return false
	}
	for i := range a.Path {
		if a.Path[i] != b.Path[i] {
			return false
		}
	}
	return propsEqual(a.Props, b.Props)
}

func propsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	visited := make(map[[2]uintptr]bool)
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if !valuesEqual(av, bv, visited) {
			return false
		}
	}
	return true
}

// valuesEqual is a cycle-safe structural equality check: functions compare
// by reference (pointer identity, per spec §4.6), maps/slices/pointers track
// a visited set keyed by their pointer pair so a cycle is treated as equal
// rather than recursing forever, and everything else falls back to
// reflect.DeepEqual.
func valuesEqual(a, b any, visited map[[2]uintptr]bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != vb.Kind() {
		return false
	}

	switch va.Kind() {
	case reflect.Func:
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		return va.Pointer() == vb.Pointer()

	case reflect.Map:
		if va.IsNil() != vb.IsNil() {
			return false
		}
		if va.Pointer() == vb.Pointer() {
			return true
		}
		key := [2]uintptr{va.Pointer(), vb.Pointer()}
		if visited[key] {
			return true
		}
		visited[key] = true

		if va.Len() != vb.Len() {
			return false
		}
		iter := va.MapRange()
		for iter.Next() {
			bval := vb.MapIndex(iter.Key())
			if !bval.IsValid() {
				return false
			}
			if !valuesEqual(iter.Value().Interface(), bval.Interface(), visited) {
				return false
			}
		}
		return true

	case reflect.Slice:
		if va.IsNil() != vb.IsNil() {
			return false
		}
		if va.Pointer() == vb.Pointer() {
			return true
		}
		key := [2]uintptr{va.Pointer(), vb.Pointer()}
		if visited[key] {
			return true
		}
		visited[key] = true
		fallthrough

	case reflect.Array:
		if va.Len() != vb.Len() {
			return false
		}
		for i := 0; i < va.Len(); i++ {
			if !valuesEqual(va.Index(i).Interface(), vb.Index(i).Interface(), visited) {
				return false
			}
		}
		return true

	case reflect.Ptr:
		if va.Pointer() == vb.Pointer() {
			return true
		}
		if va.IsNil() || vb.IsNil() {
			return va.IsNil() && vb.IsNil()
		}
		key := [2]uintptr{va.Pointer(), vb.Pointer()}
		if visited[key] {
			return true
		}
		visited[key] = true
		return valuesEqual(va.Elem().Interface(), vb.Elem().Interface(), visited)

	default:
		return reflect.DeepEqual(a, b)
	}
}

// dependencyGraph holds, per node id, the ids of its ancestor instance
// nodes (dependencies) and the ids of the nodes that depend on it
// (dependents) — the two adjacency maps spec §4.6 calls for.
type dependencyGraph struct {
	dependencies map[string][]string
	dependents   map[string][]string
}

// buildGraph derives dependencies from path containment: n depends on every
// other node in nodes whose Path is a proper prefix of n's Path (spec §4.6 —
// "its dependencies are exactly the ancestor nodes").
func buildGraph(nodes []*instance.Node) *dependencyGraph {
	g := &dependencyGraph{
		dependencies: make(map[string][]string, len(nodes)),
		dependents:   make(map[string][]string, len(nodes)),
	}
	for _, n := range nodes {
		g.dependencies[n.ID] = nil
		g.dependents[n.ID] = nil
	}
	for _, n := range nodes {
		for _, m := range nodes {
			if m.ID == n.ID {
				continue
			}
			if isProperPrefix(m.Path, n.Path) {
				g.dependencies[n.ID] = append(g.dependencies[n.ID], m.ID)
				g.dependents[m.ID] = append(g.dependents[m.ID], n.ID)
			}
		}
	}
	return g
}

func isProperPrefix(prefix, full []string) bool {
	if len(prefix) >= len(full) {
		return false
	}
	for i, s := range prefix {
		if full[i] != s {
			return false
		}
	}
	return true
}

// CycleError marks a dependency graph that Kahn's algorithm could not fully
// drain — a cyclic instance dependency, which is always a structural error
// (spec §4.6, §7): it can never be an artifact of a misbehaving component,
// only of the tree's own shape.
type CycleError struct {
	Remaining []string
}

func (e *CycleError) Error() string {
	return reactive.NewStructuralError("cyclic instance dependency among %v", e.Remaining).Error()
}

// topoSort runs Kahn's algorithm: repeatedly emit the lexicographically
// smallest zero-in-degree id, decrementing its dependents' in-degree as it
// goes, keeping the ready set sorted so ties are broken by id (spec §4.6).
func topoSort(nodes []*instance.Node, g *dependencyGraph) ([]*instance.Node, error) {
	byID := make(map[string]*instance.Node, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
		inDegree[n.ID] = len(g.dependencies[n.ID])
	}

	ready := make([]string, 0, len(nodes))
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]*instance.Node, 0, len(nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, byID[id])

		for _, dep := range g.dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				idx := sort.SearchStrings(ready, dep)
				ready = append(ready, "")
				copy(ready[idx+1:], ready[idx:])
				ready[idx] = dep
			}
		}
	}

	if len(order) != len(nodes) {
		remaining := make([]string, 0, len(nodes)-len(order))
		for id, deg := range inDegree {
			if deg > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, &CycleError{Remaining: remaining}
	}

	return order, nil
}

// computeDepths assigns each node depth = 1 + max(depth of dependencies), 0
// if it has none. order must already be topologically sorted, so every
// dependency's depth is known by the time its dependent is visited.
func computeDepths(order []*instance.Node, g *dependencyGraph) map[string]int {
	depth := make(map[string]int, len(order))
	for _, n := range order {
		d := 0
		for _, dep := range g.dependencies[n.ID] {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[n.ID] = d
	}
	return depth
}

func batchesByDepth(order []*instance.Node, depth map[string]int) [][]*instance.Node {
	maxDepth := 0
	for _, n := range order {
		if depth[n.ID] > maxDepth {
			maxDepth = depth[n.ID]
		}
	}
	batches := make([][]*instance.Node, maxDepth+1)
	for _, n := range order {
		d := depth[n.ID]
		batches[d] = append(batches[d], n)
	}
	return batches
}
