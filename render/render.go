// Package render walks a component tree into a flat list of InstanceNodes,
// binding each component to a dedicated computation so a later signal write
// re-renders exactly the subtree that read it (spec §4.2).
package render

import (
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"strings"

	"github.com/go-logr/logr"

	"github.com/creact-labs/creact/element"
	"github.com/creact-labs/creact/instance"
	"github.com/creact-labs/creact/internal/reactive"
)

// Fiber is the per-invocation intermediate node: construct identity, the
// props it was given, its rendered children, the instance nodes it and its
// descendants produced this pass, and the computation that re-renders it in
// place.
type Fiber struct {
	constructType string
	key           string
	path          []string

	element  element.Element
	children []*Fiber
	nodes    []*instance.Node

	placeholder bool

	owner *reactive.Owner
	comp  *reactive.Computed

	instanceCalls map[string]int
}

// Path returns the fiber's path segments (root to this fiber).
func (f *Fiber) Path() []string { return append([]string(nil), f.path...) }

// Nodes returns the instance nodes this fiber and its descendants produced
// in its last run, pre-order.
func (f *Fiber) Nodes() []*instance.Node { return f.nodes }

// Placeholder reports whether this fiber's last run hit an undefined prop
// and so withheld materializing an instance node.
func (f *Fiber) Placeholder() bool { return f.placeholder }

type renderState struct {
	fiber    *Fiber
	registry *instance.Registry
}

// fiberContext threads the current fiber + registry down through nested
// component computations, the same way a user Context would — it is
// package-private, never exposed to component authors.
var fiberContext = reactive.NewContext(nil)

func currentState() *renderState {
	v := fiberContext.Value()
	if v == nil {
		panic(reactive.NewStructuralError("useInstance called outside of a render pass"))
	}
	return v.(*renderState)
}

// UseInstance declares an instance node from inside a component body. If any
// prop is instance.Undefined the call returns instance.Placeholder and marks
// the enclosing fiber as carrying a placeholder — no node materializes this
// pass (spec §4.4).
func UseInstance(constructType string, props map[string]any) instance.Accessors {
	st := currentState()
	fiber := st.fiber

	key, _ := props["key"].(string)
	label := kebabCase(constructType)
	if key != "" {
		label += "-" + key
	}

	if fiber.instanceCalls == nil {
		fiber.instanceCalls = make(map[string]int)
	}
	if n := fiber.instanceCalls[label]; n > 0 {
		label = fmt.Sprintf("%s-%d", label, n)
	}
	fiber.instanceCalls[label]++

	path := append(append([]string{}, fiber.path...), label)
	id := strings.Join(path, ".")

	reconcileKey := constructType + ":"
	if name, ok := props["name"].(string); ok && name != "" {
		reconcileKey += name
	} else {
		reconcileKey += id
	}

	if instance.HasUndefinedProp(props) {
		fiber.placeholder = true
		return instance.Placeholder
	}

	node, err := st.registry.Register(id, path, constructType, props, reconcileKey)
	if err != nil {
		panic(reactive.NewStructuralError("%s", err))
	}

	fiber.nodes = append(fiber.nodes, node)
	return node
}

// Renderer walks a root Element into a tree of Fibers bound to render
// computations, producing the flattened list of InstanceNodes those Fibers
// are currently holding.
type Renderer struct {
	registry *instance.Registry
	owner    *reactive.Owner
	root     *Fiber
	log      logr.Logger
}

func NewRenderer(log logr.Logger) *Renderer {
	return &Renderer{registry: instance.NewRegistry(), log: log}
}

// Registry exposes the renderer's instance registry, e.g. for the
// convergence driver to read List()/Reset() between passes.
func (rd *Renderer) Registry() *instance.Registry { return rd.registry }

// Render builds the fiber tree for root exactly once: each function
// component's invocation runs inside a dedicated render-phase effect, so a
// later write to a signal it read reruns only that component, rebuilds its
// children, and leaves the rest of the tree untouched. previousNodes, if
// given, seeds hydration for reconcileKey matches.
func (rd *Renderer) Render(root element.Element, previousNodes []*instance.Node) []*instance.Node {
	rd.registry.Hydrate(previousNodes)
	rd.registry.Reset()

	rd.owner = reactive.GetRuntime().NewOwner()
	rd.owner.Run(func() {
		rd.root = rd.renderChild(root, nil, make(map[string]bool))
	})

	return rd.registry.List()
}

// Dispose tears down every fiber's owner, unsubscribing every render
// computation from the signal graph.
func (rd *Renderer) Dispose() {
	if rd.owner != nil {
		rd.owner.Dispose()
	}
}

// renderChild renders one element into a fiber, attached as a child of the
// currently-running owner. seen tracks sibling construct-type labels within
// the same parent (spec §4.2's duplicate-sibling diagnostic); fragments are
// transparent and share their parent's seen set and path.
func (rd *Renderer) renderChild(el element.Element, parentPath []string, seen map[string]bool) *Fiber {
	switch typ := el.Type.(type) {
	case element.FragmentType:
		return rd.renderFragment(el, parentPath, seen)
	case string:
		return rd.renderConstruct(el, typ, parentPath, seen, rd.renderHostChildren)
	case element.Component:
		name := componentName(typ)
		return rd.renderConstruct(el, name, parentPath, seen, func(f *Fiber) {
			rd.renderComponent(f, typ, el.Props)
		})
	default:
		if fn, ok := reflectFunc(typ); ok {
			name := componentName(element.Component(fn))
			return rd.renderConstruct(el, name, parentPath, seen, func(f *Fiber) {
				rd.renderComponent(f, fn, el.Props)
			})
		}
		panic(reactive.NewStructuralError("unsupported element type %T", typ))
	}
}

// renderFragment renders a fragment's children without introducing a path
// segment of its own.
func (rd *Renderer) renderFragment(el element.Element, parentPath []string, seen map[string]bool) *Fiber {
	f := &Fiber{constructType: "fragment", path: append([]string(nil), parentPath...), element: el}
	for _, child := range element.Children(el.Props) {
		f.children = append(f.children, rd.renderChild(child, f.path, seen))
		f.nodes = append(f.nodes, f.children[len(f.children)-1].collectNodes()...)
	}
	return f
}

// renderConstruct computes the disambiguated path label for el (fatal if it
// collides with an unkeyed sibling of the same construct type), builds the
// fiber, and invokes body to populate its children/nodes.
func (rd *Renderer) renderConstruct(el element.Element, constructType string, parentPath []string, seen map[string]bool, body func(*Fiber)) *Fiber {
	label := kebabCase(constructType)
	if el.Key != "" {
		label += "-" + el.Key
	} else if seen[label] {
		panic(reactive.NewStructuralError(
			"sibling construct %q repeated without a user-supplied key under %v; require unique keys",
			constructType, parentPath))
	}
	seen[label] = true

	path := append(append([]string(nil), parentPath...), label)

	f := &Fiber{
		constructType: constructType,
		key:           el.Key,
		path:          path,
		element:       el,
	}

	body(f)

	return f
}

// renderHostChildren renders every child of f's element directly under f's
// own path, with no dedicated computation — used for fragments and string
// tags, which carry no reactive state of their own.
func (rd *Renderer) renderHostChildren(f *Fiber) {
	childSeen := make(map[string]bool)
	for _, child := range element.Children(f.element.Props) {
		f.children = append(f.children, rd.renderChild(child, f.path, childSeen))
		f.nodes = append(f.nodes, f.children[len(f.children)-1].collectNodes()...)
	}
}

// renderComponent invokes a function component inside a dedicated render
// effect bound to f, so a dependency change reruns exactly this invocation:
// its previous children's owner is disposed and it is rebuilt from scratch.
func (rd *Renderer) renderComponent(f *Fiber, fn element.Component, props element.Props) {
	// recompute resets this effect's owner (disposing the previous run's
	// children) before invoking runner again, so every field runner
	// populates below is rebuilt from scratch each time.
	runner := func() {
		f.nodes = nil
		f.placeholder = false
		f.instanceCalls = nil
		f.children = nil

		fiberContext.Set(&renderState{fiber: f, registry: rd.registry})

		result := fn(props)

		childSeen := make(map[string]bool)
		if _, isFrag := result.Type.(element.FragmentType); isFrag {
			for _, child := range element.Children(result.Props) {
				f.children = append(f.children, rd.renderChild(child, f.path, childSeen))
			}
		} else {
			f.children = append(f.children, rd.renderChild(result, f.path, childSeen))
		}

		for _, c := range f.children {
			f.nodes = append(f.nodes, c.collectNodes()...)
		}

		rd.log.V(1).Info("rendered component", "path", strings.Join(f.path, "."))
	}

	eff := reactive.GetRuntime().NewEffect(reactive.EffectRender, runner)
	f.comp = eff.Computed
	f.owner = eff.Computed.Owner
}

// collectNodes returns every instance node reachable from f, including its
// own and its descendants', pre-order — which f.nodes already holds once f
// has been rendered.
func (f *Fiber) collectNodes() []*instance.Node {
	return append([]*instance.Node(nil), f.nodes...)
}

func reflectFunc(v any) (element.Component, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Func {
		return nil, false
	}
	fn, ok := v.(func(element.Props) element.Element)
	if !ok {
		return nil, false
	}
	return fn, true
}

var kebabRE = regexp.MustCompile(`([a-z0-9])([A-Z])`)

func kebabCase(s string) string {
	s = kebabRE.ReplaceAllString(s, "$1-$2")
	return strings.ToLower(s)
}

func componentName(fn element.Component) string {
	ptr := reflect.ValueOf(fn).Pointer()
	full := runtime.FuncForPC(ptr).Name()
	parts := strings.Split(full, ".")
	return parts[len(parts)-1]
}
