// Package element is the trivial record factory components call to build the
// tree the renderer walks: createElement, Fragment, and the jsx-transform
// entrypoints, all producing the same {type, props, key} shape.
package element

// Props is the property bag passed to a component or carried by a host tag.
// "children" is populated by CreateElement from the variadic children
// argument when any are given.
type Props map[string]any

// Component is a function component: a callable that receives its props and
// returns the Element it rendered to.
type Component func(Props) Element

// FragmentType is the sentinel Type value meaning "no wrapping construct,
// just these children" — a fragment never owns a path segment of its own.
type FragmentType struct{}

// Fragment is the single FragmentType value, analogous to a symbol in the
// source language this factory is modeled on.
var Fragment = FragmentType{}

// Element is the record produced by createElement/jsx: a construct (function
// component, Fragment, or string tag) plus its props and optional key.
type Element struct {
	Type  any
	Props Props
	Key   string
}

// CreateElement builds an Element. children, if any, are stored under
// props["children"] — a single child is stored unwrapped, multiple children
// as a slice, matching how component bodies commonly destructure them. key
// is extracted out of props into the top-level field, the same way the JSX
// transform special-cases it.
func CreateElement(typ any, props Props, children ...Element) Element {
	if props == nil {
		props = Props{}
	} else {
		cloned := make(Props, len(props))
		for k, v := range props {
			cloned[k] = v
		}
		props = cloned
	}

	if len(children) == 1 {
		props["children"] = children[0]
	} else if len(children) > 1 {
		cp := make([]Element, len(children))
		copy(cp, children)
		props["children"] = cp
	}

	key, _ := props["key"].(string)
	delete(props, "key")

	return Element{Type: typ, Props: props, Key: key}
}

// Children normalizes props["children"] to a slice regardless of whether
// CreateElement stored zero, one, or many.
func Children(props Props) []Element {
	switch c := props["children"].(type) {
	case nil:
		return nil
	case Element:
		return []Element{c}
	case []Element:
		return c
	default:
		return nil
	}
}

// JSX is the entrypoint a `jsx` pragma compiles a single-child element into.
func JSX(typ any, props Props) Element { return CreateElement(typ, props) }

// JSXS is the entrypoint a `jsx` pragma compiles a multi-child element into;
// functionally identical to JSX for this factory since children already
// travel inside props.
func JSXS(typ any, props Props) Element { return CreateElement(typ, props) }

// JSXDEV is the development-mode entrypoint; source/self are accepted for
// signature compatibility with the transform and otherwise unused.
func JSXDEV(typ any, props Props, source any, self any) Element {
	return CreateElement(typ, props)
}
