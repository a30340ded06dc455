package reactive

// Context is a dynamically-scoped value: reading it walks up the current
// owner's parent chain looking for the nearest Set, falling back to the
// default. Owner.context is a map keyed by the Context's own pointer
// identity, so distinct contexts never collide even with the same
// underlying value type.
type Context struct {
	def any
}

func (r *Runtime) NewContext(initial any) *Context {
	return NewContext(initial)
}

// NewContext creates a context directly, without a Runtime handle: a
// Context carries no per-goroutine state itself (the values it holds live on
// whichever Owner called Set), so it is safe to share across goroutines and
// useful for ambient contexts a package wants to keep at package scope.
func NewContext(initial any) *Context {
	return &Context{def: initial}
}

// Value reads the nearest ancestor binding starting at the current owner,
// or the context's default if none set one.
func (c *Context) Value() any {
	r := GetRuntime()

	for o := r.CurrentOwner(); o != nil; o = o.parent {
		if v, ok := o.context[c]; ok {
			return v
		}
	}

	return c.def
}

// Set binds value on the current owner, visible to that owner and every
// descendant until a nearer descendant calls Set again.
func (c *Context) Set(value any) {
	r := GetRuntime()

	owner := r.CurrentOwner()
	if owner == nil {
		return
	}

	owner.context[c] = value
}
