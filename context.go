package creact

import "github.com/creact-labs/creact/internal/reactive"

// Context is a dynamically-scoped value: reading it inside a descendant
// owner walks up to the nearest ancestor that called Set, falling back to
// the value CreateContext was given.
type Context[T any] struct {
	ctx *reactive.Context
}

// CreateContext creates a context with a default value.
func CreateContext[T any](initial T) *Context[T] {
	return &Context[T]{ctx: reactive.GetRuntime().NewContext(initial)}
}

// UseContext reads the context's value for the current owner.
func UseContext[T any](ctx *Context[T]) T {
	return as[T](ctx.ctx.Value())
}

// Set binds value on the current owner; visible to it and every descendant
// until a nearer descendant calls Set again.
func (c *Context[T]) Set(value T) {
	c.ctx.Set(value)
}
