package reactive

// EffectType distinguishes the two effect-queue phases a flush drains in
// order: render effects (the renderer's own per-fiber re-render
// computations) before user effects (createEffect bodies).
type EffectType int

const (
	EffectRender EffectType = iota
	EffectUser
)

// Effect is a Computed whose dirtying is routed through the effect queue
// instead of the height-ordered heap, and whose body is a plain side
// effect rather than a value production (cleanup is registered with
// OnCleanup from inside the body, not returned).
type Effect struct {
	*Computed
}

func (r *Runtime) NewEffect(typ EffectType, fn func()) *Effect {
	c := &Computed{
		Owner:      r.NewOwner(),
		Signal:     r.NewSignal(nil, defaultEquals),
		isEffect:   true,
		effectType: typ,
	}
	c.compute = func(*Computed) any {
		fn()
		return nil
	}
	c.fn = c.run

	c.OnDispose(func() {
		c.ClearDeps()
	})

	r.recompute(c)

	return &Effect{Computed: c}
}
