package reactive

// EffectQueue holds Computeds whose dirtying is routed away from the
// height-ordered heap (see Computed.isEffect): a dependency write marks
// them dirty here instead, and a flush drains EffectRender entries before
// EffectUser entries, matching the spec's two effect phases.
type EffectQueue struct {
	dirty map[EffectType][]*Computed
	seen  map[*Computed]bool
}

func NewEffectQueue() *EffectQueue {
	return &EffectQueue{
		dirty: map[EffectType][]*Computed{
			EffectRender: make([]*Computed, 0),
			EffectUser:   make([]*Computed, 0),
		},
		seen: make(map[*Computed]bool),
	}
}

// MarkDirty enqueues c for its phase, deduplicating within the same round.
func (q *EffectQueue) MarkDirty(typ EffectType, c *Computed) {
	if q.seen[c] {
		return
	}
	q.seen[c] = true
	q.dirty[typ] = append(q.dirty[typ], c)
}

// RunEffects drains every node currently dirty for typ, recomputing each
// through the runtime's normal reset/track/run path.
func (q *EffectQueue) RunEffects(r *Runtime, typ EffectType) {
	nodes := q.dirty[typ]
	q.dirty[typ] = nil

	for _, c := range nodes {
		delete(q.seen, c)
		r.recompute(c)
	}
}

// NodeQueue batches pending signal-value commits so every computed and
// effect sees a consistent snapshot mid-flush, with the values only
// becoming visible to future reads once the flush's compute phase is over.
type NodeQueue struct {
	signals []*Signal
}

func NewNodeQueue() *NodeQueue {
	return &NodeQueue{
		signals: make([]*Signal, 0),
	}
}

func (q *NodeQueue) Enqueue(node *Signal) {
	q.signals = append(q.signals, node)
}

func (q *NodeQueue) Commit() {
	for _, node := range q.signals {
		node.Commit()
	}

	q.signals = q.signals[:0]
}
