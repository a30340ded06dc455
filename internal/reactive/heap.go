package reactive

import "iter"

// PriorityHeap drains dirty Computeds in topological (parent-before-child)
// order: bucketed by height, with each bucket a circular doubly-linked list
// so insert/remove are O(1) and growing to a new max height is just a
// slice append.
type PriorityHeap struct {
	min int
	max int

	nodes []*heapNode // [height]head

	loopkup map[*Computed]*heapNode // for O(1) removal
}

type heapNode struct {
	node *Computed

	next *heapNode
	prev *heapNode
}

func NewHeap() *PriorityHeap {
	return &PriorityHeap{
		min:     0,
		max:     0,
		nodes:   make([]*heapNode, 64),
		loopkup: make(map[*Computed]*heapNode),
	}
}

func (h *PriorityHeap) ensure(height int) {
	for height >= len(h.nodes) {
		h.nodes = append(h.nodes, nil)
	}
}

func (h *PriorityHeap) Insert(node *Computed) {
	if node.HasFlag(flagInHeap) {
		return
	}
	node.AddFlag(flagInHeap)

	entry := &heapNode{node: node}
	h.loopkup[node] = entry

	height := node.GetHeight()
	h.ensure(height)

	if h.nodes[height] == nil {
		h.nodes[height] = entry
		entry.prev = entry // loop to self
		entry.next = nil
	} else {
		head := h.nodes[height]
		tail := head.prev

		tail.next = entry
		entry.prev = tail
		entry.next = nil
		head.prev = entry
	}

	if height > h.max {
		h.max = height
	}
}

func (h *PriorityHeap) InsertAll(nodes iter.Seq[*Computed]) {
	for node := range nodes {
		h.Insert(node)
	}
}

func (h *PriorityHeap) Remove(node *Computed) {
	if !node.HasFlag(flagInHeap) {
		return
	}
	node.RemoveFlag(flagInHeap)

	entry, ok := h.loopkup[node]
	if !ok {
		return
	}
	delete(h.loopkup, node)

	height := entry.node.GetHeight()

	// single node
	if entry.prev == entry {
		h.nodes[height] = nil
		entry.prev = entry
		entry.next = nil
		return
	}

	// multiple nodes
	head := h.nodes[height]
	if entry == head {
		h.nodes[height] = entry.next
	} else {
		entry.prev.next = entry.next
	}

	next := entry.next
	if next == nil {
		next = head
	}
	next.prev = entry.prev

	entry.prev = entry
	entry.next = nil
}

// maxDrainSteps bounds a single Drain call: a node whose recomputation
// re-dirties itself at the same or a lower height (a direct signal
// read/write cycle) would otherwise re-enter the inner loop forever.
const maxDrainSteps = 200_000

// Drain processes each entry in topological order (parent heights before
// child heights) with the `process` function, leaving the heap empty.
func (h *PriorityHeap) Drain(process func(*Computed)) {
	steps := 0

	for h.min = 0; h.min <= h.max; h.min++ {
		entry := h.nodes[h.min]

		for entry != nil {
			steps++
			if steps > maxDrainSteps {
				panic(NewStructuralError("cyclic signal dependency detected during flush"))
			}

			h.Remove(entry.node)
			process(entry.node)
			entry = h.nodes[h.min]
		}
	}

	h.max = 0
}
