package game

import "container/heap"

// frontierItem is a queued node. seq pins the node version it was queued for;
// a node that was replaced since is skipped when popped.
type frontierItem struct {
	ref    NodeRef
	cost   float64
	danger uint64
	seq    uint64
	index  int
}

// Frontier implements a min-heap of nodes ordered by cost, then danger, then insertion order.
type Frontier []*frontierItem

// Len returns the length of the frontier.
func (f Frontier) Len() int { return len(f) }

// Less orders by accumulated cost with danger as the tie-break.
func (f Frontier) Less(i, j int) bool {
	if f[i].cost != f[j].cost {
		return f[i].cost < f[j].cost
	}
	if f[i].danger != f[j].danger {
		return f[i].danger < f[j].danger
	}
	return f[i].seq < f[j].seq
}

// Swap swaps two items in the frontier.
func (f Frontier) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
	f[i].index = i
	f[j].index = j
}

// Push adds an item to the frontier.
func (f *Frontier) Push(x any) {
	item := x.(*frontierItem)
	item.index = len(*f)
	*f = append(*f, item)
}

// Pop removes and returns the last item of the underlying slice.
func (f *Frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*f = old[:n-1]
	return item
}

func (s *NodeStorage) push(f *Frontier, ref NodeRef) {
	node := s.Get(ref)
	if node == nil {
		return
	}
	heap.Push(f, &frontierItem{ref: ref, cost: node.Cost, danger: node.Danger, seq: node.seq})
}

// pop returns the next node still holding the state it was queued with.
func (s *NodeStorage) pop(f *Frontier) (NodeRef, bool) {
	for f.Len() > 0 {
		item := heap.Pop(f).(*frontierItem)
		node := s.Get(item.ref)
		if node == nil || node.seq != item.seq || !s.alive(node) {
			continue
		}
		return item.ref, true
	}
	return NoNode, false
}
