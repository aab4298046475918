package refinement

import "container/heap"

// moveCandidate is one prospective move in the FM priority queues.
type moveCandidate struct {
	vertex int
	target int
	gain   int64
}

// vertexHeap is a max-heap of move candidates for one target block.
type vertexHeap []moveCandidate

func (h vertexHeap) Len() int            { return len(h) }
func (h vertexHeap) Less(i, j int) bool  { return h[i].gain > h[j].gain }
func (h vertexHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *vertexHeap) Push(x interface{}) { *h = append(*h, x.(moveCandidate)) }
func (h *vertexHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// kwayPriorityQueue is the two-level FM queue: one vertex heap per target
// block, with the block level selecting the heap whose top move has the
// highest gain. Entries are lazy; a popped candidate must be revalidated
// against the gain cache before it is applied.
type kwayPriorityQueue struct {
	heaps []vertexHeap
	size  int
}

func newKWayPriorityQueue(k int) *kwayPriorityQueue {
	return &kwayPriorityQueue{heaps: make([]vertexHeap, k)}
}

func (pq *kwayPriorityQueue) Len() int { return pq.size }

func (pq *kwayPriorityQueue) Insert(c moveCandidate) {
	heap.Push(&pq.heaps[c.target], c)
	pq.size++
}

// PopBest removes and returns the highest-gain candidate across all blocks.
func (pq *kwayPriorityQueue) PopBest() (moveCandidate, bool) {
	bestBlock := -1
	for b := range pq.heaps {
		if len(pq.heaps[b]) == 0 {
			continue
		}
		if bestBlock == -1 || pq.heaps[b][0].gain > pq.heaps[bestBlock][0].gain {
			bestBlock = b
		}
	}
	if bestBlock == -1 {
		return moveCandidate{}, false
	}
	c := heap.Pop(&pq.heaps[bestBlock]).(moveCandidate)
	pq.size--
	return c, true
}

func (pq *kwayPriorityQueue) Clear() {
	for b := range pq.heaps {
		pq.heaps[b] = pq.heaps[b][:0]
	}
	pq.size = 0
}
