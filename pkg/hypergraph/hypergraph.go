package hypergraph

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
)

// Hypergraph is an immutable CSR hypergraph: pin lists per hyperedge and
// incident-edge lists per vertex, both in compressed adjacency form. A level
// of the multilevel hierarchy is built once (via Build or Contract) and never
// mutated afterwards.
type Hypergraph struct {
	numNodes int
	numEdges int
	numPins  int

	// hyperedge -> pins
	edgeOffsets []int
	pins        []int
	edgeWeights []int64

	// vertex -> incident hyperedges
	nodeOffsets   []int
	incidentEdges []int
	nodeWeights   []int64

	communityIDs []int // nil while communities are unset
	fixedBlocks  []int // nil while no fixed vertices exist; -1 = free

	totalWeight              int64
	numRemovedSinglePinEdges int
}

// BuildConfig controls hypergraph construction.
type BuildConfig struct {
	// Stable orders pins within each edge and incident edges within each
	// vertex canonically, so construction is reproducible across thread
	// counts.
	Stable bool
	// RemoveSinglePinEdges drops hyperedges with fewer than two pins. Their
	// count is preserved on the resulting hypergraph.
	RemoveSinglePinEdges bool
}

// Build constructs a hypergraph from per-edge pin lists. Duplicate pins
// within an edge are rejected. Edge weights default to 1 and node weights to
// 1 when nil is passed.
func Build(cfg BuildConfig, numNodes int, pinLists [][]int, edgeWeights, nodeWeights []int64, pool *parallel.Pool) (*Hypergraph, error) {
	if numNodes <= 0 {
		return nil, fmt.Errorf("hypergraph: number of nodes must be positive, got %d", numNodes)
	}
	if edgeWeights != nil && len(edgeWeights) != len(pinLists) {
		return nil, fmt.Errorf("hypergraph: %d edge weights for %d edges", len(edgeWeights), len(pinLists))
	}
	if nodeWeights != nil && len(nodeWeights) != numNodes {
		return nil, fmt.Errorf("hypergraph: %d node weights for %d nodes", len(nodeWeights), numNodes)
	}
	if pool == nil {
		pool = parallel.Default()
	}

	// validate pins
	var invalid atomic.Int32
	pool.For(len(pinLists), func(e int) {
		seen := make(map[int]struct{}, len(pinLists[e]))
		for _, v := range pinLists[e] {
			if v < 0 || v >= numNodes {
				invalid.Store(int32(e) + 1)
				return
			}
			if _, dup := seen[v]; dup {
				invalid.Store(int32(e) + 1)
				return
			}
			seen[v] = struct{}{}
		}
	})
	if e := invalid.Load(); e != 0 {
		return nil, fmt.Errorf("hypergraph: edge %d has an out-of-range or duplicate pin", e-1)
	}

	// select surviving edges
	keep := make([]int, 0, len(pinLists))
	removed := 0
	for e := range pinLists {
		if cfg.RemoveSinglePinEdges && len(pinLists[e]) < 2 {
			removed++
			continue
		}
		keep = append(keep, e)
	}

	hg := &Hypergraph{
		numNodes:                 numNodes,
		numEdges:                 len(keep),
		numRemovedSinglePinEdges: removed,
	}
	hg.edgeOffsets = make([]int, hg.numEdges+1)
	hg.edgeWeights = make([]int64, hg.numEdges)
	for i, e := range keep {
		hg.edgeOffsets[i+1] = hg.edgeOffsets[i] + len(pinLists[e])
		if edgeWeights != nil {
			hg.edgeWeights[i] = edgeWeights[e]
		} else {
			hg.edgeWeights[i] = 1
		}
	}
	hg.numPins = hg.edgeOffsets[hg.numEdges]
	hg.pins = make([]int, hg.numPins)
	pool.For(hg.numEdges, func(i int) {
		dst := hg.pins[hg.edgeOffsets[i]:hg.edgeOffsets[i+1]]
		copy(dst, pinLists[keep[i]])
		if cfg.Stable {
			sort.Ints(dst)
		}
	})

	hg.nodeWeights = make([]int64, numNodes)
	if nodeWeights != nil {
		copy(hg.nodeWeights, nodeWeights)
	} else {
		for v := range hg.nodeWeights {
			hg.nodeWeights[v] = 1
		}
	}
	for _, w := range hg.nodeWeights {
		hg.totalWeight += w
	}

	hg.buildIncidence(pool, cfg.Stable)
	return hg, nil
}

// buildIncidence fills the vertex -> incident edge CSR from the pin arrays.
func (hg *Hypergraph) buildIncidence(pool *parallel.Pool, stable bool) {
	degrees := make([]int32, hg.numNodes)
	atomicDegrees := make([]atomic.Int32, hg.numNodes)
	pool.For(hg.numEdges, func(e int) {
		for _, v := range hg.Pins(e) {
			atomicDegrees[v].Add(1)
		}
	})
	for v := range degrees {
		degrees[v] = atomicDegrees[v].Load()
	}

	hg.nodeOffsets = make([]int, hg.numNodes+1)
	for v := 0; v < hg.numNodes; v++ {
		hg.nodeOffsets[v+1] = hg.nodeOffsets[v] + int(degrees[v])
	}
	hg.incidentEdges = make([]int, hg.nodeOffsets[hg.numNodes])

	slots := make([]atomic.Int32, hg.numNodes)
	pool.For(hg.numEdges, func(e int) {
		for _, v := range hg.Pins(e) {
			idx := hg.nodeOffsets[v] + int(slots[v].Add(1)) - 1
			hg.incidentEdges[idx] = e
		}
	})
	if stable {
		pool.For(hg.numNodes, func(v int) {
			sort.Ints(hg.incidentEdges[hg.nodeOffsets[v]:hg.nodeOffsets[v+1]])
		})
	}
}

func (hg *Hypergraph) NumNodes() int { return hg.numNodes }
func (hg *Hypergraph) NumEdges() int { return hg.numEdges }
func (hg *Hypergraph) NumPins() int  { return hg.numPins }

// TotalWeight is the sum of all vertex weights.
func (hg *Hypergraph) TotalWeight() int64 { return hg.totalWeight }

// NumRemovedSinglePinEdges reports how many single-pin hyperedges were
// dropped during construction or contraction.
func (hg *Hypergraph) NumRemovedSinglePinEdges() int { return hg.numRemovedSinglePinEdges }

// Pins returns the pin list of hyperedge e. The slice aliases internal
// storage and must not be modified.
func (hg *Hypergraph) Pins(e int) []int {
	return hg.pins[hg.edgeOffsets[e]:hg.edgeOffsets[e+1]]
}

// IncidentEdges returns the hyperedges containing vertex v. The slice
// aliases internal storage and must not be modified.
func (hg *Hypergraph) IncidentEdges(v int) []int {
	return hg.incidentEdges[hg.nodeOffsets[v]:hg.nodeOffsets[v+1]]
}

func (hg *Hypergraph) NodeWeight(v int) int64 { return hg.nodeWeights[v] }
func (hg *Hypergraph) EdgeWeight(e int) int64 { return hg.edgeWeights[e] }
func (hg *Hypergraph) EdgeSize(e int) int {
	return hg.edgeOffsets[e+1] - hg.edgeOffsets[e]
}
func (hg *Hypergraph) NodeDegree(v int) int {
	return hg.nodeOffsets[v+1] - hg.nodeOffsets[v]
}

// CommunityID returns the community of v, or -1 while communities are unset.
func (hg *Hypergraph) CommunityID(v int) int {
	if hg.communityIDs == nil {
		return -1
	}
	return hg.communityIDs[v]
}

// SetCommunityIDs installs community ids for all vertices. Communities
// restrict admissible coarsening contractions; they are metadata, not part
// of the immutable incidence structure.
func (hg *Hypergraph) SetCommunityIDs(ids []int) {
	hg.communityIDs = ids
}

func (hg *Hypergraph) HasCommunities() bool { return hg.communityIDs != nil }

// FixedBlock returns the fixed block of v, or -1 for a free vertex.
func (hg *Hypergraph) FixedBlock(v int) int {
	if hg.fixedBlocks == nil {
		return -1
	}
	return hg.fixedBlocks[v]
}

func (hg *Hypergraph) SetFixedBlocks(blocks []int) { hg.fixedBlocks = blocks }
func (hg *Hypergraph) HasFixedVertices() bool      { return hg.fixedBlocks != nil }

// ForAllNodes invokes fn for every vertex, sequentially.
func (hg *Hypergraph) ForAllNodes(fn func(v int)) {
	for v := 0; v < hg.numNodes; v++ {
		fn(v)
	}
}

// ForAllEdges invokes fn for every hyperedge, sequentially.
func (hg *Hypergraph) ForAllEdges(fn func(e int)) {
	for e := 0; e < hg.numEdges; e++ {
		fn(e)
	}
}

// DoParallelForAllNodes invokes fn for every vertex on the given pool.
func (hg *Hypergraph) DoParallelForAllNodes(pool *parallel.Pool, fn func(v int)) {
	pool.For(hg.numNodes, fn)
}

// DoParallelForAllEdges invokes fn for every hyperedge on the given pool.
func (hg *Hypergraph) DoParallelForAllEdges(pool *parallel.Pool, fn func(e int)) {
	pool.For(hg.numEdges, fn)
}
