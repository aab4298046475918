package gaincache

import (
	"sync/atomic"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/partition"
)

// DefaultHighDegreeThreshold bounds the per-pin work of a delta update.
// Updates for larger hyperedges skip the pin iteration, so the terms of their
// pins stay stale until the vertex is recomputed (RecomputePenalty after its
// own move, or a full Initialize).
const DefaultHighDegreeThreshold = 10000

// GainCache stores, for every vertex v in block p(v), the penalty term
// P(v) (loss for leaving p(v)) and a benefit term B(v, b) per block, so the
// move gain Δ(v→b) = B(v,b) − P(v) is a constant-time lookup. Terms are
// maintained incrementally from the SyncEdgeUpdate stream of the
// partitioned hypergraph.
type GainCache struct {
	k         int
	objective metrics.Objective
	penalty   []atomic.Int64 // per vertex
	benefit   []atomic.Int64 // vertex*k + block

	// HighDegreeThreshold caps the edge size for which delta updates walk
	// the pin list.
	HighDegreeThreshold int
}

// NewGainCache allocates a cache for the given vertex count and k.
func NewGainCache(numNodes, k int, objective metrics.Objective) *GainCache {
	return &GainCache{
		k:                   k,
		objective:           objective,
		penalty:             make([]atomic.Int64, numNodes),
		benefit:             make([]atomic.Int64, numNodes*k),
		HighDegreeThreshold: DefaultHighDegreeThreshold,
	}
}

// Resize reallocates for a new (numNodes, k). The cache is reused across
// uncoarsening levels; with k unchanged it only grows, while a change of k
// reallocates at the new size.
func (gc *GainCache) Resize(numNodes, k int) {
	if k != gc.k || numNodes*k > len(gc.benefit) {
		gc.k = k
		gc.penalty = make([]atomic.Int64, numNodes)
		gc.benefit = make([]atomic.Int64, numNodes*k)
	}
}

// Free drops the cached terms.
func (gc *GainCache) Free() {
	gc.penalty = nil
	gc.benefit = nil
}

// Initialize computes all penalty and benefit terms from the current
// partition, in parallel over vertices.
func (gc *GainCache) Initialize(phg *partition.PartitionedHypergraph) {
	hg := phg.Hypergraph()
	gc.Resize(hg.NumNodes(), phg.K())
	phg.Pool().For(hg.NumNodes(), func(v int) {
		gc.recomputeVertex(phg, v)
	})
}

func (gc *GainCache) recomputeVertex(phg *partition.PartitionedHypergraph, v int) {
	hg := phg.Hypergraph()
	p := phg.PartID(v)
	var penalty int64
	benefit := make([]int64, gc.k)
	for _, e := range hg.IncidentEdges(v) {
		w := hg.EdgeWeight(e)
		size := hg.EdgeSize(e)
		switch gc.objective {
		case metrics.Cut:
			if phg.PinCountInPart(e, p) == size {
				penalty += w
			}
			for b := 0; b < gc.k; b++ {
				if phg.PinCountInPart(e, b) == size-1 {
					benefit[b] += w
				}
			}
		default: // km1
			// The penalty counts incident edges NOT left behind when v
			// leaves p, so that Benefit(v,b) − Penalty(v) is exactly the
			// km1 decrease of the move.
			if phg.PinCountInPart(e, p) > 1 {
				penalty += w
			}
			for b := 0; b < gc.k; b++ {
				if phg.PinCountInPart(e, b) >= 1 {
					benefit[b] += w
				}
			}
		}
	}
	gc.penalty[v].Store(penalty)
	for b := 0; b < gc.k; b++ {
		gc.benefit[v*gc.k+b].Store(benefit[b])
	}
}

// Penalty returns P(v).
func (gc *GainCache) Penalty(v int) int64 { return gc.penalty[v].Load() }

// Benefit returns B(v, b).
func (gc *GainCache) Benefit(v, b int) int64 { return gc.benefit[v*gc.k+b].Load() }

// Gain returns the cached gain Δ(v → to) = B(v,to) − P(v).
func (gc *GainCache) Gain(v, to int) int64 {
	return gc.Benefit(v, to) - gc.Penalty(v)
}

// RecomputePenalty refreshes the terms of a vertex after it changed blocks.
// The benefit terms are block-indexed and survive the vertex's own move; the
// penalty term is tied to p(v) and must be recomputed.
func (gc *GainCache) RecomputePenalty(phg *partition.PartitionedHypergraph, v int) {
	gc.recomputeVertex(phg, v)
}

// DeltaGainUpdate applies the incremental update rule for one committed move
// on one incident hyperedge. It must be invoked exactly once per
// SyncEdgeUpdate; the partitioned hypergraph guarantees this through the
// registered gain updater. Each term transition is a single atomic addition.
func (gc *GainCache) DeltaGainUpdate(phg *partition.PartitionedHypergraph, upd partition.SyncEdgeUpdate) {
	if upd.EdgeSize > gc.HighDegreeThreshold {
		return
	}
	if gc.objective == metrics.Cut {
		gc.deltaGainUpdateCut(phg, upd)
		return
	}
	w := upd.EdgeWeight
	f, t := upd.From, upd.To
	pf, pt := upd.PinCountFromAfter, upd.PinCountToAfter
	for _, v := range phg.Hypergraph().Pins(upd.Edge) {
		pv := phg.PartID(v)
		if pt == 1 {
			gc.benefit[v*gc.k+t].Add(w)
		}
		if pf == 0 {
			gc.benefit[v*gc.k+f].Add(-w)
		}
		if pf == 1 && pv == f {
			gc.penalty[v].Add(-w)
		}
		if pt == 2 && pv == t {
			gc.penalty[v].Add(w)
		}
	}
}

// deltaGainUpdateCut mirrors the km1 rule for the cut objective, where the
// penalty tracks pc(e, p(v)) = |e| and the benefit tracks pc(e, b) = |e|−1.
func (gc *GainCache) deltaGainUpdateCut(phg *partition.PartitionedHypergraph, upd partition.SyncEdgeUpdate) {
	w := upd.EdgeWeight
	f, t := upd.From, upd.To
	size := int32(upd.EdgeSize)
	pf, pt := upd.PinCountFromAfter, upd.PinCountToAfter
	for _, v := range phg.Hypergraph().Pins(upd.Edge) {
		pv := phg.PartID(v)
		if pt == size-1 {
			gc.benefit[v*gc.k+t].Add(w)
		}
		if pt == size {
			gc.benefit[v*gc.k+t].Add(-w)
			if pv == t {
				gc.penalty[v].Add(w)
			}
		}
		if pf == size-1 {
			gc.benefit[v*gc.k+f].Add(w)
			if pv == f {
				gc.penalty[v].Add(-w)
			}
		}
		if pf == size-2 {
			gc.benefit[v*gc.k+f].Add(-w)
		}
	}
}
