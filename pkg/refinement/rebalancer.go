package refinement

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/gaincache"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/partition"
)

// Rebalancer restores the balance constraint by greedily moving the
// lowest-loss vertices out of overweight blocks. It is invoked by the
// initial-partitioning pool, by unconstrained FM after a search round, and
// by the uncoarsener when a projected partition is infeasible.
type Rebalancer struct {
	gc         *gaincache.GainCache
	maxWeights []int64
	logger     zerolog.Logger
}

func NewRebalancer(gc *gaincache.GainCache, maxWeights []int64, logger zerolog.Logger) *Rebalancer {
	return &Rebalancer{gc: gc, maxWeights: maxWeights, logger: logger}
}

// Rebalance moves vertices until no block exceeds its maximum weight or no
// admissible move remains. It returns the exact objective delta of the
// moves it committed (positive when rebalancing cost quality) and whether
// the partition is balanced afterwards.
func (r *Rebalancer) Rebalance(phg *partition.PartitionedHypergraph, objective metrics.Objective) (int64, bool) {
	acc := metrics.NewDeltaAccumulator(objective)

	for pass := 0; pass < phg.K(); pass++ {
		overweight := make([]int, 0, phg.K())
		for b := 0; b < phg.K(); b++ {
			if phg.PartWeight(b) > r.maxWeights[b] {
				overweight = append(overweight, b)
			}
		}
		if len(overweight) == 0 {
			return acc.Delta(), true
		}

		moves := 0
		for _, b := range overweight {
			moves += r.drainBlock(phg, b, acc)
		}
		if moves == 0 {
			break
		}
	}

	balanced := true
	for b := 0; b < phg.K(); b++ {
		if phg.PartWeight(b) > r.maxWeights[b] {
			balanced = false
		}
	}
	if !balanced {
		r.logger.Warn().Msg("rebalancer could not restore the balance constraint")
	}
	return acc.Delta(), balanced
}

// drainBlock moves the cheapest vertices out of one overweight block until
// it fits or candidates run out.
func (r *Rebalancer) drainBlock(phg *partition.PartitionedHypergraph, block int, acc *metrics.DeltaAccumulator) int {
	hg := phg.Hypergraph()

	type candidate struct {
		vertex int
		target int
		gain   int64
	}
	candidates := make([]candidate, 0, 256)
	for v := 0; v < hg.NumNodes(); v++ {
		if phg.PartID(v) != block {
			continue
		}
		best, gain := r.bestTarget(phg, v, block)
		if best >= 0 {
			candidates = append(candidates, candidate{vertex: v, target: best, gain: gain})
		}
	}
	// highest gain (lowest loss) first; ties prefer lighter vertices so the
	// block sheds as little useful weight as possible
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].gain != candidates[j].gain {
			return candidates[i].gain > candidates[j].gain
		}
		return hg.NodeWeight(candidates[i].vertex) < hg.NodeWeight(candidates[j].vertex)
	})

	moves := 0
	for _, c := range candidates {
		if phg.PartWeight(block) <= r.maxWeights[block] {
			break
		}
		// the cached target may no longer fit; fall back to the current best
		target, _ := r.bestTarget(phg, c.vertex, block)
		if target < 0 {
			continue
		}
		if phg.ChangeNodePart(c.vertex, block, target, r.maxWeights[target], acc.Func()) {
			r.gc.RecomputePenalty(phg, c.vertex)
			moves++
		}
	}
	return moves
}

// bestTarget picks the target block with the highest cached gain among the
// blocks that can still take v's weight.
func (r *Rebalancer) bestTarget(phg *partition.PartitionedHypergraph, v, from int) (int, int64) {
	w := phg.Hypergraph().NodeWeight(v)
	best := -1
	var bestGain int64
	for b := 0; b < phg.K(); b++ {
		if b == from || phg.PartWeight(b)+w > r.maxWeights[b] {
			continue
		}
		gain := r.gc.Gain(v, b)
		if best == -1 || gain > bestGain ||
			(gain == bestGain && phg.PartWeight(b) < phg.PartWeight(best)) {
			best = b
			bestGain = gain
		}
	}
	return best, bestGain
}
