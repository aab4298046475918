package validation

import (
	"fmt"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/gaincache"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/partition"
)

// Result collects validation errors. An empty error list means the checked
// structure satisfies all invariants.
type Result struct {
	Valid  bool
	Errors []string
}

func (r *Result) addError(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// VerifyPartitionState checks every tracked aggregate of the partitioned
// hypergraph against a from-scratch recomputation: pin counts, block
// weights, connectivity sets, border flags and incident-cut counts. Tests
// call it after every move scenario; it is the debug-assertion layer of the
// move primitive.
func VerifyPartitionState(phg *partition.PartitionedHypergraph) Result {
	result := Result{Valid: true}
	hg := phg.Hypergraph()
	k := phg.K()

	// block weights
	expectedWeights := make([]int64, k)
	for v := 0; v < hg.NumNodes(); v++ {
		if b := phg.PartID(v); b != partition.UnassignedBlock {
			expectedWeights[b] += hg.NodeWeight(v)
		}
	}
	for b := 0; b < k; b++ {
		if got := phg.PartWeight(b); got != expectedWeights[b] {
			result.addError("block %d: tracked weight %d, recomputed %d", b, got, expectedWeights[b])
		}
	}

	// pin counts, connectivity, Σ_b pc(e,b) = |e|
	for e := 0; e < hg.NumEdges(); e++ {
		counts := make([]int, k)
		for _, v := range hg.Pins(e) {
			if b := phg.PartID(v); b != partition.UnassignedBlock {
				counts[b]++
			}
		}
		total := 0
		lambda := 0
		for b := 0; b < k; b++ {
			total += counts[b]
			if counts[b] > 0 {
				lambda++
			}
			if got := phg.PinCountInPart(e, b); got != counts[b] {
				result.addError("edge %d block %d: tracked pin count %d, recomputed %d", e, b, got, counts[b])
			}
		}
		if total != hg.EdgeSize(e) {
			result.addError("edge %d: pin counts sum to %d, size is %d", e, total, hg.EdgeSize(e))
		}
		if got := phg.Connectivity(e); got != lambda {
			result.addError("edge %d: tracked connectivity %d, recomputed %d", e, got, lambda)
		}
		set := phg.ConnectivitySet(e)
		if len(set) != lambda {
			result.addError("edge %d: connectivity set has %d blocks, expected %d", e, len(set), lambda)
		}
		for _, b := range set {
			if counts[b] == 0 {
				result.addError("edge %d: block %d in connectivity set but has no pins", e, b)
			}
		}
	}

	// border flags and incident-cut counts
	for v := 0; v < hg.NumNodes(); v++ {
		cutEdges := 0
		for _, e := range hg.IncidentEdges(v) {
			if phg.Connectivity(e) >= 2 {
				cutEdges++
			}
		}
		if got := phg.NumIncidentCutEdges(v); got != cutEdges {
			result.addError("vertex %d: tracked incident cut edges %d, recomputed %d", v, got, cutEdges)
		}
		if phg.IsBorderNode(v) != (cutEdges > 0) {
			result.addError("vertex %d: border flag %v inconsistent with %d cut edges", v, phg.IsBorderNode(v), cutEdges)
		}
	}

	return result
}

// VerifyGainCache recomputes penalty and benefit terms for every vertex and
// compares them against the cached values.
func VerifyGainCache(phg *partition.PartitionedHypergraph, gc *gaincache.GainCache, objective metrics.Objective) Result {
	result := Result{Valid: true}
	hg := phg.Hypergraph()
	k := phg.K()

	for v := 0; v < hg.NumNodes(); v++ {
		p := phg.PartID(v)
		if p == partition.UnassignedBlock {
			continue
		}
		var penalty int64
		benefit := make([]int64, k)
		for _, e := range hg.IncidentEdges(v) {
			w := hg.EdgeWeight(e)
			size := hg.EdgeSize(e)
			if objective == metrics.Cut {
				if phg.PinCountInPart(e, p) == size {
					penalty += w
				}
				for b := 0; b < k; b++ {
					if phg.PinCountInPart(e, b) == size-1 {
						benefit[b] += w
					}
				}
			} else {
				if phg.PinCountInPart(e, p) > 1 {
					penalty += w
				}
				for b := 0; b < k; b++ {
					if phg.PinCountInPart(e, b) >= 1 {
						benefit[b] += w
					}
				}
			}
		}
		if got := gc.Penalty(v); got != penalty {
			result.addError("vertex %d: cached penalty %d, recomputed %d", v, got, penalty)
		}
		for b := 0; b < k; b++ {
			if got := gc.Benefit(v, b); got != benefit[b] {
				result.addError("vertex %d block %d: cached benefit %d, recomputed %d", v, b, got, benefit[b])
			}
		}
	}

	return result
}
