package metrics

import (
	"math"
	"sync/atomic"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/partition"
)

// Objective selects the quality function the partitioner minimizes.
type Objective string

const (
	// Km1 is the connectivity metric Σ_e w(e)·(λ(e)−1).
	Km1 Objective = "km1"
	// Cut is the total weight of hyperedges spanning more than one block.
	Cut Objective = "cut"
)

// Valid reports whether o names a known objective.
func (o Objective) Valid() bool { return o == Km1 || o == Cut }

// ComputeKm1 evaluates the connectivity metric of the current partition.
func ComputeKm1(phg *partition.PartitionedHypergraph) int64 {
	var km1 int64
	hg := phg.Hypergraph()
	for e := 0; e < hg.NumEdges(); e++ {
		km1 += hg.EdgeWeight(e) * int64(phg.Connectivity(e)-1)
	}
	return km1
}

// ComputeCut evaluates the cut metric of the current partition.
func ComputeCut(phg *partition.PartitionedHypergraph) int64 {
	var cut int64
	hg := phg.Hypergraph()
	for e := 0; e < hg.NumEdges(); e++ {
		if phg.Connectivity(e) >= 2 {
			cut += hg.EdgeWeight(e)
		}
	}
	return cut
}

// ComputeObjective evaluates the selected objective.
func ComputeObjective(phg *partition.PartitionedHypergraph, o Objective) int64 {
	if o == Cut {
		return ComputeCut(phg)
	}
	return ComputeKm1(phg)
}

// PerfectBalance returns ⌈w(V)/k⌉, the ideal block weight.
func PerfectBalance(totalWeight int64, k int) int64 {
	return (totalWeight + int64(k) - 1) / int64(k)
}

// MaxBlockWeight returns the balance constraint L_max = (1+ε)·⌈w(V)/k⌉.
func MaxBlockWeight(totalWeight int64, k int, epsilon float64) int64 {
	return int64((1.0 + epsilon) * float64(PerfectBalance(totalWeight, k)))
}

// Imbalance returns max_b W[b]/⌈w(V)/k⌉ − 1.
func Imbalance(phg *partition.PartitionedHypergraph) float64 {
	ideal := PerfectBalance(phg.Hypergraph().TotalWeight(), phg.K())
	if ideal == 0 {
		return 0
	}
	var heaviest int64
	for b := 0; b < phg.K(); b++ {
		if w := phg.PartWeight(b); w > heaviest {
			heaviest = w
		}
	}
	return float64(heaviest)/float64(ideal) - 1.0
}

// DeltaForUpdate returns the exact objective change contributed by one
// synchronized edge update. Summing it over the updates of a move yields the
// move's objective delta.
func DeltaForUpdate(o Objective, upd partition.SyncEdgeUpdate) int64 {
	switch o {
	case Cut:
		if upd.EdgeSize < 2 {
			return 0
		}
		if upd.PinCountToAfter == int32(upd.EdgeSize) {
			return -upd.EdgeWeight // edge became internal to the target
		}
		if upd.PinCountToAfter == 1 && upd.PinCountFromAfter == int32(upd.EdgeSize)-1 {
			return upd.EdgeWeight // edge was internal to the source
		}
		return 0
	default: // km1
		var delta int64
		if upd.PinCountToAfter == 1 {
			delta += upd.EdgeWeight
		}
		if upd.PinCountFromAfter == 0 {
			delta -= upd.EdgeWeight
		}
		return delta
	}
}

// DeltaAccumulator sums per-move objective deltas across concurrent moves.
type DeltaAccumulator struct {
	objective Objective
	delta     atomic.Int64
}

func NewDeltaAccumulator(o Objective) *DeltaAccumulator {
	return &DeltaAccumulator{objective: o}
}

// Func returns the DeltaFunc to pass into ChangeNodePart.
func (a *DeltaAccumulator) Func() partition.DeltaFunc {
	return func(upd partition.SyncEdgeUpdate) {
		a.delta.Add(DeltaForUpdate(a.objective, upd))
	}
}

func (a *DeltaAccumulator) Delta() int64 { return a.delta.Load() }
func (a *DeltaAccumulator) Reset()       { a.delta.Store(0) }

// Quality is a snapshot of partition quality, captured after each phase.
type Quality struct {
	Objective Objective `json:"objective"`
	Value     int64     `json:"value"`
	Cut       int64     `json:"cut"`
	Km1       int64     `json:"km1"`
	Imbalance float64   `json:"imbalance"`

	BlockWeightMean   float64 `json:"block_weight_mean"`
	BlockWeightStddev float64 `json:"block_weight_stddev"`
	BlockWeightMin    int64   `json:"block_weight_min"`
	BlockWeightMax    int64   `json:"block_weight_max"`
}

// Snapshot computes a full quality report for the current partition.
func Snapshot(phg *partition.PartitionedHypergraph, o Objective) Quality {
	weights := make([]float64, phg.K())
	for b := 0; b < phg.K(); b++ {
		weights[b] = float64(phg.PartWeight(b))
	}
	mean, std := stat.MeanStdDev(weights, nil)
	if math.IsNaN(std) {
		std = 0
	}
	q := Quality{
		Objective:         o,
		Cut:               ComputeCut(phg),
		Km1:               ComputeKm1(phg),
		Imbalance:         Imbalance(phg),
		BlockWeightMean:   mean,
		BlockWeightStddev: std,
		BlockWeightMin:    int64(floats.Min(weights)),
		BlockWeightMax:    int64(floats.Max(weights)),
	}
	if o == Cut {
		q.Value = q.Cut
	} else {
		q.Value = q.Km1
	}
	return q
}
