package refinement

import (
	"time"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/partition"
)

// Metrics carries the running objective through the refinement phases. The
// refiners update Value exactly by the sum of their per-move delta
// callbacks.
type Metrics struct {
	Objective metrics.Objective
	Value     int64
	Imbalance float64
}

// Refiner is the capability set shared by all refinement algorithms. A
// refiner is initialized once per uncoarsening level and then invoked with
// an optional seed set; an empty set means all border nodes. Refine reports
// whether it improved the objective.
type Refiner interface {
	Initialize(phg *partition.PartitionedHypergraph)
	Refine(phg *partition.PartitionedHypergraph, refinementNodes []int, m *Metrics, timeBudget time.Duration) bool
}

// FlowRefiner is the interface reserved for flow-based refinement. It works
// on extracted block pairs; the core only ever invokes it through this
// capability and ships a no-op implementation.
type FlowRefiner interface {
	Refiner
	// MaxBlockPairs bounds how many block pairs one invocation may touch.
	MaxBlockPairs() int
}

// noopFlowRefiner satisfies FlowRefiner without doing any work.
type noopFlowRefiner struct{}

func (noopFlowRefiner) Initialize(*partition.PartitionedHypergraph) {}
func (noopFlowRefiner) Refine(*partition.PartitionedHypergraph, []int, *Metrics, time.Duration) bool {
	return false
}
func (noopFlowRefiner) MaxBlockPairs() int { return 0 }

// NewNoopFlowRefiner returns the default do-nothing flow refiner.
func NewNoopFlowRefiner() FlowRefiner { return noopFlowRefiner{} }
