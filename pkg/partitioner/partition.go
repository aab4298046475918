package partitioner

import (
	"errors"
	"fmt"
	"time"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/partition"
)

// Precondition errors returned by Partition before any work begins.
var (
	ErrInvalidBlockCount = errors.New("partitioner: number of blocks must be at least 2")
	ErrInvalidEpsilon    = errors.New("partitioner: imbalance tolerance must be non-negative")
	ErrEmptyHypergraph   = errors.New("partitioner: hypergraph has no vertices")
	ErrInvalidInput      = errors.New("partitioner: malformed CSR input")
)

// CSRInput is the wire format of the public partition entry: hyperedges in
// compressed adjacency form, mirroring the external C-style API.
type CSRInput struct {
	NumNodes      int
	NumEdges      int
	EdgeOffsets   []int   // length NumEdges+1
	EdgePins      []int   // length EdgeOffsets[NumEdges]
	EdgeWeights   []int64 // optional, length NumEdges
	VertexWeights []int64 // optional, length NumNodes
}

// Result is the outcome of one partitioning call.
type Result struct {
	Partition []int32         `json:"partition"`
	Objective int64           `json:"objective"`
	Quality   metrics.Quality `json:"quality"`
	RuntimeMS int64           `json:"runtime_ms"`

	// Snapshots holds one quality record per refined level, coarsest
	// first.
	Snapshots []metrics.Quality `json:"snapshots,omitempty"`
}

// Partition builds the hypergraph from CSR input and runs the multilevel
// pipeline under the context's configuration. It either returns a partition
// satisfying the structural invariants or an error before any work begins;
// there is no partial success.
func Partition(ctx *Context, input CSRInput) (*Result, error) {
	start := time.Now()
	cfg := ctx.Config

	if cfg.K() < 2 {
		return nil, ErrInvalidBlockCount
	}
	if cfg.Epsilon() < 0 {
		return nil, ErrInvalidEpsilon
	}
	if input.NumNodes <= 0 {
		return nil, ErrEmptyHypergraph
	}
	if len(input.EdgeOffsets) != input.NumEdges+1 {
		return nil, fmt.Errorf("%w: %d edge offsets for %d edges", ErrInvalidInput, len(input.EdgeOffsets), input.NumEdges)
	}
	if input.NumEdges > 0 && len(input.EdgePins) != input.EdgeOffsets[input.NumEdges] {
		return nil, fmt.Errorf("%w: %d pins, offsets end at %d", ErrInvalidInput, len(input.EdgePins), input.EdgeOffsets[input.NumEdges])
	}

	pinLists := make([][]int, input.NumEdges)
	for e := 0; e < input.NumEdges; e++ {
		pinLists[e] = input.EdgePins[input.EdgeOffsets[e]:input.EdgeOffsets[e+1]]
	}
	hg, err := hypergraph.Build(hypergraph.BuildConfig{
		Stable:               cfg.IsDeterministic(),
		RemoveSinglePinEdges: true,
	}, input.NumNodes, pinLists, input.EdgeWeights, input.VertexWeights, ctx.Pool())
	if err != nil {
		return nil, fmt.Errorf("partitioner: %w", err)
	}

	phg, driver, err := runPipeline(ctx, hg)
	if err != nil {
		return nil, err
	}

	objective := cfg.Objective()
	result := &Result{
		Partition: phg.PartSnapshot(),
		Objective: metrics.ComputeObjective(phg, objective),
		Quality:   metrics.Snapshot(phg, objective),
		RuntimeMS: time.Since(start).Milliseconds(),
		Snapshots: driver.snapshots,
	}
	return result, nil
}

// PartitionHypergraph runs the multilevel pipeline on an already-built
// hypergraph. Callers that construct hypergraphs themselves (tests, the
// CLI after parsing) enter here.
func PartitionHypergraph(ctx *Context, hg *hypergraph.Hypergraph) (*partition.PartitionedHypergraph, error) {
	phg, _, err := runPipeline(ctx, hg)
	return phg, err
}

func runPipeline(ctx *Context, hg *hypergraph.Hypergraph) (*partition.PartitionedHypergraph, *multilevelDriver, error) {
	cfg := ctx.Config
	if cfg.K() < 2 {
		return nil, nil, ErrInvalidBlockCount
	}
	if cfg.Epsilon() < 0 {
		return nil, nil, ErrInvalidEpsilon
	}
	if hg.NumNodes() == 0 {
		return nil, nil, ErrEmptyHypergraph
	}
	if !cfg.Objective().Valid() {
		return nil, nil, fmt.Errorf("partitioner: unknown objective %q", cfg.Objective())
	}

	ctx.Logger.Info().
		Int("nodes", hg.NumNodes()).
		Int("edges", hg.NumEdges()).
		Int("pins", hg.NumPins()).
		Int("k", cfg.K()).
		Float64("epsilon", cfg.Epsilon()).
		Str("objective", string(cfg.Objective())).
		Msg("starting multilevel partitioning")

	driver := newMultilevelDriver(ctx, hg)
	return driver.run(), driver, nil
}
