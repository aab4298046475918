package initial

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/gaincache"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/partition"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/refinement"
)

// Config controls the initial-partitioning pool.
type Config struct {
	// RunsPerAlgorithm is how many seeded attempts each flat algorithm gets.
	RunsPerAlgorithm int
	Objective        metrics.Objective
	Epsilon          float64
	Deterministic    bool
	Seed             int64
}

// DefaultConfig returns the pool configuration of the default presets.
func DefaultConfig() Config {
	return Config{RunsPerAlgorithm: 4, Objective: metrics.Km1, Epsilon: 0.03}
}

// algorithm is one flat partitioner of the pool.
type algorithm struct {
	name string
	run  func(ctx *flatContext) []int32
}

// flatContext bundles what one pool candidate needs.
type flatContext struct {
	hg         *hypergraph.Hypergraph
	k          int
	maxWeights []int64
	seed       int64
	objective  metrics.Objective
}

// candidate is one produced partition with its lexicographic score.
type candidate struct {
	name      string
	part      []int32
	value     int64
	imbalance float64
	feasible  bool
}

// Pool runs the flat partitioners in parallel on the coarsest hypergraph
// and applies the best candidate, rebalancing it if infeasible.
type Pool struct {
	cfg    Config
	pool   *parallel.Pool
	logger zerolog.Logger
}

func NewPool(cfg Config, pool *parallel.Pool, logger zerolog.Logger) *Pool {
	if pool == nil {
		pool = parallel.Default()
	}
	return &Pool{cfg: cfg, pool: pool, logger: logger}
}

// Partition computes the initial partition on phg. The winning candidate is
// installed with InitializePartition; if it violates the balance constraint
// a greedy rebalance runs on top of it.
func (p *Pool) Partition(phg *partition.PartitionedHypergraph, maxWeights []int64) {
	hg := phg.Hypergraph()
	k := phg.K()

	algorithms := []algorithm{
		{name: "random", run: randomPartition},
		{name: "bfs", run: bfsPartition},
		{name: "greedy_growing", run: greedyGrowingPartition},
		{name: "round_robin", run: roundRobinPartition},
		{name: "label_propagation", run: labelPropagationPartition},
	}

	runs := p.cfg.RunsPerAlgorithm
	if runs < 1 {
		runs = 1
	}

	candidates := make([]candidate, len(algorithms)*runs)
	var wg sync.WaitGroup
	for a, alg := range algorithms {
		for r := 0; r < runs; r++ {
			wg.Add(1)
			go func(slot int, alg algorithm, seed int64) {
				defer wg.Done()
				ctx := &flatContext{
					hg:         hg,
					k:          k,
					maxWeights: maxWeights,
					seed:       seed,
					objective:  p.cfg.Objective,
				}
				part := alg.run(ctx)
				candidates[slot] = p.evaluate(alg.name, hg, k, part, maxWeights)
			}(a*runs+r, alg, p.cfg.Seed+int64(a*runs+r))
		}
	}
	wg.Wait()

	best := 0
	for i := 1; i < len(candidates); i++ {
		if better(candidates[i], candidates[best]) {
			best = i
		}
	}
	winner := candidates[best]
	p.logger.Info().
		Str("algorithm", winner.name).
		Int64("objective", winner.value).
		Float64("imbalance", winner.imbalance).
		Bool("feasible", winner.feasible).
		Msg("initial partitioning winner")

	for v := 0; v < hg.NumNodes(); v++ {
		phg.SetOnlyNodePart(v, int(winner.part[v]))
	}
	phg.InitializePartition()

	if !winner.feasible {
		gc := gaincache.NewGainCache(hg.NumNodes(), k, p.cfg.Objective)
		gc.Initialize(phg)
		phg.SetGainUpdater(func(upd partition.SyncEdgeUpdate) { gc.DeltaGainUpdate(phg, upd) })
		rebalancer := refinement.NewRebalancer(gc, maxWeights, p.logger)
		rebalancer.Rebalance(phg, p.cfg.Objective)
		phg.SetGainUpdater(nil)
	}
}

// evaluate scores one candidate on a scratch overlay.
func (p *Pool) evaluate(name string, hg *hypergraph.Hypergraph, k int, part []int32, maxWeights []int64) candidate {
	scratch := partition.NewPartitionedHypergraph(hg, k, p.pool)
	for v := 0; v < hg.NumNodes(); v++ {
		scratch.SetOnlyNodePart(v, int(part[v]))
	}
	scratch.InitializePartition()
	feasible := true
	for b := 0; b < k; b++ {
		if scratch.PartWeight(b) > maxWeights[b] {
			feasible = false
		}
	}
	return candidate{
		name:      name,
		part:      part,
		value:     metrics.ComputeObjective(scratch, p.cfg.Objective),
		imbalance: metrics.Imbalance(scratch),
		feasible:  feasible,
	}
}

// better orders candidates lexicographically: feasibility, objective, then
// imbalance.
func better(a, b candidate) bool {
	if a.feasible != b.feasible {
		return a.feasible
	}
	if a.value != b.value {
		return a.value < b.value
	}
	return a.imbalance < b.imbalance
}
