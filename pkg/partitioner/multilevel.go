package partitioner

import (
	"time"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/coarsening"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/community"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/gaincache"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/initial"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/partition"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/refinement"
)

// multilevelDriver runs the full pipeline on one hypergraph: community
// detection, coarsening, initial partitioning, uncoarsening with
// refinement, and optional v-cycles.
type multilevelDriver struct {
	ctx        *Context
	hg         *hypergraph.Hypergraph
	k          int
	maxWeights []int64
	gc         *gaincache.GainCache

	// per-phase quality snapshots, finest level last
	snapshots []metrics.Quality
}

func newMultilevelDriver(ctx *Context, hg *hypergraph.Hypergraph) *multilevelDriver {
	k := ctx.Config.K()
	lmax := metrics.MaxBlockWeight(hg.TotalWeight(), k, ctx.Config.Epsilon())
	maxWeights := make([]int64, k)
	for b := range maxWeights {
		maxWeights[b] = lmax
	}
	return &multilevelDriver{
		ctx:        ctx,
		hg:         hg,
		k:          k,
		maxWeights: maxWeights,
		gc:         gaincache.NewGainCache(hg.NumNodes(), k, ctx.Config.Objective()),
	}
}

// run executes the pipeline and returns the partitioned finest hypergraph.
func (d *multilevelDriver) run() *partition.PartitionedHypergraph {
	cfg := d.ctx.Config
	logger := d.ctx.Logger

	if cfg.CommunityDetectionEnabled() {
		start := time.Now()
		communities := community.Detect(d.hg, cfg.CommunityConfig(), d.ctx.Pool(), logger)
		d.hg.SetCommunityIDs(communities)
		logger.Info().
			Dur("time", time.Since(start)).
			Msg("community detection finished")
	}

	phg := d.multilevelCycle(nil)

	for cycle := 0; cycle < cfg.NumVCycles(); cycle++ {
		// the current partition becomes the community constraint of the
		// next full multilevel run
		part := phg.PartSnapshot()
		communities := make([]int, len(part))
		for v, b := range part {
			communities[v] = int(b)
		}
		d.hg.SetCommunityIDs(communities)
		logger.Info().Int("vcycle", cycle+1).Msg("starting v-cycle")
		phg = d.multilevelCycle(part)
	}
	return phg
}

// multilevelCycle is one coarsen → initial partition → uncoarsen pass. A
// non-nil vcyclePart seeds the coarsest partition from an existing
// assignment instead of the flat pool.
func (d *multilevelDriver) multilevelCycle(vcyclePart []int32) *partition.PartitionedHypergraph {
	cfg := d.ctx.Config
	logger := d.ctx.Logger
	pool := d.ctx.Pool()

	// ---------------- coarsening ----------------
	start := time.Now()
	coarsener := coarsening.NewCoarsener(cfg.CoarseningConfig(), d.k, pool, logger)
	stack := coarsener.Coarsen(d.hg)
	logger.Info().
		Dur("time", time.Since(start)).
		Int("levels", len(stack.Levels)).
		Msg("coarsening finished")

	// ---------------- initial partitioning ----------------
	start = time.Now()
	coarsest := stack.Coarsest()
	phg := partition.NewPartitionedHypergraph(coarsest, d.k, pool)
	if vcyclePart == nil {
		ip := initial.NewPool(cfg.InitialConfig(), pool, logger)
		ip.Partition(phg, d.maxWeights)
	} else {
		// project the v-cycle partition onto the coarsest hypergraph;
		// contractions were restricted to blocks, so any member decides
		coarsestPart := projectThroughStack(vcyclePart, stack)
		for v := 0; v < coarsest.NumNodes(); v++ {
			phg.SetOnlyNodePart(v, int(coarsestPart[v]))
		}
		phg.InitializePartition()
	}
	logger.Info().
		Dur("time", time.Since(start)).
		Int64("objective", metrics.ComputeObjective(phg, cfg.Objective())).
		Msg("initial partitioning finished")

	// ---------------- uncoarsening + refinement ----------------
	start = time.Now()
	phg = d.uncoarsen(stack, phg)
	logger.Info().
		Dur("time", time.Since(start)).
		Int64("objective", metrics.ComputeObjective(phg, cfg.Objective())).
		Float64("imbalance", metrics.Imbalance(phg)).
		Msg("refinement finished")
	return phg
}

// projectThroughStack pushes a finest-level assignment down to the coarsest
// hypergraph of the stack.
func projectThroughStack(finestPart []int32, stack *coarsening.LevelStack) []int32 {
	part := finestPart
	for _, level := range stack.Levels {
		coarse := make([]int32, level.Coarse.NumNodes())
		for fine, c := range level.Mapping {
			coarse[c] = part[fine]
		}
		part = coarse
	}
	return part
}

// uncoarsen projects the partition level by level back to the finest
// hypergraph, refining at every level.
func (d *multilevelDriver) uncoarsen(stack *coarsening.LevelStack, phg *partition.PartitionedHypergraph) *partition.PartitionedHypergraph {
	cfg := d.ctx.Config
	objective := cfg.Objective()

	d.attachGainCache(phg)
	refiners := d.buildRefiners(phg)
	d.refineLevel(phg, refiners, objective)
	d.snapshots = append(d.snapshots, metrics.Snapshot(phg, objective))

	for i := len(stack.Levels) - 1; i >= 0; i-- {
		level := stack.Levels[i]
		finer := stack.HypergraphAt(i)

		finePhg := partition.NewPartitionedHypergraph(finer, d.k, d.ctx.Pool())
		for v := 0; v < finer.NumNodes(); v++ {
			finePhg.SetOnlyNodePart(v, phg.PartID(level.Mapping[v]))
		}
		finePhg.InitializePartition()

		d.attachGainCache(finePhg)
		refiners = d.buildRefiners(finePhg)
		d.refineLevel(finePhg, refiners, objective)
		d.snapshots = append(d.snapshots, metrics.Snapshot(finePhg, objective))
		phg = finePhg
	}
	return phg
}

// attachGainCache (re)initializes the shared gain cache for a level and
// wires it into the move primitive.
func (d *multilevelDriver) attachGainCache(phg *partition.PartitionedHypergraph) {
	d.gc.Resize(phg.Hypergraph().NumNodes(), d.k)
	d.gc.Initialize(phg)
	phg.SetGainUpdater(func(upd partition.SyncEdgeUpdate) { d.gc.DeltaGainUpdate(phg, upd) })
}

func (d *multilevelDriver) buildRefiners(phg *partition.PartitionedHypergraph) []refinement.Refiner {
	cfg := d.ctx.Config
	var refiners []refinement.Refiner
	if cfg.LabelPropagationEnabled() {
		refiners = append(refiners, refinement.NewLabelPropagationRefiner(
			cfg.LabelPropagationConfig(), d.gc, d.maxWeights, d.ctx.Pool(), d.ctx.Logger))
	}
	if cfg.FMEnabled() {
		refiners = append(refiners, refinement.NewFMRefiner(
			cfg.FMConfig(), d.gc, d.maxWeights, d.ctx.Pool(), d.ctx.Logger))
	}
	if cfg.FlowEnabled() {
		refiners = append(refiners, refinement.NewNoopFlowRefiner())
	}
	return refiners
}

// refineLevel rebalances an infeasible projection, then runs every
// configured refiner once.
func (d *multilevelDriver) refineLevel(phg *partition.PartitionedHypergraph, refiners []refinement.Refiner, objective metrics.Objective) {
	infeasible := false
	for b := 0; b < d.k; b++ {
		if phg.PartWeight(b) > d.maxWeights[b] {
			infeasible = true
		}
	}
	if infeasible {
		rebalancer := refinement.NewRebalancer(d.gc, d.maxWeights, d.ctx.Logger)
		rebalancer.Rebalance(phg, objective)
	}

	m := refinement.Metrics{
		Objective: objective,
		Value:     metrics.ComputeObjective(phg, objective),
		Imbalance: metrics.Imbalance(phg),
	}
	for _, r := range refiners {
		r.Initialize(phg)
		r.Refine(phg, nil, &m, 0)
	}
}
