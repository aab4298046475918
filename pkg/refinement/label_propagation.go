package refinement

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/gaincache"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/partition"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/utils"
)

// LabelPropagationConfig controls the label-propagation refiner.
type LabelPropagationConfig struct {
	MaxIterations int
	// Rebalancing activates all nodes instead of only border nodes, so
	// overweight blocks can shed interior vertices.
	Rebalancing bool
	// AllowZeroGainMoves admits gain-0 moves into lighter blocks.
	AllowZeroGainMoves bool
	// Deterministic processes the active set sequentially in seeded order.
	Deterministic bool
	Seed          int64
}

// LabelPropagationRefiner performs rounds of parallel greedy single-vertex
// moves over the border nodes. Vertices adjacent to a successful move are
// reactivated for the next round; the refiner stops when a round makes no
// move.
type LabelPropagationRefiner struct {
	cfg        LabelPropagationConfig
	gc         *gaincache.GainCache
	maxWeights []int64
	pool       *parallel.Pool
	logger     zerolog.Logger
}

func NewLabelPropagationRefiner(cfg LabelPropagationConfig, gc *gaincache.GainCache, maxWeights []int64, pool *parallel.Pool, logger zerolog.Logger) *LabelPropagationRefiner {
	if pool == nil {
		pool = parallel.Default()
	}
	return &LabelPropagationRefiner{cfg: cfg, gc: gc, maxWeights: maxWeights, pool: pool, logger: logger}
}

func (lp *LabelPropagationRefiner) Initialize(phg *partition.PartitionedHypergraph) {
	// gains are served by the shared gain cache; nothing to precompute
}

// Refine runs label propagation until convergence, the iteration bound, or
// the time budget. It returns true when the objective improved.
func (lp *LabelPropagationRefiner) Refine(phg *partition.PartitionedHypergraph, refinementNodes []int, m *Metrics, timeBudget time.Duration) bool {
	start := time.Now()
	hg := phg.Hypergraph()
	n := hg.NumNodes()

	active := refinementNodes
	if len(active) == 0 {
		for v := 0; v < n; v++ {
			if lp.cfg.Rebalancing || phg.IsBorderNode(v) {
				active = append(active, v)
			}
		}
	}

	acc := metrics.NewDeltaAccumulator(m.Objective)
	inNextRound := make([]atomic.Bool, n)

	totalMoves := 0
	for round := 0; round < lp.cfg.MaxIterations && len(active) > 0; round++ {
		if timeBudget > 0 && time.Since(start) > timeBudget {
			break
		}

		order := utils.SeededPermutation(len(active), lp.cfg.Seed+int64(round))
		var roundMoves atomic.Int64
		var nextActive []int
		var nextMu sync.Mutex

		processVertex := func(v int) {
			from := phg.PartID(v)
			best, gain := lp.bestMove(phg, v, from)
			if best < 0 {
				return
			}
			if gain < 0 || (gain == 0 && !lp.zeroGainAdmissible(phg, v, from, best)) {
				return
			}
			if !phg.ChangeNodePart(v, from, best, lp.maxWeights[best], acc.Func()) {
				return
			}
			lp.gc.RecomputePenalty(phg, v)
			roundMoves.Add(1)
			// activate the pins of the now-affected cut edges
			var local []int
			for _, e := range hg.IncidentEdges(v) {
				if phg.Connectivity(e) < 2 {
					continue
				}
				for _, pin := range hg.Pins(e) {
					if pin != v && inNextRound[pin].CompareAndSwap(false, true) {
						local = append(local, pin)
					}
				}
			}
			if len(local) > 0 {
				nextMu.Lock()
				nextActive = append(nextActive, local...)
				nextMu.Unlock()
			}
		}

		if lp.cfg.Deterministic {
			for _, i := range order {
				processVertex(active[i])
			}
		} else {
			lp.pool.For(len(active), func(i int) {
				processVertex(active[order[i]])
			})
		}

		totalMoves += int(roundMoves.Load())
		lp.logger.Debug().
			Int("round", round).
			Int64("moves", roundMoves.Load()).
			Int64("delta", acc.Delta()).
			Msg("label propagation round")

		if roundMoves.Load() == 0 {
			break
		}
		active = nextActive
		for _, v := range active {
			inNextRound[v].Store(false)
		}
	}

	delta := acc.Delta()
	m.Value += delta
	m.Imbalance = metrics.Imbalance(phg)
	return delta < 0
}

// bestMove returns the admissible target block with the highest cached gain
// for v, or -1.
func (lp *LabelPropagationRefiner) bestMove(phg *partition.PartitionedHypergraph, v, from int) (int, int64) {
	w := phg.Hypergraph().NodeWeight(v)
	best := -1
	var bestGain int64
	for b := 0; b < phg.K(); b++ {
		if b == from {
			continue
		}
		if phg.PartWeight(b)+w > lp.maxWeights[b] {
			continue
		}
		gain := lp.gc.Gain(v, b)
		if best == -1 || gain > bestGain {
			best = b
			bestGain = gain
		}
	}
	return best, bestGain
}

// zeroGainAdmissible admits a zero-gain move only when it strictly improves
// the balance between the two blocks.
func (lp *LabelPropagationRefiner) zeroGainAdmissible(phg *partition.PartitionedHypergraph, v, from, to int) bool {
	if !lp.cfg.AllowZeroGainMoves {
		return false
	}
	w := phg.Hypergraph().NodeWeight(v)
	return phg.PartWeight(to)+w < phg.PartWeight(from)
}
