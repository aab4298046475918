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

// FMStrategy selects how a local search treats the balance constraint.
type FMStrategy string

const (
	// Constrained refuses moves that would violate the maximum block
	// weights.
	Constrained FMStrategy = "constrained"
	// Unconstrained admits temporarily overweight targets; the penalty
	// rebalancer restores balance after each round and its cost is charged
	// against the reported improvement.
	Unconstrained FMStrategy = "unconstrained"
)

// FMConfig controls the localized FM refiner.
type FMConfig struct {
	Strategy FMStrategy
	// MaxRounds bounds the number of multi-start rounds per Refine call.
	MaxRounds int
	// AdaptiveStopMoves ends a local search after this many consecutive
	// applied moves without a new best prefix.
	AdaptiveStopMoves int
	// SeedsPerSearch is how many border seeds one search task claims up
	// front.
	SeedsPerSearch int
	// TimeLimitFactor scales the per-round time budget
	// max(5s, factor · k · previous round time).
	TimeLimitFactor float64
	// MinImprovementFraction stops the round loop when a round improves the
	// objective by less than this fraction.
	MinImprovementFraction float64
	Deterministic          bool
	Seed                   int64
}

// DefaultFMConfig returns the configuration of the default presets.
func DefaultFMConfig() FMConfig {
	return FMConfig{
		Strategy:               Constrained,
		MaxRounds:              10,
		AdaptiveStopMoves:      350,
		SeedsPerSearch:         25,
		TimeLimitFactor:        0.25,
		MinImprovementFraction: 0.0025,
	}
}

// vertex states in the shared node tracker
const (
	nodeUnclaimed int32 = iota
	nodeClaimed
	nodeMoved
)

// FMRefiner runs localized, multi-start FM: parallel search tasks claim
// disjoint border regions through a CAS node tracker, expand them move by
// move through a two-level priority queue, and roll back to the best seen
// prefix when a search ends.
type FMRefiner struct {
	cfg        FMConfig
	gc         *gaincache.GainCache
	maxWeights []int64
	pool       *parallel.Pool
	logger     zerolog.Logger

	tracker []atomic.Int32
}

func NewFMRefiner(cfg FMConfig, gc *gaincache.GainCache, maxWeights []int64, pool *parallel.Pool, logger zerolog.Logger) *FMRefiner {
	if pool == nil {
		pool = parallel.Default()
	}
	return &FMRefiner{cfg: cfg, gc: gc, maxWeights: maxWeights, pool: pool, logger: logger}
}

func (fm *FMRefiner) Initialize(phg *partition.PartitionedHypergraph) {
	n := phg.Hypergraph().NumNodes()
	if len(fm.tracker) < n {
		fm.tracker = make([]atomic.Int32, n)
	}
}

// Refine runs FM rounds until the improvement stagnates, MaxRounds is
// reached, or the time budget runs out. It returns true when the objective
// improved.
func (fm *FMRefiner) Refine(phg *partition.PartitionedHypergraph, refinementNodes []int, m *Metrics, timeBudget time.Duration) bool {
	start := time.Now()
	var totalDelta int64
	prevRoundTime := time.Duration(0)

	for round := 0; round < fm.cfg.MaxRounds; round++ {
		roundBudget := 5 * time.Second
		if adaptive := time.Duration(fm.cfg.TimeLimitFactor * float64(phg.K()) * float64(prevRoundTime)); adaptive > roundBudget {
			roundBudget = adaptive
		}
		if timeBudget > 0 {
			if remaining := timeBudget - time.Since(start); remaining <= 0 {
				break
			} else if remaining < roundBudget {
				roundBudget = remaining
			}
		}

		roundStart := time.Now()
		roundDelta := fm.refinementRound(phg, refinementNodes, m.Objective, roundBudget, round)
		prevRoundTime = time.Since(roundStart)
		totalDelta += roundDelta

		fm.logger.Debug().
			Int("round", round).
			Int64("delta", roundDelta).
			Dur("time", prevRoundTime).
			Msg("fm round")

		if roundDelta >= 0 {
			break
		}
		if m.Value > 0 && float64(-roundDelta) < fm.cfg.MinImprovementFraction*float64(m.Value) {
			break
		}
	}

	m.Value += totalDelta
	m.Imbalance = metrics.Imbalance(phg)
	return totalDelta < 0
}

// refinementRound seeds localized searches on the border and runs them in
// parallel. It returns the committed objective delta of the round.
func (fm *FMRefiner) refinementRound(phg *partition.PartitionedHypergraph, refinementNodes []int, objective metrics.Objective, budget time.Duration, round int) int64 {
	hg := phg.Hypergraph()
	n := hg.NumNodes()
	for v := 0; v < n; v++ {
		fm.tracker[v].Store(nodeUnclaimed)
	}

	seeds := refinementNodes
	if len(seeds) == 0 {
		for v := 0; v < n; v++ {
			if phg.IsBorderNode(v) {
				seeds = append(seeds, v)
			}
		}
	}
	if len(seeds) == 0 {
		return 0
	}

	order := utils.SeededPermutation(len(seeds), fm.cfg.Seed+int64(round))
	numTasks := fm.pool.NumWorkers()
	if fm.cfg.Deterministic {
		numTasks = 1
	}

	var cursor atomic.Int64
	nextSeeds := func(buf []int) []int {
		buf = buf[:0]
		for len(buf) < fm.cfg.SeedsPerSearch {
			i := int(cursor.Add(1)) - 1
			if i >= len(seeds) {
				break
			}
			s := seeds[order[i]]
			if phg.IsBorderNode(s) && fm.tracker[s].CompareAndSwap(nodeUnclaimed, nodeClaimed) {
				buf = append(buf, s)
			}
		}
		return buf
	}

	deadline := time.Now().Add(budget)
	var roundDelta atomic.Int64
	var wg sync.WaitGroup
	wg.Add(numTasks)
	for t := 0; t < numTasks; t++ {
		go func() {
			defer wg.Done()
			search := newLocalSearch(fm, phg, objective)
			var buf []int
			for {
				buf = nextSeeds(buf)
				if len(buf) == 0 {
					return
				}
				roundDelta.Add(search.run(buf, deadline))
				if time.Now().After(deadline) {
					return
				}
			}
		}()
	}
	wg.Wait()

	if fm.cfg.Strategy == Unconstrained {
		rebalancer := NewRebalancer(fm.gc, fm.maxWeights, fm.logger)
		rebalanceDelta, _ := rebalancer.Rebalance(phg, objective)
		// the rebalance cost is charged against the round's gain so the
		// reported improvement is honest
		roundDelta.Add(rebalanceDelta)
	}
	return roundDelta.Load()
}

// localSearch is the per-task FM state: the two-level PQ, the move log, and
// the best-prefix tracking.
type localSearch struct {
	fm        *FMRefiner
	phg       *partition.PartitionedHypergraph
	objective metrics.Objective
	pq        *kwayPriorityQueue

	moves []appliedMove
}

type appliedMove struct {
	vertex int
	from   int
	to     int
}

func newLocalSearch(fm *FMRefiner, phg *partition.PartitionedHypergraph, objective metrics.Objective) *localSearch {
	return &localSearch{
		fm:        fm,
		phg:       phg,
		objective: objective,
		pq:        newKWayPriorityQueue(phg.K()),
	}
}

// run performs one localized search from the claimed seed set and returns
// the committed objective delta after rolling back past the best prefix.
func (ls *localSearch) run(seeds []int, deadline time.Time) int64 {
	fm := ls.fm
	phg := ls.phg
	hg := phg.Hypergraph()

	ls.pq.Clear()
	ls.moves = ls.moves[:0]
	for _, s := range seeds {
		ls.insertVertex(s)
	}

	var runningDelta, bestDelta int64
	bestPrefix := 0
	movesSinceBest := 0

	acc := metrics.NewDeltaAccumulator(ls.objective)
	checkCounter := 0
	for ls.pq.Len() > 0 {
		// cooperative cancellation between PQ extractions
		checkCounter++
		if checkCounter%64 == 0 && time.Now().After(deadline) {
			break
		}

		cand, ok := ls.pq.PopBest()
		if !ok {
			break
		}
		v := cand.vertex
		from := phg.PartID(v)
		if from == cand.target {
			continue
		}
		// revalidate the lazy PQ entry against the gain cache
		target, gain := ls.bestTarget(v, from)
		if target < 0 {
			fm.tracker[v].Store(nodeMoved) // retire, nothing admissible
			continue
		}
		if target != cand.target || gain != cand.gain {
			ls.pq.Insert(moveCandidate{vertex: v, target: target, gain: gain})
			continue
		}

		maxWeight := fm.maxWeights[target]
		if fm.cfg.Strategy == Unconstrained {
			maxWeight = partition.MaxBlockWeight
		}
		acc.Reset()
		if !phg.ChangeNodePart(v, from, target, maxWeight, acc.Func()) {
			continue
		}
		fm.gc.RecomputePenalty(phg, v)
		fm.tracker[v].Store(nodeMoved)
		ls.moves = append(ls.moves, appliedMove{vertex: v, from: from, to: target})
		runningDelta += acc.Delta()

		if runningDelta < bestDelta {
			bestDelta = runningDelta
			bestPrefix = len(ls.moves)
			movesSinceBest = 0
		} else {
			movesSinceBest++
			if fm.cfg.AdaptiveStopMoves > 0 && movesSinceBest >= fm.cfg.AdaptiveStopMoves {
				break
			}
		}

		// expand the search to newly-border neighbors
		for _, e := range hg.IncidentEdges(v) {
			if hg.EdgeSize(e) > fm.gc.HighDegreeThreshold {
				continue
			}
			if phg.Connectivity(e) < 2 {
				continue
			}
			for _, pin := range hg.Pins(e) {
				if pin != v && fm.tracker[pin].CompareAndSwap(nodeUnclaimed, nodeClaimed) {
					ls.insertVertex(pin)
				}
			}
		}
	}

	// roll back everything after the best prefix, in reverse
	acc.Reset()
	for i := len(ls.moves) - 1; i >= bestPrefix; i-- {
		mv := ls.moves[i]
		phg.ChangeNodePart(mv.vertex, mv.to, mv.from, partition.MaxBlockWeight, acc.Func())
		fm.gc.RecomputePenalty(phg, mv.vertex)
	}
	runningDelta += acc.Delta()
	return runningDelta
}

func (ls *localSearch) insertVertex(v int) {
	target, gain := ls.bestTarget(v, ls.phg.PartID(v))
	if target < 0 {
		ls.fm.tracker[v].Store(nodeMoved)
		return
	}
	ls.pq.Insert(moveCandidate{vertex: v, target: target, gain: gain})
}

// bestTarget returns the admissible target with the highest cached gain.
// Under the constrained strategy targets that cannot take the vertex are
// skipped; the unconstrained strategy considers every block.
func (ls *localSearch) bestTarget(v, from int) (int, int64) {
	phg := ls.phg
	fm := ls.fm
	w := phg.Hypergraph().NodeWeight(v)
	best := -1
	var bestGain int64
	for b := 0; b < phg.K(); b++ {
		if b == from {
			continue
		}
		if fm.cfg.Strategy == Constrained && phg.PartWeight(b)+w > fm.maxWeights[b] {
			continue
		}
		gain := fm.gc.Gain(v, b)
		if best == -1 || gain > bestGain {
			best = b
			bestGain = gain
		}
	}
	return best, bestGain
}
