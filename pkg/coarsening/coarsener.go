package coarsening

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/utils"
)

// Algorithm selects the coarsening strategy.
type Algorithm string

const (
	// Clustering contracts matchings formed from mutually-best heavy-edge
	// proposals, several vertices per round.
	Clustering Algorithm = "clustering"
	// NLevel is accepted as a configuration value. The coarsener does not
	// read Algorithm, so it runs the same matching rounds and builds the same
	// level stack as Clustering; single-vertex contraction is not implemented.
	NLevel Algorithm = "nlevel"
)

// Config controls the coarsener.
type Config struct {
	Algorithm                  Algorithm
	ContractionLimitMultiplier int     // floor ≈ k · multiplier
	MaxVertexWeightFraction    float64 // max cluster weight as fraction of ⌈w(V)/limit⌉
	MinShrinkFactor            float64 // stop when a round shrinks less than this
	NormalizeByWeight          bool    // divide ratings by w(u)·w(v)
	Deterministic              bool
	Seed                       int64
}

// DefaultConfig returns the coarsening configuration of the default preset.
func DefaultConfig() Config {
	return Config{
		Algorithm:                  Clustering,
		ContractionLimitMultiplier: 160,
		MaxVertexWeightFraction:    1.0,
		MinShrinkFactor:            0.01,
	}
}

// Level is one entry of the coarsening hierarchy: the coarse hypergraph and
// the mapping from the previous (finer) level onto it.
type Level struct {
	Coarse  *hypergraph.Hypergraph
	Mapping []int
}

// LevelStack is the coarsening output consumed by the uncoarsener. Levels
// are ordered finest-first; Coarsest() is the input of initial partitioning.
type LevelStack struct {
	Finest *hypergraph.Hypergraph
	Levels []Level
}

// Coarsest returns the smallest hypergraph of the hierarchy.
func (s *LevelStack) Coarsest() *hypergraph.Hypergraph {
	if len(s.Levels) == 0 {
		return s.Finest
	}
	return s.Levels[len(s.Levels)-1].Coarse
}

// HypergraphAt returns the hypergraph refined at level index i, where
// i == len(Levels) addresses the coarsest and i == 0 the finest.
func (s *LevelStack) HypergraphAt(i int) *hypergraph.Hypergraph {
	if i == 0 {
		return s.Finest
	}
	return s.Levels[i-1].Coarse
}

// Coarsener iteratively contracts rated matchings until the contraction
// limit is reached.
type Coarsener struct {
	cfg    Config
	k      int
	pool   *parallel.Pool
	logger zerolog.Logger
}

func NewCoarsener(cfg Config, k int, pool *parallel.Pool, logger zerolog.Logger) *Coarsener {
	if pool == nil {
		pool = parallel.Default()
	}
	return &Coarsener{cfg: cfg, k: k, pool: pool, logger: logger}
}

// Coarsen produces the level stack for the given hypergraph.
func (c *Coarsener) Coarsen(hg *hypergraph.Hypergraph) *LevelStack {
	stack := &LevelStack{Finest: hg}
	limit := c.contractionLimit()
	maxClusterWeight := c.maxClusterWeight(hg)

	current := hg
	round := 0
	for current.NumNodes() > limit {
		clusters, matched := c.matchRound(current, maxClusterWeight, c.cfg.Seed+int64(round))
		if matched == 0 {
			break
		}
		coarse, mapping := current.Contract(clusters, c.pool)
		shrink := 1.0 - float64(coarse.NumNodes())/float64(current.NumNodes())
		c.logger.Debug().
			Int("round", round).
			Int("nodes", coarse.NumNodes()).
			Int("edges", coarse.NumEdges()).
			Float64("shrink", shrink).
			Msg("coarsening round")
		stack.Levels = append(stack.Levels, Level{Coarse: coarse, Mapping: mapping})
		current = coarse
		round++
		if shrink < c.cfg.MinShrinkFactor {
			break
		}
	}

	c.logger.Info().
		Int("levels", len(stack.Levels)).
		Int("coarsest_nodes", current.NumNodes()).
		Int("coarsest_edges", current.NumEdges()).
		Msg("coarsening finished")
	return stack
}

func (c *Coarsener) contractionLimit() int {
	limit := c.k * c.cfg.ContractionLimitMultiplier
	if limit < c.k {
		limit = c.k
	}
	return limit
}

func (c *Coarsener) maxClusterWeight(hg *hypergraph.Hypergraph) int64 {
	limit := int64(c.contractionLimit())
	ideal := (hg.TotalWeight() + limit - 1) / limit
	w := int64(c.cfg.MaxVertexWeightFraction * float64(ideal))
	if w < 1 {
		w = 1
	}
	return w
}

// matchRound rates every vertex against its hyperedge neighbors and
// contracts mutually-best proposals. It returns the cluster assignment for
// Contract and the number of matched pairs.
func (c *Coarsener) matchRound(hg *hypergraph.Hypergraph, maxClusterWeight int64, seed int64) ([]int, int) {
	n := hg.NumNodes()
	proposals := make([]int32, n)
	for v := range proposals {
		proposals[v] = -1
	}

	order := utils.SeededPermutation(n, seed)

	scratch := make([]*utils.EpochSparseMap, c.pool.NumWorkers())
	for w := range scratch {
		scratch[w] = utils.NewEpochSparseMap(n)
	}

	c.pool.ForWorker(n, func(worker, i int) {
		v := order[i]
		proposals[v] = int32(c.bestNeighbor(hg, v, maxClusterWeight, seed, scratch[worker]))
	})

	// commit mutual proposals
	clusters := make([]int, n)
	for v := range clusters {
		clusters[v] = v
	}
	var matched atomic.Int64
	c.pool.For(n, func(v int) {
		u := int(proposals[v])
		if u < 0 || u <= v {
			return
		}
		if int(proposals[u]) == v {
			clusters[u] = v
			matched.Add(1)
		}
	})
	return clusters, int(matched.Load())
}

// bestNeighbor scores all vertices sharing a hyperedge with v using the
// heavy-edge rating Σ w(e)/(|e|−1) and returns the best admissible target,
// or -1.
func (c *Coarsener) bestNeighbor(hg *hypergraph.Hypergraph, v int, maxClusterWeight int64, seed int64, ratings *utils.EpochSparseMap) int {
	ratings.Clear()
	for _, e := range hg.IncidentEdges(v) {
		size := hg.EdgeSize(e)
		if size < 2 {
			continue
		}
		score := float64(hg.EdgeWeight(e)) / float64(size-1)
		for _, u := range hg.Pins(e) {
			if u != v {
				ratings.Add(u, score)
			}
		}
	}

	best := -1
	bestScore := 0.0
	var bestHash uint64
	for _, u := range ratings.Keys() {
		if !c.admissible(hg, v, u, maxClusterWeight) {
			continue
		}
		score := ratings.Get(u)
		if c.cfg.NormalizeByWeight {
			score /= float64(hg.NodeWeight(u) * hg.NodeWeight(v))
		}
		h := utils.CombineSeed(seed, u)
		if best == -1 || score > bestScore ||
			(score == bestScore && (h < bestHash || (h == bestHash && u < best))) {
			best = u
			bestScore = score
			bestHash = h
		}
	}
	return best
}

// admissible checks the contraction constraints: combined weight, community
// agreement, and fixed-vertex compatibility.
func (c *Coarsener) admissible(hg *hypergraph.Hypergraph, v, u int, maxClusterWeight int64) bool {
	if hg.NodeWeight(v)+hg.NodeWeight(u) > maxClusterWeight {
		return false
	}
	if hg.HasCommunities() && hg.CommunityID(v) != hg.CommunityID(u) {
		return false
	}
	if hg.HasFixedVertices() {
		fv, fu := hg.FixedBlock(v), hg.FixedBlock(u)
		if fv >= 0 && fu >= 0 && fv != fu {
			return false
		}
	}
	return true
}
