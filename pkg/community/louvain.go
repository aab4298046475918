package community

import (
	"math"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/utils"
)

// Config controls the Louvain community detector.
type Config struct {
	MaxPassIterations     int     // local-moving rounds per level
	MinVertexMoveFraction float64 // stop a level when fewer nodes moved
	MaxLevels             int     // aggregation levels
	Resolution            float64 // γ in the modularity gain
	LargeEdgeThreshold    int     // hyperedges above this size are skipped in expansion
	Deterministic         bool
	NumSubRounds          int // deterministic mode: sub-rounds per round
	Seed                  int64
}

// DefaultConfig returns the configuration used by the default presets.
func DefaultConfig() Config {
	return Config{
		MaxPassIterations:     5,
		MinVertexMoveFraction: 0.01,
		MaxLevels:             10,
		Resolution:            1.0,
		LargeEdgeThreshold:    1000,
		NumSubRounds:          16,
		Seed:                  0,
	}
}

// Detect runs parallel Louvain local-moving modularity on the clique
// expansion of the hypergraph and returns one community id per vertex.
// The coarsener uses the ids to restrict contractions.
func Detect(hg *hypergraph.Hypergraph, cfg Config, pool *parallel.Pool, logger zerolog.Logger) []int {
	if pool == nil {
		pool = parallel.Default()
	}
	graph := BuildFromHypergraph(hg, cfg.LargeEdgeThreshold, pool)
	logger.Debug().
		Int("nodes", graph.NumNodes()).
		Int("arcs", graph.NumArcs()).
		Msg("built clique-expansion graph")

	// communities[v] tracks the community of original vertex v across levels
	communities := make([]int, hg.NumNodes())
	for v := range communities {
		communities[v] = v
	}

	lm := newLocalMoving(cfg, pool, logger)
	for level := 0; level < cfg.MaxLevels; level++ {
		clustering, changed := lm.Run(graph, cfg.Seed+int64(level))
		if !changed {
			break
		}

		clusterOf, numClusters := compressClusterIDs(clustering)
		if numClusters >= graph.NumNodes() {
			logger.Debug().Int("level", level).Msg("no compression, stopping community detection")
			break
		}

		// compose with the accumulated mapping
		for v := range communities {
			communities[v] = clusterOf[communities[v]]
		}

		logger.Debug().
			Int("level", level).
			Int("clusters", numClusters).
			Float64("modularity", Modularity(graph, clustering)).
			Msg("community detection level finished")

		if numClusters == 1 {
			break
		}
		graph = graph.contract(clusterOf, numClusters, pool)
	}
	return communities
}

// Modularity evaluates Newman modularity of a clustering on the graph.
func Modularity(g *Graph, clustering []int) float64 {
	intra := make([]float64, g.NumNodes())
	volume := make([]float64, g.NumNodes())
	for u := 0; u < g.NumNodes(); u++ {
		c := clustering[u]
		volume[c] += g.Volume(u)
		intra[c] += 2 * g.SelfLoop(u)
		g.Arcs(u, func(head int, weight float64) {
			if clustering[head] == c {
				intra[c] += weight
			}
		})
	}
	mod := 0.0
	tv := g.TotalVolume()
	if tv == 0 {
		return 0
	}
	for c := 0; c < g.NumNodes(); c++ {
		if volume[c] > 0 {
			mod += intra[c]/tv - (volume[c]/tv)*(volume[c]/tv)
		}
	}
	return mod
}

func compressClusterIDs(clustering []int) ([]int, int) {
	remap := make(map[int]int, len(clustering))
	clusterOf := make([]int, len(clustering))
	next := 0
	for v, c := range clustering {
		id, ok := remap[c]
		if !ok {
			id = next
			remap[c] = id
			next++
		}
		clusterOf[v] = id
	}
	return clusterOf, next
}

// localMoving holds the reusable state of the local-moving rounds.
type localMoving struct {
	cfg    Config
	pool   *parallel.Pool
	logger zerolog.Logger

	clusterVolumes []uint64 // float64 bits, CAS-updated in nondeterministic mode
	scratch        []*utils.EpochSparseMap
}

func newLocalMoving(cfg Config, pool *parallel.Pool, logger zerolog.Logger) *localMoving {
	scratch := make([]*utils.EpochSparseMap, pool.NumWorkers())
	return &localMoving{cfg: cfg, pool: pool, logger: logger, scratch: scratch}
}

// Run performs local moving on one graph level. It returns the clustering
// and whether any node changed its cluster.
func (lm *localMoving) Run(g *Graph, seed int64) ([]int, bool) {
	n := g.NumNodes()
	clustering := make([]int32, n)
	for u := range clustering {
		clustering[u] = int32(u)
	}
	lm.clusterVolumes = make([]uint64, n)
	for u := 0; u < n; u++ {
		lm.clusterVolumes[u] = math.Float64bits(g.Volume(u))
	}
	for w := range lm.scratch {
		if lm.scratch[w] == nil {
			lm.scratch[w] = utils.NewEpochSparseMap(n)
		} else {
			lm.scratch[w].Resize(n)
		}
	}

	changed := false
	moved := n
	for round := 0; round < lm.cfg.MaxPassIterations &&
		float64(moved) >= lm.cfg.MinVertexMoveFraction*float64(n); round++ {
		if lm.cfg.Deterministic {
			moved = lm.synchronousRound(g, clustering, seed+int64(round))
		} else {
			moved = lm.nondeterministicRound(g, clustering, seed+int64(round))
		}
		changed = changed || moved > 0
		lm.logger.Debug().Int("round", round).Int("moved", moved).Msg("local moving round")
	}
	result := make([]int, n)
	for u := range clustering {
		result[u] = int(atomic.LoadInt32(&clustering[u]))
	}
	return result, changed
}

// nondeterministicRound shuffles the nodes and moves them concurrently with
// atomic cluster-volume updates. Floating-point accumulation order is the
// accepted source of nondeterminism here.
func (lm *localMoving) nondeterministicRound(g *Graph, clustering []int32, seed int64) int {
	order := utils.SeededPermutation(g.NumNodes(), seed)
	var moved atomic.Int64
	lm.pool.ForWorker(g.NumNodes(), func(worker, i int) {
		u := order[i]
		from := int(atomic.LoadInt32(&clustering[u]))
		best := lm.bestCluster(g, clustering, u, lm.scratch[worker])
		if best != from {
			lm.atomicAddVolume(best, g.Volume(u))
			lm.atomicAddVolume(from, -g.Volume(u))
			atomic.StoreInt32(&clustering[u], int32(best))
			moved.Add(1)
		}
	})
	return int(moved.Load())
}

// synchronousRound splits a round into sub-rounds over hashed buckets. Each
// sub-round first computes proposals read-only, then applies them; cluster
// volumes are recomputed (not incremented) after every sub-round so the
// result is independent of thread count.
func (lm *localMoving) synchronousRound(g *Graph, clustering []int32, seed int64) int {
	n := g.NumNodes()
	bp := utils.NewBucketPermutation(n, 256, seed)
	proposals := make([]int, n)
	moved := 0

	numSubRounds := lm.cfg.NumSubRounds
	if numSubRounds < 1 {
		numSubRounds = 1
	}
	for sub := 0; sub < numSubRounds; sub++ {
		first, last := bp.SubRoundRange(sub, numSubRounds)
		if first == last {
			continue
		}
		lm.pool.ForWorker(last-first, func(worker, i int) {
			u := bp.Order[first+i]
			proposals[u] = lm.bestCluster(g, clustering, u, lm.scratch[worker])
		})
		for i := first; i < last; i++ {
			u := bp.Order[i]
			if proposals[u] != int(clustering[u]) {
				clustering[u] = int32(proposals[u])
				moved++
			}
		}
		lm.recomputeClusterVolumes(g, clustering)
	}
	return moved
}

// bestCluster returns the cluster maximizing the modularity gain of moving
// u, or u's own cluster when no strict improvement exists. Ties prefer the
// smaller cluster id so deterministic runs are stable.
func (lm *localMoving) bestCluster(g *Graph, clustering []int32, u int, icw *utils.EpochSparseMap) int {
	icw.Clear()
	own := lm.loadCluster(clustering, u)
	icw.Add(own, 0)
	g.Arcs(u, func(head int, weight float64) {
		if head != u {
			icw.Add(lm.loadCluster(clustering, head), weight)
		}
	})

	tv := g.TotalVolume()
	volU := g.Volume(u)
	gamma := lm.cfg.Resolution

	gainOf := func(c int) float64 {
		clusterVol := lm.loadVolume(c)
		if c == own {
			clusterVol -= volU
		}
		return icw.Get(c) - gamma*volU*clusterVol/tv
	}

	best := own
	bestGain := gainOf(own)
	for _, c := range icw.Keys() {
		if c == own {
			continue
		}
		gain := gainOf(c)
		if gain > bestGain || (gain == bestGain && c < best && best != own) {
			best = c
			bestGain = gain
		}
	}
	return best
}

func (lm *localMoving) loadCluster(clustering []int32, u int) int {
	return int(atomic.LoadInt32(&clustering[u]))
}

func (lm *localMoving) loadVolume(c int) float64 {
	return math.Float64frombits(atomic.LoadUint64(&lm.clusterVolumes[c]))
}

func (lm *localMoving) atomicAddVolume(c int, delta float64) {
	for {
		old := atomic.LoadUint64(&lm.clusterVolumes[c])
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(&lm.clusterVolumes[c], old, next) {
			return
		}
	}
}

// recomputeClusterVolumes rebuilds all cluster volumes from scratch in node
// index order. Floating-point accumulation must not depend on the thread
// count here, so the pass is sequential rather than a parallel reduction.
func (lm *localMoving) recomputeClusterVolumes(g *Graph, clustering []int32) {
	n := g.NumNodes()
	volumes := make([]float64, n)
	for u := 0; u < n; u++ {
		volumes[clustering[u]] += g.Volume(u)
	}
	for c := 0; c < n; c++ {
		lm.clusterVolumes[c] = math.Float64bits(volumes[c])
	}
}
