package hypergraph

import (
	"sort"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/utils"
)

// Contract builds the coarse hypergraph induced by a clustering. clusters[v]
// names the cluster of v (arbitrary ints); the returned mapping translates a
// fine vertex to its coarse vertex. Pins are deduplicated per edge,
// hyperedges shrinking below two pins are dropped (their count is recorded),
// and identical hyperedges are merged by summing weights. Node weights sum
// over the cluster; community and fixed-block metadata carry over.
func (hg *Hypergraph) Contract(clusters []int, pool *parallel.Pool) (*Hypergraph, []int) {
	if pool == nil {
		pool = parallel.Default()
	}

	// compress cluster ids into dense coarse vertex ids, ordered by the
	// smallest member so contraction is independent of cluster id values
	mapping := make([]int, hg.numNodes)
	dense := make(map[int]int, hg.numNodes/2+1)
	numCoarse := 0
	for v := 0; v < hg.numNodes; v++ {
		c := clusters[v]
		id, ok := dense[c]
		if !ok {
			id = numCoarse
			dense[c] = id
			numCoarse++
		}
		mapping[v] = id
	}

	coarseNodeWeights := make([]int64, numCoarse)
	for v := 0; v < hg.numNodes; v++ {
		coarseNodeWeights[mapping[v]] += hg.nodeWeights[v]
	}

	var coarseCommunities []int
	if hg.communityIDs != nil {
		coarseCommunities = make([]int, numCoarse)
		for v := 0; v < hg.numNodes; v++ {
			coarseCommunities[mapping[v]] = hg.communityIDs[v]
		}
	}
	var coarseFixed []int
	if hg.fixedBlocks != nil {
		coarseFixed = make([]int, numCoarse)
		for i := range coarseFixed {
			coarseFixed[i] = -1
		}
		for v := 0; v < hg.numNodes; v++ {
			if hg.fixedBlocks[v] >= 0 {
				coarseFixed[mapping[v]] = hg.fixedBlocks[v]
			}
		}
	}

	// project and deduplicate pins of every edge
	projected := make([][]int, hg.numEdges)
	pool.ForWorker(hg.numEdges, func(_, e int) {
		pins := hg.Pins(e)
		proj := make([]int, 0, len(pins))
		for _, v := range pins {
			proj = append(proj, mapping[v])
		}
		sort.Ints(proj)
		// dedup in place
		out := proj[:0]
		for i, p := range proj {
			if i == 0 || p != proj[i-1] {
				out = append(out, p)
			}
		}
		projected[e] = out
	})

	// merge identical edges; identity is the full pin sequence
	type bucketEntry struct {
		edge   int
		weight int64
	}
	merged := make(map[uint64][]bucketEntry)
	removedSinglePin := 0
	order := make([]int, 0, hg.numEdges)
	weights := make(map[int]int64, hg.numEdges)
	for e := 0; e < hg.numEdges; e++ {
		pins := projected[e]
		if len(pins) < 2 {
			removedSinglePin++
			continue
		}
		h := uint64(len(pins))
		for _, p := range pins {
			h = utils.SplitMix64(h ^ uint64(p))
		}
		found := false
		for i, cand := range merged[h] {
			if equalPins(projected[cand.edge], pins) {
				merged[h][i].weight += hg.edgeWeights[e]
				weights[cand.edge] += hg.edgeWeights[e]
				found = true
				break
			}
		}
		if !found {
			merged[h] = append(merged[h], bucketEntry{edge: e, weight: hg.edgeWeights[e]})
			weights[e] = hg.edgeWeights[e]
			order = append(order, e)
		}
	}

	coarsePins := make([][]int, len(order))
	coarseWeights := make([]int64, len(order))
	for i, e := range order {
		coarsePins[i] = projected[e]
		coarseWeights[i] = weights[e]
	}

	coarse, err := Build(BuildConfig{Stable: true, RemoveSinglePinEdges: false},
		numCoarse, coarsePins, coarseWeights, coarseNodeWeights, pool)
	if err != nil {
		// inputs are produced above and always valid
		panic(err)
	}
	coarse.numRemovedSinglePinEdges = hg.numRemovedSinglePinEdges + removedSinglePin
	coarse.communityIDs = coarseCommunities
	coarse.fixedBlocks = coarseFixed
	return coarse, mapping
}

func equalPins(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
