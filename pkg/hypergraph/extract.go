package hypergraph

import "github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"

// CutPolicy decides what happens to hyperedges crossing the extraction
// boundary.
type CutPolicy int

const (
	// CutSplit keeps the in-subset sub-edge of every cut hyperedge when it
	// still has at least two pins.
	CutSplit CutPolicy = iota
	// CutRemove drops all cut hyperedges.
	CutRemove
)

// ExtractBlock builds the sub-hypergraph induced by the vertices of one
// block of a partition. It returns the extracted hypergraph and nodeMap,
// where nodeMap[subVertex] = original vertex. The refinement pipeline does
// not call it; the flow refiner slot is a no-op.
func (hg *Hypergraph) ExtractBlock(part []int32, block int, policy CutPolicy, pool *parallel.Pool) (*Hypergraph, []int) {
	if pool == nil {
		pool = parallel.Default()
	}

	nodeMap := make([]int, 0, hg.numNodes)
	toSub := make([]int, hg.numNodes)
	for v := range toSub {
		toSub[v] = -1
	}
	for v := 0; v < hg.numNodes; v++ {
		if int(part[v]) == block {
			toSub[v] = len(nodeMap)
			nodeMap = append(nodeMap, v)
		}
	}

	subWeights := make([]int64, len(nodeMap))
	for i, v := range nodeMap {
		subWeights[i] = hg.nodeWeights[v]
	}

	pinLists := make([][]int, 0, hg.numEdges)
	edgeWeights := make([]int64, 0, hg.numEdges)
	for e := 0; e < hg.numEdges; e++ {
		pins := hg.Pins(e)
		inside := 0
		for _, v := range pins {
			if int(part[v]) == block {
				inside++
			}
		}
		if inside < 2 {
			continue
		}
		if policy == CutRemove && inside < len(pins) {
			continue
		}
		sub := make([]int, 0, inside)
		for _, v := range pins {
			if int(part[v]) == block {
				sub = append(sub, toSub[v])
			}
		}
		pinLists = append(pinLists, sub)
		edgeWeights = append(edgeWeights, hg.edgeWeights[e])
	}

	sub, err := Build(BuildConfig{Stable: true, RemoveSinglePinEdges: false},
		maxInt(len(nodeMap), 1), pinLists, edgeWeights, subWeightsOrNil(subWeights), pool)
	if err != nil {
		panic(err)
	}
	return sub, nodeMap
}

func subWeightsOrNil(w []int64) []int64 {
	if len(w) == 0 {
		return nil
	}
	return w
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
