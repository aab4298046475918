package community

import (
	"sort"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
)

// Graph is the weighted undirected graph the local-moving algorithm runs
// on: CSR arcs, per-node volumes (weighted degrees plus self-loops) and the
// total volume.
type Graph struct {
	numNodes   int
	offsets    []int
	arcHeads   []int
	arcWeights []float64

	selfLoops   []float64
	volumes     []float64
	totalVolume float64
}

func (g *Graph) NumNodes() int         { return g.numNodes }
func (g *Graph) NumArcs() int          { return len(g.arcHeads) }
func (g *Graph) Volume(u int) float64  { return g.volumes[u] }
func (g *Graph) TotalVolume() float64  { return g.totalVolume }
func (g *Graph) SelfLoop(u int) float64 { return g.selfLoops[u] }

// Arcs calls fn(head, weight) for every arc leaving u.
func (g *Graph) Arcs(u int, fn func(head int, weight float64)) {
	for i := g.offsets[u]; i < g.offsets[u+1]; i++ {
		fn(g.arcHeads[i], g.arcWeights[i])
	}
}

// BuildFromHypergraph derives the clique-expansion graph of a hypergraph:
// each hyperedge e contributes an arc of weight w(e)/(|e|−1) between every
// pin pair. Hyperedges larger than largeEdgeThreshold are skipped; their
// quadratic expansion would dominate the build while contributing mostly
// uniform background weight.
func BuildFromHypergraph(hg *hypergraph.Hypergraph, largeEdgeThreshold int, pool *parallel.Pool) *Graph {
	if pool == nil {
		pool = parallel.Default()
	}
	n := hg.NumNodes()

	type arc struct {
		tail, head int
		weight     float64
	}
	arcLists := make([][]arc, hg.NumEdges())
	pool.For(hg.NumEdges(), func(e int) {
		pins := hg.Pins(e)
		if len(pins) < 2 || (largeEdgeThreshold > 0 && len(pins) > largeEdgeThreshold) {
			return
		}
		w := float64(hg.EdgeWeight(e)) / float64(len(pins)-1)
		list := make([]arc, 0, len(pins)*(len(pins)-1))
		for i, u := range pins {
			for j, v := range pins {
				if i != j {
					list = append(list, arc{tail: u, head: v, weight: w})
				}
			}
		}
		arcLists[e] = list
	})

	// bucket arcs per tail, then merge parallel arcs
	perNode := make([][]arc, n)
	for _, list := range arcLists {
		for _, a := range list {
			perNode[a.tail] = append(perNode[a.tail], a)
		}
	}

	g := &Graph{
		numNodes:  n,
		offsets:   make([]int, n+1),
		selfLoops: make([]float64, n),
		volumes:   make([]float64, n),
	}
	merged := make([][]arc, n)
	pool.For(n, func(u int) {
		list := perNode[u]
		sort.Slice(list, func(i, j int) bool { return list[i].head < list[j].head })
		out := list[:0]
		for _, a := range list {
			if len(out) > 0 && out[len(out)-1].head == a.head {
				out[len(out)-1].weight += a.weight
			} else {
				out = append(out, a)
			}
		}
		merged[u] = out
	})

	for u := 0; u < n; u++ {
		g.offsets[u+1] = g.offsets[u] + len(merged[u])
	}
	g.arcHeads = make([]int, g.offsets[n])
	g.arcWeights = make([]float64, g.offsets[n])
	pool.For(n, func(u int) {
		idx := g.offsets[u]
		vol := 2 * g.selfLoops[u] // self-loops count both endpoints

		for _, a := range merged[u] {
			g.arcHeads[idx] = a.head
			g.arcWeights[idx] = a.weight
			vol += a.weight
			idx++
		}
		g.volumes[u] = vol
	})
	for u := 0; u < n; u++ {
		g.totalVolume += g.volumes[u]
	}
	return g
}

// contract builds the coarse graph induced by a clustering. clusterOf maps
// graph nodes to dense cluster ids in [0, numClusters). Intra-cluster arc
// weight accumulates into the coarse node's self-loop.
func (g *Graph) contract(clusterOf []int, numClusters int, pool *parallel.Pool) *Graph {
	coarse := &Graph{
		numNodes:  numClusters,
		offsets:   make([]int, numClusters+1),
		selfLoops: make([]float64, numClusters),
		volumes:   make([]float64, numClusters),
	}

	type arc struct {
		head   int
		weight float64
	}
	perCluster := make([][]arc, numClusters)
	for u := 0; u < g.numNodes; u++ {
		cu := clusterOf[u]
		coarse.selfLoops[cu] += g.selfLoops[u]
		for i := g.offsets[u]; i < g.offsets[u+1]; i++ {
			cv := clusterOf[g.arcHeads[i]]
			if cu == cv {
				// both endpoints contribute; halve to count the arc once
				coarse.selfLoops[cu] += g.arcWeights[i] / 2
			} else {
				perCluster[cu] = append(perCluster[cu], arc{head: cv, weight: g.arcWeights[i]})
			}
		}
	}

	merged := make([][]arc, numClusters)
	pool.For(numClusters, func(c int) {
		list := perCluster[c]
		sort.Slice(list, func(i, j int) bool { return list[i].head < list[j].head })
		out := list[:0]
		for _, a := range list {
			if len(out) > 0 && out[len(out)-1].head == a.head {
				out[len(out)-1].weight += a.weight
			} else {
				out = append(out, a)
			}
		}
		merged[c] = out
	})

	for c := 0; c < numClusters; c++ {
		coarse.offsets[c+1] = coarse.offsets[c] + len(merged[c])
	}
	coarse.arcHeads = make([]int, coarse.offsets[numClusters])
	coarse.arcWeights = make([]float64, coarse.offsets[numClusters])
	pool.For(numClusters, func(c int) {
		idx := coarse.offsets[c]
		vol := 2 * coarse.selfLoops[c]
		for _, a := range merged[c] {
			coarse.arcHeads[idx] = a.head
			coarse.arcWeights[idx] = a.weight
			vol += a.weight
			idx++
		}
		coarse.volumes[c] = vol
	})
	for c := 0; c < numClusters; c++ {
		coarse.totalVolume += coarse.volumes[c]
	}
	return coarse
}
