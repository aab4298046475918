package initial

import (
	"math/rand"
	"sort"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/utils"
)

// randomPartition assigns vertices to random blocks, skipping blocks whose
// weight budget is exhausted.
func randomPartition(ctx *flatContext) []int32 {
	rng := rand.New(rand.NewSource(ctx.seed))
	part := make([]int32, ctx.hg.NumNodes())
	weights := make([]int64, ctx.k)
	order := utils.SeededPermutation(ctx.hg.NumNodes(), ctx.seed)
	for _, v := range order {
		w := ctx.hg.NodeWeight(v)
		b := rng.Intn(ctx.k)
		for attempts := 0; attempts < ctx.k && weights[b]+w > ctx.maxWeights[b]; attempts++ {
			b = (b + 1) % ctx.k
		}
		part[v] = int32(b)
		weights[b] += w
	}
	return part
}

// bfsPartition grows one breadth-first region per block from random seeds,
// expanding the lightest block first.
func bfsPartition(ctx *flatContext) []int32 {
	hg := ctx.hg
	n := hg.NumNodes()
	rng := rand.New(rand.NewSource(ctx.seed))

	part := make([]int32, n)
	for v := range part {
		part[v] = -1
	}
	weights := make([]int64, ctx.k)
	queues := make([][]int, ctx.k)
	for b := 0; b < ctx.k; b++ {
		seed := rng.Intn(n)
		for attempts := 0; attempts < 8 && part[seed] != -1; attempts++ {
			seed = rng.Intn(n)
		}
		queues[b] = append(queues[b], seed)
	}

	assigned := 0
	for assigned < n {
		// pick the lightest block that still has frontier
		b := -1
		for cand := 0; cand < ctx.k; cand++ {
			if len(queues[cand]) == 0 {
				continue
			}
			if b == -1 || weights[cand] < weights[b] {
				b = cand
			}
		}
		if b == -1 {
			// frontiers exhausted; hand the remaining vertices to the
			// lightest blocks
			for v := 0; v < n; v++ {
				if part[v] == -1 {
					lightest := 0
					for cand := 1; cand < ctx.k; cand++ {
						if weights[cand] < weights[lightest] {
							lightest = cand
						}
					}
					part[v] = int32(lightest)
					weights[lightest] += hg.NodeWeight(v)
					assigned++
				}
			}
			break
		}

		v := queues[b][0]
		queues[b] = queues[b][1:]
		if part[v] != -1 {
			continue
		}
		part[v] = int32(b)
		weights[b] += hg.NodeWeight(v)
		assigned++
		for _, e := range hg.IncidentEdges(v) {
			for _, pin := range hg.Pins(e) {
				if part[pin] == -1 {
					queues[b] = append(queues[b], pin)
				}
			}
		}
	}
	return part
}

// greedyGrowingPartition is greedy hypergraph growing: block by block, pull
// the vertex with the highest attraction to the growing block until the
// block reaches its share of the total weight.
func greedyGrowingPartition(ctx *flatContext) []int32 {
	hg := ctx.hg
	n := hg.NumNodes()
	rng := rand.New(rand.NewSource(ctx.seed))

	part := make([]int32, n)
	for v := range part {
		part[v] = -1
	}
	targetWeight := (hg.TotalWeight() + int64(ctx.k) - 1) / int64(ctx.k)

	attraction := make([]int64, n)
	unassigned := n
	for b := 0; b < ctx.k-1 && unassigned > 0; b++ {
		for v := range attraction {
			attraction[v] = 0
		}
		seed := rng.Intn(n)
		for attempts := 0; attempts < 32 && part[seed] != -1; attempts++ {
			seed = rng.Intn(n)
		}
		if part[seed] != -1 {
			for v := 0; v < n; v++ {
				if part[v] == -1 {
					seed = v
					break
				}
			}
		}

		var blockWeight int64
		frontier := []int{seed}
		for blockWeight < targetWeight && unassigned > 0 {
			// highest-attraction unassigned frontier vertex
			best := -1
			for _, v := range frontier {
				if part[v] != -1 {
					continue
				}
				if best == -1 || attraction[v] > attraction[best] {
					best = v
				}
			}
			if best == -1 {
				break
			}
			part[best] = int32(b)
			blockWeight += hg.NodeWeight(best)
			unassigned--
			for _, e := range hg.IncidentEdges(best) {
				w := hg.EdgeWeight(e)
				for _, pin := range hg.Pins(e) {
					if part[pin] == -1 {
						if attraction[pin] == 0 {
							frontier = append(frontier, pin)
						}
						attraction[pin] += w
					}
				}
			}
		}
	}
	// the last block takes the rest
	for v := 0; v < n; v++ {
		if part[v] == -1 {
			part[v] = int32(ctx.k - 1)
		}
	}
	return part
}

// roundRobinPartition is the balance-first heuristic: vertices in
// descending weight order, each into the currently lightest block.
func roundRobinPartition(ctx *flatContext) []int32 {
	hg := ctx.hg
	n := hg.NumNodes()
	order := make([]int, n)
	for v := range order {
		order[v] = v
	}
	sort.Slice(order, func(i, j int) bool {
		wi, wj := hg.NodeWeight(order[i]), hg.NodeWeight(order[j])
		if wi != wj {
			return wi > wj
		}
		return order[i] < order[j]
	})

	part := make([]int32, n)
	weights := make([]int64, ctx.k)
	for _, v := range order {
		lightest := 0
		for b := 1; b < ctx.k; b++ {
			if weights[b] < weights[lightest] {
				lightest = b
			}
		}
		part[v] = int32(lightest)
		weights[lightest] += hg.NodeWeight(v)
	}
	return part
}

// labelPropagationPartition starts from a random assignment and runs a few
// sequential label-propagation sweeps that move vertices to the block
// holding most of their incident pin weight.
func labelPropagationPartition(ctx *flatContext) []int32 {
	hg := ctx.hg
	n := hg.NumNodes()
	part := randomPartition(ctx)

	weights := make([]int64, ctx.k)
	for v := 0; v < n; v++ {
		weights[part[v]] += hg.NodeWeight(v)
	}

	affinity := make([]int64, ctx.k)
	for sweep := 0; sweep < 5; sweep++ {
		moves := 0
		order := utils.SeededPermutation(n, ctx.seed+int64(sweep))
		for _, v := range order {
			for b := range affinity {
				affinity[b] = 0
			}
			for _, e := range hg.IncidentEdges(v) {
				w := hg.EdgeWeight(e)
				for _, pin := range hg.Pins(e) {
					if pin != v {
						affinity[part[pin]] += w
					}
				}
			}
			from := part[v]
			best := from
			for b := 0; b < ctx.k; b++ {
				if int32(b) == from {
					continue
				}
				if weights[b]+hg.NodeWeight(v) > ctx.maxWeights[b] {
					continue
				}
				if affinity[b] > affinity[best] {
					best = int32(b)
				}
			}
			if best != from {
				weights[from] -= hg.NodeWeight(v)
				weights[best] += hg.NodeWeight(v)
				part[v] = best
				moves++
			}
		}
		if moves == 0 {
			break
		}
	}
	return part
}
