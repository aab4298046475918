package community

import (
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
)

// twoCliqueHypergraph builds two dense 4-vertex groups joined by a single
// bridge hyperedge. Any sensible community detector separates the groups.
func twoCliqueHypergraph(t *testing.T) *hypergraph.Hypergraph {
	t.Helper()
	pinLists := [][]int{
		// group A: 0..3
		{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3},
		// group B: 4..7
		{4, 5}, {4, 6}, {4, 7}, {5, 6}, {5, 7}, {6, 7},
		// bridge
		{3, 4},
	}
	hg, err := hypergraph.Build(hypergraph.BuildConfig{Stable: true}, 8, pinLists, nil, nil, parallel.NewPool(2))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return hg
}

func TestBuildFromHypergraph(t *testing.T) {
	hg := twoCliqueHypergraph(t)
	g := BuildFromHypergraph(hg, 1000, parallel.NewPool(2))

	if g.NumNodes() != 8 {
		t.Errorf("NumNodes = %d, want 8", g.NumNodes())
	}
	// two-pin edges of unit weight expand to one arc per direction
	if g.NumArcs() != 2*13 {
		t.Errorf("NumArcs = %d, want 26", g.NumArcs())
	}
	// vertex 0 touches three unit edges
	if g.Volume(0) != 3.0 {
		t.Errorf("Volume(0) = %f, want 3", g.Volume(0))
	}
	var total float64
	for u := 0; u < g.NumNodes(); u++ {
		total += g.Volume(u)
	}
	if total != g.TotalVolume() {
		t.Errorf("TotalVolume = %f, volumes sum to %f", g.TotalVolume(), total)
	}
}

func TestDetectSeparatesCliques(t *testing.T) {
	hg := twoCliqueHypergraph(t)
	cfg := DefaultConfig()
	cfg.Deterministic = true
	cfg.Seed = 7

	communities := Detect(hg, cfg, parallel.NewPool(2), zerolog.Nop())

	if len(communities) != 8 {
		t.Fatalf("got %d community ids, want 8", len(communities))
	}
	for v := 1; v < 4; v++ {
		if communities[v] != communities[0] {
			t.Errorf("vertex %d not grouped with vertex 0: %v", v, communities)
		}
	}
	for v := 5; v < 8; v++ {
		if communities[v] != communities[4] {
			t.Errorf("vertex %d not grouped with vertex 4: %v", v, communities)
		}
	}
	if communities[0] == communities[4] {
		t.Errorf("the two groups collapsed into one community: %v", communities)
	}
}

func TestDetectDeterministicAcrossWorkerCounts(t *testing.T) {
	hg := twoCliqueHypergraph(t)
	cfg := DefaultConfig()
	cfg.Deterministic = true
	cfg.Seed = 42

	var reference []int
	for _, workers := range []int{1, 2, 4, 8} {
		got := Detect(hg, cfg, parallel.NewPool(workers), zerolog.Nop())
		if reference == nil {
			reference = got
			continue
		}
		if !reflect.DeepEqual(reference, got) {
			t.Errorf("deterministic detection differs with %d workers: %v vs %v", workers, got, reference)
		}
	}
}

func TestModularityImprovesOverSingletons(t *testing.T) {
	hg := twoCliqueHypergraph(t)
	g := BuildFromHypergraph(hg, 1000, parallel.NewPool(1))

	singletons := make([]int, g.NumNodes())
	for v := range singletons {
		singletons[v] = v
	}
	grouped := []int{0, 0, 0, 0, 1, 1, 1, 1}

	if Modularity(g, grouped) <= Modularity(g, singletons) {
		t.Errorf("grouped modularity %f not above singleton modularity %f",
			Modularity(g, grouped), Modularity(g, singletons))
	}
}

func TestLargeEdgeThresholdSkipsExpansion(t *testing.T) {
	pinLists := [][]int{{0, 1}, {0, 1, 2, 3, 4, 5, 6, 7}}
	hg, err := hypergraph.Build(hypergraph.BuildConfig{Stable: true}, 8, pinLists, nil, nil, parallel.NewPool(1))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	g := BuildFromHypergraph(hg, 4, parallel.NewPool(1))
	// only the two-pin edge survives the threshold
	if g.NumArcs() != 2 {
		t.Errorf("NumArcs = %d, want 2 with the 8-pin edge skipped", g.NumArcs())
	}
}
