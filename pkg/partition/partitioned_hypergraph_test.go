package partition_test

import (
	"reflect"
	"sync"
	"testing"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/partition"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/validation"
)

// the reference instance: E0={0,2}, E1={0,1,3,4}, E2={3,4,6}, E3={2,5,6},
// unit weights, initial partition [0,0,0,1,1,2,2], k=3
func buildTestPHG(t *testing.T) *partition.PartitionedHypergraph {
	t.Helper()
	pinLists := [][]int{{0, 2}, {0, 1, 3, 4}, {3, 4, 6}, {2, 5, 6}}
	hg, err := hypergraph.Build(hypergraph.BuildConfig{Stable: true}, 7, pinLists, nil, nil, parallel.NewPool(2))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	phg := partition.NewPartitionedHypergraph(hg, 3, parallel.NewPool(2))
	for v, b := range []int{0, 0, 0, 1, 1, 2, 2} {
		phg.SetOnlyNodePart(v, b)
	}
	phg.InitializePartition()
	return phg
}

func assertValidState(t *testing.T, phg *partition.PartitionedHypergraph) {
	t.Helper()
	result := validation.VerifyPartitionState(phg)
	for _, msg := range result.Errors {
		t.Errorf("invariant violated: %s", msg)
	}
}

func TestInitializePartition(t *testing.T) {
	phg := buildTestPHG(t)

	expectedWeights := []int64{3, 2, 2}
	for b, want := range expectedWeights {
		if got := phg.PartWeight(b); got != want {
			t.Errorf("PartWeight(%d) = %d, want %d", b, got, want)
		}
	}

	expectedPinCounts := [][]int{
		{2, 0, 0}, // E0
		{2, 2, 0}, // E1
		{0, 2, 1}, // E2
		{1, 0, 2}, // E3
	}
	for e, counts := range expectedPinCounts {
		for b, want := range counts {
			if got := phg.PinCountInPart(e, b); got != want {
				t.Errorf("PinCountInPart(%d, %d) = %d, want %d", e, b, got, want)
			}
		}
	}

	expectedConnectivity := []int{1, 2, 2, 2}
	for e, want := range expectedConnectivity {
		if got := phg.Connectivity(e); got != want {
			t.Errorf("Connectivity(%d) = %d, want %d", e, got, want)
		}
	}
	if set := phg.ConnectivitySet(1); !reflect.DeepEqual(set, []int{0, 1}) {
		t.Errorf("ConnectivitySet(1) = %v, want [0 1]", set)
	}

	expectedCutEdges := []int{1, 1, 1, 2, 2, 1, 2}
	for v, want := range expectedCutEdges {
		if got := phg.NumIncidentCutEdges(v); got != want {
			t.Errorf("NumIncidentCutEdges(%d) = %d, want %d", v, got, want)
		}
		if phg.IsBorderNode(v) != (want > 0) {
			t.Errorf("IsBorderNode(%d) = %v, want %v", v, phg.IsBorderNode(v), want > 0)
		}
	}

	if cut := metrics.ComputeCut(phg); cut != 3 {
		t.Errorf("cut = %d, want 3", cut)
	}
	if km1 := metrics.ComputeKm1(phg); km1 != 3 {
		t.Errorf("km1 = %d, want 3", km1)
	}
	assertValidState(t, phg)
}

func TestChangeNodePart(t *testing.T) {
	phg := buildTestPHG(t)

	if !phg.ChangeNodePart(0, 0, 1, partition.MaxBlockWeight, nil) {
		t.Fatal("move(0: 0→1) rejected")
	}

	if got := []int64{phg.PartWeight(0), phg.PartWeight(1), phg.PartWeight(2)}; !reflect.DeepEqual(got, []int64{2, 3, 2}) {
		t.Errorf("part weights = %v, want [2 3 2]", got)
	}
	if got := []int{phg.PinCountInPart(0, 0), phg.PinCountInPart(0, 1), phg.PinCountInPart(0, 2)}; !reflect.DeepEqual(got, []int{1, 1, 0}) {
		t.Errorf("pc(E0) = %v, want [1 1 0]", got)
	}
	if got := []int{phg.PinCountInPart(1, 0), phg.PinCountInPart(1, 1), phg.PinCountInPart(1, 2)}; !reflect.DeepEqual(got, []int{1, 3, 0}) {
		t.Errorf("pc(E1) = %v, want [1 3 0]", got)
	}
	if !phg.IsBorderNode(0) || !phg.IsBorderNode(1) {
		t.Errorf("vertices 0 and 1 must be border nodes after the move")
	}
	assertValidState(t, phg)
}

func TestChangeNodePartWeightConstraint(t *testing.T) {
	phg := buildTestPHG(t)

	// block 1 currently weighs 2; cap at 2 so the move must fail
	if phg.ChangeNodePart(0, 0, 1, 2, nil) {
		t.Fatal("move(0: 0→1) accepted despite weight cap")
	}
	if got := phg.PartID(0); got != 0 {
		t.Errorf("failed move changed part id to %d", got)
	}
	if got := phg.PartWeight(1); got != 2 {
		t.Errorf("failed move leaked weight: PartWeight(1) = %d", got)
	}
	assertValidState(t, phg)
}

func TestDeltaFuncMatchesObjective(t *testing.T) {
	for _, objective := range []metrics.Objective{metrics.Km1, metrics.Cut} {
		phg := buildTestPHG(t)
		before := metrics.ComputeObjective(phg, objective)
		acc := metrics.NewDeltaAccumulator(objective)

		moves := []struct{ v, from, to int }{
			{0, 0, 1}, {3, 1, 0}, {4, 1, 0}, {6, 2, 1},
		}
		for _, mv := range moves {
			if !phg.ChangeNodePart(mv.v, mv.from, mv.to, partition.MaxBlockWeight, acc.Func()) {
				t.Fatalf("%s: move %+v rejected", objective, mv)
			}
		}
		after := metrics.ComputeObjective(phg, objective)
		if before+acc.Delta() != after {
			t.Errorf("%s: delta callbacks sum to %d, objective moved %d → %d", objective, acc.Delta(), before, after)
		}
		assertValidState(t, phg)
	}
}

func TestConcurrentMovesUncutEdge(t *testing.T) {
	phg := buildTestPHG(t)
	km1Before := metrics.ComputeKm1(phg)

	var wg sync.WaitGroup
	for _, mv := range []struct{ v, from, to int }{{3, 1, 0}, {4, 1, 0}} {
		wg.Add(1)
		go func(v, from, to int) {
			defer wg.Done()
			if !phg.ChangeNodePart(v, from, to, partition.MaxBlockWeight, nil) {
				t.Errorf("move(%d: %d→%d) rejected", v, from, to)
			}
		}(mv.v, mv.from, mv.to)
	}
	wg.Wait()

	if got := []int{phg.PinCountInPart(1, 0), phg.PinCountInPart(1, 1), phg.PinCountInPart(1, 2)}; !reflect.DeepEqual(got, []int{4, 0, 0}) {
		t.Errorf("pc(E1) = %v, want [4 0 0]", got)
	}
	if phg.Connectivity(1) != 1 {
		t.Errorf("E1 still cut: connectivity %d", phg.Connectivity(1))
	}
	if got := metrics.ComputeKm1(phg); got != km1Before-1 {
		t.Errorf("km1 = %d, want %d (decrease by w(E1)=1)", got, km1Before-1)
	}
	if got := []int64{phg.PartWeight(0), phg.PartWeight(1), phg.PartWeight(2)}; !reflect.DeepEqual(got, []int64{5, 0, 2}) {
		t.Errorf("part weights = %v, want [5 0 2]", got)
	}
	assertValidState(t, phg)
}

func TestConcurrentMovesSameVertexSingleWinner(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		phg := buildTestPHG(t)

		results := make([]bool, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			results[0] = phg.ChangeNodePart(0, 0, 1, partition.MaxBlockWeight, nil)
		}()
		go func() {
			defer wg.Done()
			results[1] = phg.ChangeNodePart(0, 0, 2, partition.MaxBlockWeight, nil)
		}()
		wg.Wait()

		if results[0] == results[1] {
			t.Fatalf("trial %d: both moves returned %v, exactly one must win", trial, results[0])
		}
		want := 1
		if results[1] {
			want = 2
		}
		if got := phg.PartID(0); got != want {
			t.Errorf("trial %d: PartID(0) = %d, want winner's block %d", trial, got, want)
		}
		assertValidState(t, phg)
	}
}

func TestConcurrentMovesRespectWeightCap(t *testing.T) {
	// two concurrent moves into block 2 whose cap admits only one of them
	for trial := 0; trial < 20; trial++ {
		phg := buildTestPHG(t)
		results := make([]bool, 2)
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			results[0] = phg.ChangeNodePart(3, 1, 2, 3, nil)
		}()
		go func() {
			defer wg.Done()
			results[1] = phg.ChangeNodePart(4, 1, 2, 3, nil)
		}()
		wg.Wait()

		succeeded := 0
		for _, ok := range results {
			if ok {
				succeeded++
			}
		}
		if succeeded > 1 {
			t.Fatalf("trial %d: both moves succeeded, block 2 would exceed its cap", trial)
		}
		if phg.PartWeight(2) > 3 {
			t.Errorf("trial %d: PartWeight(2) = %d exceeds cap 3", trial, phg.PartWeight(2))
		}
		assertValidState(t, phg)
	}
}

func TestExtractBlockFromOverlay(t *testing.T) {
	phg := buildTestPHG(t)
	sub, nodeMap := phg.ExtractBlock(0, hypergraph.CutSplit)
	if sub.NumNodes() != 3 {
		t.Errorf("extracted NumNodes = %d, want 3", sub.NumNodes())
	}
	if !reflect.DeepEqual(nodeMap, []int{0, 1, 2}) {
		t.Errorf("nodeMap = %v, want [0 1 2]", nodeMap)
	}
}

func TestResetAllowsReuse(t *testing.T) {
	phg := buildTestPHG(t)
	phg.Reset()
	for v := 0; v < 7; v++ {
		if phg.PartID(v) != partition.UnassignedBlock {
			t.Fatalf("PartID(%d) = %d after Reset", v, phg.PartID(v))
		}
	}
	for v, b := range []int{0, 1, 2, 0, 1, 2, 0} {
		phg.SetOnlyNodePart(v, b)
	}
	phg.InitializePartition()
	assertValidState(t, phg)
}
