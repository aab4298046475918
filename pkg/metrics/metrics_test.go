package metrics_test

import (
	"math"
	"testing"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/partition"
)

func buildReferencePHG(t *testing.T) *partition.PartitionedHypergraph {
	t.Helper()
	pinLists := [][]int{{0, 2}, {0, 1, 3, 4}, {3, 4, 6}, {2, 5, 6}}
	hg, err := hypergraph.Build(hypergraph.BuildConfig{Stable: true}, 7, pinLists, nil, nil, parallel.NewPool(1))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	phg := partition.NewPartitionedHypergraph(hg, 3, parallel.NewPool(1))
	for v, b := range []int{0, 0, 0, 1, 1, 2, 2} {
		phg.SetOnlyNodePart(v, b)
	}
	phg.InitializePartition()
	return phg
}

func TestObjectivesOnReferenceInstance(t *testing.T) {
	phg := buildReferencePHG(t)
	// E1, E2, E3 are cut with unit weights; each spans two blocks, so the
	// km1 contributions are (2−1) each and E0 is internal
	if got := metrics.ComputeCut(phg); got != 3 {
		t.Errorf("cut = %d, want 3", got)
	}
	if got := metrics.ComputeKm1(phg); got != 3 {
		t.Errorf("km1 = %d, want 3", got)
	}
}

func TestImbalance(t *testing.T) {
	phg := buildReferencePHG(t)
	// W = [3,2,2], ideal = ⌈7/3⌉ = 3 → imbalance = 3/3 − 1 = 0
	if got := metrics.Imbalance(phg); math.Abs(got) > 1e-12 {
		t.Errorf("imbalance = %f, want 0", got)
	}
}

func TestMaxBlockWeight(t *testing.T) {
	tests := []struct {
		total   int64
		k       int
		epsilon float64
		want    int64
	}{
		{total: 7, k: 3, epsilon: 0.0, want: 3},
		{total: 7, k: 3, epsilon: 0.5, want: 4},
		{total: 100, k: 2, epsilon: 0.03, want: 51},
		{total: 100, k: 4, epsilon: 0.0, want: 25},
	}
	for _, tt := range tests {
		if got := metrics.MaxBlockWeight(tt.total, tt.k, tt.epsilon); got != tt.want {
			t.Errorf("MaxBlockWeight(%d, %d, %f) = %d, want %d", tt.total, tt.k, tt.epsilon, got, tt.want)
		}
	}
}

func TestSnapshotConsistency(t *testing.T) {
	phg := buildReferencePHG(t)
	q := metrics.Snapshot(phg, metrics.Km1)
	if q.Value != q.Km1 {
		t.Errorf("Value = %d, Km1 = %d, must agree for the km1 objective", q.Value, q.Km1)
	}
	if q.BlockWeightMin != 2 || q.BlockWeightMax != 3 {
		t.Errorf("block weight min/max = %d/%d, want 2/3", q.BlockWeightMin, q.BlockWeightMax)
	}
	wantMean := 7.0 / 3.0
	if math.Abs(q.BlockWeightMean-wantMean) > 1e-9 {
		t.Errorf("block weight mean = %f, want %f", q.BlockWeightMean, wantMean)
	}
}
