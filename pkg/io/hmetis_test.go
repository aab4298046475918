package io

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestReadHMetisPlain(t *testing.T) {
	// the 7-vertex reference instance, 1-based pins
	content := `% reference instance
4 7
1 3
1 2 4 5
4 5 7
3 6 7
`
	path := writeTempFile(t, "ref.hgr", content)
	hg, err := ReadHMetis(path, hypergraph.BuildConfig{Stable: true}, parallel.NewPool(1))
	if err != nil {
		t.Fatalf("ReadHMetis failed: %v", err)
	}
	if hg.NumNodes() != 7 || hg.NumEdges() != 4 {
		t.Fatalf("got %d nodes / %d edges, want 7/4", hg.NumNodes(), hg.NumEdges())
	}
	if !reflect.DeepEqual(hg.Pins(1), []int{0, 1, 3, 4}) {
		t.Errorf("Pins(1) = %v, want [0 1 3 4]", hg.Pins(1))
	}
	if hg.EdgeWeight(0) != 1 {
		t.Errorf("default edge weight = %d, want 1", hg.EdgeWeight(0))
	}
}

func TestReadHMetisWeighted(t *testing.T) {
	// fmt 11: hyperedge weights and vertex weights
	content := `3 4 11
5 1 2
2 2 3 4
7 1 4
10
20
30
40
`
	path := writeTempFile(t, "weighted.hgr", content)
	hg, err := ReadHMetis(path, hypergraph.BuildConfig{Stable: true}, parallel.NewPool(1))
	if err != nil {
		t.Fatalf("ReadHMetis failed: %v", err)
	}
	if got := []int64{hg.EdgeWeight(0), hg.EdgeWeight(1), hg.EdgeWeight(2)}; !reflect.DeepEqual(got, []int64{5, 2, 7}) {
		t.Errorf("edge weights = %v, want [5 2 7]", got)
	}
	if got := hg.NodeWeight(3); got != 40 {
		t.Errorf("NodeWeight(3) = %d, want 40", got)
	}
	if hg.TotalWeight() != 100 {
		t.Errorf("TotalWeight = %d, want 100", hg.TotalWeight())
	}
}

func TestReadHMetisErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: ""},
		{name: "bad_header", content: "x y\n"},
		{name: "pin_out_of_range", content: "1 2\n1 3\n"},
		{name: "truncated", content: "2 3\n1 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempFile(t, tt.name+".hgr", tt.content)
			if _, err := ReadHMetis(path, hypergraph.BuildConfig{}, parallel.NewPool(1)); err == nil {
				t.Error("ReadHMetis accepted a malformed file")
			}
		})
	}
}

func TestReadMetisGraph(t *testing.T) {
	// a triangle, fmt 1 (edge weights)
	content := `3 3 001
2 7 3 3
1 7 3 5
1 3 2 5
`
	path := writeTempFile(t, "tri.graph", content)
	hg, err := ReadMetis(path, hypergraph.BuildConfig{Stable: true}, parallel.NewPool(1))
	if err != nil {
		t.Fatalf("ReadMetis failed: %v", err)
	}
	if hg.NumNodes() != 3 || hg.NumEdges() != 3 {
		t.Fatalf("got %d nodes / %d edges, want 3/3", hg.NumNodes(), hg.NumEdges())
	}
	var weights []int64
	for e := 0; e < hg.NumEdges(); e++ {
		if hg.EdgeSize(e) != 2 {
			t.Errorf("edge %d size = %d, want 2", e, hg.EdgeSize(e))
		}
		weights = append(weights, hg.EdgeWeight(e))
	}
	var total int64
	for _, w := range weights {
		total += w
	}
	if total != 7+3+5 {
		t.Errorf("edge weights %v sum to %d, want 15", weights, total)
	}
}

func TestWritePartitionRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.part")
	part := []int32{0, 1, 2, 1, 0}
	if err := WritePartition(path, part); err != nil {
		t.Fatalf("WritePartition failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "0\n1\n2\n1\n0\n" {
		t.Errorf("partition file = %q", string(data))
	}
}
