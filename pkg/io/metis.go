package io

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
)

// ReadMetis parses a Metis graph file into a hypergraph where every edge is
// a two-pin hyperedge. The adjacency lists name each edge twice; only the
// (u < v) direction is materialized.
func ReadMetis(path string, cfg hypergraph.BuildConfig, pool *parallel.Pool) (*hypergraph.Hypergraph, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("io: open graph file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	header, err := nextContentLine(scanner)
	if err != nil {
		return nil, fmt.Errorf("io: %s: missing header: %w", path, err)
	}
	fields := strings.Fields(header)
	if len(fields) < 2 {
		return nil, fmt.Errorf("io: %s: malformed header %q", path, header)
	}
	numNodes, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("io: %s: bad node count: %w", path, err)
	}
	declaredEdges, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("io: %s: bad edge count: %w", path, err)
	}
	format := "0"
	if len(fields) >= 3 {
		format = fields[2]
	}
	// the format field is up to three digits: vertex sizes, vertex
	// weights, edge weights
	for len(format) < 3 {
		format = "0" + format
	}
	hasNodeWeights := format[1] == '1'
	hasEdgeWeights := format[2] == '1'

	pinLists := make([][]int, 0, declaredEdges)
	var edgeWeights []int64
	var nodeWeights []int64
	if hasNodeWeights {
		nodeWeights = make([]int64, numNodes)
	}

	for u := 0; u < numNodes; u++ {
		line, err := nextContentLine(scanner)
		if err != nil {
			return nil, fmt.Errorf("io: %s: vertex %d: %w", path, u+1, err)
		}
		tokens := strings.Fields(line)
		idx := 0
		if hasNodeWeights {
			w, err := strconv.ParseInt(tokens[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("io: %s: vertex %d weight: %w", path, u+1, err)
			}
			nodeWeights[u] = w
			idx = 1
		}
		for idx < len(tokens) {
			neighbor, err := strconv.Atoi(tokens[idx])
			if err != nil {
				return nil, fmt.Errorf("io: %s: vertex %d neighbor: %w", path, u+1, err)
			}
			idx++
			var w int64 = 1
			if hasEdgeWeights {
				if idx >= len(tokens) {
					return nil, fmt.Errorf("io: %s: vertex %d: missing edge weight", path, u+1)
				}
				if w, err = strconv.ParseInt(tokens[idx], 10, 64); err != nil {
					return nil, fmt.Errorf("io: %s: vertex %d edge weight: %w", path, u+1, err)
				}
				idx++
			}
			v := neighbor - 1
			if v < 0 || v >= numNodes {
				return nil, fmt.Errorf("io: %s: vertex %d references %d of %d", path, u+1, neighbor, numNodes)
			}
			if u < v {
				pinLists = append(pinLists, []int{u, v})
				edgeWeights = append(edgeWeights, w)
			}
		}
	}

	if len(pinLists) != declaredEdges {
		return nil, fmt.Errorf("io: %s: header declares %d edges, found %d", path, declaredEdges, len(pinLists))
	}
	return hypergraph.Build(cfg, numNodes, pinLists, edgeWeights, nodeWeights, pool)
}
