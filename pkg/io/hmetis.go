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

// hMetis format flags in the header's third field.
const (
	fmtEdgeWeights = 1  // hyperedge weights present
	fmtNodeWeights = 10 // vertex weights present
)

// ReadHMetis parses an hMetis hypergraph file. Vertices are 1-based in the
// file and 0-based in the returned hypergraph. Single-pin hyperedges are
// removed when the build config says so; their count survives on the
// hypergraph.
func ReadHMetis(path string, cfg hypergraph.BuildConfig, pool *parallel.Pool) (*hypergraph.Hypergraph, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("io: open hypergraph file: %w", err)
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
	numEdges, err := strconv.Atoi(fields[0])
	if err != nil {
		return nil, fmt.Errorf("io: %s: bad edge count: %w", path, err)
	}
	numNodes, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("io: %s: bad node count: %w", path, err)
	}
	format := 0
	if len(fields) >= 3 {
		if format, err = strconv.Atoi(fields[2]); err != nil {
			return nil, fmt.Errorf("io: %s: bad format flag: %w", path, err)
		}
	}
	hasEdgeWeights := format%10 == fmtEdgeWeights
	hasNodeWeights := format >= fmtNodeWeights

	pinLists := make([][]int, numEdges)
	var edgeWeights []int64
	if hasEdgeWeights {
		edgeWeights = make([]int64, numEdges)
	}
	for e := 0; e < numEdges; e++ {
		line, err := nextContentLine(scanner)
		if err != nil {
			return nil, fmt.Errorf("io: %s: edge %d: %w", path, e, err)
		}
		tokens := strings.Fields(line)
		idx := 0
		if hasEdgeWeights {
			w, err := strconv.ParseInt(tokens[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("io: %s: edge %d weight: %w", path, e, err)
			}
			edgeWeights[e] = w
			idx = 1
		}
		pins := make([]int, 0, len(tokens)-idx)
		for ; idx < len(tokens); idx++ {
			pin, err := strconv.Atoi(tokens[idx])
			if err != nil {
				return nil, fmt.Errorf("io: %s: edge %d pin: %w", path, e, err)
			}
			if pin < 1 || pin > numNodes {
				return nil, fmt.Errorf("io: %s: edge %d references vertex %d of %d", path, e, pin, numNodes)
			}
			pins = append(pins, pin-1)
		}
		pinLists[e] = pins
	}

	var nodeWeights []int64
	if hasNodeWeights {
		nodeWeights = make([]int64, numNodes)
		for v := 0; v < numNodes; v++ {
			line, err := nextContentLine(scanner)
			if err != nil {
				return nil, fmt.Errorf("io: %s: vertex weight %d: %w", path, v, err)
			}
			w, err := strconv.ParseInt(strings.Fields(line)[0], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("io: %s: vertex weight %d: %w", path, v, err)
			}
			nodeWeights[v] = w
		}
	}

	return hypergraph.Build(cfg, numNodes, pinLists, edgeWeights, nodeWeights, pool)
}

// WritePartition writes one block id per line, the standard partition file
// format shared with the original tools.
func WritePartition(path string, part []int32) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("io: create partition file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, b := range part {
		if _, err := fmt.Fprintln(writer, b); err != nil {
			return fmt.Errorf("io: write partition file: %w", err)
		}
	}
	return writer.Flush()
}

// nextContentLine returns the next non-empty, non-comment line.
func nextContentLine(scanner *bufio.Scanner) (string, error) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		return line, nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("unexpected end of file")
}
