package partition

import (
	"math"
	"math/bits"
	"sync"
	"sync/atomic"

	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioning-service/pkg/parallel"
)

// UnassignedBlock marks a vertex without a block.
const UnassignedBlock = -1

// MaxBlockWeight disables the weight constraint of a move.
const MaxBlockWeight = int64(math.MaxInt64) / 2

// SyncEdgeUpdate describes the effect of one committed move on one incident
// hyperedge. The partitioned hypergraph emits exactly one update per
// incident edge per committed move; the gain cache and objective
// accumulators consume it.
type SyncEdgeUpdate struct {
	Edge              int
	EdgeWeight        int64
	EdgeSize          int
	PinCountFromAfter int32
	PinCountToAfter   int32
	From              int
	To                int
}

// DeltaFunc accumulates the exact objective delta of a move.
type DeltaFunc func(SyncEdgeUpdate)

const numEdgeLockStripes = 1024

// PartitionedHypergraph overlays a k-way partition on an immutable
// hypergraph: block assignment, atomic block weights, per-(edge,block) pin
// counts, connectivity sets, and border bookkeeping. All mutation goes
// through SetOnlyNodePart/InitializePartition (bulk) or ChangeNodePart
// (concurrent single moves).
type PartitionedHypergraph struct {
	hg *hypergraph.Hypergraph
	k  int

	part        []atomic.Int32
	partWeights []atomic.Int64

	pinCounts []atomic.Int32  // edge*k + block
	connBits  []atomic.Uint64 // edge*wordsPerEdge + word
	connCount []atomic.Int32  // λ(e)

	numIncidentCut []atomic.Int32 // per vertex: |{e ∋ v : λ(e) ≥ 2}|

	wordsPerEdge int
	edgeLocks    [numEdgeLockStripes]sync.Mutex

	// gainUpdater receives every SyncEdgeUpdate before the caller's
	// DeltaFunc, keeping cached gains consistent with committed moves.
	gainUpdater func(SyncEdgeUpdate)

	pool *parallel.Pool
}

// NewPartitionedHypergraph creates an overlay for a k-way partition. All
// vertices start unassigned.
func NewPartitionedHypergraph(hg *hypergraph.Hypergraph, k int, pool *parallel.Pool) *PartitionedHypergraph {
	if pool == nil {
		pool = parallel.Default()
	}
	phg := &PartitionedHypergraph{
		hg:           hg,
		k:            k,
		wordsPerEdge: (k + 63) / 64,
		pool:         pool,
	}
	phg.part = make([]atomic.Int32, hg.NumNodes())
	phg.partWeights = make([]atomic.Int64, k)
	phg.pinCounts = make([]atomic.Int32, hg.NumEdges()*k)
	phg.connBits = make([]atomic.Uint64, hg.NumEdges()*phg.wordsPerEdge)
	phg.connCount = make([]atomic.Int32, hg.NumEdges())
	phg.numIncidentCut = make([]atomic.Int32, hg.NumNodes())
	for v := range phg.part {
		phg.part[v].Store(UnassignedBlock)
	}
	return phg
}

func (phg *PartitionedHypergraph) Hypergraph() *hypergraph.Hypergraph { return phg.hg }
func (phg *PartitionedHypergraph) K() int                             { return phg.k }
func (phg *PartitionedHypergraph) Pool() *parallel.Pool               { return phg.pool }

// SetGainUpdater registers the gain-cache hook invoked on every committed
// move, once per incident edge.
func (phg *PartitionedHypergraph) SetGainUpdater(fn func(SyncEdgeUpdate)) {
	phg.gainUpdater = fn
}

// SetOnlyNodePart places v into block b without maintaining any aggregate.
// It is only valid before InitializePartition.
func (phg *PartitionedHypergraph) SetOnlyNodePart(v, b int) {
	phg.part[v].Store(int32(b))
}

// InitializePartition computes block weights, pin counts, connectivity sets
// and border bookkeeping from the current assignment, in parallel.
func (phg *PartitionedHypergraph) InitializePartition() {
	hg := phg.hg
	k := phg.k

	phg.pool.For(hg.NumNodes(), func(v int) {
		if b := phg.part[v].Load(); b != UnassignedBlock {
			phg.partWeights[b].Add(hg.NodeWeight(v))
		}
		phg.numIncidentCut[v].Store(0)
	})

	phg.pool.For(hg.NumEdges(), func(e int) {
		base := e * k
		for b := 0; b < k; b++ {
			phg.pinCounts[base+b].Store(0)
		}
		for w := 0; w < phg.wordsPerEdge; w++ {
			phg.connBits[e*phg.wordsPerEdge+w].Store(0)
		}
		lambda := int32(0)
		for _, v := range hg.Pins(e) {
			b := phg.part[v].Load()
			if b == UnassignedBlock {
				continue
			}
			if phg.pinCounts[base+int(b)].Add(1) == 1 {
				word := e*phg.wordsPerEdge + int(b)/64
				phg.connBits[word].Or(uint64(1) << (uint(b) % 64))
				lambda++
			}
		}
		phg.connCount[e].Store(lambda)
		if lambda >= 2 {
			for _, v := range hg.Pins(e) {
				phg.numIncidentCut[v].Add(1)
			}
		}
	})
}

// Reset clears the partition so the overlay can be reused (v-cycles).
func (phg *PartitionedHypergraph) Reset() {
	for v := range phg.part {
		phg.part[v].Store(UnassignedBlock)
	}
	for b := range phg.partWeights {
		phg.partWeights[b].Store(0)
	}
	for i := range phg.pinCounts {
		phg.pinCounts[i].Store(0)
	}
	for i := range phg.connBits {
		phg.connBits[i].Store(0)
	}
	for i := range phg.connCount {
		phg.connCount[i].Store(0)
	}
	for i := range phg.numIncidentCut {
		phg.numIncidentCut[i].Store(0)
	}
}

// ChangeNodePart atomically moves v from block `from` to block `to`,
// provided the target block weight stays within maxWeightTo. The target
// weight is reserved with an add-then-check; a concurrent reservation by
// another move may therefore spuriously reject a feasible move, which is the
// intended conservative behavior. For each incident hyperedge the pin
// counts, connectivity set and border bookkeeping are updated and one
// SyncEdgeUpdate is delivered to the registered gain updater and to deltaFn.
func (phg *PartitionedHypergraph) ChangeNodePart(v, from, to int, maxWeightTo int64, deltaFn DeltaFunc) bool {
	w := phg.hg.NodeWeight(v)
	if phg.partWeights[to].Add(w) > maxWeightTo {
		phg.partWeights[to].Add(-w)
		return false
	}
	// the CAS on the block id serializes concurrent moves of the same
	// vertex: exactly one wins, the rest release their reservation
	if !phg.part[v].CompareAndSwap(int32(from), int32(to)) {
		phg.partWeights[to].Add(-w)
		return false
	}
	phg.partWeights[from].Add(-w)

	k := phg.k
	for _, e := range phg.hg.IncidentEdges(v) {
		lock := &phg.edgeLocks[e%numEdgeLockStripes]
		lock.Lock()
		pcFrom := phg.pinCounts[e*k+from].Add(-1)
		pcTo := phg.pinCounts[e*k+to].Add(1)
		lambdaBefore := phg.connCount[e].Load()
		lambdaAfter := lambdaBefore
		if pcTo == 1 {
			word := e*phg.wordsPerEdge + to/64
			phg.connBits[word].Or(uint64(1) << (uint(to) % 64))
			lambdaAfter++
		}
		if pcFrom == 0 {
			word := e*phg.wordsPerEdge + from/64
			phg.connBits[word].And(^(uint64(1) << (uint(from) % 64)))
			lambdaAfter--
		}
		if lambdaAfter != lambdaBefore {
			phg.connCount[e].Store(lambdaAfter)
		}
		lock.Unlock()

		if lambdaBefore < 2 && lambdaAfter >= 2 {
			for _, pin := range phg.hg.Pins(e) {
				phg.numIncidentCut[pin].Add(1)
			}
		} else if lambdaBefore >= 2 && lambdaAfter < 2 {
			for _, pin := range phg.hg.Pins(e) {
				phg.numIncidentCut[pin].Add(-1)
			}
		}

		upd := SyncEdgeUpdate{
			Edge:              e,
			EdgeWeight:        phg.hg.EdgeWeight(e),
			EdgeSize:          phg.hg.EdgeSize(e),
			PinCountFromAfter: pcFrom,
			PinCountToAfter:   pcTo,
			From:              from,
			To:                to,
		}
		if phg.gainUpdater != nil {
			phg.gainUpdater(upd)
		}
		if deltaFn != nil {
			deltaFn(upd)
		}
	}
	return true
}

// PartID returns the block of v, or UnassignedBlock.
func (phg *PartitionedHypergraph) PartID(v int) int {
	return int(phg.part[v].Load())
}

// PartWeight returns the current weight of block b.
func (phg *PartitionedHypergraph) PartWeight(b int) int64 {
	return phg.partWeights[b].Load()
}

// PinCountInPart returns pc(e, b).
func (phg *PartitionedHypergraph) PinCountInPart(e, b int) int {
	return int(phg.pinCounts[e*phg.k+b].Load())
}

// Connectivity returns λ(e), the number of blocks the pins of e occupy.
func (phg *PartitionedHypergraph) Connectivity(e int) int {
	return int(phg.connCount[e].Load())
}

// ConnectivitySet returns Λ(e) as a sorted block list.
func (phg *PartitionedHypergraph) ConnectivitySet(e int) []int {
	set := make([]int, 0, phg.connCount[e].Load())
	for w := 0; w < phg.wordsPerEdge; w++ {
		word := phg.connBits[e*phg.wordsPerEdge+w].Load()
		for word != 0 {
			set = append(set, w*64+bits.TrailingZeros64(word))
			word &= word - 1
		}
	}
	return set
}

// IsBorderNode reports whether v touches a hyperedge spanning ≥ 2 blocks.
func (phg *PartitionedHypergraph) IsBorderNode(v int) bool {
	return phg.numIncidentCut[v].Load() > 0
}

// NumIncidentCutEdges returns the number of cut hyperedges incident to v.
func (phg *PartitionedHypergraph) NumIncidentCutEdges(v int) int {
	return int(phg.numIncidentCut[v].Load())
}

// PartSnapshot copies the current assignment into a plain slice.
func (phg *PartitionedHypergraph) PartSnapshot() []int32 {
	snap := make([]int32, len(phg.part))
	for v := range phg.part {
		snap[v] = phg.part[v].Load()
	}
	return snap
}

// ExtractBlock builds the sub-hypergraph induced by one block under the
// given cut policy. It returns the extracted hypergraph and the sub-to-
// original vertex map.
func (phg *PartitionedHypergraph) ExtractBlock(block int, policy hypergraph.CutPolicy) (*hypergraph.Hypergraph, []int) {
	return phg.hg.ExtractBlock(phg.PartSnapshot(), block, policy, phg.pool)
}
