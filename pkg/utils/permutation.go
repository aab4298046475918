package utils

import (
	"math/rand"
	"sort"
)

// SeededPermutation returns a permutation of [0, n) generated from the seed.
// The result is identical across runs and thread counts.
func SeededPermutation(n int, seed int64) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
	return perm
}

// BucketPermutation groups the elements of [0, n) into hashed buckets and
// orders them bucket by bucket. Synchronous algorithms process one bucket
// range per sub-round: within a sub-round every element only proposes, so
// the outcome does not depend on thread count.
type BucketPermutation struct {
	Order        []int
	BucketBounds []int // len = NumBuckets+1, offsets into Order
	NumBuckets   int
}

// NewBucketPermutation builds a bucket permutation for n elements. Elements
// are assigned to buckets by seeded hash and sorted by (bucket, hash, id),
// which makes the full order a pure function of (n, numBuckets, seed).
func NewBucketPermutation(n, numBuckets int, seed int64) *BucketPermutation {
	if numBuckets < 1 {
		numBuckets = 1
	}
	type entry struct {
		id     int
		bucket int
		hash   uint64
	}
	entries := make([]entry, n)
	for i := 0; i < n; i++ {
		h := CombineSeed(seed, i)
		entries[i] = entry{id: i, bucket: int(h % uint64(numBuckets)), hash: h}
	}
	sort.Slice(entries, func(a, b int) bool {
		if entries[a].bucket != entries[b].bucket {
			return entries[a].bucket < entries[b].bucket
		}
		if entries[a].hash != entries[b].hash {
			return entries[a].hash < entries[b].hash
		}
		return entries[a].id < entries[b].id
	})

	bp := &BucketPermutation{
		Order:        make([]int, n),
		BucketBounds: make([]int, numBuckets+1),
		NumBuckets:   numBuckets,
	}
	for i, e := range entries {
		bp.Order[i] = e.id
	}
	// bucket bounds via counting
	counts := make([]int, numBuckets)
	for _, e := range entries {
		counts[e.bucket]++
	}
	for b := 0; b < numBuckets; b++ {
		bp.BucketBounds[b+1] = bp.BucketBounds[b] + counts[b]
	}
	return bp
}

// SubRoundRange returns the half-open element range covered by the given
// sub-round when the buckets are split into numSubRounds groups.
func (bp *BucketPermutation) SubRoundRange(subRound, numSubRounds int) (int, int) {
	bucketsPerRound := (bp.NumBuckets + numSubRounds - 1) / numSubRounds
	firstBucket := subRound * bucketsPerRound
	lastBucket := firstBucket + bucketsPerRound
	if firstBucket > bp.NumBuckets {
		firstBucket = bp.NumBuckets
	}
	if lastBucket > bp.NumBuckets {
		lastBucket = bp.NumBuckets
	}
	return bp.BucketBounds[firstBucket], bp.BucketBounds[lastBucket]
}
