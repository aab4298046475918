package parallel

import (
	"sync/atomic"
	"testing"
)

func TestForCoversRangeExactlyOnce(t *testing.T) {
	for _, workers := range []int{1, 2, 8} {
		for _, n := range []int{0, 1, 63, 64, 1000} {
			pool := NewPool(workers)
			hits := make([]atomic.Int32, n)
			pool.For(n, func(i int) { hits[i].Add(1) })
			for i := range hits {
				if got := hits[i].Load(); got != 1 {
					t.Fatalf("workers=%d n=%d: index %d visited %d times", workers, n, i, got)
				}
			}
		}
	}
}

func TestForWorkerIDsInRange(t *testing.T) {
	pool := NewPool(4)
	var bad atomic.Int32
	pool.ForWorker(10000, func(worker, i int) {
		if worker < 0 || worker >= 4 {
			bad.Store(1)
		}
	})
	if bad.Load() != 0 {
		t.Error("worker id out of range")
	}
}

func TestForRangePartitions(t *testing.T) {
	pool := NewPool(3)
	covered := make([]atomic.Int32, 100)
	pool.ForRange(100, func(worker, start, end int) {
		for i := start; i < end; i++ {
			covered[i].Add(1)
		}
	})
	for i := range covered {
		if covered[i].Load() != 1 {
			t.Fatalf("index %d covered %d times", i, covered[i].Load())
		}
	}
}

func TestRunWaitsForAllTasks(t *testing.T) {
	pool := NewPool(2)
	var sum atomic.Int64
	pool.Run(
		func() { sum.Add(1) },
		func() { sum.Add(10) },
		func() { sum.Add(100) },
	)
	if sum.Load() != 111 {
		t.Errorf("sum = %d, want 111", sum.Load())
	}
}

func TestNestedFor(t *testing.T) {
	pool := NewPool(4)
	var total atomic.Int64
	pool.For(10, func(i int) {
		pool.For(10, func(j int) {
			total.Add(1)
		})
	})
	if total.Load() != 100 {
		t.Errorf("nested loops ran %d iterations, want 100", total.Load())
	}
}
