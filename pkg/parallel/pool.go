package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a sized worker pool for data-parallel index loops. Tasks run to
// completion; there are no suspension points. Nested For calls from inside a
// worker run on fresh goroutines, so phases may freely compose parallel
// loops.
type Pool struct {
	numWorkers int
}

var (
	defaultPool     atomic.Pointer[Pool]
	defaultPoolOnce sync.Once
)

// NewPool creates a pool with the given worker count. Counts below 1 fall
// back to a single worker.
func NewPool(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool{numWorkers: numWorkers}
}

// Init installs the process-wide default pool. It is called once by the
// public thread-pool initialization; later calls replace the pool.
func Init(numWorkers int) *Pool {
	p := NewPool(numWorkers)
	defaultPool.Store(p)
	return p
}

// Default returns the process-wide pool, creating one sized to the machine
// if Init was never called.
func Default() *Pool {
	if p := defaultPool.Load(); p != nil {
		return p
	}
	defaultPoolOnce.Do(func() {
		defaultPool.CompareAndSwap(nil, NewPool(runtime.NumCPU()))
	})
	return defaultPool.Load()
}

func (p *Pool) NumWorkers() int { return p.numWorkers }

const minChunk = 64

// For runs fn(i) for every i in [0, n). Iterations are claimed in chunks via
// an atomic cursor, so uneven per-iteration cost balances across workers.
func (p *Pool) For(n int, fn func(i int)) {
	p.ForWorker(n, func(_, i int) { fn(i) })
}

// ForWorker is For with the worker id passed through, so callers can keep
// per-worker scratch state without locking.
func (p *Pool) ForWorker(n int, fn func(worker, i int)) {
	if n <= 0 {
		return
	}
	workers := p.numWorkers
	if n < workers*minChunk {
		// small ranges: shrink the worker count rather than the chunk
		workers = (n + minChunk - 1) / minChunk
	}
	if workers <= 1 {
		for i := 0; i < n; i++ {
			fn(0, i)
		}
		return
	}

	chunk := n / (workers * 4)
	if chunk < minChunk {
		chunk = minChunk
	}
	var cursor atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(worker int) {
			defer wg.Done()
			for {
				start := int(cursor.Add(int64(chunk))) - chunk
				if start >= n {
					return
				}
				end := start + chunk
				if end > n {
					end = n
				}
				for i := start; i < end; i++ {
					fn(worker, i)
				}
			}
		}(w)
	}
	wg.Wait()
}

// ForRange splits [0, n) into one contiguous range per worker and calls
// fn(worker, start, end). Deterministic phases use this shape so per-worker
// partial results can be merged in a fixed order.
func (p *Pool) ForRange(n int, fn func(worker, start, end int)) {
	if n <= 0 {
		return
	}
	workers := p.numWorkers
	if workers > n {
		workers = n
	}
	per := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		start := w * per
		if start >= n {
			break
		}
		end := start + per
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(worker, start, end int) {
			defer wg.Done()
			fn(worker, start, end)
		}(w, start, end)
	}
	wg.Wait()
}

// Run executes the given tasks concurrently and waits for all of them.
func (p *Pool) Run(tasks ...func()) {
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for _, task := range tasks {
		go func(task func()) {
			defer wg.Done()
			task()
		}(task)
	}
	wg.Wait()
}
