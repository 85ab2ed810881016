// Package parallel splits index ranges across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution.
type Config struct {
	Workers  int // Goroutines to use; <= 1 runs sequentially
	MinChunk int // Smallest range handed to one goroutine (default: 1)
}

// DefaultConfig uses one worker per CPU and chunks of at least minChunk.
func DefaultConfig(minChunk int) Config {
	return Config{Workers: runtime.NumCPU(), MinChunk: minChunk}
}

// Sequential runs every range on the calling goroutine.
var Sequential = Config{Workers: 1}

// Range calls fn on disjoint [lo, hi) ranges covering [0, n) and returns
// once all calls are done. Ranges shorter than MinChunk are not split.
func Range(n int, cfg Config, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	chunk := max(cfg.MinChunk, 1)
	if cfg.Workers <= 1 || n < 2*chunk {
		fn(0, n)
		return
	}
	chunk = max(chunk, (n+cfg.Workers-1)/cfg.Workers)

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(lo, hi)
		}()
	}
	wg.Wait()
}

// For calls fn(i) for every i in [0, n).
func For(n int, cfg Config, fn func(i int)) {
	Range(n, cfg, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			fn(i)
		}
	})
}
