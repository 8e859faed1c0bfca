// Package parallel splits index ranges into contiguous stripes processed by
// independent goroutines. Stripes never overlap, so workers that write only
// inside their own stripe need no locking.
package parallel

import (
	"runtime"
	"sync"
)

// Stripes calls fn(lo, hi) for contiguous, disjoint ranges covering [0, n)
// and returns once every call has finished. workers < 1 means NumCPU.
func Stripes(n, workers int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		fn(0, n)
		return
	}

	perWorker := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * perWorker
		hi := lo + perWorker
		if hi > n {
			hi = n
		}
		if lo >= n {
			break
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

// StripesErr is Stripes for functions that can fail. It returns the error of
// the lowest stripe that failed, so the reported error does not depend on
// goroutine scheduling.
func StripesErr(n, workers int, fn func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	perWorker := (n + workers - 1) / workers
	errs := make([]error, (n+perWorker-1)/perWorker)

	Stripes(n, workers, func(lo, hi int) {
		errs[lo/perWorker] = fn(lo, hi)
	})

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
