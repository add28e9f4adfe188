package interpolate

import (
	"context"
	"sync"
)

// chunksPerWorker controls how finely the grid is split so that slow
// regions (dense triangulation) do not leave workers idle.
const chunksPerWorker = 8

// parallel calls fn for every index in [0, n) using a bounded pool of
// workers over contiguous chunks. Each index is visited exactly once, so fn
// may write to index-owned slots without locking. Cancellation is checked
// between chunks; the caller must discard results when an error is returned.
func parallel(ctx context.Context, n, workers int, fn func(i int)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if workers > n {
		workers = n
	}
	size := max(n/(workers*chunksPerWorker), 1)

	type chunk struct{ start, end int }
	jobs := make(chan chunk)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				if ctx.Err() != nil {
					continue
				}
				for i := c.start; i < c.end; i++ {
					fn(i)
				}
			}
		}()
	}

feed:
	for start := 0; start < n; start += size {
		select {
		case jobs <- chunk{start: start, end: min(start+size, n)}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return ctx.Err()
}
