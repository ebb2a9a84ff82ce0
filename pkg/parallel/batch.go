package parallel

import (
	"context"
	"runtime"
	"sync"
)

// DefaultBatchSize is the number of work items processed between
// cancellation checks when BatchOptions.BatchSize is unset.
const DefaultBatchSize = 8

// Progress describes how far a batched run has advanced.
type Progress struct {
	Done    int `json:"done"`
	Total   int `json:"total"`
	Percent int `json:"percent"`
}

// ProgressFunc receives progress updates. Percent never decreases within a run.
type ProgressFunc func(Progress)

// BatchOptions controls RunBatches.
type BatchOptions struct {
	BatchSize int
	Pool      *WorkerPool // nil runs every item on the calling goroutine
	Progress  ProgressFunc
}

// Outcome reports how many leading items completed. Items [0, Done) are
// finished; nothing at or after Done was started once Cancelled is set.
type Outcome struct {
	Done      int
	Total     int
	Cancelled bool
}

// RunBatches calls fn for every index in [0, total), BatchSize indexes at a
// time. The context is checked before each batch and the goroutine yields
// after each one. fn must only write to state owned by its index so that a
// cancelled run leaves a consistent prefix behind.
func RunBatches(ctx context.Context, total int, opts BatchOptions, fn func(i int)) Outcome {
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	out := Outcome{Total: total}
	lastPercent := -1
	report := func() {
		if opts.Progress == nil {
			return
		}
		pct := 100
		if total > 0 {
			pct = out.Done * 100 / total
		}
		if pct > lastPercent {
			lastPercent = pct
			opts.Progress(Progress{Done: out.Done, Total: total, Percent: pct})
		}
	}

	for out.Done < total {
		if ctx.Err() != nil {
			out.Cancelled = true
			return out
		}

		end := out.Done + size
		if end > total {
			end = total
		}
		runBatch(opts.Pool, out.Done, end, fn)
		out.Done = end
		report()
		runtime.Gosched()
	}

	if total == 0 {
		report()
	}
	return out
}

func runBatch(pool *WorkerPool, start, end int, fn func(i int)) {
	if pool == nil || pool.Workers() <= 1 || end-start <= 1 {
		for i := start; i < end; i++ {
			fn(i)
		}
		return
	}

	var wg sync.WaitGroup
	for i := start; i < end; i++ {
		i := i
		wg.Add(1)
		submitted := pool.Submit(func() {
			defer wg.Done()
			fn(i)
		})
		if !submitted {
			wg.Done()
			fn(i)
		}
	}
	wg.Wait()
}
