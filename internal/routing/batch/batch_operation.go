package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/wesleywu/routefwd/internal/logger"
)

// OperationFunc performs the operation for one item and returns its outcome
type OperationFunc[T, R any] func(ctx context.Context, item T, log *logger.Logger) R

// Process runs operationFunc over items one at a time, in order.
// Items after a cancelled context are not started; the returned slice then
// holds only the results of the items that ran.
func Process[T, R any](ctx context.Context, items []T, operationFunc OperationFunc[T, R], log *logger.Logger) []R {
	results := make([]R, 0, len(items))

	for _, item := range items {
		if ctx.Err() != nil {
			log.Warn("batch cancelled", "completed", len(results), "remaining", len(items)-len(results))
			break
		}
		results = append(results, operationFunc(ctx, item, log))
	}

	return results
}

// ProcessConcurrent runs operationFunc over items on a bounded goroutine pool.
// Results keep the order of items regardless of completion order.
func ProcessConcurrent[T, R any](ctx context.Context, items []T, operationFunc OperationFunc[T, R], concurrencyLimit int, log *logger.Logger) ([]R, error) {
	if concurrencyLimit < 1 {
		concurrencyLimit = 1
	}

	pool, err := ants.NewPool(concurrencyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	results := make([]R, len(items))
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = operationFunc(ctx, item, log)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("failed to submit batch item %d: %w", i, err)
		}
	}

	wg.Wait()
	return results, ctx.Err()
}
