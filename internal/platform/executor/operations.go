package executor

import (
	"context"
	"sync"
	"time"

	"github.com/algoroom/algoroom/pkg/utils"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// DefaultBatchDelay is the politeness pause inserted between batches, on top
// of the per-item concurrency cap.
const DefaultBatchDelay = 500 * time.Millisecond

// Progress reports incremental completion of a bulk operation. Events are
// emitted on the options channel after every item resolves.
type Progress struct {
	Completed  int
	Total      int
	Successful int
	Failed     int
}

// Options tunes a bulk platform operation.
type Options struct {
	// MaxRetries is the number of additional operation-level attempts per
	// item after the first failure.
	MaxRetries uint64
	// RetryDelay is the wait before the first retry, doubled per attempt.
	RetryDelay time.Duration
	// BatchSize partitions the items into fixed-size batches; zero disables
	// batching and dispatches everything at once.
	BatchSize int
	// BatchDelay is the pause between batches; zero uses DefaultBatchDelay.
	BatchDelay time.Duration
	// Progress receives an event after every item resolves. The executor
	// blocks on sends, so the subscriber must keep draining until the bulk
	// call returns. Nil disables progress reporting.
	Progress chan<- Progress
}

// ItemResult holds one item's outcome at its original input index.
type ItemResult[R any] struct {
	Index int
	Value R
	Err   error
}

// BatchResult aggregates a bulk operation. Results preserve the caller's
// input order regardless of completion order.
type BatchResult[R any] struct {
	Results        []ItemResult[R]
	Successful     int
	Failed         int
	TotalProcessed int
	ProcessingTime time.Duration
}

// ExecutePlatformOperations runs fn once per item under the platform class's
// in-flight cap, wrapping each item in retry-with-exponential-backoff.
// Failures are isolated per item: one item's exhaustion of retries never
// aborts the batch or its siblings. Batch N+1 is dispatched only after batch
// N has fully settled.
func ExecutePlatformOperations[T, R any](
	ctx context.Context, e *Executor, items []T,
	fn func(context.Context, T) (R, error), opts Options,
) *BatchResult[R] {
	start := time.Now()
	result := &BatchResult[R]{
		Results: make([]ItemResult[R], len(items)),
	}

	if len(items) == 0 {
		return result
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = len(items)
	}

	batchDelay := opts.BatchDelay
	if batchDelay <= 0 {
		batchDelay = DefaultBatchDelay
	}

	retryOpts := utils.GetPlatformRetryOptions()
	retryOpts.MaxRetries = opts.MaxRetries
	if opts.RetryDelay > 0 {
		retryOpts.InitialInterval = opts.RetryDelay
		retryOpts.MaxInterval = opts.RetryDelay * 16
	}

	var (
		mu        sync.Mutex
		completed int
	)

	for offset := 0; offset < len(items); offset += batchSize {
		if offset > 0 {
			select {
			case <-ctx.Done():
				// Undispatched items still get a populated result so callers
				// never see a zero-valued entry.
				for i := offset; i < len(items); i++ {
					result.Results[i] = ItemResult[R]{Index: i, Err: ctx.Err()}
				}

				return finish(result, start)
			case <-time.After(batchDelay):
			}
		}

		end := min(offset+batchSize, len(items))
		p := pool.New().WithContext(ctx)

		for i := offset; i < end; i++ {
			p.Go(func(ctx context.Context) error {
				var (
					value R
					err   error
				)

				runErr := e.Run(ctx, ClassPlatform, func(ctx context.Context) error {
					value, err = utils.WithRetry(ctx, func() (R, error) {
						return fn(ctx, items[i])
					}, retryOpts)

					return err
				})
				if err == nil {
					err = runErr
				}

				mu.Lock()
				result.Results[i] = ItemResult[R]{Index: i, Value: value, Err: err}

				completed++
				if err == nil {
					result.Successful++
				} else {
					result.Failed++
				}

				event := Progress{
					Completed:  completed,
					Total:      len(items),
					Successful: result.Successful,
					Failed:     result.Failed,
				}
				mu.Unlock()

				if opts.Progress != nil {
					select {
					case opts.Progress <- event:
					case <-ctx.Done():
					}
				}

				return nil // item failures never abort the batch
			})
		}

		if err := p.Wait(); err != nil {
			e.logger.Error("Error during bulk dispatch", zap.Error(err))
		}
	}

	return finish(result, start)
}

func finish[R any](result *BatchResult[R], start time.Time) *BatchResult[R] {
	result.TotalProcessed = result.Successful + result.Failed
	result.ProcessingTime = time.Since(start)

	return result
}
