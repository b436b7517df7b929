package tasks

import "context"

// Runner executes a batch of tasks to completion.
// Example usage:
//
//	pool := NewPool(workerCount, retryDelay, clock, retryable)
//	outcomes := pool.Run(ctx, []TaskInterface{NewFetchSourceTask(config, adapter)})
type Runner interface {
	Run(ctx context.Context, tasks []TaskInterface) []Outcome
}

var _ Runner = (*Pool)(nil)
