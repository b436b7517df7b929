package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Outcome is the final state of one task after its retries.
type Outcome struct {
	Task     TaskInterface
	Err      error
	Attempts int
}

// Pool runs a fixed batch of tasks on a bounded number of workers and
// returns once every task has finished.
type Pool struct {
	workerCount int
	retryDelay  time.Duration
	clock       clockwork.Clock
	retryable   func(error) bool
}

// NewPool builds a pool. A nil retryable retries every error.
func NewPool(workerCount int, retryDelay time.Duration, clock clockwork.Clock, retryable func(error) bool) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if retryable == nil {
		retryable = func(error) bool { return true }
	}

	return &Pool{
		workerCount: workerCount,
		retryDelay:  retryDelay,
		clock:       clock,
		retryable:   retryable,
	}
}

// Run executes all tasks and returns their outcomes in input order.
func (p *Pool) Run(ctx context.Context, tasks []TaskInterface) []Outcome {
	outcomes := make([]Outcome, len(tasks))
	queue := make(chan int, len(tasks))
	for i := range tasks {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	for id := 0; id < min(p.workerCount, len(tasks)); id++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				outcomes[i] = p.executeTask(ctx, id, tasks[i])
			}
		}()
	}
	wg.Wait()

	return outcomes
}

func (p *Pool) executeTask(ctx context.Context, workerID int, task TaskInterface) Outcome {
	task.Start()
	attempts := 0

	for {
		attempts++
		err := task.Execute(ctx)
		if err == nil {
			return Outcome{Task: task, Attempts: attempts}
		}

		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "error", err)

		if !p.retryable(err) || !task.CanRetry() || ctx.Err() != nil {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
			return Outcome{Task: task, Err: err, Attempts: attempts}
		}

		task.IncrementRetryCount()
		delay := RetryDelay(p.retryDelay, task.GetRetryCount())

		slog.Warn("Task retry scheduled", "type", string(task.GetType()), "source", task.GetSourceName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

		if delay > 0 {
			select {
			case <-ctx.Done():
				slog.Debug("Pool stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
				return Outcome{Task: task, Err: err, Attempts: attempts}
			case <-p.clock.After(delay):
			}
		}
	}
}
