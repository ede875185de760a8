package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrShutdown is the error of every result produced by a shut down pool
var ErrShutdown = errors.New("worker pool is shut down")

// Task is one unit of work
type Task[T any] struct {
	// Key identifies the task in logs, e.g. "prod/default/web-0"
	Key string

	// Run performs the work
	Run func(ctx context.Context) (T, error)
}

// Result is the outcome of one task
type Result[T any] struct {
	// Key is the task's key
	Key string

	// Index is the task's position in the submitted slice
	Index int

	// Value is whatever Run returned
	Value T

	// Err is the task's error, or a wrapped context error if it never ran
	Err error

	// Executed is false when the task was skipped
	Executed bool

	// Duration is how long Run took
	Duration time.Duration
}

// Success reports whether the task ran and returned no error
func (r Result[T]) Success() bool {
	return r.Executed && r.Err == nil
}

// Pool runs tasks with a bounded number of workers
type Pool struct {
	workers int
	logger  *slog.Logger

	shutdown atomic.Bool
	running  atomic.Int32
}

// testHookAdmitting runs between counting an execution and checking for shutdown
var testHookAdmitting func()

// taskWithIndex wraps a task with its original index
type taskWithIndex[T any] struct {
	task  Task[T]
	index int
}

// NewPool creates a worker pool. Values of workers <= 0 mean 1.
func NewPool(workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		workers: workers,
		logger:  logger,
	}
}

// Workers returns the configured concurrency ceiling
func (p *Pool) Workers() int {
	return p.workers
}

// Execute runs tasks and returns one result per task, in task order
func Execute[T any](ctx context.Context, p *Pool, tasks []Task[T]) []Result[T] {
	return ExecuteWithProgress(ctx, p, tasks, nil)
}

// ExecuteWithProgress is Execute with a callback invoked as each task
// finishes. The callback may be called from several goroutines at once.
func ExecuteWithProgress[T any](ctx context.Context, p *Pool, tasks []Task[T], progressFn func(completed, total int)) []Result[T] {
	taskCount := len(tasks)
	results := make([]Result[T], taskCount)
	for i, task := range tasks {
		results[i] = Result[T]{Key: task.Key, Index: i}
	}
	if taskCount == 0 {
		return results
	}

	// Count the execution before checking the flag so a concurrent Shutdown
	// either rejects it here or waits for it.
	p.running.Add(1)
	defer p.running.Add(-1)
	if testHookAdmitting != nil {
		testHookAdmitting()
	}
	if p.shutdown.Load() {
		for i := range results {
			results[i].Err = ErrShutdown
		}
		return results
	}

	startTime := time.Now()

	workerCount := p.workers
	if workerCount > taskCount {
		workerCount = taskCount
	}
	p.logger.Debug("starting workers", "count", workerCount, "tasks", taskCount)

	taskChan := make(chan taskWithIndex[T], taskCount)
	var (
		wg        sync.WaitGroup
		completed atomic.Int32
	)

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for item := range taskChan {
				// Only this worker writes results[item.index].
				results[item.index] = runTask(ctx, p.logger, item)

				n := completed.Add(1)
				if progressFn != nil {
					progressFn(int(n), taskCount)
				}
			}
			p.logger.Debug("worker finished", "worker_id", workerID)
		}(i)
	}

	for i, task := range tasks {
		taskChan <- taskWithIndex[T]{task: task, index: i}
	}
	close(taskChan)
	wg.Wait()

	failed := CountFailed(results)
	p.logger.Debug("task execution completed",
		"total", taskCount,
		"successful", taskCount-failed,
		"failed", failed,
		"duration", time.Since(startTime))

	return results
}

// runTask runs one task unless ctx is already done
func runTask[T any](ctx context.Context, logger *slog.Logger, item taskWithIndex[T]) Result[T] {
	result := Result[T]{Key: item.task.Key, Index: item.index}

	if err := ctx.Err(); err != nil {
		result.Err = fmt.Errorf("task not executed: %w", err)
		return result
	}
	if item.task.Run == nil {
		result.Err = errors.New("task has no run function")
		return result
	}

	start := time.Now()
	result.Value, result.Err = item.task.Run(ctx)
	result.Duration = time.Since(start)
	result.Executed = true

	if result.Err != nil {
		logger.Debug("task failed", "key", item.task.Key, "error", result.Err, "duration", result.Duration)
	}
	return result
}

// Shutdown stops the pool from accepting new executions and waits for
// running ones to finish. The context bounds the wait.
func (p *Pool) Shutdown(ctx context.Context) error {
	if !p.shutdown.CompareAndSwap(false, true) {
		return fmt.Errorf("pool already shut down")
	}

	p.logger.Debug("shutting down worker pool")

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if p.running.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("shutdown timed out with %d executions running: %w", p.running.Load(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// IsShutdown returns true if the pool has been shut down
func (p *Pool) IsShutdown() bool {
	return p.shutdown.Load()
}

// IsRunning returns true if an execution is in progress
func (p *Pool) IsRunning() bool {
	return p.running.Load() > 0
}
