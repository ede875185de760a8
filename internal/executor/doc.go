// Package executor runs a fixed list of independent tasks on a bounded
// number of workers.
//
// Results always come back in task order, one per task, whatever happened to
// the task: a failure in one task never stops the others, and tasks that had
// not started when the context was cancelled get a result whose error wraps
// the context error. Nothing is retried.
//
//	pool := executor.NewPool(5, logger)
//	results := executor.Execute(ctx, pool, []executor.Task[string]{
//	    {Key: "node-1", Run: func(ctx context.Context) (string, error) { ... }},
//	    {Key: "node-2", Run: func(ctx context.Context) (string, error) { ... }},
//	})
//	summary := executor.Summarize(results)
//
// A Pool can be shared by concurrent callers; each Execute call gets its own
// set of workers sized min(workers, len(tasks)). Shutdown stops new
// executions and waits for running ones to drain.
package executor
