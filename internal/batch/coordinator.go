// Package batch fans multi-item mutations out over the gateway with bounded
// concurrency. Every item gets its own result; one item's failure never stops
// or undoes another.
package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aryankumar/fleetgate/internal/env"
	"github.com/aryankumar/fleetgate/internal/executor"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/aryankumar/fleetgate/internal/util"
)

// DefaultConcurrency is the per-batch ceiling used when none is configured
const DefaultConcurrency = 5

// Gateway is the part of the resource gateway a batch needs
type Gateway interface {
	Resolve(envID string) (*env.Environment, error)
	DeleteOne(ctx context.Context, ref gateway.ResourceRef, opts gateway.DeleteOptions) error
	SetSchedulable(ctx context.Context, envID, node string, schedulable bool) (bool, error)
}

// Metrics receives one observation per finished batch
type Metrics interface {
	ObserveBatch(operation, outcome string, items int)
}

// Options configures a Coordinator
type Options struct {
	// Concurrency caps in-flight item calls per batch
	Concurrency int

	// ForceDelete bypasses the gateway's protected owner check for pod deletion
	ForceDelete bool
}

// PodItem addresses one pod of a batch delete. Env may be empty, meaning the
// batch's environment.
type PodItem struct {
	Env       string `json:"env,omitempty"`
	Namespace string `json:"ns"`
	Name      string `json:"pod_name"`
}

// Coordinator runs batch mutations
type Coordinator struct {
	gw      Gateway
	opts    Options
	workers *executor.Pool
	logger  *slog.Logger
	metrics Metrics
}

// NewCoordinator creates a coordinator. Concurrency <= 0 uses DefaultConcurrency.
func NewCoordinator(gw Gateway, opts Options, logger *slog.Logger) *Coordinator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		gw:      gw,
		opts:    opts,
		workers: executor.NewPool(opts.Concurrency, logger),
		logger:  logger,
	}
}

// SetMetrics registers a metrics sink for batch outcomes
func (c *Coordinator) SetMetrics(m Metrics) {
	c.metrics = m
}

// Concurrency returns the per-batch ceiling
func (c *Coordinator) Concurrency() int {
	return c.opts.Concurrency
}

// Shutdown stops accepting batches and waits for running ones
func (c *Coordinator) Shutdown(ctx context.Context) error {
	return c.workers.Shutdown(ctx)
}

// DeletePods deletes every pod in items from envID.
// The returned error is set only when the batch as a whole is invalid.
func (c *Coordinator) DeletePods(ctx context.Context, envID string, items []PodItem) (*Report, error) {
	if len(items) == 0 {
		return nil, util.InvalidRequest("pods", nil, "batch must contain at least one pod")
	}
	for i, it := range items {
		if it.Env != "" && it.Env != envID {
			return nil, util.InvalidRequest(fmt.Sprintf("pods[%d].env", i), it.Env,
				fmt.Sprintf("every item must address environment %q", envID))
		}
	}
	if _, err := c.gw.Resolve(envID); err != nil {
		return nil, err
	}

	keys := make([]itemKey, len(items))
	tasks := make([]executor.Task[change], len(items))
	for i, it := range items {
		it := it
		keys[i] = itemKey{namespace: it.Namespace, name: it.Name}
		tasks[i] = executor.Task[change]{
			Key: it.Namespace + "/" + it.Name,
			Run: func(ctx context.Context) (change, error) {
				if it.Name == "" {
					return change{}, util.InvalidRequest("pod_name", it.Name, "pod name is required")
				}
				ref := gateway.ResourceRef{Env: envID, Namespace: it.Namespace, Kind: gateway.KindPod, Name: it.Name}
				if err := c.gw.DeleteOne(ctx, ref, gateway.DeleteOptions{Force: c.opts.ForceDelete}); err != nil {
					return change{}, err
				}
				return change{changed: true, reason: "deleted"}, nil
			},
		}
	}

	return c.run(ctx, "delete_pods", envID, keys, tasks), nil
}

// Cordon marks every node in nodes unschedulable. Nodes that are already
// cordoned succeed without change.
func (c *Coordinator) Cordon(ctx context.Context, envID string, nodes []string) (*Report, error) {
	return c.setSchedulable(ctx, "cordon", envID, nodes, false)
}

// Uncordon marks every node in nodes schedulable. Nodes that are already
// schedulable succeed without change.
func (c *Coordinator) Uncordon(ctx context.Context, envID string, nodes []string) (*Report, error) {
	return c.setSchedulable(ctx, "uncordon", envID, nodes, true)
}

func (c *Coordinator) setSchedulable(ctx context.Context, operation, envID string, nodes []string, schedulable bool) (*Report, error) {
	if len(nodes) == 0 {
		return nil, util.InvalidRequest("node_names", nil, "batch must contain at least one node")
	}
	if _, err := c.gw.Resolve(envID); err != nil {
		return nil, err
	}

	done, noop := "cordoned", "already cordoned"
	if schedulable {
		done, noop = "uncordoned", "already schedulable"
	}

	keys := make([]itemKey, len(nodes))
	tasks := make([]executor.Task[change], len(nodes))
	for i, node := range nodes {
		node := node
		keys[i] = itemKey{name: node}
		tasks[i] = executor.Task[change]{
			Key: node,
			Run: func(ctx context.Context) (change, error) {
				changed, err := c.gw.SetSchedulable(ctx, envID, node, schedulable)
				if err != nil {
					return change{}, err
				}
				if !changed {
					return change{reason: noop}, nil
				}
				return change{changed: true, reason: done}, nil
			},
		}
	}

	return c.run(ctx, operation, envID, keys, tasks), nil
}

func (c *Coordinator) run(ctx context.Context, operation, envID string, keys []itemKey, tasks []executor.Task[change]) *Report {
	results := executor.Execute(ctx, c.workers, tasks)
	report := buildReport(operation, envID, keys, results)

	c.logger.Info("batch completed",
		"operation", operation,
		"env", envID,
		"outcome", report.Outcome,
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", report.Failed)

	if c.metrics != nil {
		c.metrics.ObserveBatch(operation, string(report.Outcome), report.Total)
	}
	return report
}
