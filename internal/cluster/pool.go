package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aryankumar/fleetgate/internal/env"
	"github.com/aryankumar/fleetgate/internal/util"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool hands out exclusive, capped checkouts of per-environment clients.
// Each environment has its own weighted semaphore, so a saturated environment
// never blocks requests for another.
type Pool struct {
	opts    PoolOptions
	factory ClientFactory
	logger  *slog.Logger
	metrics PoolMetrics
	now     func() time.Time

	// mu protects slots and closed
	mu     sync.Mutex
	slots  map[string]*slot
	closed bool
}

// slot is the per-environment state: capacity, cached client and counters
type slot struct {
	sem *semaphore.Weighted

	// clientMu serializes lazy client creation
	clientMu sync.Mutex
	client   *Client

	inUse atomic.Int64
	peak  atomic.Int64
}

// NewPool creates a pool. Non-positive options fall back to a cap of 10 and a
// 5 second acquire timeout.
func NewPool(opts PoolOptions, factory ClientFactory, logger *slog.Logger) *Pool {
	if opts.MaxPerEnvironment <= 0 {
		opts.MaxPerEnvironment = 10
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		opts:    opts,
		factory: factory,
		logger:  logger,
		now:     time.Now,
		slots:   make(map[string]*slot),
	}
}

// SetMetrics registers a metrics sink for acquire events and in-use gauges
func (p *Pool) SetMetrics(m PoolMetrics) {
	p.metrics = m
}

// Acquire checks out a handle for e. It waits at most AcquireTimeout for a
// free slot and then fails with util.ErrClusterUnreachable. Expired
// credentials fail with util.ErrAuthExpired without consuming a slot. If ctx
// is cancelled while waiting, the context error is returned.
func (p *Pool) Acquire(ctx context.Context, e *env.Environment) (*Handle, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil environment", util.ErrUnknownEnvironment)
	}

	s, err := p.slotFor(e.ID)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	if e.CredentialsExpired(p.now()) {
		p.observe(e.ID, start, OutcomeAuthExpired)
		return nil, fmt.Errorf("%w: environment %q credentials expired at %s",
			util.ErrAuthExpired, e.ID, e.TokenExpiresAt.Format(time.RFC3339))
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.opts.AcquireTimeout)
	err = s.sem.Acquire(waitCtx, 1)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			p.observe(e.ID, start, OutcomeCancelled)
			return nil, fmt.Errorf("acquire client for environment %q: %w", e.ID, ctx.Err())
		}
		p.observe(e.ID, start, OutcomeTimeout)
		p.logger.Warn("client pool exhausted",
			"env", e.ID,
			"capacity", p.opts.MaxPerEnvironment,
			"waited", time.Since(start))
		return nil, fmt.Errorf("%w: environment %q: no free client after %s (capacity %d)",
			util.ErrClusterUnreachable, e.ID, p.opts.AcquireTimeout, p.opts.MaxPerEnvironment)
	}

	client, err := s.clientFor(ctx, e, p.factory)
	if err != nil {
		s.sem.Release(1)
		p.observe(e.ID, start, OutcomeClientError)
		p.logger.Error("failed to create cluster client", "env", e.ID, "error", err)
		if errors.Is(err, errNoFactory) {
			return nil, fmt.Errorf("environment %q: %w", e.ID, err)
		}
		return nil, fmt.Errorf("%w: environment %q: %v", util.ErrClusterUnreachable, e.ID, err)
	}

	n := s.inUse.Add(1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	p.setInUse(e.ID, n)
	p.observe(e.ID, start, OutcomeAcquired)

	h := &Handle{
		Env:        e,
		Client:     client,
		acquiredAt: time.Now(),
	}
	h.release = func() {
		left := s.inUse.Add(-1)
		s.sem.Release(1)
		p.setInUse(e.ID, left)
		p.logger.Debug("released client", "env", e.ID, "held", h.Held())
	}
	return h, nil
}

// Stats returns the checkout counters for an environment
func (p *Pool) Stats(envID string) Stats {
	p.mu.Lock()
	s, ok := p.slots[envID]
	p.mu.Unlock()

	st := Stats{Capacity: p.opts.MaxPerEnvironment}
	if ok {
		st.InUse = int(s.inUse.Load())
		st.Peak = int(s.peak.Load())
	}
	return st
}

// Capacity returns the per-environment handle cap
func (p *Pool) Capacity() int {
	return p.opts.MaxPerEnvironment
}

// HealthCheck acquires a handle for e and pings its API server
func (p *Pool) HealthCheck(ctx context.Context, e *env.Environment) HealthStatus {
	status := HealthStatus{Env: e.ID, Endpoint: e.Endpoint()}
	start := time.Now()

	h, err := p.Acquire(ctx, e)
	if err != nil {
		status.Error = err.Error()
		status.Latency = time.Since(start)
		return status
	}
	defer h.Release()

	version, err := h.Client.HealthCheck(ctx)
	status.Latency = time.Since(start)
	if err != nil {
		status.Error = util.Classify(err).Error()
		p.logger.Warn("health check failed", "env", e.ID, "error", err)
		return status
	}

	status.Healthy = true
	status.ServerVersion = version
	return status
}

// HealthCheckAll checks every environment concurrently, at most 10 at a
// time, and returns the statuses sorted by environment id
func (p *Pool) HealthCheckAll(ctx context.Context, envs []*env.Environment) []HealthStatus {
	results := make([]HealthStatus, len(envs))

	var g errgroup.Group
	g.SetLimit(10)
	for i, e := range envs {
		i, e := i, e
		g.Go(func() error {
			results[i] = p.HealthCheck(ctx, e)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Env < results[j].Env })

	p.logger.Info("health checks completed",
		"total", len(results),
		"healthy", countHealthy(results))
	return results
}

// Close drops all cached clients. Later Acquire calls fail with
// util.ErrClusterUnreachable; handles already out may still be released.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.logger.Info("closing client pool", "environments", len(p.slots))
	p.slots = make(map[string]*slot)
	p.closed = true
}

// IsClosed returns true if the pool has been closed
func (p *Pool) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// slotFor returns the environment's slot, creating it on first use
func (p *Pool) slotFor(envID string) (*slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, fmt.Errorf("%w: client pool is closed", util.ErrClusterUnreachable)
	}

	s, ok := p.slots[envID]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(int64(p.opts.MaxPerEnvironment))}
		p.slots[envID] = s
	}
	return s, nil
}

var errNoFactory = errors.New("no client factory configured")

// clientFor returns the cached client or creates it. Failures are not cached.
func (s *slot) clientFor(ctx context.Context, e *env.Environment, factory ClientFactory) (*Client, error) {
	s.clientMu.Lock()
	defer s.clientMu.Unlock()

	if s.client != nil {
		return s.client, nil
	}
	if factory == nil {
		return nil, errNoFactory
	}

	client, err := factory(ctx, e)
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

func (p *Pool) setInUse(envID string, n int64) {
	if p.metrics != nil {
		p.metrics.SetHandlesInUse(envID, int(n))
	}
}

func (p *Pool) observe(envID string, start time.Time, outcome string) {
	if p.metrics != nil {
		p.metrics.ObserveAcquire(envID, time.Since(start), outcome)
	}
}

// countHealthy counts the healthy statuses
func countHealthy(results []HealthStatus) int {
	count := 0
	for _, r := range results {
		if r.Healthy {
			count++
		}
	}
	return count
}
