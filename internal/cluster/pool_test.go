package cluster

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aryankumar/fleetgate/internal/env"
	"github.com/aryankumar/fleetgate/internal/util"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/version"
	fakediscovery "k8s.io/client-go/discovery/fake"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fakeFactory(created *atomic.Int32) ClientFactory {
	return func(_ context.Context, e *env.Environment) (*Client, error) {
		if created != nil {
			created.Add(1)
		}
		clientset := fake.NewSimpleClientset()
		clientset.Discovery().(*fakediscovery.FakeDiscovery).FakedServerVersion = &version.Info{GitVersion: "v1.31.0"}
		return &Client{
			Env:       e.ID,
			Clientset: clientset,
			Dynamic:   dynamicfake.NewSimpleDynamicClient(runtime.NewScheme()),
		}, nil
	}
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	inUse    map[string]int
}

func (r *recordingMetrics) SetHandlesInUse(env string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inUse == nil {
		r.inUse = make(map[string]int)
	}
	r.inUse[env] = n
}

func (r *recordingMetrics) ObserveAcquire(_ string, _ time.Duration, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func TestPool_AcquireRelease(t *testing.T) {
	var created atomic.Int32
	pool := NewPool(PoolOptions{MaxPerEnvironment: 2, AcquireTimeout: time.Second}, fakeFactory(&created), quietLogger())
	metrics := &recordingMetrics{}
	pool.SetMetrics(metrics)

	e := &env.Environment{ID: "prod"}

	h1, err := pool.Acquire(context.Background(), e)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	h2, err := pool.Acquire(context.Background(), e)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if h1.Client != h2.Client {
		t.Error("expected the cached client to be reused across checkouts")
	}
	if created.Load() != 1 {
		t.Errorf("expected factory to run once, ran %d times", created.Load())
	}

	stats := pool.Stats("prod")
	if stats.InUse != 2 || stats.Peak != 2 || stats.Capacity != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}

	h1.Release()
	h1.Release()
	h2.Release()

	stats = pool.Stats("prod")
	if stats.InUse != 0 {
		t.Errorf("expected 0 in use after release, got %d", stats.InUse)
	}
	if metrics.inUse["prod"] != 0 {
		t.Errorf("expected in-use gauge back at 0, got %d", metrics.inUse["prod"])
	}
}

func TestPool_AcquireTimeout(t *testing.T) {
	pool := NewPool(PoolOptions{MaxPerEnvironment: 1, AcquireTimeout: 50 * time.Millisecond}, fakeFactory(nil), quietLogger())
	metrics := &recordingMetrics{}
	pool.SetMetrics(metrics)
	e := &env.Environment{ID: "prod"}

	held, err := pool.Acquire(context.Background(), e)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Release()

	start := time.Now()
	_, err = pool.Acquire(context.Background(), e)
	if !errors.Is(err, util.ErrClusterUnreachable) {
		t.Fatalf("expected ErrClusterUnreachable, got %v", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("acquire blocked for %v, expected a bounded wait", waited)
	}

	last := metrics.outcomes[len(metrics.outcomes)-1]
	if last != OutcomeTimeout {
		t.Errorf("expected timeout outcome, got %q", last)
	}
}

func TestPool_AcquireCancelled(t *testing.T) {
	pool := NewPool(PoolOptions{MaxPerEnvironment: 1, AcquireTimeout: 5 * time.Second}, fakeFactory(nil), quietLogger())
	e := &env.Environment{ID: "prod"}

	held, err := pool.Acquire(context.Background(), e)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = pool.Acquire(ctx, e)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestPool_EnvironmentsAreIndependent(t *testing.T) {
	pool := NewPool(PoolOptions{MaxPerEnvironment: 1, AcquireTimeout: 50 * time.Millisecond}, fakeFactory(nil), quietLogger())

	a, err := pool.Acquire(context.Background(), &env.Environment{ID: "a"})
	if err != nil {
		t.Fatalf("Acquire(a) error = %v", err)
	}
	defer a.Release()

	b, err := pool.Acquire(context.Background(), &env.Environment{ID: "b"})
	if err != nil {
		t.Fatalf("expected a saturated environment not to block another: %v", err)
	}
	b.Release()
}

func TestPool_AuthExpired(t *testing.T) {
	pool := NewPool(PoolOptions{MaxPerEnvironment: 1}, fakeFactory(nil), quietLogger())
	e := &env.Environment{ID: "prod", TokenExpiresAt: time.Now().Add(-time.Hour)}

	_, err := pool.Acquire(context.Background(), e)
	if !errors.Is(err, util.ErrAuthExpired) {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if pool.Stats("prod").InUse != 0 {
		t.Error("expected no slot to be consumed for expired credentials")
	}
}

func TestPool_FactoryError(t *testing.T) {
	var calls atomic.Int32
	factory := func(_ context.Context, _ *env.Environment) (*Client, error) {
		calls.Add(1)
		return nil, errors.New("context \"missing\" does not exist")
	}
	pool := NewPool(PoolOptions{MaxPerEnvironment: 1, AcquireTimeout: 50 * time.Millisecond}, factory, quietLogger())
	e := &env.Environment{ID: "prod"}

	for i := 0; i < 3; i++ {
		_, err := pool.Acquire(context.Background(), e)
		if !errors.Is(err, util.ErrClusterUnreachable) {
			t.Fatalf("attempt %d: expected ErrClusterUnreachable, got %v", i, err)
		}
	}
	if calls.Load() != 3 {
		t.Errorf("expected failures not to be cached, factory ran %d times", calls.Load())
	}
	if pool.Stats("prod").InUse != 0 {
		t.Error("expected slot to be returned after factory failure")
	}
}

func TestPool_MissingFactoryIsInternal(t *testing.T) {
	pool := NewPool(PoolOptions{MaxPerEnvironment: 1}, nil, quietLogger())
	e := &env.Environment{ID: "prod"}

	_, err := pool.Acquire(context.Background(), e)
	if err == nil {
		t.Fatal("expected error without a client factory")
	}
	if errors.Is(err, util.ErrClusterUnreachable) {
		t.Errorf("a missing factory is not a transport failure: %v", err)
	}
	if code := util.Code(util.Classify(err)); code != util.CodeInternal {
		t.Errorf("expected code %q, got %q", util.CodeInternal, code)
	}
	if pool.Stats("prod").InUse != 0 {
		t.Error("expected slot to be returned")
	}
}

func TestPool_CapUnderContention(t *testing.T) {
	const capacity = 3
	pool := NewPool(PoolOptions{MaxPerEnvironment: capacity, AcquireTimeout: 5 * time.Second}, fakeFactory(nil), quietLogger())
	e := &env.Environment{ID: "prod"}

	var (
		wg       sync.WaitGroup
		inFlight atomic.Int32
		maxSeen  atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := pool.Acquire(context.Background(), e)
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			defer h.Release()

			n := inFlight.Add(1)
			for {
				m := maxSeen.Load()
				if n <= m || maxSeen.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		}()
	}
	wg.Wait()

	if maxSeen.Load() > capacity {
		t.Errorf("observed %d concurrent handles, cap is %d", maxSeen.Load(), capacity)
	}
	if peak := pool.Stats("prod").Peak; peak > capacity {
		t.Errorf("pool peak %d exceeds cap %d", peak, capacity)
	}
}

func TestPool_Closed(t *testing.T) {
	pool := NewPool(PoolOptions{}, fakeFactory(nil), quietLogger())
	pool.Close()
	pool.Close()

	if !pool.IsClosed() {
		t.Error("expected pool to be closed")
	}
	if _, err := pool.Acquire(context.Background(), &env.Environment{ID: "prod"}); !errors.Is(err, util.ErrClusterUnreachable) {
		t.Errorf("expected ErrClusterUnreachable after close, got %v", err)
	}
}

func TestPool_NilEnvironment(t *testing.T) {
	pool := NewPool(PoolOptions{}, fakeFactory(nil), quietLogger())
	if _, err := pool.Acquire(context.Background(), nil); !errors.Is(err, util.ErrUnknownEnvironment) {
		t.Errorf("expected ErrUnknownEnvironment, got %v", err)
	}
}

func TestPool_HealthCheckAll(t *testing.T) {
	pool := NewPool(PoolOptions{}, fakeFactory(nil), quietLogger())
	envs := []*env.Environment{
		{ID: "zeta", Server: "https://zeta.example.com"},
		{ID: "alpha", Context: "kind-alpha"},
		{ID: "expired", TokenExpiresAt: time.Now().Add(-time.Minute)},
	}

	statuses := pool.HealthCheckAll(context.Background(), envs)
	if len(statuses) != 3 {
		t.Fatalf("expected 3 statuses, got %d", len(statuses))
	}

	if statuses[0].Env != "alpha" || statuses[1].Env != "expired" || statuses[2].Env != "zeta" {
		t.Errorf("expected statuses sorted by env, got %s %s %s", statuses[0].Env, statuses[1].Env, statuses[2].Env)
	}
	if !statuses[0].Healthy || statuses[0].ServerVersion != "v1.31.0" {
		t.Errorf("unexpected alpha status %+v", statuses[0])
	}
	if statuses[1].Healthy || statuses[1].Error == "" {
		t.Errorf("expected expired environment to be unhealthy, got %+v", statuses[1])
	}
	if statuses[2].Endpoint != "https://zeta.example.com" {
		t.Errorf("unexpected endpoint %q", statuses[2].Endpoint)
	}
}
