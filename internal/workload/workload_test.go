package workload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aryankumar/fleetgate/internal/cluster"
	"github.com/aryankumar/fleetgate/internal/env"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/aryankumar/fleetgate/internal/util"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestOperations(t *testing.T, objects ...runtime.Object) (*Operations, *fake.Clientset) {
	t.Helper()

	cs := fake.NewSimpleClientset(objects...)
	registry, err := env.NewRegistry([]env.Environment{{ID: "dev", Server: "https://dev.example.com"}})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	factory := func(ctx context.Context, e *env.Environment) (*cluster.Client, error) {
		return &cluster.Client{Env: e.ID, Clientset: cs}, nil
	}
	pool := cluster.NewPool(cluster.PoolOptions{MaxPerEnvironment: 2, AcquireTimeout: time.Second}, factory, quietLogger())
	gw := gateway.New(registry, pool, gateway.Options{}, quietLogger())

	ops := New(gw, quietLogger())
	ops.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return ops, cs
}

func statefulSet(name string, replicas int32) *appsv1.StatefulSet {
	return &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Namespace: "a", Name: name, Generation: 2},
		Spec:       appsv1.StatefulSetSpec{Replicas: &replicas},
		Status: appsv1.StatefulSetStatus{
			ObservedGeneration: 2,
			ReadyReplicas:      replicas,
			UpdatedReplicas:    replicas,
			AvailableReplicas:  replicas,
		},
	}
}

func TestScale_NegativeReplicas(t *testing.T) {
	ops, cs := newTestOperations(t, statefulSet("sts1", 2))

	err := ops.Scale(context.Background(), "dev", "a", "sts1", -1)
	if !errors.Is(err, util.ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
	if n := len(cs.Actions()); n != 0 {
		t.Errorf("expected no cluster calls, saw %d: %v", n, cs.Actions())
	}
}

func TestScale(t *testing.T) {
	ops, cs := newTestOperations(t, statefulSet("sts1", 2))
	ctx := context.Background()

	if err := ops.Scale(ctx, "dev", "a", "sts1", 5); err != nil {
		t.Fatalf("scale failed: %v", err)
	}
	sts, _ := cs.AppsV1().StatefulSets("a").Get(ctx, "sts1", metav1.GetOptions{})
	if *sts.Spec.Replicas != 5 {
		t.Errorf("expected 5 replicas, got %d", *sts.Spec.Replicas)
	}

	if err := ops.Scale(ctx, "dev", "a", "sts1", 0); err != nil {
		t.Fatalf("scale to zero failed: %v", err)
	}
	sts, _ = cs.AppsV1().StatefulSets("a").Get(ctx, "sts1", metav1.GetOptions{})
	if *sts.Spec.Replicas != 0 {
		t.Errorf("expected 0 replicas, got %d", *sts.Spec.Replicas)
	}

	if err := ops.Scale(ctx, "dev", "a", "missing", 1); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if err := ops.Scale(ctx, "nope", "a", "sts1", 1); !errors.Is(err, util.ErrUnknownEnvironment) {
		t.Errorf("expected unknown environment, got %v", err)
	}
	if err := ops.ScaleKind(ctx, "dev", gateway.KindDaemonSet, "a", "agent", 1); !errors.Is(err, util.ErrInvalidRequest) {
		t.Errorf("expected daemonsets to be unscalable, got %v", err)
	}
}

func TestRestart(t *testing.T) {
	ds := &appsv1.DaemonSet{ObjectMeta: metav1.ObjectMeta{Namespace: "a", Name: "agent"}}
	ops, cs := newTestOperations(t, statefulSet("sts1", 3), ds)
	ctx := context.Background()

	if err := ops.Restart(ctx, "dev", gateway.KindStatefulSet, "a", "sts1"); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	sts, _ := cs.AppsV1().StatefulSets("a").Get(ctx, "sts1", metav1.GetOptions{})
	if got := sts.Spec.Template.Annotations[RestartAnnotation]; got != "2024-05-01T12:00:00Z" {
		t.Errorf("expected restart stamp, got %q", got)
	}
	if *sts.Spec.Replicas != 3 {
		t.Errorf("restart must not change replicas, got %d", *sts.Spec.Replicas)
	}

	if err := ops.Restart(ctx, "dev", gateway.KindDaemonSet, "a", "agent"); err != nil {
		t.Fatalf("daemonset restart failed: %v", err)
	}
	got, _ := cs.AppsV1().DaemonSets("a").Get(ctx, "agent", metav1.GetOptions{})
	if got.Spec.Template.Annotations[RestartAnnotation] == "" {
		t.Error("expected daemonset template to be stamped")
	}

	if err := ops.Restart(ctx, "dev", gateway.KindPod, "a", "x"); !errors.Is(err, util.ErrInvalidRequest) {
		t.Errorf("expected invalid request for pods, got %v", err)
	}
	if err := ops.Restart(ctx, "dev", gateway.KindDaemonSet, "a", "missing"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestStatus(t *testing.T) {
	rolling := statefulSet("rolling", 3)
	rolling.Generation = 3
	rolling.Status.UpdatedReplicas = 1

	ops, _ := newTestOperations(t, statefulSet("steady", 3), rolling)
	ctx := context.Background()

	st, err := ops.Status(ctx, "dev", gateway.KindStatefulSet, "a", "steady")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !st.Converged || st.Desired != 3 || st.Ready != 3 {
		t.Errorf("expected a converged rollout, got %+v", st)
	}

	st, err = ops.Status(ctx, "dev", gateway.KindStatefulSet, "a", "rolling")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if st.Converged {
		t.Errorf("expected an unconverged rollout, got %+v", st)
	}

	if _, err := ops.Status(ctx, "dev", gateway.KindStatefulSet, "a", "missing"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRequireTarget(t *testing.T) {
	ops, _ := newTestOperations(t)
	ctx := context.Background()

	if err := ops.Scale(ctx, "dev", "", "sts1", 1); !errors.Is(err, util.ErrInvalidRequest) {
		t.Errorf("expected invalid request without namespace, got %v", err)
	}
	if err := ops.Restart(ctx, "dev", gateway.KindStatefulSet, "a", ""); !errors.Is(err, util.ErrInvalidRequest) {
		t.Errorf("expected invalid request without name, got %v", err)
	}
}
