package workloads

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/aryankumar/fleetgate/internal/cli/clitest"
	"github.com/aryankumar/fleetgate/internal/workload"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func statefulSet(name string, replicas, ready int32) *appsv1.StatefulSet {
	return &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "a", Generation: 2},
		Spec:       appsv1.StatefulSetSpec{Replicas: &replicas},
		Status: appsv1.StatefulSetStatus{
			ObservedGeneration: 2,
			ReadyReplicas:      ready,
			UpdatedReplicas:    ready,
			AvailableReplicas:  ready,
		},
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    int32
	}{
		{name: "scale up", args: []string{"sts", "db", "-e", "dev", "-n", "a", "--replicas", "5"}, want: 5},
		{name: "scale to zero", args: []string{"statefulset", "db", "-e", "dev", "-n", "a", "--replicas", "0"}, want: 0},
		{name: "negative replicas", args: []string{"sts", "db", "-e", "dev", "-n", "a", "--replicas", "-1"}, wantErr: true, want: 3},
		{name: "missing replicas", args: []string{"sts", "db", "-e", "dev", "-n", "a"}, wantErr: true, want: 3},
		{name: "daemonsets are not scalable", args: []string{"ds", "db", "-e", "dev", "-n", "a", "--replicas", "2"}, wantErr: true, want: 3},
		{name: "missing namespace", args: []string{"sts", "db", "-e", "dev", "--replicas", "2"}, wantErr: true, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := clitest.NewFixture(t, statefulSet("db", 3, 3))

			res := f.Run(t, NewScaleCmd(), "", tt.args...)
			if (res.Err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", res.Err, tt.wantErr)
			}

			sts, err := f.Clientset.AppsV1().StatefulSets("a").Get(clitest.Context(t), "db", metav1.GetOptions{})
			if err != nil {
				t.Fatalf("failed to get statefulset: %v", err)
			}
			if *sts.Spec.Replicas != tt.want {
				t.Errorf("expected %d replicas, got %d", tt.want, *sts.Spec.Replicas)
			}
		})
	}
}

func TestRestart(t *testing.T) {
	f := clitest.NewFixture(t, statefulSet("db", 3, 3))

	res := f.Run(t, NewRestartCmd(), "", "sts", "db", "-e", "dev", "-n", "a")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !strings.Contains(res.Stdout, `statefulset "db" restarted`) {
		t.Errorf("unexpected output %q", res.Stdout)
	}

	sts, _ := f.Clientset.AppsV1().StatefulSets("a").Get(clitest.Context(t), "db", metav1.GetOptions{})
	if sts.Spec.Template.Annotations[workload.RestartAnnotation] == "" {
		t.Error("expected restart annotation on the pod template")
	}
	if *sts.Spec.Replicas != 3 {
		t.Errorf("restart must not change replicas, got %d", *sts.Spec.Replicas)
	}
}

func TestRestart_NotFound(t *testing.T) {
	f := clitest.NewFixture(t)

	res := f.Run(t, NewRestartCmd(), "", "ds", "agent", "-e", "dev", "-n", "a")
	if res.Err == nil {
		t.Fatal("expected not found error")
	}
}

func TestStatus(t *testing.T) {
	f := clitest.NewFixture(t, statefulSet("db", 3, 3))

	res := f.Run(t, NewStatusCmd(), "", "sts", "db", "-e", "dev", "-n", "a")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !strings.Contains(res.Stdout, "CONVERGED") || !strings.Contains(res.Stdout, "true") {
		t.Errorf("expected converged status, got:\n%s", res.Stdout)
	}

	res = f.Run(t, NewStatusCmd(), "", "sts", "db", "-e", "dev", "-n", "a", "-o", "json")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	var status workload.RolloutStatus
	if err := json.Unmarshal([]byte(res.Stdout), &status); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, res.Stdout)
	}
	if status.Desired != 3 || status.Ready != 3 || !status.Converged {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestStatus_WatchTimesOut(t *testing.T) {
	f := clitest.NewFixture(t, statefulSet("db", 3, 1))

	res := f.Run(t, NewStatusCmd(), "", "sts", "db", "-e", "dev", "-n", "a", "--watch", "--interval", "10ms", "--timeout", "50ms")
	if res.Err == nil || !strings.Contains(res.Err.Error(), "did not converge") {
		t.Fatalf("expected convergence timeout, got %v", res.Err)
	}
	if !strings.Contains(res.Stdout, "false") {
		t.Errorf("expected last status to be printed, got:\n%s", res.Stdout)
	}
}
