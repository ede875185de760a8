package delete

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aryankumar/fleetgate/internal/cli/clitest"
	"github.com/aryankumar/fleetgate/internal/gateway"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func testPod(name string, owner string) *corev1.Pod {
	pod := &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: "a"}}
	if owner != "" {
		controller := true
		pod.OwnerReferences = []metav1.OwnerReference{{
			APIVersion: "apps/v1",
			Kind:       owner,
			Name:       "web",
			Controller: &controller,
		}}
	}
	return pod
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		stdin     string
		wantErr   bool
		wantGone  bool
		wantInOut string
	}{
		{
			name:      "confirmed delete",
			args:      []string{"pod", "plain", "-e", "dev", "-n", "a"},
			stdin:     "y\n",
			wantGone:  true,
			wantInOut: `pod "plain" deleted from dev`,
		},
		{
			name:      "declined prompt",
			args:      []string{"pod", "plain", "-e", "dev", "-n", "a"},
			stdin:     "n\n",
			wantInOut: "Delete cancelled",
		},
		{
			name:      "empty answer declines",
			args:      []string{"pod", "plain", "-e", "dev", "-n", "a"},
			stdin:     "",
			wantInOut: "Delete cancelled",
		},
		{
			name:     "skip confirmation",
			args:     []string{"po", "plain", "-e", "dev", "-n", "a", "-y"},
			wantGone: true,
		},
		{
			name:    "protected owner",
			args:    []string{"pod", "web-0", "-e", "dev", "-n", "a", "-y"},
			wantErr: true,
		},
		{
			name:     "protected owner with force",
			args:     []string{"pod", "web-0", "-e", "dev", "-n", "a", "-y", "--force"},
			wantGone: true,
		},
		{
			name:    "not found",
			args:    []string{"pod", "missing", "-e", "dev", "-n", "a", "-y"},
			wantErr: true,
		},
		{
			name:    "unsupported kind",
			args:    []string{"deployment", "web", "-e", "dev", "-y"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := clitest.NewFixture(t, testPod("plain", ""), testPod("web-0", "StatefulSet"))

			res := f.Run(t, NewDeleteCmd(), tt.stdin, tt.args...)
			if (res.Err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", res.Err, tt.wantErr)
			}
			if tt.wantInOut != "" && !strings.Contains(res.Stdout, tt.wantInOut) {
				t.Errorf("expected output to contain %q, got %q", tt.wantInOut, res.Stdout)
			}

			name := tt.args[1]
			_, err := f.Clientset.CoreV1().Pods("a").Get(clitest.Context(t), name, metav1.GetOptions{})
			if tt.wantGone && err == nil {
				t.Errorf("expected pod %s to be deleted", name)
			}
			if !tt.wantGone && name != "missing" && tt.args[0] != "deployment" && err != nil {
				t.Errorf("expected pod %s to survive, got %v", name, err)
			}
		})
	}
}

func TestConfirmDelete(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"yes", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}

	for _, tt := range tests {
		out := &bytes.Buffer{}
		ref := gateway.ResourceRef{Env: "dev", Namespace: "a", Kind: gateway.KindPod, Name: "web-0"}
		if got := confirmDelete(strings.NewReader(tt.input), out, ref); got != tt.want {
			t.Errorf("confirmDelete(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Pod/web-0 from namespace 'a'") {
			t.Errorf("expected prompt to name the resource, got %q", out.String())
		}
	}
}
