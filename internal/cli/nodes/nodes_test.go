package nodes

import (
	"strings"
	"testing"

	"github.com/aryankumar/fleetgate/internal/cli/clitest"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func testNode(name string, unschedulable bool) *corev1.Node {
	return &corev1.Node{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec:       corev1.NodeSpec{Unschedulable: unschedulable},
	}
}

func TestCordon(t *testing.T) {
	f := clitest.NewFixture(t, testNode("node1", false), testNode("node2", true))

	res := f.Run(t, NewNodesCmd(), "", "cordon", "-e", "dev", "--wide", "node1", "node2")
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !strings.Contains(res.Stdout, "CHANGED") || !strings.Contains(res.Stdout, "2 succeeded, 0 failed") {
		t.Errorf("unexpected output:\n%s", res.Stdout)
	}

	for _, name := range []string{"node1", "node2"} {
		node, err := f.Clientset.CoreV1().Nodes().Get(clitest.Context(t), name, metav1.GetOptions{})
		if err != nil {
			t.Fatalf("failed to get %s: %v", name, err)
		}
		if !node.Spec.Unschedulable {
			t.Errorf("expected %s to be cordoned", name)
		}
	}
}

func TestUncordon_MissingNode(t *testing.T) {
	f := clitest.NewFixture(t, testNode("node1", true))

	res := f.Run(t, NewNodesCmd(), "", "uncordon", "-e", "dev", "node1", "node9")
	if res.Err == nil {
		t.Fatal("expected failure when a node is missing")
	}
	if !strings.Contains(res.Stdout, "not_found") {
		t.Errorf("expected failed item reason in output, got:\n%s", res.Stdout)
	}

	node, _ := f.Clientset.CoreV1().Nodes().Get(clitest.Context(t), "node1", metav1.GetOptions{})
	if node.Spec.Unschedulable {
		t.Error("expected node1 to be uncordoned despite the other failure")
	}
}

func TestCordon_RequiresNodes(t *testing.T) {
	f := clitest.NewFixture(t)

	res := f.Run(t, NewNodesCmd(), "", "cordon", "-e", "dev")
	if res.Err == nil {
		t.Fatal("expected error without node names")
	}
}
