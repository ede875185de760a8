package serve

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aryankumar/fleetgate/internal/cli/clitest"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestServe_LifeCycle(t *testing.T) {
	f := clitest.NewFixture(t, &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Name: "web-0", Namespace: "a"}})
	f.App.Config.Server.ShutdownTimeout = 2 * time.Second

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, f.App, ln) }()

	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(base + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become healthy: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	status, body := get(t, base+"/api/agent/pods?env=dev&namespace=a")
	if status != http.StatusOK || !strings.Contains(body, `"web-0"`) {
		t.Errorf("unexpected list response %d: %s", status, body)
	}

	status, body = get(t, base+"/metrics")
	if status != http.StatusOK {
		t.Fatalf("expected metrics, got %d", status)
	}
	for _, want := range []string{"fleetgate_gateway_operations_total", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected metrics to contain %q", want)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected shutdown error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}

	if !f.App.Pool.IsClosed() {
		t.Error("expected the client pool to be closed after shutdown")
	}
}

func TestServe_ListenError(t *testing.T) {
	f := clitest.NewFixture(t)
	f.App.Config.Server.Addr = "127.0.0.1:99999"

	if err := Serve(context.Background(), f.App, nil); err == nil {
		t.Fatal("expected listen error for an invalid address")
	}
}
