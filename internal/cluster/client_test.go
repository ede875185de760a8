package cluster

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aryankumar/fleetgate/internal/env"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/tools/clientcmd/api"
)

func writeKubeconfig(t *testing.T, contexts ...string) string {
	t.Helper()

	cfg := api.NewConfig()
	for _, name := range contexts {
		cfg.Clusters[name] = &api.Cluster{Server: "https://" + name + ".example.com:6443", InsecureSkipTLSVerify: true}
		cfg.AuthInfos[name] = &api.AuthInfo{Token: "token-" + name}
		cfg.Contexts[name] = &api.Context{Cluster: name, AuthInfo: name, Namespace: "default"}
	}
	path := filepath.Join(t.TempDir(), "kubeconfig")
	if err := clientcmd.WriteToFile(*cfg, path); err != nil {
		t.Fatalf("failed to write kubeconfig: %v", err)
	}
	return path
}

func TestRESTConfigFor(t *testing.T) {
	kubeconfig := writeKubeconfig(t, "prod", "dev")

	tests := []struct {
		name      string
		env       *env.Environment
		wantHost  string
		wantToken string
		wantErr   bool
	}{
		{
			name:      "server with token",
			env:       &env.Environment{ID: "edge", Server: "https://edge.example.com", Token: "abc", InsecureSkipTLSVerify: true},
			wantHost:  "https://edge.example.com",
			wantToken: "abc",
		},
		{
			name:      "kubeconfig context",
			env:       &env.Environment{ID: "dev", Context: "dev", Kubeconfig: kubeconfig},
			wantHost:  "https://dev.example.com:6443",
			wantToken: "token-dev",
		},
		{
			name:    "missing context",
			env:     &env.Environment{ID: "nope", Context: "nope", Kubeconfig: kubeconfig},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restConfig, err := RESTConfigFor(tt.env)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RESTConfigFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if restConfig.Host != tt.wantHost {
				t.Errorf("expected host %q, got %q", tt.wantHost, restConfig.Host)
			}
			if restConfig.BearerToken != tt.wantToken {
				t.Errorf("expected token %q, got %q", tt.wantToken, restConfig.BearerToken)
			}
		})
	}
}

func TestNewClientFactory(t *testing.T) {
	kubeconfig := writeKubeconfig(t, "prod")
	factory := NewClientFactory(FactoryOptions{
		RequestTimeout: 7 * time.Second,
		QPS:            25,
		Burst:          50,
		UserAgent:      "fleetgate/test",
	}, quietLogger())

	client, err := factory(context.Background(), &env.Environment{ID: "prod", Context: "prod", Kubeconfig: kubeconfig})
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}

	if client.Env != "prod" {
		t.Errorf("expected env prod, got %q", client.Env)
	}
	if client.Clientset == nil || client.Dynamic == nil {
		t.Fatal("expected typed and dynamic clients")
	}
	if client.RestConfig.Timeout != 7*time.Second {
		t.Errorf("expected request timeout on rest config, got %v", client.RestConfig.Timeout)
	}
	if client.RestConfig.QPS != 25 || client.RestConfig.Burst != 50 {
		t.Errorf("unexpected rate limits qps=%v burst=%d", client.RestConfig.QPS, client.RestConfig.Burst)
	}
	if !strings.Contains(client.String(), "prod.example.com") {
		t.Errorf("unexpected String() %q", client.String())
	}
}

func TestNewClient_NilConfig(t *testing.T) {
	if _, err := NewClient("prod", nil, nil); err == nil {
		t.Error("expected error for nil rest config")
	}
}

func TestClient_HealthCheck(t *testing.T) {
	client, err := fakeFactory(nil)(context.Background(), &env.Environment{ID: "prod"})
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}

	version, err := client.HealthCheck(context.Background())
	if err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	if version != "v1.31.0" {
		t.Errorf("expected v1.31.0, got %q", version)
	}
}
