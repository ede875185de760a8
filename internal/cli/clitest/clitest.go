// Package clitest runs CLI commands against an App wired over fake clients.
package clitest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aryankumar/fleetgate/internal/cli/app"
	"github.com/aryankumar/fleetgate/internal/cluster"
	"github.com/aryankumar/fleetgate/internal/config"
	"github.com/aryankumar/fleetgate/internal/env"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/runtime"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/kubernetes/scheme"
)

// QuietLogger discards everything below error
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Fixture is an App plus the fakes behind it
type Fixture struct {
	App       *app.App
	Clientset *fake.Clientset
	Dynamic   *dynamicfake.FakeDynamicClient
}

// NewFixture wires an App over fake clients seeded with objects. "dev" is
// unrestricted and "restricted" only allows namespace "a".
func NewFixture(t *testing.T, objects ...runtime.Object) *Fixture {
	t.Helper()

	cs := fake.NewSimpleClientset(objects...)
	dyn := dynamicfake.NewSimpleDynamicClient(scheme.Scheme, objects...)

	registry, err := env.NewRegistry([]env.Environment{
		{ID: "dev", Server: "https://dev.example.com", Labels: map[string]string{"tier": "dev"}},
		env.Environment{ID: "restricted", Server: "https://restricted.example.com"}.WithAllowedNamespaces("a"),
	})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	factory := func(ctx context.Context, e *env.Environment) (*cluster.Client, error) {
		return &cluster.Client{Env: e.ID, Clientset: cs, Dynamic: dyn}, nil
	}

	cfg := &config.GatewayConfig{
		Pool:  config.PoolConfig{MaxPerEnvironment: 3, AcquireTimeout: time.Second},
		Batch: config.BatchConfig{Concurrency: 2},
	}

	a := app.Assemble(cfg, registry, factory, QuietLogger())
	t.Cleanup(a.Close)

	return &Fixture{App: a, Clientset: cs, Dynamic: dyn}
}

// Result is the captured output of one command run
type Result struct {
	Stdout string
	Stderr string
	Err    error
}

// Run executes sub under a root carrying the global flags, with stdin as input
func (f *Fixture) Run(t *testing.T, sub *cobra.Command, stdin string, args ...string) Result {
	t.Helper()

	root := &cobra.Command{Use: "fleetgate", SilenceUsage: true, SilenceErrors: true}
	app.AddPersistentFlags(root)
	root.AddCommand(sub)
	root.SetArgs(append([]string{sub.Name()}, args...))

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(stdin))

	err := root.ExecuteContext(app.NewContext(context.Background(), f.App))
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}

// Context returns a context canceled when the test cleans up, standing in
// for testing.T.Context on toolchains older than Go 1.24
func Context(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
