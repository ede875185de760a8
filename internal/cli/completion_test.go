package cli

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/aryankumar/fleetgate/internal/cli/app"
	"github.com/aryankumar/fleetgate/internal/cli/clitest"
	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

func TestCompletionCommand(t *testing.T) {
	tests := []struct {
		shell       string
		wantErr     string
		wantContain string
	}{
		{shell: "bash", wantContain: "bash completion"},
		{shell: "zsh", wantContain: "#compdef fleetgate"},
		{shell: "fish", wantContain: "fish completion"},
		{shell: "powershell", wantContain: "Register-ArgumentCompleter"},
		{shell: "tcsh", wantErr: "invalid argument"},
	}

	for _, tt := range tests {
		t.Run(tt.shell, func(t *testing.T) {
			rootCmd := newRootCmd()
			rootCmd.SetArgs([]string{"completion", tt.shell})
			out := &bytes.Buffer{}
			rootCmd.SetOut(out)
			rootCmd.SetErr(&bytes.Buffer{})

			err := rootCmd.Execute()
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out.String(), tt.wantContain) {
				t.Errorf("expected %s script to contain %q", tt.shell, tt.wantContain)
			}
		})
	}
}

// complete runs cobra's hidden completion command and returns the candidates
func complete(t *testing.T, args ...string) []string {
	t.Helper()

	rootCmd := newRootCmd()
	rootCmd.SetArgs(append([]string{cobra.ShellCompRequestCmd}, args...))
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("completion failed: %v", err)
	}

	var candidates []string
	for _, line := range strings.Split(out.String(), "\n") {
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		candidates = append(candidates, strings.SplitN(line, "\t", 2)[0])
	}
	return candidates
}

func TestCompletion_Kinds(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{name: "get offers every kind", args: []string{"get", ""}, want: []string{"pod", "node", "statefulset"}},
		{name: "prefix filter", args: []string{"delete", "s"}, want: []string{"service", "statefulset"}, notWant: []string{"pod"}},
		{name: "scale is statefulset only", args: []string{"scale", ""}, want: []string{"statefulset"}, notWant: []string{"daemonset", "pod"}},
		{name: "restart takes both workloads", args: []string{"restart", ""}, want: []string{"statefulset", "daemonset"}, notWant: []string{"service"}},
		{name: "only the first argument", args: []string{"get", "pod", ""}, notWant: []string{"pod", "service"}},
		{name: "output formats", args: []string{"get", "-o", ""}, want: []string{"table", "json", "yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := complete(t, tt.args...)
			for _, w := range tt.want {
				if !slices.Contains(got, w) {
					t.Errorf("expected %q in %v", w, got)
				}
			}
			for _, w := range tt.notWant {
				if slices.Contains(got, w) {
					t.Errorf("did not expect %q in %v", w, got)
				}
			}
		})
	}
}

func TestCompleteEnvironments(t *testing.T) {
	f := clitest.NewFixture(t)

	cmd := &cobra.Command{}
	cmd.SetContext(app.NewContext(context.Background(), f.App))

	got, directive := completeEnvironments(cmd, nil, "")
	if !slices.Equal(got, []string{"dev", "restricted"}) {
		t.Errorf("unexpected environments %v", got)
	}
	if directive != cobra.ShellCompDirectiveNoFileComp {
		t.Errorf("unexpected directive %v", directive)
	}

	got, _ = completeEnvironments(cmd, nil, "re")
	if !slices.Equal(got, []string{"restricted"}) {
		t.Errorf("expected prefix match, got %v", got)
	}
}

func TestCompleteNamespaces(t *testing.T) {
	f := clitest.NewFixture(t,
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "a"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "apps"}},
		&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "b"}},
	)

	newCmd := func(envID string) *cobra.Command {
		cmd := &cobra.Command{}
		cmd.Flags().StringP("env", "e", "", "")
		if envID != "" {
			_ = cmd.Flags().Set("env", envID)
		}
		cmd.SetContext(app.NewContext(context.Background(), f.App))
		return cmd
	}

	tests := []struct {
		name       string
		env        string
		toComplete string
		want       []string
	}{
		{name: "every namespace", env: "dev", want: []string{"a", "apps", "b"}},
		{name: "prefix", env: "dev", toComplete: "ap", want: []string{"apps"}},
		{name: "restricted", env: "restricted", want: []string{"a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, directive := completeNamespaces(newCmd(tt.env), nil, tt.toComplete)
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if directive != cobra.ShellCompDirectiveNoFileComp {
				t.Errorf("unexpected directive %v", directive)
			}
		})
	}
}
