package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()

	if cmd == nil {
		t.Fatal("expected root command, got nil")
	}

	if cmd.Use != "fleetgate" {
		t.Errorf("expected use 'fleetgate', got %q", cmd.Use)
	}

	expectedCommands := []string{
		"version",
		"completion",
		"serve",
		"envs",
		"get",
		"apply",
		"create",
		"replace",
		"delete",
		"pods",
		"nodes",
		"scale",
		"restart",
		"status",
	}

	for _, cmdName := range expectedCommands {
		found := false
		for _, cmd := range cmd.Commands() {
			if cmd.Name() == cmdName {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected subcommand %q to be registered", cmdName)
		}
	}
}

func TestRootCommandHelp(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--help"})

	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(output)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	help := output.String()
	for _, want := range []string{"Fleetgate", "Kubernetes", "serve", "envs", "apply", "--env"} {
		if !strings.Contains(help, want) {
			t.Errorf("expected help to contain %q", want)
		}
	}
}

func TestRootCommandFlagDefaults(t *testing.T) {
	cmd := newRootCmd()

	tests := []struct {
		flag     string
		expected string
	}{
		{"config", ""},
		{"kubeconfig", ""},
		{"env", ""},
		{"output", ""},
		{"verbose", "false"},
		{"no-color", "false"},
		{"log-format", "text"},
		{"timeout", (30 * time.Second).String()},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			flag := cmd.PersistentFlags().Lookup(tt.flag)
			if flag == nil {
				t.Fatalf("flag %q not found", tt.flag)
			}
			if flag.DefValue != tt.expected {
				t.Errorf("expected default value %q, got %q", tt.expected, flag.DefValue)
			}
		})
	}
}

func TestRootCommandSilenceFlags(t *testing.T) {
	cmd := newRootCmd()

	if !cmd.SilenceUsage {
		t.Error("expected SilenceUsage to be true")
	}
	if !cmd.SilenceErrors {
		t.Error("expected SilenceErrors to be true")
	}
}

func TestRootCommandShortFlags(t *testing.T) {
	cmd := newRootCmd()

	shortFlags := map[string]string{
		"o": "output",
		"v": "verbose",
		"e": "env",
	}

	for short, long := range shortFlags {
		shortFlag := cmd.PersistentFlags().ShorthandLookup(short)
		if shortFlag == nil {
			t.Errorf("expected short flag -%s for %s", short, long)
			continue
		}
		if shortFlag.Name != long {
			t.Errorf("expected short flag -%s to map to %s, got %s", short, long, shortFlag.Name)
		}
	}
}

func TestSetupLogging_RejectsUnknownFormat(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.PersistentFlags().Set("log-format", "xml"); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}

	err := setupLogging(cmd)
	if err == nil || !strings.Contains(err.Error(), "unsupported log format") {
		t.Errorf("expected unsupported log format error, got %v", err)
	}
}

func TestVersionCommand_JSON(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"version", "-o", "json"})

	out := &bytes.Buffer{}
	cmd.SetOut(out)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `"version"`) {
		t.Errorf("expected JSON version output, got %q", out.String())
	}
}

func TestRunVersion_Formats(t *testing.T) {
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{format: "", want: "fleetgate\n  Version:"},
		{format: "yaml", want: "clientGo:"},
		{format: "table", want: "Go Version"},
		{format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out := &bytes.Buffer{}
			err := runVersion(out, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("expected %q in output:\n%s", tt.want, out.String())
			}
		})
	}
}
