package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/aryankumar/fleetgate/internal/cli/app"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/spf13/cobra"
)

// kindArgs lists the kinds each command accepts as its first argument.
// A nil entry means every kind.
var kindArgs = map[string][]gateway.Kind{
	"get":     nil,
	"delete":  nil,
	"scale":   {gateway.KindStatefulSet},
	"restart": {gateway.KindStatefulSet, gateway.KindDaemonSet},
	"status":  {gateway.KindStatefulSet, gateway.KindDaemonSet},
}

// newCompletionCmd creates the completion command for generating shell completions
func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for fleetgate.

Besides commands and flags, the scripts complete environment ids for --env
(read from the configuration), namespaces for --namespace (read from the
cluster of --env) and resource kinds for get, delete, scale, restart and status.

Bash:
  $ source <(fleetgate completion bash)

Zsh:
  $ fleetgate completion zsh > "${fpath[1]}/_fleetgate"

Fish:
  $ fleetgate completion fish > ~/.config/fish/completions/fleetgate.fish

PowerShell:
  PS> fleetgate completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		// No config or logging setup is needed to print a script
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompletion(cmd, args[0])
		},
	}

	return cmd
}

func runCompletion(cmd *cobra.Command, shell string) error {
	out := cmd.OutOrStdout()
	switch shell {
	case "bash":
		return cmd.Root().GenBashCompletionV2(out, true)
	case "zsh":
		return cmd.Root().GenZshCompletion(out)
	case "fish":
		return cmd.Root().GenFishCompletion(out, true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletionWithDesc(out)
	default:
		return fmt.Errorf("unsupported shell type %q", shell)
	}
}

// registerCompletions attaches the dynamic completions to the command tree
func registerCompletions(root *cobra.Command) {
	_ = root.RegisterFlagCompletionFunc("env", completeEnvironments)
	_ = root.RegisterFlagCompletionFunc("output",
		cobra.FixedCompletions([]string{"table", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp))
	_ = root.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions([]string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp))

	walkCommands(root, func(cmd *cobra.Command) {
		if cmd.Flags().Lookup("namespace") != nil {
			_ = cmd.RegisterFlagCompletionFunc("namespace", completeNamespaces)
		}
	})

	for _, sub := range root.Commands() {
		kinds, ok := kindArgs[sub.Name()]
		if !ok || sub.ValidArgsFunction != nil {
			continue
		}
		sub.ValidArgsFunction = completeKinds(kinds)
	}
}

// completeEnvironments offers the configured environment ids
func completeEnvironments(cmd *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if cmd.Context() == nil {
		cmd.SetContext(context.Background())
	}
	a, err := app.Load(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var ids []string
	for _, id := range a.Registry.IDs() {
		if strings.HasPrefix(id, toComplete) {
			ids = append(ids, id)
		}
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeNamespaces offers the namespaces of the environment given by --env
func completeNamespaces(cmd *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if cmd.Context() == nil {
		cmd.SetContext(context.Background())
	}
	envID, err := app.EnvID(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	a, err := app.Load(cmd)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	ctx, cancel := app.WithTimeout(cmd.Context())
	defer cancel()
	namespaces, err := a.Gateway.Namespaces(ctx, envID)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}

	var out []string
	for _, ns := range namespaces {
		if strings.HasPrefix(ns, toComplete) {
			out = append(out, ns)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}

func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, sub := range cmd.Commands() {
		walkCommands(sub, fn)
	}
}

func completeKinds(kinds []gateway.Kind) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	var names []string
	if kinds == nil {
		for _, k := range gateway.KindNames() {
			names = append(names, strings.ToLower(k))
		}
	} else {
		for _, k := range kinds {
			names = append(names, strings.ToLower(string(k)))
		}
	}

	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var out []string
		for _, n := range names {
			if strings.HasPrefix(n, strings.ToLower(toComplete)) {
				out = append(out, n)
			}
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	}
}
