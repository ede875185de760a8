package envs

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aryankumar/fleetgate/internal/cli/app"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/spf13/cobra"
)

var envColumns = []string{"id", "endpoint", "restricted", "allowed_namespaces", "labels", "in_use", "capacity"}

// NewEnvsCmd creates the envs parent command
func NewEnvsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "envs",
		Aliases: []string{"env", "environments"},
		Short:   "Inspect the configured environments",
		Long: `Inspect the environments fleetgate can reach.

Environments come from the environments section of the configuration file
and, when discoverContexts is enabled, from every kubeconfig context.`,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newCheckCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the registered environments",
		Example: `  # List environments
  fleetgate envs list

  # List environments as JSON
  fleetgate envs list -o json`,
		Args: cobra.NoArgs,
		RunE: runList,
	}

	cmd.Flags().Bool("no-headers", false, "don't print table headers")
	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := app.Load(cmd)
	if err != nil {
		return err
	}
	formatter, err := app.Formatter(cmd)
	if err != nil {
		return err
	}

	all := a.Registry.All()
	if len(all) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No environments configured")
		return nil
	}

	rows := make([]gateway.Resource, 0, len(all))
	for _, e := range all {
		stats := a.Pool.Stats(e.ID)
		rows = append(rows, gateway.Resource{
			"id":                 e.ID,
			"endpoint":           e.Endpoint(),
			"restricted":         e.Restricted(),
			"allowed_namespaces": e.AllowedNamespaces(),
			"labels":             formatLabels(e.Labels),
			"in_use":             stats.InUse,
			"capacity":           stats.Capacity,
		})
	}

	slog.Debug("listing environments", "count", len(rows))
	return formatter.FormatResources(app.Out(cmd), envColumns, rows)
}

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [env...]",
		Short: "Check connectivity to environments",
		Long: `Ping the API server of each environment through the client pool.

With no arguments every environment is checked. The command fails when any
checked environment is unhealthy.`,
		Example: `  # Check every environment
  fleetgate envs check

  # Check two environments with extra detail
  fleetgate envs check prod staging --wide`,
		RunE: runCheck,
	}

	cmd.Flags().Bool("wide", false, "show endpoints and errors")
	cmd.Flags().Bool("no-headers", false, "don't print table headers")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := app.Load(cmd)
	if err != nil {
		return err
	}
	formatter, err := app.Formatter(cmd)
	if err != nil {
		return err
	}

	targets := a.Registry.All()
	if len(args) > 0 {
		targets = targets[:0:0]
		for _, id := range args {
			e, err := a.Registry.Resolve(id)
			if err != nil {
				return err
			}
			targets = append(targets, e)
		}
	}

	ctx, cancel := app.WithTimeout(cmd.Context())
	defer cancel()

	statuses := a.Pool.HealthCheckAll(ctx, targets)
	if err := formatter.FormatHealth(app.Out(cmd), statuses); err != nil {
		return err
	}

	unhealthy := 0
	for _, s := range statuses {
		if !s.Healthy {
			unhealthy++
		}
	}
	if unhealthy > 0 {
		return fmt.Errorf("%d of %d environments unhealthy", unhealthy, len(statuses))
	}
	return nil
}

// formatLabels renders labels as sorted key=value pairs
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+labels[k])
	}
	return strings.Join(pairs, ",")
}
