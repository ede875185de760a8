package workloads

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aryankumar/fleetgate/internal/cli/app"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/aryankumar/fleetgate/internal/output"
	"github.com/aryankumar/fleetgate/internal/workload"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusColumns = []string{"kind", "namespace", "name", "desired", "ready", "updated", "available", "converged"}

// NewScaleCmd creates the scale command
func NewScaleCmd() *cobra.Command {
	var (
		namespace string
		replicas  int32
	)

	cmd := &cobra.Command{
		Use:   "scale <kind> <name>",
		Short: "Set the replica count of a StatefulSet",
		Example: `  # Scale a StatefulSet to five replicas
  fleetgate scale sts db -e prod -n data --replicas 5`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("replicas") {
				return fmt.Errorf("--replicas is required")
			}
			kind, err := gateway.ParseKind(args[0])
			if err != nil {
				return err
			}
			envID, err := app.EnvID(cmd)
			if err != nil {
				return err
			}
			a, err := app.Load(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := app.WithTimeout(cmd.Context())
			defer cancel()

			if err := a.Workloads.ScaleKind(ctx, envID, kind, namespace, args[1], replicas); err != nil {
				return err
			}
			fmt.Fprintf(app.Out(cmd), "%s %q scaled to %d\n", strings.ToLower(string(kind)), args[1], replicas)
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace of the workload")
	cmd.Flags().Int32Var(&replicas, "replicas", 0, "desired replica count (required)")
	return cmd
}

// NewRestartCmd creates the restart command
func NewRestartCmd() *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "restart <kind> <name>",
		Short: "Start a rolling restart of a StatefulSet or DaemonSet",
		Long: `Start a rolling restart by stamping the pod template with the current time.

The replica count is untouched. Use 'fleetgate status --watch' to follow the
rollout.`,
		Example: `  # Restart a DaemonSet
  fleetgate restart ds node-agent -e prod -n kube-system`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := gateway.ParseKind(args[0])
			if err != nil {
				return err
			}
			envID, err := app.EnvID(cmd)
			if err != nil {
				return err
			}
			a, err := app.Load(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := app.WithTimeout(cmd.Context())
			defer cancel()

			if err := a.Workloads.Restart(ctx, envID, kind, namespace, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out(cmd), "%s %q restarted\n", strings.ToLower(string(kind)), args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace of the workload")
	return cmd
}

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	var (
		namespace string
		watch     bool
		interval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status <kind> <name>",
		Short: "Show the rollout status of a StatefulSet or DaemonSet",
		Long: `Show the desired, ready and updated pod counts of a workload.

With --watch the status is polled until the rollout converges or --timeout
expires.`,
		Example: `  # Show rollout status
  fleetgate status sts db -e prod -n data

  # Wait for a restart to finish
  fleetgate status sts db -e prod -n data --watch --timeout 10m`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := gateway.ParseKind(args[0])
			if err != nil {
				return err
			}
			envID, err := app.EnvID(cmd)
			if err != nil {
				return err
			}
			a, err := app.Load(cmd)
			if err != nil {
				return err
			}
			formatter, err := app.Formatter(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := app.WithTimeout(cmd.Context())
			defer cancel()

			if interval <= 0 {
				interval = 2 * time.Second
			}
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			var last *workload.RolloutStatus
			for {
				status, err := a.Workloads.Status(ctx, envID, kind, namespace, args[1])
				if err != nil {
					if last != nil && ctx.Err() != nil {
						return notConverged(cmd, formatter, last, ctx.Err())
					}
					return err
				}
				if !watch || status.Converged {
					return printStatus(cmd, formatter, status)
				}
				last = status

				slog.Debug("rollout in progress",
					"kind", kind,
					"name", args[1],
					"ready", status.Ready,
					"updated", status.Updated,
					"desired", status.Desired)

				select {
				case <-ctx.Done():
					return notConverged(cmd, formatter, status, ctx.Err())
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace of the workload")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "poll until the rollout converges")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval for --watch")
	cmd.Flags().Bool("no-headers", false, "don't print table headers")
	return cmd
}

// notConverged prints the last status seen and reports the expired watch
func notConverged(cmd *cobra.Command, formatter output.Formatter, status *workload.RolloutStatus, cause error) error {
	_ = printStatus(cmd, formatter, status)
	return fmt.Errorf("rollout of %s %q did not converge: %w", status.Kind, status.Name, cause)
}

func printStatus(cmd *cobra.Command, formatter output.Formatter, status *workload.RolloutStatus) error {
	// Structured formats keep the full status, tables show the counters
	if format, _ := output.ParseFormat(viper.GetString("output")); format != output.FormatTable {
		return formatter.Format(app.Out(cmd), status)
	}
	return formatter.FormatResources(app.Out(cmd), statusColumns, []gateway.Resource{{
		"kind":      string(status.Kind),
		"namespace": status.Namespace,
		"name":      status.Name,
		"desired":   status.Desired,
		"ready":     status.Ready,
		"updated":   status.Updated,
		"available": status.Available,
		"converged": status.Converged,
	}})
}
