package nodes

import (
	"context"

	"github.com/aryankumar/fleetgate/internal/batch"
	"github.com/aryankumar/fleetgate/internal/cli/app"
	"github.com/aryankumar/fleetgate/internal/cli/pods"
	"github.com/spf13/cobra"
)

type batchFunc func(c *batch.Coordinator) func(ctx context.Context, envID string, nodes []string) (*batch.Report, error)

// NewNodesCmd creates the nodes parent command
func NewNodesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "nodes",
		Aliases: []string{"node", "no"},
		Short:   "Batch scheduling operations on nodes",
	}

	cmd.AddCommand(newBatchCmd("cordon", "Mark nodes unschedulable",
		`  # Cordon two nodes
  fleetgate nodes cordon -e prod node-1 node-2`,
		func(c *batch.Coordinator) func(context.Context, string, []string) (*batch.Report, error) {
			return c.Cordon
		}))
	cmd.AddCommand(newBatchCmd("uncordon", "Mark nodes schedulable",
		`  # Return a node to service
  fleetgate nodes uncordon -e prod node-1`,
		func(c *batch.Coordinator) func(context.Context, string, []string) (*batch.Report, error) {
			return c.Uncordon
		}))

	return cmd
}

func newBatchCmd(use, short, example string, op batchFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " <node>...",
		Short: short,
		Long: short + `.

Nodes already in the requested state succeed without a change; --wide shows
which nodes changed. The command fails unless every node succeeded.`,
		Example: example,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			report, err := op(a.Batch)(ctx, envID, args)
			if err != nil {
				return err
			}
			return pods.PrintReport(cmd, report)
		},
	}

	cmd.Flags().Bool("wide", false, "show whether each node changed")
	cmd.Flags().Bool("no-headers", false, "don't print table headers")
	return cmd
}
