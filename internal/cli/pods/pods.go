package pods

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aryankumar/fleetgate/internal/batch"
	"github.com/aryankumar/fleetgate/internal/cli/app"
	"github.com/spf13/cobra"
)

// NewPodsCmd creates the pods parent command
func NewPodsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pods",
		Aliases: []string{"pod", "po"},
		Short:   "Batch operations on pods",
	}

	cmd.AddCommand(newDeleteCmd())
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "delete <[namespace/]name>...",
		Short: "Delete many pods concurrently",
		Long: `Delete a batch of pods from one environment.

Pods are deleted concurrently up to batch.concurrency at a time. One pod
failing doesn't stop the others; the command reports every pod and fails
unless all of them were deleted.`,
		Example: `  # Delete two pods in the same namespace
  fleetgate pods delete -e prod -n web api-1 api-2

  # Delete pods across namespaces
  fleetgate pods delete -e prod web/api-1 jobs/worker-7`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := parseItems(args, namespace)
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

			report, err := a.Batch.DeletePods(ctx, envID, items)
			if err != nil {
				return err
			}
			return PrintReport(cmd, report)
		},
	}

	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "namespace for names given without one")
	cmd.Flags().Bool("wide", false, "show whether each item changed")
	cmd.Flags().Bool("no-headers", false, "don't print table headers")
	return cmd
}

// parseItems turns namespace/name arguments into batch items; bare names use
// namespace
func parseItems(args []string, namespace string) ([]batch.PodItem, error) {
	items := make([]batch.PodItem, 0, len(args))
	for _, arg := range args {
		ns, name, found := strings.Cut(arg, "/")
		if !found {
			ns, name = namespace, arg
		}
		if ns == "" {
			return nil, fmt.Errorf("pod %q has no namespace: use namespace/name or --namespace", arg)
		}
		if name == "" {
			return nil, fmt.Errorf("pod %q has no name", arg)
		}
		items = append(items, batch.PodItem{Namespace: ns, Name: name})
	}
	return items, nil
}

// PrintReport writes report with the selected formatter and fails unless
// every item succeeded
func PrintReport(cmd *cobra.Command, report *batch.Report) error {
	formatter, err := app.Formatter(cmd)
	if err != nil {
		return err
	}
	if err := formatter.FormatReport(app.Out(cmd), report); err != nil {
		return err
	}
	if !report.Success() {
		return errors.New(report.Message())
	}
	return nil
}
