package delete

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/aryankumar/fleetgate/internal/cli/app"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/spf13/cobra"
)

type deleteOptions struct {
	namespace        string
	force            bool
	skipConfirmation bool
}

// NewDeleteCmd creates the delete command
func NewDeleteCmd() *cobra.Command {
	opts := &deleteOptions{}

	cmd := &cobra.Command{
		Use:   "delete <kind> <name>",
		Short: "Delete a resource from an environment",
		Long: `Delete one resource by kind and name.

Pods managed by a StatefulSet are refused unless --force is given, since the
controller recreates them under the same name. Asks for confirmation unless
--yes is given.`,
		Example: `  # Delete a ConfigMap
  fleetgate delete configmap settings -e prod -n web

  # Delete a StatefulSet pod directly, without a prompt
  fleetgate delete pod db-0 -e prod -n data --force -y`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.namespace, "namespace", "n", "", "namespace of the resource")
	cmd.Flags().BoolVar(&opts.force, "force", false, "delete pods even when their controller is protected")
	cmd.Flags().BoolVarP(&opts.skipConfirmation, "yes", "y", false, "skip confirmation prompt")

	return cmd
}

func runDelete(cmd *cobra.Command, args []string, opts *deleteOptions) error {
	kind, err := gateway.ParseKind(args[0])
	if err != nil {
		return err
	}
	envID, err := app.EnvID(cmd)
	if err != nil {
		return err
	}

	ref := gateway.ResourceRef{Env: envID, Namespace: opts.namespace, Kind: kind, Name: args[1]}
	if gateway.Namespaced(kind) && ref.Namespace == "" {
		ref.Namespace = "default"
	}

	if !opts.skipConfirmation {
		if !confirmDelete(cmd.InOrStdin(), cmd.ErrOrStderr(), ref) {
			fmt.Fprintln(app.Out(cmd), "Delete cancelled")
			return nil
		}
	}

	a, err := app.Load(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := app.WithTimeout(cmd.Context())
	defer cancel()

	if err := a.Gateway.DeleteOne(ctx, ref, gateway.DeleteOptions{Force: opts.force}); err != nil {
		return err
	}

	fmt.Fprintf(app.Out(cmd), "%s %q deleted from %s\n", strings.ToLower(string(kind)), ref.Name, envID)
	return nil
}

// confirmDelete prompts on out and reads a y/N answer from in
func confirmDelete(in io.Reader, out io.Writer, ref gateway.ResourceRef) bool {
	if ref.Namespace != "" {
		fmt.Fprintf(out, "WARNING: Deleting %s/%s from namespace '%s'\n", ref.Kind, ref.Name, ref.Namespace)
	} else {
		fmt.Fprintf(out, "WARNING: Deleting %s/%s\n", ref.Kind, ref.Name)
	}
	fmt.Fprintf(out, "In environment: %s\n", ref.Env)
	fmt.Fprintln(out)
	fmt.Fprint(out, "Are you sure? [y/N]: ")

	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
