package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aryankumar/fleetgate/internal/cli/app"
	"github.com/aryankumar/fleetgate/internal/cli/apply"
	"github.com/aryankumar/fleetgate/internal/cli/delete"
	"github.com/aryankumar/fleetgate/internal/cli/envs"
	"github.com/aryankumar/fleetgate/internal/cli/get"
	"github.com/aryankumar/fleetgate/internal/cli/nodes"
	"github.com/aryankumar/fleetgate/internal/cli/pods"
	"github.com/aryankumar/fleetgate/internal/cli/serve"
	"github.com/aryankumar/fleetgate/internal/cli/workloads"
	"github.com/aryankumar/fleetgate/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute runs the root command with the provided context
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// newRootCmd creates the root command
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fleetgate",
		Short: "Fleetgate - Multi-cluster Kubernetes resource gateway",
		Long: `Fleetgate gives one controlled entry point to many Kubernetes clusters.

Each cluster is registered as a named environment. The serve command exposes
the environments over an HTTP/JSON API; the other commands run the same
operations directly from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	app.AddPersistentFlags(rootCmd)

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(serve.NewServeCmd())
	rootCmd.AddCommand(envs.NewEnvsCmd())
	rootCmd.AddCommand(get.NewGetCmd())
	rootCmd.AddCommand(apply.NewApplyCmd())
	rootCmd.AddCommand(apply.NewCreateCmd())
	rootCmd.AddCommand(apply.NewReplaceCmd())
	rootCmd.AddCommand(delete.NewDeleteCmd())
	rootCmd.AddCommand(pods.NewPodsCmd())
	rootCmd.AddCommand(nodes.NewNodesCmd())
	rootCmd.AddCommand(workloads.NewScaleCmd())
	rootCmd.AddCommand(workloads.NewRestartCmd())
	rootCmd.AddCommand(workloads.NewStatusCmd())

	registerCompletions(rootCmd)

	return rootCmd
}

// initConfig wires environment overrides and logging. The configuration file
// itself is read lazily by the commands that need the environments.
func initConfig(cmd *cobra.Command) error {
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	return setupLogging(cmd)
}

// setupLogging configures structured logging with slog
func setupLogging(cmd *cobra.Command) error {
	verbose := viper.GetBool("verbose")
	format := strings.ToLower(viper.GetString("log-format"))

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: logLevel}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	case "", "text":
		if viper.GetBool("no-color") {
			handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
		} else {
			handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
		}
	default:
		return fmt.Errorf("unsupported log format: %s (supported: text, json)", format)
	}

	slog.SetDefault(slog.New(handler))
	if verbose {
		slog.Debug("verbose logging enabled", "pid", os.Getpid())
	}
	return nil
}
