// Package app assembles the gateway components shared by the CLI commands.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aryankumar/fleetgate/internal/batch"
	"github.com/aryankumar/fleetgate/internal/cluster"
	"github.com/aryankumar/fleetgate/internal/config"
	"github.com/aryankumar/fleetgate/internal/env"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/aryankumar/fleetgate/internal/manifest"
	"github.com/aryankumar/fleetgate/internal/output"
	"github.com/aryankumar/fleetgate/internal/workload"
	"github.com/aryankumar/fleetgate/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// App is one wired instance of the gateway core
type App struct {
	Config    *config.GatewayConfig
	Registry  *env.Registry
	Pool      *cluster.Pool
	Gateway   *gateway.Gateway
	Batch     *batch.Coordinator
	Manifests *manifest.Engine
	Workloads *workload.Operations
	Logger    *slog.Logger
}

// Assemble wires the components over registry and factory
func Assemble(cfg *config.GatewayConfig, registry *env.Registry, factory cluster.ClientFactory, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	config.ApplyDefaults(cfg)

	pool := cluster.NewPool(cluster.PoolOptions{
		MaxPerEnvironment: cfg.Pool.MaxPerEnvironment,
		AcquireTimeout:    cfg.Pool.AcquireTimeout,
	}, factory, logger)

	gw := gateway.New(registry, pool, gateway.Options{
		RequestTimeout:      cfg.Gateway.RequestTimeout,
		ProtectedOwnerKinds: cfg.Gateway.ProtectedOwnerKinds,
	}, logger)

	return &App{
		Config:   cfg,
		Registry: registry,
		Pool:     pool,
		Gateway:  gw,
		Batch: batch.NewCoordinator(gw, batch.Options{
			Concurrency: cfg.Batch.Concurrency,
			ForceDelete: cfg.Batch.ForceDelete,
		}, logger),
		Manifests: manifest.NewEngine(gw, manifest.Options{
			RequireResourceVersion: cfg.Manifest.RequireResourceVersion,
		}, logger),
		Workloads: workload.New(gw, logger),
		Logger:    logger,
	}
}

// Build loads the registry from cfg and wires the production client factory
func Build(cfg *config.GatewayConfig, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	config.ApplyDefaults(cfg)

	loader := config.NewKubeconfigLoader(cfg.Kubeconfig)
	registry, err := env.FromConfig(cfg, loader, logger)
	if err != nil {
		return nil, err
	}

	factory := cluster.NewClientFactory(cluster.FactoryOptions{
		RequestTimeout: cfg.Pool.RequestTimeout,
		QPS:            cfg.Pool.QPS,
		Burst:          cfg.Pool.Burst,
		UserAgent:      version.UserAgent(),
	}, logger)

	return Assemble(cfg, registry, factory, logger), nil
}

// Close releases the client pool
func (a *App) Close() {
	a.Pool.Close()
}

// AddPersistentFlags defines the global flags on cmd and binds them to viper
func AddPersistentFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.fleetgate/config.yaml)")
	flags.String("kubeconfig", "", "path to kubeconfig file (default is $HOME/.kube/config)")
	flags.StringP("env", "e", "", "target environment id")
	flags.StringP("output", "o", "", "output format (json, yaml, table)")
	flags.BoolP("verbose", "v", false, "verbose output with debug logging")
	flags.Bool("no-color", false, "disable colored output")
	flags.String("log-format", "text", "log format (text, json)")
	flags.Duration("timeout", 30*time.Second, "timeout for operations")

	for _, name := range []string{"config", "kubeconfig", "env", "output", "verbose", "no-color", "log-format", "timeout"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

type contextKey struct{}

// NewContext returns a context carrying a, which Load returns instead of
// building a new App
func NewContext(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// Load returns the App for cmd: the one carried by its context, or one built
// from the configuration viper resolved.
func Load(cmd *cobra.Command) (*App, error) {
	if a, ok := cmd.Context().Value(contextKey{}).(*App); ok && a != nil {
		return a, nil
	}

	manager := config.NewManagerWithViper(viper.GetString("config"), viper.GetViper())
	cfg, err := manager.Load()
	if err != nil {
		return nil, err
	}
	if path := manager.ConfigFileUsed(); path != "" {
		slog.Debug("loaded configuration", "file", path)
	}

	a, err := Build(cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	cmd.SetContext(NewContext(cmd.Context(), a))
	return a, nil
}

// EnvID returns the --env flag, which every cluster command requires
func EnvID(cmd *cobra.Command) (string, error) {
	envID := viper.GetString("env")
	if f := cmd.Flags().Lookup("env"); f != nil && f.Changed {
		envID = f.Value.String()
	}
	if envID == "" {
		return "", fmt.Errorf("an environment is required: pass --env or set FLEETGATE_ENV (see 'fleetgate envs list')")
	}
	return envID, nil
}

// Formatter returns the formatter selected by --output, --no-color,
// --no-headers and --wide
func Formatter(cmd *cobra.Command) (output.Formatter, error) {
	format, err := output.ParseFormat(viper.GetString("output"))
	if err != nil {
		return nil, err
	}
	noHeaders, _ := cmd.Flags().GetBool("no-headers")
	wide, _ := cmd.Flags().GetBool("wide")

	return output.NewFormatter(format,
		output.WithNoColor(viper.GetBool("no-color")),
		output.WithNoHeaders(noHeaders),
		output.WithWide(wide),
	), nil
}

// Out returns the command's output writer
func Out(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

// WithTimeout bounds ctx by the --timeout flag
func WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := viper.GetDuration("timeout")
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
