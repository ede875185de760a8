package serve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aryankumar/fleetgate/internal/api"
	"github.com/aryankumar/fleetgate/internal/cli/app"
	"github.com/aryankumar/fleetgate/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Long: `Serve the environments over the HTTP/JSON API.

Prometheus metrics are exposed on /metrics and probes on /healthz and
/readyz. On SIGINT or SIGTERM in-flight requests and batches are drained for
up to server.shutdownTimeout before the client pool is closed.`,
		Example: `  # Serve with the default configuration
  fleetgate serve

  # Serve on another address with debug logs in JSON
  fleetgate serve --addr :9090 -v --log-format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Load(cmd)
			if err != nil {
				return err
			}
			return Serve(cmd.Context(), a, nil)
		},
	}

	cmd.Flags().String("addr", "", "listen address (default :8080)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

// Serve runs the API until ctx is cancelled, then drains and closes a.
// A nil ln listens on the configured address.
func Serve(ctx context.Context, a *app.App, ln net.Listener) error {
	cfg := a.Config.Server
	logger := a.Logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)
	a.Pool.SetMetrics(m)
	a.Gateway.SetMetrics(m)
	a.Batch.SetMetrics(m)

	srv := api.New(api.Deps{
		Registry:  a.Registry,
		Pool:      a.Pool,
		Gateway:   a.Gateway,
		Batch:     a.Batch,
		Manifests: a.Manifests,
		Workloads: a.Workloads,
		Metrics:   m,
		Gatherer:  reg,
	}, api.Options{
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", cfg.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gateway listening",
			"addr", ln.Addr().String(),
			"environments", a.Registry.Len(),
			"pool_capacity", a.Pool.Capacity(),
			"batch_concurrency", a.Batch.Concurrency())
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down gateway", "timeout", cfg.ShutdownTimeout)
		err := httpServer.Shutdown(shutdownCtx)
		if berr := a.Batch.Shutdown(shutdownCtx); berr != nil {
			logger.Warn("batches still running at shutdown", "error", berr)
			err = errors.Join(err, berr)
		}
		a.Close()

		if err != nil {
			return fmt.Errorf("graceful shutdown incomplete: %w", err)
		}
		logger.Info("gateway stopped")
		return nil
	})

	return g.Wait()
}
