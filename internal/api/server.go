// Package api exposes the gateway over HTTP.
//
// Every route under /api takes the target environment in the env query
// parameter and answers with an Envelope. Single-item operations map their
// error onto an HTTP status; batch operations always answer 200 and carry the
// itemized report in data.
package api

import (
	"log/slog"
	"net/http"

	"github.com/aryankumar/fleetgate/internal/batch"
	"github.com/aryankumar/fleetgate/internal/cluster"
	"github.com/aryankumar/fleetgate/internal/env"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/aryankumar/fleetgate/internal/manifest"
	"github.com/aryankumar/fleetgate/internal/metrics"
	"github.com/aryankumar/fleetgate/internal/util"
	"github.com/aryankumar/fleetgate/internal/workload"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the components the server routes requests to
type Deps struct {
	Registry  *env.Registry
	Pool      *cluster.Pool
	Gateway   *gateway.Gateway
	Batch     *batch.Coordinator
	Manifests *manifest.Engine
	Workloads *workload.Operations

	// Metrics and Gatherer are optional; without a Gatherer /metrics is not served
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// Options configures the HTTP surface
type Options struct {
	CORSOrigins  []string
	MaxBodyBytes int64
}

// Server handles API requests
type Server struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

// New creates a server
func New(deps Deps, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 4 << 20
	}
	return &Server{deps: deps, opts: opts, logger: logger}
}

// listRoutes maps the list endpoints under /api/agent to their kinds
var listRoutes = map[string]gateway.Kind{
	"pods":         gateway.KindPod,
	"services":     gateway.KindService,
	"ingresses":    gateway.KindIngress,
	"configmaps":   gateway.KindConfigMap,
	"statefulsets": gateway.KindStatefulSet,
	"daemonsets":   gateway.KindDaemonSet,
}

// Router builds the HTTP handler
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.recoverer)
	r.Use(s.logRequests)
	r.Use(s.instrument)

	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	if s.deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/envs", s.listEnvironments)

		api.Group(func(scoped chi.Router) {
			scoped.Use(requireEnv)

			for route, kind := range listRoutes {
				scoped.Get("/agent/"+route, s.listResources(kind))
			}
			scoped.Get("/nodes/list", s.listResources(gateway.KindNode))
			scoped.Get("/agent/namespaces", s.listNamespaces)
			scoped.Get("/events", s.listEvents)

			scoped.Get("/agent/res/content", s.getContent)
			scoped.Post("/agent/res/ops", s.applyManifest)
			scoped.Delete("/agent/res/delete", s.deleteResource)

			scoped.Delete("/pod/delete_pods", s.deletePods)
			scoped.Post("/nodes/cordon", s.cordonNodes)
			scoped.Post("/nodes/uncordon", s.uncordonNodes)

			scoped.Post("/agent/statefulset/scale", s.scaleStatefulSet)
			scoped.Post("/agent/statefulset/restart", s.restartWorkload(gateway.KindStatefulSet))
			scoped.Post("/agent/daemonset/restart", s.restartWorkload(gateway.KindDaemonSet))
			scoped.Get("/agent/statefulset/pods", s.workloadPods(gateway.KindStatefulSet))
			scoped.Get("/agent/daemonset/pods", s.workloadPods(gateway.KindDaemonSet))
			scoped.Get("/agent/statefulset/status", s.workloadStatus(gateway.KindStatefulSet))
			scoped.Get("/agent/daemonset/status", s.workloadStatus(gateway.KindDaemonSet))

			scoped.Get("/agent/service/endpoints", s.serviceEndpoints)
			scoped.Get("/agent/service/first-port", s.serviceFirstPort)
			scoped.Get("/agent/ingress/rules", s.ingressRules)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, Envelope{Success: false, Message: "no route for " + r.URL.Path, Error: util.CodeNotFound})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Envelope{Success: false, Message: r.Method + " is not allowed on " + r.URL.Path, Error: util.CodeInvalidRequest})
	})

	return r
}
