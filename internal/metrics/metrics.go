// Package metrics defines and registers the Prometheus collectors of the
// gateway. The Metrics type satisfies the metric sink interfaces of the
// client pool, the gateway and the batch coordinator.
package metrics

import (
	"strconv"
	"time"

	"github.com/aryankumar/fleetgate/pkg/version"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "fleetgate"
)

// Metrics holds all Prometheus collectors of the gateway
type Metrics struct {
	// HandlesInUse reports checked-out client handles per environment.
	HandlesInUse *prometheus.GaugeVec

	// AcquireDuration observes the wait for a client handle, partitioned by
	// environment and outcome.
	AcquireDuration *prometheus.HistogramVec

	// OperationsTotal counts gateway operations, partitioned by environment,
	// operation and result code.
	OperationsTotal *prometheus.CounterVec

	// OperationDuration observes gateway operation latency per operation.
	OperationDuration *prometheus.HistogramVec

	// BatchesTotal counts finished batches by operation and outcome.
	BatchesTotal *prometheus.CounterVec

	// BatchItems observes batch sizes per operation.
	BatchItems *prometheus.HistogramVec

	// HTTPRequestsTotal counts API requests by route, method and status.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration observes API request latency by route and method.
	HTTPRequestDuration *prometheus.HistogramVec

	// BuildInfo is always 1; the labels carry the build.
	BuildInfo *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HandlesInUse: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_handles_in_use",
				Help:      "Number of client handles currently checked out.",
			},
			[]string{"env"},
		),

		AcquireDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pool_acquire_duration_seconds",
				Help:      "Time spent waiting for a client handle, in seconds.",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
			},
			[]string{"env", "outcome"},
		),

		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_operations_total",
				Help:      "Total number of gateway operations.",
			},
			[]string{"env", "operation", "code"},
		),

		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_operation_duration_seconds",
				Help:      "Gateway operation latency, in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		BatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Total number of batch mutations.",
			},
			[]string{"operation", "outcome"},
		),

		BatchItems: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_items",
				Help:      "Number of items per batch mutation.",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
			},
			[]string{"operation"},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of API requests.",
			},
			[]string{"route", "method", "status"},
		),

		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "API request latency, in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route", "method"},
		),

		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Build information of the running gateway.",
			},
			[]string{"version", "commit", "go_version", "client_go"},
		),
	}

	info := version.Get()
	m.BuildInfo.WithLabelValues(info.Version, info.Commit, info.GoVersion, info.ClientGo).Set(1)

	reg.MustRegister(
		m.HandlesInUse,
		m.AcquireDuration,
		m.OperationsTotal,
		m.OperationDuration,
		m.BatchesTotal,
		m.BatchItems,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BuildInfo,
	)

	return m
}

// SetHandlesInUse records the in-use handle count of an environment
func (m *Metrics) SetHandlesInUse(env string, n int) {
	m.HandlesInUse.WithLabelValues(env).Set(float64(n))
}

// ObserveAcquire records one handle acquisition attempt
func (m *Metrics) ObserveAcquire(env string, wait time.Duration, outcome string) {
	m.AcquireDuration.WithLabelValues(env, outcome).Observe(wait.Seconds())
}

// ObserveOperation records one gateway operation
func (m *Metrics) ObserveOperation(env, operation, code string, duration time.Duration) {
	m.OperationsTotal.WithLabelValues(env, operation, code).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveBatch records one finished batch
func (m *Metrics) ObserveBatch(operation, outcome string, items int) {
	m.BatchesTotal.WithLabelValues(operation, outcome).Inc()
	m.BatchItems.WithLabelValues(operation).Observe(float64(items))
}

// ObserveHTTP records one API request
func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}
