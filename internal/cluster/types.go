package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/aryankumar/fleetgate/internal/env"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// Client is a live connection to one environment's API server.
// The underlying transports are safe for concurrent use; exclusive access
// is enforced per checkout by the Pool, not by the Client.
type Client struct {
	// Env is the environment id this client is bound to
	Env string

	// Clientset is the typed Kubernetes client
	Clientset kubernetes.Interface

	// Dynamic is the dynamic client used for manifest operations
	Dynamic dynamic.Interface

	// RestConfig is the underlying REST configuration. Nil for fake clients.
	RestConfig *rest.Config
}

// ClientFactory creates the Client for an environment on first use
type ClientFactory func(ctx context.Context, e *env.Environment) (*Client, error)

// PoolMetrics receives pool events. Implementations must be safe for concurrent use.
type PoolMetrics interface {
	SetHandlesInUse(env string, n int)
	ObserveAcquire(env string, wait time.Duration, outcome string)
}

// Acquire outcomes reported to PoolMetrics
const (
	OutcomeAcquired    = "acquired"
	OutcomeTimeout     = "timeout"
	OutcomeCancelled   = "cancelled"
	OutcomeAuthExpired = "auth_expired"
	OutcomeClientError = "client_error"
)

// PoolOptions configures a Pool
type PoolOptions struct {
	// MaxPerEnvironment caps simultaneously checked-out handles per environment
	MaxPerEnvironment int

	// AcquireTimeout bounds the wait for a free handle
	AcquireTimeout time.Duration
}

// Stats is a point-in-time view of one environment's checkout state
type Stats struct {
	InUse    int `json:"inUse"`
	Peak     int `json:"peak"`
	Capacity int `json:"capacity"`
}

// Handle is one exclusive checkout of an environment's client.
// Release must be called on every exit path; calling it more than once is a no-op.
type Handle struct {
	Env    *env.Environment
	Client *Client

	acquiredAt time.Time
	once       sync.Once
	release    func()
}

// Clientset returns the typed client for this checkout
func (h *Handle) Clientset() kubernetes.Interface {
	return h.Client.Clientset
}

// Dynamic returns the dynamic client for this checkout
func (h *Handle) Dynamic() dynamic.Interface {
	return h.Client.Dynamic
}

// Held returns how long the handle has been checked out
func (h *Handle) Held() time.Duration {
	return time.Since(h.acquiredAt)
}

// Release returns the handle's slot to the pool
func (h *Handle) Release() {
	h.once.Do(func() {
		if h.release != nil {
			h.release()
		}
	})
}

// HealthStatus represents the health status of an environment's cluster
type HealthStatus struct {
	Env           string        `json:"env" yaml:"env"`
	Endpoint      string        `json:"endpoint" yaml:"endpoint"`
	Healthy       bool          `json:"healthy" yaml:"healthy"`
	ServerVersion string        `json:"serverVersion,omitempty" yaml:"serverVersion,omitempty"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
	Latency       time.Duration `json:"latency" yaml:"latency"`
}
