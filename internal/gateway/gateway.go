package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aryankumar/fleetgate/internal/cluster"
	"github.com/aryankumar/fleetgate/internal/env"
	"github.com/aryankumar/fleetgate/internal/util"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"
)

// ResourceRef addresses one object in one environment
type ResourceRef struct {
	Env       string `json:"env"`
	Namespace string `json:"namespace,omitempty"`
	Kind      Kind   `json:"kind"`
	Name      string `json:"name"`
}

// String returns env/namespace/kind/name, omitting an empty namespace
func (r ResourceRef) String() string {
	if r.Namespace == "" {
		return fmt.Sprintf("%s/%s/%s", r.Env, r.Kind, r.Name)
	}
	return fmt.Sprintf("%s/%s/%s/%s", r.Env, r.Namespace, r.Kind, r.Name)
}

// Options configures a Gateway
type Options struct {
	// RequestTimeout bounds the upstream calls of one operation; 0 means no extra bound
	RequestTimeout time.Duration

	// ProtectedOwnerKinds are controller kinds whose pods refuse deletion without Force
	ProtectedOwnerKinds []string
}

// DeleteOptions modifies DeleteOne
type DeleteOptions struct {
	// Force deletes pods even when their controller kind is protected
	Force bool
}

// OperationMetrics receives one observation per gateway operation.
// code is "ok" or a util error code.
type OperationMetrics interface {
	ObserveOperation(env, operation, code string, duration time.Duration)
}

// Gateway routes resource operations to the right environment's cluster
type Gateway struct {
	registry  *env.Registry
	pool      *cluster.Pool
	opts      Options
	protected map[string]struct{}
	logger    *slog.Logger
	metrics   OperationMetrics
}

// New creates a gateway over registry and pool
func New(registry *env.Registry, pool *cluster.Pool, opts Options, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	protected := make(map[string]struct{}, len(opts.ProtectedOwnerKinds))
	for _, k := range opts.ProtectedOwnerKinds {
		protected[strings.ToLower(k)] = struct{}{}
	}

	return &Gateway{
		registry:  registry,
		pool:      pool,
		opts:      opts,
		protected: protected,
		logger:    logger,
	}
}

// SetMetrics registers a metrics sink for operation outcomes
func (g *Gateway) SetMetrics(m OperationMetrics) {
	g.metrics = m
}

// Registry returns the environment registry
func (g *Gateway) Registry() *env.Registry {
	return g.registry
}

// Resolve looks up an environment in the registry
func (g *Gateway) Resolve(envID string) (*env.Environment, error) {
	return g.registry.Resolve(envID)
}

// Pool returns the client pool
func (g *Gateway) Pool() *cluster.Pool {
	return g.pool
}

// WithHandle resolves envID, enforces the namespace allow list for namespace
// (empty skips the check), checks out one handle and runs fn with it under
// the request timeout. The handle is released before WithHandle returns and
// fn's error is classified onto the util taxonomy.
func (g *Gateway) WithHandle(ctx context.Context, operation, envID, namespace string, fn func(ctx context.Context, h *cluster.Handle) error) error {
	start := time.Now()
	err := g.withHandle(ctx, envID, namespace, fn)
	g.observe(envID, operation, err, start)
	return err
}

func (g *Gateway) withHandle(ctx context.Context, envID, namespace string, fn func(ctx context.Context, h *cluster.Handle) error) error {
	e, err := g.registry.Resolve(envID)
	if err != nil {
		return err
	}
	if err := checkNamespace(e, namespace); err != nil {
		return err
	}

	h, err := g.pool.Acquire(ctx, e)
	if err != nil {
		return err
	}
	defer h.Release()

	if g.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.RequestTimeout)
		defer cancel()
	}

	return util.Classify(fn(ctx, h))
}

// List returns the projections of kind in namespace. An empty namespace on a
// restricted environment lists every allowed namespace in sorted order; on an
// unrestricted one it lists all namespaces. Namespace is ignored for nodes.
func (g *Gateway) List(ctx context.Context, envID string, kind Kind, namespace string) ([]Resource, error) {
	s, err := strategyFor(kind)
	if err != nil {
		return nil, err
	}
	if !s.namespaced {
		namespace = ""
	}

	out := make([]Resource, 0)
	err = g.WithHandle(ctx, "list", envID, namespace, func(ctx context.Context, h *cluster.Handle) error {
		namespaces := []string{namespace}
		if s.namespaced && namespace == "" && h.Env.Restricted() {
			namespaces = h.Env.AllowedNamespaces()
		}

		for _, ns := range namespaces {
			items, err := s.list(ctx, h.Clientset(), ns)
			if err != nil {
				return err
			}
			out = append(out, items...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.logger.Debug("listed resources", "env", envID, "kind", kind, "namespace", namespace, "count", len(out))
	return out, nil
}

// DeleteOne deletes the object ref names. Pods controlled by a protected
// kind fail with util.ErrConflict unless opts.Force is set. Deleting an
// absent object fails with util.ErrNotFound.
func (g *Gateway) DeleteOne(ctx context.Context, ref ResourceRef, opts DeleteOptions) error {
	s, err := validateRef(ref)
	if err != nil {
		return err
	}

	return g.WithHandle(ctx, "delete", ref.Env, scopedNamespace(s, ref.Namespace), func(ctx context.Context, h *cluster.Handle) error {
		cs := h.Clientset()

		if s.kind == KindPod && !opts.Force {
			pod, err := cs.CoreV1().Pods(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
			if err != nil {
				return err
			}
			if owner := metav1.GetControllerOf(pod); owner != nil && g.isProtected(owner.Kind) {
				return fmt.Errorf("%w: pod %s/%s is managed by %s %q, use force to delete it directly",
					util.ErrConflict, ref.Namespace, ref.Name, owner.Kind, owner.Name)
			}
		}

		if err := s.delete(ctx, cs, ref.Namespace, ref.Name, metav1.DeleteOptions{}); err != nil {
			return err
		}

		g.logger.Info("deleted resource", "env", ref.Env, "kind", ref.Kind, "namespace", ref.Namespace, "name", ref.Name, "force", opts.Force)
		return nil
	})
}

// SetSchedulable cordons (schedulable=false) or uncordons a node. It reports
// whether the node changed; a node already in the requested state is a
// successful no-op.
func (g *Gateway) SetSchedulable(ctx context.Context, envID, node string, schedulable bool) (bool, error) {
	if node == "" {
		return false, util.InvalidRequest("node_name", node, "node name is required")
	}

	changed := false
	err := g.WithHandle(ctx, "set_schedulable", envID, "", func(ctx context.Context, h *cluster.Handle) error {
		nodes := h.Clientset().CoreV1().Nodes()

		current, err := nodes.Get(ctx, node, metav1.GetOptions{})
		if err != nil {
			return err
		}
		if current.Spec.Unschedulable == !schedulable {
			return nil
		}

		patch := []byte(fmt.Sprintf(`{"spec":{"unschedulable":%t}}`, !schedulable))
		if _, err := nodes.Patch(ctx, node, types.MergePatchType, patch, metav1.PatchOptions{}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	g.logger.Info("updated node schedulability", "env", envID, "node", node, "schedulable", schedulable, "changed", changed)
	return changed, nil
}

// ResourceClient returns the dynamic client for kind, scoped to namespace for namespaced kinds
func ResourceClient(dyn dynamic.Interface, kind Kind, namespace string) (dynamic.ResourceInterface, error) {
	s, err := strategyFor(kind)
	if err != nil {
		return nil, err
	}
	if s.namespaced {
		return dyn.Resource(s.gvr).Namespace(namespace), nil
	}
	return dyn.Resource(s.gvr), nil
}

// CheckNamespace fails with util.ErrForbidden when e does not allow namespace
func CheckNamespace(e *env.Environment, namespace string) error {
	return checkNamespace(e, namespace)
}

func checkNamespace(e *env.Environment, namespace string) error {
	if namespace == "" || e.AllowsNamespace(namespace) {
		return nil
	}
	return fmt.Errorf("%w: namespace %q is not allowed in environment %q", util.ErrForbidden, namespace, e.ID)
}

// validateRef checks the parts of ref every single-object operation needs
func validateRef(ref ResourceRef) (*strategy, error) {
	s, err := strategyFor(ref.Kind)
	if err != nil {
		return nil, err
	}
	if ref.Name == "" {
		return nil, util.InvalidRequest("resource_name", ref.Name, "name is required")
	}
	if s.namespaced && ref.Namespace == "" {
		return nil, util.InvalidRequest("namespace", ref.Namespace, fmt.Sprintf("namespace is required for %s", s.kind))
	}
	return s, nil
}

// scopedNamespace drops the namespace of cluster-scoped kinds
func scopedNamespace(s *strategy, namespace string) string {
	if !s.namespaced {
		return ""
	}
	return namespace
}

func (g *Gateway) isProtected(kind string) bool {
	_, ok := g.protected[strings.ToLower(kind)]
	return ok
}

func (g *Gateway) observe(envID, operation string, err error, start time.Time) {
	if g.metrics == nil {
		return
	}
	code := util.Code(err)
	if code == "" {
		code = "ok"
	}
	g.metrics.ObserveOperation(envID, operation, code, time.Since(start))
}
