// Package workload scales and restarts StatefulSets and DaemonSets.
//
// Both operations return once the API server accepts the change. Scale is
// naturally idempotent; Restart is not, every call triggers a new rollout.
// Status exposes the rollout counters so callers can poll for convergence.
package workload

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryankumar/fleetgate/internal/cluster"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/aryankumar/fleetgate/internal/util"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
)

// RestartAnnotation is the pod template annotation bumped by Restart
const RestartAnnotation = "kubectl.kubernetes.io/restartedAt"

// RolloutStatus is a point-in-time view of a workload rollout
type RolloutStatus struct {
	Kind      gateway.Kind `json:"kind" yaml:"kind"`
	Namespace string       `json:"namespace" yaml:"namespace"`
	Name      string       `json:"name" yaml:"name"`

	Desired   int32 `json:"desired" yaml:"desired"`
	Ready     int32 `json:"ready" yaml:"ready"`
	Updated   int32 `json:"updated" yaml:"updated"`
	Available int32 `json:"available" yaml:"available"`

	Generation         int64 `json:"generation" yaml:"generation"`
	ObservedGeneration int64 `json:"observedGeneration" yaml:"observedGeneration"`

	// Converged is true once the controller observed the latest spec and
	// every desired pod is updated and ready
	Converged bool `json:"converged" yaml:"converged"`
}

// Operations runs workload control calls through the gateway
type Operations struct {
	gw     *gateway.Gateway
	logger *slog.Logger
	now    func() time.Time
}

// New creates workload operations over gw
func New(gw *gateway.Gateway, logger *slog.Logger) *Operations {
	if logger == nil {
		logger = slog.Default()
	}
	return &Operations{gw: gw, logger: logger, now: time.Now}
}

// Scale sets spec.replicas of a StatefulSet. A negative replica count fails
// with util.ErrInvalidRequest before any cluster call.
func (o *Operations) Scale(ctx context.Context, envID, namespace, name string, replicas int32) error {
	if replicas < 0 {
		return util.InvalidRequest("replicas", replicas, "replicas must be a non-negative integer")
	}
	if err := requireTarget(namespace, name); err != nil {
		return err
	}

	patch := []byte(fmt.Sprintf(`{"spec":{"replicas":%d}}`, replicas))
	err := o.gw.WithHandle(ctx, "scale", envID, namespace, func(ctx context.Context, h *cluster.Handle) error {
		_, err := h.Clientset().AppsV1().StatefulSets(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
		return err
	})
	if err != nil {
		return err
	}

	o.logger.Info("scaled statefulset", "env", envID, "namespace", namespace, "name", name, "replicas", replicas)
	return nil
}

// ScaleKind is Scale with an explicit kind; only StatefulSets are scalable
func (o *Operations) ScaleKind(ctx context.Context, envID string, kind gateway.Kind, namespace, name string, replicas int32) error {
	if kind != gateway.KindStatefulSet {
		return util.InvalidRequest("resource_type", string(kind), "only StatefulSets can be scaled")
	}
	return o.Scale(ctx, envID, namespace, name, replicas)
}

// Restart triggers a rolling restart of a StatefulSet or DaemonSet by
// stamping the pod template with the current time. The replica count is not
// touched. Every call starts a new rollout.
func (o *Operations) Restart(ctx context.Context, envID string, kind gateway.Kind, namespace, name string) error {
	if err := requireRestartable(kind); err != nil {
		return err
	}
	if err := requireTarget(namespace, name); err != nil {
		return err
	}

	stamp := o.now().UTC().Format(time.RFC3339)
	patch, err := json.Marshal(map[string]interface{}{
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{
					"annotations": map[string]string{RestartAnnotation: stamp},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to encode restart patch: %w", err)
	}

	err = o.gw.WithHandle(ctx, "restart", envID, namespace, func(ctx context.Context, h *cluster.Handle) error {
		apps := h.Clientset().AppsV1()
		var err error
		if kind == gateway.KindStatefulSet {
			_, err = apps.StatefulSets(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
		} else {
			_, err = apps.DaemonSets(namespace).Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{})
		}
		return err
	})
	if err != nil {
		return err
	}

	o.logger.Info("restarted workload", "env", envID, "kind", kind, "namespace", namespace, "name", name, "restartedAt", stamp)
	return nil
}

// Status reads the rollout counters of a StatefulSet or DaemonSet
func (o *Operations) Status(ctx context.Context, envID string, kind gateway.Kind, namespace, name string) (*RolloutStatus, error) {
	if err := requireRestartable(kind); err != nil {
		return nil, err
	}
	if err := requireTarget(namespace, name); err != nil {
		return nil, err
	}

	status := &RolloutStatus{Kind: kind, Namespace: namespace, Name: name}
	err := o.gw.WithHandle(ctx, "status", envID, namespace, func(ctx context.Context, h *cluster.Handle) error {
		apps := h.Clientset().AppsV1()

		if kind == gateway.KindStatefulSet {
			sts, err := apps.StatefulSets(namespace).Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				return err
			}
			status.Desired = 1
			if sts.Spec.Replicas != nil {
				status.Desired = *sts.Spec.Replicas
			}
			status.Ready = sts.Status.ReadyReplicas
			status.Updated = sts.Status.UpdatedReplicas
			status.Available = sts.Status.AvailableReplicas
			status.Generation = sts.Generation
			status.ObservedGeneration = sts.Status.ObservedGeneration
			return nil
		}

		ds, err := apps.DaemonSets(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		status.Desired = ds.Status.DesiredNumberScheduled
		status.Ready = ds.Status.NumberReady
		status.Updated = ds.Status.UpdatedNumberScheduled
		status.Available = ds.Status.NumberAvailable
		status.Generation = ds.Generation
		status.ObservedGeneration = ds.Status.ObservedGeneration
		return nil
	})
	if err != nil {
		return nil, err
	}

	status.Converged = status.ObservedGeneration >= status.Generation &&
		status.Updated == status.Desired &&
		status.Ready == status.Desired
	return status, nil
}

func requireRestartable(kind gateway.Kind) error {
	if kind != gateway.KindStatefulSet && kind != gateway.KindDaemonSet {
		return util.InvalidRequest("resource_type", string(kind), "only StatefulSets and DaemonSets are supported")
	}
	return nil
}

func requireTarget(namespace, name string) error {
	if namespace == "" {
		return util.InvalidRequest("namespace", namespace, "namespace is required")
	}
	if name == "" {
		return util.InvalidRequest("name", name, "name is required")
	}
	return nil
}
