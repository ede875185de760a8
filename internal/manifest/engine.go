package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aryankumar/fleetgate/internal/cluster"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/aryankumar/fleetgate/internal/util"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
)

// Options configures an Engine
type Options struct {
	// RequireResourceVersion rejects Replace documents without metadata.resourceVersion.
	// When false the server's current version is used for them.
	RequireResourceVersion bool
}

// Engine drives manifest operations through the gateway's handle discipline
type Engine struct {
	gw     *gateway.Gateway
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates an engine
func NewEngine(gw *gateway.Gateway, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{gw: gw, opts: opts, logger: logger, now: time.Now}
}

// Create creates raw, failing with a conflict if the object exists
func (e *Engine) Create(ctx context.Context, envID string, raw []byte) (*Result, error) {
	return e.Run(ctx, NewOperation(envID, ModeCreate, raw))
}

// Apply merges raw into the live object, creating it if absent
func (e *Engine) Apply(ctx context.Context, envID string, raw []byte) (*Result, error) {
	return e.Run(ctx, NewOperation(envID, ModeApply, raw))
}

// Replace overwrites the live object with raw
func (e *Engine) Replace(ctx context.Context, envID string, raw []byte) (*Result, error) {
	return e.Run(ctx, NewOperation(envID, ModeReplace, raw))
}

// Run drives op from Pending to a terminal state. The returned Result is
// never nil; the error is op.Err.
func (e *Engine) Run(ctx context.Context, op *Operation) (*Result, error) {
	if err := e.Parse(op); err == nil {
		if err := e.Validate(op); err == nil {
			_ = e.Dispatch(ctx, op)
		}
	}
	return op.Result, op.Err
}

// Parse decodes op.Raw. Exactly one non-empty YAML or JSON document is accepted.
func (e *Engine) Parse(op *Operation) error {
	if err := op.expect(StatePending); err != nil {
		return err
	}

	docs := make([]map[string]interface{}, 0, 1)
	decoder := utilyaml.NewYAMLOrJSONDecoder(bytes.NewReader(op.Raw), 4096)
	for {
		var doc map[string]interface{}
		if err := decoder.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return e.reject(op, util.InvalidManifest("document", nil, fmt.Sprintf("malformed document: %v", err)))
		}
		if len(doc) == 0 {
			continue
		}
		docs = append(docs, doc)
	}

	switch len(docs) {
	case 0:
		return e.reject(op, util.InvalidManifest("document", nil, "manifest is empty"))
	case 1:
	default:
		return e.reject(op, util.InvalidManifest("document", len(docs), "manifest must contain exactly one document"))
	}

	op.Object = &unstructured.Unstructured{Object: docs[0]}
	op.transition(StateParsed, e.now(), "")
	return nil
}

// Validate checks the parsed object's identity against the kind table and
// the environment's namespace policy.
func (e *Engine) Validate(op *Operation) error {
	if err := op.expect(StateParsed); err != nil {
		return err
	}
	obj := op.Object

	if obj.GetAPIVersion() == "" {
		return e.reject(op, util.InvalidManifest("apiVersion", nil, "apiVersion is required"))
	}
	if obj.GetKind() == "" {
		return e.reject(op, util.InvalidManifest("kind", nil, "kind is required"))
	}
	kind, err := gateway.ParseKind(obj.GetKind())
	if err != nil || string(kind) != obj.GetKind() {
		return e.reject(op, util.InvalidManifest("kind", obj.GetKind(), fmt.Sprintf("unsupported kind, expected one of: %v", gateway.KindNames())))
	}
	if want := gateway.APIVersion(kind); obj.GetAPIVersion() != want {
		return e.reject(op, util.InvalidManifest("apiVersion", obj.GetAPIVersion(), fmt.Sprintf("%s must use apiVersion %s", kind, want)))
	}
	if obj.GetName() == "" {
		return e.reject(op, util.InvalidManifest("metadata.name", nil, "name is required"))
	}

	namespace := obj.GetNamespace()
	if gateway.Namespaced(kind) {
		if namespace == "" {
			return e.reject(op, util.InvalidManifest("metadata.namespace", nil, fmt.Sprintf("namespace is required for %s", kind)))
		}
	} else if namespace != "" {
		obj.SetNamespace("")
		namespace = ""
	}

	if op.Mode == ModeReplace && e.opts.RequireResourceVersion && obj.GetResourceVersion() == "" {
		return e.reject(op, util.InvalidManifest("metadata.resourceVersion", nil, "resourceVersion is required for replace"))
	}

	environment, err := e.gw.Resolve(op.Env)
	if err != nil {
		return e.reject(op, err)
	}
	if err := gateway.CheckNamespace(environment, namespace); err != nil {
		return e.reject(op, err)
	}

	op.Kind = kind
	op.Namespace = namespace
	op.Name = obj.GetName()
	op.transition(StateValidated, e.now(), "")
	return nil
}

// Dispatch sends the validated object to the cluster
func (e *Engine) Dispatch(ctx context.Context, op *Operation) error {
	if err := op.expect(StateValidated); err != nil {
		return err
	}
	op.transition(StateDispatched, e.now(), string(op.Mode))

	var (
		action Action
		live   *unstructured.Unstructured
	)
	err := e.gw.WithHandle(ctx, string(op.Mode), op.Env, op.Namespace, func(ctx context.Context, h *cluster.Handle) error {
		var err error
		switch op.Mode {
		case ModeCreate:
			action, live, err = e.create(ctx, h, op)
		case ModeApply:
			action, live, err = e.apply(ctx, h, op)
		case ModeReplace:
			action, live, err = e.replace(ctx, h, op)
		default:
			err = util.InvalidRequest("method", string(op.Mode), modeUsage)
		}
		return err
	})
	if err != nil {
		e.logger.Warn("manifest rejected", "env", op.Env, "mode", op.Mode, "object", op.Describe(), "error", err)
		return e.reject(op, err)
	}

	op.transition(StateApplied, e.now(), string(action))
	op.Result = &Result{
		State:           StateApplied,
		Action:          action,
		Kind:            op.Kind,
		Namespace:       op.Namespace,
		Name:            op.Name,
		ResourceVersion: live.GetResourceVersion(),
		Message:         fmt.Sprintf("%s %s", op.Describe(), action),
	}
	e.logger.Info("manifest applied", "env", op.Env, "mode", op.Mode, "object", op.Describe(), "action", action)
	return nil
}

// create creates the object and never touches an existing one
func (e *Engine) create(ctx context.Context, h *cluster.Handle, op *Operation) (Action, *unstructured.Unstructured, error) {
	rc, err := gateway.ResourceClient(h.Dynamic(), op.Kind, op.Namespace)
	if err != nil {
		return "", nil, err
	}
	created, err := rc.Create(ctx, stripServerFields(op.Object.DeepCopy()), metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		return "", nil, fmt.Errorf("%w: %s already exists; use apply or replace", util.ErrConflict, op.Describe())
	}
	if err != nil {
		return "", nil, err
	}
	return ActionCreated, created, nil
}

// apply creates the object or JSON-merge-patches it onto the live one
func (e *Engine) apply(ctx context.Context, h *cluster.Handle, op *Operation) (Action, *unstructured.Unstructured, error) {
	rc, err := gateway.ResourceClient(h.Dynamic(), op.Kind, op.Namespace)
	if err != nil {
		return "", nil, err
	}
	doc := stripServerFields(op.Object.DeepCopy())

	if _, err := rc.Get(ctx, op.Name, metav1.GetOptions{}); err != nil {
		if !apierrors.IsNotFound(err) {
			return "", nil, err
		}
		created, err := rc.Create(ctx, doc, metav1.CreateOptions{})
		if err != nil {
			return "", nil, err
		}
		return ActionCreated, created, nil
	}

	patch, err := json.Marshal(doc.Object)
	if err != nil {
		return "", nil, util.InvalidManifest("document", nil, fmt.Sprintf("cannot encode patch: %v", err))
	}
	patched, err := rc.Patch(ctx, op.Name, types.MergePatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return "", nil, err
	}
	return ActionConfigured, patched, nil
}

// replace overwrites the live object, enforcing the document's resourceVersion
func (e *Engine) replace(ctx context.Context, h *cluster.Handle, op *Operation) (Action, *unstructured.Unstructured, error) {
	rc, err := gateway.ResourceClient(h.Dynamic(), op.Kind, op.Namespace)
	if err != nil {
		return "", nil, err
	}

	current, err := rc.Get(ctx, op.Name, metav1.GetOptions{})
	if err != nil {
		return "", nil, err
	}

	doc := op.Object.DeepCopy()
	authored := doc.GetResourceVersion()
	switch {
	case authored == "":
		doc.SetResourceVersion(current.GetResourceVersion())
	case authored != current.GetResourceVersion():
		return "", nil, fmt.Errorf("%w: %s was modified (document resourceVersion %s, server %s); re-fetch and retry",
			util.ErrConflict, op.Describe(), authored, current.GetResourceVersion())
	}

	unstructured.RemoveNestedField(doc.Object, "metadata", "managedFields")
	unstructured.RemoveNestedField(doc.Object, "status")

	updated, err := rc.Update(ctx, doc, metav1.UpdateOptions{})
	if err != nil {
		return "", nil, err
	}
	return ActionReplaced, updated, nil
}

// stripServerFields removes the fields the server owns so a document read
// back from the cluster can be applied unchanged
func stripServerFields(obj *unstructured.Unstructured) *unstructured.Unstructured {
	for _, field := range [][]string{
		{"metadata", "resourceVersion"},
		{"metadata", "uid"},
		{"metadata", "creationTimestamp"},
		{"metadata", "managedFields"},
		{"metadata", "generation"},
		{"status"},
	} {
		unstructured.RemoveNestedField(obj.Object, field...)
	}
	return obj
}

// reject moves op to Rejected with err and returns err
func (e *Engine) reject(op *Operation, err error) error {
	op.transition(StateRejected, e.now(), err.Error())
	op.Err = err
	op.Result = &Result{
		State:     StateRejected,
		Kind:      op.Kind,
		Namespace: op.Namespace,
		Name:      op.Name,
		Message:   err.Error(),
	}
	return err
}
