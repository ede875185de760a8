package gateway

import (
	"context"
	"fmt"

	"github.com/aryankumar/fleetgate/internal/cluster"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/yaml"
)

const lastAppliedAnnotation = "kubectl.kubernetes.io/last-applied-configuration"

// Content is one object as a re-appliable document
type Content struct {
	Ref             ResourceRef                `json:"ref"`
	ResourceVersion string                     `json:"resourceVersion"`
	YAML            string                     `json:"yaml"`
	Object          *unstructured.Unstructured `json:"-"`
}

// GetContent reads the object ref names and renders it as YAML.
// managedFields and the last-applied annotation are removed. resourceVersion
// is kept for Replace's staleness check; status is kept for display only,
// since every manifest write drops it.
func (g *Gateway) GetContent(ctx context.Context, ref ResourceRef) (*Content, error) {
	s, err := validateRef(ref)
	if err != nil {
		return nil, err
	}
	ref.Namespace = scopedNamespace(s, ref.Namespace)

	var obj *unstructured.Unstructured
	err = g.WithHandle(ctx, "get_content", ref.Env, ref.Namespace, func(ctx context.Context, h *cluster.Handle) error {
		rc, err := ResourceClient(h.Dynamic(), s.kind, ref.Namespace)
		if err != nil {
			return err
		}
		obj, err = rc.Get(ctx, ref.Name, metav1.GetOptions{})
		return err
	})
	if err != nil {
		return nil, err
	}

	cleanForDisplay(obj, s)

	out, err := yaml.Marshal(obj.Object)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s as YAML: %w", ref, err)
	}

	return &Content{
		Ref:             ref,
		ResourceVersion: obj.GetResourceVersion(),
		YAML:            string(out),
		Object:          obj,
	}, nil
}

func cleanForDisplay(obj *unstructured.Unstructured, s *strategy) {
	if obj.GetAPIVersion() == "" {
		obj.SetAPIVersion(s.apiVersion)
	}
	if obj.GetKind() == "" {
		obj.SetKind(string(s.kind))
	}

	unstructured.RemoveNestedField(obj.Object, "metadata", "managedFields")

	if annotations := obj.GetAnnotations(); annotations != nil {
		delete(annotations, lastAppliedAnnotation)
		if len(annotations) == 0 {
			unstructured.RemoveNestedField(obj.Object, "metadata", "annotations")
		} else {
			obj.SetAnnotations(annotations)
		}
	}
}
