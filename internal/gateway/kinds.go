package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aryankumar/fleetgate/internal/util"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes"
)

// Kind is a resource kind the gateway can address
type Kind string

const (
	KindPod         Kind = "Pod"
	KindService     Kind = "Service"
	KindIngress     Kind = "Ingress"
	KindConfigMap   Kind = "ConfigMap"
	KindStatefulSet Kind = "StatefulSet"
	KindDaemonSet   Kind = "DaemonSet"
	KindNode        Kind = "Node"
)

// strategy is the kind-specific part of every gateway operation
type strategy struct {
	kind       Kind
	namespaced bool
	apiVersion string
	gvr        schema.GroupVersionResource
	aliases    []string

	// columns is the fixed field order of the kind's Resource projection
	columns []string

	list   func(ctx context.Context, cs kubernetes.Interface, namespace string) ([]Resource, error)
	delete func(ctx context.Context, cs kubernetes.Interface, namespace, name string, opts metav1.DeleteOptions) error
}

var strategies = map[Kind]*strategy{
	KindPod: {
		kind:       KindPod,
		namespaced: true,
		apiVersion: "v1",
		gvr:        schema.GroupVersionResource{Version: "v1", Resource: "pods"},
		aliases:    []string{"pod", "pods", "po"},
		columns:    podColumns,
		list:       listPods,
		delete: func(ctx context.Context, cs kubernetes.Interface, ns, name string, opts metav1.DeleteOptions) error {
			return cs.CoreV1().Pods(ns).Delete(ctx, name, opts)
		},
	},
	KindService: {
		kind:       KindService,
		namespaced: true,
		apiVersion: "v1",
		gvr:        schema.GroupVersionResource{Version: "v1", Resource: "services"},
		aliases:    []string{"service", "services", "svc"},
		columns:    serviceColumns,
		list:       listServices,
		delete: func(ctx context.Context, cs kubernetes.Interface, ns, name string, opts metav1.DeleteOptions) error {
			return cs.CoreV1().Services(ns).Delete(ctx, name, opts)
		},
	},
	KindIngress: {
		kind:       KindIngress,
		namespaced: true,
		apiVersion: "networking.k8s.io/v1",
		gvr:        schema.GroupVersionResource{Group: "networking.k8s.io", Version: "v1", Resource: "ingresses"},
		aliases:    []string{"ingress", "ingresses", "ing"},
		columns:    ingressColumns,
		list:       listIngresses,
		delete: func(ctx context.Context, cs kubernetes.Interface, ns, name string, opts metav1.DeleteOptions) error {
			return cs.NetworkingV1().Ingresses(ns).Delete(ctx, name, opts)
		},
	},
	KindConfigMap: {
		kind:       KindConfigMap,
		namespaced: true,
		apiVersion: "v1",
		gvr:        schema.GroupVersionResource{Version: "v1", Resource: "configmaps"},
		aliases:    []string{"configmap", "configmaps", "cm"},
		columns:    configMapColumns,
		list:       listConfigMaps,
		delete: func(ctx context.Context, cs kubernetes.Interface, ns, name string, opts metav1.DeleteOptions) error {
			return cs.CoreV1().ConfigMaps(ns).Delete(ctx, name, opts)
		},
	},
	KindStatefulSet: {
		kind:       KindStatefulSet,
		namespaced: true,
		apiVersion: "apps/v1",
		gvr:        schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "statefulsets"},
		aliases:    []string{"statefulset", "statefulsets", "sts"},
		columns:    statefulSetColumns,
		list:       listStatefulSets,
		delete: func(ctx context.Context, cs kubernetes.Interface, ns, name string, opts metav1.DeleteOptions) error {
			return cs.AppsV1().StatefulSets(ns).Delete(ctx, name, opts)
		},
	},
	KindDaemonSet: {
		kind:       KindDaemonSet,
		namespaced: true,
		apiVersion: "apps/v1",
		gvr:        schema.GroupVersionResource{Group: "apps", Version: "v1", Resource: "daemonsets"},
		aliases:    []string{"daemonset", "daemonsets", "ds"},
		columns:    daemonSetColumns,
		list:       listDaemonSets,
		delete: func(ctx context.Context, cs kubernetes.Interface, ns, name string, opts metav1.DeleteOptions) error {
			return cs.AppsV1().DaemonSets(ns).Delete(ctx, name, opts)
		},
	},
	KindNode: {
		kind:       KindNode,
		namespaced: false,
		apiVersion: "v1",
		gvr:        schema.GroupVersionResource{Version: "v1", Resource: "nodes"},
		aliases:    []string{"node", "nodes", "no"},
		columns:    nodeColumns,
		list: func(ctx context.Context, cs kubernetes.Interface, _ string) ([]Resource, error) {
			return listNodes(ctx, cs)
		},
		delete: func(ctx context.Context, cs kubernetes.Interface, _, name string, opts metav1.DeleteOptions) error {
			return cs.CoreV1().Nodes().Delete(ctx, name, opts)
		},
	},
}

// aliasIndex maps lowercased names, plurals and short names to kinds
var aliasIndex = func() map[string]Kind {
	idx := make(map[string]Kind)
	for kind, s := range strategies {
		for _, a := range s.aliases {
			idx[a] = kind
		}
	}
	return idx
}()

// ParseKind resolves a kind name, plural or short name, case-insensitively
func ParseKind(s string) (Kind, error) {
	kind, ok := aliasIndex[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", util.InvalidRequest("resource_type", s, fmt.Sprintf("unsupported resource kind, expected one of: %s", strings.Join(KindNames(), ", ")))
	}
	return kind, nil
}

// KindNames returns the supported kinds, sorted
func KindNames() []string {
	names := make([]string, 0, len(strategies))
	for kind := range strategies {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return names
}

// Known reports whether kind has a strategy
func Known(kind Kind) bool {
	_, ok := strategies[kind]
	return ok
}

// Namespaced reports whether kind is namespace scoped. Unknown kinds report false.
func Namespaced(kind Kind) bool {
	s, ok := strategies[kind]
	return ok && s.namespaced
}

// GVR returns the group/version/resource used for dynamic access to kind
func GVR(kind Kind) (schema.GroupVersionResource, bool) {
	s, ok := strategies[kind]
	if !ok {
		return schema.GroupVersionResource{}, false
	}
	return s.gvr, true
}

// APIVersion returns the preferred apiVersion for kind
func APIVersion(kind Kind) string {
	if s, ok := strategies[kind]; ok {
		return s.apiVersion
	}
	return ""
}

// Columns returns the projection field order for kind
func Columns(kind Kind) []string {
	if s, ok := strategies[kind]; ok {
		return s.columns
	}
	return nil
}

func strategyFor(kind Kind) (*strategy, error) {
	s, ok := strategies[kind]
	if !ok {
		return nil, util.InvalidRequest("resource_type", string(kind), "unsupported resource kind")
	}
	return s, nil
}
