package gateway

import (
	"context"
	"sort"
	"time"

	"github.com/aryankumar/fleetgate/internal/cluster"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Event is the projection of a core/v1 Event
type Event struct {
	Name           string `json:"name"`
	Namespace      string `json:"namespace"`
	Type           string `json:"type"`
	Reason         string `json:"reason"`
	Message        string `json:"message"`
	InvolvedKind   string `json:"involved_kind"`
	InvolvedName   string `json:"involved_name"`
	Count          int32  `json:"count"`
	Source         string `json:"source,omitempty"`
	FirstTimestamp string `json:"first_timestamp,omitempty"`
	LastTimestamp  string `json:"last_timestamp,omitempty"`

	seen time.Time
}

// Namespaces returns the sorted namespace names of an environment. A
// restricted environment only reports the allowed namespaces that exist.
func (g *Gateway) Namespaces(ctx context.Context, envID string) ([]string, error) {
	names := make([]string, 0)
	err := g.WithHandle(ctx, "namespaces", envID, "", func(ctx context.Context, h *cluster.Handle) error {
		list, err := h.Clientset().CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
		if err != nil {
			return err
		}
		for _, ns := range list.Items {
			if h.Env.AllowsNamespace(ns.Name) {
				names = append(names, ns.Name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Events lists the events of namespace, newest first. An empty namespace
// covers every allowed namespace on a restricted environment and the whole
// cluster otherwise.
func (g *Gateway) Events(ctx context.Context, envID, namespace string) ([]Event, error) {
	out := make([]Event, 0)
	err := g.WithHandle(ctx, "events", envID, namespace, func(ctx context.Context, h *cluster.Handle) error {
		namespaces := []string{namespace}
		if namespace == "" && h.Env.Restricted() {
			namespaces = h.Env.AllowedNamespaces()
		}
		for _, ns := range namespaces {
			list, err := h.Clientset().CoreV1().Events(ns).List(ctx, metav1.ListOptions{})
			if err != nil {
				return err
			}
			for i := range list.Items {
				out = append(out, projectEvent(&list.Items[i]))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].seen.After(out[j].seen) })
	return out, nil
}

func projectEvent(e *corev1.Event) Event {
	ev := Event{
		Name:         e.Name,
		Namespace:    e.Namespace,
		Type:         e.Type,
		Reason:       e.Reason,
		Message:      e.Message,
		InvolvedKind: e.InvolvedObject.Kind,
		InvolvedName: e.InvolvedObject.Name,
		Count:        e.Count,
		Source:       e.Source.Component,
		seen:         lastSeen(e),
	}
	if !e.FirstTimestamp.IsZero() {
		ev.FirstTimestamp = e.FirstTimestamp.UTC().Format(time.RFC3339)
	}
	if !e.LastTimestamp.IsZero() {
		ev.LastTimestamp = e.LastTimestamp.UTC().Format(time.RFC3339)
	}
	return ev
}

// lastSeen falls back to eventTime and then creation for events.k8s.io
// style events that never set lastTimestamp
func lastSeen(e *corev1.Event) time.Time {
	switch {
	case !e.LastTimestamp.IsZero():
		return e.LastTimestamp.Time
	case !e.EventTime.IsZero():
		return e.EventTime.Time
	default:
		return e.CreationTimestamp.Time
	}
}

// latestPodEvents maps pod name to its most recent event in namespace
func latestPodEvents(ctx context.Context, cs kubernetes.Interface, namespace string) (map[string]*corev1.Event, error) {
	list, err := cs.CoreV1().Events(namespace).List(ctx, metav1.ListOptions{FieldSelector: "involvedObject.kind=Pod"})
	if err != nil {
		return nil, err
	}

	latest := make(map[string]*corev1.Event)
	for i := range list.Items {
		e := &list.Items[i]
		if e.InvolvedObject.Kind != "Pod" {
			continue
		}
		if cur, ok := latest[e.InvolvedObject.Name]; !ok || lastSeen(e).After(lastSeen(cur)) {
			latest[e.InvolvedObject.Name] = e
		}
	}
	return latest, nil
}
