package gateway

import (
	"context"
	"fmt"

	"github.com/aryankumar/fleetgate/internal/cluster"
	"github.com/aryankumar/fleetgate/internal/util"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// EndpointAddress is one ready backend of a Service
type EndpointAddress struct {
	IP           string `json:"ip"`
	Hostname     string `json:"hostname,omitempty"`
	NodeName     string `json:"node_name,omitempty"`
	PodName      string `json:"pod_name,omitempty"`
	PodNamespace string `json:"pod_namespace,omitempty"`
}

// EndpointPort is a port exposed by an endpoint subset
type EndpointPort struct {
	Name     string `json:"name,omitempty"`
	Port     int32  `json:"port"`
	Protocol string `json:"protocol"`
}

// EndpointSubset groups ready addresses with the ports they serve
type EndpointSubset struct {
	Addresses []EndpointAddress `json:"addresses"`
	Ports     []EndpointPort    `json:"ports"`
}

// ServicePort is one entry of a Service's spec.ports
type ServicePort struct {
	Name       string `json:"name,omitempty"`
	Port       int32  `json:"port"`
	TargetPort string `json:"target_port,omitempty"`
	NodePort   int32  `json:"node_port,omitempty"`
	Protocol   string `json:"protocol"`
}

// IngressRule is one host/path route of an Ingress
type IngressRule struct {
	Host        string `json:"host"`
	Path        string `json:"path"`
	PathType    string `json:"path_type,omitempty"`
	BackendName string `json:"backend_name,omitempty"`
	BackendPort string `json:"backend_port,omitempty"`
}

// GetEndpoints returns the ready endpoints of a Service. It fails with
// util.ErrNotFound when the Service or its Endpoints are absent or no
// address is ready.
func (g *Gateway) GetEndpoints(ctx context.Context, ref ResourceRef) ([]EndpointSubset, error) {
	ref.Kind = KindService
	if _, err := validateRef(ref); err != nil {
		return nil, err
	}

	var subsets []EndpointSubset
	err := g.WithHandle(ctx, "get_endpoints", ref.Env, ref.Namespace, func(ctx context.Context, h *cluster.Handle) error {
		if _, err := h.Clientset().CoreV1().Services(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{}); err != nil {
			return err
		}
		var err error
		subsets, err = readyEndpoints(ctx, h.Clientset(), ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return subsets, nil
}

// GetFirstPort returns spec.ports[0] of a Service that has ready endpoints
func (g *Gateway) GetFirstPort(ctx context.Context, ref ResourceRef) (*ServicePort, error) {
	ref.Kind = KindService
	if _, err := validateRef(ref); err != nil {
		return nil, err
	}

	var port *ServicePort
	err := g.WithHandle(ctx, "get_first_port", ref.Env, ref.Namespace, func(ctx context.Context, h *cluster.Handle) error {
		svc, err := h.Clientset().CoreV1().Services(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
		if err != nil {
			return err
		}
		if len(svc.Spec.Ports) == 0 {
			return fmt.Errorf("%w: service %s/%s has no ports", util.ErrNotFound, ref.Namespace, ref.Name)
		}
		if _, err := readyEndpoints(ctx, h.Clientset(), ref); err != nil {
			return err
		}

		p := svc.Spec.Ports[0]
		port = &ServicePort{
			Name:     p.Name,
			Port:     p.Port,
			NodePort: p.NodePort,
			Protocol: string(p.Protocol),
		}
		if p.TargetPort.String() != "0" {
			port.TargetPort = p.TargetPort.String()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// readyEndpoints collects the ready addresses of the Endpoints object named like the Service
func readyEndpoints(ctx context.Context, cs kubernetes.Interface, ref ResourceRef) ([]EndpointSubset, error) {
	ep, err := cs.CoreV1().Endpoints(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
	if err != nil {
		return nil, util.Classify(err)
	}

	subsets := make([]EndpointSubset, 0, len(ep.Subsets))
	ready := 0
	for _, s := range ep.Subsets {
		if len(s.Addresses) == 0 {
			continue
		}
		subset := EndpointSubset{
			Addresses: make([]EndpointAddress, 0, len(s.Addresses)),
			Ports:     make([]EndpointPort, 0, len(s.Ports)),
		}
		for _, a := range s.Addresses {
			addr := EndpointAddress{IP: a.IP, Hostname: a.Hostname}
			if a.NodeName != nil {
				addr.NodeName = *a.NodeName
			}
			if a.TargetRef != nil && a.TargetRef.Kind == "Pod" {
				addr.PodName = a.TargetRef.Name
				addr.PodNamespace = a.TargetRef.Namespace
			}
			subset.Addresses = append(subset.Addresses, addr)
		}
		for _, p := range s.Ports {
			subset.Ports = append(subset.Ports, EndpointPort{Name: p.Name, Port: p.Port, Protocol: string(p.Protocol)})
		}
		ready += len(subset.Addresses)
		subsets = append(subsets, subset)
	}

	if ready == 0 {
		return nil, fmt.Errorf("%w: service %s/%s has no ready endpoints", util.ErrNotFound, ref.Namespace, ref.Name)
	}
	return subsets, nil
}

// IngressRules flattens an Ingress into its host/path routes
func (g *Gateway) IngressRules(ctx context.Context, ref ResourceRef) ([]IngressRule, error) {
	ref.Kind = KindIngress
	if _, err := validateRef(ref); err != nil {
		return nil, err
	}

	rules := make([]IngressRule, 0)
	err := g.WithHandle(ctx, "ingress_rules", ref.Env, ref.Namespace, func(ctx context.Context, h *cluster.Handle) error {
		ing, err := h.Clientset().NetworkingV1().Ingresses(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
		if err != nil {
			return err
		}

		for _, r := range ing.Spec.Rules {
			if r.HTTP == nil {
				continue
			}
			for _, p := range r.HTTP.Paths {
				rule := IngressRule{Host: r.Host, Path: p.Path}
				if p.PathType != nil {
					rule.PathType = string(*p.PathType)
				}
				if svc := p.Backend.Service; svc != nil {
					rule.BackendName = svc.Name
					if svc.Port.Name != "" {
						rule.BackendPort = svc.Port.Name
					} else {
						rule.BackendPort = fmt.Sprint(svc.Port.Number)
					}
				} else if res := p.Backend.Resource; res != nil {
					rule.BackendName = res.Kind + "/" + res.Name
				}
				rules = append(rules, rule)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// WorkloadPods lists the pods selected by a StatefulSet or DaemonSet, each
// with the reason and message of its latest event. Events that can't be read
// leave those fields empty.
func (g *Gateway) WorkloadPods(ctx context.Context, ref ResourceRef) ([]Resource, error) {
	if ref.Kind != KindStatefulSet && ref.Kind != KindDaemonSet {
		return nil, util.InvalidRequest("resource_type", string(ref.Kind), "only StatefulSet and DaemonSet have workload pods")
	}
	if _, err := validateRef(ref); err != nil {
		return nil, err
	}

	out := make([]Resource, 0)
	err := g.WithHandle(ctx, "workload_pods", ref.Env, ref.Namespace, func(ctx context.Context, h *cluster.Handle) error {
		cs := h.Clientset()

		var workload interface{}
		var err error
		if ref.Kind == KindStatefulSet {
			workload, err = cs.AppsV1().StatefulSets(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
		} else {
			workload, err = cs.AppsV1().DaemonSets(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
		}
		if err != nil {
			return err
		}

		sel, _ := workloadSelector(workload)
		if sel == nil {
			return fmt.Errorf("%w: %s %s/%s has no pod selector", util.ErrInvalidRequest, ref.Kind, ref.Namespace, ref.Name)
		}
		selector, err := metav1.LabelSelectorAsSelector(sel)
		if err != nil {
			return fmt.Errorf("%w: %s %s/%s has an invalid selector: %v", util.ErrInvalidRequest, ref.Kind, ref.Namespace, ref.Name, err)
		}

		pods, err := cs.CoreV1().Pods(ref.Namespace).List(ctx, metav1.ListOptions{LabelSelector: selector.String()})
		if err != nil {
			return err
		}
		events, err := latestPodEvents(ctx, cs, ref.Namespace)
		if err != nil {
			g.logger.Warn("failed to read pod events", "env", ref.Env, "namespace", ref.Namespace, "error", err)
		}
		for i := range pods.Items {
			out = append(out, projectWorkloadPod(&pods.Items[i], events[pods.Items[i].Name]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// projectWorkloadPod extends the pod projection with readiness, image and
// the latest event, which may be nil
func projectWorkloadPod(pod *corev1.Pod, event *corev1.Event) Resource {
	r := projectPod(pod)
	r["pod_ready"] = podReady(pod)
	if len(pod.Spec.Containers) > 0 {
		r["image"] = pod.Spec.Containers[0].Image
	}
	r["event_reason"], r["event_message"] = "", ""
	if event != nil {
		r["event_reason"], r["event_message"] = event.Reason, event.Message
	}
	return r
}
