package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// Resource is the flat, JSON-serializable projection of one object
type Resource map[string]interface{}

var (
	podColumns         = []string{"namespace", "name", "status", "ready", "restart_count", "node_name", "pod_ip", "controlled_by", "creation_timestamp"}
	serviceColumns     = []string{"namespace", "name", "type", "cluster_ip", "ports", "selector", "external_ips", "creation_timestamp"}
	ingressColumns     = []string{"namespace", "name", "ingress_class", "rules_hosts", "tls_secret_names", "creation_timestamp"}
	configMapColumns   = []string{"namespace", "name", "data_keys", "creation_timestamp"}
	statefulSetColumns = []string{"namespace", "name", "desired_pods", "ready_pods", "cpu_requests", "cpu_limits", "memory_requests", "memory_limits", "creation_timestamp"}
	daemonSetColumns   = []string{"namespace", "name", "desired_pods", "current_pods", "ready_pods", "cpu_requests", "cpu_limits", "memory_requests", "memory_limits", "creation_timestamp"}
	nodeColumns        = []string{"name", "status", "schedulable", "roles", "internal_ip", "kubelet_version", "os_image", "kernel_version", "container_runtime", "creation_timestamp"}
)

func listPods(ctx context.Context, cs kubernetes.Interface, ns string) ([]Resource, error) {
	list, err := cs.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, projectPod(&list.Items[i]))
	}
	return out, nil
}

func projectPod(pod *corev1.Pod) Resource {
	ready, restarts := 0, int32(0)
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.Ready {
			ready++
		}
		restarts += cs.RestartCount
	}

	controlledBy := ""
	if owner := metav1.GetControllerOf(pod); owner != nil {
		controlledBy = owner.Kind + "/" + owner.Name
	}

	phase := string(pod.Status.Phase)
	if phase == "" {
		phase = "Unknown"
	}
	if pod.DeletionTimestamp != nil {
		phase = "Terminating"
	}

	return Resource{
		"namespace":          pod.Namespace,
		"name":               pod.Name,
		"status":             phase,
		"ready":              fmt.Sprintf("%d/%d", ready, len(pod.Spec.Containers)),
		"restart_count":      restarts,
		"node_name":          pod.Spec.NodeName,
		"pod_ip":             pod.Status.PodIP,
		"controlled_by":      controlledBy,
		"creation_timestamp": timestamp(pod.CreationTimestamp),
	}
}

func listServices(ctx context.Context, cs kubernetes.Interface, ns string) ([]Resource, error) {
	list, err := cs.CoreV1().Services(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(list.Items))
	for i := range list.Items {
		svc := &list.Items[i]

		ports := make([]string, 0, len(svc.Spec.Ports))
		for _, p := range svc.Spec.Ports {
			if p.NodePort != 0 {
				ports = append(ports, fmt.Sprintf("%d:%d/%s", p.Port, p.NodePort, p.Protocol))
			} else {
				ports = append(ports, fmt.Sprintf("%d/%s", p.Port, p.Protocol))
			}
		}

		out = append(out, Resource{
			"namespace":          svc.Namespace,
			"name":               svc.Name,
			"type":               string(svc.Spec.Type),
			"cluster_ip":         svc.Spec.ClusterIP,
			"ports":              strings.Join(ports, ","),
			"selector":           joinLabels(svc.Spec.Selector),
			"external_ips":       strings.Join(svc.Spec.ExternalIPs, ","),
			"creation_timestamp": timestamp(svc.CreationTimestamp),
		})
	}
	return out, nil
}

func listIngresses(ctx context.Context, cs kubernetes.Interface, ns string) ([]Resource, error) {
	list, err := cs.NetworkingV1().Ingresses(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, projectIngress(&list.Items[i]))
	}
	return out, nil
}

func projectIngress(ing *networkingv1.Ingress) Resource {
	class := ""
	if ing.Spec.IngressClassName != nil {
		class = *ing.Spec.IngressClassName
	} else if v, ok := ing.Annotations["kubernetes.io/ingress.class"]; ok {
		class = v
	}

	hosts := make([]string, 0, len(ing.Spec.Rules))
	for _, r := range ing.Spec.Rules {
		if r.Host != "" {
			hosts = append(hosts, r.Host)
		}
	}
	secrets := make([]string, 0, len(ing.Spec.TLS))
	for _, t := range ing.Spec.TLS {
		if t.SecretName != "" {
			secrets = append(secrets, t.SecretName)
		}
	}

	return Resource{
		"namespace":          ing.Namespace,
		"name":               ing.Name,
		"ingress_class":      class,
		"rules_hosts":        hosts,
		"tls_secret_names":   secrets,
		"creation_timestamp": timestamp(ing.CreationTimestamp),
	}
}

func listConfigMaps(ctx context.Context, cs kubernetes.Interface, ns string) ([]Resource, error) {
	list, err := cs.CoreV1().ConfigMaps(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(list.Items))
	for i := range list.Items {
		cm := &list.Items[i]

		keys := make([]string, 0, len(cm.Data)+len(cm.BinaryData))
		for k := range cm.Data {
			keys = append(keys, k)
		}
		for k := range cm.BinaryData {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out = append(out, Resource{
			"namespace":          cm.Namespace,
			"name":               cm.Name,
			"data_keys":          keys,
			"creation_timestamp": timestamp(cm.CreationTimestamp),
		})
	}
	return out, nil
}

func listStatefulSets(ctx context.Context, cs kubernetes.Interface, ns string) ([]Resource, error) {
	list, err := cs.AppsV1().StatefulSets(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(list.Items))
	for i := range list.Items {
		sts := &list.Items[i]

		desired := int32(1)
		if sts.Spec.Replicas != nil {
			desired = *sts.Spec.Replicas
		}

		r := Resource{
			"namespace":          sts.Namespace,
			"name":               sts.Name,
			"desired_pods":       desired,
			"ready_pods":         sts.Status.ReadyReplicas,
			"creation_timestamp": timestamp(sts.CreationTimestamp),
		}
		addTemplateResources(r, &sts.Spec.Template.Spec)
		out = append(out, r)
	}
	return out, nil
}

func listDaemonSets(ctx context.Context, cs kubernetes.Interface, ns string) ([]Resource, error) {
	list, err := cs.AppsV1().DaemonSets(ns).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(list.Items))
	for i := range list.Items {
		ds := &list.Items[i]
		r := Resource{
			"namespace":          ds.Namespace,
			"name":               ds.Name,
			"desired_pods":       ds.Status.DesiredNumberScheduled,
			"current_pods":       ds.Status.CurrentNumberScheduled,
			"ready_pods":         ds.Status.NumberReady,
			"creation_timestamp": timestamp(ds.CreationTimestamp),
		}
		addTemplateResources(r, &ds.Spec.Template.Spec)
		out = append(out, r)
	}
	return out, nil
}

// addTemplateResources records the per-pod cpu and memory requests and limits of a pod template
func addTemplateResources(r Resource, spec *corev1.PodSpec) {
	var cpuReq, cpuLim, memReq, memLim resource.Quantity
	for _, c := range spec.Containers {
		if q, ok := c.Resources.Requests[corev1.ResourceCPU]; ok {
			cpuReq.Add(q)
		}
		if q, ok := c.Resources.Limits[corev1.ResourceCPU]; ok {
			cpuLim.Add(q)
		}
		if q, ok := c.Resources.Requests[corev1.ResourceMemory]; ok {
			memReq.Add(q)
		}
		if q, ok := c.Resources.Limits[corev1.ResourceMemory]; ok {
			memLim.Add(q)
		}
	}
	r["cpu_requests"] = fmt.Sprintf("%dm", cpuReq.MilliValue())
	r["cpu_limits"] = fmt.Sprintf("%dm", cpuLim.MilliValue())
	r["memory_requests"] = fmt.Sprintf("%dMi", memReq.Value()/(1<<20))
	r["memory_limits"] = fmt.Sprintf("%dMi", memLim.Value()/(1<<20))
}

func listNodes(ctx context.Context, cs kubernetes.Interface) ([]Resource, error) {
	list, err := cs.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(list.Items))
	for i := range list.Items {
		out = append(out, projectNode(&list.Items[i]))
	}
	return out, nil
}

func projectNode(node *corev1.Node) Resource {
	status := "Unknown"
	for _, c := range node.Status.Conditions {
		if c.Type == corev1.NodeReady {
			if c.Status == corev1.ConditionTrue {
				status = "Ready"
			} else {
				status = "NotReady"
			}
		}
	}

	roles := make([]string, 0)
	for label := range node.Labels {
		if role, ok := strings.CutPrefix(label, "node-role.kubernetes.io/"); ok && role != "" {
			roles = append(roles, role)
		}
	}
	sort.Strings(roles)

	internalIP := ""
	for _, addr := range node.Status.Addresses {
		if addr.Type == corev1.NodeInternalIP {
			internalIP = addr.Address
			break
		}
	}

	info := node.Status.NodeInfo
	return Resource{
		"name":               node.Name,
		"status":             status,
		"schedulable":        !node.Spec.Unschedulable,
		"roles":              strings.Join(roles, ","),
		"internal_ip":        internalIP,
		"kubelet_version":    info.KubeletVersion,
		"os_image":           info.OSImage,
		"kernel_version":     info.KernelVersion,
		"container_runtime":  info.ContainerRuntimeVersion,
		"creation_timestamp": timestamp(node.CreationTimestamp),
	}
}

// podReady reports the pod's Ready condition
func podReady(pod *corev1.Pod) bool {
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

func timestamp(t metav1.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func joinLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+labels[k])
	}
	return strings.Join(pairs, ",")
}

// workloadSelector returns the pod selector of a StatefulSet or DaemonSet
func workloadSelector(obj interface{}) (*metav1.LabelSelector, bool) {
	switch w := obj.(type) {
	case *appsv1.StatefulSet:
		return w.Spec.Selector, true
	case *appsv1.DaemonSet:
		return w.Spec.Selector, true
	}
	return nil, false
}
