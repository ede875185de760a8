package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/aryankumar/fleetgate/internal/batch"
	"github.com/aryankumar/fleetgate/internal/gateway"
	"github.com/aryankumar/fleetgate/internal/manifest"
	"github.com/aryankumar/fleetgate/internal/util"
)

// environmentView is the public description of an environment. Credentials
// are never exposed.
type environmentView struct {
	ID                string            `json:"id"`
	Endpoint          string            `json:"endpoint"`
	Restricted        bool              `json:"restricted"`
	AllowedNamespaces []string          `json:"allowed_namespaces,omitempty"`
	Labels            map[string]string `json:"labels,omitempty"`
	HandlesInUse      int               `json:"handles_in_use"`
	Capacity          int               `json:"capacity"`
}

func (s *Server) listEnvironments(w http.ResponseWriter, r *http.Request) {
	envs := s.deps.Registry.All()
	views := make([]environmentView, 0, len(envs))
	for _, e := range envs {
		stats := s.deps.Pool.Stats(e.ID)
		views = append(views, environmentView{
			ID:                e.ID,
			Endpoint:          e.Endpoint(),
			Restricted:        e.Restricted(),
			AllowedNamespaces: e.AllowedNamespaces(),
			Labels:            e.Labels,
			HandlesInUse:      stats.InUse,
			Capacity:          stats.Capacity,
		})
	}
	writeList(w, views)
}

func (s *Server) listResources(kind gateway.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		items, err := s.deps.Gateway.List(r.Context(), q.Get("env"), kind, q.Get("namespace"))
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		writeList(w, items)
	}
}

// refFromQuery builds a ref from env, namespace, resource_type and resource_name
func refFromQuery(r *http.Request) (gateway.ResourceRef, error) {
	q := r.URL.Query()
	kind, err := gateway.ParseKind(q.Get("resource_type"))
	if err != nil {
		return gateway.ResourceRef{}, err
	}
	return gateway.ResourceRef{
		Env:       q.Get("env"),
		Namespace: q.Get("namespace"),
		Kind:      kind,
		Name:      q.Get("resource_name"),
	}, nil
}

func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromQuery(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	content, err := s.deps.Gateway.GetContent(r.Context(), ref)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeData(w, content)
}

func (s *Server) listNamespaces(w http.ResponseWriter, r *http.Request) {
	names, err := s.deps.Gateway.Namespaces(r.Context(), r.URL.Query().Get("env"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeList(w, names)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := s.deps.Gateway.Events(r.Context(), q.Get("env"), q.Get("namespace"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeList(w, events)
}

type manifestRequest struct {
	YAMLContent string `json:"yaml_content"`
}

func (s *Server) applyManifest(w http.ResponseWriter, r *http.Request) {
	mode, err := manifest.ParseMode(r.URL.Query().Get("method"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var req manifestRequest
	if err := decodeBody(w, r, s.opts.MaxBodyBytes, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if strings.TrimSpace(req.YAMLContent) == "" {
		writeError(w, s.logger, util.InvalidRequest("yaml_content", nil, "manifest is empty"))
		return
	}

	report, err := s.deps.Manifests.RunStream(r.Context(), r.URL.Query().Get("env"), mode, []byte(req.YAMLContent))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeManifestReport(w, report)
}

func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request) {
	ref, err := refFromQuery(r)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	var opts gateway.DeleteOptions
	if raw := r.URL.Query().Get("force"); raw != "" {
		force, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, s.logger, util.InvalidRequest("force", raw, "must be a boolean"))
			return
		}
		opts.Force = force
	}

	if err := s.deps.Gateway.DeleteOne(r.Context(), ref, opts); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeMessage(w, "deleted "+ref.String())
}

type deletePodsRequest struct {
	Pods []batch.PodItem `json:"pods"`
}

func (s *Server) deletePods(w http.ResponseWriter, r *http.Request) {
	var req deletePodsRequest
	if err := decodeBody(w, r, s.opts.MaxBodyBytes, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	report, err := s.deps.Batch.DeletePods(r.Context(), r.URL.Query().Get("env"), req.Pods)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeReport(w, report)
}

type nodesRequest struct {
	NodeNames []string `json:"node_names"`
}

func (s *Server) cordonNodes(w http.ResponseWriter, r *http.Request) {
	s.nodeBatch(w, r, s.deps.Batch.Cordon)
}

func (s *Server) uncordonNodes(w http.ResponseWriter, r *http.Request) {
	s.nodeBatch(w, r, s.deps.Batch.Uncordon)
}

func (s *Server) nodeBatch(w http.ResponseWriter, r *http.Request, run func(ctx context.Context, envID string, nodes []string) (*batch.Report, error)) {
	var req nodesRequest
	if err := decodeBody(w, r, s.opts.MaxBodyBytes, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	report, err := run(r.Context(), r.URL.Query().Get("env"), req.NodeNames)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeReport(w, report)
}

type scaleRequest struct {
	Namespace   string `json:"namespace"`
	StatefulSet string `json:"statefulset"`
	Replicas    *int32 `json:"replicas"`
}

func (s *Server) scaleStatefulSet(w http.ResponseWriter, r *http.Request) {
	var req scaleRequest
	if err := decodeBody(w, r, s.opts.MaxBodyBytes, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if req.Replicas == nil {
		writeError(w, s.logger, util.InvalidRequest("replicas", nil, "replicas is required"))
		return
	}

	envID := r.URL.Query().Get("env")
	if err := s.deps.Workloads.Scale(r.Context(), envID, req.Namespace, req.StatefulSet, *req.Replicas); err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeMessage(w, fmt.Sprintf("scaled StatefulSet %s/%s to %d replicas", req.Namespace, req.StatefulSet, *req.Replicas))
}

// restartRequest accepts the workload name under its kind's key
type restartRequest struct {
	Namespace   string `json:"namespace"`
	StatefulSet string `json:"statefulset,omitempty"`
	DaemonSet   string `json:"daemonset,omitempty"`
}

func (r restartRequest) name(kind gateway.Kind) string {
	if kind == gateway.KindDaemonSet {
		return r.DaemonSet
	}
	return r.StatefulSet
}

func (s *Server) restartWorkload(kind gateway.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req restartRequest
		if err := decodeBody(w, r, s.opts.MaxBodyBytes, &req); err != nil {
			writeError(w, s.logger, err)
			return
		}

		name := req.name(kind)
		err := s.deps.Workloads.Restart(r.Context(), r.URL.Query().Get("env"), kind, req.Namespace, name)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		writeMessage(w, fmt.Sprintf("restarted %s %s/%s", kind, req.Namespace, name))
	}
}

func (s *Server) workloadPods(kind gateway.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ref := gateway.ResourceRef{Env: q.Get("env"), Namespace: q.Get("namespace"), Kind: kind, Name: q.Get("name")}
		pods, err := s.deps.Gateway.WorkloadPods(r.Context(), ref)
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		writeList(w, pods)
	}
}

func (s *Server) workloadStatus(kind gateway.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		status, err := s.deps.Workloads.Status(r.Context(), q.Get("env"), kind, q.Get("namespace"), q.Get("name"))
		if err != nil {
			writeError(w, s.logger, err)
			return
		}
		writeData(w, status)
	}
}

func (s *Server) serviceEndpoints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := gateway.ResourceRef{Env: q.Get("env"), Namespace: q.Get("namespace"), Kind: gateway.KindService, Name: q.Get("service_name")}
	subsets, err := s.deps.Gateway.GetEndpoints(r.Context(), ref)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeList(w, subsets)
}

func (s *Server) serviceFirstPort(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := gateway.ResourceRef{Env: q.Get("env"), Namespace: q.Get("namespace"), Kind: gateway.KindService, Name: q.Get("service_name")}
	port, err := s.deps.Gateway.GetFirstPort(r.Context(), ref)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeData(w, port)
}

func (s *Server) ingressRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := gateway.ResourceRef{Env: q.Get("env"), Namespace: q.Get("namespace"), Kind: gateway.KindIngress, Name: q.Get("ingress_name")}
	rules, err := s.deps.Gateway.IngressRules(r.Context(), ref)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeList(w, rules)
}
