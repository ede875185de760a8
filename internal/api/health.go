package api

import (
	"fmt"
	"net/http"

	"github.com/aryankumar/fleetgate/internal/util"
)

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, "ok")
}

// readyz reports whether the server can take traffic. With deep=1 every
// environment's API server is pinged and any failure makes the server unready.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pool.IsClosed() {
		writeJSON(w, http.StatusServiceUnavailable, Envelope{
			Success: false,
			Message: "client pool is closed",
			Error:   util.CodeClusterUnreachable,
		})
		return
	}

	deep := r.URL.Query().Get("deep")
	if deep != "1" && deep != "true" {
		writeMessage(w, "ready")
		return
	}

	statuses := s.deps.Pool.HealthCheckAll(r.Context(), s.deps.Registry.All())
	total := len(statuses)
	unhealthy := 0
	for _, st := range statuses {
		if !st.Healthy {
			unhealthy++
		}
	}

	if unhealthy > 0 {
		writeJSON(w, http.StatusServiceUnavailable, Envelope{
			Success: false,
			Data:    statuses,
			Message: fmt.Sprintf("%d of %d environments unhealthy", unhealthy, total),
			Error:   util.CodeClusterUnreachable,
			Total:   &total,
		})
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: statuses, Message: "ready", Total: &total})
}

