package api

import (
	"net/http"

	"github.com/dgallion1/docgraph/internal/metrics"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.Store.Stats(r.Context())
	if err != nil {
		jsonError(w, "failed to read stats: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var latency metrics.Snapshot
	if s.deps.Metrics != nil && s.deps.Metrics.Latency != nil {
		latency = s.deps.Metrics.Latency.Snapshot()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queue_depth":   s.deps.Orchestrator.QueueDepth(),
		"tracked_jobs":  s.deps.Orchestrator.TrackedJobs(),
		"store":         counts,
		"graph_enabled": s.deps.Graph != nil,
		"latency":       latency,
	})
}
