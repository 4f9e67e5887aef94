package api

import (
	"net/http"
	"time"
)

var startedAt = time.Now()

// handleHealth reports process and pool status for probes and the cashier UI.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	poolSize := 0
	if s.pool != nil {
		poolSize = s.pool.Size()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(startedAt).Seconds()),
		"inference_pool": poolSize,
	})
}

// handleInferenceStats proxies backend stats through the pool.
func (s *Server) handleInferenceStats(w http.ResponseWriter, r *http.Request) {
	if s.pool == nil || s.pool.Size() == 0 {
		writeError(w, http.StatusServiceUnavailable, "No inference backend available")
		return
	}
	stats, err := s.pool.GetServerStats(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "inference backend unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
