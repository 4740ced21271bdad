package api

import (
	"net/http"
	"time"
)

// healthResponse is the liveness/readiness body.
type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// handleHealth reports process liveness. It does not touch the database.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, healthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady reports readiness: the database must answer a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeError(s.logger, w, http.StatusServiceUnavailable, "not_ready", "database not configured")
		return
	}
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeError(s.logger, w, http.StatusServiceUnavailable, "not_ready", "database unreachable")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, healthResponse{
		Status: "ready",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
