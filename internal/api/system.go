package api

import (
	"net/http"
	"time"
)

// handleHealth reports server status. The agent polls this to verify its
// connection before enabling capture.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        s.version,
		"model":          s.analyzer.Model(),
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}
