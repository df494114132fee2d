package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

type sessionStartRequest struct {
	SessionID string `json:"session_id"`
}

type sessionNoteRequest struct {
	Note string `json:"note"`
}

// handleSessionStart begins a fresh session, archiving the current one.
func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req sessionStartRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeValidationError(w, "invalid session payload: "+err.Error())
			return
		}
	}

	fresh := s.sessions.StartNew(r.Context(), req.SessionID)
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": fresh.ID(),
	})
}

// handleSessionEnd closes the current session, publishing its summary to
// MQTT when a publisher is configured.
func (s *Server) handleSessionEnd(w http.ResponseWriter, r *http.Request) {
	summary := s.sessions.EndCurrent(r.Context())
	if summary == nil {
		writeNotFound(w, "no active session")
		return
	}

	if s.mqtt != nil {
		if err := s.mqtt.PublishSessionSummary(summary); err != nil {
			s.logger.Warn("publishing session summary to mqtt", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSessionNote(w http.ResponseWriter, r *http.Request) {
	var req sessionNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid note payload: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Note) == "" {
		writeValidationError(w, "note is required")
		return
	}

	s.sessions.Current().AddNote(req.Note)
	writeJSON(w, http.StatusOK, map[string]any{"recorded": true})
}

// handleSessionSummary reports statistics for the session in progress.
func (s *Server) handleSessionSummary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.Current().Summary())
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeValidationError(w, "limit must be an integer")
			return
		}
		limit = parsed
	}

	history, err := s.sessions.History(r.Context(), limit)
	if err != nil {
		writeInternalError(w, "loading session history: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": history,
	})
}

// handleSessionExport renders the current session (or, with ?session_id=,
// a persisted one) as JSON or Markdown.
func (s *Server) handleSessionExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		s.exportStored(w, r, sessionID, format)
		return
	}

	current := s.sessions.Current()
	switch format {
	case "json":
		b, err := current.ExportJSON()
		if err != nil {
			writeInternalError(w, "exporting session: "+err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(b) //nolint:errcheck // Best-effort write to response
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(current.ExportMarkdown())) //nolint:errcheck // Best-effort write
	default:
		writeValidationError(w, "format must be json or markdown")
	}
}

// exportStored serves a persisted session's JSON export. Markdown is only
// available for the live session; stored exports are JSON blobs.
func (s *Server) exportStored(w http.ResponseWriter, r *http.Request, sessionID, format string) {
	if s.exporter == nil {
		writeNotFound(w, "session persistence is disabled")
		return
	}
	if format != "json" {
		writeValidationError(w, "stored sessions export as json only")
		return
	}

	b, err := s.exporter.Export(r.Context(), sessionID)
	if err != nil {
		writeNotFound(w, "unknown session id")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b) //nolint:errcheck // Best-effort write to response
}
