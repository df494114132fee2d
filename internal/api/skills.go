package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const defaultSkillTimeoutMS = 30000

// skillExecuteRequest is the caller-side payload for queuing a skill.
type skillExecuteRequest struct {
	SkillName  string         `json:"skill_name"`
	Parameters map[string]any `json:"parameters"`
	TimeoutMS  int            `json:"timeout_ms"`
}

// skillResultReport is the device-side payload reporting an outcome.
type skillResultReport struct {
	RequestID string         `json:"request_id"`
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
}

// handleSkillExecute queues a skill and blocks until the device reports a
// result or the timeout elapses. A timeout is a well-formed 200 envelope
// with success=false, never a transport error.
func (s *Server) handleSkillExecute(w http.ResponseWriter, r *http.Request) {
	var req skillExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, "invalid skill payload: "+err.Error())
		return
	}
	if strings.TrimSpace(req.SkillName) == "" {
		writeValidationError(w, "skill_name is required")
		return
	}
	if req.TimeoutMS <= 0 {
		req.TimeoutMS = defaultSkillTimeoutMS
	}

	timeout := time.Duration(req.TimeoutMS) * time.Millisecond
	result := s.skills.Execute(r.Context(), req.SkillName, req.Parameters, timeout)

	s.sessions.Current().RecordSkill(result.SkillName, result.Success, result.Message)
	if s.metrics != nil {
		s.metrics.WriteSkill(result.SkillName, result.Success, result.ElapsedMS)
	}

	writeJSON(w, http.StatusOK, result)
}

// handleSkillPending is the device drain poll: the entire pending set is
// returned and cleared atomically, so a command is handed out at most once.
func (s *Server) handleSkillPending(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"skills": s.skills.Drain(),
	})
}

// handleSkillResult accepts the device's outcome report and resolves the
// blocked caller. Unknown or late request ids are acknowledged with
// accepted=false.
func (s *Server) handleSkillResult(w http.ResponseWriter, r *http.Request) {
	var report skillResultReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeValidationError(w, "invalid result payload: "+err.Error())
		return
	}
	if report.RequestID == "" {
		writeValidationError(w, "request_id is required")
		return
	}

	accepted := s.skills.Report(report.RequestID, report.Success, report.Message, report.Data)
	writeJSON(w, http.StatusOK, map[string]any{
		"accepted": accepted,
	})
}

func (s *Server) handleSkillHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeValidationError(w, "limit must be an integer")
			return
		}
		limit = parsed
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history": s.skills.History(limit),
	})
}
