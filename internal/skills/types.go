package skills

import "time"

// PendingSkill is a command waiting for the device to pick up.
type PendingSkill struct {
	RequestID  string         `json:"request_id"`
	SkillName  string         `json:"skill_name"`
	Parameters map[string]any `json:"parameters"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Result is the outcome of a skill execution, as returned to the
// server-side caller and recorded in history.
//
// A timed-out or cancelled execution is still a well-formed Result with
// Success=false; callers always receive a usable envelope rather than a
// transport error.
type Result struct {
	RequestID string         `json:"request_id"`
	SkillName string         `json:"skill_name"`
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	ElapsedMS int64          `json:"elapsed_ms"`
}
