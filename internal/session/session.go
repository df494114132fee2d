package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mccartykim/wonderback/internal/analysis"
)

// Event is a single entry in the session timeline.
type Event struct {
	Timestamp float64        `json:"timestamp"`
	EventType string         `json:"event_type"` // utterance | analysis | skill | note
	Data      map[string]any `json:"data"`
}

// Summary holds aggregate statistics for a session.
type Summary struct {
	SessionID        string         `json:"session_id"`
	StartedAt        string         `json:"started_at"`
	DurationSeconds  int            `json:"duration_seconds"`
	TotalUtterances  int            `json:"total_utterances"`
	TotalAnalyses    int            `json:"total_analyses"`
	TotalIssues      int            `json:"total_issues"`
	IssuesBySeverity map[string]int `json:"issues_by_severity"`
	IssuesByCategory map[string]int `json:"issues_by_category"`
	ScreensVisited   []string       `json:"screens_visited"`
}

// Session records utterances, analysis results, skill executions and notes
// for one testing run. Methods are safe for concurrent use; HTTP handlers
// append from multiple goroutines.
type Session struct {
	mu        sync.Mutex
	id        string
	startedAt time.Time
	events    []Event
	issues    []analysis.Issue
	screens   map[string]struct{}
}

// New creates a session. An empty id derives one from the current time,
// matching the filenames produced by Save.
func New(id string) *Session {
	if id == "" {
		id = time.Now().Format("20060102_150405")
	}
	return &Session{
		id:        id,
		startedAt: time.Now(),
		screens:   make(map[string]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// RecordUtterances appends each utterance in the batch to the timeline and
// tracks which screens were visited.
func (s *Session) RecordUtterances(req *analysis.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range req.Utterances {
		data := map[string]any{
			"text":       u.Text,
			"timestamp":  u.Timestamp,
			"navigation": string(u.Navigation),
		}
		s.events = append(s.events, Event{
			Timestamp: unixSeconds(time.Now()),
			EventType: "utterance",
			Data:      data,
		})
		screen := u.Screen.PackageName + "/" + u.Screen.ActivityName
		if screen != "/" {
			s.screens[screen] = struct{}{}
		}
	}
}

// RecordAnalysis appends an analysis event and accumulates its issues.
func (s *Session) RecordAnalysis(req *analysis.Request, resp *analysis.Response) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := map[string]any{
		"utterance_count": len(req.Utterances),
		"issue_count":     len(resp.Issues),
	}
	if resp.Metadata != nil {
		data["metadata"] = map[string]any{
			"model":             resp.Metadata.Model,
			"inference_time_ms": resp.Metadata.InferenceTimeMS,
		}
	}
	s.events = append(s.events, Event{
		Timestamp: unixSeconds(time.Now()),
		EventType: "analysis",
		Data:      data,
	})
	s.issues = append(s.issues, resp.Issues...)
}

// RecordSkill appends a skill execution outcome to the timeline.
func (s *Session) RecordSkill(skillName string, success bool, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, Event{
		Timestamp: unixSeconds(time.Now()),
		EventType: "skill",
		Data: map[string]any{
			"skill_name": skillName,
			"success":    success,
			"message":    message,
		},
	})
}

// AddNote appends a manual tester note to the timeline.
func (s *Session) AddNote(note string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, Event{
		Timestamp: unixSeconds(time.Now()),
		EventType: "note",
		Data:      map[string]any{"text": note},
	})
}

// Summary computes aggregate statistics from the timeline so far.
func (s *Session) Summary() *Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() *Summary {
	bySeverity := make(map[string]int)
	byCategory := make(map[string]int)
	for _, issue := range s.issues {
		bySeverity[string(issue.Severity)]++
		byCategory[string(issue.Category)]++
	}

	utterances := 0
	analyses := 0
	for _, e := range s.events {
		switch e.EventType {
		case "utterance":
			utterances++
		case "analysis":
			analyses++
		}
	}

	screens := make([]string, 0, len(s.screens))
	for screen := range s.screens {
		screens = append(screens, screen)
	}
	sort.Strings(screens)

	return &Summary{
		SessionID:        s.id,
		StartedAt:        s.startedAt.Format(time.RFC3339),
		DurationSeconds:  int(time.Since(s.startedAt).Seconds()),
		TotalUtterances:  utterances,
		TotalAnalyses:    analyses,
		TotalIssues:      len(s.issues),
		IssuesBySeverity: bySeverity,
		IssuesByCategory: byCategory,
		ScreensVisited:   screens,
	}
}

// export is the full serialized form of a session.
type export struct {
	Session *Summary         `json:"session"`
	Issues  []analysis.Issue `json:"issues"`
	Events  []Event          `json:"events"`
}

// ExportJSON serializes the full session (summary, issues, timeline).
func (s *Session) ExportJSON() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issues := s.issues
	if issues == nil {
		issues = []analysis.Issue{}
	}
	events := s.events
	if events == nil {
		events = []Event{}
	}

	b, err := json.MarshalIndent(export{
		Session: s.summaryLocked(),
		Issues:  issues,
		Events:  events,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("session: encoding export: %w", err)
	}
	return b, nil
}

// severityIcons decorate the markdown export; unknown severities get a
// neutral marker.
var severityIcons = map[string]string{
	"ERROR":      "🔴",
	"WARNING":    "🟡",
	"SUGGESTION": "🔵",
}

// ExportMarkdown renders the session as a report suitable for pasting into
// an issue tracker.
func (s *Session) ExportMarkdown() string {
	s.mu.Lock()
	summary := s.summaryLocked()
	issues := make([]analysis.Issue, len(s.issues))
	copy(issues, s.issues)
	s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "# Accessibility Audit: %s\n\n", summary.SessionID)
	fmt.Fprintf(&b, "**Date:** %s\n", summary.StartedAt)
	fmt.Fprintf(&b, "**Duration:** %ds\n", summary.DurationSeconds)
	fmt.Fprintf(&b, "**Utterances:** %d\n", summary.TotalUtterances)
	fmt.Fprintf(&b, "**Issues Found:** %d\n\n", summary.TotalIssues)

	if len(summary.ScreensVisited) > 0 {
		b.WriteString("## Screens Visited\n")
		for _, screen := range summary.ScreensVisited {
			fmt.Fprintf(&b, "- `%s`\n", screen)
		}
		b.WriteString("\n")
	}

	if len(summary.IssuesBySeverity) > 0 {
		b.WriteString("## Issue Summary\n\n")
		b.WriteString("| Severity | Count |\n")
		b.WriteString("|----------|-------|\n")
		severities := make([]string, 0, len(summary.IssuesBySeverity))
		for sev := range summary.IssuesBySeverity {
			severities = append(severities, sev)
		}
		sort.Strings(severities)
		for _, sev := range severities {
			fmt.Fprintf(&b, "| %s | %d |\n", sev, summary.IssuesBySeverity[sev])
		}
		b.WriteString("\n")
	}

	if len(issues) > 0 {
		b.WriteString("## Issues\n\n")
		for i, issue := range issues {
			icon := severityIcons[string(issue.Severity)]
			if icon == "" {
				icon = "⚪"
			}
			fmt.Fprintf(&b, "### %s %d. %s\n\n", icon, i+1, issue.Issue)
			fmt.Fprintf(&b, "**Severity:** %s | **Category:** %s\n", issue.Severity, issue.Category)
			if issue.Utterance != "" {
				fmt.Fprintf(&b, "**Utterance:** `%s`\n", issue.Utterance)
			}
			if issue.Explanation != "" {
				fmt.Fprintf(&b, "\n%s\n", issue.Explanation)
			}
			if issue.Suggestion != "" {
				fmt.Fprintf(&b, "\n**Suggestion:** %s\n", issue.Suggestion)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
