package analysis

// Data model shared with the Android agent. JSON field names match the
// agent's serialized form exactly; the structs are deliberately permissive
// (everything optional with zero-value defaults) because agent versions in
// the field drift.

// ElementInfo describes the accessibility node behind an utterance.
type ElementInfo struct {
	Bounds             map[string]int `json:"bounds,omitempty"` // left, top, right, bottom
	ClassName          string         `json:"class_name,omitempty"`
	ContentDescription string         `json:"content_description,omitempty"`
	Text               string         `json:"text,omitempty"`
	ViewIDResourceName string         `json:"view_id_resource_name,omitempty"`
	IsClickable        bool           `json:"is_clickable,omitempty"`
	IsFocusable        bool           `json:"is_focusable,omitempty"`
	IsCheckable        bool           `json:"is_checkable,omitempty"`
	IsChecked          bool           `json:"is_checked,omitempty"`
	IsEditable         bool           `json:"is_editable,omitempty"`
	IsScrollable       bool           `json:"is_scrollable,omitempty"`
	IsEnabled          bool           `json:"is_enabled,omitempty"`
	IsSelected         bool           `json:"is_selected,omitempty"`
	StateDescription   string         `json:"state_description,omitempty"`
	RoleDescription    string         `json:"role_description,omitempty"`
	ChildCount         int            `json:"child_count,omitempty"`
	DrawingOrder       int            `json:"drawing_order,omitempty"`
}

// NavigationType is the user action that produced an utterance.
type NavigationType string

// Navigation types reported by the agent.
const (
	NavSwipeRight   NavigationType = "SWIPE_RIGHT"
	NavSwipeLeft    NavigationType = "SWIPE_LEFT"
	NavSwipeUp      NavigationType = "SWIPE_UP"
	NavSwipeDown    NavigationType = "SWIPE_DOWN"
	NavTap          NavigationType = "TAP"
	NavDoubleTap    NavigationType = "DOUBLE_TAP"
	NavLongPress    NavigationType = "LONG_PRESS"
	NavScreenChange NavigationType = "SCREEN_CHANGE"
	NavScroll       NavigationType = "SCROLL"
	NavFocusChange  NavigationType = "FOCUS_CHANGE"
	NavWindowChange NavigationType = "WINDOW_CHANGE"
	NavAnnouncement NavigationType = "ANNOUNCEMENT"
	NavKeyEvent     NavigationType = "KEY_EVENT"
	NavUnknown      NavigationType = "UNKNOWN"
)

// ScreenContext identifies the screen an utterance was captured on.
type ScreenContext struct {
	PackageName  string `json:"package_name,omitempty"`
	ActivityName string `json:"activity_name,omitempty"`
	WindowTitle  string `json:"window_title,omitempty"`
	WindowID     int    `json:"window_id,omitempty"`
	IsScrollable bool   `json:"is_scrollable,omitempty"`
}

// UtteranceEvent is a single spoken (or suppressed) screen-reader utterance.
type UtteranceEvent struct {
	Text       string         `json:"text"`
	Timestamp  int64          `json:"timestamp"`
	Element    ElementInfo    `json:"element,omitempty"`
	Navigation NavigationType `json:"navigation,omitempty"`
	Screen     ScreenContext  `json:"screen,omitempty"`
	QueueMode  int            `json:"queue_mode,omitempty"`
	Flags      int            `json:"flags,omitempty"`
}

// TriggerType is what caused an analysis request.
type TriggerType string

// Analysis triggers.
const (
	TriggerScreenChange TriggerType = "SCREEN_CHANGE"
	TriggerBufferFull   TriggerType = "BUFFER_FULL"
	TriggerManual       TriggerType = "MANUAL"
	TriggerContinuous   TriggerType = "CONTINUOUS"
	TriggerSkillRequest TriggerType = "SKILL_REQUEST"
)

// RequestContext accompanies a batch of utterances.
type RequestContext struct {
	Trigger        TriggerType `json:"trigger,omitempty"`
	PreviousScreen string      `json:"previous_screen,omitempty"`
	Timestamp      int64       `json:"timestamp,omitempty"`
}

// IssueSeverity grades how badly an issue impairs a screen reader user.
type IssueSeverity string

// Issue severities.
const (
	SeverityError      IssueSeverity = "ERROR"
	SeverityWarning    IssueSeverity = "WARNING"
	SeveritySuggestion IssueSeverity = "SUGGESTION"
)

// IssueCategory classifies the kind of accessibility problem.
type IssueCategory string

// Issue categories.
const (
	CategoryLabelQuality IssueCategory = "LABEL_QUALITY"
	CategoryStructure    IssueCategory = "STRUCTURE"
	CategoryContext      IssueCategory = "CONTEXT"
	CategoryNavigation   IssueCategory = "NAVIGATION"
)

// Issue is one accessibility problem found in an utterance sequence.
type Issue struct {
	Severity     IssueSeverity `json:"severity"`
	Category     IssueCategory `json:"category"`
	ElementIndex int           `json:"element_index"`
	Utterance    string        `json:"utterance,omitempty"`
	Issue        string        `json:"issue"`
	Explanation  string        `json:"explanation,omitempty"`
	Suggestion   string        `json:"suggestion,omitempty"`
	Timestamp    int64         `json:"timestamp,omitempty"`
}

// ResponseMetadata describes how an analysis was produced.
type ResponseMetadata struct {
	Model           string `json:"model"`
	InferenceTimeMS int64  `json:"inference_time_ms"`
	TotalUtterances int    `json:"total_utterances"`
	IssuesFound     int    `json:"issues_found"`
}

// Request is a batch of utterances to analyze.
type Request struct {
	Utterances     []UtteranceEvent `json:"utterances"`
	Context        RequestContext   `json:"context,omitempty"`
	PreviousIssues []Issue          `json:"previous_issues,omitempty"`
}

// Response is the analysis outcome.
type Response struct {
	Issues   []Issue           `json:"issues"`
	Metadata *ResponseMetadata `json:"metadata,omitempty"`
}
