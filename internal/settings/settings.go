package settings

import (
	"sync"
	"time"
)

// Trigger modes for device-side analysis.
const (
	TriggerScreenChange = "SCREEN_CHANGE"
	TriggerBufferFull   = "BUFFER_FULL"
	TriggerManual       = "MANUAL"
	TriggerContinuous   = "CONTINUOUS"
)

// Severity filter levels, least to most restrictive.
const (
	SeveritySuggestion = "SUGGESTION"
	SeverityWarning    = "WARNING"
	SeverityError      = "ERROR"
)

// Settings is the configuration snapshot shared by all devices. The device
// polls it periodically and applies changes locally; this lets the server
// and dashboard steer device behaviour without a push channel.
//
// Revision and LastModified are derived fields maintained by the Manager.
// Writes to them through Update are silently ignored.
type Settings struct {
	// TTSSuppressed captures utterances without speaking them aloud.
	TTSSuppressed bool `json:"tts_suppressed"`

	// GestureInjectionEnabled allows programmatic gesture dispatch.
	GestureInjectionEnabled bool `json:"gesture_injection_enabled"`

	// TriggerMode controls when the device requests analysis.
	TriggerMode string `json:"trigger_mode"`

	// BufferSize is the utterance count before auto-analysis.
	BufferSize int `json:"buffer_size"`

	// SeverityFilter is the minimum severity shown in notifications.
	SeverityFilter string `json:"severity_filter"`

	// ShowNotifications displays on-device notifications for issues.
	ShowNotifications bool `json:"show_notifications"`

	// CaptureFullMetadata includes full element metadata with utterances.
	CaptureFullMetadata bool `json:"capture_full_metadata"`

	// DebugLogging enables verbose logging on the device.
	DebugLogging bool `json:"debug_logging"`

	// Revision increments by exactly 1 on any observable change.
	Revision int64 `json:"revision"`

	// LastModified is when the last observable change happened.
	LastModified time.Time `json:"last_modified"`
}

// Logger is the logging interface used by the Manager.
type Logger interface {
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}

// Manager owns the settings blob and its change tracking.
//
// All methods are thread-safe. There is one blob for all devices; per-device
// settings are out of scope for a single-operator testing tool.
type Manager struct {
	mu       sync.RWMutex
	settings Settings
	logger   Logger
}

// NewManager creates a Manager with default settings at revision 0.
func NewManager() *Manager {
	return &Manager{
		settings: Settings{
			TriggerMode:         TriggerScreenChange,
			BufferSize:          20,
			SeverityFilter:      SeveritySuggestion,
			ShowNotifications:   true,
			CaptureFullMetadata: true,
		},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Current returns the live settings snapshot.
func (m *Manager) Current() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Update applies changes to recognized, non-derived fields.
//
// Unknown keys and the derived revision/last_modified fields are silently
// ignored. The revision bumps by exactly 1 if at least one field actually
// changed value, regardless of how many fields the call touched; a no-op
// update leaves the revision alone so polling devices see no false
// "changed" signal.
//
// Values arrive as decoded JSON, so numbers are float64.
func (m *Manager) Update(changes map[string]any) Settings {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := false
	for key, value := range changes {
		if m.applyField(key, value) {
			m.logger.Info("setting changed", "key", key, "value", value)
			changed = true
		}
	}

	if changed {
		m.settings.Revision++
		m.settings.LastModified = time.Now().UTC()
	}

	return m.settings
}

// GetIfNewer returns the settings only if the server revision strictly
// exceeds clientRevision; otherwise nil, which the transport layer maps
// to a cheap not-modified response.
func (m *Manager) GetIfNewer(clientRevision int64) *Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.settings.Revision > clientRevision {
		s := m.settings
		return &s
	}
	return nil
}

// applyField sets a single recognized field, reporting whether the value
// actually changed.
func (m *Manager) applyField(key string, value any) bool {
	s := &m.settings
	switch key {
	case "tts_suppressed":
		return setBool(&s.TTSSuppressed, value)
	case "gesture_injection_enabled":
		return setBool(&s.GestureInjectionEnabled, value)
	case "trigger_mode":
		return setString(&s.TriggerMode, value)
	case "buffer_size":
		return setInt(&s.BufferSize, value)
	case "severity_filter":
		return setString(&s.SeverityFilter, value)
	case "show_notifications":
		return setBool(&s.ShowNotifications, value)
	case "capture_full_metadata":
		return setBool(&s.CaptureFullMetadata, value)
	case "debug_logging":
		return setBool(&s.DebugLogging, value)
	default:
		// Unknown keys and derived fields (revision, last_modified) are ignored.
		return false
	}
}

func setBool(dst *bool, value any) bool {
	v, ok := value.(bool)
	if !ok || *dst == v {
		return false
	}
	*dst = v
	return true
}

func setString(dst *string, value any) bool {
	v, ok := value.(string)
	if !ok || *dst == v {
		return false
	}
	*dst = v
	return true
}

func setInt(dst *int, value any) bool {
	var v int
	switch n := value.(type) {
	case float64: // encoding/json decodes numbers as float64
		v = int(n)
	case int:
		v = n
	default:
		return false
	}
	if *dst == v {
		return false
	}
	*dst = v
	return true
}
