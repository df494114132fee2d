package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Logger is the logging interface used by the manager.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Repository persists ended sessions. Implementations live alongside the
// storage layer; the manager treats persistence as best effort.
type Repository interface {
	Save(ctx context.Context, summary *Summary, exportJSON []byte) error
	List(ctx context.Context, limit int) ([]Summary, error)
}

const dirPermissions = 0750
const filePermissions = 0600

// Manager tracks the current session and keeps summaries of ended ones.
type Manager struct {
	mu        sync.Mutex
	current   *Session
	history   []Summary
	exportDir string
	repo      Repository
	logger    Logger
}

// NewManager creates a manager. repo may be nil when persistence is
// disabled; exportDir is where Save writes session JSON files.
func NewManager(exportDir string, repo Repository, logger Logger) *Manager {
	return &Manager{
		exportDir: exportDir,
		repo:      repo,
		logger:    logger,
	}
}

// Current returns the active session, starting one lazily if needed.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		m.current = New("")
		m.logger.Info("started new session", "session_id", m.current.ID())
	}
	return m.current
}

// StartNew begins a fresh session, archiving the current one if present.
// An empty id derives one from the current time.
func (m *Manager) StartNew(ctx context.Context, id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.archiveLocked(ctx, m.current)
	}
	m.current = New(id)
	m.logger.Info("started session", "session_id", m.current.ID())
	return m.current
}

// EndCurrent closes the active session and returns its summary, or nil if
// no session is active.
func (m *Manager) EndCurrent(ctx context.Context) *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	summary := m.archiveLocked(ctx, m.current)
	m.current = nil
	return summary
}

// archiveLocked records the session summary in history and persists the
// full export if a repository is configured. Caller holds m.mu.
func (m *Manager) archiveLocked(ctx context.Context, s *Session) *Summary {
	summary := s.Summary()
	m.history = append(m.history, *summary)

	if m.repo != nil {
		exportJSON, err := s.ExportJSON()
		if err != nil {
			m.logger.Error("exporting session for persistence", "session_id", s.ID(), "error", err)
			return summary
		}
		if err := m.repo.Save(ctx, summary, exportJSON); err != nil {
			m.logger.Error("persisting session", "session_id", s.ID(), "error", err)
		}
	}
	return summary
}

// History returns summaries of ended sessions, oldest first. When a
// repository is configured it is the source of truth; otherwise the
// in-memory list is returned.
func (m *Manager) History(ctx context.Context, limit int) ([]Summary, error) {
	if m.repo != nil {
		return m.repo.List(ctx, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	history := make([]Summary, len(m.history))
	copy(history, m.history)
	return history, nil
}

// Save writes the active session's JSON export to the export directory and
// returns the file path.
func (m *Manager) Save(s *Session) (string, error) {
	exportJSON, err := s.ExportJSON()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(m.exportDir, dirPermissions); err != nil {
		return "", fmt.Errorf("session: creating export directory: %w", err)
	}

	path := filepath.Join(m.exportDir, s.ID()+".json")
	if err := os.WriteFile(path, exportJSON, filePermissions); err != nil {
		return "", fmt.Errorf("session: writing export: %w", err)
	}

	m.logger.Info("session saved", "path", path)
	return path, nil
}
