package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// SQLiteRepository stores ended sessions in the sessions table. The full
// export is kept as a JSON blob; the summary columns exist so history
// queries don't need to decode every export.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a session repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save upserts a session. Re-saving the same session ID replaces the
// previous row, so ending a resumed session is safe.
func (r *SQLiteRepository) Save(ctx context.Context, summary *Summary, exportJSON []byte) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshalling session summary: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, duration_seconds, total_utterances, total_issues, summary, export)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   duration_seconds = excluded.duration_seconds,
		   total_utterances = excluded.total_utterances,
		   total_issues = excluded.total_issues,
		   summary = excluded.summary,
		   export = excluded.export`,
		summary.SessionID, summary.StartedAt,
		summary.DurationSeconds, summary.TotalUtterances, summary.TotalIssues,
		string(summaryJSON), string(exportJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// List returns session summaries, oldest first.
func (r *SQLiteRepository) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT summary FROM sessions ORDER BY started_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var summaryJSON string
		if err := rows.Scan(&summaryJSON); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		var s Summary
		if err := json.Unmarshal([]byte(summaryJSON), &s); err != nil {
			return nil, fmt.Errorf("decoding session summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	if summaries == nil {
		summaries = []Summary{}
	}
	return summaries, nil
}

// Export returns the full JSON export for one session, or sql.ErrNoRows if
// the session was never persisted.
func (r *SQLiteRepository) Export(ctx context.Context, sessionID string) ([]byte, error) {
	var exportJSON string
	err := r.db.QueryRowContext(ctx,
		`SELECT export FROM sessions WHERE id = ?`, sessionID).Scan(&exportJSON)
	if err != nil {
		return nil, fmt.Errorf("querying session export: %w", err)
	}
	return []byte(exportJSON), nil
}
