// Package session records testing sessions for later review and export.
//
// A Session is a timeline of utterances, analysis results, skill executions
// and tester notes. The Manager owns the current session; ended sessions are
// summarized into history and, when a repository is configured, persisted
// with their full JSON export. Markdown export produces a report suitable
// for filing tickets.
package session
