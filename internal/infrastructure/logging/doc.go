// Package logging provides structured logging for the Wonderback server.
//
// It wraps Go's standard log/slog package so all components log in a
// consistent shape: level-filtered, with service and version default fields,
// in either text (terminal) or JSON (machine-parsable) format.
//
// Never log tokens or other credentials. Where a token must appear for
// debugging, log a short prefix only.
package logging
