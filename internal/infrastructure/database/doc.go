// Package database provides the SQLite connection and schema migrations
// backing session persistence.
//
// Migrations are embedded into the binary by the top-level migrations
// package and applied at startup, each in its own transaction.
package database
