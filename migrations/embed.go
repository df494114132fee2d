// Package migrations embeds SQL migration files into the binary, so the
// server can migrate its session store without shipping loose SQL files.
package migrations

import (
	"embed"

	"github.com/mccartykim/wonderback/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files are at root of embedded FS
}
