// Package migrations embeds the journal schema into the binary so the
// observatory host needs no SQL files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/nightwatch/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
