// Package migrations embeds the station store schema into the binary.
package migrations

import (
	"embed"

	"github.com/technoelf/stomata/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
