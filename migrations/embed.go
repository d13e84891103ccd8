// Package migrations embeds the accessory registry schema into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/hcbridge/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
