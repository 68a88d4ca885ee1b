package migrations

import (
	"embed"
)

// MySQL lacks ON CONFLICT and partial DDL guards so it keeps its own set
// under mysql/.
//
//go:embed *.sql mysql/*.sql
var embedMigrations embed.FS

func GetMigrations() embed.FS {
	return embedMigrations
}
