package tripline

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the storage schema for the SQL replay ledger and
// rate-limit state, with sqlite variants under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetMigrationsFS returns the embedded migration tree.
func GetMigrationsFS() fs.FS {
	return migrationsFS
}
