// Package migrations locates the SQL migrations for the Tripline webhook
// ledger and rate-limit state tables.
package migrations

import (
	"fmt"
	"io/fs"
	"strings"

	tripline "github.com/goliatone/go-tripline"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	rootDir = "data/sql/migrations"
)

// Dialects lists every dialect with a migration directory.
var Dialects = []string{DialectPostgres, DialectSQLite}

// ForDialect returns the migration directory for dialect. Postgres files
// live at data/sql/migrations and sqlite files in its sqlite subdirectory.
// A nil source reads the embedded tree.
//
// Every *.up.sql file must have a matching *.down.sql file.
func ForDialect(dialect string, source fs.FS) (fs.FS, error) {
	if source == nil {
		source = tripline.GetMigrationsFS()
	}
	dir := rootDir
	switch strings.TrimSpace(strings.ToLower(dialect)) {
	case DialectPostgres:
	case DialectSQLite:
		dir += "/" + DialectSQLite
	default:
		return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}

	fsys, err := fs.Sub(source, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", dir, err)
	}
	if err := checkPairs(fsys); err != nil {
		return nil, fmt.Errorf("migrations: %s: %w", dir, err)
	}
	return fsys, nil
}

func checkPairs(fsys fs.FS) error {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return err
	}
	if len(ups) == 0 {
		return fmt.Errorf("no *.up.sql files")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(fsys, down); err != nil {
			return fmt.Errorf("%s has no %s", up, down)
		}
	}
	return nil
}
