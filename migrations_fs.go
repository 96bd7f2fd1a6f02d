package authority

import (
	"embed"
	"io/fs"
)

// Postgres migrations live at data/sql/migrations; the sqlite variants
// mirror them under the sqlite subdirectory with the same filenames.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

// GetCoreMigrationsFS returns the embedded authority schema migration tree.
// The migrations package resolves per-dialect views of it.
func GetCoreMigrationsFS() fs.FS {
	return migrationsFS
}
