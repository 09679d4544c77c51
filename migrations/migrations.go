// Package migrations embeds the sqlite and postgres schema migrations.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

// Embedded migration files bundled at compile time.
// Files are applied in filename order; both dialects carry the same IDs.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS

// ForDriver returns the migration files for a database/sql driver name,
// rooted so that the .sql files sit at the top level.
func ForDriver(driver string) (fs.FS, error) {
	switch driver {
	case "sqlite3":
		return fs.Sub(SqliteMigrations, "sqlite")
	case "postgres":
		return fs.Sub(PostgresMigrations, "postgres")
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}
