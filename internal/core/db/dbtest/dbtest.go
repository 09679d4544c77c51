// Package dbtest provides migrated sqlite databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/packkeeper/internal/core/db"
)

// Open returns a migrated sqlite database in a temporary directory and its
// named queries. The database is closed when the test ends.
func Open(t testing.TB) (*sqlx.DB, *db.Queries) {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := db.MigrateUp(ctx, conn); err != nil {
		t.Fatalf("db.MigrateUp() failed: %v", err)
	}
	q, err := db.LoadQueries(conn)
	if err != nil {
		t.Fatalf("db.LoadQueries() failed: %v", err)
	}
	return conn, q
}
