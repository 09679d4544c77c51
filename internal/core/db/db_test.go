package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		url        string
		wantDriver string
		wantSource string
		wantErr    bool
	}{
		{"sqlite://data/pk.db", "sqlite3", "file:data/pk.db?" + sqliteParams, false},
		{"sqlite:///var/lib/pk.db", "sqlite3", "file:/var/lib/pk.db?" + sqliteParams, false},
		{"postgres://u:p@localhost:5432/pk?sslmode=disable", "postgres", "postgres://u:p@localhost:5432/pk?sslmode=disable", false},
		{"postgresql://localhost/pk", "postgres", "postgresql://localhost/pk", false},
		{"mysql://localhost/pk", "", "", true},
		{"sqlite://", "", "", true},
		{"://bad", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			driver, source, err := parseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if driver != tt.wantDriver || source != tt.wantSource {
				t.Errorf("parseURL() = (%q, %q), want (%q, %q)", driver, source, tt.wantDriver, tt.wantSource)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	sql := `-- header; with a semicolon
CREATE TABLE a (id TEXT);

  -- indented comment
CREATE INDEX idx_a ON a (id);
`
	got := splitStatements(sql)
	want := []string{"CREATE TABLE a (id TEXT)", "CREATE INDEX idx_a ON a (id)"}
	if len(got) != len(want) {
		t.Fatalf("splitStatements() = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitStatements()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMigrateUp(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(ctx, "sqlite://"+path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}

	applied, err := MigrateUp(ctx, db)
	if err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	if len(applied) != 2 || applied[0] != "001_initial_schema.sql" {
		t.Errorf("MigrateUp() applied %v, want both embedded migrations in order", applied)
	}

	again, err := MigrateUp(ctx, db)
	if err != nil {
		t.Fatalf("second MigrateUp() failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second MigrateUp() applied %v, want none", again)
	}

	for _, table := range []string{"accounts", "api_keys", "rule_sets", "runs"} {
		var name string
		err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after migration: %v", table, err)
		}
	}

	statuses, err := MigrateStatus(ctx, db)
	if err != nil {
		t.Fatalf("MigrateStatus() failed: %v", err)
	}
	for _, s := range statuses {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("migration %s: applied=%v appliedAt=%v, want applied with timestamp", s.ID, s.Applied, s.AppliedAt)
		}
		if s.AppliedAt != nil && time.Since(*s.AppliedAt) > time.Hour {
			t.Errorf("migration %s: implausible applied_at %v", s.ID, s.AppliedAt)
		}
	}
}

func TestMigrateUp_ChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if _, err := MigrateUp(ctx, db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	if _, err := db.ExecContext(ctx, "UPDATE migrations SET checksum = 'tampered' WHERE migration_id = '001_initial_schema.sql'"); err != nil {
		t.Fatal(err)
	}
	if _, err := MigrateUp(ctx, db); err == nil {
		t.Error("MigrateUp() succeeded with a tampered checksum, want error")
	}
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()
	if _, err := MigrateUp(ctx, db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	q, err := LoadQueries(db)
	if err != nil {
		t.Fatalf("LoadQueries() failed: %v", err)
	}

	now := time.Now().UTC()
	if _, err := q.Exec(ctx, "insert-account", "acc-1", "acme", now); err != nil {
		t.Fatalf("Exec(insert-account) failed: %v", err)
	}

	var acct struct {
		ID        string    `db:"account_id"`
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
	}
	if err := q.Get(ctx, "get-account-by-name", &acct, "acme"); err != nil {
		t.Fatalf("Get(get-account-by-name) failed: %v", err)
	}
	if acct.ID != "acc-1" {
		t.Errorf("account id = %s, want acc-1", acct.ID)
	}

	if _, err := q.Exec(ctx, "no-such-query"); err == nil {
		t.Error("Exec(no-such-query) succeeded, want error")
	}

	t.Run("transaction rollback", func(t *testing.T) {
		boom := errors.New("boom")
		err := q.InTx(ctx, func(tx *Queries) error {
			if _, err := tx.Exec(ctx, "insert-account", "acc-2", "globex", now); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("InTx() error = %v, want %v", err, boom)
		}
		if err := q.Get(ctx, "get-account-by-name", &acct, "globex"); !errors.Is(err, sql.ErrNoRows) {
			t.Errorf("Get(rolled back account) error = %v, want sql.ErrNoRows", err)
		}
	})

	t.Run("transaction commit", func(t *testing.T) {
		err := q.InTx(ctx, func(tx *Queries) error {
			_, err := tx.Exec(ctx, "insert-account", "acc-3", "initech", now)
			return err
		})
		if err != nil {
			t.Fatalf("InTx() failed: %v", err)
		}
		if err := q.Get(ctx, "get-account-by-name", &acct, "initech"); err != nil {
			t.Errorf("committed account not visible: %v", err)
		}
	})
}
