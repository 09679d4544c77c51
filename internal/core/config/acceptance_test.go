package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "packkeeper.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestConfigSources checks how file, environment and flags combine.
func TestConfigSources(t *testing.T) {
	t.Run("config file with hmac_secret rejected", func(t *testing.T) {
		path := writeConfig(t, `server:
  host: "localhost"
  port: 8080
  hmac_secret: "should_be_rejected"
`)
		_, err := LoadConfig(path)
		if err == nil {
			t.Fatal("expected error for secret in config file")
		}
		if err.Error() != "HMAC secrets not allowed in config files (use PK_HMAC_SECRET environment variable)" {
			t.Fatalf("wrong error message: %v", err)
		}
	})

	t.Run("secret in environment does not trip the file check", func(t *testing.T) {
		t.Setenv("PK_HMAC_SECRET", testSecretID+":"+testSecret)
		if _, err := LoadConfig(""); err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
	})

	t.Run("file values applied", func(t *testing.T) {
		path := writeConfig(t, `engine:
  list_separator: "|"
  columns:
    note: Notiz
    order: Bestellnummer
store:
  db_url: postgres://localhost/packkeeper
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Engine.Columns.Note != "Notiz" || cfg.Engine.Columns.Order != "Bestellnummer" {
			t.Errorf("columns not read from file: %+v", cfg.Engine.Columns)
		}
		if cfg.Engine.Columns.SKU != "SKU" {
			t.Errorf("expected default sku column, got %s", cfg.Engine.Columns.SKU)
		}
		if cfg.Engine.ListSeparator != "|" {
			t.Errorf("expected list separator |, got %q", cfg.Engine.ListSeparator)
		}
		if cfg.Store.DatabaseURL != "postgres://localhost/packkeeper" {
			t.Errorf("unexpected db url %s", cfg.Store.DatabaseURL)
		}
	})

	t.Run("environment overrides config file", func(t *testing.T) {
		t.Setenv("PK_SERVER_PORT", "8080")
		path := writeConfig(t, "server:\n  port: 9090\n")

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Server.Port != 8080 {
			t.Fatalf("environment should override config file: expected 8080, got %d", cfg.Server.Port)
		}
	})

	t.Run("flag overrides environment", func(t *testing.T) {
		t.Setenv("PK_STORE_DB_URL", "sqlite://env.db")
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.String("db-url", "", "")
		if err := fs.Parse([]string{"--db-url", "sqlite://flag.db"}); err != nil {
			t.Fatal(err)
		}
		v := viper.New()
		if err := v.BindPFlag("store.db_url", fs.Lookup("db-url")); err != nil {
			t.Fatal(err)
		}

		cfg, err := LoadConfigWith(v, "")
		if err != nil {
			t.Fatalf("LoadConfigWith failed: %v", err)
		}
		if cfg.Store.DatabaseURL != "sqlite://flag.db" {
			t.Errorf("flag should override environment, got %s", cfg.Store.DatabaseURL)
		}
	})
}
