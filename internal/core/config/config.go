// Package config provides configuration management for packkeeper services.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/solatis/packkeeper/internal/rules"
)

// Config is the complete packkeeper configuration.
type Config struct {
	Engine EngineConfig
	Server ServerConfig
	Store  StoreConfig
}

// EngineConfig holds rule engine settings shared by the CLI and the server.
type EngineConfig struct {
	Columns        rules.Columns
	ListSeparator  string
	RegexCacheSize int
	DateCacheSize  int
}

// ServerConfig holds configuration for the gRPC rule engine service.
type ServerConfig struct {
	Host string
	Port int
	// MaxConcurrentStreams caps in-flight RPCs per client connection.
	MaxConcurrentStreams int
	RequestTimeout       time.Duration
	MaxRows              int
}

// StoreConfig holds rule-set store settings.
type StoreConfig struct {
	DatabaseURL string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Columns:        rules.DefaultColumns(),
			ListSeparator:  rules.DefaultListSeparator,
			RegexCacheSize: rules.DefaultRegexCacheSize,
			DateCacheSize:  rules.DefaultDateCacheSize,
		},
		Server: ServerConfig{
			Host:                 "0.0.0.0",
			Port:                 50051,
			MaxConcurrentStreams: 1000,
			RequestTimeout:       30 * time.Second,
			MaxRows:              100000,
		},
		Store: StoreConfig{
			DatabaseURL: "sqlite://./data/packkeeper.db",
		},
	}
}

// EngineOptions converts the engine section into rule engine options.
// Caches are only built when their size differs from the shared default.
func (c EngineConfig) EngineOptions() ([]rules.Option, error) {
	opts := []rules.Option{
		rules.WithColumns(c.Columns),
		rules.WithListSeparator(c.ListSeparator),
	}
	if c.RegexCacheSize != rules.DefaultRegexCacheSize {
		rc, err := rules.NewRegexCache(c.RegexCacheSize)
		if err != nil {
			return nil, fmt.Errorf("engine.regex_cache_size: %w", err)
		}
		opts = append(opts, rules.WithRegexCache(rc))
	}
	if c.DateCacheSize != rules.DefaultDateCacheSize {
		dc, err := rules.NewDateCache(c.DateCacheSize)
		if err != nil {
			return nil, fmt.Errorf("engine.date_cache_size: %w", err)
		}
		opts = append(opts, rules.WithDateCache(dc))
	}
	return opts, nil
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports PK_HMAC_SECRET (single) and PK_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are 32 hex chars (UUIDv7 without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("PK_HMAC_SECRET"); val != "" {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("PK_HMAC_SECRET: %w", err)
		}
		secrets[secretID] = decoded
	}

	// Numbered secrets keep old and new keys valid during rotation
	for i := 1; ; i++ {
		key := fmt.Sprintf("PK_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return nil, fmt.Errorf("duplicate secret_id '%s' found in environment variables (check PK_HMAC_SECRET and PK_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
	}

	return secrets, nil
}

// ParseHMACSecret decodes a base64-encoded HMAC secret.
func ParseHMACSecret(envValue string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envValue))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 lowercase hex chars.
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	id, encoded, ok := strings.Cut(strings.TrimSpace(envValue), ":")
	if !ok {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	if len(id) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = ParseHMACSecret(encoded)
	if err != nil {
		return "", nil, err
	}
	return id, secret, nil
}
