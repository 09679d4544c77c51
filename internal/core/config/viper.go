package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/solatis/packkeeper/internal/rules"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	return LoadConfigWith(viper.New(), configPath)
}

// LoadConfigWith loads configuration into v, which may already carry bound
// command-line flags.
func LoadConfigWith(v *viper.Viper, configPath string) (*Config, error) {
	d := DefaultConfig()

	v.SetDefault("engine.list_separator", d.Engine.ListSeparator)
	v.SetDefault("engine.regex_cache_size", d.Engine.RegexCacheSize)
	v.SetDefault("engine.date_cache_size", d.Engine.DateCacheSize)
	for key, name := range columnKeys(d.Engine.Columns) {
		v.SetDefault("engine.columns."+key, name)
	}
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.max_concurrent_streams", d.Server.MaxConcurrentStreams)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.max_rows", d.Server.MaxRows)
	v.SetDefault("store.db_url", d.Store.DatabaseURL)

	// Bind environment variables with PK_ prefix
	v.SetEnvPrefix("PK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	var cols rules.Columns
	for key := range columnKeys(d.Engine.Columns) {
		setColumn(&cols, key, v.GetString("engine.columns."+key))
	}

	cfg := &Config{
		Engine: EngineConfig{
			Columns:        cols,
			ListSeparator:  v.GetString("engine.list_separator"),
			RegexCacheSize: v.GetInt("engine.regex_cache_size"),
			DateCacheSize:  v.GetInt("engine.date_cache_size"),
		},
		Server: ServerConfig{
			Host:                 v.GetString("server.host"),
			Port:                 v.GetInt("server.port"),
			MaxConcurrentStreams: v.GetInt("server.max_concurrent_streams"),
			RequestTimeout:       v.GetDuration("server.request_timeout"),
			MaxRows:              v.GetInt("server.max_rows"),
		},
		Store: StoreConfig{
			DatabaseURL: v.GetString("store.db_url"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// columnKeys maps each engine.columns key to its name in c.
func columnKeys(c rules.Columns) map[string]string {
	return map[string]string{
		"order":             c.Order,
		"sku":               c.SKU,
		"product_name":      c.ProductName,
		"quantity":          c.Quantity,
		"stock":             c.Stock,
		"final_stock":       c.FinalStock,
		"note":              c.Note,
		"status":            c.Status,
		"internal_tags":     c.InternalTags,
		"rule_generated":    c.RuleGenerated,
		"volumetric_weight": c.VolumetricWeight,
		"no_packaging":      c.NoPackaging,
		"min_box":           c.MinBox,
	}
}

func setColumn(c *rules.Columns, key, name string) {
	switch key {
	case "order":
		c.Order = name
	case "sku":
		c.SKU = name
	case "product_name":
		c.ProductName = name
	case "quantity":
		c.Quantity = name
	case "stock":
		c.Stock = name
	case "final_stock":
		c.FinalStock = name
	case "note":
		c.Note = name
	case "status":
		c.Status = name
	case "internal_tags":
		c.InternalTags = name
	case "rule_generated":
		c.RuleGenerated = name
	case "volumetric_weight":
		c.VolumetricWeight = name
	case "no_packaging":
		c.NoPackaging = name
	case "min_box":
		c.MinBox = name
	}
}

// validateConfig checks port range and positive limits.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConcurrentStreams <= 0 {
		return fmt.Errorf("max_concurrent_streams must be positive, got %d", cfg.Server.MaxConcurrentStreams)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.MaxRows <= 0 {
		return fmt.Errorf("max_rows must be positive, got %d", cfg.Server.MaxRows)
	}
	if cfg.Engine.RegexCacheSize <= 0 || cfg.Engine.DateCacheSize <= 0 {
		return fmt.Errorf("cache sizes must be positive, got regex=%d date=%d", cfg.Engine.RegexCacheSize, cfg.Engine.DateCacheSize)
	}
	if strings.TrimSpace(cfg.Engine.ListSeparator) == "" {
		return fmt.Errorf("list_separator must not be blank")
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets (12-factor principle).
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use PK_HMAC_SECRET environment variable)")
	}
	return nil
}
