package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/solatis/packkeeper/internal/core/config"
	"github.com/solatis/packkeeper/internal/core/db"
	"github.com/solatis/packkeeper/internal/core/rulestore"
	"github.com/solatis/packkeeper/internal/logging"
	"github.com/solatis/packkeeper/internal/rules"
)

// Version is the packkeeper release.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "packkeeper",
	Short:         "PackKeeper order line-item rule engine",
	Long:          `PackKeeper applies fulfillment rules (tags, statuses, copied and calculated fields, added packaging) to order line-item datasets.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logging.Init(level, logFormat, cmd.ErrOrStderr())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// loadConfig reads configuration with --db-url taking precedence over
// PK_STORE_DB_URL, the config file and the default.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	if err := v.BindPFlag("store.db_url", cmd.Flags().Lookup("db-url")); err != nil {
		return nil, fmt.Errorf("failed to bind --db-url: %w", err)
	}
	cfg, err := config.LoadConfigWith(v, configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newEngine builds a rule engine from the engine config section.
func newEngine(cfg *config.Config) (*rules.Engine, error) {
	opts, err := cfg.Engine.EngineOptions()
	if err != nil {
		return nil, err
	}
	return rules.NewEngine(opts...), nil
}

// openDatabase opens the configured database and checks that migrations ran.
func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, *db.Queries, error) {
	database, err := db.Open(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'packkeeper migrate' first", s.ID)
		}
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, queries, nil
}

// accountByFlag resolves --account to a stored account.
func accountByFlag(ctx context.Context, store *rulestore.Store, cmd *cobra.Command) (rulestore.Account, error) {
	name, _ := cmd.Flags().GetString("account")
	if name == "" {
		return rulestore.Account{}, fmt.Errorf("--account required")
	}
	return store.AccountByName(ctx, name)
}
