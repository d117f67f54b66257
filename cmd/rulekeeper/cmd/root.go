package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pathwaylegal/rulekeeper/internal/core/config"
	"github.com/pathwaylegal/rulekeeper/internal/core/db"
	"github.com/pathwaylegal/rulekeeper/internal/store"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "rulekeeper",
	Short: "Rulekeeper eligibility rules engine",
	Long:  `Rulekeeper stores versioned eligibility requirements per policy subject and evaluates applicant facts against the currently effective version.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json)")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads the configuration and applies flag overrides, flags
// winning over environment and file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// openStore opens the database and builds the store over it. The caller
// closes the returned connection.
func openStore(cfg *config.Config, logger *slog.Logger) (*sqlx.DB, *store.Store, error) {
	database, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	st, err := store.New(database,
		store.WithLogger(logger),
		store.WithCache(store.NewMemoryVersionCache(cfg.CacheTTL)))
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, st, nil
}
