package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/JonMunkholm/orderingest/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// defaultSQLitePath is used when neither --db nor DATABASE_URL is set.
const defaultSQLitePath = "orders.db"

func newRootCmd() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:          "orderingest",
		Short:        "CSV order ingestion pipeline",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading configuration (empty to skip)")

	root.AddCommand(
		newIngestCmd(),
		newServeCmd(),
	)
	return root
}

// loadEnvFile overlays path onto the process environment. A missing file is
// not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Overload(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Debug("no env file found, using environment variables", "path", path)
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	slog.Debug("loaded env file", "path", path)
	return nil
}

// loadConfig reads configuration after applying command-line overrides for
// the database. Without any database setting it falls back to a local
// SQLite file.
func loadConfig(dbURL, driver string) (*config.Config, error) {
	if dbURL != "" {
		os.Setenv("DATABASE_URL", dbURL)
	}
	if driver != "" {
		os.Setenv("DB_DRIVER", driver)
	}
	if os.Getenv("DATABASE_URL") == "" && os.Getenv("DB_URL") == "" {
		os.Setenv("DATABASE_URL", defaultSQLitePath)
	}
	return config.Load()
}
