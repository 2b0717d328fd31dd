package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/folio-sh/folio/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Version: version,
	Use:     "folio",
	Short:   "E-book library backend",
	Long: `Folio is a small e-book library backend: accounts with bearer-token
sessions, PDF/EPUB uploads into an S3-compatible object store, and
time-limited retrieval URLs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// init writes the config file, so nothing to load yet.
		if cmd.Name() == "init" {
			setupLogging("info")
			return nil
		}

		var configFiles []string
		if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
			configFiles = append(configFiles, configFile)
		}

		cfg, err := config.Load(configFiles, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		setupLogging(cfg.Log.Level)
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().String("db-type", "", "database type: sqlite, postgres (default: sqlite, env: FOLIO_DATABASE_TYPE)")
	rootCmd.PersistentFlags().String("db-dsn", "", "database connection string (default: folio.db, env: FOLIO_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("admin-email", "", "email granted the admin role at signup (env: FOLIO_AUTH_ADMIN_EMAIL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
