package main

import (
	"fmt"
	"os"

	"report_catalog/internal/config"
	"report_catalog/internal/database"
	"report_catalog/internal/di"

	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:          "migrate",
		Short:        "Create or update the report catalog database schema",
		SilenceUsage: true,
		RunE:         runMigrations,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to the configuration file (default: ./config.yaml, ./config/config.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runMigrations(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFrom(cfgPath)
	if err != nil {
		return err
	}
	logger := di.ProvideLogger(cfg)

	// Create database connection
	db, err := database.NewDatabase(cfg.DB, logger)
	if err != nil {
		return err
	}
	defer database.Close(db)

	// Run migrations
	logger.WithField("driver", cfg.DB.Driver).Info("Running database migrations")
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	logger.Info("Migrations completed successfully")
	return nil
}
