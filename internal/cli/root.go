// Package cli implements reportctl, the operator command line for the report catalog.
package cli

import (
	"context"
	"fmt"
	"time"

	"report_catalog/internal/catalog"
	"report_catalog/internal/catalog/local"
	"report_catalog/internal/config"
	"report_catalog/internal/di"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// Env is what the commands work on.
type Env struct {
	Catalog *catalog.Aggregator
	Local   *local.Source
}

// Opener builds an Env for a command run. The returned function releases it.
type Opener func(ctx context.Context, configPath string) (*Env, func(), error)

// NewRootCommand builds the reportctl command tree.
func NewRootCommand(open Opener) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "reportctl",
		Short:         "Inspect and maintain the report catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to the configuration file (default: ./config.yaml, ./config/config.yaml)")

	run := func(fn func(cmd *cobra.Command, args []string, env *Env) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			env, release, err := open(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			defer release()
			return fn(cmd, args, env)
		}
	}

	root.AddCommand(
		newSourcesCommand(run),
		newListCommand(run),
		newShowCommand(run),
		newTemplateCommand(run),
		newCatalogCommand(run),
		newRegisterCommand(run),
	)
	return root
}

type runner func(fn func(cmd *cobra.Command, args []string, env *Env) error) func(*cobra.Command, []string) error

// OpenFromConfig loads configuration and builds the catalog with the same
// wiring as the server, minus HTTP.
func OpenFromConfig(ctx context.Context, configPath string) (*Env, func(), error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, nil, err
	}

	var env Env
	app := fx.New(
		fx.Supply(cfg),
		di.CatalogModule,
		fx.Populate(&env.Catalog, &env.Local),
		fx.NopLogger,
	)

	startCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return nil, nil, fmt.Errorf("initialize catalog: %w", err)
	}

	release := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = app.Stop(stopCtx)
	}
	return &env, release, nil
}
