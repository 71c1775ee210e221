package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/songzhibin97/mailregistry/internal/registry/store/postgres"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withPostgres(cmd, opts, func(repo *postgres.Repository) error {
					if err := repo.Migrate(); err != nil {
						return err
					}
					return printVersion(cmd, repo)
				})
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Revert migrations, one step by default",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("invalid step count: %s", args[0])
					}
					steps = n
				}
				return withPostgres(cmd, opts, func(repo *postgres.Repository) error {
					if err := repo.MigrateDown(steps); err != nil {
						return err
					}
					return printVersion(cmd, repo)
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withPostgres(cmd, opts, func(repo *postgres.Repository) error {
					return printVersion(cmd, repo)
				})
			},
		},
	)
	return cmd
}

func withPostgres(cmd *cobra.Command, opts *rootOptions, fn func(repo *postgres.Repository) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	if cfg.Database.Type != "postgres" {
		return fmt.Errorf("migrations require database type postgres, got %s", cfg.Database.Type)
	}

	repo, err := postgres.NewRepository(cmd.Context(), &postgres.Config{
		DSN:             cfg.Database.Postgres.DSN,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer repo.Close()

	return fn(repo)
}

func printVersion(cmd *cobra.Command, repo *postgres.Repository) error {
	version, dirty, err := repo.MigrationVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
	return nil
}
