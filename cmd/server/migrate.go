package main

import (
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"version-gate/internal/storage"
	"version-gate/migrations"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version|redo]",
		Short:     "Apply the embedded database migrations",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"up", "down", "status", "version", "redo"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}

			ctx := cmd.Context()
			store, err := storage.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			db := stdlib.OpenDBFromPool(store.PgxPool())
			defer db.Close()

			goose.SetBaseFS(migrations.FS)
			if err := goose.SetDialect("postgres"); err != nil {
				return fmt.Errorf("set dialect: %w", err)
			}
			if err := goose.RunContext(ctx, command, db, "."); err != nil {
				return fmt.Errorf("migrate %s: %w", command, err)
			}
			return nil
		},
	}
}
