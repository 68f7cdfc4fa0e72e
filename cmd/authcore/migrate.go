package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/spintune/authcore/store/pgstore"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Postgres.DSN == "" {
				return errors.New("postgres DSN is required (postgres.dsn or AUTHCORE_POSTGRES_DSN)")
			}

			ctx := cmd.Context()
			db, err := pgstore.Open(ctx, pgstore.Config{DSN: cfg.Postgres.DSN})
			if err != nil {
				return err
			}
			defer db.Close()

			if err := pgstore.Migrate(ctx, db); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
}
