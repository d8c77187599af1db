package main

import (
	"errors"
	"fmt"

	"github.com/dhawalhost/sociallogin/internal/audit"
	"github.com/dhawalhost/sociallogin/pkg/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the audit tables in the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cfg.Database.DSN == "" {
				return errors.New("database.dsn is not set")
			}
			db, err := database.NewConnection(cmd.Context(), database.Config{DSN: cfg.Database.DSN})
			if err != nil {
				return err
			}
			defer db.Close()

			if err := audit.NewStore(db).EnsureSchema(cmd.Context()); err != nil {
				return fmt.Errorf("ensure audit schema: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "audit schema is up to date")
			return err
		},
	}
}
