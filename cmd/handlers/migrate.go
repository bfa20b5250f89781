package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"spectra/internal/store"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: `Apply all pending database schema migrations.

Applied migrations are tracked in the schema_migrations table and new
ones run in sequential order, each inside its own transaction.

Example:
  spectra migrate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connectStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := store.NewMigrationManager(s).Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Migrations applied")
			return nil
		},
	}
}
