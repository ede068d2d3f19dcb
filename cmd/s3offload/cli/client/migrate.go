package client

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	config "github.com/mwantia/s3offload/internal/config/server"
	"github.com/mwantia/s3offload/pkg/db/migrations"
	"github.com/mwantia/s3offload/pkg/db/store"
)

func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or roll back metadata migrations",
	}

	cmd.AddCommand(newMigrateStatusCommand())
	cmd.AddCommand(newMigrateRollbackCommand())

	return cmd
}

// withMigrator opens the store without applying pending migrations.
func withMigrator(cmd *cobra.Command, fn func(ctx context.Context, m *migrations.Migrator) error) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}

	st, err := store.NewSQLiteStore(store.SQLiteConfig{
		Path:     cfg.Metadata.SQLite.Path,
		LogLevel: store.ParseLogLevel(cfg.Metadata.LogLevel),
	})
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if err := st.Connect(ctx); err != nil {
		return err
	}
	return fn(ctx, migrations.NewMigrator(st.DB()))
}

func newMigrateStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(ctx context.Context, m *migrations.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tAPPLIED\tDESCRIPTION")
				for _, s := range statuses {
					fmt.Fprintf(w, "%d\t%t\t%s\n", s.Version, s.Applied, s.Description)
				}
				return w.Flush()
			})
		},
	}
}

func newMigrateRollbackCommand() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Revert the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refusing to roll back without --yes")
			}

			return withMigrator(cmd, func(ctx context.Context, m *migrations.Migrator) error {
				status, err := m.Rollback(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back migration %d (%s)\n", status.Version, status.Description)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "confirm the rollback")

	return cmd
}
