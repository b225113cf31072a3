package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aura-interview/backend/pkg/database"
)

var migrateStatusOnly bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded database schema",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateStatusOnly, "status", false, "Print the current schema version without migrating")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := openEnv(ctx, false)
	if err != nil {
		return err
	}
	defer e.close()

	if !migrateStatusOnly {
		if err := database.Migrate(ctx, e.pool, e.logger); err != nil {
			return err
		}
	}
	v, err := database.MigrationVersion(ctx, e.pool, e.logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", v)
	return nil
}
