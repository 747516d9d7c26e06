package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hourbook/hourbook/internal/storage/sqlite"
	"github.com/hourbook/hourbook/internal/storage/sqlite/migrations"
	"github.com/hourbook/hourbook/internal/workspace"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema up to date",
	Long: `Apply pending schema migrations.

Every command migrates the database on open; this command does it explicitly
and reports what ran. --status and --dry-run open the database read-only and
change nothing. A database written by a newer hb is refused.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetBool("status")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if err := resolveDBPath(); err != nil {
			return err
		}
		ctx := context.Background()

		plan, err := sqlite.InspectMigrations(ctx, dbPath)
		if err != nil {
			if errors.Is(err, migrations.ErrUnknownSchemaVersion) {
				return fmt.Errorf("%w\nHint: this database was written by a newer hb; upgrade hb", err)
			}
			return err
		}
		if status || dryRun {
			return emit(plan, func() { printPlan(plan, dryRun) })
		}

		if len(plan.Pending) == 0 {
			return emit(map[string]interface{}{
				"status":  "current",
				"version": plan.LedgerVersion,
			}, func() {
				printf("%s Database is current (schema version %d)\n", checkmark(), plan.LedgerVersion)
			})
		}

		if _, err := os.Stat(workspace.SocketPath(dbPath)); err == nil {
			warn("a daemon may be serving this database; restart it after migrating")
		}

		s, err := sqlite.New(dbPath)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		defer func() { _ = s.Close() }()

		after, err := s.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		return emit(map[string]interface{}{
			"status":       "migrated",
			"from_version": plan.LedgerVersion,
			"to_version":   after.CurrentVersion,
			"applied":      plan.Pending,
		}, func() {
			for _, m := range plan.Pending {
				printf("  %s %03d %s\n", checkmark(), m.Version, m.Name)
			}
			printf("%s Migrated schema from version %d to %d\n", checkmark(), plan.LedgerVersion, after.CurrentVersion)
		})
	},
}

func printPlan(plan *sqlite.MigrationPlan, dryRun bool) {
	printf("Database: %s\n", plan.Path)
	printf("Schema version: %d (latest %d)\n", plan.LedgerVersion, plan.LatestVersion)
	if len(plan.Pending) == 0 {
		printf("%s\n", color.GreenString("✓ No pending migrations"))
		return
	}
	verb := "Pending"
	if dryRun {
		verb = "Would apply"
	}
	printf("%s\n", color.YellowString("%s %d migration(s):", verb, len(plan.Pending)))
	for _, m := range plan.Pending {
		printf("  %03d %s\n", m.Version, m.Name)
	}
}

func init() {
	migrateCmd.Flags().Bool("status", false, "Show the schema version and pending migrations")
	migrateCmd.Flags().Bool("dry-run", false, "List the migrations that would run without applying them")
	rootCmd.AddCommand(migrateCmd)
}
