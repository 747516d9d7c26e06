package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hourbook/hourbook/internal/configfile"
	"github.com/hourbook/hourbook/internal/storage/sqlite"
	"github.com/hourbook/hourbook/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize an hourbook workspace",
	Long: `Create a .hourbook/ directory with metadata.json and a migrated database.

Running init again on an existing workspace is safe: the database is opened
and any pending migrations are applied.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		quiet, _ := cmd.Flags().GetBool("quiet")

		dir, path, err := workspace.Init(root)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("backup-dir") {
			backupDir, _ := cmd.Flags().GetString("backup-dir")
			cfg, err := configfile.Load(dir)
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = configfile.DefaultConfig()
			}
			cfg.BackupDir = backupDir
			if err := cfg.Save(dir); err != nil {
				return err
			}
		}

		s, err := sqlite.New(path)
		if err != nil {
			return fmt.Errorf("failed to create database: %w", err)
		}
		defer func() { _ = s.Close() }()

		status, err := s.MigrationStatus(context.Background())
		if err != nil {
			return err
		}

		result := map[string]interface{}{
			"workspace":      dir,
			"database":       path,
			"schema_version": status.CurrentVersion,
		}
		if jsonOutput {
			return outputJSON(result)
		}
		if !quiet {
			green := color.New(color.FgGreen).SprintFunc()
			cyan := color.New(color.FgCyan).SprintFunc()
			printf("\n%s hourbook initialized\n\n", green("✓"))
			printf("  Database: %s\n", cyan(path))
			printf("  Schema:   version %d\n\n", status.CurrentVersion)
			printf("Run %s to create your first project.\n\n", cyan("hb project create <name> --rate <amount>"))
		}
		if _, err := os.Stat(workspace.SocketPath(path)); err == nil {
			warn("a daemon socket exists for this workspace; restart the daemon to pick up schema changes")
		}
		return nil
	},
}

func init() {
	initCmd.Flags().BoolP("quiet", "q", false, "Suppress output")
	initCmd.Flags().String("backup-dir", "", "Backup directory, relative to .hourbook/ unless absolute")
	rootCmd.AddCommand(initCmd)
}
