package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hourbook/hourbook/internal/config"
	"github.com/hourbook/hourbook/internal/rpc"
	"github.com/hourbook/hourbook/internal/storage/sqlite"
	"github.com/hourbook/hourbook/internal/workspace"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Copy the database into the backup directory",
	Long: `Write a consistent copy of the database to
<backup dir>/hourbook-backup-YYYYMMDD-HHMMSS.db and prune older copies.

The directory defaults to backup.dir from config.yaml, then the backup_dir
in .hourbook/metadata.json. A running daemon takes the backup itself.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := backupDir(cmd)
		if list, _ := cmd.Flags().GetBool("list"); list {
			backups, err := sqlite.ListBackups(dir)
			if err != nil {
				return err
			}
			return emit(backups, func() {
				if len(backups) == 0 {
					printf("No backups in %s\n", dir)
					return
				}
				for _, b := range backups {
					size := int64(0)
					if info, err := os.Stat(b); err == nil {
						size = info.Size()
					}
					printf("%s  %d bytes\n", filepath.Base(b), size)
				}
			})
		}

		keep := config.GetInt("backup.keep")
		if cmd.Flags().Changed("keep") {
			keep, _ = cmd.Flags().GetInt("keep")
		}
		var result sqlite.BackupResult
		if err := rpc.Decode(executor, rpc.OpBackup, &rpc.BackupArgs{Dir: dir, Keep: keep}, &result); err != nil {
			return err
		}
		return emit(&result, func() {
			printf("%s Backed up to %s (%d bytes)\n", checkmark(), result.Path, result.Size)
			if len(result.Pruned) > 0 {
				printf("  pruned %d old backup(s)\n", len(result.Pruned))
			}
		})
	},
}

// backupDir resolves --dir, then backup.dir, then the workspace metadata
func backupDir(cmd *cobra.Command) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		abs, err := filepath.Abs(dir)
		if err == nil {
			return abs
		}
		return dir
	}
	if dir := config.GetString("backup.dir"); dir != "" {
		return dir
	}
	return workspace.BackupDir(dbPath)
}

func init() {
	backupCmd.Flags().String("dir", "", "Backup directory")
	backupCmd.Flags().Int("keep", 0, "Number of backups to keep, 0 keeps all (default: backup.keep)")
	backupCmd.Flags().Bool("list", false, "List existing backups")
	rootCmd.AddCommand(backupCmd)
}
