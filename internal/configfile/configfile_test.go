package configfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Database != "hourbook.db" {
		t.Errorf("Database = %q, want hourbook.db", cfg.Database)
	}
	if cfg.BackupDir != "backups" {
		t.Errorf("BackupDir = %q, want backups", cfg.BackupDir)
	}
}

func TestLoadSaveRoundtrip(t *testing.T) {
	hbDir := filepath.Join(t.TempDir(), ".hourbook")
	if err := os.MkdirAll(hbDir, 0750); err != nil {
		t.Fatalf("failed to create .hourbook directory: %v", err)
	}

	cfg := &Config{Database: "books.db", BackupDir: "/var/backups/hourbook"}
	if err := cfg.Save(hbDir); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load(hbDir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() returned error for nonexistent config: %v", err)
	}
	if cfg != nil {
		t.Errorf("Load() = %v, want nil for nonexistent config", cfg)
	}
}

func TestLoadFillsDatabase(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(ConfigPath(dir), []byte(`{"backup_dir":"snap"}`), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Database != "hourbook.db" {
		t.Errorf("Database = %q, want default", cfg.Database)
	}
}

func TestLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(ConfigPath(dir), []byte(`{`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestPaths(t *testing.T) {
	hbDir := "/home/user/project/.hourbook"

	tests := []struct {
		name       string
		cfg        Config
		wantDB     string
		wantBackup string
	}{
		{"defaults", Config{Database: "hourbook.db"}, filepath.Join(hbDir, "hourbook.db"), filepath.Join(hbDir, "backups")},
		{"relative backup", Config{Database: "x.db", BackupDir: "snap"}, filepath.Join(hbDir, "x.db"), filepath.Join(hbDir, "snap")},
		{"absolute", Config{Database: "/data/h.db", BackupDir: "/mnt/bk"}, "/data/h.db", "/mnt/bk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.DatabasePath(hbDir); got != tt.wantDB {
				t.Errorf("DatabasePath() = %q, want %q", got, tt.wantDB)
			}
			if got := tt.cfg.BackupPath(hbDir); got != tt.wantBackup {
				t.Errorf("BackupPath() = %q, want %q", got, tt.wantBackup)
			}
		})
	}
}
