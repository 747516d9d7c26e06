package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hourbook/hourbook/internal/configfile"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

func resolved(t *testing.T, p string) string {
	t.Helper()
	r, err := filepath.EvalSymlinks(p)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func touch(t *testing.T, p string) {
	t.Helper()
	if err := os.WriteFile(p, nil, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestInitAndDiscovery(t *testing.T) {
	t.Setenv("HOURBOOK_DIR", "")
	t.Setenv("HOURBOOK_DB", "")
	root := resolved(t, t.TempDir())

	dir, dbPath, err := Init(root)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if dir != filepath.Join(root, DirName) {
		t.Errorf("dir = %s", dir)
	}
	if dbPath != filepath.Join(dir, CanonicalDatabaseName) {
		t.Errorf("dbPath = %s", dbPath)
	}
	if cfg, err := configfile.Load(dir); err != nil || cfg == nil {
		t.Fatalf("metadata.json not written: %v", err)
	}

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatal(err)
	}
	chdir(t, nested)

	if got := FindDir(); got != dir {
		t.Errorf("FindDir() = %q, want %q", got, dir)
	}
	if got := FindDatabasePath(); got != "" {
		t.Errorf("FindDatabasePath() before db exists = %q", got)
	}
	touch(t, dbPath)
	if got := FindDatabasePath(); got != dbPath {
		t.Errorf("FindDatabasePath() = %q, want %q", got, dbPath)
	}
}

func TestInitKeepsMetadata(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, DirName)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := (&configfile.Config{Database: "books.db"}).Save(dir); err != nil {
		t.Fatal(err)
	}
	_, dbPath, err := Init(root)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if filepath.Base(dbPath) != "books.db" {
		t.Errorf("dbPath = %s, want books.db", dbPath)
	}
}

func TestEnvOverrides(t *testing.T) {
	root := resolved(t, t.TempDir())
	dir := filepath.Join(root, "custom")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(dir, CanonicalDatabaseName))

	t.Setenv("HOURBOOK_DB", "")
	t.Setenv("HOURBOOK_DIR", dir)
	if got := FindDatabasePath(); got != filepath.Join(dir, CanonicalDatabaseName) {
		t.Errorf("with HOURBOOK_DIR: %q", got)
	}

	explicit := filepath.Join(root, "elsewhere.db")
	t.Setenv("HOURBOOK_DB", explicit)
	if got := FindDatabasePath(); got != explicit {
		t.Errorf("with HOURBOOK_DB: %q, want %q", got, explicit)
	}
}

func TestDaemonPaths(t *testing.T) {
	dbPath := filepath.Join("/w", DirName, "hourbook.db")
	for name, got := range map[string]string{
		"socket": SocketPath(dbPath),
		"lock":   LockPath(dbPath),
		"pid":    PIDPath(dbPath),
		"log":    LogPath(dbPath),
	} {
		if filepath.Dir(got) != filepath.Join("/w", DirName) {
			t.Errorf("%s path %q not in workspace dir", name, got)
		}
	}
	if got := BackupDir(dbPath); got != filepath.Join("/w", DirName, "backups") {
		t.Errorf("BackupDir = %q", got)
	}
}
