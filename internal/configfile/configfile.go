// Package configfile reads and writes the per-workspace metadata.json.
package configfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const ConfigFileName = "metadata.json"

// DefaultBackupDir is relative to the workspace directory
const DefaultBackupDir = "backups"

type Config struct {
	Database  string `json:"database"`
	BackupDir string `json:"backup_dir,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Database:  "hourbook.db",
		BackupDir: DefaultBackupDir,
	}
}

func ConfigPath(hbDir string) string {
	return filepath.Join(hbDir, ConfigFileName)
}

// Load reads metadata.json from hbDir. A missing file yields nil, nil.
func Load(hbDir string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(hbDir)) // #nosec G304 - controlled path from config
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Database == "" {
		cfg.Database = DefaultConfig().Database
	}
	return &cfg, nil
}

func (c *Config) Save(hbDir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(ConfigPath(hbDir), data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) DatabasePath(hbDir string) string {
	if filepath.IsAbs(c.Database) {
		return c.Database
	}
	return filepath.Join(hbDir, c.Database)
}

// BackupPath resolves the backup directory; relative paths are under hbDir
func (c *Config) BackupPath(hbDir string) string {
	dir := c.BackupDir
	if dir == "" {
		dir = DefaultBackupDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(hbDir, dir)
}
