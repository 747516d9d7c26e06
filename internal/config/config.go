// Package config loads hourbook settings from config.yaml, HB_* environment
// variables and built-in defaults using viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the package-level viper instance.
// Priority: explicit Set > env (HB_*) > config file > defaults.
// The first config.yaml found wins: .hourbook/ walking up from cwd,
// then $XDG_CONFIG_HOME/hourbook (or ~/.config/hourbook).
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	if path := findConfigFile(); path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("HB")
	v.SetEnvKeyReplacer(newEnvReplacer())
	v.AutomaticEnv()

	setDefaults(v)

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("error reading config file: %w", err)
			}
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("json", false)
	v.SetDefault("db", "")
	v.SetDefault("actor", "")
	v.SetDefault("debug", false)
	v.SetDefault("no-daemon", false)
	v.SetDefault("backup.interval", time.Hour)
	v.SetDefault("backup.keep", 24)
	v.SetDefault("backup.dir", "")
	v.SetDefault("daemon.log", "")
	v.SetDefault("daemon.log-max-size-mb", 10)
	v.SetDefault("daemon.log-max-backups", 3)
}

func findConfigFile() string {
	if dir := os.Getenv("HOURBOOK_DIR"); dir != "" {
		p := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; {
			p := filepath.Join(dir, ".hourbook", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				return p
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		p := filepath.Join(configDir, "hourbook", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func ensure() *viper.Viper {
	if v == nil {
		v = viper.New()
		setDefaults(v)
	}
	return v
}

// ConfigFileUsed returns the path of the loaded config file, if any
func ConfigFileUsed() string {
	return ensure().ConfigFileUsed()
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	return ensure().GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	return ensure().GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	return ensure().GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	return ensure().GetDuration(key)
}

// Set overrides a configuration value
func Set(key string, value interface{}) {
	ensure().Set(key, value)
}

// AllSettings returns the merged configuration as a nested map
func AllSettings() map[string]interface{} {
	return ensure().AllSettings()
}

// Watch re-reads the config file whenever it changes and calls onChange.
// It does nothing when no config file is in use.
func Watch(onChange func(fsnotify.Event)) bool {
	cfg := ensure()
	if cfg.ConfigFileUsed() == "" {
		return false
	}
	cfg.OnConfigChange(onChange)
	cfg.WatchConfig()
	return true
}
