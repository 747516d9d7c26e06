package config

import "strings"

// backup.interval -> HB_BACKUP_INTERVAL, no-daemon -> HB_NO_DAEMON
func newEnvReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_", "-", "_")
}
