package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// CanonicalizePath returns an absolute, symlink-resolved form of path.
// "~" is expanded to the home directory. Resolution failures fall back to the
// cleaned absolute path.
func CanonicalizePath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
