// Package debug prints diagnostics to stderr when HB_DEBUG is set or the
// debug config key is enabled.
package debug

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("HB_DEBUG") != "")
}

// Enabled reports whether debug output is on
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled turns debug output on or off
func SetEnabled(on bool) {
	enabled.Store(on)
}

// Logf writes a debug line to stderr
func Logf(format string, args ...interface{}) {
	if !enabled.Load() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(os.Stderr, "debug: "+msg)
}
