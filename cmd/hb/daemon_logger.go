package main

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hourbook/hourbook/internal/config"
)

// daemonLogger writes timestamped lines to the rotating daemon log
type daemonLogger struct {
	logFunc func(string, ...interface{})
}

func (d daemonLogger) log(format string, args ...interface{}) {
	d.logFunc(format, args...)
}

// setupDaemonLogger opens logPath through lumberjack. Size and retention come
// from daemon.log-max-size-mb and daemon.log-max-backups.
func setupDaemonLogger(logPath string) (io.Closer, daemonLogger) {
	maxSize := config.GetInt("daemon.log-max-size-mb")
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := config.GetInt("daemon.log-max-backups")
	if maxBackups < 0 {
		maxBackups = 0
	}

	logF := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     30,
		Compress:   true,
	}
	return logF, newDaemonLogger(logF)
}

func newDaemonLogger(w io.Writer) daemonLogger {
	return daemonLogger{
		logFunc: func(format string, args ...interface{}) {
			msg := fmt.Sprintf(format, args...)
			timestamp := time.Now().Format("2006-01-02 15:04:05")
			_, _ = fmt.Fprintf(w, "[%s] %s\n", timestamp, msg)
		},
	}
}
