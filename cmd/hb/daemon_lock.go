package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrDaemonLocked is returned when another daemon holds the workspace lock
var ErrDaemonLocked = errors.New("daemon lock already held by another process")

// daemonLock is an exclusive lock on .hourbook/daemon.lock, held for the
// daemon's lifetime and released by the OS if the process dies
type daemonLock struct {
	file *os.File
}

func (l *daemonLock) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = unlockFile(l.file)
	err := l.file.Close()
	l.file = nil
	return err
}

// acquireDaemonLock takes the lock without blocking and records our PID in it
func acquireDaemonLock(lockPath string) (*daemonLock, error) {
	// #nosec G304 - controlled path inside the workspace
	f, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("cannot open lock file: %w", err)
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
		_ = f.Sync()
	}
	return &daemonLock{file: f}, nil
}

// setupDaemonLock acquires the lock and writes the pid file
func setupDaemonLock(lockPath, pidFile string, log daemonLogger) (*daemonLock, error) {
	lock, err := acquireDaemonLock(lockPath)
	if err != nil {
		if errors.Is(err, ErrDaemonLocked) {
			log.log("Daemon already running (lock held), exiting")
		} else {
			log.log("Error acquiring daemon lock: %v", err)
		}
		return nil, err
	}

	myPID := os.Getpid()
	// nolint:gosec // G306: PID file is read by status checks
	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", myPID)), 0o644); err != nil {
		log.log("Error writing PID file: %v", err)
		_ = lock.Close()
		return nil, err
	}
	return lock, nil
}

// isDaemonRunning probes the lock. A held lock means a live daemon; its PID
// is read from the pid file.
func isDaemonRunning(lockPath, pidFile string) (bool, int) {
	lock, err := acquireDaemonLock(lockPath)
	if err == nil {
		_ = lock.Close()
		return false, 0
	}
	if !errors.Is(err, ErrDaemonLocked) {
		return false, 0
	}
	data, err := os.ReadFile(pidFile) // #nosec G304 - controlled path inside the workspace
	if err != nil {
		return true, 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return true, pid
}
