package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hourbook/hourbook/internal/config"
	"github.com/hourbook/hourbook/internal/rpc"
	"github.com/hourbook/hourbook/internal/storage/sqlite"
	"github.com/hourbook/hourbook/internal/types"
	"github.com/hourbook/hourbook/internal/workspace"
)

func TestDaemonLock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "daemon.lock")
	pidPath := filepath.Join(dir, "daemon.pid")

	if running, _ := isDaemonRunning(lockPath, pidPath); running {
		t.Fatal("no daemon should be running yet")
	}

	lock, err := setupDaemonLock(lockPath, pidPath, newDaemonLogger(&bytes.Buffer{}))
	if err != nil {
		t.Fatalf("setupDaemonLock failed: %v", err)
	}

	if _, err := acquireDaemonLock(lockPath); !errors.Is(err, ErrDaemonLocked) {
		t.Errorf("second acquire: got %v, want ErrDaemonLocked", err)
	}
	running, pid := isDaemonRunning(lockPath, pidPath)
	if !running || pid != os.Getpid() {
		t.Errorf("isDaemonRunning = %v, %d; want true, %d", running, pid, os.Getpid())
	}

	if err := lock.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if running, _ := isDaemonRunning(lockPath, pidPath); running {
		t.Error("lock should be released after Close")
	}
}

func TestDaemonLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newDaemonLogger(&buf)
	log.log("opened %s", "hourbook.db")

	line := buf.String()
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "] opened hourbook.db\n") {
		t.Errorf("unexpected log line %q", line)
	}
}

func TestSetupDaemonLoggerRotates(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "daemon.log")
	closer, log := setupDaemonLogger(logPath)
	log.log("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file = %q", data)
	}
}

func TestDaemonServesAndBacksUpOnShutdown(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping daemon test in short mode")
	}
	inProcessMutex.Lock()
	defer inProcessMutex.Unlock()

	// Short temp path; unix socket paths are limited to ~104 bytes on macOS
	root, err := os.MkdirTemp("", "hb-daemon-*")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.RemoveAll(root) }()

	_, path, err := workspace.Init(root)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	s, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("sqlite.New failed: %v", err)
	}
	_ = s.Close()

	oldDB := dbPath
	dbPath = path
	defer func() { dbPath = oldDB }()
	config.Set("backup.interval", time.Hour)

	done := make(chan error, 1)
	go func() { done <- runDaemonLoop(workspace.LogPath(path)) }()

	socketPath := workspace.SocketPath(path)
	var client *rpc.Client
	for i := 0; i < 100 && client == nil; i++ {
		client, _ = rpc.TryConnect(socketPath)
		if client == nil {
			time.Sleep(50 * time.Millisecond)
		}
	}
	if client == nil {
		t.Fatal("daemon did not start listening")
	}
	client.SetDatabasePath(path)

	var p types.Project
	if err := rpc.Decode(client, rpc.OpCreateProject, &types.Project{Name: "Daemon"}, &p); err != nil {
		t.Fatalf("create_project over socket failed: %v", err)
	}

	if running, pid := isDaemonRunning(workspace.LockPath(path), workspace.PIDPath(path)); !running || pid != os.Getpid() {
		t.Errorf("isDaemonRunning = %v, %d", running, pid)
	}

	if _, err := client.Execute(rpc.OpShutdown, nil); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	_ = client.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("daemon exited with error: %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("daemon did not exit after shutdown")
	}

	backups, err := sqlite.ListBackups(workspace.BackupDir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 1 {
		t.Errorf("expected the shutdown backup, found %v", backups)
	}
	if _, err := os.Stat(workspace.PIDPath(path)); !os.IsNotExist(err) {
		t.Error("pid file should be removed on exit")
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("socket should be removed on exit")
	}
}
