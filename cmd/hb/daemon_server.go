package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hourbook/hourbook/internal/backup"
	"github.com/hourbook/hourbook/internal/config"
	"github.com/hourbook/hourbook/internal/rpc"
	"github.com/hourbook/hourbook/internal/storage"
	"github.com/hourbook/hourbook/internal/storage/sqlite"
	"github.com/hourbook/hourbook/internal/workspace"
)

// runDaemonLoop owns the database until a signal, a shutdown request or a
// server failure ends it
func runDaemonLoop(logPath string) (err error) {
	logF, log := setupDaemonLogger(logPath)
	defer func() { _ = logF.Close() }()

	pidFile := workspace.PIDPath(dbPath)
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 4096)
			stackSize := runtime.Stack(stackBuf, false)
			log.log("PANIC: daemon crashed: %v", r)
			log.log("Stack trace:\n%s", stackBuf[:stackSize])

			errFile := filepath.Join(workspace.Dir(dbPath), "daemon-error")
			crashReport := fmt.Sprintf("Daemon crashed at %s\n\nPanic: %v\n\nStack trace:\n%s\n",
				time.Now().Format(time.RFC3339), r, stackBuf[:stackSize])
			// nolint:gosec // G306: Error file needs to be readable for debugging
			if werr := os.WriteFile(errFile, []byte(crashReport), 0o644); werr != nil {
				log.log("Warning: could not write crash report: %v", werr)
			}
			_ = os.Remove(pidFile)
			err = fmt.Errorf("daemon crashed: %v", r)
		}
	}()

	lock, err := setupDaemonLock(workspace.LockPath(dbPath), pidFile, log)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Close() }()
	defer func() { _ = os.Remove(pidFile) }()

	log.log("Daemon started (PID %d, version %s)", os.Getpid(), Version)

	errFile := filepath.Join(workspace.Dir(dbPath), "daemon-error")
	if err := os.Remove(errFile); err != nil && !os.IsNotExist(err) {
		log.log("Warning: could not remove daemon-error file: %v", err)
	}

	s, err := sqlite.New(dbPath)
	if err != nil {
		log.log("Error: cannot open database: %v", err)
		return fmt.Errorf("cannot open database: %w", err)
	}
	defer func() { _ = s.Close() }()
	log.log("Database opened: %s", dbPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server, serverErrChan, err := startRPCServer(ctx, workspace.SocketPath(dbPath), s, workspace.Dir(dbPath), dbPath, log)
	if err != nil {
		return err
	}

	dir := config.GetString("backup.dir")
	if dir == "" {
		dir = workspace.BackupDir(dbPath)
	}
	scheduler := backup.NewScheduler(s, dir, config.GetInt("backup.keep"), config.GetDuration("backup.interval"))
	backupDone := make(chan struct{})
	go func() {
		defer close(backupDone)
		scheduler.Run(ctx)
	}()
	log.log("Backups every %v into %s (keep %d)", scheduler.Interval(), dir, config.GetInt("backup.keep"))

	reload := func(reason string) {
		applyBackupInterval(scheduler, log, reason)
	}
	if config.Watch(func(e fsnotify.Event) { reload("config change: " + e.Name) }) {
		log.log("Watching %s for changes", config.ConfigFileUsed())
	}

	runEventLoop(ctx, cancel, server, serverErrChan, reload, log)

	// The scheduler takes its final backup before the store closes
	<-backupDone
	if last, lastErr := scheduler.Last(); lastErr != nil {
		log.log("Final backup failed: %v", lastErr)
	} else if last != nil {
		log.log("Last backup: %s", last.Path)
	}
	if err := s.CheckpointWAL(context.Background()); err != nil {
		log.log("Warning: WAL checkpoint failed: %v", err)
	}
	log.log("Daemon stopped")
	return nil
}

// applyBackupInterval pushes a changed backup.interval into the running scheduler
func applyBackupInterval(scheduler *backup.Scheduler, log daemonLogger, reason string) {
	interval := config.GetDuration("backup.interval")
	if interval == scheduler.Interval() {
		return
	}
	if err := scheduler.SetInterval(interval); err != nil {
		log.log("Ignoring backup.interval %v (%s): %v", interval, reason, err)
		return
	}
	log.log("Backup interval now %v (%s)", interval, reason)
}

func startRPCServer(ctx context.Context, socketPath string, store storage.Storage, workspacePath string, dbPath string, log daemonLogger) (*rpc.Server, chan error, error) {
	// Sync daemon version with CLI version
	rpc.ServerVersion = Version

	server := rpc.NewServer(socketPath, store, workspacePath, dbPath)
	serverErrChan := make(chan error, 1)

	go func() {
		log.log("Starting RPC server: %s", socketPath)
		if err := server.Start(ctx); err != nil {
			log.log("RPC server error: %v", err)
			serverErrChan <- err
		}
	}()

	ready := time.NewTicker(10 * time.Millisecond)
	defer ready.Stop()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case err := <-serverErrChan:
			log.log("RPC server failed to start: %v", err)
			return nil, nil, err
		case <-ready.C:
			if _, err := os.Stat(socketPath); err == nil {
				log.log("RPC server ready (socket listening)")
				return server, serverErrChan, nil
			}
		case <-timeout:
			log.log("WARNING: Server didn't signal ready after 5 seconds (may still be starting)")
			return server, serverErrChan, nil
		}
	}
}

func runEventLoop(ctx context.Context, cancel context.CancelFunc, server *rpc.Server, serverErrChan chan error, reload func(string), log daemonLogger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, daemonSignals...)
	defer signal.Stop(sigChan)

	for {
		select {
		case sig := <-sigChan:
			if isReloadSignal(sig) {
				log.log("Received reload signal, re-reading config")
				if err := config.Initialize(); err != nil {
					log.log("Error reloading config: %v", err)
					continue
				}
				reload("signal")
				continue
			}
			log.log("Received signal %v, shutting down gracefully...", sig)
			cancel()
			if err := server.Stop(); err != nil {
				log.log("Error stopping RPC server: %v", err)
			}
			return
		case <-server.Done():
			log.log("Shutdown requested, stopping")
			cancel()
			_ = server.Stop()
			return
		case <-ctx.Done():
			log.log("Context canceled, shutting down")
			if err := server.Stop(); err != nil {
				log.log("Error stopping RPC server: %v", err)
			}
			return
		case err := <-serverErrChan:
			log.log("RPC server failed: %v", err)
			cancel()
			if err := server.Stop(); err != nil {
				log.log("Error stopping RPC server: %v", err)
			}
			return
		}
	}
}
