package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hourbook/hourbook/internal/config"
	"github.com/hourbook/hourbook/internal/rpc"
	"github.com/hourbook/hourbook/internal/workspace"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Serve the database over a local socket and take scheduled backups",
	Long: `Run a foreground daemon that owns the database for this workspace.

The daemon will:
- Serve hb commands over .hourbook/hb.sock so every client shares one writer
- Back up the database every backup.interval (default: 1h) and on shutdown
- Re-read config.yaml when it changes or on SIGHUP

Use --stop to stop a running daemon.
Use --status to check if daemon is running.
Use --health to check daemon health and metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stop, _ := cmd.Flags().GetBool("stop")
		status, _ := cmd.Flags().GetBool("status")
		health, _ := cmd.Flags().GetBool("health")
		metrics, _ := cmd.Flags().GetBool("metrics")
		logFile, _ := cmd.Flags().GetString("log")

		if err := resolveDBPath(); err != nil {
			return err
		}
		rpc.ClientVersion = Version
		rpc.ServerVersion = Version

		switch {
		case status:
			return showDaemonStatus()
		case health:
			return showDaemonHealth()
		case metrics:
			return showDaemonMetrics()
		case stop:
			return stopDaemon()
		}

		if cmd.Flags().Changed("backup-interval") {
			interval, _ := cmd.Flags().GetDuration("backup-interval")
			if interval <= 0 {
				return fmt.Errorf("backup interval must be positive (got %v)", interval)
			}
			config.Set("backup.interval", interval)
		}

		if running, pid := isDaemonRunning(workspace.LockPath(dbPath), workspace.PIDPath(dbPath)); running {
			client, err := rpc.TryConnectWithTimeout(workspace.SocketPath(dbPath), time.Second)
			if err != nil || client == nil {
				return fmt.Errorf("daemon already running (PID %d)\nUse 'hb daemon --stop' to stop it first", pid)
			}
			h, healthErr := client.Health()
			_ = client.Close()
			if healthErr != nil || h.Compatible {
				return fmt.Errorf("daemon already running (PID %d)\nUse 'hb daemon --stop' to stop it first", pid)
			}
			warn("daemon version mismatch (daemon: %s, client: %s), replacing it", h.Version, Version)
			if err := stopDaemon(); err != nil {
				return err
			}
		}

		if logFile == "" {
			logFile = config.GetString("daemon.log")
		}
		if logFile == "" {
			logFile = workspace.LogPath(dbPath)
		}
		fmt.Fprintf(os.Stderr, "Starting hb daemon for %s (backups every %v)\n", dbPath, config.GetDuration("backup.interval"))
		fmt.Fprintf(os.Stderr, "Logging to: %s\n", logFile)
		return runDaemonLoop(logFile)
	},
}

func daemonClient() (*rpc.Client, error) {
	client, err := rpc.TryConnect(workspace.SocketPath(dbPath))
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("daemon is not running\nHint: start it with 'hb daemon'")
	}
	client.SetDatabasePath(dbPath)
	client.SetActor(actor)
	return client, nil
}

func showDaemonStatus() error {
	running, pid := isDaemonRunning(workspace.LockPath(dbPath), workspace.PIDPath(dbPath))
	result := map[string]interface{}{
		"running": running,
		"pid":     pid,
		"socket":  workspace.SocketPath(dbPath),
	}
	var st rpc.StatusResponse
	if running {
		if client, err := daemonClient(); err == nil {
			defer func() { _ = client.Close() }()
			if err := rpc.Decode(client, rpc.OpStatus, nil, &st); err == nil {
				result["status"] = st
			}
		}
	}
	return emit(result, func() {
		if !running {
			printf("Daemon is not running\n")
			return
		}
		printf("Daemon is running (PID %d)\n", pid)
		if st.Version != "" {
			printf("  Version:       %s\n", st.Version)
			printf("  Database:      %s\n", st.DatabasePath)
			printf("  Socket:        %s\n", st.SocketPath)
			printf("  Uptime:        %s\n", (time.Duration(st.UptimeSeconds) * time.Second).String())
			printf("  Last activity: %s\n", st.LastActivityTime)
		}
	})
}

func showDaemonHealth() error {
	client, err := daemonClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	health, err := client.Health()
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	err = emit(health, func() {
		printf("Health Status: %s\n", statusColor(health.Status))
		printf("Version: %s (compatible: %v)\n", health.Version, health.Compatible)
		printf("Uptime: %.1f seconds\n", health.Uptime)
		printf("Schema version: %d\n", health.SchemaVersion)
		printf("DB Response Time: %.2f ms\n", health.DBResponseTime)
		printf("Connections: %d/%d\n", health.ActiveConns, health.MaxConns)
		printf("Memory: %d MB\n", health.MemoryAllocMB)
		if health.Error != "" {
			printf("Error: %s\n", health.Error)
		}
	})
	if err != nil {
		return err
	}
	if health.Status == "unhealthy" {
		return errors.New("daemon is unhealthy")
	}
	return nil
}

func showDaemonMetrics() error {
	client, err := daemonClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	metrics, err := client.Metrics()
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	return emit(metrics, func() {
		printf("Uptime: %.1f seconds\n", metrics.UptimeSeconds)
		printf("Requests: %d total, %d errors\n", metrics.TotalRequests, metrics.TotalErrors)
		printf("Active connections: %d\n\n", metrics.ActiveConns)
		for _, op := range metrics.Operations {
			printf("  %-22s %6d calls %4d errors  avg %.2fms  max %.2fms\n",
				op.Operation, op.Count, op.Errors, op.AvgLatencyMs, op.MaxLatencyMs)
		}
	})
}

// stopDaemon asks the daemon to shut down and waits for its lock to be released
func stopDaemon() error {
	running, pid := isDaemonRunning(workspace.LockPath(dbPath), workspace.PIDPath(dbPath))
	if !running {
		return emit(map[string]interface{}{"stopped": false, "reason": "not running"}, func() {
			printf("Daemon is not running\n")
		})
	}
	client, err := daemonClient()
	if err != nil {
		return fmt.Errorf("daemon (PID %d) holds the lock but is not answering: %w", pid, err)
	}
	_, err = client.Execute(rpc.OpShutdown, nil)
	_ = client.Close()
	if err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if still, _ := isDaemonRunning(workspace.LockPath(dbPath), workspace.PIDPath(dbPath)); !still {
			return emit(map[string]interface{}{"stopped": true, "pid": pid}, func() {
				printf("%s Stopped daemon (PID %d)\n", checkmark(), pid)
			})
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon (PID %d) did not exit within 10s", pid)
}

func init() {
	daemonCmd.Flags().Bool("stop", false, "Stop running daemon")
	daemonCmd.Flags().Bool("status", false, "Show daemon status")
	daemonCmd.Flags().Bool("health", false, "Check daemon health")
	daemonCmd.Flags().Bool("metrics", false, "Show detailed daemon metrics")
	daemonCmd.Flags().String("log", "", "Log file path (default: .hourbook/daemon.log)")
	daemonCmd.Flags().Duration("backup-interval", 0, "Backup interval (default: backup.interval)")
	rootCmd.AddCommand(daemonCmd)
}
