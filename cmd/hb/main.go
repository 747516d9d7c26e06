package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hourbook/hourbook/internal/config"
	"github.com/hourbook/hourbook/internal/debug"
	"github.com/hourbook/hourbook/internal/rpc"
	"github.com/hourbook/hourbook/internal/storage/sqlite"
	"github.com/hourbook/hourbook/internal/workspace"
)

// DaemonStatus captures daemon connection state for the current command
type DaemonStatus struct {
	Mode           string `json:"mode"` // "daemon" or "direct"
	Connected      bool   `json:"connected"`
	SocketPath     string `json:"socket_path,omitempty"`
	FallbackReason string `json:"fallback_reason,omitempty"` // "none","flag_no_daemon","connect_failed","health_failed"
	Detail         string `json:"detail,omitempty"`
}

// Fallback reason constants
const (
	FallbackNone          = "none"
	FallbackFlagNoDaemon  = "flag_no_daemon"
	FallbackConnectFailed = "connect_failed"
	FallbackHealthFailed  = "health_failed"
	cmdDaemon             = "daemon"
	statusHealthy         = "healthy"
)

var (
	dbPath       string
	actor        string
	jsonOutput   bool
	noDaemon     bool
	daemonStatus DaemonStatus

	// executor runs every storage operation, over the socket or in-process
	executor rpc.Executor
	// store is set in direct mode only
	store *sqlite.SQLiteStorage
)

// Top-level commands that open the database themselves or not at all
var noDbCommands = []string{
	cmdDaemon,
	"completion",
	"config",
	"doctor",
	"help",
	"init",
	"migrate",
	"version",
}

func init() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (default: auto-discover .hourbook/hourbook.db)")
	rootCmd.PersistentFlags().StringVar(&actor, "actor", "", "Actor name recorded with requests (default: $HB_ACTOR or $USER)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noDaemon, "no-daemon", false, "Force direct storage mode, bypass daemon if running")

	rootCmd.PersistentPreRunE = rootPersistentPreRunE

	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

var rootCmd = &cobra.Command{
	Use:           "hb",
	Short:         "hb - time tracking and invoicing",
	Long:          `Log hours against projects, bundle them into invoices, and keep the books consistent.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("hb version %s (%s)\n", Version, Build)
			return nil
		}
		return cmd.Help()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeExecutor()
	},
}

// rootPersistentPreRunE is attached to rootCmd in init to avoid an
// initialization cycle (it refers to rootCmd)
func rootPersistentPreRunE(cmd *cobra.Command, args []string) error {
	// Priority: flags > viper (config file + env vars) > defaults
	if !cmd.Flags().Changed("json") {
		jsonOutput = config.GetBool("json")
	}
	if !cmd.Flags().Changed("no-daemon") {
		noDaemon = config.GetBool("no-daemon")
	}
	if !cmd.Flags().Changed("db") && dbPath == "" {
		dbPath = config.GetString("db")
	}
	if !cmd.Flags().Changed("actor") && actor == "" {
		actor = config.GetString("actor")
	}
	if config.GetBool("debug") {
		debug.SetEnabled(true)
	}
	if actor == "" {
		if user := os.Getenv("USER"); user != "" {
			actor = user
		} else {
			actor = "unknown"
		}
	}

	if cmd == rootCmd || slices.Contains(noDbCommands, topLevel(cmd).Name()) {
		return nil
	}
	if err := resolveDBPath(); err != nil {
		return err
	}
	return openExecutor()
}

// topLevel returns the direct child of rootCmd that cmd belongs to
func topLevel(cmd *cobra.Command) *cobra.Command {
	for cmd.HasParent() && cmd.Parent() != rootCmd {
		cmd = cmd.Parent()
	}
	return cmd
}

// resolveDBPath fills dbPath from discovery when no flag or config set it
func resolveDBPath() error {
	if dbPath == "" {
		dbPath = workspace.FindDatabasePath()
	}
	if dbPath == "" {
		return fmt.Errorf("no hourbook database found\nHint: run 'hb init' to create one in the current directory\n      or set HOURBOOK_DIR / HOURBOOK_DB")
	}
	if abs, err := filepath.Abs(dbPath); err == nil {
		dbPath = abs
	}
	return nil
}

// openExecutor connects to a running daemon for dbPath, falling back to
// opening the database directly
func openExecutor() error {
	rpc.ClientVersion = Version
	socketPath := workspace.SocketPath(dbPath)
	daemonStatus = DaemonStatus{Mode: "direct", SocketPath: socketPath, FallbackReason: FallbackNone}

	if noDaemon {
		daemonStatus.FallbackReason = FallbackFlagNoDaemon
		debug.Logf("--no-daemon flag set, using direct mode")
	} else if client, err := rpc.TryConnect(socketPath); err == nil && client != nil {
		client.SetDatabasePath(dbPath)
		client.SetActor(actor)
		health, healthErr := client.Health()
		if healthErr == nil && health.Status == statusHealthy && health.Compatible {
			executor = client
			daemonStatus.Mode = cmdDaemon
			daemonStatus.Connected = true
			debug.Logf("connected to daemon at %s", socketPath)
			return nil
		}
		_ = client.Close()
		daemonStatus.FallbackReason = FallbackHealthFailed
		if healthErr != nil {
			daemonStatus.Detail = healthErr.Error()
		} else if !health.Compatible {
			daemonStatus.Detail = fmt.Sprintf("version mismatch (daemon: %s, client: %s)", health.Version, Version)
		} else {
			daemonStatus.Detail = health.Error
		}
		debug.Logf("daemon unusable: %s", daemonStatus.Detail)
	} else {
		daemonStatus.FallbackReason = FallbackConnectFailed
	}

	debug.Logf("using direct mode (reason: %s)", daemonStatus.FallbackReason)
	s, err := sqlite.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	store = s
	rpc.ServerVersion = Version
	executor = rpc.NewLocal(rpc.NewServer("", s, workspace.Dir(dbPath), dbPath), actor)
	return nil
}

func closeExecutor() {
	if executor != nil {
		_ = executor.Close()
		executor = nil
	}
	if store != nil {
		_ = store.Close()
		store = nil
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		closeExecutor()
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
		os.Exit(1)
	}
}
