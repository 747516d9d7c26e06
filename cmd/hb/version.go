package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hourbook/hourbook/internal/rpc"
	"github.com/hourbook/hourbook/internal/workspace"
)

var (
	// Version is the current version of hb (overridden by ldflags at build time)
	Version = "0.4.0"
	// Build can be set via ldflags at compile time
	Build = "dev"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if checkDaemon, _ := cmd.Flags().GetBool("daemon"); checkDaemon {
			return showDaemonVersion()
		}
		return emit(map[string]string{"version": Version, "build": Build}, func() {
			printf("hb version %s (%s)\n", Version, Build)
		})
	},
}

func showDaemonVersion() error {
	// PersistentPreRun skips version, so resolve the database here
	if err := resolveDBPath(); err != nil {
		return err
	}
	rpc.ClientVersion = Version
	client, err := rpc.TryConnect(workspace.SocketPath(dbPath))
	if err != nil || client == nil {
		return fmt.Errorf("daemon is not running\nHint: start it with 'hb daemon'")
	}
	defer func() { _ = client.Close() }()

	health, err := client.Health()
	if err != nil {
		return fmt.Errorf("failed to check daemon health: %w", err)
	}
	err = emit(map[string]interface{}{
		"daemon_version": health.Version,
		"client_version": Version,
		"compatible":     health.Compatible,
		"daemon_uptime":  health.Uptime,
	}, func() {
		printf("Daemon version: %s\n", health.Version)
		printf("Client version: %s\n", Version)
		if health.Compatible {
			printf("Compatibility: ✓ compatible\n")
		} else {
			printf("Compatibility: ✗ incompatible (restart daemon recommended)\n")
		}
		printf("Daemon uptime: %.1f seconds\n", health.Uptime)
	})
	if err != nil {
		return err
	}
	if !health.Compatible {
		return fmt.Errorf("daemon version %s is incompatible with client %s", health.Version, Version)
	}
	return nil
}

func init() {
	versionCmd.Flags().Bool("daemon", false, "Check daemon version and compatibility")
	rootCmd.AddCommand(versionCmd)
}
