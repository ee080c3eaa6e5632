// Package cmd implements the fleetctl commands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiToken  string
)

var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "FleetBridge operations CLI",
	Long: `fleetctl is the command-line interface for the FleetBridge relay engine.

Manage driver phone mappings, mint API tokens, inject test vendor events,
inspect the communication log and check service health from your terminal.`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("FLEETBRIDGE_SERVER", "http://localhost:8085"), "base URL of the fleetbridge server")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("FLEETBRIDGE_TOKEN"), "bearer token for the internal API")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
