package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetbridge-systems/fleetbridge/internal/output"
)

var commLogCmd = &cobra.Command{
	Use:   "comm-log",
	Short: "Show recent communication log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, _ := cmd.Flags().GetString("tenant")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")
		if tenantID == "" {
			return fmt.Errorf("--tenant is required")
		}

		resp, err := newAPIClient().listCommLog(tenantID, limit)
		if err != nil {
			return fmt.Errorf("failed to list communication log: %w", err)
		}
		if asJSON {
			return output.JSON(resp.Entries)
		}

		table := output.NewTable([]string{"TIMESTAMP", "DIRECTION", "EVENT TYPE", "STATUS", "ERROR"})
		for _, e := range resp.Entries {
			table.AddRow([]string{
				e.Timestamp.Format(time.RFC3339),
				string(e.Direction),
				e.EventType,
				string(e.Status),
				e.ErrorMessage,
			})
		}
		table.Render()
		output.Info("\n%d entr(ies)", resp.Count)
		return nil
	},
}

func init() {
	commLogCmd.Flags().String("tenant", "", "tenant ID")
	commLogCmd.Flags().Int("limit", 50, "maximum entries to return")
	commLogCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(commLogCmd)
}
