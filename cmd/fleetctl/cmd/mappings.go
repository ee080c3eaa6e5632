package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fleetbridge-systems/fleetbridge/internal/output"
)

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "Driver phone mapping management",
	Long:  "List, create and deactivate driver-to-phone mappings",
}

var mappingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List driver mappings for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, _ := cmd.Flags().GetString("tenant")
		if tenantID == "" {
			return fmt.Errorf("--tenant is required")
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		resp, err := newAPIClient().listMappings(tenantID)
		if err != nil {
			return fmt.Errorf("failed to list mappings: %w", err)
		}
		if asJSON {
			return output.JSON(resp.Mappings)
		}

		table := output.NewTable([]string{"PLATFORM", "DRIVER ID", "NAME", "ADDRESS", "ACTIVE", "SOURCE", "LAST CONTACT"})
		for _, m := range resp.Mappings {
			lastContact := "-"
			if m.LastContactedAt != nil {
				lastContact = m.LastContactedAt.Format(time.RFC3339)
			}
			table.AddRow([]string{
				string(m.Platform),
				m.PlatformDriverID,
				m.DriverName,
				m.Address,
				fmt.Sprintf("%t", m.Active),
				string(m.Source),
				lastContact,
			})
		}
		table.Render()
		output.Info("\n%d mapping(s)", resp.Count)
		return nil
	},
}

var mappingsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create or update a driver mapping",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := mappingRequest{}
		req.TenantID, _ = cmd.Flags().GetString("tenant")
		req.Platform, _ = cmd.Flags().GetString("platform")
		req.PlatformDriverID, _ = cmd.Flags().GetString("driver-id")
		req.DriverName, _ = cmd.Flags().GetString("name")
		req.Address, _ = cmd.Flags().GetString("address")
		req.Language, _ = cmd.Flags().GetString("language")

		if req.TenantID == "" || req.Platform == "" || req.PlatformDriverID == "" || req.Address == "" {
			return fmt.Errorf("--tenant, --platform, --driver-id and --address are required")
		}

		mapping, err := newAPIClient().upsertMapping(req)
		if err != nil {
			return fmt.Errorf("failed to save mapping: %w", err)
		}
		output.Success("Mapping saved: %s/%s -> %s", mapping.Platform, mapping.PlatformDriverID, mapping.Address)
		return nil
	},
}

var mappingsDeactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Deactivate a driver mapping",
	Long:  "Turn a mapping off without deleting it; the communication log keeps referencing it",
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, _ := cmd.Flags().GetString("tenant")
		platform, _ := cmd.Flags().GetString("platform")
		driverID, _ := cmd.Flags().GetString("driver-id")
		if tenantID == "" || platform == "" || driverID == "" {
			return fmt.Errorf("--tenant, --platform and --driver-id are required")
		}

		mapping, err := newAPIClient().deactivateMapping(tenantID, platform, driverID)
		if err != nil {
			return fmt.Errorf("failed to deactivate mapping: %w", err)
		}
		output.Success("Mapping deactivated: %s/%s", mapping.Platform, mapping.PlatformDriverID)
		return nil
	},
}

func init() {
	mappingsListCmd.Flags().String("tenant", "", "tenant ID")
	mappingsListCmd.Flags().Bool("json", false, "output as JSON")

	mappingsAddCmd.Flags().String("tenant", "", "tenant ID")
	mappingsAddCmd.Flags().String("platform", "", "fleet platform (samsara, motive, geotab)")
	mappingsAddCmd.Flags().String("driver-id", "", "platform driver ID")
	mappingsAddCmd.Flags().String("name", "", "driver display name")
	mappingsAddCmd.Flags().String("address", "", "messaging address (phone number)")
	mappingsAddCmd.Flags().String("language", "", "preferred template language")

	mappingsDeactivateCmd.Flags().String("tenant", "", "tenant ID")
	mappingsDeactivateCmd.Flags().String("platform", "", "fleet platform")
	mappingsDeactivateCmd.Flags().String("driver-id", "", "platform driver ID")

	mappingsCmd.AddCommand(mappingsListCmd, mappingsAddCmd, mappingsDeactivateCmd)
	rootCmd.AddCommand(mappingsCmd)
}
