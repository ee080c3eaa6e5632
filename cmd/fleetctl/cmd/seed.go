package cmd

import (
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"

	"github.com/fleetbridge-systems/fleetbridge/internal/output"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed fake driver mappings",
	Long: `Generate realistic driver phone mappings for testing and development.

Examples:
  # Seed 20 samsara drivers for tenant acme
  fleetctl seed --tenant acme --platform samsara --count 20

  # Reproducible run
  fleetctl seed --tenant acme --platform motive --count 5 --rand-seed 42`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	platform, _ := cmd.Flags().GetString("platform")
	count, _ := cmd.Flags().GetInt("count")
	seed, _ := cmd.Flags().GetInt64("rand-seed")

	if tenantID == "" {
		return fmt.Errorf("--tenant is required")
	}
	if count <= 0 {
		return fmt.Errorf("--count must be positive")
	}
	if seed != 0 {
		gofakeit.Seed(seed)
	}

	client := newAPIClient()
	created := 0
	for i := 0; i < count; i++ {
		req := mappingRequest{
			TenantID:         tenantID,
			Platform:         platform,
			PlatformDriverID: gofakeit.UUID(),
			DriverName:       gofakeit.Name(),
			Address:          "+1" + gofakeit.Numerify("##########"),
			Language:         gofakeit.RandomString([]string{"en", "en", "en", "es"}),
		}
		mapping, err := client.upsertMapping(req)
		if err != nil {
			output.Error("Failed to create mapping %d: %v", i+1, err)
			continue
		}
		created++
		output.Info("  %s -> %s (%s)", mapping.DriverName, mapping.Address, mapping.Language)
	}

	output.Success("Seeded %d/%d mapping(s) for tenant %s", created, count, tenantID)
	return nil
}

func init() {
	seedCmd.Flags().String("tenant", "", "tenant ID")
	seedCmd.Flags().String("platform", "samsara", "fleet platform for the seeded drivers")
	seedCmd.Flags().Int("count", 10, "number of mappings to create")
	seedCmd.Flags().Int64("rand-seed", 0, "random seed for reproducible runs (0 for random)")

	rootCmd.AddCommand(seedCmd)
}
