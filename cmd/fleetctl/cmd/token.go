package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fleetbridge-systems/fleetbridge/internal/auth"
	"github.com/fleetbridge-systems/fleetbridge/internal/output"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "API token management",
	Long:  "Mint bearer tokens for the fleetbridge internal API",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new API token",
	Long:  "Sign a new bearer token with the server's JWT secret",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		subject, _ := cmd.Flags().GetString("subject")
		tenants, _ := cmd.Flags().GetString("tenants")
		roles, _ := cmd.Flags().GetString("roles")

		if secret == "" {
			return fmt.Errorf("--secret is required")
		}
		if subject == "" {
			return fmt.Errorf("--subject is required")
		}

		token, err := auth.NewTokenValidator(secret).Generate(subject, splitCSV(tenants), splitCSV(roles))
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}

		output.Success("Token created for %s", subject)
		if tenants == "" {
			output.Warn("Token is valid for ALL tenants")
		}
		fmt.Println(token)
		output.Info("\nUse it with:")
		output.Info("  fleetctl --token %s ...", token)
		return nil
	},
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func init() {
	tokenCreateCmd.Flags().String("secret", "", "JWT signing secret shared with the server")
	tokenCreateCmd.Flags().String("subject", "", "token subject (operator or service name)")
	tokenCreateCmd.Flags().String("tenants", "", "comma-separated tenant IDs the token may access (empty for all)")
	tokenCreateCmd.Flags().String("roles", "admin", "comma-separated roles")

	tokenCmd.AddCommand(tokenCreateCmd)
	rootCmd.AddCommand(tokenCmd)
}
