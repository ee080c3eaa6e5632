package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/output"
)

var replyCmd = &cobra.Command{
	Use:   "reply",
	Short: "Simulate a driver reply",
	Long: `Send a driver reply through the reply API and print the structured
response the messaging channel would deliver back.

Examples:
  fleetctl reply --tenant acme --from +15550001111 --kind button --payload confirm_arrival
  fleetctl reply --tenant acme --from +15550001111 --kind text --payload "running late, eta?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, _ := cmd.Flags().GetString("tenant")
		from, _ := cmd.Flags().GetString("from")
		kind, _ := cmd.Flags().GetString("kind")
		payload, _ := cmd.Flags().GetString("payload")
		filename, _ := cmd.Flags().GetString("filename")

		if tenantID == "" || from == "" {
			return fmt.Errorf("--tenant and --from are required")
		}

		structured, err := newAPIClient().sendReply(models.InboundReply{
			TenantID:    tenantID,
			FromAddress: from,
			MessageID:   uuid.NewString(),
			Kind:        models.ReplyKind(kind),
			Payload:     payload,
			Filename:    filename,
			Timestamp:   time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("failed to send reply: %w", err)
		}

		output.Success("Reply processed (%s)", structured.Type)
		output.Info("%s", structured.Message)
		for _, b := range structured.Buttons {
			output.Info("  [%s] %s", b.ID, b.Text)
		}
		for _, q := range structured.QuickReplies {
			output.Info("  (%s)", q)
		}
		return nil
	},
}

func init() {
	replyCmd.Flags().String("tenant", "", "tenant ID")
	replyCmd.Flags().String("from", "", "driver messaging address")
	replyCmd.Flags().String("kind", "text", "reply kind (text, button, location, document)")
	replyCmd.Flags().String("payload", "", "button ID or text body")
	replyCmd.Flags().String("filename", "", "document filename (document replies)")

	rootCmd.AddCommand(replyCmd)
}
