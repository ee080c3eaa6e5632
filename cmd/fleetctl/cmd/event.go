package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fleetbridge-systems/fleetbridge/internal/output"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform/motive"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform/samsara"
	"github.com/fleetbridge-systems/fleetbridge/internal/webhook"
)

var eventCmd = &cobra.Command{
	Use:   "send-event",
	Short: "Inject a signed test webhook event",
	Long: `Build a vendor-shaped webhook payload, sign it with the tenant's
webhook secret and POST it to the server's webhook endpoint.

Examples:
  fleetctl send-event --tenant acme --platform samsara --secret wh-secret \
      --type route.started --driver-id d-100 --trip-id R42

  fleetctl send-event --tenant acme --platform motive --secret wh-secret \
      --type dispatch.arrived --driver-id 4711`,
	RunE: runSendEvent,
}

func runSendEvent(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	platform, _ := cmd.Flags().GetString("platform")
	secret, _ := cmd.Flags().GetString("secret")
	eventType, _ := cmd.Flags().GetString("type")
	driverID, _ := cmd.Flags().GetString("driver-id")
	tripID, _ := cmd.Flags().GetString("trip-id")
	message, _ := cmd.Flags().GetString("message")

	if tenantID == "" || secret == "" || eventType == "" {
		return fmt.Errorf("--tenant, --secret and --type are required")
	}

	eventID := uuid.NewString()
	now := time.Now().UTC()

	var payload any
	var header string
	switch platform {
	case "samsara":
		header = samsara.SignatureHeader
		data := map[string]any{"text": message}
		if driverID != "" {
			data["driver"] = map[string]string{"id": driverID}
		}
		if tripID != "" {
			data["route"] = map[string]string{"id": tripID}
		}
		payload = map[string]any{
			"eventId":   eventID,
			"eventType": eventType,
			"eventTime": now.Format(time.RFC3339),
			"data":      data,
		}
	case "motive":
		header = motive.SignatureHeader
		payload = map[string]any{
			"id":          eventID,
			"action":      eventType,
			"timestamp":   now.Format(time.RFC3339),
			"driver_id":   parseInt64(driverID),
			"dispatch_id": tripID,
			"comment":     message,
		}
	default:
		return fmt.Errorf("unsupported push platform %q (samsara or motive)", platform)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/webhooks/%s/%s", serverURL, platform, tenantID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(header, webhook.ComputeSignature(secret, body))

	resp, err := (&http.Client{Timeout: 30 * time.Second}).Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	output.Success("Event %s delivered (%s %s)", eventID, platform, eventType)
	return nil
}

func parseInt64(s string) int64 {
	var n int64
	fmt.Sscanf(s, "%d", &n)
	return n
}

func init() {
	eventCmd.Flags().String("tenant", "", "tenant ID")
	eventCmd.Flags().String("platform", "samsara", "push platform (samsara or motive)")
	eventCmd.Flags().String("secret", "", "webhook signing secret for the tenant")
	eventCmd.Flags().String("type", "", "vendor event type")
	eventCmd.Flags().String("driver-id", "", "platform driver ID")
	eventCmd.Flags().String("trip-id", "", "trip or dispatch ID")
	eventCmd.Flags().String("message", "", "free-text message attached to the event")

	rootCmd.AddCommand(eventCmd)
}
