package motive

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// SignatureHeader carries the HMAC of the raw webhook body.
const SignatureHeader = "X-Motive-Signature"

// webhookPayload is the Motive webhook envelope.
type webhookPayload struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Timestamp  string         `json:"timestamp"`
	DriverID   int64          `json:"driver_id"`
	VehicleID  int64          `json:"vehicle_id"`
	DispatchID string         `json:"dispatch_id"`
	Lat        *float64       `json:"lat"`
	Lon        *float64       `json:"lon"`
	Comment    string         `json:"comment"`
	Payload    map[string]any `json:"payload"`
}

// ParseWebhook decodes a Motive webhook body into a FleetSystemEvent.
func ParseWebhook(tenantID string, body []byte) (*models.FleetSystemEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal motive webhook: %w", err)
	}
	if payload.Action == "" {
		return nil, fmt.Errorf("motive webhook missing action")
	}

	event := &models.FleetSystemEvent{
		TenantID:  tenantID,
		Platform:  models.PlatformMotive,
		EventType: payload.Action,
		EventID:   payload.ID,
		TripID:    payload.DispatchID,
		Message:   payload.Comment,
		Metadata:  payload.Payload,
	}
	if payload.DriverID != 0 {
		event.DriverID = strconv.FormatInt(payload.DriverID, 10)
	}
	if payload.VehicleID != 0 {
		event.VehicleID = strconv.FormatInt(payload.VehicleID, 10)
	}
	if payload.Lat != nil && payload.Lon != nil {
		event.Location = &models.Location{Latitude: *payload.Lat, Longitude: *payload.Lon}
	}
	if t, err := time.Parse(time.RFC3339, payload.Timestamp); err == nil {
		event.Timestamp = t
	} else {
		event.Timestamp = time.Now().UTC()
	}
	return event, nil
}
