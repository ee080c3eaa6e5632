package samsara

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// SignatureHeader carries the HMAC of the raw webhook body.
const SignatureHeader = "X-Samsara-Signature"

// webhookPayload is the Samsara webhook envelope.
type webhookPayload struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	EventTime time.Time `json:"eventTime"`
	Data      struct {
		Driver *struct {
			ID string `json:"id"`
		} `json:"driver"`
		Vehicle *struct {
			ID string `json:"id"`
		} `json:"vehicle"`
		Route *struct {
			ID string `json:"id"`
		} `json:"route"`
		Location *struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Address   string  `json:"formattedAddress"`
		} `json:"location"`
		Text  string         `json:"text"`
		Extra map[string]any `json:"conditions"`
	} `json:"data"`
}

// ParseWebhook decodes a Samsara webhook body into a FleetSystemEvent.
// Signature verification happens before this is called.
func ParseWebhook(tenantID string, body []byte) (*models.FleetSystemEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal samsara webhook: %w", err)
	}
	if payload.EventType == "" {
		return nil, fmt.Errorf("samsara webhook missing eventType")
	}

	event := &models.FleetSystemEvent{
		TenantID:  tenantID,
		Platform:  models.PlatformSamsara,
		EventType: payload.EventType,
		EventID:   payload.EventID,
		Message:   payload.Data.Text,
		Timestamp: payload.EventTime,
		Metadata:  payload.Data.Extra,
	}
	if payload.Data.Driver != nil {
		event.DriverID = payload.Data.Driver.ID
	}
	if payload.Data.Vehicle != nil {
		event.VehicleID = payload.Data.Vehicle.ID
	}
	if payload.Data.Route != nil {
		event.TripID = payload.Data.Route.ID
	}
	if payload.Data.Location != nil {
		event.Location = &models.Location{
			Latitude:  payload.Data.Location.Latitude,
			Longitude: payload.Data.Location.Longitude,
			Address:   payload.Data.Location.Address,
		}
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event, nil
}
