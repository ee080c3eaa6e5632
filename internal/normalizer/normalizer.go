// Package normalizer translates vendor-shaped fleet events into the unified
// internal vocabulary. Normalization is a pure function: same input, same
// output, no vendor calls.
package normalizer

import (
	"strings"

	"github.com/google/uuid"

	"github.com/fleetbridge-systems/fleetbridge/internal/metrics"
	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// Normalizer maps FleetSystemEvents onto UnifiedEvents using the static
// per-platform tables.
type Normalizer struct{}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize converts a vendor event into a UnifiedEvent. Unmapped vendor
// types yield a non-nil fallback event of type unrecognized; an event is
// never dropped here.
func (n *Normalizer) Normalize(event models.FleetSystemEvent) *models.UnifiedEvent {
	internalType, mapped := lookupType(event.Platform, event.EventType)
	severity := deriveSeverity(internalType, event.EventType)

	if !mapped {
		metrics.UnmappedEventTypes.WithLabelValues(string(event.Platform)).Inc()
	}
	metrics.EventsNormalized.WithLabelValues(string(internalType), string(severity)).Inc()

	id, _ := uuid.NewV7()

	raw := map[string]any{
		"vendor_event_type": event.EventType,
		"vendor_event_id":   event.EventID,
	}
	for k, v := range event.Metadata {
		raw[k] = v
	}

	return &models.UnifiedEvent{
		ID:          id.String(),
		Type:        internalType,
		Timestamp:   event.Timestamp,
		TenantID:    event.TenantID,
		DriverID:    event.DriverID,
		VehicleID:   event.VehicleID,
		TripID:      event.TripID,
		Location:    event.Location,
		Severity:    severity,
		Description: describe(internalType, event),
		Metadata:    event.Metadata,
		Platform:    event.Platform,
		Raw:         raw,
	}
}

// lookupType resolves (platform, vendorEventType) against the static table.
func lookupType(platform models.Platform, vendorType string) (models.EventType, bool) {
	table, ok := eventTables[platform]
	if !ok {
		return models.EventTypeUnrecognized, false
	}
	internalType, ok := table[vendorType]
	if !ok {
		return models.EventTypeUnrecognized, false
	}
	return internalType, true
}

// deriveSeverity returns the fixed severity for mapped types. For
// unrecognized types the vendor identifier is scanned: fault/violation/panic
// tags are critical, harsh/warning tags are warning, everything else info.
func deriveSeverity(internalType models.EventType, vendorType string) models.Severity {
	if internalType != models.EventTypeUnrecognized {
		return severityByType[internalType]
	}

	lower := strings.ToLower(vendorType)
	switch {
	case strings.Contains(lower, "fault"),
		strings.Contains(lower, "violation"),
		strings.Contains(lower, "panic"):
		return models.SeverityCritical
	case strings.Contains(lower, "harsh"),
		strings.Contains(lower, "warning"):
		return models.SeverityWarning
	default:
		return models.SeverityInfo
	}
}
