package normalizer

import (
	"fmt"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// describe renders the human description for an event. One fixed formatting
// rule per internal type keeps the output deterministic and testable; no
// free-form text generation.
func describe(internalType models.EventType, event models.FleetSystemEvent) string {
	subject := event.VehicleID
	if subject == "" {
		subject = event.DriverID
	}
	if subject == "" {
		subject = "unknown"
	}

	switch internalType {
	case models.EventRouteStarted:
		return fmt.Sprintf("Route %s started", orUnknown(event.TripID))
	case models.EventRouteCompleted:
		return fmt.Sprintf("Route %s completed", orUnknown(event.TripID))
	case models.EventStopArrival:
		return fmt.Sprintf("Vehicle %s arrived at stop", subject)
	case models.EventStopDeparture:
		return fmt.Sprintf("Vehicle %s departed stop", subject)
	case models.EventGeofenceEntry:
		return fmt.Sprintf("Vehicle %s entered geofence", subject)
	case models.EventGeofenceExit:
		return fmt.Sprintf("Vehicle %s left geofence", subject)
	case models.EventHarshDriving:
		return fmt.Sprintf("Harsh driving event for vehicle %s", subject)
	case models.EventSpeeding:
		return fmt.Sprintf("Speeding detected for vehicle %s", subject)
	case models.EventVehicleFault:
		return fmt.Sprintf("Vehicle fault reported for %s", subject)
	case models.EventPanic:
		return fmt.Sprintf("Panic signal from %s", subject)
	case models.EventHOSViolation:
		return fmt.Sprintf("Hours-of-service violation for driver %s", orUnknown(event.DriverID))
	case models.EventDocumentRequested:
		return fmt.Sprintf("Document requested from driver %s", orUnknown(event.DriverID))
	case models.EventMessageReceived:
		if event.Message != "" {
			return fmt.Sprintf("Message from driver %s: %s", orUnknown(event.DriverID), event.Message)
		}
		return fmt.Sprintf("Message from driver %s", orUnknown(event.DriverID))
	default:
		return fmt.Sprintf("Unrecognized %s event %q", event.Platform, event.EventType)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
