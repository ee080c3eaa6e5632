package normalizer

import "github.com/fleetbridge-systems/fleetbridge/internal/models"

// Static per-platform translation tables from vendor-native event
// identifiers to the internal vocabulary. Absent entries fall back to
// EventTypeUnrecognized; the event is still recorded, never dropped.
var eventTables = map[models.Platform]map[string]models.EventType{
	models.PlatformSamsara: {
		"RouteStarted":       models.EventRouteStarted,
		"RouteCompleted":     models.EventRouteCompleted,
		"RouteStopArrival":   models.EventStopArrival,
		"RouteStopDeparture": models.EventStopDeparture,
		"GeofenceEntry":      models.EventGeofenceEntry,
		"GeofenceExit":       models.EventGeofenceExit,
		"HarshEvent":         models.EventHarshDriving,
		"SevereSpeeding":     models.EventSpeeding,
		"VehicleFault":       models.EventVehicleFault,
		"PanicButton":        models.EventPanic,
		"HosViolation":       models.EventHOSViolation,
		"DocumentRequired":   models.EventDocumentRequested,
		"DriverMessage":      models.EventMessageReceived,
	},
	models.PlatformMotive: {
		"dispatch.started":       models.EventRouteStarted,
		"dispatch.completed":     models.EventRouteCompleted,
		"dispatch.stop_arrived":  models.EventStopArrival,
		"dispatch.stop_departed": models.EventStopDeparture,
		"geofence.entered":       models.EventGeofenceEntry,
		"geofence.exited":        models.EventGeofenceExit,
		"driving.harsh_event":    models.EventHarshDriving,
		"driving.speeding":       models.EventSpeeding,
		"vehicle.fault_code":     models.EventVehicleFault,
		"driver.panic":           models.EventPanic,
		"hos.violation":          models.EventHOSViolation,
		"document.requested":     models.EventDocumentRequested,
		"message.received":       models.EventMessageReceived,
	},
	models.PlatformGeotab: {
		"TripStart":                   models.EventRouteStarted,
		"TripEnd":                     models.EventRouteCompleted,
		"ZoneStop":                    models.EventStopArrival,
		"ZoneDeparture":               models.EventStopDeparture,
		"ExceptionRuleZoneEntryId":    models.EventGeofenceEntry,
		"ExceptionRuleZoneExitId":     models.EventGeofenceExit,
		"ExceptionRuleHarshBrakingId": models.EventHarshDriving,
		"ExceptionRuleHarshCornering": models.EventHarshDriving,
		"ExceptionRuleSpeedingId":     models.EventSpeeding,
		"ExceptionRuleEngineFaultId":  models.EventVehicleFault,
		"ExceptionRulePanicId":        models.EventPanic,
		"ExceptionRuleHosViolationId": models.EventHOSViolation,
		"DutyStatusViolation":         models.EventHOSViolation,
		"DVIRDefect":                  models.EventVehicleFault,
		"TextMessage":                 models.EventMessageReceived,
	},
}

// severityByType fixes the severity for each internal type. Deterministic:
// same input always yields the same severity.
var severityByType = map[models.EventType]models.Severity{
	models.EventRouteStarted:      models.SeverityInfo,
	models.EventRouteCompleted:    models.SeverityInfo,
	models.EventStopArrival:       models.SeverityInfo,
	models.EventStopDeparture:     models.SeverityInfo,
	models.EventGeofenceEntry:     models.SeverityInfo,
	models.EventGeofenceExit:      models.SeverityInfo,
	models.EventHarshDriving:      models.SeverityWarning,
	models.EventSpeeding:          models.SeverityWarning,
	models.EventVehicleFault:      models.SeverityCritical,
	models.EventPanic:             models.SeverityCritical,
	models.EventHOSViolation:      models.SeverityCritical,
	models.EventDocumentRequested: models.SeverityInfo,
	models.EventMessageReceived:   models.SeverityInfo,
	models.EventTypeUnrecognized:  models.SeverityInfo,
}
