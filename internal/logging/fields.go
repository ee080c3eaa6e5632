package logging

import "log/slog"

// Common field names for consistent logging across the bridge.
const (
	FieldService   = "service"
	FieldTenantID  = "tenant_id"
	FieldPlatform  = "platform"
	FieldEventID   = "event_id"
	FieldEventType = "event_type"
	FieldDriverID  = "driver_id"
	FieldAddress   = "address"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// TenantID returns a slog attribute for the tenant ID.
func TenantID(id string) slog.Attr {
	return slog.String(FieldTenantID, id)
}

// Platform returns a slog attribute for the platform name.
func Platform(p string) slog.Attr {
	return slog.String(FieldPlatform, p)
}

// EventID returns a slog attribute for an event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// EventType returns a slog attribute for an event type.
func EventType(t string) slog.Attr {
	return slog.String(FieldEventType, t)
}

// DriverID returns a slog attribute for a platform driver ID.
func DriverID(id string) slog.Attr {
	return slog.String(FieldDriverID, id)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Duration returns a slog attribute for a duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}
