// Package storage defines the persistence boundary of the bridge. The
// bridge performs no retries of its own against the store; retry policy
// belongs to the implementation.
package storage

import (
	"context"
	"errors"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

var (
	// ErrNotFound is returned for missing mappings, templates and cursors.
	ErrNotFound = errors.New("not found")

	// ErrCursorRegression is a hard rejection: a polling cursor may never
	// move backwards without an explicit re-subscription.
	ErrCursorRegression = errors.New("polling cursor regression")
)

// Store is the storage collaborator contract.
type Store interface {
	// Driver mappings. Mappings are never deleted, only deactivated.
	GetDriverMappingByAddress(ctx context.Context, tenantID, address string) (*models.DriverPhoneMapping, error)
	GetDriverMappingByPlatformID(ctx context.Context, tenantID string, platform models.Platform, platformDriverID string) (*models.DriverPhoneMapping, error)
	ListDriverMappings(ctx context.Context, tenantID string) ([]models.DriverPhoneMapping, error)
	SaveDriverMapping(ctx context.Context, mapping *models.DriverPhoneMapping) error

	// Tenant template overrides. ErrNotFound defers to the built-in catalog.
	GetTemplate(ctx context.Context, tenantID string, eventType models.EventType, platform models.Platform, language string) (*models.MessageTemplate, error)

	// Communication log, append-only.
	AppendCommunicationLog(ctx context.Context, entry *models.CommunicationLog) error
	ListCommunicationLog(ctx context.Context, tenantID string, limit int) ([]models.CommunicationLog, error)

	// Polling cursors, monotonic per (tenant, platform, subscription key).
	GetPollingCursor(ctx context.Context, tenantID string, platform models.Platform, subscriptionKey string) (int64, error)
	SavePollingCursor(ctx context.Context, cursor models.PollingCursor) error

	Ping(ctx context.Context) error
	Close() error
}

// Deduper tracks vendor event IDs inside the dedupe window. SeenEvent
// records the ID and reports whether it was already present. Forget
// unmarks an ID so a re-fetched record is processed again; the polling
// tracker uses it when a record fails mid-batch and the cursor is held.
type Deduper interface {
	SeenEvent(ctx context.Context, platform models.Platform, eventID string) (bool, error)
	Forget(ctx context.Context, platform models.Platform, eventID string) error
	Close() error
}
