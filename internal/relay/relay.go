// Package relay writes normalized driver updates back to the vendor that
// owns the trip. Updates for the same driver are serialized; different
// drivers proceed in parallel.
package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetbridge-systems/fleetbridge/internal/logging"
	"github.com/fleetbridge-systems/fleetbridge/internal/metrics"
	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform"
	"github.com/fleetbridge-systems/fleetbridge/internal/storage"
)

// Relay dispatches FleetSystemAPIUpdates to the owning adapter.
type Relay struct {
	registry *platform.Registry
	store    storage.Store
	logger   *logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Relay over the adapter registry.
func New(registry *platform.Registry, store storage.Store, logger *logging.Logger) *Relay {
	return &Relay{
		registry: registry,
		store:    store,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// driverLock returns the mutex serializing writes for one driver. Locks
// are never removed; the working set is bounded by the driver population.
func (r *Relay) driverLock(tenantID string, p models.Platform, platformDriverID string) *sync.Mutex {
	key := tenantID + "/" + string(p) + "/" + platformDriverID
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[key] = lock
	}
	return lock
}

// Apply writes one update to the owning vendor and records the outcome in
// the communication log. The returned error reports the write-back result
// to the caller; callers still acknowledge the driver on failure.
func (r *Relay) Apply(ctx context.Context, mapping *models.DriverPhoneMapping, update models.FleetSystemAPIUpdate) error {
	lock := r.driverLock(mapping.TenantID, update.Platform, update.PlatformDriverID)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	err := r.write(ctx, mapping.TenantID, update)
	metrics.RelayDuration.Observe(time.Since(start).Seconds())

	status := models.DeliveryProcessed
	errMsg := ""
	if err != nil {
		status = models.DeliveryFailed
		errMsg = err.Error()
		metrics.RelayUpdates.WithLabelValues(string(update.Platform), "failed").Inc()
		r.logger.ErrorContext(ctx, "vendor write-back failed",
			logging.TenantID(mapping.TenantID),
			logging.Platform(string(update.Platform)),
			logging.DriverID(update.PlatformDriverID),
			"update_kind", string(update.Kind),
			logging.Error(err),
		)
	} else {
		metrics.RelayUpdates.WithLabelValues(string(update.Platform), "ok").Inc()
	}

	entry := &models.CommunicationLog{
		ID:           uuid.Must(uuid.NewV7()).String(),
		TenantID:     mapping.TenantID,
		MappingID:    mapping.ID,
		Direction:    models.DirectionInbound,
		EventType:    string(update.Kind),
		Status:       status,
		ErrorMessage: errMsg,
		Metadata: map[string]any{
			"platform":           string(update.Platform),
			"platform_driver_id": update.PlatformDriverID,
			"status":             string(update.Status),
		},
		Timestamp: time.Now().UTC(),
	}
	if logErr := r.store.AppendCommunicationLog(ctx, entry); logErr != nil {
		r.logger.ErrorContext(ctx, "appending communication log failed",
			logging.TenantID(mapping.TenantID),
			logging.Error(logErr),
		)
	}

	return err
}

func (r *Relay) write(ctx context.Context, tenantID string, update models.FleetSystemAPIUpdate) error {
	adapter, err := r.registry.Get(tenantID, update.Platform)
	if err != nil {
		return err
	}

	if update.Kind == models.UpdateDocument {
		if update.Document == nil {
			return fmt.Errorf("document update without document payload")
		}
		return adapter.UploadDriverDocument(ctx, update.PlatformDriverID, *update.Document)
	}
	return adapter.UpdateDriverStatus(ctx, update.PlatformDriverID, update)
}
