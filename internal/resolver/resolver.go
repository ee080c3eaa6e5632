// Package resolver maps between messaging addresses and vendor-native
// driver identities, and keeps the mapping table fed from vendor driver
// listings.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleetbridge-systems/fleetbridge/internal/logging"
	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform"
	"github.com/fleetbridge-systems/fleetbridge/internal/storage"
)

var (
	// ErrUnknownSender means no mapping exists for an inbound address.
	// The caller replies with a fixed onboarding hint and makes no
	// vendor calls.
	ErrUnknownSender = errors.New("unknown sender")

	// ErrChannelInactive means a mapping exists but is deactivated.
	// Outbound deliveries skip the driver and log the skip; they do
	// not fail the pipeline.
	ErrChannelInactive = errors.New("messaging channel inactive")
)

// Resolver answers identity questions against the mapping store.
type Resolver struct {
	store  storage.Store
	logger *logging.Logger
}

// New creates a Resolver.
func New(store storage.Store, logger *logging.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// ResolveByMessagingAddress resolves an inbound sender to their mapping.
func (r *Resolver) ResolveByMessagingAddress(ctx context.Context, tenantID, address string) (*models.DriverPhoneMapping, error) {
	mapping, err := r.store.GetDriverMappingByAddress(ctx, tenantID, address)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUnknownSender
	}
	if err != nil {
		return nil, fmt.Errorf("resolve address: %w", err)
	}
	if !mapping.Active {
		return nil, ErrChannelInactive
	}
	return mapping, nil
}

// ResolveByPlatformDriverID resolves a vendor driver ID to their mapping,
// for outbound delivery.
func (r *Resolver) ResolveByPlatformDriverID(ctx context.Context, tenantID string, p models.Platform, platformDriverID string) (*models.DriverPhoneMapping, error) {
	mapping, err := r.store.GetDriverMappingByPlatformID(ctx, tenantID, p, platformDriverID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrUnknownSender
	}
	if err != nil {
		return nil, fmt.Errorf("resolve platform driver: %w", err)
	}
	if !mapping.Active {
		return nil, ErrChannelInactive
	}
	return mapping, nil
}

// Touch records that the driver was just contacted.
func (r *Resolver) Touch(ctx context.Context, mapping *models.DriverPhoneMapping) error {
	now := time.Now().UTC()
	mapping.LastContactedAt = &now
	return r.store.SaveDriverMapping(ctx, mapping)
}

// SyncDrivers pulls the vendor driver listing and upserts discovered
// mappings. Discovered mappings start inactive until a dispatcher opts the
// driver in; existing mappings, manual ones in particular, are left alone.
// Returns the number of newly discovered drivers.
func (r *Resolver) SyncDrivers(ctx context.Context, tenantID string, provider platform.Provider) (int, error) {
	drivers, err := provider.GetDrivers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list %s drivers: %w", provider.Platform(), err)
	}

	discovered := 0
	for _, driver := range drivers {
		if driver.Phone == "" || !driver.Active {
			continue
		}

		_, err := r.store.GetDriverMappingByPlatformID(ctx, tenantID, provider.Platform(), driver.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return discovered, fmt.Errorf("lookup mapping for driver %s: %w", driver.ID, err)
		}

		mapping := &models.DriverPhoneMapping{
			TenantID:         tenantID,
			Platform:         provider.Platform(),
			PlatformDriverID: driver.ID,
			DriverName:       driver.Name,
			Address:          driver.Phone,
			Active:           false,
			Source:           models.SourcePlatformDiscovered,
		}
		if err := r.store.SaveDriverMapping(ctx, mapping); err != nil {
			return discovered, fmt.Errorf("save discovered mapping for driver %s: %w", driver.ID, err)
		}
		discovered++
		r.logger.Info("discovered driver mapping",
			logging.TenantID(tenantID),
			logging.Platform(string(provider.Platform())),
			logging.DriverID(driver.ID),
		)
	}
	return discovered, nil
}
