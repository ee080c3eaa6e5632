// Package platform defines the unified provider contract implemented by
// every vendor adapter, plus the shared error taxonomy and the bounded-retry
// HTTP client adapters use for outbound vendor calls.
package platform

import (
	"context"
	"fmt"
	"sync"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// Provider is the capability set every vendor adapter implements. Adapters
// are the only place vendor wire formats are known; everything above this
// contract operates on the unified model.
//
// The write surface is deliberately narrow: driver status, location, ETA and
// document uploads only. Broader vendor mutation is a compliance violation,
// not a missing feature.
type Provider interface {
	// Platform identifies the vendor behind this adapter.
	Platform() models.Platform

	// DeliveryMode reports whether the vendor pushes events (webhooks) or
	// must be polled.
	DeliveryMode() models.DeliveryMode

	// Authenticate establishes or refreshes vendor credentials. For
	// session-based vendors this obtains a session token; for token-based
	// vendors it is a validation no-op.
	Authenticate(ctx context.Context) error

	// GetDrivers lists all drivers visible to the tenant.
	GetDrivers(ctx context.Context) ([]models.UnifiedDriver, error)

	// GetDriver fetches a single driver by platform driver ID.
	GetDriver(ctx context.Context, id string) (*models.UnifiedDriver, error)

	// GetVehicleLocation fetches the last known location of a vehicle.
	GetVehicleLocation(ctx context.Context, vehicleID string) (*models.Location, error)

	// SubscribeToEvents registers interest in the given vendor event types.
	// Push vendors register a callback URL and signing secret; poll vendors
	// treat this as a no-op and rely on the polling tracker.
	SubscribeToEvents(ctx context.Context, eventTypes []string, sub Subscription) error

	// UpdateDriverStatus writes a normalized driver update back to the vendor.
	UpdateDriverStatus(ctx context.Context, platformDriverID string, update models.FleetSystemAPIUpdate) error

	// UploadDriverDocument relays a driver document to the vendor.
	UploadDriverDocument(ctx context.Context, platformDriverID string, doc models.DocumentUpload) error

	// HealthCheck verifies the vendor API is reachable with current credentials.
	HealthCheck(ctx context.Context) error
}

// Subscription carries the delivery details for SubscribeToEvents.
type Subscription struct {
	CallbackURL string
	Secret      string
	Mode        models.DeliveryMode
}

// Feeder is implemented by poll-based adapters in addition to Provider.
// FetchFeed returns records with version strictly greater than fromVersion,
// in vendor order, together with the new high-water mark.
type Feeder interface {
	FetchFeed(ctx context.Context, subscriptionKey string, fromVersion int64) (records []models.FleetSystemEvent, toVersion int64, err error)
}

// Registry holds one adapter instance per (tenant, platform). Credentials
// are scoped to the instance; there is no process-wide vendor state.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Provider
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Provider)}
}

func registryKey(tenantID string, p models.Platform) string {
	return tenantID + "/" + string(p)
}

// Register adds an adapter for a (tenant, platform) pair.
func (r *Registry) Register(tenantID string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[registryKey(tenantID, p.Platform())] = p
}

// Get returns the adapter for a (tenant, platform) pair.
func (r *Registry) Get(tenantID string, p models.Platform) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[registryKey(tenantID, p)]
	if !ok {
		return nil, fmt.Errorf("no %s adapter registered for tenant %s: %w", p, tenantID, ErrAdapterNotFound)
	}
	return adapter, nil
}

// All returns every registered adapter with its tenant ID.
func (r *Registry) All() map[string]Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Provider, len(r.adapters))
	for k, v := range r.adapters {
		out[k] = v
	}
	return out
}
