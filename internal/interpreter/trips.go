package interpreter

import (
	"context"
	"sync"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// StaticTrips is an in-process TripProvider fed by the event pipeline: a
// route_started event opens a trip, route_completed closes it. Deployments
// with a real dispatch system replace this with their own TripProvider.
type StaticTrips struct {
	mu    sync.RWMutex
	trips map[string]models.TripContext
}

// NewStaticTrips creates an empty StaticTrips.
func NewStaticTrips() *StaticTrips {
	return &StaticTrips{trips: make(map[string]models.TripContext)}
}

func tripKey(tenantID string, platform models.Platform, platformDriverID string) string {
	return tenantID + "/" + string(platform) + "/" + platformDriverID
}

// SetTrip opens or replaces the active trip for a driver.
func (s *StaticTrips) SetTrip(tenantID string, platform models.Platform, platformDriverID string, trip models.TripContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trips[tripKey(tenantID, platform, platformDriverID)] = trip
}

// SetPhase moves the active trip to a new phase, if one exists.
func (s *StaticTrips) SetPhase(tenantID string, platform models.Platform, platformDriverID string, phase models.DriverStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tripKey(tenantID, platform, platformDriverID)
	if trip, ok := s.trips[key]; ok {
		trip.Phase = phase
		s.trips[key] = trip
	}
}

// ClearTrip ends the active trip for a driver.
func (s *StaticTrips) ClearTrip(tenantID string, platform models.Platform, platformDriverID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trips, tripKey(tenantID, platform, platformDriverID))
}

// ActiveTrip implements TripProvider.
func (s *StaticTrips) ActiveTrip(_ context.Context, tenantID string, mapping *models.DriverPhoneMapping) (*models.TripContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trip, ok := s.trips[tripKey(tenantID, mapping.Platform, mapping.PlatformDriverID)]
	if !ok {
		return nil, ErrNoActiveTrip
	}
	clone := trip
	return &clone, nil
}
