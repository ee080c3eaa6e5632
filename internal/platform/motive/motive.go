// Package motive implements the provider contract for the Motive fleet API:
// API-key REST with HMAC-signed push webhooks.
package motive

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform"
)

// Adapter talks to the Motive API on behalf of one tenant.
type Adapter struct {
	baseURL string
	apiKey  string
	client  *platform.Client
}

// Config holds the per-tenant Motive credentials.
type Config struct {
	BaseURL string
	APIKey  string
}

// New creates a Motive adapter.
func New(cfg Config) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.gomotive.com/v1"
	}
	return &Adapter{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		client:  platform.NewClient(string(models.PlatformMotive)),
	}
}

func (a *Adapter) Platform() models.Platform         { return models.PlatformMotive }
func (a *Adapter) DeliveryMode() models.DeliveryMode { return models.DeliveryPush }

func (a *Adapter) headers() map[string]string {
	return map[string]string{"X-Api-Key": a.apiKey}
}

func (a *Adapter) Authenticate(ctx context.Context) error {
	err := a.client.Do(ctx, platform.Request{
		Method:  http.MethodGet,
		URL:     a.baseURL + "/users/me",
		Headers: a.headers(),
	}, nil)
	if err != nil {
		return fmt.Errorf("motive authenticate: %w: %w", platform.ErrAuthFailed, err)
	}
	return nil
}

type userEnvelope struct {
	User userPayload `json:"user"`
}

type userPayload struct {
	ID             int64  `json:"id"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	PhoneNumber    string `json:"phone"`
	Status         string `json:"status"` // "active" or "deactivated"
	CurrentVehicle *struct {
		ID int64 `json:"id"`
	} `json:"current_vehicle"`
}

func (p userPayload) toUnified() models.UnifiedDriver {
	d := models.UnifiedDriver{
		ID:       fmt.Sprintf("%d", p.ID),
		Name:     p.FirstName + " " + p.LastName,
		Phone:    p.PhoneNumber,
		Active:   p.Status == "active",
		Platform: models.PlatformMotive,
		Raw: map[string]any{
			"id":     p.ID,
			"status": p.Status,
		},
	}
	if p.CurrentVehicle != nil {
		d.VehicleIDs = []string{fmt.Sprintf("%d", p.CurrentVehicle.ID)}
	}
	return d
}

func (a *Adapter) GetDrivers(ctx context.Context) ([]models.UnifiedDriver, error) {
	var out struct {
		Users []userEnvelope `json:"users"`
	}
	err := a.client.Do(ctx, platform.Request{
		Method:  http.MethodGet,
		URL:     a.baseURL + "/users?role=driver",
		Headers: a.headers(),
	}, &out)
	if err != nil {
		return nil, err
	}

	drivers := make([]models.UnifiedDriver, 0, len(out.Users))
	for _, u := range out.Users {
		drivers = append(drivers, u.User.toUnified())
	}
	return drivers, nil
}

func (a *Adapter) GetDriver(ctx context.Context, id string) (*models.UnifiedDriver, error) {
	var out userEnvelope
	err := a.client.Do(ctx, platform.Request{
		Method:  http.MethodGet,
		URL:     a.baseURL + "/users/" + id,
		Headers: a.headers(),
	}, &out)
	if err != nil {
		return nil, err
	}
	driver := out.User.toUnified()
	return &driver, nil
}

func (a *Adapter) GetVehicleLocation(ctx context.Context, vehicleID string) (*models.Location, error) {
	var out struct {
		VehicleLocation struct {
			Lat        float64 `json:"lat"`
			Lon        float64 `json:"lon"`
			Located_at string  `json:"located_at"`
			Address    string  `json:"description"`
		} `json:"vehicle_location"`
	}
	err := a.client.Do(ctx, platform.Request{
		Method:  http.MethodGet,
		URL:     a.baseURL + "/vehicle_locations/" + vehicleID,
		Headers: a.headers(),
	}, &out)
	if err != nil {
		return nil, err
	}

	loc := &models.Location{
		Latitude:  out.VehicleLocation.Lat,
		Longitude: out.VehicleLocation.Lon,
		Address:   out.VehicleLocation.Address,
	}
	if t, err := time.Parse(time.RFC3339, out.VehicleLocation.Located_at); err == nil {
		loc.Timestamp = t
	}
	return loc, nil
}

func (a *Adapter) SubscribeToEvents(ctx context.Context, eventTypes []string, sub platform.Subscription) error {
	body := map[string]any{
		"url":     sub.CallbackURL,
		"secret":  sub.Secret,
		"actions": eventTypes,
		"format":  "json",
	}
	return a.client.Do(ctx, platform.Request{
		Method:  http.MethodPost,
		URL:     a.baseURL + "/webhooks",
		Body:    body,
		Headers: a.headers(),
	}, nil)
}

func (a *Adapter) UpdateDriverStatus(ctx context.Context, platformDriverID string, update models.FleetSystemAPIUpdate) error {
	body := map[string]any{
		"driver_id":   platformDriverID,
		"update_kind": string(update.Kind),
		"status":      string(update.Status),
		"notes":       update.Notes,
		"recorded_at": update.Timestamp.Format(time.RFC3339),
	}
	if update.Kind == models.UpdateETA {
		body["eta_delta_minutes"] = update.ETADeltaMinutes
	}
	if update.Location != nil {
		body["lat"] = update.Location.Latitude
		body["lon"] = update.Location.Longitude
	}
	err := a.client.Do(ctx, platform.Request{
		Method:  http.MethodPost,
		URL:     a.baseURL + "/driver_status_updates",
		Body:    body,
		Headers: a.headers(),
	}, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", platform.ErrRelayWriteFailed, err)
	}
	return nil
}

func (a *Adapter) UploadDriverDocument(ctx context.Context, platformDriverID string, doc models.DocumentUpload) error {
	body := map[string]any{
		"driver_id": platformDriverID,
		"doc_type":  string(doc.Class),
		"file_name": doc.Filename,
		"media_url": doc.MediaURL,
	}
	if doc.TripID != "" {
		body["dispatch_id"] = doc.TripID
	}
	err := a.client.Do(ctx, platform.Request{
		Method:  http.MethodPost,
		URL:     a.baseURL + "/documents",
		Body:    body,
		Headers: a.headers(),
	}, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", platform.ErrRelayWriteFailed, err)
	}
	return nil
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	return a.Authenticate(ctx)
}
