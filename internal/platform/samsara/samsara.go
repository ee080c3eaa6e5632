// Package samsara implements the provider contract for the Samsara fleet
// API: bearer-token REST with HMAC-signed push webhooks.
package samsara

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform"
)

// Adapter talks to the Samsara API on behalf of one tenant. Credentials are
// instance-scoped.
type Adapter struct {
	baseURL  string
	apiToken string
	client   *platform.Client
}

// Config holds the per-tenant Samsara credentials.
type Config struct {
	BaseURL  string
	APIToken string
}

// New creates a Samsara adapter.
func New(cfg Config) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.samsara.com"
	}
	return &Adapter{
		baseURL:  baseURL,
		apiToken: cfg.APIToken,
		client:   platform.NewClient(string(models.PlatformSamsara)),
	}
}

func (a *Adapter) Platform() models.Platform         { return models.PlatformSamsara }
func (a *Adapter) DeliveryMode() models.DeliveryMode { return models.DeliveryPush }

func (a *Adapter) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + a.apiToken}
}

// Authenticate verifies the bearer token against the /me endpoint. Samsara
// tokens do not expire; a 401 here is a configuration error.
func (a *Adapter) Authenticate(ctx context.Context) error {
	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	err := a.client.Do(ctx, platform.Request{
		Method:  http.MethodGet,
		URL:     a.baseURL + "/me",
		Headers: a.headers(),
	}, &out)
	if err != nil {
		return fmt.Errorf("samsara authenticate: %w: %w", platform.ErrAuthFailed, err)
	}
	return nil
}

type driverPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
	// driverActivationStatus is "active" or "deactivated"
	ActivationStatus      string `json:"driverActivationStatus"`
	StaticAssignedVehicle *struct {
		ID string `json:"id"`
	} `json:"staticAssignedVehicle"`
}

func (p driverPayload) toUnified() models.UnifiedDriver {
	d := models.UnifiedDriver{
		ID:       p.ID,
		Name:     p.Name,
		Phone:    p.Phone,
		Active:   p.ActivationStatus == "active",
		Platform: models.PlatformSamsara,
		Raw: map[string]any{
			"id":                     p.ID,
			"name":                   p.Name,
			"driverActivationStatus": p.ActivationStatus,
		},
	}
	if p.StaticAssignedVehicle != nil {
		d.VehicleIDs = []string{p.StaticAssignedVehicle.ID}
	}
	return d
}

func (a *Adapter) GetDrivers(ctx context.Context) ([]models.UnifiedDriver, error) {
	var out struct {
		Data []driverPayload `json:"data"`
	}
	err := a.client.Do(ctx, platform.Request{
		Method:  http.MethodGet,
		URL:     a.baseURL + "/fleet/drivers",
		Headers: a.headers(),
	}, &out)
	if err != nil {
		return nil, err
	}

	drivers := make([]models.UnifiedDriver, 0, len(out.Data))
	for _, d := range out.Data {
		drivers = append(drivers, d.toUnified())
	}
	return drivers, nil
}

func (a *Adapter) GetDriver(ctx context.Context, id string) (*models.UnifiedDriver, error) {
	var out struct {
		Data driverPayload `json:"data"`
	}
	err := a.client.Do(ctx, platform.Request{
		Method:  http.MethodGet,
		URL:     a.baseURL + "/fleet/drivers/" + id,
		Headers: a.headers(),
	}, &out)
	if err != nil {
		return nil, err
	}
	driver := out.Data.toUnified()
	return &driver, nil
}

func (a *Adapter) GetVehicleLocation(ctx context.Context, vehicleID string) (*models.Location, error) {
	var out struct {
		Data []struct {
			Location struct {
				Latitude   float64 `json:"latitude"`
				Longitude  float64 `json:"longitude"`
				ReverseGeo struct {
					FormattedLocation string `json:"formattedLocation"`
				} `json:"reverseGeo"`
				Time time.Time `json:"time"`
			} `json:"location"`
		} `json:"data"`
	}
	err := a.client.Do(ctx, platform.Request{
		Method:  http.MethodGet,
		URL:     a.baseURL + "/fleet/vehicles/locations?vehicleIds=" + vehicleID,
		Headers: a.headers(),
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("samsara: no location for vehicle %s", vehicleID)
	}
	loc := out.Data[0].Location
	return &models.Location{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Address:   loc.ReverseGeo.FormattedLocation,
		Timestamp: loc.Time,
	}, nil
}

// SubscribeToEvents registers a webhook endpoint with the HMAC signing
// secret. Events then arrive asynchronously at the webhook handler.
func (a *Adapter) SubscribeToEvents(ctx context.Context, eventTypes []string, sub platform.Subscription) error {
	body := map[string]any{
		"name":       "fleetbridge",
		"url":        sub.CallbackURL,
		"secretKey":  sub.Secret,
		"eventTypes": eventTypes,
	}
	return a.client.Do(ctx, platform.Request{
		Method:  http.MethodPost,
		URL:     a.baseURL + "/webhooks",
		Body:    body,
		Headers: a.headers(),
	}, nil)
}

// UpdateDriverStatus writes a driver status/location/ETA update. This is the
// entire mutation surface the adapter exposes.
func (a *Adapter) UpdateDriverStatus(ctx context.Context, platformDriverID string, update models.FleetSystemAPIUpdate) error {
	body := map[string]any{
		"driverId":  platformDriverID,
		"kind":      string(update.Kind),
		"status":    string(update.Status),
		"notes":     update.Notes,
		"timestamp": update.Timestamp.Format(time.RFC3339),
	}
	if update.Kind == models.UpdateETA {
		body["etaDeltaMinutes"] = update.ETADeltaMinutes
	}
	if update.Location != nil {
		body["location"] = map[string]any{
			"latitude":  update.Location.Latitude,
			"longitude": update.Location.Longitude,
		}
	}
	err := a.client.Do(ctx, platform.Request{
		Method:  http.MethodPost,
		URL:     a.baseURL + "/fleet/drivers/" + platformDriverID + "/status-updates",
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
		"driverId":     platformDriverID,
		"name":         doc.Filename,
		"documentType": string(doc.Class),
		"mediaUrl":     doc.MediaURL,
	}
	if doc.TripID != "" {
		body["routeId"] = doc.TripID
	}
	err := a.client.Do(ctx, platform.Request{
		Method:  http.MethodPost,
		URL:     a.baseURL + "/fleet/drivers/" + platformDriverID + "/documents",
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
