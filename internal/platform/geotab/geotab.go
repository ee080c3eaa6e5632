// Package geotab implements the provider contract for the Geotab API:
// JSON-RPC style calls with session-based authentication and a versioned
// change feed instead of webhooks.
package geotab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform"
)

// Adapter talks to a Geotab database on behalf of one tenant. The session
// token is instance state, guarded for concurrent callers.
type Adapter struct {
	baseURL  string
	database string
	username string
	password string
	tenantID string
	client   *platform.Client

	mu        sync.Mutex
	sessionID string
}

// Config holds the per-tenant Geotab credentials.
type Config struct {
	BaseURL  string
	Database string
	Username string
	Password string
	TenantID string
}

// New creates a Geotab adapter.
func New(cfg Config) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://my.geotab.com"
	}
	return &Adapter{
		baseURL:  baseURL,
		database: cfg.Database,
		username: cfg.Username,
		password: cfg.Password,
		tenantID: cfg.TenantID,
		client:   platform.NewClient(string(models.PlatformGeotab)),
	}
}

func (a *Adapter) Platform() models.Platform         { return models.PlatformGeotab }
func (a *Adapter) DeliveryMode() models.DeliveryMode { return models.DeliveryPoll }

// rpcEnvelope is the Geotab call shape.
type rpcEnvelope struct {
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

type rpcResult struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// expired reports whether the error names an invalidated session.
func (e *rpcError) expired() bool {
	return strings.Contains(e.Name, "InvalidUserException") ||
		strings.Contains(e.Name, "SessionExpiredException")
}

// Authenticate obtains a fresh session token.
func (a *Adapter) Authenticate(ctx context.Context) error {
	var out struct {
		Result struct {
			Credentials struct {
				SessionID string `json:"sessionId"`
			} `json:"credentials"`
		} `json:"result"`
		Error *rpcError `json:"error"`
	}
	err := a.client.Do(ctx, platform.Request{
		Method: http.MethodPost,
		URL:    a.baseURL + "/apiv1",
		Body: rpcEnvelope{
			Method: "Authenticate",
			Params: map[string]any{
				"database": a.database,
				"userName": a.username,
				"password": a.password,
			},
		},
	}, &out)
	if err != nil {
		return fmt.Errorf("geotab authenticate: %w", err)
	}
	if out.Error != nil {
		return fmt.Errorf("geotab authenticate: %s: %w", out.Error.Message, platform.ErrAuthFailed)
	}

	a.mu.Lock()
	a.sessionID = out.Result.Credentials.SessionID
	a.mu.Unlock()
	return nil
}

func (a *Adapter) session() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessionID
}

// call performs one authenticated RPC. On an expired session it
// re-authenticates exactly once and retries the call once; a second failure
// is returned, never swallowed.
func (a *Adapter) call(ctx context.Context, method string, params map[string]any, out any) error {
	err := a.callOnce(ctx, method, params, out)
	if !errors.Is(err, platform.ErrAuthExpired) {
		return err
	}

	if authErr := a.Authenticate(ctx); authErr != nil {
		return fmt.Errorf("re-authentication after expired session: %w", authErr)
	}
	if err := a.callOnce(ctx, method, params, out); err != nil {
		return fmt.Errorf("geotab %s after re-authentication: %w", method, err)
	}
	return nil
}

func (a *Adapter) callOnce(ctx context.Context, method string, params map[string]any, out any) error {
	session := a.session()
	if session == "" {
		return platform.ErrAuthExpired
	}

	merged := map[string]any{
		"credentials": map[string]any{
			"database":  a.database,
			"userName":  a.username,
			"sessionId": session,
		},
	}
	for k, v := range params {
		merged[k] = v
	}

	var envelope rpcResult
	err := a.client.Do(ctx, platform.Request{
		Method: http.MethodPost,
		URL:    a.baseURL + "/apiv1",
		Body:   rpcEnvelope{Method: method, Params: merged},
	}, &envelope)
	if err != nil {
		return err
	}
	if envelope.Error != nil {
		if envelope.Error.expired() {
			return platform.ErrAuthExpired
		}
		return fmt.Errorf("geotab %s: %s", method, envelope.Error.Message)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

type userPayload struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Phone     string   `json:"phoneNumber"`
	ActiveTo  string   `json:"activeToDate"`
	Vehicles  []string `json:"vehicleIds"`
}

func (p userPayload) toUnified() models.UnifiedDriver {
	// Geotab marks deactivated users with an activeTo date in the past; an
	// empty or unparseable date means active. Offsets vary per database, so
	// the comparison happens on parsed instants.
	active := true
	if p.ActiveTo != "" {
		if until, err := time.Parse(time.RFC3339, p.ActiveTo); err == nil {
			active = until.After(time.Now())
		}
	}
	return models.UnifiedDriver{
		ID:         p.ID,
		Name:       strings.TrimSpace(p.FirstName + " " + p.LastName),
		Phone:      p.Phone,
		VehicleIDs: p.Vehicles,
		Active:     active,
		Platform:   models.PlatformGeotab,
		Raw: map[string]any{
			"id":           p.ID,
			"activeToDate": p.ActiveTo,
		},
	}
}

func (a *Adapter) GetDrivers(ctx context.Context) ([]models.UnifiedDriver, error) {
	var out []userPayload
	err := a.call(ctx, "Get", map[string]any{
		"typeName": "User",
		"search":   map[string]any{"isDriver": true},
	}, &out)
	if err != nil {
		return nil, err
	}

	drivers := make([]models.UnifiedDriver, 0, len(out))
	for _, u := range out {
		drivers = append(drivers, u.toUnified())
	}
	return drivers, nil
}

func (a *Adapter) GetDriver(ctx context.Context, id string) (*models.UnifiedDriver, error) {
	var out []userPayload
	err := a.call(ctx, "Get", map[string]any{
		"typeName": "User",
		"search":   map[string]any{"id": id},
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("geotab: driver %s not found", id)
	}
	driver := out[0].toUnified()
	return &driver, nil
}

func (a *Adapter) GetVehicleLocation(ctx context.Context, vehicleID string) (*models.Location, error) {
	var out []struct {
		Latitude  float64   `json:"latitude"`
		Longitude float64   `json:"longitude"`
		DateTime  time.Time `json:"dateTime"`
	}
	err := a.call(ctx, "Get", map[string]any{
		"typeName": "DeviceStatusInfo",
		"search":   map[string]any{"deviceSearch": map[string]any{"id": vehicleID}},
	}, &out)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("geotab: no status for vehicle %s", vehicleID)
	}
	return &models.Location{
		Latitude:  out[0].Latitude,
		Longitude: out[0].Longitude,
		Timestamp: out[0].DateTime,
	}, nil
}

// SubscribeToEvents is a no-op for Geotab. Event retrieval is driven by the
// polling tracker through FetchFeed.
func (a *Adapter) SubscribeToEvents(ctx context.Context, eventTypes []string, sub platform.Subscription) error {
	return nil
}

// feedRecord is a Geotab feed entry projected to the common event shape.
type feedRecord struct {
	ID       string         `json:"id"`
	Version  int64          `json:"version"`
	Type     string         `json:"type"`
	Driver   string         `json:"driverId"`
	Device   string         `json:"deviceId"`
	DateTime time.Time      `json:"dateTime"`
	Data     map[string]any `json:"data"`
}

// FetchFeed returns feed records with version greater than fromVersion, in
// vendor order, plus the new high-water mark. Implements platform.Feeder.
func (a *Adapter) FetchFeed(ctx context.Context, subscriptionKey string, fromVersion int64) ([]models.FleetSystemEvent, int64, error) {
	var out struct {
		Data      []feedRecord `json:"data"`
		ToVersion int64        `json:"toVersion"`
	}
	params := map[string]any{
		"typeName":    "ExceptionEvent",
		"fromVersion": fromVersion,
	}
	if subscriptionKey != "" && subscriptionKey != "global" {
		params["search"] = map[string]any{"deviceSearch": map[string]any{"id": subscriptionKey}}
	}
	if err := a.call(ctx, "GetFeed", params, &out); err != nil {
		return nil, fromVersion, err
	}

	events := make([]models.FleetSystemEvent, 0, len(out.Data))
	for _, rec := range out.Data {
		events = append(events, models.FleetSystemEvent{
			TenantID:  a.tenantID,
			Platform:  models.PlatformGeotab,
			EventType: rec.Type,
			EventID:   rec.ID,
			DriverID:  rec.Driver,
			VehicleID: rec.Device,
			Timestamp: rec.DateTime,
			Metadata:  rec.Data,
		})
	}

	toVersion := out.ToVersion
	if toVersion < fromVersion {
		// A cursor must never move backwards, whatever the vendor returns.
		toVersion = fromVersion
	}
	return events, toVersion, nil
}

func (a *Adapter) UpdateDriverStatus(ctx context.Context, platformDriverID string, update models.FleetSystemAPIUpdate) error {
	data := map[string]any{
		"userId":     platformDriverID,
		"updateKind": string(update.Kind),
		"status":     string(update.Status),
		"notes":      update.Notes,
		"dateTime":   update.Timestamp.Format(time.RFC3339),
	}
	if update.Kind == models.UpdateETA {
		data["etaDeltaMinutes"] = update.ETADeltaMinutes
	}
	if update.Location != nil {
		data["latitude"] = update.Location.Latitude
		data["longitude"] = update.Location.Longitude
	}
	err := a.call(ctx, "Add", map[string]any{
		"typeName": "DriverStatusUpdate",
		"entity":   data,
	}, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", platform.ErrRelayWriteFailed, err)
	}
	return nil
}

func (a *Adapter) UploadDriverDocument(ctx context.Context, platformDriverID string, doc models.DocumentUpload) error {
	err := a.call(ctx, "Add", map[string]any{
		"typeName": "DriverDocument",
		"entity": map[string]any{
			"userId":   platformDriverID,
			"name":     doc.Filename,
			"docType":  string(doc.Class),
			"mediaUrl": doc.MediaURL,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", platform.ErrRelayWriteFailed, err)
	}
	return nil
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	return a.call(ctx, "Get", map[string]any{"typeName": "Device", "resultsLimit": 1}, nil)
}
