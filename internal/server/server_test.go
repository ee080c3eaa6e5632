package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbridge-systems/fleetbridge/internal/auth"
	"github.com/fleetbridge-systems/fleetbridge/internal/dispatch"
	"github.com/fleetbridge-systems/fleetbridge/internal/interpreter"
	"github.com/fleetbridge-systems/fleetbridge/internal/logging"
	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/normalizer"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform"
	"github.com/fleetbridge-systems/fleetbridge/internal/relay"
	"github.com/fleetbridge-systems/fleetbridge/internal/resolver"
	"github.com/fleetbridge-systems/fleetbridge/internal/service"
	"github.com/fleetbridge-systems/fleetbridge/internal/storage"
	"github.com/fleetbridge-systems/fleetbridge/internal/template"
	"github.com/fleetbridge-systems/fleetbridge/internal/webhook"
)

type testEnv struct {
	router    http.Handler
	store     *storage.MemoryStore
	validator *auth.TokenValidator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := storage.NewMemoryStore()
	logger := logging.New(slog.LevelError, "json")
	trips := interpreter.NewStaticTrips()
	registry := platform.NewRegistry()
	res := resolver.New(store, logger)

	catalog, err := template.LoadBuiltinCatalog()
	require.NoError(t, err)

	pipeline := service.New(service.Deps{
		Normalizer: normalizer.New(),
		Resolver:   res,
		Engine:     template.NewEngine(catalog, store, "en"),
		Dispatcher: dispatch.NewMemoryDispatcher(),
		Relay:      relay.New(registry, store, logger),
		Trips:      trips,
		Store:      store,
		Logger:     logger,
	})

	secrets := func(tenantID string, p models.Platform) (string, bool) {
		return "wh-secret", tenantID == "acme"
	}
	wh := webhook.NewHandler(secrets, storage.NewMemoryDeduper(time.Minute), pipeline, logger)

	validator := auth.NewTokenValidator("test-secret")
	handlers := NewHandlers(pipeline, store, res, logger)
	router := NewRouter(handlers, wh, auth.NewMiddleware(validator))

	return &testEnv{router: router, store: store, validator: validator}
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, err := e.validator.Generate("ops", nil, []string{"admin"})
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestWebhookRoute(t *testing.T) {
	e := newTestEnv(t)

	body := []byte(`{"eventId":"evt-1","eventType":"RouteStarted","data":{"driver":{"id":"D1"}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/samsara/acme", bytes.NewReader(body))
	req.Header.Set("X-Samsara-Signature", webhook.ComputeSignature("wh-secret", body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"processed"}`, rec.Body.String())
}

func TestRepliesRequireAuth(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/v1/replies", "", models.InboundReply{TenantID: "acme", FromAddress: "+1555"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReplies_UnregisteredSender(t *testing.T) {
	e := newTestEnv(t)
	token, err := e.validator.Generate("collab", []string{"acme"}, nil)
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/api/v1/replies", token, models.InboundReply{
		TenantID:    "acme",
		FromAddress: "+15550009999",
		Kind:        models.ReplyText,
		Payload:     "hello",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var reply models.StructuredReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, interpreter.UnregisteredSenderReply().Message, reply.Message)
}

func TestReplies_TenantScopeEnforced(t *testing.T) {
	e := newTestEnv(t)
	token, err := e.validator.Generate("collab", []string{"globex"}, nil)
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/api/v1/replies", token, models.InboundReply{
		TenantID:    "acme",
		FromAddress: "+1555",
		Kind:        models.ReplyText,
		Payload:     "hi",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMappingLifecycle(t *testing.T) {
	e := newTestEnv(t)
	token := e.adminToken(t)

	rec := e.do(t, http.MethodPost, "/api/v1/mappings", token, upsertMappingRequest{
		TenantID:         "acme",
		Platform:         models.PlatformSamsara,
		PlatformDriverID: "D1",
		DriverName:       "Rosa Vega",
		Address:          "+15550001111",
		Language:         "en",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/v1/mappings?tenant_id=acme", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Mappings []models.DriverPhoneMapping `json:"mappings"`
		Count    int                         `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Equal(t, 1, listed.Count)
	assert.True(t, listed.Mappings[0].Active)

	rec = e.do(t, http.MethodPost, "/api/v1/mappings/deactivate", token, deactivateMappingRequest{
		TenantID:         "acme",
		Platform:         models.PlatformSamsara,
		PlatformDriverID: "D1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// Deactivated, not deleted.
	mapping, err := e.store.GetDriverMappingByPlatformID(context.Background(), "acme", models.PlatformSamsara, "D1")
	require.NoError(t, err)
	assert.False(t, mapping.Active)
}

func TestMappingsRequireAdminRole(t *testing.T) {
	e := newTestEnv(t)
	token, err := e.validator.Generate("collab", nil, []string{"replies"})
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/api/v1/mappings?tenant_id=acme", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCommLogEndpoint(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.store.AppendCommunicationLog(context.Background(), &models.CommunicationLog{
		TenantID:  "acme",
		Direction: models.DirectionOutbound,
		Status:    models.DeliverySent,
		Timestamp: time.Now().UTC(),
	}))

	rec := e.do(t, http.MethodGet, "/api/v1/comm-log?tenant_id=acme&limit=10", e.adminToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Count)
}
