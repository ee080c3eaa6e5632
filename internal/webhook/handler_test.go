package webhook

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbridge-systems/fleetbridge/internal/logging"
	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform/motive"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform/samsara"
	"github.com/fleetbridge-systems/fleetbridge/internal/storage"
)

type captureSink struct {
	events []models.FleetSystemEvent
	err    error
}

func (s *captureSink) HandleEvent(_ context.Context, event models.FleetSystemEvent) error {
	s.events = append(s.events, event)
	return s.err
}

func newTestHandler(t *testing.T, sink Sink) *Handler {
	t.Helper()
	secrets := func(tenantID string, p models.Platform) (string, bool) {
		if tenantID != "acme" {
			return "", false
		}
		return "secret-" + string(p), true
	}
	deduper := storage.NewMemoryDeduper(15 * time.Minute)
	return NewHandler(secrets, deduper, sink, logging.New(slog.LevelError, "json"))
}

func deliver(h *Handler, platform, tenant, sigHeader, body string, signed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/"+platform+"/"+tenant, strings.NewReader(body))
	req.SetPathValue("platform", platform)
	req.SetPathValue("tenantID", tenant)
	if signed {
		req.Header.Set(sigHeader, ComputeSignature("secret-"+platform, []byte(body)))
	}
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	return rec
}

func TestHandleWebhook_SamsaraDelivery(t *testing.T) {
	sink := &captureSink{}
	h := newTestHandler(t, sink)

	body := `{"eventId":"evt-100","eventType":"RouteStarted","data":{"driver":{"id":"d-1"},"route":{"id":"R42"}}}`
	rec := deliver(h, "samsara", "acme", samsara.SignatureHeader, body, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"processed"}`, rec.Body.String())
	require.Len(t, sink.events, 1)
	assert.Equal(t, models.PlatformSamsara, sink.events[0].Platform)
	assert.Equal(t, "acme", sink.events[0].TenantID)
	assert.Equal(t, "RouteStarted", sink.events[0].EventType)
	assert.Equal(t, "d-1", sink.events[0].DriverID)
	assert.Equal(t, "R42", sink.events[0].TripID)
}

func TestHandleWebhook_MotiveDelivery(t *testing.T) {
	sink := &captureSink{}
	h := newTestHandler(t, sink)

	body := `{"id":"m-1","action":"dispatch.started","driver_id":77,"dispatch_id":"D9"}`
	rec := deliver(h, "motive", "acme", motive.SignatureHeader, body, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sink.events, 1)
	assert.Equal(t, models.PlatformMotive, sink.events[0].Platform)
	assert.Equal(t, "77", sink.events[0].DriverID)
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	sink := &captureSink{}
	h := newTestHandler(t, sink)

	body := `{"eventId":"evt-101","eventType":"RouteStarted"}`
	req := httptest.NewRequest(http.MethodPost, "/webhooks/samsara/acme", strings.NewReader(body))
	req.SetPathValue("platform", "samsara")
	req.SetPathValue("tenantID", "acme")
	req.Header.Set(samsara.SignatureHeader, ComputeSignature("wrong secret", []byte(body)))
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, sink.events)
}

func TestHandleWebhook_RejectsMissingSignature(t *testing.T) {
	sink := &captureSink{}
	h := newTestHandler(t, sink)

	rec := deliver(h, "samsara", "acme", samsara.SignatureHeader, `{"eventType":"RouteStarted"}`, false)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, sink.events)
}

func TestHandleWebhook_DuplicateAckedNotReprocessed(t *testing.T) {
	sink := &captureSink{}
	h := newTestHandler(t, sink)

	body := `{"eventId":"evt-dup","eventType":"RouteStarted","data":{"driver":{"id":"d-1"}}}`
	first := deliver(h, "samsara", "acme", samsara.SignatureHeader, body, true)
	second := deliver(h, "samsara", "acme", samsara.SignatureHeader, body, true)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, `{"status":"processed"}`, second.Body.String())
	assert.Len(t, sink.events, 1)
}

func TestHandleWebhook_AcksWhenPipelineFails(t *testing.T) {
	sink := &captureSink{err: errors.New("vendor write failed")}
	h := newTestHandler(t, sink)

	body := `{"eventId":"evt-102","eventType":"RouteStarted","data":{"driver":{"id":"d-1"}}}`
	rec := deliver(h, "samsara", "acme", samsara.SignatureHeader, body, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"processed"}`, rec.Body.String())
	require.Len(t, sink.events, 1)
}

func TestHandleWebhook_RejectsMalformedPayload(t *testing.T) {
	sink := &captureSink{}
	h := newTestHandler(t, sink)

	body := `{"missing":"eventType"}`
	rec := deliver(h, "samsara", "acme", samsara.SignatureHeader, body, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, sink.events)
}

func TestHandleWebhook_UnknownRoutes(t *testing.T) {
	sink := &captureSink{}
	h := newTestHandler(t, sink)

	t.Run("unknown tenant", func(t *testing.T) {
		rec := deliver(h, "samsara", "nobody", samsara.SignatureHeader, `{}`, true)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("poll platform has no webhook endpoint", func(t *testing.T) {
		rec := deliver(h, "geotab", "acme", "X-Geotab-Signature", `{}`, true)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown platform", func(t *testing.T) {
		rec := deliver(h, "fleetomatic", "acme", "X-Sig", `{}`, true)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
