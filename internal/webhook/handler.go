// Package webhook exposes the per-(tenant, platform) HTTP entry points for
// push vendors, verifies payload signatures and hands decoded events to the
// relay pipeline.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/fleetbridge-systems/fleetbridge/internal/logging"
	"github.com/fleetbridge-systems/fleetbridge/internal/metrics"
	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform/motive"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform/samsara"
	"github.com/fleetbridge-systems/fleetbridge/internal/storage"
)

// maxBodySize bounds webhook payloads at 1 MiB.
const maxBodySize = 1 << 20

// SecretResolver returns the webhook secret for a (tenant, platform) pair.
type SecretResolver func(tenantID string, p models.Platform) (string, bool)

// Sink consumes decoded vendor events. Downstream failures must not bubble
// up to the HTTP acknowledgement.
type Sink interface {
	HandleEvent(ctx context.Context, event models.FleetSystemEvent) error
}

// Handler serves POST /webhooks/{platform}/{tenantID}.
type Handler struct {
	secrets SecretResolver
	deduper storage.Deduper
	sink    Sink
	logger  *logging.Logger
}

// NewHandler creates a webhook Handler.
func NewHandler(secrets SecretResolver, deduper storage.Deduper, sink Sink, logger *logging.Logger) *Handler {
	return &Handler{
		secrets: secrets,
		deduper: deduper,
		sink:    sink,
		logger:  logger,
	}
}

// HandleWebhook processes one vendor delivery. The contract with vendors:
// 403 on signature mismatch, 200 once the payload parses, even when the
// downstream relay fails. Vendors redeliver on non-2xx and redelivery is
// not a correctness mechanism; failures live in the communication log.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	p := models.Platform(r.PathValue("platform"))
	tenantID := r.PathValue("tenantID")
	if !p.Valid() || p == models.PlatformGeotab || tenantID == "" {
		h.sendError(w, http.StatusNotFound, "unknown webhook endpoint")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	defer r.Body.Close()

	secret, ok := h.secrets(tenantID, p)
	if !ok {
		h.sendError(w, http.StatusNotFound, "unknown webhook endpoint")
		return
	}

	var signature string
	switch p {
	case models.PlatformSamsara:
		signature = r.Header.Get(samsara.SignatureHeader)
	case models.PlatformMotive:
		signature = r.Header.Get(motive.SignatureHeader)
	}

	if !VerifySignature(secret, body, signature) {
		metrics.SignatureFailures.WithLabelValues(string(p)).Inc()
		h.logger.WarnContext(r.Context(), "webhook signature verification failed",
			logging.TenantID(tenantID),
			logging.Platform(string(p)),
		)
		h.sendError(w, http.StatusForbidden, "signature verification failed")
		return
	}

	event, err := h.decode(p, tenantID, body)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(string(p), "parse_error").Inc()
		h.logger.WarnContext(r.Context(), "webhook payload rejected",
			logging.TenantID(tenantID),
			logging.Platform(string(p)),
			logging.Error(err),
		)
		h.sendError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	// Duplicate deliveries inside the dedupe window are acknowledged but
	// not reprocessed.
	if event.EventID != "" {
		seen, err := h.deduper.SeenEvent(r.Context(), p, event.EventID)
		if err != nil {
			h.logger.WarnContext(r.Context(), "dedupe check failed, processing anyway",
				logging.Platform(string(p)),
				logging.Error(err),
			)
		} else if seen {
			metrics.DedupeHits.WithLabelValues(string(p)).Inc()
			h.sendProcessed(w)
			return
		}
	}

	if err := h.sink.HandleEvent(r.Context(), *event); err != nil {
		// Ack anyway; the pipeline has recorded the failure.
		h.logger.ErrorContext(r.Context(), "relay pipeline failed for webhook event",
			logging.TenantID(tenantID),
			logging.Platform(string(p)),
			logging.EventID(event.EventID),
			logging.Error(err),
		)
		metrics.WebhookEventsTotal.WithLabelValues(string(p), "relay_error").Inc()
		h.sendProcessed(w)
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(string(p), "ok").Inc()
	h.sendProcessed(w)
}

func (h *Handler) decode(p models.Platform, tenantID string, body []byte) (*models.FleetSystemEvent, error) {
	switch p {
	case models.PlatformSamsara:
		return samsara.ParseWebhook(tenantID, body)
	default:
		return motive.ParseWebhook(tenantID, body)
	}
}

func (h *Handler) sendProcessed(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "processed"})
}

func (h *Handler) sendError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": msg})
}
