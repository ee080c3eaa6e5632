// Package server exposes the bridge's HTTP surface: vendor webhooks, the
// reply API for the messaging collaborator, and the admin mapping API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fleetbridge-systems/fleetbridge/internal/auth"
	"github.com/fleetbridge-systems/fleetbridge/internal/logging"
	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/resolver"
	"github.com/fleetbridge-systems/fleetbridge/internal/service"
	"github.com/fleetbridge-systems/fleetbridge/internal/storage"
)

// Handlers carries the API handlers' collaborators.
type Handlers struct {
	pipeline *service.Pipeline
	store    storage.Store
	resolver *resolver.Resolver
	logger   *logging.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(pipeline *service.Pipeline, store storage.Store, res *resolver.Resolver, logger *logging.Logger) *Handlers {
	return &Handlers{pipeline: pipeline, store: store, resolver: res, logger: logger}
}

// HandleReply ingests one driver reply from the messaging collaborator and
// returns the structured reply to deliver back.
func (h *Handlers) HandleReply(w http.ResponseWriter, r *http.Request) {
	var reply models.InboundReply
	if err := json.NewDecoder(r.Body).Decode(&reply); err != nil {
		sendError(w, http.StatusBadRequest, "invalid reply payload")
		return
	}
	if reply.TenantID == "" || reply.FromAddress == "" {
		sendError(w, http.StatusBadRequest, "tenant_id and from_address are required")
		return
	}
	if !tenantAllowed(r.Context(), reply.TenantID) {
		sendError(w, http.StatusForbidden, "token not valid for tenant")
		return
	}
	if reply.Timestamp.IsZero() {
		reply.Timestamp = time.Now().UTC()
	}

	structured, err := h.pipeline.HandleReply(r.Context(), reply)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "reply handling failed",
			logging.TenantID(reply.TenantID),
			logging.Error(err),
		)
		sendError(w, http.StatusInternalServerError, "reply handling failed")
		return
	}
	sendJSON(w, http.StatusOK, structured)
}

// ListMappings returns all driver mappings for a tenant, active or not.
func (h *Handlers) ListMappings(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		sendError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	if !tenantAllowed(r.Context(), tenantID) {
		sendError(w, http.StatusForbidden, "token not valid for tenant")
		return
	}

	mappings, err := h.store.ListDriverMappings(r.Context(), tenantID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "listing mappings failed", logging.TenantID(tenantID), logging.Error(err))
		sendError(w, http.StatusInternalServerError, "listing mappings failed")
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"mappings": mappings, "count": len(mappings)})
}

type upsertMappingRequest struct {
	TenantID         string          `json:"tenant_id"`
	Platform         models.Platform `json:"platform"`
	PlatformDriverID string          `json:"platform_driver_id"`
	DriverName       string          `json:"driver_name"`
	Address          string          `json:"address"`
	Language         string          `json:"language"`
	Active           *bool           `json:"active"`
}

// UpsertMapping creates or updates a driver mapping by operator action.
func (h *Handlers) UpsertMapping(w http.ResponseWriter, r *http.Request) {
	var req upsertMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid mapping payload")
		return
	}
	if req.TenantID == "" || req.PlatformDriverID == "" || req.Address == "" || !req.Platform.Valid() {
		sendError(w, http.StatusBadRequest, "tenant_id, platform, platform_driver_id and address are required")
		return
	}
	if !tenantAllowed(r.Context(), req.TenantID) {
		sendError(w, http.StatusForbidden, "token not valid for tenant")
		return
	}

	mapping := &models.DriverPhoneMapping{
		TenantID:         req.TenantID,
		Platform:         req.Platform,
		PlatformDriverID: req.PlatformDriverID,
		DriverName:       req.DriverName,
		Address:          req.Address,
		Language:         req.Language,
		Active:           true,
		Source:           models.SourceManual,
	}
	if req.Active != nil {
		mapping.Active = *req.Active
	}

	// Preserve identity and provenance when the mapping already exists.
	if existing, err := h.store.GetDriverMappingByPlatformID(r.Context(), req.TenantID, req.Platform, req.PlatformDriverID); err == nil {
		mapping.ID = existing.ID
		mapping.Source = existing.Source
		mapping.CreatedAt = existing.CreatedAt
		if req.Language == "" {
			mapping.Language = existing.Language
		}
	}

	if err := h.store.SaveDriverMapping(r.Context(), mapping); err != nil {
		h.logger.ErrorContext(r.Context(), "saving mapping failed", logging.TenantID(req.TenantID), logging.Error(err))
		sendError(w, http.StatusInternalServerError, "saving mapping failed")
		return
	}
	sendJSON(w, http.StatusOK, mapping)
}

type deactivateMappingRequest struct {
	TenantID         string          `json:"tenant_id"`
	Platform         models.Platform `json:"platform"`
	PlatformDriverID string          `json:"platform_driver_id"`
}

// DeactivateMapping turns a mapping off. Mappings are never deleted; the
// communication log references them.
func (h *Handlers) DeactivateMapping(w http.ResponseWriter, r *http.Request) {
	var req deactivateMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if !tenantAllowed(r.Context(), req.TenantID) {
		sendError(w, http.StatusForbidden, "token not valid for tenant")
		return
	}

	mapping, err := h.store.GetDriverMappingByPlatformID(r.Context(), req.TenantID, req.Platform, req.PlatformDriverID)
	if err != nil {
		sendError(w, http.StatusNotFound, "mapping not found")
		return
	}
	mapping.Active = false
	if err := h.store.SaveDriverMapping(r.Context(), mapping); err != nil {
		h.logger.ErrorContext(r.Context(), "deactivating mapping failed", logging.TenantID(req.TenantID), logging.Error(err))
		sendError(w, http.StatusInternalServerError, "deactivating mapping failed")
		return
	}
	sendJSON(w, http.StatusOK, mapping)
}

// ListCommLog returns recent communication log entries for a tenant.
func (h *Handlers) ListCommLog(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		sendError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}
	if !tenantAllowed(r.Context(), tenantID) {
		sendError(w, http.StatusForbidden, "token not valid for tenant")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	entries, err := h.store.ListCommunicationLog(r.Context(), tenantID, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "listing communication log failed", logging.TenantID(tenantID), logging.Error(err))
		sendError(w, http.StatusInternalServerError, "listing communication log failed")
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// Healthz reports liveness.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports readiness, checking the store.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		sendJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func tenantAllowed(ctx context.Context, tenantID string) bool {
	claims, ok := auth.ClaimsFromContext(ctx)
	if !ok {
		return false
	}
	return claims.AllowsTenant(tenantID)
}

func sendJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func sendError(w http.ResponseWriter, status int, msg string) {
	sendJSON(w, status, map[string]string{"error": msg})
}
