package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetbridge-systems/fleetbridge/internal/auth"
	"github.com/fleetbridge-systems/fleetbridge/internal/middleware"
	"github.com/fleetbridge-systems/fleetbridge/internal/webhook"
)

// NewRouter constructs the ServeMux with all bridge routes registered.
func NewRouter(h *Handlers, wh *webhook.Handler, authMW *auth.Middleware) http.Handler {
	mux := http.NewServeMux()

	// Vendor webhook entry points, authenticated by HMAC signature.
	mux.HandleFunc("POST /webhooks/{platform}/{tenantID}", wh.HandleWebhook)

	// Messaging collaborator surface.
	mux.HandleFunc("POST /api/v1/replies", authMW.RequireAuth(h.HandleReply))

	// Admin surface. Mappings are never deleted, so there is no DELETE.
	mux.HandleFunc("GET /api/v1/mappings", authMW.RequireRole("admin")(h.ListMappings))
	mux.HandleFunc("POST /api/v1/mappings", authMW.RequireRole("admin")(h.UpsertMapping))
	mux.HandleFunc("POST /api/v1/mappings/deactivate", authMW.RequireRole("admin")(h.DeactivateMapping))
	mux.HandleFunc("GET /api/v1/comm-log", authMW.RequireRole("admin")(h.ListCommLog))

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
