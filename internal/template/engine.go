// Package template selects and renders the outbound message for a unified
// event. Rendering is total: the engine always returns a non-empty body,
// falling back through default-language and generic templates rather than
// failing a delivery.
package template

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/fleetbridge-systems/fleetbridge/internal/metrics"
	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/storage"
)

// placeholderPattern matches {{name}} placeholders. Substitution is a
// single literal pass; substituted values are never re-scanned.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Rendered is the outcome of a template render.
type Rendered struct {
	Body    string
	Options []models.ResponseOption
}

// Engine resolves templates across tenant overrides and the built-in
// catalog.
type Engine struct {
	catalog     *Catalog
	store       storage.Store
	defaultLang string
}

// NewEngine creates an Engine. store may be nil when tenant overrides are
// not in play (tests, the seeding CLI).
func NewEngine(catalog *Catalog, store storage.Store, defaultLang string) *Engine {
	if defaultLang == "" {
		defaultLang = "en"
	}
	return &Engine{catalog: catalog, store: store, defaultLang: defaultLang}
}

// Render picks the best template for (event type, platform, language) and
// substitutes vars into it. Lookup order: tenant override, built-in exact
// language, built-in default language, generic fallback. Missing vars
// render as empty strings.
func (e *Engine) Render(ctx context.Context, tenantID string, eventType models.EventType, platform models.Platform, language string, vars map[string]string) Rendered {
	tmpl, tier := e.lookup(ctx, tenantID, eventType, platform, language)
	if tier != "exact" {
		metrics.TemplateFallbacks.WithLabelValues(tier).Inc()
	}

	body := substitute(tmpl.Body, vars)
	if header := substitute(tmpl.Header, vars); header != "" {
		body = header + "\n" + body
	}
	if footer := substitute(tmpl.Footer, vars); footer != "" {
		body = body + "\n" + footer
	}
	if strings.TrimSpace(body) == "" {
		body = genericBody(vars)
	}
	return Rendered{Body: body, Options: tmpl.Options}
}

func (e *Engine) lookup(ctx context.Context, tenantID string, eventType models.EventType, platform models.Platform, language string) (models.MessageTemplate, string) {
	if language == "" {
		language = e.defaultLang
	}

	if e.store != nil {
		override, err := e.store.GetTemplate(ctx, tenantID, eventType, platform, language)
		if err == nil {
			return *override, "exact"
		}
		if !errors.Is(err, storage.ErrNotFound) {
			// Store trouble must not block delivery; fall through to
			// the built-in catalog.
			metrics.TemplateFallbacks.WithLabelValues("store_error").Inc()
		}
	}

	if tmpl, ok := e.catalog.Lookup(eventType, platform, language); ok {
		return tmpl, "exact"
	}
	if language != e.defaultLang {
		if tmpl, ok := e.catalog.Lookup(eventType, platform, e.defaultLang); ok {
			return tmpl, "default_language"
		}
	}
	if tmpl, ok := e.catalog.Lookup(models.EventTypeUnrecognized, platform, e.defaultLang); ok {
		return tmpl, "generic"
	}
	return models.MessageTemplate{}, "generic"
}

func substitute(s string, vars map[string]string) string {
	if s == "" {
		return ""
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		return vars[name]
	})
}

// genericBody is the last resort when even the generic template renders
// empty. Delivery never fails for want of a template.
func genericBody(vars map[string]string) string {
	if desc := vars["description"]; desc != "" {
		return desc
	}
	return "You have a new fleet update."
}

// EventVars builds the substitution map for a unified event and its
// resolved driver mapping.
func EventVars(event models.UnifiedEvent, mapping *models.DriverPhoneMapping, trip *models.TripContext) map[string]string {
	vars := map[string]string{
		"description": event.Description,
		"vehicle_id":  event.VehicleID,
		"trip_id":     event.TripID,
		"time":        event.Timestamp.Format("15:04 MST"),
	}
	if mapping != nil {
		vars["driver_name"] = mapping.DriverName
	}
	if event.Location != nil && event.Location.Address != "" {
		vars["stop_name"] = event.Location.Address
		vars["geofence_name"] = event.Location.Address
	}
	if trip != nil {
		vars["pickup_name"] = trip.PickupName
		vars["delivery_name"] = trip.DeliveryName
		if vars["trip_id"] == "" {
			vars["trip_id"] = trip.TripID
		}
	}
	if msg, ok := event.Metadata["message"].(string); ok {
		vars["message"] = msg
	}
	return vars
}
