// Package service wires the pipeline: vendor event in, rendered message
// out, and driver reply in, vendor update out. It owns the communication
// log discipline: one entry per unified event and one per write-back.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fleetbridge-systems/fleetbridge/internal/audit"
	"github.com/fleetbridge-systems/fleetbridge/internal/dispatch"
	"github.com/fleetbridge-systems/fleetbridge/internal/interpreter"
	"github.com/fleetbridge-systems/fleetbridge/internal/logging"
	"github.com/fleetbridge-systems/fleetbridge/internal/metrics"
	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/normalizer"
	"github.com/fleetbridge-systems/fleetbridge/internal/relay"
	"github.com/fleetbridge-systems/fleetbridge/internal/resolver"
	"github.com/fleetbridge-systems/fleetbridge/internal/storage"
	"github.com/fleetbridge-systems/fleetbridge/internal/template"
)

// Pipeline is the outbound path: normalize, resolve, render, dispatch.
type Pipeline struct {
	normalizer *normalizer.Normalizer
	resolver   *resolver.Resolver
	engine     *template.Engine
	dispatcher dispatch.Dispatcher
	relay      *relay.Relay
	interp     *interpreter.Interpreter
	trips      *interpreter.StaticTrips
	store      storage.Store
	audit      audit.Sink
	logger     *logging.Logger
}

// Deps carries the pipeline's collaborators.
type Deps struct {
	Normalizer *normalizer.Normalizer
	Resolver   *resolver.Resolver
	Engine     *template.Engine
	Dispatcher dispatch.Dispatcher
	Relay      *relay.Relay
	Trips      *interpreter.StaticTrips
	Store      storage.Store
	Audit      audit.Sink
	Logger     *logging.Logger
}

// New assembles a Pipeline. Audit defaults to the no-op sink.
func New(deps Deps) *Pipeline {
	if deps.Audit == nil {
		deps.Audit = audit.NopSink{}
	}
	return &Pipeline{
		normalizer: deps.Normalizer,
		resolver:   deps.Resolver,
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		relay:      deps.Relay,
		interp:     interpreter.New(deps.Trips),
		trips:      deps.Trips,
		store:      deps.Store,
		audit:      deps.Audit,
		logger:     deps.Logger,
	}
}

// HandleEvent runs one vendor event through the outbound path. Business
// outcomes that end the flow early, an unmapped driver or a deactivated
// channel, return nil: they are recorded, not retried. Only infrastructure
// failures return an error so the caller's retry semantics kick in.
func (p *Pipeline) HandleEvent(ctx context.Context, event models.FleetSystemEvent) error {
	unified := p.normalizer.Normalize(event)

	if err := p.audit.IndexEvent(ctx, *unified); err != nil {
		p.logger.WarnContext(ctx, "audit indexing failed", logging.EventID(unified.ID), logging.Error(err))
	}

	p.updateTripState(unified)

	if unified.DriverID == "" {
		p.appendLog(ctx, &models.CommunicationLog{
			TenantID:  unified.TenantID,
			EventID:   unified.ID,
			Direction: models.DirectionOutbound,
			EventType: string(unified.Type),
			Status:    models.DeliveryProcessed,
			Metadata:  map[string]any{"skip_reason": "no driver on event"},
		})
		return nil
	}

	mapping, err := p.resolver.ResolveByPlatformDriverID(ctx, unified.TenantID, unified.Platform, unified.DriverID)
	switch {
	case errors.Is(err, resolver.ErrUnknownSender):
		p.logger.InfoContext(ctx, "no mapping for driver, message skipped",
			logging.TenantID(unified.TenantID),
			logging.Platform(string(unified.Platform)),
			logging.DriverID(unified.DriverID),
		)
		p.appendLog(ctx, &models.CommunicationLog{
			TenantID:  unified.TenantID,
			EventID:   unified.ID,
			Direction: models.DirectionOutbound,
			EventType: string(unified.Type),
			Status:    models.DeliveryFailed,
			Metadata:  map[string]any{"skip_reason": "unmapped driver", "driver_id": unified.DriverID},
		})
		return nil
	case errors.Is(err, resolver.ErrChannelInactive):
		p.appendLog(ctx, &models.CommunicationLog{
			TenantID:  unified.TenantID,
			EventID:   unified.ID,
			Direction: models.DirectionOutbound,
			EventType: string(unified.Type),
			Status:    models.DeliveryFailed,
			Metadata:  map[string]any{"skip_reason": "no active channel", "driver_id": unified.DriverID},
		})
		return nil
	case err != nil:
		return fmt.Errorf("resolve driver %s: %w", unified.DriverID, err)
	}

	trip, tripErr := p.trips.ActiveTrip(ctx, unified.TenantID, mapping)
	if tripErr != nil {
		trip = nil
	}

	rendered := p.engine.Render(ctx, unified.TenantID, unified.Type, unified.Platform, mapping.Language,
		template.EventVars(*unified, mapping, trip))

	outbound := models.OutboundMessage{
		TenantID:  unified.TenantID,
		MappingID: mapping.ID,
		Address:   mapping.Address,
		EventID:   unified.ID,
		Body:      rendered.Body,
		Options:   rendered.Options,
		Timestamp: time.Now().UTC(),
	}

	if err := p.dispatcher.Dispatch(ctx, outbound); err != nil {
		metrics.OutboundMessages.WithLabelValues("failed").Inc()
		p.appendLog(ctx, &models.CommunicationLog{
			TenantID:     unified.TenantID,
			MappingID:    mapping.ID,
			EventID:      unified.ID,
			Direction:    models.DirectionOutbound,
			EventType:    string(unified.Type),
			Status:       models.DeliveryFailed,
			ErrorMessage: err.Error(),
		})
		return fmt.Errorf("dispatch outbound message: %w", err)
	}

	metrics.OutboundMessages.WithLabelValues("sent").Inc()
	p.appendLog(ctx, &models.CommunicationLog{
		TenantID:  unified.TenantID,
		MappingID: mapping.ID,
		EventID:   unified.ID,
		Direction: models.DirectionOutbound,
		EventType: string(unified.Type),
		Status:    models.DeliverySent,
	})

	if err := p.resolver.Touch(ctx, mapping); err != nil {
		p.logger.WarnContext(ctx, "updating last contacted failed", logging.DriverID(mapping.PlatformDriverID), logging.Error(err))
	}
	return nil
}

// HandleReply runs one driver reply through the inbound path and returns
// the structured reply for the messaging collaborator to deliver. A vendor
// write-back failure never changes the driver-facing reply.
func (p *Pipeline) HandleReply(ctx context.Context, reply models.InboundReply) (models.StructuredReply, error) {
	mapping, err := p.resolver.ResolveByMessagingAddress(ctx, reply.TenantID, reply.FromAddress)
	switch {
	case errors.Is(err, resolver.ErrUnknownSender), errors.Is(err, resolver.ErrChannelInactive):
		metrics.InboundReplies.WithLabelValues(string(reply.Kind), "unregistered").Inc()
		p.appendLog(ctx, &models.CommunicationLog{
			TenantID:  reply.TenantID,
			MessageID: reply.MessageID,
			Direction: models.DirectionInbound,
			Status:    models.DeliveryFailed,
			Metadata:  map[string]any{"skip_reason": "unregistered sender", "from": reply.FromAddress},
		})
		return interpreter.UnregisteredSenderReply(), nil
	case err != nil:
		return models.StructuredReply{}, fmt.Errorf("resolve sender: %w", err)
	}

	outcome, err := p.interp.Interpret(ctx, mapping, reply)
	if err != nil {
		return models.StructuredReply{}, fmt.Errorf("interpret reply: %w", err)
	}

	if outcome.Update == nil {
		metrics.InboundReplies.WithLabelValues(string(reply.Kind), "no_update").Inc()
		p.appendLog(ctx, &models.CommunicationLog{
			TenantID:  reply.TenantID,
			MappingID: mapping.ID,
			MessageID: reply.MessageID,
			Direction: models.DirectionInbound,
			EventType: string(outcome.Action),
			Status:    models.DeliveryProcessed,
		})
		return outcome.Reply, nil
	}

	// Relay logs the write-back outcome itself; a failure still returns
	// the acknowledgement so the driver never sees a vendor error.
	if err := p.relay.Apply(ctx, mapping, *outcome.Update); err != nil {
		metrics.InboundReplies.WithLabelValues(string(reply.Kind), "relay_failed").Inc()
		return outcome.Reply, nil
	}
	metrics.InboundReplies.WithLabelValues(string(reply.Kind), "relayed").Inc()

	if outcome.Update.Kind == models.UpdateStatus {
		p.trips.SetPhase(reply.TenantID, mapping.Platform, mapping.PlatformDriverID, outcome.Update.Status)
		if outcome.Update.Status == models.StatusDelivered {
			p.trips.ClearTrip(reply.TenantID, mapping.Platform, mapping.PlatformDriverID)
		}
	}
	return outcome.Reply, nil
}

// updateTripState opens and closes the in-process trip snapshot from route
// lifecycle events.
func (p *Pipeline) updateTripState(event *models.UnifiedEvent) {
	if event.DriverID == "" {
		return
	}
	switch event.Type {
	case models.EventRouteStarted:
		trip := models.TripContext{
			TripID: event.TripID,
			Phase:  models.StatusEnRoute,
		}
		if v, ok := event.Metadata["pickup_name"].(string); ok {
			trip.PickupName = v
		}
		if v, ok := event.Metadata["delivery_name"].(string); ok {
			trip.DeliveryName = v
		}
		p.trips.SetTrip(event.TenantID, event.Platform, event.DriverID, trip)
	case models.EventRouteCompleted:
		p.trips.ClearTrip(event.TenantID, event.Platform, event.DriverID)
	}
}

func (p *Pipeline) appendLog(ctx context.Context, entry *models.CommunicationLog) {
	if entry.ID == "" {
		entry.ID = uuid.Must(uuid.NewV7()).String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := p.store.AppendCommunicationLog(ctx, entry); err != nil {
		p.logger.ErrorContext(ctx, "appending communication log failed",
			logging.TenantID(entry.TenantID),
			logging.Error(err),
		)
		return
	}
	if err := p.audit.IndexCommLog(ctx, *entry); err != nil {
		p.logger.WarnContext(ctx, "audit indexing failed", logging.Error(err))
	}
}
