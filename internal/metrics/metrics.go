// Package metrics exposes Prometheus instrumentation for the bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook ingestion
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetbridge_webhook_events_total",
			Help: "Webhook deliveries received, by platform and outcome",
		},
		[]string{"platform", "status"},
	)

	SignatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetbridge_webhook_signature_failures_total",
			Help: "Webhook deliveries rejected for signature mismatch",
		},
		[]string{"platform"},
	)

	DedupeHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetbridge_webhook_dedupe_hits_total",
			Help: "Duplicate webhook deliveries suppressed inside the dedupe window",
		},
		[]string{"platform"},
	)

	// Polling
	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetbridge_poll_ticks_total",
			Help: "Polling fetches, by platform and outcome",
		},
		[]string{"platform", "status"},
	)

	PollRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetbridge_poll_records_total",
			Help: "Feed records emitted by the polling tracker",
		},
		[]string{"platform"},
	)

	// Normalization
	EventsNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetbridge_events_normalized_total",
			Help: "Events normalized, by internal type",
		},
		[]string{"type", "severity"},
	)

	UnmappedEventTypes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetbridge_events_unmapped_total",
			Help: "Vendor event types that fell back to the unrecognized type",
		},
		[]string{"platform"},
	)

	// Template engine
	TemplateFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetbridge_template_fallbacks_total",
			Help: "Template lookups served by a fallback tier",
		},
		[]string{"tier"},
	)

	// Relay
	RelayUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetbridge_relay_updates_total",
			Help: "Vendor write-backs attempted, by platform and outcome",
		},
		[]string{"platform", "status"},
	)

	RelayDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetbridge_relay_duration_seconds",
			Help:    "Duration of vendor write-back calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Outbound messaging
	OutboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetbridge_outbound_messages_total",
			Help: "Outbound messages handed to the messaging collaborator",
		},
		[]string{"status"},
	)

	// Inbound replies
	InboundReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetbridge_inbound_replies_total",
			Help: "Driver replies processed, by kind and resolution",
		},
		[]string{"kind", "resolution"},
	)
)
