// Package models defines the vendor-agnostic data model shared by every
// component of the bridge. Nothing above the platform adapters sees a
// vendor-specific field except the preserved raw payloads kept for audit.
package models

import "time"

// Platform identifies one of the supported fleet telematics vendors.
type Platform string

const (
	PlatformSamsara Platform = "samsara"
	PlatformMotive  Platform = "motive"
	PlatformGeotab  Platform = "geotab"
)

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformSamsara, PlatformMotive, PlatformGeotab:
		return true
	}
	return false
}

// DeliveryMode describes how a platform delivers events to the bridge.
type DeliveryMode string

const (
	DeliveryPush DeliveryMode = "push"
	DeliveryPoll DeliveryMode = "poll"
)

// EventType is the closed internal event vocabulary.
type EventType string

const (
	EventRouteStarted      EventType = "route_started"
	EventRouteCompleted    EventType = "route_completed"
	EventStopArrival       EventType = "stop_arrival"
	EventStopDeparture     EventType = "stop_departure"
	EventGeofenceEntry     EventType = "geofence_entry"
	EventGeofenceExit      EventType = "geofence_exit"
	EventHarshDriving      EventType = "harsh_driving"
	EventSpeeding          EventType = "speeding"
	EventVehicleFault      EventType = "vehicle_fault"
	EventPanic             EventType = "panic"
	EventHOSViolation      EventType = "hos_violation"
	EventDocumentRequested EventType = "document_requested"
	EventMessageReceived   EventType = "message_received"
	EventTypeUnrecognized  EventType = "unrecognized"
)

// Severity classifies a unified event for routing and monitoring.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// UnifiedDriver is a read-only snapshot of a vendor driver record.
// The bridge never persists it; Storage owns persistence concerns.
type UnifiedDriver struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Phone      string         `json:"phone,omitempty"`
	VehicleIDs []string       `json:"vehicle_ids,omitempty"`
	Active     bool           `json:"active"`
	Platform   Platform       `json:"platform"`
	Raw        map[string]any `json:"raw,omitempty"`
}

// UnifiedVehicle is a read-only snapshot of a vendor vehicle record.
type UnifiedVehicle struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	VIN             string         `json:"vin,omitempty"`
	Plate           string         `json:"plate,omitempty"`
	CurrentDriverID string         `json:"current_driver_id,omitempty"`
	Platform        Platform       `json:"platform"`
	Raw             map[string]any `json:"raw,omitempty"`
}

// Location is a point report attached to events and updates.
type Location struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Address   string    `json:"address,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// FleetSystemEvent is the vendor-shaped event as produced by an adapter or
// webhook handler. Consumed exactly once by the normalizer, never mutated.
type FleetSystemEvent struct {
	TenantID  string         `json:"tenant_id"`
	Platform  Platform       `json:"platform"`
	EventType string         `json:"event_type"` // vendor-native identifier
	EventID   string         `json:"event_id"`   // vendor-assigned, dedupe key
	DriverID  string         `json:"driver_id,omitempty"`
	VehicleID string         `json:"vehicle_id,omitempty"`
	Message   string         `json:"message,omitempty"`
	Location  *Location      `json:"location,omitempty"`
	TripID    string         `json:"trip_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// UnifiedEvent is the normalized form of a FleetSystemEvent. Immutable once
// produced. Raw keeps the original vendor payload for audit only.
type UnifiedEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	TenantID    string         `json:"tenant_id"`
	DriverID    string         `json:"driver_id,omitempty"`
	VehicleID   string         `json:"vehicle_id,omitempty"`
	TripID      string         `json:"trip_id,omitempty"`
	Location    *Location      `json:"location,omitempty"`
	Severity    Severity       `json:"severity"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Platform    Platform       `json:"platform"`
	Raw         map[string]any `json:"raw,omitempty"`
}

// MappingSource records how a driver mapping entered the system.
type MappingSource string

const (
	SourcePlatformDiscovered MappingSource = "platform_discovered"
	SourceManual             MappingSource = "manual"
)

// DriverPhoneMapping links a vendor-native driver identity to a messaging
// address. Never deleted, only deactivated; the audit trail depends on it.
type DriverPhoneMapping struct {
	ID               string        `json:"id"`
	TenantID         string        `json:"tenant_id"`
	Platform         Platform      `json:"platform"`
	PlatformDriverID string        `json:"platform_driver_id"`
	DriverName       string        `json:"driver_name"`
	Address          string        `json:"address"` // messaging address
	Active           bool          `json:"active"`
	Language         string        `json:"language"`
	Source           MappingSource `json:"source"`
	LastContactedAt  *time.Time    `json:"last_contacted_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// ResponseOption is a tappable reply offered alongside an outbound message.
type ResponseOption struct {
	ID   string `json:"id"`   // payload returned when tapped
	Text string `json:"text"` // button label
}

// MessageTemplate maps (event type, platform, language) to a message body.
// Looked up, never mutated by the bridge.
type MessageTemplate struct {
	EventType EventType        `json:"event_type"`
	Platform  Platform         `json:"platform"`
	Language  string           `json:"language"`
	Header    string           `json:"header,omitempty"`
	Body      string           `json:"body"`
	Footer    string           `json:"footer,omitempty"`
	Options   []ResponseOption `json:"options,omitempty"`
}

// ReplyKind classifies an inbound driver reply.
type ReplyKind string

const (
	ReplyButton     ReplyKind = "button"
	ReplyQuickReply ReplyKind = "quick_reply"
	ReplyText       ReplyKind = "text"
	ReplyLocation   ReplyKind = "location"
	ReplyDocument   ReplyKind = "document"
)

// InboundReply is a driver reply as handed over by the messaging collaborator.
type InboundReply struct {
	TenantID    string    `json:"tenant_id"`
	FromAddress string    `json:"from_address"`
	MessageID   string    `json:"message_id"`
	Kind        ReplyKind `json:"kind"`
	Payload     string    `json:"payload"`            // button/quick-reply id or text body
	Filename    string    `json:"filename,omitempty"` // document replies
	MediaURL    string    `json:"media_url,omitempty"`
	Location    *Location `json:"location,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	ReplyToID   string    `json:"reply_to_id,omitempty"`
}

// UpdateKind is the narrow write-back surface permitted by the compliance
// boundary: driver status, location, ETA and document uploads only.
type UpdateKind string

const (
	UpdateStatus   UpdateKind = "status"
	UpdateLocation UpdateKind = "location"
	UpdateETA      UpdateKind = "eta"
	UpdateDocument UpdateKind = "document"
	UpdateNote     UpdateKind = "note"
)

// DriverStatus is the normalized trip status vocabulary written back to vendors.
type DriverStatus string

const (
	StatusEnRoute          DriverStatus = "en_route"
	StatusArrivedPickup    DriverStatus = "arrived_pickup"
	StatusLoading          DriverStatus = "loading"
	StatusLoaded           DriverStatus = "loaded"
	StatusArrivedDelivery  DriverStatus = "arrived_delivery"
	StatusUnloading        DriverStatus = "unloading"
	StatusDelivered        DriverStatus = "delivered"
	StatusDelayed          DriverStatus = "delayed"
	StatusEmergencyStopped DriverStatus = "emergency_stopped"
)

// DocumentClass is the filename-heuristic classification for uploads.
type DocumentClass string

const (
	DocProofOfDelivery DocumentClass = "proof_of_delivery"
	DocReceipt         DocumentClass = "receipt"
	DocSignature       DocumentClass = "signature"
	DocPhoto           DocumentClass = "photo"
	DocOther           DocumentClass = "other"
)

// DocumentUpload is a driver document relayed to the owning platform.
type DocumentUpload struct {
	Filename string        `json:"filename"`
	Class    DocumentClass `json:"class"`
	MediaURL string        `json:"media_url"`
	TripID   string        `json:"trip_id,omitempty"`
}

// FleetSystemAPIUpdate is the only shape ever written back to a vendor.
type FleetSystemAPIUpdate struct {
	Platform         Platform        `json:"platform"`
	PlatformDriverID string          `json:"platform_driver_id"`
	Kind             UpdateKind      `json:"kind"`
	Status           DriverStatus    `json:"status,omitempty"`
	ETADeltaMinutes  int             `json:"eta_delta_minutes,omitempty"`
	Location         *Location       `json:"location,omitempty"`
	Document         *DocumentUpload `json:"document,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	Timestamp        time.Time       `json:"timestamp"`
}

// Direction of a communication log entry.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// DeliveryStatus of a logged message or relay attempt.
type DeliveryStatus string

const (
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryProcessed DeliveryStatus = "processed"
)

// CommunicationLog is the append-only audit trail. Entries are never
// updated; every unified event and every write-back lands here exactly once.
type CommunicationLog struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	MappingID    string         `json:"mapping_id,omitempty"`
	MessageID    string         `json:"message_id,omitempty"`
	EventID      string         `json:"event_id,omitempty"`
	Direction    Direction      `json:"direction"`
	EventType    string         `json:"event_type,omitempty"`
	Status       DeliveryStatus `json:"status"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// PollingCursor is the per-subscription high-water mark for poll-based
// vendors. It must advance monotonically and only after a successful fetch.
type PollingCursor struct {
	TenantID        string    `json:"tenant_id"`
	Platform        Platform  `json:"platform"`
	SubscriptionKey string    `json:"subscription_key"`
	Version         int64     `json:"version"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TripContext is the active-trip snapshot the interpreter dispatches on.
// Provided by the trip collaborator; geofence-driven phase advancement is
// outside the bridge.
type TripContext struct {
	TripID       string       `json:"trip_id"`
	Phase        DriverStatus `json:"phase"`
	PickupName   string       `json:"pickup_name,omitempty"`
	DeliveryName string       `json:"delivery_name,omitempty"`
}

// OutboundMessage is the rendered message handed to the messaging
// collaborator for delivery.
type OutboundMessage struct {
	TenantID  string           `json:"tenant_id"`
	MappingID string           `json:"mapping_id"`
	Address   string           `json:"address"`
	EventID   string           `json:"event_id,omitempty"`
	Body      string           `json:"body"`
	Options   []ResponseOption `json:"options,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// StructuredReply is what the bridge returns to the messaging collaborator
// in response to an inbound driver reply.
type StructuredReply struct {
	Type         string           `json:"type"`
	Message      string           `json:"message"`
	Buttons      []ResponseOption `json:"buttons,omitempty"`
	QuickReplies []string         `json:"quick_replies,omitempty"`
}
