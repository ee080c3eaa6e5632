// Package interpreter turns driver replies into normalized vendor updates
// and driver-facing acknowledgements. Dispatch is an exhaustive match over
// (trip phase, reply kind, payload); every branch lands somewhere, the
// default arm included.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// Action is the closed set of things a driver reply can mean.
type Action string

const (
	ActionConfirmArrival  Action = "confirm_arrival"
	ActionStartLoading    Action = "start_loading"
	ActionLoadingComplete Action = "loading_complete"
	ActionStartUnloading  Action = "start_unloading"
	ActionConfirmDelivery Action = "confirm_delivery"
	ActionETA15           Action = "eta_15"
	ActionETA30           Action = "eta_30"
	ActionETA60           Action = "eta_60"
	ActionEmergency       Action = "emergency"
	ActionHelp            Action = "help"
	ActionConfirm         Action = "confirm"
	ActionUploadDocument  Action = "upload_document"
	ActionCallDispatch    Action = "call_dispatch"
	ActionPrivacyInfo     Action = "privacy_info"
	ActionUnknown         Action = "unknown"
)

// ErrNoActiveTrip is returned by the trip collaborator when the driver has
// no trip in progress.
var ErrNoActiveTrip = errors.New("no active trip")

// TripProvider is the trip-state collaborator. Trip phase advancement from
// geofence data happens outside the bridge; the bridge only reads the
// current snapshot.
type TripProvider interface {
	ActiveTrip(ctx context.Context, tenantID string, mapping *models.DriverPhoneMapping) (*models.TripContext, error)
}

// Outcome is what one driver reply produces: at most one vendor update and
// exactly one driver-facing reply.
type Outcome struct {
	Action Action
	Update *models.FleetSystemAPIUpdate
	Reply  models.StructuredReply
}

// Interpreter maps inbound replies to outcomes.
type Interpreter struct {
	trips TripProvider
}

// New creates an Interpreter over the trip collaborator.
func New(trips TripProvider) *Interpreter {
	return &Interpreter{trips: trips}
}

// payloadActions is the exact-match table for button and quick-reply
// payloads. Unmatched payloads become ActionUnknown, never an error.
var payloadActions = map[string]Action{
	"confirm_arrival":  ActionConfirmArrival,
	"start_loading":    ActionStartLoading,
	"loading_complete": ActionLoadingComplete,
	"start_unloading":  ActionStartUnloading,
	"confirm_delivery": ActionConfirmDelivery,
	"eta_15":           ActionETA15,
	"eta_30":           ActionETA30,
	"eta_60":           ActionETA60,
	"emergency":        ActionEmergency,
	"confirm":          ActionConfirm,
	"upload_document":  ActionUploadDocument,
	"call_dispatch":    ActionCallDispatch,
	"privacy_info":     ActionPrivacyInfo,
}

// keywordRules is the ordered free-text scan. First match wins; a text
// that matches nothing becomes a dispatcher note.
var keywordRules = []struct {
	words  []string
	action Action
}{
	{[]string{"arrived", "here"}, ActionConfirmArrival},
	{[]string{"loaded", "ready"}, ActionLoadingComplete},
	{[]string{"delivered", "done"}, ActionConfirmDelivery},
	{[]string{"help", "problem"}, ActionHelp},
	{[]string{"eta", "time"}, ActionETA30},
}

// UnregisteredSenderReply is the terminal reply for addresses with no
// mapping. No vendor call is made on this path.
func UnregisteredSenderReply() models.StructuredReply {
	return models.StructuredReply{
		Type:    "text",
		Message: "This number isn't registered with a fleet account. Please contact your dispatcher to get set up.",
	}
}

// NoActiveTripReply is the terminal reply when the driver has no trip in
// progress.
func NoActiveTripReply() models.StructuredReply {
	return models.StructuredReply{
		Type:    "text",
		Message: "You don't have an active trip right now. Dispatch will message you when your next route is assigned.",
	}
}

// Interpret resolves the driver's active trip and dispatches on the reply.
func (i *Interpreter) Interpret(ctx context.Context, mapping *models.DriverPhoneMapping, reply models.InboundReply) (Outcome, error) {
	trip, err := i.trips.ActiveTrip(ctx, mapping.TenantID, mapping)
	if errors.Is(err, ErrNoActiveTrip) {
		return Outcome{Action: ActionUnknown, Reply: NoActiveTripReply()}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("resolve active trip: %w", err)
	}
	return i.dispatch(mapping, trip, reply), nil
}

func (i *Interpreter) dispatch(mapping *models.DriverPhoneMapping, trip *models.TripContext, reply models.InboundReply) Outcome {
	switch reply.Kind {
	case models.ReplyButton, models.ReplyQuickReply:
		action, ok := payloadActions[reply.Payload]
		if !ok {
			return Outcome{Action: ActionUnknown, Reply: unknownActionReply()}
		}
		return i.applyAction(action, mapping, trip, reply)

	case models.ReplyText:
		return i.interpretText(mapping, trip, reply)

	case models.ReplyLocation:
		return i.interpretLocation(mapping, trip, reply)

	case models.ReplyDocument:
		return i.interpretDocument(mapping, trip, reply)

	default:
		return Outcome{Action: ActionUnknown, Reply: unknownActionReply()}
	}
}

func (i *Interpreter) interpretText(mapping *models.DriverPhoneMapping, trip *models.TripContext, reply models.InboundReply) Outcome {
	text := strings.ToLower(reply.Payload)
	for _, rule := range keywordRules {
		for _, word := range rule.words {
			if strings.Contains(text, word) {
				if rule.action == ActionETA30 {
					// "eta" in free text asks the driver to pick a delta
					// rather than guessing one for them.
					return Outcome{Action: ActionUnknown, Reply: etaPromptReply()}
				}
				return i.applyAction(rule.action, mapping, trip, reply)
			}
		}
	}

	// Anything else is relayed to dispatch as a trip note.
	return Outcome{
		Action: ActionUnknown,
		Update: i.newUpdate(mapping, trip, models.UpdateNote, func(u *models.FleetSystemAPIUpdate) {
			u.Notes = reply.Payload
		}),
		Reply: models.StructuredReply{
			Type:    "text",
			Message: "Got it, I've passed your message to dispatch.",
		},
	}
}

func (i *Interpreter) interpretLocation(mapping *models.DriverPhoneMapping, trip *models.TripContext, reply models.InboundReply) Outcome {
	if reply.Location == nil {
		return Outcome{Action: ActionUnknown, Reply: unknownActionReply()}
	}
	// A shared location is recorded as-is. Whether it also means arrival
	// is a geofence question, which lives outside the bridge, so the trip
	// phase does not move here.
	return Outcome{
		Action: ActionConfirm,
		Update: i.newUpdate(mapping, trip, models.UpdateLocation, func(u *models.FleetSystemAPIUpdate) {
			u.Location = reply.Location
		}),
		Reply: models.StructuredReply{
			Type:    "text",
			Message: "Location received, thanks. Dispatch can see your position.",
		},
	}
}

func (i *Interpreter) interpretDocument(mapping *models.DriverPhoneMapping, trip *models.TripContext, reply models.InboundReply) Outcome {
	doc := &models.DocumentUpload{
		Filename: reply.Filename,
		Class:    ClassifyDocument(reply.Filename),
		MediaURL: reply.MediaURL,
		TripID:   trip.TripID,
	}
	return Outcome{
		Action: ActionUploadDocument,
		Update: i.newUpdate(mapping, trip, models.UpdateDocument, func(u *models.FleetSystemAPIUpdate) {
			u.Document = doc
		}),
		Reply: models.StructuredReply{
			Type:    "text",
			Message: fmt.Sprintf("Document received and filed as %s for trip %s.", humanDocClass(doc.Class), trip.TripID),
		},
	}
}

func (i *Interpreter) applyAction(action Action, mapping *models.DriverPhoneMapping, trip *models.TripContext, reply models.InboundReply) Outcome {
	switch action {
	case ActionConfirmArrival:
		// Arrival means the pickup when the driver is still inbound, the
		// delivery site once they are loaded.
		status := models.StatusArrivedPickup
		next := models.StructuredReply{
			Type:    "buttons",
			Message: "Arrival confirmed at " + trip.PickupName + ".",
			Buttons: []models.ResponseOption{{ID: "start_loading", Text: "Start loading"}},
		}
		if trip.Phase == models.StatusLoaded || trip.Phase == models.StatusArrivedDelivery || trip.Phase == models.StatusUnloading {
			status = models.StatusArrivedDelivery
			next = models.StructuredReply{
				Type:    "buttons",
				Message: "Arrival confirmed at " + trip.DeliveryName + ".",
				Buttons: []models.ResponseOption{{ID: "start_unloading", Text: "Start unloading"}},
			}
		}
		return Outcome{
			Action: action,
			Update: i.statusUpdate(mapping, trip, status),
			Reply:  next,
		}

	case ActionStartLoading:
		return Outcome{
			Action: action,
			Update: i.statusUpdate(mapping, trip, models.StatusLoading),
			Reply: models.StructuredReply{
				Type:    "buttons",
				Message: "Loading started. Tap below when you're done.",
				Buttons: []models.ResponseOption{{ID: "loading_complete", Text: "Loading complete"}},
			},
		}

	case ActionLoadingComplete:
		return Outcome{
			Action: action,
			Update: i.statusUpdate(mapping, trip, models.StatusLoaded),
			Reply: models.StructuredReply{
				Type:    "text",
				Message: "Loaded and confirmed. Safe drive to " + trip.DeliveryName + ".",
			},
		}

	case ActionStartUnloading:
		return Outcome{
			Action: action,
			Update: i.statusUpdate(mapping, trip, models.StatusUnloading),
			Reply: models.StructuredReply{
				Type:    "buttons",
				Message: "Unloading started.",
				Buttons: []models.ResponseOption{{ID: "confirm_delivery", Text: "Delivery complete"}},
			},
		}

	case ActionConfirmDelivery:
		return Outcome{
			Action: action,
			Update: i.statusUpdate(mapping, trip, models.StatusDelivered),
			Reply: models.StructuredReply{
				Type:    "buttons",
				Message: "Delivery confirmed for trip " + trip.TripID + ". Please send your proof of delivery.",
				Buttons: []models.ResponseOption{{ID: "upload_document", Text: "Send POD"}},
			},
		}

	case ActionETA15, ActionETA30, ActionETA60:
		delta := map[Action]int{ActionETA15: 15, ActionETA30: 30, ActionETA60: 60}[action]
		return Outcome{
			Action: action,
			Update: i.newUpdate(mapping, trip, models.UpdateETA, func(u *models.FleetSystemAPIUpdate) {
				u.ETADeltaMinutes = delta
			}),
			Reply: models.StructuredReply{
				Type:    "text",
				Message: fmt.Sprintf("Thanks, your ETA was pushed back %d minutes and dispatch has been notified.", delta),
			},
		}

	case ActionEmergency:
		return Outcome{
			Action: action,
			Update: i.statusUpdate(mapping, trip, models.StatusEmergencyStopped),
			Reply: models.StructuredReply{
				Type:    "text",
				Message: "Dispatch has been alerted and will call you right away. If this is a life-threatening emergency, call 911.",
			},
		}

	case ActionHelp:
		// A help request alerts dispatch with the driver's words but leaves
		// the trip status alone. Only the explicit emergency button may
		// write StatusEmergencyStopped.
		return Outcome{
			Action: action,
			Update: i.newUpdate(mapping, trip, models.UpdateNote, func(u *models.FleetSystemAPIUpdate) {
				u.Notes = "Driver needs assistance: " + reply.Payload
			}),
			Reply: models.StructuredReply{
				Type:    "text",
				Message: "Dispatch has been alerted and will call you to help. If this is a life-threatening emergency, call 911.",
			},
		}

	case ActionConfirm:
		return Outcome{
			Action: action,
			Update: i.newUpdate(mapping, trip, models.UpdateNote, func(u *models.FleetSystemAPIUpdate) {
				u.Notes = "Driver acknowledged"
			}),
			Reply: models.StructuredReply{
				Type:    "text",
				Message: "Thanks, noted.",
			},
		}

	case ActionUploadDocument:
		return Outcome{
			Action: action,
			Reply: models.StructuredReply{
				Type:    "text",
				Message: "Send the document here as an attachment and it will be filed on your trip.",
			},
		}

	case ActionCallDispatch:
		return Outcome{
			Action: action,
			Reply: models.StructuredReply{
				Type:    "text",
				Message: "Dispatch has been asked to call you at this number.",
			},
		}

	case ActionPrivacyInfo:
		return Outcome{
			Action: action,
			Reply: models.StructuredReply{
				Type:    "text",
				Message: "We only share your trip status and location with your fleet's dispatch team. Reply STOP to pause messages.",
			},
		}

	default:
		return Outcome{Action: ActionUnknown, Reply: unknownActionReply()}
	}
}

func (i *Interpreter) statusUpdate(mapping *models.DriverPhoneMapping, trip *models.TripContext, status models.DriverStatus) *models.FleetSystemAPIUpdate {
	return i.newUpdate(mapping, trip, models.UpdateStatus, func(u *models.FleetSystemAPIUpdate) {
		u.Status = status
	})
}

func (i *Interpreter) newUpdate(mapping *models.DriverPhoneMapping, trip *models.TripContext, kind models.UpdateKind, fill func(*models.FleetSystemAPIUpdate)) *models.FleetSystemAPIUpdate {
	update := &models.FleetSystemAPIUpdate{
		Platform:         mapping.Platform,
		PlatformDriverID: mapping.PlatformDriverID,
		Kind:             kind,
		Timestamp:        time.Now().UTC(),
	}
	fill(update)
	return update
}

func unknownActionReply() models.StructuredReply {
	return models.StructuredReply{
		Type:    "text",
		Message: "Sorry, I didn't understand that. You can reply with the buttons above, or text 'help' to reach dispatch.",
	}
}

func etaPromptReply() models.StructuredReply {
	return models.StructuredReply{
		Type:    "quick_replies",
		Message: "Running behind? How much more time do you need?",
		Buttons: []models.ResponseOption{
			{ID: "eta_15", Text: "15 minutes"},
			{ID: "eta_30", Text: "30 minutes"},
			{ID: "eta_60", Text: "1 hour"},
		},
		QuickReplies: []string{"15 minutes", "30 minutes", "1 hour"},
	}
}

// ClassifyDocument buckets an uploaded filename into a document class.
func ClassifyDocument(filename string) models.DocumentClass {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "pod") || strings.Contains(name, "delivery"):
		return models.DocProofOfDelivery
	case strings.Contains(name, "receipt"):
		return models.DocReceipt
	case strings.Contains(name, "signature"):
		return models.DocSignature
	case strings.Contains(name, "photo") || strings.Contains(name, "image") ||
		strings.HasSuffix(name, ".jpg") || strings.HasSuffix(name, ".jpeg") || strings.HasSuffix(name, ".png"):
		return models.DocPhoto
	default:
		return models.DocOther
	}
}

func humanDocClass(class models.DocumentClass) string {
	switch class {
	case models.DocProofOfDelivery:
		return "a proof of delivery"
	case models.DocReceipt:
		return "a receipt"
	case models.DocSignature:
		return "a signature"
	case models.DocPhoto:
		return "a photo"
	default:
		return "a document"
	}
}
