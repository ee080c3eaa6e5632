// Package dispatch hands rendered outbound messages to the messaging
// collaborator. Delivery to the driver's handset happens outside the
// bridge; the boundary is a NATS subject per tenant.
package dispatch

import (
	"context"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// SubjectPrefix is the root of the outbound subject space.
const SubjectPrefix = "fleetbridge.outbound"

// Subject returns the outbound subject for a tenant.
func Subject(tenantID string) string {
	return SubjectPrefix + "." + tenantID
}

// Dispatcher publishes outbound messages for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg models.OutboundMessage) error
	Close() error
}
