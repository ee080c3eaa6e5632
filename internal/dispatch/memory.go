package dispatch

import (
	"context"
	"sync"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// MemoryDispatcher collects outbound messages in memory. Used by tests and
// by the CLI's dry-run mode.
type MemoryDispatcher struct {
	mu       sync.Mutex
	messages []models.OutboundMessage
	err      error
}

// NewMemoryDispatcher creates an empty MemoryDispatcher.
func NewMemoryDispatcher() *MemoryDispatcher {
	return &MemoryDispatcher{}
}

// FailWith makes subsequent Dispatch calls return err.
func (d *MemoryDispatcher) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Dispatch implements Dispatcher.
func (d *MemoryDispatcher) Dispatch(_ context.Context, msg models.OutboundMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.messages = append(d.messages, msg)
	return nil
}

// Messages returns a copy of everything dispatched so far.
func (d *MemoryDispatcher) Messages() []models.OutboundMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.OutboundMessage, len(d.messages))
	copy(out, d.messages)
	return out
}

func (d *MemoryDispatcher) Close() error { return nil }
