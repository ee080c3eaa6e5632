// Package poller drives poll-mode vendors. One tracker task per
// subscription fetches the vendor feed on a fixed interval, hands records
// to the pipeline in feed order and advances the persisted cursor only
// after the whole batch is processed.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fleetbridge-systems/fleetbridge/internal/logging"
	"github.com/fleetbridge-systems/fleetbridge/internal/metrics"
	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform"
	"github.com/fleetbridge-systems/fleetbridge/internal/storage"
)

// Sink consumes feed records, in order, one at a time.
type Sink interface {
	HandleEvent(ctx context.Context, event models.FleetSystemEvent) error
}

// Subscription describes one polled vendor feed.
type Subscription struct {
	TenantID string
	Platform models.Platform
	Key      string
	Interval time.Duration
	Feeder   platform.Feeder
}

// Tracker owns the polling tasks. Start launches one goroutine per
// subscription; Stop waits for all of them to drain.
type Tracker struct {
	store   storage.Store
	deduper storage.Deduper
	sink    Sink
	logger  *logging.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewTracker creates a Tracker over the given store and pipeline sink.
func NewTracker(store storage.Store, deduper storage.Deduper, sink Sink, logger *logging.Logger) *Tracker {
	return &Tracker{
		store:   store,
		deduper: deduper,
		sink:    sink,
		logger:  logger,
		cancels: make(map[string]context.CancelFunc),
	}
}

func taskKey(sub Subscription) string {
	return sub.TenantID + "/" + string(sub.Platform) + "/" + sub.Key
}

// Track starts polling a subscription. Tracking the same subscription
// twice replaces the previous task.
func (t *Tracker) Track(ctx context.Context, sub Subscription) {
	key := taskKey(sub)

	t.mu.Lock()
	if cancel, ok := t.cancels[key]; ok {
		cancel()
	}
	taskCtx, cancel := context.WithCancel(ctx)
	t.cancels[key] = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.run(taskCtx, sub)
	}()
}

// Untrack stops polling a subscription. The task exits before the next
// tick; an in-flight fetch is cancelled.
func (t *Tracker) Untrack(sub Subscription) {
	key := taskKey(sub)
	t.mu.Lock()
	if cancel, ok := t.cancels[key]; ok {
		cancel()
		delete(t.cancels, key)
	}
	t.mu.Unlock()
}

// Stop cancels every task and waits for them to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	for key, cancel := range t.cancels {
		cancel()
		delete(t.cancels, key)
	}
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Tracker) run(ctx context.Context, sub Subscription) {
	t.logger.Info("polling task started",
		logging.TenantID(sub.TenantID),
		logging.Platform(string(sub.Platform)),
		"subscription", sub.Key,
		"interval", sub.Interval.String(),
	)

	ticker := time.NewTicker(sub.Interval)
	defer ticker.Stop()

	// First fetch immediately rather than one interval in.
	t.poll(ctx, sub)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("polling task stopped",
				logging.TenantID(sub.TenantID),
				logging.Platform(string(sub.Platform)),
				"subscription", sub.Key,
			)
			return
		case <-ticker.C:
			t.poll(ctx, sub)
		}
	}
}

// poll performs one fetch-process-advance cycle. The cursor only moves
// after every record in the batch has been handed to the sink; a mid-batch
// failure leaves it where it was so the next cycle re-fetches from the
// same point. Duplicate records on that path are absorbed by the deduper.
func (t *Tracker) poll(ctx context.Context, sub Subscription) {
	fromVersion, err := t.store.GetPollingCursor(ctx, sub.TenantID, sub.Platform, sub.Key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		metrics.PollTicks.WithLabelValues(string(sub.Platform), "cursor_error").Inc()
		t.logger.Error("loading polling cursor failed",
			logging.TenantID(sub.TenantID),
			logging.Platform(string(sub.Platform)),
			logging.Error(err),
		)
		return
	}

	records, toVersion, err := sub.Feeder.FetchFeed(ctx, sub.Key, fromVersion)
	if err != nil {
		metrics.PollTicks.WithLabelValues(string(sub.Platform), "fetch_error").Inc()
		t.logger.Error("feed fetch failed",
			logging.TenantID(sub.TenantID),
			logging.Platform(string(sub.Platform)),
			"from_version", fromVersion,
			logging.Error(err),
		)
		return
	}

	for _, record := range records {
		if record.EventID != "" {
			seen, err := t.deduper.SeenEvent(ctx, sub.Platform, record.EventID)
			if err == nil && seen {
				metrics.DedupeHits.WithLabelValues(string(sub.Platform)).Inc()
				continue
			}
		}
		if err := t.sink.HandleEvent(ctx, record); err != nil {
			// Unmark so the re-fetched record is processed, not skipped.
			if record.EventID != "" {
				_ = t.deduper.Forget(ctx, sub.Platform, record.EventID)
			}
			metrics.PollTicks.WithLabelValues(string(sub.Platform), "sink_error").Inc()
			t.logger.Error("pipeline rejected feed record, cursor held",
				logging.TenantID(sub.TenantID),
				logging.Platform(string(sub.Platform)),
				logging.EventID(record.EventID),
				logging.Error(err),
			)
			return
		}
		metrics.PollRecords.WithLabelValues(string(sub.Platform)).Inc()
	}

	if toVersion > fromVersion {
		err := t.store.SavePollingCursor(ctx, models.PollingCursor{
			TenantID:        sub.TenantID,
			Platform:        sub.Platform,
			SubscriptionKey: sub.Key,
			Version:         toVersion,
			UpdatedAt:       time.Now().UTC(),
		})
		if err != nil {
			metrics.PollTicks.WithLabelValues(string(sub.Platform), "cursor_error").Inc()
			t.logger.Error("saving polling cursor failed",
				logging.TenantID(sub.TenantID),
				logging.Platform(string(sub.Platform)),
				"to_version", toVersion,
				logging.Error(err),
			)
			return
		}
	}
	metrics.PollTicks.WithLabelValues(string(sub.Platform), "ok").Inc()
}
