package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbridge-systems/fleetbridge/internal/logging"
	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/storage"
)

type scriptedFeeder struct {
	mu      sync.Mutex
	batches []feedBatch
	calls   []int64
}

type feedBatch struct {
	records   []models.FleetSystemEvent
	toVersion int64
	err       error
}

func (f *scriptedFeeder) FetchFeed(_ context.Context, _ string, fromVersion int64) ([]models.FleetSystemEvent, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fromVersion)
	if len(f.batches) == 0 {
		return nil, fromVersion, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch.records, batch.toVersion, batch.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.FleetSystemEvent
	failOn string
}

func (s *recordingSink) HandleEvent(_ context.Context, event models.FleetSystemEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && event.EventID == s.failOn {
		return errors.New("downstream unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.EventID
	}
	return out
}

func feedRecord(id string) models.FleetSystemEvent {
	return models.FleetSystemEvent{
		TenantID:  "acme",
		Platform:  models.PlatformGeotab,
		EventType: "TripStart",
		EventID:   id,
		DriverID:  "d-1",
		Timestamp: time.Now().UTC(),
	}
}

func newTrackerFixture(feeder *scriptedFeeder, sink Sink) (*Tracker, *storage.MemoryStore, Subscription) {
	store := storage.NewMemoryStore()
	tracker := NewTracker(store, storage.NewMemoryDeduper(time.Minute), sink, logging.New(slog.LevelError, "json"))
	sub := Subscription{
		TenantID: "acme",
		Platform: models.PlatformGeotab,
		Key:      "exceptions",
		Interval: time.Hour,
		Feeder:   feeder,
	}
	return tracker, store, sub
}

func TestPoll_EmitsInOrderAndAdvancesCursor(t *testing.T) {
	feeder := &scriptedFeeder{batches: []feedBatch{
		{records: []models.FleetSystemEvent{feedRecord("g-1"), feedRecord("g-2"), feedRecord("g-3")}, toVersion: 30},
	}}
	sink := &recordingSink{}
	tracker, store, sub := newTrackerFixture(feeder, sink)

	tracker.poll(context.Background(), sub)

	assert.Equal(t, []string{"g-1", "g-2", "g-3"}, sink.ids())

	version, err := store.GetPollingCursor(context.Background(), "acme", models.PlatformGeotab, "exceptions")
	require.NoError(t, err)
	assert.Equal(t, int64(30), version)
}

func TestPoll_ResumesFromPersistedCursor(t *testing.T) {
	feeder := &scriptedFeeder{}
	tracker, store, sub := newTrackerFixture(feeder, &recordingSink{})

	require.NoError(t, store.SavePollingCursor(context.Background(), models.PollingCursor{
		TenantID:        "acme",
		Platform:        models.PlatformGeotab,
		SubscriptionKey: "exceptions",
		Version:         12,
	}))

	tracker.poll(context.Background(), sub)

	require.Len(t, feeder.calls, 1)
	assert.Equal(t, int64(12), feeder.calls[0])
}

func TestPoll_FetchFailureHoldsCursor(t *testing.T) {
	feeder := &scriptedFeeder{batches: []feedBatch{
		{err: errors.New("geotab unavailable")},
	}}
	sink := &recordingSink{}
	tracker, store, sub := newTrackerFixture(feeder, sink)

	tracker.poll(context.Background(), sub)

	assert.Empty(t, sink.ids())
	_, err := store.GetPollingCursor(context.Background(), "acme", models.PlatformGeotab, "exceptions")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPoll_MidBatchFailureHoldsCursor(t *testing.T) {
	feeder := &scriptedFeeder{batches: []feedBatch{
		{records: []models.FleetSystemEvent{feedRecord("g-1"), feedRecord("g-2"), feedRecord("g-3")}, toVersion: 30},
	}}
	sink := &recordingSink{failOn: "g-2"}
	tracker, store, sub := newTrackerFixture(feeder, sink)

	tracker.poll(context.Background(), sub)

	// g-1 went through, g-2 failed, g-3 was never attempted and the
	// cursor stayed put so the next cycle re-fetches the batch.
	assert.Equal(t, []string{"g-1"}, sink.ids())
	_, err := store.GetPollingCursor(context.Background(), "acme", models.PlatformGeotab, "exceptions")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPoll_RefetchedDuplicatesSuppressed(t *testing.T) {
	feeder := &scriptedFeeder{batches: []feedBatch{
		{records: []models.FleetSystemEvent{feedRecord("g-1"), feedRecord("g-2")}, toVersion: 20},
		{records: []models.FleetSystemEvent{feedRecord("g-1"), feedRecord("g-2"), feedRecord("g-3")}, toVersion: 30},
	}}
	sink := &recordingSink{failOn: "g-2"}
	tracker, store, sub := newTrackerFixture(feeder, sink)

	tracker.poll(context.Background(), sub)

	// Let the second poll through, g-2 included.
	sink.mu.Lock()
	sink.failOn = ""
	sink.mu.Unlock()

	tracker.poll(context.Background(), sub)

	assert.Equal(t, []string{"g-1", "g-2", "g-3"}, sink.ids())
	version, err := store.GetPollingCursor(context.Background(), "acme", models.PlatformGeotab, "exceptions")
	require.NoError(t, err)
	assert.Equal(t, int64(30), version)
}

func TestTracker_UntrackStopsTask(t *testing.T) {
	feeder := &scriptedFeeder{}
	tracker, _, sub := newTrackerFixture(feeder, &recordingSink{})
	sub.Interval = 5 * time.Millisecond

	tracker.Track(context.Background(), sub)

	assert.Eventually(t, func() bool {
		feeder.mu.Lock()
		defer feeder.mu.Unlock()
		return len(feeder.calls) >= 2
	}, time.Second, time.Millisecond)

	tracker.Untrack(sub)
	tracker.Stop()

	feeder.mu.Lock()
	after := len(feeder.calls)
	feeder.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	feeder.mu.Lock()
	assert.Equal(t, after, len(feeder.calls))
	feeder.mu.Unlock()
}
