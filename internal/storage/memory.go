package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// MemoryStore is a complete in-memory Store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	mappings map[string]*models.DriverPhoneMapping // by mapping ID
	logs     []models.CommunicationLog
	cursors  map[string]int64
	// tenant template overrides keyed by tenant/type/platform/language
	templates map[string]*models.MessageTemplate
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mappings:  make(map[string]*models.DriverPhoneMapping),
		cursors:   make(map[string]int64),
		templates: make(map[string]*models.MessageTemplate),
	}
}

func cursorKey(tenantID string, platform models.Platform, key string) string {
	return tenantID + "/" + string(platform) + "/" + key
}

func templateKey(tenantID string, eventType models.EventType, platform models.Platform, language string) string {
	return tenantID + "/" + string(eventType) + "/" + string(platform) + "/" + language
}

func (s *MemoryStore) GetDriverMappingByAddress(ctx context.Context, tenantID, address string) (*models.DriverPhoneMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.mappings {
		if m.TenantID == tenantID && m.Address == address {
			clone := *m
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetDriverMappingByPlatformID(ctx context.Context, tenantID string, platform models.Platform, platformDriverID string) (*models.DriverPhoneMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.mappings {
		if m.TenantID == tenantID && m.Platform == platform && m.PlatformDriverID == platformDriverID {
			clone := *m
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListDriverMappings(ctx context.Context, tenantID string) ([]models.DriverPhoneMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.DriverPhoneMapping
	for _, m := range s.mappings {
		if m.TenantID == tenantID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveDriverMapping(ctx context.Context, mapping *models.DriverPhoneMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if mapping.ID == "" {
		id, _ := uuid.NewV7()
		mapping.ID = id.String()
		mapping.CreatedAt = now
	}
	mapping.UpdatedAt = now

	clone := *mapping
	s.mappings[mapping.ID] = &clone
	return nil
}

func (s *MemoryStore) GetTemplate(ctx context.Context, tenantID string, eventType models.EventType, platform models.Platform, language string) (*models.MessageTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tpl, ok := s.templates[templateKey(tenantID, eventType, platform, language)]; ok {
		clone := *tpl
		return &clone, nil
	}
	return nil, ErrNotFound
}

// PutTemplate installs a tenant template override. Used by tests and the
// seeding CLI.
func (s *MemoryStore) PutTemplate(tenantID string, tpl *models.MessageTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *tpl
	s.templates[templateKey(tenantID, tpl.EventType, tpl.Platform, tpl.Language)] = &clone
}

func (s *MemoryStore) AppendCommunicationLog(ctx context.Context, entry *models.CommunicationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		id, _ := uuid.NewV7()
		entry.ID = id.String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.logs = append(s.logs, *entry)
	return nil
}

func (s *MemoryStore) ListCommunicationLog(ctx context.Context, tenantID string, limit int) ([]models.CommunicationLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.CommunicationLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].TenantID != tenantID {
			continue
		}
		out = append(out, s.logs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) GetPollingCursor(ctx context.Context, tenantID string, platform models.Platform, subscriptionKey string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.cursors[cursorKey(tenantID, platform, subscriptionKey)]
	if !ok {
		return 0, ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) SavePollingCursor(ctx context.Context, cursor models.PollingCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cursorKey(cursor.TenantID, cursor.Platform, cursor.SubscriptionKey)
	if existing, ok := s.cursors[key]; ok && cursor.Version < existing {
		return ErrCursorRegression
	}
	s.cursors[key] = cursor.Version
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                   { return nil }

// MemoryDeduper is an in-process Deduper with a TTL window.
type MemoryDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
}

// NewMemoryDeduper creates a MemoryDeduper with the given window.
func NewMemoryDeduper(window time.Duration) *MemoryDeduper {
	return &MemoryDeduper{
		seen:   make(map[string]time.Time),
		window: window,
	}
}

func (d *MemoryDeduper) SeenEvent(ctx context.Context, platform models.Platform, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	key := string(platform) + "/" + eventID

	if at, ok := d.seen[key]; ok && now.Sub(at) < d.window {
		return true, nil
	}

	// Drop expired entries opportunistically.
	for k, at := range d.seen {
		if now.Sub(at) >= d.window {
			delete(d.seen, k)
		}
	}

	d.seen[key] = now
	return false, nil
}

func (d *MemoryDeduper) Forget(ctx context.Context, platform models.Platform, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, string(platform)+"/"+eventID)
	return nil
}

func (d *MemoryDeduper) Close() error { return nil }
