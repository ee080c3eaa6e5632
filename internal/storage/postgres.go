package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const mappingColumns = `
	id, tenant_id, platform, platform_driver_id, driver_name, address,
	active, language, source, last_contacted_at, created_at, updated_at
`

func scanMapping(row pgx.Row) (*models.DriverPhoneMapping, error) {
	var m models.DriverPhoneMapping
	err := row.Scan(
		&m.ID,
		&m.TenantID,
		&m.Platform,
		&m.PlatformDriverID,
		&m.DriverName,
		&m.Address,
		&m.Active,
		&m.Language,
		&m.Source,
		&m.LastContactedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan driver mapping: %w", err)
	}
	return &m, nil
}

func (s *PostgresStore) GetDriverMappingByAddress(ctx context.Context, tenantID, address string) (*models.DriverPhoneMapping, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT ` + mappingColumns + ` FROM driver_mappings WHERE tenant_id = $1 AND address = $2`
	return scanMapping(s.pool.QueryRow(ctx, query, tenantID, address))
}

func (s *PostgresStore) GetDriverMappingByPlatformID(ctx context.Context, tenantID string, platform models.Platform, platformDriverID string) (*models.DriverPhoneMapping, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT ` + mappingColumns + ` FROM driver_mappings WHERE tenant_id = $1 AND platform = $2 AND platform_driver_id = $3`
	return scanMapping(s.pool.QueryRow(ctx, query, tenantID, platform, platformDriverID))
}

func (s *PostgresStore) ListDriverMappings(ctx context.Context, tenantID string) ([]models.DriverPhoneMapping, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `SELECT ` + mappingColumns + ` FROM driver_mappings WHERE tenant_id = $1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list driver mappings: %w", err)
	}
	defer rows.Close()

	var out []models.DriverPhoneMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// SaveDriverMapping inserts or updates a mapping. Rows are never deleted;
// deactivation flips the active flag.
func (s *PostgresStore) SaveDriverMapping(ctx context.Context, mapping *models.DriverPhoneMapping) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	if mapping.ID == "" {
		id, _ := uuid.NewV7()
		mapping.ID = id.String()
		mapping.CreatedAt = now
	}
	mapping.UpdatedAt = now

	query := `
		INSERT INTO driver_mappings
		(id, tenant_id, platform, platform_driver_id, driver_name, address,
		 active, language, source, last_contacted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			driver_name = EXCLUDED.driver_name,
			address = EXCLUDED.address,
			active = EXCLUDED.active,
			language = EXCLUDED.language,
			last_contacted_at = EXCLUDED.last_contacted_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.pool.Exec(ctx, query,
		mapping.ID,
		mapping.TenantID,
		mapping.Platform,
		mapping.PlatformDriverID,
		mapping.DriverName,
		mapping.Address,
		mapping.Active,
		mapping.Language,
		mapping.Source,
		mapping.LastContactedAt,
		mapping.CreatedAt,
		mapping.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save driver mapping: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, tenantID string, eventType models.EventType, platform models.Platform, language string) (*models.MessageTemplate, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT event_type, platform, language, header, body, footer, options
		FROM message_templates
		WHERE tenant_id = $1 AND event_type = $2 AND platform = $3 AND language = $4
	`
	var tpl models.MessageTemplate
	var optionsJSON []byte
	err := s.pool.QueryRow(ctx, query, tenantID, eventType, platform, language).Scan(
		&tpl.EventType,
		&tpl.Platform,
		&tpl.Language,
		&tpl.Header,
		&tpl.Body,
		&tpl.Footer,
		&optionsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if len(optionsJSON) > 0 {
		if err := json.Unmarshal(optionsJSON, &tpl.Options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template options: %w", err)
		}
	}
	return &tpl, nil
}

func (s *PostgresStore) AppendCommunicationLog(ctx context.Context, entry *models.CommunicationLog) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if entry.ID == "" {
		id, _ := uuid.NewV7()
		entry.ID = id.String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal log metadata: %w", err)
	}

	query := `
		INSERT INTO communication_log
		(id, tenant_id, mapping_id, message_id, event_id, direction,
		 event_type, status, error_message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.pool.Exec(ctx, query,
		entry.ID,
		entry.TenantID,
		nullable(entry.MappingID),
		nullable(entry.MessageID),
		nullable(entry.EventID),
		entry.Direction,
		entry.EventType,
		entry.Status,
		entry.ErrorMessage,
		metadataJSON,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append communication log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCommunicationLog(ctx context.Context, tenantID string, limit int) ([]models.CommunicationLog, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, tenant_id, mapping_id, message_id, event_id, direction,
		       event_type, status, error_message, metadata, created_at
		FROM communication_log
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list communication log: %w", err)
	}
	defer rows.Close()

	var out []models.CommunicationLog
	for rows.Next() {
		var entry models.CommunicationLog
		var mappingID, messageID, eventID *string
		var metadataJSON []byte
		err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&mappingID,
			&messageID,
			&eventID,
			&entry.Direction,
			&entry.EventType,
			&entry.Status,
			&entry.ErrorMessage,
			&metadataJSON,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan communication log: %w", err)
		}
		entry.MappingID = deref(mappingID)
		entry.MessageID = deref(messageID)
		entry.EventID = deref(eventID)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal log metadata: %w", err)
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetPollingCursor(ctx context.Context, tenantID string, platform models.Platform, subscriptionKey string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT version FROM polling_cursors
		WHERE tenant_id = $1 AND platform = $2 AND subscription_key = $3
	`
	var version int64
	err := s.pool.QueryRow(ctx, query, tenantID, platform, subscriptionKey).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("failed to get polling cursor: %w", err)
	}
	return version, nil
}

// SavePollingCursor upserts the cursor. The WHERE guard on the update arm
// rejects regressions at the database level.
func (s *PostgresStore) SavePollingCursor(ctx context.Context, cursor models.PollingCursor) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		INSERT INTO polling_cursors (tenant_id, platform, subscription_key, version, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (tenant_id, platform, subscription_key) DO UPDATE SET
			version = EXCLUDED.version,
			updated_at = NOW()
		WHERE polling_cursors.version <= EXCLUDED.version
	`
	tag, err := s.pool.Exec(ctx, query, cursor.TenantID, cursor.Platform, cursor.SubscriptionKey, cursor.Version)
	if err != nil {
		return fmt.Errorf("failed to save polling cursor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCursorRegression
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
