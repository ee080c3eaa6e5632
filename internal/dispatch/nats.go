package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// NATSDispatcher publishes outbound messages over a NATS connection.
type NATSDispatcher struct {
	conn *nats.Conn
}

// NATSConfig holds connection settings for the messaging broker.
type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns connection defaults: infinite reconnects with
// a short backoff.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Name:          "fleetbridge",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewNATSDispatcher connects to the broker.
func NewNATSDispatcher(cfg NATSConfig) (*NATSDispatcher, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Name == "" {
		cfg.Name = "fleetbridge"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSDispatcher{conn: conn}, nil
}

// Dispatch publishes the message to the tenant's outbound subject.
func (d *NATSDispatcher) Dispatch(ctx context.Context, msg models.OutboundMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}
	if err := d.conn.Publish(Subject(msg.TenantID), data); err != nil {
		return fmt.Errorf("publish outbound message: %w", err)
	}
	return nil
}

// Close drains the connection so queued messages flush before shutdown.
func (d *NATSDispatcher) Close() error {
	if err := d.conn.Drain(); err != nil {
		d.conn.Close()
		return err
	}
	return nil
}
