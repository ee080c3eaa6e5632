// Package audit mirrors unified events and communication log entries into
// OpenSearch for search and retention. The sink is optional; a deployment
// without OpenSearch runs with the no-op sink and loses nothing but search.
package audit

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/fleetbridge-systems/fleetbridge/internal/models"
)

// Sink receives audit records. Implementations must tolerate being called
// from the hot path; errors are logged by callers, never propagated to
// drivers or vendors.
type Sink interface {
	IndexEvent(ctx context.Context, event models.UnifiedEvent) error
	IndexCommLog(ctx context.Context, entry models.CommunicationLog) error
	Close(ctx context.Context) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) IndexEvent(context.Context, models.UnifiedEvent) error       { return nil }
func (NopSink) IndexCommLog(context.Context, models.CommunicationLog) error { return nil }
func (NopSink) Close(context.Context) error                                 { return nil }

// Config holds OpenSearch connection settings.
type Config struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	IndexPrefix   string
}

// OpenSearchSink indexes audit records through a bulk indexer.
type OpenSearchSink struct {
	client  *opensearch.Client
	indexer opensearchutil.BulkIndexer
	prefix  string
}

// NewOpenSearchSink connects to OpenSearch, installs the index template
// and starts the background bulk indexer.
func NewOpenSearchSink(cfg Config) (*OpenSearchSink, error) {
	if cfg.IndexPrefix == "" {
		cfg.IndexPrefix = "fleetbridge-audit"
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("connect to opensearch: %w", err)
	}
	defer info.Body.Close()
	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	s := &OpenSearchSink{client: client, prefix: cfg.IndexPrefix}
	if err := s.createIndexTemplate(); err != nil {
		return nil, err
	}

	indexer, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client:        client,
		Index:         s.writeIndex(),
		FlushInterval: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create bulk indexer: %w", err)
	}
	s.indexer = indexer
	return s, nil
}

func (s *OpenSearchSink) writeIndex() string {
	return s.prefix + "-" + time.Now().UTC().Format("2006.01")
}

// IndexEvent queues one unified event for indexing.
func (s *OpenSearchSink) IndexEvent(ctx context.Context, event models.UnifiedEvent) error {
	return s.add(ctx, "event", event)
}

// IndexCommLog queues one communication log entry for indexing.
func (s *OpenSearchSink) IndexCommLog(ctx context.Context, entry models.CommunicationLog) error {
	return s.add(ctx, "comm_log", entry)
}

func (s *OpenSearchSink) add(ctx context.Context, kind string, record any) error {
	doc := map[string]any{
		"kind":       kind,
		"@timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"record":     record,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	return s.indexer.Add(ctx, opensearchutil.BulkIndexerItem{
		Action: "index",
		Body:   bytes.NewReader(data),
	})
}

// Close flushes the bulk indexer.
func (s *OpenSearchSink) Close(ctx context.Context) error {
	return s.indexer.Close(ctx)
}

func (s *OpenSearchSink) createIndexTemplate() error {
	template := map[string]any{
		"index_patterns": []string{s.prefix + "-*"},
		"template": map[string]any{
			"settings": map[string]any{
				"number_of_shards":   1,
				"number_of_replicas": 0,
				"codec":              "best_compression",
			},
			"mappings": map[string]any{
				"dynamic": true,
				"properties": map[string]any{
					"@timestamp": map[string]any{"type": "date"},
					"kind":       map[string]any{"type": "keyword"},
					"record": map[string]any{
						"properties": map[string]any{
							"tenant_id":   map[string]any{"type": "keyword"},
							"platform":    map[string]any{"type": "keyword"},
							"type":        map[string]any{"type": "keyword"},
							"event_type":  map[string]any{"type": "keyword"},
							"severity":    map[string]any{"type": "keyword"},
							"status":      map[string]any{"type": "keyword"},
							"direction":   map[string]any{"type": "keyword"},
							"driver_id":   map[string]any{"type": "keyword"},
							"vehicle_id":  map[string]any{"type": "keyword"},
							"trip_id":     map[string]any{"type": "keyword"},
							"description": map[string]any{"type": "text"},
							"timestamp":   map[string]any{"type": "date"},
							"raw":         map[string]any{"type": "object", "enabled": false},
						},
					},
				},
			},
		},
		"priority": 100,
	}

	body, err := json.Marshal(template)
	if err != nil {
		return err
	}

	res, err := s.client.Indices.PutIndexTemplate(s.prefix+"-template", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("put index template: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return fmt.Errorf("create index template: %s - %s", res.Status(), string(raw))
	}
	return nil
}
