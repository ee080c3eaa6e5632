package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/fleetbridge-systems/fleetbridge/internal/audit"
	"github.com/fleetbridge-systems/fleetbridge/internal/auth"
	"github.com/fleetbridge-systems/fleetbridge/internal/config"
	"github.com/fleetbridge-systems/fleetbridge/internal/dispatch"
	"github.com/fleetbridge-systems/fleetbridge/internal/interpreter"
	"github.com/fleetbridge-systems/fleetbridge/internal/logging"
	"github.com/fleetbridge-systems/fleetbridge/internal/models"
	"github.com/fleetbridge-systems/fleetbridge/internal/normalizer"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform/geotab"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform/motive"
	"github.com/fleetbridge-systems/fleetbridge/internal/platform/samsara"
	"github.com/fleetbridge-systems/fleetbridge/internal/poller"
	"github.com/fleetbridge-systems/fleetbridge/internal/relay"
	"github.com/fleetbridge-systems/fleetbridge/internal/resolver"
	"github.com/fleetbridge-systems/fleetbridge/internal/server"
	"github.com/fleetbridge-systems/fleetbridge/internal/service"
	"github.com/fleetbridge-systems/fleetbridge/internal/storage"
	"github.com/fleetbridge-systems/fleetbridge/internal/template"
	"github.com/fleetbridge-systems/fleetbridge/internal/webhook"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)
	logger.Info("starting fleetbridge", logging.Service("fleetbridge"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var store storage.Store
	if cfg.Postgres.Enabled {
		logger.Info("running database migrations")
		m, err := migrate.New("file://migrations", cfg.Postgres.URL)
		if err != nil {
			log.Fatalf("Failed to initialize migrations: %v", err)
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		pg, err := storage.NewPostgresStore(ctx, cfg.Postgres.URL)
		if err != nil {
			log.Fatalf("Failed to connect to PostgreSQL: %v", err)
		}
		store = pg
	} else {
		logger.Warn("postgres disabled, using in-memory store; state is lost on restart")
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	// Dedupe
	var deduper storage.Deduper
	if cfg.Redis.Enabled {
		rd, err := storage.NewRedisDeduper(cfg.Redis.URL, cfg.Dedupe.Window)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		deduper = rd
	} else {
		deduper = storage.NewMemoryDeduper(cfg.Dedupe.Window)
	}
	defer deduper.Close()

	// Outbound messaging
	var dispatcher dispatch.Dispatcher
	if cfg.NATS.Enabled {
		nd, err := dispatch.NewNATSDispatcher(dispatch.NATSConfig{
			URL:           cfg.NATS.URL,
			Name:          "fleetbridge",
			MaxReconnects: -1,
		})
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		dispatcher = nd
	} else {
		logger.Warn("nats disabled, outbound messages are collected in memory")
		dispatcher = dispatch.NewMemoryDispatcher()
	}
	defer dispatcher.Close()

	// Audit sink
	var auditSink audit.Sink = audit.NopSink{}
	if cfg.OpenSearch.Enabled {
		sink, err := audit.NewOpenSearchSink(audit.Config{
			URL:           cfg.OpenSearch.URL,
			Username:      cfg.OpenSearch.Username,
			Password:      cfg.OpenSearch.Password,
			TLSSkipVerify: cfg.OpenSearch.TLSSkipVerify,
			IndexPrefix:   cfg.OpenSearch.IndexPrefix,
		})
		if err != nil {
			log.Fatalf("Failed to connect to OpenSearch: %v", err)
		}
		auditSink = sink
		defer sink.Close(context.Background())
	}

	// Templates
	var catalog *template.Catalog
	if cfg.Templates.Dir != "" {
		catalog, err = template.LoadCatalogDir(cfg.Templates.Dir)
	} else {
		catalog, err = template.LoadBuiltinCatalog()
	}
	if err != nil {
		log.Fatalf("Failed to load template catalogs: %v", err)
	}

	// Vendor adapters
	type tenantAdapter struct {
		tenantID string
		adapter  platform.Provider
	}
	registry := platform.NewRegistry()
	secrets := map[string]string{}
	var adapters []tenantAdapter
	for _, tenant := range cfg.Tenants {
		for _, pc := range tenant.Platforms {
			var adapter platform.Provider
			switch models.Platform(pc.Platform) {
			case models.PlatformSamsara:
				adapter = samsara.New(samsara.Config{
					BaseURL:  pc.BaseURL,
					APIToken: pc.APIToken,
				})
				secrets[tenant.TenantID+"/"+pc.Platform] = pc.WebhookSecret
			case models.PlatformMotive:
				adapter = motive.New(motive.Config{
					BaseURL: pc.BaseURL,
					APIKey:  pc.APIToken,
				})
				secrets[tenant.TenantID+"/"+pc.Platform] = pc.WebhookSecret
			case models.PlatformGeotab:
				adapter = geotab.New(geotab.Config{
					BaseURL:  pc.BaseURL,
					Database: pc.Database,
					Username: pc.Username,
					Password: pc.Password,
					TenantID: tenant.TenantID,
				})
			default:
				log.Fatalf("Unknown platform %q for tenant %s", pc.Platform, tenant.TenantID)
			}
			registry.Register(tenant.TenantID, adapter)
			adapters = append(adapters, tenantAdapter{tenant.TenantID, adapter})
		}
	}

	res := resolver.New(store, logger)
	trips := interpreter.NewStaticTrips()
	pipeline := service.New(service.Deps{
		Normalizer: normalizer.New(),
		Resolver:   res,
		Engine:     template.NewEngine(catalog, store, cfg.Templates.DefaultLanguage),
		Dispatcher: dispatcher,
		Relay:      relay.New(registry, store, logger),
		Trips:      trips,
		Store:      store,
		Audit:      auditSink,
		Logger:     logger,
	})

	// Startup vendor work: validate credentials, sync driver listings,
	// register webhooks, start polling. Best effort apart from polling;
	// a vendor being down must not block the bridge from serving the
	// others.
	tracker := poller.NewTracker(store, deduper, pipeline, logger)
	for _, ta := range adapters {
		go bootstrapAdapter(ctx, cfg, ta.tenantID, ta.adapter, res, tracker, logger)
	}
	defer tracker.Stop()

	// HTTP surface
	secretResolver := func(tenantID string, p models.Platform) (string, bool) {
		s, ok := secrets[tenantID+"/"+string(p)]
		return s, ok && s != ""
	}
	wh := webhook.NewHandler(secretResolver, deduper, pipeline, logger)
	authMW := auth.NewMiddleware(auth.NewTokenValidator(cfg.Auth.JWTSecret))
	handlers := server.NewHandlers(pipeline, store, res, logger)
	router := server.NewRouter(handlers, wh, authMW)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", logging.Error(err))
	}
	cancel()
	tracker.Stop()
	logger.Info("stopped")
}

// bootstrapAdapter brings one (tenant, platform) pair online: credentials,
// driver discovery, webhook registration for push vendors, polling tasks
// for poll vendors.
func bootstrapAdapter(ctx context.Context, cfg *config.Config, tenantID string, adapter platform.Provider, res *resolver.Resolver, tracker *poller.Tracker, logger *logging.Logger) {
	plog := logger.With(logging.TenantID(tenantID), logging.Platform(string(adapter.Platform())))

	if err := adapter.Authenticate(ctx); err != nil {
		plog.Error("vendor authentication failed", logging.Error(err))
		return
	}

	if n, err := res.SyncDrivers(ctx, tenantID, adapter); err != nil {
		plog.Warn("driver discovery sync failed", logging.Error(err))
	} else if n > 0 {
		plog.Info("driver discovery sync complete", "discovered", n)
	}

	pc := platformConfigFor(cfg, tenantID, adapter.Platform())

	if adapter.DeliveryMode() == models.DeliveryPush {
		if cfg.Server.ExternalURL == "" {
			plog.Warn("no external URL configured, skipping webhook registration")
			return
		}
		sub := platform.Subscription{
			CallbackURL: fmt.Sprintf("%s/webhooks/%s/%s", cfg.Server.ExternalURL, adapter.Platform(), tenantID),
			Secret:      pc.WebhookSecret,
			Mode:        models.DeliveryPush,
		}
		if err := adapter.SubscribeToEvents(ctx, nil, sub); err != nil {
			plog.Error("webhook registration failed", logging.Error(err))
		}
		return
	}

	feeder, ok := adapter.(platform.Feeder)
	if !ok {
		plog.Error("poll platform adapter does not implement feed fetching")
		return
	}
	keys := pc.Subscriptions
	if len(keys) == 0 {
		keys = []string{"global"}
	}
	for _, key := range keys {
		tracker.Track(ctx, poller.Subscription{
			TenantID: tenantID,
			Platform: adapter.Platform(),
			Key:      key,
			Interval: cfg.PollIntervalFor(key),
			Feeder:   feeder,
		})
	}
}

func platformConfigFor(cfg *config.Config, tenantID string, p models.Platform) config.PlatformConfig {
	for _, tenant := range cfg.Tenants {
		if tenant.TenantID != tenantID {
			continue
		}
		for _, pc := range tenant.Platforms {
			if pc.Platform == string(p) {
				return pc
			}
		}
	}
	return config.PlatformConfig{}
}
