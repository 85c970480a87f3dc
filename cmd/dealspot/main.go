package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dealspot/dealspot-api/internal/bus"
	"github.com/dealspot/dealspot-api/internal/config"
	"github.com/dealspot/dealspot-api/internal/domain"
	"github.com/dealspot/dealspot-api/internal/handler"
	"github.com/dealspot/dealspot-api/internal/infra/cache"
	"github.com/dealspot/dealspot-api/internal/infra/docstore"
	"github.com/dealspot/dealspot-api/internal/infra/genai"
	"github.com/dealspot/dealspot-api/internal/infra/geo"
	"github.com/dealspot/dealspot-api/internal/infra/observability"
	"github.com/dealspot/dealspot-api/internal/infra/resilience"
	"github.com/dealspot/dealspot-api/internal/port"
	"github.com/dealspot/dealspot-api/internal/service"
	"github.com/dealspot/dealspot-api/internal/session"
	"github.com/dealspot/dealspot-api/internal/store"

	"go.uber.org/zap"
)

func main() {
	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Bool("use_remote_store", cfg.UseRemote),
		zap.Duration("sync_interval", cfg.SyncInterval),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("session_ttl", cfg.SessionTTL),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "dealspot-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics & events ---
	metrics := observability.NewMetrics()
	eventBus := bus.New(metrics)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("external-apis")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var docStore port.DocumentStore
	var snapshots port.SnapshotSource
	if cfg.UseRemote && cfg.DocstoreURL != "" {
		logger.Info("using remote document store", zap.String("docstore_url", cfg.DocstoreURL))
		client := docstore.NewClient(httpClient, cfg.DocstoreURL, cfg.DocstoreAPIKey, cfg.DocstoreServiceKey, cb, resilienceCfg, logger)
		docStore = client
		snapshots = docstore.NewWatcher(client, cfg.SyncInterval, logger)
	} else {
		logger.Warn("remote document store not configured, serving seed data only")
	}

	contentClient := genai.NewClient(httpClient, cfg.ContentAPIURL, cb, resilienceCfg)

	geoCache := cache.New[*domain.Coordinates](cfg.CacheTTL)
	defer geoCache.Close()
	geocoder := geo.NewGeocoderClient(httpClient, cfg.GeocoderAPIURL, cb, resilienceCfg, geoCache)

	// --- Stores ---
	entities := store.New(docStore, eventBus, metrics, logger)
	sessions := session.NewStore(entities, eventBus, cfg.JWTSecret, cfg.SessionTTL, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var waitSync func() error
	if snapshots != nil {
		syncer := store.NewSyncer(entities, snapshots, logger)
		waitSync = syncer.Start(ctx)
	}

	// Session GC.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if dropped := sessions.Purge(); dropped > 0 {
					logger.Debug("expired sessions purged", zap.Int("count", dropped))
				}
			}
		}
	}()

	// --- Content caches ---
	descCache := cache.New[string](cfg.CacheTTL)
	defer descCache.Close()
	listingCache := cache.New[*domain.GeneratedListing](cfg.CacheTTL)
	defer listingCache.Close()
	idemCache := cache.New[domain.RedeemResult](cfg.IdempotencyTTL)
	defer idemCache.Close()

	// --- Services ---
	svcs := handler.Services{
		Sessions:  sessions,
		Ledger:    service.NewLedgerService(sessions, entities, idemCache, metrics, logger),
		Favorites: service.NewFavoritesService(sessions, logger),
		Directory: service.NewDirectoryService(entities, sessions, geocoder, logger),
		Content:   service.NewContentService(contentClient, descCache, listingCache, metrics, logger),
		DocStore:  docStore,
		Metrics:   metrics,
	}

	// --- Router & server ---
	router := handler.NewRouter(svcs, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}
	if waitSync != nil {
		_ = waitSync()
	}
	eventBus.Shutdown()

	logger.Info("server stopped")
}
