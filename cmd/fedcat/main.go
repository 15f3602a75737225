package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fedcat/internal/config"
	"github.com/kailas-cloud/fedcat/internal/db"
	dbMemory "github.com/kailas-cloud/fedcat/internal/db/memory"
	dbRedis "github.com/kailas-cloud/fedcat/internal/db/redis"
	"github.com/kailas-cloud/fedcat/internal/domain/source"
	"github.com/kailas-cloud/fedcat/internal/gateway/local"
	"github.com/kailas-cloud/fedcat/internal/gateway/opensearch"
	logpkg "github.com/kailas-cloud/fedcat/internal/logger"
	"github.com/kailas-cloud/fedcat/internal/metrics"
	"github.com/kailas-cloud/fedcat/internal/repository/rescache"
	chiTransport "github.com/kailas-cloud/fedcat/internal/transport/chi"
	"github.com/kailas-cloud/fedcat/internal/usecase/fanout"
	"github.com/kailas-cloud/fedcat/internal/usecase/federation"
	"github.com/kailas-cloud/fedcat/internal/usecase/ingest"
	healthuc "github.com/kailas-cloud/fedcat/internal/usecase/health"
	resourceuc "github.com/kailas-cloud/fedcat/internal/usecase/resource"
	"github.com/kailas-cloud/fedcat/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting fedcat server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("federation_id", cfg.Federation.ID),
		zap.Int("sources", len(cfg.Federation.Sources)),
		zap.Bool("local_catalog", cfg.Local.Enabled),
		zap.Bool("cache", cfg.Cache.Enabled),
	)

	// Register federation metrics explicitly (no init())
	metrics.RegisterFederationMetrics()

	ctx := context.Background()

	// Resource cache
	var (
		store db.Store
		cache resourceuc.Cache
	)
	if cfg.Cache.Enabled {
		store, err = newStore(cfg.Cache)
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache store not ready", zap.Error(err))
		}
		cache = rescache.New(store, time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.ResourceCacheTotal, logger)
		logger.Info("Resource cache ready", zap.String("driver", cfg.Cache.Driver))
	}

	// Sources
	registry, catalog, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build source registry", zap.Error(err))
	}

	// Use cases
	orchestrator := federation.New(registry, logger,
		federation.WithMaxConcurrency(cfg.Federation.MaxConcurrency),
	)

	facadeVersion := cfg.Federation.Version
	if facadeVersion == "" {
		facadeVersion = version.Version
	}
	facade := fanout.New(cfg.Federation.ID, facadeVersion, orchestrator, registry, logger)

	coordOpts := []resourceuc.Option{
		resourceuc.WithResolveTimeout(time.Duration(cfg.Federation.ResolveTimeoutSec) * time.Second),
	}
	if cache != nil {
		coordOpts = append(coordOpts, resourceuc.WithCache(cache))
	}
	coordinator := resourceuc.New(orchestrator, registry, logger, coordOpts...)

	// Pass nil interface (not typed nil pointer!) when the cache is disabled.
	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(cachePinger, registry)

	// HTTP
	server := chiTransport.NewServer(facade, coordinator, healthSvc, logger,
		chiTransport.WithQueryTimeout(time.Duration(cfg.Federation.QueryTimeoutSec)*time.Second),
	)
	handler := chiTransport.NewRouter(server, logger, cfg.Auth.APIKeys)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// SIGHUP re-applies the local seed file through the ingest plugins.
	if catalog != nil && cfg.Local.SeedFile != "" {
		reload := make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)
		go func() {
			for range reload {
				if _, err := catalog.Reload(ctx); err != nil {
					logger.Error("Seed reload failed", zap.Error(err))
				}
			}
		}()
	}

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

func newStore(cfg config.CacheConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverValkey, config.DriverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Addrs,
			Password:   cfg.Password,
			Standalone: cfg.Standalone,
		})
		if err != nil {
			return nil, fmt.Errorf("%s store: %w", cfg.Driver, err)
		}
		return s, nil
	case config.DriverMemory:
		return dbMemory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// buildRegistry creates one gateway per configured source plus the local catalog.
// The catalog is nil when disabled.
func buildRegistry(ctx context.Context, cfg config.Config, logger *zap.Logger) (*federation.Registry, *local.Catalog, error) {
	var federated, connected []source.Gateway
	for _, sc := range cfg.Federation.Sources {
		g, err := opensearch.New(opensearch.Config{
			ID:               sc.ID,
			URL:              sc.URL,
			ContentTypes:     sc.ContentTypes,
			RateLimit:        sc.RateLimit,
			Burst:            sc.Burst,
			Timeout:          time.Duration(sc.TimeoutSec) * time.Second,
			MaxResourceBytes: sc.MaxResourceBytes,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("source %s: %w", sc.ID, err)
		}
		if sc.Connected {
			connected = append(connected, g)
		} else {
			federated = append(federated, g)
		}
	}

	var (
		catalog      *local.Catalog
		localGateway source.Gateway
	)
	if cfg.Local.Enabled {
		c, err := local.New(ctx, local.Config{
			ID:           cfg.Local.ID,
			Version:      version.Version,
			SeedFile:     cfg.Local.SeedFile,
			ResourceRoot: cfg.Local.ResourceRoot,
		}, logger,
			ingest.DeleteLimit{Max: cfg.Local.MaxDeletes},
			ingest.NewAudit(cfg.Local.ID, metrics.IngestTransactionsTotal, logger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("local catalog: %w", err)
		}
		catalog, localGateway = c, c
		if cfg.Local.Federated {
			federated = append(federated, c)
		}
	}

	reg, err := federation.NewRegistry(federated, connected, localGateway)
	if err != nil {
		return nil, nil, fmt.Errorf("registry: %w", err)
	}
	for _, g := range reg.All() {
		logger.Info("Source registered", zap.String("source", g.ID()))
	}
	return reg, catalog, nil
}
