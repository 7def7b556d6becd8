package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/storefront/catalog-service/internal/api"
	"github.com/storefront/catalog-service/internal/cache"
	"github.com/storefront/catalog-service/internal/db"
	"github.com/storefront/catalog-service/internal/images"
	"github.com/storefront/catalog-service/internal/logger"
	"github.com/storefront/catalog-service/internal/metrics"
	"github.com/storefront/catalog-service/internal/repository"
	"github.com/storefront/catalog-service/internal/services"
	"github.com/storefront/catalog-service/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	zlog, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Encoding:    cfg.LogEncoding,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// Initialize OpenTelemetry metrics; run without export if the exporter is misconfigured
	ctx := context.Background()
	appMetrics, meterProvider, err := metrics.InitMetrics(ctx, cfg, zlog)
	if err != nil {
		zlog.Warn("metrics disabled", zap.Error(err))
		appMetrics = metrics.Noop(cfg.OTELServiceName)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := meterProvider.Shutdown(shutdownCtx); err != nil {
				zlog.Warn("error shutting down meter provider", zap.Error(err))
			}
		}()
	}

	// Initialize database
	database, err := db.NewDB(db.Options{
		DSN:          cfg.GetDSN(),
		ServiceName:  cfg.OTELServiceName,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	}, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Initialize schema
	if schemaSQL, err := os.ReadFile(cfg.SchemaFile); err != nil {
		zlog.Warn("could not read schema file, assuming schema exists", zap.String("file", cfg.SchemaFile), zap.Error(err))
	} else if err := database.InitSchema(ctx, string(schemaSQL)); err != nil {
		zlog.Warn("could not initialize schema, assuming schema exists", zap.Error(err))
	}

	store, err := newCacheStore(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize listing cache", zap.Error(err))
	}
	defer store.Close()

	// Initialize services
	policy := images.URLPolicy{BlobRoute: cfg.ImageRoute, UploadsPrefix: images.DefaultURLPolicy.UploadsPrefix}
	repo := repository.NewProductRepository(database.DB, appMetrics)
	resolver := images.NewResolver(repo, policy, appMetrics, zlog)
	productService := services.NewProductService(
		repo,
		resolver,
		images.NewFiles(cfg.UploadsDir, policy.UploadsPrefix),
		cache.NewListing(store, appMetrics, zlog),
		appMetrics,
		zlog,
	)

	// Setup router
	app := api.NewApp(productService, database, appMetrics, zlog, api.Options{
		UploadsDir:  cfg.UploadsDir,
		ImageMaxAge: cfg.ImageMaxAge,
	})
	router := mux.NewRouter()
	app.SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		zlog.Info("server starting",
			zap.String("port", cfg.AppPort),
			zap.String("cache_backend", cfg.CacheBackend),
			zap.Duration("cache_ttl", cfg.CacheTTL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
		return
	}

	zlog.Info("server exited")
}

func newCacheStore(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (cache.Store, error) {
	switch cfg.CacheBackend {
	case "redis":
		store := cache.NewRedisStore(redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}), cfg.CacheTTL)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			store.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		zlog.Info("listing cache uses redis", zap.String("addr", cfg.RedisAddr))
		return store, nil
	case "memory", "":
		return cache.NewMemoryStore(cfg.CacheTTL, time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}
