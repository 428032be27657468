// Package main provides the main entry point for the messaging core service
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/udyogsetu/messaging-core/app/handlers"
	"github.com/udyogsetu/messaging-core/app/router"
	"github.com/udyogsetu/messaging-core/app/scheduler"
	"github.com/udyogsetu/messaging-core/app/services"
	businessflow "github.com/udyogsetu/messaging-core/business_flow"
	"github.com/udyogsetu/messaging-core/config"
	"github.com/udyogsetu/messaging-core/models"
	"github.com/udyogsetu/messaging-core/repository"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting messaging core...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Prometheus scraping runs on its own listener so the API's middleware
	// chain and rate limits never apply to it
	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		metricsSrv = startMetricsServer(cfg.Metrics)
	}

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down metrics server: %v", err)
		}
	}

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client used as the best-effort quota
// counter mirror. The service runs without it when disabled or unreachable.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startMetricsServer serves the prometheus registry on a dedicated port
func startMetricsServer(cfg config.MetricsConfig) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	go func() {
		log.Printf("Metrics server starting on %s%s", srv.Addr, cfg.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()

	return srv
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	tenantRepo := repository.NewTenantRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	templateRepo := repository.NewMessageTemplateRepository(db)
	optInRepo := repository.NewOptInRepository(db)
	usageRepo := repository.NewUsageRecordRepository(db)
	mappingRepo := repository.NewCountryProviderMappingRepository(db)
	webhookRepo := repository.NewWebhookEventRepository(db)
	healthRepo := repository.NewProviderHealthRepository(db)

	// Provider registry: adapters plus the country routing table
	registry := services.NewProviderRegistry(cfg, mappingRepo)
	if err := registry.Initialize(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize provider registry: %w", err)
	}

	// Initialize flows
	dispatchFlow := businessflow.NewMessageDispatchFlow(
		tenantRepo,
		messageRepo,
		templateRepo,
		optInRepo,
		usageRepo,
		registry,
		rc,
		cfg.Cache.RedisPrefix,
		db,
	)
	templateFlow := businessflow.NewTemplateFlow(tenantRepo, templateRepo, registry, db)
	webhookFlow := businessflow.NewWebhookFlow(messageRepo, webhookRepo, usageRepo, templateFlow, registry, db)
	triggerFlow := businessflow.NewTriggerFlow(dispatchFlow)
	consentFlow := businessflow.NewConsentFlow(tenantRepo, optInRepo, db)

	// Initialize handlers
	messageHandler := handlers.NewMessageHandler(dispatchFlow, triggerFlow)
	templateHandler := handlers.NewTemplateHandler(templateFlow)
	// The challenge handshake uses the registry's Meta adapter so the
	// verify token always matches the one the send path was built with
	var metaClient *services.MetaClient
	if adapter, ok := registry.Provider(models.ProviderMeta); ok {
		metaClient, _ = adapter.(*services.MetaClient)
	}
	webhookHandler := handlers.NewWebhookHandler(webhookFlow, metaClient, cfg.Messaging.PublicBaseURL)
	consentHandler := handlers.NewConsentHandler(consentFlow)
	healthHandler := handlers.NewHealthHandler(healthRepo, registry)

	appRouter := router.NewFiberRouter(
		cfg,
		messageHandler,
		templateHandler,
		webhookHandler,
		consentHandler,
		healthHandler,
	)

	// Background loops
	monitor := scheduler.NewHealthMonitor(registry, healthRepo, cfg.Messaging.HealthCheckInterval)
	stopFuncs = append(stopFuncs, monitor.Start(context.Background()))

	templateSync := scheduler.NewTemplateSyncScheduler(templateFlow, cfg.Messaging.TemplateSyncInterval)
	stopFuncs = append(stopFuncs, templateSync.Start(context.Background()))

	mappingReload := scheduler.NewMappingReloadScheduler(registry, cfg.Messaging.MappingReloadInterval)
	stopFuncs = append(stopFuncs, mappingReload.Start(context.Background()))

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
