package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcheckout "github.com/flashsale/backend/internal/application/checkout"
	"github.com/flashsale/backend/internal/infrastructure/cache"
	"github.com/flashsale/backend/internal/infrastructure/config"
	"github.com/flashsale/backend/internal/infrastructure/logger"
	"github.com/flashsale/backend/internal/infrastructure/persistence"
	"github.com/flashsale/backend/internal/infrastructure/telemetry"
	"github.com/flashsale/backend/internal/interfaces/http/handler"
	"github.com/flashsale/backend/internal/interfaces/http/middleware"
	"github.com/flashsale/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting checkout coordinator",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize tracing (no-op when disabled)
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Database query tracing
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:  cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Initialize Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()
	log.Info("Redis connected successfully")

	// Transactional store with deadlock retry
	scope := persistence.NewGormTransactionScope(db.DB, persistence.RetryConfig{
		MaxAttempts: cfg.Checkout.TxnMaxAttempts,
		BackoffMin:  cfg.Checkout.DeadlockBackoffMin,
		BackoffMax:  cfg.Checkout.DeadlockBackoffMax,
	}, log)

	// Redis-backed coordination primitives
	stockCache := cache.NewRedisStockCache(redisClient, cfg.Checkout.StockCacheTTL, log)
	admissionLock := cache.NewRedisAdmissionLock(redisClient, cache.AdmissionLockConfig{
		TTL:    cfg.Checkout.AdmissionLockTTL,
		Wait:   cfg.Checkout.AdmissionLockWait,
		Strict: cfg.Checkout.AdmissionLockStrict,
	}, log)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = cfg.App.Name
	}
	sweepLease := cache.NewRedisSweepLease(redisClient, hostname)

	// Initialize application services
	holdService := appcheckout.NewHoldService(scope, stockCache, admissionLock, appcheckout.HoldConfig{
		HoldDuration:  cfg.Checkout.HoldDuration,
		MaxQuantity:   cfg.Checkout.MaxHoldQuantity,
		SweepPageSize: cfg.Sweep.PageSize,
	}, log)
	orderService := appcheckout.NewOrderService(scope, stockCache, log)
	webhookService := appcheckout.NewWebhookService(scope, orderService, stockCache, appcheckout.WebhookConfig{
		OrderWaitAttempts: cfg.Checkout.OrderWaitAttempts,
		OrderWaitSleep:    cfg.Checkout.OrderWaitSleep,
		DrainPageSize:     cfg.Sweep.PageSize,
	}, log)

	// Background sweeper for expired holds and pending webhooks
	if cfg.Sweep.Enabled {
		sweeper := appcheckout.NewSweeper(appcheckout.SweeperConfig{
			Enabled: cfg.Sweep.Enabled,
			Period:  cfg.Sweep.Period,
		}, holdService, webhookService, sweepLease, log)
		if err := sweeper.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sweeper", zap.Error(err))
		}
		defer func() {
			if err := sweeper.Stop(context.Background()); err != nil {
				log.Error("Error stopping sweeper", zap.Error(err))
			}
		}()
		log.Info("Sweeper started", zap.Duration("period", cfg.Sweep.Period))
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Bind validation errors with JSON field names
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack in order: request ID, panic recovery, request
	// logging, tracing
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.CORS(cfg.HTTP.CORSAllowOrigins))

	// Health check endpoint (outside the API prefix)
	systemHandler := handler.NewSystemHandler(db)
	engine.GET("/healthz", systemHandler.Health)

	// Register API routes
	r := router.NewRouter(engine)
	r.Register(handler.NewProductHandler(holdService))
	r.Register(handler.NewHoldHandler(holdService))
	r.Register(handler.NewOrderHandler(orderService))
	r.Register(handler.NewWebhookHandler(webhookService))
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
