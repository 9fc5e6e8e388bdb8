package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/agency-pricing/db/migrations"
	"github.com/richxcame/agency-pricing/internal/pricing"
	"github.com/richxcame/agency-pricing/pkg/config"
	"github.com/richxcame/agency-pricing/pkg/database"
	"github.com/richxcame/agency-pricing/pkg/errors"
	"github.com/richxcame/agency-pricing/pkg/eventbus"
	"github.com/richxcame/agency-pricing/pkg/health"
	"github.com/richxcame/agency-pricing/pkg/logger"
	"github.com/richxcame/agency-pricing/pkg/middleware"
	"github.com/richxcame/agency-pricing/pkg/ratelimit"
	redisclient "github.com/richxcame/agency-pricing/pkg/redis"
	"github.com/richxcame/agency-pricing/pkg/tracing"
	"github.com/richxcame/agency-pricing/pkg/validation"
	"go.uber.org/zap"
)

const serviceName = "agency-pricing"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	version := cfg.Server.Version

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	if err := logger.Init(cfg.Server.Environment, serviceName, cfg.Server.LogLevel); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting pricing service",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	// Initialize Sentry for error tracking
	if err := errors.InitSentry(&errors.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Environment:      cfg.Server.Environment,
		Release:          version,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		ServerName:       serviceName,
	}); err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	} else {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized successfully")
	}

	// Initialize OpenTelemetry tracer
	tp, err := tracing.InitTracer(rootCtx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
	}, logger.Get())
	if err != nil {
		logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
	} else if tp != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Failed to shutdown tracer", zap.Error(err))
			}
		}()
		logger.Info("OpenTelemetry tracing initialized successfully")
	}

	if cfg.Database.RunMigrations {
		if err := database.Migrate(migrations.FS, cfg.Database.URL()); err != nil {
			logger.Fatal("Failed to run database migrations", zap.Error(err))
		}
	}

	db, err := database.NewPostgresPool(rootCtx, &cfg.Database, serviceName)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	redisClient, err := redisclient.NewRedisClient(rootCtx, &cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}()

	limiter := ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit)
	if limiter.Enabled() {
		logger.Info("Rate limiting enabled",
			zap.Int("default_limit", cfg.RateLimit.DefaultLimit),
			zap.Int("default_burst", cfg.RateLimit.DefaultBurst),
			zap.Duration("window", cfg.RateLimit.Window()),
		)
	}

	table, err := pricing.LoadRateTable(cfg.Pricing.RateTableFile)
	if err != nil {
		logger.Fatal("Failed to load rate table", zap.Error(err))
	}
	conditions, err := pricing.NewConditionEvaluator()
	if err != nil {
		logger.Fatal("Failed to initialize condition evaluator", zap.Error(err))
	}
	if err := validation.RegisterGinValidators(); err != nil {
		logger.Fatal("Failed to register validators", zap.Error(err))
	}

	repo := pricing.NewRepository(db)
	service := pricing.NewService(repo, table, conditions, pricing.NewPromoCounter(redisClient.Client), cfg.Pricing)
	handler := pricing.NewHandler(service)

	healthChecks := map[string]health.Checker{
		"database": health.DatabaseChecker(stdlib.OpenDBFromPool(db)),
		"redis":    health.RedisChecker(redisClient),
	}

	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		busCfg := eventbus.DefaultConfig()
		busCfg.URL = cfg.NATS.URL
		busCfg.StreamName = cfg.NATS.StreamName
		busCfg.Name = serviceName

		bus, err = eventbus.New(rootCtx, busCfg)
		if err != nil {
			logger.Warn("Failed to connect event bus, continuing without events", zap.Error(err))
		} else {
			defer bus.Close()
			service.SetPublisher(bus)
			healthChecks["nats"] = health.ConnectedChecker("nats", bus.Connected)
		}
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(time.Duration(cfg.Server.RequestTimeout) * time.Second))
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Metrics())
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware(serviceName))
	}
	router.Use(middleware.ErrorHandler())

	router.GET("/healthz", health.LivenessHandler(serviceName, version))
	router.GET("/health/live", health.LivenessHandler(serviceName, version))
	router.GET("/health/ready", health.ReadinessHandler(serviceName, version, healthChecks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.RateLimit(limiter))
	handler.RegisterRoutes(api, cfg.JWT.Secret, cfg.JWT.Issuer)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
