package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	invoicingapp "github.com/invoicing/backend/internal/application/invoicing"
	"github.com/invoicing/backend/internal/domain/invoicing"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/invoicing/backend/internal/infrastructure/cache"
	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/invoicing/backend/internal/infrastructure/event"
	"github.com/invoicing/backend/internal/infrastructure/lock"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/infrastructure/persistence"
	"github.com/invoicing/backend/internal/infrastructure/scheduler"
	"github.com/invoicing/backend/internal/infrastructure/storage"
	"github.com/invoicing/backend/internal/infrastructure/telemetry"
	"github.com/invoicing/backend/internal/interfaces/http/handler"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"github.com/invoicing/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Version is overridden at build time with -ldflags "-X main.Version=..."
var Version = "dev"

const apiVersion = "v1"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Bootstrap logger used while the telemetry providers start
	bootLog, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	// OTLP export for traces, metrics and logs
	pipelines, err := telemetry.Start(ctx, telemetry.Options{
		ServiceName:     cfg.Telemetry.ServiceName,
		Endpoint:        cfg.Telemetry.CollectorEndpoint,
		Insecure:        cfg.Telemetry.Insecure,
		Traces:          cfg.Telemetry.Enabled,
		Metrics:         cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		Logs:            cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		SamplingRatio:   cfg.Telemetry.SamplingRatio,
		MetricsInterval: cfg.Telemetry.MetricsInterval,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to start telemetry", zap.Error(err))
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, telemetry.NewLogBridgeCore(pipelines, logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync(log)

	log.Info("Starting invoicing backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	defer shutdownTelemetry(log, pipelines)

	// Initialize database connection with a zap-backed GORM logger
	gormLog := logger.NewSQLLogger(log, logger.SQLLogConfig{
		Level:         cfg.Log.Level,
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		FullSQL:       cfg.Telemetry.DBLogFullSQL,
	})
	db, err := persistence.Open(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.TraceDB(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(ctx, db.DB, pipelines, telemetry.DefaultDBMetricsConfig(), log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		defer dbMetrics.Stop()
	}

	// Redis is optional; without it the prefix cache and scheduler lock stay in process
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err), zap.String("addr", cfg.Redis.Addr()))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	// Events recorded inside invoicing transactions land in the outbox table
	serializer := event.NewInvoicingSerializer()
	outboxPublisher := event.NewOutboxPublisher(serializer)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	store := persistence.NewGormUnitOfWork(db.DB, outboxPublisher.RecorderFor)

	invoiceMetrics, err := telemetry.NewInvoiceMetrics(telemetry.InvoiceMetricsConfig{
		Meter:          pipelines.Meter("invoicing"),
		Logger:         log,
		OutboxProvider: outboxRepo,
	})
	if err != nil {
		log.Fatal("Failed to initialize invoice metrics", zap.Error(err))
	}
	invoiceMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
	defer invoiceMetrics.Stop()

	// Initialize application services
	clock := shared.SystemClock{}
	formatter := invoicing.NewFormatter(invoicing.FormatterConfig{
		SerialWidth: cfg.Invoicing.SerialWidth,
		Separator:   cfg.Invoicing.Separator,
		Locale:      cfg.Invoicing.Locale,
	})
	builder := invoicing.NewSnapshotBuilder(formatter)

	finalizationService := invoicingapp.NewFinalizationService(store, builder, clock, log)
	finalizationService.SetMetrics(invoiceMetrics)

	invoiceService := invoicingapp.NewInvoiceService(store, finalizationService, invoicingapp.Options{
		DefaultPrefix:     cfg.Invoicing.DefaultPrefix,
		AllocationRetries: cfg.Invoicing.AllocationRetries,
		Formatter:         &formatter,
		Clock:             clock,
	}, log)
	invoiceService.SetPrefixCache(cache.NewPrefixCache(redisClient, cfg.Invoicing, log))
	invoiceService.SetMetrics(invoiceMetrics)

	overdueService := invoicingapp.NewOverdueSweepService(store, cfg.Scheduler.BatchSize, log)
	overdueService.SetMetrics(invoiceMetrics)

	// Event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)

	var objectStorage storage.ObjectStorage
	if cfg.Storage.Enabled {
		s3Storage, err := storage.NewS3ObjectStorage(ctx, cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize snapshot archive storage", zap.Error(err))
		}
		if err := s3Storage.EnsureBucket(ctx); err != nil {
			log.Fatal("Snapshot archive bucket unavailable", zap.Error(err), zap.String("bucket", s3Storage.Bucket()))
		}
		objectStorage = s3Storage
		log.Info("Snapshot archive enabled", zap.String("bucket", s3Storage.Bucket()))
	} else {
		objectStorage = storage.NewMemoryObjectStorage()
		log.Info("Snapshot archive storage disabled, archiving to memory")
	}
	archiver := storage.NewSnapshotArchiver(store.Repositories().Snapshots, objectStorage, cfg.Storage.KeyPrefix, invoiceMetrics, log)
	eventBus.Subscribe(archiver, archiver.EventTypes()...)
	log.Info("Event handlers registered", zap.Strings("snapshot_archiver_events", archiver.EventTypes()))

	// The relay moves committed outbox entries onto the bus
	if cfg.Event.ProcessorEnabled {
		relay := event.NewRelay(outboxRepo, eventBus, serializer, event.RelayConfigFrom(cfg.Event), clock, log)
		relayCtx, stopRelay := context.WithCancel(ctx)
		relayDone := make(chan struct{})
		go func() {
			defer close(relayDone)
			relay.Run(relayCtx)
		}()
		defer func() {
			stopRelay()
			<-relayDone
		}()
	}

	// Overdue sweep scheduler
	if cfg.Scheduler.Enabled {
		var locker lock.Locker = lock.NewLocalLocker()
		if redisClient != nil {
			locker = lock.NewRedisLocker(redisClient, cfg.App.Name)
		}
		overdueScheduler := scheduler.NewOverdueScheduler(
			scheduler.OverdueSchedulerConfigFrom(cfg.Scheduler),
			overdueService.SweepOverdue,
			locker,
			clock,
			log,
		)
		if err := overdueScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start overdue scheduler", zap.Error(err))
		}
		defer func() {
			if err := overdueScheduler.Stop(context.Background()); err != nil {
				log.Error("Error stopping overdue scheduler", zap.Error(err))
			}
		}()
		log.Info("Overdue scheduler started",
			zap.Int("sweep_hour", cfg.Scheduler.OverdueSweepHour),
			zap.Duration("check_interval", cfg.Scheduler.CheckInterval),
		)
	}

	// Actor tokens are issued by the identity service and only verified here
	verifier, err := auth.NewActorVerifier(cfg.Auth)
	if err != nil {
		log.Fatal("Failed to initialize actor verifier", zap.Error(err))
	}

	// Initialize HTTP handlers
	healthChecks := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		healthChecks["redis"] = redisPinger{redisClient}
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, Version, healthChecks)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)
	numberingHandler := handler.NewNumberingHandler(invoiceService)

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Tracing and metrics
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	engine.Use(logger.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.AccessLog(log))
	engine.Use(middleware.RequestSpan(pipelines, cfg.Telemetry.ServiceName))
	engine.Use(middleware.AnnotateSpan())
	engine.Use(middleware.HTTPMetrics(pipelines))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(cfg.HTTP))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", systemHandler.Health)

	// Every API route acts on behalf of a verified actor
	actorConfig := middleware.DefaultActorConfig(verifier)
	actorConfig.Logger = log
	actor := middleware.ActorWithConfig(actorConfig)

	resources := append(handler.InvoiceResources(invoiceHandler, numberingHandler, actor),
		handler.SystemResource(systemHandler, actor))
	router.Mount(engine, apiVersion, resources...)
	log.Debug("API routes mounted", zap.Strings("endpoints", router.Endpoints(apiVersion, resources...)))

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
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}

// redisPinger adapts a Redis client to the health check interface
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func shutdownTelemetry(log *zap.Logger, pipelines *telemetry.Pipelines) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pipelines.Shutdown(ctx); err != nil {
		log.Error("Error shutting down telemetry", zap.Error(err))
	}
}
