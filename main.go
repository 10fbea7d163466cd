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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tenant-onboarding-service/internal/background"
	"tenant-onboarding-service/internal/clients"
	"tenant-onboarding-service/internal/config"
	"tenant-onboarding-service/internal/handlers"
	"tenant-onboarding-service/internal/metrics"
	"tenant-onboarding-service/internal/middleware"
	natsClient "tenant-onboarding-service/internal/nats"
	"tenant-onboarding-service/internal/redis"
	"tenant-onboarding-service/internal/repository"
	"tenant-onboarding-service/internal/services"
	"tenant-onboarding-service/internal/session"
	"tenant-onboarding-service/internal/validation"
	"tenant-onboarding-service/internal/wizard"
)

const (
	serviceName    = "tenant-onboarding-service"
	serviceVersion = "1.0.0"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.New()
	logger := newLogger(cfg)
	handlers.SetLogger(logger)
	logger.WithField("environment", cfg.App.Environment).Info("Starting tenant onboarding service...")

	metricsCollector := metrics.New(metrics.Config{ServiceName: serviceName, Namespace: "tenant_onboarding"})

	// Submission audit log (optional)
	var db *gorm.DB
	var recorder services.SubmissionRecorder
	if cfg.Database.Enabled {
		var err error
		db, err = initDatabase(cfg.Database)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize database")
		}
		submissionRepo := repository.NewSubmissionRepository(db)
		if err := submissionRepo.Migrate(); err != nil {
			logger.WithError(err).Fatal("Failed to migrate database")
		}
		recorder = submissionRepo
		logger.Info("Connected to database, submission audit log enabled")
	}

	// Session store: Redis when reachable, in-process otherwise
	var redisClient *redis.Client
	var store session.Store
	var countSessions background.SessionCounter
	if cfg.Redis.Enabled {
		var err error
		redisClient, err = redis.NewClient(cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to Redis, sessions will be kept in memory")
		}
	}
	if redisClient != nil {
		redisStore := redis.NewSessionStore(redisClient)
		store = redisStore
		countSessions = redisStore.CountSessions
		logger.Info("Connected to Redis, sessions stored in Redis")
	} else {
		memStore := session.NewMemoryStore()
		store = memStore
		countSessions = func(ctx context.Context) (int, error) { return memStore.Len(), nil }
	}

	// Event publishing (optional)
	var nc *natsClient.Client
	var events services.EventPublisher
	if cfg.NATS.Enabled {
		var err error
		nc, err = natsClient.NewClient(natsClient.DefaultConfig(cfg.NATS.URL), logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to NATS, event publishing disabled")
			nc = nil
		} else {
			events = nc
			logger.Info("Connected to NATS successfully")
		}
	}

	backendClient := clients.NewBackendClient(cfg.Backend, logger)
	validator := validation.New()

	parkingSvc := services.NewParkingService(backendClient, metricsCollector, logger)
	orchestrator := wizard.NewOrchestrator(validator, backendClient, parkingSvc, store, logger)
	onboardingSvc := services.NewOnboardingService(store, orchestrator, recorder, events, cfg.Wizard, metricsCollector, logger)
	financeSvc := services.NewFinanceService(backendClient, validator, cfg.Wizard.Currency, logger)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	bgRunner := background.NewRunner(onboardingSvc, cfg.Wizard, logger)
	bgRunner.SetSessionCounter(countSessions, metricsCollector)
	bgRunner.SetLimiter(limiter)
	bgRunner.Start()

	healthOpts := []handlers.HealthOption{handlers.WithBackend(backendClient)}
	if db != nil {
		healthOpts = append(healthOpts, handlers.WithDatabase(db))
	}
	if redisClient != nil {
		healthOpts = append(healthOpts, handlers.WithRedis(redisClient))
	}
	if nc != nil {
		healthOpts = append(healthOpts, handlers.WithNATS(nc))
	}

	router := setupRouter(
		cfg,
		logger,
		handlers.NewHealthHandler(serviceName, serviceVersion, healthOpts...),
		handlers.NewOnboardingHandler(onboardingSvc, cfg.Wizard.MaxUploadBytes),
		handlers.NewParkingHandler(parkingSvc),
		handlers.NewFinanceHandler(financeSvc, cfg.Wizard.MaxUploadBytes),
		limiter,
		metricsCollector,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Stop background jobs first
	bgRunner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	// Persist pending drafts before the store goes away
	onboardingSvc.Close()

	if nc != nil {
		nc.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.WithError(err).Error("Error closing Redis connection")
		}
	}

	logger.Info("Server exited")
}

func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	healthHandler *handlers.HealthHandler,
	onboardingHandler *handlers.OnboardingHandler,
	parkingHandler *handlers.ParkingHandler,
	financeHandler *handlers.FinanceHandler,
	limiter *middleware.RateLimiter,
	metricsCollector *metrics.Metrics,
) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Content-Disposition"}
	corsConfig.AllowCredentials = true

	router.Use(cors.New(corsConfig))
	router.Use(middleware.RequestID())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(metricsCollector.Middleware())

	router.GET("/metrics", gin.WrapH(metricsCollector.Handler()))
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	limit := limiter.Middleware()
	api := router.Group("/api/v1")
	{
		onboardingHandler.RegisterRoutes(api, limit)
		api.GET("/parking/available", parkingHandler.AvailableSpots)
		financeHandler.RegisterRoutes(api, limit)
	}

	return router
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.App.LogFormat == "json" || cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}
