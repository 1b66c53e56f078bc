package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"course-authoring/internal/config"
	"course-authoring/internal/handler"
	"course-authoring/internal/infrastructure/database"
	"course-authoring/internal/logger"
	"course-authoring/internal/metrics"
	"course-authoring/internal/push"
	"course-authoring/internal/repository"
	"course-authoring/internal/service"
	"course-authoring/internal/validator"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration",
			slog.String("error", err.Error()))
	}
	logger.Setup(os.Stdout, cfg.LogLevel)

	var (
		courseRepo repository.CourseRepository
		assetRepo  repository.AssetRepository
		optionRepo repository.OptionRepository
		pinger     database.Pinger = database.NopPinger{}
	)

	switch cfg.Storage {
	case config.StoragePostgres:
		poolCfg := database.PoolConfig{
			Host:              cfg.DBHost,
			Port:              cfg.DBPort,
			User:              cfg.DBUser,
			Password:          cfg.DBPassword,
			Database:          cfg.DBName,
			SSLMode:           cfg.DBSSLMode,
			MaxConns:          cfg.DBMaxConns,
			MinConns:          cfg.DBMinConns,
			MaxConnLifetime:   cfg.DBMaxConnLifetime,
			MaxConnIdleTime:   cfg.DBMaxConnIdleTime,
			HealthCheckPeriod: cfg.DBHealthCheckPeriod,
			TraceQueries:      cfg.DBTraceQueries,
		}
		if cfg.MigrateOnStart {
			if err := database.RunMigrations(cfg.MigrationsPath, poolCfg.URL()); err != nil {
				logger.Fatal("Failed to run migrations",
					slog.String("error", err.Error()))
			}
		}

		pool, err := database.NewPostgres(context.Background(), poolCfg)
		if err != nil {
			logger.Fatal("Failed to connect to database",
				slog.String("error", err.Error()))
		}
		defer pool.Close()

		sampler := metrics.StartPoolSampler(metrics.PgxPoolSource(pool), 15*time.Second)
		defer sampler.Stop()

		courseRepo = repository.NewPostgresCourseRepository(pool)
		assetRepo = repository.NewPostgresAssetRepository(pool)
		optionRepo = repository.NewPostgresOptionRepository(pool)
		pinger = pool
	case config.StorageMemory:
		logger.Warn("Using in-memory storage; data is lost on restart")
		courses := repository.NewMemoryCourseRepository()
		courseRepo = courses
		assetRepo = repository.NewMemoryAssetRepository(courses)
		optionRepo = repository.NewMemoryOptionRepository(repository.DefaultCatalog())
	}

	// Events reach local SSE subscribers directly, or via NATS so that
	// every instance sees every write.
	hub := push.NewHub(push.DefaultBuffer)
	var publisher push.Publisher = hub
	health := handler.NewHealthHandler(pinger, cfg.Storage, version)
	if cfg.NATSURL != "" {
		nc, err := push.Connect(cfg.NATSURL)
		if err != nil {
			logger.Fatal("Failed to connect to NATS",
				slog.String("error", err.Error()))
		}
		defer nc.Drain()

		if _, err := push.Bridge(nc, hub); err != nil {
			logger.Fatal("Failed to subscribe to course events",
				slog.String("error", err.Error()))
		}
		natsPublisher := push.NewNATSPublisher(nc)
		health.With("nats", natsPublisher)
		publisher = natsPublisher
		logger.Info("Push channel bridged over NATS", slog.String("url", nc.ConnectedUrl()))
	}

	courseService := service.NewCourseService(
		courseRepo,
		assetRepo,
		optionRepo,
		validator.NewValidator(),
		publisher,
		service.CourseServiceConfig{MaxImageBytes: cfg.MaxImageBytes},
	)

	scheduler := service.NewScheduler(courseRepo, courseService, service.SchedulerConfig{
		Interval:  cfg.SchedulerInterval,
		BatchSize: cfg.SchedulerBatchSize,
	})
	scheduler.Start()

	gin.SetMode(gin.ReleaseMode)
	router := handler.NewRouter(
		handler.NewCourseHandler(courseService, hub, cfg.MaxImageBytes),
		health,
	)

	srv := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
		// No WriteTimeout: event streams stay open.
	}

	go func() {
		logger.Info("Starting server",
			slog.String("port", cfg.ServerPort),
			slog.String("storage", cfg.Storage))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server",
				slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	if err := scheduler.Stop(); err != nil {
		logger.Error("Scheduler shutdown error",
			slog.String("error", err.Error()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error",
			slog.String("error", err.Error()))
	}

	logger.Info("Server exited")
}
