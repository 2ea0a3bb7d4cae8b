package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/fornello/stock-service/config"
	"github.com/fornello/stock-service/internal/database"
	"github.com/fornello/stock-service/internal/handlers"
	"github.com/fornello/stock-service/internal/middleware"
	"github.com/fornello/stock-service/internal/jobs"
	"github.com/fornello/stock-service/internal/nfimport"
	"github.com/fornello/stock-service/internal/storage"
	"github.com/fornello/stock-service/internal/telemetry"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().Msg("Starting stock service")

	ctx := context.Background()
	telemetryCleanup := telemetry.MustInit(ctx, telemetry.GetConfigFromEnv())
	defer telemetryCleanup(ctx)

	dbURL := config.GetDatabaseURL()
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL not set")
	}

	if err := database.Connect(
		ctx,
		dbURL,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		cfg.Database.MaxConnLifetime,
		cfg.Database.MaxConnIdleTime,
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer database.Close()

	logger.Info().Msg("Database connected")

	if err := database.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to apply schema")
	}

	uploads, err := storage.NewLocalStorage(cfg.Storage.BasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize upload storage")
	}

	store := database.NewPgStore(database.Pool())
	importService := nfimport.NewService(store, *logger)
	handlers.InitImportHandlers(
		importService,
		cfg.Upload.MaxConcurrent,
		cfg.Upload.MaxFileSizeMB,
		uploads,
		cfg.Upload.ListDefaultLimit,
	)

	go runCleanupLoop(ctx, uploads)

	if cfg.Logging.Level == "info" || cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	setupMiddleware(router, logger)

	public := router.Group("/")
	public.Use(middleware.RateLimitMiddleware())
	{
		public.GET("/health", handlers.HealthCheck)
		public.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware())
	internal.Use(middleware.ServiceRateLimitMiddleware(
		float64(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.BurstSize))
	{
		internal.GET("/health", handlers.HealthCheck)

		imports := internal.Group("/stock/imports")
		{
			imports.POST("", handlers.UploadImportBatch)
			imports.GET("", handlers.ListImportBatches)
			imports.GET("/:id", handlers.GetImportBatch)
			imports.POST("/:id/recompute", handlers.RecomputeImportBatch)
			imports.POST("/:id/map", handlers.MapImportLines)
			imports.POST("/:id/lines/:lineId/conversion-factor", handlers.SetImportLineConversionFactor)
			imports.POST("/:id/apply", handlers.ApplyImportBatch)
			imports.POST("/:id/rollback", handlers.RollbackImportBatch)
			imports.POST("/:id/archive", handlers.ArchiveImportBatch)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "stock-service").Logger()
	return &logger
}

// runCleanupLoop purges expired archived batches and upload archives once a day.
func runCleanupLoop(ctx context.Context, uploads storage.Storage) {
	cfg := jobs.DefaultCleanupConfig()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		jobs.RunDailyCleanup(ctx, database.Pool(), uploads, cfg)
	}
}

func setupMiddleware(router *gin.Engine, logger *zerolog.Logger) {
	router.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("ip", c.ClientIP()).
			Msg("HTTP request")
	})
}
