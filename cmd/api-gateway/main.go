package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/measure-api/api/swagger"
	"github.com/noah-isme/measure-api/internal/handler"
	"github.com/noah-isme/measure-api/internal/middleware"
	"github.com/noah-isme/measure-api/internal/recognizer"
	"github.com/noah-isme/measure-api/internal/repository"
	"github.com/noah-isme/measure-api/internal/service"
	"github.com/noah-isme/measure-api/internal/validation"
	"github.com/noah-isme/measure-api/pkg/cache"
	"github.com/noah-isme/measure-api/pkg/config"
	"github.com/noah-isme/measure-api/pkg/database"
	"github.com/noah-isme/measure-api/pkg/events"
	"github.com/noah-isme/measure-api/pkg/jobs"
	"github.com/noah-isme/measure-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/measure-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/measure-api/pkg/middleware/requestid"
	"github.com/noah-isme/measure-api/pkg/storage"
)

// @title Measure API
// @version 1.0.0
// @description Water and gas meter readings recognised from photographs
// @BasePath /
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to migrate schema", zap.Error(err))
		}
	}

	gemini, err := recognizer.NewGemini(ctx, cfg.Recognition.APIKey, cfg.Recognition.Model)
	if err != nil {
		logr.Fatal("failed to init recognizer", zap.Error(err))
	}
	defer gemini.Close()

	images, err := storage.NewLocalStorage(cfg.Images.StorageDir)
	if err != nil {
		logr.Fatal("failed to init image storage", zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()

	cacheRepo := repository.NewCacheRepository(nil)
	if cfg.ListCache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, listing cache disabled", zap.Error(err))
		} else {
			cacheRepo = repository.NewCacheRepository(client)
		}
	}
	defer cacheRepo.Close()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.ListCache.TTL, logr, cfg.ListCache.Enabled)

	var sink events.Sink = events.LogSink{Logger: logr}
	if cfg.Events.AMQPURL != "" {
		amqpSink, err := events.NewAMQPSink(cfg.Events.AMQPURL, cfg.Events.Exchange, logr)
		if err != nil {
			logr.Fatal("failed to init event publisher", zap.Error(err))
		}
		defer amqpSink.Close()
		sink = amqpSink
	}
	dispatcher := events.NewDispatcher(sink, jobs.QueueConfig{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.Retries,
		Logger:     logr,
	})
	dispatcher.Start(context.Background())

	measureRepo := repository.NewMeasureRepository(db)
	measureSvc := service.NewMeasureService(service.MeasureServiceParams{
		Repo:       measureRepo,
		Recognizer: recognizer.New(gemini, cfg.Recognition.Timeout, logr),
		Images:     images,
		Validator:  validation.New(nil),
		Cache:      cacheSvc,
		Metrics:    metricsSvc,
		Events:     dispatcher,
		Logger:     logr,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, measureRepo)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.Static("/public", images.Dir())

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.NewMeasureHandler(measureSvc, cfg.Images.PublicBaseURL).Register(r)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown", zap.Error(err))
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		logr.Error("event dispatcher shutdown", zap.Error(err))
	}
}
