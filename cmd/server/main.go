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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/streamsave/streamsave-go/internal/cache"
	"github.com/streamsave/streamsave-go/internal/config"
	"github.com/streamsave/streamsave-go/internal/handler"
	"github.com/streamsave/streamsave-go/internal/middleware"
	"github.com/streamsave/streamsave-go/internal/service"
	"github.com/streamsave/streamsave-go/internal/youtube"
	"github.com/streamsave/streamsave-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		logger.Log.Error("Server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	extractor := youtube.NewClient(&http.Client{Timeout: cfg.Resolver.Timeout})
	resolution := service.NewResolutionService(extractor)

	var cachePinger handler.Pinger
	if cfg.Redis.URL != "" {
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Log.Warn("Redis unavailable, resolution cache disabled", zap.Error(err))
		} else {
			defer closeRedis(client)
			resolutionCache := cache.NewResolutionCache(client, cfg.Cache.TTL)
			resolution.WithCache(resolutionCache)
			cachePinger = resolutionCache
			logger.Log.Info("Resolution cache enabled", zap.Duration("ttl", cfg.Cache.TTL))
		}
	}

	// The server publishes nothing itself; readiness reports the broker that carries the
	// CLI's download events so one probe covers the deployment.
	var publisherHealth handler.HealthReporter
	if cfg.RabbitMQ.Enabled {
		publisher, err := service.NewDownloadPublisher(&cfg.RabbitMQ)
		if err != nil {
			logger.Log.Warn("RabbitMQ unavailable, readiness will not report it", zap.Error(err))
		} else {
			defer func() { _ = publisher.Close() }()
			publisherHealth = publisher
		}
	}

	router := newRouter(cfg, resolution, handler.NewHealthHandler(cachePinger, publisherHealth))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Resolver.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Log.Info("Server starting", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Log.Info("Server stopped gracefully")
		return nil
	}
}

func newRouter(cfg *config.Config, resolution handler.VideoInfoService, health *handler.HealthHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.CORS(), middleware.RequestLogger())

	videoInfo := handler.NewVideoInfoHandler(resolution)
	router.GET("/get-video-info", videoInfo.GetVideoInfo)

	router.GET("/health/live", health.LivenessProbe)
	router.GET("/health/ready", health.ReadinessProbe)

	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	return router
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		logger.Log.Warn("Failed to close Redis client", zap.Error(err))
	}
}
