package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feedloop/paygate/internal/api"
	"github.com/feedloop/paygate/internal/config"
	"github.com/feedloop/paygate/internal/handlers"
	"github.com/feedloop/paygate/internal/logging"
	"github.com/feedloop/paygate/internal/models"
	"github.com/feedloop/paygate/internal/repository"
	"github.com/feedloop/paygate/internal/webhook"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	// CLI flags
	configPath := pflag.StringP("config", "c", "config.yaml", "Path to config file")
	version := pflag.BoolP("version", "v", false, "Print version and exit")
	port := pflag.IntP("port", "p", 8080, "HTTP server listen port")
	logLevel := pflag.StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")
	masterToken := pflag.String("master-token", "", "Override master token from config")
	jwtSecret := pflag.String("jwt-secret", "", "Override JWT secret from config")
	noRedis := pflag.Bool("no-redis", false, "Disable Redis rate limiting")

	pflag.Parse()

	if *version {
		fmt.Println("paygate version " + handlers.Version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadWithPath(*configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Override config with CLI flags if set
	if pflag.Lookup("port").Changed {
		cfg.Server.Port = *port
	}
	if pflag.Lookup("log-level").Changed {
		cfg.Logging.Level = *logLevel
	}
	if pflag.Lookup("master-token").Changed && *masterToken != "" {
		cfg.Auth.MasterToken = *masterToken
	}
	if pflag.Lookup("jwt-secret").Changed && *jwtSecret != "" {
		cfg.Auth.JWTSecret = *jwtSecret
	}
	if *noRedis {
		cfg.Redis.Enabled = false
	}

	// Initialize logger
	logger, err := logging.InitLogger(logging.LoggingConfig(cfg.Logging))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Configuration loaded", zap.Any("config", cfg.Redacted()))
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		cancel()
	}

	accessLog := logrus.New()
	accessLog.SetFormatter(&logrus.JSONFormatter{})

	// The in-memory repository stands in for the billing platform client.
	repo := repository.NewMemoryRepository(logger.Named("repository"))

	if gin.Mode() == gin.DebugMode && cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv, err := api.NewServer(cfg, api.Dependencies{
		Logger:    logger,
		AccessLog: accessLog,
		Entities:  repo,
		Purchases: repo,
		Redis:     redisClient,
		OnHandlerError: func(event *models.WebhookEvent, err error) {
			logger.Error("Webhook delivery will be retried by the platform",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		},
	})
	if err != nil {
		logger.Fatal("Failed to build gateway", zap.Error(err))
	}

	// Mirror every known event into the repository.
	if err := srv.Listener.On(webhook.HandlerFunc(repo.ApplyEvent), models.KnownEventTypes()...); err != nil {
		logger.Fatal("Failed to register webhook handler", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv.Engine,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Fatal("Server forced to shutdown", zap.Error(err))
		}
	}()

	logger.Info("Starting server", zap.Int("port", cfg.Server.Port))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Server error", zap.Error(err))
	}
}
