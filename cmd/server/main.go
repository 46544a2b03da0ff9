package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ambrook/skirmishd/internal/api"
	"github.com/ambrook/skirmishd/internal/factory"
	"github.com/ambrook/skirmishd/internal/provision"
	redisstorage "github.com/ambrook/skirmishd/internal/storage/redis"
)

type config struct {
	Host           string        `env:"HOST" envDefault:""`
	Port           int           `env:"PORT" envDefault:"8080"`
	StorageType    string        `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL       string        `env:"REDIS_URL"`
	BrokerType     string        `env:"BROKER_TYPE" envDefault:"memory"`
	BrokerURL      string        `env:"BROKER_URL"`
	ProvisionerURL string        `env:"PROVISIONER_URL"`
	LaunchTimeout  time.Duration `env:"LAUNCH_TIMEOUT" envDefault:"60s"`
}

func main() {
	// Set up logging with JSON output
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var envCfg config
	if err := env.Parse(&envCfg); err != nil {
		logger.Error("failed to parse environment", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Build factory config from environment
	cfg := factory.Config{
		Logger:      logger,
		StorageType: envCfg.StorageType,
		BrokerType:  envCfg.BrokerType,
		BrokerURL:   envCfg.BrokerURL,
	}
	cfg.SessionConfig.LaunchTimeout = envCfg.LaunchTimeout

	// Configure Redis if storage type is redis
	if cfg.StorageType == factory.StorageTypeRedis {
		if envCfg.RedisURL == "" {
			logger.Error("REDIS_URL required when STORAGE_TYPE=redis")
			os.Exit(1)
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = envCfg.RedisURL
		cfg.RedisConfig = &redisCfg
	}

	// Wire a real game host provisioner when one is configured; otherwise
	// launches succeed against the mock
	if envCfg.ProvisionerURL != "" {
		cfg.Provisioner = provision.NewHTTPProvisioner(envCfg.ProvisionerURL, 10*time.Second, logger)
	} else {
		logger.Warn("no PROVISIONER_URL configured, using mock provisioner")
	}

	// Create application factory
	app, err := factory.New(cfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		AuthService:     app.AuthService,
		RatingService:   app.RatingService,
		QueueController: app.QueueController,
		SessionService:  app.SessionService,
		Registry:        app.Registry,
		Dispatcher:      app.Dispatcher,
		Storage:         app.Storage,
	})

	// Create server
	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = envCfg.Host
	serverConfig.Port = envCfg.Port
	server := api.NewServer(router, serverConfig, logger)

	// Handle graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	// Start the matchmaking loops
	app.Coordinator.Start(ctx)

	// Expired auth sessions are only ever read on validation, so a slow
	// background sweep is enough to keep the table from growing
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				app.AuthService.CleanExpiredSessions()
			}
		}
	}()

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("server started", slog.String("addr", server.Addr()))

	// Wait for shutdown or error
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		app.Coordinator.Stop()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("server stopped")
}
