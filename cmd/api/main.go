package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hk-health-ai/backend/internal/adapters/cache"
	"github.com/hk-health-ai/backend/internal/adapters/database"
	"github.com/hk-health-ai/backend/internal/adapters/events"
	"github.com/hk-health-ai/backend/internal/adapters/metrics"
	"github.com/hk-health-ai/backend/internal/adapters/search"
	"github.com/hk-health-ai/backend/internal/api/handlers"
	"github.com/hk-health-ai/backend/internal/api/middleware"
	"github.com/hk-health-ai/backend/internal/api/routes"
	"github.com/hk-health-ai/backend/internal/application/services"
	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/providers"
	"github.com/hk-health-ai/backend/internal/domain/repositories"
	"github.com/hk-health-ai/backend/internal/infrastructure/clients/postgres"
	redisclient "github.com/hk-health-ai/backend/internal/infrastructure/clients/redis"
	"github.com/hk-health-ai/backend/internal/infrastructure/clients/typesense"
	"github.com/hk-health-ai/backend/internal/infrastructure/observability"
	"github.com/hk-health-ai/backend/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	observability.InitLogger(cfg.OTEL.ServiceName, env)
	logger := observability.GetLogger()
	logger.Info().Str("env", env).Msg("starting api server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTEL.Enabled {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize opentelemetry")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("opentelemetry shutdown failed")
			}
		}()
	}
	obsMetrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	clock := providers.SystemClock{}

	// Cache backend and event bus: in-memory for single-node deployments,
	// Redis for distributed ones
	var (
		backend  providers.CacheProvider
		eventBus providers.EventBus
	)
	switch cfg.Cache.Backend {
	case "redis":
		redisClient, err := redisclient.NewClient(&cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		backend = cache.NewRedisAdapter(redisClient)
		eventBus = events.NewRedisEventBus(redisClient)
	default:
		backend = cache.NewMemoryAdapter(clock)
		eventBus = events.NewMemoryEventBus()
	}
	defer eventBus.Close()
	freshness := cache.NewFreshnessCache(backend, clock, &cfg.Cache)

	var facilityRepo repositories.FacilityRepository
	switch cfg.Facility.Backend {
	case "typesense":
		tsClient, err := typesense.NewClient(&cfg.Typesense)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to typesense")
		}
		adapter := search.NewTypesenseAdapter(tsClient)
		if err := adapter.InitSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize typesense schema")
		}
		facilityRepo = adapter
	default:
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pgClient.Close()
		facilityRepo = database.NewFacilityAdapter(pgClient)
	}

	restyClient := resty.New().SetTimeout(cfg.Upstream.FetchTimeout)
	sources := []providers.MetricSource{
		metrics.NewAEWaitSource(restyClient, cfg.Upstream.AEWaitTimesURL, metrics.DefaultHospitalDistricts(), clock),
		metrics.NewAirQualitySource(restyClient, cfg.Upstream.AirQualityURL, clock),
		metrics.NewAdvisorySource(restyClient, cfg.Upstream.HealthAdvisoryURL, clock),
	}

	metricSvc := services.NewMetricService(freshness, sources, eventBus, obsMetrics, cfg.Upstream.FetchTimeout)
	augmentSvc := services.NewAugmentationService(
		services.NewLocationService(), facilityRepo, metricSvc, freshness, cfg.Facility.ResultLimit, nil)

	// Keep the territory-wide metrics warm and the update channel flowing
	metricSvc.StartPolling(ctx, cfg.Monitor.Interval, []services.PollTarget{
		{DataType: entities.DataTypeAEWaitTimes},
		{DataType: entities.DataTypeAirQuality},
		{DataType: entities.DataTypeHealthAdvisory},
	}, nil)

	monitor := services.NewEmergencyMonitor(metricSvc, eventBus, &cfg.Monitor, clock, nil)
	go monitor.Run(ctx)

	router := routes.NewRouter(
		handlers.NewAugmentHandler(augmentSvc),
		handlers.NewFacilityHandler(facilityRepo, cfg.Facility.ResultLimit),
		handlers.NewMetricHandler(metricSvc),
		nil, // streaming is served by the stream binary
		nil,
		middleware.NewCacheMiddleware(backend),
		obsMetrics,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Msg("api server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("api server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server shutdown failed")
	}

	logger.Info().Msg("api server stopped")
}
