package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hk-health-ai/backend/internal/adapters/events"
	"github.com/hk-health-ai/backend/internal/api/handlers"
	"github.com/hk-health-ai/backend/internal/api/middleware"
	"github.com/hk-health-ai/backend/internal/domain/providers"
	redisclient "github.com/hk-health-ai/backend/internal/infrastructure/clients/redis"
	"github.com/hk-health-ai/backend/internal/infrastructure/observability"
	"github.com/hk-health-ai/backend/internal/realtime"
	"github.com/hk-health-ai/backend/pkg/config"
)

// The stream server fans alerts and metric updates out to SSE and
// WebSocket clients. It always runs on the Redis event bus so it can
// receive events published by the api binary.
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
	observability.InitLogger(cfg.OTEL.ServiceName+"-stream", env)
	logger := observability.GetLogger()
	logger.Info().Str("env", env).Msg("starting stream server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	obsMetrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	hub := realtime.NewHub(0, obsMetrics)
	go func() {
		if err := hub.Run(ctx, eventBus, providers.EventChannelAlerts, providers.EventChannelUpdates); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("broadcast hub stopped unexpectedly")
		}
	}()

	sseHandler := handlers.NewSSEHandler(hub)
	wsHandler := handlers.NewWSHandler(hub)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})
	mux.HandleFunc("GET /api/stream/alerts", sseHandler.StreamAlerts)
	mux.HandleFunc("GET /ws/alerts", wsHandler.ServeAlerts)
	mux.HandleFunc("GET /api/stream/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"connected_clients": %d}`, hub.Count())
	})

	var handler http.Handler = mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.CORSMiddleware(handler)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// No write timeout: SSE and WebSocket connections are long-lived
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Msg("stream server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("stream server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("stream server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("server shutdown failed")
	}

	logger.Info().Msg("stream server stopped")
}
