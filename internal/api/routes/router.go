package routes

import (
	"fmt"
	"net/http"

	"github.com/hk-health-ai/backend/internal/api/handlers"
	"github.com/hk-health-ai/backend/internal/api/middleware"
	"github.com/hk-health-ai/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	augmentHandler  *handlers.AugmentHandler
	facilityHandler *handlers.FacilityHandler
	metricHandler   *handlers.MetricHandler
	sseHandler      *handlers.SSEHandler
	wsHandler       *handlers.WSHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	augmentHandler *handlers.AugmentHandler,
	facilityHandler *handlers.FacilityHandler,
	metricHandler *handlers.MetricHandler,
	sseHandler *handlers.SSEHandler,
	wsHandler *handlers.WSHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		augmentHandler:  augmentHandler,
		facilityHandler: facilityHandler,
		metricHandler:   metricHandler,
		sseHandler:      sseHandler,
		wsHandler:       wsHandler,
		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Augmentation endpoint for the chat backend
	r.mux.HandleFunc("POST /api/augment", r.augmentHandler.Augment)

	// Facility endpoints
	r.mux.HandleFunc("GET /api/facilities", r.facilityHandler.ListFacilities)
	r.mux.HandleFunc("GET /api/facilities/{id}", r.facilityHandler.GetFacility)

	// Live metric endpoints
	r.mux.HandleFunc("GET /api/metrics/{type}", r.metricHandler.GetMetric)

	// Streaming endpoints
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/alerts", r.sseHandler.StreamAlerts)
		r.mux.HandleFunc("GET /api/stream/stats", func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `{"connected_clients": %d}`, r.sseHandler.ClientCount())
		})
	}
	if r.wsHandler != nil {
		r.mux.HandleFunc("GET /ws/alerts", r.wsHandler.ServeAlerts)
	}

	// Middleware in reverse order: the last applied wraps first.
	// CORS is outermost so cached responses also get CORS headers.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
