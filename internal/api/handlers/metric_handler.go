package handlers

import (
	"net/http"

	"github.com/hk-health-ai/backend/internal/application/services"
	"github.com/hk-health-ai/backend/internal/domain/entities"
)

// metricTypes maps the URL segment to a data type; facilities are served
// by their own endpoint and deliberately absent here
var metricTypes = map[string]entities.DataType{
	"ae_waiting_times": entities.DataTypeAEWaitTimes,
	"air_quality":      entities.DataTypeAirQuality,
	"health_advisory":  entities.DataTypeHealthAdvisory,
}

// MetricHandler serves live metric snapshots over HTTP
type MetricHandler struct {
	metricSvc *services.MetricService
}

// NewMetricHandler creates a new metric handler
func NewMetricHandler(metricSvc *services.MetricService) *MetricHandler {
	return &MetricHandler{metricSvc: metricSvc}
}

// GetMetric handles GET /api/metrics/{type}?scope=X. Stale data within
// the ceiling is served with fresh=false rather than hidden.
func (h *MetricHandler) GetMetric(w http.ResponseWriter, r *http.Request) {
	dataType, ok := metricTypes[r.PathValue("type")]
	if !ok {
		respondWithError(w, http.StatusNotFound, "unknown metric type")
		return
	}
	scope := r.URL.Query().Get("scope")

	snap, fresh, err := h.metricSvc.Snapshot(r.Context(), dataType, scope)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"data_type":   snap.DataType,
		"scope_key":   snap.ScopeKey,
		"payload":     snap.Payload,
		"captured_at": snap.CapturedAt,
		"fresh":       fresh,
	})
}
