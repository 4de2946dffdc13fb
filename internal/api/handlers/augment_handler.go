package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/hk-health-ai/backend/internal/application/services"
	"github.com/hk-health-ai/backend/internal/infrastructure/observability"
)

// AugmentHandler serves the response-augmentation endpoint the chat
// backend calls before sending a reply to the user
type AugmentHandler struct {
	augmentSvc *services.AugmentationService
}

// NewAugmentHandler creates a new augment handler
func NewAugmentHandler(augmentSvc *services.AugmentationService) *AugmentHandler {
	return &AugmentHandler{augmentSvc: augmentSvc}
}

type augmentRequest struct {
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// Augment handles POST /api/augment. A 204 means the reply should go out
// without any attached data.
func (h *AugmentHandler) Augment(w http.ResponseWriter, r *http.Request) {
	var req augmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	payload, err := h.augmentSvc.Augment(r.Context(), req.Message, req.Location)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("augmentation failed")
		respondWithAppError(w, err)
		return
	}
	if payload == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respondWithJSON(w, http.StatusOK, payload)
}
