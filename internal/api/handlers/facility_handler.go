package handlers

import (
	"net/http"
	"strconv"

	"github.com/hk-health-ai/backend/internal/domain/repositories"
)

// FacilityHandler handles facility lookup HTTP requests
type FacilityHandler struct {
	facilityRepo repositories.FacilityRepository
	defaultLimit int
}

// NewFacilityHandler creates a new facility handler
func NewFacilityHandler(facilityRepo repositories.FacilityRepository, defaultLimit int) *FacilityHandler {
	return &FacilityHandler{
		facilityRepo: facilityRepo,
		defaultLimit: defaultLimit,
	}
}

// ListFacilities handles GET /api/facilities?district=X&limit=N
func (h *FacilityHandler) ListFacilities(w http.ResponseWriter, r *http.Request) {
	district := r.URL.Query().Get("district")

	limit := h.defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	facilities, err := h.facilityRepo.SearchByDistrict(r.Context(), district, limit)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"district":   district,
		"facilities": facilities,
		"count":      len(facilities),
	})
}

// GetFacility handles GET /api/facilities/{id}
func (h *FacilityHandler) GetFacility(w http.ResponseWriter, r *http.Request) {
	facilityID := r.PathValue("id")
	if facilityID == "" {
		respondWithError(w, http.StatusBadRequest, "facility ID is required")
		return
	}

	facility, err := h.facilityRepo.GetByID(r.Context(), facilityID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, facility)
}
