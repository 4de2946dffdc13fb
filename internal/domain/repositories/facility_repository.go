package repositories

import (
	"context"
	"time"

	"github.com/hk-health-ai/backend/internal/domain/entities"
)

// FacilityRepository defines read access to the facility store. Records
// are written by the data-ingestion pipeline; this service only reads.
type FacilityRepository interface {
	// GetByID retrieves a facility by ID
	GetByID(ctx context.Context, id string) (*entities.Facility, error)

	// SearchByDistrict returns up to limit active facilities in a
	// district, ordered by quality score descending then name ascending.
	// An empty district returns facilities across all districts.
	SearchByDistrict(ctx context.Context, district string, limit int) ([]*entities.Facility, error)

	// LastUpdated returns the most recent update timestamp across the
	// facilities of a district (or all districts when empty)
	LastUpdated(ctx context.Context, district string) (time.Time, error)
}
