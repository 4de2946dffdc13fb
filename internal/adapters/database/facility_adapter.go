package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/repositories"
	"github.com/hk-health-ai/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/hk-health-ai/backend/pkg/errors"
)

var facilityColumns = []any{
	"id", "name_en", "name_zh", "facility_type", "district", "address",
	"phone_number", "emergency_services", "opening_hours", "services",
	"quality_score", "is_active", "updated_at",
}

// FacilityAdapter implements FacilityRepository against PostgreSQL. The
// facilities table is written by the ingestion pipeline; this adapter
// only reads.
type FacilityAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewFacilityAdapter creates a new facility adapter
func NewFacilityAdapter(client *postgres.Client) repositories.FacilityRepository {
	return &FacilityAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a facility by ID
func (a *FacilityAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	query, args, err := a.db.Select(facilityColumns...).
		From("facilities").
		Where(goqu.Ex{"id": id, "is_active": true}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	facility, err := scanFacility(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get facility", err)
	}
	return facility, nil
}

// SearchByDistrict returns up to limit active facilities in a district,
// quality score descending then name ascending
func (a *FacilityAdapter) SearchByDistrict(ctx context.Context, district string, limit int) ([]*entities.Facility, error) {
	where := goqu.Ex{"is_active": true}
	if district != "" {
		where["district"] = district
	}

	query, args, err := a.db.Select(facilityColumns...).
		From("facilities").
		Where(where).
		Order(goqu.I("quality_score").Desc(), goqu.I("name_en").Asc()).
		Limit(uint(limit)).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to search facilities", err)
	}
	defer rows.Close()

	var facilities []*entities.Facility
	for rows.Next() {
		facility, err := scanFacility(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan facility", err)
		}
		facilities = append(facilities, facility)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate facilities", err)
	}
	return facilities, nil
}

// LastUpdated returns the most recent ingestion timestamp for a district
func (a *FacilityAdapter) LastUpdated(ctx context.Context, district string) (time.Time, error) {
	where := goqu.Ex{"is_active": true}
	if district != "" {
		where["district"] = district
	}

	query, args, err := a.db.Select(goqu.MAX("updated_at")).
		From("facilities").
		Where(where).
		ToSQL()
	if err != nil {
		return time.Time{}, apperrors.NewInternalError("failed to build query", err)
	}

	var updatedAt sql.NullTime
	if err := a.client.DB().QueryRowContext(ctx, query, args...).Scan(&updatedAt); err != nil {
		return time.Time{}, apperrors.NewInternalError("failed to get last updated", err)
	}
	if !updatedAt.Valid {
		return time.Time{}, apperrors.NewNotFoundError(fmt.Sprintf("no facilities for district %q", district))
	}
	return updatedAt.Time, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFacility(row rowScanner) (*entities.Facility, error) {
	facility := &entities.Facility{}
	var nameZH sql.NullString
	var openingHours []byte

	err := row.Scan(
		&facility.ID,
		&facility.NameEN,
		&nameZH,
		&facility.FacilityType,
		&facility.District,
		&facility.Address,
		&facility.PhoneNumber,
		&facility.EmergencyServices,
		&openingHours,
		pq.Array(&facility.Services),
		&facility.QualityScore,
		&facility.IsActive,
		&facility.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	facility.NameZH = nameZH.String
	if len(openingHours) > 0 {
		if err := json.Unmarshal(openingHours, &facility.OpeningHours); err != nil {
			return nil, fmt.Errorf("invalid opening_hours for facility %s: %w", facility.ID, err)
		}
	}
	return facility, nil
}
