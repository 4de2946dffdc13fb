package search

import (
	"context"
	"fmt"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/repositories"
	tsclient "github.com/hk-health-ai/backend/internal/infrastructure/clients/typesense"
	apperrors "github.com/hk-health-ai/backend/pkg/errors"
)

const collectionName = "facilities"

// TypesenseAdapter implements FacilityRepository against the Typesense
// index the ingestion pipeline maintains. Deployments without direct
// database access to the facility store use this backend.
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.FacilityRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the facilities collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	_, err := a.client.Client().Collection(collectionName).Retrieve(ctx)
	if err == nil {
		return nil
	}

	schema := &api.CollectionSchema{
		Name: collectionName,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "name_en", Type: "string"},
			{Name: "name_zh", Type: "string", Optional: pointer.True()},
			{Name: "facility_type", Type: "string", Facet: pointer.True()},
			{Name: "district", Type: "string", Facet: pointer.True()},
			{Name: "address", Type: "string"},
			{Name: "phone_number", Type: "string"},
			{Name: "emergency_services", Type: "bool"},
			{Name: "services", Type: "string[]", Optional: pointer.True()},
			{Name: "quality_score", Type: "float"},
			{Name: "is_active", Type: "bool"},
			{Name: "updated_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("updated_at"),
	}

	if _, err := a.client.Client().Collections().Create(ctx, schema); err != nil {
		return fmt.Errorf("failed to create typesense collection: %w", err)
	}
	return nil
}

// GetByID retrieves a facility document by ID
func (a *TypesenseAdapter) GetByID(ctx context.Context, id string) (*entities.Facility, error) {
	doc, err := a.client.Client().Collection(collectionName).Document(id).Retrieve(ctx)
	if err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	facility := docToFacility(doc)
	if !facility.IsActive {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("facility with id %s not found", id))
	}
	return facility, nil
}

// SearchByDistrict returns up to limit active facilities in a district,
// quality score descending then name ascending
func (a *TypesenseAdapter) SearchByDistrict(ctx context.Context, district string, limit int) ([]*entities.Facility, error) {
	filter := "is_active:=true"
	if district != "" {
		filter = fmt.Sprintf("is_active:=true && district:=`%s`", district)
	}

	searchParams := &api.SearchCollectionParams{
		Q:        pointer.String("*"),
		QueryBy:  pointer.String("name_en"),
		FilterBy: pointer.String(filter),
		SortBy:   pointer.String("quality_score:desc,name_en:asc"),
		PerPage:  pointer.Int(limit),
	}

	result, err := a.client.Client().Collection(collectionName).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to search facilities", err)
	}

	facilities := make([]*entities.Facility, 0, limit)
	if result.Hits == nil {
		return facilities, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		facilities = append(facilities, docToFacility(*hit.Document))
	}
	return facilities, nil
}

// LastUpdated returns the most recent index timestamp for a district
func (a *TypesenseAdapter) LastUpdated(ctx context.Context, district string) (time.Time, error) {
	filter := "is_active:=true"
	if district != "" {
		filter = fmt.Sprintf("is_active:=true && district:=`%s`", district)
	}

	searchParams := &api.SearchCollectionParams{
		Q:        pointer.String("*"),
		QueryBy:  pointer.String("name_en"),
		FilterBy: pointer.String(filter),
		SortBy:   pointer.String("updated_at:desc"),
		PerPage:  pointer.Int(1),
	}

	result, err := a.client.Client().Collection(collectionName).Documents().Search(ctx, searchParams)
	if err != nil {
		return time.Time{}, apperrors.NewInternalError("failed to query last updated", err)
	}
	if result.Hits == nil || len(*result.Hits) == 0 {
		return time.Time{}, apperrors.NewNotFoundError(fmt.Sprintf("no facilities for district %q", district))
	}

	doc := *(*result.Hits)[0].Document
	if ts, ok := doc["updated_at"].(float64); ok {
		return time.Unix(int64(ts), 0).UTC(), nil
	}
	return time.Time{}, apperrors.NewInternalError("facility document missing updated_at", nil)
}

// docToFacility rebuilds a facility entity from a Typesense document.
// Typesense returns map[string]interface{}, so fields are cast defensively.
func docToFacility(doc map[string]any) *entities.Facility {
	facility := &entities.Facility{}
	if v, ok := doc["id"].(string); ok {
		facility.ID = v
	}
	if v, ok := doc["name_en"].(string); ok {
		facility.NameEN = v
	}
	if v, ok := doc["name_zh"].(string); ok {
		facility.NameZH = v
	}
	if v, ok := doc["facility_type"].(string); ok {
		facility.FacilityType = v
	}
	if v, ok := doc["district"].(string); ok {
		facility.District = v
	}
	if v, ok := doc["address"].(string); ok {
		facility.Address = v
	}
	if v, ok := doc["phone_number"].(string); ok {
		facility.PhoneNumber = v
	}
	if v, ok := doc["emergency_services"].(bool); ok {
		facility.EmergencyServices = v
	}
	if v, ok := doc["quality_score"].(float64); ok {
		facility.QualityScore = v
	}
	if v, ok := doc["is_active"].(bool); ok {
		facility.IsActive = v
	}
	if v, ok := doc["updated_at"].(float64); ok {
		facility.UpdatedAt = time.Unix(int64(v), 0).UTC()
	}
	if raw, ok := doc["services"].([]any); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				facility.Services = append(facility.Services, s)
			}
		}
	}
	return facility
}
