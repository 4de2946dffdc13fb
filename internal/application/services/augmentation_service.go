package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/providers"
	"github.com/hk-health-ai/backend/internal/domain/repositories"
	"github.com/hk-health-ai/backend/internal/infrastructure/observability"
	apperrors "github.com/hk-health-ai/backend/pkg/errors"
)

// facilityRequestKeywords signal that the user is asking about care
// facilities even without a resolvable location
var facilityRequestKeywords = []string{
	"hospital", "clinic", "a&e", "emergency", "wait", "doctor", "dentist",
	"醫院", "診所", "急症", "醫生",
}

// DefaultFacilityRequestSignal reports whether free text looks like a
// facility or waiting-time request
func DefaultFacilityRequestSignal(text string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range facilityRequestKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// facilitySection is the cache envelope for one district's facility list
type facilitySection struct {
	Facilities  []*entities.Facility `json:"facilities"`
	LastUpdated time.Time            `json:"last_updated"`
}

// AugmentationService assembles the real-time payload attached to agent
// replies. Every section degrades independently: an unavailable source
// drops its section and the rest of the payload still goes out.
type AugmentationService struct {
	locations     *LocationService
	facilities    repositories.FacilityRepository
	metricSvc     *MetricService
	cache         providers.FreshnessCache
	resultLimit   int
	requestSignal func(string) bool
}

// NewAugmentationService creates an augmentation service. A nil
// requestSignal falls back to the keyword heuristic.
func NewAugmentationService(
	locations *LocationService,
	facilities repositories.FacilityRepository,
	metricSvc *MetricService,
	cache providers.FreshnessCache,
	resultLimit int,
	requestSignal func(string) bool,
) *AugmentationService {
	if requestSignal == nil {
		requestSignal = DefaultFacilityRequestSignal
	}
	return &AugmentationService{
		locations:     locations,
		facilities:    facilities,
		metricSvc:     metricSvc,
		cache:         cache,
		resultLimit:   resultLimit,
		requestSignal: requestSignal,
	}
}

// Augment resolves the user's location and bundles the relevant facility
// and metric data. A nil payload with a nil error means there is nothing
// relevant to attach and the reply should go out unaugmented.
func (s *AugmentationService) Augment(ctx context.Context, userInput, explicitLocation string) (*entities.AugmentedPayload, error) {
	ctx, span := observability.StartSpan(ctx, "AugmentationService.Augment")
	defer span.End()

	userInput = strings.TrimSpace(userInput)
	if userInput == "" && strings.TrimSpace(explicitLocation) == "" {
		err := apperrors.NewValidationError("user input or explicit location is required")
		observability.RecordError(span, err)
		return nil, err
	}

	hint := s.locations.Resolve(userInput, explicitLocation)
	if !hint.Scoped() && !s.requestSignal(userInput) {
		return nil, nil
	}

	payload := &entities.AugmentedPayload{Location: hint}
	var freshAsOf time.Time
	observeFreshness := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if freshAsOf.IsZero() || t.Before(freshAsOf) {
			freshAsOf = t
		}
	}

	if facilities, lastUpdated := s.facilitySection(ctx, hint.District); len(facilities) > 0 {
		payload.Facilities = facilities
		observeFreshness(lastUpdated)
	}

	if waits, capturedAt := s.aeWaitSection(ctx, hint.District); waits != nil {
		payload.AEWaitTimes = waits
		observeFreshness(capturedAt)
	}

	if advisories, capturedAt := s.advisorySection(ctx); len(advisories) > 0 {
		payload.Advisories = advisories
		observeFreshness(capturedAt)
	}

	if payload.Empty() {
		return nil, nil
	}
	payload.FreshAsOf = freshAsOf
	return payload, nil
}

// facilitySection reads the district's facility list through the
// freshness cache, falling back to the repository on expiry. Repository
// failures degrade to a stale cached list when one is still servable.
func (s *AugmentationService) facilitySection(ctx context.Context, district string) ([]*entities.Facility, time.Time) {
	logger := observability.LoggerFromContext(ctx)

	var stale *facilitySection
	raw, freshness, err := s.cache.Get(ctx, entities.DataTypeFacilities, district)
	if err != nil {
		// A past-ceiling entry is just an expiry; the repository is
		// queried either way
		if !apperrors.IsType(err, apperrors.ErrorTypeStaleBeyondCeiling) {
			logger.Warn().Err(err).Str("district", district).Msg("facility cache read failed")
		}
	} else if freshness != providers.FreshnessUnavailable {
		var section facilitySection
		if err := json.Unmarshal(raw, &section); err != nil {
			logger.Warn().Err(err).Str("district", district).Msg("corrupt facility section in cache")
		} else if freshness == providers.FreshnessFresh {
			return section.Facilities, section.LastUpdated
		} else {
			stale = &section
		}
	}

	facilities, err := s.facilities.SearchByDistrict(ctx, district, s.resultLimit)
	if err != nil {
		logger.Warn().Err(err).Str("district", district).Msg("facility lookup failed")
		if stale != nil {
			return stale.Facilities, stale.LastUpdated
		}
		return nil, time.Time{}
	}
	if len(facilities) == 0 {
		return nil, time.Time{}
	}

	lastUpdated, err := s.facilities.LastUpdated(ctx, district)
	if err != nil {
		// Fall back to the newest row in the result set
		for _, facility := range facilities {
			if facility.UpdatedAt.After(lastUpdated) {
				lastUpdated = facility.UpdatedAt
			}
		}
	}

	section := facilitySection{Facilities: facilities, LastUpdated: lastUpdated}
	if data, err := json.Marshal(section); err == nil {
		if err := s.cache.Put(ctx, entities.DataTypeFacilities, district, data); err != nil {
			logger.Warn().Err(err).Str("district", district).Msg("failed to cache facility section")
		}
	}
	return facilities, lastUpdated
}

func (s *AugmentationService) aeWaitSection(ctx context.Context, district string) (*entities.AEWaitTimesPayload, time.Time) {
	snap, _, err := s.metricSvc.Snapshot(ctx, entities.DataTypeAEWaitTimes, district)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("district", district).
			Msg("waiting times unavailable, omitting section")
		return nil, time.Time{}
	}

	var waits entities.AEWaitTimesPayload
	if err := snap.DecodePayload(&waits); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("corrupt waiting-times snapshot")
		return nil, time.Time{}
	}
	if len(waits.Entries) == 0 {
		return nil, time.Time{}
	}
	return &waits, snap.CapturedAt
}

func (s *AugmentationService) advisorySection(ctx context.Context) ([]entities.Advisory, time.Time) {
	snap, _, err := s.metricSvc.Snapshot(ctx, entities.DataTypeHealthAdvisory, "")
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Msg("health advisories unavailable, omitting section")
		return nil, time.Time{}
	}

	var advisories entities.HealthAdvisoryPayload
	if err := snap.DecodePayload(&advisories); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("corrupt advisory snapshot")
		return nil, time.Time{}
	}
	return advisories.Advisories, snap.CapturedAt
}
