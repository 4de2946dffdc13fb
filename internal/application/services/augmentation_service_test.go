package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/providers"
	apperrors "github.com/hk-health-ai/backend/pkg/errors"
)

// staticSource serves a fixed payload or error
type staticSource struct {
	dataType   entities.DataType
	payload    any
	err        error
	capturedAt time.Time
}

func (s *staticSource) DataType() entities.DataType { return s.dataType }

func (s *staticSource) Fetch(_ context.Context, scopeKey string) (*entities.MetricSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return entities.NewMetricSnapshot(s.dataType, scopeKey, s.payload, s.capturedAt)
}

type stubFacilityRepo struct {
	facilities  []*entities.Facility
	lastUpdated time.Time
	err         error
	searchCalls atomic.Int64
}

func (r *stubFacilityRepo) GetByID(_ context.Context, id string) (*entities.Facility, error) {
	return nil, apperrors.NewNotFoundError("not implemented")
}

func (r *stubFacilityRepo) SearchByDistrict(_ context.Context, district string, limit int) ([]*entities.Facility, error) {
	r.searchCalls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	if len(r.facilities) > limit {
		return r.facilities[:limit], nil
	}
	return r.facilities, nil
}

func (r *stubFacilityRepo) LastUpdated(_ context.Context, district string) (time.Time, error) {
	if r.err != nil {
		return time.Time{}, r.err
	}
	return r.lastUpdated, nil
}

func newAugmentationFixture(repo *stubFacilityRepo, sources []providers.MetricSource) (*AugmentationService, *stubFreshnessCache) {
	cache := newStubFreshnessCache()
	metricSvc := NewMetricService(cache, sources, nil, nil, time.Second)
	svc := NewAugmentationService(NewLocationService(), repo, metricSvc, cache, 5, nil)
	return svc, cache
}

func testFacilities(updatedAt time.Time) []*entities.Facility {
	return []*entities.Facility{
		{ID: "f1", NameEN: "Queen Mary Hospital", District: "Central and Western", QualityScore: 9.1, IsActive: true, UpdatedAt: updatedAt},
		{ID: "f2", NameEN: "Tung Wah Hospital", District: "Central and Western", QualityScore: 8.4, IsActive: true, UpdatedAt: updatedAt},
	}
}

func TestAugmentEndToEnd(t *testing.T) {
	facilityTime := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	waitTime := facilityTime.Add(5 * time.Minute)
	advisoryTime := facilityTime.Add(3 * time.Minute)

	repo := &stubFacilityRepo{facilities: testFacilities(facilityTime), lastUpdated: facilityTime}
	sources := []providers.MetricSource{
		&staticSource{
			dataType: entities.DataTypeAEWaitTimes,
			payload: entities.AEWaitTimesPayload{
				District: "Central and Western",
				Entries:  []entities.AEWaitEntry{{FacilityName: "Queen Mary Hospital", WaitText: "Around 1 hour", WaitMinutes: 60}},
			},
			capturedAt: waitTime,
		},
		&staticSource{
			dataType: entities.DataTypeHealthAdvisory,
			payload: entities.HealthAdvisoryPayload{
				Advisories: []entities.Advisory{{ID: "adv-1", Title: "Very Hot Weather Warning", Severity: "warning", IssuedAt: advisoryTime}},
			},
			capturedAt: advisoryTime,
		},
	}
	svc, _ := newAugmentationFixture(repo, sources)

	payload, err := svc.Augment(context.Background(), "what's the A&E wait in Central Western?", "")

	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, "Central and Western", payload.Location.District)
	assert.Equal(t, entities.LocationConfidenceInferred, payload.Location.Confidence)
	require.Len(t, payload.Facilities, 2)
	assert.Equal(t, "Queen Mary Hospital", payload.Facilities[0].NameEN)
	require.NotNil(t, payload.AEWaitTimes)
	assert.Equal(t, 60, payload.AEWaitTimes.Entries[0].WaitMinutes)
	require.Len(t, payload.Advisories, 1)
	// The payload is only as fresh as its oldest section
	assert.Equal(t, facilityTime, payload.FreshAsOf)
}

func TestAugmentNilWithoutLocationOrFacilitySignal(t *testing.T) {
	repo := &stubFacilityRepo{facilities: testFacilities(time.Now())}
	svc, _ := newAugmentationFixture(repo, nil)

	payload, err := svc.Augment(context.Background(), "tell me a joke", "")

	require.NoError(t, err)
	assert.Nil(t, payload)
	assert.Equal(t, int64(0), repo.searchCalls.Load())
}

func TestAugmentFacilitySignalWithoutLocation(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	repo := &stubFacilityRepo{facilities: testFacilities(now), lastUpdated: now}
	sources := []providers.MetricSource{
		&staticSource{dataType: entities.DataTypeAEWaitTimes, err: apperrors.NewUpstreamUnavailableError("ha", assert.AnError)},
		&staticSource{dataType: entities.DataTypeHealthAdvisory, err: apperrors.NewUpstreamUnavailableError("chp", assert.AnError)},
	}
	svc, _ := newAugmentationFixture(repo, sources)

	payload, err := svc.Augment(context.Background(), "I need a hospital", "")

	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, entities.LocationConfidenceNone, payload.Location.Confidence)
	assert.Len(t, payload.Facilities, 2)
}

func TestAugmentOmitsFailedSections(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	repo := &stubFacilityRepo{facilities: testFacilities(now), lastUpdated: now}
	sources := []providers.MetricSource{
		&staticSource{dataType: entities.DataTypeAEWaitTimes, err: apperrors.NewUpstreamUnavailableError("ha", assert.AnError)},
		&staticSource{dataType: entities.DataTypeHealthAdvisory, err: apperrors.NewUpstreamMalformedError("chp", assert.AnError)},
	}
	svc, _ := newAugmentationFixture(repo, sources)

	payload, err := svc.Augment(context.Background(), "clinics in Sha Tin", "")

	require.NoError(t, err, "section failures must not fail the request")
	require.NotNil(t, payload)
	assert.Len(t, payload.Facilities, 2)
	assert.Nil(t, payload.AEWaitTimes)
	assert.Empty(t, payload.Advisories)
	assert.Equal(t, now, payload.FreshAsOf)
}

func TestAugmentNilWhenNothingAvailable(t *testing.T) {
	repo := &stubFacilityRepo{err: apperrors.NewInternalError("db down", assert.AnError)}
	sources := []providers.MetricSource{
		&staticSource{dataType: entities.DataTypeAEWaitTimes, err: apperrors.NewUpstreamUnavailableError("ha", assert.AnError)},
		&staticSource{dataType: entities.DataTypeHealthAdvisory, err: apperrors.NewUpstreamUnavailableError("chp", assert.AnError)},
	}
	svc, _ := newAugmentationFixture(repo, sources)

	payload, err := svc.Augment(context.Background(), "hospital near mong kok", "")

	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestAugmentRequiresInput(t *testing.T) {
	svc, _ := newAugmentationFixture(&stubFacilityRepo{}, nil)

	_, err := svc.Augment(context.Background(), "   ", "")

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestAugmentServesCachedFacilitiesWithoutRepoCall(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	repo := &stubFacilityRepo{facilities: testFacilities(now), lastUpdated: now}
	sources := []providers.MetricSource{
		&staticSource{dataType: entities.DataTypeAEWaitTimes, err: apperrors.NewUpstreamUnavailableError("ha", assert.AnError)},
		&staticSource{dataType: entities.DataTypeHealthAdvisory, err: apperrors.NewUpstreamUnavailableError("chp", assert.AnError)},
	}
	svc, _ := newAugmentationFixture(repo, sources)

	// First call populates the cache, second is served from it
	_, err := svc.Augment(context.Background(), "clinics in Wan Chai", "")
	require.NoError(t, err)
	payload, err := svc.Augment(context.Background(), "clinics in Wan Chai", "")
	require.NoError(t, err)

	require.NotNil(t, payload)
	assert.Len(t, payload.Facilities, 2)
	assert.Equal(t, int64(1), repo.searchCalls.Load())
}
