package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	apperrors "github.com/hk-health-ai/backend/pkg/errors"
)

const aedFixture = `{
	"waitTime": [
		{"hospName": "Queen Mary Hospital", "topWait": "Around 1 hour"},
		{"hospName": "Ruttonjee Hospital", "topWait": "Over 8 hours"},
		{"hospName": "Queen Elizabeth Hospital", "topWait": "Over 2 hours"}
	],
	"updateTime": "30/8/2026 3:30pm"
}`

func newTestClient() *resty.Client {
	return resty.New().SetTimeout(2 * time.Second)
}

func TestAEWaitSource_FiltersByDistrict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(aedFixture))
	}))
	defer srv.Close()

	source := NewAEWaitSource(newTestClient(), srv.URL, DefaultHospitalDistricts(), nil)
	snapshot, err := source.Fetch(context.Background(), "Central and Western")
	require.NoError(t, err)

	var payload entities.AEWaitTimesPayload
	require.NoError(t, snapshot.DecodePayload(&payload))
	require.Len(t, payload.Entries, 1)
	assert.Equal(t, "Queen Mary Hospital", payload.Entries[0].FacilityName)
	assert.Equal(t, 60, payload.Entries[0].WaitMinutes)

	// Feed publication time is used as the capture instant
	assert.Equal(t, 2026, snapshot.CapturedAt.Year())
	assert.Equal(t, 15, snapshot.CapturedAt.Hour())
}

func TestAEWaitSource_EmptyScopeReturnsAllHospitals(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(aedFixture))
	}))
	defer srv.Close()

	source := NewAEWaitSource(newTestClient(), srv.URL, DefaultHospitalDistricts(), nil)
	snapshot, err := source.Fetch(context.Background(), "")
	require.NoError(t, err)

	var payload entities.AEWaitTimesPayload
	require.NoError(t, snapshot.DecodePayload(&payload))
	assert.Len(t, payload.Entries, 3)
}

func TestAEWaitSource_UnavailableOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	source := NewAEWaitSource(newTestClient(), srv.URL, DefaultHospitalDistricts(), nil)
	_, err := source.Fetch(context.Background(), "Eastern")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable))
}

func TestAEWaitSource_MalformedOnBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	source := NewAEWaitSource(newTestClient(), srv.URL, DefaultHospitalDistricts(), nil)
	_, err := source.Fetch(context.Background(), "Eastern")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamMalformed))
}

func TestAirQualitySource_PicksStation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"station": "Central/Western", "aqhi": 4, "health_risk": "Moderate"},
			{"station": "Kwun Tong", "aqhi": 7, "health_risk": "High"}
		]`))
	}))
	defer srv.Close()

	source := NewAirQualitySource(newTestClient(), srv.URL, nil)
	snapshot, err := source.Fetch(context.Background(), "Kwun Tong")
	require.NoError(t, err)

	var payload entities.AirQualityPayload
	require.NoError(t, snapshot.DecodePayload(&payload))
	assert.Equal(t, 7, payload.AQHI)
	assert.Equal(t, "High", payload.Risk)
}

func TestAirQualitySource_UnknownStationIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"station": "Central/Western", "aqhi": 4, "health_risk": "Moderate"}]`))
	}))
	defer srv.Close()

	source := NewAirQualitySource(newTestClient(), srv.URL, nil)
	_, err := source.Fetch(context.Background(), "Atlantis")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamMalformed))
}

func TestAdvisorySource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id": "adv-1", "title": "Scarlet fever cases rising", "severity": "warning", "issued_at": "2026-08-29T10:00:00Z"}
		]`))
	}))
	defer srv.Close()

	source := NewAdvisorySource(newTestClient(), srv.URL, nil)
	snapshot, err := source.Fetch(context.Background(), "hk")
	require.NoError(t, err)
	assert.Equal(t, entities.DataTypeHealthAdvisory, snapshot.DataType)

	var payload entities.HealthAdvisoryPayload
	require.NoError(t, snapshot.DecodePayload(&payload))
	require.Len(t, payload.Advisories, 1)
	assert.Equal(t, "Scarlet fever cases rising", payload.Advisories[0].Title)
}

func TestAdvisorySource_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	source := NewAdvisorySource(resty.New().SetTimeout(50*time.Millisecond), srv.URL, nil)
	_, err := source.Fetch(context.Background(), "hk")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstreamUnavailable))
}
