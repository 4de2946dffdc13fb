package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/providers"
	apperrors "github.com/hk-health-ai/backend/pkg/errors"
)

const airQualitySourceName = "epd_aqhi"

var (
	errEmptyFeed      = errors.New("empty feed")
	errStationUnknown = errors.New("station not present in feed")
)

func errStatus(code int) error {
	return fmt.Errorf("unexpected status %d", code)
}

// AirQualitySource fetches the current AQHI readings from the EPD
// dashboard feed. The scope key is the monitoring station (districts map
// to their nearest station upstream of this source).
type AirQualitySource struct {
	client *resty.Client
	url    string
	clock  providers.Clock
}

// NewAirQualitySource creates the AQHI fetcher
func NewAirQualitySource(client *resty.Client, url string, clock providers.Clock) *AirQualitySource {
	if clock == nil {
		clock = providers.SystemClock{}
	}
	return &AirQualitySource{client: client, url: url, clock: clock}
}

// DataType identifies the data this source produces
func (s *AirQualitySource) DataType() entities.DataType {
	return entities.DataTypeAirQuality
}

type aqhiReading struct {
	Station    string `json:"station"`
	AQHI       int    `json:"aqhi"`
	HealthRisk string `json:"health_risk"`
}

// Fetch retrieves the AQHI reading for one station
func (s *AirQualitySource) Fetch(ctx context.Context, scopeKey string) (*entities.MetricSnapshot, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError(airQualitySourceName, err)
	}
	if resp.StatusCode() != 200 {
		return nil, apperrors.NewUpstreamUnavailableError(airQualitySourceName, errStatus(resp.StatusCode()))
	}

	var readings []aqhiReading
	if err := json.Unmarshal(resp.Body(), &readings); err != nil {
		return nil, apperrors.NewUpstreamMalformedError(airQualitySourceName, err)
	}
	if len(readings) == 0 {
		return nil, apperrors.NewUpstreamMalformedError(airQualitySourceName, errEmptyFeed)
	}

	reading, ok := pickStation(readings, scopeKey)
	if !ok {
		return nil, apperrors.NewUpstreamMalformedError(airQualitySourceName, errStationUnknown)
	}

	payload := entities.AirQualityPayload{
		Station: reading.Station,
		AQHI:    reading.AQHI,
		Risk:    reading.HealthRisk,
	}
	return entities.NewMetricSnapshot(entities.DataTypeAirQuality, scopeKey, payload, s.clock.Now())
}

// pickStation matches the scope key case-insensitively; an empty key
// takes the first (territory-wide) reading
func pickStation(readings []aqhiReading, scopeKey string) (aqhiReading, bool) {
	if scopeKey == "" {
		return readings[0], true
	}
	for _, r := range readings {
		if strings.EqualFold(r.Station, scopeKey) {
			return r, true
		}
	}
	return aqhiReading{}, false
}

var _ providers.MetricSource = (*AirQualitySource)(nil)
