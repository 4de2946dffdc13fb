package metrics

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/providers"
	apperrors "github.com/hk-health-ai/backend/pkg/errors"
)

const aeWaitSourceName = "ha_aed_wait_times"

// AEWaitSource fetches current A&E waiting times from the Hospital
// Authority open-data feed. The feed reports per hospital; the source
// filters to the hospitals of the requested district using the mapping
// supplied at construction.
type AEWaitSource struct {
	client           *resty.Client
	url              string
	hospitalDistrict map[string]string // hospital name -> district
	clock            providers.Clock
}

// NewAEWaitSource creates the A&E waiting-time fetcher
func NewAEWaitSource(client *resty.Client, url string, hospitalDistrict map[string]string, clock providers.Clock) *AEWaitSource {
	if clock == nil {
		clock = providers.SystemClock{}
	}
	normalized := make(map[string]string, len(hospitalDistrict))
	for name, district := range hospitalDistrict {
		normalized[strings.ToLower(name)] = district
	}
	return &AEWaitSource{
		client:           client,
		url:              url,
		hospitalDistrict: normalized,
		clock:            clock,
	}
}

// DataType identifies the data this source produces
func (s *AEWaitSource) DataType() entities.DataType {
	return entities.DataTypeAEWaitTimes
}

// aedFeed mirrors the HA aedwtdata JSON shape
type aedFeed struct {
	WaitTime []struct {
		HospName string `json:"hospName"`
		TopWait  string `json:"topWait"`
	} `json:"waitTime"`
	UpdateTime string `json:"updateTime"`
}

// Fetch retrieves current waits for the hospitals of one district
func (s *AEWaitSource) Fetch(ctx context.Context, scopeKey string) (*entities.MetricSnapshot, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError(aeWaitSourceName, err)
	}
	if resp.StatusCode() != 200 {
		return nil, apperrors.NewUpstreamUnavailableError(aeWaitSourceName, errStatus(resp.StatusCode()))
	}

	var feed aedFeed
	if err := json.Unmarshal(resp.Body(), &feed); err != nil {
		return nil, apperrors.NewUpstreamMalformedError(aeWaitSourceName, err)
	}
	if len(feed.WaitTime) == 0 {
		return nil, apperrors.NewUpstreamMalformedError(aeWaitSourceName, errEmptyFeed)
	}

	payload := entities.AEWaitTimesPayload{District: scopeKey}
	for _, entry := range feed.WaitTime {
		district, known := s.hospitalDistrict[strings.ToLower(entry.HospName)]
		if scopeKey != "" && (!known || !strings.EqualFold(district, scopeKey)) {
			continue
		}
		payload.Entries = append(payload.Entries, entities.AEWaitEntry{
			FacilityName: entry.HospName,
			WaitText:     entry.TopWait,
			WaitMinutes:  parseWaitMinutes(entry.TopWait),
		})
	}

	capturedAt := s.clock.Now()
	// The feed carries its own publication time; prefer it when parseable
	if t, err := time.ParseInLocation("2/1/2006 3:04pm", feed.UpdateTime, hongKong); err == nil {
		capturedAt = t
	}

	return entities.NewMetricSnapshot(entities.DataTypeAEWaitTimes, scopeKey, payload, capturedAt)
}

var hongKong = time.FixedZone("HKT", 8*60*60)

// parseWaitMinutes converts the feed's descriptive wait ("Around 1 hour",
// "Over 8 hours") to a minute estimate; unknown phrasing reads as 0
func parseWaitMinutes(text string) int {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.Contains(t, "over 8"):
		return 8 * 60
	case strings.Contains(t, "over 7"):
		return 7 * 60
	case strings.Contains(t, "over 6"):
		return 6 * 60
	case strings.Contains(t, "over 5"):
		return 5 * 60
	case strings.Contains(t, "over 4"):
		return 4 * 60
	case strings.Contains(t, "over 3"):
		return 3 * 60
	case strings.Contains(t, "over 2"):
		return 2 * 60
	case strings.Contains(t, "over 1"):
		return 60
	case strings.Contains(t, "around 1 hour"):
		return 60
	case strings.Contains(t, "30 min"):
		return 30
	default:
		return 0
	}
}

var _ providers.MetricSource = (*AEWaitSource)(nil)
