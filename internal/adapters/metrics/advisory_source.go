package metrics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/providers"
	apperrors "github.com/hk-health-ai/backend/pkg/errors"
)

const advisorySourceName = "chp_advisories"

// AdvisorySource fetches currently active public-health advisories from
// the CHP feed. Advisories are territory-wide; the scope key is not used
// to filter.
type AdvisorySource struct {
	client *resty.Client
	url    string
	clock  providers.Clock
}

// NewAdvisorySource creates the health-advisory fetcher
func NewAdvisorySource(client *resty.Client, url string, clock providers.Clock) *AdvisorySource {
	if clock == nil {
		clock = providers.SystemClock{}
	}
	return &AdvisorySource{client: client, url: url, clock: clock}
}

// DataType identifies the data this source produces
func (s *AdvisorySource) DataType() entities.DataType {
	return entities.DataTypeHealthAdvisory
}

type advisoryFeedItem struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Severity string    `json:"severity"`
	IssuedAt time.Time `json:"issued_at"`
}

// Fetch retrieves the active advisories
func (s *AdvisorySource) Fetch(ctx context.Context, scopeKey string) (*entities.MetricSnapshot, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, apperrors.NewUpstreamUnavailableError(advisorySourceName, err)
	}
	if resp.StatusCode() != 200 {
		return nil, apperrors.NewUpstreamUnavailableError(advisorySourceName, errStatus(resp.StatusCode()))
	}

	var items []advisoryFeedItem
	if err := json.Unmarshal(resp.Body(), &items); err != nil {
		return nil, apperrors.NewUpstreamMalformedError(advisorySourceName, err)
	}

	payload := entities.HealthAdvisoryPayload{Advisories: make([]entities.Advisory, 0, len(items))}
	for _, item := range items {
		payload.Advisories = append(payload.Advisories, entities.Advisory{
			ID:       item.ID,
			Title:    item.Title,
			Severity: item.Severity,
			IssuedAt: item.IssuedAt,
		})
	}

	return entities.NewMetricSnapshot(entities.DataTypeHealthAdvisory, scopeKey, payload, s.clock.Now())
}

var _ providers.MetricSource = (*AdvisorySource)(nil)
