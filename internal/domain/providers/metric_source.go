package providers

import (
	"context"

	"github.com/hk-health-ai/backend/internal/domain/entities"
)

// MetricSource is one live upstream data source (A&E waiting times, air
// quality, health advisories). Sources are independent; a failure in one
// must not block or corrupt others.
type MetricSource interface {
	// DataType identifies the data this source produces
	DataType() entities.DataType

	// Fetch retrieves the current value for a scope key (district or
	// station). Fails with ErrorTypeUpstreamUnavailable when the source
	// cannot be reached in time and ErrorTypeUpstreamMalformed when the
	// response cannot be parsed.
	Fetch(ctx context.Context, scopeKey string) (*entities.MetricSnapshot, error)
}
