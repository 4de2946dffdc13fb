package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/providers"
	"github.com/hk-health-ai/backend/internal/infrastructure/observability"
	apperrors "github.com/hk-health-ai/backend/pkg/errors"
)

// PollTarget is one (data type, scope key) pair the background poller
// keeps warm
type PollTarget struct {
	DataType entities.DataType
	ScopeKey string
}

// MetricService serves live metric snapshots through the freshness cache.
// Fresh entries are returned without touching upstream; expired entries
// trigger a refresh that concurrent callers coalesce into a single
// upstream request. A failed refresh falls back to a stale entry when one
// is still within the ceiling.
type MetricService struct {
	cache        providers.FreshnessCache
	sources      map[entities.DataType]providers.MetricSource
	bus          providers.EventBus
	metrics      *observability.Metrics
	fetchTimeout time.Duration
	group        singleflight.Group
}

// NewMetricService creates a metric service over the given sources. The
// bus and metrics may be nil; refresh events and counters are then
// skipped.
func NewMetricService(
	cache providers.FreshnessCache,
	sources []providers.MetricSource,
	bus providers.EventBus,
	metrics *observability.Metrics,
	fetchTimeout time.Duration,
) *MetricService {
	byType := make(map[entities.DataType]providers.MetricSource, len(sources))
	for _, source := range sources {
		byType[source.DataType()] = source
	}
	return &MetricService{
		cache:        cache,
		sources:      byType,
		bus:          bus,
		metrics:      metrics,
		fetchTimeout: fetchTimeout,
	}
}

// Snapshot returns the current snapshot for (dataType, scopeKey) and
// whether it is fresh. A false flag means the value is stale but still
// within the ceiling; callers label such data rather than hiding it.
func (s *MetricService) Snapshot(ctx context.Context, dataType entities.DataType, scopeKey string) (*entities.MetricSnapshot, bool, error) {
	logger := observability.LoggerFromContext(ctx)

	raw, freshness, err := s.cache.Get(ctx, dataType, scopeKey)
	var pastCeiling error
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeStaleBeyondCeiling) {
			pastCeiling = err
		} else {
			logger.Warn().Err(err).Str("data_type", string(dataType)).Str("scope_key", scopeKey).
				Msg("freshness cache read failed")
		}
		freshness = providers.FreshnessUnavailable
	}

	var stale *entities.MetricSnapshot
	switch freshness {
	case providers.FreshnessFresh:
		if snap := s.decodeSnapshot(ctx, raw); snap != nil {
			if s.metrics != nil {
				s.metrics.CacheHitCount.Add(ctx, 1)
			}
			return snap, true, nil
		}
	case providers.FreshnessStale:
		stale = s.decodeSnapshot(ctx, raw)
		if s.metrics != nil {
			s.metrics.CacheStaleCount.Add(ctx, 1)
		}
	default:
		if s.metrics != nil {
			s.metrics.CacheMissCount.Add(ctx, 1)
		}
	}

	snap, err := s.refresh(ctx, dataType, scopeKey)
	if err == nil {
		return snap, true, nil
	}

	if stale != nil {
		logger.Warn().Err(err).Str("data_type", string(dataType)).Str("scope_key", scopeKey).
			Msg("refresh failed, serving stale snapshot")
		return stale, false, nil
	}
	if pastCeiling != nil {
		// A cached value exists but aged past the hard ceiling and the
		// refresh failed too; report the ceiling, not the transport
		logger.Warn().Err(err).Str("data_type", string(dataType)).Str("scope_key", scopeKey).
			Msg("refresh failed with only a past-ceiling entry cached")
		return nil, false, pastCeiling
	}
	return nil, false, err
}

// Refresh forces an upstream fetch for (dataType, scopeKey), bypassing
// the freshness check. Concurrent refreshes of the same pair coalesce.
func (s *MetricService) Refresh(ctx context.Context, dataType entities.DataType, scopeKey string) (*entities.MetricSnapshot, error) {
	return s.refresh(ctx, dataType, scopeKey)
}

func (s *MetricService) refresh(ctx context.Context, dataType entities.DataType, scopeKey string) (*entities.MetricSnapshot, error) {
	source, ok := s.sources[dataType]
	if !ok {
		return nil, apperrors.NewInternalError(fmt.Sprintf("no source registered for data type %q", dataType), nil)
	}

	key := fmt.Sprintf("%s|%s", dataType, scopeKey)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.fetchAndStore(source, dataType, scopeKey)
	})

	select {
	case <-ctx.Done():
		// The in-flight fetch keeps running for the coalesced waiters
		return nil, ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return nil, result.Err
		}
		return result.Val.(*entities.MetricSnapshot), nil
	}
}

// fetchAndStore runs under its own timeout context, detached from any
// single caller, so one cancelled waiter does not abort a fetch other
// callers are coalesced onto.
func (s *MetricService) fetchAndStore(source providers.MetricSource, dataType entities.DataType, scopeKey string) (*entities.MetricSnapshot, error) {
	fetchCtx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	defer cancel()

	logger := observability.GetLogger()

	start := time.Now()
	snap, err := source.Fetch(fetchCtx, scopeKey)
	observability.RecordFetchMetric(fetchCtx, s.metrics, string(dataType), err == nil, time.Since(start))
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeUpstreamMalformed) {
			logger.Error().Err(err).Str("data_type", string(dataType)).Str("scope_key", scopeKey).
				Msg("upstream returned malformed data")
		} else {
			logger.Warn().Err(err).Str("data_type", string(dataType)).Str("scope_key", scopeKey).
				Msg("upstream fetch failed")
		}
		return nil, err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode snapshot", err)
	}
	if err := s.cache.Put(fetchCtx, dataType, scopeKey, data); err != nil {
		logger.Warn().Err(err).Str("data_type", string(dataType)).Str("scope_key", scopeKey).
			Msg("failed to cache snapshot")
	}

	s.publishUpdate(fetchCtx, snap)
	return snap, nil
}

func (s *MetricService) publishUpdate(ctx context.Context, snap *entities.MetricSnapshot) {
	if s.bus == nil {
		return
	}
	event := entities.SnapshotStreamEvent(snap)
	if err := s.bus.Publish(ctx, providers.EventChannelUpdates, event); err != nil {
		observability.GetLogger().Warn().Err(err).Str("data_type", string(snap.DataType)).
			Msg("failed to publish update event")
	}
	if snap.ScopeKey != "" {
		if err := s.bus.Publish(ctx, providers.DistrictUpdatesChannel(snap.ScopeKey), event); err != nil {
			observability.GetLogger().Warn().Err(err).Str("scope_key", snap.ScopeKey).
				Msg("failed to publish district update event")
		}
	}
}

func (s *MetricService) decodeSnapshot(ctx context.Context, raw []byte) *entities.MetricSnapshot {
	var snap entities.MetricSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("corrupt snapshot in cache")
		return nil
	}
	return &snap
}

// StartPolling launches a background loop that keeps the given targets
// warm. Each tick re-reads every target through the freshness cache, so
// upstream is only hit once a target's TTL has lapsed. The loop stops
// when ctx is done.
func (s *MetricService) StartPolling(ctx context.Context, interval time.Duration, targets []PollTarget, newTicker providers.TickerFactory) {
	if newTicker == nil {
		newTicker = providers.SystemTicker
	}

	go func() {
		logger := observability.GetLogger()
		s.pollOnce(ctx, targets)

		ticker := newTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info().Msg("metric polling stopped")
				return
			case <-ticker.C():
				s.pollOnce(ctx, targets)
			}
		}
	}()
}

func (s *MetricService) pollOnce(ctx context.Context, targets []PollTarget) {
	for _, target := range targets {
		if _, _, err := s.Snapshot(ctx, target.DataType, target.ScopeKey); err != nil {
			observability.GetLogger().Warn().Err(err).
				Str("data_type", string(target.DataType)).Str("scope_key", target.ScopeKey).
				Msg("background refresh failed")
		}
	}
}
