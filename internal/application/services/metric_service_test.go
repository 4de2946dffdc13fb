package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hk-health-ai/backend/internal/adapters/events"
	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/providers"
	apperrors "github.com/hk-health-ai/backend/pkg/errors"
)

// stubFreshnessCache lets tests pin the freshness of individual entries
type stubFreshnessCache struct {
	mu     sync.Mutex
	values map[string][]byte
	state  map[string]providers.Freshness
	errs   map[string]error
}

func newStubFreshnessCache() *stubFreshnessCache {
	return &stubFreshnessCache{
		values: make(map[string][]byte),
		state:  make(map[string]providers.Freshness),
		errs:   make(map[string]error),
	}
}

func (c *stubFreshnessCache) key(dataType entities.DataType, key string) string {
	return fmt.Sprintf("%s:%s", dataType, key)
}

func (c *stubFreshnessCache) Get(_ context.Context, dataType entities.DataType, key string) ([]byte, providers.Freshness, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(dataType, key)
	if err, ok := c.errs[k]; ok {
		return nil, providers.FreshnessUnavailable, err
	}
	value, ok := c.values[k]
	if !ok {
		return nil, providers.FreshnessUnavailable, nil
	}
	return value, c.state[k], nil
}

func (c *stubFreshnessCache) Put(_ context.Context, dataType entities.DataType, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(dataType, key)
	c.values[k] = value
	c.state[k] = providers.FreshnessFresh
	delete(c.errs, k)
	return nil
}

func (c *stubFreshnessCache) Invalidate(_ context.Context, dataType entities.DataType, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, c.key(dataType, key))
	return nil
}

func (c *stubFreshnessCache) TTL(entities.DataType) time.Duration { return 5 * time.Minute }

func (c *stubFreshnessCache) markStale(dataType entities.DataType, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[c.key(dataType, key)] = providers.FreshnessStale
}

func (c *stubFreshnessCache) markBeyondCeiling(dataType entities.DataType, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(dataType, key)
	delete(c.values, k)
	c.errs[k] = apperrors.NewStaleBeyondCeilingError(string(dataType), key)
}

func (c *stubFreshnessCache) seed(t *testing.T, dataType entities.DataType, key string, snap *entities.MetricSnapshot) {
	t.Helper()
	data, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NoError(t, c.Put(context.Background(), dataType, key, data))
}

// countingSource counts upstream fetches and optionally delays or fails
type countingSource struct {
	dataType entities.DataType
	calls    atomic.Int64
	delay    time.Duration
	err      error
	aqhi     int
}

func (s *countingSource) DataType() entities.DataType { return s.dataType }

func (s *countingSource) Fetch(ctx context.Context, scopeKey string) (*entities.MetricSnapshot, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, apperrors.NewUpstreamUnavailableError(string(s.dataType), ctx.Err())
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	payload := entities.AirQualityPayload{Station: scopeKey, AQHI: s.aqhi, Risk: "low"}
	return entities.NewMetricSnapshot(s.dataType, scopeKey, payload, time.Now().UTC())
}

func TestSnapshotFreshHitSkipsUpstream(t *testing.T) {
	cache := newStubFreshnessCache()
	source := &countingSource{dataType: entities.DataTypeAirQuality, aqhi: 3}
	svc := NewMetricService(cache, []providers.MetricSource{source}, nil, nil, time.Second)

	seeded, err := entities.NewMetricSnapshot(entities.DataTypeAirQuality, "central",
		entities.AirQualityPayload{Station: "central", AQHI: 2, Risk: "low"}, time.Now().UTC())
	require.NoError(t, err)
	cache.seed(t, entities.DataTypeAirQuality, "central", seeded)

	snap, fresh, err := svc.Snapshot(context.Background(), entities.DataTypeAirQuality, "central")

	require.NoError(t, err)
	assert.True(t, fresh)
	var payload entities.AirQualityPayload
	require.NoError(t, snap.DecodePayload(&payload))
	assert.Equal(t, 2, payload.AQHI)
	assert.Equal(t, int64(0), source.calls.Load(), "fresh hit must not reach upstream")
}

func TestSnapshotCoalescesConcurrentRefreshes(t *testing.T) {
	cache := newStubFreshnessCache()
	source := &countingSource{dataType: entities.DataTypeAirQuality, delay: 50 * time.Millisecond, aqhi: 5}
	svc := NewMetricService(cache, []providers.MetricSource{source}, nil, nil, time.Second)

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*entities.MetricSnapshot, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = svc.Snapshot(context.Background(), entities.DataTypeAirQuality, "central")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
	}
	assert.Equal(t, int64(1), source.calls.Load(), "concurrent expiries must coalesce into one fetch")
}

func TestSnapshotServesStaleWhenUpstreamFails(t *testing.T) {
	cache := newStubFreshnessCache()
	source := &countingSource{
		dataType: entities.DataTypeAirQuality,
		err:      apperrors.NewUpstreamUnavailableError("aqhi", assert.AnError),
	}
	svc := NewMetricService(cache, []providers.MetricSource{source}, nil, nil, time.Second)

	seeded, err := entities.NewMetricSnapshot(entities.DataTypeAirQuality, "central",
		entities.AirQualityPayload{Station: "central", AQHI: 4, Risk: "moderate"}, time.Now().UTC())
	require.NoError(t, err)
	cache.seed(t, entities.DataTypeAirQuality, "central", seeded)
	cache.markStale(entities.DataTypeAirQuality, "central")

	snap, fresh, err := svc.Snapshot(context.Background(), entities.DataTypeAirQuality, "central")

	require.NoError(t, err)
	assert.False(t, fresh, "stale fallback must be labeled not fresh")
	var payload entities.AirQualityPayload
	require.NoError(t, snap.DecodePayload(&payload))
	assert.Equal(t, 4, payload.AQHI)
	assert.Equal(t, int64(1), source.calls.Load())
}

func TestSnapshotFailsWhenNothingServable(t *testing.T) {
	cache := newStubFreshnessCache()
	source := &countingSource{
		dataType: entities.DataTypeAirQuality,
		err:      apperrors.NewUpstreamUnavailableError("aqhi", assert.AnError),
	}
	svc := NewMetricService(cache, []providers.MetricSource{source}, nil, nil, time.Second)

	snap, _, err := svc.Snapshot(context.Background(), entities.DataTypeAirQuality, "central")

	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, apperrors.IsUpstreamFailure(err))
}

func TestSnapshotReportsCeilingWhenRefreshFails(t *testing.T) {
	cache := newStubFreshnessCache()
	source := &countingSource{
		dataType: entities.DataTypeAirQuality,
		err:      apperrors.NewUpstreamUnavailableError("aqhi", assert.AnError),
	}
	svc := NewMetricService(cache, []providers.MetricSource{source}, nil, nil, time.Second)

	cache.markBeyondCeiling(entities.DataTypeAirQuality, "central")

	snap, _, err := svc.Snapshot(context.Background(), entities.DataTypeAirQuality, "central")

	require.Error(t, err)
	assert.Nil(t, snap)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStaleBeyondCeiling),
		"a value existed but aged out; the ceiling wins over the transport error")
	assert.Equal(t, int64(1), source.calls.Load(), "the ceiling entry still triggers a refresh attempt")
}

func TestSnapshotNoSourceRegistered(t *testing.T) {
	svc := NewMetricService(newStubFreshnessCache(), nil, nil, nil, time.Second)

	_, _, err := svc.Snapshot(context.Background(), entities.DataTypeAEWaitTimes, "Sha Tin")

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}

func TestRefreshStoresAndPublishes(t *testing.T) {
	cache := newStubFreshnessCache()
	source := &countingSource{dataType: entities.DataTypeAirQuality, aqhi: 7}
	bus := events.NewMemoryEventBus()
	defer bus.Close()
	svc := NewMetricService(cache, []providers.MetricSource{source}, bus, nil, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := bus.Subscribe(ctx, providers.EventChannelUpdates)
	require.NoError(t, err)

	snap, err := svc.Refresh(context.Background(), entities.DataTypeAirQuality, "central")
	require.NoError(t, err)
	require.NotNil(t, snap)

	raw, freshness, err := cache.Get(context.Background(), entities.DataTypeAirQuality, "central")
	require.NoError(t, err)
	assert.Equal(t, providers.FreshnessFresh, freshness)
	assert.NotEmpty(t, raw)

	select {
	case event := <-updates:
		assert.Equal(t, entities.StreamEventAirQuality, event.Type)
	case <-time.After(time.Second):
		t.Fatal("expected an update event after refresh")
	}
}

type fakeTicker struct {
	ch chan time.Time
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop()               {}

func TestPollingRefreshesEachTick(t *testing.T) {
	cache := newStubFreshnessCache()
	source := &countingSource{dataType: entities.DataTypeAirQuality, aqhi: 3}
	svc := NewMetricService(cache, []providers.MetricSource{source}, nil, nil, time.Second)

	ticker := &fakeTicker{ch: make(chan time.Time)}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.StartPolling(ctx, time.Minute,
		[]PollTarget{{DataType: entities.DataTypeAirQuality, ScopeKey: "central"}},
		func(time.Duration) providers.Ticker { return ticker },
	)

	require.Eventually(t, func() bool { return source.calls.Load() == 1 },
		time.Second, 5*time.Millisecond, "initial warm-up fetch")

	// A fresh entry must not be refetched on the next tick
	ticker.ch <- time.Now()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), source.calls.Load())

	// Once the entry lapses the tick triggers a refetch
	cache.markStale(entities.DataTypeAirQuality, "central")
	ticker.ch <- time.Now()
	require.Eventually(t, func() bool { return source.calls.Load() == 2 },
		time.Second, 5*time.Millisecond, "stale entry refetched on tick")
}
