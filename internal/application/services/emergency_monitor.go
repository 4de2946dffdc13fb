package services

import (
	"context"
	"fmt"
	"time"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/providers"
	"github.com/hk-health-ai/backend/internal/infrastructure/observability"
	"github.com/hk-health-ai/backend/pkg/config"
)

// aqhiSeriousLevel is the index value the EPD classifies as "serious"
const aqhiSeriousLevel = 10

// EmergencyMonitor watches the cached metrics for emergency conditions
// and raises alerts on the event bus. Evaluation is periodic and reads
// through the metric service, so it never adds upstream load beyond the
// normal TTL cycle. A condition that persists re-alerts every cycle;
// consumers deduplicate.
type EmergencyMonitor struct {
	metricSvc       *MetricService
	bus             providers.EventBus
	clock           providers.Clock
	newTicker       providers.TickerFactory
	interval        time.Duration
	aeWaitThreshold time.Duration
	aqhiThreshold   int
}

// NewEmergencyMonitor creates a monitor from configuration. Nil clock or
// ticker factory default to the system versions.
func NewEmergencyMonitor(
	metricSvc *MetricService,
	bus providers.EventBus,
	cfg *config.MonitorConfig,
	clock providers.Clock,
	newTicker providers.TickerFactory,
) *EmergencyMonitor {
	if clock == nil {
		clock = providers.SystemClock{}
	}
	if newTicker == nil {
		newTicker = providers.SystemTicker
	}
	return &EmergencyMonitor{
		metricSvc:       metricSvc,
		bus:             bus,
		clock:           clock,
		newTicker:       newTicker,
		interval:        cfg.Interval,
		aeWaitThreshold: cfg.AEWaitThreshold,
		aqhiThreshold:   cfg.AQHIThreshold,
	}
}

// Run evaluates emergency conditions once per interval until ctx is done
func (m *EmergencyMonitor) Run(ctx context.Context) {
	logger := observability.GetLogger()
	logger.Info().Dur("interval", m.interval).Msg("emergency monitor started")

	ticker := m.newTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("emergency monitor stopped")
			return
		case <-ticker.C():
			m.Evaluate(ctx)
		}
	}
}

// Evaluate runs one monitoring cycle: each tripped condition produces
// exactly one alert, published to the alerts channel. The emitted alerts
// are returned for inspection.
func (m *EmergencyMonitor) Evaluate(ctx context.Context) []*entities.AlertEvent {
	now := m.clock.Now()

	var alerts []*entities.AlertEvent
	alerts = append(alerts, m.checkAEWaits(ctx, now)...)
	alerts = append(alerts, m.checkAirQuality(ctx, now)...)
	alerts = append(alerts, m.checkAdvisories(ctx, now)...)

	for _, alert := range alerts {
		m.publish(ctx, alert)
	}
	return alerts
}

func (m *EmergencyMonitor) checkAEWaits(ctx context.Context, now time.Time) []*entities.AlertEvent {
	snap, _, err := m.metricSvc.Snapshot(ctx, entities.DataTypeAEWaitTimes, "")
	if err != nil {
		observability.GetLogger().Debug().Err(err).Msg("waiting times unavailable for monitoring")
		return nil
	}
	var waits entities.AEWaitTimesPayload
	if err := snap.DecodePayload(&waits); err != nil {
		return nil
	}

	threshold := int(m.aeWaitThreshold.Minutes())
	var alerts []*entities.AlertEvent
	for _, entry := range waits.Entries {
		if entry.WaitMinutes < threshold {
			continue
		}
		alerts = append(alerts, entities.NewAlertEvent(
			entities.AlertKindAEOverload,
			entities.AlertSeverityCritical,
			fmt.Sprintf("A&E waiting time at %s is %s", entry.FacilityName, entry.WaitText),
			map[string]any{
				"facility_name": entry.FacilityName,
				"wait_minutes":  entry.WaitMinutes,
				"wait_text":     entry.WaitText,
			},
			now,
		))
	}
	return alerts
}

func (m *EmergencyMonitor) checkAirQuality(ctx context.Context, now time.Time) []*entities.AlertEvent {
	snap, _, err := m.metricSvc.Snapshot(ctx, entities.DataTypeAirQuality, "")
	if err != nil {
		observability.GetLogger().Debug().Err(err).Msg("air quality unavailable for monitoring")
		return nil
	}
	var air entities.AirQualityPayload
	if err := snap.DecodePayload(&air); err != nil {
		return nil
	}
	if air.AQHI < m.aqhiThreshold {
		return nil
	}

	severity := entities.AlertSeverityWarning
	if air.AQHI >= aqhiSeriousLevel {
		severity = entities.AlertSeverityCritical
	}
	return []*entities.AlertEvent{entities.NewAlertEvent(
		entities.AlertKindAirQuality,
		severity,
		fmt.Sprintf("Air quality health index at %s reached %d (%s)", air.Station, air.AQHI, air.Risk),
		map[string]any{
			"station": air.Station,
			"aqhi":    air.AQHI,
			"risk":    air.Risk,
		},
		now,
	)}
}

func (m *EmergencyMonitor) checkAdvisories(ctx context.Context, now time.Time) []*entities.AlertEvent {
	snap, _, err := m.metricSvc.Snapshot(ctx, entities.DataTypeHealthAdvisory, "")
	if err != nil {
		observability.GetLogger().Debug().Err(err).Msg("advisories unavailable for monitoring")
		return nil
	}
	var payload entities.HealthAdvisoryPayload
	if err := snap.DecodePayload(&payload); err != nil {
		return nil
	}

	var alerts []*entities.AlertEvent
	for _, advisory := range payload.Advisories {
		if advisory.Severity != "critical" && advisory.Severity != "emergency" {
			continue
		}
		alerts = append(alerts, entities.NewAlertEvent(
			entities.AlertKindHealthAdvisory,
			entities.AlertSeverityCritical,
			fmt.Sprintf("Health advisory in effect: %s", advisory.Title),
			map[string]any{
				"advisory_id": advisory.ID,
				"title":       advisory.Title,
				"issued_at":   advisory.IssuedAt,
			},
			now,
		))
	}
	return alerts
}

func (m *EmergencyMonitor) publish(ctx context.Context, alert *entities.AlertEvent) {
	logger := observability.GetLogger()

	event, err := alert.ToStreamEvent()
	if err != nil {
		logger.Error().Err(err).Str("kind", string(alert.Kind)).Msg("failed to encode alert")
		return
	}
	if err := m.bus.Publish(ctx, providers.EventChannelAlerts, event); err != nil {
		logger.Error().Err(err).Str("kind", string(alert.Kind)).Msg("failed to publish alert")
		return
	}
	logger.Warn().
		Str("kind", string(alert.Kind)).
		Str("severity", string(alert.Severity)).
		Str("summary", alert.Summary).
		Msg("emergency alert raised")
}
