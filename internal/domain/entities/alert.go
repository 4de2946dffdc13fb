package entities

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AlertKind identifies the emergency condition that raised an alert
type AlertKind string

const (
	AlertKindAEOverload     AlertKind = "ae_overload"
	AlertKindAirQuality     AlertKind = "air_quality"
	AlertKindHealthAdvisory AlertKind = "health_advisory"
)

// AlertSeverity grades an alert
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertEvent is an emergency alert emitted by the monitor. Immutable once
// created; fanned out to subscribers and not persisted by this service.
type AlertEvent struct {
	ID        string         `json:"id"`
	Kind      AlertKind      `json:"kind"`
	Severity  AlertSeverity  `json:"severity"`
	Summary   string         `json:"summary"`
	Detail    map[string]any `json:"detail,omitempty"`
	EmittedAt time.Time      `json:"emitted_at"`
}

// NewAlertEvent creates an alert emitted at the given instant
func NewAlertEvent(kind AlertKind, severity AlertSeverity, summary string, detail map[string]any, emittedAt time.Time) *AlertEvent {
	return &AlertEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Severity:  severity,
		Summary:   summary,
		Detail:    detail,
		EmittedAt: emittedAt,
	}
}

// StreamEventType is the wire-level type tag of a pushed message
type StreamEventType string

const (
	StreamEventAEWaitTimes    StreamEventType = "ae_waiting_times"
	StreamEventAirQuality     StreamEventType = "air_quality"
	StreamEventHealthAdvisory StreamEventType = "health_advisory"
	StreamEventEmergencyAlert StreamEventType = "emergency_alert"
)

// StreamEvent is the unit pushed to subscribers: a type tag, a
// type-specific JSON payload and an ISO-8601 timestamp
type StreamEvent struct {
	ID        string          `json:"id"`
	Type      StreamEventType `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// ToStreamEvent wraps the alert for delivery to subscribers
func (e *AlertEvent) ToStreamEvent() (*StreamEvent, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return &StreamEvent{
		ID:        e.ID,
		Type:      StreamEventEmergencyAlert,
		Payload:   payload,
		Timestamp: e.EmittedAt,
	}, nil
}

// SnapshotStreamEvent wraps a metric snapshot for delivery to subscribers
func SnapshotStreamEvent(s *MetricSnapshot) *StreamEvent {
	return &StreamEvent{
		ID:        uuid.NewString(),
		Type:      StreamEventType(s.DataType),
		Payload:   s.Payload,
		Timestamp: s.CapturedAt,
	}
}
