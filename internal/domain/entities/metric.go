package entities

import (
	"encoding/json"
	"time"
)

// DataType identifies a class of cached real-time data. Each type has its
// own time-to-live in the freshness cache.
type DataType string

const (
	DataTypeFacilities     DataType = "facilities"
	DataTypeAEWaitTimes    DataType = "ae_waiting_times"
	DataTypeAirQuality     DataType = "air_quality"
	DataTypeHealthAdvisory DataType = "health_advisory"
)

// MetricSnapshot is one successful fetch from a live data source. A
// snapshot is never mutated; the next fetch for the same (type, key)
// supersedes it.
type MetricSnapshot struct {
	DataType   DataType        `json:"data_type"`
	ScopeKey   string          `json:"scope_key"`
	Payload    json.RawMessage `json:"payload"`
	CapturedAt time.Time       `json:"captured_at"`
}

// NewMetricSnapshot marshals payload into a snapshot captured now
func NewMetricSnapshot(dataType DataType, scopeKey string, payload any, capturedAt time.Time) (*MetricSnapshot, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &MetricSnapshot{
		DataType:   dataType,
		ScopeKey:   scopeKey,
		Payload:    raw,
		CapturedAt: capturedAt,
	}, nil
}

// DecodePayload unmarshals the snapshot payload into out
func (s *MetricSnapshot) DecodePayload(out any) error {
	return json.Unmarshal(s.Payload, out)
}

// AEWaitTimesPayload carries current A&E waiting times for the hospitals
// of one district
type AEWaitTimesPayload struct {
	District string        `json:"district"`
	Entries  []AEWaitEntry `json:"entries"`
}

// AEWaitEntry is the reported wait for a single A&E department
type AEWaitEntry struct {
	FacilityID   string `json:"facility_id,omitempty"`
	FacilityName string `json:"facility_name"`
	WaitText     string `json:"wait_text"`
	WaitMinutes  int    `json:"wait_minutes"`
}

// AirQualityPayload carries the current air quality health index for one
// monitoring station
type AirQualityPayload struct {
	Station string `json:"station"`
	AQHI    int    `json:"aqhi"`
	Risk    string `json:"risk"`
}

// HealthAdvisoryPayload carries the currently active advisories
type HealthAdvisoryPayload struct {
	Advisories []Advisory `json:"advisories"`
}

// Advisory is one active public-health advisory
type Advisory struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Severity string    `json:"severity"`
	IssuedAt time.Time `json:"issued_at"`
}
