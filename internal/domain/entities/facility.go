package entities

import (
	"time"
)

// Facility represents a healthcare facility in the system. Records are
// produced by the data-ingestion pipeline and read-only here.
type Facility struct {
	ID                string       `json:"id" db:"id"`
	NameEN            string       `json:"name_en" db:"name_en"`
	NameZH            string       `json:"name_zh,omitempty" db:"name_zh"`
	FacilityType      string       `json:"facility_type" db:"facility_type"`
	District          string       `json:"district" db:"district"`
	Address           string       `json:"address" db:"address"`
	PhoneNumber       string       `json:"phone_number" db:"phone_number"`
	EmergencyServices bool         `json:"emergency_services" db:"emergency_services"`
	OpeningHours      OpeningHours `json:"opening_hours,omitempty" db:"-"`
	Services          []string     `json:"services,omitempty" db:"-"`
	QualityScore      float64      `json:"quality_score" db:"quality_score"`
	IsActive          bool         `json:"is_active" db:"is_active"`
	UpdatedAt         time.Time    `json:"updated_at" db:"updated_at"`
}

// OpeningHours maps weekday names ("monday".."sunday") to opening spans
type OpeningHours map[string]DaySchedule

// DaySchedule is the opening span for one weekday. A closed day has
// Open == false.
type DaySchedule struct {
	Open  bool   `json:"open"`
	From  string `json:"from,omitempty"`
	Until string `json:"until,omitempty"`
}

// FacilityType values recognized by the ingestion pipeline
const (
	FacilityTypeHospital = "hospital"
	FacilityTypeClinic   = "clinic"
	FacilityTypeDental   = "dental"
)
