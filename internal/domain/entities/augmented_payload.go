package entities

import "time"

// AugmentedPayload is the bundle of facility and metric data attached to
// an agent reply. Sections with no current data are omitted rather than
// zero-filled; consumers treat absence as "no data for this section".
type AugmentedPayload struct {
	Location    LocationHint        `json:"location"`
	Facilities  []*Facility         `json:"facilities,omitempty"`
	AEWaitTimes *AEWaitTimesPayload `json:"ae_waiting_times,omitempty"`
	Advisories  []Advisory          `json:"advisories,omitempty"`
	// FreshAsOf is the freshness of the payload as a whole, the minimum
	// across its sections
	FreshAsOf time.Time `json:"fresh_as_of"`
}

// Empty reports whether no section carries data
func (p *AugmentedPayload) Empty() bool {
	return len(p.Facilities) == 0 && p.AEWaitTimes == nil && len(p.Advisories) == 0
}
