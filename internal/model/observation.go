package model

import "time"

// Source identifies where an observation came from.
type Source string

const (
	SourceManualOverride Source = "manual_override"
	SourceTeamNotes      Source = "team_notes"
	SourceVendorESPN     Source = "vendor_espn"
	SourceVendor247      Source = "vendor_247"
	SourceVendorOn3      Source = "vendor_on3"
	SourceCFBDAPI        Source = "cfbd_api"
	SourceStatsInference Source = "stats_inference"
	SourceUnknown        Source = "unknown"
)

// SourcePriority is the fixed tie-break ordering among sources
// (higher wins). Reliability weights are tunable; this ordering is not.
var SourcePriority = map[Source]int{
	SourceManualOverride: 100,
	SourceTeamNotes:      90,
	SourceVendorESPN:     80,
	SourceVendor247:      75,
	SourceVendorOn3:      75,
	SourceCFBDAPI:        70,
	SourceStatsInference: 60,
	SourceUnknown:        30,
}

// PriorityOf returns the fixed priority for a source, defaulting to the
// unknown tier for unrecognized sources.
func PriorityOf(s Source) int {
	if p, ok := SourcePriority[s]; ok {
		return p
	}
	return SourcePriority[SourceUnknown]
}

// FieldObservation is one source's claim about one field's value for one
// player-week. Observations are immutable inputs; many may exist for the
// same (player, field) per run.
type FieldObservation struct {
	PlayerID   string    `json:"player_id"`
	TeamID     string    `json:"team_id,omitempty"`
	Position   string    `json:"position,omitempty"`
	Season     int       `json:"season"`
	Week       int       `json:"week"`
	FieldName  string    `json:"field_name"`
	Value      any       `json:"value"`
	Source     Source    `json:"source"`
	AsOf       time.Time `json:"as_of"`
	Confidence float64   `json:"confidence"`
}

// OverrideStatus is the review state of a manual override.
type OverrideStatus string

const (
	OverridePending  OverrideStatus = "PENDING"
	OverrideApproved OverrideStatus = "APPROVED"
	OverrideRejected OverrideStatus = "REJECTED"
)

// ManualOverride is an administrative value assertion that takes precedence
// over any source observation while active and within its effective window.
// Week 0 means the override applies to every week of the season.
type ManualOverride struct {
	ID               string         `json:"id"`
	PlayerID         string         `json:"player_id"`
	Season           int            `json:"season"`
	Week             int            `json:"week"`
	FieldName        string         `json:"field_name"`
	OverrideValue    any            `json:"override_value"`
	Priority         int            `json:"priority"`
	AdminUserID      string         `json:"admin_user_id"`
	Reason           string         `json:"reason"`
	EffectiveFrom    time.Time      `json:"effective_from"`
	ExpiresAt        *time.Time     `json:"expires_at,omitempty"`
	IsActive         bool           `json:"is_active"`
	ValidationStatus OverrideStatus `json:"validation_status"`
	CreatedAt        time.Time      `json:"created_at"`
}

// ActiveAt reports whether the override applies at the given instant for the
// given week. Rejected and deactivated overrides never apply.
func (o *ManualOverride) ActiveAt(now time.Time, week int) bool {
	if !o.IsActive || o.ValidationStatus == OverrideRejected {
		return false
	}
	if o.Week != 0 && o.Week != week {
		return false
	}
	if now.Before(o.EffectiveFrom) {
		return false
	}
	if o.ExpiresAt != nil && !now.Before(*o.ExpiresAt) {
		return false
	}
	return true
}
