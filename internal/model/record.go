package model

import (
	"math"
	"time"

	"github.com/rotisserie/eris"
)

// InjuryStatus is a player's game-day injury designation.
type InjuryStatus string

const (
	InjuryOut          InjuryStatus = "OUT"
	InjuryQuestionable InjuryStatus = "QUESTIONABLE"
	InjuryActive       InjuryStatus = "ACTIVE"
)

// ResolvedRecord is the authoritative player-status record for one
// (player, season, week), produced fresh by each pipeline run. Every scalar
// field traces to exactly one winning observation or override, recorded in
// ResolutionLog.
type ResolvedRecord struct {
	PlayerID string `json:"player_id"`
	TeamID   string `json:"team_id"`
	Position string `json:"position"`
	Season   int    `json:"season"`
	Week     int    `json:"week"`

	// Depth chart.
	DepthChartRank int     `json:"depth_chart_rank"`
	StarterProb    float64 `json:"starter_prob"`
	SnapShareProj  float64 `json:"snap_share_proj"`

	// Injury.
	InjuryStatus InjuryStatus `json:"injury_status"`
	InjuryNote   string       `json:"injury_note,omitempty"`
	InjuryAsOf   *time.Time   `json:"injury_as_of,omitempty"`
	InjurySource Source       `json:"injury_source,omitempty"`

	// Usage trends (1-week and 4-week EMAs).
	Usage1wSnapPct     float64 `json:"usage_1w_snap_pct"`
	Usage4wSnapPct     float64 `json:"usage_4w_snap_pct"`
	Usage1wRoutePct    float64 `json:"usage_1w_route_pct"`
	Usage4wRoutePct    float64 `json:"usage_4w_route_pct"`
	Usage1wCarryShare  float64 `json:"usage_1w_carry_share"`
	Usage4wCarryShare  float64 `json:"usage_4w_carry_share"`
	Usage1wTargetShare float64 `json:"usage_1w_target_share"`
	Usage4wTargetShare float64 `json:"usage_4w_target_share"`

	// Prior-season returning production.
	PriorSeasonTargetShare float64 `json:"prior_season_target_share"`
	PriorSeasonCarryShare  float64 `json:"prior_season_carry_share"`
	PriorSeasonYardsShare  float64 `json:"prior_season_yards_share"`
	PriorSeasonTDShare     float64 `json:"prior_season_td_share"`

	// Metadata.
	AsOf                   time.Time            `json:"as_of"`
	Source                 Source               `json:"source"`
	FinalConfidence        float64              `json:"final_confidence"`
	ResolutionLog          []ResolutionLogEntry `json:"resolution_log"`
	ManualOverridesApplied []string             `json:"manual_overrides_applied"`
	UpdatedAt              time.Time            `json:"updated_at,omitempty"`
}

// RejectedValue is a losing observation and why it lost.
type RejectedValue struct {
	Value      any     `json:"value"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ResolutionLogEntry records the outcome of resolving one field: the winning
// value and every losing observation. Entries are produced fresh each run and
// never mutated.
type ResolutionLogEntry struct {
	FieldName     string          `json:"field_name"`
	WinningSource Source          `json:"winning_source"`
	Value         any             `json:"value"`
	Confidence    float64         `json:"confidence"`
	Alternatives  []RejectedValue `json:"alternatives,omitempty"`
	Reasoning     string          `json:"reasoning"`
}

// ResolvableFields lists every field the resolver arbitrates, in the order
// resolution runs. The order is part of the determinism contract for
// ResolutionLog.
var ResolvableFields = []string{
	"depth_chart_rank",
	"starter_prob",
	"snap_share_proj",
	"injury_status",
	"injury_note",
	"injury_as_of",
	"usage_1w_snap_pct",
	"usage_4w_snap_pct",
	"usage_1w_route_pct",
	"usage_4w_route_pct",
	"usage_1w_carry_share",
	"usage_4w_carry_share",
	"usage_1w_target_share",
	"usage_4w_target_share",
	"prior_season_target_share",
	"prior_season_carry_share",
	"prior_season_yards_share",
	"prior_season_td_share",
}

// FieldValue returns the current value of a resolvable field, or nil for a
// field that is still at its zero default.
func (r *ResolvedRecord) FieldValue(name string) any {
	switch name {
	case "depth_chart_rank":
		if r.DepthChartRank == 0 {
			return nil
		}
		return r.DepthChartRank
	case "starter_prob":
		return r.StarterProb
	case "snap_share_proj":
		return r.SnapShareProj
	case "injury_status":
		if r.InjuryStatus == "" {
			return nil
		}
		return string(r.InjuryStatus)
	case "injury_note":
		if r.InjuryNote == "" {
			return nil
		}
		return r.InjuryNote
	case "injury_as_of":
		if r.InjuryAsOf == nil {
			return nil
		}
		return *r.InjuryAsOf
	case "usage_1w_snap_pct":
		return r.Usage1wSnapPct
	case "usage_4w_snap_pct":
		return r.Usage4wSnapPct
	case "usage_1w_route_pct":
		return r.Usage1wRoutePct
	case "usage_4w_route_pct":
		return r.Usage4wRoutePct
	case "usage_1w_carry_share":
		return r.Usage1wCarryShare
	case "usage_4w_carry_share":
		return r.Usage4wCarryShare
	case "usage_1w_target_share":
		return r.Usage1wTargetShare
	case "usage_4w_target_share":
		return r.Usage4wTargetShare
	case "prior_season_target_share":
		return r.PriorSeasonTargetShare
	case "prior_season_carry_share":
		return r.PriorSeasonCarryShare
	case "prior_season_yards_share":
		return r.PriorSeasonYardsShare
	case "prior_season_td_share":
		return r.PriorSeasonTDShare
	}
	return nil
}

// SetField assigns a resolvable field from a dynamically-typed observation
// value, coercing JSON number/string representations to the field's type.
func (r *ResolvedRecord) SetField(name string, value any) error {
	switch name {
	case "depth_chart_rank":
		n, err := asInt(value)
		if err != nil {
			return eris.Wrapf(err, "model: set %s", name)
		}
		r.DepthChartRank = n
	case "starter_prob":
		return setFloat(&r.StarterProb, name, value)
	case "snap_share_proj":
		return setFloat(&r.SnapShareProj, name, value)
	case "injury_status":
		s, ok := value.(string)
		if !ok {
			return eris.Errorf("model: set injury_status: expected string, got %T", value)
		}
		r.InjuryStatus = InjuryStatus(s)
	case "injury_note":
		s, ok := value.(string)
		if !ok {
			return eris.Errorf("model: set injury_note: expected string, got %T", value)
		}
		r.InjuryNote = s
	case "injury_as_of":
		t, err := asTime(value)
		if err != nil {
			return eris.Wrap(err, "model: set injury_as_of")
		}
		r.InjuryAsOf = &t
	case "usage_1w_snap_pct":
		return setFloat(&r.Usage1wSnapPct, name, value)
	case "usage_4w_snap_pct":
		return setFloat(&r.Usage4wSnapPct, name, value)
	case "usage_1w_route_pct":
		return setFloat(&r.Usage1wRoutePct, name, value)
	case "usage_4w_route_pct":
		return setFloat(&r.Usage4wRoutePct, name, value)
	case "usage_1w_carry_share":
		return setFloat(&r.Usage1wCarryShare, name, value)
	case "usage_4w_carry_share":
		return setFloat(&r.Usage4wCarryShare, name, value)
	case "usage_1w_target_share":
		return setFloat(&r.Usage1wTargetShare, name, value)
	case "usage_4w_target_share":
		return setFloat(&r.Usage4wTargetShare, name, value)
	case "prior_season_target_share":
		return setFloat(&r.PriorSeasonTargetShare, name, value)
	case "prior_season_carry_share":
		return setFloat(&r.PriorSeasonCarryShare, name, value)
	case "prior_season_yards_share":
		return setFloat(&r.PriorSeasonYardsShare, name, value)
	case "prior_season_td_share":
		return setFloat(&r.PriorSeasonTDShare, name, value)
	default:
		return eris.Errorf("model: unknown field %q", name)
	}
	return nil
}

// ValuesEqual compares two field values with a small numeric tolerance, so a
// re-resolved float does not register as a change on the diff log.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return math.Abs(af-bf) < 0.001
	}
	at, aIsTime := a.(time.Time)
	bt, bIsTime := b.(time.Time)
	if aIsTime && bIsTime {
		return at.Equal(bt)
	}
	return a == b
}

func setFloat(dst *float64, name string, value any) error {
	f, ok := toFloat(value)
	if !ok {
		return eris.Errorf("model: set %s: expected number, got %T", name, value)
	}
	*dst = f
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asInt(v any) (int, error) {
	f, ok := toFloat(v)
	if !ok {
		return 0, eris.Errorf("expected number, got %T", v)
	}
	return int(math.Round(f)), nil
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, eris.Wrapf(err, "parse timestamp %q", t)
		}
		return parsed, nil
	}
	return time.Time{}, eris.Errorf("expected timestamp, got %T", v)
}
