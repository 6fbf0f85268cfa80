package resolver

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rosterwatch/depthsync/internal/model"
)

// ResolveError reports a record that could not be resolved. Rejected records
// are surfaced here, never silently dropped.
type ResolveError struct {
	PlayerID string `json:"player_id"`
	Season   int    `json:"season"`
	Week     int    `json:"week"`
	Message  string `json:"message"`
}

// Result is the output of one resolution pass over a batch of observations.
type Result struct {
	Records []model.ResolvedRecord `json:"records"`
	Errors  []ResolveError         `json:"errors,omitempty"`
	Stats   model.ConflictStats    `json:"conflict_stats"`
	DiffLog []model.DiffLogEntry   `json:"diff_log,omitempty"`
}

// Resolver merges field observations and manual overrides into one
// authoritative record per player-week. Resolution is deterministic: the same
// inputs always produce the same records and resolution-log ordering.
type Resolver struct {
	cfg       *Config
	overrides map[string][]model.ManualOverride
	previous  map[string]*model.ResolvedRecord
	now       time.Time // injectable for testing
}

// New creates a Resolver with the given tuning.
func New(cfg *Config) *Resolver {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Resolver{
		cfg:       cfg,
		overrides: make(map[string][]model.ManualOverride),
		previous:  make(map[string]*model.ResolvedRecord),
		now:       time.Now().UTC(),
	}
}

// WithNow sets a fixed time for testing.
func (r *Resolver) WithNow(t time.Time) *Resolver {
	r.now = t
	return r
}

// WithOverrides loads the active manual overrides to consult during
// resolution, indexed by player.
func (r *Resolver) WithOverrides(overrides []model.ManualOverride) *Resolver {
	for _, o := range overrides {
		r.overrides[o.PlayerID] = append(r.overrides[o.PlayerID], o)
	}
	return r
}

// WithPrevious loads the previously published records used for diff-log
// generation.
func (r *Resolver) WithPrevious(records []model.ResolvedRecord) *Resolver {
	for i := range records {
		r.previous[records[i].PlayerID] = &records[i]
	}
	return r
}

// Resolve turns a batch of observations into resolved records. Records
// missing identity fields are rejected and reported; fields with no
// observations and no override are left at their zero defaults for the
// validator to flag.
func (r *Resolver) Resolve(observations []model.FieldObservation) *Result {
	result := &Result{}

	groups := groupByPlayerWeek(observations)
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var confidenceSum float64
	for _, key := range keys {
		group := groups[key]

		rec, err := r.resolvePlayer(group, result)
		if err != nil {
			result.Errors = append(result.Errors, *err)
			continue
		}

		result.Records = append(result.Records, *rec)
		confidenceSum += rec.FinalConfidence
		result.DiffLog = append(result.DiffLog, r.diffAgainstPrevious(rec)...)
	}

	if len(result.Records) > 0 {
		result.Stats.AvgConfidence = confidenceSum / float64(len(result.Records))
	}
	result.Stats.ResolvedConflicts = result.Stats.TotalConflicts

	zap.L().Info("resolver: batch resolved",
		zap.Int("records", len(result.Records)),
		zap.Int("rejected", len(result.Errors)),
		zap.Int("conflicts", result.Stats.TotalConflicts),
		zap.Int("overrides_applied", result.Stats.ManualOverridesApplied),
	)

	return result
}

// resolvePlayer builds one ResolvedRecord from a player-week's observations.
func (r *Resolver) resolvePlayer(group []model.FieldObservation, result *Result) (*model.ResolvedRecord, *ResolveError) {
	// Identity comes from the highest-priority observation carrying it.
	sorted := make([]model.FieldObservation, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return model.PriorityOf(sorted[i].Source) > model.PriorityOf(sorted[j].Source)
	})

	rec := &model.ResolvedRecord{
		PlayerID: sorted[0].PlayerID,
		Season:   sorted[0].Season,
		Week:     sorted[0].Week,
	}
	for _, obs := range sorted {
		if rec.TeamID == "" && obs.TeamID != "" {
			rec.TeamID = obs.TeamID
		}
		if rec.Position == "" && obs.Position != "" {
			rec.Position = obs.Position
		}
	}

	if rec.PlayerID == "" || rec.TeamID == "" || rec.Position == "" {
		return nil, &ResolveError{
			PlayerID: rec.PlayerID,
			Season:   rec.Season,
			Week:     rec.Week,
			Message:  "missing identity fields (player_id, team_id, position), record rejected before resolution",
		}
	}

	byField := make(map[string][]model.FieldObservation)
	for _, obs := range group {
		if obs.Value == nil {
			continue
		}
		byField[obs.FieldName] = append(byField[obs.FieldName], obs)
	}

	var winningConfidences []float64
	var latestAsOf time.Time
	primarySource := model.SourceUnknown

	for _, field := range model.ResolvableFields {
		entry, winner := r.resolveField(rec, field, byField[field], result)
		if entry == nil {
			continue // no observation and no override — zero default stands
		}

		rec.ResolutionLog = append(rec.ResolutionLog, *entry)
		winningConfidences = append(winningConfidences, entry.Confidence)
		if len(entry.Alternatives) > 0 {
			result.Stats.TotalConflicts++
		}

		if model.PriorityOf(entry.WinningSource) > model.PriorityOf(primarySource) {
			primarySource = entry.WinningSource
		}
		if winner != nil {
			if winner.AsOf.After(latestAsOf) {
				latestAsOf = winner.AsOf
			}
			if field == "injury_status" {
				rec.InjurySource = winner.Source
				if rec.InjuryAsOf == nil {
					asOf := winner.AsOf
					rec.InjuryAsOf = &asOf
				}
			}
		}
	}

	rec.Source = primarySource
	rec.AsOf = latestAsOf
	if rec.AsOf.IsZero() {
		rec.AsOf = r.now
	}
	if rec.ManualOverridesApplied == nil {
		rec.ManualOverridesApplied = []string{}
	}

	// Mean of per-field winning confidences, before the validator's
	// adjustment is applied.
	if len(winningConfidences) > 0 {
		var sum float64
		for _, c := range winningConfidences {
			sum += c
		}
		rec.FinalConfidence = sum / float64(len(winningConfidences))
	}

	return rec, nil
}

// resolveField picks one value for a field and writes it onto the record.
// Active overrides win unconditionally; otherwise the highest weighted score
// (reliability × confidence × recency decay) wins, ties broken by fixed
// source priority. Returns the log entry and the winning observation (nil
// when an override won).
func (r *Resolver) resolveField(rec *model.ResolvedRecord, field string, observations []model.FieldObservation, result *Result) (*model.ResolutionLogEntry, *model.FieldObservation) {
	if override := r.activeOverride(rec.PlayerID, rec.Week, field); override != nil {
		if err := rec.SetField(field, override.OverrideValue); err != nil {
			result.Errors = append(result.Errors, ResolveError{
				PlayerID: rec.PlayerID,
				Season:   rec.Season,
				Week:     rec.Week,
				Message:  fmt.Sprintf("override %s: %v", override.ID, err),
			})
			return nil, nil
		}

		entry := &model.ResolutionLogEntry{
			FieldName:     field,
			WinningSource: model.SourceManualOverride,
			Value:         override.OverrideValue,
			Confidence:    1.0,
			Reasoning:     fmt.Sprintf("manual override by %s: %s", override.AdminUserID, override.Reason),
		}
		for _, obs := range observations {
			entry.Alternatives = append(entry.Alternatives, model.RejectedValue{
				Value:      obs.Value,
				Source:     obs.Source,
				Confidence: obs.Confidence,
				Reason:     "overridden by admin",
			})
		}

		rec.ManualOverridesApplied = append(rec.ManualOverridesApplied, override.ID)
		result.Stats.ManualOverridesApplied++
		return entry, nil
	}

	if len(observations) == 0 {
		return nil, nil
	}

	candidates := make([]candidate, 0, len(observations))
	for _, obs := range observations {
		rel := r.cfg.ReliabilityOf(obs.Source)
		dec := RecencyDecay(obs.AsOf, r.now, r.cfg.Decay)
		candidates = append(candidates, candidate{
			obs:         obs,
			reliability: rel,
			decay:       dec,
			score:       rel * obs.Confidence * dec,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		pi, pj := model.PriorityOf(candidates[i].obs.Source), model.PriorityOf(candidates[j].obs.Source)
		if pi != pj {
			return pi > pj
		}
		if !candidates[i].obs.AsOf.Equal(candidates[j].obs.AsOf) {
			return candidates[i].obs.AsOf.After(candidates[j].obs.AsOf)
		}
		return candidates[i].obs.Source < candidates[j].obs.Source
	})

	winner := candidates[0]
	if err := rec.SetField(field, winner.obs.Value); err != nil {
		result.Errors = append(result.Errors, ResolveError{
			PlayerID: rec.PlayerID,
			Season:   rec.Season,
			Week:     rec.Week,
			Message:  fmt.Sprintf("field %s from %s: %v", field, winner.obs.Source, err),
		})
		return nil, nil
	}

	entry := &model.ResolutionLogEntry{
		FieldName:     field,
		WinningSource: winner.obs.Source,
		Value:         winner.obs.Value,
		Confidence:    winner.obs.Confidence,
		Reasoning: fmt.Sprintf("won by weighted score %.3f (reliability %.2f × confidence %.2f × recency %.2f)",
			winner.score, winner.reliability, winner.obs.Confidence, winner.decay),
	}
	for _, loser := range candidates[1:] {
		entry.Alternatives = append(entry.Alternatives, model.RejectedValue{
			Value:      loser.obs.Value,
			Source:     loser.obs.Source,
			Confidence: loser.obs.Confidence,
			Reason:     rejectionReason(winner, loser),
		})
	}

	winObs := winner.obs
	return entry, &winObs
}

// activeOverride returns the winning override for a field, or nil. Among
// multiple active overrides the highest priority wins, ties broken by most
// recent creation.
func (r *Resolver) activeOverride(playerID string, week int, field string) *model.ManualOverride {
	var best *model.ManualOverride
	for i := range r.overrides[playerID] {
		o := &r.overrides[playerID][i]
		if o.FieldName != field || !o.ActiveAt(r.now, week) {
			continue
		}
		switch {
		case best == nil:
			best = o
		case o.Priority > best.Priority:
			best = o
		case o.Priority == best.Priority && o.CreatedAt.After(best.CreatedAt):
			best = o
		}
	}
	return best
}

// diffAgainstPrevious generates field-level change entries relative to the
// prior published record for the player.
func (r *Resolver) diffAgainstPrevious(rec *model.ResolvedRecord) []model.DiffLogEntry {
	prev, ok := r.previous[rec.PlayerID]
	if !ok {
		return []model.DiffLogEntry{{
			PlayerID:   rec.PlayerID,
			FieldName:  "_record",
			ChangeType: model.ChangeCreated,
			NewValue:   rec.DepthChartRank,
			Source:     rec.Source,
			Confidence: rec.FinalConfidence,
			Reasoning:  "new player record created",
		}}
	}

	var diffs []model.DiffLogEntry
	for _, field := range model.ResolvableFields {
		oldVal := prev.FieldValue(field)
		newVal := rec.FieldValue(field)
		if model.ValuesEqual(oldVal, newVal) {
			continue
		}
		diffs = append(diffs, model.DiffLogEntry{
			PlayerID:   rec.PlayerID,
			FieldName:  field,
			ChangeType: model.ChangeUpdated,
			OldValue:   oldVal,
			NewValue:   newVal,
			Source:     rec.Source,
			Confidence: rec.FinalConfidence,
			Reasoning:  changeReasoning(field, oldVal, newVal),
		})
	}
	return diffs
}

// candidate is one observation with its weighted score components.
type candidate struct {
	obs         model.FieldObservation
	reliability float64
	decay       float64
	score       float64
}

func rejectionReason(winner, loser candidate) string {
	switch {
	case loser.reliability < winner.reliability:
		return "lower source reliability"
	case loser.decay < winner.decay:
		return "stale timestamp"
	case loser.obs.Confidence < winner.obs.Confidence:
		return "lower confidence"
	default:
		return "lower weighted score"
	}
}

func changeReasoning(field string, oldVal, newVal any) string {
	switch {
	case field == "injury_status":
		return fmt.Sprintf("injury status changed from %v to %v", oldVal, newVal)
	case field == "depth_chart_rank":
		return fmt.Sprintf("depth chart position changed from %v to %v", oldVal, newVal)
	case len(field) > 5 && field[:5] == "usage":
		return "usage trend updated"
	default:
		return fmt.Sprintf("%s changed from %v to %v", field, oldVal, newVal)
	}
}

func groupByPlayerWeek(observations []model.FieldObservation) map[string][]model.FieldObservation {
	groups := make(map[string][]model.FieldObservation)
	for _, obs := range observations {
		key := fmt.Sprintf("%s_%d_%d", obs.PlayerID, obs.Season, obs.Week)
		groups[key] = append(groups[key], obs)
	}
	return groups
}
