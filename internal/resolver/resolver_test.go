package resolver

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rosterwatch/depthsync/internal/model"
)

var testNow = time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

func obs(playerID, field string, value any, src model.Source, conf float64, asOf time.Time) model.FieldObservation {
	return model.FieldObservation{
		PlayerID:   playerID,
		TeamID:     "UGA",
		Position:   "RB",
		Season:     2025,
		Week:       5,
		FieldName:  field,
		Value:      value,
		Source:     src,
		AsOf:       asOf,
		Confidence: conf,
	}
}

func TestResolve_HigherWeightedScoreWins(t *testing.T) {
	r := New(nil).WithNow(testNow)

	res := r.Resolve([]model.FieldObservation{
		obs("p1", "depth_chart_rank", 1, model.SourceTeamNotes, 0.9, testNow),
		obs("p1", "depth_chart_rank", 2, model.SourceStatsInference, 0.6, testNow),
	})

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, 1, rec.DepthChartRank)
	assert.Equal(t, model.SourceTeamNotes, rec.Source)

	require.Len(t, rec.ResolutionLog, 1)
	entry := rec.ResolutionLog[0]
	assert.Equal(t, model.SourceTeamNotes, entry.WinningSource)
	require.Len(t, entry.Alternatives, 1)
	assert.Equal(t, model.SourceStatsInference, entry.Alternatives[0].Source)
	assert.Equal(t, "lower source reliability", entry.Alternatives[0].Reason)

	assert.Equal(t, 1, res.Stats.TotalConflicts)
	assert.Equal(t, res.Stats.TotalConflicts, res.Stats.ResolvedConflicts)
}

func TestResolve_RecencyDecayFlipsWinner(t *testing.T) {
	r := New(nil).WithNow(testNow)

	// ESPN (0.85) observed three weeks ago decays below a fresh CFBD (0.75)
	// observation at equal confidence.
	res := r.Resolve([]model.FieldObservation{
		obs("p1", "depth_chart_rank", 1, model.SourceVendorESPN, 0.8, testNow.Add(-21*24*time.Hour)),
		obs("p1", "depth_chart_rank", 2, model.SourceCFBDAPI, 0.8, testNow),
	})

	require.Len(t, res.Records, 1)
	assert.Equal(t, 2, res.Records[0].DepthChartRank)
	assert.Equal(t, "stale timestamp", res.Records[0].ResolutionLog[0].Alternatives[0].Reason)
}

func TestResolve_TieBrokenBySourceName(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Reliability[model.SourceVendor247] = 0.8
	cfg.Reliability[model.SourceVendorOn3] = 0.8
	r := New(cfg).WithNow(testNow)

	res := r.Resolve([]model.FieldObservation{
		obs("p1", "injury_status", "ACTIVE", model.SourceVendorOn3, 0.7, testNow),
		obs("p1", "injury_status", "QUESTIONABLE", model.SourceVendor247, 0.7, testNow),
	})

	require.Len(t, res.Records, 1)
	// Equal score and equal priority: earlier source name wins.
	assert.Equal(t, model.InjuryStatus("QUESTIONABLE"), res.Records[0].InjuryStatus)
}

func TestResolve_OverrideBeatsEverySource(t *testing.T) {
	r := New(nil).WithNow(testNow).WithOverrides([]model.ManualOverride{{
		ID:               "ov-1",
		PlayerID:         "p1",
		Season:           2025,
		Week:             5,
		FieldName:        "depth_chart_rank",
		OverrideValue:    float64(3),
		Priority:         10,
		AdminUserID:      "admin@rosterwatch",
		Reason:           "coach confirmed demotion",
		EffectiveFrom:    testNow.Add(-time.Hour),
		IsActive:         true,
		ValidationStatus: model.OverrideApproved,
		CreatedAt:        testNow.Add(-time.Hour),
	}})

	res := r.Resolve([]model.FieldObservation{
		obs("p1", "depth_chart_rank", 1, model.SourceTeamNotes, 0.99, testNow),
	})

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, 3, rec.DepthChartRank)
	assert.Equal(t, []string{"ov-1"}, rec.ManualOverridesApplied)
	assert.Equal(t, 1, res.Stats.ManualOverridesApplied)

	entry := rec.ResolutionLog[0]
	assert.Equal(t, model.SourceManualOverride, entry.WinningSource)
	assert.Equal(t, 1.0, entry.Confidence)
	require.Len(t, entry.Alternatives, 1)
	assert.Equal(t, "overridden by admin", entry.Alternatives[0].Reason)
}

func TestResolve_OverrideWindows(t *testing.T) {
	base := model.ManualOverride{
		PlayerID:         "p1",
		Season:           2025,
		FieldName:        "depth_chart_rank",
		OverrideValue:    float64(9),
		AdminUserID:      "admin",
		Reason:           "test",
		EffectiveFrom:    testNow.Add(-time.Hour),
		IsActive:         true,
		ValidationStatus: model.OverrideApproved,
		CreatedAt:        testNow.Add(-time.Hour),
	}

	expired := testNow.Add(-time.Minute)

	cases := []struct {
		name    string
		mutate  func(*model.ManualOverride)
		applied bool
	}{
		{"matching week", func(o *model.ManualOverride) { o.Week = 5 }, true},
		{"week zero applies to all weeks", func(o *model.ManualOverride) { o.Week = 0 }, true},
		{"other week", func(o *model.ManualOverride) { o.Week = 6 }, false},
		{"rejected", func(o *model.ManualOverride) { o.Week = 5; o.ValidationStatus = model.OverrideRejected }, false},
		{"inactive", func(o *model.ManualOverride) { o.Week = 5; o.IsActive = false }, false},
		{"not yet effective", func(o *model.ManualOverride) { o.Week = 5; o.EffectiveFrom = testNow.Add(time.Hour) }, false},
		{"expired", func(o *model.ManualOverride) { o.Week = 5; o.ExpiresAt = &expired }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ov := base
			ov.ID = "ov-" + tc.name
			tc.mutate(&ov)

			res := New(nil).WithNow(testNow).WithOverrides([]model.ManualOverride{ov}).Resolve(
				[]model.FieldObservation{obs("p1", "depth_chart_rank", 1, model.SourceTeamNotes, 0.9, testNow)},
			)

			require.Len(t, res.Records, 1)
			if tc.applied {
				assert.Equal(t, 9, res.Records[0].DepthChartRank)
			} else {
				assert.Equal(t, 1, res.Records[0].DepthChartRank)
			}
		})
	}
}

func TestResolve_HighestPriorityOverrideWins(t *testing.T) {
	mk := func(id string, priority int, createdAt time.Time, value float64) model.ManualOverride {
		return model.ManualOverride{
			ID:               id,
			PlayerID:         "p1",
			Season:           2025,
			Week:             5,
			FieldName:        "depth_chart_rank",
			OverrideValue:    value,
			Priority:         priority,
			AdminUserID:      "admin",
			Reason:           "test",
			EffectiveFrom:    testNow.Add(-time.Hour),
			IsActive:         true,
			ValidationStatus: model.OverrideApproved,
			CreatedAt:        createdAt,
		}
	}

	res := New(nil).WithNow(testNow).WithOverrides([]model.ManualOverride{
		mk("ov-low", 1, testNow.Add(-time.Minute), 2),
		mk("ov-high", 5, testNow.Add(-time.Hour), 3),
		mk("ov-high-newer", 5, testNow.Add(-time.Minute), 4),
	}).Resolve([]model.FieldObservation{
		obs("p1", "depth_chart_rank", 1, model.SourceTeamNotes, 0.9, testNow),
	})

	require.Len(t, res.Records, 1)
	assert.Equal(t, 4, res.Records[0].DepthChartRank)
	assert.Equal(t, []string{"ov-high-newer"}, res.Records[0].ManualOverridesApplied)
}

func TestResolve_RejectsMissingIdentity(t *testing.T) {
	o := obs("p1", "depth_chart_rank", 1, model.SourceTeamNotes, 0.9, testNow)
	o.TeamID = ""
	o.Position = ""

	res := New(nil).WithNow(testNow).Resolve([]model.FieldObservation{o})

	assert.Empty(t, res.Records)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "p1", res.Errors[0].PlayerID)
	assert.Contains(t, res.Errors[0].Message, "missing identity fields")
}

func TestResolve_FinalConfidenceIsMeanOfWinners(t *testing.T) {
	res := New(nil).WithNow(testNow).Resolve([]model.FieldObservation{
		obs("p1", "depth_chart_rank", 1, model.SourceTeamNotes, 0.8, testNow),
		obs("p1", "starter_prob", 0.9, model.SourceTeamNotes, 0.6, testNow),
	})

	require.Len(t, res.Records, 1)
	assert.InDelta(t, 0.7, res.Records[0].FinalConfidence, 0.0001)
	assert.InDelta(t, 0.7, res.Stats.AvgConfidence, 0.0001)
}

func TestResolve_InjuryMetadataFromWinner(t *testing.T) {
	asOf := testNow.Add(-2 * time.Hour)
	res := New(nil).WithNow(testNow).Resolve([]model.FieldObservation{
		obs("p1", "injury_status", "OUT", model.SourceTeamNotes, 0.9, asOf),
	})

	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, model.InjuryOut, rec.InjuryStatus)
	assert.Equal(t, model.SourceTeamNotes, rec.InjurySource)
	require.NotNil(t, rec.InjuryAsOf)
	assert.True(t, rec.InjuryAsOf.Equal(asOf))
	assert.True(t, rec.AsOf.Equal(asOf))
}

func TestResolve_Deterministic(t *testing.T) {
	input := []model.FieldObservation{
		obs("p2", "depth_chart_rank", 2, model.SourceCFBDAPI, 0.7, testNow),
		obs("p1", "depth_chart_rank", 1, model.SourceTeamNotes, 0.9, testNow),
		obs("p1", "starter_prob", 0.85, model.SourceVendorESPN, 0.8, testNow),
		obs("p1", "starter_prob", 0.6, model.SourceStatsInference, 0.8, testNow),
		obs("p3", "injury_status", "QUESTIONABLE", model.SourceVendor247, 0.75, testNow),
	}

	first, err := json.Marshal(New(nil).WithNow(testNow).Resolve(input))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := json.Marshal(New(nil).WithNow(testNow).Resolve(input))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestResolve_DiffLogAgainstPrevious(t *testing.T) {
	prev := model.ResolvedRecord{
		PlayerID:       "p1",
		TeamID:         "UGA",
		Position:       "RB",
		Season:         2025,
		Week:           5,
		DepthChartRank: 2,
		InjuryStatus:   model.InjuryActive,
	}

	res := New(nil).WithNow(testNow).WithPrevious([]model.ResolvedRecord{prev}).Resolve([]model.FieldObservation{
		obs("p1", "depth_chart_rank", 1, model.SourceTeamNotes, 0.9, testNow),
		obs("p1", "injury_status", "ACTIVE", model.SourceTeamNotes, 0.9, testNow),
		obs("p2", "depth_chart_rank", 1, model.SourceTeamNotes, 0.9, testNow),
	})

	require.Len(t, res.Records, 2)

	var changed, created []model.DiffLogEntry
	for _, d := range res.DiffLog {
		switch d.ChangeType {
		case model.ChangeUpdated:
			changed = append(changed, d)
		case model.ChangeCreated:
			created = append(created, d)
		}
	}

	require.Len(t, changed, 1)
	assert.Equal(t, "p1", changed[0].PlayerID)
	assert.Equal(t, "depth_chart_rank", changed[0].FieldName)
	assert.Equal(t, 2, changed[0].OldValue)
	assert.Equal(t, 1, changed[0].NewValue)

	require.Len(t, created, 1)
	assert.Equal(t, "p2", created[0].PlayerID)
}

func TestResolve_BadOverrideValueIsReportedNotFatal(t *testing.T) {
	res := New(nil).WithNow(testNow).WithOverrides([]model.ManualOverride{{
		ID:               "ov-bad",
		PlayerID:         "p1",
		Season:           2025,
		Week:             5,
		FieldName:        "injury_status",
		OverrideValue:    42, // not a string
		AdminUserID:      "admin",
		Reason:           "typo",
		EffectiveFrom:    testNow.Add(-time.Hour),
		IsActive:         true,
		ValidationStatus: model.OverrideApproved,
		CreatedAt:        testNow,
	}}).Resolve([]model.FieldObservation{
		obs("p1", "depth_chart_rank", 1, model.SourceTeamNotes, 0.9, testNow),
		obs("p1", "injury_status", "ACTIVE", model.SourceTeamNotes, 0.9, testNow),
	})

	require.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.Records[0].DepthChartRank)
	// Field with the bad override stays at its zero default.
	assert.Empty(t, res.Records[0].InjuryStatus)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "ov-bad")
}
