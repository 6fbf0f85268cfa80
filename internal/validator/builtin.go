package validator

import (
	"fmt"
	"math"
	"strings"

	"github.com/rosterwatch/depthsync/internal/model"
)

// usagePctFields are the rate fields that must land in [0,1].
var usagePctFields = []string{
	"snap_share_proj",
	"usage_1w_snap_pct",
	"usage_4w_snap_pct",
	"usage_1w_route_pct",
	"usage_4w_route_pct",
	"usage_1w_carry_share",
	"usage_4w_carry_share",
	"usage_1w_target_share",
	"usage_4w_target_share",
}

func builtinRules() []Rule {
	return []Rule{
		{
			ID:          "schema_required_fields",
			Name:        "Required Fields Present",
			Type:        RuleSchema,
			Severity:    SeverityCritical,
			Description: "All required identity and depth-chart fields are present and non-zero",
			Check:       checkRequiredFields,
		},
		{
			ID:          "schema_value_ranges",
			Name:        "Value Ranges Valid",
			Type:        RuleSchema,
			Severity:    SeverityError,
			Description: "Numeric values are within expected ranges",
			Check:       checkValueRanges,
		},
		{
			ID:          "business_starter_logic",
			Name:        "Starter Logic Consistency",
			Type:        RuleBusiness,
			Severity:    SeverityWarning,
			Description: "Starter probability aligns with depth chart rank",
			Check:       checkStarterLogic,
		},
		{
			ID:          "business_injury_consistency",
			Name:        "Injury Status Consistency",
			Type:        RuleBusiness,
			Severity:    SeverityWarning,
			Description: "Injury status aligns with usage projections",
			Check:       checkInjuryConsistency,
		},
		{
			ID:          "consistency_usage_trends",
			Name:        "Usage Trend Consistency",
			Type:        RuleConsistency,
			Severity:    SeverityInfo,
			Description: "1-week and 4-week usage do not diverge implausibly",
			Check:       checkUsageTrends,
		},
		{
			ID:          "anomaly_extreme_values",
			Name:        "Extreme Value Detection",
			Type:        RuleAnomaly,
			Severity:    SeverityWarning,
			Description: "Values do not deviate wildly from positional benchmarks",
			Check:       checkExtremeValues,
		},
	}
}

func checkRequiredFields(rec *model.ResolvedRecord, _ *Context) Result {
	var missing []string
	if rec.PlayerID == "" {
		missing = append(missing, "player_id")
	}
	if rec.TeamID == "" {
		missing = append(missing, "team_id")
	}
	if rec.Position == "" {
		missing = append(missing, "position")
	}
	if rec.DepthChartRank == 0 {
		missing = append(missing, "depth_chart_rank")
	}

	if len(missing) > 0 {
		return Result{
			Passed:       false,
			Score:        0.0,
			Message:      "missing required fields: " + strings.Join(missing, ", "),
			SuggestedFix: "add missing fields: " + strings.Join(missing, ", "),
		}
	}
	return Result{Passed: true, Score: 1.0, Message: "all required fields present"}
}

func checkValueRanges(rec *model.ResolvedRecord, _ *Context) Result {
	var issues []string

	if rec.DepthChartRank < 1 || rec.DepthChartRank > 10 {
		issues = append(issues, fmt.Sprintf("depth_chart_rank: %d", rec.DepthChartRank))
	}
	if rec.StarterProb < 0 || rec.StarterProb > 1 {
		issues = append(issues, fmt.Sprintf("starter_prob: %.2f", rec.StarterProb))
	}
	for _, field := range usagePctFields {
		v, _ := rec.FieldValue(field).(float64)
		if v < 0 || v > 1 {
			issues = append(issues, fmt.Sprintf("%s: %.2f", field, v))
		}
	}

	if len(issues) > 0 {
		return Result{
			Passed:       false,
			Score:        math.Max(0, 1.0-float64(len(issues))*0.2),
			Message:      "invalid ranges: " + strings.Join(issues, ", "),
			SuggestedFix: "check data source for out-of-range values",
		}
	}
	return Result{Passed: true, Score: 1.0, Message: "all values within valid ranges"}
}

// starterProbBand returns the expected starter-probability band for a depth
// chart rank.
func starterProbBand(rank int) (lo, hi float64) {
	switch rank {
	case 1:
		return 0.7, 1.0
	case 2:
		return 0.15, 0.5
	case 3:
		return 0.05, 0.25
	default:
		return 0, 0.1
	}
}

func checkStarterLogic(rec *model.ResolvedRecord, _ *Context) Result {
	lo, hi := starterProbBand(rec.DepthChartRank)
	if rec.StarterProb >= lo && rec.StarterProb <= hi {
		return Result{Passed: true, Score: 1.0, Message: "starter probability aligns with depth rank"}
	}

	// Degrade proportionally to distance from the band midpoint.
	mid := (lo + hi) / 2
	return Result{
		Passed:       false,
		Score:        math.Max(0.3, 1.0-math.Abs(rec.StarterProb-mid)),
		Message:      fmt.Sprintf("starter prob %.2f unexpected for depth rank %d", rec.StarterProb, rec.DepthChartRank),
		SuggestedFix: "review depth chart or starter probability calculation",
	}
}

func checkInjuryConsistency(rec *model.ResolvedRecord, _ *Context) Result {
	if rec.InjuryStatus == model.InjuryOut && rec.Usage1wSnapPct > 0.1 {
		return Result{
			Passed:       false,
			Score:        0.5,
			Message:      fmt.Sprintf("player marked OUT but projected for %.1f%% snaps", rec.Usage1wSnapPct*100),
			SuggestedFix: "review injury status or adjust usage projections",
		}
	}
	if rec.InjuryStatus == model.InjuryQuestionable && rec.Usage1wSnapPct > 0.8 {
		return Result{
			Passed:       false,
			Score:        0.7,
			Message:      fmt.Sprintf("questionable player projected for high usage (%.1f%%)", rec.Usage1wSnapPct*100),
			SuggestedFix: "consider reducing usage projection for injured player",
		}
	}
	return Result{Passed: true, Score: 1.0, Message: "injury status consistent with usage projections"}
}

func checkUsageTrends(rec *model.ResolvedRecord, _ *Context) Result {
	const maxExpectedDiff = 0.3

	diff := math.Abs(rec.Usage1wSnapPct - rec.Usage4wSnapPct)
	if diff <= maxExpectedDiff {
		return Result{Passed: true, Score: 1.0, Message: "usage trends are consistent"}
	}
	return Result{
		Passed: false,
		Score:  math.Max(0.5, 1.0-(diff-maxExpectedDiff)*2),
		Message: fmt.Sprintf("large variance between 1w (%.1f%%) and 4w (%.1f%%) usage",
			rec.Usage1wSnapPct*100, rec.Usage4wSnapPct*100),
		SuggestedFix: "review for recent usage pattern changes",
	}
}

func checkExtremeValues(rec *model.ResolvedRecord, ctx *Context) Result {
	if ctx == nil || ctx.PositionBenchmarks == nil {
		return Result{Passed: true, Score: 1.0, Message: "no benchmarks available for anomaly detection"}
	}
	bench, ok := ctx.PositionBenchmarks[rec.Position]
	if !ok {
		return Result{Passed: true, Score: 1.0, Message: "no benchmarks available for position " + rec.Position}
	}

	avgStarterProb := bench["avg_starter_prob"]
	if avgStarterProb == 0 {
		avgStarterProb = 0.3
	}

	// Only flag players who are not clearly benched.
	deviation := math.Abs(rec.StarterProb-avgStarterProb) / avgStarterProb
	if deviation > 2.0 && rec.StarterProb > 0.1 {
		return Result{
			Passed: false,
			Score:  0.7,
			Message: fmt.Sprintf("potential anomaly: starter_prob %.2f vs positional avg %.2f",
				rec.StarterProb, avgStarterProb),
			SuggestedFix: "verify data source accuracy for unusual values",
		}
	}
	return Result{Passed: true, Score: 1.0, Message: "no statistical anomalies detected"}
}
