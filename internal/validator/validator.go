package validator

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/rosterwatch/depthsync/internal/model"
)

// ErrCriticalFailure marks a batch that must not be published: at least one
// record failed a critical-severity rule.
var ErrCriticalFailure = eris.New("validator: critical validation failure")

// RuleResult is one rule's outcome attached to a record report.
type RuleResult struct {
	RuleID       string   `json:"rule_id"`
	RuleName     string   `json:"rule_name"`
	Severity     Severity `json:"severity"`
	Passed       bool     `json:"passed"`
	Score        float64  `json:"score"`
	Message      string   `json:"message"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

// RecordQualityReport scores one resolved record against the rule registry.
type RecordQualityReport struct {
	PlayerID             string       `json:"player_id"`
	OverallScore         float64      `json:"overall_score"`
	ValidationResults    []RuleResult `json:"validation_results"`
	QualityFlags         []string     `json:"quality_flags"`
	ConfidenceAdjustment float64      `json:"confidence_adjustment"`
}

// HasCriticalFailure reports whether any critical-severity rule failed.
func (r *RecordQualityReport) HasCriticalFailure() bool {
	for _, res := range r.ValidationResults {
		if !res.Passed && res.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// ValidateRecord runs every registered rule against a record and produces a
// severity-weighted quality report. Field values are never mutated; only the
// confidence adjustment and flags feed back into the pipeline. A panicking
// rule is recorded as a failed result with score 0 and does not abort the
// batch.
func ValidateRecord(registry *Registry, rec *model.ResolvedRecord, ctx *Context) *RecordQualityReport {
	report := &RecordQualityReport{
		PlayerID:     rec.PlayerID,
		QualityFlags: []string{},
	}

	var totalScore, maxScore float64
	for _, rule := range registry.Rules() {
		result := runRule(rule, rec, ctx)

		report.ValidationResults = append(report.ValidationResults, RuleResult{
			RuleID:       rule.ID,
			RuleName:     rule.Name,
			Severity:     rule.Severity,
			Passed:       result.Passed,
			Score:        result.Score,
			Message:      result.Message,
			SuggestedFix: result.SuggestedFix,
		})

		weight := rule.Severity.Weight()
		totalScore += result.Score * weight
		maxScore += weight

		if !result.Passed && (rule.Severity == SeverityCritical || rule.Severity == SeverityError) {
			report.QualityFlags = append(report.QualityFlags, rule.ID)
		}
	}

	if maxScore > 0 {
		report.OverallScore = totalScore / maxScore
	}
	report.ConfidenceAdjustment = confidenceAdjustment(report.OverallScore, report.QualityFlags)

	return report
}

// runRule executes one rule, converting a panic into a failed result.
func runRule(rule Rule, rec *model.ResolvedRecord, ctx *Context) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("validator: rule panicked",
				zap.String("rule_id", rule.ID),
				zap.String("player_id", rec.PlayerID),
				zap.Any("panic", r),
			)
			result = Result{
				Passed:  false,
				Score:   0,
				Message: fmt.Sprintf("rule execution failed: %v", r),
			}
		}
	}()
	return rule.Check(rec, ctx)
}

// confidenceAdjustment maps a quality score onto a bounded confidence delta.
// Schema failures carry an extra penalty: a record that fails structural
// checks should never gain confidence from passing soft rules.
func confidenceAdjustment(overallScore float64, flags []string) float64 {
	adjustment := (overallScore - 0.5) * 0.2

	for _, flag := range flags {
		if flag == "schema_required_fields" || flag == "schema_value_ranges" {
			adjustment -= 0.2
			break
		}
	}

	if adjustment < -0.3 {
		return -0.3
	}
	if adjustment > 0.2 {
		return 0.2
	}
	return adjustment
}

// ApplyAdjustment folds a report's confidence adjustment into a record's
// final confidence, clamped to [0,1].
func ApplyAdjustment(rec *model.ResolvedRecord, report *RecordQualityReport) {
	c := rec.FinalConfidence + report.ConfidenceAdjustment
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	rec.FinalConfidence = c
}
