package validator

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/rosterwatch/depthsync/internal/model"
)

// QualityDistribution buckets records by overall score.
type QualityDistribution struct {
	Excellent int `json:"excellent"` // >= 0.9
	Good      int `json:"good"`      // >= 0.7
	Fair      int `json:"fair"`      // >= 0.5
	Poor      int `json:"poor"`      // >= 0.3
	Critical  int `json:"critical"`  // < 0.3
}

// CommonIssue is one frequently-failing rule with an example message.
type CommonIssue struct {
	IssueType      string   `json:"issue_type"`
	Count          int      `json:"count"`
	Severity       Severity `json:"severity"`
	ExampleMessage string   `json:"example_message"`
}

// DatasetQualityReport aggregates record-level reports over a batch.
type DatasetQualityReport struct {
	DatasetID           string              `json:"dataset_id"`
	Season              int                 `json:"season"`
	Week                int                 `json:"week"`
	TotalRecords        int                 `json:"total_records"`
	ValidatedRecords    int                 `json:"validated_records"`
	OverallQualityScore float64             `json:"overall_quality_score"`
	Distribution        QualityDistribution `json:"quality_distribution"`
	RuleViolations      map[string]int      `json:"rule_violations"`
	CommonIssues        []CommonIssue       `json:"common_issues"`
	Recommendations     []string            `json:"recommendations"`
	CreatedAt           time.Time           `json:"created_at"`
}

// ValidateDataset validates every record in a batch and produces both the
// per-record reports and the dataset-level aggregate.
func ValidateDataset(registry *Registry, records []model.ResolvedRecord, ctx *Context, datasetID string) (*DatasetQualityReport, []RecordQualityReport) {
	start := time.Now()

	reports := make([]RecordQualityReport, 0, len(records))
	violations := make(map[string]int)

	for i := range records {
		report := ValidateRecord(registry, &records[i], ctx)
		reports = append(reports, *report)

		for _, result := range report.ValidationResults {
			if !result.Passed {
				violations[result.RuleID]++
			}
		}
	}

	dataset := &DatasetQualityReport{
		DatasetID:        datasetID,
		TotalRecords:     len(records),
		ValidatedRecords: len(reports),
		Distribution:     distribution(reports),
		RuleViolations:   violations,
		CommonIssues:     commonIssues(reports),
		CreatedAt:        time.Now().UTC(),
	}
	if ctx != nil {
		dataset.Season = ctx.Season
		dataset.Week = ctx.Week
	}

	var scoreSum float64
	for _, r := range reports {
		scoreSum += r.OverallScore
	}
	if len(reports) > 0 {
		dataset.OverallQualityScore = scoreSum / float64(len(reports))
	}

	dataset.Recommendations = recommendations(registry, reports, violations, dataset.Distribution)

	zap.L().Info("validator: dataset validated",
		zap.String("dataset_id", datasetID),
		zap.Int("records", len(records)),
		zap.Float64("overall_score", dataset.OverallQualityScore),
		zap.Duration("duration", time.Since(start)),
	)

	return dataset, reports
}

func distribution(reports []RecordQualityReport) QualityDistribution {
	var d QualityDistribution
	for _, r := range reports {
		switch {
		case r.OverallScore >= 0.9:
			d.Excellent++
		case r.OverallScore >= 0.7:
			d.Good++
		case r.OverallScore >= 0.5:
			d.Fair++
		case r.OverallScore >= 0.3:
			d.Poor++
		default:
			d.Critical++
		}
	}
	return d
}

// commonIssues ranks failing rules by frequency, keeping the top 10.
func commonIssues(reports []RecordQualityReport) []CommonIssue {
	type key struct {
		ruleID   string
		severity Severity
	}
	counts := make(map[key]*CommonIssue)

	for _, report := range reports {
		for _, result := range report.ValidationResults {
			if result.Passed {
				continue
			}
			k := key{result.RuleID, result.Severity}
			if issue, ok := counts[k]; ok {
				issue.Count++
			} else {
				counts[k] = &CommonIssue{
					IssueType:      result.RuleID,
					Count:          1,
					Severity:       result.Severity,
					ExampleMessage: result.Message,
				}
			}
		}
	}

	issues := make([]CommonIssue, 0, len(counts))
	for _, issue := range counts {
		issues = append(issues, *issue)
	}
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Count != issues[j].Count {
			return issues[i].Count > issues[j].Count
		}
		return issues[i].IssueType < issues[j].IssueType
	})

	if len(issues) > 10 {
		issues = issues[:10]
	}
	return issues
}

// recommendations flags any rule with a violation rate over 10% and any
// batch where more than 20% of records score poor or worse.
func recommendations(registry *Registry, reports []RecordQualityReport, violations map[string]int, dist QualityDistribution) []string {
	var recs []string
	total := len(reports)
	if total == 0 {
		return recs
	}

	ruleIDs := make([]string, 0, len(violations))
	for id := range violations {
		ruleIDs = append(ruleIDs, id)
	}
	sort.Strings(ruleIDs)

	for _, id := range ruleIDs {
		rate := float64(violations[id]) / float64(total)
		if rate <= 0.1 {
			continue
		}
		rule, ok := registry.Get(id)
		if !ok {
			continue
		}
		recs = append(recs, fmt.Sprintf(
			"high violation rate for %q (%.1f%% of records); review %s validation logic or data source quality",
			rule.Name, rate*100, rule.Type))
	}

	lowQualityRate := float64(dist.Poor+dist.Critical) / float64(total)
	if lowQualityRate > 0.2 {
		recs = append(recs, fmt.Sprintf(
			"%.1f%% of records have low quality scores; consider additional data cleaning or improving source quality",
			lowQualityRate*100))
	}

	if len(recs) == 0 {
		recs = append(recs, "data quality is within acceptable ranges; continue monitoring for trends")
	}
	return recs
}
