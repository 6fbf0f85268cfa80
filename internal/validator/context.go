package validator

import (
	"math"

	"github.com/rosterwatch/depthsync/internal/model"
)

// BuildContext derives league averages and per-position benchmarks from a
// trailing window of historical records. An empty history yields a minimal
// context; rules that need benchmarks pass automatically in that case.
func BuildContext(season, week int, historical []model.ResolvedRecord) *Context {
	ctx := &Context{
		Season:     season,
		Week:       week,
		Historical: historical,
	}
	if len(historical) == 0 {
		return ctx
	}

	ctx.LeagueAverages = leagueAverages(historical)
	ctx.PositionBenchmarks = positionBenchmarks(historical)
	return ctx
}

func leagueAverages(records []model.ResolvedRecord) map[string]float64 {
	averages := make(map[string]float64)

	for _, field := range []string{"starter_prob", "usage_1w_snap_pct", "usage_4w_snap_pct"} {
		var values []float64
		for i := range records {
			if v, ok := records[i].FieldValue(field).(float64); ok {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}

		var sum float64
		for _, v := range values {
			sum += v
		}
		mean := sum / float64(len(values))
		averages["avg_"+field] = mean

		var variance float64
		for _, v := range values {
			variance += (v - mean) * (v - mean)
		}
		averages["std_"+field] = math.Sqrt(variance / float64(len(values)))
	}

	return averages
}

func positionBenchmarks(records []model.ResolvedRecord) map[string]map[string]float64 {
	type accum struct {
		starterProb float64
		usage1w     float64
		depthRank   float64
		n           int
	}

	byPosition := make(map[string]*accum)
	for i := range records {
		rec := &records[i]
		if rec.Position == "" {
			continue
		}
		a, ok := byPosition[rec.Position]
		if !ok {
			a = &accum{}
			byPosition[rec.Position] = a
		}
		a.starterProb += rec.StarterProb
		a.usage1w += rec.Usage1wSnapPct
		a.depthRank += float64(rec.DepthChartRank)
		a.n++
	}

	benchmarks := make(map[string]map[string]float64, len(byPosition))
	for position, a := range byPosition {
		n := float64(a.n)
		benchmarks[position] = map[string]float64{
			"avg_starter_prob": a.starterProb / n,
			"avg_usage_1w":     a.usage1w / n,
			"avg_depth_rank":   a.depthRank / n,
		}
	}
	return benchmarks
}
