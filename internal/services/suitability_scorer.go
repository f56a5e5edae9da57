package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/logs2metrics/l2m/internal/domain/analysis"
)

// numericAggTypes produce numbers that can be pre-aggregated
var numericAggTypes = map[string]bool{
	"count":                     true,
	"sum":                       true,
	"avg":                       true,
	"min":                       true,
	"max":                       true,
	"percentiles":               true,
	"cardinality":               true,
	"value_count":               true,
	"median_absolute_deviation": true,
}

// SuitabilityScorer implements analysis.Scorer
type SuitabilityScorer struct{}

// NewSuitabilityScorer creates a scorer
func NewSuitabilityScorer() *SuitabilityScorer {
	return &SuitabilityScorer{}
}

// ScorePanel rates a panel on six independent signals. The result depends
// only on its arguments.
func (s *SuitabilityScorer) ScorePanel(panel analysis.PanelAnalysis, opts analysis.ScoreOptions) analysis.SuitabilityScore {
	breakdown := []analysis.ScoreBreakdown{
		scoreDateHistogram(panel),
		scoreNumericAggs(panel),
		scoreNoRawDocs(panel),
		scoreAggregatableDimensions(panel, opts.FieldTypes),
		scoreLookback(opts.TimeFrom),
		scoreAutoRefresh(opts.RefreshIntervalMs),
	}

	total, maxTotal := 0, 0
	for _, b := range breakdown {
		total += b.Points
		maxTotal += b.MaxPoints
	}

	return analysis.SuitabilityScore{
		PanelID:        panel.PanelID,
		PanelTitle:     panel.Title,
		Total:          total,
		MaxTotal:       maxTotal,
		Breakdown:      breakdown,
		Recommendation: recommendation(total, panel.HasRawDocs),
	}
}

func scoreDateHistogram(panel analysis.PanelAnalysis) analysis.ScoreBreakdown {
	b := analysis.ScoreBreakdown{Signal: analysis.SignalDateHistogram, MaxPoints: 25}
	for _, t := range panel.AggTypes {
		if t == "date_histogram" {
			b.Points = 25
			b.Reason = "Panel uses date_histogram aggregation — ideal for time-bucketed metrics."
			return b
		}
	}
	b.Reason = "Panel does not use date_histogram — time-series bucketing not detected."
	return b
}

func scoreNumericAggs(panel analysis.PanelAnalysis) analysis.ScoreBreakdown {
	b := analysis.ScoreBreakdown{Signal: analysis.SignalNumericAggs, MaxPoints: 20}

	switch {
	case len(panel.Metrics) > 0:
		var all, nonNumeric []string
		for _, m := range panel.Metrics {
			all = append(all, m.Type)
			if !numericAggTypes[m.Type] {
				nonNumeric = append(nonNumeric, m.Type)
			}
		}
		if len(nonNumeric) == 0 {
			b.Points = 20
			b.Reason = fmt.Sprintf("All metrics are numeric aggregations (%s).", strings.Join(all, ", "))
		} else {
			b.Reason = fmt.Sprintf("Non-numeric aggregations detected: %s.", strings.Join(nonNumeric, ", "))
		}
	case !panel.HasRawDocs:
		b.Points = 10
		b.Reason = "No explicit metric aggregations found; may default to count."
	default:
		b.Reason = "Panel shows raw documents — no numeric aggregations."
	}
	return b
}

func scoreNoRawDocs(panel analysis.PanelAnalysis) analysis.ScoreBreakdown {
	b := analysis.ScoreBreakdown{Signal: analysis.SignalNoRawDocs, MaxPoints: 15}
	if panel.HasRawDocs {
		b.Reason = "Panel displays raw documents — cannot be converted to metrics."
		return b
	}
	b.Points = 15
	b.Reason = "Panel does not display raw log lines."
	return b
}

// scoreAggregatableDimensions gives 10 when every dimension is mapped and
// aggregatable, 0 when field types are known but a dimension is missing from
// them or is text, and 5 when there are no dimensions or no field types.
func scoreAggregatableDimensions(panel analysis.PanelAnalysis, fieldTypes map[string]string) analysis.ScoreBreakdown {
	b := analysis.ScoreBreakdown{Signal: analysis.SignalAggregatableDim, MaxPoints: 10}
	dims := panel.GroupByFields

	switch {
	case len(dims) == 0:
		b.Points = 5
		b.Reason = "No group-by dimensions — metric would be a simple time series."
		return b
	case len(fieldTypes) == 0:
		b.Points = 5
		b.Reason = fmt.Sprintf("Group-by fields present (%s) but field types not verified.", strings.Join(dims, ", "))
		return b
	}

	var nonAgg []string
	for _, d := range dims {
		if t, ok := fieldTypes[d]; !ok || t == "text" {
			nonAgg = append(nonAgg, d)
		}
	}

	if len(nonAgg) > 0 {
		b.Reason = fmt.Sprintf("Non-aggregatable group-by fields: %s.", strings.Join(nonAgg, ", "))
		return b
	}
	b.Points = 10
	b.Reason = fmt.Sprintf("All group-by fields are aggregatable: %s.", strings.Join(dims, ", "))
	return b
}

func scoreLookback(timeFrom string) analysis.ScoreBreakdown {
	b := analysis.ScoreBreakdown{Signal: analysis.SignalLookback, MaxPoints: 15}
	if timeFrom == "" {
		b.Reason = "No dashboard lookback information available."
		return b
	}

	days, ok := ParseLookbackDays(timeFrom)
	switch {
	case !ok:
		b.Reason = "Could not parse dashboard lookback period."
	case days >= 7:
		b.Points = 15
		b.Reason = fmt.Sprintf("Dashboard lookback is ~%d days — long lookback benefits most from pre-aggregation.", days)
	default:
		b.Points = 5
		b.Reason = fmt.Sprintf("Dashboard lookback is ~%d days — shorter windows benefit less from pre-aggregation.", days)
	}
	return b
}

func scoreAutoRefresh(refreshMs int64) analysis.ScoreBreakdown {
	b := analysis.ScoreBreakdown{Signal: analysis.SignalAutoRefresh, MaxPoints: 10}
	if refreshMs > 0 {
		b.Points = 10
		b.Reason = fmt.Sprintf("Auto-refresh enabled (every %ds) — repeated queries benefit from pre-aggregation.", refreshMs/1000)
		return b
	}
	b.Reason = "Auto-refresh not enabled or not detected."
	return b
}

// ParseLookbackDays converts a relative time such as "now-7d" into whole days.
// Hours and minutes round down with a floor of one day.
func ParseLookbackDays(timeFrom string) (int, bool) {
	suffix, ok := strings.CutPrefix(timeFrom, "now-")
	if !ok || len(suffix) < 2 {
		return 0, false
	}

	unit := suffix[len(suffix)-1]
	n, err := strconv.Atoi(suffix[:len(suffix)-1])
	if err != nil {
		return 0, false
	}

	switch unit {
	case 'd':
		return n, true
	case 'w':
		return n * 7, true
	case 'M':
		return n * 30, true
	case 'y':
		return n * 365, true
	case 'h':
		return max(1, n/24), true
	case 'm':
		return max(1, n/1440), true
	}
	return 0, false
}

func recommendation(total int, hasRawDocs bool) string {
	switch {
	case hasRawDocs:
		return "This panel displays raw log lines and cannot be converted to a metric. " +
			"Consider creating a separate aggregation-based visualization if metrics are needed."
	case total >= 70:
		return fmt.Sprintf("Strong candidate for metric conversion (score: %d). "+
			"This panel's aggregations can be efficiently pre-computed as a metric, "+
			"reducing query cost and improving dashboard performance.", total)
	case total >= 40:
		return fmt.Sprintf("Moderate candidate for metric conversion (score: %d). "+
			"This panel could benefit from pre-aggregation, but review the scoring "+
			"breakdown to understand potential limitations.", total)
	default:
		return fmt.Sprintf("Weak candidate for metric conversion (score: %d). "+
			"This panel may not benefit significantly from conversion to metrics. "+
			"Review the breakdown for details.", total)
	}
}
