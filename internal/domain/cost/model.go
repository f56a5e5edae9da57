package cost

// Guardrail names
const (
	CheckDimensionLimit        = "dimension_limit"
	CheckCardinality           = "cardinality"
	CheckHighCardinalityFields = "high_cardinality_fields"
	CheckNetSavings            = "net_savings"
)

// Guardrail thresholds
const (
	MaxDimensions   = 5
	MaxSeriesCount  = 100_000
	MetricPointSize = 40 // bytes per stored metric point
)

// CostEstimate projects storage and query cost of a rule. It is derived on
// demand and never stored.
type CostEstimate struct {
	LogStorageGB         float64 `json:"log_storage_gb"`
	MetricStorageGB      float64 `json:"metric_storage_gb"`
	SavingsGB            float64 `json:"savings_gb"`
	SavingsPct           float64 `json:"savings_pct"`
	QuerySpeedupX        float64 `json:"query_speedup_x"`
	EstimatedSeriesCount int64   `json:"estimated_series_count"`
	DocsPerDay           int64   `json:"docs_per_day"`
	MetricPointsPerDay   int64   `json:"metric_points_per_day"`
	LogRetentionDays     int     `json:"log_retention_days"`
	MetricRetentionDays  int     `json:"metric_retention_days"`
}

// ZeroEstimate is the degenerate estimate used when no source data exists
func ZeroEstimate(logRetentionDays, metricRetentionDays int) CostEstimate {
	return CostEstimate{
		QuerySpeedupX:       1.0,
		LogRetentionDays:    logRetentionDays,
		MetricRetentionDays: metricRetentionDays,
	}
}

// GuardrailResult is the outcome of one policy check
type GuardrailResult struct {
	Name         string `json:"name"`
	Passed       bool   `json:"passed"`
	Explanation  string `json:"explanation"`
	SuggestedFix string `json:"suggested_fix,omitempty"`
}

// GuardrailsReport gates rule creation; it passes only when every check passes
type GuardrailsReport struct {
	AllPassed    bool              `json:"all_passed"`
	Results      []GuardrailResult `json:"results"`
	CostEstimate CostEstimate      `json:"cost_estimate"`
}

// Failed returns the failing checks
func (r *GuardrailsReport) Failed() []GuardrailResult {
	var out []GuardrailResult
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

// EstimateResponse is the dry-run view of a draft rule
type EstimateResponse struct {
	CostEstimate        CostEstimate      `json:"cost_estimate"`
	Guardrails          []GuardrailResult `json:"guardrails"`
	AllGuardrailsPassed bool              `json:"all_guardrails_passed"`
}

// Response converts a report into its dry-run view
func (r *GuardrailsReport) Response() EstimateResponse {
	return EstimateResponse{
		CostEstimate:        r.CostEstimate,
		Guardrails:          r.Results,
		AllGuardrailsPassed: r.AllPassed,
	}
}
