package analysis

// MaxScore is the highest total a panel can reach
const MaxScore = 95

// Signal names in a score breakdown
const (
	SignalDateHistogram   = "date_histogram"
	SignalNumericAggs     = "numeric_aggs"
	SignalNoRawDocs       = "no_raw_docs"
	SignalAggregatableDim = "aggregatable_dimensions"
	SignalLookback        = "lookback_window"
	SignalAutoRefresh     = "auto_refresh"
)

// MetricInfo is one metric aggregation declared by a panel
type MetricInfo struct {
	Type  string `json:"type"`
	Field string `json:"field,omitempty"`
}

// PanelAnalysis is the normalized description of one dashboard panel
type PanelAnalysis struct {
	PanelID               string                 `json:"panel_id"`
	Title                 string                 `json:"title"`
	IndexPattern          string                 `json:"index_pattern,omitempty"`
	TimeField             string                 `json:"time_field,omitempty"`
	DateHistogramInterval string                 `json:"date_histogram_interval,omitempty"`
	VisualizationType     string                 `json:"visualization_type,omitempty"`
	AggTypes              []string               `json:"agg_types"`
	Metrics               []MetricInfo           `json:"metrics"`
	GroupByFields         []string               `json:"group_by_fields"`
	HasRawDocs            bool                   `json:"has_raw_docs"`
	FilterQuery           map[string]interface{} `json:"filter_query,omitempty"`
}

// ScoreBreakdown is the contribution of one signal
type ScoreBreakdown struct {
	Signal    string `json:"signal"`
	Points    int    `json:"points"`
	MaxPoints int    `json:"max_points"`
	Reason    string `json:"reason"`
}

// SuitabilityScore rates how well a panel converts to a metric
type SuitabilityScore struct {
	PanelID        string           `json:"panel_id"`
	PanelTitle     string           `json:"panel_title"`
	Total          int              `json:"total"`
	MaxTotal       int              `json:"max_total"`
	Breakdown      []ScoreBreakdown `json:"breakdown"`
	Recommendation string           `json:"recommendation"`
}

// ScoreOptions carries dashboard-level context for scoring
type ScoreOptions struct {
	// FieldTypes maps field name to engine type; nil when unknown
	FieldTypes map[string]string
	// TimeFrom is the dashboard relative lookback, e.g. "now-7d"
	TimeFrom string
	// RefreshIntervalMs is the auto-refresh period; 0 means disabled
	RefreshIntervalMs int64
}

// Scorer scores panels. Implementations must be pure.
type Scorer interface {
	ScorePanel(panel PanelAnalysis, opts ScoreOptions) SuitabilityScore
}
