package client

import "time"

// Rule statuses
const (
	StatusDraft  = "draft"
	StatusActive = "active"
	StatusPaused = "paused"
	StatusError  = "error"
)

// Rule is a stored log-to-metric rule
type Rule struct {
	ID           int64          `json:"id" yaml:"id"`
	Name         string         `json:"name" yaml:"name"`
	Owner        string         `json:"owner" yaml:"owner"`
	Source       SourceConfig   `json:"source" yaml:"source"`
	GroupBy      GroupByConfig  `json:"group_by" yaml:"group_by"`
	Compute      ComputeConfig  `json:"compute" yaml:"compute"`
	Backend      *BackendConfig `json:"backend_config,omitempty" yaml:"backend_config,omitempty"`
	Origin       *OriginConfig  `json:"origin,omitempty" yaml:"origin,omitempty"`
	Status       string         `json:"status" yaml:"status"`
	StatusReason string         `json:"status_reason,omitempty" yaml:"status_reason,omitempty"`
	CreatedAt    time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" yaml:"updated_at"`
}

// SourceConfig selects the log documents a rule reads
type SourceConfig struct {
	IndexPattern string                 `json:"index_pattern" yaml:"index_pattern"`
	TimeField    string                 `json:"time_field,omitempty" yaml:"time_field,omitempty"`
	FilterQuery  map[string]interface{} `json:"filter_query,omitempty" yaml:"filter_query,omitempty"`
}

// GroupByConfig sets the time bucket and dimensions
type GroupByConfig struct {
	TimeBucket string   `json:"time_bucket,omitempty" yaml:"time_bucket,omitempty"`
	Dimensions []string `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Frequency  string   `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	SyncDelay  string   `json:"sync_delay,omitempty" yaml:"sync_delay,omitempty"`
}

// ComputeConfig is the aggregation: count, sum, avg or distribution
type ComputeConfig struct {
	Type        string    `json:"type" yaml:"type"`
	Field       string    `json:"field,omitempty" yaml:"field,omitempty"`
	Percentiles []float64 `json:"percentiles,omitempty" yaml:"percentiles,omitempty"`
}

// BackendConfig selects the metric store and its retention
type BackendConfig struct {
	Type          string `json:"type,omitempty" yaml:"type,omitempty"`
	RetentionDays int    `json:"retention_days,omitempty" yaml:"retention_days,omitempty"`
}

// OriginConfig links a rule to the dashboard panel it was derived from
type OriginConfig struct {
	DashboardID    string `json:"dashboard_id" yaml:"dashboard_id"`
	DashboardTitle string `json:"dashboard_title,omitempty" yaml:"dashboard_title,omitempty"`
	PanelID        string `json:"panel_id" yaml:"panel_id"`
	PanelTitle     string `json:"panel_title,omitempty" yaml:"panel_title,omitempty"`
}

// CreateRuleRequest is the body for creating, estimating or validating a rule
type CreateRuleRequest struct {
	Name    string         `json:"name" yaml:"name"`
	Owner   string         `json:"owner,omitempty" yaml:"owner,omitempty"`
	Source  SourceConfig   `json:"source" yaml:"source"`
	GroupBy GroupByConfig  `json:"group_by" yaml:"group_by"`
	Compute ComputeConfig  `json:"compute" yaml:"compute"`
	Backend *BackendConfig `json:"backend_config,omitempty" yaml:"backend_config,omitempty"`
	Origin  *OriginConfig  `json:"origin,omitempty" yaml:"origin,omitempty"`
	Status  string         `json:"status,omitempty" yaml:"status,omitempty"`
}

// UpdateRuleRequest changes only the fields that are set
type UpdateRuleRequest struct {
	Name    *string        `json:"name,omitempty"`
	Owner   *string        `json:"owner,omitempty"`
	Source  *SourceConfig  `json:"source,omitempty"`
	GroupBy *GroupByConfig `json:"group_by,omitempty"`
	Compute *ComputeConfig `json:"compute,omitempty"`
	Backend *BackendConfig `json:"backend_config,omitempty"`
	Status  *string        `json:"status,omitempty"`
}

// RuleListOptions filters a rule listing
type RuleListOptions struct {
	ListOptions
	Status string
	Owner  string
}

// BackendStatus is the live transform state of a rule
type BackendStatus struct {
	RuleID         int64      `json:"rule_id" yaml:"rule_id"`
	TransformID    string     `json:"transform_id" yaml:"transform_id"`
	Health         string     `json:"health" yaml:"health"`
	DocsProcessed  int64      `json:"docs_processed" yaml:"docs_processed"`
	DocsIndexed    int64      `json:"docs_indexed" yaml:"docs_indexed"`
	LastCheckpoint *time.Time `json:"last_checkpoint,omitempty" yaml:"last_checkpoint,omitempty"`
	Error          string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// CostEstimate compares raw log storage with the aggregated metrics
type CostEstimate struct {
	LogStorageGB         float64 `json:"log_storage_gb" yaml:"log_storage_gb"`
	MetricStorageGB      float64 `json:"metric_storage_gb" yaml:"metric_storage_gb"`
	SavingsGB            float64 `json:"savings_gb" yaml:"savings_gb"`
	SavingsPct           float64 `json:"savings_pct" yaml:"savings_pct"`
	QuerySpeedupX        float64 `json:"query_speedup_x" yaml:"query_speedup_x"`
	EstimatedSeriesCount int64   `json:"estimated_series_count" yaml:"estimated_series_count"`
	DocsPerDay           int64   `json:"docs_per_day" yaml:"docs_per_day"`
	MetricPointsPerDay   int64   `json:"metric_points_per_day" yaml:"metric_points_per_day"`
	LogRetentionDays     int     `json:"log_retention_days" yaml:"log_retention_days"`
	MetricRetentionDays  int     `json:"metric_retention_days" yaml:"metric_retention_days"`
}

// GuardrailResult is the outcome of one guardrail check
type GuardrailResult struct {
	Name         string `json:"name" yaml:"name"`
	Passed       bool   `json:"passed" yaml:"passed"`
	Explanation  string `json:"explanation" yaml:"explanation"`
	SuggestedFix string `json:"suggested_fix,omitempty" yaml:"suggested_fix,omitempty"`
}

// EstimateResponse is returned by the estimate endpoint
type EstimateResponse struct {
	CostEstimate        CostEstimate      `json:"cost_estimate" yaml:"cost_estimate"`
	Guardrails          []GuardrailResult `json:"guardrails" yaml:"guardrails"`
	AllGuardrailsPassed bool              `json:"all_guardrails_passed" yaml:"all_guardrails_passed"`
}

// ValidationResult lists the engine-side problems of a rule
type ValidationResult struct {
	Valid  bool     `json:"valid" yaml:"valid"`
	Errors []string `json:"errors" yaml:"errors"`
}

// MonitorStatus is the health reconciler state
type MonitorStatus struct {
	Running              bool       `json:"monitor_running" yaml:"monitor_running"`
	LastCheckTime        *time.Time `json:"last_check_time" yaml:"last_check_time"`
	RulesInError         []int64    `json:"rules_in_error" yaml:"rules_in_error"`
	CheckIntervalSeconds int        `json:"check_interval_seconds" yaml:"check_interval_seconds"`
}

// IndexInfo is one row of the index listing
type IndexInfo struct {
	Name      string `json:"name" yaml:"name"`
	DocCount  int64  `json:"doc_count" yaml:"doc_count"`
	SizeBytes int64  `json:"size_bytes" yaml:"size_bytes"`
	Size      string `json:"size" yaml:"size"`
}

// FieldMapping describes one mapped field
type FieldMapping struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type" yaml:"type"`
	Aggregatable bool   `json:"aggregatable" yaml:"aggregatable"`
}

// IndexMapping is the field list of an index or pattern
type IndexMapping struct {
	Index  string         `json:"index" yaml:"index"`
	Fields []FieldMapping `json:"fields" yaml:"fields"`
}

// IndexStats is the volume of an index or pattern
type IndexStats struct {
	Index          string `json:"index" yaml:"index"`
	DocCount       int64  `json:"doc_count" yaml:"doc_count"`
	StoreSizeBytes int64  `json:"store_size_bytes" yaml:"store_size_bytes"`
	StoreSize      string `json:"store_size" yaml:"store_size"`
	QueryTotal     int64  `json:"query_total" yaml:"query_total"`
	QueryTimeMs    int64  `json:"query_time_ms" yaml:"query_time_ms"`
}

// FieldCardinality is the approximate distinct count of a field
type FieldCardinality struct {
	Index       string `json:"index" yaml:"index"`
	Field       string `json:"field" yaml:"field"`
	Cardinality int64  `json:"cardinality" yaml:"cardinality"`
}

// Panel is one dashboard panel submitted for scoring
type Panel struct {
	PanelID               string                 `json:"panel_id"`
	Title                 string                 `json:"title"`
	IndexPattern          string                 `json:"index_pattern,omitempty"`
	TimeField             string                 `json:"time_field,omitempty"`
	DateHistogramInterval string                 `json:"date_histogram_interval,omitempty"`
	VisualizationType     string                 `json:"visualization_type,omitempty"`
	AggTypes              []string               `json:"agg_types"`
	Metrics               []PanelMetric          `json:"metrics"`
	GroupByFields         []string               `json:"group_by_fields"`
	HasRawDocs            bool                   `json:"has_raw_docs"`
	FilterQuery           map[string]interface{} `json:"filter_query,omitempty"`
}

// PanelMetric is one metric aggregation of a panel
type PanelMetric struct {
	Type  string `json:"type"`
	Field string `json:"field,omitempty"`
}

// AnalyzePanelsRequest is the body of a panel scoring call
type AnalyzePanelsRequest struct {
	Panels            []Panel `json:"panels"`
	TimeFrom          string  `json:"time_from,omitempty"`
	RefreshIntervalMs int64   `json:"refresh_interval_ms,omitempty"`
}

// ScoreBreakdown is the contribution of one signal
type ScoreBreakdown struct {
	Signal    string `json:"signal"`
	Points    int    `json:"points"`
	MaxPoints int    `json:"max_points"`
	Reason    string `json:"reason"`
}

// SuitabilityScore rates how well a panel would work as a metric
type SuitabilityScore struct {
	PanelID        string           `json:"panel_id"`
	PanelTitle     string           `json:"panel_title"`
	Total          int              `json:"total"`
	MaxTotal       int              `json:"max_total"`
	Breakdown      []ScoreBreakdown `json:"breakdown"`
	Recommendation string           `json:"recommendation"`
}

// PanelResult pairs a panel with its score
type PanelResult struct {
	Panel Panel            `json:"panel"`
	Score SuitabilityScore `json:"score"`
}

// ListOptions contains common options for list operations
type ListOptions struct {
	Page     int // Page number (1-based)
	PageSize int
	Search   string
}

// RuleList is one page of rules
type RuleList struct {
	Data       []Rule `json:"data"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalItems int64  `json:"total_items"`
	TotalPages int    `json:"total_pages"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status"`
}
