package backend

import (
	"strconv"
	"time"
)

// TransformHealth is the live health of a rule's continuous aggregation job
type TransformHealth string

// Health values
const (
	HealthGreen   TransformHealth = "green"
	HealthYellow  TransformHealth = "yellow"
	HealthRed     TransformHealth = "red"
	HealthStopped TransformHealth = "stopped"
	HealthUnknown TransformHealth = "unknown"
)

// Unhealthy reports whether the reconciler should flag the rule
func (h TransformHealth) Unhealthy() bool {
	return h == HealthRed || h == HealthStopped
}

// Gauge returns the numeric encoding used by the exporter
func (h TransformHealth) Gauge() float64 {
	switch h {
	case HealthGreen:
		return 1
	case HealthYellow:
		return 2
	case HealthRed:
		return 3
	case HealthStopped:
		return 4
	default:
		return 0
	}
}

// HealthFromState maps an engine transform state to a health value
func HealthFromState(state string) TransformHealth {
	switch state {
	case "started", "indexing", "running":
		return HealthGreen
	case "stopping":
		return HealthYellow
	case "stopped":
		return HealthStopped
	case "aborting", "failed":
		return HealthRed
	default:
		return HealthUnknown
	}
}

// ProvisionResult reports what provisioning created
type ProvisionResult struct {
	Success      bool   `json:"success"`
	TransformID  string `json:"transform_id,omitempty"`
	MetricsIndex string `json:"metrics_index,omitempty"`
	ILMPolicy    string `json:"ilm_policy,omitempty"`
	Error        string `json:"error,omitempty"`
}

// BackendStatus is recomputed on every query and never persisted
type BackendStatus struct {
	RuleID         int64           `json:"rule_id"`
	TransformID    string          `json:"transform_id"`
	Health         TransformHealth `json:"health"`
	DocsProcessed  int64           `json:"docs_processed"`
	DocsIndexed    int64           `json:"docs_indexed"`
	LastCheckpoint *time.Time      `json:"last_checkpoint,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// ValidationResult lists the problems found before provisioning
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Resource name prefixes on the engine
const (
	TransformPrefix = "l2m-rule-"
	IndexPrefix     = "l2m-metrics-rule-"
	ILMPrefix       = "l2m-metrics-"
)

// TransformID names the continuous aggregation job of a rule
func TransformID(ruleID int64) string {
	return TransformPrefix + strconv.FormatInt(ruleID, 10)
}

// MetricsIndex names the destination index of a rule
func MetricsIndex(ruleID int64) string {
	return IndexPrefix + strconv.FormatInt(ruleID, 10)
}

// ILMPolicyName names the retention policy shared by rules with equal retention
func ILMPolicyName(retentionDays int) string {
	return ILMPrefix + strconv.Itoa(retentionDays) + "d"
}
