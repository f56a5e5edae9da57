package rule

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/logs2metrics/l2m/internal/pkg/validator"
)

// Defaults and structural limits for rule configuration
const (
	DefaultTimeField     = "timestamp"
	DefaultTimeBucket    = "1m"
	DefaultSyncDelay     = "30s"
	DefaultRetentionDays = 450
	MinRetentionDays     = 1
	MaxRetentionDays     = 730
	MaxDimensions        = 10
	MaxNameLength        = 200
)

// DefaultPercentiles is used by distribution rules that do not list their own
var DefaultPercentiles = []float64{50, 75, 90, 95, 99}

// ComputeType selects the aggregation a rule materializes
type ComputeType string

const (
	ComputeCount        ComputeType = "count"
	ComputeSum          ComputeType = "sum"
	ComputeAvg          ComputeType = "avg"
	ComputeDistribution ComputeType = "distribution"
)

// IsValid reports whether c is a known compute type
func (c ComputeType) IsValid() bool {
	switch c {
	case ComputeCount, ComputeSum, ComputeAvg, ComputeDistribution:
		return true
	}
	return false
}

// BackendType names the metrics backend. Only elastic exists today.
type BackendType string

const BackendElastic BackendType = "elastic"

// SourceConfig describes where the log documents come from.
// Values are built with NewSourceConfig and never mutated afterwards.
type SourceConfig struct {
	indexPattern string
	timeField    string
	filterQuery  json.RawMessage
}

// NewSourceConfig validates and builds a SourceConfig
func NewSourceConfig(indexPattern, timeField string, filterQuery map[string]interface{}) (SourceConfig, error) {
	indexPattern = strings.TrimSpace(indexPattern)
	if indexPattern == "" {
		return SourceConfig{}, fieldErr("source.index_pattern", "index pattern is required")
	}
	timeField = strings.TrimSpace(timeField)
	if timeField == "" {
		timeField = DefaultTimeField
	}

	var raw json.RawMessage
	if len(filterQuery) > 0 {
		if err := validator.ValidateFilterQuery(filterQuery); err != nil {
			return SourceConfig{}, fieldErr("source.filter_query", err.Error())
		}
		b, err := json.Marshal(filterQuery)
		if err != nil {
			return SourceConfig{}, fieldErr("source.filter_query", "filter query must be a JSON object")
		}
		raw = b
	}

	return SourceConfig{indexPattern: indexPattern, timeField: timeField, filterQuery: raw}, nil
}

// IndexPattern returns the source index or pattern, possibly with wildcards
func (s SourceConfig) IndexPattern() string { return s.indexPattern }

// TimeField returns the document timestamp field
func (s SourceConfig) TimeField() string { return s.timeField }

// HasFilter reports whether a filter query is configured
func (s SourceConfig) HasFilter() bool { return len(s.filterQuery) > 0 }

// FilterQuery returns a fresh copy of the filter query, or nil
func (s SourceConfig) FilterQuery() map[string]interface{} {
	if len(s.filterQuery) == 0 {
		return nil
	}
	var out map[string]interface{}
	_ = json.Unmarshal(s.filterQuery, &out)
	return out
}

// Equal compares two source configs by value
func (s SourceConfig) Equal(o SourceConfig) bool {
	return s.indexPattern == o.indexPattern &&
		s.timeField == o.timeField &&
		bytes.Equal(s.filterQuery, o.filterQuery)
}

type sourceJSON struct {
	IndexPattern string                 `json:"index_pattern"`
	TimeField    string                 `json:"time_field"`
	FilterQuery  map[string]interface{} `json:"filter_query,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (s SourceConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(sourceJSON{IndexPattern: s.indexPattern, TimeField: s.timeField, FilterQuery: s.FilterQuery()})
}

// UnmarshalJSON decodes through NewSourceConfig so stored values are revalidated
func (s *SourceConfig) UnmarshalJSON(data []byte) error {
	var v sourceJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	built, err := NewSourceConfig(v.IndexPattern, v.TimeField, v.FilterQuery)
	if err != nil {
		return err
	}
	*s = built
	return nil
}

// GroupByConfig describes time bucketing and the grouping dimensions
type GroupByConfig struct {
	timeBucket string
	dimensions []string
	frequency  string
	syncDelay  string
}

// NewGroupByConfig validates and builds a GroupByConfig
func NewGroupByConfig(timeBucket string, dimensions []string, frequency, syncDelay string) (GroupByConfig, error) {
	if timeBucket == "" {
		timeBucket = DefaultTimeBucket
	}
	if !validator.IsInterval(timeBucket) {
		return GroupByConfig{}, fieldErr("group_by.time_bucket", fmt.Sprintf("invalid time bucket %q", timeBucket))
	}
	if frequency != "" && !validator.IsInterval(frequency) {
		return GroupByConfig{}, fieldErr("group_by.frequency", fmt.Sprintf("invalid frequency %q", frequency))
	}
	if syncDelay == "" {
		syncDelay = DefaultSyncDelay
	}
	if !validator.IsInterval(syncDelay) {
		return GroupByConfig{}, fieldErr("group_by.sync_delay", fmt.Sprintf("invalid sync delay %q", syncDelay))
	}
	if len(dimensions) > MaxDimensions {
		return GroupByConfig{}, fieldErr("group_by.dimensions", fmt.Sprintf("at most %d dimensions are allowed", MaxDimensions))
	}

	dims := make([]string, 0, len(dimensions))
	seen := make(map[string]struct{}, len(dimensions))
	for _, d := range dimensions {
		d = strings.TrimSpace(d)
		if d == "" {
			return GroupByConfig{}, fieldErr("group_by.dimensions", "dimension names must not be empty")
		}
		if _, dup := seen[d]; dup {
			return GroupByConfig{}, fieldErr("group_by.dimensions", fmt.Sprintf("duplicate dimension %q", d))
		}
		seen[d] = struct{}{}
		dims = append(dims, d)
	}

	return GroupByConfig{timeBucket: timeBucket, dimensions: dims, frequency: frequency, syncDelay: syncDelay}, nil
}

// TimeBucket returns the bucket width, e.g. "1m"
func (g GroupByConfig) TimeBucket() string { return g.timeBucket }

// Dimensions returns a copy of the ordered grouping keys
func (g GroupByConfig) Dimensions() []string { return slices.Clone(g.dimensions) }

// Frequency returns the explicit poll frequency, or "" when unset
func (g GroupByConfig) Frequency() string { return g.frequency }

// SyncDelay returns the late-data tolerance window
func (g GroupByConfig) SyncDelay() string { return g.syncDelay }

// Equal compares two group-by configs by value
func (g GroupByConfig) Equal(o GroupByConfig) bool {
	return g.timeBucket == o.timeBucket &&
		g.frequency == o.frequency &&
		g.syncDelay == o.syncDelay &&
		slices.Equal(g.dimensions, o.dimensions)
}

type groupByJSON struct {
	TimeBucket string   `json:"time_bucket"`
	Dimensions []string `json:"dimensions"`
	Frequency  string   `json:"frequency,omitempty"`
	SyncDelay  string   `json:"sync_delay"`
}

// MarshalJSON implements json.Marshaler
func (g GroupByConfig) MarshalJSON() ([]byte, error) {
	dims := g.dimensions
	if dims == nil {
		dims = []string{}
	}
	return json.Marshal(groupByJSON{TimeBucket: g.timeBucket, Dimensions: dims, Frequency: g.frequency, SyncDelay: g.syncDelay})
}

// UnmarshalJSON decodes through NewGroupByConfig
func (g *GroupByConfig) UnmarshalJSON(data []byte) error {
	var v groupByJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	built, err := NewGroupByConfig(v.TimeBucket, v.Dimensions, v.Frequency, v.SyncDelay)
	if err != nil {
		return err
	}
	*g = built
	return nil
}

// ComputeConfig describes the aggregation applied to each bucket
type ComputeConfig struct {
	kind        ComputeType
	field       string
	percentiles []float64
}

// NewComputeConfig validates and builds a ComputeConfig
func NewComputeConfig(kind ComputeType, field string, percentiles []float64) (ComputeConfig, error) {
	if !kind.IsValid() {
		return ComputeConfig{}, fieldErr("compute.type", fmt.Sprintf("unknown compute type %q", kind))
	}
	field = strings.TrimSpace(field)
	if kind != ComputeCount && field == "" {
		return ComputeConfig{}, fieldErr("compute.field", fmt.Sprintf("field is required for %s", kind))
	}
	if kind != ComputeDistribution && len(percentiles) > 0 {
		return ComputeConfig{}, fieldErr("compute.percentiles", "percentiles are only allowed for distribution")
	}
	for _, p := range percentiles {
		if p <= 0 || p > 100 {
			return ComputeConfig{}, fieldErr("compute.percentiles", fmt.Sprintf("percentile %v is outside (0, 100]", p))
		}
	}

	var pcts []float64
	if kind == ComputeDistribution {
		pcts = slices.Clone(percentiles)
		if len(pcts) == 0 {
			pcts = slices.Clone(DefaultPercentiles)
		}
	}
	if kind == ComputeCount {
		field = ""
	}

	return ComputeConfig{kind: kind, field: field, percentiles: pcts}, nil
}

// Type returns the compute type
func (c ComputeConfig) Type() ComputeType { return c.kind }

// Field returns the aggregated field; empty for count
func (c ComputeConfig) Field() string { return c.field }

// OutputField is the destination field holding the aggregated value.
// Count rules use event_count because doc_count is reserved by the engine.
func (c ComputeConfig) OutputField() string {
	switch c.kind {
	case ComputeSum:
		return "sum_" + c.field
	case ComputeAvg:
		return "avg_" + c.field
	case ComputeDistribution:
		return "pct_" + c.field
	default:
		return "event_count"
	}
}

// Percentiles returns a copy of the configured percentiles (distribution only)
func (c ComputeConfig) Percentiles() []float64 { return slices.Clone(c.percentiles) }

// Equal compares two compute configs by value
func (c ComputeConfig) Equal(o ComputeConfig) bool {
	return c.kind == o.kind && c.field == o.field && slices.Equal(c.percentiles, o.percentiles)
}

type computeJSON struct {
	Type        ComputeType `json:"type"`
	Field       string      `json:"field,omitempty"`
	Percentiles []float64   `json:"percentiles,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (c ComputeConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(computeJSON{Type: c.kind, Field: c.field, Percentiles: c.percentiles})
}

// UnmarshalJSON decodes through NewComputeConfig
func (c *ComputeConfig) UnmarshalJSON(data []byte) error {
	var v computeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	built, err := NewComputeConfig(v.Type, v.Field, v.Percentiles)
	if err != nil {
		return err
	}
	*c = built
	return nil
}

// BackendConfig selects the metrics backend and its retention
type BackendConfig struct {
	kind          BackendType
	retentionDays int
}

// NewBackendConfig validates and builds a BackendConfig.
// An empty kind means elastic and a zero retention means the default.
func NewBackendConfig(kind BackendType, retentionDays int) (BackendConfig, error) {
	if kind == "" {
		kind = BackendElastic
	}
	if kind != BackendElastic {
		return BackendConfig{}, fieldErr("backend_config.type", fmt.Sprintf("unsupported backend %q", kind))
	}
	if retentionDays == 0 {
		retentionDays = DefaultRetentionDays
	}
	if retentionDays < MinRetentionDays || retentionDays > MaxRetentionDays {
		return BackendConfig{}, fieldErr("backend_config.retention_days",
			fmt.Sprintf("retention must be between %d and %d days", MinRetentionDays, MaxRetentionDays))
	}
	return BackendConfig{kind: kind, retentionDays: retentionDays}, nil
}

// DefaultBackendConfig returns the elastic backend with default retention
func DefaultBackendConfig() BackendConfig {
	return BackendConfig{kind: BackendElastic, retentionDays: DefaultRetentionDays}
}

// Type returns the backend kind
func (b BackendConfig) Type() BackendType { return b.kind }

// RetentionDays returns how long metric points are kept
func (b BackendConfig) RetentionDays() int { return b.retentionDays }

// Equal compares two backend configs by value
func (b BackendConfig) Equal(o BackendConfig) bool { return b == o }

type backendJSON struct {
	Type          BackendType `json:"type"`
	RetentionDays int         `json:"retention_days"`
}

// MarshalJSON implements json.Marshaler
func (b BackendConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(backendJSON{Type: b.kind, RetentionDays: b.retentionDays})
}

// UnmarshalJSON decodes through NewBackendConfig
func (b *BackendConfig) UnmarshalJSON(data []byte) error {
	var v backendJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	built, err := NewBackendConfig(v.Type, v.RetentionDays)
	if err != nil {
		return err
	}
	*b = built
	return nil
}

// OriginConfig points back at the dashboard panel a rule was derived from
type OriginConfig struct {
	DashboardID    string `json:"dashboard_id"`
	DashboardTitle string `json:"dashboard_title,omitempty"`
	PanelID        string `json:"panel_id"`
	PanelTitle     string `json:"panel_title,omitempty"`
}
