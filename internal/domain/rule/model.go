package rule

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a rule
type Status string

// Rule statuses
const (
	StatusDraft  Status = "draft"
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusError  Status = "error"
)

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaused, StatusError:
		return true
	}
	return false
}

// Rule converts a log aggregation into a continuously maintained metric series
type Rule struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Owner        string        `json:"owner"`
	Source       SourceConfig  `json:"source"`
	GroupBy      GroupByConfig `json:"group_by"`
	Compute      ComputeConfig `json:"compute"`
	Backend      BackendConfig `json:"backend_config"`
	Origin       *OriginConfig `json:"origin,omitempty"`
	Status       Status        `json:"status"`
	StatusReason string        `json:"status_reason,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Validate checks the fields not already guarded by the config constructors
func (r *Rule) Validate() error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return fieldErr("name", "name is required")
	}
	if len(name) > MaxNameLength {
		return fieldErr("name", fmt.Sprintf("name must be at most %d characters", MaxNameLength))
	}
	if r.Source.IndexPattern() == "" {
		return fieldErr("source.index_pattern", "index pattern is required")
	}
	if !r.Compute.Type().IsValid() {
		return fieldErr("compute.type", "compute type is required")
	}
	if r.GroupBy.TimeBucket() == "" {
		return fieldErr("group_by.time_bucket", "time bucket is required")
	}
	// dimensions share the destination document with the time bucket and the value
	for _, dim := range r.GroupBy.Dimensions() {
		switch dim {
		case r.Source.TimeField():
			return fieldErr("group_by.dimensions", fmt.Sprintf("dimension %q is the time field", dim))
		case r.Compute.OutputField():
			return fieldErr("group_by.dimensions", fmt.Sprintf("dimension %q collides with the computed value field", dim))
		}
	}
	if r.Backend.Type() == "" {
		r.Backend = DefaultBackendConfig()
	}
	if r.Status == "" {
		r.Status = StatusDraft
	}
	if !r.Status.IsValid() {
		return fieldErr("status", fmt.Sprintf("unknown status %q", r.Status))
	}
	return nil
}

// BakedConfigChanged reports whether next differs from r in any block that is
// compiled into the running backend job and therefore needs reprovisioning.
func (r *Rule) BakedConfigChanged(next *Rule) bool {
	return !r.Source.Equal(next.Source) ||
		!r.GroupBy.Equal(next.GroupBy) ||
		!r.Compute.Equal(next.Compute) ||
		!r.Backend.Equal(next.Backend)
}

// Clone returns a shallow copy; the config blocks are immutable values
func (r *Rule) Clone() *Rule {
	c := *r
	if r.Origin != nil {
		o := *r.Origin
		c.Origin = &o
	}
	return &c
}

// Filter contains rule listing options
type Filter struct {
	Status Status
	Owner  string
	Search string
}

// Patch carries a partial update. Nil fields are left unchanged.
type Patch struct {
	Name    *string
	Owner   *string
	Source  *SourceConfig
	GroupBy *GroupByConfig
	Compute *ComputeConfig
	Backend *BackendConfig
	Origin  *OriginConfig
	Status  *Status
}

// Apply returns a copy of r with the patch applied
func (p Patch) Apply(r *Rule) *Rule {
	next := r.Clone()
	if p.Name != nil {
		next.Name = *p.Name
	}
	if p.Owner != nil {
		next.Owner = *p.Owner
	}
	if p.Source != nil {
		next.Source = *p.Source
	}
	if p.GroupBy != nil {
		next.GroupBy = *p.GroupBy
	}
	if p.Compute != nil {
		next.Compute = *p.Compute
	}
	if p.Backend != nil {
		next.Backend = *p.Backend
	}
	if p.Origin != nil {
		o := *p.Origin
		next.Origin = &o
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	return next
}
