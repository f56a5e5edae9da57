package dto

import (
	"time"

	"github.com/logs2metrics/l2m/internal/domain/rule"
)

// SourceRequest is the source block of a rule request
type SourceRequest struct {
	IndexPattern string                 `json:"index_pattern" validate:"required,max=255"`
	TimeField    string                 `json:"time_field,omitempty" validate:"max=255"`
	FilterQuery  map[string]interface{} `json:"filter_query,omitempty"`
}

// GroupByRequest is the group_by block of a rule request
type GroupByRequest struct {
	TimeBucket string   `json:"time_bucket,omitempty" validate:"interval"`
	Dimensions []string `json:"dimensions,omitempty" validate:"max=10,unique,dive,required"`
	Frequency  string   `json:"frequency,omitempty" validate:"interval"`
	SyncDelay  string   `json:"sync_delay,omitempty" validate:"interval"`
}

// ComputeRequest is the compute block of a rule request
type ComputeRequest struct {
	Type        string    `json:"type" validate:"required,oneof=count sum avg distribution"`
	Field       string    `json:"field,omitempty" validate:"required_unless=Type count"`
	Percentiles []float64 `json:"percentiles,omitempty" validate:"dive,gt=0,lte=100"`
}

// BackendRequest is the backend_config block of a rule request
type BackendRequest struct {
	Type          string `json:"type,omitempty" validate:"omitempty,oneof=elastic"`
	RetentionDays int    `json:"retention_days,omitempty" validate:"omitempty,gte=1,lte=730"`
}

// OriginRequest links a rule to the dashboard panel it replaces
type OriginRequest struct {
	DashboardID    string `json:"dashboard_id" validate:"required"`
	DashboardTitle string `json:"dashboard_title,omitempty"`
	PanelID        string `json:"panel_id" validate:"required"`
	PanelTitle     string `json:"panel_title,omitempty"`
}

// CreateRuleRequest represents a rule creation request. It is also the body
// of the dry-run estimate and validate endpoints.
type CreateRuleRequest struct {
	Name    string          `json:"name" validate:"required,max=200"`
	Owner   string          `json:"owner,omitempty" validate:"max=200"`
	Source  SourceRequest   `json:"source"`
	GroupBy GroupByRequest  `json:"group_by"`
	Compute ComputeRequest  `json:"compute"`
	Backend *BackendRequest `json:"backend_config,omitempty"`
	Origin  *OriginRequest  `json:"origin,omitempty"`
	Status  string          `json:"status,omitempty" validate:"omitempty,oneof=draft active paused"`
}

// ToRule builds a domain rule through the config constructors
func (r CreateRuleRequest) ToRule() (*rule.Rule, error) {
	src, err := rule.NewSourceConfig(r.Source.IndexPattern, r.Source.TimeField, r.Source.FilterQuery)
	if err != nil {
		return nil, err
	}
	gb, err := rule.NewGroupByConfig(r.GroupBy.TimeBucket, r.GroupBy.Dimensions, r.GroupBy.Frequency, r.GroupBy.SyncDelay)
	if err != nil {
		return nil, err
	}
	cc, err := rule.NewComputeConfig(rule.ComputeType(r.Compute.Type), r.Compute.Field, r.Compute.Percentiles)
	if err != nil {
		return nil, err
	}
	bc := rule.DefaultBackendConfig()
	if r.Backend != nil {
		if bc, err = rule.NewBackendConfig(rule.BackendType(r.Backend.Type), r.Backend.RetentionDays); err != nil {
			return nil, err
		}
	}

	status := rule.StatusDraft
	if r.Status != "" {
		status = rule.Status(r.Status)
	}

	return &rule.Rule{
		Name:    r.Name,
		Owner:   r.Owner,
		Source:  src,
		GroupBy: gb,
		Compute: cc,
		Backend: bc,
		Origin:  r.Origin.toOrigin(),
		Status:  status,
	}, nil
}

func (o *OriginRequest) toOrigin() *rule.OriginConfig {
	if o == nil {
		return nil
	}
	return &rule.OriginConfig{
		DashboardID:    o.DashboardID,
		DashboardTitle: o.DashboardTitle,
		PanelID:        o.PanelID,
		PanelTitle:     o.PanelTitle,
	}
}

// UpdateRuleRequest represents a partial rule update. Omitted blocks are kept.
type UpdateRuleRequest struct {
	Name    *string         `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Owner   *string         `json:"owner,omitempty" validate:"omitempty,max=200"`
	Source  *SourceRequest  `json:"source,omitempty"`
	GroupBy *GroupByRequest `json:"group_by,omitempty"`
	Compute *ComputeRequest `json:"compute,omitempty"`
	Backend *BackendRequest `json:"backend_config,omitempty"`
	Origin  *OriginRequest  `json:"origin,omitempty"`
	Status  *string         `json:"status,omitempty" validate:"omitempty,oneof=draft active paused error"`
}

// ToPatch converts the request into a domain patch
func (r UpdateRuleRequest) ToPatch() (rule.Patch, error) {
	p := rule.Patch{Name: r.Name, Owner: r.Owner, Origin: r.Origin.toOrigin()}

	if r.Source != nil {
		src, err := rule.NewSourceConfig(r.Source.IndexPattern, r.Source.TimeField, r.Source.FilterQuery)
		if err != nil {
			return rule.Patch{}, err
		}
		p.Source = &src
	}
	if r.GroupBy != nil {
		gb, err := rule.NewGroupByConfig(r.GroupBy.TimeBucket, r.GroupBy.Dimensions, r.GroupBy.Frequency, r.GroupBy.SyncDelay)
		if err != nil {
			return rule.Patch{}, err
		}
		p.GroupBy = &gb
	}
	if r.Compute != nil {
		cc, err := rule.NewComputeConfig(rule.ComputeType(r.Compute.Type), r.Compute.Field, r.Compute.Percentiles)
		if err != nil {
			return rule.Patch{}, err
		}
		p.Compute = &cc
	}
	if r.Backend != nil {
		bc, err := rule.NewBackendConfig(rule.BackendType(r.Backend.Type), r.Backend.RetentionDays)
		if err != nil {
			return rule.Patch{}, err
		}
		p.Backend = &bc
	}
	if r.Status != nil {
		s := rule.Status(*r.Status)
		p.Status = &s
	}
	return p, nil
}

// RuleDTO represents a rule in API responses
type RuleDTO struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	Owner        string             `json:"owner"`
	Source       rule.SourceConfig  `json:"source"`
	GroupBy      rule.GroupByConfig `json:"group_by"`
	Compute      rule.ComputeConfig `json:"compute"`
	Backend      rule.BackendConfig `json:"backend_config"`
	Origin       *rule.OriginConfig `json:"origin,omitempty"`
	Status       string             `json:"status"`
	StatusReason string             `json:"status_reason,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// NewRuleDTO converts a domain rule
func NewRuleDTO(r *rule.Rule) RuleDTO {
	return RuleDTO{
		ID:           r.ID,
		Name:         r.Name,
		Owner:        r.Owner,
		Source:       r.Source,
		GroupBy:      r.GroupBy,
		Compute:      r.Compute,
		Backend:      r.Backend,
		Origin:       r.Origin,
		Status:       string(r.Status),
		StatusReason: r.StatusReason,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// NewRuleDTOs converts a list of domain rules
func NewRuleDTOs(rules []*rule.Rule) []RuleDTO {
	out := make([]RuleDTO, len(rules))
	for i, r := range rules {
		out[i] = NewRuleDTO(r)
	}
	return out
}
