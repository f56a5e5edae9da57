package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// RuleService handles rule-related API calls
type RuleService struct {
	client *Client
}

// CreateOptions tunes rule creation
type CreateOptions struct {
	SkipGuardrails bool
}

// List retrieves one page of rules
func (s *RuleService) List(ctx context.Context, opts *RuleListOptions) (*RuleList, error) {
	query := url.Values{}

	if opts != nil {
		if opts.Page > 0 {
			query.Set("page", strconv.Itoa(opts.Page))
		}
		if opts.PageSize > 0 {
			query.Set("page_size", strconv.Itoa(opts.PageSize))
		}
		if opts.Search != "" {
			query.Set("search", opts.Search)
		}
		if opts.Status != "" {
			query.Set("status", opts.Status)
		}
		if opts.Owner != "" {
			query.Set("owner", opts.Owner)
		}
	}

	path := "/api/v1/rules"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var list RuleList
	if err := s.client.doRequest(ctx, "GET", path, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Get retrieves a single rule by ID
func (s *RuleService) Get(ctx context.Context, id int64) (*Rule, error) {
	var r Rule
	if err := s.client.doRequest(ctx, "GET", rulePath(id), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Create creates a rule. A 422 APIError means guardrails rejected it; its
// Details carry the estimate and the failed checks.
func (s *RuleService) Create(ctx context.Context, req CreateRuleRequest, opts *CreateOptions) (*Rule, error) {
	path := "/api/v1/rules"
	if opts != nil && opts.SkipGuardrails {
		path += "?skip_guardrails=true"
	}

	var r Rule
	if err := s.client.doRequest(ctx, "POST", path, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Update changes the fields set in req
func (s *RuleService) Update(ctx context.Context, id int64, req UpdateRuleRequest) (*Rule, error) {
	var r Rule
	if err := s.client.doRequest(ctx, "PUT", rulePath(id), req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// SetStatus moves a rule to status, provisioning or tearing down its transform
func (s *RuleService) SetStatus(ctx context.Context, id int64, status string) (*Rule, error) {
	return s.Update(ctx, id, UpdateRuleRequest{Status: &status})
}

// Activate provisions a rule
func (s *RuleService) Activate(ctx context.Context, id int64) (*Rule, error) {
	return s.SetStatus(ctx, id, StatusActive)
}

// Pause tears down a rule's transform and keeps the rule
func (s *RuleService) Pause(ctx context.Context, id int64) (*Rule, error) {
	return s.SetStatus(ctx, id, StatusPaused)
}

// Delete deletes a rule and its backend resources
func (s *RuleService) Delete(ctx context.Context, id int64) error {
	return s.client.doRequest(ctx, "DELETE", rulePath(id), nil, nil)
}

// Status returns the live transform state of an active or failed rule
func (s *RuleService) Status(ctx context.Context, id int64) (*BackendStatus, error) {
	var st BackendStatus
	if err := s.client.doRequest(ctx, "GET", rulePath(id)+"/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Estimate runs the cost estimate and guardrails without storing the rule
func (s *RuleService) Estimate(ctx context.Context, req CreateRuleRequest) (*EstimateResponse, error) {
	var est EstimateResponse
	if err := s.client.doRequest(ctx, "POST", "/api/v1/rules/estimate", req, &est); err != nil {
		return nil, err
	}
	return &est, nil
}

// Validate checks a rule against the live index mapping
func (s *RuleService) Validate(ctx context.Context, req CreateRuleRequest) (*ValidationResult, error) {
	var res ValidationResult
	if err := s.client.doRequest(ctx, "POST", "/api/v1/rules/validate", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// AnalyzePanels scores dashboard panels for conversion
func (s *RuleService) AnalyzePanels(ctx context.Context, req AnalyzePanelsRequest) ([]PanelResult, error) {
	var out struct {
		Results []PanelResult `json:"results"`
	}
	if err := s.client.doRequest(ctx, "POST", "/api/v1/analysis/panels", req, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func rulePath(id int64) string {
	return fmt.Sprintf("/api/v1/rules/%d", id)
}
