package dto

import "github.com/logs2metrics/l2m/internal/domain/analysis"

// AnalyzePanelsRequest is a batch of dashboard panels to score
type AnalyzePanelsRequest struct {
	Panels            []analysis.PanelAnalysis `json:"panels" validate:"required,min=1,max=200"`
	TimeFrom          string                   `json:"time_from,omitempty"`
	RefreshIntervalMs int64                    `json:"refresh_interval_ms,omitempty" validate:"gte=0"`
}

// ToRequest converts the body into an analysis request
func (r AnalyzePanelsRequest) ToRequest() analysis.Request {
	return analysis.Request{
		Panels:            r.Panels,
		TimeFrom:          r.TimeFrom,
		RefreshIntervalMs: r.RefreshIntervalMs,
	}
}

// AnalyzePanelsResponse lists every panel with its score
type AnalyzePanelsResponse struct {
	Results []analysis.PanelResult `json:"results"`
	Count   int                    `json:"count"`
}
