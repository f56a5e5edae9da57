package analysis

import "context"

// PanelResult pairs a panel with its score
type PanelResult struct {
	Panel PanelAnalysis    `json:"panel"`
	Score SuitabilityScore `json:"score"`
}

// Request is a batch of panels from one dashboard
type Request struct {
	Panels            []PanelAnalysis
	TimeFrom          string
	RefreshIntervalMs int64
}

// Service scores panels with field types resolved from the engine
type Service interface {
	AnalyzePanels(ctx context.Context, req Request) ([]PanelResult, error)
}
