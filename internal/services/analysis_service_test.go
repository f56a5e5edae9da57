package services

import (
	"context"
	"errors"
	"testing"

	"github.com/logs2metrics/l2m/internal/domain/analysis"
	"github.com/logs2metrics/l2m/internal/domain/engine"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/testutil"
)

func newTestAnalysis(eng *testutil.MockEngine) *AnalysisService {
	return NewAnalysisService(NewSuitabilityScorer(), eng, logger.New(logger.Config{Level: "error", Format: "json"}))
}

func TestAnalysisService_ResolvesMappingOncePerPattern(t *testing.T) {
	eng := testutil.NewMockEngine()
	eng.Mappings["logs-*"] = []engine.FieldMapping{
		{Name: "service", Type: "keyword", Aggregatable: true},
		{Name: "message", Type: "text"},
	}
	svc := newTestAnalysis(eng)

	panels := []analysis.PanelAnalysis{
		{PanelID: "a", IndexPattern: "logs-*", AggTypes: []string{"date_histogram", "count"}, GroupByFields: []string{"service"}},
		{PanelID: "b", IndexPattern: "logs-*", AggTypes: []string{"terms"}, GroupByFields: []string{"message"}},
		{PanelID: "c"},
	}

	got, err := svc.AnalyzePanels(context.Background(), analysis.Request{Panels: panels, TimeFrom: "now-7d", RefreshIntervalMs: 30_000})
	if err != nil {
		t.Fatalf("AnalyzePanels() error = %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	if n := len(eng.CallsFor("get_mapping")); n != 1 {
		t.Errorf("mapping fetched %d times, want 1", n)
	}

	dims := func(r analysis.PanelResult) int {
		for _, b := range r.Score.Breakdown {
			if b.Signal == analysis.SignalAggregatableDim {
				return b.Points
			}
		}
		t.Fatal("missing dimension signal")
		return -1
	}
	if p := dims(got[0]); p != 10 {
		t.Errorf("keyword dimension scored %d, want 10", p)
	}
	if p := dims(got[1]); p != 0 {
		t.Errorf("text dimension scored %d, want 0", p)
	}
	if got[2].Panel.PanelID != "c" {
		t.Error("results must keep panel order")
	}
}

func TestAnalysisService_MappingFailureDegrades(t *testing.T) {
	eng := testutil.NewMockEngine()
	eng.Errors["get_mapping"] = errors.New("index_not_found_exception")
	svc := newTestAnalysis(eng)

	got, err := svc.AnalyzePanels(context.Background(), analysis.Request{Panels: []analysis.PanelAnalysis{
		{PanelID: "a", IndexPattern: "missing-*", GroupByFields: []string{"service"}},
	}})
	if err != nil {
		t.Fatalf("AnalyzePanels() error = %v", err)
	}

	for _, b := range got[0].Score.Breakdown {
		if b.Signal == analysis.SignalAggregatableDim && b.Points != 5 {
			t.Errorf("unverified dimension scored %d, want 5", b.Points)
		}
	}
}
