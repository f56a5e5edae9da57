package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/logs2metrics/l2m/internal/domain/cost"
	"github.com/logs2metrics/l2m/internal/domain/engine"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/testutil"
)

func newTestGuardrails(eng *testutil.MockEngine) *GuardrailService {
	return NewGuardrailService(newTestEstimator(eng), 30, logger.New(logger.Config{Level: "error", Format: "json"}))
}

func healthyEngine() *testutil.MockEngine {
	eng := testutil.NewMockEngine()
	eng.Stats["logs-"] = engine.IndexStats{DocCount: 100_000, StoreSizeBytes: 100_000 * 500}
	eng.Cardinality["service"] = 10
	return eng
}

func resultByName(t *testing.T, report *cost.GuardrailsReport, name string) cost.GuardrailResult {
	t.Helper()
	for _, r := range report.Results {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no result for check %q", name)
	return cost.GuardrailResult{}
}

func TestGuardrailService_AllPass(t *testing.T) {
	svc := newTestGuardrails(healthyEngine())

	report := svc.Evaluate(context.Background(), testutil.NewRule(t, "r"))

	if !report.AllPassed {
		t.Fatalf("AllPassed = false, failed: %+v", report.Failed())
	}
	wantOrder := []string{cost.CheckDimensionLimit, cost.CheckCardinality, cost.CheckHighCardinalityFields, cost.CheckNetSavings}
	if len(report.Results) != len(wantOrder) {
		t.Fatalf("got %d results, want %d", len(report.Results), len(wantOrder))
	}
	for i, name := range wantOrder {
		if report.Results[i].Name != name {
			t.Errorf("Results[%d] = %s, want %s", i, report.Results[i].Name, name)
		}
		if report.Results[i].SuggestedFix != "" {
			t.Errorf("%s passed but has a fix", name)
		}
	}

	if got := resultByName(t, report, cost.CheckCardinality).Explanation; got != "Estimated series count: 10 (limit: 100,000)." {
		t.Errorf("cardinality explanation = %q", got)
	}
	if got := resultByName(t, report, cost.CheckDimensionLimit).Explanation; got != "Rule uses 1 dimension(s) (limit: 5)." {
		t.Errorf("dimension explanation = %q", got)
	}
	if report.CostEstimate.EstimatedSeriesCount != 10 {
		t.Errorf("CostEstimate not attached: %+v", report.CostEstimate)
	}
}

func TestGuardrailService_DimensionLimit(t *testing.T) {
	tests := []struct {
		name     string
		dims     []string
		wantPass bool
		wantFix  string
	}{
		{name: "exactly five", dims: []string{"a", "b", "c", "d", "e"}, wantPass: true},
		{
			name:    "six names the extra one",
			dims:    []string{"a", "b", "c", "d", "e", "f"},
			wantFix: "Reduce to at most 5 dimensions. Remove the least important group-by fields: f.",
		},
		{
			name:    "seven",
			dims:    []string{"a", "b", "c", "d", "e", "f", "g"},
			wantFix: "Reduce to at most 5 dimensions. Remove the least important group-by fields: f, g.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := healthyEngine()
			svc := newTestGuardrails(eng)
			r := testutil.NewRule(t, "r", testutil.WithDimensions(t, tt.dims...))

			res := resultByName(t, svc.Evaluate(context.Background(), r), cost.CheckDimensionLimit)

			if res.Passed != tt.wantPass {
				t.Fatalf("Passed = %v, want %v (%s)", res.Passed, tt.wantPass, res.Explanation)
			}
			if res.SuggestedFix != tt.wantFix {
				t.Errorf("SuggestedFix = %q, want %q", res.SuggestedFix, tt.wantFix)
			}
		})
	}
}

func TestGuardrailService_CardinalityLimit(t *testing.T) {
	eng := healthyEngine()
	eng.Cardinality["service"] = 0
	eng.Cardinality["host"] = 1_000
	eng.Cardinality["region"] = 200
	svc := newTestGuardrails(eng)
	r := testutil.NewRule(t, "r", testutil.WithDimensions(t, "host", "region"))

	report := svc.Evaluate(context.Background(), r)

	res := resultByName(t, report, cost.CheckCardinality)
	if res.Passed {
		t.Fatal("200,000 series should fail the cardinality check")
	}
	want := "Estimated series count is 200,000, exceeding the limit of 100,000. This would create excessive metric data."
	if res.Explanation != want {
		t.Errorf("Explanation = %q, want %q", res.Explanation, want)
	}
	if report.AllPassed {
		t.Error("AllPassed should be false")
	}
}

func TestGuardrailService_HighCardinalityFields(t *testing.T) {
	tests := []struct {
		name     string
		dims     []string
		wantPass bool
		flagged  string
	}{
		{name: "safe dims", dims: []string{"service", "status"}, wantPass: true},
		{name: "user_id", dims: []string{"service", "user_id"}, flagged: "user_id"},
		{name: "case insensitive", dims: []string{"USER_ID"}, flagged: "USER_ID"},
		{name: "several", dims: []string{"trace_id", "client_ip"}, flagged: "trace_id, client_ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestGuardrails(healthyEngine())
			r := testutil.NewRule(t, "r", testutil.WithDimensions(t, tt.dims...))

			res := resultByName(t, svc.Evaluate(context.Background(), r), cost.CheckHighCardinalityFields)

			if res.Passed != tt.wantPass {
				t.Fatalf("Passed = %v, want %v", res.Passed, tt.wantPass)
			}
			if tt.wantPass {
				return
			}
			if !strings.HasPrefix(res.Explanation, "Dimension(s) "+tt.flagged+" are typically unbounded") {
				t.Errorf("Explanation = %q", res.Explanation)
			}
			if res.SuggestedFix != "Remove "+tt.flagged+" from group-by dimensions. Use these fields in filters instead if needed." {
				t.Errorf("SuggestedFix = %q", res.SuggestedFix)
			}
		})
	}
}

func TestGuardrailService_NoDocsFailsNetSavings(t *testing.T) {
	eng := testutil.NewMockEngine()
	eng.Stats["logs-"] = engine.IndexStats{}
	svc := newTestGuardrails(eng)

	report := svc.Evaluate(context.Background(), testutil.NewRule(t, "r"))

	res := resultByName(t, report, cost.CheckNetSavings)
	if res.Passed {
		t.Fatal("zero savings must fail net_savings")
	}
	if res.Explanation != "Metric storage (0.0000 GB) would exceed log storage (0.0000 GB). This conversion would increase costs." {
		t.Errorf("Explanation = %q", res.Explanation)
	}
	if res.SuggestedFix == "" {
		t.Error("failed check should suggest a fix")
	}
	if report.AllPassed {
		t.Error("AllPassed should be false")
	}
}

func TestGuardrailService_EstimatorFailureDegrades(t *testing.T) {
	eng := testutil.NewMockEngine()
	eng.Errors["index_stats"] = errors.New("connection refused")
	svc := newTestGuardrails(eng)

	report := svc.Evaluate(context.Background(), testutil.NewRule(t, "r"))

	if report == nil {
		t.Fatal("Evaluate() must always return a report")
	}
	if len(report.Results) != 4 {
		t.Errorf("got %d results, want 4", len(report.Results))
	}
	if report.CostEstimate.QuerySpeedupX != 1.0 || report.CostEstimate.EstimatedSeriesCount != 0 {
		t.Errorf("expected zero estimate, got %+v", report.CostEstimate)
	}
	if resultByName(t, report, cost.CheckNetSavings).Passed {
		t.Error("net_savings should fail on a degraded estimate")
	}
}

func TestFormatThousands(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1_000, "1,000"},
		{100_000, "100,000"},
		{1_234_567, "1,234,567"},
		{-12_345, "-12,345"},
	}
	for _, tt := range tests {
		if got := formatThousands(tt.in); got != tt.want {
			t.Errorf("formatThousands(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
