package services

import (
	"context"
	"errors"
	"testing"

	"github.com/logs2metrics/l2m/internal/domain/engine"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/testutil"
)

func newTestEstimator(eng *testutil.MockEngine) *CostEstimator {
	return NewCostEstimator(eng, 4, logger.New(logger.Config{Level: "error", Format: "json"}))
}

func TestCostEstimator_ZeroDocs(t *testing.T) {
	eng := testutil.NewMockEngine()
	eng.Stats["logs-"] = engine.IndexStats{}
	est := newTestEstimator(eng)

	got, err := est.Estimate(context.Background(), testutil.NewRule(t, "r"), 30)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}

	if got.LogStorageGB != 0 || got.MetricStorageGB != 0 || got.SavingsGB != 0 || got.SavingsPct != 0 {
		t.Errorf("Estimate() sizes = %+v, want zeros", got)
	}
	if got.EstimatedSeriesCount != 0 || got.DocsPerDay != 0 || got.MetricPointsPerDay != 0 {
		t.Errorf("Estimate() counts = %+v, want zeros", got)
	}
	if got.QuerySpeedupX != 1.0 {
		t.Errorf("QuerySpeedupX = %v, want 1.0", got.QuerySpeedupX)
	}
	if got.LogRetentionDays != 30 || got.MetricRetentionDays != 450 {
		t.Errorf("retention = %d/%d", got.LogRetentionDays, got.MetricRetentionDays)
	}
	if len(eng.CallsFor("cardinality")) != 0 {
		t.Error("cardinality should not be queried without documents")
	}
}

func TestCostEstimator_BasicCountRule(t *testing.T) {
	eng := testutil.NewMockEngine()
	eng.Stats["logs-"] = engine.IndexStats{DocCount: 100_000, StoreSizeBytes: 100_000 * 500}
	eng.Cardinality["service"] = 10
	est := newTestEstimator(eng)

	got, err := est.Estimate(context.Background(), testutil.NewRule(t, "r"), 30)
	if err != nil {
		t.Fatalf("Estimate() error = %v", err)
	}

	want := struct {
		series, points, docs       int64
		logGB, metricGB, savingsGB float64
		savingsPct, speedup        float64
	}{10, 14_400, 100_000, 1.397, 0.2414, 1.1556, 82.7, 6.9}

	if got.EstimatedSeriesCount != want.series || got.MetricPointsPerDay != want.points || got.DocsPerDay != want.docs {
		t.Errorf("counts = %d/%d/%d, want %d/%d/%d", got.EstimatedSeriesCount, got.MetricPointsPerDay, got.DocsPerDay,
			want.series, want.points, want.docs)
	}
	if got.LogStorageGB != want.logGB || got.MetricStorageGB != want.metricGB || got.SavingsGB != want.savingsGB {
		t.Errorf("sizes = %v/%v/%v, want %v/%v/%v", got.LogStorageGB, got.MetricStorageGB, got.SavingsGB,
			want.logGB, want.metricGB, want.savingsGB)
	}
	if got.SavingsPct != want.savingsPct || got.QuerySpeedupX != want.speedup {
		t.Errorf("pct/speedup = %v/%v, want %v/%v", got.SavingsPct, got.QuerySpeedupX, want.savingsPct, want.speedup)
	}
}

func TestCostEstimator_DailyVolumeIsTotalDocCount(t *testing.T) {
	eng := testutil.NewMockEngine()
	eng.Stats["logs-"] = engine.IndexStats{DocCount: 7_000_000, StoreSizeBytes: 7_000_000}
	est := newTestEstimator(eng)

	got, err := est.Estimate(context.Background(), testutil.NewRule(t, "r"), 30)
	if err != nil {
		t.Fatal(err)
	}
	if got.DocsPerDay != 7_000_000 {
		t.Errorf("DocsPerDay = %d, want the full document count", got.DocsPerDay)
	}
}

func TestCostEstimator_SeriesCount(t *testing.T) {
	tests := []struct {
		name   string
		dims   []string
		cards  map[string]int64
		fail   []string
		expect int64
	}{
		{name: "no dimensions", expect: 1},
		{name: "two dimensions multiply", dims: []string{"service", "endpoint"}, cards: map[string]int64{"service": 10, "endpoint": 10}, expect: 100},
		{name: "zero cardinality clamps to one", dims: []string{"service", "endpoint"}, cards: map[string]int64{"service": 0, "endpoint": 7}, expect: 7},
		{name: "failed lookup uses fallback", dims: []string{"service"}, fail: []string{"service"}, expect: 100},
		{name: "one failure among many", dims: []string{"service", "region"}, cards: map[string]int64{"region": 3}, fail: []string{"service"}, expect: 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := testutil.NewMockEngine()
			eng.Stats["logs-"] = engine.IndexStats{DocCount: 1000, StoreSizeBytes: 1000}
			for k, v := range tt.cards {
				eng.Cardinality[k] = v
			}
			for _, f := range tt.fail {
				eng.Errors["cardinality:logs-*/"+f] = errors.New("connection refused")
			}

			r := testutil.NewRule(t, "r", testutil.WithDimensions(t, tt.dims...))
			got, err := newTestEstimator(eng).Estimate(context.Background(), r, 30)
			if err != nil {
				t.Fatalf("Estimate() error = %v", err)
			}
			if got.EstimatedSeriesCount != tt.expect {
				t.Errorf("EstimatedSeriesCount = %d, want %d", got.EstimatedSeriesCount, tt.expect)
			}
		})
	}
}

func TestCostEstimator_LargerBucketFewerPoints(t *testing.T) {
	eng := testutil.NewMockEngine()
	eng.Stats["logs-"] = engine.IndexStats{DocCount: 50_000, StoreSizeBytes: 50_000 * 300}
	eng.Cardinality["service"] = 20
	est := newTestEstimator(eng)
	ctx := context.Background()

	r1, err := est.Estimate(ctx, testutil.NewRule(t, "r", testutil.WithBucket(t, "1m")), 30)
	if err != nil {
		t.Fatal(err)
	}
	r5, err := est.Estimate(ctx, testutil.NewRule(t, "r", testutil.WithBucket(t, "5m")), 30)
	if err != nil {
		t.Fatal(err)
	}
	if r5.MetricPointsPerDay >= r1.MetricPointsPerDay {
		t.Errorf("5m points %d not below 1m points %d", r5.MetricPointsPerDay, r1.MetricPointsPerDay)
	}
}

func TestCostEstimator_PatternHandling(t *testing.T) {
	eng := testutil.NewMockEngine()
	eng.Stats["app-logs"] = engine.IndexStats{DocCount: 10, StoreSizeBytes: 10}
	eng.Cardinality["service"] = 2
	r := testutil.NewRule(t, "r", testutil.WithSource(t, "app-logs*", "@timestamp", nil))

	if _, err := newTestEstimator(eng).Estimate(context.Background(), r, 30); err != nil {
		t.Fatal(err)
	}

	if got := eng.CallsFor("index_stats"); len(got) != 1 || got[0] != "app-logs" {
		t.Errorf("index_stats calls = %v, want [app-logs]", got)
	}
	if got := eng.CallsFor("cardinality"); len(got) != 1 || got[0] != "app-logs*/service" {
		t.Errorf("cardinality calls = %v, want literal pattern", got)
	}
}

func TestCostEstimator_StatsFailure(t *testing.T) {
	eng := testutil.NewMockEngine()
	eng.Errors["index_stats"] = errors.New("timeout")

	got, err := newTestEstimator(eng).Estimate(context.Background(), testutil.NewRule(t, "r"), 0)
	if err == nil {
		t.Fatal("Estimate() expected error")
	}
	if got.QuerySpeedupX != 1.0 || got.LogRetentionDays != 30 {
		t.Errorf("degraded estimate = %+v", got)
	}
}

func TestVolumeIndex(t *testing.T) {
	tests := map[string]string{
		"app-logs*": "app-logs",
		"logs-**":   "logs-",
		"*":         "*",
		"app-logs":  "app-logs",
	}
	for in, want := range tests {
		if got := VolumeIndex(in); got != want {
			t.Errorf("VolumeIndex(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseBucketSeconds(t *testing.T) {
	tests := map[string]int{
		"10s": 10,
		"5m":  300,
		"1h":  3600,
		"1d":  86400,
		"0s":  1,
		"":    60,
		"abc": 60,
		"5w":  60,
	}
	for in, want := range tests {
		if got := ParseBucketSeconds(in); got != want {
			t.Errorf("ParseBucketSeconds(%q) = %d, want %d", in, got, want)
		}
	}
}
