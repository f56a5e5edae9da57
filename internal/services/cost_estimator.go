package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/logs2metrics/l2m/internal/domain/cost"
	"github.com/logs2metrics/l2m/internal/domain/engine"
	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
)

const (
	secondsPerDay = 86400
	bytesPerGiB   = 1024 * 1024 * 1024

	// fallbackCardinality stands in for a dimension whose lookup failed
	fallbackCardinality = 100
)

// CostEstimator implements cost.Estimator against live engine statistics
type CostEstimator struct {
	engine      engine.Client
	concurrency int
	logger      *logger.Logger
}

// NewCostEstimator creates an estimator. concurrency bounds the parallel
// cardinality lookups for one rule.
func NewCostEstimator(client engine.Client, concurrency int, log *logger.Logger) *CostEstimator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CostEstimator{
		engine:      client,
		concurrency: concurrency,
		logger:      log,
	}
}

var _ cost.Estimator = (*CostEstimator)(nil)

// Estimate projects log and metric storage for a rule.
//
// The daily document volume is taken to be the whole current document count
// of the source. Guardrail thresholds are tuned against this figure.
func (e *CostEstimator) Estimate(ctx context.Context, r *rule.Rule, logRetentionDays int) (cost.CostEstimate, error) {
	if logRetentionDays <= 0 {
		logRetentionDays = cost.DefaultLogRetentionDays
	}
	metricRetention := r.Backend.RetentionDays()
	pattern := r.Source.IndexPattern()

	stats, err := e.engine.GetIndexStats(ctx, VolumeIndex(pattern))
	if err != nil {
		return cost.ZeroEstimate(logRetentionDays, metricRetention), fmt.Errorf("index stats for %s: %w", pattern, err)
	}
	if stats.DocCount == 0 {
		return cost.ZeroEstimate(logRetentionDays, metricRetention), nil
	}

	avgDocSize := float64(stats.StoreSizeBytes) / float64(stats.DocCount)
	docsPerDay := stats.DocCount

	series := e.seriesCount(ctx, pattern, r.GroupBy.Dimensions())
	pointsPerSeries := int64(secondsPerDay / ParseBucketSeconds(r.GroupBy.TimeBucket()))
	metricPoints := saturatingMul(series, pointsPerSeries)

	logGB := float64(docsPerDay) * avgDocSize * float64(logRetentionDays) / bytesPerGiB
	metricGB := float64(metricPoints) * cost.MetricPointSize * float64(metricRetention) / bytesPerGiB
	savingsGB := logGB - metricGB

	savingsPct := 0.0
	if logGB > 0 {
		savingsPct = savingsGB / logGB * 100
	}
	speedup := 1.0
	if metricPoints > 0 {
		speedup = float64(docsPerDay) / float64(metricPoints)
	}

	return cost.CostEstimate{
		LogStorageGB:         roundTo(logGB, 4),
		MetricStorageGB:      roundTo(metricGB, 4),
		SavingsGB:            roundTo(savingsGB, 4),
		SavingsPct:           roundTo(savingsPct, 1),
		QuerySpeedupX:        roundTo(speedup, 1),
		EstimatedSeriesCount: series,
		DocsPerDay:           docsPerDay,
		MetricPointsPerDay:   metricPoints,
		LogRetentionDays:     logRetentionDays,
		MetricRetentionDays:  metricRetention,
	}, nil
}

// seriesCount multiplies the cardinality of every dimension. Zero dimensions
// give exactly one series; a failed lookup counts as fallbackCardinality.
func (e *CostEstimator) seriesCount(ctx context.Context, pattern string, dims []string) int64 {
	if len(dims) == 0 {
		return 1
	}

	cards := make([]int64, len(dims))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, dim := range dims {
		i, dim := i, dim
		g.Go(func() error {
			card, err := e.engine.GetFieldCardinality(gctx, pattern, dim)
			if err != nil {
				e.logger.WithFields(map[string]interface{}{
					"index":     pattern,
					"dimension": dim,
				}).WarnWithErr(err, "Cardinality lookup failed, assuming fallback")
				card = fallbackCardinality
			}
			cards[i] = max(card, 1)
			return nil
		})
	}
	_ = g.Wait()

	product := int64(1)
	for _, c := range cards {
		product = saturatingMul(product, c)
	}
	return product
}

// VolumeIndex strips trailing wildcards from a pattern for the stats lookup,
// keeping the literal pattern when nothing else would remain.
func VolumeIndex(pattern string) string {
	if trimmed := strings.TrimRight(pattern, "*"); trimmed != "" {
		return trimmed
	}
	return pattern
}

// ParseBucketSeconds converts "10s", "5m", "1h" or "1d" to seconds.
// Empty or unparseable input gives 60.
func ParseBucketSeconds(bucket string) int {
	if len(bucket) < 2 {
		return 60
	}

	n, err := strconv.Atoi(bucket[:len(bucket)-1])
	if err != nil {
		return 60
	}

	switch bucket[len(bucket)-1] {
	case 's':
		return max(1, n)
	case 'm':
		return max(1, n*60)
	case 'h':
		return max(1, n*3600)
	case 'd':
		return max(1, n*secondsPerDay)
	}
	return 60
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func saturatingMul(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}
