package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/logs2metrics/l2m/internal/domain/cost"
	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/pkg/metrics"
)

// highCardinalityFields are dimension names that are almost always unbounded
var highCardinalityFields = map[string]bool{
	"user_id": true, "userid": true, "user_name": true, "username": true,
	"request_id": true, "requestid": true, "req_id": true,
	"session_id": true, "sessionid": true,
	"trace_id": true, "traceid": true, "span_id": true, "spanid": true,
	"transaction_id": true, "txn_id": true,
	"ip": true, "ip_address": true, "client_ip": true, "source_ip": true,
	"uuid": true, "guid": true, "correlation_id": true,
	"message": true, "msg": true, "log": true, "body": true,
}

// GuardrailService implements cost.Evaluator
type GuardrailService struct {
	estimator        cost.Estimator
	logRetentionDays int
	logger           *logger.Logger
}

// NewGuardrailService creates a guardrail evaluator
func NewGuardrailService(estimator cost.Estimator, logRetentionDays int, log *logger.Logger) *GuardrailService {
	return &GuardrailService{
		estimator:        estimator,
		logRetentionDays: logRetentionDays,
		logger:           log,
	}
}

var _ cost.Evaluator = (*GuardrailService)(nil)

// Evaluate runs every check and always returns a report
func (s *GuardrailService) Evaluate(ctx context.Context, r *rule.Rule) *cost.GuardrailsReport {
	estimate, err := s.estimator.Estimate(ctx, r, s.logRetentionDays)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"rule_name":     r.Name,
			"index_pattern": r.Source.IndexPattern(),
		}).WarnWithErr(err, "Cost estimate unavailable, evaluating guardrails against zero estimate")
	}

	dims := r.GroupBy.Dimensions()
	results := []cost.GuardrailResult{
		checkDimensionLimit(dims),
		checkCardinality(estimate.EstimatedSeriesCount),
		checkHighCardinalityFields(dims),
		checkNetSavings(estimate),
	}

	allPassed := true
	for _, res := range results {
		metrics.RecordGuardrailCheck(res.Name, res.Passed)
		allPassed = allPassed && res.Passed
	}

	return &cost.GuardrailsReport{
		AllPassed:    allPassed,
		Results:      results,
		CostEstimate: estimate,
	}
}

func checkDimensionLimit(dims []string) cost.GuardrailResult {
	n := len(dims)
	if n <= cost.MaxDimensions {
		return cost.GuardrailResult{
			Name:        cost.CheckDimensionLimit,
			Passed:      true,
			Explanation: fmt.Sprintf("Rule uses %d dimension(s) (limit: %d).", n, cost.MaxDimensions),
		}
	}
	return cost.GuardrailResult{
		Name: cost.CheckDimensionLimit,
		Explanation: fmt.Sprintf("Rule uses %d dimensions, exceeding the limit of %d. "+
			"More dimensions = exponentially more metric series.", n, cost.MaxDimensions),
		SuggestedFix: fmt.Sprintf("Reduce to at most %d dimensions. Remove the least important group-by fields: %s.",
			cost.MaxDimensions, strings.Join(dims[cost.MaxDimensions:], ", ")),
	}
}

func checkCardinality(series int64) cost.GuardrailResult {
	if series <= cost.MaxSeriesCount {
		return cost.GuardrailResult{
			Name:   cost.CheckCardinality,
			Passed: true,
			Explanation: fmt.Sprintf("Estimated series count: %s (limit: %s).",
				formatThousands(series), formatThousands(cost.MaxSeriesCount)),
		}
	}
	return cost.GuardrailResult{
		Name: cost.CheckCardinality,
		Explanation: fmt.Sprintf("Estimated series count is %s, exceeding the limit of %s. "+
			"This would create excessive metric data.", formatThousands(series), formatThousands(cost.MaxSeriesCount)),
		SuggestedFix: "Remove high-cardinality dimensions or add a filter to reduce the number of unique " +
			"dimension combinations. Avoid grouping by unbounded attributes like user_id, request_id, or session_id.",
	}
}

func checkHighCardinalityFields(dims []string) cost.GuardrailResult {
	var flagged []string
	for _, d := range dims {
		if highCardinalityFields[strings.ToLower(d)] {
			flagged = append(flagged, d)
		}
	}

	if len(flagged) == 0 {
		return cost.GuardrailResult{
			Name:        cost.CheckHighCardinalityFields,
			Passed:      true,
			Explanation: "No known high-cardinality field names detected.",
		}
	}

	names := strings.Join(flagged, ", ")
	return cost.GuardrailResult{
		Name: cost.CheckHighCardinalityFields,
		Explanation: fmt.Sprintf("Dimension(s) %s are typically unbounded high-cardinality fields. "+
			"Grouping by these will produce an excessive number of metric series.", names),
		SuggestedFix: fmt.Sprintf("Remove %s from group-by dimensions. Use these fields in filters instead if needed.", names),
	}
}

func checkNetSavings(est cost.CostEstimate) cost.GuardrailResult {
	if est.SavingsGB > 0 {
		return cost.GuardrailResult{
			Name:   cost.CheckNetSavings,
			Passed: true,
			Explanation: fmt.Sprintf("Estimated savings: %.2f GB (%.1f%%). Metric storage (%.4f GB) is less than log storage (%.4f GB).",
				est.SavingsGB, est.SavingsPct, est.MetricStorageGB, est.LogStorageGB),
		}
	}
	return cost.GuardrailResult{
		Name: cost.CheckNetSavings,
		Explanation: fmt.Sprintf("Metric storage (%.4f GB) would exceed log storage (%.4f GB). This conversion would increase costs.",
			est.MetricStorageGB, est.LogStorageGB),
		SuggestedFix: "Use a larger time bucket (e.g. '5m' instead of '1m') or reduce the number of dimensions " +
			"to decrease the metric series count.",
	}
}

// formatThousands renders n with comma separators, e.g. 100,000
func formatThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
