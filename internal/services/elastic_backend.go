package services

import (
	"context"
	"fmt"
	"time"

	"github.com/logs2metrics/l2m/internal/domain/backend"
	"github.com/logs2metrics/l2m/internal/domain/engine"
	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/pkg/metrics"
)

const (
	ilmRolloverMaxAge       = "30d"
	ilmRolloverMaxShardSize = "50gb"

	// transforms never run more often than once a minute
	minFrequencySeconds = 60
	minFrequency        = "1m"

	deprovisionStopTimeout = 30 * time.Second
)

// ElasticBackend provisions continuous transforms on Elasticsearch
type ElasticBackend struct {
	engine         engine.Client
	cleanupTimeout time.Duration
	logger         *logger.Logger
}

// NewElasticBackend creates the Elasticsearch metrics backend
func NewElasticBackend(client engine.Client, cleanupTimeout time.Duration, log *logger.Logger) *ElasticBackend {
	if cleanupTimeout <= 0 {
		cleanupTimeout = 10 * time.Second
	}
	return &ElasticBackend{
		engine:         client,
		cleanupTimeout: cleanupTimeout,
		logger:         log.WithComponent("elastic_backend"),
	}
}

var _ backend.MetricsBackend = (*ElasticBackend)(nil)

// Provision creates the ILM policy, metrics index and transform, then starts it.
// On any failure the partially created resources are removed.
func (b *ElasticBackend) Provision(ctx context.Context, r *rule.Rule) backend.ProvisionResult {
	start := time.Now()
	transformID := backend.TransformID(r.ID)
	index := backend.MetricsIndex(r.ID)
	log := b.logger.WithFields(map[string]interface{}{
		"rule_id":      r.ID,
		"transform_id": transformID,
	})

	policy, err := b.provision(ctx, r, transformID, index)
	if err != nil {
		metrics.RecordProvision("provision", false, time.Since(start))
		log.ErrorWithErr(err, "Provisioning failed, cleaning up")
		b.cleanupPartial(ctx, transformID, index)
		return backend.ProvisionResult{
			TransformID:  transformID,
			MetricsIndex: index,
			Error:        err.Error(),
		}
	}

	metrics.RecordProvision("provision", true, time.Since(start))
	log.Info("Rule provisioned")
	return backend.ProvisionResult{
		Success:      true,
		TransformID:  transformID,
		MetricsIndex: index,
		ILMPolicy:    policy,
	}
}

func (b *ElasticBackend) provision(ctx context.Context, r *rule.Rule, transformID, index string) (string, error) {
	policy, err := b.ensureILMPolicy(ctx, r.Backend.RetentionDays())
	if err != nil {
		return "", err
	}

	if err := b.engine.CreateIndex(ctx, index, BuildIndexBody(r, policy)); err != nil && !engine.IsAlreadyExists(err) {
		return "", err
	}

	if err := b.engine.PutTransform(ctx, transformID, BuildTransformBody(r)); err != nil && !engine.IsAlreadyExists(err) {
		return "", err
	}

	if err := b.engine.StartTransform(ctx, transformID); err != nil && !engine.IsAlreadyExists(err) {
		return "", err
	}

	return policy, nil
}

func (b *ElasticBackend) ensureILMPolicy(ctx context.Context, retentionDays int) (string, error) {
	name := backend.ILMPolicyName(retentionDays)

	_, err := b.engine.GetILMPolicy(ctx, name)
	if err == nil {
		return name, nil
	}
	if !engine.IsNotFound(err) {
		return "", err
	}

	if err := b.engine.PutILMPolicy(ctx, name, BuildILMPolicy(retentionDays)); err != nil {
		return "", err
	}
	b.logger.With("ilm_policy", name).Info("Created ILM policy")
	return name, nil
}

// cleanupPartial removes whatever a failed provision left behind. Errors are ignored.
func (b *ElasticBackend) cleanupPartial(ctx context.Context, transformID, index string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.cleanupTimeout)
	defer cancel()

	_ = b.engine.StopTransform(cctx, transformID, false, true, b.cleanupTimeout)
	_ = b.engine.DeleteTransform(cctx, transformID, true)
	_ = b.engine.DeleteIndex(cctx, index)
}

// Deprovision stops and deletes the transform and its metrics index.
// Missing resources are fine; other errors are logged and the next step still runs.
func (b *ElasticBackend) Deprovision(ctx context.Context, r *rule.Rule) {
	start := time.Now()
	transformID := backend.TransformID(r.ID)
	index := backend.MetricsIndex(r.ID)
	log := b.logger.WithFields(map[string]interface{}{
		"rule_id":      r.ID,
		"transform_id": transformID,
	})

	ok := true
	step := func(name string, err error) {
		switch {
		case err == nil:
		case engine.IsNotFound(err):
			log.Debug(name + ": resource already removed")
		default:
			ok = false
			log.WarnWithErr(err, name+" failed")
		}
	}

	step("stop transform", b.engine.StopTransform(ctx, transformID, true, true, deprovisionStopTimeout))
	step("delete transform", b.engine.DeleteTransform(ctx, transformID, true))
	step("delete metrics index", b.engine.DeleteIndex(ctx, index))

	metrics.RecordProvision("deprovision", ok, time.Since(start))
}

// GetStatus reads live transform stats. It never returns an error; failures
// are reported as unknown health with the error text.
func (b *ElasticBackend) GetStatus(ctx context.Context, r *rule.Rule) backend.BackendStatus {
	status := backend.BackendStatus{
		RuleID:      r.ID,
		TransformID: backend.TransformID(r.ID),
		Health:      backend.HealthUnknown,
	}

	stats, err := b.engine.GetTransformStats(ctx, status.TransformID)
	switch {
	case engine.IsNotFound(err):
		status.Error = "transform not found"
		return status
	case err != nil:
		status.Error = err.Error()
		return status
	case stats == nil:
		return status
	}

	status.Health = backend.HealthFromState(stats.State)
	status.DocsProcessed = stats.DocsProcessed
	status.DocsIndexed = stats.DocsIndexed
	status.LastCheckpoint = stats.LastCheckpoint
	if stats.Reason != "" && status.Health.Unhealthy() {
		status.Error = stats.Reason
	}
	return status
}

// Validate checks that the source exists, the compute field is mapped and the
// transform has not been created yet.
func (b *ElasticBackend) Validate(ctx context.Context, r *rule.Rule) backend.ValidationResult {
	errs := []string{}
	pattern := r.Source.IndexPattern()

	exists, err := b.engine.IndexExists(ctx, pattern)
	switch {
	case err != nil:
		errs = append(errs, fmt.Sprintf("Could not check source index '%s': %v", pattern, err))
	case !exists:
		errs = append(errs, fmt.Sprintf("Source index '%s' does not exist", pattern))
	}

	if field := r.Compute.Field(); r.Compute.Type() != rule.ComputeCount && field != "" {
		fields, err := b.engine.GetMapping(ctx, pattern)
		if err != nil {
			errs = append(errs, fmt.Sprintf("Could not verify mapping: %v", err))
		} else if _, ok := engine.FieldTypes(fields)[field]; !ok {
			errs = append(errs, fmt.Sprintf("Compute field '%s' not found in index", field))
		}
	}

	transformID := backend.TransformID(r.ID)
	found, err := b.engine.TransformExists(ctx, transformID)
	switch {
	case err != nil:
		errs = append(errs, fmt.Sprintf("Could not check transform '%s': %v", transformID, err))
	case found:
		errs = append(errs, fmt.Sprintf("Transform '%s' already exists", transformID))
	}

	return backend.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// BuildILMPolicy returns the retention policy body: hot rollover, then delete
// after retentionDays.
func BuildILMPolicy(retentionDays int) map[string]interface{} {
	return map[string]interface{}{
		"policy": map[string]interface{}{
			"phases": map[string]interface{}{
				"hot": map[string]interface{}{
					"actions": map[string]interface{}{
						"rollover": map[string]interface{}{
							"max_age":                ilmRolloverMaxAge,
							"max_primary_shard_size": ilmRolloverMaxShardSize,
						},
					},
				},
				"delete": map[string]interface{}{
					"min_age": fmt.Sprintf("%dd", retentionDays),
					"actions": map[string]interface{}{
						"delete": map[string]interface{}{},
					},
				},
			},
		},
	}
}

// BuildIndexBody returns settings and mappings for a rule's metrics index
func BuildIndexBody(r *rule.Rule, ilmPolicy string) map[string]interface{} {
	props := map[string]interface{}{
		r.Source.TimeField(): map[string]interface{}{"type": "date"},
	}
	for _, dim := range r.GroupBy.Dimensions() {
		props[dim] = map[string]interface{}{"type": "keyword"}
	}

	valueType := "double"
	switch r.Compute.Type() {
	case rule.ComputeCount:
		valueType = "long"
	case rule.ComputeDistribution:
		valueType = "object"
	}
	props[r.Compute.OutputField()] = map[string]interface{}{"type": valueType}

	return map[string]interface{}{
		"settings": map[string]interface{}{
			"index.lifecycle.name": ilmPolicy,
			"number_of_shards":     1,
			"number_of_replicas":   0,
		},
		"mappings": map[string]interface{}{
			"properties": props,
		},
	}
}

// BuildTransformBody returns the continuous pivot transform for a rule
func BuildTransformBody(r *rule.Rule) map[string]interface{} {
	timeField := r.Source.TimeField()

	var query interface{} = map[string]interface{}{"match_all": map[string]interface{}{}}
	if r.Source.HasFilter() {
		query = r.Source.FilterQuery()
	}

	groupBy := map[string]interface{}{
		timeField: map[string]interface{}{
			"date_histogram": map[string]interface{}{
				"field":          timeField,
				"fixed_interval": r.GroupBy.TimeBucket(),
			},
		},
	}
	for _, dim := range r.GroupBy.Dimensions() {
		groupBy[dim] = map[string]interface{}{
			"terms": map[string]interface{}{"field": dim},
		}
	}

	return map[string]interface{}{
		"source": map[string]interface{}{
			"index": []string{r.Source.IndexPattern()},
			"query": query,
		},
		"dest": map[string]interface{}{
			"index": backend.MetricsIndex(r.ID),
		},
		"pivot": map[string]interface{}{
			"group_by":     groupBy,
			"aggregations": buildAggregations(r.Compute, timeField),
		},
		"frequency": TransformFrequency(r.GroupBy),
		"sync": map[string]interface{}{
			"time": map[string]interface{}{
				"field": timeField,
				"delay": r.GroupBy.SyncDelay(),
			},
		},
	}
}

func buildAggregations(c rule.ComputeConfig, timeField string) map[string]interface{} {
	name := c.OutputField()

	var agg map[string]interface{}
	switch c.Type() {
	case rule.ComputeSum:
		agg = map[string]interface{}{"sum": map[string]interface{}{"field": c.Field()}}
	case rule.ComputeAvg:
		agg = map[string]interface{}{"avg": map[string]interface{}{"field": c.Field()}}
	case rule.ComputeDistribution:
		agg = map[string]interface{}{"percentiles": map[string]interface{}{
			"field":    c.Field(),
			"percents": c.Percentiles(),
		}}
	default:
		agg = map[string]interface{}{"value_count": map[string]interface{}{"field": timeField}}
	}

	return map[string]interface{}{name: agg}
}

// TransformFrequency returns the explicit frequency, else the bucket width
// raised to at least one minute.
func TransformFrequency(g rule.GroupByConfig) string {
	if f := g.Frequency(); f != "" {
		return f
	}
	if ParseBucketSeconds(g.TimeBucket()) < minFrequencySeconds {
		return minFrequency
	}
	return g.TimeBucket()
}
