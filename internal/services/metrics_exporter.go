package services

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/axiomhq/hyperloglog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/logs2metrics/l2m/internal/domain/backend"
	"github.com/logs2metrics/l2m/internal/domain/engine"
	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
)

const (
	exporterLookback   = "24h"
	exporterSearchSize = 1000
	unknownLabelValue  = "unknown"
)

var (
	nonMetricChars = regexp.MustCompile(`[^a-z0-9_]`)
	underscoreRuns = regexp.MustCompile(`_+`)

	healthDesc = prometheus.NewDesc("l2m_transform_health",
		"Transform health (0=unknown, 1=green, 2=yellow, 3=red, 4=stopped)",
		[]string{"rule_id", "rule_name"}, nil)
	docsProcessedDesc = prometheus.NewDesc("l2m_transform_docs_processed",
		"Total documents processed by transform",
		[]string{"rule_id", "rule_name"}, nil)
	docsIndexedDesc = prometheus.NewDesc("l2m_transform_docs_indexed",
		"Total documents indexed by transform",
		[]string{"rule_id", "rule_name"}, nil)
	observedSeriesDesc = prometheus.NewDesc("l2m_exporter_observed_series",
		"Approximate number of distinct per-rule series exported since start",
		nil, nil)
)

// MetricsExporter is a prometheus.Collector that reads the latest aggregated
// values of every active rule on each scrape. The per-rule metric set is
// rebuilt from scratch every time, so series of removed rules disappear.
type MetricsExporter struct {
	rules   rule.Repository
	backend backend.MetricsBackend
	engine  engine.Client
	timeout time.Duration
	logger  *logger.Logger

	mu       sync.Mutex
	observed *hyperloglog.Sketch
}

// NewMetricsExporter creates the exporter. timeout bounds one scrape.
func NewMetricsExporter(rules rule.Repository, be backend.MetricsBackend, client engine.Client, timeout time.Duration, log *logger.Logger) *MetricsExporter {
	return &MetricsExporter{
		rules:    rules,
		backend:  be,
		engine:   client,
		timeout:  timeout,
		logger:   log.WithComponent("exporter"),
		observed: hyperloglog.New(),
	}
}

// Describe sends nothing: the metric set depends on the stored rules, which
// makes this an unchecked collector.
func (e *MetricsExporter) Describe(chan<- *prometheus.Desc) {}

// Collect builds the full metric set for this scrape, then emits it
func (e *MetricsExporter) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	for _, m := range e.Build(ctx) {
		ch <- m
	}
}

// Build returns every metric for the current scrape
func (e *MetricsExporter) Build(ctx context.Context) []prometheus.Metric {
	rules, err := e.rules.List(ctx, rule.Filter{Status: rule.StatusActive})
	if err != nil {
		e.logger.ErrorWithErr(err, "Failed to list active rules")
		return nil
	}

	set := newMetricSet()
	for _, r := range rules {
		e.collectRule(ctx, set, r)
		e.collectHealth(ctx, set, r)
	}

	e.mu.Lock()
	for _, key := range set.seriesKeys {
		e.observed.Insert([]byte(key))
	}
	estimate := e.observed.Estimate()
	e.mu.Unlock()

	set.add(prometheus.MustNewConstMetric(observedSeriesDesc, prometheus.GaugeValue, float64(estimate)))
	return set.metrics
}

func (e *MetricsExporter) collectHealth(ctx context.Context, set *metricSet, r *rule.Rule) {
	st := e.backend.GetStatus(ctx, r)
	id := strconv.FormatInt(r.ID, 10)

	set.add(prometheus.MustNewConstMetric(healthDesc, prometheus.GaugeValue, st.Health.Gauge(), id, r.Name))
	set.add(prometheus.MustNewConstMetric(docsProcessedDesc, prometheus.GaugeValue, float64(st.DocsProcessed), id, r.Name))
	set.add(prometheus.MustNewConstMetric(docsIndexedDesc, prometheus.GaugeValue, float64(st.DocsIndexed), id, r.Name))
}

func (e *MetricsExporter) collectRule(ctx context.Context, set *metricSet, r *rule.Rule) {
	log := e.logger.WithFields(map[string]interface{}{"rule_id": r.ID, "rule_name": r.Name})
	timeField := r.Source.TimeField()
	index := backend.MetricsIndex(r.ID)

	docs, err := e.engine.Search(ctx, index, map[string]interface{}{
		"query": map[string]interface{}{
			"range": map[string]interface{}{
				timeField: map[string]interface{}{"gte": "now-" + exporterLookback},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{timeField: map[string]interface{}{"order": "desc"}},
		},
		"size": exporterSearchSize,
	})
	if engine.IsNotFound(err) {
		log.Debug("Metrics index not found, skipping")
		return
	}
	if err != nil {
		log.WarnWithErr(err, "Failed to read metrics index")
		return
	}

	dims := r.GroupBy.Dimensions()
	labelNames := []string{"rule_name"}
	for _, d := range dims {
		labelNames = append(labelNames, SanitizeMetricName(d))
	}
	prefix := "l2m_rule_" + SanitizeMetricName(r.Name)
	field := SanitizeMetricName(r.Compute.Field())
	valueField := r.Compute.OutputField()

	// hits are newest first; the first document per label set wins
	seen := make(map[string]bool)
	for _, doc := range docs {
		labels := make([]string, 0, len(labelNames))
		labels = append(labels, r.Name)
		for _, d := range dims {
			labels = append(labels, labelValue(doc[d]))
		}
		key := strings.Join(labels, "\xff")
		if seen[key] {
			continue
		}
		seen[key] = true

		switch r.Compute.Type() {
		case rule.ComputeCount:
			set.gauge(prefix+"_event_count", "Event count", labelNames, labels, number(doc[valueField]), log)
		case rule.ComputeSum:
			set.gauge(prefix+"_sum_"+field, "Sum of "+r.Compute.Field(), labelNames, labels, number(doc[valueField]), log)
		case rule.ComputeAvg:
			set.gauge(prefix+"_avg_"+field, "Average of "+r.Compute.Field(), labelNames, labels, number(doc[valueField]), log)
		case rule.ComputeDistribution:
			for _, p := range percentileValues(doc[valueField]) {
				set.gauge(prefix+"_"+p.label+"_"+field, p.label+" of "+r.Compute.Field(), labelNames, labels, p.value, log)
			}
		}
	}
}

// SanitizeMetricName lowercases a name and reduces it to [a-z0-9_]
func SanitizeMetricName(name string) string {
	s := nonMetricChars.ReplaceAllString(strings.ToLower(name), "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

type percentile struct {
	label string
	value float64
}

// percentileValues reads a percentiles aggregation result, with or without
// its "values" wrapper, as p50, p99 and so on in ascending order
func percentileValues(v interface{}) []percentile {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	if inner, ok := obj["values"].(map[string]interface{}); ok {
		obj = inner
	}

	type entry struct {
		pct float64
		percentile
	}
	entries := make([]entry, 0, len(obj))
	for k, raw := range obj {
		if raw == nil {
			continue
		}
		pct, err := strconv.ParseFloat(k, 64)
		if err != nil {
			continue
		}
		entries = append(entries, entry{pct: pct, percentile: percentile{
			label: "p" + strings.SplitN(k, ".", 2)[0],
			value: number(raw),
		}})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].pct < entries[j].pct })

	out := make([]percentile, len(entries))
	for i, e := range entries {
		out[i] = e.percentile
	}
	return out
}

func labelValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return unknownLabelValue
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}

func number(v interface{}) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	case int:
		return float64(x)
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	}
	return 0
}

// metricSet accumulates one scrape's metrics and keeps each metric name
// bound to a single label schema
type metricSet struct {
	metrics    []prometheus.Metric
	descs      map[string]*prometheus.Desc
	labels     map[string]string
	series     map[string]bool
	seriesKeys []string
}

func newMetricSet() *metricSet {
	return &metricSet{
		descs:  make(map[string]*prometheus.Desc),
		labels: make(map[string]string),
		series: make(map[string]bool),
	}
}

func (s *metricSet) add(m prometheus.Metric) {
	s.metrics = append(s.metrics, m)
}

func (s *metricSet) gauge(name, help string, labelNames, labelValues []string, value float64, log *logger.Logger) {
	schema := strings.Join(labelNames, ",")
	desc, ok := s.descs[name]
	if !ok {
		desc = prometheus.NewDesc(name, help, labelNames, nil)
		s.descs[name] = desc
		s.labels[name] = schema
	} else if s.labels[name] != schema {
		log.With("metric", name).Warn("Metric name already exported with different labels, skipping")
		return
	}

	key := name + "\xff" + strings.Join(labelValues, "\xff")
	if s.series[key] {
		return
	}

	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, value, labelValues...)
	if err != nil {
		log.With("metric", name).WarnWithErr(err, "Invalid metric")
		return
	}
	s.add(m)
	s.series[key] = true
	s.seriesKeys = append(s.seriesKeys, key)
}
