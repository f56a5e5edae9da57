package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/logs2metrics/l2m/internal/domain/engine"
	"github.com/logs2metrics/l2m/internal/pkg/metrics"
)

// ElasticConfig configures the Elasticsearch client
type ElasticConfig struct {
	URL            string
	Username       string
	Password       string
	APIKey         string
	RequestTimeout time.Duration
	AdminTimeout   time.Duration
}

// ElasticClient talks to the Elasticsearch REST API
type ElasticClient struct {
	baseURL        string
	username       string
	password       string
	apiKey         string
	requestTimeout time.Duration
	adminTimeout   time.Duration
	httpClient     *http.Client
}

// NewElasticClient creates a client for the configured cluster
func NewElasticClient(cfg ElasticConfig) *ElasticClient {
	return &ElasticClient{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		username:       cfg.Username,
		password:       cfg.Password,
		apiKey:         cfg.APIKey,
		requestTimeout: cfg.RequestTimeout,
		adminTimeout:   cfg.AdminTimeout,
		httpClient:     &http.Client{},
	}
}

var _ engine.Client = (*ElasticClient)(nil)

// Ping checks that the cluster answers
func (c *ElasticClient) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", http.MethodGet, "/", nil, nil, nil, c.requestTimeout)
}

// ListIndices returns the non-system indices with their volume
func (c *ElasticClient) ListIndices(ctx context.Context) ([]engine.IndexInfo, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("h", "index,docs.count,store.size")
	q.Set("bytes", "b")
	q.Set("s", "index")

	var rows []map[string]interface{}
	if err := c.do(ctx, "cat_indices", http.MethodGet, "/_cat/indices", q, nil, &rows, c.requestTimeout); err != nil {
		return nil, err
	}

	out := make([]engine.IndexInfo, 0, len(rows))
	for _, row := range rows {
		name, _ := row["index"].(string)
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		size := toInt64(row["store.size"])
		out = append(out, engine.IndexInfo{
			Name:      name,
			DocCount:  toInt64(row["docs.count"]),
			SizeBytes: size,
			Size:      FormatBytes(size),
		})
	}
	return out, nil
}

// GetMapping returns the top-level fields of an index or pattern.
// Fields from every matching index are merged; text fields are not aggregatable.
func (c *ElasticClient) GetMapping(ctx context.Context, index string) ([]engine.FieldMapping, error) {
	var raw map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Type string `json:"type"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := c.do(ctx, "get_mapping", http.MethodGet, "/"+url.PathEscape(index)+"/_mapping", nil, nil, &raw, c.requestTimeout); err != nil {
		return nil, err
	}

	types := make(map[string]string)
	for _, idx := range raw {
		for name, def := range idx.Mappings.Properties {
			t := def.Type
			if t == "" {
				t = "object"
			}
			if _, seen := types[name]; !seen {
				types[name] = t
			}
		}
	}

	out := make([]engine.FieldMapping, 0, len(types))
	for name, t := range types {
		out = append(out, engine.FieldMapping{Name: name, Type: t, Aggregatable: t != "text"})
	}
	sortFields(out)
	return out, nil
}

// GetIndexStats returns document count, store size and query counters
func (c *ElasticClient) GetIndexStats(ctx context.Context, index string) (engine.IndexStats, error) {
	var raw struct {
		All struct {
			Total struct {
				Docs struct {
					Count int64 `json:"count"`
				} `json:"docs"`
				Store struct {
					SizeInBytes int64 `json:"size_in_bytes"`
				} `json:"store"`
				Search struct {
					QueryTotal        int64 `json:"query_total"`
					QueryTimeInMillis int64 `json:"query_time_in_millis"`
				} `json:"search"`
			} `json:"total"`
		} `json:"_all"`
	}
	if err := c.do(ctx, "index_stats", http.MethodGet, "/"+url.PathEscape(index)+"/_stats", nil, nil, &raw, c.requestTimeout); err != nil {
		return engine.IndexStats{}, err
	}

	t := raw.All.Total
	return engine.IndexStats{
		Index:          index,
		DocCount:       t.Docs.Count,
		StoreSizeBytes: t.Store.SizeInBytes,
		StoreSize:      FormatBytes(t.Store.SizeInBytes),
		QueryTotal:     t.Search.QueryTotal,
		QueryTimeMs:    t.Search.QueryTimeInMillis,
	}, nil
}

// GetFieldCardinality returns the approximate distinct count of a field
func (c *ElasticClient) GetFieldCardinality(ctx context.Context, index, field string) (int64, error) {
	body := map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			"cardinality": map[string]interface{}{
				"cardinality": map[string]interface{}{"field": field},
			},
		},
	}
	var raw struct {
		Aggregations struct {
			Cardinality struct {
				Value int64 `json:"value"`
			} `json:"cardinality"`
		} `json:"aggregations"`
	}
	if err := c.do(ctx, "cardinality", http.MethodPost, "/"+url.PathEscape(index)+"/_search", nil, body, &raw, c.requestTimeout); err != nil {
		return 0, err
	}
	return raw.Aggregations.Cardinality.Value, nil
}

// Search runs a query and returns the _source of each hit
func (c *ElasticClient) Search(ctx context.Context, index string, body map[string]interface{}) ([]map[string]interface{}, error) {
	var raw struct {
		Hits struct {
			Hits []struct {
				Source map[string]interface{} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := c.do(ctx, "search", http.MethodPost, "/"+url.PathEscape(index)+"/_search", nil, body, &raw, c.requestTimeout); err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(raw.Hits.Hits))
	for _, h := range raw.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

// IndexExists reports whether an index or pattern resolves to anything
func (c *ElasticClient) IndexExists(ctx context.Context, index string) (bool, error) {
	err := c.do(ctx, "index_exists", http.MethodHead, "/"+url.PathEscape(index), nil, nil, nil, c.requestTimeout)
	if engine.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// CreateIndex creates an index with settings and mappings
func (c *ElasticClient) CreateIndex(ctx context.Context, index string, body map[string]interface{}) error {
	return c.do(ctx, "create_index", http.MethodPut, "/"+url.PathEscape(index), nil, body, nil, c.adminTimeout)
}

// DeleteIndex deletes an index
func (c *ElasticClient) DeleteIndex(ctx context.Context, index string) error {
	return c.do(ctx, "delete_index", http.MethodDelete, "/"+url.PathEscape(index), nil, nil, nil, c.adminTimeout)
}

// GetILMPolicy fetches a lifecycle policy by name
func (c *ElasticClient) GetILMPolicy(ctx context.Context, name string) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := c.do(ctx, "get_ilm_policy", http.MethodGet, "/_ilm/policy/"+url.PathEscape(name), nil, nil, &raw, c.adminTimeout); err != nil {
		return nil, err
	}
	p, ok := raw[name].(map[string]interface{})
	if !ok {
		return nil, &engine.Error{Op: "get_ilm_policy", StatusCode: http.StatusNotFound, Reason: "policy " + name + " missing from response"}
	}
	return p, nil
}

// PutILMPolicy creates or replaces a lifecycle policy
func (c *ElasticClient) PutILMPolicy(ctx context.Context, name string, body map[string]interface{}) error {
	return c.do(ctx, "put_ilm_policy", http.MethodPut, "/_ilm/policy/"+url.PathEscape(name), nil, body, nil, c.adminTimeout)
}

// PutTransform creates a transform without starting it
func (c *ElasticClient) PutTransform(ctx context.Context, id string, body map[string]interface{}) error {
	return c.do(ctx, "put_transform", http.MethodPut, "/_transform/"+url.PathEscape(id), nil, body, nil, c.adminTimeout)
}

// StartTransform starts a transform
func (c *ElasticClient) StartTransform(ctx context.Context, id string) error {
	return c.do(ctx, "start_transform", http.MethodPost, "/_transform/"+url.PathEscape(id)+"/_start", nil, nil, nil, c.adminTimeout)
}

// StopTransform stops a transform
func (c *ElasticClient) StopTransform(ctx context.Context, id string, force, waitForCompletion bool, timeout time.Duration) error {
	q := url.Values{}
	q.Set("force", fmt.Sprint(force))
	q.Set("wait_for_completion", fmt.Sprint(waitForCompletion))
	if timeout > 0 {
		q.Set("timeout", fmt.Sprintf("%ds", int(timeout.Seconds())))
	}
	callTimeout := c.adminTimeout
	if timeout > 0 && timeout+5*time.Second > callTimeout {
		callTimeout = timeout + 5*time.Second
	}
	return c.do(ctx, "stop_transform", http.MethodPost, "/_transform/"+url.PathEscape(id)+"/_stop", q, nil, nil, callTimeout)
}

// DeleteTransform deletes a transform
func (c *ElasticClient) DeleteTransform(ctx context.Context, id string, force bool) error {
	q := url.Values{}
	q.Set("force", fmt.Sprint(force))
	return c.do(ctx, "delete_transform", http.MethodDelete, "/_transform/"+url.PathEscape(id), q, nil, nil, c.adminTimeout)
}

// TransformExists reports whether a transform with id is defined
func (c *ElasticClient) TransformExists(ctx context.Context, id string) (bool, error) {
	var raw struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, "get_transform", http.MethodGet, "/_transform/"+url.PathEscape(id), nil, nil, &raw, c.requestTimeout)
	if engine.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return raw.Count > 0, nil
}

// GetTransformStats reads the live state and counters of a transform
func (c *ElasticClient) GetTransformStats(ctx context.Context, id string) (*engine.TransformStats, error) {
	var raw struct {
		Transforms []struct {
			ID     string `json:"id"`
			State  string `json:"state"`
			Reason string `json:"reason"`
			Stats  struct {
				DocumentsProcessed int64 `json:"documents_processed"`
				DocumentsIndexed   int64 `json:"documents_indexed"`
			} `json:"stats"`
			Checkpointing struct {
				Last struct {
					TimestampMillis int64 `json:"timestamp_millis"`
				} `json:"last"`
			} `json:"checkpointing"`
		} `json:"transforms"`
	}
	if err := c.do(ctx, "transform_stats", http.MethodGet, "/_transform/"+url.PathEscape(id)+"/_stats", nil, nil, &raw, c.requestTimeout); err != nil {
		return nil, err
	}
	if len(raw.Transforms) == 0 {
		return nil, nil
	}

	t := raw.Transforms[0]
	stats := &engine.TransformStats{
		ID:            t.ID,
		State:         t.State,
		Reason:        t.Reason,
		DocsProcessed: t.Stats.DocumentsProcessed,
		DocsIndexed:   t.Stats.DocumentsIndexed,
	}
	if ms := t.Checkpointing.Last.TimestampMillis; ms > 0 {
		ts := time.UnixMilli(ms).UTC()
		stats.LastCheckpoint = &ts
	}
	return stats, nil
}

// do sends one request and decodes a JSON response into out when non-nil.
// Non-2xx answers become *engine.Error.
func (c *ElasticClient) do(ctx context.Context, op, method, path string, query url.Values, body, out interface{}, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.apiKey != "":
		req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordEngineRequest(op, 0, time.Since(start))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	metrics.RecordEngineRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(op, resp)
	}
	if out == nil || method == http.MethodHead {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func decodeError(op string, resp *http.Response) error {
	e := &engine.Error{Op: op, StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || len(envelope.Error) == 0 {
		e.Reason = strings.TrimSpace(string(data))
		if e.Reason == "" {
			e.Reason = http.StatusText(resp.StatusCode)
		}
		return e
	}

	var detail struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(envelope.Error, &detail); err == nil {
		e.Type = detail.Type
		e.Reason = detail.Reason
		return e
	}
	_ = json.Unmarshal(envelope.Error, &e.Reason)
	return e
}
