package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/logs2metrics/l2m/internal/domain/backend"
	"github.com/logs2metrics/l2m/internal/domain/cost"
	"github.com/logs2metrics/l2m/internal/domain/engine"
	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/internal/pkg/errors"
)

// MockRuleRepository is an in-memory rule.Repository
type MockRuleRepository struct {
	mu          sync.Mutex
	Rules       map[int64]*rule.Rule
	NextID      int64
	CreateError error
	ListError   error
	UpdateError error
	// StatusWrites counts UpdateStatus calls per rule
	StatusWrites map[int64]int
}

func NewMockRuleRepository() *MockRuleRepository {
	return &MockRuleRepository{
		Rules:        make(map[int64]*rule.Rule),
		NextID:       1,
		StatusWrites: make(map[int64]int),
	}
}

func (m *MockRuleRepository) Create(ctx context.Context, r *rule.Rule) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateError != nil {
		return 0, m.CreateError
	}
	r.ID = m.NextID
	m.NextID++
	r.CreatedAt = time.Now().UTC()
	r.UpdatedAt = r.CreatedAt
	m.Rules[r.ID] = r.Clone()
	return r.ID, nil
}

func (m *MockRuleRepository) GetByID(ctx context.Context, id int64) (*rule.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.Rules[id]
	if !ok {
		return nil, errors.NotFound("Rule")
	}
	return r.Clone(), nil
}

func (m *MockRuleRepository) Update(ctx context.Context, r *rule.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	if _, ok := m.Rules[r.ID]; !ok {
		return errors.NotFound("Rule")
	}
	r.UpdatedAt = time.Now().UTC()
	m.Rules[r.ID] = r.Clone()
	return nil
}

func (m *MockRuleRepository) UpdateStatus(ctx context.Context, id int64, status rule.Status, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	r, ok := m.Rules[id]
	if !ok {
		return errors.NotFound("Rule")
	}
	r.Status = status
	r.StatusReason = reason
	m.StatusWrites[id]++
	return nil
}

func (m *MockRuleRepository) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Rules[id]; !ok {
		return errors.NotFound("Rule")
	}
	delete(m.Rules, id)
	return nil
}

func (m *MockRuleRepository) List(ctx context.Context, filter rule.Filter) ([]*rule.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListError != nil {
		return nil, m.ListError
	}

	ids := make([]int64, 0, len(m.Rules))
	for id := range m.Rules {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*rule.Rule
	for _, id := range ids {
		r := m.Rules[id]
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Owner != "" && r.Owner != filter.Owner {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *MockRuleRepository) ListWithPagination(ctx context.Context, filter rule.Filter, limit, offset int) ([]*rule.Rule, int64, error) {
	all, err := m.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// Get returns a copy of the stored rule, or nil
func (m *MockRuleRepository) Get(id int64) *rule.Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.Rules[id]; ok {
		return r.Clone()
	}
	return nil
}

// MockEngine is an in-memory engine.Client
type MockEngine struct {
	mu sync.Mutex

	Indices     []engine.IndexInfo
	Mappings    map[string][]engine.FieldMapping
	Stats       map[string]engine.IndexStats
	Cardinality map[string]int64
	SearchHits  map[string][]map[string]interface{}
	Existing    map[string]bool
	Policies    map[string]map[string]interface{}
	Transforms  map[string]map[string]interface{}
	IndexBodies map[string]map[string]interface{}
	TStats      map[string]*engine.TransformStats

	// Errors maps an operation name (e.g. "start_transform") or
	// "operation:target" to the error it should return
	Errors map[string]error

	// Calls records "operation:target" in call order
	Calls []string
}

func NewMockEngine() *MockEngine {
	return &MockEngine{
		Mappings:    make(map[string][]engine.FieldMapping),
		Stats:       make(map[string]engine.IndexStats),
		Cardinality: make(map[string]int64),
		SearchHits:  make(map[string][]map[string]interface{}),
		Existing:    make(map[string]bool),
		Policies:    make(map[string]map[string]interface{}),
		Transforms:  make(map[string]map[string]interface{}),
		IndexBodies: make(map[string]map[string]interface{}),
		TStats:      make(map[string]*engine.TransformStats),
		Errors:      make(map[string]error),
	}
}

// NotFound builds a 404 engine error
func NotFound(op string) error {
	return &engine.Error{Op: op, StatusCode: http.StatusNotFound, Type: "resource_not_found_exception", Reason: "not found"}
}

func (m *MockEngine) record(op, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, op+":"+target)
	if err, ok := m.Errors[op+":"+target]; ok {
		return err
	}
	return m.Errors[op]
}

// CallsFor returns the recorded calls for one operation, in order
func (m *MockEngine) CallsFor(op string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.Calls {
		if strings.HasPrefix(c, op+":") {
			out = append(out, strings.TrimPrefix(c, op+":"))
		}
	}
	return out
}

// CallLog returns a copy of all recorded calls
func (m *MockEngine) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

func (m *MockEngine) Ping(ctx context.Context) error {
	return m.record("ping", "")
}

func (m *MockEngine) ListIndices(ctx context.Context) ([]engine.IndexInfo, error) {
	if err := m.record("cat_indices", ""); err != nil {
		return nil, err
	}
	return m.Indices, nil
}

func (m *MockEngine) GetMapping(ctx context.Context, index string) ([]engine.FieldMapping, error) {
	if err := m.record("get_mapping", index); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.Mappings[index]
	if !ok {
		return nil, NotFound("get_mapping")
	}
	return f, nil
}

func (m *MockEngine) GetIndexStats(ctx context.Context, index string) (engine.IndexStats, error) {
	if err := m.record("index_stats", index); err != nil {
		return engine.IndexStats{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Stats[index]
	if !ok {
		return engine.IndexStats{}, NotFound("index_stats")
	}
	return s, nil
}

// GetFieldCardinality looks up Cardinality by field name
func (m *MockEngine) GetFieldCardinality(ctx context.Context, index, field string) (int64, error) {
	if err := m.record("cardinality", index+"/"+field); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Cardinality[field], nil
}

func (m *MockEngine) Search(ctx context.Context, index string, body map[string]interface{}) ([]map[string]interface{}, error) {
	if err := m.record("search", index); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SearchHits[index], nil
}

func (m *MockEngine) IndexExists(ctx context.Context, index string) (bool, error) {
	if err := m.record("index_exists", index); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Existing[index], nil
}

func (m *MockEngine) CreateIndex(ctx context.Context, index string, body map[string]interface{}) error {
	if err := m.record("create_index", index); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Existing[index] {
		return &engine.Error{Op: "create_index", StatusCode: http.StatusBadRequest, Type: "resource_already_exists_exception", Reason: "index exists"}
	}
	m.Existing[index] = true
	m.IndexBodies[index] = body
	return nil
}

func (m *MockEngine) DeleteIndex(ctx context.Context, index string) error {
	if err := m.record("delete_index", index); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.Existing[index] {
		return NotFound("delete_index")
	}
	delete(m.Existing, index)
	return nil
}

func (m *MockEngine) GetILMPolicy(ctx context.Context, name string) (map[string]interface{}, error) {
	if err := m.record("get_ilm_policy", name); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Policies[name]
	if !ok {
		return nil, NotFound("get_ilm_policy")
	}
	return p, nil
}

func (m *MockEngine) PutILMPolicy(ctx context.Context, name string, body map[string]interface{}) error {
	if err := m.record("put_ilm_policy", name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Policies[name] = body
	return nil
}

func (m *MockEngine) PutTransform(ctx context.Context, id string, body map[string]interface{}) error {
	if err := m.record("put_transform", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Transforms[id]; ok {
		return &engine.Error{Op: "put_transform", StatusCode: http.StatusConflict, Type: "resource_already_exists_exception", Reason: "transform exists"}
	}
	m.Transforms[id] = body
	return nil
}

func (m *MockEngine) StartTransform(ctx context.Context, id string) error {
	if err := m.record("start_transform", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Transforms[id]; !ok {
		return NotFound("start_transform")
	}
	m.TStats[id] = &engine.TransformStats{ID: id, State: "started"}
	return nil
}

func (m *MockEngine) StopTransform(ctx context.Context, id string, force, waitForCompletion bool, timeout time.Duration) error {
	if err := m.record("stop_transform", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Transforms[id]; !ok {
		return NotFound("stop_transform")
	}
	if s, ok := m.TStats[id]; ok && s != nil {
		s.State = "stopped"
	}
	return nil
}

func (m *MockEngine) DeleteTransform(ctx context.Context, id string, force bool) error {
	if err := m.record("delete_transform", id); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Transforms[id]; !ok {
		return NotFound("delete_transform")
	}
	delete(m.Transforms, id)
	delete(m.TStats, id)
	return nil
}

func (m *MockEngine) TransformExists(ctx context.Context, id string) (bool, error) {
	if err := m.record("get_transform", id); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Transforms[id]
	return ok, nil
}

func (m *MockEngine) GetTransformStats(ctx context.Context, id string) (*engine.TransformStats, error) {
	if err := m.record("transform_stats", id); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.TStats[id]
	if !ok {
		return nil, NotFound("transform_stats")
	}
	if s == nil {
		return nil, nil
	}
	c := *s
	return &c, nil
}

// TransformBody returns the body a transform was created with
func (m *MockEngine) TransformBody(id string) map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Transforms[id]
}

// IndexBody returns the body an index was created with
func (m *MockEngine) IndexBody(index string) map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.IndexBodies[index]
}

// MockBackend is a recording backend.MetricsBackend
type MockBackend struct {
	mu sync.Mutex

	// ProvisionError makes Provision fail with this text
	ProvisionError string
	// Statuses is returned by GetStatus; missing rules report unknown
	Statuses map[int64]backend.BackendStatus
	// StatusFunc overrides Statuses when set
	StatusFunc func(r *rule.Rule) backend.BackendStatus
	Validation backend.ValidationResult

	Calls []string
}

func NewMockBackend() *MockBackend {
	return &MockBackend{
		Statuses:   make(map[int64]backend.BackendStatus),
		Validation: backend.ValidationResult{Valid: true, Errors: []string{}},
	}
}

func (m *MockBackend) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// CallLog returns a copy of the recorded calls
func (m *MockBackend) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

// Reset clears recorded calls
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

func (m *MockBackend) Provision(ctx context.Context, r *rule.Rule) backend.ProvisionResult {
	m.record(fmt.Sprintf("provision:%d", r.ID))
	m.mu.Lock()
	defer m.mu.Unlock()
	res := backend.ProvisionResult{
		TransformID:  fmt.Sprintf("l2m-rule-%d", r.ID),
		MetricsIndex: fmt.Sprintf("l2m-metrics-rule-%d", r.ID),
	}
	if m.ProvisionError != "" {
		res.Error = m.ProvisionError
		return res
	}
	res.Success = true
	res.ILMPolicy = fmt.Sprintf("l2m-metrics-%dd", r.Backend.RetentionDays())
	return res
}

func (m *MockBackend) Deprovision(ctx context.Context, r *rule.Rule) {
	m.record(fmt.Sprintf("deprovision:%d", r.ID))
}

func (m *MockBackend) GetStatus(ctx context.Context, r *rule.Rule) backend.BackendStatus {
	m.record(fmt.Sprintf("status:%d", r.ID))
	m.mu.Lock()
	fn := m.StatusFunc
	st, ok := m.Statuses[r.ID]
	m.mu.Unlock()

	if fn != nil {
		return fn(r)
	}
	if !ok {
		return backend.BackendStatus{RuleID: r.ID, Health: backend.HealthUnknown}
	}
	return st
}

func (m *MockBackend) Validate(ctx context.Context, r *rule.Rule) backend.ValidationResult {
	m.record(fmt.Sprintf("validate:%d", r.ID))
	return m.Validation
}

// MockEvaluator returns a fixed guardrail report
type MockEvaluator struct {
	Report *cost.GuardrailsReport
	Calls  int
}

func (m *MockEvaluator) Evaluate(ctx context.Context, r *rule.Rule) *cost.GuardrailsReport {
	m.Calls++
	if m.Report == nil {
		return &cost.GuardrailsReport{AllPassed: true, Results: []cost.GuardrailResult{}}
	}
	return m.Report
}

// MockPublisher records published events
type MockPublisher struct {
	mu     sync.Mutex
	Events []rule.Event
	Err    error
}

func (m *MockPublisher) Publish(ctx context.Context, evt rule.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, evt)
	return m.Err
}

func (m *MockPublisher) Close() error { return nil }

// Types returns the recorded event types in order
func (m *MockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		out = append(out, e.Type)
	}
	return out
}
