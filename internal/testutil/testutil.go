package testutil

import (
	"database/sql"
	"io/fs"
	"sort"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/migrations"
)

// NewTestDB creates an in-memory SQLite database with the schema applied
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// every pooled connection would otherwise get its own empty database
	db.SetMaxOpenConns(1)

	migFS, err := migrations.GetFS("sqlite")
	if err != nil {
		t.Fatalf("Failed to load migrations: %v", err)
	}
	names, err := fs.Glob(migFS, "*.sql")
	if err != nil {
		t.Fatalf("Failed to list migrations: %v", err)
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(migFS, name)
		if err != nil {
			t.Fatalf("Failed to read migration %s: %v", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			t.Fatalf("Failed to apply migration %s: %v", name, err)
		}
	}

	return db
}

// CleanupDB closes the test database
func CleanupDB(db *sql.DB) {
	if db != nil {
		db.Close()
	}
}

// RuleOption customizes a rule built by NewRule
type RuleOption func(*rule.Rule)

// NewRule builds a valid count rule over logs-* and applies opts
func NewRule(t *testing.T, name string, opts ...RuleOption) *rule.Rule {
	t.Helper()

	src, err := rule.NewSourceConfig("logs-*", "@timestamp", nil)
	if err != nil {
		t.Fatal(err)
	}
	gb, err := rule.NewGroupByConfig("1m", []string{"service"}, "", "")
	if err != nil {
		t.Fatal(err)
	}
	cc, err := rule.NewComputeConfig(rule.ComputeCount, "", nil)
	if err != nil {
		t.Fatal(err)
	}

	r := &rule.Rule{
		Name:    name,
		Owner:   "ops",
		Source:  src,
		GroupBy: gb,
		Compute: cc,
		Backend: rule.DefaultBackendConfig(),
		Status:  rule.StatusDraft,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// WithStatus sets the rule status
func WithStatus(s rule.Status) RuleOption {
	return func(r *rule.Rule) { r.Status = s }
}

// WithDimensions replaces the group-by dimensions, keeping the bucket
func WithDimensions(t *testing.T, dims ...string) RuleOption {
	return func(r *rule.Rule) {
		gb, err := rule.NewGroupByConfig(r.GroupBy.TimeBucket(), dims, r.GroupBy.Frequency(), r.GroupBy.SyncDelay())
		if err != nil {
			t.Fatal(err)
		}
		r.GroupBy = gb
	}
}

// WithBucket replaces the time bucket, keeping the dimensions
func WithBucket(t *testing.T, bucket string) RuleOption {
	return func(r *rule.Rule) {
		gb, err := rule.NewGroupByConfig(bucket, r.GroupBy.Dimensions(), r.GroupBy.Frequency(), r.GroupBy.SyncDelay())
		if err != nil {
			t.Fatal(err)
		}
		r.GroupBy = gb
	}
}

// WithCompute replaces the compute block
func WithCompute(t *testing.T, kind rule.ComputeType, field string, pcts ...float64) RuleOption {
	return func(r *rule.Rule) {
		cc, err := rule.NewComputeConfig(kind, field, pcts)
		if err != nil {
			t.Fatal(err)
		}
		r.Compute = cc
	}
}

// WithSource replaces the source block
func WithSource(t *testing.T, pattern, timeField string, filter map[string]interface{}) RuleOption {
	return func(r *rule.Rule) {
		src, err := rule.NewSourceConfig(pattern, timeField, filter)
		if err != nil {
			t.Fatal(err)
		}
		r.Source = src
	}
}

// WithRetention sets the backend retention
func WithRetention(t *testing.T, days int) RuleOption {
	return func(r *rule.Rule) {
		bc, err := rule.NewBackendConfig(rule.BackendElastic, days)
		if err != nil {
			t.Fatal(err)
		}
		r.Backend = bc
	}
}
