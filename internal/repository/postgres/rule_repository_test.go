package postgres

import (
	"context"
	"testing"

	"github.com/logs2metrics/l2m/internal/domain/rule"
	"github.com/logs2metrics/l2m/internal/pkg/errors"
	"github.com/logs2metrics/l2m/internal/testutil"
)

func TestRuleRepository_CreateAndGet(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewRuleRepository(db, "sqlite")
	ctx := context.Background()

	in := testutil.NewRule(t, "p95 latency",
		testutil.WithSource(t, "logs-app-*", "@timestamp", map[string]interface{}{
			"term": map[string]interface{}{"level": "error"},
		}),
		testutil.WithDimensions(t, "service", "endpoint"),
		testutil.WithCompute(t, rule.ComputeDistribution, "latency_ms", 50, 99),
		testutil.WithRetention(t, 90),
	)
	in.Origin = &rule.OriginConfig{DashboardID: "dash-1", PanelID: "panel-3", PanelTitle: "Latency"}

	id, err := repo.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id == 0 || in.ID != id {
		t.Fatalf("Create() id = %d, rule.ID = %d", id, in.ID)
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if in.BakedConfigChanged(got) {
		t.Errorf("stored config differs: got source=%v group_by=%v", got.Source.FilterQuery(), got.GroupBy.Dimensions())
	}
	if got.Name != in.Name || got.Owner != in.Owner || got.Status != rule.StatusDraft {
		t.Errorf("GetByID() = %+v", got)
	}
	if got.Origin == nil || got.Origin.PanelTitle != "Latency" {
		t.Errorf("Origin = %+v", got.Origin)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt was not stored")
	}
}

func TestRuleRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	_, err := NewRuleRepository(db, "sqlite").GetByID(context.Background(), 99)
	if !errors.IsNotFound(err) {
		t.Errorf("GetByID() error = %v, want not found", err)
	}
}

func TestRuleRepository_UpdateAndStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewRuleRepository(db, "sqlite")
	ctx := context.Background()

	r := testutil.NewRule(t, "errors")
	if _, err := repo.Create(ctx, r); err != nil {
		t.Fatal(err)
	}

	r.Name = "errors per service"
	testutil.WithBucket(t, "5m")(r)
	if err := repo.Update(ctx, r); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := repo.UpdateStatus(ctx, r.ID, rule.StatusError, "transform failed"); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	got, err := repo.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "errors per service" || got.GroupBy.TimeBucket() != "5m" {
		t.Errorf("Update() not persisted: %+v", got)
	}
	if got.Status != rule.StatusError || got.StatusReason != "transform failed" {
		t.Errorf("status = %s (%q)", got.Status, got.StatusReason)
	}

	if err := repo.UpdateStatus(ctx, 404, rule.StatusError, ""); !errors.IsNotFound(err) {
		t.Errorf("UpdateStatus(missing) error = %v", err)
	}
}

func TestRuleRepository_ListFilters(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewRuleRepository(db, "sqlite")
	ctx := context.Background()

	seed := []*struct {
		name   string
		owner  string
		status rule.Status
	}{
		{"checkout errors", "payments", rule.StatusActive},
		{"login latency", "identity", rule.StatusActive},
		{"cart size", "payments", rule.StatusDraft},
	}
	for _, s := range seed {
		r := testutil.NewRule(t, s.name, testutil.WithStatus(s.status))
		r.Owner = s.owner
		if _, err := repo.Create(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter rule.Filter
		want   int
	}{
		{"all", rule.Filter{}, 3},
		{"active", rule.Filter{Status: rule.StatusActive}, 2},
		{"owner", rule.Filter{Owner: "payments"}, 2},
		{"owner and status", rule.Filter{Owner: "payments", Status: rule.StatusDraft}, 1},
		{"search is case insensitive", rule.Filter{Search: "LATENCY"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List() returned %d rules, want %d", len(got), tt.want)
			}
		})
	}

	page, total, err := repo.ListWithPagination(ctx, rule.Filter{}, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(page) != 2 {
		t.Errorf("ListWithPagination() = %d items, total %d", len(page), total)
	}
	if page[0].Name != "cart size" {
		t.Errorf("ListWithPagination() first = %q, want newest first", page[0].Name)
	}
}

func TestRuleRepository_Delete(t *testing.T) {
	db := testutil.NewTestDB(t)
	defer testutil.CleanupDB(db)

	repo := NewRuleRepository(db, "sqlite")
	ctx := context.Background()

	r := testutil.NewRule(t, "to delete")
	if _, err := repo.Create(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, r.ID); !errors.IsNotFound(err) {
		t.Errorf("second Delete() error = %v, want not found", err)
	}
}

func TestRebind(t *testing.T) {
	q := "UPDATE t SET a = ?, b = ? WHERE id = ?"
	if got := Rebind("sqlite", q); got != q {
		t.Errorf("Rebind(sqlite) = %q", got)
	}
	if got := Rebind("postgres", q); got != "UPDATE t SET a = $1, b = $2 WHERE id = $3" {
		t.Errorf("Rebind(postgres) = %q", got)
	}
}
