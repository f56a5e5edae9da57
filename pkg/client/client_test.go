package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type recorded struct {
	method string
	path   string
	query  string
	auth   string
	body   map[string]interface{}
}

func newTestServer(t *testing.T, status int, payload string) (*Client, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.RawQuery
		rec.auth = r.Header.Get("Authorization")
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(payload))
	}))
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Token: "tok"}), rec
}

func TestRules_GetUnwrapsEnvelope(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"success":true,"data":{"id":7,"name":"errors","status":"active","compute":{"type":"count"}}}`)

	r, err := c.Rules().Get(context.Background(), 7)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if r.ID != 7 || r.Name != "errors" || r.Status != StatusActive || r.Compute.Type != "count" {
		t.Errorf("unexpected rule: %+v", r)
	}
	if rec.path != "/api/v1/rules/7" || rec.method != http.MethodGet {
		t.Errorf("request = %s %s", rec.method, rec.path)
	}
	if rec.auth != "Bearer tok" {
		t.Errorf("Authorization = %q", rec.auth)
	}
}

func TestRules_ListQuery(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"success":true,"data":{"data":[{"id":1},{"id":2}],"page":2,"page_size":10,"total_items":12,"total_pages":2}}`)

	list, err := c.Rules().List(context.Background(), &RuleListOptions{
		ListOptions: ListOptions{Page: 2, PageSize: 10},
		Status:      StatusPaused,
		Owner:       "ops",
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list.Data) != 2 || list.TotalItems != 12 || list.TotalPages != 2 {
		t.Errorf("unexpected list: %+v", list)
	}
	if rec.query != "owner=ops&page=2&page_size=10&status=paused" {
		t.Errorf("query = %q", rec.query)
	}
}

func TestRules_CreateGuardrailFailure(t *testing.T) {
	c, rec := newTestServer(t, http.StatusUnprocessableEntity, `{"success":false,"error":{"code":"GUARDRAIL_FAILED","message":"Rule failed guardrail checks","details":{"all_guardrails_passed":false}}}`)

	_, err := c.Rules().Create(context.Background(), CreateRuleRequest{Name: "x"}, nil)
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("error = %v, want APIError", err)
	}
	if !apiErr.IsGuardrailFailure() || apiErr.Code != "GUARDRAIL_FAILED" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if apiErr.Details == nil {
		t.Error("details dropped")
	}
	if rec.query != "" {
		t.Errorf("query = %q, want none", rec.query)
	}
}

func TestRules_CreateSkipGuardrails(t *testing.T) {
	c, rec := newTestServer(t, http.StatusCreated, `{"success":true,"data":{"id":3,"status":"draft"}}`)

	if _, err := c.Rules().Create(context.Background(), CreateRuleRequest{Name: "x"}, &CreateOptions{SkipGuardrails: true}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.query != "skip_guardrails=true" {
		t.Errorf("query = %q", rec.query)
	}
	if rec.body["name"] != "x" {
		t.Errorf("body = %v", rec.body)
	}
}

func TestRules_PauseSendsStatusOnly(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"success":true,"data":{"id":4,"status":"paused"}}`)

	r, err := c.Rules().Pause(context.Background(), 4)
	if err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if r.Status != StatusPaused {
		t.Errorf("status = %q", r.Status)
	}
	if rec.method != http.MethodPut || len(rec.body) != 1 || rec.body["status"] != "paused" {
		t.Errorf("request = %s %v", rec.method, rec.body)
	}
}

func TestRules_DeleteIgnoresMessage(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, `{"success":true,"message":"Rule deleted successfully"}`)

	if err := c.Rules().Delete(context.Background(), 9); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
}

func TestClient_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
		check   func(*APIError) bool
	}{
		{"not found", http.StatusNotFound, `{"success":false,"error":{"code":"NOT_FOUND","message":"Rule not found"}}`, (*APIError).IsNotFound},
		{"unauthorized", http.StatusUnauthorized, `{"success":false,"error":{"code":"UNAUTHORIZED","message":"missing token"}}`, (*APIError).IsUnauthorized},
		{"plain text body", http.StatusBadGateway, `upstream down`, (*APIError).IsServerError},
		{"empty body", http.StatusServiceUnavailable, ``, (*APIError).IsServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestServer(t, tt.status, tt.payload)
			_, err := c.Rules().Get(context.Background(), 1)
			apiErr, ok := AsAPIError(err)
			if !ok {
				t.Fatalf("error = %v, want APIError", err)
			}
			if apiErr.StatusCode != tt.status || !tt.check(apiErr) {
				t.Errorf("unexpected error: %+v", apiErr)
			}
		})
	}
}

func TestEngine_PathEscaping(t *testing.T) {
	c, rec := newTestServer(t, http.StatusOK, `{"success":true,"data":{"index":"logs-*","field":"user.id","cardinality":42}}`)

	fc, err := c.Engine().GetCardinality(context.Background(), "logs-*", "user.id")
	if err != nil {
		t.Fatalf("GetCardinality() error = %v", err)
	}
	if fc.Cardinality != 42 {
		t.Errorf("cardinality = %d", fc.Cardinality)
	}
	if rec.path != "/api/v1/engine/indices/logs-*/cardinality/user.id" {
		t.Errorf("path = %q", rec.path)
	}
}

func TestMonitor(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, `{"success":true,"data":{"monitor_running":true,"last_check_time":null,"rules_in_error":[5],"check_interval_seconds":60}}`)

	st, err := c.Monitor(context.Background())
	if err != nil {
		t.Fatalf("Monitor() error = %v", err)
	}
	if !st.Running || len(st.RulesInError) != 1 || st.RulesInError[0] != 5 || st.CheckIntervalSeconds != 60 {
		t.Errorf("unexpected status: %+v", st)
	}
}
