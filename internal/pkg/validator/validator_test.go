package validator

import "testing"

type bucketRequest struct {
	Name       string   `json:"name" validate:"required,min=1,max=10"`
	TimeBucket string   `json:"time_bucket" validate:"interval"`
	Dimensions []string `json:"dimensions" validate:"max=3,unique"`
}

func TestValidator_Validate(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		req       bucketRequest
		wantField string
	}{
		{name: "valid", req: bucketRequest{Name: "ok", TimeBucket: "5m"}},
		{name: "empty bucket allowed", req: bucketRequest{Name: "ok"}},
		{name: "missing name", req: bucketRequest{TimeBucket: "1m"}, wantField: "name"},
		{name: "bad bucket", req: bucketRequest{Name: "ok", TimeBucket: "5 minutes"}, wantField: "time_bucket"},
		{name: "duplicate dims", req: bucketRequest{Name: "ok", Dimensions: []string{"a", "a"}}, wantField: "dimensions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.Validate(tt.req)
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Fatalf("Validate() unexpected errors: %+v", errs)
				}
				return
			}
			if len(errs) != 1 {
				t.Fatalf("Validate() got %d errors, want 1: %+v", len(errs), errs)
			}
			if errs[0].Field != tt.wantField {
				t.Errorf("Validate() field = %q, want %q", errs[0].Field, tt.wantField)
			}
		})
	}
}

func TestValidateFilterQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   map[string]interface{}
		wantErr bool
	}{
		{name: "nil is allowed", query: nil},
		{name: "term clause", query: map[string]interface{}{"term": map[string]interface{}{"level": "error"}}},
		{name: "bool clause", query: map[string]interface{}{"bool": map[string]interface{}{"filter": []interface{}{}}}},
		{name: "unknown clause", query: map[string]interface{}{"sql": map[string]interface{}{}}, wantErr: true},
		{name: "two clauses", query: map[string]interface{}{
			"term":  map[string]interface{}{"a": "b"},
			"range": map[string]interface{}{"c": map[string]interface{}{}},
		}, wantErr: true},
		{name: "empty object", query: map[string]interface{}{}, wantErr: true},
		{name: "clause not an object", query: map[string]interface{}{"term": "level:error"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilterQuery(tt.query)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFilterQuery() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
