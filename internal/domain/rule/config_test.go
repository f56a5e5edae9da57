package rule

import (
	"encoding/json"
	"slices"
	"testing"
)

func TestNewGroupByConfig(t *testing.T) {
	tests := []struct {
		name       string
		bucket     string
		dims       []string
		frequency  string
		syncDelay  string
		wantBucket string
		wantDelay  string
		wantField  string
	}{
		{name: "defaults", wantBucket: "1m", wantDelay: "30s"},
		{name: "explicit values", bucket: "5m", dims: []string{"service"}, frequency: "2m", syncDelay: "1m", wantBucket: "5m", wantDelay: "1m"},
		{name: "bad bucket", bucket: "5 minutes", wantField: "group_by.time_bucket"},
		{name: "bad frequency", frequency: "often", wantField: "group_by.frequency"},
		{name: "duplicate dimension", dims: []string{"service", "service"}, wantField: "group_by.dimensions"},
		{name: "empty dimension", dims: []string{"service", " "}, wantField: "group_by.dimensions"},
		{name: "too many dimensions", dims: []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}, wantField: "group_by.dimensions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGroupByConfig(tt.bucket, tt.dims, tt.frequency, tt.syncDelay)
			if tt.wantField != "" {
				fe, ok := AsFieldError(err)
				if !ok {
					t.Fatalf("NewGroupByConfig() error = %v, want FieldError", err)
				}
				if fe.Field != tt.wantField {
					t.Errorf("NewGroupByConfig() field = %q, want %q", fe.Field, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewGroupByConfig() unexpected error: %v", err)
			}
			if g.TimeBucket() != tt.wantBucket {
				t.Errorf("TimeBucket() = %q, want %q", g.TimeBucket(), tt.wantBucket)
			}
			if g.SyncDelay() != tt.wantDelay {
				t.Errorf("SyncDelay() = %q, want %q", g.SyncDelay(), tt.wantDelay)
			}
		})
	}
}

func TestGroupByConfig_DimensionsAreCopied(t *testing.T) {
	in := []string{"service", "endpoint"}
	g, err := NewGroupByConfig("1m", in, "", "")
	if err != nil {
		t.Fatal(err)
	}
	in[0] = "mutated"
	out := g.Dimensions()
	out[1] = "mutated"

	if !slices.Equal(g.Dimensions(), []string{"service", "endpoint"}) {
		t.Errorf("Dimensions() = %v, config was mutated", g.Dimensions())
	}
}

func TestNewComputeConfig(t *testing.T) {
	tests := []struct {
		name      string
		kind      ComputeType
		field     string
		pcts      []float64
		wantPcts  []float64
		wantField string
		wantErr   bool
	}{
		{name: "count ignores field", kind: ComputeCount, field: "bytes"},
		{name: "sum needs field", kind: ComputeSum, wantErr: true},
		{name: "avg", kind: ComputeAvg, field: "latency_ms", wantField: "latency_ms"},
		{name: "distribution defaults", kind: ComputeDistribution, field: "latency_ms", wantField: "latency_ms", wantPcts: DefaultPercentiles},
		{name: "distribution explicit", kind: ComputeDistribution, field: "latency_ms", pcts: []float64{50, 99}, wantField: "latency_ms", wantPcts: []float64{50, 99}},
		{name: "percentiles on sum", kind: ComputeSum, field: "bytes", pcts: []float64{50}, wantErr: true},
		{name: "percentile out of range", kind: ComputeDistribution, field: "x", pcts: []float64{120}, wantErr: true},
		{name: "unknown type", kind: "median", field: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewComputeConfig(tt.kind, tt.field, tt.pcts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewComputeConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if c.Field() != tt.wantField {
				t.Errorf("Field() = %q, want %q", c.Field(), tt.wantField)
			}
			if !slices.Equal(c.Percentiles(), tt.wantPcts) {
				t.Errorf("Percentiles() = %v, want %v", c.Percentiles(), tt.wantPcts)
			}
		})
	}
}

func TestNewBackendConfig(t *testing.T) {
	tests := []struct {
		name    string
		kind    BackendType
		days    int
		want    int
		wantErr bool
	}{
		{name: "default retention", want: DefaultRetentionDays},
		{name: "lower bound", kind: BackendElastic, days: 1, want: 1},
		{name: "upper bound", days: 730, want: 730},
		{name: "above bound", days: 731, wantErr: true},
		{name: "negative", days: -1, wantErr: true},
		{name: "unknown backend", kind: "influx", days: 30, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBackendConfig(tt.kind, tt.days)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewBackendConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && b.RetentionDays() != tt.want {
				t.Errorf("RetentionDays() = %d, want %d", b.RetentionDays(), tt.want)
			}
		})
	}
}

func TestNewSourceConfig(t *testing.T) {
	if _, err := NewSourceConfig(" ", "", nil); err == nil {
		t.Error("NewSourceConfig() accepted an empty pattern")
	}

	s, err := NewSourceConfig("logs-*", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.TimeField() != DefaultTimeField {
		t.Errorf("TimeField() = %q, want %q", s.TimeField(), DefaultTimeField)
	}
	if s.HasFilter() || s.FilterQuery() != nil {
		t.Error("expected no filter")
	}

	_, err = NewSourceConfig("logs-*", "@timestamp", map[string]interface{}{"sql": "select"})
	if fe, ok := AsFieldError(err); !ok || fe.Field != "source.filter_query" {
		t.Errorf("NewSourceConfig() error = %v, want filter_query field error", err)
	}
}

func TestRule_JSONRoundTrip(t *testing.T) {
	src, _ := NewSourceConfig("logs-app-*", "@timestamp", map[string]interface{}{
		"term": map[string]interface{}{"level": "error"},
	})
	gb, _ := NewGroupByConfig("5m", []string{"service", "endpoint"}, "", "")
	cc, _ := NewComputeConfig(ComputeDistribution, "latency_ms", nil)
	bc, _ := NewBackendConfig(BackendElastic, 90)

	in := &Rule{
		ID: 7, Name: "errors by service", Owner: "ops",
		Source: src, GroupBy: gb, Compute: cc, Backend: bc,
		Origin: &OriginConfig{DashboardID: "d1", PanelID: "p1"},
		Status: StatusActive,
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Rule
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}

	if in.BakedConfigChanged(&out) {
		t.Errorf("decoded rule differs in baked config: %s", data)
	}
	if out.Origin == nil || out.Origin.PanelID != "p1" {
		t.Errorf("Origin = %+v", out.Origin)
	}
}

func TestRule_UnmarshalRejectsInvalidBlock(t *testing.T) {
	data := []byte(`{"name":"x","compute":{"type":"sum"}}`)
	var r Rule
	if err := json.Unmarshal(data, &r); err == nil {
		t.Error("Unmarshal() accepted sum without a field")
	}
}

func TestRule_BakedConfigChanged(t *testing.T) {
	src, _ := NewSourceConfig("logs-*", "", nil)
	gb, _ := NewGroupByConfig("1m", []string{"service"}, "", "")
	cc, _ := NewComputeConfig(ComputeCount, "", nil)
	base := &Rule{Name: "a", Source: src, GroupBy: gb, Compute: cc, Backend: DefaultBackendConfig()}

	renamed := base.Clone()
	renamed.Name = "b"
	renamed.Owner = "someone"
	if base.BakedConfigChanged(renamed) {
		t.Error("name and owner changes must not count as baked config changes")
	}

	regrouped := base.Clone()
	regrouped.GroupBy, _ = NewGroupByConfig("1m", []string{"service", "host"}, "", "")
	if !base.BakedConfigChanged(regrouped) {
		t.Error("dimension change must count as a baked config change")
	}

	retained := base.Clone()
	retained.Backend, _ = NewBackendConfig(BackendElastic, 30)
	if !base.BakedConfigChanged(retained) {
		t.Error("retention change must count as a baked config change")
	}
}

func TestComputeConfig_OutputField(t *testing.T) {
	tests := []struct {
		kind  ComputeType
		field string
		want  string
	}{
		{ComputeCount, "", "event_count"},
		{ComputeSum, "bytes", "sum_bytes"},
		{ComputeAvg, "duration_ms", "avg_duration_ms"},
		{ComputeDistribution, "duration_ms", "pct_duration_ms"},
	}
	for _, tt := range tests {
		cc, err := NewComputeConfig(tt.kind, tt.field, nil)
		if err != nil {
			t.Fatalf("NewComputeConfig(%s) error = %v", tt.kind, err)
		}
		if got := cc.OutputField(); got != tt.want {
			t.Errorf("%s OutputField() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestRule_ValidateDimensionCollisions(t *testing.T) {
	src, _ := NewSourceConfig("logs-*", "@timestamp", nil)
	count, _ := NewComputeConfig(ComputeCount, "", nil)
	sum, _ := NewComputeConfig(ComputeSum, "bytes", nil)

	tests := []struct {
		name    string
		dims    []string
		compute ComputeConfig
		wantErr bool
	}{
		{name: "plain dimension", dims: []string{"service"}, compute: count},
		{name: "time field", dims: []string{"service", "@timestamp"}, compute: count, wantErr: true},
		{name: "count value field", dims: []string{"event_count"}, compute: count, wantErr: true},
		{name: "sum value field", dims: []string{"sum_bytes"}, compute: sum, wantErr: true},
		{name: "other compute's field name", dims: []string{"event_count"}, compute: sum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gb, err := NewGroupByConfig("1m", tt.dims, "", "")
			if err != nil {
				t.Fatal(err)
			}
			r := &Rule{Name: "r", Source: src, GroupBy: gb, Compute: tt.compute}

			err = r.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				fe, ok := AsFieldError(err)
				if !ok || fe.Field != "group_by.dimensions" {
					t.Errorf("error = %v, want a group_by.dimensions field error", err)
				}
			}
		})
	}
}
