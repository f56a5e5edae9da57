package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/logs2metrics/l2m/internal/api/dto"
	"github.com/logs2metrics/l2m/internal/domain/engine"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/pkg/validator"
	"github.com/logs2metrics/l2m/internal/services"
	"github.com/logs2metrics/l2m/internal/testutil"
)

func TestAnalysisHandler_AnalyzePanels(t *testing.T) {
	mock := testutil.NewMockEngine()
	mock.Mappings["logs-*"] = []engine.FieldMapping{{Name: "service", Type: "keyword", Aggregatable: true}}
	log := logger.New(logger.Config{Level: "error", Format: "json"})
	svc := services.NewAnalysisService(services.NewSuitabilityScorer(), mock, log)
	h := NewAnalysisHandler(svc, log, validator.New())

	tests := []struct {
		name           string
		body           string
		expectedStatus int
		expectedCount  int
	}{
		{
			name: "two panels",
			body: `{"panels":[
				{"panel_id":"p1","title":"errors per service","index_pattern":"logs-*","date_histogram_interval":"1m",
				 "agg_types":["date_histogram","terms","count"],"metrics":[{"type":"count"}],"group_by_fields":["service"]},
				{"panel_id":"p2","title":"raw logs","index_pattern":"logs-*","has_raw_docs":true}
			],"time_from":"now-7d","refresh_interval_ms":30000}`,
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{name: "no panels", body: `{"panels":[]}`, expectedStatus: http.StatusBadRequest},
		{name: "negative refresh", body: `{"panels":[{"panel_id":"p"}],"refresh_interval_ms":-1}`, expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/panels", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()

			h.AnalyzePanels(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if rr.Code != http.StatusOK {
				return
			}
			var resp dto.AnalyzePanelsResponse
			if err := json.Unmarshal(decodeEnvelope(t, rr).Data, &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Count != tt.expectedCount || len(resp.Results) != tt.expectedCount {
				t.Fatalf("count = %d, want %d", resp.Count, tt.expectedCount)
			}
			if resp.Results[0].Score.Total <= resp.Results[1].Score.Total {
				t.Errorf("aggregated panel should outscore raw docs: %d vs %d",
					resp.Results[0].Score.Total, resp.Results[1].Score.Total)
			}
		})
	}
}
