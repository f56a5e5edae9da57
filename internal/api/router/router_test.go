package router

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/logs2metrics/l2m/internal/api/handlers"
	"github.com/logs2metrics/l2m/internal/api/middleware"
	"github.com/logs2metrics/l2m/internal/auth"
	"github.com/logs2metrics/l2m/internal/config"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/pkg/validator"
	"github.com/logs2metrics/l2m/internal/services"
	"github.com/logs2metrics/l2m/internal/testutil"
)

func newTestRouter(t *testing.T, secret string) http.Handler {
	t.Helper()
	log := logger.Nop()
	repo := testutil.NewMockRuleRepository()
	be := testutil.NewMockBackend()
	eval := &testutil.MockEvaluator{}
	eng := services.NewEngineService(testutil.NewMockEngine(), log)
	val := validator.New()

	cfg := &config.Config{}
	cfg.Server.AllowedOrigins = []string{"http://localhost:5601"}
	cfg.Auth.JWTSecret = secret

	return New(cfg, log, middleware.NewRateLimiter(1000, 1000), &Handlers{
		Health:   handlers.NewHealthHandler(nil, eng, nil, log),
		Rule:     handlers.NewRuleHandler(services.NewRuleService(repo, be, eval, nil, log), be, eval, log, val),
		Analysis: handlers.NewAnalysisHandler(services.NewAnalysisService(services.NewSuitabilityScorer(), testutil.NewMockEngine(), log), log, val),
		Engine:   handlers.NewEngineHandler(eng, log),
	})
}

func TestRouter_Routes(t *testing.T) {
	r := newTestRouter(t, "")

	tests := []struct {
		method, path   string
		expectedStatus int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/api/v1/rules", http.StatusOK},
		{http.MethodGet, "/api/v1/rules/1", http.StatusNotFound},
		{http.MethodGet, "/api/v1/health/monitor", http.StatusOK},
		{http.MethodGet, "/api/v1/engine/indices", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", http.StatusNotFound},
		{http.MethodPatch, "/api/v1/rules/1", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
			if rr.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("missing request ID header")
			}
		})
	}
}

func TestRouter_AuthOnlyGuardsAPI(t *testing.T) {
	r := newTestRouter(t, "s3cret")

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated API: status = %d, want 401", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("health: status = %d, want 200", rr.Code)
	}

	tok, err := auth.MintToken("ops", "", "s3cret", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("authenticated API: status = %d, want 200", rr.Code)
	}
}

func TestRouter_GzipResponses(t *testing.T) {
	r := newTestRouter(t, "")

	// enough panels to cross the compression threshold
	var body bytes.Buffer
	body.WriteString(`{"panels":[`)
	for i := 0; i < 20; i++ {
		if i > 0 {
			body.WriteString(",")
		}
		body.WriteString(`{"panel_id":"p","title":"` + strings.Repeat("x", 40) + `"}`)
	}
	body.WriteString(`]}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/panels", &body)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("Content-Encoding = %q, want gzip", rr.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(plain, []byte(`"success":true`)) {
		t.Errorf("unexpected body: %.100s", plain)
	}
}
