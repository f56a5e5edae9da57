package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/logs2metrics/l2m/internal/domain/engine"
	apperrors "github.com/logs2metrics/l2m/internal/pkg/errors"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
	"github.com/logs2metrics/l2m/internal/testutil"
)

func TestEngineService_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "missing index", err: testutil.NotFound("index_stats"), wantStatus: http.StatusNotFound},
		{name: "engine failure", err: errors.New("connection refused"), wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := testutil.NewMockEngine()
			eng.Errors["index_stats"] = tt.err
			svc := NewEngineService(eng, logger.New(logger.Config{Level: "error", Format: "json"}))

			_, err := svc.GetIndexStats(context.Background(), "logs-app")

			if got := apperrors.AsAppError(err, "").StatusCode; got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
		})
	}
}

func TestEngineService_GetFieldCardinality(t *testing.T) {
	eng := testutil.NewMockEngine()
	eng.Cardinality["service"] = 12
	svc := NewEngineService(eng, logger.New(logger.Config{Level: "error", Format: "json"}))

	got, err := svc.GetFieldCardinality(context.Background(), "logs-*", "service")
	if err != nil {
		t.Fatalf("GetFieldCardinality() error = %v", err)
	}
	want := engine.FieldCardinality{Index: "logs-*", Field: "service", Cardinality: 12}
	if got != want {
		t.Errorf("GetFieldCardinality() = %+v, want %+v", got, want)
	}
}
