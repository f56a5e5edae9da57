package services

import (
	"context"

	"github.com/logs2metrics/l2m/internal/domain/engine"
	"github.com/logs2metrics/l2m/internal/pkg/errors"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
)

// EngineService implements engine.Service on top of the engine client
type EngineService struct {
	client engine.Client
	logger *logger.Logger
}

// NewEngineService creates the read-only engine service
func NewEngineService(client engine.Client, log *logger.Logger) *EngineService {
	return &EngineService{client: client, logger: log}
}

var _ engine.Service = (*EngineService)(nil)

// ListIndices lists the non-system indices
func (s *EngineService) ListIndices(ctx context.Context) ([]engine.IndexInfo, error) {
	out, err := s.client.ListIndices(ctx)
	if err != nil {
		return nil, s.wrap(err, "Index", "Failed to list indices")
	}
	return out, nil
}

// GetMapping returns the fields of an index or pattern
func (s *EngineService) GetMapping(ctx context.Context, index string) ([]engine.FieldMapping, error) {
	out, err := s.client.GetMapping(ctx, index)
	if err != nil {
		return nil, s.wrap(err, "Index", "Failed to read mapping")
	}
	return out, nil
}

// GetIndexStats returns volume and query statistics
func (s *EngineService) GetIndexStats(ctx context.Context, index string) (engine.IndexStats, error) {
	out, err := s.client.GetIndexStats(ctx, index)
	if err != nil {
		return engine.IndexStats{}, s.wrap(err, "Index", "Failed to read index stats")
	}
	out.Index = index
	return out, nil
}

// GetFieldCardinality returns the approximate distinct value count of a field
func (s *EngineService) GetFieldCardinality(ctx context.Context, index, field string) (engine.FieldCardinality, error) {
	n, err := s.client.GetFieldCardinality(ctx, index, field)
	if err != nil {
		return engine.FieldCardinality{}, s.wrap(err, "Index", "Failed to compute cardinality")
	}
	return engine.FieldCardinality{Index: index, Field: field, Cardinality: n}, nil
}

// Ping checks engine connectivity
func (s *EngineService) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return errors.EngineError("Analytics engine unreachable", err)
	}
	return nil
}

func (s *EngineService) wrap(err error, resource, msg string) error {
	if engine.IsNotFound(err) {
		return errors.NotFound(resource)
	}
	s.logger.ErrorWithErr(err, msg)
	return errors.EngineError(msg, err)
}
