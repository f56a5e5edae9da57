package client

import (
	"context"
	"net/url"
	"strings"
)

// EngineService inspects the analytics engine through the API
type EngineService struct {
	client *Client
}

// ListIndices lists the user indices
func (s *EngineService) ListIndices(ctx context.Context) ([]IndexInfo, error) {
	var indices []IndexInfo
	if err := s.client.doRequest(ctx, "GET", "/api/v1/engine/indices", nil, &indices); err != nil {
		return nil, err
	}
	return indices, nil
}

// GetMapping returns the mapped fields of an index or pattern
func (s *EngineService) GetMapping(ctx context.Context, index string) (*IndexMapping, error) {
	var m IndexMapping
	if err := s.client.doRequest(ctx, "GET", indexPath(index)+"/mapping", nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetStats returns document count and size of an index or pattern
func (s *EngineService) GetStats(ctx context.Context, index string) (*IndexStats, error) {
	var st IndexStats
	if err := s.client.doRequest(ctx, "GET", indexPath(index)+"/stats", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetCardinality returns the approximate distinct count of a field
func (s *EngineService) GetCardinality(ctx context.Context, index, field string) (*FieldCardinality, error) {
	var fc FieldCardinality
	path := indexPath(index) + "/cardinality/" + escapeSegment(field)
	if err := s.client.doRequest(ctx, "GET", path, nil, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

func indexPath(index string) string {
	return "/api/v1/engine/indices/" + escapeSegment(index)
}

// escapeSegment escapes a path segment but keeps index wildcards readable,
// since the server routes on the raw path
func escapeSegment(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), "%2A", "*")
}
