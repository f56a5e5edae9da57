package engine

import (
	"context"
	"time"
)

// Client is the analytics engine API used by the core
type Client interface {
	Ping(ctx context.Context) error

	ListIndices(ctx context.Context) ([]IndexInfo, error)
	GetMapping(ctx context.Context, index string) ([]FieldMapping, error)
	GetIndexStats(ctx context.Context, index string) (IndexStats, error)
	GetFieldCardinality(ctx context.Context, index, field string) (int64, error)
	Search(ctx context.Context, index string, body map[string]interface{}) ([]map[string]interface{}, error)

	IndexExists(ctx context.Context, index string) (bool, error)
	CreateIndex(ctx context.Context, index string, body map[string]interface{}) error
	DeleteIndex(ctx context.Context, index string) error

	// GetILMPolicy returns ErrNotFound when the policy is missing
	GetILMPolicy(ctx context.Context, name string) (map[string]interface{}, error)
	PutILMPolicy(ctx context.Context, name string, body map[string]interface{}) error

	PutTransform(ctx context.Context, id string, body map[string]interface{}) error
	StartTransform(ctx context.Context, id string) error
	StopTransform(ctx context.Context, id string, force, waitForCompletion bool, timeout time.Duration) error
	DeleteTransform(ctx context.Context, id string, force bool) error
	TransformExists(ctx context.Context, id string) (bool, error)
	// GetTransformStats returns nil stats and no error when the engine
	// answers with an empty transform list
	GetTransformStats(ctx context.Context, id string) (*TransformStats, error)
}

// Service is the read-only engine API exposed to operators
type Service interface {
	ListIndices(ctx context.Context) ([]IndexInfo, error)
	GetMapping(ctx context.Context, index string) ([]FieldMapping, error)
	GetIndexStats(ctx context.Context, index string) (IndexStats, error)
	GetFieldCardinality(ctx context.Context, index, field string) (FieldCardinality, error)
	Ping(ctx context.Context) error
}
