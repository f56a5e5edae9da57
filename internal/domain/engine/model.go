package engine

import "time"

// IndexInfo is one row of the index listing
type IndexInfo struct {
	Name      string `json:"name"`
	DocCount  int64  `json:"doc_count"`
	SizeBytes int64  `json:"size_bytes"`
	Size      string `json:"size"`
}

// FieldMapping describes one mapped field
type FieldMapping struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Aggregatable bool   `json:"aggregatable"`
}

// IndexStats is the volume of an index or pattern
type IndexStats struct {
	Index          string `json:"index"`
	DocCount       int64  `json:"doc_count"`
	StoreSizeBytes int64  `json:"store_size_bytes"`
	StoreSize      string `json:"store_size"`
	QueryTotal     int64  `json:"query_total"`
	QueryTimeMs    int64  `json:"query_time_ms"`
}

// FieldCardinality is the approximate distinct count of a field
type FieldCardinality struct {
	Index       string `json:"index"`
	Field       string `json:"field"`
	Cardinality int64  `json:"cardinality"`
}

// TransformStats is the live state of a transform
type TransformStats struct {
	ID             string
	State          string
	Reason         string
	DocsProcessed  int64
	DocsIndexed    int64
	LastCheckpoint *time.Time
}

// FieldTypes flattens mappings into a name to type map
func FieldTypes(fields []FieldMapping) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Name] = f.Type
	}
	return out
}
