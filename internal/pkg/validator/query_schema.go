package validator

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// filterQuerySchema describes the shape of a source filter: a single
// engine query clause keyed by its query type.
const filterQuerySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "minProperties": 1,
  "maxProperties": 1,
  "propertyNames": {
    "enum": [
      "bool", "match", "match_all", "match_none", "match_phrase", "multi_match",
      "query_string", "simple_query_string", "term", "terms", "range",
      "exists", "prefix", "wildcard", "regexp", "ids", "nested"
    ]
  },
  "additionalProperties": {"type": "object"}
}`

var filterQueryLoader = gojsonschema.NewStringLoader(filterQuerySchema)

// ValidateFilterQuery checks a source filter against the query clause schema
func ValidateFilterQuery(query map[string]interface{}) error {
	if query == nil {
		return nil
	}

	result, err := gojsonschema.Validate(filterQueryLoader, gojsonschema.NewGoLoader(query))
	if err != nil {
		return fmt.Errorf("filter query is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("filter query rejected: %s", strings.Join(msgs, "; "))
}
