package askql

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// planSchemaJSON is the JSON schema every untrusted plan payload must
// satisfy before it is decoded. Enum membership is enforced here so a
// decoded plan never carries an out-of-range intent, operator, or
// aggregation.
const planSchemaJSON = `{
	"type": "object",
	"properties": {
		"intent": {"type": "string", "enum": ["select", "aggregation", "comparison"]},
		"tables": {"type": "array", "items": {"type": "string"}},
		"columns": {"type": "array", "items": {"type": "string"}},
		"filters": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"column": {"type": "string"},
					"operator": {"type": "string", "enum": ["=", ">", "<", ">=", "<=", "LIKE"]},
					"value": {}
				},
				"required": ["column", "operator"]
			}
		},
		"metrics": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"aggregation": {"type": "string", "enum": ["COUNT", "SUM", "AVG", "MIN", "MAX"]},
					"column": {"type": "string"}
				},
				"required": ["aggregation"]
			}
		},
		"group_by": {"type": "array", "items": {"type": "string"}},
		"order_by": {"type": "array", "items": {"type": "string"}},
		"limit": {"type": ["integer", "null"], "minimum": 0}
	}
}`

var (
	planSchemaOnce     sync.Once
	planSchemaResolved *jsonschema.Resolved
	planSchemaErr      error
)

func resolvedPlanSchema() (*jsonschema.Resolved, error) {
	planSchemaOnce.Do(func() {
		var schema jsonschema.Schema
		if err := json.Unmarshal([]byte(planSchemaJSON), &schema); err != nil {
			planSchemaErr = fmt.Errorf("failed to unmarshal plan schema: %w", err)
			return
		}
		planSchemaResolved, planSchemaErr = schema.Resolve(&jsonschema.ResolveOptions{})
	})
	return planSchemaResolved, planSchemaErr
}

// ValidatePlanJSON checks a raw plan payload against the plan JSON schema.
func ValidatePlanJSON(data []byte) error {
	resolved, err := resolvedPlanSchema()
	if err != nil {
		return err
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal plan payload: %w", err)
	}

	if err := resolved.Validate(payload); err != nil {
		return fmt.Errorf("plan validation failed: %w", err)
	}
	return nil
}
