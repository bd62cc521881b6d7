package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const summarySchema = `{
  "type": "object",
  "required": ["summary", "entities", "category"],
  "properties": {
    "summary": {"type": "string", "minLength": 1},
    "entities": {"type": "array", "items": {"type": "string"}},
    "category": {"type": "string", "minLength": 1}
  }
}`

const scoreSchema = `{
  "type": "object",
  "required": ["score", "reasoning", "why_it_matters"],
  "properties": {
    "score": {"type": "integer", "minimum": 0, "maximum": 100},
    "reasoning": {"type": "string"},
    "why_it_matters": {"type": "string"}
  }
}`

const verdictSchema = `{
  "type": "object",
  "required": ["quality_score", "feedback"],
  "properties": {
    "quality_score": {"type": "integer", "minimum": 1, "maximum": 10},
    "feedback": {"type": "string"}
  }
}`

// SchemaValidator checks model output against a compiled JSON schema.
type SchemaValidator struct {
	schema *gojsonschema.Schema
}

func NewSchemaValidator(schema string) (*SchemaValidator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("invalid schema definition: %w", err)
	}
	return &SchemaValidator{schema: compiled}, nil
}

// Decode extracts the JSON object from raw model output, validates it and
// unmarshals it into out.
func (v *SchemaValidator) Decode(raw string, out any) error {
	doc, err := extractJSON(raw)
	if err != nil {
		return err
	}

	result, err := v.schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("validation execution failed: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("schema validation failed: %s", strings.Join(errs, "; "))
	}

	if err := json.Unmarshal([]byte(doc), out); err != nil {
		return fmt.Errorf("failed to decode output: %w", err)
	}
	return nil
}

// extractJSON trims markdown fences and surrounding prose from a model reply.
func extractJSON(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON object in output")
	}
	return s[start : end+1], nil
}
