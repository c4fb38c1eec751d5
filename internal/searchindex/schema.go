package searchindex

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const schemaURL = "https://docindex.local/schema/search-index.json"

// SchemaJSON describes the {"docs": [...]} payload of a search index
const SchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["docs"],
  "additionalProperties": false,
  "properties": {
    "docs": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["location", "page", "title", "text", "category"],
        "additionalProperties": false,
        "properties": {
          "location": {"type": "string"},
          "page": {"type": "string", "minLength": 1},
          "title": {"type": "string", "minLength": 1},
          "text": {"type": "string"},
          "category": {"type": "string", "minLength": 1}
        }
      }
    }
  }
}`

var (
	compiledSchema *jsonschema.Schema
	compileOnce    sync.Once
	compileErr     error
)

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(SchemaJSON))
		if err != nil {
			compileErr = fmt.Errorf("failed to parse search index schema: %w", err)
			return
		}

		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, doc); err != nil {
			compileErr = fmt.Errorf("failed to add search index schema: %w", err)
			return
		}

		compiledSchema, compileErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, compileErr
}

// ValidateSchema validates the raw search index against SchemaJSON.
// Bare arrays are checked as if wrapped in {"docs": [...]}.
func ValidateSchema(data []byte) ([]Issue, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}

	payload, offset, _ := unwrap(data)
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return nil, &ParseError{Offset: int64(offset), Err: err}
	}
	if arr, ok := instance.([]any); ok {
		instance = map[string]any{DocsKey: arr}
	}

	err = schema.Validate(instance)
	if err == nil {
		return nil, nil
	}

	var validationErr *jsonschema.ValidationError
	if !errors.As(err, &validationErr) {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	return schemaIssues(validationErr), nil
}

// schemaIssues flattens the leaves of a validation error tree into issues
func schemaIssues(validationErr *jsonschema.ValidationError) []Issue {
	if len(validationErr.Causes) > 0 {
		var issues []Issue
		for _, cause := range validationErr.Causes {
			issues = append(issues, schemaIssues(cause)...)
		}
		return issues
	}

	issue := Issue{
		Index:    -1,
		Code:     CodeSchemaViolation,
		Severity: SeverityError,
		Message:  lastLine(validationErr.Error()),
	}

	// InstanceLocation looks like ["docs", "12", "page"]
	loc := validationErr.InstanceLocation
	if len(loc) >= 2 && loc[0] == DocsKey {
		if n, err := strconv.Atoi(loc[1]); err == nil {
			issue.Index = n
		}
		if len(loc) >= 3 {
			issue.Field = loc[2]
		}
	}
	if issue.Index < 0 && len(loc) > 0 {
		issue.Message = "/" + strings.Join(loc, "/") + ": " + issue.Message
	}

	return []Issue{issue}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "- "))
}
