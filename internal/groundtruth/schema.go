package groundtruth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrInvalidExport means the document does not have the shape of a flow
// export.
var ErrInvalidExport = errors.New("invalid ground-truth export")

const exportSchemaURL = "trustgraph://ground-truth-export.json"

const exportSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["flows"],
  "properties": {
    "flows": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["root"],
        "properties": {
          "id": {"type": "string"},
          "name": {"type": "string"},
          "root": {
            "type": "object",
            "properties": {
              "id": {"type": "string"},
              "function": {"type": "string"},
              "file": {"type": "string"},
              "class": {"type": "string"}
            }
          },
          "edges": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["caller", "callee"],
              "properties": {
                "caller": {"type": "string", "minLength": 1},
                "callee": {"type": "string", "minLength": 1},
                "caller_file": {"type": "string"},
                "callee_file": {"type": "string"},
                "caller_class": {"type": "string"},
                "callee_class": {"type": "string"},
                "order": {"type": "integer", "minimum": 0}
              }
            }
          }
        }
      }
    }
  }
}`

var exportSchema = jsonschema.MustCompileString(exportSchemaURL, exportSchemaJSON)

// validateShape checks a decoded export against the document schema. The
// YAML tree is re-encoded as JSON so the validator sees JSON types.
func validateShape(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse ground truth: %w", err)
	}
	if raw == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidExport)
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}
	dec := json.NewDecoder(bytes.NewReader(encoded))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}
	if err := exportSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExport, err)
	}
	return nil
}
