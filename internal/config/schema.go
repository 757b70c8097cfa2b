package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// configSchema is the JSON Schema for the on-disk YAML config shape. It
// catches operator typos (a misspelled key, a string where a number
// belongs) that mapstructure alone would silently zero out rather than
// reject.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "scheduler": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "workers": {"type": "integer", "minimum": 0},
        "buffer_size": {"type": "string"},
        "session_queue_depth": {"type": "integer", "minimum": 0}
      }
    },
    "cache": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "backend": {"type": "string", "enum": ["memory", "disk"]},
        "max_size": {"type": "string"},
        "ttl": {"type": "string"},
        "enabled": {"type": "boolean"}
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"type": "string", "enum": ["debug", "info", "warn", "error"]},
        "format": {"type": "string", "enum": ["json", "text"]}
      }
    },
    "server": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "host": {"type": "string"},
        "port": {"type": "integer", "minimum": 0, "maximum": 65535},
        "pprof_port": {"type": "integer", "minimum": 0, "maximum": 65535},
        "metrics_url": {"type": "string"}
      }
    }
  }
}`

// ErrSchemaValidation wraps every gojsonschema validation failure.
var ErrSchemaValidation = errors.New("config does not match schema")

// ValidateSchema parses path as YAML, converts it to the plain
// map[string]any gojsonschema understands, and validates it against
// configSchema. An empty or missing file passes validation; LoadConfig
// uses defaults when it is given no config path.
func ValidateSchema(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("read config for schema validation: %w", err)
	}

	var doc any

	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	doc = normalizeYAML(doc)
	if doc == nil {
		return nil
	}

	schemaLoader := gojsonschema.NewStringLoader(configSchema)
	docLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("run schema validation: %w", err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, verr.String())
	}

	return fmt.Errorf("%w: %s", ErrSchemaValidation, strings.Join(msgs, "; "))
}

// normalizeYAML recursively converts map[string]interface{} produced by
// gopkg.in/yaml.v3 (which may nest map[string]any already, but guards
// against map[any]any from older parse paths) into the string-keyed maps
// gojsonschema.NewGoLoader requires.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = normalizeYAML(child)
		}

		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[fmt.Sprint(k)] = normalizeYAML(child)
		}

		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalizeYAML(child)
		}

		return out
	default:
		return v
	}
}
