package recovery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/docextract/constants"
)

var compiled sync.Map // constants.DocumentType -> *jsonschema.Schema

// JSONSchema builds the JSON Schema document for a fixed document type:
// every field required, scalars as string/number/bool/null, lists as arrays.
func JSONSchema(t constants.DocumentType) map[string]any {
	fields := constants.SchemaFor(t)
	if fields == nil {
		return nil
	}
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		if f.List {
			props[f.Name] = map[string]any{"type": "array"}
			continue
		}
		props[f.Name] = map[string]any{"type": []string{"string", "number", "boolean", "null"}}
	}
	return map[string]any{
		"$schema":    "https://json-schema.org/draft/2020-12/schema",
		"type":       "object",
		"properties": props,
		"required":   fields.Names(),
	}
}

func schemaFor(t constants.DocumentType) (*jsonschema.Schema, error) {
	if s, ok := compiled.Load(t); ok {
		return s.(*jsonschema.Schema), nil
	}
	b, err := json.Marshal(JSONSchema(t))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	url := string(t) + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	compiled.Store(t, s)
	return s, nil
}

// validate checks data against the fixed schema of t. Types without a fixed
// schema always pass.
func validate(t constants.DocumentType, data map[string]any) error {
	if constants.SchemaFor(t) == nil {
		return nil
	}
	s, err := schemaFor(t)
	if err != nil {
		return err
	}
	// round trip so nested values have the shapes the validator expects
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// coerceList turns whatever the model put in a list field into a list.
func coerceList(v any) []any {
	switch x := v.(type) {
	case nil:
		return []any{}
	case []any:
		return x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return []any{}
		}
		if strings.HasPrefix(s, "[") {
			var arr []any
			if err := json.Unmarshal([]byte(s), &arr); err == nil {
				return arr
			}
		}
		return []any{x}
	default:
		return []any{x}
	}
}
