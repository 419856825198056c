package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nasdf/capydoc/core"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// JSONSchemaValidator validates collection fields against JSON Schema documents.
type JSONSchemaValidator struct {
	schemas map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator compiles one JSON Schema document per collection.
func NewJSONSchemaValidator(documents map[string]string) (*JSONSchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	names := make([]string, 0, len(documents))
	for name := range documents {
		names = append(names, name)
	}
	slices.Sort(names)

	v := &JSONSchemaValidator{schemas: make(map[string]*jsonschema.Schema, len(documents))}
	for _, name := range names {
		url := name + ".schema.json"
		if err := compiler.AddResource(url, strings.NewReader(documents[name])); err != nil {
			return nil, fmt.Errorf("failed to add schema for %s: %w", name, err)
		}
		compiled, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", name, err)
		}
		v.schemas[name] = compiled
	}
	return v, nil
}

// Validate implements Validator.
//
// Integral numbers are normalized to int64 and other numbers to float64.
func (v *JSONSchemaValidator) Validate(collection string, fields map[string]any) (map[string]any, error) {
	compiled, ok := v.schemas[collection]
	if !ok {
		return nil, &core.NotFoundError{Collection: collection}
	}
	for k := range fields {
		if core.IsSystemField(k) {
			return nil, &core.ValidationError{Collection: collection, Field: k, Message: "field is managed by the store"}
		}
	}
	// Convert to JSON and back to ensure consistent types
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, &core.ValidationError{Collection: collection, Message: err.Error()}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &core.ValidationError{Collection: collection, Message: err.Error()}
	}
	if err := compiled.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return nil, schemaError(collection, verr)
		}
		return nil, &core.ValidationError{Collection: collection, Message: err.Error()}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, &core.ValidationError{Collection: collection, Message: err.Error()}
	}
	return normalizeNumbers(out).(map[string]any), nil
}

// schemaError returns the first leaf cause of a validation error.
func schemaError(collection string, err *jsonschema.ValidationError) error {
	for len(err.Causes) > 0 {
		err = err.Causes[0]
	}
	field := strings.ReplaceAll(strings.TrimPrefix(err.InstanceLocation, "/"), "/", ".")
	return &core.ValidationError{Collection: collection, Field: field, Message: err.Message}
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeNumbers(e)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}
