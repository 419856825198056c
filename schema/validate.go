package schema

import (
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/nasdf/capydoc/core"

	"github.com/vektah/gqlparser/v2/ast"
)

// Validator checks a candidate set of stored fields against a collection shape.
//
// On success it returns the normalized fields. Implementations must be pure
// and safe for concurrent use.
type Validator interface {
	Validate(collection string, fields map[string]any) (map[string]any, error)
}

// Validate implements Validator using the declared GraphQL types.
func (s *Schema) Validate(collection string, fields map[string]any) (map[string]any, error) {
	c, ok := s.collections[collection]
	if !ok {
		return nil, &core.NotFoundError{Collection: collection}
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if core.IsSystemField(k) {
			return nil, &core.ValidationError{Collection: collection, Field: k, Message: "field is managed by the store"}
		}
		if _, ok := c.relations[k]; ok {
			return nil, &core.ValidationError{Collection: collection, Field: k, Message: "relationship fields are not stored"}
		}
		if _, ok := c.fields[k]; !ok {
			return nil, &core.ValidationError{Collection: collection, Field: k, Message: "unknown field"}
		}
	}
	out := make(map[string]any, len(c.fieldNames))
	for _, name := range c.fieldNames {
		v, err := s.normalize(collection, name, c.fields[name].Type, fields[name])
		if err != nil {
			return nil, err
		}
		if v != nil {
			out[name] = v
		}
	}
	return out, nil
}

func (s *Schema) normalize(collection, path string, t *ast.Type, v any) (any, error) {
	fail := func(format string, args ...any) error {
		return &core.ValidationError{Collection: collection, Field: path, Message: fmt.Sprintf(format, args...)}
	}
	if v == nil {
		if t.NonNull {
			return nil, fail("value is required")
		}
		return nil, nil
	}
	if t.Elem != nil {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fail("expected list, got %T", v)
		}
		out := make([]any, rv.Len())
		for i := range out {
			e, err := s.normalize(collection, fmt.Sprintf("%s[%d]", path, i), t.Elem, rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	}
	switch t.NamedType {
	case "Int":
		i, ok := core.Int64(v)
		if !ok {
			return nil, fail("expected Int, got %T", v)
		}
		return i, nil
	case "Float":
		f, ok := core.Float64(v)
		if !ok {
			return nil, fail("expected Float, got %T", v)
		}
		return f, nil
	case "String", "ID":
		str, ok := v.(string)
		if !ok {
			return nil, fail("expected %s, got %T", t.NamedType, v)
		}
		return str, nil
	case "Boolean":
		b, ok := v.(bool)
		if !ok {
			return nil, fail("expected Boolean, got %T", v)
		}
		return b, nil
	case DateTimeScalar:
		switch tv := v.(type) {
		case time.Time:
			return tv.UTC().Format(time.RFC3339Nano), nil
		case string:
			if _, err := time.Parse(time.RFC3339Nano, tv); err != nil {
				return nil, fail("expected RFC 3339 DateTime: %v", err)
			}
			return tv, nil
		default:
			return nil, fail("expected DateTime, got %T", v)
		}
	case JSONScalar:
		return core.CloneValue(v), nil
	}
	d, ok := s.ast.Types[t.NamedType]
	if !ok {
		return nil, fail("unknown type %s", t.NamedType)
	}
	switch d.Kind {
	case ast.Enum:
		str, ok := v.(string)
		if !ok || d.EnumValues.ForName(str) == nil {
			return nil, fail("expected one of enum %s, got %v", d.Name, v)
		}
		return str, nil
	case ast.Object:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fail("expected object %s, got %T", d.Name, v)
		}
		for k := range m {
			if d.Fields.ForName(k) == nil {
				return nil, &core.ValidationError{Collection: collection, Field: path + "." + k, Message: "unknown field"}
			}
		}
		out := make(map[string]any, len(d.Fields))
		for _, f := range d.Fields {
			e, err := s.normalize(collection, path+"."+f.Name, f.Type, m[f.Name])
			if err != nil {
				return nil, err
			}
			if e != nil {
				out[f.Name] = e
			}
		}
		return out, nil
	default:
		return nil, fail("unsupported type %s", d.Name)
	}
}
