package mutation

import (
	"fmt"
	"slices"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/schema"

	"github.com/vektah/gqlparser/v2/ast"
)

// field operators
const (
	incrementOp = "increment"
	decrementOp = "decrement"
	multiplyOp  = "multiply"
	divideOp    = "divide"
	appendOp    = "append"
	removeOp    = "remove"
)

var (
	numberOps = []string{setOp, incrementOp, decrementOp, multiplyOp, divideOp}
	listOps   = []string{setOp, appendOp, removeOp}
	valueOps  = []string{setOp}
)

type fieldKind int

const (
	scalarField fieldKind = iota
	numberField
	listField
	objectField
)

func kindOf(t *ast.Type) fieldKind {
	switch {
	case t.Elem != nil:
		return listField
	case t.NamedType == "Int" || t.NamedType == "Float":
		return numberField
	case t.NamedType == schema.JSONScalar:
		return objectField
	}
	return scalarField
}

// operatorsFor returns the operators accepted by a field of the given type.
func operatorsFor(kind fieldKind) []string {
	switch kind {
	case numberField:
		return numberOps
	case listField:
		return listOps
	default:
		return valueOps
	}
}

// fieldOperator returns the operator and operand if v is an operator object
// for a field of the given kind.
func fieldOperator(kind fieldKind, v any) (string, any, bool) {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return "", nil, false
	}
	for k, operand := range m {
		if slices.Contains(operatorsFor(kind), k) {
			return k, operand, true
		}
	}
	return "", nil, false
}

// hasOperators returns true if any patch value is an operator object.
func hasOperators(c *schema.Collection, patch map[string]any) bool {
	for k, v := range patch {
		f, ok := c.Field(k)
		if !ok {
			continue
		}
		if _, _, ok := fieldOperator(kindOf(f.Type), v); ok {
			return true
		}
	}
	return false
}

// isEmbedded returns true if the field type is an embedded object.
func isEmbedded(s *schema.Schema, t *ast.Type) bool {
	if t.Elem != nil {
		return false
	}
	d, ok := s.AST().Types[t.NamedType]
	return ok && d.Kind == ast.Object
}

// applyPatch returns a copy of fields with the plain patch applied.
func applyPatch(s *schema.Schema, c *schema.Collection, fields, patch map[string]any) (map[string]any, error) {
	out := core.CloneMap(fields)
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		f, ok := c.Field(k)
		if !ok {
			return nil, &core.ValidationError{Collection: c.Name, Field: k, Message: "unknown field"}
		}
		v := patch[k]
		if v == nil {
			delete(out, k)
			continue
		}
		kind := kindOf(f.Type)
		if isEmbedded(s, f.Type) {
			kind = objectField
		}
		if op, operand, ok := fieldOperator(kind, v); ok {
			next, err := applyOperator(c.Name, k, f.Type, kind, op, out[k], operand)
			if err != nil {
				return nil, err
			}
			if next == nil {
				delete(out, k)
			} else {
				out[k] = next
			}
			continue
		}
		if kind == objectField {
			if m, ok := v.(map[string]any); ok {
				if cur, ok := out[k].(map[string]any); ok {
					out[k] = mergeMaps(cur, m)
					continue
				}
			}
		}
		out[k] = core.CloneValue(v)
	}
	return out, nil
}

func applyOperator(collection, field string, t *ast.Type, kind fieldKind, op string, current, operand any) (any, error) {
	fail := func(format string, args ...any) error {
		return &core.ValidationError{Collection: collection, Field: field, Message: fmt.Sprintf(format, args...)}
	}
	if op == setOp {
		return core.CloneValue(operand), nil
	}
	switch kind {
	case numberField:
		if t.NamedType == "Int" {
			return applyIntOperator(op, current, operand, fail)
		}
		return applyFloatOperator(op, current, operand, fail)
	case listField:
		list, err := asList(current)
		if err != nil {
			return nil, fail("current value is not a list")
		}
		items, err := asList(operand)
		if err != nil {
			return nil, fail("%s expects a list", op)
		}
		switch op {
		case appendOp:
			out := core.CloneValue(list).([]any)
			return append(out, core.CloneValue(items).([]any)...), nil
		case removeOp:
			out := make([]any, 0, len(list))
			for _, e := range list {
				if !slices.ContainsFunc(items, func(r any) bool { return core.Equal(e, r) }) {
					out = append(out, core.CloneValue(e))
				}
			}
			return out, nil
		}
	}
	return nil, fail("unsupported operator %q", op)
}

func applyIntOperator(op string, current, operand any, fail func(string, ...any) error) (any, error) {
	var cur int64
	if current != nil {
		i, ok := core.Int64(current)
		if !ok {
			return nil, fail("current value is not an Int")
		}
		cur = i
	}
	n, ok := core.Int64(operand)
	if !ok {
		return nil, fail("%s expects an Int, got %T", op, operand)
	}
	switch op {
	case incrementOp:
		return cur + n, nil
	case decrementOp:
		return cur - n, nil
	case multiplyOp:
		return cur * n, nil
	case divideOp:
		if n == 0 {
			return nil, fail("division by zero")
		}
		return cur / n, nil
	}
	return nil, fail("unsupported operator %q", op)
}

func applyFloatOperator(op string, current, operand any, fail func(string, ...any) error) (any, error) {
	var cur float64
	if current != nil {
		f, ok := core.Float64(current)
		if !ok {
			return nil, fail("current value is not a Float")
		}
		cur = f
	}
	n, ok := core.Float64(operand)
	if !ok {
		return nil, fail("%s expects a Float, got %T", op, operand)
	}
	switch op {
	case incrementOp:
		return cur + n, nil
	case decrementOp:
		return cur - n, nil
	case multiplyOp:
		return cur * n, nil
	case divideOp:
		if n == 0 {
			return nil, fail("division by zero")
		}
		return cur / n, nil
	}
	return nil, fail("unsupported operator %q", op)
}

// mergeMaps deep merges src into a copy of dst. Nil values remove keys.
func mergeMaps(dst, src map[string]any) map[string]any {
	out := core.CloneMap(dst)
	for k, v := range src {
		if v == nil {
			delete(out, k)
			continue
		}
		if sm, ok := v.(map[string]any); ok {
			if dm, ok := out[k].(map[string]any); ok {
				out[k] = mergeMaps(dm, sm)
				continue
			}
		}
		out[k] = core.CloneValue(v)
	}
	return out
}
