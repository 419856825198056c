package link

import (
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/nasdf/capydoc/core"

	"github.com/ipld/go-ipld-prime/datamodel"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// Encode returns the IPLD node representation of the entity.
//
// System fields are stored next to the declared fields and timestamps are
// encoded as RFC 3339 strings.
func Encode(e *core.Entity) (datamodel.Node, error) {
	nb := basicnode.Prototype.Map.NewBuilder()
	if err := assignValue(entityValue(e), nb); err != nil {
		return nil, err
	}
	return nb.Build(), nil
}

func entityValue(e *core.Entity) map[string]any {
	out := core.CloneMap(e.Fields)
	out[core.IDFieldName] = e.ID
	out[core.CreatedAtFieldName] = e.CreatedAt.UTC().Format(time.RFC3339Nano)
	out[core.UpdatedAtFieldName] = e.UpdatedAt.UTC().Format(time.RFC3339Nano)
	return out
}

// Decode returns the entity represented by the given node.
func Decode(n datamodel.Node) (*core.Entity, error) {
	fields, err := MapValue(n)
	if err != nil {
		return nil, err
	}
	id, ok := fields[core.IDFieldName].(string)
	if !ok {
		return nil, fmt.Errorf("entity node is missing an id")
	}
	createdAt, err := timeValue(fields, core.CreatedAtFieldName)
	if err != nil {
		return nil, err
	}
	updatedAt, err := timeValue(fields, core.UpdatedAtFieldName)
	if err != nil {
		return nil, err
	}
	delete(fields, core.IDFieldName)
	delete(fields, core.CreatedAtFieldName)
	delete(fields, core.UpdatedAtFieldName)
	return &core.Entity{ID: id, Fields: fields, CreatedAt: createdAt, UpdatedAt: updatedAt}, nil
}

func timeValue(fields map[string]any, name string) (time.Time, error) {
	s, ok := fields[name].(string)
	if !ok {
		return time.Time{}, fmt.Errorf("entity node is missing %s", name)
	}
	return time.Parse(time.RFC3339Nano, s)
}

func assignValue(value any, na datamodel.NodeAssembler) error {
	switch v := value.(type) {
	case nil:
		return na.AssignNull()
	case bool:
		return na.AssignBool(v)
	case string:
		return na.AssignString(v)
	case []byte:
		return na.AssignBytes(v)
	case time.Time:
		return na.AssignString(v.UTC().Format(time.RFC3339Nano))
	case map[string]any:
		return assignMapValue(v, na)
	case []any:
		return assignListValue(v, na)
	}
	if i, ok := core.Int64(value); ok && !isFloat(value) {
		return na.AssignInt(i)
	}
	if f, ok := core.Float64(value); ok {
		return na.AssignFloat(f)
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice {
		list := make([]any, rv.Len())
		for i := range list {
			list[i] = rv.Index(i).Interface()
		}
		return assignListValue(list, na)
	}
	return fmt.Errorf("cannot encode value of type %T", value)
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	default:
		return false
	}
}

func assignMapValue(value map[string]any, na datamodel.NodeAssembler) error {
	ma, err := na.BeginMap(int64(len(value)))
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(value))
	for k := range value {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		ea, err := ma.AssembleEntry(k)
		if err != nil {
			return err
		}
		if err := assignValue(value[k], ea); err != nil {
			return err
		}
	}
	return ma.Finish()
}

func assignListValue(value []any, na datamodel.NodeAssembler) error {
	la, err := na.BeginList(int64(len(value)))
	if err != nil {
		return err
	}
	for _, v := range value {
		if err := assignValue(v, la.AssembleValue()); err != nil {
			return err
		}
	}
	return la.Finish()
}

// Value returns the go value for the given node.
func Value(n datamodel.Node) (any, error) {
	switch n.Kind() {
	case datamodel.Kind_Bool:
		return n.AsBool()
	case datamodel.Kind_Bytes:
		return n.AsBytes()
	case datamodel.Kind_Float:
		return n.AsFloat()
	case datamodel.Kind_Int:
		return n.AsInt()
	case datamodel.Kind_String:
		return n.AsString()
	case datamodel.Kind_List:
		return ListValue(n)
	case datamodel.Kind_Map:
		return MapValue(n)
	case datamodel.Kind_Link:
		return n.AsLink()
	case datamodel.Kind_Null:
		return nil, nil
	default:
		return nil, fmt.Errorf("cannot get value from %s", n.Kind().String())
	}
}

// MapValue returns a go map containing the values in the given node.
func MapValue(n datamodel.Node) (map[string]any, error) {
	if n.Kind() != datamodel.Kind_Map {
		return nil, fmt.Errorf("expected map node, got %s", n.Kind().String())
	}
	out := make(map[string]any, n.Length())
	for iter := n.MapIterator(); !iter.Done(); {
		k, v, err := iter.Next()
		if err != nil {
			return nil, err
		}
		key, err := k.AsString()
		if err != nil {
			return nil, err
		}
		val, err := Value(v)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	return out, nil
}

// ListValue returns a go slice containing the values in the given node.
func ListValue(n datamodel.Node) ([]any, error) {
	out := make([]any, 0, n.Length())
	for iter := n.ListIterator(); !iter.Done(); {
		_, v, err := iter.Next()
		if err != nil {
			return nil, err
		}
		val, err := Value(v)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	return out, nil
}
