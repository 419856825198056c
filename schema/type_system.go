package schema

import (
	"errors"
	"fmt"

	"github.com/nasdf/capydoc/core"

	ipldschema "github.com/ipld/go-ipld-prime/schema"
	"github.com/vektah/gqlparser/v2/ast"
)

// RootTypeName is the name of the persisted root struct type.
const RootTypeName = "__Root"

// baseTypes contains all of the scalar types.
var baseTypes = []ipldschema.Type{
	ipldschema.SpawnInt("Int"),
	ipldschema.SpawnFloat("Float"),
	ipldschema.SpawnBool("Boolean"),
	ipldschema.SpawnString("String"),
	ipldschema.SpawnString("ID"),
	ipldschema.SpawnString(DateTimeScalar),
	ipldschema.SpawnAny(JSONScalar),
}

// TypeSystem returns the IPLD type system describing persisted entities.
//
// Every collection becomes a struct of its stored fields plus the system
// fields, and the root struct maps each collection name to a map of id to
// entity link.
func (s *Schema) TypeSystem() (*ipldschema.TypeSystem, error) {
	ts := ipldschema.MustTypeSystem(baseTypes...)
	spawned := make(map[string]bool)
	for _, t := range baseTypes {
		spawned[t.Name()] = true
	}
	for name, d := range s.ast.Types {
		if d.BuiltIn || s.isCollection(name) {
			continue
		}
		accumulateSchemaType(ts, spawned, d)
	}

	var rootFields []ipldschema.StructField
	for _, name := range s.names {
		c := s.collections[name]
		fields := []ipldschema.StructField{
			ipldschema.SpawnStructField(core.IDFieldName, "ID", false, false),
			ipldschema.SpawnStructField(core.CreatedAtFieldName, DateTimeScalar, false, false),
			ipldschema.SpawnStructField(core.UpdatedAtFieldName, DateTimeScalar, false, false),
		}
		for _, fieldName := range c.fieldNames {
			t := c.fields[fieldName].Type
			fields = append(fields, ipldschema.SpawnStructField(fieldName, accumulateTypeName(ts, spawned, t), !t.NonNull, !t.NonNull))
		}
		ts.Accumulate(ipldschema.SpawnStruct(name, fields, ipldschema.SpawnStructRepresentationMap(nil)))
		ts.Accumulate(ipldschema.SpawnLinkReference("&"+name, name))

		mapName := fmt.Sprintf("{ID:&%s}", name)
		ts.Accumulate(ipldschema.SpawnMap(mapName, "ID", "&"+name, false))
		rootFields = append(rootFields, ipldschema.SpawnStructField(name, mapName, true, false))
	}
	ts.Accumulate(ipldschema.SpawnStruct(RootTypeName, rootFields, ipldschema.SpawnStructRepresentationMap(nil)))

	errs := ts.ValidateGraph()
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return ts, nil
}

func accumulateSchemaType(ts *ipldschema.TypeSystem, spawned map[string]bool, d *ast.Definition) {
	if spawned[d.Name] {
		return
	}
	spawned[d.Name] = true
	switch d.Kind {
	case ast.Object:
		accumulateSchemaStructType(ts, spawned, d)
	case ast.Enum:
		accumulateSchemaEnumType(ts, d)
	}
}

func accumulateSchemaEnumType(ts *ipldschema.TypeSystem, d *ast.Definition) {
	members := make([]string, len(d.EnumValues))
	repr := make(ipldschema.EnumRepresentation_String)
	for i, v := range d.EnumValues {
		members[i] = v.Name
		repr[v.Name] = v.Name
	}
	ts.Accumulate(ipldschema.SpawnEnum(d.Name, members, repr))
}

func accumulateSchemaStructType(ts *ipldschema.TypeSystem, spawned map[string]bool, d *ast.Definition) {
	fields := make([]ipldschema.StructField, len(d.Fields))
	for i, field := range d.Fields {
		nonNull := field.Type.NonNull
		fields[i] = ipldschema.SpawnStructField(field.Name, accumulateTypeName(ts, spawned, field.Type), !nonNull, !nonNull)
	}
	ts.Accumulate(ipldschema.SpawnStruct(d.Name, fields, ipldschema.SpawnStructRepresentationMap(nil)))
}

// accumulateTypeName returns the IPLD type name for the given field type,
// spawning list types as needed.
func accumulateTypeName(ts *ipldschema.TypeSystem, spawned map[string]bool, t *ast.Type) string {
	if t.Elem == nil {
		return t.NamedType
	}
	elem := accumulateTypeName(ts, spawned, t.Elem)
	name := fmt.Sprintf("[%s]", elem)
	if t.Elem.NonNull {
		name = fmt.Sprintf("[%s!]", elem)
	}
	if !spawned[name] {
		spawned[name] = true
		ts.Accumulate(ipldschema.SpawnList(name, elem, !t.Elem.NonNull))
	}
	return name
}
