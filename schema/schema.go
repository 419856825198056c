package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/nasdf/capydoc/core"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

const (
	// RelationDirective marks a relationship field and names its foreign key.
	RelationDirective = "relation"
	// RelationFieldArgument is the argument of the relation directive naming the foreign key.
	RelationFieldArgument = "field"
	// EmbeddedDirective marks an object type as a nested shape instead of a collection.
	EmbeddedDirective = "embedded"

	// JSONScalar accepts any value.
	JSONScalar = "JSON"
	// DateTimeScalar accepts RFC 3339 timestamps.
	DateTimeScalar = "DateTime"
)

//go:embed prelude.graphql
var preludeSource string

// RelationKind is the kind of a relationship declaration.
type RelationKind int

const (
	// Forward relations store the foreign key on the owning entity.
	Forward RelationKind = iota
	// Inverse relations are materialized from the foreign key on the target entities.
	Inverse
)

func (k RelationKind) String() string {
	switch k {
	case Forward:
		return "forward"
	case Inverse:
		return "inverse"
	default:
		return fmt.Sprintf("RelationKind(%d)", int(k))
	}
}

// Relation is a relationship field declared on a collection.
type Relation struct {
	Kind RelationKind
	// Field is the name of the virtual relationship field.
	Field string
	// Target is the name of the related collection.
	Target string
	// ForeignKey is the foreign key field. It lives on the owner for forward
	// relations and on the target for inverse relations.
	ForeignKey string
	// Required is true when the foreign key is non-null.
	Required bool
}

// ForeignKey is a stored field that must reference an existing entity.
type ForeignKey struct {
	// Collection is the collection storing the key.
	Collection string
	// Field is the stored field name.
	Field string
	// Target is the referenced collection.
	Target string
	// Required is true when the key is non-null.
	Required bool
}

// Field is a stored field of a collection or embedded type.
type Field struct {
	Name string
	Type *ast.Type
}

// Collection is the declared shape of one collection.
type Collection struct {
	Name       string
	Definition *ast.Definition

	fields     map[string]*Field
	fieldNames []string
	relations  map[string]*Relation
	foreign    map[string]*ForeignKey
}

// Field returns the stored field with the given name.
func (c *Collection) Field(name string) (*Field, bool) {
	f, ok := c.fields[name]
	return f, ok
}

// FieldNames returns the stored field names in declaration order.
func (c *Collection) FieldNames() []string {
	return slices.Clone(c.fieldNames)
}

// Relation returns the relationship field with the given name.
func (c *Collection) Relation(name string) (*Relation, bool) {
	r, ok := c.relations[name]
	return r, ok
}

// Relations returns all relationship fields sorted by name.
func (c *Collection) Relations() []*Relation {
	out := make([]*Relation, 0, len(c.relations))
	for _, r := range c.relations {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Relation) int { return strings.Compare(a.Field, b.Field) })
	return out
}

// ForeignKeys returns the foreign keys stored on this collection sorted by field.
func (c *Collection) ForeignKeys() []*ForeignKey {
	out := make([]*ForeignKey, 0, len(c.foreign))
	for _, fk := range c.foreign {
		out = append(out, fk)
	}
	slices.SortFunc(out, func(a, b *ForeignKey) int { return strings.Compare(a.Field, b.Field) })
	return out
}

// ForeignKey returns the foreign key stored in the given field.
func (c *Collection) ForeignKey(field string) (*ForeignKey, bool) {
	fk, ok := c.foreign[field]
	return fk, ok
}

// Schema contains the collections and relationships of a store.
type Schema struct {
	source      string
	ast         *ast.Schema
	collections map[string]*Collection
	names       []string
}

// Load parses the given GraphQL SDL and resolves its collections and relationships.
func Load(source string) (*Schema, error) {
	as, err := gqlparser.LoadSchema(
		&ast.Source{Name: "prelude.graphql", Input: preludeSource, BuiltIn: true},
		&ast.Source{Name: "schema.graphql", Input: source},
	)
	if err != nil {
		return nil, err
	}
	s := &Schema{
		source:      source,
		ast:         as,
		collections: make(map[string]*Collection),
	}
	var errs []error
	for _, d := range as.Types {
		if d.BuiltIn {
			continue
		}
		switch d.Kind {
		case ast.Object:
			if d.Directives.ForName(EmbeddedDirective) != nil {
				continue
			}
			s.collections[d.Name] = &Collection{
				Name:       d.Name,
				Definition: d,
				fields:     make(map[string]*Field),
				relations:  make(map[string]*Relation),
				foreign:    make(map[string]*ForeignKey),
			}
			s.names = append(s.names, d.Name)
		case ast.Enum:
		default:
			errs = append(errs, fmt.Errorf("type %s: unsupported kind %s", d.Name, d.Kind))
		}
	}
	slices.Sort(s.names)
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, name := range s.names {
		errs = append(errs, s.declareFields(s.collections[name])...)
	}
	for _, name := range s.names {
		errs = append(errs, s.resolveInverse(s.collections[name])...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

// MustLoad is like Load but panics on error.
func MustLoad(source string) *Schema {
	s, err := Load(source)
	if err != nil {
		panic(err)
	}
	return s
}

// Source returns the SDL the schema was loaded from.
func (s *Schema) Source() string {
	return s.source
}

// AST returns the parsed GraphQL schema.
func (s *Schema) AST() *ast.Schema {
	return s.ast
}

// Names returns the sorted collection names.
func (s *Schema) Names() []string {
	return slices.Clone(s.names)
}

// Collection returns the collection with the given name.
func (s *Schema) Collection(name string) (*Collection, bool) {
	c, ok := s.collections[name]
	return c, ok
}

// Referencing returns every foreign key in any collection that targets the named collection.
func (s *Schema) Referencing(target string) []*ForeignKey {
	var out []*ForeignKey
	for _, name := range s.names {
		for _, fk := range s.collections[name].ForeignKeys() {
			if fk.Target == target {
				out = append(out, fk)
			}
		}
	}
	return out
}

func (s *Schema) isCollection(name string) bool {
	_, ok := s.collections[name]
	return ok
}

func (s *Schema) declareFields(c *Collection) []error {
	var errs []error
	var forward []*Relation
	for _, f := range c.Definition.Fields {
		if core.IsSystemField(f.Name) {
			continue
		}
		target := f.Type.Name()
		if !s.isCollection(target) {
			if err := s.checkStoredType(f.Type, make(map[string]bool)); err != nil {
				errs = append(errs, fmt.Errorf("%s.%s: %w", c.Name, f.Name, err))
				continue
			}
			c.addField(&Field{Name: f.Name, Type: f.Type})
			continue
		}
		var fk string
		if d := f.Directives.ForName(RelationDirective); d != nil {
			if arg := d.Arguments.ForName(RelationFieldArgument); arg != nil {
				fk = arg.Value.Raw
			}
		}
		if f.Type.Elem != nil {
			c.relations[f.Name] = &Relation{Kind: Inverse, Field: f.Name, Target: target, ForeignKey: fk}
			continue
		}
		if fk == "" {
			fk = f.Name + "Id"
		}
		rel := &Relation{Kind: Forward, Field: f.Name, Target: target, ForeignKey: fk, Required: f.Type.NonNull}
		c.relations[f.Name] = rel
		forward = append(forward, rel)
	}
	for _, rel := range forward {
		if err := c.addForeignKey(rel.ForeignKey, rel.Target, rel.Required); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *Schema) resolveInverse(c *Collection) []error {
	var errs []error
	for _, rel := range c.Relations() {
		if rel.Kind != Inverse {
			continue
		}
		target := s.collections[rel.Target]
		if rel.ForeignKey == "" {
			var matches []*Relation
			for _, other := range target.Relations() {
				if other.Kind == Forward && other.Target == c.Name {
					matches = append(matches, other)
				}
			}
			if len(matches) != 1 {
				errs = append(errs, fmt.Errorf("%s.%s: expected one relation on %s back to %s, found %d", c.Name, rel.Field, target.Name, c.Name, len(matches)))
				continue
			}
			rel.ForeignKey = matches[0].ForeignKey
		}
		if err := target.addForeignKey(rel.ForeignKey, c.Name, false); err != nil {
			errs = append(errs, fmt.Errorf("%s.%s: %w", c.Name, rel.Field, err))
			continue
		}
		rel.Required = target.foreign[rel.ForeignKey].Required
	}
	return errs
}

func (s *Schema) checkStoredType(t *ast.Type, seen map[string]bool) error {
	if t.Elem != nil {
		return s.checkStoredType(t.Elem, seen)
	}
	if seen[t.NamedType] {
		return nil
	}
	d, ok := s.ast.Types[t.NamedType]
	if !ok {
		return fmt.Errorf("unknown type %s", t.NamedType)
	}
	switch d.Kind {
	case ast.Scalar, ast.Enum:
		return nil
	case ast.Object:
		seen[d.Name] = true
		for _, f := range d.Fields {
			if s.isCollection(f.Type.Name()) {
				return fmt.Errorf("embedded type %s cannot reference collection %s", d.Name, f.Type.Name())
			}
			if err := s.checkStoredType(f.Type, seen); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported type %s", d.Name)
	}
}

func (c *Collection) addField(f *Field) {
	if _, ok := c.fields[f.Name]; !ok {
		c.fieldNames = append(c.fieldNames, f.Name)
	}
	c.fields[f.Name] = f
}

// addForeignKey registers a foreign key on the collection, adding an implicit
// ID field when the key is not declared.
func (c *Collection) addForeignKey(field, target string, required bool) error {
	if _, ok := c.relations[field]; ok {
		return fmt.Errorf("%s.%s: foreign key collides with a relationship field", c.Name, field)
	}
	if fk, ok := c.foreign[field]; ok {
		if fk.Target != target {
			return fmt.Errorf("%s.%s: foreign key references both %s and %s", c.Name, field, fk.Target, target)
		}
		fk.Required = fk.Required || required
		c.fields[field].Type.NonNull = fk.Required
		return nil
	}
	f, ok := c.fields[field]
	if ok {
		switch f.Type.NamedType {
		case "ID", "String":
		default:
			return fmt.Errorf("%s.%s: foreign key must be ID or String", c.Name, field)
		}
		required = required || f.Type.NonNull
		f.Type = &ast.Type{NamedType: f.Type.NamedType, NonNull: required}
	} else {
		c.addField(&Field{Name: field, Type: &ast.Type{NamedType: "ID", NonNull: required}})
	}
	c.foreign[field] = &ForeignKey{Collection: c.Name, Field: field, Target: target, Required: required}
	return nil
}
