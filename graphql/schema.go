package graphql

import (
	"bytes"
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"text/template"

	"github.com/nasdf/capydoc/schema"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

//go:embed schema.graphql
var schemaTemplateSource string

var schemaTemplate = template.Must(template.New("schema").Parse(schemaTemplateSource))

// Root operations are named by prefixing the collection name.
const (
	getOperationPrefix           = "get"
	findOperationPrefix          = "find"
	countOperationPrefix         = "count"
	createOperationPrefix        = "create"
	createManyOperationPrefix    = "createMany"
	updateOperationPrefix        = "update"
	patchOperationPrefix         = "patch"
	upsertOperationPrefix        = "upsert"
	upsertManyOperationPrefix    = "upsertMany"
	deleteOperationPrefix        = "delete"
	deleteRelatedOperationPrefix = "deleteRelated"
)

var queryOperationPrefixes = []string{
	getOperationPrefix,
	findOperationPrefix,
	countOperationPrefix,
}

var mutationOperationPrefixes = []string{
	createOperationPrefix,
	createManyOperationPrefix,
	updateOperationPrefix,
	patchOperationPrefix,
	upsertOperationPrefix,
	upsertManyOperationPrefix,
	deleteOperationPrefix,
	deleteRelatedOperationPrefix,
}

// rootField is a root operation bound to one collection.
type rootField struct {
	operation  string
	collection string
}

type templateField struct {
	Name string
	Type string
}

type templateCollection struct {
	Name   string
	Fields []templateField
}

type templateData struct {
	Enums       []*ast.Definition
	Embedded    []*ast.Definition
	Collections []templateCollection
}

// GenerateSchema creates the executable GraphQL schema of the given store schema.
//
// Every collection gets an output type with its system, stored, and
// relationship fields, along with get, find, and count queries and one
// mutation per write operation.
func GenerateSchema(s *schema.Schema) (*ast.Schema, map[string]rootField, error) {
	var data templateData
	for _, d := range s.AST().Types {
		if d.BuiltIn {
			continue
		}
		switch {
		case d.Kind == ast.Enum:
			data.Enums = append(data.Enums, d)
		case d.Kind == ast.Object && d.Directives.ForName(schema.EmbeddedDirective) != nil:
			data.Embedded = append(data.Embedded, d)
		}
	}
	byName := func(a, b *ast.Definition) int { return strings.Compare(a.Name, b.Name) }
	slices.SortFunc(data.Enums, byName)
	slices.SortFunc(data.Embedded, byName)

	fields := make(map[string]rootField)
	for _, name := range s.Names() {
		c, _ := s.Collection(name)
		tc := templateCollection{Name: name}
		for _, fn := range c.FieldNames() {
			f, _ := c.Field(fn)
			tc.Fields = append(tc.Fields, templateField{Name: f.Name, Type: f.Type.String()})
		}
		for _, rel := range c.Relations() {
			tc.Fields = append(tc.Fields, templateField{Name: rel.Field, Type: relationType(rel)})
		}
		data.Collections = append(data.Collections, tc)

		for _, prefix := range append(slices.Clone(queryOperationPrefixes), mutationOperationPrefixes...) {
			fields[prefix+name] = rootField{operation: prefix, collection: name}
		}
	}

	var out bytes.Buffer
	if err := schemaTemplate.Execute(&out, data); err != nil {
		return nil, nil, err
	}
	generated, err := gqlparser.LoadSchema(&ast.Source{Name: "generated.graphql", Input: out.String()})
	if err != nil {
		return nil, nil, fmt.Errorf("generating graphql schema: %w", err)
	}
	return generated, fields, nil
}

func relationType(rel *schema.Relation) string {
	switch rel.Kind {
	case schema.Forward:
		return rel.Target
	case schema.Inverse:
		return fmt.Sprintf("[%s!]!", rel.Target)
	default:
		panic(fmt.Sprintf("unknown relation kind %d", rel.Kind))
	}
}
