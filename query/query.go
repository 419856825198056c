package query

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/nasdf/capydoc/core"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Options describes a read over one collection.
type Options struct {
	// Where keeps only entities matching the selector.
	Where core.Selector `json:"where,omitempty" yaml:"where,omitempty"`
	// Filter is a boolean expression evaluated against each entity's fields.
	Filter string `json:"filter,omitempty" yaml:"filter,omitempty"`
	// OrderBy is the field used for ordering and cursors. Defaults to id.
	OrderBy string `json:"orderBy,omitempty" yaml:"orderBy,omitempty"`
	// Desc reverses the ordering.
	Desc bool `json:"desc,omitempty" yaml:"desc,omitempty"`
	// After is the cursor value after which the page starts.
	After any `json:"after,omitempty" yaml:"after,omitempty"`
	// Before is the cursor value before which the page ends.
	Before any `json:"before,omitempty" yaml:"before,omitempty"`
	// Limit is the maximum page size. Values <= 0 use the default limit.
	Limit int `json:"limit,omitempty" yaml:"limit,omitempty"`
}

func (o Options) orderBy() string {
	if o.OrderBy == "" {
		return core.IDFieldName
	}
	return o.OrderBy
}

// Compile compiles a filter expression.
func Compile(filter string) (*vm.Program, error) {
	return expr.Compile(filter, expr.AllowUndefinedVariables(), expr.AsBool())
}

// Find returns the entities matching the options in order.
//
// The collection name is only used in returned errors.
func Find(collection string, entities []*core.Entity, opts Options) ([]*core.Entity, error) {
	var program *vm.Program
	if opts.Filter != "" {
		p, err := Compile(opts.Filter)
		if err != nil {
			return nil, &core.ValidationError{Collection: collection, Field: "filter", Message: err.Error()}
		}
		program = p
	}
	out := make([]*core.Entity, 0, len(entities))
	for _, e := range entities {
		if opts.Where != nil && !opts.Where.Matches(e) {
			continue
		}
		if program != nil {
			res, err := expr.Run(program, e.Value())
			if err != nil {
				return nil, &core.ValidationError{Collection: collection, Field: "filter", Message: err.Error()}
			}
			if ok, _ := res.(bool); !ok {
				continue
			}
		}
		out = append(out, e)
	}
	orderBy := opts.orderBy()
	if orderBy != core.IDFieldName || opts.Desc {
		slices.SortStableFunc(out, func(a, b *core.Entity) int {
			av, _ := a.Get(orderBy)
			bv, _ := b.Get(orderBy)
			c := core.Compare(av, bv)
			if c == 0 {
				c = strings.Compare(a.ID, b.ID)
			}
			if opts.Desc {
				return -c
			}
			return c
		})
	}
	return out, nil
}

// FindPage returns one page of the entities matching the options.
//
// Cursor values are the values of the ordering field at the page boundaries.
func FindPage(collection string, entities []*core.Entity, opts Options, defaultLimit int) (Page[*core.Entity, any], error) {
	found, err := Find(collection, entities, opts)
	if err != nil {
		return Page[*core.Entity, any]{}, err
	}
	orderBy := opts.orderBy()
	key := func(e *core.Entity) any {
		v, _ := e.Get(orderBy)
		return CursorKey(v)
	}
	cursor := Cursor[any]{Limit: opts.Limit}
	if cursor.Limit <= 0 {
		cursor.Limit = defaultLimit
	}
	if opts.After != nil {
		after := CursorKey(opts.After)
		cursor.After = &after
	}
	if opts.Before != nil {
		before := CursorKey(opts.Before)
		cursor.Before = &before
	}
	return PaginateSlice(found, key, cursor), nil
}

// CursorKey normalizes a field value into a comparable cursor value.
//
// Integral numbers become int64 and other numbers float64. Timestamps
// become RFC 3339 strings in UTC, the form they are read back in. Values that
// cannot be compared with == are formatted as strings.
func CursorKey(v any) any {
	if v == nil {
		return nil
	}
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	if i, ok := core.Int64(v); ok {
		return i
	}
	if f, ok := core.Float64(v); ok {
		return f
	}
	if !reflect.TypeOf(v).Comparable() {
		return fmt.Sprint(v)
	}
	return v
}
