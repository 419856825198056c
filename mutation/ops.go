package mutation

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/nasdf/capydoc/core"
	"github.com/nasdf/capydoc/schema"
)

const (
	connectOp    = "connect"
	disconnectOp = "disconnect"
	setOp        = "set"
	updateOp     = "update"
	deleteOp     = "delete"

	whereKey = "where"
	dataKey  = "data"
)

// ForwardOperator is an operator on a forward reference.
type ForwardOperator int

const (
	ForwardDisconnect ForwardOperator = iota
	ForwardConnect
	ForwardUpdate
)

// InverseOperator is an operator on an inverse collection.
type InverseOperator int

const (
	InverseDisconnect InverseOperator = iota
	InverseConnect
	InverseUpdate
	InverseDelete
	InverseSet
)

// ForwardOp is a parsed operation on a forward reference field.
type ForwardOp struct {
	Relation *schema.Relation
	Operator ForwardOperator
	// Target resolves the entity to connect.
	Target core.Selector
	// Data patches the connected entity.
	Data map[string]any
}

// InverseUpdateItem patches one backlinked entity.
type InverseUpdateItem struct {
	Where core.Selector
	Data  map[string]any
}

// InverseOp is a parsed operation on an inverse collection field.
type InverseOp struct {
	Relation *schema.Relation
	Operator InverseOperator
	// Targets resolve the entities for connect, disconnect, delete, and set.
	Targets []core.Selector
	// Updates contains the patches for update.
	Updates []InverseUpdateItem
}

// RelationOp is either a ForwardOp or an InverseOp.
type RelationOp interface {
	relation() *schema.Relation
	phase() int
}

func (op ForwardOp) relation() *schema.Relation { return op.Relation }
func (op InverseOp) relation() *schema.Relation { return op.Relation }

// phase returns the execution position of the operator within one update:
// disconnects, connects, nested updates, deletes, then sets.
func (op ForwardOp) phase() int {
	switch op.Operator {
	case ForwardDisconnect:
		return 0
	case ForwardConnect:
		return 1
	case ForwardUpdate:
		return 2
	default:
		panic(fmt.Sprintf("unknown forward operator %d", op.Operator))
	}
}

func (op InverseOp) phase() int {
	switch op.Operator {
	case InverseDisconnect:
		return 0
	case InverseConnect:
		return 1
	case InverseUpdate:
		return 2
	case InverseDelete:
		return 3
	case InverseSet:
		return 4
	default:
		panic(fmt.Sprintf("unknown inverse operator %d", op.Operator))
	}
}

// ParseRelationOps parses the value given for a relationship field into operations.
func ParseRelationOps(collection string, rel *schema.Relation, value any) ([]RelationOp, error) {
	fail := func(format string, args ...any) error {
		return &core.ValidationError{Collection: collection, Field: rel.Field, Message: fmt.Sprintf(format, args...)}
	}
	switch rel.Kind {
	case schema.Forward:
		op, err := parseForwardOp(rel, value)
		if err != nil {
			return nil, fail("%v", err)
		}
		return []RelationOp{op}, nil
	case schema.Inverse:
		ops, err := parseInverseOps(rel, value)
		if err != nil {
			return nil, fail("%v", err)
		}
		return ops, nil
	default:
		return nil, fail("unknown relation kind %s", rel.Kind)
	}
}

func parseForwardOp(rel *schema.Relation, value any) (ForwardOp, error) {
	op := ForwardOp{Relation: rel}
	if value == nil {
		op.Operator = ForwardDisconnect
		return op, nil
	}
	args, ok := value.(map[string]any)
	if !ok {
		return op, fmt.Errorf("expected object, got %T", value)
	}
	if len(args) != 1 || !isOperatorKey(args, connectOp, disconnectOp, updateOp) {
		// a bare selector is shorthand for connect
		op.Operator = ForwardConnect
		op.Target = core.Selector(args)
		return op, nil
	}
	for k, v := range args {
		switch k {
		case disconnectOp:
			if b, ok := v.(bool); ok && !b {
				return op, fmt.Errorf("disconnect must be true")
			}
			op.Operator = ForwardDisconnect
		case connectOp:
			sel, err := parseSelector(v)
			if err != nil {
				return op, err
			}
			op.Operator = ForwardConnect
			op.Target = sel
		case updateOp:
			data, ok := v.(map[string]any)
			if !ok {
				return op, fmt.Errorf("update expects an object, got %T", v)
			}
			op.Operator = ForwardUpdate
			op.Data = data
		}
	}
	return op, nil
}

func parseInverseOps(rel *schema.Relation, value any) ([]RelationOp, error) {
	args, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected an object of operators, got %T", value)
	}
	if v, ok := args[setOp]; ok {
		// set replaces the whole backlink set and wins over any other operator
		targets, err := parseSelectors(v)
		if err != nil {
			return nil, err
		}
		return []RelationOp{InverseOp{Relation: rel, Operator: InverseSet, Targets: targets}}, nil
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var ops []RelationOp
	for _, k := range keys {
		v := args[k]
		op := InverseOp{Relation: rel}
		switch k {
		case connectOp:
			op.Operator = InverseConnect
		case disconnectOp:
			op.Operator = InverseDisconnect
		case deleteOp:
			op.Operator = InverseDelete
		case updateOp:
			op.Operator = InverseUpdate
			updates, err := parseInverseUpdates(v)
			if err != nil {
				return nil, err
			}
			op.Updates = updates
			ops = append(ops, op)
			continue
		default:
			return nil, fmt.Errorf("unknown operator %q", k)
		}
		targets, err := parseSelectors(v)
		if err != nil {
			return nil, err
		}
		op.Targets = targets
		ops = append(ops, op)
	}
	return ops, nil
}

func parseInverseUpdates(value any) ([]InverseUpdateItem, error) {
	items, err := asList(value)
	if err != nil {
		return nil, err
	}
	out := make([]InverseUpdateItem, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("update expects {where, data} objects, got %T", item)
		}
		where, err := parseSelector(m[whereKey])
		if err != nil {
			return nil, err
		}
		data, ok := m[dataKey].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("update data must be an object")
		}
		out[i] = InverseUpdateItem{Where: where, Data: data}
	}
	return out, nil
}

func parseSelectors(value any) ([]core.Selector, error) {
	items, err := asList(value)
	if err != nil {
		return nil, err
	}
	out := make([]core.Selector, len(items))
	for i, item := range items {
		sel, err := parseSelector(item)
		if err != nil {
			return nil, err
		}
		out[i] = sel
	}
	return out, nil
}

// parseSelector accepts a selector object or a bare id string.
func parseSelector(value any) (core.Selector, error) {
	switch v := value.(type) {
	case string:
		return core.Selector{core.IDFieldName: v}, nil
	case map[string]any:
		if len(v) == 0 {
			return nil, fmt.Errorf("selector must not be empty")
		}
		return core.Selector(v), nil
	case core.Selector:
		if len(v) == 0 {
			return nil, fmt.Errorf("selector must not be empty")
		}
		return v, nil
	default:
		return nil, fmt.Errorf("expected selector, got %T", value)
	}
}

// asList accepts a single value or a list of values.
func asList(value any) ([]any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case []any:
		return v, nil
	case map[string]any, string, core.Selector:
		return []any{v}, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("expected a list, got %T", value)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

func isOperatorKey(args map[string]any, ops ...string) bool {
	for k := range args {
		if slices.Contains(ops, k) {
			return true
		}
	}
	return false
}
