package core

import (
	"encoding/json"
	"math"
	"reflect"
	"time"
)

// CloneMap returns a deep copy of the given map.
func CloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}

// CloneValue returns a deep copy of maps and slices contained in the given value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []byte:
		return append([]byte(nil), t...)
	default:
		return v
	}
}

// Int64 returns the integer value of v and true if v is an integral number.
func Int64(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint:
		return int64(t), true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case float32:
		return Int64(float64(t))
	case float64:
		if t != math.Trunc(t) || t > math.MaxInt64 || t < math.MinInt64 {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		i, err := t.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

// Float64 returns the floating point value of v and true if v is a number.
func Float64(v any) (float64, bool) {
	switch t := v.(type) {
	case float32:
		return float64(t), true
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	if i, ok := Int64(v); ok {
		return float64(i), true
	}
	return 0, false
}

// IsNumber returns true if v is any Go numeric type.
func IsNumber(v any) bool {
	_, ok := Float64(v)
	return ok
}

// Equal reports whether two field values are equal.
//
// Numbers compare by value regardless of their Go type so that a selector
// decoded from JSON or YAML matches a normalized stored value.
func Equal(a, b any) bool {
	if IsNumber(a) && IsNumber(b) {
		if ia, ok := Int64(a); ok {
			if ib, ok := Int64(b); ok {
				return ia == ib
			}
		}
		fa, _ := Float64(a)
		fb, _ := Float64(b)
		return fa == fb
	}
	switch ta := a.(type) {
	case nil:
		return b == nil
	case time.Time:
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	case map[string]any:
		tb, ok := b.(map[string]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for k, va := range ta {
			vb, ok := tb[k]
			if !ok || !Equal(va, vb) {
				return false
			}
		}
		return true
	case []any:
		tb, ok := b.([]any)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !Equal(ta[i], tb[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two field values. Nil sorts first, numbers compare by value,
// strings lexically, times chronologically, and anything else falls back to
// a type-name ordering so sorting stays deterministic.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := Float64(a); ok {
		if fb, ok := Float64(b); ok {
			return compareOrdered(fa, fb)
		}
	}
	switch ta := a.(type) {
	case string:
		if tb, ok := b.(string); ok {
			return compareOrdered(ta, tb)
		}
	case bool:
		if tb, ok := b.(bool); ok {
			switch {
			case ta == tb:
				return 0
			case !ta:
				return -1
			default:
				return 1
			}
		}
	case time.Time:
		if tb, ok := b.(time.Time); ok {
			return ta.Compare(tb)
		}
	}
	return compareOrdered(reflect.TypeOf(a).String(), reflect.TypeOf(b).String())
}

func compareOrdered[T float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
