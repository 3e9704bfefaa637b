// internal/types/value.go
package types

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

/*
 * Tagged parameter values.
 *
 * A condition parameter holds a scalar (string, integer, double, boolean,
 * date, null), a list of values, an ordered map of values, or a nested
 * Condition. Value is a closed sum over those kinds so recursive walks can
 * switch exhaustively on Kind() instead of type-asserting arbitrary `any`.
 *
 * Key functions:
 *   - Constructors: String, Int, Float, Bool, Date, List, Map, Cond, Of
 *   - Accessors: AsString, AsInt, AsNumber, AsBool, AsDate, AsList, AsMap,
 *     AsCondition, Interface
 *   - Conditions: every Condition held directly or inside a list
 *
 * Values are immutable apart from the Conditions they point to; Clone
 * deep-copies nested conditions.
 */

// ValueKind discriminates the variants of Value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindDate
	KindList
	KindMap
	KindCondition
)

var kindNames = [...]string{"null", "string", "int", "float", "bool", "date", "list", "map", "condition"}

func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a heterogeneous condition parameter value.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
	t    time.Time
	list []Value
	m    []Parameter
	c    *Condition
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a double value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Date returns a date value normalized to UTC.
func Date(t time.Time) Value { return Value{kind: KindDate, t: t.UTC()} }

// List returns a list value.
func List(vs ...Value) Value {
	if vs == nil {
		vs = []Value{}
	}
	return Value{kind: KindList, list: vs}
}

// Map returns an ordered map value.
func Map(ps ...Parameter) Value {
	if ps == nil {
		ps = []Parameter{}
	}
	return Value{kind: KindMap, m: ps}
}

// Cond wraps a condition. A nil condition yields Null.
func Cond(c *Condition) Value {
	if c == nil {
		return Null()
	}
	return Value{kind: KindCondition, c: c}
}

// Conds returns a list of condition values.
func Conds(cs ...*Condition) Value {
	vs := make([]Value, 0, len(cs))
	for _, c := range cs {
		vs = append(vs, Cond(c))
	}
	return List(vs...)
}

// Strings returns a list of string values.
func Strings(ss ...string) Value {
	vs := make([]Value, 0, len(ss))
	for _, s := range ss {
		vs = append(vs, String(s))
	}
	return List(vs...)
}

// Of converts a native Go value into a Value. Maps are ordered by key.
// Unsupported types are formatted with %v and stored as strings.
func Of(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case *Condition:
		return Cond(x)
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return Int(int64(x))
	case uint8:
		return Int(int64(x))
	case uint16:
		return Int(int64(x))
	case uint32:
		return Int(int64(x))
	case uint64:
		return Int(int64(x))
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case time.Time:
		return Date(x)
	case []Value:
		return List(x...)
	case []*Condition:
		return Conds(x...)
	case []string:
		return Strings(x...)
	case []int:
		vs := make([]Value, 0, len(x))
		for _, n := range x {
			vs = append(vs, Int(int64(n)))
		}
		return List(vs...)
	case []int64:
		vs := make([]Value, 0, len(x))
		for _, n := range x {
			vs = append(vs, Int(n))
		}
		return List(vs...)
	case []float64:
		vs := make([]Value, 0, len(x))
		for _, n := range x {
			vs = append(vs, Float(n))
		}
		return List(vs...)
	case []time.Time:
		vs := make([]Value, 0, len(x))
		for _, d := range x {
			vs = append(vs, Date(d))
		}
		return List(vs...)
	case []any:
		vs := make([]Value, 0, len(x))
		for _, e := range x {
			vs = append(vs, Of(e))
		}
		return List(vs...)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ps := make([]Parameter, 0, len(keys))
		for _, k := range keys {
			ps = append(ps, Parameter{Name: k, Value: Of(x[k])})
		}
		return Map(ps...)
	default:
		return String(fmt.Sprintf("%v", x))
	}
}

// Kind reports the variant held by v.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsInt returns the integer held by v. Integral doubles are accepted.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
			return int64(v.f), true
		}
	}
	return 0, false
}

// AsNumber returns v as float64 for integer and double values.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsDate returns the date held by v.
func (v Value) AsDate() (time.Time, bool) { return v.t, v.kind == KindDate }

// AsList returns the elements of a list value.
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

// AsMap returns the entries of a map value.
func (v Value) AsMap() ([]Parameter, bool) { return v.m, v.kind == KindMap }

// AsCondition returns the condition held by v.
func (v Value) AsCondition() (*Condition, bool) { return v.c, v.kind == KindCondition }

// Conditions returns the condition held by v, or every condition element
// of a list value, in list order.
func (v Value) Conditions() []*Condition {
	switch v.kind {
	case KindCondition:
		return []*Condition{v.c}
	case KindList:
		var out []*Condition
		for _, e := range v.list {
			if e.kind == KindCondition {
				out = append(out, e.c)
			}
		}
		return out
	}
	return nil
}

// Interface returns v as a native Go value: nil, string, int64, float64,
// bool, time.Time, []any, map[string]any or *Condition.
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindBool:
		return v.b
	case KindDate:
		return v.t
	case KindList:
		out := make([]any, 0, len(v.list))
		for _, e := range v.list {
			out = append(out, e.Interface())
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for _, p := range v.m {
			out[p.Name] = p.Value.Interface()
		}
		return out
	case KindCondition:
		return v.c
	}
	return nil
}

// Clone deep-copies v, including nested conditions.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		out := make([]Value, len(v.list))
		for i, e := range v.list {
			out[i] = e.Clone()
		}
		return List(out...)
	case KindMap:
		out := make([]Parameter, len(v.m))
		for i, p := range v.m {
			out[i] = Parameter{Name: p.Name, Value: p.Value.Clone()}
		}
		return Map(out...)
	case KindCondition:
		return Cond(v.c.Clone())
	}
	return v
}

// Equal reports structural equality. Map entries and list elements must
// match in order.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.s == o.s
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindDate:
		return v.t.Equal(o.t)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for i := range v.m {
			if v.m[i].Name != o.m[i].Name || !v.m[i].Value.Equal(o.m[i].Value) {
				return false
			}
		}
		return true
	case KindCondition:
		return v.c.Equal(o.c)
	}
	return false
}

// String renders v for logs and diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return strconv.Quote(v.s)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.Format(time.RFC3339Nano)
	case KindList:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		return "{" + formatParameters(v.m) + "}"
	case KindCondition:
		return v.c.String()
	}
	return "?"
}

func formatParameters(ps []Parameter) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.Name + "=" + p.Value.String()
	}
	return strings.Join(parts, ", ")
}
