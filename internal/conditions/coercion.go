// internal/conditions/coercion.go
package conditions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/condengine/internal/types"
)

/*
 * Coercion of property values for comparison.
 *
 * Item data is JSON-shaped: numbers arrive as float64, int64 or
 * json.Number, dates as time.Time or strings. Comparisons pick a domain
 * from the expected value (integer, double, date, string) and coerce the
 * actual value into it. Coercion failure is an error the evaluator turns
 * into a non-match.
 *
 * Key functions:
 *   - toInt / toFloat: numeric domain, numeric strings accepted
 *   - toDate: time.Time, date strings, epoch millis
 *   - toString: canonical text form used by string operators
 *   - asSlice: collection-valued properties as []any
 */

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a number", types.ErrInvalidParameter, x)
		}
		return f, nil
	case types.Value:
		if f, ok := x.AsNumber(); ok {
			return f, nil
		}
		return toFloat(x.Interface())
	}
	return 0, fmt.Errorf("%w: %T is not a number", types.ErrInvalidParameter, v)
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case float32:
		return int64(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		return int64(f), err
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not an integer", types.ErrInvalidParameter, x)
		}
		return i, nil
	case types.Value:
		if i, ok := x.AsInt(); ok {
			return i, nil
		}
		return toInt(x.Interface())
	}
	return 0, fmt.Errorf("%w: %T is not an integer", types.ErrInvalidParameter, v)
}

func toDate(v any) (time.Time, error) {
	switch x := v.(type) {
	case types.Value:
		return toDate(x.Interface())
	default:
		return ParseDate(v)
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case json.Number:
		return x.String()
	case types.Value:
		return toString(x.Interface())
	}
	return fmt.Sprint(v)
}

// asSlice reports collection-valued properties as []any.
func asSlice(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, true
	case []int64:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(x))
		for i, n := range x {
			out[i] = n
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(x))
		for i, m := range x {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

// CompareValues orders actual against expected in the domain of expected:
// dates as instants, numbers numerically, anything else as folded text.
// Index matchers use it so stored values compare the way evaluation does.
func CompareValues(actual, expected any) (int, error) {
	switch e := expected.(type) {
	case time.Time:
		return compareDates(actual, e)
	case int64, int, int32, float64, float32:
		return compareNumbers(actual, e)
	}
	return strings.Compare(toString(foldAny(actual)), toString(foldAny(expected))), nil
}

// SameValue reports whether two values are equal under evaluation rules.
func SameValue(a, b any) bool {
	return sameValue(foldAny(a), foldAny(b))
}

// Text returns the folded text form string operators compare.
func Text(v any) string {
	return toString(foldAny(v))
}
