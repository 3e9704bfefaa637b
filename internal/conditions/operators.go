// internal/conditions/operators.go
package conditions

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/solatis/condengine/internal/types"
)

/*
 * Comparison operators of the property condition family.
 *
 * Operands are the typed expected values of a condition. Exactly one
 * scalar domain drives a comparison, chosen in order: integer, double,
 * date (literal or expression), string. Multi-value operators use the
 * first present list among values, dates, integers, doubles and date
 * expressions.
 *
 * Strings are ASCII-folded on both sides before comparing. The query
 * builders load operands through the same LoadOperands so compiled filters
 * see the same expected values the evaluator does.
 *
 * Date expressions bound the way range queries do: greaterThan and
 * lessThanOrEqualTo round up to the end of a rounded unit, every other
 * comparison rounds down.
 */

// Comparison operators.
const (
	OpEquals               = "equals"
	OpNotEquals            = "notEquals"
	OpGreaterThan          = "greaterThan"
	OpGreaterThanOrEqualTo = "greaterThanOrEqualTo"
	OpLessThan             = "lessThan"
	OpLessThanOrEqualTo    = "lessThanOrEqualTo"
	OpBetween              = "between"
	OpExists               = "exists"
	OpMissing              = "missing"
	OpContains             = "contains"
	OpNotContains          = "notContains"
	OpStartsWith           = "startsWith"
	OpEndsWith             = "endsWith"
	OpMatchesRegex         = "matchesRegex"
	OpIn                   = "in"
	OpNotIn                = "notIn"
	OpAll                  = "all"
	OpHasSomeOf            = "hasSomeOf"
	OpHasNoneOf            = "hasNoneOf"
	OpInContains           = "inContains"
	OpIsDay                = "isDay"
	OpIsNotDay             = "isNotDay"
)

// Property condition parameter names.
const (
	ParamPropertyName          = "propertyName"
	ParamComparisonOperator    = "comparisonOperator"
	ParamPropertyValue         = "propertyValue"
	ParamPropertyValueInteger  = "propertyValueInteger"
	ParamPropertyValueDouble   = "propertyValueDouble"
	ParamPropertyValueDate     = "propertyValueDate"
	ParamPropertyValueDateExpr = "propertyValueDateExpr"
	ParamPropertyValues        = "propertyValues"
	ParamPropertyValuesInteger = "propertyValuesInteger"
	ParamPropertyValuesDouble  = "propertyValuesDouble"
	ParamPropertyValuesDate    = "propertyValuesDate"
	ParamPropertyValuesDateExp = "propertyValuesDateExpr"
)

// Operators lists every supported comparison operator.
var Operators = []string{
	OpEquals, OpNotEquals, OpGreaterThan, OpGreaterThanOrEqualTo, OpLessThan,
	OpLessThanOrEqualTo, OpBetween, OpExists, OpMissing, OpContains, OpNotContains,
	OpStartsWith, OpEndsWith, OpMatchesRegex, OpIn, OpNotIn, OpAll, OpHasSomeOf,
	OpHasNoneOf, OpInContains, OpIsDay, OpIsNotDay,
}

// Operands are the expected values of a property condition. Absent
// scalars are nil, absent lists are nil slices; a present empty list is a
// non-nil empty slice.
type Operands struct {
	Value    any // folded string or other scalar
	Integer  any // int64
	Double   any // float64
	Date     any // time.Time
	DateExpr string
	Pattern  string // propertyValue as given, for matchesRegex

	Values    []any // folded strings or other scalars
	Integers  []any // int64
	Doubles   []any // float64
	Dates     []any // time.Time
	DateExprs []any // string

	now time.Time
}

// LoadOperands reads the expected value parameters of c. Malformed values
// are errors.
func LoadOperands(c *types.Condition, now time.Time) (Operands, error) {
	o := Operands{now: now}
	var err error
	if v := c.Param(ParamPropertyValue); !v.IsNull() {
		o.Value = foldAny(v.Interface())
		o.Pattern, _ = v.AsString()
	}
	if v := c.Param(ParamPropertyValueInteger); !v.IsNull() {
		if o.Integer, err = toInt(v); err != nil {
			return o, fmt.Errorf("%s: %w", ParamPropertyValueInteger, err)
		}
	}
	if v := c.Param(ParamPropertyValueDouble); !v.IsNull() {
		if o.Double, err = toFloat(v); err != nil {
			return o, fmt.Errorf("%s: %w", ParamPropertyValueDouble, err)
		}
	}
	if v := c.Param(ParamPropertyValueDate); !v.IsNull() {
		if o.Date, err = toDate(v); err != nil {
			return o, fmt.Errorf("%s: %w", ParamPropertyValueDate, err)
		}
	}
	if s, ok := c.StringParam(ParamPropertyValueDateExpr); ok {
		o.DateExpr = s
	}

	if o.Values, err = loadList(c, ParamPropertyValues, func(v types.Value) (any, error) {
		return foldAny(v.Interface()), nil
	}); err != nil {
		return o, err
	}
	if o.Integers, err = loadList(c, ParamPropertyValuesInteger, func(v types.Value) (any, error) {
		return toInt(v)
	}); err != nil {
		return o, err
	}
	if o.Doubles, err = loadList(c, ParamPropertyValuesDouble, func(v types.Value) (any, error) {
		return toFloat(v)
	}); err != nil {
		return o, err
	}
	if o.Dates, err = loadList(c, ParamPropertyValuesDate, func(v types.Value) (any, error) {
		return toDate(v)
	}); err != nil {
		return o, err
	}
	o.DateExprs, err = loadList(c, ParamPropertyValuesDateExp, func(v types.Value) (any, error) {
		s, ok := v.AsString()
		if !ok {
			return nil, fmt.Errorf("%w: date expression must be a string", types.ErrInvalidParameter)
		}
		return s, nil
	})
	return o, err
}

func loadList(c *types.Condition, name string, conv func(types.Value) (any, error)) ([]any, error) {
	v := c.Param(name)
	if v.IsNull() {
		return nil, nil
	}
	elems, ok := v.AsList()
	if !ok {
		elems = []types.Value{v}
	}
	out := make([]any, 0, len(elems))
	for _, e := range elems {
		if e.IsNull() {
			continue
		}
		x, err := conv(e)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, x)
	}
	return out, nil
}

// HasScalar reports whether any scalar expected value is present.
func (o Operands) HasScalar() bool {
	return o.Value != nil || o.Integer != nil || o.Double != nil || o.Date != nil || o.DateExpr != ""
}

// ScalarDate returns the literal or evaluated expected date.
func (o Operands) ScalarDate(roundUp bool) (time.Time, bool, error) {
	if d, ok := o.Date.(time.Time); ok {
		return d, true, nil
	}
	if o.DateExpr != "" {
		t, err := ParseDateMath(o.DateExpr, o.now, roundUp)
		return t, err == nil, err
	}
	return time.Time{}, false, nil
}

// Bounds returns the two between bounds, evaluating date expressions with
// the lower bound rounded down and the upper bound rounded up.
func (o Operands) Bounds() (lower, upper any, n int, err error) {
	switch {
	case o.Integers != nil:
		return pair(o.Integers)
	case o.Doubles != nil:
		return pair(o.Doubles)
	case o.Dates != nil:
		return pair(o.Dates)
	case o.DateExprs != nil:
		if len(o.DateExprs) != 2 {
			return nil, nil, len(o.DateExprs), nil
		}
		lo, err := ParseDateMath(o.DateExprs[0].(string), o.now, false)
		if err != nil {
			return nil, nil, 2, err
		}
		hi, err := ParseDateMath(o.DateExprs[1].(string), o.now, true)
		if err != nil {
			return nil, nil, 2, err
		}
		return lo, hi, 2, nil
	}
	return nil, nil, 0, nil
}

func pair(vs []any) (any, any, int, error) {
	if len(vs) != 2 {
		return nil, nil, len(vs), nil
	}
	return vs[0], vs[1], 2, nil
}

// Multi returns the expected list for multi-value operators.
func (o Operands) Multi() ([]any, error) {
	switch {
	case o.Values != nil:
		return o.Values, nil
	case o.Dates != nil:
		return o.Dates, nil
	case o.Integers != nil:
		return o.Integers, nil
	case o.Doubles != nil:
		return o.Doubles, nil
	case o.DateExprs != nil:
		out := make([]any, 0, len(o.DateExprs))
		for _, e := range o.DateExprs {
			t, err := ParseDateMath(e.(string), o.now, false)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	}
	return nil, nil
}

// roundsUp reports whether op takes the end of a rounded date unit.
func roundsUp(op string) bool {
	return op == OpGreaterThan || op == OpLessThanOrEqualTo
}

// EvalOperator applies op to an actual property value. A nil actual is an
// absent property.
func EvalOperator(op string, actual any, o Operands) (bool, error) {
	if op == "" {
		return false, nil
	}
	actual = foldAny(actual)
	if actual == nil {
		return op == OpMissing, nil
	}

	switch op {
	case OpExists:
		return true, nil
	case OpMissing:
		return false, nil
	case OpEquals:
		if elems, ok := asSlice(actual); ok {
			return anyEqual(elems, o), nil
		}
		cmp, err := compare(actual, o, false)
		return err == nil && cmp == 0, err
	case OpNotEquals:
		// a list is not equal when no element is
		if elems, ok := asSlice(actual); ok {
			return !anyEqual(elems, o), nil
		}
		cmp, err := compare(actual, o, false)
		return err == nil && cmp != 0, err
	case OpGreaterThan:
		cmp, err := compare(actual, o, true)
		return err == nil && cmp > 0, err
	case OpGreaterThanOrEqualTo:
		cmp, err := compare(actual, o, false)
		return err == nil && cmp >= 0, err
	case OpLessThan:
		cmp, err := compare(actual, o, false)
		return err == nil && cmp < 0, err
	case OpLessThanOrEqualTo:
		cmp, err := compare(actual, o, true)
		return err == nil && cmp <= 0, err
	case OpBetween:
		return between(actual, o)
	case OpContains, OpNotContains, OpStartsWith, OpEndsWith:
		expected, ok := o.Value.(string)
		if !ok {
			if o.Value == nil {
				return false, nil
			}
			expected = toString(o.Value)
		}
		s := toString(actual)
		switch op {
		case OpContains:
			return strings.Contains(s, expected), nil
		case OpNotContains:
			return !strings.Contains(s, expected), nil
		case OpStartsWith:
			return strings.HasPrefix(s, expected), nil
		default:
			return strings.HasSuffix(s, expected), nil
		}
	case OpMatchesRegex:
		return matchesRegex(actual, o)
	case OpIn, OpNotIn, OpAll, OpHasSomeOf, OpHasNoneOf, OpInContains:
		return compareMultivalue(op, actual, o)
	case OpIsDay, OpIsNotDay:
		expected, ok, err := o.ScalarDate(false)
		if err != nil || !ok {
			return false, err
		}
		a, err := toDate(actual)
		if err != nil {
			return false, err
		}
		same := sameDay(a, expected)
		if op == OpIsDay {
			return same, nil
		}
		return !same, nil
	}
	return false, nil
}

// compare orders actual against the scalar expected value.
func compare(actual any, o Operands, roundUp bool) (int, error) {
	if !o.HasScalar() {
		if actual == nil {
			return 0, nil
		}
		return 1, nil
	}
	if actual == nil {
		return -1, nil
	}
	switch {
	case o.Integer != nil:
		return compareNumbers(actual, o.Integer)
	case o.Double != nil:
		return compareNumbers(actual, o.Double)
	case o.Date != nil || o.DateExpr != "":
		expected, _, err := o.ScalarDate(roundUp)
		if err != nil {
			return 0, err
		}
		return compareDates(actual, expected)
	}
	return strings.Compare(toString(actual), toString(o.Value)), nil
}

func compareNumbers(actual, expected any) (int, error) {
	ai, aInt := actual.(int64)
	ei, eInt := expected.(int64)
	if aInt && eInt {
		return cmp3(ai < ei, ai > ei), nil
	}
	a, err := toFloat(actual)
	if err != nil {
		return 0, err
	}
	e, err := toFloat(expected)
	if err != nil {
		return 0, err
	}
	return cmp3(a < e, a > e), nil
}

func compareDates(actual any, expected time.Time) (int, error) {
	a, err := toDate(actual)
	if err != nil {
		return 0, err
	}
	return a.Compare(expected), nil
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func between(actual any, o Operands) (bool, error) {
	lo, hi, n, err := o.Bounds()
	if err != nil || n != 2 {
		return false, err
	}
	var c1, c2 int
	switch lo.(type) {
	case time.Time:
		if c1, err = compareDates(actual, lo.(time.Time)); err != nil {
			return false, err
		}
		if c2, err = compareDates(actual, hi.(time.Time)); err != nil {
			return false, err
		}
	default:
		if c1, err = compareNumbers(actual, lo); err != nil {
			return false, err
		}
		if c2, err = compareNumbers(actual, hi); err != nil {
			return false, err
		}
	}
	return c1 >= 0 && c2 <= 0, nil
}

func anyEqual(elems []any, o Operands) bool {
	for _, e := range elems {
		cmp, err := compare(foldAny(e), o, false)
		if err == nil && cmp == 0 {
			return true
		}
	}
	return false
}

// RegexpPattern anchors a property pattern for full-string matching. The
// pattern itself is not folded and matches case-sensitively against the
// folded value, so uppercase literals never match.
func RegexpPattern(pattern string) string {
	return "^(?:" + pattern + ")$"
}

func matchesRegex(actual any, o Operands) (bool, error) {
	pattern := o.Pattern
	if pattern == "" {
		if o.Value == nil {
			return false, nil
		}
		pattern = toString(o.Value)
	}
	re, err := regexp.Compile(RegexpPattern(pattern))
	if err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrInvalidParameter, err)
	}
	return re.MatchString(toString(actual)), nil
}

func compareMultivalue(op string, actual any, o Operands) (bool, error) {
	expected, err := o.Multi()
	if err != nil {
		return false, err
	}
	if actual == nil {
		return expected == nil, nil
	}
	if expected == nil {
		return false, nil
	}
	elems, ok := asSlice(actual)
	if !ok {
		elems = []any{actual}
	}
	actuals := make([]any, len(elems))
	for i, e := range elems {
		actuals[i] = foldAny(e)
	}

	switch op {
	case OpIn:
		return anyIn(actuals, expected), nil
	case OpNotIn:
		return !anyIn(actuals, expected), nil
	case OpAll:
		for _, e := range expected {
			if !contains(actuals, e) {
				return false, nil
			}
		}
		return true, nil
	case OpHasSomeOf:
		return anyIn(expected, actuals), nil
	case OpHasNoneOf:
		return !anyIn(expected, actuals), nil
	case OpInContains:
		for _, a := range actuals {
			s := toString(a)
			for _, e := range expected {
				if strings.Contains(s, toString(e)) {
					return true, nil
				}
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", types.ErrUnknownOperator, op)
}

func anyIn(xs, set []any) bool {
	for _, x := range xs {
		if contains(set, x) {
			return true
		}
	}
	return false
}

func contains(set []any, x any) bool {
	for _, s := range set {
		if sameValue(s, x) {
			return true
		}
	}
	return false
}

// sameValue compares across the representations items and parameters
// use: numbers by value, dates as instants, everything else as text.
func sameValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, err := toDate(b)
		return err == nil && ta.Equal(tb)
	}
	if tb, ok := b.(time.Time); ok {
		ta, err := toDate(a)
		return err == nil && ta.Equal(tb)
	}
	if isNumber(a) && isNumber(b) {
		c, err := compareNumbers(a, b)
		return err == nil && c == 0
	}
	return toString(a) == toString(b)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}
