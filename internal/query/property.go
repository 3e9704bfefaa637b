// internal/query/property.go
package query

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/types"
)

/*
 * Property condition compilation.
 *
 * Expected values come from conditions.LoadOperands, so dates, folding
 * and list handling are the evaluator's. Operators that evaluate to false
 * on an absent property compile their negations as "exists and not x":
 * notEquals, notContains, notIn, hasNoneOf and isNotDay never match a
 * document lacking the field, exactly like evaluation.
 *
 * An operator whose expected value is absent is an error rather than a
 * filter; evaluation of the same condition simply does not match.
 */

// wildcard matches any run of characters, newlines included.
const wildcard = "(?s:.*)"

func buildProperty(_ context.Context, c *types.Condition, _ conditions.Params, d *Dispatcher) (Filter, error) {
	name, ok := c.StringParam(conditions.ParamPropertyName)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %s needs propertyName", types.ErrMissingParameter, c.TypeID)
	}
	op, ok := conditions.ParamOrDefault(c, conditions.ParamComparisonOperator).AsString()
	if !ok || op == "" {
		return nil, fmt.Errorf("%w: %s needs comparisonOperator", types.ErrMissingParameter, c.TypeID)
	}
	o, err := conditions.LoadOperands(c, d.cfg.now())
	if err != nil {
		return nil, err
	}
	return PropertyFilter(name, op, o)
}

// PropertyFilter compiles one comparison on field.
func PropertyFilter(field, op string, o conditions.Operands) (Filter, error) {
	missing := fmt.Errorf("%w: %s on %s", types.ErrMissingPropertyValue, op, field)

	switch op {
	case conditions.OpExists:
		return Exists{Field: field}, nil
	case conditions.OpMissing:
		return Not(Exists{Field: field}), nil

	case conditions.OpEquals, conditions.OpNotEquals,
		conditions.OpGreaterThan, conditions.OpGreaterThanOrEqualTo,
		conditions.OpLessThan, conditions.OpLessThanOrEqualTo:
		v, err := scalar(op, o)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, missing
		}
		switch op {
		case conditions.OpEquals:
			return Term{Field: field, Value: v}, nil
		case conditions.OpNotEquals:
			return present(field, Term{Field: field, Value: v}), nil
		case conditions.OpGreaterThan:
			return Range{Field: field, Gt: v}, nil
		case conditions.OpGreaterThanOrEqualTo:
			return Range{Field: field, Gte: v}, nil
		case conditions.OpLessThan:
			return Range{Field: field, Lt: v}, nil
		default:
			return Range{Field: field, Lte: v}, nil
		}

	case conditions.OpBetween:
		lo, hi, n, err := o.Bounds()
		if err != nil {
			return nil, err
		}
		if n != 2 {
			return nil, fmt.Errorf("%w: %s has %d", types.ErrBetweenValues, field, n)
		}
		return Range{Field: field, Gte: lo, Lte: hi}, nil

	case conditions.OpContains, conditions.OpNotContains, conditions.OpStartsWith, conditions.OpEndsWith:
		if o.Value == nil {
			return nil, missing
		}
		s := conditions.Text(o.Value)
		switch op {
		case conditions.OpContains:
			return Regexp{Field: field, Pattern: containsPattern(s)}, nil
		case conditions.OpNotContains:
			return present(field, Regexp{Field: field, Pattern: containsPattern(s)}), nil
		case conditions.OpStartsWith:
			return Prefix{Field: field, Value: s}, nil
		default:
			return Regexp{Field: field, Pattern: wildcard + regexp.QuoteMeta(s)}, nil
		}

	case conditions.OpMatchesRegex:
		pattern := o.Pattern
		if pattern == "" {
			if o.Value == nil {
				return nil, missing
			}
			pattern = conditions.Text(o.Value)
		}
		if _, err := regexp.Compile(conditions.RegexpPattern(pattern)); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidParameter, err)
		}
		return Regexp{Field: field, Pattern: pattern}, nil

	case conditions.OpIn, conditions.OpNotIn, conditions.OpAll,
		conditions.OpHasSomeOf, conditions.OpHasNoneOf, conditions.OpInContains:
		vs, err := o.Multi()
		if err != nil {
			return nil, err
		}
		if vs == nil {
			return nil, missing
		}
		switch op {
		case conditions.OpIn:
			return Terms{Field: field, Values: vs}, nil
		case conditions.OpNotIn:
			return present(field, Terms{Field: field, Values: vs}), nil
		case conditions.OpAll:
			if len(vs) == 0 {
				return Exists{Field: field}, nil
			}
			return And(terms(field, vs)...), nil
		case conditions.OpHasSomeOf:
			return Or(terms(field, vs)...), nil
		case conditions.OpHasNoneOf:
			return present(field, Or(terms(field, vs)...)), nil
		default:
			fs := make([]Filter, len(vs))
			for i, v := range vs {
				fs[i] = Regexp{Field: field, Pattern: containsPattern(conditions.Text(v))}
			}
			return Or(fs...), nil
		}

	case conditions.OpIsDay, conditions.OpIsNotDay:
		day, ok, err := o.ScalarDate(false)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, missing
		}
		day = day.UTC()
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		r := Range{Field: field, Gte: start, Lt: start.AddDate(0, 0, 1)}
		if op == conditions.OpIsDay {
			return r, nil
		}
		return present(field, r), nil
	}
	return nil, fmt.Errorf("%w: %q", types.ErrUnknownOperator, op)
}

// scalar picks the expected value the way evaluation does: integer,
// double, date, then string. Date expressions round up for greaterThan
// and lessThanOrEqualTo.
func scalar(op string, o conditions.Operands) (any, error) {
	switch {
	case o.Integer != nil:
		return o.Integer, nil
	case o.Double != nil:
		return o.Double, nil
	case o.Date != nil || o.DateExpr != "":
		roundUp := op == conditions.OpGreaterThan || op == conditions.OpLessThanOrEqualTo
		t, _, err := o.ScalarDate(roundUp)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
	return o.Value, nil
}

func terms(field string, vs []any) []Filter {
	fs := make([]Filter, len(vs))
	for i, v := range vs {
		fs[i] = Term{Field: field, Value: v}
	}
	return fs
}

func containsPattern(s string) string {
	return wildcard + regexp.QuoteMeta(s) + wildcard
}
