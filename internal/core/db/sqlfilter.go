// internal/core/db/sqlfilter.go
package db

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // dialect registration
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/query"
	"github.com/solatis/condengine/internal/types"
)

/*
 * Compilation of query filters to SQL over the item index.
 *
 * Every stored item has one row in items and one row per indexed path and
 * scalar value in item_fields (see fieldRows). A leaf filter becomes an
 * EXISTS sub-select over item_fields correlated with the outer item and
 * with the document scope it is evaluated in:
 *
 *   scope ''          the item itself
 *   scope n.doc_key   one element of a list of objects, inside Nested
 *
 * Value columns carry every domain a value can be compared in, filled at
 * index time with the same coercions evaluation uses:
 *
 *   str_value   folded text form (Text)
 *   num_value   numeric form when the value is or parses as a number
 *   time_value  fixed-width UTC form when the value is or parses as a date
 *   kind        which of those the original value was
 *
 * The domain of a comparison is picked from the filter's operand, so an
 * integer operand compares num_value and a date operand time_value.
 *
 * Geo filters have no SQL form and fail with ErrUnsupportedFilter.
 */

const (
	dialectSqlite   = "sqlite3"
	dialectPostgres = "postgres"

	tableItems  = "items"
	tableFields = "item_fields"
	aliasItem   = "i"

	kindPath   = "p"
	kindString = "s"
	kindNumber = "n"
	kindDate   = "t"
	kindBool   = "b"

	// timeLayout sorts lexicographically in instant order.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

var (
	sqlTrue  = goqu.L("1 = 1")
	sqlFalse = goqu.L("1 = 0")
)

// filterCompiler turns one filter tree into a goqu expression. Aliases are
// numbered per compilation so nested sub-selects never shadow each other.
type filterCompiler struct {
	builder goqu.DialectWrapper
	dialect string
	aliases int
}

func newFilterCompiler(dialect string) (*filterCompiler, error) {
	switch dialect {
	case dialectSqlite, dialectPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", dialect)
	}
	return &filterCompiler{builder: goqu.Dialect(dialect), dialect: dialect}, nil
}

// scope identifies the document a leaf is evaluated in.
type scope struct {
	key exp.Expression
}

var rootScope = scope{key: goqu.V("")}

func (fc *filterCompiler) alias(prefix string) string {
	fc.aliases++
	return fmt.Sprintf("%s%d", prefix, fc.aliases)
}

func col(alias, name string) exp.IdentifierExpression {
	return goqu.I(alias + "." + name)
}

// compile returns the boolean expression for f evaluated against the
// outer item aliased "i".
func (fc *filterCompiler) compile(f query.Filter, s scope) (exp.Expression, error) {
	switch x := f.(type) {
	case query.MatchAll:
		return sqlTrue, nil
	case query.IDs:
		if len(x.Values) == 0 {
			return sqlFalse, nil
		}
		return col(aliasItem, "item_id").In(x.Values), nil
	case query.Exists:
		return fc.exists(s, x.Field, nil), nil
	case query.Term:
		return fc.exists(s, x.Field, fc.sameValue(x.Value)), nil
	case query.Terms:
		if len(x.Values) == 0 {
			return sqlFalse, nil
		}
		alts := make([]func(string) exp.Expression, 0, len(x.Values))
		for _, v := range x.Values {
			alts = append(alts, fc.sameValue(v))
		}
		return fc.exists(s, x.Field, func(a string) exp.Expression {
			ors := make([]exp.Expression, len(alts))
			for i, alt := range alts {
				ors[i] = alt(a)
			}
			return goqu.Or(ors...)
		}), nil
	case query.Range:
		pred, err := fc.rangeOf(x)
		if err != nil {
			return nil, err
		}
		return fc.exists(s, x.Field, pred), nil
	case query.Prefix:
		want := conditions.Text(x.Value)
		return fc.exists(s, x.Field, func(a string) exp.Expression {
			return goqu.Func("substr", col(a, "str_value"), 1, utf8.RuneCountInString(want)).Eq(want)
		}), nil
	case query.Regexp:
		return fc.exists(s, x.Field, fc.regexp(x.Pattern)), nil
	case query.Bool:
		return fc.boolean(x, s)
	case query.Nested:
		return fc.nested(x, s)
	case query.GeoDistance, query.GeoBoundingBox:
		return nil, fmt.Errorf("%w: %T", types.ErrUnsupportedFilter, f)
	case nil:
		return nil, fmt.Errorf("%w: nil filter", types.ErrUnsupportedFilter)
	}
	return nil, fmt.Errorf("%w: %T", types.ErrUnsupportedFilter, f)
}

func (fc *filterCompiler) boolean(b query.Bool, s scope) (exp.Expression, error) {
	parts := make([]exp.Expression, 0, len(b.Must)+len(b.MustNot)+1)
	for _, sub := range b.Must {
		e, err := fc.compile(sub, s)
		if err != nil {
			return nil, err
		}
		parts = append(parts, e)
	}
	if len(b.Should) > 0 {
		ors := make([]exp.Expression, 0, len(b.Should))
		for _, sub := range b.Should {
			e, err := fc.compile(sub, s)
			if err != nil {
				return nil, err
			}
			ors = append(ors, e)
		}
		parts = append(parts, goqu.Or(ors...))
	}
	for _, sub := range b.MustNot {
		e, err := fc.compile(sub, s)
		if err != nil {
			return nil, err
		}
		parts = append(parts, goqu.L("NOT (?)", e))
	}
	switch len(parts) {
	case 0:
		return sqlTrue, nil
	case 1:
		return parts[0], nil
	}
	return goqu.And(parts...), nil
}

// nested matches when one element of the list at Path satisfies the inner
// filter. Each element owns exactly one path row for Path itself.
func (fc *filterCompiler) nested(n query.Nested, s scope) (exp.Expression, error) {
	a := fc.alias("n")
	inner, err := fc.compile(n.Filter, scope{key: col(a, "doc_key")})
	if err != nil {
		return nil, err
	}
	sub := fc.builder.
		From(goqu.T(tableFields).As(a)).
		Select(goqu.L("1")).
		Where(
			col(a, "item_type").Eq(col(aliasItem, "item_type")),
			col(a, "item_id").Eq(col(aliasItem, "item_id")),
			col(a, "parent_key").Eq(s.key),
			col(a, "nest_path").Eq(n.Path),
			col(a, "field").Eq(n.Path),
			col(a, "kind").Eq(kindPath),
			inner,
		)
	return goqu.L("EXISTS ?", sub), nil
}

// exists builds the correlated sub-select for one field. A nil predicate
// matches any row for the field, path rows included.
func (fc *filterCompiler) exists(s scope, field string, pred func(alias string) exp.Expression) exp.Expression {
	a := fc.alias("f")
	where := []exp.Expression{
		col(a, "item_type").Eq(col(aliasItem, "item_type")),
		col(a, "item_id").Eq(col(aliasItem, "item_id")),
		col(a, "doc_key").Eq(s.key),
		col(a, "field").Eq(field),
	}
	if pred != nil {
		where = append(where, col(a, "kind").Neq(kindPath), pred(a))
	}
	sub := fc.builder.
		From(goqu.T(tableFields).As(a)).
		Select(goqu.L("1")).
		Where(where...)
	return goqu.L("EXISTS ?", sub)
}

// sameValue mirrors conditions.SameValue: dates compare as instants on
// either side, numbers numerically against numbers, everything else as
// folded text.
func (fc *filterCompiler) sameValue(v any) func(alias string) exp.Expression {
	if t, ok := v.(time.Time); ok {
		want := formatTime(t)
		return func(a string) exp.Expression { return col(a, "time_value").Eq(want) }
	}
	text := conditions.Text(v)
	asDate, dateErr := conditions.ParseDate(v)
	if isNumber(v) {
		n, _ := toFloat(v)
		return func(a string) exp.Expression {
			alts := []exp.Expression{
				goqu.And(col(a, "kind").Eq(kindNumber), col(a, "num_value").Eq(n)),
				goqu.And(col(a, "kind").In(kindString, kindBool), col(a, "str_value").Eq(text)),
			}
			if dateErr == nil {
				alts = append(alts, goqu.And(col(a, "kind").Eq(kindDate), col(a, "time_value").Eq(formatTime(asDate))))
			}
			return goqu.Or(alts...)
		}
	}
	return func(a string) exp.Expression {
		byText := goqu.And(col(a, "kind").Neq(kindDate), col(a, "str_value").Eq(text))
		if dateErr != nil {
			return byText
		}
		return goqu.Or(byText, goqu.And(col(a, "kind").Eq(kindDate), col(a, "time_value").Eq(formatTime(asDate))))
	}
}

// rangeOf compares every bound against the same value row.
func (fc *filterCompiler) rangeOf(r query.Range) (func(alias string) exp.Expression, error) {
	type bound struct {
		v  any
		op func(exp.Comparable, any) exp.Expression
	}
	bounds := []bound{
		{r.Gt, func(c exp.Comparable, v any) exp.Expression { return c.Gt(v) }},
		{r.Gte, func(c exp.Comparable, v any) exp.Expression { return c.Gte(v) }},
		{r.Lt, func(c exp.Comparable, v any) exp.Expression { return c.Lt(v) }},
		{r.Lte, func(c exp.Comparable, v any) exp.Expression { return c.Lte(v) }},
	}
	for _, b := range bounds {
		if b.v == nil {
			continue
		}
		if _, ok := b.v.(time.Time); ok || isNumber(b.v) {
			continue
		}
		if _, ok := b.v.(string); !ok {
			return nil, fmt.Errorf("%w: range bound %T", types.ErrUnsupportedFilter, b.v)
		}
	}
	return func(a string) exp.Expression {
		parts := make([]exp.Expression, 0, len(bounds))
		for _, b := range bounds {
			switch v := b.v.(type) {
			case nil:
			case time.Time:
				parts = append(parts, b.op(col(a, "time_value"), formatTime(v)))
			case string:
				parts = append(parts, b.op(col(a, "str_value"), conditions.Text(v)))
			default:
				n, _ := toFloat(v)
				parts = append(parts, b.op(col(a, "num_value"), n))
			}
		}
		if len(parts) == 0 {
			return sqlTrue
		}
		return goqu.And(parts...)
	}, nil
}

// regexp anchors the pattern like query.Match does. SQLite calls
// the regexp function registered by Open; PostgreSQL uses its own engine,
// which has no inline flag groups but lets "." match newlines.
func (fc *filterCompiler) regexp(pattern string) func(alias string) exp.Expression {
	if fc.dialect == dialectPostgres {
		p := "^(?:" + strings.ReplaceAll(pattern, "(?s:.*)", ".*") + ")$"
		return func(a string) exp.Expression { return goqu.L("? ~ ?", col(a, "str_value"), p) }
	}
	return func(a string) exp.Expression { return goqu.L("? REGEXP ?", col(a, "str_value"), pattern) }
}

// countQuery counts items of itemType matching f.
func (fc *filterCompiler) countQuery(f query.Filter, itemType string) (string, []any, error) {
	where, err := fc.compile(f, rootScope)
	if err != nil {
		return "", nil, err
	}
	return fc.builder.
		From(goqu.T(tableItems).As(aliasItem)).
		Select(goqu.COUNT(goqu.Star()).As("n")).
		Where(col(aliasItem, "item_type").Eq(itemType), where).
		Prepared(true).
		ToSQL()
}

// selectQuery lists the bodies of items of itemType matching f.
func (fc *filterCompiler) selectQuery(f query.Filter, itemType string, limit uint) (string, []any, error) {
	where, err := fc.compile(f, rootScope)
	if err != nil {
		return "", nil, err
	}
	ds := fc.builder.
		From(goqu.T(tableItems).As(aliasItem)).
		Select(col(aliasItem, "body")).
		Where(col(aliasItem, "item_type").Eq(itemType), where).
		Order(col(aliasItem, "item_id").Asc())
	if limit > 0 {
		ds = ds.Limit(limit)
	}
	return ds.Prepared(true).ToSQL()
}

// aggregateQuery counts matching items per raw value of agg.Field,
// largest buckets first.
func (fc *filterCompiler) aggregateQuery(f query.Filter, agg conditions.Aggregate, itemType string) (string, []any, error) {
	where, err := fc.compile(f, rootScope)
	if err != nil {
		return "", nil, err
	}
	const v = "v"
	conds := []exp.Expression{
		col(aliasItem, "item_type").Eq(itemType),
		col(v, "doc_key").Eq(""),
		col(v, "field").Eq(agg.Field),
		col(v, "kind").Neq(kindPath),
		where,
	}
	if agg.NumPartitions > 0 {
		conds = append(conds, goqu.L("? % ? = ?", col(v, "hash_value"), agg.NumPartitions, agg.Partition))
	}
	ds := fc.builder.
		From(goqu.T(tableItems).As(aliasItem)).
		InnerJoin(goqu.T(tableFields).As(v), goqu.On(
			col(v, "item_type").Eq(col(aliasItem, "item_type")),
			col(v, "item_id").Eq(col(aliasItem, "item_id")),
		)).
		Select(col(v, "raw_value").As("value"), goqu.COUNT(goqu.Star()).As("n")).
		Where(conds...).
		GroupBy(col(v, "raw_value")).
		Order(goqu.I("n").Desc(), goqu.I("value").Asc())
	if agg.Size > 0 {
		ds = ds.Limit(uint(agg.Size))
	}
	return ds.Prepared(true).ToSQL()
}

// CompileFilter renders the count query for f in the given dialect
// ("sqlite3" or "postgres").
func CompileFilter(dialect string, f query.Filter, itemType string) (string, []any, error) {
	fc, err := newFilterCompiler(dialect)
	if err != nil {
		return "", nil, err
	}
	sql, args, err := fc.countQuery(f, itemType)
	if err != nil {
		if errors.Is(err, types.ErrUnsupportedFilter) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("build count query: %w", err)
	}
	return sql, args, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
