// internal/conditions/builder.go
package conditions

import (
	"errors"
	"time"

	"github.com/solatis/condengine/internal/types"
)

/*
 * Fluent condition construction.
 *
 *   b := NewBuilder(registry)
 *   c, err := b.And(
 *       b.ProfileProperty("properties.age").GreaterThan(18),
 *       b.EventProperty("eventType").In("view", "click"),
 *   ).Build()
 *
 * Each comparison sets the comparison operator and exactly one typed value
 * parameter, picked from the Go type of the argument: string ->
 * propertyValue, integers -> propertyValueInteger, floats ->
 * propertyValueDouble, time.Time -> propertyValueDate, DateExpr ->
 * propertyValueDateExpr, and the plural parameter for lists.
 *
 * Errors are deferred to Build so expressions compose without checks at
 * every step. And/Or without sub-conditions are rejected.
 */

// DateExpr marks a string as a date math expression ("now-7d").
type DateExpr string

// Builder creates condition trees bound to registry types.
type Builder struct {
	registry TypeRegistry
}

// NewBuilder creates a builder over registry. A nil registry leaves
// conditions unbound.
func NewBuilder(registry TypeRegistry) *Builder {
	return &Builder{registry: registry}
}

// Item is a condition under construction.
type Item struct {
	b   *Builder
	c   *types.Condition
	err error
}

// Build returns the condition or the first construction error.
func (it *Item) Build() (*types.Condition, error) {
	if it.err != nil {
		return nil, it.err
	}
	return it.c, nil
}

// Parameter sets a raw parameter on the condition.
func (it *Item) Parameter(name string, v any) *Item {
	if it.err == nil {
		it.c.Set(name, v)
	}
	return it
}

// And combines it with others.
func (it *Item) And(others ...*Item) *Item {
	return it.b.And(append([]*Item{it}, others...)...)
}

// Or combines it with others.
func (it *Item) Or(others ...*Item) *Item {
	return it.b.Or(append([]*Item{it}, others...)...)
}

// Not negates it.
func (it *Item) Not() *Item {
	return it.b.Not(it)
}

func (b *Builder) newCondition(typeID string) *types.Condition {
	c := types.NewCondition(typeID)
	if b.registry != nil {
		c.Type = b.registry.ConditionType(typeID)
	}
	return c
}

// Condition starts a condition of any type; set parameters with Parameter.
func (b *Builder) Condition(typeID string) *Item {
	return &Item{b: b, c: b.newCondition(typeID)}
}

// MatchAll matches every item.
func (b *Builder) MatchAll() *Item {
	return b.Condition(types.MatchAllConditionID)
}

// And requires every item to match.
func (b *Builder) And(items ...*Item) *Item {
	return b.boolean("and", items)
}

// Or requires one item to match.
func (b *Builder) Or(items ...*Item) *Item {
	return b.boolean("or", items)
}

func (b *Builder) boolean(op string, items []*Item) *Item {
	if len(items) == 0 {
		return &Item{b: b, err: types.ErrEmptySubConditions}
	}
	subs := make([]*types.Condition, 0, len(items))
	var errs []error
	for _, it := range items {
		if it == nil {
			errs = append(errs, types.ErrNilCondition)
			continue
		}
		if it.err != nil {
			errs = append(errs, it.err)
			continue
		}
		subs = append(subs, it.c)
	}
	if len(errs) > 0 {
		return &Item{b: b, err: errors.Join(errs...)}
	}
	c := b.newCondition(types.BooleanConditionID).
		SetParameter("operator", types.String(op)).
		SetParameter("subConditions", types.Conds(subs...))
	return &Item{b: b, c: c}
}

// Not negates item.
func (b *Builder) Not(item *Item) *Item {
	if item == nil {
		return &Item{b: b, err: types.ErrNilCondition}
	}
	if item.err != nil {
		return &Item{b: b, err: item.err}
	}
	c := b.newCondition(types.NotConditionID).SetParameter("subCondition", types.Cond(item.c))
	return &Item{b: b, c: c}
}

// Nested evaluates item against each object in the list at path.
func (b *Builder) Nested(path string, item *Item) *Item {
	if item == nil {
		return &Item{b: b, err: types.ErrNilCondition}
	}
	if item.err != nil {
		return &Item{b: b, err: item.err}
	}
	c := b.newCondition(types.NestedConditionID).
		SetParameter("path", types.String(path)).
		SetParameter("subCondition", types.Cond(item.c))
	return &Item{b: b, c: c}
}

// IDs matches items whose id is listed.
func (b *Builder) IDs(ids ...string) *Item {
	c := b.newCondition(types.IDsConditionID).
		SetParameter("ids", types.Strings(ids...)).
		SetParameter("match", types.Bool(true))
	return &Item{b: b, c: c}
}

// Property compares a property of any item.
func (b *Builder) Property(name string) *PropertyBuilder {
	return &PropertyBuilder{b: b, typeID: types.PropertyConditionID, name: name}
}

// ProfileProperty compares a profile property.
func (b *Builder) ProfileProperty(name string) *PropertyBuilder {
	return &PropertyBuilder{b: b, typeID: types.ProfilePropertyConditionID, name: name}
}

// SessionProperty compares a session property.
func (b *Builder) SessionProperty(name string) *PropertyBuilder {
	return &PropertyBuilder{b: b, typeID: types.SessionPropertyConditionID, name: name}
}

// EventProperty compares an event property.
func (b *Builder) EventProperty(name string) *PropertyBuilder {
	return &PropertyBuilder{b: b, typeID: types.EventPropertyConditionID, name: name}
}

// PropertyBuilder produces property comparisons.
type PropertyBuilder struct {
	b      *Builder
	typeID string
	name   string
}

func (p *PropertyBuilder) op(op string) *types.Condition {
	return p.b.newCondition(p.typeID).
		SetParameter(ParamPropertyName, types.String(p.name)).
		SetParameter(ParamComparisonOperator, types.String(op))
}

func (p *PropertyBuilder) scalar(op string, v any) *Item {
	c := p.op(op)
	name, val, err := scalarParameter(v)
	if err != nil {
		return &Item{b: p.b, err: err}
	}
	c.SetParameter(name, val)
	return &Item{b: p.b, c: c}
}

func (p *PropertyBuilder) multi(op string, vs []any) *Item {
	c := p.op(op)
	if len(vs) == 0 {
		c.SetParameter(ParamPropertyValues, types.List())
		return &Item{b: p.b, c: c}
	}
	name, _, err := scalarParameter(vs[0])
	if err != nil {
		return &Item{b: p.b, err: err}
	}
	elems := make([]types.Value, 0, len(vs))
	for _, v := range vs {
		n, val, err := scalarParameter(v)
		if err != nil {
			return &Item{b: p.b, err: err}
		}
		if n != name {
			return &Item{b: p.b, err: errors.Join(types.ErrInvalidParameter, errors.New("mixed value types in list"))}
		}
		elems = append(elems, val)
	}
	c.SetParameter(pluralParameter[name], types.List(elems...))
	return &Item{b: p.b, c: c}
}

var pluralParameter = map[string]string{
	ParamPropertyValue:         ParamPropertyValues,
	ParamPropertyValueInteger:  ParamPropertyValuesInteger,
	ParamPropertyValueDouble:   ParamPropertyValuesDouble,
	ParamPropertyValueDate:     ParamPropertyValuesDate,
	ParamPropertyValueDateExpr: ParamPropertyValuesDateExp,
}

func scalarParameter(v any) (string, types.Value, error) {
	switch x := v.(type) {
	case string:
		return ParamPropertyValue, types.String(x), nil
	case DateExpr:
		return ParamPropertyValueDateExpr, types.String(string(x)), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32:
		return ParamPropertyValueInteger, types.Of(x), nil
	case float32, float64:
		return ParamPropertyValueDouble, types.Of(x), nil
	case time.Time:
		return ParamPropertyValueDate, types.Date(x), nil
	case bool:
		return ParamPropertyValue, types.Bool(x), nil
	}
	return "", types.Null(), errors.Join(types.ErrInvalidParameter, errors.New("unsupported comparison value type"))
}

func (p *PropertyBuilder) Equals(v any) *Item               { return p.scalar(OpEquals, v) }
func (p *PropertyBuilder) NotEquals(v any) *Item            { return p.scalar(OpNotEquals, v) }
func (p *PropertyBuilder) GreaterThan(v any) *Item          { return p.scalar(OpGreaterThan, v) }
func (p *PropertyBuilder) GreaterThanOrEqualTo(v any) *Item { return p.scalar(OpGreaterThanOrEqualTo, v) }
func (p *PropertyBuilder) LessThan(v any) *Item             { return p.scalar(OpLessThan, v) }
func (p *PropertyBuilder) LessThanOrEqualTo(v any) *Item    { return p.scalar(OpLessThanOrEqualTo, v) }
func (p *PropertyBuilder) Contains(s string) *Item          { return p.scalar(OpContains, s) }
func (p *PropertyBuilder) NotContains(s string) *Item       { return p.scalar(OpNotContains, s) }
func (p *PropertyBuilder) StartsWith(s string) *Item        { return p.scalar(OpStartsWith, s) }
func (p *PropertyBuilder) EndsWith(s string) *Item          { return p.scalar(OpEndsWith, s) }
func (p *PropertyBuilder) MatchesRegex(re string) *Item     { return p.scalar(OpMatchesRegex, re) }
func (p *PropertyBuilder) IsDay(v any) *Item                { return p.scalar(OpIsDay, v) }
func (p *PropertyBuilder) IsNotDay(v any) *Item             { return p.scalar(OpIsNotDay, v) }
func (p *PropertyBuilder) In(vs ...any) *Item               { return p.multi(OpIn, vs) }
func (p *PropertyBuilder) NotIn(vs ...any) *Item            { return p.multi(OpNotIn, vs) }
func (p *PropertyBuilder) All(vs ...any) *Item              { return p.multi(OpAll, vs) }
func (p *PropertyBuilder) HasSomeOf(vs ...any) *Item        { return p.multi(OpHasSomeOf, vs) }
func (p *PropertyBuilder) HasNoneOf(vs ...any) *Item        { return p.multi(OpHasNoneOf, vs) }
func (p *PropertyBuilder) InContains(vs ...any) *Item       { return p.multi(OpInContains, vs) }

// Between bounds the property inclusively; both bounds must share a type.
func (p *PropertyBuilder) Between(lower, upper any) *Item { return p.multi(OpBetween, []any{lower, upper}) }

// Exists matches when the property is present.
func (p *PropertyBuilder) Exists() *Item { return &Item{b: p.b, c: p.op(OpExists)} }

// Missing matches when the property is absent.
func (p *PropertyBuilder) Missing() *Item { return &Item{b: p.b, c: p.op(OpMissing)} }
