// internal/types/condition.go
package types

/*
 * Condition data model.
 *
 * Condition is a named, parameterized node. TypeID names its ConditionType;
 * Type is the bound descriptor, set only by the resolver. A condition is
 * resolved iff Type is non-nil.
 *
 * Parameters are kept as an ordered slice rather than a Go map: evaluation
 * does not care about order, but serialization must reproduce it exactly.
 * SetParameter on an existing name replaces the value in place.
 *
 * Sub-conditions are owned exclusively by their parent's parameter slot, so
 * a single tree cannot contain cycles. ConditionType.ParentCondition links
 * types to templates and forms a separate graph that may.
 */

// Parameter is one named parameter value.
type Parameter struct {
	Name  string
	Value Value
}

// Condition is a node of a condition tree.
type Condition struct {
	TypeID string         // condition type identifier
	Type   *ConditionType // bound by the resolver, nil when unresolved
	params []Parameter
}

// NewCondition creates an unresolved condition of the given type id.
func NewCondition(typeID string) *Condition {
	return &Condition{TypeID: typeID}
}

// NewTypedCondition creates a condition already bound to t.
func NewTypedCondition(t *ConditionType) *Condition {
	return &Condition{TypeID: t.ID, Type: t}
}

// IsResolved reports whether the condition has a bound type.
func (c *Condition) IsResolved() bool {
	return c != nil && c.Type != nil
}

// Parameter returns the named parameter value.
func (c *Condition) Parameter(name string) (Value, bool) {
	for _, p := range c.params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return Value{}, false
}

// Param returns the named parameter value, or Null when absent.
func (c *Condition) Param(name string) Value {
	v, _ := c.Parameter(name)
	return v
}

// SetParameter sets a parameter, keeping the position of an existing one.
func (c *Condition) SetParameter(name string, v Value) *Condition {
	for i := range c.params {
		if c.params[i].Name == name {
			c.params[i].Value = v
			return c
		}
	}
	c.params = append(c.params, Parameter{Name: name, Value: v})
	return c
}

// Set converts v with Of and sets it as a parameter.
func (c *Condition) Set(name string, v any) *Condition {
	return c.SetParameter(name, Of(v))
}

// DeleteParameter removes a parameter if present.
func (c *Condition) DeleteParameter(name string) {
	for i := range c.params {
		if c.params[i].Name == name {
			c.params = append(c.params[:i], c.params[i+1:]...)
			return
		}
	}
}

// Parameters returns the parameters in insertion order.
// The returned slice is a copy; values share nested conditions.
func (c *Condition) Parameters() []Parameter {
	out := make([]Parameter, len(c.params))
	copy(out, c.params)
	return out
}

// SetParameters replaces all parameters.
func (c *Condition) SetParameters(ps []Parameter) {
	c.params = append([]Parameter(nil), ps...)
}

// StringParam returns a string parameter. Null and absent both report false.
func (c *Condition) StringParam(name string) (string, bool) {
	return c.Param(name).AsString()
}

// ConditionParam returns a nested condition parameter.
func (c *Condition) ConditionParam(name string) (*Condition, bool) {
	return c.Param(name).AsCondition()
}

// ConditionsParam returns the conditions in a list parameter.
// Reports false when the parameter is absent or not a list.
func (c *Condition) ConditionsParam(name string) ([]*Condition, bool) {
	v := c.Param(name)
	if v.Kind() != KindList {
		return nil, false
	}
	return v.Conditions(), true
}

// Clone deep-copies the tree. Type bindings are shared; types are read-only.
func (c *Condition) Clone() *Condition {
	if c == nil {
		return nil
	}
	out := &Condition{TypeID: c.TypeID, Type: c.Type}
	if c.params != nil {
		out.params = make([]Parameter, len(c.params))
		for i, p := range c.params {
			out.params[i] = Parameter{Name: p.Name, Value: p.Value.Clone()}
		}
	}
	return out
}

// Equal compares type ids and parameters in order. Bindings are ignored.
func (c *Condition) Equal(o *Condition) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.TypeID != o.TypeID || len(c.params) != len(o.params) {
		return false
	}
	for i := range c.params {
		if c.params[i].Name != o.params[i].Name || !c.params[i].Value.Equal(o.params[i].Value) {
			return false
		}
	}
	return true
}

func (c *Condition) String() string {
	if c == nil {
		return "<nil>"
	}
	return c.TypeID + "{" + formatParameters(c.params) + "}"
}

// ParameterDefinition describes one parameter a condition or action type accepts.
type ParameterDefinition struct {
	ID           string
	Type         string
	Multivalued  bool
	DefaultValue Value
}

// ConditionType is a named condition template loaded from definitions.
// ConditionEvaluator and QueryBuilder name the strategies registered with the
// dispatchers; a type without them delegates to ParentCondition.
type ConditionType struct {
	ID                 string
	Name               string
	Tags               []string
	ConditionEvaluator string
	QueryBuilder       string
	ParentCondition    *Condition
	Parameters         []ParameterDefinition
}
