// internal/types/rules.go
package types

/*
 * Domain types for rules, actions and property paths.
 *
 * Provides Rule, Action, ActionType, ValueType and PathSegment used by
 * internal/rules, internal/conditions and internal/query. These types are
 * wire-format agnostic; JSON conversion happens in internal/codec.
 *
 * Key types:
 *   - Rule: condition tree plus ordered actions
 *   - Action: parameterized reference to an ActionType
 *   - PathSegment: one component of a property path (key or index)
 */

// PathSegment represents one component of a property path.
// String for map keys, int for list indices.
type PathSegment struct {
	Key     string // map key (mutually exclusive with Index)
	Index   int    // list index (mutually exclusive with Key)
	IsIndex bool   // disambiguates Index=0 from unset
}

// ActionType describes an action template.
type ActionType struct {
	ID         string
	Name       string
	Executor   string
	Tags       []string
	Parameters []ParameterDefinition
}

// ValueType describes a property value type (string, integer, date, ...).
type ValueType struct {
	ID   string
	Tags []string
}

// Action is a parameterized action bound to a rule.
type Action struct {
	TypeID     string
	Type       *ActionType // bound by the resolver
	Parameters []Parameter
}

// Parameter returns the named action parameter.
func (a *Action) Parameter(name string) (Value, bool) {
	for _, p := range a.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return Value{}, false
}

// Rule represents a rule definition: when Condition matches an event,
// Actions run in order.
type Rule struct {
	ID                 string
	Name               string
	Priority           int
	Condition          *Condition
	Actions            []*Action
	RaiseEventOnlyOnce bool
}

// PropertyType declares a property of an item type and the value type of
// its content.
type PropertyType struct {
	ID          string
	Target      string     // item type the property belongs to
	ValueTypeID string
	ValueType   *ValueType // bound by the resolver
	Multivalued bool
}
