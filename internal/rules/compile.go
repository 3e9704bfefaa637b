// internal/rules/compile.go
package rules

import (
	"slices"

	"github.com/solatis/condengine/internal/conditions"
	"github.com/solatis/condengine/internal/types"
)

/*
 * Rule compilation.
 *
 * Compiling binds a rule's condition tree and actions to their deployed
 * types and records which event types the condition can match. A rule whose
 * types are not all deployed compiles to an invalid rule; it is kept and
 * compiled again by Refresh once definitions change.
 *
 * The compiled rule owns a copy of the rule, so recompiling never mutates a
 * tree another goroutine may be evaluating.
 *
 * Event type ids come from the resolver's extraction. A condition that names
 * no event type, negates one, or reads it from a parameter is indexed under
 * "*" and is evaluated for every event.
 */

// CompiledRule is a rule bound to the types deployed when it was compiled.
type CompiledRule struct {
	Rule         *types.Rule
	Valid        bool
	EventTypeIDs []string
}

// Compile resolves a copy of rule. Action types are only resolved once the
// condition resolves.
func Compile(resolver *conditions.Resolver, rule *types.Rule) *CompiledRule {
	r := cloneRule(rule)
	cr := &CompiledRule{Rule: r}

	valid := r.Condition != nil && resolver.ResolveConditionType(r.Condition, "rule "+r.ID)
	valid = valid && resolver.ResolveActionTypes(r.ID, r.Actions)
	cr.Valid = valid

	if r.Condition != nil && r.Condition.IsResolved() {
		cr.EventTypeIDs = resolver.EventTypeIDs(r.Condition)
	}
	if len(cr.EventTypeIDs) == 0 {
		cr.EventTypeIDs = []string{types.AnyEventType}
	}
	return cr
}

// Accepts reports whether events of eventType are evaluated against the rule.
func (cr *CompiledRule) Accepts(eventType string) bool {
	return slices.Contains(cr.EventTypeIDs, eventType) || slices.Contains(cr.EventTypeIDs, types.AnyEventType)
}

// ID returns the rule id.
func (cr *CompiledRule) ID() string { return cr.Rule.ID }

func cloneRule(rule *types.Rule) *types.Rule {
	out := *rule
	if rule.Condition != nil {
		out.Condition = rule.Condition.Clone()
	}
	out.Actions = make([]*types.Action, len(rule.Actions))
	for i, a := range rule.Actions {
		if a == nil {
			continue
		}
		cp := *a
		cp.Parameters = slices.Clone(a.Parameters)
		out.Actions[i] = &cp
	}
	return &out
}

// byPriority orders rules by ascending priority, then id.
func byPriority(a, b *CompiledRule) int {
	if a.Rule.Priority != b.Rule.Priority {
		return a.Rule.Priority - b.Rule.Priority
	}
	switch {
	case a.Rule.ID < b.Rule.ID:
		return -1
	case a.Rule.ID > b.Rule.ID:
		return 1
	}
	return 0
}
