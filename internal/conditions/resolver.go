// internal/conditions/resolver.go
package conditions

import (
	"sync"

	"github.com/solatis/condengine/internal/types"
)

/*
 * Type resolution.
 *
 * Binds every node of a condition tree to its ConditionType, following
 * parent-condition templates up the type graph. A node counts as resolved
 * only when its whole ancestor chain and all of its parameter subtrees
 * resolve; a failing parent unbinds the child again.
 *
 * Two graphs are walked here. Parameter sub-conditions form a tree owned by
 * the root and cannot loop. Parent conditions link types to templates and
 * may loop, so ascension carries the set of type ids already on the chain.
 * The set is copied whenever it grows, so sibling ascensions never see each
 * other's entries. Every recursive call, ascending or descending, counts
 * against the depth ceiling.
 *
 * Parent conditions are shared by all conditions of a type. Writes to them
 * happen under graphMu, taken once at the first ascension of a walk; readers
 * of the template graph (EffectiveCondition, EventTypeIDs) hold it shared.
 * Instance trees are owned by the caller and need no lock.
 *
 * Resolution of an already bound tree is a no-op that returns true, so a
 * refresh layer can re-run it freely after new types are deployed.
 */

// TypeRegistry looks up deployed definitions. Lookups return nil for ids
// that are not deployed. Implementations must be safe for concurrent use.
type TypeRegistry interface {
	ConditionType(id string) *types.ConditionType
	ActionType(id string) *types.ActionType
	ValueType(id string) *types.ValueType
}

// Resolver binds conditions and actions to their types.
type Resolver struct {
	registry   TypeRegistry
	cfg        config
	actionMemo *UnresolvedMemo
	ruleMemo   *UnresolvedMemo
}

// graphMu guards bindings inside parent-condition templates. Templates
// belong to registry types and are shared by every resolver reading that
// registry.
var graphMu sync.RWMutex

// NewResolver creates a resolver over registry.
func NewResolver(registry TypeRegistry, opts ...Option) *Resolver {
	return &Resolver{
		registry:   registry,
		cfg:        newConfig(opts),
		actionMemo: NewUnresolvedMemo(),
		ruleMemo:   NewUnresolvedMemo(),
	}
}

// Registry returns the registry the resolver reads from.
func (r *Resolver) Registry() TypeRegistry { return r.registry }

// Unresolved returns the memo of condition type ids that failed resolution.
func (r *Resolver) Unresolved() *UnresolvedMemo { return r.cfg.memo }

// ResolveConditionType binds c and everything below it. label names the
// owner (rule id, segment id) in log lines.
func (r *Resolver) ResolveConditionType(c *types.Condition, label string) bool {
	return r.resolve(c, label, nil, false, false, 0)
}

type typeChain map[string]struct{}

// with returns a copy of the chain extended by id.
func (tc typeChain) with(id string) typeChain {
	out := make(typeChain, len(tc)+1)
	for k := range tc {
		out[k] = struct{}{}
	}
	out[id] = struct{}{}
	return out
}

func (r *Resolver) resolve(c *types.Condition, label string, chain typeChain, ascending, locked bool, depth int) bool {
	log := r.cfg.logger
	if c == nil {
		log.Warn(logMsgNilCondition, logAttrContext, label)
		return false
	}
	if depth > r.cfg.maxDepth {
		log.Error(logMsgDepthExceeded, logAttrDepth, r.cfg.maxDepth, logAttrTypeID, c.TypeID, logAttrContext, label)
		return false
	}
	if ascending {
		if _, seen := chain[c.TypeID]; seen {
			log.Warn(logMsgTypeCycle, logAttrTypeID, c.TypeID, logAttrContext, label)
			return false
		}
		chain = chain.with(c.TypeID)
	}

	if c.Type == nil {
		if c.TypeID == "" {
			log.Warn(logMsgMissingTypeID, logAttrContext, label)
			return false
		}
		t := r.registry.ConditionType(c.TypeID)
		if t == nil {
			if r.cfg.memo.Add(c.TypeID) {
				log.Warn(logMsgUnresolvedType, logAttrTypeID, c.TypeID, logAttrContext, label)
			}
			return false
		}
		r.cfg.memo.Remove(c.TypeID)
		c.Type = t

		if t.ParentCondition != nil {
			next := chain
			if !ascending {
				next = chain.with(c.TypeID)
			}
			if !r.ascend(t.ParentCondition, label, next, locked, depth+1) {
				c.Type = nil
				log.Warn(logMsgParentUnresolved, logAttrTypeID, c.TypeID, logAttrContext, label)
				return false
			}
		}
	}

	for _, p := range c.Parameters() {
		for _, sub := range p.Value.Conditions() {
			if !r.resolve(sub, label, chain, false, locked, depth+1) {
				return false
			}
		}
	}
	return true
}

func (r *Resolver) ascend(parent *types.Condition, label string, chain typeChain, locked bool, depth int) bool {
	if !locked {
		graphMu.Lock()
		defer graphMu.Unlock()
	}
	return r.resolve(parent, label, chain, true, true, depth)
}

// ResolveActionType binds a to its action type.
func (r *Resolver) ResolveActionType(a *types.Action) bool {
	if a == nil {
		return false
	}
	if a.Type != nil {
		return true
	}
	at := r.registry.ActionType(a.TypeID)
	if at == nil {
		if r.actionMemo.Add(a.TypeID) {
			r.cfg.logger.Warn(logMsgUnresolvedActionType, logAttrActionTypeID, a.TypeID)
		}
		return false
	}
	r.actionMemo.Remove(a.TypeID)
	a.Type = at
	return true
}

// ResolveActionTypes binds every action of a rule. A rule without actions
// does not resolve. All actions are attempted even after a failure.
func (r *Resolver) ResolveActionTypes(ruleID string, actions []*types.Action) bool {
	if len(actions) == 0 {
		if r.ruleMemo.Add(ruleID) {
			r.cfg.logger.Warn(logMsgRuleWithoutActions, logAttrRuleID, ruleID)
		}
		return false
	}
	ok := true
	for _, a := range actions {
		if !r.ResolveActionType(a) {
			ok = false
		}
	}
	return ok
}

// ResolveValueType binds a property type to its value type. Unknown value
// types leave the binding empty.
func (r *Resolver) ResolveValueType(pt *types.PropertyType) bool {
	if pt == nil {
		return false
	}
	if pt.ValueType == nil {
		pt.ValueType = r.registry.ValueType(pt.ValueTypeID)
	}
	return pt.ValueType != nil
}
