// internal/conditions/contextual.go
package conditions

import (
	"fmt"
	"strings"

	"github.com/solatis/condengine/internal/types"
)

/*
 * Effective and contextual conditions.
 *
 * A condition type may be declared as a template over a parent condition:
 * eventTypeCondition is an eventPropertyCondition on "eventType" whose
 * expected value is "parameter::eventTypeId". Evaluating such a condition
 * means evaluating its effective condition, built from the root of the
 * parent chain:
 *
 *   1. copy the root parent
 *   2. add parameters of intermediate parents the root lacks
 *   3. overlay the condition's own parameters
 *
 * and then its contextual condition, where every "parameter::name" string
 * is replaced by the named value from the context. The context is seeded
 * with the declared defaults of every type in the chain, the condition's
 * own parameters, then the parameters of each intermediate parent
 * (substituted first, so templates may forward references).
 *
 * Params is copy-on-extend: sub-conditions receive the context of their
 * enclosing effective condition and never see sibling bindings.
 */

const (
	parameterPrefix = "parameter::"
	scriptPrefix    = "script::"
)

// Params holds the values parameter references resolve against.
type Params map[string]types.Value

// with returns a copy of p overlaid with ps.
func (p Params) with(ps []types.Parameter) Params {
	out := make(Params, len(p)+len(ps))
	for k, v := range p {
		out[k] = v
	}
	for _, e := range ps {
		out[e.Name] = e.Value
	}
	return out
}

// withDefaults returns a copy of p with absent entries taken from defs.
func (p Params) withDefaults(defs []types.ParameterDefinition) Params {
	out := make(Params, len(p)+len(defs))
	for k, v := range p {
		out[k] = v
	}
	for _, d := range defs {
		if _, ok := out[d.ID]; !ok && !d.DefaultValue.IsNull() {
			out[d.ID] = d.DefaultValue
		}
	}
	return out
}

// ParamOrDefault returns the named parameter of c, falling back to the
// default its type declares.
func ParamOrDefault(c *types.Condition, name string) types.Value {
	if v, ok := c.Parameter(name); ok && !v.IsNull() {
		return v
	}
	if c.Type != nil {
		for _, d := range c.Type.Parameters {
			if d.ID == name {
				return d.DefaultValue
			}
		}
	}
	return types.Null()
}

// EffectiveCondition expands a parent-based condition into the condition
// its root template describes, and returns it with the context its
// references resolve against. Conditions without a parent are returned
// as-is with params. c is resolved first if needed.
func (r *Resolver) EffectiveCondition(c *types.Condition, params Params) (*types.Condition, Params, error) {
	if c == nil {
		return nil, nil, types.ErrNilCondition
	}
	if c.Type == nil && !r.ResolveConditionType(c, "effective condition") {
		return nil, nil, fmt.Errorf("%w: %s", types.ErrUnresolvedCondition, c.TypeID)
	}
	if c.Type.ParentCondition == nil {
		return c, params, nil
	}

	eff, ctx, err := r.expand(c, params)
	if err != nil {
		return nil, nil, err
	}
	if !r.ResolveConditionType(eff, "effective condition") {
		return nil, nil, fmt.Errorf("%w: effective condition of %s", types.ErrUnresolvedCondition, c.TypeID)
	}
	r.cfg.logger.Debug(logMsgEffectiveCondition, logAttrTypeID, c.TypeID, logAttrEffective, eff.TypeID)
	return eff, ctx, nil
}

func (r *Resolver) expand(c *types.Condition, params Params) (*types.Condition, Params, error) {
	graphMu.RLock()
	defer graphMu.RUnlock()

	visited := map[string]struct{}{c.TypeID: {}}
	var chain []*types.Condition
	for cur := c; cur.Type.ParentCondition != nil; {
		p := cur.Type.ParentCondition
		if len(chain) >= r.cfg.maxDepth {
			return nil, nil, types.ErrRecursionDepthExceeded
		}
		if _, seen := visited[p.TypeID]; seen {
			return nil, nil, fmt.Errorf("%w: %s", types.ErrTypeCycle, p.TypeID)
		}
		if p.Type == nil {
			return nil, nil, fmt.Errorf("%w: parent %s", types.ErrUnresolvedCondition, p.TypeID)
		}
		visited[p.TypeID] = struct{}{}
		chain = append(chain, p)
		cur = p
	}
	root := chain[len(chain)-1]
	intermediates := chain[:len(chain)-1]

	ctx := params.with(c.Parameters()).withDefaults(c.Type.Parameters)
	for _, p := range chain {
		ctx = ctx.withDefaults(p.Type.Parameters)
	}
	for _, p := range intermediates {
		var sub []types.Parameter
		for _, e := range p.Parameters() {
			v, err := substitute(e.Value, ctx)
			if err != nil {
				return nil, nil, err
			}
			if !v.IsNull() {
				sub = append(sub, types.Parameter{Name: e.Name, Value: v})
			}
		}
		ctx = ctx.with(sub)
	}

	eff := root.Clone()
	for _, p := range intermediates {
		for _, e := range p.Parameters() {
			if _, ok := eff.Parameter(e.Name); !ok {
				eff.SetParameter(e.Name, e.Value.Clone())
			}
		}
	}
	for _, e := range c.Parameters() {
		eff.SetParameter(e.Name, e.Value.Clone())
	}
	return eff, ctx, nil
}

// ContextualCondition substitutes parameter references in c's parameters.
// c is returned unchanged when it holds no references. A reference to an
// absent parameter yields a nil condition.
func ContextualCondition(c *types.Condition, params Params) (*types.Condition, error) {
	if c == nil {
		return nil, nil
	}
	ps := c.Parameters()
	if !hasReferences(ps) {
		return c, nil
	}
	sub, null, err := substituteParameters(ps, params)
	if err != nil || null {
		return nil, err
	}
	out := &types.Condition{TypeID: c.TypeID, Type: c.Type}
	out.SetParameters(sub)
	return out, nil
}

func hasReferences(ps []types.Parameter) bool {
	for _, p := range ps {
		if isReference(p.Value) {
			return true
		}
	}
	return false
}

func isReference(v types.Value) bool {
	switch v.Kind() {
	case types.KindString:
		s, _ := v.AsString()
		return strings.HasPrefix(s, parameterPrefix) || strings.HasPrefix(s, scriptPrefix)
	case types.KindList:
		elems, _ := v.AsList()
		for _, e := range elems {
			if isReference(e) {
				return true
			}
		}
	case types.KindMap:
		entries, _ := v.AsMap()
		return hasReferences(entries)
	}
	return false
}

// substituteParameters replaces references in ps. null reports that a
// reference resolved to nothing, which voids the enclosing map.
func substituteParameters(ps []types.Parameter, params Params) ([]types.Parameter, bool, error) {
	out := make([]types.Parameter, 0, len(ps))
	for _, p := range ps {
		v, err := substitute(p.Value, params)
		if err != nil {
			return nil, false, err
		}
		if v.IsNull() && isReference(p.Value) {
			return nil, true, nil
		}
		out = append(out, types.Parameter{Name: p.Name, Value: v})
	}
	return out, false, nil
}

func substitute(v types.Value, params Params) (types.Value, error) {
	switch v.Kind() {
	case types.KindString:
		s, _ := v.AsString()
		if name, ok := strings.CutPrefix(s, parameterPrefix); ok {
			return params[name], nil
		}
		if strings.HasPrefix(s, scriptPrefix) {
			return types.Null(), fmt.Errorf("%w: %s", types.ErrUnsupportedScript, s)
		}
	case types.KindList:
		if !isReference(v) {
			return v, nil
		}
		elems, _ := v.AsList()
		out := make([]types.Value, 0, len(elems))
		for _, e := range elems {
			x, err := substitute(e, params)
			if err != nil {
				return types.Null(), err
			}
			if !x.IsNull() {
				out = append(out, x)
			}
		}
		return types.List(out...), nil
	case types.KindMap:
		entries, _ := v.AsMap()
		if !hasReferences(entries) {
			return v, nil
		}
		sub, null, err := substituteParameters(entries, params)
		if err != nil || null {
			return types.Null(), err
		}
		return types.Map(sub...), nil
	}
	return v, nil
}
