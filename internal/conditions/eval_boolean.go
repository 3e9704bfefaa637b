package conditions

import (
	"context"
	"strings"

	"github.com/solatis/condengine/internal/types"
)

// evalBoolean combines subConditions with the operator parameter ("and"
// unless "or"). A missing list matches; a present empty list yields the
// operator's identity. Evaluation stops at the first deciding result.
func evalBoolean(ctx context.Context, c *types.Condition, item types.Item, params Params, d *Dispatcher) (bool, error) {
	isAnd := true
	if op, ok := ParamOrDefault(c, "operator").AsString(); ok {
		isAnd = !strings.EqualFold(op, "or")
	}
	subs, ok := c.ConditionsParam("subConditions")
	if !ok {
		return true, nil
	}
	if len(subs) == 1 {
		return d.EvalWith(ctx, subs[0], item, params), nil
	}
	for _, sub := range subs {
		matched := d.EvalWith(ctx, sub, item, params)
		if isAnd && !matched {
			return false, nil
		}
		if !isAnd && matched {
			return true, nil
		}
	}
	return isAnd, nil
}

// evalNot negates subCondition. A missing sub-condition does not match.
func evalNot(ctx context.Context, c *types.Condition, item types.Item, params Params, d *Dispatcher) (bool, error) {
	sub, ok := c.ConditionParam("subCondition")
	if !ok {
		return false, nil
	}
	return !d.EvalWith(ctx, sub, item, params), nil
}

func evalMatchAll(context.Context, *types.Condition, types.Item, Params, *Dispatcher) (bool, error) {
	return true, nil
}

// evalIDs matches items whose id is (match=true) or is not (match=false)
// listed in ids.
func evalIDs(_ context.Context, c *types.Condition, item types.Item, _ Params, _ *Dispatcher) (bool, error) {
	match := true
	if b, ok := ParamOrDefault(c, "match").AsBool(); ok {
		match = b
	}
	listed := false
	if elems, ok := c.Param("ids").AsList(); ok {
		for _, e := range elems {
			if s, ok := e.AsString(); ok && s == item.ItemID() {
				listed = true
				break
			}
		}
	}
	return listed == match, nil
}
