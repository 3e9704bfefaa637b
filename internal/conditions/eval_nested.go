package conditions

import (
	"context"
	"fmt"

	"github.com/solatis/condengine/internal/types"
)

// evalNested evaluates subCondition against each map element of the list
// at path, re-rooted as a synthetic item of the same kind. It matches on
// the first matching element. Only profiles and sessions carry nested data.
func evalNested(ctx context.Context, c *types.Condition, item types.Item, params Params, d *Dispatcher) (bool, error) {
	path, ok := c.StringParam("path")
	if !ok || path == "" {
		return false, fmt.Errorf("%w: nestedCondition needs path", types.ErrMissingParameter)
	}
	sub, ok := c.ConditionParam("subCondition")
	if !ok {
		return false, fmt.Errorf("%w: nestedCondition needs subCondition", types.ErrMissingParameter)
	}
	switch item.(type) {
	case *types.Profile, *types.Session:
	default:
		return false, nil
	}

	segs, err := ParsePath(path)
	if err != nil {
		return false, err
	}
	if len(segs) < 2 || segs[0].IsIndex || (segs[0].Key != "properties" && segs[0].Key != "systemProperties") {
		return false, fmt.Errorf("%w: nested path %q must start with properties or systemProperties", types.ErrInvalidPath, path)
	}

	res := d.cfg.accessors.GetPath(item, segs)
	elems, ok := asSlice(res.Value)
	if !res.Found || !ok {
		return false, nil
	}
	for _, e := range elems {
		m, ok := e.(map[string]any)
		if !ok {
			d.cfg.logger.Debug(logMsgNestedEvaluation, logAttrPath, path, logAttrError, "element is not an object")
			continue
		}
		synthetic, err := nestedItem(item, segs, m)
		if err != nil {
			return false, err
		}
		if d.EvalWith(ctx, sub, synthetic, params) {
			return true, nil
		}
	}
	return false, nil
}

// nestedItem builds an item of item's kind holding element at the place
// segs points to.
func nestedItem(item types.Item, segs []types.PathSegment, element map[string]any) (types.Item, error) {
	var value any = element
	for i := len(segs) - 1; i >= 1; i-- {
		if segs[i].IsIndex {
			return nil, fmt.Errorf("%w: index in nested path %s", types.ErrInvalidPath, pathString(segs))
		}
		value = map[string]any{segs[i].Key: value}
	}
	props := value.(map[string]any)
	system := segs[0].Key == "systemProperties"

	switch it := item.(type) {
	case *types.Profile:
		p := &types.Profile{ID: it.ID, ScopeName: it.ScopeName}
		if system {
			p.SystemProperties = props
		} else {
			p.Properties = props
		}
		return p, nil
	case *types.Session:
		s := &types.Session{ID: it.ID, ScopeName: it.ScopeName, ProfileID: it.ProfileID}
		if system {
			s.SystemProperties = props
		} else {
			s.Properties = props
		}
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", types.ErrUnknownItemType, item.ItemType())
}
