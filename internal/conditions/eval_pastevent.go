package conditions

import (
	"context"
	"fmt"

	"github.com/solatis/condengine/internal/types"
)

// evalPastEvent counts the profile's matching events, from the counter
// when the condition has a generated key and from storage otherwise.
func evalPastEvent(ctx context.Context, c *types.Condition, item types.Item, params Params, d *Dispatcher) (bool, error) {
	pe, err := LoadPastEvent(c)
	if err != nil {
		return false, err
	}
	profile := profileOf(item)
	if profile == nil {
		return false, nil
	}
	if pe.Key != "" {
		return pe.Matches(PastEventCount(profile, pe.Key)), nil
	}

	d.cfg.logger.Debug(logMsgPastEventLegacyPath, logAttrItemType, item.ItemType())
	if d.cfg.persistence == nil {
		return false, types.ErrNoPersistence
	}
	window, err := pe.EventWindow(params)
	if err != nil {
		return false, err
	}
	byProfile := types.NewCondition(types.EventPropertyConditionID).
		SetParameter(ParamPropertyName, types.String("profileId")).
		SetParameter(ParamComparisonOperator, types.String(OpEquals)).
		SetParameter(ParamPropertyValue, types.String(profile.ID))
	query := types.NewCondition(types.BooleanConditionID).
		SetParameter("operator", types.String("and")).
		SetParameter("subConditions", types.Conds(window, byProfile))
	if !d.resolver.ResolveConditionType(query, "past event count") {
		return false, fmt.Errorf("%w: past event count query", types.ErrUnresolvedCondition)
	}

	count, err := d.cfg.persistence.QueryCount(ctx, query, types.ItemTypeEvent)
	if err != nil {
		d.cfg.logger.Error(logMsgPastEventCountFailure, logAttrError, err)
		return false, nil
	}
	return pe.Matches(count), nil
}
