package conditions

import (
	"context"
	"time"

	"github.com/solatis/condengine/internal/types"
)

// evalProperty compares the value at propertyName with the expected
// values under comparisonOperator. An unreadable property counts as
// absent; missing propertyName or comparisonOperator never matches.
func evalProperty(_ context.Context, c *types.Condition, item types.Item, _ Params, d *Dispatcher) (bool, error) {
	name, ok := c.StringParam(ParamPropertyName)
	if !ok || name == "" {
		return false, nil
	}
	op, ok := ParamOrDefault(c, ParamComparisonOperator).AsString()
	if !ok || op == "" {
		return false, nil
	}
	operands, err := LoadOperands(c, d.cfg.now())
	if err != nil {
		return false, err
	}
	return EvalOperator(op, d.propertyValue(item, name), operands)
}

// propertyValue reads name from item, nil when absent or null.
func (d *Dispatcher) propertyValue(item types.Item, name string) any {
	if e, ok := item.(*types.Event); ok && name == "eventType" {
		if e.EventType == "" {
			return nil
		}
		return e.EventType
	}

	start := time.Now()
	res, err := d.cfg.accessors.Get(item, name)
	if elapsed := time.Since(start); d.cfg.slowAccess > 0 && elapsed > d.cfg.slowAccess {
		d.cfg.logger.Info(logMsgSlowPropertyAccess,
			logAttrProperty, name,
			logAttrItemType, item.ItemType(),
			logAttrDurationMS, elapsed.Milliseconds())
	}
	if err != nil {
		d.cfg.logger.Warn(logMsgPropertyAccessFailed, logAttrProperty, name, logAttrError, err)
		return nil
	}
	if !res.Found {
		return nil
	}
	return res.Value
}
