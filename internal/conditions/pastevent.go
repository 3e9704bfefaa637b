// internal/conditions/pastevent.go
package conditions

import (
	"fmt"
	"math"
	"time"

	"github.com/solatis/condengine/internal/codec"
	"github.com/solatis/condengine/internal/types"
)

/*
 * Past event conditions.
 *
 * "Did this profile trigger events matching X (between min and max times,
 * within the last N days)?" Two sources answer it:
 *
 *   counter   systemProperties.pastEvents on the profile, a list of
 *             {key, count} entries maintained as events arrive. The key is
 *             generatedPropertyKey, derived from the event condition and
 *             its window, so equal conditions share a counter.
 *   legacy    a live count of stored events through Persistence, used
 *             when the condition carries no generated key.
 *
 * The counter is the source of truth. The legacy path stays for
 * conditions created before keys were assigned; the two can disagree when
 * counters are stale, and nothing here reconciles them.
 */

// Past event operators and storage.
const (
	PastEventsOccurred    = "eventsOccurred"
	PastEventsNotOccurred = "eventsNotOccurred"
	PastEventsField       = "pastEvents"
	PastEventsProperty    = "systemProperties." + PastEventsField
	PastEventsCountPath   = PastEventsProperty + ".count"
	PastEventsKeyPath     = PastEventsProperty + ".key"
)

// PastEvent is the parsed form of a pastEventCondition.
type PastEvent struct {
	EventCondition *types.Condition
	NumberOfDays   int64 // 0 when absent
	FromDate       *time.Time
	ToDate         *time.Time
	Min            int64
	Max            int64
	Operator       string
	Key            string // generatedPropertyKey, empty on the legacy path
}

// LoadPastEvent reads the parameters of a pastEventCondition.
func LoadPastEvent(c *types.Condition) (PastEvent, error) {
	pe := PastEvent{Min: 0, Max: math.MaxInt64, Operator: PastEventsOccurred}
	sub, ok := c.ConditionParam("eventCondition")
	if !ok {
		return pe, fmt.Errorf("%w: pastEventCondition needs eventCondition", types.ErrMissingParameter)
	}
	pe.EventCondition = sub

	if op, ok := ParamOrDefault(c, "operator").AsString(); ok && op != "" {
		pe.Operator = op
	}
	if pe.Operator != PastEventsOccurred && pe.Operator != PastEventsNotOccurred {
		return pe, fmt.Errorf("%w: %q", types.ErrUnsupportedPastEventOperator, pe.Operator)
	}

	var err error
	if v := c.Param("numberOfDays"); !v.IsNull() {
		if pe.NumberOfDays, err = toInt(v); err != nil {
			return pe, fmt.Errorf("numberOfDays: %w", err)
		}
	}
	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"fromDate", &pe.FromDate}, {"toDate", &pe.ToDate}} {
		v := c.Param(bound.name)
		if v.IsNull() {
			continue
		}
		t, err := toDate(v)
		if err != nil {
			return pe, fmt.Errorf("%s: %w", bound.name, err)
		}
		*bound.dst = &t
	}
	if pe.Operator == PastEventsOccurred {
		if v := c.Param("minimumEventCount"); !v.IsNull() {
			if pe.Min, err = toInt(v); err != nil {
				return pe, fmt.Errorf("minimumEventCount: %w", err)
			}
		}
		if v := c.Param("maximumEventCount"); !v.IsNull() {
			if pe.Max, err = toInt(v); err != nil {
				return pe, fmt.Errorf("maximumEventCount: %w", err)
			}
		}
	}
	pe.Key, _ = c.StringParam("generatedPropertyKey")
	return pe, nil
}

// Matches applies the operator to an event count.
func (pe PastEvent) Matches(count int64) bool {
	if pe.Operator == PastEventsNotOccurred {
		return count == 0
	}
	return count > 0 && count >= pe.Min && count <= pe.Max
}

// EffectiveMin is the lowest count that satisfies eventsOccurred.
func (pe PastEvent) EffectiveMin() int64 {
	if pe.Min < 1 {
		return 1
	}
	return pe.Min
}

// EventWindow returns the event condition narrowed by the time window,
// with parameter references substituted from params.
func (pe PastEvent) EventWindow(params Params) (*types.Condition, error) {
	ec, err := ContextualCondition(pe.EventCondition, params)
	if err != nil {
		return nil, err
	}
	if ec == nil {
		return nil, fmt.Errorf("%w: eventCondition references an absent parameter", types.ErrMissingParameter)
	}
	subs := []*types.Condition{ec}
	if pe.NumberOfDays > 0 {
		subs = append(subs, timeStampCondition(OpGreaterThan, ParamPropertyValueDateExpr,
			types.String(fmt.Sprintf("now-%dd", pe.NumberOfDays))))
	}
	if pe.FromDate != nil {
		subs = append(subs, timeStampCondition(OpGreaterThanOrEqualTo, ParamPropertyValueDate, types.Date(*pe.FromDate)))
	}
	if pe.ToDate != nil {
		subs = append(subs, timeStampCondition(OpLessThanOrEqualTo, ParamPropertyValueDate, types.Date(*pe.ToDate)))
	}
	if len(subs) == 1 {
		return ec, nil
	}
	and := types.NewCondition(types.BooleanConditionID).
		SetParameter("operator", types.String("and")).
		SetParameter("subConditions", types.Conds(subs...))
	return and, nil
}

func timeStampCondition(op, param string, v types.Value) *types.Condition {
	return types.NewCondition(types.EventPropertyConditionID).
		SetParameter(ParamPropertyName, types.String("timeStamp")).
		SetParameter(ParamComparisonOperator, types.String(op)).
		SetParameter(param, v)
}

// PastEventPropertyKey derives the counter key of a pastEventCondition
// from its event condition and window.
func PastEventPropertyKey(c *types.Condition) (string, error) {
	canonical := types.Map(
		types.Parameter{Name: "condition", Value: c.Param("eventCondition")},
		types.Parameter{Name: "numberOfDays", Value: c.Param("numberOfDays")},
		types.Parameter{Name: "fromDate", Value: c.Param("fromDate")},
		types.Parameter{Name: "toDate", Value: c.Param("toDate")},
	)
	data, err := codec.MarshalValue(canonical)
	if err != nil {
		return "", fmt.Errorf("past event key: %w", err)
	}
	return types.GeneratedPropertyKey(data), nil
}

// AssignPastEventKeys sets generatedPropertyKey on every pastEventCondition
// in root that lacks one and returns how many were assigned.
func AssignPastEventKeys(root *types.Condition) (int, error) {
	assigned := 0
	var firstErr error
	Walk(root, Visitor{Visit: func(c *types.Condition) {
		if c.TypeID != types.PastEventConditionID || firstErr != nil {
			return
		}
		if k, ok := c.StringParam("generatedPropertyKey"); ok && k != "" {
			return
		}
		key, err := PastEventPropertyKey(c)
		if err != nil {
			firstErr = err
			return
		}
		c.SetParameter("generatedPropertyKey", types.String(key))
		assigned++
	}})
	return assigned, firstErr
}

// PastEventCount reads the counter for key from a profile, 0 when absent.
func PastEventCount(p *types.Profile, key string) int64 {
	if p == nil || p.SystemProperties == nil {
		return 0
	}
	entries, ok := asSlice(p.SystemProperties[PastEventsField])
	if !ok {
		return 0
	}
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok || m["key"] != key {
			continue
		}
		n, err := toInt(m["count"])
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// RecordPastEvent adds delta to the counter for key on p.
func RecordPastEvent(p *types.Profile, key string, delta int64) {
	if p.SystemProperties == nil {
		p.SystemProperties = make(map[string]any)
	}
	entries, _ := asSlice(p.SystemProperties[PastEventsField])
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok || m["key"] != key {
			continue
		}
		n, _ := toInt(m["count"])
		m["count"] = n + delta
		p.SystemProperties[PastEventsField] = entries
		return
	}
	entries = append(entries, map[string]any{"key": key, "count": delta})
	p.SystemProperties[PastEventsField] = entries
}

// profileOf returns the profile an item belongs to.
func profileOf(item types.Item) *types.Profile {
	switch it := item.(type) {
	case *types.Profile:
		return it
	case *types.Event:
		if it.Profile != nil {
			return it.Profile
		}
		if it.Session != nil {
			return it.Session.Profile
		}
	case *types.Session:
		return it.Profile
	}
	return nil
}
