// internal/rules/evaluate.go
package rules

import (
	"context"

	"github.com/solatis/condengine/internal/types"
)

/*
 * Rule evaluation.
 *
 * An event is evaluated against a rule only when the rule is valid and
 * targets the event's type (or "*"). Skipped rules report Skipped without
 * touching the condition tree.
 *
 * A matching rule with RaiseEventOnlyOnce fires once per event id: the
 * second match for the same event reports AlreadyRaised instead of Matched,
 * so replayed events do not run actions twice. The ids kept per rule are
 * bounded (WithRaisedLimit) and dropped when the rule is removed.
 */

// MatchResult is the outcome of evaluating one rule against one event.
type MatchResult struct {
	RuleID        string
	Matched       bool
	Skipped       bool
	AlreadyRaised bool
	Actions       []*types.Action
}

// Evaluate matches event against cr.
func (e *Engine) Evaluate(ctx context.Context, cr *CompiledRule, event *types.Event) MatchResult {
	res := MatchResult{RuleID: cr.ID()}
	if !cr.Valid || event == nil || !cr.Accepts(event.EventType) {
		res.Skipped = true
		return res
	}
	if !e.evaluator.Eval(ctx, cr.Rule.Condition, event) {
		return res
	}
	if cr.Rule.RaiseEventOnlyOnce {
		if e.raised.mark(cr.ID(), event.ID) {
			e.cfg.logger.Debug(logMsgAlreadyRaised, logAttrRuleID, cr.ID(), logAttrEventID, event.ID)
			res.AlreadyRaised = true
			return res
		}
	}
	res.Matched = true
	res.Actions = cr.Rule.Actions
	return res
}

// MatchingRules evaluates every deployed rule targeting the event's type
// and returns the matches in priority order.
func (e *Engine) MatchingRules(ctx context.Context, event *types.Event) []MatchResult {
	if event == nil {
		return nil
	}
	var out []MatchResult
	for _, cr := range e.candidates(event.EventType) {
		if err := ctx.Err(); err != nil {
			return out
		}
		if res := e.Evaluate(ctx, cr, event); res.Matched {
			out = append(out, res)
		}
	}
	return out
}
